package handlers

import (
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/arunangsur/modern-face-api/internal/attest"
	"github.com/arunangsur/modern-face-api/internal/bus"
	"github.com/arunangsur/modern-face-api/internal/config"
	"github.com/arunangsur/modern-face-api/internal/db"
	"github.com/arunangsur/modern-face-api/internal/embedding"
	svcerr "github.com/arunangsur/modern-face-api/internal/errors"
	"github.com/arunangsur/modern-face-api/internal/events"
	"github.com/arunangsur/modern-face-api/internal/gallery"
	"github.com/arunangsur/modern-face-api/internal/notify"
)

type FacesHandler struct {
	cfg      config.Config
	store    *gallery.Store
	db       *db.DB
	bus      bus.Bus
	signer   *attest.Signer
	notifier *notify.Client
}

func NewFacesHandler(cfg config.Config, store *gallery.Store, d *db.DB, b bus.Bus, signer *attest.Signer, notifier *notify.Client) *FacesHandler {
	return &FacesHandler{cfg: cfg, store: store, db: d, bus: b, signer: signer, notifier: notifier}
}

// fail renders a registry-backed error response.
func fail(c *fiber.Ctx, kind svcerr.Kind, code string) error {
	return c.Status(svcerr.Status(kind, code)).JSON(fiber.Map{
		"error":   code,
		"message": svcerr.Message(kind, code),
	})
}

// Register enrolls (or updates) a face: multipart form with a `user_id`
// field and a `file` image. The upload is validated by actually decoding
// and embedding it, then stored verbatim in the gallery.
func (h *FacesHandler) Register() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.FormValue("user_id"))
		if userID == "" {
			return fail(c, svcerr.Request, "missing_user_id")
		}
		if err := gallery.ValidateUserID(userID); err != nil {
			return fail(c, svcerr.Gallery, "invalid_user_id")
		}

		data, errCode, errKind := h.readUpload(c)
		if errCode != "" {
			return fail(c, errKind, errCode)
		}

		if _, err := embedding.FromBytes(data); err != nil {
			if errors.Is(err, embedding.ErrTooSmall) {
				return fail(c, svcerr.Pipeline, "image_too_small")
			}
			return fail(c, svcerr.Pipeline, "decode_failed")
		}

		_, getErr := h.store.Get(userID)
		updated := getErr == nil

		if err := h.store.Put(userID, data); err != nil {
			slog.Error("failed to store face image", "user_id", userID, "error", err)
			return fail(c, svcerr.Gallery, "store_failed")
		}

		info, err := h.store.Get(userID)
		if err != nil {
			slog.Error("stored face image not readable back", "user_id", userID, "error", err)
			return fail(c, svcerr.Gallery, "store_failed")
		}

		slog.Info("registered face",
			"user_id", userID,
			"updated", updated,
			"size_bytes", info.SizeBytes,
			"request_id", c.Locals("requestid"),
		)

		ev := events.FaceRegistered{
			EventID:    uuid.NewString(),
			UserID:     userID,
			ImageHash:  info.ImageHash,
			SizeBytes:  info.SizeBytes,
			Updated:    updated,
			OccurredAt: time.Now().UTC(),
		}
		h.audit(c, ev.EventID, "register", userID, false, 0)
		h.emit(c, events.SubjectFaceRegistered, ev)

		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":  "success",
			"user_id": userID,
			"updated": updated,
		})
	}
}

// Identify searches the gallery for the nearest enrolled face. The
// response vocabulary (`match_found` / `no_match_found`) is part of the
// public contract.
func (h *FacesHandler) Identify() fiber.Handler {
	return func(c *fiber.Ctx) error {
		data, errCode, errKind := h.readUpload(c)
		if errCode != "" {
			return fail(c, errKind, errCode)
		}

		query, err := embedding.FromBytes(data)
		if err != nil {
			if errors.Is(err, embedding.ErrTooSmall) {
				return fail(c, svcerr.Pipeline, "image_too_small")
			}
			return fail(c, svcerr.Pipeline, "decode_failed")
		}

		idx, rebuilt, err := h.store.RefreshIndex(embedding.Model, embedding.FromBytes)
		if err != nil {
			slog.Error("failed to refresh representations index", "error", err)
			return fail(c, svcerr.Gallery, "index_build_failed")
		}
		if rebuilt {
			h.emit(c, events.SubjectIndexRebuilt, events.IndexRebuilt{
				EventID:    uuid.NewString(),
				Model:      idx.Model,
				Entries:    len(idx.Entries),
				OccurredAt: time.Now().UTC(),
			})
		}

		eventID := uuid.NewString()

		best, dist := idx.Search(query)
		if best == nil {
			slog.Info("identification against empty gallery", "request_id", c.Locals("requestid"))
			h.audit(c, eventID, "identify", "", false, -1)
			h.emit(c, events.SubjectFaceIdentified, events.FaceIdentified{
				EventID:    eventID,
				Matched:    false,
				Distance:   -1,
				Model:      embedding.Model,
				OccurredAt: time.Now().UTC(),
			})
			return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "no_match_found"})
		}

		matched := dist <= h.cfg.MatchThreshold
		h.audit(c, eventID, "identify", best.UserID, matched, dist)
		h.emit(c, events.SubjectFaceIdentified, events.FaceIdentified{
			EventID:    eventID,
			Matched:    matched,
			UserID:     matchedUserID(best.UserID, matched),
			Distance:   dist,
			Model:      embedding.Model,
			OccurredAt: time.Now().UTC(),
		})

		if !matched {
			slog.Info("no matching face found",
				"nearest_distance", dist,
				"threshold", h.cfg.MatchThreshold,
				"request_id", c.Locals("requestid"),
			)
			return c.Status(fiber.StatusOK).JSON(fiber.Map{
				"status":   "no_match_found",
				"distance": dist,
			})
		}

		slog.Info("match found",
			"user_id", best.UserID,
			"distance", dist,
			"request_id", c.Locals("requestid"),
		)

		resp := fiber.Map{
			"status":   "match_found",
			"user_id":  best.UserID,
			"distance": dist,
			"model":    embedding.Model,
		}
		if h.signer != nil {
			ttl := time.Duration(h.cfg.AttestTTLSeconds) * time.Second
			a, sig, err := h.signer.Attest(best.UserID, embedding.Model, dist, ttl)
			if err != nil {
				slog.Warn("failed to sign match attestation", "error", err)
			} else {
				resp["attestation"] = fiber.Map{
					"user_id":   a.UserID,
					"model":     a.Model,
					"distance":  a.Distance,
					"issued_at": a.IssuedAt,
					"expiry":    a.Expiry,
					"issuer":    a.Issuer,
					"signature": base64.StdEncoding.EncodeToString(sig),
				}
			}
		}
		return c.Status(fiber.StatusOK).JSON(resp)
	}
}

// List returns every enrolled subject.
func (h *FacesHandler) List() fiber.Handler {
	return func(c *fiber.Ctx) error {
		subjects, err := h.store.List()
		if err != nil {
			slog.Error("failed to list gallery", "error", err)
			return fail(c, svcerr.Gallery, "list_failed")
		}
		if subjects == nil {
			subjects = []gallery.SubjectInfo{}
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"count": len(subjects),
			"faces": subjects,
		})
	}
}

// Get returns one subject's metadata.
func (h *FacesHandler) Get() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Params("user_id")
		info, err := h.store.Get(userID)
		if errors.Is(err, gallery.ErrInvalidUserID) {
			return fail(c, svcerr.Gallery, "invalid_user_id")
		}
		if errors.Is(err, gallery.ErrNotFound) {
			return fail(c, svcerr.Gallery, "subject_not_found")
		}
		if err != nil {
			slog.Error("failed to read subject", "user_id", userID, "error", err)
			return fail(c, svcerr.Gallery, "list_failed")
		}
		return c.Status(fiber.StatusOK).JSON(info)
	}
}

// Delete unenrolls a subject.
func (h *FacesHandler) Delete() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Params("user_id")
		err := h.store.Remove(userID)
		if errors.Is(err, gallery.ErrInvalidUserID) {
			return fail(c, svcerr.Gallery, "invalid_user_id")
		}
		if errors.Is(err, gallery.ErrNotFound) {
			return fail(c, svcerr.Gallery, "subject_not_found")
		}
		if err != nil {
			slog.Error("failed to remove subject", "user_id", userID, "error", err)
			return fail(c, svcerr.Gallery, "remove_failed")
		}

		slog.Info("removed face", "user_id", userID, "request_id", c.Locals("requestid"))

		ev := events.FaceRemoved{
			EventID:    uuid.NewString(),
			UserID:     userID,
			OccurredAt: time.Now().UTC(),
		}
		h.audit(c, ev.EventID, "remove", userID, false, 0)
		h.emit(c, events.SubjectFaceRemoved, ev)

		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "user_id": userID})
	}
}

// readUpload fetches and reads the multipart `file` field. Returns the
// error code + kind instead of an error so callers feed fail() directly.
func (h *FacesHandler) readUpload(c *fiber.Ctx) (data []byte, code string, kind svcerr.Kind) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, "missing_file", svcerr.Request
	}
	if h.cfg.MaxUploadBytes > 0 && fh.Size > int64(h.cfg.MaxUploadBytes) {
		return nil, "file_too_large", svcerr.Request
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "file_read_failed", svcerr.Request
	}
	defer f.Close()

	buf, err := io.ReadAll(f)
	if err != nil || len(buf) == 0 {
		return nil, "file_read_failed", svcerr.Request
	}
	return buf, "", ""
}

// audit records the event in Postgres when configured. Best-effort.
func (h *FacesHandler) audit(c *fiber.Ctx, eventID, kind, userID string, matched bool, distance float64) {
	if h.db == nil || h.db.Pool == nil {
		return
	}
	requestID, _ := c.Locals("requestid").(string)
	if err := h.db.RecordEvent(c.Context(), eventID, kind, userID, matched, distance, embedding.Model, requestID); err != nil {
		slog.Warn("failed to record audit event", "kind", kind, "error", err)
	}
}

// emit publishes to the bus and the webhook when configured. Best-effort.
func (h *FacesHandler) emit(c *fiber.Ctx, subject string, event any) {
	if h.bus != nil {
		if err := h.bus.Publish(subject, event); err != nil {
			slog.Warn("failed to publish event", "subject", subject, "error", err)
		}
	}
	if h.notifier != nil {
		if err := h.notifier.Send(c.Context(), subject, event); err != nil {
			slog.Warn("failed to deliver webhook", "subject", subject, "error", err)
		}
	}
}

func matchedUserID(userID string, matched bool) string {
	if !matched {
		return ""
	}
	return userID
}
