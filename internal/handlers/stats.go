package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/arunangsur/modern-face-api/internal/db"
	"github.com/arunangsur/modern-face-api/internal/embedding"
	svcerr "github.com/arunangsur/modern-face-api/internal/errors"
	"github.com/arunangsur/modern-face-api/internal/gallery"
)

type StatsHandler struct {
	store *gallery.Store
	db    *db.DB
}

func NewStatsHandler(store *gallery.Store, d *db.DB) *StatsHandler {
	return &StatsHandler{store: store, db: d}
}

// Get returns gallery and index state, plus identification counters when
// the audit database is configured.
func (h *StatsHandler) Get() fiber.Handler {
	return func(c *fiber.Ctx) error {
		enrolled, err := h.store.Count()
		if err != nil {
			slog.Error("failed to count gallery", "error", err)
			return fail(c, svcerr.Gallery, "list_failed")
		}

		built, model, builtAt, entries := h.store.IndexInfo()
		index := fiber.Map{"built": built}
		if built {
			index["model"] = model
			index["built_at"] = builtAt
			index["entries"] = entries
		}

		resp := fiber.Map{
			"enrolled_count": enrolled,
			"model":          embedding.Model,
			"index":          index,
		}

		if h.db != nil && h.db.Pool != nil {
			total, matched, err := h.db.IdentifyCounts(c.Context())
			if err != nil {
				slog.Warn("failed to fetch identification counters", "error", err)
			} else {
				resp["identifications"] = fiber.Map{
					"total":   total,
					"matched": matched,
				}
			}
		}

		return c.Status(fiber.StatusOK).JSON(resp)
	}
}
