package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/arunangsur/modern-face-api/internal/db"
	svcerr "github.com/arunangsur/modern-face-api/internal/errors"
)

const recentEventsLimit = 50

type AuditHandler struct {
	db *db.DB
}

func NewAuditHandler(d *db.DB) *AuditHandler {
	return &AuditHandler{db: d}
}

// Recent serves the newest rows of the recognition audit log. The log
// only exists when Postgres is configured; without it the endpoint
// answers 503 rather than pretending the history is empty.
func (h *AuditHandler) Recent() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if h.db == nil || h.db.Pool == nil {
			return fail(c, svcerr.Request, "db_not_configured")
		}

		events, err := h.db.RecentEvents(c.Context(), recentEventsLimit)
		if err != nil {
			slog.Error("failed to fetch audit events", "error", err)
			return fail(c, svcerr.Request, "audit_query_failed")
		}
		if events == nil {
			events = []db.AuditEvent{}
		}

		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"count":  len(events),
			"events": events,
		})
	}
}
