package handlers

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"

	"github.com/arunangsur/modern-face-api/internal/db"
	"github.com/arunangsur/modern-face-api/internal/gallery"
)

// Health is a liveness probe: the process is up.
func Health() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	}
}

// Ready is a readiness probe: the gallery root is writable and, when an
// audit database is configured, it answers pings.
func Ready(store *gallery.Store, d *db.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		probe := filepath.Join(store.Root(), ".ready-probe")
		if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
			slog.Error("gallery root not writable", "root", store.Root(), "error", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"ready": false,
				"error": "gallery_not_writable",
			})
		}
		os.Remove(probe)

		if d != nil && d.Pool != nil {
			if err := d.Pool.Ping(c.Context()); err != nil {
				slog.Error("audit database unreachable", "error", err)
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"ready": false,
					"error": "db_unreachable",
				})
			}
		}

		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ready": true})
	}
}
