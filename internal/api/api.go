package api

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/arunangsur/modern-face-api/internal/attest"
	"github.com/arunangsur/modern-face-api/internal/bus"
	"github.com/arunangsur/modern-face-api/internal/config"
	"github.com/arunangsur/modern-face-api/internal/db"
	"github.com/arunangsur/modern-face-api/internal/gallery"
	"github.com/arunangsur/modern-face-api/internal/handlers"
	"github.com/arunangsur/modern-face-api/internal/notify"
)

type Deps struct {
	Store    *gallery.Store
	DB       *db.DB
	Bus      bus.Bus
	Signer   *attest.Signer
	Notifier *notify.Client
}

func New(cfg config.Config, deps Deps) *fiber.App {
	slog.Info("initializing Fiber app",
		"app_name", "face-api",
	)

	// Leave headroom above the upload cap for the multipart framing.
	bodyLimit := cfg.MaxUploadBytes + 1<<20

	app := fiber.New(fiber.Config{
		AppName:      "face-api",
		BodyLimit:    bodyLimit,
		IdleTimeout:  60 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	// Baseline middleware.
	app.Use(requestid.New())
	app.Use(recover.New())

	// Configure CORS from environment variables
	corsConfig := cors.Config{
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
	}

	// Always use AllowOriginsFunc so we can:
	// - allow localhost for dev
	// - allow explicit CORS_ORIGINS (comma-separated)
	// - allow FrontendBaseURL
	explicitOrigins := map[string]struct{}{}
	if strings.TrimSpace(cfg.CORSOrigins) != "" {
		for _, o := range strings.Split(cfg.CORSOrigins, ",") {
			o = strings.TrimSpace(o)
			if o == "" {
				continue
			}
			explicitOrigins[o] = struct{}{}
		}
	}

	corsConfig.AllowOriginsFunc = func(origin string) bool {
		// Always allow localhost origins for development / local frontend testing.
		if strings.HasPrefix(origin, "http://localhost:") ||
			strings.HasPrefix(origin, "http://127.0.0.1:") ||
			strings.HasPrefix(origin, "https://localhost:") ||
			strings.HasPrefix(origin, "https://127.0.0.1:") {
			return true
		}

		if _, ok := explicitOrigins[origin]; ok {
			return true
		}

		// If FrontendBaseURL is set, allow it.
		if cfg.FrontendBaseURL != "" {
			if origin == cfg.FrontendBaseURL || strings.HasPrefix(origin, cfg.FrontendBaseURL+"/") {
				return true
			}
		}

		return false
	}

	app.Use(cors.New(corsConfig))
	app.Use(logger.New())

	// Routes.
	app.Get("/", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":  "ok",
			"message": "Face Recognition API is running.",
			"service": "face-api",
		})
	})
	app.Post("/", func(c *fiber.Ctx) error {
		// Clients that POST to root almost always meant /register or
		// /identify; point them at the right place.
		slog.Warn("POST request received at root path",
			"user_agent", c.Get("User-Agent"),
			"content_type", c.Get("Content-Type"),
			"remote_ip", c.IP(),
		)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":        "upload_url_misconfigured",
			"message":      "Uploads should be sent to /register or /identify, not /",
			"correct_urls": []string{"/register", "/identify"},
		})
	})

	app.Get("/health", handlers.Health())
	app.Get("/ready", handlers.Ready(deps.Store, deps.DB))

	faces := handlers.NewFacesHandler(cfg, deps.Store, deps.DB, deps.Bus, deps.Signer, deps.Notifier)
	app.Post("/register", faces.Register())
	app.Post("/identify", faces.Identify())

	app.Get("/faces", faces.List())
	app.Get("/faces/:user_id", faces.Get())
	app.Delete("/faces/:user_id", faces.Delete())

	stats := handlers.NewStatsHandler(deps.Store, deps.DB)
	app.Get("/stats", stats.Get())

	audit := handlers.NewAuditHandler(deps.DB)
	app.Get("/events", audit.Recent())

	// Add catch-all 404 handler to log unmatched routes (helps debug routing issues)
	app.Use(func(c *fiber.Ctx) error {
		slog.Warn("unmatched route",
			"method", c.Method(),
			"path", c.Path(),
			"remote_ip", c.IP(),
			"user_agent", c.Get("User-Agent"),
		)
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "not_found",
			"path":  c.Path(),
		})
	})

	slog.Info("all routes registered",
		"gallery_root", deps.Store.Root(),
		"db_configured", deps.DB != nil,
		"nats_configured", deps.Bus != nil,
		"webhook_configured", deps.Notifier != nil,
		"attestations_enabled", deps.Signer != nil,
	)

	return app
}
