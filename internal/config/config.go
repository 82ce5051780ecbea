package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Env      string
	HTTPAddr string
	Log      string

	// Gallery root directory. RENDER_DISK_PATH takes precedence over
	// DATA_DIR so the service picks up the mounted persistent disk on
	// hosted deployments without extra configuration.
	DataDir string

	// Cosine distance at or below which an identification counts as a
	// match. 0.40 matches the cutoff the gallery was tuned against.
	MatchThreshold float64

	// Maximum accepted upload size in bytes.
	MaxUploadBytes int

	DBURL       string
	AutoMigrate bool

	NATSURL string

	// Outbound webhook for register/identify events. Optional; the
	// secret, when set, is used to sign request bodies (X-Signature-256).
	WebhookURL    string
	WebhookSecret string

	// Ed25519 seed (32 bytes, base64) for signing match attestations.
	// Attestations are disabled when empty.
	AttestSeedB64    string
	AttestTTLSeconds int

	// Frontend base URL (e.g., http://localhost:5173 or https://yourdomain.com)
	// Used for CORS configuration
	FrontendBaseURL string

	// Allowed CORS origins (comma-separated). If empty, uses FrontendBaseURL
	CORSOrigins string
}

func Load() Config {
	env := getEnv("APP_ENV", "dev")
	logLevel := getEnv("LOG_LEVEL", "info")

	// Prefer HTTP_ADDR if provided, otherwise build it from HOST/PORT.
	// The stock deployment serves on 0.0.0.0:10000.
	httpAddr := os.Getenv("HTTP_ADDR")
	if strings.TrimSpace(httpAddr) == "" {
		host := getEnv("HOST", "0.0.0.0")
		port := getEnv("PORT", "10000")
		httpAddr = host + ":" + port
	}

	dataDir := os.Getenv("RENDER_DISK_PATH")
	if strings.TrimSpace(dataDir) == "" {
		dataDir = getEnv("DATA_DIR", "face_db")
	}

	return Config{
		Env:      env,
		HTTPAddr: httpAddr,
		Log:      logLevel,

		DataDir: dataDir,

		MatchThreshold: getEnvFloat("MATCH_THRESHOLD", 0.40),
		MaxUploadBytes: getEnvInt("MAX_UPLOAD_BYTES", 8<<20),

		DBURL:       getEnv("DB_URL", ""),
		AutoMigrate: getEnvBool("AUTO_MIGRATE", false),

		NATSURL: getEnv("NATS_URL", ""),

		WebhookURL:    getEnv("WEBHOOK_URL", ""),
		WebhookSecret: getEnv("WEBHOOK_SECRET", ""),

		AttestSeedB64:    getEnv("ATTEST_SEED_B64", ""),
		AttestTTLSeconds: getEnvInt("ATTEST_TTL_SECONDS", 300),

		FrontendBaseURL: getEnv("FRONTEND_BASE_URL", ""),
		CORSOrigins:     getEnv("CORS_ORIGINS", ""),
	}
}

func (c Config) LogLevel() slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(c.Log)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info", "":
		return slog.LevelInfo
	default:
		// Allow numeric levels for easy tweaking (-4 debug, 0 info, 4 warn, 8 error).
		if n, err := strconv.Atoi(c.Log); err == nil {
			return slog.Level(n)
		}
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func getEnvBool(key string, fallback bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return fallback
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
