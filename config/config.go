package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the server and the operator tools read from the
// environment. Values come from the process env, optionally seeded from ./.env.
type Config struct {
	Port    string
	GinMode string

	DBDriver    string // postgres or sqlite
	DBDSN       string
	AutoMigrate bool

	JWTSecret      string
	JWTExpiresHour int

	UploadBase    string
	PublicBaseURL string

	ClassifierCmd         string
	ClassifierScript      string
	ClassifierTimeout     time.Duration
	ClassifierOutputGrace time.Duration
	ClassifierTempDir     string

	OCRDegrees bool

	AdminEmail    string
	AdminPassword string
}

// Load reads ./.env (when present) without overriding variables that are
// already set, then builds a Config with defaults for anything missing.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn(".env not loaded", "error", err)
	}
	secret := getEnv("JWT_SECRET", "")
	if secret == "" {
		secret = "dev-insecure-secret-change" // development fallback
		slog.Warn("JWT_SECRET not set, using development secret")
	}
	return &Config{
		Port:    getEnv("PORT", "5000"),
		GinMode: getEnv("GIN_MODE", ""),

		DBDriver:    strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DBDSN:       getEnv("DB_DSN", ""),
		AutoMigrate: getBool("DB_AUTO_MIGRATE", true),

		JWTSecret:      secret,
		JWTExpiresHour: getInt("JWT_EXPIRES_HOURS", 24),

		UploadBase:    getEnv("UPLOAD_BASE", "uploads"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),

		ClassifierCmd:         getEnv("CLASSIFIER_CMD", "python3"),
		ClassifierScript:      getEnv("CLASSIFIER_SCRIPT", "../ml-service/process_image.py"),
		ClassifierTimeout:     getDuration("CLASSIFIER_TIMEOUT", 2*time.Minute),
		ClassifierOutputGrace: getDuration("CLASSIFIER_OUTPUT_GRACE", 2*time.Second),
		ClassifierTempDir:     getEnv("CLASSIFIER_TEMP_DIR", "temp"),

		OCRDegrees: getBool("OCR_DEGREES", true),

		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
	}
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		slog.Warn("ignoring invalid integer", "key", key, "value", v)
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "":
		return fallback
	case "false", "0", "no", "off":
		return false
	case "true", "1", "yes", "on":
		return true
	}
	slog.Warn("ignoring invalid boolean", "key", key, "value", v)
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("ignoring invalid duration", "key", key, "value", v)
		return fallback
	}
	return d
}
