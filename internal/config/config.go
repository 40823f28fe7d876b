package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr      string
	DBDriver  string
	DBDSN     string
	JWTSecret string

	// Admin login (single-operator deployment).
	AdminPasswordHash string

	// Tick processing
	CronSecret    string
	TickLimit     int
	TickBudget    time.Duration
	ClaimTTL      time.Duration
	RemoteTimeout time.Duration

	// Gemini
	GeminiAPIKey      string
	DefaultTextModel  string
	DefaultImageModel string

	// Optional collaborators
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RabbitURL     string
	RabbitQueue   string

	LogFile string
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func Load() Config {
	driver := envStr("DB_DRIVER", "sqlite")

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		switch driver {
		case "mysql":
			// DSN demo:
			// app:apppass@tcp(127.0.0.1:3306)/autopress?charset=utf8mb4&parseTime=true&loc=Local
			dsn = "app:apppass@tcp(127.0.0.1:3306)/autopress?charset=utf8mb4&parseTime=true&loc=Local"
		default:
			dsn = "autopress.db"
		}
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-secret-change-me"
	}

	return Config{
		Addr:      envStr("ADDR", ":8080"),
		DBDriver:  driver,
		DBDSN:     dsn,
		JWTSecret: secret,

		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),

		CronSecret:    os.Getenv("CRON_SECRET"),
		TickLimit:     envInt("TICK_LIMIT", 2),
		TickBudget:    envDuration("TICK_BUDGET", 55*time.Second),
		ClaimTTL:      envDuration("CLAIM_TTL", 2*time.Minute),
		RemoteTimeout: envDuration("REMOTE_TIMEOUT", 20*time.Second),

		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		DefaultTextModel:  envStr("DEFAULT_TEXT_MODEL", "gemini-2.0-flash"),
		DefaultImageModel: envStr("DEFAULT_IMAGE_MODEL", "imagen-3.0-generate-002"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),
		RabbitURL:     os.Getenv("RABBIT_URL"),
		RabbitQueue:   envStr("RABBIT_QUEUE", "autopress_events"),

		LogFile: envStr("LOG_FILE", "autopress.log"),
	}
}
