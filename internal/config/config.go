package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT (moderator routes)
	JWTSecret string

	// API auth
	OverrideAPIAuth bool

	// OCR
	EnableOCR      bool
	OCRBotUsername string
	ImageDomains   string

	// Queue timing
	QueueTimeout            time.Duration
	InProgressTimeout       time.Duration
	ArchivistDelay          time.Duration
	ArchivistCompletedDelay time.Duration

	// Event bus
	EventQueueSize   int
	EventWorkers     int
	EventSendTimeout time.Duration

	// Server
	Port        string
	CORSOrigins string
}

func Load() *Config {
	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "scribe_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		OverrideAPIAuth: parseBool(getEnv("OVERRIDE_API_AUTH", "false")),

		EnableOCR:      parseBool(getEnv("ENABLE_OCR", "true")),
		OCRBotUsername: getEnv("OCR_BOT_USERNAME", "transcribot"),
		ImageDomains:   getEnv("IMAGE_DOMAINS", "i.redd.it,i.imgur.com"),

		QueueTimeout:            parseDuration(getEnv("QUEUE_TIMEOUT", "18h"), 18*time.Hour),
		InProgressTimeout:       parseDuration(getEnv("IN_PROGRESS_TIMEOUT", "4h"), 4*time.Hour),
		ArchivistDelay:          parseDuration(getEnv("ARCHIVIST_DELAY_TIME", "20h"), 20*time.Hour),
		ArchivistCompletedDelay: parseDuration(getEnv("ARCHIVIST_COMPLETED_DELAY_TIME", "1h"), time.Hour),

		EventQueueSize:   parseInt(getEnv("EVENT_QUEUE_SIZE", "256"), 256),
		EventWorkers:     parseInt(getEnv("EVENT_WORKERS", "4"), 4),
		EventSendTimeout: parseDuration(getEnv("EVENT_SEND_TIMEOUT", "2s"), 2*time.Second),

		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
	}
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false
	}
	return b
}
