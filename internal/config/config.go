package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	AttachmentBackendFile = "file"
	AttachmentBackendS3   = "s3"
)

type Config struct {
	Environment string
	Port        string
	LogLevel    string

	DBHost     string
	DBPort     string
	DBUsername string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Mailbox credentials are optional at load time. A pass without them
	// reports a configuration error instead of preventing startup.
	IMAPHost     string
	IMAPUsername string
	IMAPPassword string
	IMAPMailbox  string
	IMAPAddress  string
	IMAPTLS      bool
	IMAPTimeout  time.Duration

	PollInterval    time.Duration
	PollMinInterval time.Duration
	PollTimeout     time.Duration

	MIMEMaxDepth int
	MIMEMaxParts int

	AttachmentBackend string
	AttachmentDir     string
	AttachmentBaseURL string

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool

	RedisAddr string
}

func NewConfig() (*Config, error) {
	env := os.Getenv("PORTAL_ENV")
	if env == "" {
		env = "development"
	}

	if env == "development" {
		if err := godotenv.Load(); err != nil {
			fmt.Println("Warning: .env file not found, using environment variables")
		}
	}

	var p parser
	config := &Config{
		Environment: env,
		Port:        getEnvOrDefault("PORT", "8080"),
		LogLevel:    getEnvOrDefault("PORTAL_LOG_LEVEL", "info"),

		DBHost:     getEnvOrDefault("PORTAL_DB_HOST", "localhost"),
		DBPort:     getEnvOrDefault("PORTAL_DB_PORT", "5432"),
		DBUsername: getEnvOrDefault("PORTAL_DB_USER", "portal"),
		DBPassword: os.Getenv("PORTAL_DB_PASSWORD"),
		DBName:     getEnvOrDefault("PORTAL_DB_NAME", "portal"),
		DBSSLMode:  getEnvOrDefault("PORTAL_DB_SSLMODE", "disable"),

		IMAPHost:     os.Getenv("PORTAL_IMAP_HOST"),
		IMAPUsername: os.Getenv("PORTAL_IMAP_USERNAME"),
		IMAPPassword: os.Getenv("PORTAL_IMAP_PASSWORD"),
		IMAPMailbox:  getEnvOrDefault("PORTAL_IMAP_MAILBOX", "INBOX"),
		IMAPAddress:  os.Getenv("PORTAL_IMAP_ADDRESS"),
		IMAPTLS:      p.getBool("PORTAL_IMAP_TLS", true),
		IMAPTimeout:  p.getDuration("PORTAL_IMAP_TIMEOUT", 30*time.Second),

		PollInterval:    p.getDuration("PORTAL_POLL_INTERVAL", 5*time.Minute),
		PollMinInterval: p.getDuration("PORTAL_POLL_MIN_INTERVAL", 30*time.Second),
		PollTimeout:     p.getDuration("PORTAL_POLL_TIMEOUT", 2*time.Minute),

		MIMEMaxDepth: p.getInt("PORTAL_MIME_MAX_DEPTH", 32),
		MIMEMaxParts: p.getInt("PORTAL_MIME_MAX_PARTS", 256),

		AttachmentBackend: strings.ToLower(getEnvOrDefault("PORTAL_ATTACHMENT_BACKEND", AttachmentBackendFile)),
		AttachmentDir:     getEnvOrDefault("PORTAL_ATTACHMENT_DIR", "uploads/email_attachments"),
		AttachmentBaseURL: getEnvOrDefault("PORTAL_ATTACHMENT_BASE_URL", "/uploads/email_attachments"),

		S3Endpoint:  os.Getenv("PORTAL_S3_ENDPOINT"),
		S3AccessKey: os.Getenv("PORTAL_S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("PORTAL_S3_SECRET_KEY"),
		S3Bucket:    getEnvOrDefault("PORTAL_S3_BUCKET", "email-attachments"),
		S3UseSSL:    p.getBool("PORTAL_S3_USE_SSL", true),

		RedisAddr: os.Getenv("PORTAL_REDIS_ADDR"),
	}

	if p.err != nil {
		return nil, p.err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	if c.DBPassword == "" {
		return fmt.Errorf("PORTAL_DB_PASSWORD is required")
	}

	switch c.AttachmentBackend {
	case AttachmentBackendFile:
		if c.AttachmentDir == "" {
			return fmt.Errorf("PORTAL_ATTACHMENT_DIR is required for the file backend")
		}
	case AttachmentBackendS3:
		if c.S3Endpoint == "" || c.S3AccessKey == "" || c.S3SecretKey == "" {
			return fmt.Errorf("PORTAL_S3_ENDPOINT, PORTAL_S3_ACCESS_KEY and PORTAL_S3_SECRET_KEY are required for the s3 backend")
		}
	default:
		return fmt.Errorf("PORTAL_ATTACHMENT_BACKEND must be %q or %q, got %q", AttachmentBackendFile, AttachmentBackendS3, c.AttachmentBackend)
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("PORTAL_POLL_INTERVAL must be positive")
	}

	if c.MIMEMaxDepth <= 0 || c.MIMEMaxParts <= 0 {
		return fmt.Errorf("PORTAL_MIME_MAX_DEPTH and PORTAL_MIME_MAX_PARTS must be positive")
	}

	return nil
}

func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUsername,
		c.DBPassword,
		c.DBHost,
		c.DBPort,
		c.DBName,
		c.DBSSLMode,
	)
}

// IMAPServer returns host:port, defaulting the port from the TLS setting.
func (c *Config) IMAPServer() string {
	if c.IMAPHost == "" || strings.Contains(c.IMAPHost, ":") {
		return c.IMAPHost
	}
	if c.IMAPTLS {
		return c.IMAPHost + ":993"
	}
	return c.IMAPHost + ":143"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parser reads typed variables and keeps the first error.
type parser struct {
	err error
}

func (p *parser) getDuration(key string, def time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("%s must be a duration like 30s or 5m: %w", key, err)
	}
	return d
}

func (p *parser) getInt(key string, def int) int {
	value := os.Getenv(key)
	if value == "" {
		return def
	}
	n, err := strconv.Atoi(value)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n
}

func (p *parser) getBool(key string, def bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return def
	}
	b, err := strconv.ParseBool(value)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("%s must be true or false: %w", key, err)
	}
	return b
}
