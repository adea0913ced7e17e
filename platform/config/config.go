// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// MigrationConfig controls start-up schema migrations.
type MigrationConfig interface {
	GetMigrationsEnabled() bool
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
	GetRateLimitPerSecond() float64
	GetRateLimitBurst() int
}

// SchedulerConfig provides Redis and asynq settings.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// ReminderConfig tunes the reminder pass.
type ReminderConfig interface {
	GetReminderPassInterval() time.Duration
	GetReminderSendTimeout() time.Duration
	GetReminderPassConcurrency() int
}

// EmailConfig provides SMTP settings for the email reminder channel.
type EmailConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	IsEmailEnabled() bool
}

// WhatsAppConfig provides settings for the WhatsApp gateway.
type WhatsAppConfig interface {
	GetWhatsAppURL() string
	GetWhatsAppKey() string
	GetWhatsAppDeviceID() string
}

// PhoneConfig provides the region used to parse national phone numbers.
type PhoneConfig interface {
	GetPhoneDefaultRegion() string
}

// ClassifierConfig points at an optional lexicon override file.
type ClassifierConfig interface {
	GetClassifierLexiconPath() string
}

// RealtimeConfig names the Redis channel used to relay realtime events between processes.
type RealtimeConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetRealtimeChannel() string
}

// LocaleConfig provides the zone used to read and render wall-clock times.
type LocaleConfig interface {
	GetLocation() *time.Location
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                     string
	HTTPAddr                string
	DatabaseURL             string
	MigrationsEnabled       bool
	JWTAccessSecret         string
	CORSAllowAll            bool
	CORSOrigins             []string
	CORSAllowCreds          bool
	RateLimitPerSecond      float64
	RateLimitBurst          int
	RedisURL                string
	RedisTLSInsecure        bool
	AsynqQueueName          string
	AsynqConcurrency        int
	ReminderPassInterval    time.Duration
	ReminderSendTimeout     time.Duration
	ReminderPassConcurrency int
	SMTPHost                string
	SMTPPort                int
	SMTPUsername            string
	SMTPPassword            string
	EmailFromName           string
	EmailFromAddress        string
	WhatsAppURL             string
	WhatsAppKey             string
	WhatsAppDeviceID        string
	PhoneDefaultRegion      string
	ClassifierLexiconPath   string
	RealtimeChannel         string
	Location                *time.Location
}

// =============================================================================
// Interface Implementations
// =============================================================================

func (c *Config) GetDatabaseURL() string     { return c.DatabaseURL }
func (c *Config) GetMigrationsEnabled() bool { return c.MigrationsEnabled }
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

func (c *Config) GetHTTPAddr() string            { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool          { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string       { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool        { return c.CORSAllowCreds }
func (c *Config) GetRateLimitPerSecond() float64 { return c.RateLimitPerSecond }
func (c *Config) GetRateLimitBurst() int         { return c.RateLimitBurst }

func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

func (c *Config) GetReminderPassInterval() time.Duration { return c.ReminderPassInterval }
func (c *Config) GetReminderSendTimeout() time.Duration  { return c.ReminderSendTimeout }
func (c *Config) GetReminderPassConcurrency() int        { return c.ReminderPassConcurrency }

func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) IsEmailEnabled() bool        { return c.SMTPHost != "" && c.EmailFromAddress != "" }

func (c *Config) GetWhatsAppURL() string      { return c.WhatsAppURL }
func (c *Config) GetWhatsAppKey() string      { return c.WhatsAppKey }
func (c *Config) GetWhatsAppDeviceID() string { return c.WhatsAppDeviceID }

func (c *Config) GetPhoneDefaultRegion() string    { return c.PhoneDefaultRegion }
func (c *Config) GetClassifierLexiconPath() string { return c.ClassifierLexiconPath }
func (c *Config) GetRealtimeChannel() string       { return c.RealtimeChannel }
func (c *Config) GetLocation() *time.Location      { return c.Location }

// Load reads configuration from environment variables, after loading a .env
// file when one is present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                     getEnv("APP_ENV", "development"),
		HTTPAddr:                getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:             getEnv("DATABASE_URL", ""),
		MigrationsEnabled:       strings.EqualFold(getEnv("MIGRATIONS_ENABLED", "true"), "true"),
		JWTAccessSecret:         getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:            corsAllowAll,
		CORSOrigins:             corsOrigins,
		CORSAllowCreds:          strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		RateLimitPerSecond:      mustFloat(getEnv("RATE_LIMIT_PER_SECOND", "20")),
		RateLimitBurst:          mustInt(getEnv("RATE_LIMIT_BURST", "40")),
		RedisURL:                getEnv("REDIS_URL", ""),
		RedisTLSInsecure:        strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:          getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:        mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		ReminderPassInterval:    mustDuration(getEnv("REMINDER_PASS_INTERVAL", "5m")),
		ReminderSendTimeout:     mustDuration(getEnv("REMINDER_SEND_TIMEOUT", "10s")),
		ReminderPassConcurrency: mustInt(getEnv("REMINDER_PASS_CONCURRENCY", "8")),
		SMTPHost:                getEnv("SMTP_HOST", ""),
		SMTPPort:                mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:            getEnv("SMTP_USERNAME", ""),
		SMTPPassword:            getEnv("SMTP_PASSWORD", ""),
		EmailFromName:           getEnv("EMAIL_FROM_NAME", "Agenda"),
		EmailFromAddress:        getEnv("EMAIL_FROM_ADDRESS", ""),
		WhatsAppURL:             getEnv("WHATSAPP_URL", ""),
		WhatsAppKey:             getEnv("WHATSAPP_KEY", ""),
		WhatsAppDeviceID:        getEnv("WHATSAPP_DEVICE_ID", ""),
		PhoneDefaultRegion:      getEnv("PHONE_DEFAULT_REGION", "BR"),
		ClassifierLexiconPath:   getEnv("CLASSIFIER_LEXICON_PATH", ""),
		RealtimeChannel:         getEnv("REALTIME_CHANNEL", "engagement:realtime"),
	}

	loc, err := time.LoadLocation(getEnv("APP_TIMEZONE", "America/Sao_Paulo"))
	if err != nil {
		return nil, fmt.Errorf("APP_TIMEZONE: %w", err)
	}
	cfg.Location = loc

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.ReminderPassInterval <= 0 {
		return nil, fmt.Errorf("REMINDER_PASS_INTERVAL must be a positive duration")
	}
	// A pass slower than the 2h offset could skip the second reminder entirely.
	if cfg.ReminderPassInterval >= 2*time.Hour {
		return nil, fmt.Errorf("REMINDER_PASS_INTERVAL must be shorter than 2h")
	}
	if cfg.ReminderSendTimeout <= 0 {
		cfg.ReminderSendTimeout = 10 * time.Second
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
