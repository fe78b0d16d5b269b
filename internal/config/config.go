package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config is the configuration of the web frontend.
type Config struct {
	// HTTP server
	Port     string
	LogLevel string

	// Upstreams
	BackendURL      string
	MLURL           string
	UpstreamTimeout time.Duration

	// Circuit breaker, per upstream
	BreakerFailures    int
	BreakerOpenTimeout time.Duration

	// Visitor sessions
	SessionTTL      time.Duration
	MaxVisitors     int
	CleanupInterval time.Duration
	SecureCookies   bool

	// Requests per minute per client IP
	RateLimit int
}

// AMQPConfig locates the notification exchange. An empty URL disables AMQP.
type AMQPConfig struct {
	URL      string
	Exchange string
	Queue    string
}

// DevAPIConfig is the configuration of the development backend.
type DevAPIConfig struct {
	Port         string
	LogLevel     string
	SQLiteDBPath string
	PinTTL       time.Duration
	SessionTTL   time.Duration
	// FrontendURL prefixes the links sent in notifications.
	FrontendURL  string
	AMQP         AMQPConfig
}

// MailerConfig is the configuration of the notification mailer.
type MailerConfig struct {
	LogLevel string
	From     string
	// OutboxDir receives one .eml file per delivered mail when set.
	OutboxDir string
	AMQP      AMQPConfig
}

func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		BackendURL:      getEnv("BACKEND_URL", "http://localhost:8090"),
		MLURL:           getEnv("ML_URL", "http://localhost:5000"),
		UpstreamTimeout: getEnvDuration("UPSTREAM_TIMEOUT", 10*time.Second),

		BreakerFailures:    getEnvInt("BREAKER_FAILURES", 5),
		BreakerOpenTimeout: getEnvDuration("BREAKER_OPEN_TIMEOUT", 30*time.Second),

		SessionTTL:      getEnvDuration("SESSION_TTL", 30*time.Minute),
		MaxVisitors:     getEnvInt("MAX_VISITORS", 10000),
		CleanupInterval: getEnvDuration("SESSION_CLEANUP_INTERVAL", time.Minute),
		SecureCookies:   getEnvBool("SECURE_COOKIES", false),

		RateLimit: getEnvInt("RATE_LIMIT", 120),
	}
}

func LoadAMQP() AMQPConfig {
	return AMQPConfig{
		URL:      getEnv("AMQP_URL", ""),
		Exchange: getEnv("AMQP_EXCHANGE", "portfel"),
		Queue:    getEnv("AMQP_QUEUE", "notifications"),
	}
}

func LoadDevAPI() *DevAPIConfig {
	return &DevAPIConfig{
		Port:         getEnv("DEVAPI_PORT", "8090"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/portfel.db"),
		PinTTL:       getEnvDuration("PIN_TTL", 24*time.Hour),
		SessionTTL:   getEnvDuration("DEVAPI_SESSION_TTL", 12*time.Hour),
		FrontendURL:  getEnv("FRONTEND_URL", "http://localhost:8080"),
		AMQP:         LoadAMQP(),
	}
}

// Validate validates the configuration and returns an error if invalid
func LoadMailer() *MailerConfig {
	return &MailerConfig{
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		From:      getEnv("MAIL_FROM", "portfel@localhost"),
		OutboxDir: getEnv("MAIL_OUTBOX_DIR", ""),
		AMQP:      LoadAMQP(),
	}
}

func (c *Config) Validate() error {
	var errs []string

	errs = append(errs, validatePort(c.Port)...)
	errs = append(errs, validateHTTPURL("backend URL", c.BackendURL)...)
	errs = append(errs, validateHTTPURL("ML service URL", c.MLURL)...)

	if c.UpstreamTimeout < 100*time.Millisecond || c.UpstreamTimeout > 5*time.Minute {
		errs = append(errs, fmt.Sprintf("invalid upstream timeout %v: must be between 100ms and 5m", c.UpstreamTimeout))
	}
	if c.BreakerFailures < 1 {
		errs = append(errs, fmt.Sprintf("invalid breaker failure threshold %d: must be at least 1", c.BreakerFailures))
	}
	if c.BreakerOpenTimeout < time.Second {
		errs = append(errs, fmt.Sprintf("invalid breaker open timeout %v: must be at least 1 second", c.BreakerOpenTimeout))
	}
	if c.SessionTTL < time.Minute {
		errs = append(errs, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}
	if c.MaxVisitors < 1 {
		errs = append(errs, fmt.Sprintf("invalid max visitors %d: must be at least 1", c.MaxVisitors))
	}
	if c.CleanupInterval < time.Second {
		errs = append(errs, fmt.Sprintf("invalid session cleanup interval %v: must be at least 1 second", c.CleanupInterval))
	}
	if c.RateLimit < 1 {
		errs = append(errs, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimit))
	}

	return combine(errs)
}

// Validate checks the development backend configuration. A missing SQLite
// directory is created.
func (c *DevAPIConfig) Validate() error {
	var errs []string

	errs = append(errs, validatePort(c.Port)...)

	if c.SQLiteDBPath == "" {
		errs = append(errs, "SQLite database path cannot be empty")
	} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
			}
		}
	}
	if c.PinTTL < time.Minute {
		errs = append(errs, fmt.Sprintf("invalid pin TTL %v: must be at least 1 minute", c.PinTTL))
	}
	if c.SessionTTL < time.Minute {
		errs = append(errs, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}
	errs = append(errs, validateHTTPURL("frontend URL", c.FrontendURL)...)
	errs = append(errs, c.AMQP.problems()...)

	return combine(errs)
}

// Validate checks the AMQP settings; the URL is required.
func (c *MailerConfig) Validate() error {
	var errs []string
	if !c.AMQP.Enabled() {
		errs = append(errs, "AMQP URL is required by the mailer")
	}
	errs = append(errs, c.AMQP.problems()...)
	if c.From == "" {
		errs = append(errs, "mail sender cannot be empty")
	}
	if c.OutboxDir != "" {
		if err := os.MkdirAll(c.OutboxDir, 0o755); err != nil {
			errs = append(errs, fmt.Sprintf("cannot create outbox directory '%s': %v", c.OutboxDir, err))
		}
	}
	return combine(errs)
}

func (c AMQPConfig) Validate() error {
	if c.URL == "" {
		return combine([]string{"AMQP URL is required"})
	}
	return combine(c.problems())
}

// Enabled reports whether a broker is configured.
func (c AMQPConfig) Enabled() bool {
	return c.URL != ""
}

func (c AMQPConfig) problems() []string {
	if c.URL == "" {
		return nil
	}
	var errs []string
	if parsed, err := url.Parse(c.URL); err != nil {
		errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.URL, err))
	} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
		errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
	}
	if c.Exchange == "" {
		errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
	}
	if c.Queue == "" {
		errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
	}
	return errs
}

func validatePort(p string) []string {
	port, err := strconv.Atoi(p)
	if err != nil {
		return []string{fmt.Sprintf("invalid port '%s': must be a number", p)}
	}
	if port < 1 || port > 65535 {
		return []string{fmt.Sprintf("invalid port %d: must be between 1 and 65535", port)}
	}
	return nil
}

func validateHTTPURL(name, raw string) []string {
	if raw == "" {
		return []string{name + " cannot be empty"}
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return []string{fmt.Sprintf("invalid %s '%s': %v", name, raw, err)}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return []string{fmt.Sprintf("invalid %s scheme '%s': must be 'http' or 'https'", name, parsed.Scheme)}
	}
	if parsed.Host == "" {
		return []string{fmt.Sprintf("invalid %s '%s': missing host", name, raw)}
	}
	return nil
}

func combine(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
