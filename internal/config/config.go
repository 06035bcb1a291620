// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes settings for the
// HTTP server, the messaging platform and generation clients, the
// subscription store, reply localization, and observability.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"golang.org/x/text/language"
)

// LineConfig holds messaging platform credentials and client tuning.
type LineConfig struct {
	ChannelSecret      string        `envconfig:"CHANNEL_SECRET"`       // LINE_CHANNEL_SECRET (signature check)
	ChannelAccessToken string        `envconfig:"CHANNEL_ACCESS_TOKEN"` // LINE_CHANNEL_ACCESS_TOKEN
	APIBase            string        `envconfig:"API_BASE" default:"https://api.line.me"`
	DataBase           string        `envconfig:"DATA_BASE" default:"https://api-data.line.me"`
	Timeout            time.Duration `envconfig:"TIMEOUT" default:"10s"`
	RPS                float64       `envconfig:"API_RPS" default:"100"`
	Burst              int           `envconfig:"API_BURST" default:"20"`
}

// GenerationConfig holds the chat-completions endpoint settings.
type GenerationConfig struct {
	BaseURL     string        `envconfig:"BASE_URL" default:"https://api.openai.com/v1"`
	APIKey      string        `envconfig:"API_KEY"`
	TextModel   string        `envconfig:"TEXT_MODEL" default:"gpt-4o-mini"`
	VisionModel string        `envconfig:"VISION_MODEL" default:"gpt-4o"`
	Timeout     time.Duration `envconfig:"TIMEOUT" default:"45s"`
	MaxRetries  int           `envconfig:"MAX_RETRIES" default:"2"`
}

// StoreConfig selects and configures the subscription store.
type StoreConfig struct {
	Backend  string `envconfig:"BACKEND" default:"redis"` // STORE_BACKEND: redis|sqlite
	RedisURL string `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	DBPath   string `envconfig:"DB_PATH" default:"coachbot.db"`
}

// CORSConfig defines Cross-Origin Resource Sharing settings for the admin API.
type CORSConfig struct {
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS"`
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool          `envconfig:"ENABLE_HSTS" default:"false"`
	HSTSMaxAge time.Duration `envconfig:"HSTS_MAX_AGE" default:"4320h"`
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    `envconfig:"ENABLED" default:"false"`                       // OTEL_ENABLED
	Endpoint    string  `envconfig:"EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"` // OTEL_EXPORTER_OTLP_ENDPOINT
	Insecure    bool    `envconfig:"EXPORTER_OTLP_INSECURE" default:"true"`
	ServiceName string  `envconfig:"SERVICE_NAME" default:"go-coach-bot"`
	SampleRatio float64 `envconfig:"TRACES_SAMPLER_ARG" default:"1.0"`
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        `envconfig:"PORT" default:"8080"`
	ReadTimeout       time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"10s"`
	WriteTimeout      time.Duration `envconfig:"WRITE_TIMEOUT" default:"70s"` // must outlive DispatchTimeout
	IdleTimeout       time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes    int           `envconfig:"MAX_HEADER_BYTES" default:"1048576"`
	MaxBodyBytes      int64         `envconfig:"MAX_BODY_BYTES" default:"1048576"`
	GinMode           string        `envconfig:"GIN_MODE" default:"release"`

	// Logging
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty bool   `envconfig:"LOG_PRETTY" default:"false"`

	// Pipeline
	DispatchTimeout    time.Duration `envconfig:"DISPATCH_TIMEOUT" default:"55s"`
	WindowDays         int           `envconfig:"ENTITLEMENT_WINDOW_DAYS" default:"30"`
	OrderCodeMinDigits int           `envconfig:"ORDER_CODE_MIN_DIGITS" default:"9"`
	OrderCodeMaxDigits int           `envconfig:"ORDER_CODE_MAX_DIGITS" default:"10"`
	MealKeywords       []string      `envconfig:"MEAL_KEYWORDS"` // empty → built-in vocabulary
	RedeliveryTTL      time.Duration `envconfig:"REDELIVERY_TTL" default:"24h"`
	MaxImageBytes      int64         `envconfig:"MAX_IMAGE_BYTES" default:"10485760"`
	PromptsDir         string        `envconfig:"PROMPTS_DIR"`
	ReplyLocale        string        `envconfig:"REPLY_LOCALE" default:"zh-TW"`
	ReplyTimezone      string        `envconfig:"REPLY_TIMEZONE" default:"Asia/Taipei"`

	// Admin surface
	AdminToken string `envconfig:"ADMIN_TOKEN"`

	Line       LineConfig       `envconfig:"LINE"`
	Generation GenerationConfig `envconfig:"GEN"`
	Store      StoreConfig      `envconfig:"STORE"`
	CORS       CORSConfig       `envconfig:"CORS"`
	Security   SecurityConfig   `envconfig:"SECURITY"`
	OTEL       OTELConfig       `envconfig:"OTEL"`

	// Derived during Load.
	Locale   language.Tag   `ignored:"true"`
	Location *time.Location `ignored:"true"`
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}

	// --- normalization ---
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	cfg.GinMode = strings.ToLower(strings.TrimSpace(cfg.GinMode))
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	cfg.MealKeywords = trimAll(cfg.MealKeywords)
	cfg.CORS.AllowedOrigins = trimAll(cfg.CORS.AllowedOrigins)
	cfg.Line.APIBase = strings.TrimRight(cfg.Line.APIBase, "/")
	cfg.Line.DataBase = strings.TrimRight(cfg.Line.DataBase, "/")
	cfg.Generation.BaseURL = strings.TrimRight(cfg.Generation.BaseURL, "/")

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if cfg.MaxBodyBytes <= 0 {
		return cfg, errors.New("MAX_BODY_BYTES must be > 0")
	}
	if cfg.DispatchTimeout <= 0 {
		return cfg, errors.New("DISPATCH_TIMEOUT must be > 0")
	}
	// The ack is written after dispatch settles; a shorter write deadline
	// drops it and the platform redelivers.
	if cfg.DispatchTimeout >= cfg.WriteTimeout {
		return cfg, errors.New("DISPATCH_TIMEOUT must be shorter than WRITE_TIMEOUT")
	}
	if cfg.WindowDays < 1 {
		return cfg, errors.New("ENTITLEMENT_WINDOW_DAYS must be >= 1")
	}
	if cfg.OrderCodeMinDigits < 1 || cfg.OrderCodeMaxDigits > 20 || cfg.OrderCodeMinDigits > cfg.OrderCodeMaxDigits {
		return cfg, errors.New("ORDER_CODE_MIN_DIGITS/ORDER_CODE_MAX_DIGITS must satisfy 1 <= min <= max <= 20")
	}
	if cfg.RedeliveryTTL <= 0 {
		return cfg, errors.New("REDELIVERY_TTL must be > 0")
	}
	if cfg.MaxImageBytes <= 0 {
		return cfg, errors.New("MAX_IMAGE_BYTES must be > 0")
	}
	switch cfg.Store.Backend {
	case "redis":
		if strings.TrimSpace(cfg.Store.RedisURL) == "" {
			return cfg, errors.New("STORE_REDIS_URL must not be empty")
		}
	case "sqlite":
		if strings.TrimSpace(cfg.Store.DBPath) == "" {
			return cfg, errors.New("STORE_DB_PATH must not be empty")
		}
	default:
		return cfg, errors.New("STORE_BACKEND must be one of: redis, sqlite")
	}
	if cfg.Line.RPS <= 0 || cfg.Line.Burst < 1 {
		return cfg, errors.New("LINE_API_RPS must be > 0 and LINE_API_BURST >= 1")
	}
	if cfg.Line.Timeout <= 0 || cfg.Generation.Timeout <= 0 {
		return cfg, errors.New("client timeouts must be positive durations")
	}
	if cfg.Generation.MaxRetries < 0 {
		return cfg, errors.New("GEN_MAX_RETRIES must be >= 0")
	}
	if strings.TrimSpace(cfg.Generation.TextModel) == "" || strings.TrimSpace(cfg.Generation.VisionModel) == "" {
		return cfg, errors.New("GEN_TEXT_MODEL and GEN_VISION_MODEL must not be empty")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	tag, err := language.Parse(cfg.ReplyLocale)
	if err != nil {
		return cfg, fmt.Errorf("REPLY_LOCALE: %w", err)
	}
	cfg.Locale = tag

	loc, err := time.LoadLocation(cfg.ReplyTimezone)
	if err != nil {
		return cfg, fmt.Errorf("REPLY_TIMEZONE: %w", err)
	}
	cfg.Location = loc

	return cfg, nil
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string { return ":" + c.Port }

// trimAll trims entries and drops empty ones.
func trimAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, p := range in {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
