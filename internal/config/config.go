package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/robfig/cron/v3"
	"golang.org/x/text/language"

	"github.com/driptext/driptext/internal/textseg"
)

// Config holds all application configuration, read from environment
// variables with sensible defaults.
//
// Environment Variables:
// Email (SMTP) delivery:
// - EMAIL_HOST: SMTP host (required for the email channel)
// - EMAIL_PORT: SMTP port (default: 587)
// - EMAIL_USERNAME / EMAIL_PASSWORD: SMTP credentials
// - EMAIL_FROM: sender address (default: EMAIL_USERNAME)
// - REPLY_TO_EMAIL: mailbox translations are sent back to
//
// SMS delivery:
// - SMS_BASE_URL: Twilio-compatible gateway base URL
// - SMS_ACCOUNT_SID / SMS_AUTH_TOKEN: gateway credentials
// - SMS_FROM_NUMBER: sending number
//
// Dispatch:
// - CRON_EXPR: dispatch schedule (default: "0 8 * * *", daily at 8 AM)
// - PORTIONS_PER_CYCLE: portions sent per assignment per cycle (default: 1)
//
// Segmentation defaults (per-text overrides via the API):
// - SEGMENT_MAX_UNITS: portion size budget (default: 200)
// - SEGMENT_UNIT: "chars" or "words" (default: "chars")
// - SEGMENT_SENTENCE_ALIGNED: keep sentences whole (default: true)
//
// System:
// - HTTP_ADDR: API listen address (default: ":8080")
// - DB_PATH: sqlite database path (default: "data/driptext.db")
// - DATA_DIR: directory registered text files are read from (default: "data/texts")
// - OUTPUT_DIR: directory exports are written to (default: "data/translated")
// - TARGET_LANG: default target language (default: "es")
// - LOG_LEVEL: debug|info|warn|error (default: "info")
type Config struct {
	Email    EmailConfig    `json:"email"`
	SMS      SMSConfig      `json:"sms"`
	Dispatch DispatchConfig `json:"dispatch"`
	Segment  SegmentConfig  `json:"segment"`
	System   SystemConfig   `json:"system"`
}

type EmailConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
	ReplyTo  string `json:"reply_to"`
}

// Enabled reports whether the email channel is configured.
func (c EmailConfig) Enabled() bool {
	return c.Host != ""
}

type SMSConfig struct {
	BaseURL    string `json:"base_url"`
	AccountSID string `json:"account_sid"`
	AuthToken  string `json:"auth_token"`
	FromNumber string `json:"from_number"`
}

// Enabled reports whether the SMS channel is configured.
func (c SMSConfig) Enabled() bool {
	return c.BaseURL != "" && c.AccountSID != ""
}

type DispatchConfig struct {
	CronExpr         string `json:"cron_expr"`
	PortionsPerCycle int    `json:"portions_per_cycle"`
}

type SegmentConfig struct {
	MaxUnits        int    `json:"max_units"`
	Unit            string `json:"unit"`
	SentenceAligned bool   `json:"sentence_aligned"`
}

// Policy converts the configured defaults into a segmentation policy.
func (c SegmentConfig) Policy() textseg.Policy {
	return textseg.Policy{
		MaxUnits:        c.MaxUnits,
		Unit:            textseg.Unit(c.Unit),
		SentenceAligned: c.SentenceAligned,
	}
}

type SystemConfig struct {
	HTTPAddr   string       `json:"http_addr"`
	DBPath     string       `json:"db_path"`
	DataDir    string       `json:"data_dir"`
	OutputDir  string       `json:"output_dir"`
	TargetLang language.Tag `json:"target_lang"`
	LogLevel   string       `json:"log_level"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// New creates a Config from environment variables and options.
func New(opts ...Option) (*Config, error) {
	username := getEnvString("EMAIL_USERNAME", "")
	config := &Config{
		Email: EmailConfig{
			Host:     getEnvString("EMAIL_HOST", ""),
			Port:     getEnvInt("EMAIL_PORT", 587),
			Username: username,
			Password: getEnvString("EMAIL_PASSWORD", ""),
			From:     getEnvString("EMAIL_FROM", username),
			ReplyTo:  getEnvString("REPLY_TO_EMAIL", ""),
		},
		SMS: SMSConfig{
			BaseURL:    getEnvString("SMS_BASE_URL", ""),
			AccountSID: getEnvString("SMS_ACCOUNT_SID", ""),
			AuthToken:  getEnvString("SMS_AUTH_TOKEN", ""),
			FromNumber: getEnvString("SMS_FROM_NUMBER", ""),
		},
		Dispatch: DispatchConfig{
			CronExpr:         getEnvString("CRON_EXPR", "0 8 * * *"),
			PortionsPerCycle: getEnvInt("PORTIONS_PER_CYCLE", 1),
		},
		Segment: SegmentConfig{
			MaxUnits:        getEnvInt("SEGMENT_MAX_UNITS", 200),
			Unit:            getEnvString("SEGMENT_UNIT", string(textseg.UnitChars)),
			SentenceAligned: getEnvBool("SEGMENT_SENTENCE_ALIGNED", true),
		},
		System: SystemConfig{
			HTTPAddr:  getEnvString("HTTP_ADDR", ":8080"),
			DBPath:    getEnvString("DB_PATH", "data/driptext.db"),
			DataDir:   getEnvString("DATA_DIR", "data/texts"),
			OutputDir: getEnvString("OUTPUT_DIR", "data/translated"),
			LogLevel:  getEnvString("LOG_LEVEL", "info"),
		},
	}

	target := getEnvString("TARGET_LANG", "es")
	tag, err := language.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid TARGET_LANG %q: %w", target, err)
	}
	config.System.TargetLang = tag

	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	if _, err := cron.ParseStandard(c.Dispatch.CronExpr); err != nil {
		return fmt.Errorf("invalid CRON_EXPR: %w", err)
	}
	if c.Dispatch.PortionsPerCycle < 1 {
		return fmt.Errorf("PORTIONS_PER_CYCLE must be >= 1")
	}
	if err := c.Segment.Policy().Validate(); err != nil {
		return fmt.Errorf("invalid segmentation defaults: %w", err)
	}
	if !c.Email.Enabled() && !c.SMS.Enabled() {
		return fmt.Errorf("no delivery channel configured: set EMAIL_HOST or SMS_BASE_URL")
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean value from environment variables with default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
