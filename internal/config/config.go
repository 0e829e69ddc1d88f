package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName         = "AgriHub"
	defaultAppEnv          = "development"
	defaultPort            = "5000"
	defaultLogLevel        = "info"
	defaultMongoDB         = "agrihubdata"
	defaultFrontendURL     = "http://localhost:3000"
	defaultSessionSecret   = "agrihub-dev-secret"
	defaultSessionCookie   = "connect.sid"
	defaultSessionSameSite = "Lax"
	defaultSessionTTL      = 24 * time.Hour
	defaultOTPTTL          = 5 * time.Minute
	defaultOTPMaxAttempts  = 5
	defaultOTPRateLimit    = "5-M"
	defaultSMSCountryCode  = "+91"
	defaultSweepInterval   = time.Minute
	defaultShutdownDelay   = 10 * time.Second
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName     string
	AppEnv      string
	Port        string
	LogLevel    string
	MongoURI    string
	MongoDB     string
	DatabaseURL string
	RedisURL    string
	FrontendURL string

	SessionSecret   string
	SessionCookie   string
	SessionSameSite string
	SessionTTL      time.Duration

	OTPTTL         time.Duration
	OTPMaxAttempts int
	OTPRateLimit   string

	SMSCountryCode    string
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioPhoneNumber string

	SweepInterval  time.Duration
	ShutdownPeriod time.Duration
}

// Load reads configuration values from the environment and populates a Config
// instance. A .env file in the working directory is applied first when present;
// variables already set in the process environment win.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		AppName:           getEnv("APP_NAME", defaultAppName),
		AppEnv:            strings.ToLower(getEnv("APP_ENV", getEnv("NODE_ENV", defaultAppEnv))),
		Port:              getEnv("PORT", defaultPort),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		MongoURI:          os.Getenv("MONGO_URI"),
		MongoDB:           getEnv("MONGO_DB", defaultMongoDB),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		FrontendURL:       getEnv("FRONTEND_URL", defaultFrontendURL),
		SessionSecret:     getEnv("SESSION_SECRET", defaultSessionSecret),
		SessionCookie:     getEnv("SESSION_COOKIE_NAME", defaultSessionCookie),
		SessionSameSite:   getEnv("SESSION_SAMESITE", defaultSessionSameSite),
		OTPRateLimit:      getEnv("OTP_RATE_LIMIT", defaultOTPRateLimit),
		SMSCountryCode:    getEnv("SMS_COUNTRY_CODE", defaultSMSCountryCode),
		TwilioAccountSID:  os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:   os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioPhoneNumber: os.Getenv("TWILIO_PHONE_NUMBER"),
		OTPMaxAttempts:    defaultOTPMaxAttempts,
	}

	var err error
	if cfg.SessionTTL, err = durationEnv("SESSION_TTL", defaultSessionTTL); err != nil {
		return Config{}, err
	}
	if cfg.OTPTTL, err = durationEnv("OTP_TTL", defaultOTPTTL); err != nil {
		return Config{}, err
	}
	if cfg.SweepInterval, err = durationEnv("SWEEP_INTERVAL", defaultSweepInterval); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownPeriod, err = durationEnv("SHUTDOWN_TIMEOUT", defaultShutdownDelay); err != nil {
		return Config{}, err
	}

	if v := os.Getenv("OTP_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid OTP_MAX_ATTEMPTS: %q", v)
		}
		cfg.OTPMaxAttempts = n
	}

	if !cfg.IsDevelopment() {
		if cfg.MongoURI == "" && cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("MONGO_URI or DATABASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.SessionSecret == defaultSessionSecret {
			return Config{}, fmt.Errorf("SESSION_SECRET must be set when APP_ENV=%s", cfg.AppEnv)
		}
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDevelopment reports whether the service runs in a local/dev environment.
func (c Config) IsDevelopment() bool {
	switch c.AppEnv {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// IsProduction reports whether cookies must be marked secure.
func (c Config) IsProduction() bool {
	return c.AppEnv == "production" || c.AppEnv == "prod"
}

// TwilioEnabled reports whether SMS delivery credentials are configured.
func (c Config) TwilioEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioPhoneNumber != ""
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// durationEnv accepts either a bare number of seconds or a Go duration string.
func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	if seconds, err := strconv.Atoi(v); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
