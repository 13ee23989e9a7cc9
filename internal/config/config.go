// Package config loads process settings from .env, an optional YAML file
// and the environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	AuthModeClerk = "clerk"
	AuthModeLocal = "local"
)

type S3 struct {
	Bucket        string `yaml:"bucket"`
	Region        string `yaml:"region"`
	Endpoint      string `yaml:"endpoint"`
	PublicBaseURL string `yaml:"public_base_url"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
}

type Config struct {
	DatabaseURL string `yaml:"database_url"`
	Port        string `yaml:"port"`

	AuthMode           string `yaml:"auth_mode"`
	ClerkSecretKey     string `yaml:"clerk_secret_key"`
	ClerkWebhookSecret string `yaml:"clerk_webhook_secret"`
	LocalJWTSecret     string `yaml:"local_jwt_secret"`

	FCMServiceAccountJSON string `yaml:"fcm_service_account_json"`
	FCMCredentialsFile    string `yaml:"fcm_credentials_file"`

	S3 S3 `yaml:"s3"`

	DefaultTimezone string `yaml:"default_timezone"`

	MetricsUser string `yaml:"metrics_user"`
	MetricsPass string `yaml:"metrics_pass"`
	PprofSecret string `yaml:"pprof_secret"`

	// TrustedProxies lists the load balancer addresses (IP or CIDR) whose
	// X-Forwarded-For header is believed. Empty means none.
	TrustedProxies []string `yaml:"trusted_proxies"`

	CapsuleReadyInterval time.Duration `yaml:"capsule_ready_interval"`
}

func defaults() *Config {
	return &Config{
		Port:                 "3333",
		AuthMode:             AuthModeClerk,
		FCMCredentialsFile:   "./serviceAccountKey.json",
		DefaultTimezone:      "UTC",
		CapsuleReadyInterval: time.Minute,
	}
}

// Load reads .env (if present), the YAML file named by TIMINK_CONFIG (if
// set) and then the environment. It does not validate.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := defaults()

	if path := os.Getenv("TIMINK_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("DATABASE_URL", &c.DatabaseURL)
	str("PORT", &c.Port)
	str("AUTH_MODE", &c.AuthMode)
	str("CLERK_SECRET_KEY", &c.ClerkSecretKey)
	str("CLERK_WEBHOOK_SECRET", &c.ClerkWebhookSecret)
	str("LOCAL_JWT_SECRET", &c.LocalJWTSecret)
	str("FCM_SERVICE_ACCOUNT_JSON", &c.FCMServiceAccountJSON)
	str("FCM_CREDENTIALS_FILE", &c.FCMCredentialsFile)
	str("S3_BUCKET", &c.S3.Bucket)
	str("S3_REGION", &c.S3.Region)
	str("S3_ENDPOINT", &c.S3.Endpoint)
	str("S3_PUBLIC_BASE_URL", &c.S3.PublicBaseURL)
	str("S3_ACCESS_KEY", &c.S3.AccessKey)
	str("S3_SECRET_KEY", &c.S3.SecretKey)
	str("DEFAULT_TIMEZONE", &c.DefaultTimezone)
	str("METRICS_USER", &c.MetricsUser)
	str("METRICS_PASS", &c.MetricsPass)
	str("PPROF_SECRET", &c.PprofSecret)

	if v, ok := lookup("TRUSTED_PROXIES"); ok && v != "" {
		c.TrustedProxies = nil
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				c.TrustedProxies = append(c.TrustedProxies, p)
			}
		}
	}

	if v, ok := lookup("CAPSULE_READY_INTERVAL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid CAPSULE_READY_INTERVAL %q: %w", v, err)
		}
		c.CapsuleReadyInterval = d
	}

	c.AuthMode = strings.ToLower(c.AuthMode)
	return nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is not set"))
	}
	if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
		errs = append(errs, fmt.Errorf("DEFAULT_TIMEZONE %q: %w", c.DefaultTimezone, err))
	}

	switch c.AuthMode {
	case AuthModeClerk:
		if c.ClerkSecretKey == "" {
			errs = append(errs, errors.New("CLERK_SECRET_KEY is required when AUTH_MODE=clerk"))
		}
	case AuthModeLocal:
		if c.LocalJWTSecret == "" {
			errs = append(errs, errors.New("LOCAL_JWT_SECRET is required when AUTH_MODE=local"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode))
	}

	if c.CapsuleReadyInterval <= 0 {
		errs = append(errs, errors.New("CAPSULE_READY_INTERVAL must be positive"))
	}

	return errors.Join(errs...)
}

// Location returns the default timezone. Call after Validate.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DefaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
