// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// RedisConfig configures the Redis Streams health feed.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	Block    time.Duration
}

// MQTTConfig configures reminder delivery. An empty Broker logs reminders
// instead of publishing them.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
}

// OIDCConfig configures single sign-on for the owner. SSO is enabled when
// Issuer is set.
type OIDCConfig struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	OwnerEmail   string
}

// Enabled reports whether SSO is configured.
func (c OIDCConfig) Enabled() bool {
	return c.Issuer != ""
}

// ReconcileConfig tunes the reading index.
type ReconcileConfig struct {
	// WindowDays is how many calendar days, today included, the index keeps.
	WindowDays int
	Tolerance  time.Duration
}

// Config is the complete service configuration.
type Config struct {
	Addr          string
	WebDir        string
	SlotStore     string
	HealthStore   string
	DatabaseURL   string
	PollInterval  time.Duration
	DisableAuth   bool
	Redis         RedisConfig
	MQTT          MQTTConfig
	OIDC          OIDCConfig
	Reconcile     ReconcileConfig
	ReminderCheck time.Duration
	Log           struct {
		Level  string
		Format string
	}
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	c := &Config{
		Addr:          env("ADDR", ":8080"),
		WebDir:        env("WEB_DIR", "web"),
		SlotStore:     strings.ToLower(env("SLOT_STORE", BackendPostgres)),
		HealthStore:   strings.ToLower(env("HEALTH_STORE", BackendPostgres)),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		PollInterval:  envDuration("HEALTH_POLL_INTERVAL", 2*time.Second),
		DisableAuth:   envBool("DISABLE_AUTH", false),
		ReminderCheck: envDuration("REMINDER_CHECK_INTERVAL", 20*time.Second),
	}
	c.Redis.LoadFromEnv("REDIS")
	c.MQTT.LoadFromEnv("MQTT")
	c.OIDC.LoadFromEnv("OIDC")
	c.Reconcile = ReconcileConfig{
		WindowDays: envInt("INDEX_WINDOW_DAYS", 14),
		Tolerance:  envDuration("MATCH_TOLERANCE", time.Hour),
	}
	c.Log.Level = env("LOG_LEVEL", "info")
	c.Log.Format = env("LOG_FORMAT", "json")

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error
	switch c.SlotStore {
	case BackendMemory, BackendPostgres:
	default:
		errs = append(errs, fmt.Errorf("SLOT_STORE must be %q or %q", BackendMemory, BackendPostgres))
	}
	switch c.HealthStore {
	case BackendMemory, BackendPostgres, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("HEALTH_STORE must be %q, %q or %q", BackendMemory, BackendPostgres, BackendRedis))
	}
	if (c.SlotStore == BackendPostgres || c.HealthStore == BackendPostgres) && c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required for the postgres backend"))
	}
	if c.HealthStore == BackendRedis && c.Redis.Addr == "" {
		errs = append(errs, errors.New("REDIS_ADDR is required for the redis health store"))
	}
	if c.Reconcile.WindowDays < 1 {
		errs = append(errs, errors.New("INDEX_WINDOW_DAYS must be at least 1"))
	}
	if c.Reconcile.Tolerance <= 0 {
		errs = append(errs, errors.New("MATCH_TOLERANCE must be positive"))
	}
	if c.OIDC.Enabled() && (c.OIDC.ClientID == "" || c.OIDC.RedirectURL == "") {
		errs = append(errs, errors.New("OIDC_CLIENT_ID and OIDC_REDIRECT_URL are required when OIDC_ISSUER is set"))
	}
	return errors.Join(errs...)
}

// LoadFromEnv reads PREFIX_ADDR, PREFIX_PASSWORD, PREFIX_DB, PREFIX_STREAM and PREFIX_BLOCK.
func (c *RedisConfig) LoadFromEnv(prefix string) {
	c.Addr = os.Getenv(prefix + "_ADDR")
	c.Password = os.Getenv(prefix + "_PASSWORD")
	c.DB = envInt(prefix+"_DB", 0)
	c.Stream = env(prefix+"_STREAM", "bpdiary:samples")
	c.Block = envDuration(prefix+"_BLOCK", 5*time.Second)
}

// LoadFromEnv reads PREFIX_BROKER, PREFIX_CLIENT_ID, PREFIX_USERNAME,
// PREFIX_PASSWORD, PREFIX_TOPIC and PREFIX_QOS.
func (c *MQTTConfig) LoadFromEnv(prefix string) {
	c.Broker = os.Getenv(prefix + "_BROKER")
	c.ClientID = env(prefix+"_CLIENT_ID", "bpdiary")
	c.Username = os.Getenv(prefix + "_USERNAME")
	c.Password = os.Getenv(prefix + "_PASSWORD")
	c.Topic = env(prefix+"_TOPIC", "bpdiary/reminders")
	c.QoS = byte(envInt(prefix+"_QOS", 1))
}

// LoadFromEnv reads PREFIX_ISSUER, PREFIX_CLIENT_ID, PREFIX_CLIENT_SECRET,
// PREFIX_REDIRECT_URL and PREFIX_OWNER_EMAIL.
func (c *OIDCConfig) LoadFromEnv(prefix string) {
	c.Issuer = os.Getenv(prefix + "_ISSUER")
	c.ClientID = os.Getenv(prefix + "_CLIENT_ID")
	c.ClientSecret = os.Getenv(prefix + "_CLIENT_SECRET")
	c.RedirectURL = os.Getenv(prefix + "_REDIRECT_URL")
	c.OwnerEmail = os.Getenv(prefix + "_OWNER_EMAIL")
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func envBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
