package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values come from env (or an env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App    AppConfig
	DB     DBConfig
	Redis  RedisConfig
	Auth   AuthConfig
	Quota  QuotaConfig
	Calls  CallsConfig
	Notify NotifyConfig
	WS     WSConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// Storage backends shared by the quota ledger and the notifier.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendLog      = "log"
)

type QuotaConfig struct {
	Backend             string
	MonthlyLimitSeconds int
	// Timezone names the location whose calendar month is used for month keys.
	Timezone string
	// KeyTTL bounds how long Redis keeps past-month records.
	KeyTTL time.Duration
}

type CallsConfig struct {
	GraceSeconds      int
	MinStartSeconds   int
	InviteTimeout     time.Duration
	ActiveSlack       time.Duration
	ReapInterval      time.Duration
	LedgerFailOpen    bool
	BroadcastFallback bool
}

type NotifyConfig struct {
	Backend string
	Stream  string
}

type WSConfig struct {
	AllowedOrigins []string
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	c.App.Port, parseErrs = intOr(parseErrs, "APP_PORT", 8080)

	c.Quota.Backend = strings.ToLower(strings.TrimSpace(os.Getenv("QUOTA_BACKEND")))
	c.Quota.MonthlyLimitSeconds, parseErrs = intOr(parseErrs, "QUOTA_MONTHLY_LIMIT_SECONDS", 300)
	c.Quota.Timezone = strings.TrimSpace(os.Getenv("QUOTA_TIMEZONE"))
	c.Quota.KeyTTL, parseErrs = durationOr(parseErrs, "QUOTA_KEY_TTL", 0)

	c.Notify.Backend = strings.ToLower(strings.TrimSpace(os.Getenv("NOTIFY_BACKEND")))
	c.Notify.Stream = strings.TrimSpace(os.Getenv("NOTIFY_STREAM"))

	if c.needsPostgres() {
		c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
		c.DB.Port, parseErrs = intOr(parseErrs, "DB_PORT", 5432)
		c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
		c.DB.Password = os.Getenv("DB_PASSWORD")
		c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
		c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))
	}

	if c.needsRedis() {
		c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
		c.Redis.Port, parseErrs = intOr(parseErrs, "REDIS_PORT", 6379)
		c.Redis.Password = os.Getenv("REDIS_PASSWORD")
		c.Redis.DB, parseErrs = intOr(parseErrs, "REDIS_DB", 0)
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in applyDefaults.
	c.Auth.AccessTokenTTL, parseErrs = durationOr(parseErrs, "JWT_ACCESS_TTL", 0)
	c.Auth.RefreshTokenTTL, parseErrs = durationOr(parseErrs, "JWT_REFRESH_TTL", 0)

	c.Calls.GraceSeconds, parseErrs = intOr(parseErrs, "CALL_GRACE_SECONDS", 30)
	c.Calls.MinStartSeconds, parseErrs = intOr(parseErrs, "CALL_MIN_START_SECONDS", 30)
	c.Calls.InviteTimeout, parseErrs = durationOr(parseErrs, "CALL_INVITE_TIMEOUT", 60*time.Second)
	c.Calls.ActiveSlack, parseErrs = durationOr(parseErrs, "CALL_ACTIVE_SLACK", 2*time.Minute)
	c.Calls.ReapInterval, parseErrs = durationOr(parseErrs, "CALL_REAP_INTERVAL", 10*time.Second)
	c.Calls.LedgerFailOpen, parseErrs = boolOr(parseErrs, "CALL_LEDGER_FAIL_OPEN", false)
	c.Calls.BroadcastFallback, parseErrs = boolOr(parseErrs, "CALL_BROADCAST_FALLBACK", false)

	c.WS.AllowedOrigins = splitList(os.Getenv("WS_ALLOWED_ORIGINS"))

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// applyDefaults fills optional values. Production-sensitive values are left
// empty so Validate can reject them.
func (c *Config) applyDefaults() {
	if c.Quota.Backend == "" {
		c.Quota.Backend = BackendMemory
	}
	if c.Quota.Timezone == "" {
		c.Quota.Timezone = "UTC"
	}
	if c.Quota.KeyTTL <= 0 {
		c.Quota.KeyTTL = 93 * 24 * time.Hour
	}
	if c.Notify.Backend == "" {
		c.Notify.Backend = BackendLog
	}
	if c.Notify.Stream == "" {
		c.Notify.Stream = "callguard:wali"
	}
	if c.DB.SSLMode == "" && c.needsPostgres() && !c.IsProduction() {
		c.DB.SSLMode = "disable"
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
}

func (c Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	switch c.Quota.Backend {
	case BackendMemory, BackendRedis, BackendPostgres:
	default:
		errs = append(errs, fmt.Errorf("QUOTA_BACKEND must be one of memory, redis, postgres, got %q", c.Quota.Backend))
	}
	if c.Quota.Backend == BackendMemory && c.IsProduction() {
		errs = append(errs, errors.New("QUOTA_BACKEND=memory is not allowed in production"))
	}
	if c.Quota.MonthlyLimitSeconds <= 0 {
		errs = append(errs, fmt.Errorf("QUOTA_MONTHLY_LIMIT_SECONDS must be > 0, got %d", c.Quota.MonthlyLimitSeconds))
	}
	if c.Quota.Timezone != "" {
		if _, err := time.LoadLocation(c.Quota.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("QUOTA_TIMEZONE is not a known location: %q", c.Quota.Timezone))
		}
	}

	switch c.Notify.Backend {
	case BackendLog, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("NOTIFY_BACKEND must be one of log, redis, got %q", c.Notify.Backend))
	}

	if c.needsPostgres() {
		if c.DB.Host == "" {
			errs = append(errs, errors.New("DB_HOST is required"))
		}
		if c.DB.Port <= 0 || c.DB.Port > 65535 {
			errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
		}
		if c.DB.User == "" {
			errs = append(errs, errors.New("DB_USER is required"))
		}
		if c.DB.Name == "" {
			errs = append(errs, errors.New("DB_NAME is required"))
		}
		if c.DB.SSLMode == "" {
			if c.IsProduction() {
				errs = append(errs, errors.New("DB_SSLMODE is required in production"))
			}
		} else if !isValidSSLMode(c.DB.SSLMode) {
			errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
		}
	}

	if c.needsRedis() {
		if c.Redis.Host == "" {
			errs = append(errs, errors.New("REDIS_HOST is required"))
		}
		if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
			errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
		}
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL > 0 && c.Auth.RefreshTokenTTL > 0 && c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Calls.GraceSeconds < 0 {
		errs = append(errs, fmt.Errorf("CALL_GRACE_SECONDS must be >= 0, got %d", c.Calls.GraceSeconds))
	}
	if c.Calls.MinStartSeconds <= 0 {
		errs = append(errs, fmt.Errorf("CALL_MIN_START_SECONDS must be > 0, got %d", c.Calls.MinStartSeconds))
	}
	if c.Calls.InviteTimeout <= 0 {
		errs = append(errs, errors.New("CALL_INVITE_TIMEOUT must be > 0"))
	}
	if c.Calls.ReapInterval <= 0 {
		errs = append(errs, errors.New("CALL_REAP_INTERVAL must be > 0"))
	}
	if c.Calls.ActiveSlack < 0 {
		errs = append(errs, errors.New("CALL_ACTIVE_SLACK must be >= 0"))
	}

	if c.IsProduction() && len(c.WS.AllowedOrigins) == 0 {
		errs = append(errs, errors.New("WS_ALLOWED_ORIGINS is required in production"))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// QuotaLocation resolves the month-key location; Validate guarantees it loads.
func (c Config) QuotaLocation() *time.Location {
	if c.Quota.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Quota.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c Config) needsPostgres() bool {
	return c.Quota.Backend == BackendPostgres
}

func (c Config) needsRedis() bool {
	return c.Quota.Backend == BackendRedis || c.Notify.Backend == BackendRedis
}

// NeedsPostgres reports whether any configured backend requires a Postgres connection.
func (c Config) NeedsPostgres() bool { return c.needsPostgres() }

// NeedsRedis reports whether any configured backend requires a Redis connection.
func (c Config) NeedsRedis() bool { return c.needsRedis() }

func intOr(errs []error, key string, def int) (int, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, errs
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, append(errs, fmt.Errorf("%s must be an integer, got %q", key, v))
	}
	return n, errs
}

func durationOr(errs []error, key string, def time.Duration) (time.Duration, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, errs
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, append(errs, fmt.Errorf("%s must be a duration, got %q", key, v))
	}
	return d, errs
}

func boolOr(errs []error, key string, def bool) (bool, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, errs
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, append(errs, fmt.Errorf("%s must be a boolean, got %q", key, v))
	}
	return b, errs
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
