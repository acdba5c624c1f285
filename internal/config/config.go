package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Server          ServerConfig
	Database        DatabaseConfig
	Redis           RedisConfig
	Scheduler       SchedulerConfig
	Vapi            VapiConfig
	Log             LogConfig
	DefaultTimezone string
}

type ServerConfig struct {
	Address string
}

type DatabaseConfig struct {
	Driver     string
	URL        string
	SQLitePath string
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

type SchedulerConfig struct {
	Interval         time.Duration
	MaxRetryAttempts int
	PersistTimeout   time.Duration
}

type VapiConfig struct {
	APIKey         string
	BaseURL        string
	PhoneNumberID  string
	CallsPerSecond float64
}

type LogConfig struct {
	Level string
}

// envKeys maps each environment variable to its koanf key. The same keys
// are used in the optional YAML file.
var envKeys = map[string]string{
	"SERVER_ADDRESS":             "server.address",
	"DATABASE_DRIVER":            "database.driver",
	"DATABASE_URL":               "database.url",
	"SQLITE_PATH":                "database.sqlite_path",
	"SCHEDULER_INTERVAL_SECONDS": "scheduler.interval_seconds",
	"MAX_RETRY_ATTEMPTS":         "scheduler.max_retry_attempts",
	"PERSIST_TIMEOUT_SECONDS":    "scheduler.persist_timeout_seconds",
	"VAPI_API_KEY":               "vapi.api_key",
	"VAPI_BASE_URL":              "vapi.base_url",
	"PHONE_NUMBER_ID":            "vapi.phone_number_id",
	"CALLS_PER_SECOND":           "vapi.calls_per_second",
	"REDIS_ADDR":                 "redis.addr",
	"REDIS_PASSWORD":             "redis.password",
	"REDIS_DB":                   "redis.db",
	"REDIS_TTL_SECONDS":          "redis.ttl_seconds",
	"LOG_LEVEL":                  "log.level",
	"DEFAULT_TIMEZONE":           "default_timezone",
}

func defaults() map[string]any {
	return map[string]any{
		"server.address":                    ":8080",
		"database.driver":                   DriverSQLite,
		"database.url":                      "",
		"database.sqlite_path":              "data/reminders.db",
		"scheduler.interval_seconds":        10,
		"scheduler.max_retry_attempts":      3,
		"scheduler.persist_timeout_seconds": 10,
		"vapi.api_key":                      "",
		"vapi.base_url":                     "https://api.vapi.ai",
		"vapi.phone_number_id":              "",
		"vapi.calls_per_second":             0,
		"redis.addr":                        "",
		"redis.password":                    "",
		"redis.db":                          0,
		"redis.ttl_seconds":                 86400,
		"log.level":                         "info",
		"default_timezone":                  "UTC",
	}
}

// LoadAll layers defaults, the YAML file named by CONFIG_FILE (if any) and
// the environment, then validates the result. Every problem is reported at
// once, each naming the environment variable to fix.
func LoadAll() (*Config, error) {
	k, err := load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}

	r := reader{k: k}
	cfg := &Config{
		Server: ServerConfig{
			Address: r.str("SERVER_ADDRESS"),
		},
		Database: DatabaseConfig{
			Driver:     strings.ToLower(r.str("DATABASE_DRIVER")),
			URL:        r.str("DATABASE_URL"),
			SQLitePath: r.str("SQLITE_PATH"),
		},
		Scheduler: SchedulerConfig{
			Interval:         r.seconds("SCHEDULER_INTERVAL_SECONDS"),
			MaxRetryAttempts: r.int("MAX_RETRY_ATTEMPTS"),
			PersistTimeout:   r.seconds("PERSIST_TIMEOUT_SECONDS"),
		},
		Vapi: VapiConfig{
			APIKey:         r.required("VAPI_API_KEY"),
			BaseURL:        r.str("VAPI_BASE_URL"),
			PhoneNumberID:  r.required("PHONE_NUMBER_ID"),
			CallsPerSecond: r.float("CALLS_PER_SECOND"),
		},
		Log: LogConfig{
			Level: strings.ToLower(r.str("LOG_LEVEL")),
		},
		DefaultTimezone: r.str("DEFAULT_TIMEZONE"),
	}

	if addr := r.str("REDIS_ADDR"); addr != "" {
		cfg.Redis = RedisConfig{
			Enabled:  true,
			Address:  addr,
			Password: r.str("REDIS_PASSWORD"),
			DB:       r.int("REDIS_DB"),
			TTL:      r.seconds("REDIS_TTL_SECONDS"),
		}
	}

	if cfg.Database.Driver == DriverPostgres {
		cfg.Database.URL = r.required("DATABASE_URL")
	}

	if err := joinErrors(append(r.errs, validate(cfg)...)); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load(path string) (*koanf.Koanf, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// Empty variables count as unset, so they never mask a default.
	if err := k.Load(env.ProviderWithValue("", ".", func(key, value string) (string, any) {
		if value == "" {
			return "", nil
		}
		return envKeys[key], value
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	return k, nil
}

func validate(cfg *Config) []error {
	var errs []error

	switch cfg.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, cfg.Database.Driver))
	}
	if cfg.Database.Driver == DriverSQLite && cfg.Database.SQLitePath == "" {
		errs = append(errs, errors.New("SQLITE_PATH must not be empty"))
	}
	if cfg.Scheduler.Interval <= 0 {
		errs = append(errs, errors.New("SCHEDULER_INTERVAL_SECONDS must be > 0"))
	}
	if cfg.Scheduler.MaxRetryAttempts <= 0 {
		errs = append(errs, errors.New("MAX_RETRY_ATTEMPTS must be > 0"))
	}
	if cfg.Scheduler.PersistTimeout <= 0 {
		errs = append(errs, errors.New("PERSIST_TIMEOUT_SECONDS must be > 0"))
	}
	if cfg.Vapi.CallsPerSecond < 0 {
		errs = append(errs, errors.New("CALLS_PER_SECOND must be >= 0"))
	}
	if cfg.Redis.Enabled && cfg.Redis.TTL <= 0 {
		errs = append(errs, errors.New("REDIS_TTL_SECONDS must be > 0"))
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", cfg.Log.Level))
	}
	return errs
}

// reader reads typed values by environment name and collects parse errors.
type reader struct {
	k    *koanf.Koanf
	errs []error
}

func (r *reader) str(envName string) string {
	return strings.TrimSpace(r.k.String(envKeys[envName]))
}

func (r *reader) required(envName string) string {
	v, err := requireValue(envName, r.str(envName))
	if err != nil {
		r.errs = append(r.errs, err)
	}
	return v
}

func (r *reader) int(envName string) int {
	v, err := parseInt(envName, r.str(envName))
	if err != nil {
		r.errs = append(r.errs, err)
	}
	return v
}

func (r *reader) seconds(envName string) time.Duration {
	return time.Duration(r.int(envName)) * time.Second
}

func (r *reader) float(envName string) float64 {
	raw := r.str(envName)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid number for %s: %q", envName, raw))
	}
	return v
}

func requireValue(key, val string) (string, error) {
	if val == "" {
		return "", fmt.Errorf("missing required setting: %s", key)
	}
	return val, nil
}

func parseInt(key, val string) (int, error) {
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid int for %s: %q", key, val)
	}
	return i, nil
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
