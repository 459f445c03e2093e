package keynotify

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

// Config defines a public type used by keynotify APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	Retry     RetryConfig
	Storage   StorageConfig
	LoginFlow LoginFlowConfig
	Metrics   MetricsConfig
	Audit     AuditConfig
	Log       LogConfig
}

/*
====================================
TRANSPORT CONFIG
====================================
*/

// RetryConfig controls transport retries. The N-th retry waits N × Step.
type RetryConfig struct {
	MaxRetries int
	Step       time.Duration
}

/*
====================================
STORAGE CONFIG
====================================
*/

// StorageBackend selects where the durable tier lives.
type StorageBackend string

const (
	StorageFile   StorageBackend = "file"
	StorageMemory StorageBackend = "memory"
	StorageRedis  StorageBackend = "redis"
)

// StorageConfig defines a public type used by keynotify APIs.
//
// StorageConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type StorageConfig struct {
	Backend     StorageBackend
	Dir         string // file backend; empty means the user config dir
	Key         string
	Passphrase  string // file backend sealing; empty stores plaintext
	RedisAddr   string
	RedisPrefix string
	RedisTTL    time.Duration
}

/*
====================================
LOGIN FLOW CONFIG
====================================
*/

// LoginFlowConfig controls the username availability check.
type LoginFlowConfig struct {
	Debounce time.Duration
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

// MetricsConfig defines a public type used by keynotify APIs.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// AuditConfig defines a public type used by keynotify APIs.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// LogConfig selects slog level and handler format.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Timeout:   50 * time.Second,
		UserAgent: "keynotify-client",
		Retry: RetryConfig{
			MaxRetries: 3,
			Step:       2 * time.Second,
		},
		Storage: StorageConfig{
			Backend:     StorageFile,
			RedisPrefix: "kn",
		},
		LoginFlow: LoginFlowConfig{
			Debounce: 300 * time.Millisecond,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Audit: AuditConfig{
			BufferSize: 64,
			DropIfFull: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks a configuration for values the client cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return ErrBaseURLRequired
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid base url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("base url has no host")
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be > 0")
	}
	if c.Retry.MaxRetries < 0 || c.Retry.MaxRetries > 10 {
		return errors.New("retry max retries must be between 0 and 10")
	}
	if c.Retry.MaxRetries > 0 && c.Retry.Step <= 0 {
		return errors.New("retry step must be > 0 when retries are enabled")
	}
	switch c.Storage.Backend {
	case StorageFile, StorageMemory:
	case StorageRedis:
		if strings.TrimSpace(c.Storage.RedisAddr) == "" {
			return errors.New("redis storage requires an address")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.RedisTTL < 0 {
		return errors.New("redis ttl must be >= 0")
	}
	if c.LoginFlow.Debounce < 0 {
		return errors.New("login flow debounce must be >= 0")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("audit buffer size must be > 0")
	}
	return nil
}

/*
====================================
ENVIRONMENT
====================================
*/

type envConfig struct {
	BaseURL           string        `env:"KEYNOTIFY_API_URL"`
	Timeout           time.Duration `env:"KEYNOTIFY_TIMEOUT" default:"50s"`
	UserAgent         string        `env:"KEYNOTIFY_USER_AGENT" default:"keynotify-client"`
	RetryMax          int           `env:"KEYNOTIFY_RETRY_MAX" default:"3"`
	RetryStep         time.Duration `env:"KEYNOTIFY_RETRY_STEP" default:"2s"`
	StorageBackend    string        `env:"KEYNOTIFY_STORAGE" default:"file"`
	StorageDir        string        `env:"KEYNOTIFY_STORAGE_DIR"`
	StorageKey        string        `env:"KEYNOTIFY_STORAGE_KEY"`
	StoragePassphrase string        `env:"KEYNOTIFY_PASSPHRASE"`
	RedisAddr         string        `env:"KEYNOTIFY_REDIS_ADDR"`
	RedisPrefix       string        `env:"KEYNOTIFY_REDIS_PREFIX" default:"kn"`
	RedisTTL          time.Duration `env:"KEYNOTIFY_REDIS_TTL" default:"0s"`
	Debounce          time.Duration `env:"KEYNOTIFY_DEBOUNCE" default:"300ms"`
	MetricsEnabled    bool          `env:"KEYNOTIFY_METRICS" default:"true"`
	LatencyHistograms bool          `env:"KEYNOTIFY_LATENCY_HISTOGRAMS" default:"false"`
	AuditEnabled      bool          `env:"KEYNOTIFY_AUDIT" default:"false"`
	AuditBuffer       int           `env:"KEYNOTIFY_AUDIT_BUFFER" default:"64"`
	LogLevel          string        `env:"LOG_LEVEL" default:"info"`
	LogFormat         string        `env:"LOG_FORMAT" default:"text"`
}

// LoadConfigFromEnv reads a .env file when present, then the process
// environment, on top of the defaults.
func LoadConfigFromEnv() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	var ec envConfig
	if err := env.Load(&ec, nil); err != nil {
		return Config{}, fmt.Errorf("failed to load environment variables: %w", err)
	}
	return ec.toConfig(), nil
}

func (ec envConfig) toConfig() Config {
	cfg := defaultConfig()
	cfg.BaseURL = ec.BaseURL
	cfg.Timeout = ec.Timeout
	cfg.UserAgent = ec.UserAgent
	cfg.Retry = RetryConfig{MaxRetries: ec.RetryMax, Step: ec.RetryStep}
	cfg.Storage = StorageConfig{
		Backend:     StorageBackend(strings.ToLower(ec.StorageBackend)),
		Dir:         ec.StorageDir,
		Key:         ec.StorageKey,
		Passphrase:  ec.StoragePassphrase,
		RedisAddr:   ec.RedisAddr,
		RedisPrefix: ec.RedisPrefix,
		RedisTTL:    ec.RedisTTL,
	}
	cfg.LoginFlow.Debounce = ec.Debounce
	cfg.Metrics = MetricsConfig{Enabled: ec.MetricsEnabled, EnableLatencyHistograms: ec.LatencyHistograms}
	cfg.Audit.Enabled = ec.AuditEnabled
	cfg.Audit.BufferSize = ec.AuditBuffer
	cfg.Log = LogConfig{Level: ec.LogLevel, Format: ec.LogFormat}
	return cfg
}
