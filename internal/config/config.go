// Package config loads promptstudio settings from defaults, an optional YAML
// file and PROMPTSTUDIO_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. PROMPTSTUDIO_LIMITS_TEXT.
const EnvPrefix = "PROMPTSTUDIO"

// Storage backends.
const (
	BackendMemory    = "memory"
	BackendFile      = "file"
	BackendRedis     = "redis"
	BackendPostgres  = "postgres"
	BackendFirestore = "firestore"
	BackendTiered    = "tiered"
)

var (
	backends     = []string{BackendMemory, BackendFile, BackendRedis, BackendPostgres, BackendFirestore, BackendTiered}
	hotBackends  = []string{BackendMemory, BackendRedis}
	coldBackends = []string{BackendFile, BackendRedis, BackendPostgres, BackendFirestore}
	logLevels    = []string{"debug", "info", "warn", "error"}
	logFormats   = []string{"json", "console"}
)

// Config is the complete application configuration.
type Config struct {
	Storage  StorageConfig  `mapstructure:"storage"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Library  LibraryConfig  `mapstructure:"library"`
	Provider ProviderConfig `mapstructure:"provider"`
	Log      LogConfig      `mapstructure:"log"`
	Server   ServerConfig   `mapstructure:"server"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// StorageConfig selects and configures the kv backend.
type StorageConfig struct {
	Backend        string               `mapstructure:"backend"`
	File           FileConfig           `mapstructure:"file"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Postgres       PostgresConfig       `mapstructure:"postgres"`
	Firestore      FirestoreConfig      `mapstructure:"firestore"`
	Tiered         TieredConfig         `mapstructure:"tiered"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

type FileConfig struct {
	Dir string `mapstructure:"dir"`
}

type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	Migrate  bool   `mapstructure:"migrate"`
	MaxConns int32  `mapstructure:"max_conns"`
}

type FirestoreConfig struct {
	ProjectID  string `mapstructure:"project_id"`
	Collection string `mapstructure:"collection"`
}

// TieredConfig composes two other backends. Hot is memory or redis.
type TieredConfig struct {
	Hot        string `mapstructure:"hot"`
	Cold       string `mapstructure:"cold"`
	Async      bool   `mapstructure:"async"`
	BufferSize int    `mapstructure:"buffer_size"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Threshold    int           `mapstructure:"threshold"`
	ResetTimeout time.Duration `mapstructure:"reset_timeout"`
}

type LimitsConfig struct {
	Text  int `mapstructure:"text"`
	Image int `mapstructure:"image"`
}

type LedgerConfig struct {
	// Timezone is an IANA name; the usage day starts at midnight there.
	Timezone string `mapstructure:"timezone"`
}

type LibraryConfig struct {
	ImageRetention  int `mapstructure:"image_retention"`
	PromptRetention int `mapstructure:"prompt_retention"`
}

type ProviderConfig struct {
	// APIKey activates the provider without persisting the key; a key
	// stored with "key set" takes precedence.
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	TextModel   string        `mapstructure:"text_model"`
	VisionModel string        `mapstructure:"vision_model"`
	ImageModel  string        `mapstructure:"image_model"`
	ImageSize   string        `mapstructure:"image_size"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
}

// Load reads the configuration. An explicit path must exist; without one,
// promptstudio.yaml is looked up in the working directory and in
// ~/.promptstudio, and its absence is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("promptstudio")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".promptstudio"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.backend", BackendFile)
	v.SetDefault("storage.file.dir", "")
	v.SetDefault("storage.redis.addr", "localhost:6379")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.key_prefix", "promptstudio:")
	v.SetDefault("storage.redis.ttl", "0s")
	v.SetDefault("storage.postgres.dsn", "")
	v.SetDefault("storage.postgres.table", "promptstudio_state")
	v.SetDefault("storage.postgres.migrate", true)
	v.SetDefault("storage.postgres.max_conns", 10)
	v.SetDefault("storage.firestore.project_id", "")
	v.SetDefault("storage.firestore.collection", "promptstudio_state")
	v.SetDefault("storage.tiered.hot", BackendMemory)
	v.SetDefault("storage.tiered.cold", BackendFile)
	v.SetDefault("storage.tiered.async", false)
	v.SetDefault("storage.tiered.buffer_size", 100)
	v.SetDefault("storage.circuit_breaker.enabled", false)
	v.SetDefault("storage.circuit_breaker.threshold", 5)
	v.SetDefault("storage.circuit_breaker.reset_timeout", "30s")

	v.SetDefault("limits.text", 100)
	v.SetDefault("limits.image", 50)
	v.SetDefault("ledger.timezone", "UTC")
	v.SetDefault("library.image_retention", 50)
	v.SetDefault("library.prompt_retention", 0)

	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.base_url", "https://api.openai.com/v1")
	v.SetDefault("provider.text_model", "gpt-4o-mini")
	v.SetDefault("provider.vision_model", "")
	v.SetDefault("provider.image_model", "dall-e-2")
	v.SetDefault("provider.image_size", "1024x1024")
	v.SetDefault("provider.timeout", "2m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "promptstudio")
	v.SetDefault("metrics.path", "/metrics")
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	s := c.Storage
	if !slices.Contains(backends, s.Backend) {
		return fmt.Errorf("storage.backend: unknown backend %q", s.Backend)
	}
	if s.Backend == BackendTiered {
		if !slices.Contains(hotBackends, s.Tiered.Hot) {
			return fmt.Errorf("storage.tiered.hot: %q cannot be a hot tier", s.Tiered.Hot)
		}
		if !slices.Contains(coldBackends, s.Tiered.Cold) {
			return fmt.Errorf("storage.tiered.cold: %q cannot be a cold tier", s.Tiered.Cold)
		}
		if s.Tiered.Hot == s.Tiered.Cold {
			return fmt.Errorf("storage.tiered: hot and cold must differ")
		}
	}
	if c.uses(BackendPostgres) && s.Postgres.DSN == "" {
		return fmt.Errorf("storage.postgres.dsn is required")
	}
	if c.uses(BackendFirestore) && s.Firestore.ProjectID == "" {
		return fmt.Errorf("storage.firestore.project_id is required")
	}

	if c.Limits.Text <= 0 || c.Limits.Image <= 0 {
		return fmt.Errorf("limits must be positive, got text=%d image=%d", c.Limits.Text, c.Limits.Image)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Library.ImageRetention < 0 || c.Library.PromptRetention < 0 {
		return fmt.Errorf("library retention must not be negative")
	}
	if !slices.Contains(logLevels, strings.ToLower(c.Log.Level)) {
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	if !slices.Contains(logFormats, c.Log.Format) {
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}
	return nil
}

// Location resolves ledger.timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Ledger.Timezone)
	if err != nil {
		return nil, fmt.Errorf("ledger.timezone: %w", err)
	}
	return loc, nil
}

func (c *Config) uses(backend string) bool {
	s := c.Storage
	if s.Backend == backend {
		return true
	}
	return s.Backend == BackendTiered && (s.Tiered.Hot == backend || s.Tiered.Cold == backend)
}
