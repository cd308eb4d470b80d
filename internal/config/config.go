package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Source    SourceConfig    `yaml:"source" mapstructure:"source"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Dedupe    DedupeConfig    `yaml:"dedupe" mapstructure:"dedupe"`
	Oracle    OracleConfig    `yaml:"oracle" mapstructure:"oracle"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures where scan runs and matches are persisted.
// Driver is one of "sqlite", "postgres" or "none".
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// SourceConfig configures the Postgres property source.
type SourceConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Table       string `yaml:"table" mapstructure:"table"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// DedupeConfig holds the weights, tolerances and thresholds of the duplicate
// detection engine. See dedupe.DefaultConfig for the defaults.
type DedupeConfig struct {
	TitleWeight    float64 `yaml:"title_weight" mapstructure:"title_weight" json:"title_weight"`
	AddressWeight  float64 `yaml:"address_weight" mapstructure:"address_weight" json:"address_weight"`
	PriceWeight    float64 `yaml:"price_weight" mapstructure:"price_weight" json:"price_weight"`
	LocationWeight float64 `yaml:"location_weight" mapstructure:"location_weight" json:"location_weight"`

	// ProximityMeters is the radius inside which two coordinates score 100
	// on the location dimension.
	ProximityMeters float64 `yaml:"proximity_meters" mapstructure:"proximity_meters" json:"proximity_meters"`

	// PriceField selects the primary price: "monthly_rent" or "sale_price".
	PriceField            string  `yaml:"price_field" mapstructure:"price_field" json:"price_field"`
	PriceTolerancePercent float64 `yaml:"price_tolerance_percent" mapstructure:"price_tolerance_percent" json:"price_tolerance_percent"`
	PriceDecayMultiplier  float64 `yaml:"price_decay_multiplier" mapstructure:"price_decay_multiplier" json:"price_decay_multiplier"`

	DuplicateThreshold float64 `yaml:"duplicate_threshold" mapstructure:"duplicate_threshold" json:"duplicate_threshold"`
	MinConfidence      float64 `yaml:"min_confidence" mapstructure:"min_confidence" json:"min_confidence"`
	MinSimilarity      float64 `yaml:"min_similarity" mapstructure:"min_similarity" json:"min_similarity"`

	ExcludedStatuses []string `yaml:"excluded_statuses" mapstructure:"excluded_statuses" json:"excluded_statuses"`
}

// OracleConfig configures calls to the deep-analysis oracle.
type OracleConfig struct {
	Enabled           bool    `yaml:"enabled" mapstructure:"enabled"`
	Concurrency       int     `yaml:"concurrency" mapstructure:"concurrency"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts       int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs  int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	FailureThreshold  int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs  int     `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LISTINGS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "listings-dedupe.db")
	v.SetDefault("source.table", "properties")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("dedupe.title_weight", 30)
	v.SetDefault("dedupe.address_weight", 50)
	v.SetDefault("dedupe.price_weight", 20)
	v.SetDefault("dedupe.location_weight", 0)
	v.SetDefault("dedupe.proximity_meters", 150)
	v.SetDefault("dedupe.price_field", "monthly_rent")
	v.SetDefault("dedupe.price_tolerance_percent", 5)
	v.SetDefault("dedupe.price_decay_multiplier", 5)
	v.SetDefault("dedupe.duplicate_threshold", 70)
	v.SetDefault("dedupe.min_confidence", 80)
	v.SetDefault("dedupe.min_similarity", 85)
	v.SetDefault("dedupe.excluded_statuses", []string{"inactive", "archived"})
	v.SetDefault("oracle.enabled", true)
	v.SetDefault("oracle.concurrency", 4)
	v.SetDefault("oracle.requests_per_second", 2)
	v.SetDefault("oracle.timeout_secs", 30)
	v.SetDefault("oracle.max_attempts", 2)
	v.SetDefault("oracle.initial_backoff_ms", 500)
	v.SetDefault("oracle.failure_threshold", 5)
	v.SetDefault("oracle.reset_timeout_secs", 30)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

// Validate checks that the settings required by the given command mode are
// present. Modes: "scan", "serve", "runs".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	case "none":
		if mode == "runs" {
			errs = append(errs, "store.driver must not be none for runs")
		}
	default:
		errs = append(errs, "store.driver must be sqlite, postgres or none")
	}

	if mode == "scan" || mode == "serve" {
		if c.Oracle.Concurrency <= 0 {
			errs = append(errs, "oracle.concurrency must be > 0")
		}
		if c.Oracle.RequestsPerSecond < 0 {
			errs = append(errs, "oracle.requests_per_second must be >= 0")
		}
		if c.Oracle.TimeoutSecs <= 0 {
			errs = append(errs, "oracle.timeout_secs must be > 0")
		}
	}

	if mode == "serve" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed for %s: %s", mode, strings.Join(errs, "; "))
	}
	return nil
}

// OracleAvailable reports whether deep analysis can be performed.
func (c *Config) OracleAvailable() bool {
	return c.Oracle.Enabled && c.Anthropic.Key != ""
}
