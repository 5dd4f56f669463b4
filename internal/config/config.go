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
	Store     StoreConfig           `yaml:"store" mapstructure:"store"`
	Log       LogConfig             `yaml:"log" mapstructure:"log"`
	Server    ServerConfig          `yaml:"server" mapstructure:"server"`
	Fetch     FetchConfig           `yaml:"fetch" mapstructure:"fetch"`
	Match     MatchConfig           `yaml:"match" mapstructure:"match"`
	Discovery DiscoveryConfig       `yaml:"discovery" mapstructure:"discovery"`
	Sites     map[string]SiteConfig `yaml:"sites" mapstructure:"sites"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// FetchConfig configures the outbound fetch layer.
type FetchConfig struct {
	TimeoutSecs   int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MinDelayMs    int `yaml:"min_delay_ms" mapstructure:"min_delay_ms"`
	MaxRetries    int `yaml:"max_retries" mapstructure:"max_retries"`
	BackoffSecs   int `yaml:"backoff_secs" mapstructure:"backoff_secs"`
	MaxBodyKBytes int `yaml:"max_body_kbytes" mapstructure:"max_body_kbytes"`
}

// SiteConfig overrides fetch behavior for a single directory site.
type SiteConfig struct {
	MinDelayMs     int  `yaml:"min_delay_ms" mapstructure:"min_delay_ms"`
	MaxRetries     int  `yaml:"max_retries" mapstructure:"max_retries"`
	AllowRendering bool `yaml:"allow_rendering" mapstructure:"allow_rendering"`
}

// MatchConfig configures candidate scoring.
type MatchConfig struct {
	Weights    WeightsConfig    `yaml:"weights" mapstructure:"weights"`
	Thresholds ThresholdsConfig `yaml:"thresholds" mapstructure:"thresholds"`
}

// WeightsConfig holds per-factor score weights.
type WeightsConfig struct {
	NPI      float64 `yaml:"npi" mapstructure:"npi"`
	License  float64 `yaml:"license" mapstructure:"license"`
	Name     float64 `yaml:"name" mapstructure:"name"`
	Location float64 `yaml:"location" mapstructure:"location"`
}

// ThresholdsConfig holds the confidence cutoffs.
type ThresholdsConfig struct {
	Low  float64 `yaml:"low" mapstructure:"low"`
	High float64 `yaml:"high" mapstructure:"high"`
}

// DiscoveryConfig configures batch discovery runs.
type DiscoveryConfig struct {
	MaxConcurrentSites int `yaml:"max_concurrent_sites" mapstructure:"max_concurrent_sites"`
	BudgetSecs         int `yaml:"budget_secs" mapstructure:"budget_secs"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DIRTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "directory.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("fetch.timeout_secs", 15)
	v.SetDefault("fetch.min_delay_ms", 1500)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.backoff_secs", 2)
	v.SetDefault("fetch.max_body_kbytes", 512)
	v.SetDefault("match.weights.npi", 0.9)
	v.SetDefault("match.weights.license", 0.6)
	v.SetDefault("match.weights.name", 0.3)
	v.SetDefault("match.weights.location", 0.1)
	v.SetDefault("match.thresholds.low", 0.35)
	v.SetDefault("match.thresholds.high", 0.85)
	v.SetDefault("discovery.max_concurrent_sites", 4)
	v.SetDefault("discovery.budget_secs", 0)

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
