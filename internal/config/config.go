// Package config loads application configuration and initializes logging.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/visitum/visitum-cli/internal/clean"
	"github.com/visitum/visitum-cli/internal/enrich"
	"github.com/visitum/visitum-cli/internal/regress"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Wikipedia WikipediaConfig `yaml:"wikipedia" mapstructure:"wikipedia"`
	Geonames  GeonamesConfig  `yaml:"geonames" mapstructure:"geonames"`
	Clean     clean.Config    `yaml:"clean" mapstructure:"clean"`
	Enrich    enrich.Config   `yaml:"enrich" mapstructure:"enrich"`
	Regress   regress.Config  `yaml:"regress" mapstructure:"regress"`
	Export    ExportConfig    `yaml:"export" mapstructure:"export"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// WikipediaConfig configures the page source.
type WikipediaConfig struct {
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	Page      string `yaml:"page" mapstructure:"page"`
	TableHint string `yaml:"table_hint" mapstructure:"table_hint"`
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`
}

// GeonamesConfig configures the population lookup.
type GeonamesConfig struct {
	Username   string        `yaml:"username" mapstructure:"username"`
	BaseURL    string        `yaml:"base_url" mapstructure:"base_url"`
	MaxRetries int           `yaml:"max_retries" mapstructure:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay" mapstructure:"retry_delay"`
	RateLimit  float64       `yaml:"rate_limit" mapstructure:"rate_limit"`
	RulesFile  string        `yaml:"rules_file" mapstructure:"rules_file"`
}

// ExportConfig configures the enriched CSV artifact.
type ExportConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
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
	v.SetEnvPrefix("VISITUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "visitum.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("wikipedia.base_url", "https://en.wikipedia.org/w/api.php")
	v.SetDefault("wikipedia.page", "List_of_most-visited_museums")
	v.SetDefault("wikipedia.table_hint", "Visitors in 2024")
	v.SetDefault("wikipedia.user_agent", "")
	v.SetDefault("geonames.base_url", "http://api.geonames.org")
	v.SetDefault("geonames.username", "")
	v.SetDefault("geonames.rules_file", "")
	v.SetDefault("geonames.max_retries", 3)
	v.SetDefault("geonames.retry_delay", "1s")
	v.SetDefault("geonames.rate_limit", 1.0)
	v.SetDefault("clean.year_filter", 2024)
	v.SetDefault("clean.visitor_threshold", 1_250_000)
	v.SetDefault("enrich.workers", 8)
	v.SetDefault("regress.test_fraction", 0.2)
	v.SetDefault("regress.seed", 42)
	v.SetDefault("export.path", "enriched_museums.csv")

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
