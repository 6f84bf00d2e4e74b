// Package config loads application configuration from a YAML file and
// environment variables, and initializes the global logger.
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
	Locator LocatorConfig `yaml:"locator" mapstructure:"locator"`
	Run     RunConfig     `yaml:"run" mapstructure:"run"`
	Retry   RetryConfig   `yaml:"retry" mapstructure:"retry"`
	Export  ExportConfig  `yaml:"export" mapstructure:"export"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// LocatorConfig configures the dealer search endpoint client.
type LocatorConfig struct {
	Endpoint          string  `yaml:"endpoint" mapstructure:"endpoint"`
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	ZipCSV            string  `yaml:"zip_csv" mapstructure:"zip_csv"`
	Distance          int     `yaml:"distance" mapstructure:"distance"`
	Category          string  `yaml:"category" mapstructure:"category"`
}

// RunConfig configures crawl run behavior.
type RunConfig struct {
	OutputDir  string `yaml:"output_dir" mapstructure:"output_dir"`
	ManualLog  string `yaml:"manual_log" mapstructure:"manual_log"`
	FlushEvery int    `yaml:"flush_every" mapstructure:"flush_every"`
	SkipRaw    bool   `yaml:"skip_raw" mapstructure:"skip_raw"`
	MaxZips    int    `yaml:"max_zips" mapstructure:"max_zips"`
}

// RetryConfig configures the per-ZIP retry schedule.
type RetryConfig struct {
	MaxRetries        int     `yaml:"max_retries" mapstructure:"max_retries"`
	BaseDelaySecs     float64 `yaml:"base_delay_secs" mapstructure:"base_delay_secs"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier" mapstructure:"backoff_multiplier"`
}

// ExportConfig configures deliverable generation.
type ExportConfig struct {
	Fields        []string `yaml:"fields" mapstructure:"fields"`
	ListDelimiter string   `yaml:"list_delimiter" mapstructure:"list_delimiter"`
	XLSX          bool     `yaml:"xlsx" mapstructure:"xlsx"`
}

// StoreConfig configures the run index backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Path        string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the status server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks that the fields required by the named command scope
// are present. Scopes: "run", "serve", "runs".
func (c *Config) Validate(scope string) error {
	var missing []string

	switch scope {
	case "run":
		if c.Locator.Endpoint == "" {
			missing = append(missing, "locator.endpoint is required")
		}
		if c.Locator.ZipCSV == "" {
			missing = append(missing, "locator.zip_csv is required")
		}
		if c.Run.OutputDir == "" {
			missing = append(missing, "run.output_dir is required")
		}
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			missing = append(missing, "server.port must be between 1 and 65535")
		}
	}

	switch scope {
	case "run", "serve", "runs":
		switch c.Store.Driver {
		case "postgres":
			if c.Store.DatabaseURL == "" {
				missing = append(missing, "store.database_url is required for the postgres driver")
			}
		case "sqlite":
			if c.Store.Path == "" {
				missing = append(missing, "store.path is required for the sqlite driver")
			}
		case "", "none":
		default:
			missing = append(missing, "store.driver must be sqlite, postgres, or none")
		}
	}

	if len(missing) > 0 {
		return eris.New("config: " + strings.Join(missing, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LOCATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("locator.endpoint", "https://holosun.com/index/dealer/search.html")
	v.SetDefault("locator.timeout_secs", 30)
	v.SetDefault("locator.requests_per_second", 0.5)
	v.SetDefault("locator.zip_csv", "zip_centroids.csv")
	v.SetDefault("locator.distance", 100)
	v.SetDefault("locator.category", "both")
	v.SetDefault("run.output_dir", "runs")
	v.SetDefault("run.manual_log", "manual_attention.jsonl")
	v.SetDefault("run.flush_every", 25)
	v.SetDefault("retry.max_retries", 2)
	v.SetDefault("retry.base_delay_secs", 5.0)
	v.SetDefault("retry.backoff_multiplier", 2.0)
	v.SetDefault("export.fields", []string{"dealer_name", "address", "phone", "website"})
	v.SetDefault("export.list_delimiter", ";")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "locator_runs.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)

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
