package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/uzuki-lab/kyotei-cli/internal/store"
	"github.com/uzuki-lab/kyotei-cli/internal/ticket"
	"github.com/uzuki-lab/kyotei-cli/pkg/biyori"
	"github.com/uzuki-lab/kyotei-cli/pkg/official"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig   `yaml:"store" mapstructure:"store"`
	Fetch  FetchConfig   `yaml:"fetch" mapstructure:"fetch"`
	Ticket ticket.Config `yaml:"ticket" mapstructure:"ticket"`
	Scan   ScanConfig    `yaml:"scan" mapstructure:"scan"`
	Server ServerConfig  `yaml:"server" mapstructure:"server"`
	Log    LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"` // sqlite or postgres
	Path        string           `yaml:"path" mapstructure:"path"`     // sqlite file
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// FetchConfig configures the source walk.
type FetchConfig struct {
	TimeoutSecs     int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	CacheTTLSecs    int    `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
	RequestGapSecs  int    `yaml:"request_gap_secs" mapstructure:"request_gap_secs"`
	BiyoriBaseURL   string `yaml:"biyori_base_url" mapstructure:"biyori_base_url"`
	OfficialBaseURL string `yaml:"official_base_url" mapstructure:"official_base_url"`
}

// Timeout returns the per-candidate fetch timeout.
func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSecs) * time.Second
}

// CacheTTL returns how long a fetched document stays reusable. Just-before
// pages change by the minute, so this stays short.
func (f FetchConfig) CacheTTL() time.Duration {
	return time.Duration(f.CacheTTLSecs) * time.Second
}

// RequestGap returns the minimum spacing between outbound requests.
func (f FetchConfig) RequestGap() time.Duration {
	return time.Duration(f.RequestGapSecs) * time.Second
}

// ScanConfig configures whole-card batch prediction.
type ScanConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetConfigName("kyotei")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.kyotei")

	// Environment
	v.SetEnvPrefix("KYOTEI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "kyotei.db")
	v.SetDefault("fetch.timeout_secs", 10)
	v.SetDefault("fetch.cache_ttl_secs", 90)
	v.SetDefault("fetch.request_gap_secs", 3)
	v.SetDefault("fetch.biyori_base_url", biyori.BaseURL)
	v.SetDefault("fetch.official_base_url", official.BaseURL)
	v.SetDefault("ticket.primary_window", 3)
	v.SetDefault("ticket.primary_max", 6)
	v.SetDefault("ticket.cover_window", 2)
	v.SetDefault("ticket.cover_max", 4)
	v.SetDefault("ticket.longshot_window", 2)
	v.SetDefault("ticket.longshot_max", 2)
	v.SetDefault("scan.concurrency", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

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

// Validate checks the fields a command mode depends on.
func (c *Config) Validate(mode string) error {
	var problems []string

	checkStore := func() {
		switch c.Store.Driver {
		case "sqlite":
			if c.Store.Path == "" {
				problems = append(problems, "store.path is required for the sqlite driver")
			}
		case "postgres":
			if c.Store.DatabaseURL == "" {
				problems = append(problems, "store.database_url is required for the postgres driver")
			}
		default:
			problems = append(problems, fmt.Sprintf("unknown store driver %q", c.Store.Driver))
		}
	}

	switch mode {
	case "predict", "scan":
		if c.Fetch.TimeoutSecs <= 0 {
			problems = append(problems, "fetch.timeout_secs must be > 0")
		}
		if c.Scan.Concurrency < 1 || c.Scan.Concurrency > 12 {
			problems = append(problems, "scan.concurrency must be between 1 and 12")
		}
		checkStore()
	case "store":
		checkStore()
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		checkStore()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
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
