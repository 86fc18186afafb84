// Package config loads harvester settings from config.yaml, a .env file and
// MSE_* environment variables, in increasing order of precedence.
package config

import (
	"strings"
	"time"
	_ "time/tzdata" // exchange.location must resolve in minimal containers

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const envPrefix = "MSE"

type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Scraper  ScraperConfig  `yaml:"scraper" mapstructure:"scraper"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Pool     PoolConfig     `yaml:"pool" mapstructure:"pool"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Schedule ScheduleConfig `yaml:"schedule" mapstructure:"schedule"`
	Recovery RecoveryConfig `yaml:"recovery" mapstructure:"recovery"`
	Exchange ExchangeConfig `yaml:"exchange" mapstructure:"exchange"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig selects the persistence backend. Driver is "sqlite" or
// "postgres"; DSN is a file path or a postgres URL accordingly.
type StoreConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
}

type ScraperConfig struct {
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Headless    bool          `yaml:"headless" mapstructure:"headless"`
	StepTimeout time.Duration `yaml:"step_timeout" mapstructure:"step_timeout"`
	RatePerSec  float64       `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

type FetchConfig struct {
	Timeout             time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxWindowsPerEntity int           `yaml:"max_windows_per_entity" mapstructure:"max_windows_per_entity"`
	MaxWindowDays       int           `yaml:"max_window_days" mapstructure:"max_window_days"`
	BackfillYears       int           `yaml:"backfill_years" mapstructure:"backfill_years"`
}

// PoolConfig sizes the browser session pool; 0 picks min(32, cores+4).
type PoolConfig struct {
	Size int `yaml:"size" mapstructure:"size"`
}

type PipelineConfig struct {
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
}

// ScheduleConfig repeats the run every Interval; 0 runs once and exits.
type ScheduleConfig struct {
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

type RecoveryConfig struct {
	DropEntities bool `yaml:"drop_entities" mapstructure:"drop_entities"`
}

type ExchangeConfig struct {
	Location string `yaml:"location" mapstructure:"location"`
}

// ServerConfig enables the ops endpoint when Addr is set.
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration. An empty path looks for ./config.yaml, which may
// be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "mse.db")
	v.SetDefault("scraper.base_url", "https://www.mse.mk")
	v.SetDefault("scraper.headless", true)
	v.SetDefault("scraper.step_timeout", "5s")
	v.SetDefault("scraper.rate_per_sec", 4.0)
	v.SetDefault("fetch.timeout", "2m")
	v.SetDefault("fetch.max_windows_per_entity", 10)
	v.SetDefault("fetch.max_window_days", 0)
	v.SetDefault("fetch.backfill_years", 10)
	v.SetDefault("pool.size", 0)
	v.SetDefault("pipeline.poll_interval", "2s")
	v.SetDefault("schedule.interval", "0s")
	v.SetDefault("recovery.drop_entities", false)
	v.SetDefault("exchange.location", "Europe/Skopje")
	v.SetDefault("server.addr", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}

// Validate checks the settings that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, "store.driver must be sqlite or postgres")
	}
	if c.Store.DSN == "" {
		problems = append(problems, "store.dsn is required")
	}
	if _, err := c.Location(); err != nil {
		problems = append(problems, "exchange.location: "+err.Error())
	}
	if c.Pool.Size < 0 {
		problems = append(problems, "pool.size must not be negative")
	}
	if c.Fetch.MaxWindowDays < 0 {
		problems = append(problems, "fetch.max_window_days must not be negative")
	}
	if c.Schedule.Interval < 0 {
		problems = append(problems, "schedule.interval must not be negative")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Location resolves the exchange time zone that defines "today".
func (c *Config) Location() (*time.Location, error) {
	if c.Exchange.Location == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Exchange.Location)
	if err != nil {
		return nil, eris.Wrapf(err, "load location %q", c.Exchange.Location)
	}
	return loc, nil
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
