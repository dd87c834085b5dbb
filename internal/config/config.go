package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/vehicle-data/internal/cost"
	"github.com/sells-group/vehicle-data/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	DVLA       DVLAConfig       `yaml:"dvla" mapstructure:"dvla"`
	MOT        MOTConfig        `yaml:"mot" mapstructure:"mot"`
	SWS        SWSConfig        `yaml:"sws" mapstructure:"sws"`
	Pricing    cost.Rates       `yaml:"pricing" mapstructure:"pricing"`
	Lookup     LookupConfig     `yaml:"lookup" mapstructure:"lookup"`
	Resilience ResilienceConfig `yaml:"resilience" mapstructure:"resilience"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// DVLAConfig holds DVLA Vehicle Enquiry Service settings.
type DVLAConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second, 0 = unlimited
}

// MOTConfig holds DVSA MOT history API settings.
type MOTConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BearerToken string  `yaml:"bearer_token" mapstructure:"bearer_token"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// SWSConfig holds SWS/Haynes technical data API settings.
type SWSConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	Username    string  `yaml:"username" mapstructure:"username"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// LookupConfig holds defaults applied to lookups that leave them unset.
type LookupConfig struct {
	DefaultMaxCost   float64  `yaml:"default_max_cost" mapstructure:"default_max_cost"`
	DefaultDataTypes []string `yaml:"default_data_types" mapstructure:"default_data_types"`
	RoutingFile      string   `yaml:"routing_file" mapstructure:"routing_file"`
	MonthlyBudgets   bool     `yaml:"monthly_budgets" mapstructure:"monthly_budgets"`
}

// ResilienceConfig tunes provider retries and circuit breakers.
type ResilienceConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("VEHICLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	rates := cost.DefaultRates()
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "vehicle-data.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("dvla.key", "")
	v.SetDefault("dvla.base_url", "https://driver-vehicle-licensing.api.gov.uk")
	v.SetDefault("dvla.timeout_secs", 10)
	v.SetDefault("dvla.rate_limit", 10)
	v.SetDefault("mot.key", "")
	v.SetDefault("mot.bearer_token", "")
	v.SetDefault("mot.base_url", "https://history.mot.api.gov.uk")
	v.SetDefault("mot.timeout_secs", 15)
	v.SetDefault("mot.rate_limit", 15)
	v.SetDefault("sws.key", "")
	v.SetDefault("sws.username", "")
	v.SetDefault("sws.base_url", "https://api.sws-haynes.example")
	v.SetDefault("sws.timeout_secs", 20)
	v.SetDefault("sws.rate_limit", 5)
	v.SetDefault("pricing.dvla.basic", rates.DVLA.Basic)
	v.SetDefault("pricing.mot.history", rates.MOT.History)
	v.SetDefault("pricing.sws.technical", rates.SWS.Technical)
	v.SetDefault("pricing.sws.image", rates.SWS.Image)
	v.SetDefault("pricing.sws.service", rates.SWS.Service)
	v.SetDefault("lookup.default_max_cost", 1.00)
	v.SetDefault("lookup.default_data_types", []string{"basic"})
	v.SetDefault("lookup.routing_file", "")
	v.SetDefault("lookup.monthly_budgets", true)
	v.SetDefault("resilience.max_attempts", 3)
	v.SetDefault("resilience.initial_backoff_ms", 500)
	v.SetDefault("resilience.max_backoff_ms", 5000)
	v.SetDefault("resilience.failure_threshold", 5)
	v.SetDefault("resilience.reset_timeout_secs", 60)

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

// Validate checks the settings a command needs. mode is "cli" for one-shot
// commands or "serve" for the HTTP API.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "cli":
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q must be sqlite or postgres", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	if c.Lookup.DefaultMaxCost < 0 {
		errs = append(errs, "lookup.default_max_cost must be >= 0")
	}
	p := c.Pricing
	for _, r := range []float64{p.DVLA.Basic, p.MOT.History, p.SWS.Technical, p.SWS.Image, p.SWS.Service} {
		if r < 0 {
			errs = append(errs, "pricing rates must be >= 0")
			break
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
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
