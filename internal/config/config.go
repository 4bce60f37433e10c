package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/soomorita/macro-micro-linkage/internal/logging"
	"github.com/soomorita/macro-micro-linkage/internal/sarima"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	EStat    EStatConfig    `mapstructure:"estat"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Export   ExportConfig   `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// EStatConfig covers e-Stat API access.
type EStatConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	AppID          string        `mapstructure:"app_id"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// EngineConfig holds the forecasting engine defaults. Per-request overrides
// copy these into their own parameter set and never mutate them.
type EngineConfig struct {
	Horizon         int           `mapstructure:"horizon"`
	ConfidenceLevel float64       `mapstructure:"confidence_level"`
	SeasonalPeriod  int           `mapstructure:"seasonal_period"`
	DiagnosticLags  int           `mapstructure:"diagnostic_lags"`
	Alpha           float64       `mapstructure:"alpha"`
	MaxEvaluations  int           `mapstructure:"max_evaluations"`
	SearchTimeout   time.Duration `mapstructure:"search_timeout"`
	Bounds          sarima.Bounds `mapstructure:"bounds"`
}

// ServerConfig tunes the HTTP service.
type ServerConfig struct {
	Listen          string        `mapstructure:"listen"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity for the run archive.
// The archive is optional; an empty DSN disables persistence entirely.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LINKAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "linkage")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("estat.base_url", "https://api.e-stat.go.jp/rest/3.0/app/json")
	v.SetDefault("estat.request_timeout", "30s")
	v.SetDefault("estat.user_agent", "linkage/1.0")

	v.SetDefault("engine.horizon", 12)
	v.SetDefault("engine.confidence_level", 0.95)
	v.SetDefault("engine.seasonal_period", 12)
	v.SetDefault("engine.diagnostic_lags", 12)
	v.SetDefault("engine.alpha", 0.05)
	v.SetDefault("engine.max_evaluations", 60)
	v.SetDefault("engine.search_timeout", "30s")
	v.SetDefault("engine.bounds.max_p", 2)
	v.SetDefault("engine.bounds.max_d", 2)
	v.SetDefault("engine.bounds.max_q", 2)
	v.SetDefault("engine.bounds.max_sp", 1)
	v.SetDefault("engine.bounds.max_sd", 1)
	v.SetDefault("engine.bounds.max_sq", 1)

	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("export.max_data_points", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Engine.Horizon < 1 {
		return fmt.Errorf("engine.horizon must be at least 1")
	}
	if c.Engine.ConfidenceLevel <= 0 || c.Engine.ConfidenceLevel >= 1 {
		return fmt.Errorf("engine.confidence_level must be within (0,1)")
	}
	if c.Engine.SeasonalPeriod < 1 {
		return fmt.Errorf("engine.seasonal_period must be at least 1")
	}
	if c.Engine.Alpha <= 0 || c.Engine.Alpha >= 1 {
		return fmt.Errorf("engine.alpha must be within (0,1)")
	}
	if c.Engine.DiagnosticLags < 1 {
		return fmt.Errorf("engine.diagnostic_lags must be at least 1")
	}
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen must not be empty")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
