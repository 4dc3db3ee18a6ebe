package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Model      ModelConfig      `yaml:"model" mapstructure:"model"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// ModelConfig locates the model directory and its files.
type ModelConfig struct {
	Dir               string `yaml:"dir" mapstructure:"dir"`
	SettingsFile      string `yaml:"settings_file" mapstructure:"settings_file"`
	BrandDefaultsFile string `yaml:"brand_defaults_file" mapstructure:"brand_defaults_file"`
	CutoffFile        string `yaml:"cutoff_file" mapstructure:"cutoff_file"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port                int      `yaml:"port" mapstructure:"port"`
	CORSOrigins         []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	Record              bool     `yaml:"record" mapstructure:"record"`
	ShutdownTimeoutSecs int      `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
}

// BatchConfig configures batch scoring and benchmarks.
type BatchConfig struct {
	Workers int     `yaml:"workers" mapstructure:"workers"`
	QPS     float64 `yaml:"qps" mapstructure:"qps"`
	Format  string  `yaml:"format" mapstructure:"format"`
}

// FetchConfig configures model bundle downloads.
type FetchConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	FTPUser     string  `yaml:"ftp_user" mapstructure:"ftp_user"`
	FTPPassword string  `yaml:"ftp_password" mapstructure:"ftp_password"`
}

// MonitoringConfig configures health checks over stored results.
type MonitoringConfig struct {
	LookbackWindowHours      int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	CheckIntervalSecs        int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	MinSamples               int     `yaml:"min_samples" mapstructure:"min_samples"`
	ErrorRateThreshold       float64 `yaml:"error_rate_threshold" mapstructure:"error_rate_threshold"`
	PassThroughRateThreshold float64 `yaml:"pass_through_rate_threshold" mapstructure:"pass_through_rate_threshold"`
	WebhookURL               string  `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("saturn")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SATURN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("model.dir", "model")
	v.SetDefault("model.settings_file", "model_config.json")
	v.SetDefault("model.brand_defaults_file", "brand_default_svr.txt")
	v.SetDefault("model.cutoff_file", "adgroup_quantile_cutoff.txt")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "saturn.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.record", false)
	v.SetDefault("server.shutdown_timeout_secs", 10)
	v.SetDefault("batch.workers", 8)
	v.SetDefault("batch.qps", 0)
	v.SetDefault("batch.format", "table")
	v.SetDefault("fetch.base_url", "")
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.rate_limit", 5)
	v.SetDefault("fetch.ftp_user", "anonymous")
	v.SetDefault("fetch.ftp_password", "anonymous")
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.min_samples", 5)
	v.SetDefault("monitoring.error_rate_threshold", 0.05)
	v.SetDefault("monitoring.pass_through_rate_threshold", 0.5)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks the keys a command needs. Every problem is reported.
func (c *Config) Validate(mode string) error {
	var errs []string
	switch mode {
	case "run", "bench", "predict":
		errs = append(errs, c.validateModel()...)
	case "batch":
		errs = append(errs, c.validateModel()...)
		errs = append(errs, c.validateBatch()...)
	case "serve":
		errs = append(errs, c.validateModel()...)
		errs = append(errs, c.validateServer()...)
		if c.Server.Record {
			errs = append(errs, c.validateStore()...)
		}
	case "fetch":
		if c.Fetch.BaseURL == "" {
			errs = append(errs, "fetch.base_url is required")
		}
		if c.Fetch.MaxRetries < 0 {
			errs = append(errs, "fetch.max_retries must be >= 0")
		}
		if c.Fetch.RateLimit < 0 {
			errs = append(errs, "fetch.rate_limit must be >= 0")
		}
	case "status":
		errs = append(errs, c.validateStore()...)
		errs = append(errs, c.validateMonitoring()...)
	case "migrate":
		errs = append(errs, c.validateStore()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}
	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateModel() []string {
	if c.Model.Dir == "" {
		return []string{"model.dir is required"}
	}
	return nil
}

func (c *Config) validateBatch() []string {
	var errs []string
	if c.Batch.Workers < 1 || c.Batch.Workers > 256 {
		errs = append(errs, "batch.workers must be between 1 and 256")
	}
	if c.Batch.QPS < 0 {
		errs = append(errs, "batch.qps must be >= 0")
	}
	return errs
}

func (c *Config) validateServer() []string {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return []string{"server.port must be > 0 and <= 65535"}
	}
	return nil
}

func (c *Config) validateStore() []string {
	var errs []string
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q must be sqlite or postgres", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	return errs
}

func (c *Config) validateMonitoring() []string {
	var errs []string
	m := c.Monitoring
	if m.LookbackWindowHours <= 0 {
		errs = append(errs, "monitoring.lookback_window_hours must be > 0")
	}
	if m.ErrorRateThreshold < 0 || m.ErrorRateThreshold > 1 {
		errs = append(errs, "monitoring.error_rate_threshold must be between 0 and 1")
	}
	if m.PassThroughRateThreshold < 0 || m.PassThroughRateThreshold > 1 {
		errs = append(errs, "monitoring.pass_through_rate_threshold must be between 0 and 1")
	}
	return errs
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
