package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Sources   SourcesConfig   `yaml:"sources" mapstructure:"sources"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run and checkpoint store.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key          string      `yaml:"key" mapstructure:"key"`
	BaseURL      string      `yaml:"base_url" mapstructure:"base_url"`
	Model        string      `yaml:"model" mapstructure:"model"`
	MaxTokens    int64       `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature  float64     `yaml:"temperature" mapstructure:"temperature"`
	RateLimitRPS float64     `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateBurst    int         `yaml:"rate_burst" mapstructure:"rate_burst"`
	Retry        RetryConfig `yaml:"retry" mapstructure:"retry"`
}

// RetryConfig configures retries of transient capability errors.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// SourcesConfig locates the input tables. Paths may be local or ftp:// URLs.
type SourcesConfig struct {
	Transactions   string   `yaml:"transactions" mapstructure:"transactions"`
	Demographics   string   `yaml:"demographics" mapstructure:"demographics"`
	Income         string   `yaml:"income" mapstructure:"income"`
	Holdings       string   `yaml:"holdings" mapstructure:"holdings"`
	Catalogue      string   `yaml:"catalogue" mapstructure:"catalogue"`
	IDColumn       string   `yaml:"id_column" mapstructure:"id_column"`
	Charset        string   `yaml:"charset" mapstructure:"charset"`
	Sheet          string   `yaml:"sheet" mapstructure:"sheet"`
	DefaultIDs     []string `yaml:"default_ids" mapstructure:"default_ids"`
	ColumnsFile    string   `yaml:"columns_file" mapstructure:"columns_file"`
	FTPTimeoutSecs int      `yaml:"ftp_timeout_secs" mapstructure:"ftp_timeout_secs"`
}

// PipelineConfig configures stage behavior.
type PipelineConfig struct {
	CapabilityTimeoutSecs int    `yaml:"capability_timeout_secs" mapstructure:"capability_timeout_secs"`
	ScopePolicy           string `yaml:"scope_policy" mapstructure:"scope_policy"`
	RenderEnumerate       string `yaml:"render_enumerate" mapstructure:"render_enumerate"`
	Checkpoint            bool   `yaml:"checkpoint" mapstructure:"checkpoint"`
	ExtractIDs            bool   `yaml:"extract_ids" mapstructure:"extract_ids"`
}

// CapabilityTimeout returns the per-call capability deadline.
func (p PipelineConfig) CapabilityTimeout() time.Duration {
	return time.Duration(p.CapabilityTimeoutSecs) * time.Second
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
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
	v.SetEnvPrefix("WEALTH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "wealth.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	// Empty defaults register keys so env-only values are unmarshalled.
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("sources.charset", "")
	v.SetDefault("sources.sheet", "")
	v.SetDefault("sources.columns_file", "")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.temperature", 0.0)
	v.SetDefault("anthropic.rate_limit_rps", 2)
	v.SetDefault("anthropic.rate_burst", 1)
	v.SetDefault("anthropic.retry.max_attempts", 3)
	v.SetDefault("anthropic.retry.initial_backoff_ms", 500)
	v.SetDefault("anthropic.retry.max_backoff_ms", 10000)
	v.SetDefault("sources.transactions", "data/ftr_txns_hackathon.csv")
	v.SetDefault("sources.demographics", "data/customer_master_hackathon.xlsx")
	v.SetDefault("sources.income", "data/income_hackathon.xlsx")
	v.SetDefault("sources.holdings", "data/cc_master_hackathon.xlsx")
	v.SetDefault("sources.catalogue", "data/credit_cards.txt")
	v.SetDefault("sources.id_column", "cif_id_mask")
	v.SetDefault("sources.default_ids", []string{"789012"})
	v.SetDefault("sources.ftp_timeout_secs", 30)
	v.SetDefault("pipeline.capability_timeout_secs", 60)
	v.SetDefault("pipeline.scope_policy", "filter")
	v.SetDefault("pipeline.render_enumerate", "targets")
	v.SetDefault("pipeline.checkpoint", true)
	v.SetDefault("pipeline.extract_ids", true)
	v.SetDefault("server.port", 8080)
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

// Validate checks the settings a command mode depends on.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "run", "resume":
		errs = append(errs, c.validateAnalysis()...)
	case "serve":
		errs = append(errs, c.validateAnalysis()...)
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
	case "runs":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}
	errs = append(errs, c.validateStore()...)

	if len(errs) > 0 {
		return eris.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateAnalysis() []string {
	var errs []string
	if c.Anthropic.Key == "" {
		errs = append(errs, "anthropic.key is required")
	}
	for name, p := range map[string]string{
		"sources.transactions": c.Sources.Transactions,
		"sources.demographics": c.Sources.Demographics,
		"sources.income":       c.Sources.Income,
		"sources.holdings":     c.Sources.Holdings,
	} {
		if p == "" {
			errs = append(errs, name+" is required")
		}
	}
	if c.Anthropic.Temperature < 0 || c.Anthropic.Temperature > 1 {
		errs = append(errs, "anthropic.temperature must be between 0 and 1")
	}
	if c.Pipeline.CapabilityTimeoutSecs <= 0 {
		errs = append(errs, "pipeline.capability_timeout_secs must be > 0")
	}
	switch c.Pipeline.ScopePolicy {
	case "filter", "strict", "off":
	default:
		errs = append(errs, fmt.Sprintf("pipeline.scope_policy %q must be one of filter, strict, off", c.Pipeline.ScopePolicy))
	}
	switch c.Pipeline.RenderEnumerate {
	case "targets", "demographic":
	default:
		errs = append(errs, fmt.Sprintf("pipeline.render_enumerate %q must be targets or demographic", c.Pipeline.RenderEnumerate))
	}
	return errs
}

func (c *Config) validateStore() []string {
	switch c.Store.Driver {
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			return []string{"store.database_url is required"}
		}
	case "none":
	default:
		return []string{fmt.Sprintf("store.driver %q must be sqlite, postgres or none", c.Store.Driver)}
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
