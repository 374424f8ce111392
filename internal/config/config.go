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
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	CoreLogic CoreLogicConfig `yaml:"corelogic" mapstructure:"corelogic"`
	Brivity   BrivityConfig   `yaml:"brivity" mapstructure:"brivity"`
	Maps      MapsConfig      `yaml:"maps" mapstructure:"maps"`
	Flow      FlowConfig      `yaml:"flow" mapstructure:"flow"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// ServerConfig configures the proxy HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// CoreLogicConfig holds CoreLogic client-credential settings.
type CoreLogicConfig struct {
	ClientKey    string  `yaml:"client_key" mapstructure:"client_key"`
	ClientSecret string  `yaml:"client_secret" mapstructure:"client_secret"`
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit    float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// Configured reports whether both client credentials are present.
func (c CoreLogicConfig) Configured() bool {
	return c.ClientKey != "" && c.ClientSecret != ""
}

// BrivityConfig holds the Brivity CRM token and default agent.
type BrivityConfig struct {
	APIToken       string `yaml:"api_token" mapstructure:"api_token"`
	PrimaryAgentID int    `yaml:"primary_agent_id" mapstructure:"primary_agent_id"`
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
}

// MapsConfig holds the public Google Maps key used by the browser.
type MapsConfig struct {
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// FlowConfig configures wizard behavior.
type FlowConfig struct {
	PromptDelaySecs int    `yaml:"prompt_delay_secs" mapstructure:"prompt_delay_secs"`
	DefaultCountry  string `yaml:"default_country" mapstructure:"default_country"`
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
	v.SetEnvPrefix("TPR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Secrets default to empty so their env bindings register.
	v.SetDefault("server.port", 8080)
	v.SetDefault("corelogic.client_key", "")
	v.SetDefault("corelogic.client_secret", "")
	v.SetDefault("brivity.api_token", "")
	v.SetDefault("brivity.primary_agent_id", 0)
	v.SetDefault("maps.api_key", "")
	v.SetDefault("corelogic.base_url", "https://api-prod.corelogic.com")
	v.SetDefault("corelogic.rate_limit", 0)
	v.SetDefault("brivity.base_url", "https://secure.brivity.com/api/v2")
	v.SetDefault("maps.base_url", "https://maps.googleapis.com")
	v.SetDefault("flow.prompt_delay_secs", 20)
	v.SetDefault("flow.default_country", "USA")
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

// Redacted returns a copy with secret values masked, for display.
func (c Config) Redacted() Config {
	out := c
	if out.CoreLogic.ClientKey != "" {
		out.CoreLogic.ClientKey = "***"
	}
	if out.CoreLogic.ClientSecret != "" {
		out.CoreLogic.ClientSecret = "***"
	}
	if out.Brivity.APIToken != "" {
		out.Brivity.APIToken = "***"
	}
	return out
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
