// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	LLM     LLMConfig     `mapstructure:"llm" yaml:"llm"`
	Agent   AgentConfig   `mapstructure:"agent" yaml:"agent"`
}

// LoggerConfig controls the global zap logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"` // "console" or "json"
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig maps log levels to terminal colors for the console encoder.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig controls the Playwright-backed browser driver.
type BrowserConfig struct {
	Headless bool     `mapstructure:"headless" yaml:"headless"`
	Args     []string `mapstructure:"args" yaml:"args"`
	// InstallBrowsers triggers a Playwright browser install check before
	// launch. Disable in environments where browsers are pre-provisioned.
	InstallBrowsers bool          `mapstructure:"install_browsers" yaml:"install_browsers"`
	LaunchTimeout   time.Duration `mapstructure:"launch_timeout" yaml:"launch_timeout"`
	// NavigationTimeout bounds page loads; per-action waits are bounded by
	// each action's own timeout.
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
}

// LLMConfig controls the decision oracle transport.
type LLMConfig struct {
	APIKey        string            `mapstructure:"api_key" yaml:"api_key"`
	Model         string            `mapstructure:"model" yaml:"model"`
	Endpoint      string            `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout    time.Duration     `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature   float32           `mapstructure:"temperature" yaml:"temperature"`
	TopP          float32           `mapstructure:"top_p" yaml:"top_p"`
	TopK          int               `mapstructure:"top_k" yaml:"top_k"`
	MaxTokens     int               `mapstructure:"max_tokens" yaml:"max_tokens"`
	SafetyFilters map[string]string `mapstructure:"safety_filters" yaml:"safety_filters"`
}

// AgentConfig controls the planning loop.
type AgentConfig struct {
	// InteractionLogPath is the append-only oracle exchange log. The file is
	// truncated when a new planner instance starts.
	InteractionLogPath string `mapstructure:"interaction_log_path" yaml:"interaction_log_path"`
	// MaxDecodeRetries is how many times a planning state re-asks the oracle
	// after an unparseable response before the session aborts.
	MaxDecodeRetries int `mapstructure:"max_decode_retries" yaml:"max_decode_retries"`
	// HistoryLimit caps the conversation history sent to the oracle.
	// 0 keeps the full history (the default; growth is unbounded).
	HistoryLimit int `mapstructure:"history_limit" yaml:"history_limit"`
}

// SetDefaults registers the default configuration values on a viper
// instance. Called before reading any config file so partial files work.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "webpilot")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.install_browsers", true)
	v.SetDefault("browser.launch_timeout", 60*time.Second)
	v.SetDefault("browser.navigation_timeout", 30*time.Second)

	v.SetDefault("llm.model", "gemini-2.0-flash")
	v.SetDefault("llm.api_timeout", 90*time.Second)
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 8192)

	v.SetDefault("agent.interaction_log_path", "llm_interactions.json")
	v.SetDefault("agent.max_decode_retries", 1)
	v.SetDefault("agent.history_limit", 0)
}

// Load unmarshals the current viper state into a validated Config.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the runtime cannot work with.
func (c *Config) Validate() error {
	if c.Agent.InteractionLogPath == "" {
		return fmt.Errorf("agent.interaction_log_path must not be empty")
	}
	if c.Agent.MaxDecodeRetries < 0 {
		return fmt.Errorf("agent.max_decode_retries must not be negative")
	}
	if c.LLM.Model == "" && c.LLM.Endpoint == "" {
		return fmt.Errorf("llm.model or llm.endpoint must be set")
	}
	return nil
}
