package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPrefix = "OPENAIAPP"

	// EnvAPIKey and EnvBaseURL are read without the prefix for compatibility
	// with the official SDKs.
	EnvAPIKey  = "OPENAI_API_KEY"
	EnvBaseURL = "OPENAI_API_BASE_URL"

	DefaultSystemPrompt = "You are a helpful assistant."
)

// Config holds application configuration
type Config struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"` // empty means the public OpenAI endpoint

	Chat       ChatConfig       `mapstructure:"chat"`
	Completion CompletionConfig `mapstructure:"completion"`
	Image      ImageConfig      `mapstructure:"image"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Log        LogConfig        `mapstructure:"log"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`

	Debug bool `mapstructure:"debug"`
}

// ChatConfig holds defaults for chat completions
type ChatConfig struct {
	Model        string  `mapstructure:"model"`
	MaxTokens    int     `mapstructure:"max_tokens"` // 0 leaves the limit to the service
	Temperature  float32 `mapstructure:"temperature"`
	SystemPrompt string  `mapstructure:"system_prompt"`
}

// CompletionConfig holds defaults for the legacy completions endpoint
type CompletionConfig struct {
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float32 `mapstructure:"temperature"`
}

type ImageConfig struct {
	Model   string `mapstructure:"model"`
	Size    string `mapstructure:"size"`
	Quality string `mapstructure:"quality"`
}

type EmbeddingConfig struct {
	Model string `mapstructure:"model"`
}

type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	Dir   string `mapstructure:"dir"`
}

// LedgerConfig controls the SQLite usage ledger. An empty Path disables it.
type LedgerConfig struct {
	Path string `mapstructure:"path"`
}

// TelemetryConfig controls OpenTelemetry export. Enabled gates both signals.
type TelemetryConfig struct {
	Enabled               bool `mapstructure:"enabled"`
	Traces                bool `mapstructure:"traces"`
	Metrics               bool `mapstructure:"metrics"`
	MetricIntervalSeconds int  `mapstructure:"metric_interval_seconds"`
}

// Load reads configuration from defaults, an optional config file, a .env file
// and the environment, in increasing order of priority. configPath may be empty.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, &LoadError{Op: "dotenv", Err: err}
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("openaiapp")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.openaiapp")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("api_key", envPrefix+"_API_KEY", EnvAPIKey)
	_ = v.BindEnv("base_url", envPrefix+"_BASE_URL", EnvBaseURL)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, &LoadError{Op: "read", Err: err}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &LoadError{Op: "unmarshal", Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration without consulting files or the environment
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config defaults do not decode: %v", err))
	}
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_key", "")
	v.SetDefault("base_url", "")

	v.SetDefault("chat.model", "gpt-3.5-turbo")
	v.SetDefault("chat.max_tokens", 0)
	v.SetDefault("chat.temperature", 0.7)
	v.SetDefault("chat.system_prompt", DefaultSystemPrompt)

	v.SetDefault("completion.model", "gpt-3.5-turbo-instruct")
	v.SetDefault("completion.max_tokens", 150)
	v.SetDefault("completion.temperature", 0.7)

	v.SetDefault("image.model", "dall-e-3")
	v.SetDefault("image.size", "1024x1024")
	v.SetDefault("image.quality", "standard")

	v.SetDefault("embedding.model", "text-embedding-ada-002")

	v.SetDefault("http.timeout_seconds", 60)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.dir", "logs")

	v.SetDefault("ledger.path", "openaiapp.db")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.traces", true)
	v.SetDefault("telemetry.metrics", true)
	v.SetDefault("telemetry.metric_interval_seconds", 10)
	v.SetDefault("debug", false)
}

// Validate reports every invalid field at once
func (c *Config) Validate() error {
	var problems []string

	if c.Chat.Model == "" {
		problems = append(problems, "chat.model is required")
	}
	if c.Chat.Temperature < 0 || c.Chat.Temperature > 2 {
		problems = append(problems, fmt.Sprintf("chat.temperature %.2f must be between 0 and 2", c.Chat.Temperature))
	}
	if c.Chat.MaxTokens < 0 {
		problems = append(problems, "chat.max_tokens must not be negative")
	}
	if c.Completion.Model == "" {
		problems = append(problems, "completion.model is required")
	}
	if c.Completion.MaxTokens <= 0 {
		problems = append(problems, "completion.max_tokens must be positive")
	}
	if c.Completion.Temperature < 0 || c.Completion.Temperature > 2 {
		problems = append(problems, fmt.Sprintf("completion.temperature %.2f must be between 0 and 2", c.Completion.Temperature))
	}
	if !oneOf(c.Image.Size, "256x256", "512x512", "1024x1024", "1792x1024", "1024x1792") {
		problems = append(problems, fmt.Sprintf("image.size %q is not supported", c.Image.Size))
	}
	if !oneOf(c.Image.Quality, "standard", "hd") {
		problems = append(problems, fmt.Sprintf("image.quality %q must be standard or hd", c.Image.Quality))
	}
	if c.Embedding.Model == "" {
		problems = append(problems, "embedding.model is required")
	}
	if c.HTTP.TimeoutSeconds < 0 {
		problems = append(problems, "http.timeout_seconds must not be negative")
	}
	if c.Telemetry.MetricIntervalSeconds <= 0 {
		problems = append(problems, "telemetry.metric_interval_seconds must be positive")
	}
	if !oneOf(c.Log.Level, "debug", "info", "warn", "error") {
		problems = append(problems, fmt.Sprintf("log.level %q must be one of: debug, info, warn, error", c.Log.Level))
	}

	if len(problems) > 0 {
		return &ValidationError{Errors: problems}
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
