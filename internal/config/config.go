// Package config loads LingoLoop settings from config.yaml, .env and the
// process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/lingoloop/lingoloop/internal/apperr"
	"github.com/lingoloop/lingoloop/internal/llm"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	WhatsApp   WhatsAppConfig   `mapstructure:"whatsapp"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Session    SessionConfig    `mapstructure:"session"`
	Log        LogConfig        `mapstructure:"log"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Curriculum CurriculumConfig `mapstructure:"curriculum"`

	v *viper.Viper
}

type ServerConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	Workers            int    `mapstructure:"workers"`
	QueueSize          int    `mapstructure:"queue_size"`
	RateLimitPerMinute int    `mapstructure:"rate_limit_per_minute"`
}

// Addr returns host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type WhatsAppConfig struct {
	VerifyToken       string `mapstructure:"verify_token"`
	TwilioAccountSID  string `mapstructure:"twilio_account_sid"`
	TwilioAuthToken   string `mapstructure:"twilio_auth_token"`
	TwilioPhoneNumber string `mapstructure:"twilio_whatsapp_number"`
}

// HasTwilio reports whether outbound Twilio credentials are complete.
func (w WhatsAppConfig) HasTwilio() bool {
	return w.TwilioAccountSID != "" && w.TwilioAuthToken != "" && w.TwilioPhoneNumber != ""
}

type DatabaseConfig struct {
	// URL is a SQLite path or a postgres:// URL. Empty means the default
	// SQLite file under the XDG data directory.
	URL string `mapstructure:"url"`
}

type RedisConfig struct {
	// URL enables the Redis session store, e.g. redis://localhost:6379/0.
	URL string `mapstructure:"url"`
}

type SessionConfig struct {
	TTL        time.Duration `mapstructure:"ttl"`
	MaxHistory int           `mapstructure:"max_history"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

type LLMConfig struct {
	Provider        string        `mapstructure:"provider"`
	OpenAIAPIKey    string        `mapstructure:"openai_api_key"`
	OpenAIModel     string        `mapstructure:"openai_model"`
	OpenAIBaseURL   string        `mapstructure:"openai_base_url"`
	AnthropicAPIKey string        `mapstructure:"anthropic_api_key"`
	AnthropicModel  string        `mapstructure:"anthropic_model"`
	GeminiAPIKey    string        `mapstructure:"gemini_api_key"`
	GeminiModel     string        `mapstructure:"gemini_model"`
	OpenRouterKey   string        `mapstructure:"openrouter_api_key"`
	OpenRouterModel string        `mapstructure:"openrouter_model"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RateLimit       int           `mapstructure:"rate_limit_per_minute"`
}

type CurriculumConfig struct {
	BatchSize   int `mapstructure:"batch_size"`
	Variations  int `mapstructure:"variations"`
	Concurrency int `mapstructure:"concurrency"`
}

// envBindings maps config keys to the environment variables that set them.
var envBindings = map[string]string{
	"server.host":                     "HOST",
	"server.port":                     "PORT",
	"server.workers":                  "WORKERS",
	"server.queue_size":               "QUEUE_SIZE",
	"server.rate_limit_per_minute":    "RATE_LIMIT_PER_MINUTE",
	"whatsapp.verify_token":           "VERIFY_TOKEN",
	"whatsapp.twilio_account_sid":     "TWILIO_ACCOUNT_SID",
	"whatsapp.twilio_auth_token":      "TWILIO_AUTH_TOKEN",
	"whatsapp.twilio_whatsapp_number": "TWILIO_WHATSAPP_NUMBER",
	"database.url":                    "DATABASE_URL",
	"redis.url":                       "REDIS_URL",
	"session.ttl":                     "SESSION_TTL",
	"session.max_history":             "SESSION_MAX_HISTORY",
	"log.level":                       "LOG_LEVEL",
	"log.file":                        "LOG_FILE",
	"tracing.enabled":                 "TRACING_ENABLED",
	"tracing.endpoint":                "TRACING_ENDPOINT",
	"tracing.service_name":            "TRACING_SERVICE_NAME",
	"llm.provider":                    "LLM_PROVIDER",
	"llm.openai_api_key":              "OPENAI_API_KEY",
	"llm.openai_model":                "OPENAI_MODEL",
	"llm.openai_base_url":             "OPENAI_BASE_URL",
	"llm.anthropic_api_key":           "ANTHROPIC_API_KEY",
	"llm.anthropic_model":             "ANTHROPIC_MODEL",
	"llm.gemini_api_key":              "GEMINI_API_KEY",
	"llm.gemini_model":                "GEMINI_MODEL",
	"llm.openrouter_api_key":          "OPENROUTER_API_KEY",
	"llm.openrouter_model":            "OPENROUTER_MODEL",
	"llm.timeout":                     "LLM_TIMEOUT",
	"llm.rate_limit_per_minute":       "LLM_RATE_LIMIT_PER_MINUTE",
	"curriculum.batch_size":           "CURRICULUM_BATCH_SIZE",
	"curriculum.variations":           "CURRICULUM_VARIATIONS",
	"curriculum.concurrency":          "CURRICULUM_CONCURRENCY",
}

func setDefaults(v *viper.Viper) {
	llmDefaults := llm.DefaultConfig()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.workers", 4)
	v.SetDefault("server.queue_size", 100)
	v.SetDefault("server.rate_limit_per_minute", 20)
	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("session.max_history", 20)
	v.SetDefault("log.level", "info")
	v.SetDefault("tracing.endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("tracing.service_name", "lingoloop")
	v.SetDefault("llm.openai_model", llmDefaults.OpenAI.Model)
	v.SetDefault("llm.anthropic_model", llmDefaults.Anthropic.Model)
	v.SetDefault("llm.gemini_model", llmDefaults.Gemini.Model)
	v.SetDefault("llm.openrouter_model", llmDefaults.OpenRouter.Model)
	v.SetDefault("llm.timeout", llmDefaults.Timeout)
	v.SetDefault("curriculum.batch_size", 5)
	v.SetDefault("curriculum.variations", 10)
	v.SetDefault("curriculum.concurrency", 3)
}

// Load reads configuration. A .env file in the working directory is
// loaded into the environment first (existing variables win). When path is
// empty, config.yaml is looked up in the working directory and may be
// absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, apperr.New(apperr.ErrConfiguration, "load .env", err)
	}

	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, apperr.New(apperr.ErrConfiguration, "bind env "+env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, apperr.New(apperr.ErrConfiguration, "read config", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperr.New(apperr.ErrConfiguration, "decode config", err)
	}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.v = v
	return &cfg, nil
}

// Validate reports every missing or out-of-range value needed to serve the
// webhook.
func (c *Config) Validate() error {
	var problems []string
	if c.WhatsApp.VerifyToken == "" {
		problems = append(problems, "VERIFY_TOKEN is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("PORT %d is out of range", c.Server.Port))
	}
	if c.Server.Workers <= 0 {
		problems = append(problems, "WORKERS must be positive")
	}
	if c.Server.QueueSize <= 0 {
		problems = append(problems, "QUEUE_SIZE must be positive")
	}
	if c.Session.TTL <= 0 {
		problems = append(problems, "SESSION_TTL must be positive")
	}
	if c.LLM.Provider != "" {
		if err := c.LLMConfig().Validate(); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if len(problems) > 0 {
		return apperr.Newf(apperr.ErrConfiguration, "validate config", "%s", strings.Join(problems, "; "))
	}
	return nil
}

// LLMConfig converts the llm section into provider configuration. When no
// provider is named the first one with an API key is chosen, leaving
// Provider empty if there is none.
func (c *Config) LLMConfig() llm.Config {
	cfg := llm.DefaultConfig()
	cfg.Provider = c.LLM.Provider
	cfg.OpenAI = llm.OpenAIConfig{APIKey: c.LLM.OpenAIAPIKey, Model: c.LLM.OpenAIModel, BaseURL: c.LLM.OpenAIBaseURL}
	cfg.Anthropic = llm.AnthropicConfig{APIKey: c.LLM.AnthropicAPIKey, Model: c.LLM.AnthropicModel}
	cfg.Gemini = llm.GeminiConfig{APIKey: c.LLM.GeminiAPIKey, Model: c.LLM.GeminiModel}
	cfg.OpenRouter = llm.OpenRouterConfig{APIKey: c.LLM.OpenRouterKey, Model: c.LLM.OpenRouterModel}
	if c.LLM.Timeout > 0 {
		cfg.Timeout = c.LLM.Timeout
	}
	cfg.RateLimitPerMinute = c.LLM.RateLimit
	cfg.Detect()
	return cfg
}

// HasLLM reports whether some LLM provider is configured.
func (c *Config) HasLLM() bool {
	return c.LLMConfig().Provider != ""
}

// Watch calls onChange with the re-read configuration whenever the config
// file changes. It does nothing when no config file was loaded.
func (c *Config) Watch(onChange func(*Config)) bool {
	if c.v == nil || c.v.ConfigFileUsed() == "" {
		return false
	}
	c.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		next, err := decode(c.v)
		if err != nil {
			return
		}
		onChange(next)
	})
	c.v.WatchConfig()
	return true
}
