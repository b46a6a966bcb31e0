// Package config loads the bot settings from an optional YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// DefaultThreshold is used when no threshold is configured.
const DefaultThreshold = 0.75

// Recognition providers.
const (
	ProviderOpenAI    = "openai"
	ProviderTesseract = "tesseract"
)

// Config is the effective configuration.
type Config struct {
	// Threshold is read once at startup and never changes afterwards.
	Threshold float64 `yaml:"-"`

	Recognition Recognition `yaml:"recognition"`
	OpenAI      OpenAI      `yaml:"openai"`
	Redis       Redis       `yaml:"redis"`
	Export      Export      `yaml:"export"`
	Log         Log         `yaml:"log"`
	Commands    Commands    `yaml:"commands"`
}

type Recognition struct {
	Provider  string        `yaml:"provider"`
	Timeout   time.Duration `yaml:"timeout"`
	Languages []string      `yaml:"languages"`
}

type OpenAI struct {
	APIKey         string        `yaml:"api_key"`
	BaseURL        string        `yaml:"base_url"`
	Model          string        `yaml:"model"`
	MaxRetries     int           `yaml:"max_retries"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
	RateLimit      float64       `yaml:"rate_limit"`
	Burst          int           `yaml:"burst"`
}

type Redis struct {
	Host         string        `yaml:"host"`
	Port         string        `yaml:"port"`
	Prefix       string        `yaml:"prefix"`
	ReplyTTL     time.Duration `yaml:"reply_ttl"`
	ProcessedTTL time.Duration `yaml:"processed_ttl"`
}

// Addr returns host:port.
func (r Redis) Addr() string { return r.Host + ":" + r.Port }

type Export struct {
	Dir string `yaml:"dir"`
}

type Log struct {
	// Dir receives per-start log files; empty logs to the console only.
	Dir      string `yaml:"dir"`
	TimeZone string `yaml:"timezone"`
}

// Commands are the chat commands driving the session.
type Commands struct {
	Reference string `yaml:"reference"`
	Start     string `yaml:"start"`
	End       string `yaml:"end"`
}

type fileConfig struct {
	Config    `yaml:",inline"`
	Threshold *float64 `yaml:"threshold"`
}

// Default returns the built-in configuration.
func Default() Config {
	cfg := Config{Threshold: DefaultThreshold}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Recognition.Provider == "" {
		c.Recognition.Provider = ProviderOpenAI
	}
	if c.Recognition.Timeout <= 0 {
		c.Recognition.Timeout = 90 * time.Second
	}
	if len(c.Recognition.Languages) == 0 {
		c.Recognition.Languages = []string{"eng"}
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o"
	}
	if c.OpenAI.MaxRetries <= 0 {
		c.OpenAI.MaxRetries = 3
	}
	// Three 25s attempts plus backoff fit in the 90s recognition timeout.
	if c.OpenAI.AttemptTimeout <= 0 {
		c.OpenAI.AttemptTimeout = 25 * time.Second
	}
	if c.OpenAI.RateLimit <= 0 {
		c.OpenAI.RateLimit = 3
	}
	if c.OpenAI.Burst <= 0 {
		c.OpenAI.Burst = 5
	}
	if c.Redis.Host == "" {
		c.Redis.Host = "localhost"
	}
	if c.Redis.Port == "" {
		c.Redis.Port = "6379"
	}
	if c.Log.TimeZone == "" {
		c.Log.TimeZone = "Asia/Kuala_Lumpur"
	}
	if c.Commands.Reference == "" {
		c.Commands.Reference = "/reference"
	}
	if c.Commands.Start == "" {
		c.Commands.Start = "/start"
	}
	if c.Commands.End == "" {
		c.Commands.End = "/end"
	}
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if math.IsNaN(c.Threshold) || c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("threshold %v outside [0,1]", c.Threshold)
	}
	switch c.Recognition.Provider {
	case ProviderOpenAI, ProviderTesseract:
	default:
		return fmt.Errorf("unknown recognition provider %q", c.Recognition.Provider)
	}
	if _, err := time.LoadLocation(c.Log.TimeZone); err != nil {
		return fmt.Errorf("log timezone: %w", err)
	}
	return nil
}

// Load reads path (a missing file means defaults), applies environment
// overrides and validates the result. getenv is usually os.Getenv.
func Load(path string, getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	file := fileConfig{Config: Default()}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &file); err != nil {
				return Config{}, fmt.Errorf("decode config: %w", err)
			}
		}
	}
	cfg := file.Config
	if file.Threshold != nil {
		cfg.Threshold = *file.Threshold
	}

	if err := applyEnv(&cfg, getenv); err != nil {
		return Config{}, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	setString := func(name string, dst *string) {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			*dst = v
		}
	}
	setString("OPENAI_API_KEY", &cfg.OpenAI.APIKey)
	setString("OPENAI_BASE_URL", &cfg.OpenAI.BaseURL)
	setString("REDIS_HOST", &cfg.Redis.Host)
	setString("REDIS_PORT", &cfg.Redis.Port)
	setString("LABEL_PROVIDER", &cfg.Recognition.Provider)
	setString("LABEL_EXPORT_DIR", &cfg.Export.Dir)
	setString("LABEL_LOG_DIR", &cfg.Log.Dir)

	if v := strings.TrimSpace(getenv("LABEL_THRESHOLD")); v != "" {
		threshold, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("LABEL_THRESHOLD: %w", err)
		}
		cfg.Threshold = threshold
	}
	if v := strings.TrimSpace(getenv("LABEL_RECOGNITION_TIMEOUT")); v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("LABEL_RECOGNITION_TIMEOUT: %w", err)
		}
		cfg.Recognition.Timeout = timeout
	}
	return nil
}
