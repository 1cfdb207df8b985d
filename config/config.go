// Package config loads the service configuration from JSON or TOML and the
// environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

var ErrMissingAPIKey = errors.New("missing api key")

// Environment variables consulted when the file leaves a key empty.
const (
	EnvOpenAIKey = "OPENAI_API_KEY"
	EnvGoogleKey = "GOOGLE_API_KEY"
	EnvImageKey  = "IMAGE_API_KEY"
)

// Config is the whole service configuration.
type Config struct {
	ServerAddr string       `json:"server_addr,omitempty" toml:"server_addr"`
	OutputDir  string       `json:"output_dir,omitempty" toml:"output_dir"`
	Verbose    bool         `json:"verbose,omitempty" toml:"verbose"`
	LLM        *LLMConfig   `json:"llm,omitempty" toml:"llm"`
	Image      *ImageConfig `json:"image,omitempty" toml:"image"`
}

// LLMConfig selects the text model.
type LLMConfig struct {
	Provider    string  `json:"provider,omitempty" toml:"provider"`
	Model       string  `json:"model,omitempty" toml:"model"`
	APIKey      string  `json:"api_key,omitempty" toml:"api_key"`
	BaseURL     string  `json:"base_url,omitempty" toml:"base_url"`
	Temperature float64 `json:"temperature,omitempty" toml:"temperature"`
}

// ImageConfig configures the image API and the pacing of requests.
type ImageConfig struct {
	// Disabled runs without an image provider; only style "none" requests succeed.
	Disabled     bool     `json:"disabled,omitempty" toml:"disabled"`
	APIKey       string   `json:"api_key,omitempty" toml:"api_key"`
	BaseURL      string   `json:"base_url,omitempty" toml:"base_url"`
	Model        string   `json:"model,omitempty" toml:"model"`
	Width        int      `json:"width,omitempty" toml:"width"`
	Height       int      `json:"height,omitempty" toml:"height"`
	PollInterval Duration `json:"poll_interval,omitempty" toml:"poll_interval"`
	MaxWait      Duration `json:"max_wait,omitempty" toml:"max_wait"`
	Delay        Duration `json:"delay,omitempty" toml:"delay"`
}

// Duration reads "500ms" / "5m" style strings.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Defaults.
const (
	DefaultServerAddr   = ":8000"
	DefaultProvider     = "openai"
	DefaultTemperature  = 0.7
	DefaultPollInterval = Duration(500 * time.Millisecond)
	DefaultMaxWait      = Duration(5 * time.Minute)
	DefaultDelay        = Duration(time.Second)
)

// Load reads path (JSON, or TOML for *.toml) and fills the gaps from the
// environment and defaults. An empty path uses environment and defaults only.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if strings.EqualFold(filepath.Ext(path), ".toml") {
			err = toml.Unmarshal(data, &cfg)
		} else {
			err = json.Unmarshal(data, &cfg)
		}
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	cfg.applyDefaults()
	cfg.applyEnv(os.Getenv)
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ServerAddr == "" {
		c.ServerAddr = DefaultServerAddr
	}
	if c.OutputDir == "" {
		c.OutputDir = os.TempDir()
	}
	if c.LLM == nil {
		c.LLM = &LLMConfig{}
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = DefaultProvider
	}
	c.LLM.Provider = strings.ToLower(c.LLM.Provider)
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = DefaultTemperature
	}
	if c.Image == nil {
		c.Image = &ImageConfig{}
	}
	if c.Image.PollInterval == 0 {
		c.Image.PollInterval = DefaultPollInterval
	}
	if c.Image.MaxWait == 0 {
		c.Image.MaxWait = DefaultMaxWait
	}
	if c.Image.Delay == 0 {
		c.Image.Delay = DefaultDelay
	}
}

func (c *Config) applyEnv(getenv func(string) string) {
	if c.LLM.APIKey == "" {
		switch c.LLM.Provider {
		case "gemini":
			c.LLM.APIKey = getenv(EnvGoogleKey)
		case "openai", "deepseek":
			c.LLM.APIKey = getenv(EnvOpenAIKey)
		}
	}
	if c.Image.APIKey == "" {
		c.Image.APIKey = getenv(EnvImageKey)
	}
}

// Validate reports configuration that would make every run fail.
func (c Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "gemini", "mock":
	case "deepseek":
		if c.LLM.BaseURL == "" {
			return errors.New("llm provider deepseek requires base_url (OpenAI-compatible endpoint)")
		}
	default:
		return fmt.Errorf("llm provider %s not supported", c.LLM.Provider)
	}
	if c.LLM.Provider != "mock" && c.LLM.APIKey == "" {
		return fmt.Errorf("%w for llm provider %s", ErrMissingAPIKey, c.LLM.Provider)
	}
	if !c.Image.Disabled && c.Image.APIKey == "" {
		return fmt.Errorf("%w for image generation; set image.api_key or %s", ErrMissingAPIKey, EnvImageKey)
	}
	return nil
}
