package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/tranmd/whaleaudit/internal/core"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Market  MarketConfig  `mapstructure:"market"`
	Audit   AuditConfig   `mapstructure:"audit"`
	History HistoryConfig `mapstructure:"history"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Mode        string `mapstructure:"mode"`
	APIKey      string `mapstructure:"api_key"`
	JobTTLHours int    `mapstructure:"job_ttl_hours"`
	MaxJobs     int    `mapstructure:"max_jobs"`
}

// MarketConfig selects the exchanges used to fetch forward candles.
type MarketConfig struct {
	Providers []string `mapstructure:"providers"` // "binance", "okx"; tried in order
	Interval  string   `mapstructure:"interval"`
}

// AuditConfig governs when and how snapshots are replayed against
// realized candles.
type AuditConfig struct {
	// MinAge is how old a snapshot must be before an audit makes sense.
	MinAge time.Duration `mapstructure:"min_age"`
	// SweepInterval is the cadence of the background pass that audits
	// every eligible snapshot.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	// MaxBars caps how many forward candles a single audit fetches.
	MaxBars int `mapstructure:"max_bars"`
	// AutoSweep enables the background pass.
	AutoSweep bool `mapstructure:"auto_sweep"`
}

type HistoryConfig struct {
	MaxEntries int           `mapstructure:"max_entries"`
	MaxAge     time.Duration `mapstructure:"max_age"`
	Archive    ArchiveConfig `mapstructure:"archive"`
}

type ArchiveConfig struct {
	Type string   `mapstructure:"type"` // "localfs" or "s3"
	Path string   `mapstructure:"path"` // for localfs
	S3   S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

type LLMConfig struct {
	Provider string       `mapstructure:"provider"`
	Claude   ClaudeConfig `mapstructure:"claude"`
	OpenAI   OpenAIConfig `mapstructure:"openai"`
	Ollama   OllamaConfig `mapstructure:"ollama"`
}

type ClaudeConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type OllamaConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Model    string `mapstructure:"model"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand ${VAR} references in string values so secrets stay out of
	// the config file.
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Defaults returns a config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			Mode:        "release",
			JobTTLHours: 1,
			MaxJobs:     100,
		},
		Market: MarketConfig{
			Providers: []string{"binance"},
			Interval:  "1h",
		},
		Audit: AuditConfig{
			MinAge:        60 * time.Minute,
			SweepInterval: 15 * time.Minute,
			MaxBars:       100,
			AutoSweep:     true,
		},
		History: HistoryConfig{
			MaxEntries: 30,
			MaxAge:     48 * time.Hour,
			Archive: ArchiveConfig{
				Type: "localfs",
				Path: "data/archive",
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}

	if c.Audit.MinAge < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("audit min_age cannot be negative, got %s", c.Audit.MinAge))
	}
	if c.Audit.MaxBars < 2 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("audit max_bars must be at least 2, got %d", c.Audit.MaxBars))
	}

	if c.History.MaxEntries < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("history max_entries must be positive, got %d", c.History.MaxEntries))
	}
	if c.History.MaxAge <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("history max_age must be positive, got %s", c.History.MaxAge))
	}

	for _, p := range c.Market.Providers {
		switch p {
		case "binance", "okx":
		default:
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("unknown market provider %q", p))
		}
	}

	switch c.History.Archive.Type {
	case "", "localfs":
	case "s3":
		if c.History.Archive.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("s3 bucket required when archive type is s3"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown archive type %q", c.History.Archive.Type))
	}

	// LLM validation - if provider set, check config exists
	if c.LLM.Provider != "" {
		switch c.LLM.Provider {
		case "claude":
			if c.LLM.Claude.APIKey == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("claude api_key required when provider is claude"))
			}
		case "openai":
			if c.LLM.OpenAI.APIKey == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("openai api_key required when provider is openai"))
			}
		case "ollama":
			if c.LLM.Ollama.Endpoint == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("ollama endpoint required when provider is ollama"))
			}
		default:
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("unknown LLM provider %q", c.LLM.Provider))
		}
	}

	return nil
}
