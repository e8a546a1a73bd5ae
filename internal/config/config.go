package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Database DatabaseConfig
	LLM      LLMConfig
	Chat     ChatConfig
	Server   ServerConfig
	Log      LogConfig
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string
}

// LLMConfig holds completion provider settings. BaseURL points the openai
// provider at a compatible local server such as LM Studio.
type LLMConfig struct {
	Provider  string
	BaseURL   string        `mapstructure:"base_url"`
	APIKeyEnv string        `mapstructure:"api_key_env"`
	APIKey    string        `mapstructure:"api_key"`
	Model     string
	Timeout   time.Duration
}

// ChatConfig tunes the assistant and its transports.
type ChatConfig struct {
	HistoryLimit    int `mapstructure:"history_limit"`
	MaxTransactions int `mapstructure:"max_transactions"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string
	Pretty bool
}

// ResolvedAPIKey returns the inline key, falling back to the environment
// variable named by APIKeyEnv.
func (c LLMConfig) ResolvedAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}

// Path returns the config file location: LEDGERCHAT_CONFIG or the default
// under $HOME/.config/ledgerchat.
func Path() string {
	if p := os.Getenv("LEDGERCHAT_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(os.Getenv("HOME"), ".config", "ledgerchat", "config.toml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "ledgerchat", "ledgerchat.db"))
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.api_key_env", "OPENAI_API_KEY")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("chat.history_limit", 10)
	v.SetDefault("chat.max_transactions", 20)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)
}

// Default returns the built-in configuration without reading any file.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var c Config
	_ = v.Unmarshal(&c)
	return c
}

// Load reads configuration from file and env. Env var overrides use prefix LEDGERCHAT_.
// An explicit file path takes precedence over LEDGERCHAT_CONFIG.
func Load(file string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")

	switch {
	case file != "":
		v.SetConfigFile(file)
	case os.Getenv("LEDGERCHAT_CONFIG") != "":
		v.SetConfigFile(os.Getenv("LEDGERCHAT_CONFIG"))
	default:
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "ledgerchat"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("LEDGERCHAT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// a missing file means defaults; a broken one is an error
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.Chat.HistoryLimit <= 0 {
		c.Chat.HistoryLimit = 10
	}
	if c.Chat.MaxTransactions <= 0 {
		c.Chat.MaxTransactions = 20
	}
	return c, nil
}

// Save writes the provided config to path (or Path() when empty), creating
// the config directory if needed. The API key is stored in plain text;
// prefer api_key_env.
func Save(path string, cfg Config) error {
	if path == "" {
		path = Path()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("database.path", cfg.Database.Path)
	v.Set("llm.provider", cfg.LLM.Provider)
	v.Set("llm.base_url", cfg.LLM.BaseURL)
	v.Set("llm.api_key_env", cfg.LLM.APIKeyEnv)
	v.Set("llm.api_key", cfg.LLM.APIKey)
	v.Set("llm.model", cfg.LLM.Model)
	v.Set("llm.timeout", cfg.LLM.Timeout.String())
	v.Set("chat.history_limit", cfg.Chat.HistoryLimit)
	v.Set("chat.max_transactions", cfg.Chat.MaxTransactions)
	v.Set("server.addr", cfg.Server.Addr)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.pretty", cfg.Log.Pretty)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
