package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// EnvPath overrides the config file location.
const EnvPath = "AGENTCLI_CONFIG"

type Config struct {
	Server  ServerConfig  `toml:"server"`
	Prompt  PromptConfig  `toml:"prompt"`
	Output  OutputConfig  `toml:"output"`
	History HistoryConfig `toml:"history"`
	Trace   TraceConfig   `toml:"trace"`
	Log     LogConfig     `toml:"log"`
}

type ServerConfig struct {
	URL           string        `toml:"url"`
	HeaderTimeout time.Duration `toml:"header_timeout"`
}

type PromptConfig struct {
	Message string   `toml:"message"`
	Tools   []string `toml:"tools"`
}

type OutputConfig struct {
	Color bool `toml:"color"`
}

type HistoryConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type TraceConfig struct {
	Enabled  bool   `toml:"enabled"`
	Endpoint string `toml:"endpoint"`
	URLPath  string `toml:"url_path"`
	APIKey   string `toml:"api_key"`
	Insecure bool   `toml:"insecure"`
}

type LogConfig struct {
	Format string `toml:"format"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL:           "http://localhost:8080",
			HeaderTimeout: 30 * time.Second,
		},
		Prompt: PromptConfig{
			Message: "What is 15 * 3?",
			Tools:   []string{"calculator"},
		},
		Output: OutputConfig{
			Color: true,
		},
		History: HistoryConfig{
			Path: defaultHistoryPath(),
		},
		Log: LogConfig{
			Format: "json",
		},
	}
}

// Load decodes the config file, if there is one, over the defaults.
func Load() (*Config, error) {
	return LoadFile(Path())
}

func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// WriteFile encodes cfg as TOML at path, creating parent directories. An
// existing file is only replaced when overwrite is set.
func WriteFile(path string, cfg *Config, overwrite bool) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags |= os.O_EXCL
	}
	// the file may carry a trace API key
	f, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s already exists", path)
		}
		return err
	}

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return f.Close()
}

func (c *Config) validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("server.url must not be empty")
	}
	if c.Server.HeaderTimeout < 0 {
		return fmt.Errorf("server.header_timeout must not be negative")
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text, got %q", c.Log.Format)
	}
	return nil
}

// Path returns the config file location.
func Path() string {
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	dir, _ := os.UserConfigDir()
	return filepath.Join(dir, "agentcli", "config.toml")
}

func defaultHistoryPath() string {
	return filepath.Join("~", ".local", "share", "agentcli", "history.db")
}
