package config

import (
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	Server  ServerConfig
	Groq    GroqConfig
	Storage StorageConfig
	Chat    ChatConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port   int
	WebDir string
}

type GroqConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type StorageConfig struct {
	Backend   string // "memory" or "sqlite"
	DataDir   string
	UploadDir string
}

type ChatConfig struct {
	HistoryLimit    int
	DocContextChars int
	SystemDocChars  int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Port: 5000,
		},
		Groq: GroqConfig{
			BaseURL: "https://api.groq.com/openai/v1",
			Model:   "llama-3.3-70b-versatile",
		},
		Storage: StorageConfig{
			Backend:   "memory",
			DataDir:   dataDir,
			UploadDir: filepath.Join(dataDir, "uploads"),
		},
		Chat: ChatConfig{
			HistoryLimit:    20,
			DocContextChars: 5000,
			SystemDocChars:  1000,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON config file at
// $XDG_CONFIG_HOME/taxpilot/config.json and applies TAXPILOT_* environment
// overrides. The Groq API key must be provided via config or
// TAXPILOT_GROQ_API_KEY.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()), true)
}

// LoadClient is like Load but does not require the Groq API key. CLI commands
// that only talk to a running server use it.
func LoadClient() (Config, error) {
	return loadWith(newFileBackend(configFilePath()), false)
}

func loadWith(b ConfigBackend, requireKey bool) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if requireKey && cfg.Groq.APIKey == "" {
		return Config{}, fmt.Errorf("missing required config: Groq API key. Set it via environment variable TAXPILOT_GROQ_API_KEY")
	}

	if cfg.Storage.Backend != "memory" && cfg.Storage.Backend != "sqlite" {
		return Config{}, fmt.Errorf("invalid storage backend %q: must be memory or sqlite", cfg.Storage.Backend)
	}

	return cfg, nil
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "taxpilot-data"
		}
	}
	return filepath.Join(dir, "taxpilot")
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "taxpilot", "config.json")
}
