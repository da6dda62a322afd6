package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config carries the veritasord service settings.
type Config struct {
	ListenAddress     string  `toml:"ListenAddress"`
	DataDir           string  `toml:"DataDir"`
	Environment       string  `toml:"Environment"`
	LogFile           string  `toml:"LogFile"`
	RequestsPerMinute float64 `toml:"RequestsPerMinute"`
	RequestBurst      int     `toml:"RequestBurst"`
}

// Default returns the configuration used when no file exists yet.
func Default() *Config {
	return &Config{
		ListenAddress:     ":8645",
		DataDir:           "./data",
		Environment:       "local",
		RequestsPerMinute: 600,
		RequestBurst:      30,
	}
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddress) == "" {
		return fmt.Errorf("config: ListenAddress must not be empty")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir must not be empty")
	}
	if c.RequestsPerMinute < 0 {
		return fmt.Errorf("config: RequestsPerMinute must not be negative")
	}
	if c.RequestBurst < 0 {
		return fmt.Errorf("config: RequestBurst must not be negative")
	}
	return nil
}

func createDefault(path string) (*Config, error) {
	cfg := Default()
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
