// Package config loads server and CLI settings from an optional YAML file
// and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

var ErrBoardTooLarge = errors.New("board too large")

type Config struct {
	Addr           string        `yaml:"addr"`
	DBPath         string        `yaml:"db_path"`
	ReplayInterval time.Duration `yaml:"replay_interval"`
	DefaultSize    int           `yaml:"default_size"`
	DefaultMines   int           `yaml:"default_mines"`
	MaxSize        int           `yaml:"max_size"`
	LogLevel       string        `yaml:"log_level"`
	LogFormat      string        `yaml:"log_format"`
}

func Default() Config {
	return Config{
		Addr:           ":8080",
		DBPath:         "minesweeper.db",
		ReplayInterval: 500 * time.Millisecond,
		DefaultSize:    10,
		DefaultMines:   10,
		MaxSize:        100,
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// Load reads path when it is not empty, then applies environment
// overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("SWEEPER_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("SWEEPER_REPLAY_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SWEEPER_REPLAY_INTERVAL: %w", err)
		}
		c.ReplayInterval = d
	}
	if v := os.Getenv("SWEEPER_DEFAULT_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SWEEPER_DEFAULT_SIZE: %w", err)
		}
		c.DefaultSize = n
	}
	if v := os.Getenv("SWEEPER_DEFAULT_MINES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SWEEPER_DEFAULT_MINES: %w", err)
		}
		c.DefaultMines = n
	}
	if v := os.Getenv("SWEEPER_MAX_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SWEEPER_MAX_SIZE: %w", err)
		}
		c.MaxSize = n
	}
	if v := os.Getenv("SWEEPER_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("SWEEPER_LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	return nil
}

func (c Config) Validate() error {
	if c.ReplayInterval <= 0 {
		return fmt.Errorf("replay_interval must be positive, got %s", c.ReplayInterval)
	}
	if c.DefaultSize <= 0 || c.DefaultMines < 0 || c.DefaultMines >= c.DefaultSize*c.DefaultSize {
		return fmt.Errorf("default board %dx%d with %d mines is invalid", c.DefaultSize, c.DefaultSize, c.DefaultMines)
	}
	if c.MaxSize <= 0 {
		return fmt.Errorf("max_size must be positive, got %d", c.MaxSize)
	}
	if err := c.CheckSize(c.DefaultSize); err != nil {
		return err
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// CheckSize rejects boards larger than max_size.
func (c Config) CheckSize(size int) error {
	if size > c.MaxSize {
		return fmt.Errorf("%w: board size %d exceeds the maximum of %d", ErrBoardTooLarge, size, c.MaxSize)
	}
	return nil
}

// NewLogger builds the logger described by the config.
func (c Config) NewLogger() *logrus.Logger {
	log := logrus.New()
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		log.SetLevel(level)
	}
	if c.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}
