package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config is the counter server configuration. Values come from an optional
// YAML file and are overridden by command-line flags.
type Config struct {
	Addr            string        `yaml:"addr"`
	Title           string        `yaml:"title"`
	DB              string        `yaml:"db"`
	NATSDir         string        `yaml:"nats_dir"`
	Dev             bool          `yaml:"dev"`
	LogLevel        string        `yaml:"log_level"`
	SessionLifetime time.Duration `yaml:"session_lifetime"`
}

func defaultConfig() Config {
	return Config{
		Addr:            ":7331",
		Title:           "Counter",
		DB:              "counter.db",
		NATSDir:         "./data/nats",
		LogLevel:        "info",
		SessionLifetime: 24 * time.Hour,
	}
}

var errHelp = errors.New("help requested")

func parseConfig(args []string, stderr io.Writer) (Config, error) {
	var (
		file string
		f    = defaultConfig()
	)
	fs := flag.NewFlagSet("counter", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&file, "config", "", "YAML config file")
	fs.StringVar(&f.Addr, "addr", f.Addr, "listen address")
	fs.StringVar(&f.Title, "title", f.Title, "document title")
	fs.StringVar(&f.DB, "db", f.DB, "SQLite session database; empty keeps sessions in memory")
	fs.StringVar(&f.NATSDir, "nats", f.NATSDir, "embedded NATS data directory; empty disables the shared counter")
	fs.BoolVar(&f.Dev, "dev", f.Dev, "console logging")
	fs.StringVar(&f.LogLevel, "log-level", f.LogLevel, "debug, info, warn or error")
	fs.DurationVar(&f.SessionLifetime, "session-lifetime", f.SessionLifetime, "session cookie lifetime")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return Config{}, errHelp
		}
		return Config{}, err
	}

	cfg := defaultConfig()
	if file != "" {
		if err := loadConfigFile(file, &cfg); err != nil {
			return Config{}, err
		}
	}
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "addr":
			cfg.Addr = f.Addr
		case "title":
			cfg.Title = f.Title
		case "db":
			cfg.DB = f.DB
		case "nats":
			cfg.NATSDir = f.NATSDir
		case "dev":
			cfg.Dev = f.Dev
		case "log-level":
			cfg.LogLevel = f.LogLevel
		case "session-lifetime":
			cfg.SessionLifetime = f.SessionLifetime
		}
	})
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		return Config{}, fmt.Errorf("log level %q: %w", cfg.LogLevel, err)
	}
	return cfg, nil
}

func loadConfigFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}
