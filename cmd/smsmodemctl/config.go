package main

import (
	"flag"
	"os"
	"strconv"
)

// Config holds the CLI's global configuration: which serial port to dial
// and how to log, independent of which subcommand runs.
type Config struct {
	SerialPort string
	BaudRate   int
	LogLevel   string
	BindAddress string
}

// ConfigOption mutates a Config; options are applied in order so later
// sources (flags) override earlier ones (defaults, environment).
type ConfigOption func(*Config) error

// LoadConfig builds a Config by applying opts in order.
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}
	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}
	return config, nil
}

// WithDefaults applies baseline configuration values.
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.SerialPort = "/dev/ttyUSB0"
		c.BaudRate = 115200
		c.LogLevel = "info"
		c.BindAddress = "0.0.0.0:8080"
		return nil
	}
}

// WithEnv overlays configuration from environment variables.
func WithEnv() ConfigOption {
	return func(c *Config) error {
		if v := os.Getenv("SERIAL_PORT"); v != "" {
			c.SerialPort = v
		}
		if v := os.Getenv("BAUD_RATE"); v != "" {
			if b, err := strconv.Atoi(v); err == nil {
				c.BaudRate = b
			}
		}
		if v := os.Getenv("LOG_LEVEL"); v != "" {
			c.LogLevel = v
		}
		if v := os.Getenv("BIND_ADDRESS"); v != "" {
			c.BindAddress = v
		}
		return nil
	}
}

// WithFlags overlays configuration from explicitly-set flags in fSet.
func WithFlags(fSet *flag.FlagSet) ConfigOption {
	return func(c *Config) error {
		fSet.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "serial-port":
				c.SerialPort = f.Value.String()
			case "baud-rate":
				if b, err := strconv.Atoi(f.Value.String()); err == nil {
					c.BaudRate = b
				}
			case "log-level":
				c.LogLevel = f.Value.String()
			case "bind-address":
				c.BindAddress = f.Value.String()
			}
		})
		return nil
	}
}
