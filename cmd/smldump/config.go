package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type appConfig struct {
	input       string
	bufCapacity int
	logFormat   string
	logLevel    string
	metricsAddr string
	streaming   bool
	showVersion bool
}

func parseFlags() (*appConfig, bool) {
	cfg := &appConfig{}
	input := flag.String("input", "-", "Input source: '-' for stdin, or a file path")
	bufCapacity := flag.Int("buffer", 2048, "Bounded decode buffer capacity in bytes")
	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	metricsAddr := flag.String("metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	streaming := flag.Bool("streaming", false, "Use the streaming event parser instead of the materialized File parser")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })
	cfg.input = *input
	cfg.bufCapacity = *bufCapacity
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.metricsAddr = *metricsAddr
	cfg.streaming = *streaming
	cfg.showVersion = *showVersion

	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		fmt.Printf("environment override error: %v\n", err)
		return nil, cfg.showVersion
	}
	if err := cfg.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, cfg.showVersion
	}
	return cfg, cfg.showVersion
}

// validate performs basic semantic validation of the parsed configuration.
func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	if c.bufCapacity <= 0 {
		return fmt.Errorf("buffer must be > 0 (got %d)", c.bufCapacity)
	}
	if c.input == "" {
		return errors.New("input must not be empty")
	}
	return nil
}

// applyEnvOverrides maps SMLDUMP_* environment variables to config fields
// unless a corresponding flag was explicitly set. Flag wins over env.
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }
	if _, ok := set["input"]; !ok {
		if v, ok := get("SMLDUMP_INPUT"); ok && v != "" {
			c.input = v
		}
	}
	if _, ok := set["buffer"]; !ok {
		if v, ok := get("SMLDUMP_BUFFER"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.bufCapacity = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid SMLDUMP_BUFFER: %w", err)
			}
		}
	}
	if _, ok := set["log-format"]; !ok {
		if v, ok := get("SMLDUMP_LOG_FORMAT"); ok && v != "" {
			c.logFormat = v
		}
	}
	if _, ok := set["log-level"]; !ok {
		if v, ok := get("SMLDUMP_LOG_LEVEL"); ok && v != "" {
			c.logLevel = v
		}
	}
	if _, ok := set["metrics-addr"]; !ok {
		if v, ok := get("SMLDUMP_METRICS"); ok {
			c.metricsAddr = v
		}
	}
	if _, ok := set["streaming"]; !ok {
		if v, ok := get("SMLDUMP_STREAMING"); ok && v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				c.streaming = b
			} else if firstErr == nil {
				firstErr = fmt.Errorf("invalid SMLDUMP_STREAMING: %w", err)
			}
		}
	}
	return firstErr
}
