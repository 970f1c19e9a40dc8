package main

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/relaytap/inspector"
)

const (
	EnvVerbose    = "VERBOSE"
	EnvLogLevel   = "INSPECTOR_LOG_LEVEL"
	EnvLogNoColor = "INSPECTOR_LOG_NOCOLOR"

	defaultLogLevel = "info"
)

type config struct {
	Bind        string
	Port        int
	TargetHost  string
	TargetPort  int
	Interval    time.Duration
	DialTimeout time.Duration
	BufferSize  int
	MetricsAddr string
	Verbose     bool
	Quiet       bool
	LogLevel    string
	LogNoColor  bool
}

func defaultConfig() config {
	return config{
		Bind:        "0.0.0.0",
		Port:        3002,
		TargetHost:  "localhost",
		TargetPort:  3000,
		Interval:    time.Second,
		DialTimeout: 5 * time.Second,
		BufferSize:  inspector.DefaultBufferSize,
		LogLevel:    defaultLogLevel,
	}
}

func (c config) listenAddr() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}

func (c config) targetAddr() string {
	return net.JoinHostPort(c.TargetHost, strconv.Itoa(c.TargetPort))
}

func (c config) validate() error {
	var errs []error
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port: %d", c.Port))
	}
	if c.TargetPort < 1 || c.TargetPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid target port: %d", c.TargetPort))
	}
	if strings.TrimSpace(c.TargetHost) == "" {
		errs = append(errs, errors.New("missing target host"))
	}
	if c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("invalid report interval: %s", c.Interval))
	}
	if c.DialTimeout < 0 {
		errs = append(errs, fmt.Errorf("invalid dial timeout: %s", c.DialTimeout))
	}
	if c.BufferSize < 0 {
		errs = append(errs, fmt.Errorf("invalid buffer size: %d", c.BufferSize))
	}
	if _, ok := parseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("invalid log level: %q", c.LogLevel))
	}
	return errors.Join(errs...)
}

type fileConfig struct {
	Bind        string `toml:"bind"`
	Port        int    `toml:"port"`
	TargetHost  string `toml:"target_host"`
	TargetPort  int    `toml:"target_port"`
	Interval    string `toml:"interval"`
	DialTimeout string `toml:"dial_timeout"`
	BufferSize  int    `toml:"buffer_size"`
	MetricsAddr string `toml:"metrics_addr"`
	Verbose     bool   `toml:"verbose"`
	Quiet       bool   `toml:"quiet"`
	LogLevel    string `toml:"log_level"`
}

// loadConfigFile overrides cfg with the keys present in the TOML file at path.
func loadConfigFile(path string, cfg *config) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("bind") {
		cfg.Bind = strings.TrimSpace(raw.Bind)
	}
	if meta.IsDefined("port") {
		cfg.Port = raw.Port
	}
	if meta.IsDefined("target_host") {
		cfg.TargetHost = strings.TrimSpace(raw.TargetHost)
	}
	if meta.IsDefined("target_port") {
		cfg.TargetPort = raw.TargetPort
	}
	if meta.IsDefined("interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Interval))
		if err != nil {
			return fmt.Errorf("parse interval: %w", err)
		}
		cfg.Interval = d
	}
	if meta.IsDefined("dial_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.DialTimeout))
		if err != nil {
			return fmt.Errorf("parse dial_timeout: %w", err)
		}
		cfg.DialTimeout = d
	}
	if meta.IsDefined("buffer_size") {
		cfg.BufferSize = raw.BufferSize
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}
	if meta.IsDefined("verbose") {
		cfg.Verbose = raw.Verbose
	}
	if meta.IsDefined("quiet") {
		cfg.Quiet = raw.Quiet
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	return nil
}

func applyEnvOverrides(cfg *config, getenv func(string) string) {
	// any value that is not an explicit false enables verbose output
	if raw := strings.TrimSpace(getenv(EnvVerbose)); raw != "" {
		v, ok := parseBool(raw)
		cfg.Verbose = v || !ok
	}
	if raw := strings.TrimSpace(getenv(EnvLogLevel)); raw != "" {
		cfg.LogLevel = raw
	}
	if v, ok := parseBool(getenv(EnvLogNoColor)); ok {
		cfg.LogNoColor = v
	}
}

// parseBool accepts the usual truthy spellings in addition to strconv.ParseBool.
func parseBool(raw string) (bool, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch raw {
	case "":
		return false, false
	case "yes", "y", "on":
		return true, true
	case "no", "n", "off":
		return false, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
