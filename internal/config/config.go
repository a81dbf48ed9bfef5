package config

// Configuration loading and validation for etherip

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tturner/etherip/internal/cip/client"
	"github.com/tturner/etherip/internal/cip/epath"
	"github.com/tturner/etherip/internal/cip/types"
	"github.com/tturner/etherip/internal/errors"
	"github.com/tturner/etherip/internal/logging"
)

const (
	DefaultPort      = 44818
	DefaultTimeoutMs = 5000
)

// TargetConfig identifies the controller to talk to.
type TargetConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Slot   uint8  `yaml:"slot"`
	Routed *bool  `yaml:"routed,omitempty"` // default true
}

// LoggingConfig controls log verbosity and the optional log file.
type LoggingConfig struct {
	Level     string `yaml:"level,omitempty"`  // "silent","error","info","verbose","debug"
	Format    string `yaml:"format,omitempty"` // "text" or "json"
	File      string `yaml:"file,omitempty"`
	LogEveryN int    `yaml:"log_every_n,omitempty"`
}

// CaptureConfig enables frame capture to a pcap file.
type CaptureConfig struct {
	PCAP string `yaml:"pcap,omitempty"`
}

// TagConfig is one tag the batch and watch commands operate on.
type TagConfig struct {
	Name     string  `yaml:"name"`
	Index    *uint32 `yaml:"index,omitempty"`
	Elements uint16  `yaml:"elements"`
	Type     string  `yaml:"type,omitempty"`  // required when value is set
	Value    string  `yaml:"value,omitempty"` // comma-separated elements
}

// Config represents the client configuration
type Config struct {
	Target    TargetConfig  `yaml:"target"`
	TimeoutMs int           `yaml:"timeout_ms"`
	Logging   LoggingConfig `yaml:"logging,omitempty"`
	Capture   CaptureConfig `yaml:"capture,omitempty"`
	Tags      []TagConfig   `yaml:"tags,omitempty"`
}

// CreateDefaultClientConfig creates a default client configuration
func CreateDefaultClientConfig() *Config {
	routed := true
	return &Config{
		Target: TargetConfig{
			Host:   "192.168.1.10",
			Port:   DefaultPort,
			Slot:   0,
			Routed: &routed,
		},
		TimeoutMs: DefaultTimeoutMs,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Tags: []TagConfig{
			{Name: "Program:MainProgram.Counter", Elements: 1},
			{Name: "Setpoints", Elements: 4, Type: "REAL"},
		},
	}
}

// WriteDefaultClientConfig writes a default client configuration to a file
func WriteDefaultClientConfig(path string) error {
	cfg := CreateDefaultClientConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// LoadClientConfig loads a client configuration from a YAML file,
// applies defaults and validates it.
func LoadClientConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapConfigError(
				fmt.Errorf("config file not found: %s", path),
				path,
			)
		}
		return nil, errors.WrapConfigError(
			fmt.Errorf("read config file: %w", err),
			path,
		)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.WrapConfigError(fmt.Errorf("parse YAML: %w", err), path)
	}

	cfg.ApplyDefaults()

	if err := ValidateClientConfig(&cfg); err != nil {
		return nil, errors.WrapConfigError(fmt.Errorf("validate config: %w", err), path)
	}

	return &cfg, nil
}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Target.Port == 0 {
		c.Target.Port = DefaultPort
	}
	if c.Target.Routed == nil {
		routed := true
		c.Target.Routed = &routed
	}
	if c.TimeoutMs == 0 {
		c.TimeoutMs = DefaultTimeoutMs
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.LogEveryN == 0 {
		c.Logging.LogEveryN = 1
	}
	for i := range c.Tags {
		if c.Tags[i].Elements == 0 && c.Tags[i].Type == "" && c.Tags[i].Value == "" {
			c.Tags[i].Elements = 1
		}
	}
}

// ValidateClientConfig validates a client configuration
func ValidateClientConfig(cfg *Config) error {
	if strings.TrimSpace(cfg.Target.Host) == "" {
		return fmt.Errorf("target.host is required")
	}
	if cfg.Target.Port <= 0 || cfg.Target.Port > 65535 {
		return fmt.Errorf("target.port must be between 1 and 65535, got %d", cfg.Target.Port)
	}
	if cfg.TimeoutMs < 0 {
		return fmt.Errorf("timeout_ms must be >= 0")
	}
	if _, err := logging.ParseLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if cfg.Logging.Format != "" {
		switch strings.ToLower(cfg.Logging.Format) {
		case "text", "json":
		default:
			return fmt.Errorf("logging.format must be text or json")
		}
	}
	if cfg.Logging.LogEveryN < 0 {
		return fmt.Errorf("logging.log_every_n must be >= 0")
	}

	for i, tag := range cfg.Tags {
		if err := validateTag(tag, i); err != nil {
			return err
		}
	}
	return nil
}

func validateTag(tag TagConfig, index int) error {
	if tag.Name == "" {
		return fmt.Errorf("tags[%d]: name is required", index)
	}
	if _, err := epath.BuildSymbolic(tag.Name); err != nil {
		return fmt.Errorf("tags[%d]: %w", index, err)
	}
	if tag.Elements == 0 {
		return fmt.Errorf("tags[%d]: elements must be > 0", index)
	}
	if tag.Type != "" {
		if _, err := types.ParseCIPDataType(tag.Type); err != nil {
			return fmt.Errorf("tags[%d]: %w", index, err)
		}
	}
	if tag.Value != "" {
		if tag.Type == "" {
			return fmt.Errorf("tags[%d]: type is required when value is set", index)
		}
		if _, err := tag.WriteValue(); err != nil {
			return fmt.Errorf("tags[%d]: %w", index, err)
		}
	}
	return nil
}

// WriteValue parses the tag's configured value. It returns a zero Value
// when no value is configured.
func (t TagConfig) WriteValue() (types.Value, error) {
	if t.Value == "" {
		return types.Value{}, nil
	}
	dt, err := types.ParseCIPDataType(t.Type)
	if err != nil {
		return types.Value{}, err
	}
	return types.ParseValue(dt, t.Value)
}

// Timeout returns the configured per-request timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// NewLogger builds the logger described by the logging section.
func (c *Config) NewLogger() (*logging.Logger, error) {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewLoggerWithOptions(level, c.Logging.File, c.Logging.Format, c.Logging.LogEveryN)
}

// SessionOptions maps the target section onto client.Options.
func (c *Config) SessionOptions(logger *logging.Logger, observer client.Observer) client.Options {
	opts := client.DefaultOptions()
	opts.Port = c.Target.Port
	opts.Slot = c.Target.Slot
	if c.Target.Routed != nil {
		opts.Routed = *c.Target.Routed
	}
	if c.TimeoutMs > 0 {
		opts.Timeout = c.Timeout()
	}
	opts.Logger = logger
	opts.Observer = observer
	return opts
}

// Requests turns the tag list into CLI requests against the target.
func (c *Config) Requests() ([]Request, error) {
	out := make([]Request, 0, len(c.Tags))
	for i, tag := range c.Tags {
		value, err := tag.WriteValue()
		if err != nil {
			return nil, fmt.Errorf("tags[%d]: %w", i, err)
		}
		req := Request{
			Host:         c.Target.Host,
			Slot:         c.Target.Slot,
			TagName:      tag.Name,
			Index:        tag.Index,
			ElementCount: tag.Elements,
		}
		if !value.IsZero() {
			req.WriteValue = &value
		}
		out = append(out, req)
	}
	return out, nil
}
