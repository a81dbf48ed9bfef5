package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tturner/etherip/internal/cip/epath"
	"github.com/tturner/etherip/internal/cip/types"
	"github.com/tturner/etherip/internal/errors"
)

// ServerConfigSection represents the server section in server config
type ServerConfigSection struct {
	Name                string `yaml:"name"`
	ListenIP            string `yaml:"listen_ip"`
	TCPPort             int    `yaml:"tcp_port"`
	ConnectionTimeoutMs int    `yaml:"connection_timeout_ms"`
	ControllerSlot      uint8  `yaml:"controller_slot"`
	EnableUDP           bool   `yaml:"enable_udp"`
	IdentityVendorID    uint16 `yaml:"identity_vendor_id,omitempty"`
	IdentityDeviceType  uint16 `yaml:"identity_device_type,omitempty"`
	IdentityProductCode uint16 `yaml:"identity_product_code,omitempty"`
	IdentityRevMajor    uint8  `yaml:"identity_rev_major,omitempty"`
	IdentityRevMinor    uint8  `yaml:"identity_rev_minor,omitempty"`
	IdentityStatus      uint16 `yaml:"identity_status,omitempty"`
	IdentitySerial      uint32 `yaml:"identity_serial,omitempty"`
	IdentityProductName string `yaml:"identity_product_name,omitempty"`
}

// ServiceConfig is one entry in the ListServices reply.
type ServiceConfig struct {
	Name         string `yaml:"name"`
	Version      uint16 `yaml:"version,omitempty"`
	Capabilities uint16 `yaml:"capabilities,omitempty"`
}

// ServerTagConfig declares a tag held by the simulated controller.
type ServerTagConfig struct {
	Name     string   `yaml:"name"`
	Type     string   `yaml:"type"`
	Elements int      `yaml:"elements"`
	Values   []string `yaml:"values,omitempty"`
	Handle   uint16   `yaml:"handle,omitempty"` // STRUCT only
	ReadOnly bool     `yaml:"read_only,omitempty"`
	// Update is applied before every read: static (default), counter
	// (increments element 0) or sine (REAL element 0).
	Update string `yaml:"update,omitempty"`
}

// ServerFaultConfig controls fault injection for the server.
type ServerFaultConfig struct {
	LatencyMs             int  `yaml:"latency_ms,omitempty"`
	DropResponseEveryN    int  `yaml:"drop_response_every_n,omitempty"`
	CloseConnectionEveryN int  `yaml:"close_connection_every_n,omitempty"`
	ChunkWrites           bool `yaml:"chunk_writes,omitempty"`
}

// ServerConfig represents the simulated controller configuration
type ServerConfig struct {
	Server   ServerConfigSection `yaml:"server"`
	Services []ServiceConfig     `yaml:"services,omitempty"`
	Tags     []ServerTagConfig   `yaml:"tags"`
	Faults   ServerFaultConfig   `yaml:"faults,omitempty"`
	Logging  LoggingConfig       `yaml:"logging,omitempty"`
}

// CreateDefaultServerConfig creates a default server configuration.
func CreateDefaultServerConfig() *ServerConfig {
	cfg := &ServerConfig{
		Server: ServerConfigSection{
			Name:     "etherip simulator",
			ListenIP: "127.0.0.1",
			TCPPort:  DefaultPort,
		},
		Tags: DefaultServerTags(),
	}
	applyServerDefaults(cfg)
	return cfg
}

// DefaultServerTags is the tag table used when none is configured.
func DefaultServerTags() []ServerTagConfig {
	return []ServerTagConfig{
		{Name: "Counter", Type: "DINT", Elements: 1, Update: "counter"},
		{Name: "Running", Type: "BOOL", Elements: 1, Values: []string{"true"}},
		{Name: "Setpoints", Type: "REAL", Elements: 4, Values: []string{"1.5", "2.5", "3.5", "4.5"}},
		{Name: "Counts", Type: "DINT", Elements: 10},
		{Name: "Status", Type: "STRING", Elements: 1, Values: []string{"idle"}},
		{Name: "Program:MainProgram.Speed", Type: "INT", Elements: 1, Values: []string{"1200"}},
	}
}

// LoadServerConfig loads a server configuration from a YAML file
func LoadServerConfig(path string) (*ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapConfigError(fmt.Errorf("config file not found: %s", path), path)
		}
		return nil, errors.WrapConfigError(fmt.Errorf("read config file: %w", err), path)
	}

	var cfg ServerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.WrapConfigError(fmt.Errorf("parse YAML: %w", err), path)
	}

	applyServerDefaults(&cfg)

	if err := ValidateServerConfig(&cfg); err != nil {
		return nil, errors.WrapConfigError(fmt.Errorf("validate config: %w", err), path)
	}

	return &cfg, nil
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Server.ListenIP == "" {
		cfg.Server.ListenIP = "0.0.0.0"
	}
	if cfg.Server.TCPPort == 0 {
		cfg.Server.TCPPort = DefaultPort
	}
	if cfg.Server.ConnectionTimeoutMs == 0 {
		cfg.Server.ConnectionTimeoutMs = 30000
	}
	if cfg.Server.IdentityVendorID == 0 {
		cfg.Server.IdentityVendorID = 0x0001
	}
	if cfg.Server.IdentityDeviceType == 0 {
		cfg.Server.IdentityDeviceType = 0x000E
	}
	if cfg.Server.IdentityProductCode == 0 {
		cfg.Server.IdentityProductCode = 0x0055
	}
	if cfg.Server.IdentityRevMajor == 0 {
		cfg.Server.IdentityRevMajor = 20
		cfg.Server.IdentityRevMinor = 11
	}
	if cfg.Server.IdentitySerial == 0 {
		cfg.Server.IdentitySerial = 0x00C0FFEE
	}
	if cfg.Server.IdentityProductName == "" {
		if cfg.Server.Name != "" {
			cfg.Server.IdentityProductName = cfg.Server.Name
		} else {
			cfg.Server.IdentityProductName = "etherip simulator"
		}
	}
	if len(cfg.Services) == 0 {
		cfg.Services = []ServiceConfig{{Name: "Communications", Version: 1, Capabilities: 0x0120}}
	}
	for i := range cfg.Services {
		if cfg.Services[i].Version == 0 {
			cfg.Services[i].Version = 1
		}
	}
	if len(cfg.Tags) == 0 {
		cfg.Tags = DefaultServerTags()
	}
	for i := range cfg.Tags {
		if cfg.Tags[i].Elements == 0 {
			cfg.Tags[i].Elements = 1
		}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.LogEveryN == 0 {
		cfg.Logging.LogEveryN = 1
	}
}

// ValidateServerConfig validates a server configuration
func ValidateServerConfig(cfg *ServerConfig) error {
	if cfg.Server.TCPPort < 0 || cfg.Server.TCPPort > 65535 {
		return fmt.Errorf("server.tcp_port must be between 0 and 65535")
	}
	if len(cfg.Server.IdentityProductName) > 255 {
		return fmt.Errorf("server.identity_product_name must be at most 255 characters")
	}
	for i, svc := range cfg.Services {
		if svc.Name == "" {
			return fmt.Errorf("services[%d]: name is required", i)
		}
		if len(svc.Name) > 15 {
			return fmt.Errorf("services[%d]: name must be at most 15 characters", i)
		}
	}
	if cfg.Faults.LatencyMs < 0 || cfg.Faults.DropResponseEveryN < 0 || cfg.Faults.CloseConnectionEveryN < 0 {
		return fmt.Errorf("faults values must be >= 0")
	}
	if cfg.Logging.Level != "" {
		switch strings.ToLower(cfg.Logging.Level) {
		case "silent", "error", "info", "verbose", "debug":
		default:
			return fmt.Errorf("logging.level must be silent, error, info, verbose, or debug")
		}
	}

	seen := make(map[string]struct{}, len(cfg.Tags))
	for i, tag := range cfg.Tags {
		if err := validateServerTag(tag, i); err != nil {
			return err
		}
		key := strings.ToLower(tag.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("tags[%d]: duplicate tag %q", i, tag.Name)
		}
		seen[key] = struct{}{}
	}
	return nil
}

func validateServerTag(tag ServerTagConfig, index int) error {
	if tag.Name == "" {
		return fmt.Errorf("tags[%d]: name is required", index)
	}
	if _, err := epath.BuildSymbolic(tag.Name); err != nil {
		return fmt.Errorf("tags[%d]: %w", index, err)
	}
	value, err := tag.InitialValue()
	if err != nil {
		return fmt.Errorf("tags[%d]: %w", index, err)
	}
	switch strings.ToLower(tag.Update) {
	case "", "static":
	case "counter":
		if !value.Type().IsInteger() {
			return fmt.Errorf("tags[%d]: counter update needs an integer type", index)
		}
	case "sine":
		if !value.Type().IsFloat() {
			return fmt.Errorf("tags[%d]: sine update needs REAL or LREAL", index)
		}
	default:
		return fmt.Errorf("tags[%d]: unknown update %q (static, counter, sine)", index, tag.Update)
	}
	return nil
}

// InitialValue builds the starting value of a simulated tag. Elements not
// listed in Values start at zero.
func (t ServerTagConfig) InitialValue() (types.Value, error) {
	dt, err := types.ParseCIPDataType(t.Type)
	if err != nil {
		return types.Value{}, err
	}
	switch dt {
	case types.CIPTypeSTRING:
		s := ""
		if len(t.Values) > 0 {
			s = t.Values[0]
		}
		return types.NewString(s)
	case types.CIPTypeSTRUCT:
		return types.NewStruct(t.Handle, make([]byte, 4*t.Elements)), nil
	}
	if t.Elements < 1 || t.Elements > 0xFFFF {
		return types.Value{}, fmt.Errorf("elements must be between 1 and 65535")
	}
	if len(t.Values) > t.Elements {
		return types.Value{}, fmt.Errorf("%d values given for %d elements", len(t.Values), t.Elements)
	}
	v, err := types.New(dt, t.Elements)
	if err != nil {
		return types.Value{}, err
	}
	if len(t.Values) == 0 {
		return v, nil
	}
	given, err := types.ParseValue(dt, strings.Join(t.Values, ","))
	if err != nil {
		return types.Value{}, err
	}
	for i := 0; i < given.Count(); i++ {
		if dt.IsFloat() {
			f, _ := given.Float(i)
			err = v.SetFloat(i, f)
		} else {
			n, _ := given.Int(i)
			err = v.SetInt(i, n)
		}
		if err != nil {
			return types.Value{}, err
		}
	}
	return v, nil
}
