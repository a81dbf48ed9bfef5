package server

import (
	"fmt"
	"strings"

	"github.com/tturner/etherip/internal/config"
)

// ServerTargetPreset is a canned controller identity, slot and tag table.
type ServerTargetPreset struct {
	Name        string
	Description string
	Slot        uint8
	Identity    config.ServerConfigSection
	Tags        []config.ServerTagConfig
}

// AvailableServerTargets returns the supported server target presets.
func AvailableServerTargets() []ServerTargetPreset {
	return []ServerTargetPreset{
		{
			Name:        "compactlogix",
			Description: "CompactLogix L33ER, controller in slot 0",
			Slot:        0,
			Identity: config.ServerConfigSection{
				IdentityVendorID:    0x0001,
				IdentityDeviceType:  0x000E,
				IdentityProductCode: 0x0067,
				IdentityRevMajor:    32,
				IdentityRevMinor:    11,
				IdentityProductName: "1769-L33ER/A LOGIX5333ER",
			},
			Tags: config.DefaultServerTags(),
		},
		{
			Name:        "controllogix",
			Description: "ControlLogix L75 in slot 2 behind a 1756-EN2T",
			Slot:        2,
			Identity: config.ServerConfigSection{
				IdentityVendorID:    0x0001,
				IdentityDeviceType:  0x000E,
				IdentityProductCode: 0x0036,
				IdentityRevMajor:    30,
				IdentityRevMinor:    14,
				IdentityProductName: "1756-L75/B LOGIX5575",
			},
			Tags: append(config.DefaultServerTags(),
				config.ServerTagConfig{Name: "Line1.Temperature", Type: "REAL", Elements: 1, Update: "sine"},
				config.ServerTagConfig{Name: "Batch", Type: "LINT", Elements: 4},
			),
		},
		{
			Name:        "micro850",
			Description: "Micro850 with embedded Ethernet, no backplane",
			Slot:        0,
			Identity: config.ServerConfigSection{
				IdentityVendorID:    0x0001,
				IdentityDeviceType:  0x000E,
				IdentityProductCode: 0x0109,
				IdentityRevMajor:    12,
				IdentityRevMinor:    11,
				IdentityProductName: "2080-LC50-24QWB",
			},
			Tags: []config.ServerTagConfig{
				{Name: "Counter", Type: "DINT", Elements: 1, Update: "counter"},
				{Name: "Speed", Type: "UINT", Elements: 1, Values: []string{"900"}},
			},
		},
	}
}

// ApplyServerTarget applies a named target preset to a server config.
func ApplyServerTarget(cfg *config.ServerConfig, name string) error {
	if cfg == nil {
		return fmt.Errorf("server config is nil")
	}
	target, ok := findServerTarget(name)
	if !ok {
		return fmt.Errorf("unknown server target %q", name)
	}
	cfg.Server.ControllerSlot = target.Slot
	if target.Identity.IdentityVendorID != 0 {
		cfg.Server.IdentityVendorID = target.Identity.IdentityVendorID
	}
	if target.Identity.IdentityDeviceType != 0 {
		cfg.Server.IdentityDeviceType = target.Identity.IdentityDeviceType
	}
	if target.Identity.IdentityProductCode != 0 {
		cfg.Server.IdentityProductCode = target.Identity.IdentityProductCode
	}
	if target.Identity.IdentityRevMajor != 0 {
		cfg.Server.IdentityRevMajor = target.Identity.IdentityRevMajor
		cfg.Server.IdentityRevMinor = target.Identity.IdentityRevMinor
	}
	if target.Identity.IdentityProductName != "" {
		cfg.Server.IdentityProductName = target.Identity.IdentityProductName
	}
	cfg.Tags = append([]config.ServerTagConfig(nil), target.Tags...)
	return nil
}

func findServerTarget(name string) (ServerTargetPreset, bool) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for _, target := range AvailableServerTargets() {
		if target.Name == normalized {
			return target, true
		}
	}
	return ServerTargetPreset{}, false
}
