package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Limits are the tunable runtime ceilings. A moonix.yaml next to the
// script (or passed explicitly) overrides the defaults; the VM enforces
// whatever ends up here.
type Limits struct {
	MaxStackSize    int   `yaml:"max_stack_size"`
	MaxFrameCount   int   `yaml:"max_frame_count"`
	MaxInstructions int64 `yaml:"max_instructions"`
}

// DefaultLimits returns the built-in ceilings.
func DefaultLimits() Limits {
	return Limits{
		MaxStackSize:    MaxStackSize,
		MaxFrameCount:   MaxFrameCount,
		MaxInstructions: DefaultMaxInstructions,
	}
}

// LoadLimits reads a yaml limits file and overlays it on the defaults.
// A missing file is not an error.
func LoadLimits(path string) (Limits, error) {
	limits := DefaultLimits()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return limits, nil
		}
		return limits, err
	}
	var overlay Limits
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return limits, err
	}
	if overlay.MaxStackSize > 0 {
		limits.MaxStackSize = overlay.MaxStackSize
	}
	if overlay.MaxFrameCount > 0 {
		limits.MaxFrameCount = overlay.MaxFrameCount
	}
	if overlay.MaxInstructions > 0 {
		limits.MaxInstructions = overlay.MaxInstructions
	}
	return limits, nil
}
