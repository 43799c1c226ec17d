// Package stage defines the fixed, ordered enumeration of project build stages
// and the fixed-shape flag record shared by the stage probe and the project
// state machine.
package stage

import (
	"fmt"
	"strings"
)

// Stage is a strongly-typed identifier for a build stage. All canonical
// stages are declared as constants here for compile-time safety.
type Stage int

// Canonical stages, in pipeline order.
const (
	Undefined Stage = iota - 1

	Empty          // required source description (.ioc) present
	Configured     // project config file saved
	Generated      // CubeMX code generated
	PIOInitialized // PlatformIO project initialized
	Patched        // platformio.ini patched for CubeMX layout
	Built          // firmware built

	count
)

var names = [count]string{
	Empty:          "empty",
	Configured:     "configured",
	Generated:      "generated",
	PIOInitialized: "pio_initialized",
	Patched:        "patched",
	Built:          "built",
}

var descriptions = [count]string{
	Empty:          "Source description present",
	Configured:     "Project configuration saved",
	Generated:      "Code generated",
	PIOInitialized: "PlatformIO project initialized",
	Patched:        "PlatformIO project patched",
	Built:          "Firmware built",
}

// All returns every defined stage in pipeline order.
func All() []Stage {
	out := make([]Stage, 0, count)
	for s := Empty; s < count; s++ {
		out = append(out, s)
	}
	return out
}

// Valid reports whether s is one of the defined stages.
func (s Stage) Valid() bool { return s >= Empty && s < count }

func (s Stage) String() string {
	if !s.Valid() {
		return "undefined"
	}
	return names[s]
}

// Description returns a human readable summary of the stage.
func (s Stage) Description() string {
	if !s.Valid() {
		return "Undefined"
	}
	return descriptions[s]
}

// MarshalText encodes the stage by name.
func (s Stage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a stage name.
func (s *Stage) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Parse resolves a stage name (case-insensitive).
func Parse(name string) (Stage, error) {
	cleaned := strings.ToLower(strings.TrimSpace(name))
	if cleaned == "undefined" {
		return Undefined, nil
	}
	for s := Empty; s < count; s++ {
		if names[s] == cleaned {
			return s, nil
		}
	}
	return Undefined, fmt.Errorf("unknown stage: %q", name)
}
