package stage

import (
	"encoding/json"
	"fmt"
)

// Flags is a fixed-shape record of one boolean per defined stage.
// The zero value has every stage unset.
type Flags [count]bool

// Has reports whether the stage is satisfied. Undefined stages are never set.
func (f Flags) Has(s Stage) bool {
	return s.Valid() && f[s]
}

// With returns a copy of f with the stage set to v.
func (f Flags) With(s Stage, v bool) Flags {
	if s.Valid() {
		f[s] = v
	}
	return f
}

// Any reports whether at least one stage is satisfied.
func (f Flags) Any() bool {
	for _, v := range f {
		if v {
			return true
		}
	}
	return false
}

// Map returns the flags keyed by stage name.
func (f Flags) Map() map[string]bool {
	out := make(map[string]bool, count)
	for s := Empty; s < count; s++ {
		out[names[s]] = f[s]
	}
	return out
}

// MarshalJSON encodes flags as an object keyed by stage name.
func (f Flags) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Map())
}

// UnmarshalJSON decodes an object keyed by stage name. Unknown names are rejected.
func (f *Flags) UnmarshalJSON(b []byte) error {
	var raw map[string]bool
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var out Flags
	for name, v := range raw {
		s, err := Parse(name)
		if err != nil || !s.Valid() {
			return fmt.Errorf("decode stage flags: unknown stage %q", name)
		}
		out[s] = v
	}
	*f = out
	return nil
}

// Report is the outcome of probing a project location.
type Report struct {
	Flags   Flags `json:"flags"`
	Invalid bool  `json:"invalid"`
}

// InvalidReport is the report of a project whose identity resource is missing.
func InvalidReport() Report {
	return Report{Invalid: true}
}

// Normalized enforces that an invalid report carries no stage flags.
func (r Report) Normalized() Report {
	if r.Invalid {
		return InvalidReport()
	}
	return r
}

// Current returns the last stage of the unbroken prefix of satisfied stages,
// or Undefined when the report is invalid or the first stage is unset.
func (r Report) Current() Stage {
	if r.Invalid {
		return Undefined
	}
	current := Undefined
	for s := Empty; s < count; s++ {
		if !r.Flags[s] {
			break
		}
		current = s
	}
	return current
}

// Consistent reports whether the satisfied stages form a prefix of the
// pipeline (no later stage satisfied while an earlier one is not).
func (r Report) Consistent() bool {
	gap := false
	for s := Empty; s < count; s++ {
		switch {
		case !r.Flags[s]:
			gap = true
		case gap:
			return false
		}
	}
	return true
}

// Equal reports whether two reports carry identical flags and validity.
func (r Report) Equal(other Report) bool {
	return r.Invalid == other.Invalid && r.Flags == other.Flags
}
