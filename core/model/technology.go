package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Technology defines the propulsion type of a vehicle.
type Technology int

const (
	Gas Technology = iota
	Hybrid
	Green

	numTechnologies
)

// Technologies lists every technology in canonical iteration order.
var Technologies = [numTechnologies]Technology{Gas, Hybrid, Green}

// String returns a human-readable representation of the technology.
func (t Technology) String() string {
	switch t {
	case Gas:
		return "gas"
	case Hybrid:
		return "hybrid"
	case Green:
		return "green"
	default:
		return "unknown"
	}
}

// Valid reports whether t is one of the known technologies.
func (t Technology) Valid() bool { return t >= Gas && t < numTechnologies }

// Combustion is true for technologies that burn fuel and therefore improve
// through energy economy rather than energy capacity.
func (t Technology) Combustion() bool { return t == Gas || t == Hybrid }

// ParseTechnology converts a name into a Technology.
func ParseTechnology(s string) (Technology, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gas":
		return Gas, nil
	case "hybrid":
		return Hybrid, nil
	case "green":
		return Green, nil
	default:
		return 0, fmt.Errorf("unknown technology %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Technology) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid technology %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Technology) UnmarshalText(b []byte) error {
	v, err := ParseTechnology(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// PerTech holds one value per technology. The zero value is usable.
type PerTech[T any] [numTechnologies]T

// Get returns the value stored for t.
func (p *PerTech[T]) Get(t Technology) T { return p[t] }

// Set stores v for t.
func (p *PerTech[T]) Set(t Technology, v T) { p[t] = v }

// MarshalJSON encodes the values as an object keyed by technology name.
func (p PerTech[T]) MarshalJSON() ([]byte, error) {
	m := make(map[string]T, numTechnologies)
	for _, t := range Technologies {
		m[t.String()] = p[t]
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes an object keyed by technology name. Missing keys keep
// their current value and present ones are decoded over it, so a partial
// override only touches the fields it names.
func (p *PerTech[T]) UnmarshalJSON(b []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	for k, raw := range m {
		t, err := ParseTechnology(k)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(raw, &p[t]); err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
	}
	return nil
}

// TechMap is a fixed-size associative container keyed by technology. Unlike
// PerTech it tracks which keys are present, so it can model a portfolio where
// a technology is either held or absent.
type TechMap[T any] struct {
	vals    [numTechnologies]T
	present [numTechnologies]bool
}

// Get returns the value for t and whether it is present.
func (m *TechMap[T]) Get(t Technology) (T, bool) {
	return m.vals[t], m.present[t]
}

// Has reports whether t is present.
func (m *TechMap[T]) Has(t Technology) bool { return m.present[t] }

// Put sets the value for t, replacing any previous one.
func (m *TechMap[T]) Put(t Technology, v T) {
	m.vals[t] = v
	m.present[t] = true
}

// Delete removes t. Deleting an absent key is a no-op.
func (m *TechMap[T]) Delete(t Technology) {
	var zero T
	m.vals[t] = zero
	m.present[t] = false
}

// Len returns the number of present keys.
func (m *TechMap[T]) Len() int {
	n := 0
	for _, ok := range m.present {
		if ok {
			n++
		}
	}
	return n
}

// Keys returns the present technologies in canonical order.
func (m *TechMap[T]) Keys() []Technology {
	keys := make([]Technology, 0, numTechnologies)
	for _, t := range Technologies {
		if m.present[t] {
			keys = append(keys, t)
		}
	}
	return keys
}

// Missing returns the absent technologies in canonical order.
func (m *TechMap[T]) Missing() []Technology {
	keys := make([]Technology, 0, numTechnologies)
	for _, t := range Technologies {
		if !m.present[t] {
			keys = append(keys, t)
		}
	}
	return keys
}

// Each calls fn for every present key in canonical order.
func (m *TechMap[T]) Each(fn func(Technology, T)) {
	for _, t := range Technologies {
		if m.present[t] {
			fn(t, m.vals[t])
		}
	}
}
