package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownPolicy is returned when a policy kind is not recognised.
var ErrUnknownPolicy = errors.New("unknown policy kind")

// PolicyKind selects the government lever active during a run.
type PolicyKind string

const (
	PolicyNone         PolicyKind = "none"
	PolicyTax          PolicyKind = "tax"
	PolicyPDCashback   PolicyKind = "pd_cashback"
	PolicyEmissionsCap PolicyKind = "emissions_cap"
)

// PolicyKinds lists the supported kinds in reporting order.
var PolicyKinds = []PolicyKind{PolicyNone, PolicyTax, PolicyPDCashback, PolicyEmissionsCap}

// ParsePolicyKind converts a configuration string into a PolicyKind. An empty
// string selects PolicyNone.
func ParsePolicyKind(s string) (PolicyKind, error) {
	k := PolicyKind(strings.ToLower(strings.TrimSpace(s)))
	if k == "" {
		return PolicyNone, nil
	}
	for _, known := range PolicyKinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
}

// PolicyConfig is the immutable policy selection of a run.
type PolicyConfig struct {
	Kind PolicyKind `json:"kind"`
	// Level is the discretised policy strength in [0,1].
	Level float64 `json:"level"`
	// Cap, when positive, replaces the benchmark-derived emissions cap with an
	// absolute limit. Only meaningful with PolicyEmissionsCap.
	Cap float64 `json:"cap,omitempty"`
}

// Validate checks that the policy can be applied.
func (p PolicyConfig) Validate() error {
	if _, err := ParsePolicyKind(string(p.Kind)); err != nil {
		return err
	}
	if p.Level < 0 || p.Level > 1 {
		return fmt.Errorf("policy level %.3f outside [0,1]", p.Level)
	}
	if p.Cap < 0 {
		return fmt.Errorf("policy cap must not be negative")
	}
	return nil
}

// Normalized returns p with its kind in canonical form; an empty kind
// becomes PolicyNone.
func (p PolicyConfig) Normalized() PolicyConfig {
	if k, err := ParsePolicyKind(string(p.Kind)); err == nil {
		p.Kind = k
	}
	return p
}

// String returns a short label such as "tax@0.3".
func (p PolicyConfig) String() string {
	p = p.Normalized()
	if p.Kind == PolicyNone {
		return string(p.Kind)
	}
	return fmt.Sprintf("%s@%.1f", p.Kind, p.Level)
}
