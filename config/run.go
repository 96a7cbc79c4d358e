package config

import (
	"fmt"
	"runtime"

	"github.com/kilianp07/evpolicy/core/model"
)

// RunConfig describes a single run.
type RunConfig struct {
	Policy string  `json:"policy"`
	Level  float64 `json:"level"`
	// Cap sets an absolute emissions cap for the emissions_cap policy.
	Cap  float64 `json:"cap"`
	Seed uint64  `json:"seed"`
	// Output is an optional .csv or .json export path.
	Output string `json:"output"`
}

// SetDefaults applies sane defaults.
func (c *RunConfig) SetDefaults() {
	if c.Policy == "" {
		c.Policy = string(model.PolicyNone)
	}
}

// PolicyConfig returns the policy of the run.
func (c RunConfig) PolicyConfig() (model.PolicyConfig, error) {
	kind, err := model.ParsePolicyKind(c.Policy)
	if err != nil {
		return model.PolicyConfig{}, err
	}
	p := model.PolicyConfig{Kind: kind, Level: c.Level, Cap: c.Cap}
	return p, p.Validate()
}

// Validate checks the policy selection.
func (c RunConfig) Validate() error {
	if _, err := c.PolicyConfig(); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	return nil
}

// SweepConfig describes a policy sweep: every policy at every level, each
// repeated Runs times with consecutive seeds.
type SweepConfig struct {
	Policies []string  `json:"policies"`
	Levels   []float64 `json:"levels"`
	Runs     int       `json:"runs"`
	Seed     uint64    `json:"seed"`
	Parallel int       `json:"parallel"`
	Output   string    `json:"output"`
}

// DefaultLevels are the discretised policy levels 0.0 to 0.9.
func DefaultLevels() []float64 {
	levels := make([]float64, 10)
	for i := range levels {
		levels[i] = float64(i) / 10
	}
	return levels
}

// SetDefaults applies sane defaults.
func (c *SweepConfig) SetDefaults() {
	if len(c.Policies) == 0 {
		c.Policies = []string{string(model.PolicyTax), string(model.PolicyPDCashback), string(model.PolicyEmissionsCap)}
	}
	if len(c.Levels) == 0 {
		c.Levels = DefaultLevels()
	}
	if c.Runs <= 0 {
		c.Runs = 5
	}
	if c.Parallel <= 0 {
		c.Parallel = runtime.NumCPU()
	}
}

// PolicyConfigs expands the policy × level grid. The none policy appears
// once regardless of the levels.
func (c SweepConfig) PolicyConfigs() ([]model.PolicyConfig, error) {
	var out []model.PolicyConfig
	for _, name := range c.Policies {
		kind, err := model.ParsePolicyKind(name)
		if err != nil {
			return nil, err
		}
		if kind == model.PolicyNone {
			out = append(out, model.PolicyConfig{Kind: kind})
			continue
		}
		for _, lvl := range c.Levels {
			p := model.PolicyConfig{Kind: kind, Level: lvl}
			if err := p.Validate(); err != nil {
				return nil, err
			}
			out = append(out, p)
		}
	}
	return out, nil
}

// Validate checks the grid.
func (c SweepConfig) Validate() error {
	if _, err := c.PolicyConfigs(); err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	return nil
}
