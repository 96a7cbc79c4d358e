// Package scenarios runs YAML-defined simulation scenarios and checks their
// expected outcomes.
package scenarios

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/evpolicy/core/model"
	"github.com/kilianp07/evpolicy/core/params"
)

type PolicyDef struct {
	Kind  string  `yaml:"kind"`
	Level float64 `yaml:"level"`
	Cap   float64 `yaml:"cap,omitempty"`
}

func (p PolicyDef) ToModel() (model.PolicyConfig, error) {
	kind, err := model.ParsePolicyKind(p.Kind)
	if err != nil {
		return model.PolicyConfig{}, err
	}
	cfg := model.PolicyConfig{Kind: kind, Level: p.Level, Cap: p.Cap}
	return cfg, cfg.Validate()
}

// Expected lists the outcome checks of a scenario. Zero values are not
// checked.
type Expected struct {
	Periods int `yaml:"periods"`
	// TotalUnitsSold is the exact number of units sold per technology over
	// the whole run.
	TotalUnitsSold map[string]int `yaml:"total_units_sold,omitempty"`
	MinTotalUnits  int            `yaml:"min_total_units,omitempty"`
	// MaxUnitsPerPeriod bounds the units sold in every period.
	MaxUnitsPerPeriod *int `yaml:"max_units_per_period,omitempty"`
	MinBankruptcies   int  `yaml:"min_bankruptcies,omitempty"`
	// ConstantFirms requires the live firm count to match the initial
	// population in every period.
	ConstantFirms bool `yaml:"constant_firms,omitempty"`
	// BaselineVehicles requires every offered vehicle to keep the baseline
	// characteristics of its technology.
	BaselineVehicles bool `yaml:"baseline_vehicles,omitempty"`
}

type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Seed        uint64         `yaml:"seed"`
	Policy      PolicyDef      `yaml:"policy"`
	Params      map[string]any `yaml:"params,omitempty"`
	Expected    Expected       `yaml:"expected"`
}

// ModelParams returns the default parameters with the scenario overrides.
func (s Scenario) ModelParams() (params.Params, error) {
	return params.Default().WithOverrides(s.Params)
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if sc.Name == "" {
		sc.Name = filepath.Base(path)
	}
	return &sc, nil
}

// LoadDir loads every *.yaml file of dir in lexical order.
func LoadDir(dir string) ([]*Scenario, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	slices.Sort(files)
	out := make([]*Scenario, 0, len(files))
	for _, f := range files {
		sc, err := Load(f)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}
