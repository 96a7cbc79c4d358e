package params

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/evpolicy/core/model"
)

func TestDefaultIsValid(t *testing.T) {
	p := Default()
	require.NoError(t, p.Validate())
	assert.Len(t, p.Regions, 3)
	assert.Equal(t, 40, p.Horizon)
	assert.Equal(t, 16950.0, p.Tech.Get(model.Gas).ProductionCost)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"horizon", func(p *Params) { p.Horizon = 0 }},
		{"baseline", func(p *Params) { p.BaselinePeriod = p.Horizon }},
		{"firms", func(p *Params) { p.Population.FirmsPerRegion = -1 }},
		{"consumers", func(p *Params) { p.Population.ConsumersTotal = 0 }},
		{"no regions", func(p *Params) { p.Regions = nil }},
		{"weights", func(p *Params) { p.Regions[1].Weight = .4 }},
		{"duplicate region", func(p *Params) { p.Regions[1].Name = p.Regions[0].Name }},
		{"energy price", func(p *Params) { p.Regions[0].EnergyPrice.Set(model.Green, 0) }},
		{"emission", func(p *Params) {
			s := p.Tech.Get(model.Hybrid)
			s.Emission = 0
			p.Tech.Set(model.Hybrid, s)
		}},
		{"usage ranges", func(p *Params) { p.Consumer.UsageRanges = p.Consumer.UsageRanges[:1] }},
		{"criteria", func(p *Params) { p.Consumer.Criteria = NumCriteria + 1 }},
		{"prob adoption", func(p *Params) { p.Consumer.ProbAdoption = 1.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Default()
			tt.mutate(&p)
			assert.ErrorIs(t, p.Validate(), ErrInvalid)
		})
	}
}

func TestLoadedPrice(t *testing.T) {
	p := Default()
	assert.InDelta(t, 1000*1.07+1100, p.LoadedPrice(1000, "south", "northeast"), 1e-9)
	assert.InDelta(t, 1000*1.12, p.LoadedPrice(1000, "southeast", "southeast"), 1e-9)
	assert.Equal(t, 1000.0, p.LoadedPrice(1000, "south", "atlantis"))
}

func TestCloneIsDeep(t *testing.T) {
	p := Default()
	c := p.Clone()
	c.Regions[0].Freight["south"] = 1
	c.Regions[0].Name = "changed"
	c.Consumer.UsageThresholds[0] = .9

	assert.Equal(t, 600.0, p.Regions[0].Freight["south"])
	assert.Equal(t, "southeast", p.Regions[0].Name)
	assert.Equal(t, .23, p.Consumer.UsageThresholds[0])
}

func TestWithOverrides(t *testing.T) {
	base := Default()

	p, err := base.WithOverrides(map[string]any{
		"horizon": 12,
		"firm":    map[string]any{"alpha1": 0},
		"tech":    map[string]any{"green": map[string]any{"production_cost": 20000}},
	})
	require.NoError(t, err)
	assert.Equal(t, 12, p.Horizon)
	assert.Zero(t, p.Firm.Alpha1)
	assert.Equal(t, base.Firm.Alpha2, p.Firm.Alpha2)
	assert.Equal(t, 20000.0, p.Tech.Get(model.Green).ProductionCost)
	assert.Equal(t, base.Tech.Get(model.Green).EnergyEconomy, p.Tech.Get(model.Green).EnergyEconomy)
	assert.Equal(t, base.Tech.Get(model.Gas), p.Tech.Get(model.Gas))
	assert.Equal(t, 40, base.Horizon)

	p, err = base.WithOverrides(map[string]any{
		"regions": []any{map[string]any{
			"name": "only", "weight": 1,
			"energy_price": map[string]any{"gas": 1, "hybrid": 1, "green": 1},
		}},
	})
	require.NoError(t, err)
	require.Len(t, p.Regions, 1)
	assert.Equal(t, "only", p.Regions[0].Name)

	_, err = base.WithOverrides(map[string]any{"horizon": -1})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = base.WithOverrides(map[string]any{"tech": map[string]any{"steam": map[string]any{}}})
	assert.Error(t, err)
}
