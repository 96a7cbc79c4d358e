// Package params holds the immutable parameter set of a simulation run. A
// Params value is built once (Default plus configuration overrides), validated
// and then passed by pointer into every component; nothing mutates it after
// Validate succeeds.
package params

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/kilianp07/evpolicy/core/model"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid parameters")

// TechSpec is the global baseline of one technology.
type TechSpec struct {
	ProductionCost float64 `json:"production_cost"`
	EnergyEconomy  float64 `json:"energy_economy"`
	EnergyCapacity float64 `json:"energy_capacity"`
	Quality        float64 `json:"quality"`
	Emission       float64 `json:"emission"`
	// StationDensity is the fixed refuelling density. Green ignores it and
	// uses the infrastructure proxy instead.
	StationDensity float64 `json:"station_density"`
	PIS            float64 `json:"pis"`
	COFINS         float64 `json:"cofins"`
	IPI            float64 `json:"ipi"`
}

// Vehicle returns a vehicle seeded at the baseline characteristics.
func (s TechSpec) Vehicle(t model.Technology) model.Vehicle {
	return model.Vehicle{
		Technology:     t,
		ProductionCost: s.ProductionCost,
		EnergyEconomy:  s.EnergyEconomy,
		EnergyCapacity: s.EnergyCapacity,
		Quality:        s.Quality,
	}
}

// Bounds are the global limits R&D moves characteristics towards.
type Bounds struct {
	MinCost           float64 `json:"min_cost"`
	MaxEnergyEconomy  float64 `json:"max_energy_economy"`
	MaxEnergyCapacity float64 `json:"max_energy_capacity"`
	MaxQuality        float64 `json:"max_quality"`
}

// Region describes a market region and the loadings applied to vehicles sold
// into it.
type Region struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
	// ICMS is the destination tax applied on top of the sales price.
	ICMS float64 `json:"icms"`
	// Freight maps the origin region name to the freight cost into this region.
	Freight map[string]float64 `json:"freight"`
	// EnergyPrice is the price of one unit of energy per technology.
	EnergyPrice model.PerTech[float64] `json:"energy_price"`
	// PriceSigmaScale scales the reservation price dispersion.
	PriceSigmaScale float64 `json:"price_sigma_scale"`
}

// Normal is a mean/standard deviation pair.
type Normal struct {
	Mu    float64 `json:"mu"`
	Sigma float64 `json:"sigma"`
}

// Range is a closed interval.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Population sizes the agent sets.
type Population struct {
	FirmsPerRegion int `json:"firms_per_region"`
	ConsumersTotal int `json:"consumers_total"`
}

// FirmParams tune firm behaviour.
type FirmParams struct {
	BudgetMax       float64 `json:"budget_max"`
	FixedCosts      float64 `json:"fixed_costs"`
	MuMax           float64 `json:"mu_max"`
	RDMinimum       float64 `json:"rd_minimum"`
	Alpha1          float64 `json:"alpha1"`
	Alpha2          float64 `json:"alpha2"`
	Omega           float64 `json:"omega"`
	AdoptionCost    float64 `json:"adoption_cost"`
	Margin          float64 `json:"margin"`
	Epsilon         float64 `json:"epsilon"`
	PortfolioWait   int     `json:"portfolio_wait"`
	StabilizationAt int     `json:"stabilization_at"`
}

// ConsumerParams tune consumer behaviour.
type ConsumerParams struct {
	ProbAdoption     float64 `json:"prob_adoption"`
	Distance         Normal  `json:"distance"`
	ReservationPrice Normal  `json:"reservation_price"`
	// UsageThresholds split the segment draw; len(UsageRanges) must be
	// len(UsageThresholds)+1.
	UsageThresholds []float64 `json:"usage_thresholds"`
	UsageRanges     []Range   `json:"usage_ranges"`
	Criteria        int       `json:"criteria"`
}

// Params is the complete parameter set of a run.
type Params struct {
	Horizon        int                     `json:"horizon"`
	BaselinePeriod int                     `json:"baseline_period"`
	Population     Population              `json:"population"`
	Regions        []Region                `json:"regions"`
	Tech           model.PerTech[TechSpec] `json:"tech"`
	Bounds         Bounds                  `json:"bounds"`
	Firm           FirmParams              `json:"firm"`
	Consumer       ConsumerParams          `json:"consumer"`
}

// Default returns the calibration used by the reference model.
func Default() Params {
	var tech model.PerTech[TechSpec]
	tech.Set(model.Gas, TechSpec{
		ProductionCost: 16950, EnergyEconomy: 15.9, EnergyCapacity: 60, Quality: .5,
		Emission: 23.06, StationDensity: 1, PIS: .02, COFINS: .096, IPI: .13,
	})
	tech.Set(model.Hybrid, TechSpec{
		ProductionCost: 21500, EnergyEconomy: 24, EnergyCapacity: 42, Quality: .5,
		Emission: 12.5, StationDensity: 1, PIS: .02, COFINS: .096, IPI: .07,
	})
	tech.Set(model.Green, TechSpec{
		ProductionCost: 27356, EnergyEconomy: 66.2, EnergyCapacity: 2.35, Quality: .5,
		Emission: 1, StationDensity: 1, PIS: .02, COFINS: .096, IPI: .07,
	})

	energy := func(gas, hybrid, green float64) model.PerTech[float64] {
		var p model.PerTech[float64]
		p.Set(model.Gas, gas)
		p.Set(model.Hybrid, hybrid)
		p.Set(model.Green, green)
		return p
	}

	return Params{
		Horizon:        40,
		BaselinePeriod: 0,
		Population:     Population{FirmsPerRegion: 3, ConsumersTotal: 2000},
		Regions: []Region{
			{
				Name: "southeast", Weight: .5, ICMS: .12, PriceSigmaScale: 1,
				Freight:     map[string]float64{"southeast": 0, "south": 600, "northeast": 1100},
				EnergyPrice: energy(1.6, 1.45, 1.12),
			},
			{
				Name: "south", Weight: .3, ICMS: .12, PriceSigmaScale: .9,
				Freight:     map[string]float64{"southeast": 600, "south": 0, "northeast": 1100},
				EnergyPrice: energy(1.65, 1.5, 1.1),
			},
			{
				Name: "northeast", Weight: .2, ICMS: .07, PriceSigmaScale: .8,
				Freight:     map[string]float64{"southeast": 1100, "south": 1100, "northeast": 0},
				EnergyPrice: energy(1.7, 1.55, 1.2),
			},
		},
		Tech: tech,
		Bounds: Bounds{
			MinCost: 10000, MaxEnergyEconomy: 66.2, MaxEnergyCapacity: 60, MaxQuality: 1,
		},
		Firm: FirmParams{
			BudgetMax:       500000,
			FixedCosts:      25000,
			MuMax:           .1,
			RDMinimum:       50000,
			Alpha1:          1e-5,
			Alpha2:          .5,
			Omega:           .5,
			AdoptionCost:    10000,
			Margin:          .1,
			Epsilon:         .1,
			PortfolioWait:   10,
			StabilizationAt: 9,
		},
		Consumer: ConsumerParams{
			ProbAdoption:     .25,
			Distance:         Normal{Mu: 11755, Sigma: 2500},
			ReservationPrice: Normal{Mu: 29000, Sigma: 5000},
			UsageThresholds:  []float64{.23, .45},
			UsageRanges:      []Range{{Min: 0, Max: 99}, {Min: 100, Max: 249}, {Min: 250, Max: 953}},
			Criteria:         2,
		},
	}
}

// NumCriteria is the size of the consumer criteria catalogue.
const NumCriteria = 8

// Validate reports the first inconsistency found, wrapped in ErrInvalid.
//
//gocyclo:ignore
func (p *Params) Validate() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
	}
	if p.Horizon <= 0 {
		return fail("horizon must be positive")
	}
	if p.BaselinePeriod < 0 || p.BaselinePeriod >= p.Horizon {
		return fail("baseline period %d outside horizon", p.BaselinePeriod)
	}
	if p.Population.FirmsPerRegion <= 0 {
		return fail("firms per region must be positive")
	}
	if p.Population.ConsumersTotal <= 0 {
		return fail("consumers total must be positive")
	}
	if len(p.Regions) == 0 {
		return fail("at least one region is required")
	}
	var sum float64
	seen := make(map[string]bool, len(p.Regions))
	for _, r := range p.Regions {
		if r.Name == "" {
			return fail("region name is required")
		}
		if seen[r.Name] {
			return fail("duplicate region %s", r.Name)
		}
		seen[r.Name] = true
		if r.Weight < 0 {
			return fail("region %s has negative weight", r.Name)
		}
		for _, t := range model.Technologies {
			if r.EnergyPrice.Get(t) <= 0 {
				return fail("region %s: energy price for %s must be positive", r.Name, t)
			}
		}
		sum += r.Weight
	}
	if math.Abs(sum-1) > 1e-9 {
		return fail("region weights sum to %.6f, want 1", sum)
	}
	for _, t := range model.Technologies {
		s := p.Tech.Get(t)
		if s.ProductionCost <= 0 || s.EnergyEconomy <= 0 || s.EnergyCapacity <= 0 {
			return fail("technology %s: cost, energy economy and capacity must be positive", t)
		}
		if s.Emission <= 0 {
			return fail("technology %s: emission must be positive", t)
		}
	}
	if p.Bounds.MinCost <= 0 {
		return fail("min cost must be positive")
	}
	c := p.Consumer
	if c.ProbAdoption < 0 || c.ProbAdoption > 1 {
		return fail("prob adoption outside [0,1]")
	}
	if len(c.UsageRanges) != len(c.UsageThresholds)+1 {
		return fail("usage ranges must have one more entry than thresholds")
	}
	if c.Criteria <= 0 || c.Criteria > NumCriteria {
		return fail("criteria must be in [1,%d]", NumCriteria)
	}
	if p.Firm.PortfolioWait < 0 || p.Firm.MuMax < 0 {
		return fail("firm parameters must not be negative")
	}
	return nil
}

// Region returns the region with the given name.
func (p *Params) Region(name string) (Region, bool) {
	for _, r := range p.Regions {
		if r.Name == name {
			return r, true
		}
	}
	return Region{}, false
}

// LoadedPrice returns the price a consumer in dest pays for a vehicle priced
// at salesPrice and shipped from origin.
func (p *Params) LoadedPrice(salesPrice float64, origin, dest string) float64 {
	r, ok := p.Region(dest)
	if !ok {
		return salesPrice
	}
	return salesPrice*(1+r.ICMS) + r.Freight[origin]
}

// Clone returns a deep copy so a run never shares slices or maps with the
// caller.
func (p Params) Clone() Params {
	out := p
	out.Regions = make([]Region, len(p.Regions))
	for i, r := range p.Regions {
		r.Freight = maps.Clone(r.Freight)
		out.Regions[i] = r
	}
	out.Consumer.UsageThresholds = slices.Clone(p.Consumer.UsageThresholds)
	out.Consumer.UsageRanges = slices.Clone(p.Consumer.UsageRanges)
	return out
}
