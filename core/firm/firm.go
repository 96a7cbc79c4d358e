// Package firm implements vehicle manufacturers: profit and budget accounting,
// market share, R&D investment, portfolio adoption and abandonment, and the
// creation of entrants that imitate a surviving firm.
//
// A firm never reaches back into the simulation; every step receives a
// Context describing the period it runs in.
package firm

import (
	"math"

	"github.com/kilianp07/evpolicy/core/model"
	"github.com/kilianp07/evpolicy/core/params"
	"github.com/kilianp07/evpolicy/core/pricing"
)

// MaxTechnologies is the largest portfolio a firm may hold.
const MaxTechnologies = 3

// Firm produces and markets vehicles.
type Firm struct {
	ID     int
	Region string
	Budget float64

	Portfolio model.TechMap[*model.Vehicle]

	Profit       model.PerTech[Series[float64]]
	RDInvestment model.PerTech[Series[float64]]
	UnitsSold    model.PerTech[Series[int]]
	MarketShare  model.PerTech[Series[float64]]
	TotalShare   Series[float64]

	// PortfolioMarker is the last period a technology was added or dropped.
	PortfolioMarker int
	CreatedAt       int
	// Entrant is true for firms created to replace a bankrupt one.
	Entrant bool
}

// New returns a firm holding the baseline Gas vehicle.
func New(id int, region string, budget float64, period int, p *params.Params) *Firm {
	f := &Firm{ID: id, Region: region, Budget: budget, PortfolioMarker: period, CreatedAt: period}
	v := p.Tech.Get(model.Gas).Vehicle(model.Gas)
	f.Portfolio.Put(model.Gas, &v)
	return f
}

// Technologies returns the held technologies in canonical order.
func (f *Firm) Technologies() []model.Technology { return f.Portfolio.Keys() }

// Vehicle returns the vehicle offered for tech.
func (f *Firm) Vehicle(tech model.Technology) (*model.Vehicle, bool) {
	return f.Portfolio.Get(tech)
}

// TotalUnits returns all units sold in period t.
func (f *Firm) TotalUnits(t int) int {
	n := 0
	for _, tech := range model.Technologies {
		n += f.UnitsSold[tech].At(t)
	}
	return n
}

// PeriodProfit returns the profit booked for period t across technologies.
func (f *Firm) PeriodProfit(t int) float64 {
	var sum float64
	for _, tech := range model.Technologies {
		sum += f.Profit[tech].At(t)
	}
	return sum
}

// UpdateProfit books, for every held technology, the margin earned on the
// units sold in the last closed period at the price they were sold for.
func (f *Firm) UpdateProfit(ctx Context) {
	t := ctx.Period
	f.Portfolio.Each(func(tech model.Technology, v *model.Vehicle) {
		units := f.UnitsSold[tech].At(t - 1)
		f.Profit[tech].Add(t, float64(units)*pricing.UnitMargin(*v))
	})
}

// UpdateMarketShare records per technology and total shares of the last
// closed period.
func (f *Firm) UpdateMarketShare(ctx Context) {
	t := ctx.Period
	for _, tech := range model.Technologies {
		f.MarketShare[tech].Set(t, ctx.ShareOf(f, tech, t-1))
	}
	f.TotalShare.Set(t, ctx.TotalShareOf(f, t-1))
}

// UpdateBudget adds this period's profit and pays the fixed operating cost,
// which is waived in period 0.
func (f *Firm) UpdateBudget(ctx Context) {
	f.Budget += f.PeriodProfit(ctx.Period)
	if ctx.Period > 0 {
		f.Budget -= ctx.Params.Firm.FixedCosts
	}
}

// IsBankrupt reports whether the budget is negative.
func (f *Firm) IsBankrupt() bool { return f.Budget < 0 }

// Sales records one unit of tech sold in period t.
func (f *Firm) Sales(tech model.Technology, t int) {
	f.UnitsSold[tech].Add(t, 1)
}

func (f *Firm) cooledDown(ctx Context) bool {
	return ctx.Period-f.PortfolioMarker >= ctx.Params.Firm.PortfolioWait
}

// frontier returns the best energy economy and the lowest production cost
// among held vehicles.
func (f *Firm) frontier() (ee, cost float64) {
	cost = math.Inf(1)
	f.Portfolio.Each(func(_ model.Technology, v *model.Vehicle) {
		ee = math.Max(ee, v.EnergyEconomy)
		cost = math.Min(cost, v.ProductionCost)
	})
	return ee, cost
}

// AdoptionProbability returns the chance that a portfolio change attempt
// succeeds this period.
func (f *Firm) AdoptionProbability(ctx Context) float64 {
	fp := ctx.Params.Firm
	ee, cost := f.frontier()
	if cost <= 0 || math.IsInf(cost, 1) || ctx.Params.Bounds.MaxEnergyEconomy <= 0 {
		return 0
	}
	eps := ctx.GreenShare
	if eps <= 0 {
		eps = fp.Epsilon
	}
	tech := ee/ctx.Params.Bounds.MaxEnergyEconomy + ctx.Params.Bounds.MinCost/cost
	return math.Pow(tech, fp.Omega) / 2 * math.Pow(eps, 1-fp.Omega)
}

// ChangePortfolio tries to adopt a technology the firm does not hold yet.
// It returns the adopted technology on success.
func (f *Firm) ChangePortfolio(ctx Context) (model.Technology, bool) {
	if f.Portfolio.Len() >= MaxTechnologies || !f.cooledDown(ctx) {
		return 0, false
	}
	if f.Budget < ctx.Params.Firm.AdoptionCost {
		return 0, false
	}
	if ctx.RNG.Float64() >= f.AdoptionProbability(ctx) {
		return 0, false
	}
	missing := f.Portfolio.Missing()
	tech := missing[ctx.RNG.IntN(len(missing))]

	v := f.imitate(ctx, tech)
	f.Portfolio.Put(tech, &v)
	f.Budget -= ctx.Params.Firm.AdoptionCost
	f.PortfolioMarker = ctx.Period
	ctx.logger().Debugw("technology adopted", map[string]any{"firm": f.ID, "tech": tech.String(), "period": ctx.Period})
	return tech, true
}

// imitate builds a vehicle of tech. Without any holder it starts at the
// global baseline; otherwise it interpolates towards a holder picked in
// proportion to its share of that technology.
func (f *Firm) imitate(ctx Context, tech model.Technology) model.Vehicle {
	base := ctx.Params.Tech.Get(tech).Vehicle(tech)
	var holders []*model.Vehicle
	var weights []float64
	for _, peer := range ctx.Peers {
		if peer == f {
			continue
		}
		if v, ok := peer.Portfolio.Get(tech); ok {
			holders = append(holders, v)
			weights = append(weights, ctx.ShareOf(peer, tech, ctx.Period-1))
		}
	}
	if len(holders) == 0 {
		return base
	}
	return Interpolate(ctx, base, *holders[ctx.RNG.Weighted(weights)])
}

// Interpolate draws each characteristic uniformly between the baseline and
// the imitated vehicle.
func Interpolate(ctx Context, base, target model.Vehicle) model.Vehicle {
	return model.Vehicle{
		Technology:     base.Technology,
		ProductionCost: ctx.RNG.Uniform(base.ProductionCost, target.ProductionCost),
		EnergyEconomy:  ctx.RNG.Uniform(base.EnergyEconomy, target.EnergyEconomy),
		EnergyCapacity: ctx.RNG.Uniform(base.EnergyCapacity, target.EnergyCapacity),
		Quality:        ctx.RNG.Uniform(base.Quality, target.Quality),
	}
}

// ROI returns the return on last period's R&D for tech.
func (f *Firm) ROI(ctx Context, tech model.Technology) float64 {
	v, ok := f.Portfolio.Get(tech)
	if !ok {
		return 0
	}
	rd := f.RDInvestment[tech].At(ctx.Period - 1)
	if rd <= 0 {
		return 0
	}
	units := f.UnitsSold[tech].At(ctx.Period - 1)
	return ctx.Params.Firm.Margin * v.ProductionCost * float64(units) / rd
}

// AbandonPortfolio drops the first held technology whose ROI is below one.
// At most one technology is dropped per call.
func (f *Firm) AbandonPortfolio(ctx Context) (model.Technology, bool) {
	if f.Portfolio.Len() < 2 || !f.cooledDown(ctx) {
		return 0, false
	}
	for _, tech := range f.Portfolio.Keys() {
		if f.ROI(ctx, tech) < 1 {
			f.Portfolio.Delete(tech)
			f.PortfolioMarker = ctx.Period
			ctx.logger().Debugw("technology abandoned", map[string]any{"firm": f.ID, "tech": tech.String(), "period": ctx.Period})
			return tech, true
		}
	}
	return 0, false
}

// RDResult summarises one InvestRD call.
type RDResult struct {
	Invested float64
	Cashback float64
	Improved []model.Technology
}

// InvestRD spends part of the budget on R&D split across held technologies
// and applies the stochastic improvements. Under the pd_cashback policy the
// government refunds a share of the R&D spent on Hybrid and Green.
func (f *Firm) InvestRD(ctx Context) RDResult {
	var res RDResult
	if f.Budget <= 0 || f.Portfolio.Len() == 0 {
		return res
	}
	fp := ctx.Params.Firm
	mu := ctx.RNG.Uniform(0, fp.MuMax)
	invest := math.Max(mu*f.Budget, fp.RDMinimum)
	invest = math.Min(invest, f.Budget)
	f.Budget -= invest
	res.Invested = invest

	techs := f.Portfolio.Keys()
	each := invest / float64(len(techs))
	var supported float64
	for _, tech := range techs {
		f.RDInvestment[tech].Add(ctx.Period, each)
		if tech != model.Gas {
			supported += each
		}
		if !ctx.RNG.Bernoulli(1 - math.Exp(-fp.Alpha1*each)) {
			continue
		}
		v, _ := f.Portfolio.Get(tech)
		if improve(ctx, v) {
			res.Improved = append(res.Improved, tech)
		}
	}

	policy := ctx.Policy.Normalized()
	if policy.Kind == model.PolicyPDCashback && supported > 0 {
		res.Cashback = policy.Level * supported
		f.Budget += res.Cashback
	}
	return res
}

type characteristic int

const (
	charCost characteristic = iota
	charEnergy
	charQuality
)

// improve moves one randomly chosen characteristic of v towards its global
// bound. It returns false when every characteristic is already at its bound.
func improve(ctx Context, v *model.Vehicle) bool {
	b := ctx.Params.Bounds
	var options []characteristic
	if v.ProductionCost > b.MinCost {
		options = append(options, charCost)
	}
	if v.Technology.Combustion() {
		if v.EnergyEconomy < b.MaxEnergyEconomy {
			options = append(options, charEnergy)
		}
	} else if v.EnergyCapacity < b.MaxEnergyCapacity {
		options = append(options, charEnergy)
	}
	if v.Quality < b.MaxQuality {
		options = append(options, charQuality)
	}
	if len(options) == 0 {
		return false
	}
	step := ctx.Params.Firm.Alpha2 * ctx.RNG.Float64()
	switch options[ctx.RNG.IntN(len(options))] {
	case charCost:
		v.ProductionCost = math.Max(b.MinCost, v.ProductionCost-step*(v.ProductionCost-b.MinCost))
	case charEnergy:
		if v.Technology.Combustion() {
			v.EnergyEconomy = math.Min(b.MaxEnergyEconomy, v.EnergyEconomy+step*(b.MaxEnergyEconomy-v.EnergyEconomy))
		} else {
			v.EnergyCapacity = math.Min(b.MaxEnergyCapacity, v.EnergyCapacity+step*(b.MaxEnergyCapacity-v.EnergyCapacity))
		}
	case charQuality:
		v.Quality = math.Min(b.MaxQuality, v.Quality+step*(b.MaxQuality-v.Quality))
	}
	return true
}

// NewEntrant creates a firm that imitates another: it inherits a random subset
// of its technologies, weighted toward fewer, with characteristics drawn
// between the baseline and the imitated values.
func NewEntrant(ctx Context, id int, budget float64, imitated *Firm) *Firm {
	f := &Firm{ID: id, Region: imitated.Region, Budget: budget, PortfolioMarker: ctx.Period, CreatedAt: ctx.Period, Entrant: true}
	held := imitated.Portfolio.Keys()
	n := len(held)
	weights := make([]float64, n)
	for k := 1; k <= n; k++ {
		weights[k-1] = float64(n - k + 1)
	}
	k := ctx.RNG.Weighted(weights) + 1
	picked := ctx.RNG.Sample(n, k)
	chosen := make(map[int]bool, len(picked))
	for _, i := range picked {
		chosen[i] = true
	}
	for i, tech := range held {
		if !chosen[i] {
			continue
		}
		src, _ := imitated.Portfolio.Get(tech)
		v := Interpolate(ctx, ctx.Params.Tech.Get(tech).Vehicle(tech), *src)
		f.Portfolio.Put(tech, &v)
	}
	return f
}
