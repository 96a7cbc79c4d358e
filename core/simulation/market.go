package simulation

import (
	"math"

	"github.com/kilianp07/evpolicy/core/model"
)

// unitLedger counts market-wide sales per period. Firms only ever read closed
// periods from it.
type unitLedger struct {
	periods []model.PerTech[int]
}

func (l *unitLedger) open(t int) {
	for len(l.periods) <= t {
		l.periods = append(l.periods, model.PerTech[int]{})
	}
}

func (l *unitLedger) add(tech model.Technology, t int) {
	l.open(t)
	l.periods[t][tech]++
}

func (l *unitLedger) Units(tech model.Technology, t int) int {
	if t < 0 || t >= len(l.periods) {
		return 0
	}
	return l.periods[t][tech]
}

func (l *unitLedger) Total(t int) int {
	if t < 0 || t >= len(l.periods) {
		return 0
	}
	n := 0
	for _, u := range l.periods[t] {
		n += u
	}
	return n
}

// share returns the share of tech in period t, 0 when nothing was sold.
func (l *unitLedger) share(tech model.Technology, t int) float64 {
	total := l.Total(t)
	if total == 0 {
		return 0
	}
	return float64(l.Units(tech, t)) / float64(total)
}

// government accumulates the public accounts of one period.
type government struct {
	revenue     float64
	expenditure float64
	byRegion    map[string]float64
}

func newGovernment(regions []string) government {
	g := government{byRegion: make(map[string]float64, len(regions))}
	for _, r := range regions {
		g.byRegion[r] = 0
	}
	return g
}

func (g *government) spend(region string, amount float64) {
	if amount <= 0 {
		return
	}
	g.expenditure += amount
	g.byRegion[region] += amount
}

// sale books the taxes and incentives of one vehicle bought in region.
// Revenue is gross: a policy rebate lowers the owed taxes of the vehicle but
// is booked once, as expenditure.
func (g *government) sale(region string, v model.Vehicle) {
	rebate := math.Max(0, -v.PolicyTax*v.ProductionCost)
	g.revenue += v.OwedTaxes + rebate
	g.spend(region, rebate+v.PolicyDiscount)
}

func index(value, baseline float64) float64 {
	if baseline == 0 {
		return 0
	}
	return value / baseline
}
