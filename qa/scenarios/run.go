package scenarios

import (
	"context"
	"fmt"

	"github.com/kilianp07/evpolicy/core/firm"
	"github.com/kilianp07/evpolicy/core/model"
	"github.com/kilianp07/evpolicy/core/params"
	"github.com/kilianp07/evpolicy/core/report"
	"github.com/kilianp07/evpolicy/core/simulation"
)

// Outcome is the state of a finished scenario run.
type Outcome struct {
	Params       params.Params
	Records      report.Sequence
	Firms        []*firm.Firm
	InitialFirms int
}

// Execute runs the scenario to its horizon.
func Execute(ctx context.Context, sc *Scenario, opts ...simulation.Option) (Outcome, error) {
	p, err := sc.ModelParams()
	if err != nil {
		return Outcome{}, fmt.Errorf("%s: %w", sc.Name, err)
	}
	policy, err := sc.Policy.ToModel()
	if err != nil {
		return Outcome{}, fmt.Errorf("%s: %w", sc.Name, err)
	}
	sim, err := simulation.New(p, policy, sc.Seed, opts...)
	if err != nil {
		return Outcome{}, fmt.Errorf("%s: %w", sc.Name, err)
	}
	out := Outcome{Params: p, InitialFirms: len(sim.Firms())}
	for !sim.Done() {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
		sim.Step(ctx)
	}
	out.Records = sim.Report()
	out.Firms = sim.Firms()
	return out, nil
}

// Check returns one error per violated expectation.
//
//gocyclo:ignore
func (e Expected) Check(o Outcome) []error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}
	if e.Periods > 0 && len(o.Records) != e.Periods {
		fail("periods: got %d, want %d", len(o.Records), e.Periods)
	}

	var totals model.PerTech[int]
	var units, bankrupt int
	for _, rec := range o.Records {
		for _, t := range model.Technologies {
			totals[t] += rec.UnitsSold[t]
		}
		units += rec.TotalUnits()
		bankrupt += rec.Bankruptcies
		if e.MaxUnitsPerPeriod != nil && rec.TotalUnits() > *e.MaxUnitsPerPeriod {
			fail("period %d: %d units sold, want at most %d", rec.Period, rec.TotalUnits(), *e.MaxUnitsPerPeriod)
		}
		if e.ConstantFirms && rec.Firms != o.InitialFirms {
			fail("period %d: %d firms, want %d", rec.Period, rec.Firms, o.InitialFirms)
		}
	}
	for name, want := range e.TotalUnitsSold {
		t, err := model.ParseTechnology(name)
		if err != nil {
			fail("total_units_sold: %v", err)
			continue
		}
		if totals[t] != want {
			fail("%s units: got %d, want %d", t, totals[t], want)
		}
	}
	if units < e.MinTotalUnits {
		fail("units: got %d, want at least %d", units, e.MinTotalUnits)
	}
	if bankrupt < e.MinBankruptcies {
		fail("bankruptcies: got %d, want at least %d", bankrupt, e.MinBankruptcies)
	}
	if e.BaselineVehicles {
		for _, f := range o.Firms {
			f.Portfolio.Each(func(t model.Technology, v *model.Vehicle) {
				base := o.Params.Tech.Get(t).Vehicle(t)
				if v.Characteristics() != base {
					fail("firm %d %s: characteristics moved from baseline", f.ID, t)
				}
			})
		}
	}
	return errs
}
