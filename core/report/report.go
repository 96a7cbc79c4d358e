// Package report defines the per-period record produced by a run. It is the
// only contract between the simulation and the exporters, metric sinks and
// sweep harness.
package report

import (
	"strconv"

	"github.com/kilianp07/evpolicy/core/model"
)

// Record summarises one period.
type Record struct {
	Period            int     `json:"period"`
	GreenMarketShare  float64 `json:"green_market_share"`
	HybridMarketShare float64 `json:"hybrid_market_share"`
	NewFirmsShare     float64 `json:"new_firms_share"`
	Emissions         float64 `json:"emissions"`
	EmissionsIndex    float64 `json:"emissions_index"`
	BenchmarkE        float64 `json:"benchmark_e"`
	// EmissionsCap is 0 when no cap applies.
	EmissionsCap              float64            `json:"emissions_cap"`
	PublicExpenditure         float64            `json:"public_expenditure"`
	PublicExpenditureByRegion map[string]float64 `json:"public_expenditure_by_region"`
	// PublicExpenditureIndex is the expenditure accumulated since the
	// baseline period relative to the first period that spent anything; 0
	// until then.
	PublicExpenditureIndex float64 `json:"public_expenditure_index"`
	// GovernmentRevenue is gross of policy rebates, which are reported in
	// PublicExpenditure.
	GovernmentRevenue float64            `json:"government_revenue"`
	UnitsSold         model.PerTech[int] `json:"units_sold"`
	Firms             int                `json:"firms"`
	Bankruptcies      int                `json:"bankruptcies"`
}

// TotalUnits returns the number of vehicles sold in the period.
func (r Record) TotalUnits() int {
	n := 0
	for _, v := range r.UnitsSold {
		n += v
	}
	return n
}

// Sequence is the append-only output of a run.
type Sequence []Record

// Last returns the final record and false for an empty sequence.
func (s Sequence) Last() (Record, bool) {
	if len(s) == 0 {
		return Record{}, false
	}
	return s[len(s)-1], true
}

// TotalEmissions sums emissions over all periods.
func (s Sequence) TotalEmissions() float64 {
	var sum float64
	for _, r := range s {
		sum += r.Emissions
	}
	return sum
}

// Columns lists the flat column names used by tabular exporters.
func Columns() []string {
	return []string{
		"period", "green_market_share", "hybrid_market_share", "new_firms_share",
		"emissions", "emissions_index", "benchmark_e", "emissions_cap",
		"public_expenditure", "public_expenditure_index", "government_revenue",
		"units_gas", "units_hybrid", "units_green", "firms", "bankruptcies",
	}
}

// Values returns the record flattened in Columns order.
func (r Record) Values() []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return []string{
		strconv.Itoa(r.Period), f(r.GreenMarketShare), f(r.HybridMarketShare), f(r.NewFirmsShare),
		f(r.Emissions), f(r.EmissionsIndex), f(r.BenchmarkE), f(r.EmissionsCap),
		f(r.PublicExpenditure), f(r.PublicExpenditureIndex), f(r.GovernmentRevenue),
		strconv.Itoa(r.UnitsSold[model.Gas]), strconv.Itoa(r.UnitsSold[model.Hybrid]), strconv.Itoa(r.UnitsSold[model.Green]),
		strconv.Itoa(r.Firms), strconv.Itoa(r.Bankruptcies),
	}
}

// Average returns the field-wise mean of records, used to summarise repeated
// runs of one configuration. Period comes from the first record; counts are
// rounded to the nearest integer.
func Average(records []Record) Record {
	if len(records) == 0 {
		return Record{}
	}
	n := float64(len(records))
	out := Record{Period: records[0].Period, PublicExpenditureByRegion: map[string]float64{}}
	var units model.PerTech[float64]
	var firms, bankrupt float64
	for _, r := range records {
		out.GreenMarketShare += r.GreenMarketShare / n
		out.HybridMarketShare += r.HybridMarketShare / n
		out.NewFirmsShare += r.NewFirmsShare / n
		out.Emissions += r.Emissions / n
		out.EmissionsIndex += r.EmissionsIndex / n
		out.BenchmarkE += r.BenchmarkE / n
		out.EmissionsCap += r.EmissionsCap / n
		out.PublicExpenditure += r.PublicExpenditure / n
		out.PublicExpenditureIndex += r.PublicExpenditureIndex / n
		out.GovernmentRevenue += r.GovernmentRevenue / n
		for k, v := range r.PublicExpenditureByRegion {
			out.PublicExpenditureByRegion[k] += v / n
		}
		for _, t := range model.Technologies {
			units[t] += float64(r.UnitsSold[t]) / n
		}
		firms += float64(r.Firms) / n
		bankrupt += float64(r.Bankruptcies) / n
	}
	for _, t := range model.Technologies {
		out.UnitsSold[t] = int(units[t] + .5)
	}
	out.Firms = int(firms + .5)
	out.Bankruptcies = int(bankrupt + .5)
	return out
}
