// Package pricing computes vehicle sales prices, owed taxes and policy
// discounts. Every function is pure: the result depends only on the vehicle
// characteristics, the parameters, the active policy and the benchmark
// emission passed in.
package pricing

import (
	"github.com/kilianp07/evpolicy/core/model"
	"github.com/kilianp07/evpolicy/core/params"
)

// Breakpoints split the emission ratio into buckets; bucket i holds ratios
// below Breakpoints[i] and the last bucket holds everything above.
var Breakpoints = [8]float64{0.70, 0.85, 0.95, 1.00, 1.05, 1.15, 1.30, 1.50}

// Multipliers are the signed adjustments of each bucket, increasing from the
// cleanest to the dirtiest vehicles.
var Multipliers = [9]float64{-0.30, -0.20, -0.10, -0.05, 0, 0.05, 0.10, 0.20, 0.30}

// Quote is the result of pricing a vehicle.
type Quote struct {
	SalesPrice     float64
	OwedTaxes      float64
	PolicyDiscount float64
	PolicyTax      float64
}

// Bucket returns the bucket index of ratio r.
func Bucket(r float64) int {
	for i, b := range Breakpoints {
		if r < b {
			return i
		}
	}
	return len(Breakpoints)
}

// RelativeEmissionFactor returns the bucket multiplier of the vehicle emission
// relative to the benchmark. A zero benchmark means no prior sales and yields a
// neutral factor.
func RelativeEmissionFactor(emission, benchmark float64) float64 {
	if benchmark <= 0 {
		return 0
	}
	return Multipliers[Bucket(emission/benchmark)]
}

// Emissions returns the per-distance emission of v.
func Emissions(v model.Vehicle, p *params.Params) float64 {
	return v.Emissions(p.Tech.Get(v.Technology).Emission)
}

// DriveRange returns EE × EC.
func DriveRange(v model.Vehicle) float64 { return v.DriveRange() }

// PolicyTax returns the policy surcharge (or rebate when negative) rate for v.
func PolicyTax(v model.Vehicle, p *params.Params, policy model.PolicyConfig, benchmark float64) float64 {
	switch policy.Normalized().Kind {
	case model.PolicyTax:
		return policy.Level * RelativeEmissionFactor(Emissions(v, p), benchmark)
	default:
		// pd_cashback is settled by firms against R&D spend and the
		// emissions cap filters consumers instead of moving prices.
		return 0
	}
}

// PolicyDiscount returns the absolute discount embedded in the price. None of
// the supported policies grant a per-vehicle discount.
func PolicyDiscount(model.Vehicle, *params.Params, model.PolicyConfig, float64) float64 {
	return 0
}

// ComputePrice prices v. Callers guarantee a positive production cost and
// energy economy.
func ComputePrice(v model.Vehicle, p *params.Params, policy model.PolicyConfig, benchmark float64) Quote {
	spec := p.Tech.Get(v.Technology)
	tax := PolicyTax(v, p, policy, benchmark)
	discount := PolicyDiscount(v, p, policy, benchmark)
	price := (1 + spec.PIS) * (1 + spec.COFINS) * (1 + spec.IPI) *
		(1 + p.Firm.Margin) * (1 + tax) * v.ProductionCost
	return Quote{
		SalesPrice:     price + discount,
		OwedTaxes:      (tax + spec.PIS + spec.COFINS + spec.IPI) * v.ProductionCost,
		PolicyDiscount: discount,
		PolicyTax:      tax,
	}
}

// Apply recomputes the derived price fields of v in place.
func Apply(v *model.Vehicle, p *params.Params, policy model.PolicyConfig, benchmark float64) Quote {
	q := ComputePrice(*v, p, policy, benchmark)
	v.SalesPrice = q.SalesPrice
	v.OwedTaxes = q.OwedTaxes
	v.PolicyDiscount = q.PolicyDiscount
	v.PolicyTax = q.PolicyTax
	return q
}

// UnitMargin is the profit of selling one unit of v at its current price.
func UnitMargin(v model.Vehicle) float64 {
	return v.SalesPrice - v.ProductionCost - v.OwedTaxes - v.PolicyDiscount
}
