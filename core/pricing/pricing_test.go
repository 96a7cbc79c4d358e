package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kilianp07/evpolicy/core/model"
	"github.com/kilianp07/evpolicy/core/params"
)

func gasVehicle() model.Vehicle {
	return model.Vehicle{Technology: model.Gas, ProductionCost: 16950, EnergyEconomy: 15.9, EnergyCapacity: 60, Quality: .5}
}

func TestComputePriceNoPolicy(t *testing.T) {
	p := params.Default()
	q := ComputePrice(gasVehicle(), &p, model.PolicyConfig{Kind: model.PolicyNone}, 0)
	want := 1.02 * 1.096 * 1.13 * 1.1 * 16950
	assert.InDelta(t, want, q.SalesPrice, 1e-6)
	assert.InDelta(t, (.02+.096+.13)*16950, q.OwedTaxes, 1e-6)
	assert.Zero(t, q.PolicyDiscount)
	assert.Zero(t, q.PolicyTax)
}

func TestComputePricePure(t *testing.T) {
	p := params.Default()
	pol := model.PolicyConfig{Kind: model.PolicyTax, Level: .4}
	v := gasVehicle()
	first := ComputePrice(v, &p, pol, 1.2)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ComputePrice(v, &p, pol, 1.2))
	}
}

func TestTaxPolicyFollowsBuckets(t *testing.T) {
	p := params.Default()
	pol := model.PolicyConfig{Kind: model.PolicyTax, Level: .5}
	v := gasVehicle()
	e := Emissions(v, &p)

	dirty := ComputePrice(v, &p, pol, e/2) // ratio 2 -> last bucket
	assert.InDelta(t, .5*.30, dirty.PolicyTax, 1e-12)

	clean := ComputePrice(v, &p, pol, e*2) // ratio .5 -> first bucket
	assert.InDelta(t, .5*-.30, clean.PolicyTax, 1e-12)
	assert.Less(t, clean.SalesPrice, dirty.SalesPrice)

	neutral := ComputePrice(v, &p, pol, 0)
	assert.Zero(t, neutral.PolicyTax)
}

func TestOtherPoliciesLeavePriceUnchanged(t *testing.T) {
	p := params.Default()
	v := gasVehicle()
	base := ComputePrice(v, &p, model.PolicyConfig{}, 1)
	for _, k := range []model.PolicyKind{model.PolicyPDCashback, model.PolicyEmissionsCap} {
		q := ComputePrice(v, &p, model.PolicyConfig{Kind: k, Level: .9}, 1)
		assert.Equal(t, base, q, k)
	}
}

func TestBucket(t *testing.T) {
	cases := []struct {
		r    float64
		want int
	}{
		{0, 0}, {.69, 0}, {.70, 1}, {.9, 2}, {.99, 3}, {1, 4}, {1.1, 5}, {1.2, 6}, {1.4, 7}, {1.5, 8}, {9, 8},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Bucket(c.r), "ratio %v", c.r)
	}
	for i := 1; i < len(Multipliers); i++ {
		assert.Greater(t, Multipliers[i], Multipliers[i-1])
	}
}

func TestEmissionsAndRange(t *testing.T) {
	p := params.Default()
	v := gasVehicle()
	assert.InDelta(t, 954, DriveRange(v), 1e-9)
	assert.InDelta(t, 23.06/15.9, Emissions(v, &p), 1e-12)
}

func TestApply(t *testing.T) {
	p := params.Default()
	v := gasVehicle()
	q := Apply(&v, &p, model.PolicyConfig{}, 0)
	assert.Equal(t, q.SalesPrice, v.SalesPrice)
	assert.InDelta(t, v.SalesPrice-v.ProductionCost-v.OwedTaxes, UnitMargin(v), 1e-9)
}
