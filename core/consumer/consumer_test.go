package consumer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/evpolicy/core/model"
	"github.com/kilianp07/evpolicy/core/params"
	"github.com/kilianp07/evpolicy/core/pricing"
	"github.com/kilianp07/evpolicy/core/rng"
)

func testParams() params.Params {
	p := params.Default()
	p.Consumer.ProbAdoption = 1
	return p
}

func offer(p *params.Params, id int, tech model.Technology, region string) Offer {
	v := p.Tech.Get(tech).Vehicle(tech)
	pricing.Apply(&v, p, model.PolicyConfig{}, 0)
	return NewOffer(id, region, &v, 0, p)
}

func ctxFor(p *params.Params, seed uint64) Context {
	return Context{Params: p, RNG: rng.New(seed), Cap: math.Inf(1), GreenInfrastructure: 1}
}

func TestPurchaseSingleGasVehicle(t *testing.T) {
	p := testParams()
	c := &Consumer{ID: 1, Region: "southeast", ReservationPrice: 100000, Distance: 10000}
	o := offer(&p, 7, model.Gas, "southeast")

	choice, ok := c.Purchase(ctxFor(&p, 1), []Offer{o})
	require.True(t, ok)
	assert.Equal(t, 7, choice.Offer.FirmID)
	require.NotNil(t, c.Owned)
	assert.Equal(t, model.Gas, c.Owned.Vehicle.Technology)
	assert.InDelta(t, 10000*o.Emission, c.Driving(), 1e-9)
}

func TestPurchaseRespectsConstraints(t *testing.T) {
	p := testParams()
	var catalogue []Offer
	for i, tech := range model.Technologies {
		for j, r := range p.Regions {
			catalogue = append(catalogue, offer(&p, i*10+j, tech, r.Name))
		}
	}
	s := rng.New(11)
	for i := 0; i < 500; i++ {
		region := p.Regions[i%len(p.Regions)]
		c := New(i, region, &p, s)
		ctx := Context{Params: &p, RNG: s, Cap: 1.2, GreenInfrastructure: 1.5}
		choice, ok := c.Purchase(ctx, catalogue)
		if !ok {
			continue
		}
		price := p.LoadedPrice(choice.Offer.Vehicle.SalesPrice, choice.Offer.FirmRegion, c.Region)
		assert.Less(t, price, c.ReservationPrice)
		assert.Greater(t, choice.Offer.Vehicle.DriveRange(), choice.RequiredRange)
		assert.Less(t, choice.Offer.Emission, 1.2)
		assert.Len(t, choice.Criteria, p.Consumer.Criteria)
	}
}

func TestPurchaseEmptyViableSet(t *testing.T) {
	p := testParams()
	o := offer(&p, 1, model.Gas, "southeast")

	poor := &Consumer{Region: "southeast", ReservationPrice: 1000}
	_, ok := poor.Purchase(ctxFor(&p, 2), []Offer{o})
	assert.False(t, ok)
	assert.Nil(t, poor.Owned)

	capped := &Consumer{Region: "southeast", ReservationPrice: 1e6}
	ctx := ctxFor(&p, 2)
	ctx.Cap = o.Emission / 2
	_, ok = capped.Purchase(ctx, []Offer{o})
	assert.False(t, ok)
}

func TestNoEntryKeepsVehicle(t *testing.T) {
	p := testParams()
	p.Consumer.ProbAdoption = 0
	owned := &Owned{FirmID: 3, Emission: 1}
	c := &Consumer{Region: "southeast", ReservationPrice: 1e6, Distance: 5, Owned: owned}
	_, ok := c.Purchase(ctxFor(&p, 3), []Offer{offer(&p, 1, model.Gas, "southeast")})
	assert.False(t, ok)
	assert.Same(t, owned, c.Owned)
	assert.Equal(t, 5.0, c.Driving())
}

func TestRequiredRangeBuckets(t *testing.T) {
	p := testParams()
	ctx := ctxFor(&p, 5)
	for i := 0; i < 1000; i++ {
		r := RequiredRange(ctx)
		assert.GreaterOrEqual(t, r, 0.0)
		assert.LessOrEqual(t, r, 953.0)
	}
}

func TestScoreCriteria(t *testing.T) {
	p := testParams()
	c := &Consumer{Region: "northeast"}
	ctx := ctxFor(&p, 1)
	ctx.GreenInfrastructure = 1.7
	green := offer(&p, 1, model.Green, "southeast")
	gas := offer(&p, 2, model.Gas, "southeast")

	assert.Equal(t, 1.7, c.score(ctx, green, StationDensity, 0))
	assert.Equal(t, 1.0, c.score(ctx, gas, StationDensity, 0))
	assert.Equal(t, p.Firm.Epsilon, c.score(ctx, gas, TechnologyShare, 0))
	assert.Equal(t, .3, c.score(ctx, gas, Emotion, .3))
	assert.Greater(t, c.score(ctx, green, Cleanliness, 0), c.score(ctx, gas, Cleanliness, 0))
	loaded := p.LoadedPrice(gas.Vehicle.SalesPrice, "southeast", "northeast")
	assert.InDelta(t, 1/loaded, c.score(ctx, gas, Affordability, 0), 1e-15)
}

func TestNewConsumerDraws(t *testing.T) {
	p := testParams()
	p.Consumer.Distance = params.Normal{Mu: -5, Sigma: 0}
	c := New(1, p.Regions[0], &p, rng.New(1))
	assert.Zero(t, c.Distance)
	assert.Equal(t, "southeast", c.Region)
	assert.Nil(t, c.Owned)
}
