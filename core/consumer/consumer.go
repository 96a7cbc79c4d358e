// Package consumer implements vehicle buyers: each period a consumer may
// enter the market, filter the catalogue down to the vehicles it can afford,
// that cover its range need and that pass the emissions cap, and buy the
// best one on a randomly drawn set of criteria.
package consumer

import (
	"math"
	"slices"

	"github.com/kilianp07/evpolicy/core/logger"
	"github.com/kilianp07/evpolicy/core/model"
	"github.com/kilianp07/evpolicy/core/params"
	"github.com/kilianp07/evpolicy/core/pricing"
	"github.com/kilianp07/evpolicy/core/rng"
)

// Offer is one vehicle of the cross-firm catalogue, as seen by consumers in
// a given period.
type Offer struct {
	FirmID     int
	FirmRegion string
	Vehicle    *model.Vehicle
	// Emission is the per-distance emission of Vehicle.
	Emission float64
	// MarketShare is the firm's share of Vehicle's technology.
	MarketShare float64
}

// NewOffer builds an offer for v.
func NewOffer(firmID int, region string, v *model.Vehicle, share float64, p *params.Params) Offer {
	return Offer{FirmID: firmID, FirmRegion: region, Vehicle: v, Emission: pricing.Emissions(*v, p), MarketShare: share}
}

// Context carries the market conditions of the current period.
type Context struct {
	Period int
	Params *params.Params
	RNG    *rng.Stream
	Log    logger.Logger
	// Cap is the emissions cap; +Inf when no cap applies.
	Cap                 float64
	GreenInfrastructure float64
}

// Owned is the vehicle a consumer drives, frozen at purchase time.
type Owned struct {
	FirmID   int
	Vehicle  model.Vehicle
	Emission float64
	Period   int
}

// Consumer purchases and uses vehicles.
type Consumer struct {
	ID               int
	Region           string
	ReservationPrice float64
	Distance         float64
	Owned            *Owned
}

// New draws the reservation price and distance need of a consumer.
func New(id int, region params.Region, p *params.Params, r *rng.Stream) *Consumer {
	rp := p.Consumer.ReservationPrice
	scale := region.PriceSigmaScale
	if scale <= 0 {
		scale = 1
	}
	price := r.Normal(rp.Mu, rp.Sigma*scale)
	dist := r.Normal(p.Consumer.Distance.Mu, p.Consumer.Distance.Sigma)
	return &Consumer{ID: id, Region: region.Name, ReservationPrice: price, Distance: math.Max(0, dist)}
}

// Choice describes a completed purchase.
type Choice struct {
	Offer         Offer
	Utility       float64
	RequiredRange float64
	Criteria      []Criterion
}

// RequiredRange draws the minimum drive range of this period's usage.
func RequiredRange(ctx Context) float64 {
	c := ctx.Params.Consumer
	choice := ctx.RNG.Float64()
	bucket := len(c.UsageThresholds)
	for i, th := range c.UsageThresholds {
		if choice < th {
			bucket = i
			break
		}
	}
	rg := c.UsageRanges[bucket]
	return ctx.RNG.Uniform(rg.Min, rg.Max)
}

// Viable reports whether o satisfies the consumer's affordability, range and
// emissions constraints.
func (c *Consumer) Viable(ctx Context, o Offer, minRange float64) bool {
	price := ctx.Params.LoadedPrice(o.Vehicle.SalesPrice, o.FirmRegion, c.Region)
	return price < c.ReservationPrice &&
		o.Vehicle.DriveRange() > minRange &&
		o.Emission < ctx.Cap
}

// Purchase runs one period of the buying decision against catalogue. On a
// purchase the consumer replaces its vehicle with the chosen one; the caller
// records the sale on the firm and in the market counters.
func (c *Consumer) Purchase(ctx Context, catalogue []Offer) (Choice, bool) {
	if !ctx.RNG.Bernoulli(ctx.Params.Consumer.ProbAdoption) {
		return Choice{}, false
	}
	minRange := RequiredRange(ctx)

	viable := make([]Offer, 0, len(catalogue))
	for _, o := range catalogue {
		if c.Viable(ctx, o, minRange) {
			viable = append(viable, o)
		}
	}
	if len(viable) == 0 {
		return Choice{}, false
	}

	emotion := ctx.RNG.Float64()
	picked := ctx.RNG.Sample(len(Criteria), ctx.Params.Consumer.Criteria)
	crits := make([]Criterion, len(picked))
	for i, idx := range picked {
		crits[i] = Criteria[idx]
	}

	ctx.RNG.Shuffle(len(viable), func(i, j int) { viable[i], viable[j] = viable[j], viable[i] })
	type ranked struct {
		offer   Offer
		utility float64
	}
	ranking := make([]ranked, len(viable))
	for i, o := range viable {
		u := 1.0
		for _, crit := range crits {
			u *= c.score(ctx, o, crit, emotion)
		}
		ranking[i] = ranked{offer: o, utility: u}
	}
	// Stable so equal utilities keep the shuffled order.
	slices.SortStableFunc(ranking, func(a, b ranked) int {
		switch {
		case a.utility > b.utility:
			return -1
		case a.utility < b.utility:
			return 1
		default:
			return 0
		}
	})

	best := ranking[0]
	c.Owned = &Owned{
		FirmID:   best.offer.FirmID,
		Vehicle:  *best.offer.Vehicle,
		Emission: best.offer.Emission,
		Period:   ctx.Period,
	}
	logger.OrNop(ctx.Log).Debugw("vehicle purchased", map[string]any{
		"consumer": c.ID, "firm": best.offer.FirmID, "tech": best.offer.Vehicle.Technology.String(), "period": ctx.Period,
	})
	return Choice{Offer: best.offer, Utility: best.utility, RequiredRange: minRange, Criteria: crits}, true
}

// Driving returns the emissions of this period's travel, 0 without a vehicle.
func (c *Consumer) Driving() float64 {
	if c.Owned == nil {
		return 0
	}
	return c.Distance * c.Owned.Emission
}
