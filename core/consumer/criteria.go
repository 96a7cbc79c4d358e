package consumer

import (
	"math"

	"github.com/kilianp07/evpolicy/core/model"
)

// Criterion is one dimension a consumer may rank vehicles on.
type Criterion int

const (
	Affordability Criterion = iota
	UsageCost
	StationDensity
	TechnologyShare
	EnergyCapacity
	Cleanliness
	Quality
	Emotion
)

// Criteria lists every criterion; a purchase samples a subset of it.
var Criteria = []Criterion{
	Affordability, UsageCost, StationDensity, TechnologyShare,
	EnergyCapacity, Cleanliness, Quality, Emotion,
}

func (c Criterion) String() string {
	switch c {
	case Affordability:
		return "affordability"
	case UsageCost:
		return "usage_cost"
	case StationDensity:
		return "station_density"
	case TechnologyShare:
		return "technology_share"
	case EnergyCapacity:
		return "energy_capacity"
	case Cleanliness:
		return "cleanliness"
	case Quality:
		return "quality"
	case Emotion:
		return "emotion"
	default:
		return "unknown"
	}
}

// score returns the value of offer o on criterion c for a consumer in region.
func (c *Consumer) score(ctx Context, o Offer, crit Criterion, emotion float64) float64 {
	switch crit {
	case Affordability:
		price := ctx.Params.LoadedPrice(o.Vehicle.SalesPrice, o.FirmRegion, c.Region)
		if price <= 0 {
			return 0
		}
		return 1 / price
	case UsageCost:
		r, _ := ctx.Params.Region(c.Region)
		if e := r.EnergyPrice.Get(o.Vehicle.Technology); e > 0 {
			return 1 / e
		}
		return 0
	case StationDensity:
		if o.Vehicle.Technology == model.Green {
			return ctx.GreenInfrastructure
		}
		return ctx.Params.Tech.Get(o.Vehicle.Technology).StationDensity
	case TechnologyShare:
		return math.Max(o.MarketShare, ctx.Params.Firm.Epsilon)
	case EnergyCapacity:
		return o.Vehicle.EnergyCapacity
	case Cleanliness:
		if o.Emission <= 0 {
			return 0
		}
		return 1 / o.Emission
	case Quality:
		return o.Vehicle.Quality
	case Emotion:
		return emotion
	default:
		return 0
	}
}
