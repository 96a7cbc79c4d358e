package firm

import (
	"github.com/kilianp07/evpolicy/core/logger"
	"github.com/kilianp07/evpolicy/core/model"
	"github.com/kilianp07/evpolicy/core/params"
	"github.com/kilianp07/evpolicy/core/rng"
)

// MarketUnits exposes market-wide unit sales of closed periods.
type MarketUnits interface {
	Units(t model.Technology, period int) int
	Total(period int) int
}

// Context carries the simulation state a firm step may read. It replaces any
// back-reference from a firm to the simulation that owns it.
type Context struct {
	Period int
	Params *params.Params
	Policy model.PolicyConfig
	RNG    *rng.Stream
	Log    logger.Logger
	// GreenShare is the green market share of the last closed period.
	GreenShare float64
	Market     MarketUnits
	// Peers are the live firms, in ascending id order.
	Peers []*Firm
}

// ShareOf returns f's share of tech sales in a closed period, 0 when the
// market sold nothing.
func (c Context) ShareOf(f *Firm, tech model.Technology, period int) float64 {
	total := c.Market.Units(tech, period)
	if total == 0 {
		return 0
	}
	return float64(f.UnitsSold[tech].At(period)) / float64(total)
}

// TotalShareOf returns f's share of all sales in a closed period.
func (c Context) TotalShareOf(f *Firm, period int) float64 {
	total := c.Market.Total(period)
	if total == 0 {
		return 0
	}
	return float64(f.TotalUnits(period)) / float64(total)
}

func (c Context) logger() logger.Logger { return logger.OrNop(c.Log) }
