package events

import (
	"fmt"

	"github.com/kilianp07/evpolicy/core/model"
)

// Kind identifies a market event.
type Kind string

const (
	FirmBankrupt  Kind = "bankrupt"
	FirmEntered   Kind = "entered"
	TechAdopted   Kind = "adopted"
	TechAbandoned Kind = "abandoned"
	TechImproved  Kind = "innovated"
)

// MarketEvent is one change of the market structure.
type MarketEvent struct {
	Kind   Kind
	Period int
	FirmID int
	Region string
	// Technology is set for adoption, abandonment and innovation events.
	Technology model.Technology
	// Peer is the bankrupt firm an entrant replaced, or the firm a bankrupt
	// one was replaced by.
	Peer int
}

func (e MarketEvent) String() string {
	switch e.Kind {
	case FirmBankrupt:
		return fmt.Sprintf("t=%d firm %d (%s) bankrupt, replaced by %d", e.Period, e.FirmID, e.Region, e.Peer)
	case FirmEntered:
		return fmt.Sprintf("t=%d firm %d (%s) entered in place of %d", e.Period, e.FirmID, e.Region, e.Peer)
	default:
		return fmt.Sprintf("t=%d firm %d (%s) %s %s", e.Period, e.FirmID, e.Region, e.Kind, e.Technology)
	}
}

// Publisher receives market events. Publish must not block the caller.
type Publisher interface {
	Publish(MarketEvent)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(MarketEvent)

func (f PublisherFunc) Publish(e MarketEvent) { f(e) }
