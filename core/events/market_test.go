package events

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kilianp07/evpolicy/core/model"
)

func TestMarketEventString(t *testing.T) {
	tests := []struct {
		ev   MarketEvent
		want string
	}{
		{MarketEvent{Kind: FirmBankrupt, Period: 4, FirmID: 2, Region: "south", Peer: 9}, "t=4 firm 2 (south) bankrupt, replaced by 9"},
		{MarketEvent{Kind: FirmEntered, Period: 4, FirmID: 9, Region: "south", Peer: 2}, "t=4 firm 9 (south) entered in place of 2"},
		{MarketEvent{Kind: TechAdopted, Period: 12, FirmID: 1, Region: "northeast", Technology: model.Green}, "t=12 firm 1 (northeast) adopted green"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.ev.String())
	}
}

func TestPublisherFunc(t *testing.T) {
	var got []Kind
	var p Publisher = PublisherFunc(func(e MarketEvent) { got = append(got, e.Kind) })
	p.Publish(MarketEvent{Kind: TechImproved})
	p.Publish(MarketEvent{Kind: TechAbandoned})
	assert.Equal(t, []Kind{TechImproved, TechAbandoned}, got)
}
