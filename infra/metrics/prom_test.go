package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/evpolicy/core/factory"
	coremetrics "github.com/kilianp07/evpolicy/core/metrics"
	"github.com/kilianp07/evpolicy/core/model"
	"github.com/kilianp07/evpolicy/core/report"
)

func sampleRecord() report.Record {
	rec := report.Record{
		Period:                    4,
		GreenMarketShare:          .25,
		HybridMarketShare:         .5,
		Emissions:                 1234.5,
		EmissionsIndex:            .9,
		BenchmarkE:                .8,
		PublicExpenditure:         300,
		PublicExpenditureByRegion: map[string]float64{"south": 300},
		GovernmentRevenue:         4000,
		Firms:                     9,
		Bankruptcies:              1,
	}
	rec.UnitsSold[model.Gas] = 2
	rec.UnitsSold[model.Hybrid] = 4
	rec.UnitsSold[model.Green] = 2
	return rec
}

func TestPromSink_RecordPeriod(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	run := coremetrics.RunInfo{ID: "r1", Policy: model.PolicyConfig{Kind: model.PolicyTax, Level: .3}}
	require.NoError(t, sink.RecordPeriod(context.Background(), run, sampleRecord()))
	require.NoError(t, sink.RecordPeriod(context.Background(), run, sampleRecord()))

	assert.Equal(t, 4.0, testutil.ToFloat64(sink.period.WithLabelValues("tax@0.3")))
	assert.Equal(t, .25, testutil.ToFloat64(sink.share.WithLabelValues("tax@0.3", "green")))
	assert.Equal(t, 300.0, testutil.ToFloat64(sink.expenditure.WithLabelValues("tax@0.3", "south")))
	assert.Equal(t, 8.0, testutil.ToFloat64(sink.units.WithLabelValues("tax@0.3", "hybrid")))
	assert.Equal(t, 2.0, testutil.ToFloat64(sink.bankrupt.WithLabelValues("tax@0.3")))

	require.NoError(t, sink.RecordSummary(context.Background(), run.Policy, sampleRecord()))
	assert.Equal(t, .9, testutil.ToFloat64(sink.sweep.WithLabelValues("tax@0.3", "emissions_index")))
}

func TestPromSink_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	b, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	assert.Same(t, a.period, b.period)
}

func TestFactoryRegistersSinks(t *testing.T) {
	assert.Subset(t, coremetrics.SinkTypes(), []string{"nop", "prometheus", "influx"})
	s, err := coremetrics.NewPeriodSink([]factory.ModuleConfig{{Type: "prometheus"}})
	require.NoError(t, err)
	assert.IsType(t, &PromSink{}, s)
}
