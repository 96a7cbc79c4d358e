package metrics

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/evpolicy/core/metrics"
	"github.com/kilianp07/evpolicy/core/model"
	"github.com/kilianp07/evpolicy/core/report"
)

// PromSink exposes the latest closed period of every policy as Prometheus
// gauges, plus cumulative sales and bankruptcy counters.
type PromSink struct {
	period      *prometheus.GaugeVec
	share       *prometheus.GaugeVec
	emissions   *prometheus.GaugeVec
	index       *prometheus.GaugeVec
	benchmark   *prometheus.GaugeVec
	expenditure *prometheus.GaugeVec
	revenue     *prometheus.GaugeVec
	firms       *prometheus.GaugeVec
	units       *prometheus.CounterVec
	bankrupt    *prometheus.CounterVec
	sweep       *prometheus.GaugeVec
}

// NewPromSink registers the simulation metrics on the default registerer.
// The HTTP endpoint is started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gauge := func(name, help string, labels ...string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: "evpolicy", Name: name, Help: help}, labels)
	}
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "evpolicy", Name: name, Help: help}, labels)
	}
	s := &PromSink{
		period:      gauge("period", "Last closed period", "policy"),
		share:       gauge("market_share", "Market share of a technology in the last closed period", "policy", "tech"),
		emissions:   gauge("emissions", "Emissions of the last closed period", "policy"),
		index:       gauge("emissions_index", "Emissions relative to the baseline period", "policy"),
		benchmark:   gauge("benchmark_emission", "Sales-weighted mean emission used by the policy", "policy"),
		expenditure: gauge("public_expenditure", "Policy expenditure of the last closed period", "policy", "region"),
		revenue:     gauge("government_revenue", "Tax revenue of the last closed period", "policy"),
		firms:       gauge("firms", "Live firms", "policy"),
		units:       counter("units_sold_total", "Vehicles sold", "policy", "tech"),
		bankrupt:    counter("bankruptcies_total", "Firms replaced after bankruptcy", "policy"),
		sweep:       gauge("sweep_result", "Averaged final period of a sweep cell", "policy", "metric"),
	}
	var err error
	if s.period, err = register(reg, s.period); err != nil {
		return nil, err
	}
	if s.share, err = register(reg, s.share); err != nil {
		return nil, err
	}
	if s.emissions, err = register(reg, s.emissions); err != nil {
		return nil, err
	}
	if s.index, err = register(reg, s.index); err != nil {
		return nil, err
	}
	if s.benchmark, err = register(reg, s.benchmark); err != nil {
		return nil, err
	}
	if s.expenditure, err = register(reg, s.expenditure); err != nil {
		return nil, err
	}
	if s.revenue, err = register(reg, s.revenue); err != nil {
		return nil, err
	}
	if s.firms, err = register(reg, s.firms); err != nil {
		return nil, err
	}
	if s.units, err = register(reg, s.units); err != nil {
		return nil, err
	}
	if s.bankrupt, err = register(reg, s.bankrupt); err != nil {
		return nil, err
	}
	if s.sweep, err = register(reg, s.sweep); err != nil {
		return nil, err
	}
	return s, nil
}

// register adds c to reg, reusing the collector already registered under
// the same descriptor.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordPeriod updates the gauges for the run's policy.
func (s *PromSink) RecordPeriod(_ context.Context, run coremetrics.RunInfo, rec report.Record) error {
	p := run.Policy.String()
	s.period.WithLabelValues(p).Set(float64(rec.Period))
	s.share.WithLabelValues(p, model.Hybrid.String()).Set(rec.HybridMarketShare)
	s.share.WithLabelValues(p, model.Green.String()).Set(rec.GreenMarketShare)
	s.emissions.WithLabelValues(p).Set(rec.Emissions)
	s.index.WithLabelValues(p).Set(rec.EmissionsIndex)
	s.benchmark.WithLabelValues(p).Set(rec.BenchmarkE)
	for region, v := range rec.PublicExpenditureByRegion {
		s.expenditure.WithLabelValues(p, region).Set(v)
	}
	s.revenue.WithLabelValues(p).Set(rec.GovernmentRevenue)
	s.firms.WithLabelValues(p).Set(float64(rec.Firms))
	for _, t := range model.Technologies {
		s.units.WithLabelValues(p, t.String()).Add(float64(rec.UnitsSold[t]))
	}
	s.bankrupt.WithLabelValues(p).Add(float64(rec.Bankruptcies))
	return nil
}

// RecordSummary publishes the averaged final period of a sweep cell.
func (s *PromSink) RecordSummary(_ context.Context, policy model.PolicyConfig, rec report.Record) error {
	p := policy.String()
	s.sweep.WithLabelValues(p, "green_market_share").Set(rec.GreenMarketShare)
	s.sweep.WithLabelValues(p, "hybrid_market_share").Set(rec.HybridMarketShare)
	s.sweep.WithLabelValues(p, "emissions_index").Set(rec.EmissionsIndex)
	s.sweep.WithLabelValues(p, "public_expenditure").Set(rec.PublicExpenditure)
	s.sweep.WithLabelValues(p, "government_revenue").Set(rec.GovernmentRevenue)
	return nil
}
