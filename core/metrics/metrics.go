package metrics

import (
	"context"
	"errors"

	"github.com/kilianp07/evpolicy/core/model"
	"github.com/kilianp07/evpolicy/core/report"
)

// RunInfo identifies the run a record belongs to.
type RunInfo struct {
	ID     string
	Policy model.PolicyConfig
	Seed   uint64
}

// PeriodSink records closed periods of a run.
type PeriodSink interface {
	RecordPeriod(ctx context.Context, run RunInfo, rec report.Record) error
}

// SummaryRecorder is implemented by sinks that also record the averaged
// final period of a sweep cell.
type SummaryRecorder interface {
	RecordSummary(ctx context.Context, policy model.PolicyConfig, rec report.Record) error
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) RecordPeriod(context.Context, RunInfo, report.Record) error { return nil }

func (NopSink) RecordSummary(context.Context, model.PolicyConfig, report.Record) error { return nil }

// MultiSink fans records out to several sinks. Every sink is called even
// when an earlier one fails; the errors are joined.
type MultiSink struct {
	Sinks []PeriodSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...PeriodSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordPeriod forwards rec to all sinks.
func (m *MultiSink) RecordPeriod(ctx context.Context, run RunInfo, rec report.Record) error {
	var errs []error
	for _, s := range m.Sinks {
		if err := s.RecordPeriod(ctx, run, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordSummary forwards the summary to sinks that support it.
func (m *MultiSink) RecordSummary(ctx context.Context, policy model.PolicyConfig, rec report.Record) error {
	var errs []error
	for _, s := range m.Sinks {
		if sr, ok := s.(SummaryRecorder); ok {
			if err := sr.RecordSummary(ctx, policy, rec); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink that holds resources.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.Sinks {
		if c, ok := s.(interface{ Close() error }); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
