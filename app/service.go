package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/evpolicy/config"
	coremetrics "github.com/kilianp07/evpolicy/core/metrics"
	"github.com/kilianp07/evpolicy/core/model"
	"github.com/kilianp07/evpolicy/core/monitoring"
	"github.com/kilianp07/evpolicy/core/params"
	"github.com/kilianp07/evpolicy/core/report"
	"github.com/kilianp07/evpolicy/core/simulation"
	"github.com/kilianp07/evpolicy/infra/logger"
	"github.com/kilianp07/evpolicy/infra/store"
	"github.com/kilianp07/evpolicy/pkg/export"
)

// Service wires the simulation to the configured sinks, store and exports.
type Service struct {
	cfg    *config.Config
	params params.Params
	sink   coremetrics.PeriodSink
	store  store.RunStore
	log    logger.Logger
	newID  func() string
	now    func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithSink replaces the sink built from the metrics configuration.
func WithSink(s coremetrics.PeriodSink) Option {
	return func(svc *Service) { svc.sink = s }
}

// WithStore replaces the store opened from the store configuration.
func WithStore(s store.RunStore) Option {
	return func(svc *Service) { svc.store = s }
}

// WithLogger sets the service logger.
func WithLogger(l logger.Logger) Option {
	return func(svc *Service) { svc.log = l }
}

// RunResult is one completed run.
type RunResult struct {
	ID      string
	Policy  model.PolicyConfig
	Seed    uint64
	Records report.Sequence
}

// New creates a Service from the configuration.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	p, err := cfg.ModelParams()
	if err != nil {
		return nil, err
	}
	svc := &Service{
		cfg:    cfg,
		params: p,
		log:    logger.New("service"),
		newID:  uuid.NewString,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.sink == nil {
		sink, err := coremetrics.NewPeriodSink(cfg.Metrics.Sinks)
		if err != nil {
			return nil, fmt.Errorf("metrics sink: %w", err)
		}
		svc.sink = sink
	}
	if svc.store == nil {
		st, err := store.Open(cfg.Store)
		if err != nil {
			return nil, fmt.Errorf("store: %w", err)
		}
		svc.store = st
	}
	return svc, nil
}

// Params returns the model parameters the service runs with.
func (s *Service) Params() params.Params { return s.params.Clone() }

// Execute performs one run, forwarding every period to the sink and saving
// the report to the store.
func (s *Service) Execute(ctx context.Context, policy model.PolicyConfig, seed uint64, opts ...simulation.Option) (RunResult, error) {
	res := RunResult{ID: s.newID(), Policy: policy.Normalized(), Seed: seed}
	info := coremetrics.RunInfo{ID: res.ID, Policy: res.Policy, Seed: seed}
	forward := simulation.ObserverFunc(func(ctx context.Context, rec report.Record) error {
		return s.sink.RecordPeriod(ctx, info, rec)
	})
	opts = append([]simulation.Option{
		simulation.WithLogger(logger.WithField(logger.New("simulation"), "run_id", res.ID)),
		simulation.WithObserver(forward),
	}, opts...)

	seq, err := simulation.Run(ctx, s.params, policy, seed, opts...)
	if err != nil {
		monitoring.CaptureRun(err, res.ID, res.Policy, seed)
		return res, err
	}
	res.Records = seq
	if s.store != nil {
		run := store.Run{ID: res.ID, Policy: res.Policy, Seed: seed, CreatedAt: s.now().UTC(), Records: seq}
		if err := s.store.Save(ctx, run); err != nil {
			return res, fmt.Errorf("save run %s: %w", res.ID, err)
		}
	}
	return res, nil
}

// Run executes the configured single run and writes its export, if any.
func (s *Service) Run(ctx context.Context, opts ...simulation.Option) (RunResult, error) {
	policy, err := s.cfg.Run.PolicyConfig()
	if err != nil {
		return RunResult{}, err
	}
	res, err := s.Execute(ctx, policy, s.cfg.Run.Seed, opts...)
	if err != nil {
		return res, err
	}
	s.log.Infof("run %s finished: policy=%s periods=%d", res.ID, res.Policy, len(res.Records))
	if out := s.cfg.Run.Output; out != "" {
		if err := export.SequenceToFile(out, res.Records); err != nil {
			return res, err
		}
		s.log.Infof("report written to %s", out)
	}
	return res, nil
}

// Sweep runs every policy of the grid Runs times with consecutive seeds,
// averages the final periods per policy and writes the summary export, if
// any. Runs are independent and execute in parallel; the result order
// follows the grid.
func (s *Service) Sweep(ctx context.Context) ([]export.SummaryRow, error) {
	sc := s.cfg.Sweep
	policies, err := sc.PolicyConfigs()
	if err != nil {
		return nil, err
	}
	finals := make([][]report.Record, len(policies))
	for i := range finals {
		finals[i] = make([]report.Record, sc.Runs)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(sc.Parallel, 1))
	for i, policy := range policies {
		for r := 0; r < sc.Runs; r++ {
			seed := sc.Seed + uint64(r)
			g.Go(func() error {
				defer monitoring.Recover()
				res, err := s.Execute(gctx, policy, seed)
				if err != nil {
					return fmt.Errorf("%s seed %d: %w", policy, seed, err)
				}
				last, _ := res.Records.Last()
				finals[i][r] = last
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rows := make([]export.SummaryRow, len(policies))
	var errs []error
	summary, _ := s.sink.(coremetrics.SummaryRecorder)
	for i, policy := range policies {
		rows[i] = export.SummaryRow{Policy: policy.Normalized(), Runs: sc.Runs, Record: report.Average(finals[i])}
		if summary != nil {
			if err := summary.RecordSummary(ctx, rows[i].Policy, rows[i].Record); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		s.log.Warnf("summary sink: %v", err)
	}
	s.log.Infof("sweep finished: %d policies x %d runs", len(policies), sc.Runs)
	if out := sc.Output; out != "" {
		if err := export.SummaryToFile(out, rows); err != nil {
			return rows, err
		}
		s.log.Infof("summary written to %s", out)
	}
	return rows, nil
}

// Close releases the sink and the store.
func (s *Service) Close() error {
	var errs []error
	if c, ok := s.sink.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	return errors.Join(errs...)
}
