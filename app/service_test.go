package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/evpolicy/config"
	"github.com/kilianp07/evpolicy/core/factory"
	coremetrics "github.com/kilianp07/evpolicy/core/metrics"
	"github.com/kilianp07/evpolicy/core/model"
	"github.com/kilianp07/evpolicy/core/report"
	"github.com/kilianp07/evpolicy/infra/logger"
	"github.com/kilianp07/evpolicy/infra/store"
)

type recordingSink struct {
	mu        sync.Mutex
	periods   map[string][]report.Record
	summaries []model.PolicyConfig
	closed    bool
}

func newRecordingSink() *recordingSink {
	return &recordingSink{periods: map[string][]report.Record{}}
}

func (s *recordingSink) RecordPeriod(_ context.Context, run coremetrics.RunInfo, rec report.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.periods[run.ID] = append(s.periods[run.ID], rec)
	return nil
}

func (s *recordingSink) RecordSummary(_ context.Context, p model.PolicyConfig, _ report.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries = append(s.summaries, p)
	return nil
}

func (s *recordingSink) Close() error {
	s.closed = true
	return nil
}

type memStore struct {
	mu   sync.Mutex
	runs []store.Run
}

func (m *memStore) Save(_ context.Context, r store.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, r)
	return nil
}

func (m *memStore) Query(context.Context, store.RunQuery) ([]store.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.Run(nil), m.runs...), nil
}

func (m *memStore) Close() error { return nil }

type mockStore struct{ mock.Mock }

func (m *mockStore) Save(ctx context.Context, r store.Run) error {
	return m.Called(ctx, r).Error(0)
}

func (m *mockStore) Query(ctx context.Context, q store.RunQuery) ([]store.Run, error) {
	args := m.Called(ctx, q)
	runs, _ := args.Get(0).([]store.Run)
	return runs, args.Error(1)
}

func (m *mockStore) Close() error { return m.Called().Error(0) }

func smallConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Params = map[string]any{
		"horizon":    4,
		"population": map[string]any{"firms_per_region": 1, "consumers_total": 60},
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestRunForwardsPeriodsAndSaves(t *testing.T) {
	cfg := smallConfig(t)
	cfg.Run.Policy = "tax"
	cfg.Run.Level = 0.3
	cfg.Run.Seed = 7
	cfg.Run.Output = filepath.Join(t.TempDir(), "run.csv")

	sink := newRecordingSink()
	st := &mockStore{}
	st.On("Save", mock.Anything, mock.MatchedBy(func(r store.Run) bool {
		return r.Seed == 7 && len(r.Records) == 4 && r.Policy.Kind == model.PolicyTax && !r.CreatedAt.IsZero()
	})).Return(nil).Once()
	st.On("Close").Return(nil).Once()
	svc, err := New(cfg, WithSink(sink), WithStore(st), WithLogger(logger.NopLogger{}))
	require.NoError(t, err)

	res, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Records, 4)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, model.PolicyTax, res.Policy.Kind)

	assert.Equal(t, []report.Record(res.Records), sink.periods[res.ID])

	b, err := os.ReadFile(cfg.Run.Output)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	assert.Len(t, lines, 5)

	require.NoError(t, svc.Close())
	assert.True(t, sink.closed)
	st.AssertExpectations(t)
}

func TestExecuteReportsStoreFailure(t *testing.T) {
	cfg := smallConfig(t)
	st := &mockStore{}
	st.On("Save", mock.Anything, mock.Anything).Return(errors.New("disk full"))
	svc, err := New(cfg, WithSink(coremetrics.NopSink{}), WithStore(st))
	require.NoError(t, err)

	_, err = svc.Execute(context.Background(), model.PolicyConfig{}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	st.AssertNumberOfCalls(t, "Save", 1)
}

func TestExecuteIsReproducible(t *testing.T) {
	cfg := smallConfig(t)
	svc, err := New(cfg, WithSink(coremetrics.NopSink{}), WithStore(&memStore{}))
	require.NoError(t, err)

	policy := model.PolicyConfig{Kind: model.PolicyPDCashback, Level: 0.5}
	a, err := svc.Execute(context.Background(), policy, 11)
	require.NoError(t, err)
	b, err := svc.Execute(context.Background(), policy, 11)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, a.Records, b.Records)
}

func TestSweep(t *testing.T) {
	sweep := func(parallel int) ([]report.Record, *recordingSink, *memStore, string) {
		cfg := smallConfig(t)
		cfg.Sweep.Policies = []string{"none", "tax"}
		cfg.Sweep.Levels = []float64{0, 0.5}
		cfg.Sweep.Runs = 2
		cfg.Sweep.Parallel = parallel
		cfg.Sweep.Output = filepath.Join(t.TempDir(), "summary.csv")

		sink := newRecordingSink()
		st := &memStore{}
		svc, err := New(cfg, WithSink(sink), WithStore(st), WithLogger(logger.NopLogger{}))
		require.NoError(t, err)
		rows, err := svc.Sweep(context.Background())
		require.NoError(t, err)

		require.Len(t, rows, 3)
		assert.Equal(t, "none", rows[0].Policy.String())
		assert.Equal(t, "tax@0.0", rows[1].Policy.String())
		assert.Equal(t, "tax@0.5", rows[2].Policy.String())
		recs := make([]report.Record, len(rows))
		for i, r := range rows {
			assert.Equal(t, 2, r.Runs)
			recs[i] = r.Record
		}
		return recs, sink, st, cfg.Sweep.Output
	}

	serial, sink, st, out := sweep(1)
	assert.Len(t, st.runs, 6)
	assert.Len(t, sink.periods, 6)
	assert.Len(t, sink.summaries, 3)
	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(b)), "\n"), 4)

	parallel, _, _, _ := sweep(4)
	assert.Equal(t, serial, parallel)
}

func TestSweepCancelled(t *testing.T) {
	cfg := smallConfig(t)
	svc, err := New(cfg, WithSink(coremetrics.NopSink{}), WithStore(&memStore{}))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Sweep(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRejectsUnknownSink(t *testing.T) {
	cfg := smallConfig(t)
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "carrier-pigeon"}}
	_, err := New(cfg)
	assert.Error(t, err)
}
