package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/evpolicy/core/model"
	"github.com/kilianp07/evpolicy/core/report"
)

func sampleRun(id string, kind model.PolicyKind, created time.Time) Run {
	rec := report.Record{Period: 0, GreenMarketShare: .2, Emissions: 10, PublicExpenditureByRegion: map[string]float64{"south": 1}}
	rec.UnitsSold[model.Green] = 3
	next := rec
	next.Period = 1
	return Run{
		ID:        id,
		Policy:    model.PolicyConfig{Kind: kind, Level: .3},
		Seed:      1<<63 + 5,
		CreatedAt: created,
		Records:   report.Sequence{rec, next},
	}
}

func exerciseStore(t *testing.T, s RunStore) {
	ctx := context.Background()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Save(ctx, sampleRun("a", model.PolicyTax, t0)))
	require.NoError(t, s.Save(ctx, sampleRun("b", model.PolicyEmissionsCap, t0.Add(time.Hour))))

	all, err := s.Query(ctx, RunQuery{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, uint64(1<<63+5), all[0].Seed)
	require.Len(t, all[0].Records, 2)
	assert.Equal(t, 3, all[0].Records[1].UnitsSold[model.Green])
	assert.Equal(t, 1.0, all[0].Records[0].PublicExpenditureByRegion["south"])

	capped, err := s.Query(ctx, RunQuery{Policy: model.PolicyEmissionsCap})
	require.NoError(t, err)
	require.Len(t, capped, 1)
	assert.Equal(t, "b", capped[0].ID)

	recent, err := s.Query(ctx, RunQuery{Since: t0.Add(30 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.True(t, recent[0].CreatedAt.Equal(t0.Add(time.Hour)))

	byID, err := s.Query(ctx, RunQuery{ID: "a"})
	require.NoError(t, err)
	assert.Len(t, byID, 1)
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	exerciseStore(t, s)

	// Run ids are unique.
	assert.Error(t, s.Save(context.Background(), sampleRun("a", model.PolicyNone, time.Now())))
}

func TestRotatingJSONLStore(t *testing.T) {
	s, err := NewRotatingJSONLStore(filepath.Join(t.TempDir(), "out", "runs.jsonl"), 1, 2, 1)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	exerciseStore(t, s)
}

func TestRotatingJSONLStore_Rotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.jsonl")
	s, err := NewRotatingJSONLStore(path, 1, 5, 1)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	// Each line stays under the 1MB limit; two of them do not.
	big := sampleRun("big", model.PolicyNone, time.Now())
	for i := 0; i < 2000; i++ {
		big.Records = append(big.Records, report.Record{Period: i + 2})
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, s.Save(context.Background(), big))
	}
	files, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "runs*.jsonl"))
	assert.Len(t, files, 2)

	runs, err := s.Query(context.Background(), RunQuery{})
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestOpen(t *testing.T) {
	s, err := Open(Config{})
	require.NoError(t, err)
	assert.Nil(t, s)

	_, err = Open(Config{Backend: "postgres"})
	assert.Error(t, err)

	s, err = Open(Config{Backend: "sqlite", Path: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())
}
