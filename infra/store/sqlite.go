package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/evpolicy/core/model"
	"github.com/kilianp07/evpolicy/core/report"
)

// SQLiteStore persists runs to a SQLite database: one row per run and one
// row per period.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	policy TEXT NOT NULL,
	level REAL NOT NULL,
	cap REAL NOT NULL,
	seed TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS periods (
	run_id TEXT NOT NULL REFERENCES runs(id),
	period INTEGER NOT NULL,
	green_share REAL,
	hybrid_share REAL,
	emissions REAL,
	emissions_index REAL,
	public_expenditure REAL,
	government_revenue REAL,
	record TEXT NOT NULL,
	PRIMARY KEY(run_id, period)
);`

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Sweeps save from several goroutines; one connection serialises writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Save writes the run and its periods in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, run Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	p := run.Policy.Normalized()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, policy, level, cap, seed, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, string(p.Kind), p.Level, p.Cap, strconv.FormatUint(run.Seed, 10), run.CreatedAt.UnixNano()); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO periods
		(run_id, period, green_share, hybrid_share, emissions, emissions_index, public_expenditure, government_revenue, record)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()
	for _, rec := range run.Records {
		b, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, run.ID, rec.Period, rec.GreenMarketShare, rec.HybridMarketShare,
			rec.Emissions, rec.EmissionsIndex, rec.PublicExpenditure, rec.GovernmentRevenue, string(b)); err != nil {
			return fmt.Errorf("insert period %d: %w", rec.Period, err)
		}
	}
	return tx.Commit()
}

// Query returns runs matching q, oldest first, with their records.
func (s *SQLiteStore) Query(ctx context.Context, q RunQuery) ([]Run, error) {
	var args []any
	query := `SELECT id, policy, level, cap, seed, created_at FROM runs WHERE 1=1`
	if q.ID != "" {
		query += ` AND id = ?`
		args = append(args, q.ID)
	}
	if q.Policy != "" {
		query += ` AND policy = ?`
		args = append(args, string(q.Policy))
	}
	if !q.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, q.Since.UnixNano())
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var res []Run
	for rows.Next() {
		var r Run
		var kind, seed string
		var created int64
		if err := rows.Scan(&r.ID, &kind, &r.Policy.Level, &r.Policy.Cap, &seed, &created); err != nil {
			_ = rows.Close()
			return nil, err
		}
		r.Policy.Kind = model.PolicyKind(kind)
		if r.Seed, err = strconv.ParseUint(seed, 10, 64); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("run %s: seed: %w", r.ID, err)
		}
		r.CreatedAt = time.Unix(0, created).UTC()
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	for i := range res {
		if res[i].Records, err = s.records(ctx, res[i].ID); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (s *SQLiteStore) records(ctx context.Context, runID string) (report.Sequence, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record FROM periods WHERE run_id = ? ORDER BY period`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var seq report.Sequence
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var rec report.Record
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		seq = append(seq, rec)
	}
	return seq, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
