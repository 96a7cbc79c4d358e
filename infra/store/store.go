// Package store persists run reports. Two backends are available: a SQLite
// database (modernc, no cgo) and a rotating JSONL file.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/evpolicy/core/model"
	"github.com/kilianp07/evpolicy/core/report"
)

// Run is the persisted form of one simulation run.
type Run struct {
	ID        string             `json:"id"`
	Policy    model.PolicyConfig `json:"policy"`
	Seed      uint64             `json:"seed"`
	CreatedAt time.Time          `json:"created_at"`
	Records   report.Sequence    `json:"records"`
}

// RunQuery filters stored runs. Zero fields match everything.
type RunQuery struct {
	ID     string
	Policy model.PolicyKind
	Since  time.Time
}

func (q RunQuery) match(r Run) bool {
	if q.ID != "" && r.ID != q.ID {
		return false
	}
	if q.Policy != "" && r.Policy.Normalized().Kind != q.Policy {
		return false
	}
	if !q.Since.IsZero() && r.CreatedAt.Before(q.Since) {
		return false
	}
	return true
}

// RunStore persists runs and supports querying.
type RunStore interface {
	Save(ctx context.Context, run Run) error
	Query(ctx context.Context, q RunQuery) ([]Run, error)
	Close() error
}

// Config selects and tunes the backend.
type Config struct {
	// Backend selects the store type: "jsonl", "sqlite" or "none".
	Backend string `json:"backend"`
	// Path is the file location of the store.
	Path string `json:"path"`
	// MaxSizeMB triggers rotation when the file exceeds this size in megabytes.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "none"
	}
	if c.Path == "" {
		switch c.Backend {
		case "sqlite":
			c.Path = "runs.db"
		case "jsonl":
			c.Path = "runs.jsonl"
		}
	}
	if c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 100
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	switch c.Backend {
	case "none":
		return nil
	case "jsonl", "sqlite":
	default:
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}

// Open returns the configured store, or nil for the "none" backend.
func Open(cfg Config) (RunStore, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	case "jsonl":
		return NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	default:
		return nil, nil
	}
}
