// Package export writes run reports and sweep summaries to files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kilianp07/evpolicy/core/model"
	"github.com/kilianp07/evpolicy/core/report"
)

// Separator is the CSV field separator.
const Separator = ';'

// WriteJSON writes the sequence to w as an indented JSON array.
func WriteJSON(w io.Writer, seq report.Sequence) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(seq)
}

// WriteCSV writes the sequence to w, one row per period, with a header.
func WriteCSV(w io.Writer, seq report.Sequence) error {
	cw := csv.NewWriter(w)
	cw.Comma = Separator
	if err := cw.Write(report.Columns()); err != nil {
		return err
	}
	for _, rec := range seq {
		if err := cw.Write(rec.Values()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SummaryRow is the averaged final period of one policy configuration.
type SummaryRow struct {
	Policy model.PolicyConfig `json:"policy"`
	Runs   int                `json:"runs"`
	Record report.Record      `json:"record"`
}

// WriteSummaryJSON writes sweep results to w.
func WriteSummaryJSON(w io.Writer, rows []SummaryRow) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

// WriteSummaryCSV writes sweep results to w, prefixed with policy columns.
func WriteSummaryCSV(w io.Writer, rows []SummaryRow) error {
	cw := csv.NewWriter(w)
	cw.Comma = Separator
	if err := cw.Write(append([]string{"policy", "level", "runs"}, report.Columns()...)); err != nil {
		return err
	}
	for _, r := range rows {
		p := r.Policy.Normalized()
		head := []string{string(p.Kind), fmt.Sprintf("%.1f", p.Level), fmt.Sprint(r.Runs)}
		if err := cw.Write(append(head, r.Record.Values()...)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ToFile creates path and writes v with the writer matching its extension
// (.json or .csv).
func ToFile[T any](path string, v T, asJSON, asCSV func(io.Writer, T) error) (err error) {
	var write func(io.Writer, T) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		write = asJSON
	case ".csv":
		write = asCSV
	default:
		return fmt.Errorf("unsupported export format %q", filepath.Ext(path))
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f, v)
}

// SequenceToFile exports a run report.
func SequenceToFile(path string, seq report.Sequence) error {
	return ToFile(path, seq, WriteJSON, WriteCSV)
}

// SummaryToFile exports sweep results.
func SummaryToFile(path string, rows []SummaryRow) error {
	return ToFile(path, rows, WriteSummaryJSON, WriteSummaryCSV)
}
