// Package monitoring reports errors and panics to an external tracker. The
// process-wide monitor is a no-op until Init installs a backend.
package monitoring

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/kilianp07/evpolicy/core/model"
)

// Monitor defines methods used for error reporting.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	// Recover records a recovered panic value.
	Recover(r any)
	Flush(timeout time.Duration)
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Recover(any)                               {}
func (NopMonitor) Flush(time.Duration)                       {}

var (
	mu      sync.RWMutex
	current Monitor = NopMonitor{}
)

func monitor() Monitor {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Init sets the global monitor implementation. A nil monitor is ignored.
func Init(m Monitor) {
	if m == nil {
		return
	}
	mu.Lock()
	current = m
	mu.Unlock()
}

// CaptureException records the error with optional tags.
func CaptureException(err error, tags map[string]string) {
	monitor().CaptureException(err, tags)
}

// CaptureRun records the failure of a run, tagged with its policy and seed.
// Cancellations are not failures and are skipped.
func CaptureRun(err error, runID string, policy model.PolicyConfig, seed uint64) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	p := policy.Normalized()
	CaptureException(err, map[string]string{
		"run_id": runID,
		"policy": string(p.Kind),
		"level":  strconv.FormatFloat(p.Level, 'f', 1, 64),
		"seed":   strconv.FormatUint(seed, 10),
	})
}

// Recover reports a panic and panics again. It must be deferred directly,
// typically at the top of a worker goroutine.
func Recover() {
	if r := recover(); r != nil {
		m := monitor()
		m.Recover(r)
		m.Flush(2 * time.Second)
		panic(r)
	}
}

// Flush flushes buffered events.
func Flush(d time.Duration) {
	monitor().Flush(d)
}
