// Package probe runs the startup checks printed before playback begins.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultTimeout bounds a check that sets no Timeout of its own.
const DefaultTimeout = 5 * time.Second

// Probe is a single startup check. Check returns nil when it passes.
type Probe struct {
	Name     string
	Check    func(ctx context.Context) error
	Critical bool // a failure aborts the command
	Timeout  time.Duration
}

// Result is the outcome of one probe.
type Result struct {
	Name     string
	Critical bool
	Err      error
	Took     time.Duration
}

// Run executes all probes concurrently, each under its own deadline.
// Results keep the order of probes.
func Run(ctx context.Context, probes []Probe) []Result {
	results := make([]Result, len(probes))
	var wg sync.WaitGroup
	for i, p := range probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = p.run(ctx)
		}()
	}
	wg.Wait()
	return results
}

func (p Probe) run(ctx context.Context) Result {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := p.Check(ctx)
	return Result{Name: p.Name, Critical: p.Critical, Err: err, Took: time.Since(start)}
}

// Summarize logs one line per result. The returned error joins the
// failures of critical probes; other failures are only warned about.
func Summarize(results []Result) error {
	var fatal []error
	for _, r := range results {
		took := r.Took.Round(time.Millisecond)
		switch {
		case r.Err == nil:
			slog.Info("Check passed", "check", r.Name, "took", took)
		case r.Critical:
			slog.Error("Check failed", "check", r.Name, "took", took, "error", r.Err)
			fatal = append(fatal, fmt.Errorf("%s: %w", r.Name, r.Err))
		default:
			slog.Warn("Check failed, continuing", "check", r.Name, "took", took, "error", r.Err)
		}
	}
	return errors.Join(fatal...)
}
