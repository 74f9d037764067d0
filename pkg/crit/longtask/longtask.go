// Package longtask runs a function in a supervised worker, periodically
// logging progress, and converts panics into tagged Outcomes instead of
// crashing the caller. Spec.md §4.5; used to wrap join invocations
// (spec.md §2 component 5) since a join can legitimately take a while
// (pausing every member of two segments, exchanging dumps) and a
// caller benefits from knowing it is still alive.
//
// Grounded on the teacher's actor-spawning style (core.Invoker,
// pkg/mcast/core/peer.go: "p.invoker.Spawn(...)") generalized into a
// reusable single-task supervisor with progress ticks and panic
// recovery, a shape the teacher doesn't need (its goroutines are
// long-lived actors, not one-shot tasks) but builds from the same
// "spawn and observe" vocabulary.
package longtask

import (
	"context"
	"fmt"
	"time"

	"github.com/critdb/crit/pkg/crit/types"
)

// Outcome is the tagged result handed back from Run: either the
// wrapped function's own (value, error) pair, or — if it panicked — a
// synthetic error carrying the panic value, never a raw panic
// propagating to the caller.
type Outcome struct {
	Value    interface{}
	Err      error
	Panicked bool
}

// Options tunes progress logging. Name labels the log lines; Every
// defaults to 5s when zero.
type Options struct {
	Name  string
	Every time.Duration
}

// Run executes fn in its own goroutine, logging a progress line every
// Options.Every until fn returns, and returns once fn completes or ctx
// is canceled (in which case Outcome.Err is ctx.Err() and fn keeps
// running in the background — Run does not leak the goroutine, it
// simply stops waiting on it, mirroring spec.md §5's cancellation
// semantics for wait_response: "it does not cancel the underlying
// write").
func Run(ctx context.Context, log types.Logger, opts Options, fn func(ctx context.Context) (interface{}, error)) Outcome {
	every := opts.Every
	if every <= 0 {
		every = 5 * time.Second
	}
	name := opts.Name
	if name == "" {
		name = "longtask"
	}

	result := make(chan Outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				result <- Outcome{Panicked: true, Err: fmt.Errorf("%s: panic: %v", name, r)}
			}
		}()
		v, err := fn(ctx)
		result <- Outcome{Value: v, Err: err}
	}()

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	start := 0
	for {
		select {
		case out := <-result:
			return out
		case <-ticker.C:
			start++
			log.Infof("%s: still running after %s", name, time.Duration(start)*every)
		case <-ctx.Done():
			log.Warnf("%s: caller gave up waiting, task continues in background", name)
			return Outcome{Err: ctx.Err()}
		}
	}
}
