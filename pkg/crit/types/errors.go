package types

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the error taxonomy surfaced to callers,
// spec.md §6.
var (
	ErrSamePid                = errors.New("crit: local and remote are the same server")
	ErrAlreadyJoined          = errors.New("crit: remote is already a member of the local segment")
	ErrBagWithConflictHandler = errors.New("crit: bag tables cannot have a conflict handler")
	ErrInvalidKeyPos          = errors.New("crit: key position must be >= 1")
	ErrUnknownPauseMonitor    = errors.New("crit: unknown pause monitor")
	ErrUnknownDumpRef         = errors.New("crit: unknown dump reference")
	ErrTimeout                = errors.New("crit: timeout waiting for response")
	ErrCheckServerFailed      = errors.New("crit: check_server probe against unknown alias")
	ErrNotFullyConnected      = errors.New("crit: segment members disagree on membership")
	ErrSegmentOverlap         = errors.New("crit: local and remote segments are not disjoint")
	ErrStopped                = errors.New("crit: server is stopped")
	ErrUnknownToken           = errors.New("crit: unknown write token")
	ErrUnknownServer          = errors.New("crit: unknown server identity")
)

// AssertPausedError describes a server found unpaused where it was
// expected to be paused, spec.md §6: {assert_paused, server,
// local|remote}. No code path in this module returns it; the join
// coordinator does not re-check pause state after pausing.
type AssertPausedError struct {
	Server ServerID
	Side   string // "local" or "remote"
}

func (e *AssertPausedError) Error() string {
	return fmt.Sprintf("crit: server %s (%s side) is not paused", e.Server, e.Side)
}

// CrashError wraps the reason an ack aggregator (or any other actor
// whose crash must be surfaced to a waiting caller) died, spec.md §6:
// {crashreason, _}.
type CrashError struct {
	Reason error
}

func (e *CrashError) Error() string {
	return fmt.Sprintf("crit: aggregator crashed: %v", e.Reason)
}

func (e *CrashError) Unwrap() error { return e.Reason }

// JoinStepError wraps a failure raised by a specific step of the join
// protocol, carrying enough context to log without a full stack trace
// requirement (spec.md §6: "{sim/caller-supplied error, trace}").
type JoinStepError struct {
	Step string
	Err  error
}

func (e *JoinStepError) Error() string {
	return fmt.Sprintf("crit: join step %q failed: %v", e.Step, e.Err)
}

func (e *JoinStepError) Unwrap() error { return e.Err }
