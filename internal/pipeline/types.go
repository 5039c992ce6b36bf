package pipeline

import (
	"time"
)

// Options are the tuning knobs every entry point takes.
type Options struct {
	// CompressionLevel is the maximum visual difference in percent, 0..100.
	// Higher values compress harder.
	CompressionLevel float64
	// ConcurrencyLimit caps concurrent image re-encodes. <= 0 means one per CPU.
	ConcurrencyLimit int
	// TempDir is the parent of per-archive workspaces; empty means os.TempDir.
	TempDir string
}

// State is a step of the per-archive state machine.
type State string

const (
	StateOpened     State = "opened"
	StateEnumerated State = "enumerated"
	StateDraining   State = "draining"
	StatePacked     State = "packed"
	StateCleanedUp  State = "cleaned_up"
	StateFailed     State = "failed"
)

// Transition is published to Request.Observe on every state change.
// Remaining is the number of leaves not yet written while draining.
type Transition struct {
	State     State
	Remaining int
	Err       error
}

// Request describes one archive to process.
type Request struct {
	Source      string
	Destination string
	Ordinal     int
	Total       int
	// Observe, when set, is called synchronously on each transition.
	Observe func(Transition)
}

// EntryFailure is an image that kept its original bytes.
type EntryFailure struct {
	Entry string
	Err   error
}

// Result summarizes one processed archive. It is returned even on failure,
// filled as far as processing got.
type Result struct {
	Source       string
	Destination  string
	Entries      int
	Images       int
	Recompressed int
	Fallbacks    []EntryFailure
	Collisions   []string
	InputBytes   int64
	OutputBytes  int64
	Duration     time.Duration
}

// Saved returns the byte difference between input and output.
func (r *Result) Saved() int64 {
	return r.InputBytes - r.OutputBytes
}
