package notifier

import (
	"context"
	"time"
)

// Summary describes a finished batch run.
type Summary struct {
	Input       string
	Output      string
	Total       int
	Compressed  int
	Skipped     int
	Failed      int
	Fallbacks   int
	BytesBefore int64
	BytesAfter  int64
	Elapsed     time.Duration
	Failures    []string
	FinishedAt  time.Time
}

// Saved returns the bytes saved across the run.
func (s Summary) Saved() int64 {
	return s.BytesBefore - s.BytesAfter
}

// Notifier announces finished batch runs.
type Notifier interface {
	// Name returns the unique identifier for this notifier
	Name() string

	// Notify delivers one run summary.
	Notify(ctx context.Context, s Summary) error
}
