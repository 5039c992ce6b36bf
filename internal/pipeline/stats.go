package pipeline

import "time"

// Summary tracks aggregate counters and byte totals across a batch run.
type Summary struct {
	Total            int
	Compressed       int
	Skipped          int
	Failed           int
	Fallbacks        int
	TotalInputBytes  int64
	TotalOutputBytes int64
	Elapsed          time.Duration
}

// SpaceSaved returns the aggregate byte difference between inputs and outputs.
// Positive means outputs are smaller; negative means they grew.
func (s *Summary) SpaceSaved() int64 {
	return s.TotalInputBytes - s.TotalOutputBytes
}

// megabytes renders a byte count the way the summary logs report sizes.
func megabytes(n int64) float64 {
	return float64(n) / (1024 * 1024)
}
