// Package report writes per-archive batch results as CSV.
package report

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/newthinker/comicshrink/internal/job"
)

// Row is one archive in the report.
type Row struct {
	Source      string `csv:"source"`
	Destination string `csv:"destination"`
	Status      string `csv:"status"`
	Entries     int    `csv:"entries"`
	Images      int    `csv:"images"`
	Fallbacks   int    `csv:"fallbacks"`
	InputBytes  int64  `csv:"input_bytes"`
	OutputBytes int64  `csv:"output_bytes"`
	SavedBytes  int64  `csv:"saved_bytes"`
	DurationMS  int64  `csv:"duration_ms"`
	Error       string `csv:"error"`
}

// FromJobs converts batch jobs to report rows, preserving order.
func FromJobs(jobs []job.Job) []Row {
	rows := make([]Row, 0, len(jobs))
	for _, j := range jobs {
		rows = append(rows, Row{
			Source:      j.Source,
			Destination: j.Destination,
			Status:      string(j.Status),
			Entries:     j.Entries,
			Images:      j.Images,
			Fallbacks:   j.Fallbacks,
			InputBytes:  j.InputBytes,
			OutputBytes: j.OutputBytes,
			SavedBytes:  j.Saved(),
			DurationMS:  j.Duration.Milliseconds(),
			Error:       j.Error,
		})
	}
	return rows
}

// Write writes rows to path, replacing any existing file.
func Write(path string, rows []Row) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}

	w := bufio.NewWriter(f)
	if err := gocsv.Marshal(rows, w); err != nil {
		f.Close()
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("writing report: %w", err)
	}
	return f.Close()
}
