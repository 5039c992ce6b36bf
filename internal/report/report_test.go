package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/newthinker/comicshrink/internal/job"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromJobs(t *testing.T) {
	jobs := []job.Job{
		{
			Source:      "in/a.cbz",
			Destination: "out/a.cbz",
			Status:      job.StatusComplete,
			Entries:     3,
			Images:      2,
			Fallbacks:   1,
			InputBytes:  1000,
			OutputBytes: 600,
			Duration:    1500 * time.Millisecond,
		},
		{
			Source: "in/b.cbz",
			Status: job.StatusFailed,
			Error:  "[ARCHIVE_OPEN] cannot open archive",
		},
	}

	rows := FromJobs(jobs)
	require.Len(t, rows, 2)
	assert.Equal(t, "complete", rows[0].Status)
	assert.Equal(t, int64(400), rows[0].SavedBytes)
	assert.Equal(t, int64(1500), rows[0].DurationMS)
	assert.Equal(t, "failed", rows[1].Status)
	assert.Equal(t, int64(0), rows[1].SavedBytes)
	assert.Contains(t, rows[1].Error, "ARCHIVE_OPEN")
}

func TestWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "run.csv")
	rows := []Row{
		{Source: "a.cbz", Status: "complete", InputBytes: 10, OutputBytes: 7, SavedBytes: 3},
		{Source: "b, with comma.cbz", Status: "skipped"},
	}

	require.NoError(t, Write(path, rows))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	header := strings.SplitN(string(data), "\n", 2)[0]
	assert.Equal(t, "source,destination,status,entries,images,fallbacks,input_bytes,output_bytes,saved_bytes,duration_ms,error", header)

	var got []Row
	require.NoError(t, gocsv.UnmarshalBytes(data, &got))
	assert.Equal(t, rows, got)
}

func TestWrite_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.csv")
	require.NoError(t, Write(path, []Row{{Source: "a.cbz"}, {Source: "b.cbz"}}))
	require.NoError(t, Write(path, []Row{{Source: "c.cbz"}}))

	var got []Row
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, gocsv.UnmarshalBytes(data, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "c.cbz", got[0].Source)
}
