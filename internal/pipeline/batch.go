package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/newthinker/comicshrink/internal/core"
	"github.com/newthinker/comicshrink/internal/job"
	"github.com/newthinker/comicshrink/internal/metrics"
	"github.com/newthinker/comicshrink/internal/storage"
	"go.uber.org/zap"
)

// BatchConfig wires a Batch. InputDir, OutputDir and Coordinator are required.
type BatchConfig struct {
	InputDir     string
	OutputDir    string
	SkipExisting bool
	Coordinator  *Coordinator
	Jobs         *job.Store
	// Sink, when set, receives every successfully written archive.
	Sink    storage.Storage
	Logger  *zap.Logger
	Metrics *metrics.Registry
}

// Batch processes every archive under an input tree, one at a time.
type Batch struct {
	cfg    BatchConfig
	jobs   *job.Store
	logger *zap.Logger
}

// NewBatch creates a Batch.
func NewBatch(cfg BatchConfig) *Batch {
	b := &Batch{cfg: cfg, jobs: cfg.Jobs, logger: cfg.Logger}
	if b.jobs == nil {
		b.jobs = job.NewStore()
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	return b
}

// Jobs returns the store the batch records archives in.
func (b *Batch) Jobs() *job.Store {
	return b.jobs
}

// Run discovers archives and processes each of them. The returned error
// aggregates every failed archive; the summary is always returned.
func (b *Batch) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	summary := &Summary{}
	defer func() { summary.Elapsed = time.Since(start) }()

	files, err := Discover(b.cfg.InputDir, b.cfg.OutputDir)
	if err != nil {
		return summary, fmt.Errorf("discovering archives: %w", err)
	}
	summary.Total = len(files)

	b.logger.Info("found comic archives",
		zap.Int("count", len(files)),
		zap.String("input", b.cfg.InputDir),
		zap.String("output", b.cfg.OutputDir),
	)

	var errs *multierror.Error
	for i, src := range files {
		if ctx.Err() != nil {
			b.logger.Warn("interrupted", zap.Int("remaining", len(files)-i))
			errs = multierror.Append(errs, ctx.Err())
			break
		}
		if err := b.processOne(ctx, i+1, len(files), src, summary); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", src, err))
		}
	}

	summary.Elapsed = time.Since(start)
	b.logSummary(summary)
	return summary, errs.ErrorOrNil()
}

func (b *Batch) processOne(ctx context.Context, ordinal, total int, src string, summary *Summary) error {
	dest, err := MirrorPath(b.cfg.InputDir, b.cfg.OutputDir, src)
	if err != nil {
		summary.Failed++
		return err
	}
	key := b.sinkKey(dest)

	j := b.jobs.Create(src, dest)
	update := func(fn func(*job.Job)) {
		_ = b.jobs.Update(j.ID, fn)
	}

	if b.cfg.SkipExisting && b.exists(ctx, dest, key) {
		b.logger.Info("skip (exists)", zap.String("archive", src), zap.String("output", dest))
		summary.Skipped++
		b.cfg.Metrics.RecordSkipped()
		update(func(j *job.Job) { j.Status = job.StatusSkipped })
		return nil
	}

	update(func(j *job.Job) { j.Status = job.StatusRunning })
	res, err := b.cfg.Coordinator.Process(ctx, Request{
		Source:      src,
		Destination: dest,
		Ordinal:     ordinal,
		Total:       total,
		Observe: func(t Transition) {
			update(func(j *job.Job) {
				j.State = string(t.State)
				j.Remaining = t.Remaining
			})
		},
	})
	update(func(j *job.Job) { applyResult(j, res) })

	if err == nil {
		err = b.publish(ctx, dest, key)
	}
	if err != nil {
		b.logger.Error("archive failed",
			zap.String("archive", src),
			zap.String("code", core.CodeOf(err)),
			zap.Error(err),
		)
		summary.Failed++
		update(func(j *job.Job) {
			j.Status = job.StatusFailed
			j.Error = err.Error()
		})
		return err
	}

	summary.Compressed++
	summary.Fallbacks += len(res.Fallbacks)
	summary.TotalInputBytes += res.InputBytes
	summary.TotalOutputBytes += res.OutputBytes
	update(func(j *job.Job) { j.Status = job.StatusComplete })

	b.logger.Info("size reduction",
		zap.String("archive", src),
		zap.String("before", fmt.Sprintf("%.2f MB", megabytes(res.InputBytes))),
		zap.String("after", fmt.Sprintf("%.2f MB", megabytes(res.OutputBytes))),
		zap.String("saved", fmt.Sprintf("%.2f MB", megabytes(res.Saved()))),
		zap.Duration("elapsed", res.Duration),
	)
	return nil
}

func applyResult(j *job.Job, res *Result) {
	if res == nil {
		return
	}
	j.Entries = res.Entries
	j.Images = res.Images
	j.Fallbacks = len(res.Fallbacks)
	j.InputBytes = res.InputBytes
	j.OutputBytes = res.OutputBytes
	j.Duration = res.Duration
}

// exists reports whether dest was already produced locally or published.
func (b *Batch) exists(ctx context.Context, dest, key string) bool {
	if _, err := os.Stat(dest); err == nil {
		return true
	}
	if b.cfg.Sink == nil {
		return false
	}
	ok, err := b.cfg.Sink.Exists(ctx, key)
	if err != nil {
		b.logger.Warn("cannot check published archive", zap.String("key", key), zap.Error(err))
		return false
	}
	return ok
}

func (b *Batch) publish(ctx context.Context, dest, key string) error {
	if b.cfg.Sink == nil {
		return nil
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		return core.WrapError(core.ErrUploadFailed, err)
	}
	if err := b.cfg.Sink.Write(ctx, key, data); err != nil {
		return core.WrapError(core.ErrUploadFailed, err)
	}
	b.logger.Debug("published archive", zap.String("key", key))
	return nil
}

// sinkKey is dest relative to the output root, with forward slashes.
func (b *Batch) sinkKey(dest string) string {
	rel, err := filepath.Rel(b.cfg.OutputDir, dest)
	if err != nil || !filepath.IsLocal(rel) {
		rel = filepath.Base(dest)
	}
	return filepath.ToSlash(rel)
}

func (b *Batch) logSummary(s *Summary) {
	fields := []zap.Field{
		zap.Int("total", s.Total),
		zap.Int("compressed", s.Compressed),
		zap.Int("skipped", s.Skipped),
		zap.Int("failed", s.Failed),
		zap.Int("fallbacks", s.Fallbacks),
		zap.String("before", fmt.Sprintf("%.2f MB", megabytes(s.TotalInputBytes))),
		zap.String("after", fmt.Sprintf("%.2f MB", megabytes(s.TotalOutputBytes))),
		zap.String("saved", fmt.Sprintf("%.2f MB", megabytes(s.SpaceSaved()))),
		zap.Duration("elapsed", s.Elapsed),
	}
	if s.Failed > 0 {
		b.logger.Warn("batch finished with failures", fields...)
		return
	}
	b.logger.Info("batch finished", fields...)
}
