package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/newthinker/comicshrink/internal/cbz"
	"github.com/newthinker/comicshrink/internal/codec"
	"github.com/newthinker/comicshrink/internal/compress"
	"github.com/newthinker/comicshrink/internal/core"
	"github.com/newthinker/comicshrink/internal/metrics"
	"github.com/newthinker/comicshrink/internal/progress"
	"github.com/newthinker/comicshrink/internal/workspace"
	"go.uber.org/zap"
)

// Config wires a Coordinator. Only Options is required.
type Config struct {
	Options  Options
	Codec    codec.Codec
	Logger   *zap.Logger
	Metrics  *metrics.Registry
	Progress progress.Reporter
}

// Coordinator runs the per-archive pipeline. It holds no per-archive state
// and may be reused for any number of sequential Process calls.
type Coordinator struct {
	opts     Options
	codec    codec.Codec
	logger   *zap.Logger
	metrics  *metrics.Registry
	progress progress.Reporter
}

// New creates a Coordinator.
func New(cfg Config) *Coordinator {
	c := &Coordinator{
		opts:     cfg.Options,
		codec:    cfg.Codec,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		progress: cfg.Progress,
	}
	if c.codec == nil {
		c.codec = codec.JPEG{}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.progress == nil {
		c.progress = progress.Nop{}
	}
	return c
}

// Process rebuilds req.Source into req.Destination. Image failures fall back
// to the original bytes and are listed in Result.Fallbacks; any returned
// error means the archive failed and no destination file was left behind.
func (c *Coordinator) Process(ctx context.Context, req Request) (res *Result, err error) {
	start := time.Now()
	res = &Result{Source: req.Source, Destination: req.Destination}
	log := c.logger.With(zap.String("archive", req.Source))

	publish := func(t Transition) {
		log.Debug("archive state", zap.String("state", string(t.State)), zap.Int("remaining", t.Remaining))
		if req.Observe != nil {
			req.Observe(t)
		}
	}

	defer func() {
		res.Duration = time.Since(start)
		status := "success"
		if err != nil {
			status = "failed"
			publish(Transition{State: StateFailed, Err: err})
		}
		c.metrics.RecordArchive(status, res.Duration.Seconds(), res.InputBytes, res.OutputBytes)
	}()

	if err := checkDestination(req.Source, req.Destination); err != nil {
		return res, err
	}
	if info, err := os.Stat(req.Source); err == nil {
		res.InputBytes = info.Size()
	}

	h, err := cbz.Open(req.Source)
	if err != nil {
		return res, err
	}
	defer h.Close()
	publish(Transition{State: StateOpened})

	leaves := h.Leaves()
	res.Entries = len(leaves)
	for _, e := range leaves {
		if e.Class.Content == cbz.ContentImage {
			res.Images++
		}
	}
	publish(Transition{State: StateEnumerated, Remaining: len(leaves)})

	ws, err := workspace.New(c.opts.TempDir, stem(req.Source), log)
	if err != nil {
		return res, err
	}
	defer func() {
		// Cleanup failure is logged by the workspace and never fails the archive.
		_ = ws.Cleanup()
		if err == nil {
			publish(Transition{State: StateCleanedUp})
		}
	}()

	log.Info("compressing comic",
		zap.Int("ordinal", req.Ordinal),
		zap.Int("total", req.Total),
		zap.Int("entries", res.Entries),
		zap.Int("images", res.Images),
	)

	if err := c.drain(ctx, req, h, ws, leaves, res, publish); err != nil {
		return res, err
	}
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("interrupted before packing: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(req.Destination), 0o755); err != nil {
		return res, core.WrapError(core.ErrPackFailed, err)
	}
	if err := cbz.Pack(ws.Root(), req.Destination); err != nil {
		if rmErr := removePartial(req.Destination); rmErr != nil {
			log.Warn("cannot remove partial output", zap.String("output", req.Destination), zap.Error(rmErr))
		}
		return res, err
	}
	publish(Transition{State: StatePacked})

	if info, err := os.Stat(req.Destination); err == nil {
		res.OutputBytes = info.Size()
	}
	log.Info("finished comic",
		zap.String("output", req.Destination),
		zap.Int64("input_bytes", res.InputBytes),
		zap.Int64("output_bytes", res.OutputBytes),
		zap.Int("fallbacks", len(res.Fallbacks)),
	)
	return res, nil
}

// drain materializes directories, then feeds every leaf through the stage
// and writes each outcome into the workspace as it completes.
func (c *Coordinator) drain(
	ctx context.Context,
	req Request,
	h *cbz.Handle,
	ws *workspace.Workspace,
	leaves []cbz.Entry,
	res *Result,
	publish func(Transition),
) error {
	log := c.logger.With(zap.String("archive", req.Source))

	var mkErr error
	h.Root().Walk(func(n *cbz.Node) bool {
		if mkErr != nil {
			return false
		}
		if n.Dir && n.Path != "" {
			mkErr = ws.Mkdir(n.Path)
		}
		return true
	})
	if mkErr != nil {
		return mkErr
	}

	names, collided := ws.Reserve(leaves)
	for _, p := range collided {
		log.Warn("canonical image name taken, keeping original name", zap.String("entry", p))
	}
	res.Collisions = collided

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stage := compress.NewStage(compress.Config{
		Codec:   c.codec,
		Level:   c.opts.CompressionLevel,
		Limit:   c.opts.ConcurrencyLimit,
		Archive: req.Source,
		Logger:  c.logger,
		Metrics: c.metrics,
	})

	tasks := make(chan compress.Task, stage.Limit())
	feedErr := make(chan error, 1)
	go func() {
		defer close(tasks)
		for _, e := range leaves {
			data, err := h.ReadFile(e.Path)
			if err != nil {
				feedErr <- err
				cancel()
				return
			}
			select {
			case tasks <- compress.Task{Entry: e, Data: data}:
			case <-runCtx.Done():
				feedErr <- nil
				return
			}
		}
		feedErr <- nil
	}()

	remaining := len(leaves)
	c.progress.Start(progressLabel(req), remaining)

	var writeErr error
	for o := range stage.Run(runCtx, tasks) {
		if writeErr != nil {
			continue
		}
		if _, err := ws.Place(names[o.Entry.Path], o.Data); err != nil {
			writeErr = err
			cancel()
			continue
		}

		remaining--
		switch o.Result {
		case compress.Recompressed:
			res.Recompressed++
		case compress.Fallback:
			res.Fallbacks = append(res.Fallbacks, EntryFailure{Entry: o.Entry.Path, Err: o.Reason})
		}
		c.metrics.RecordEntry(o.Entry.Class.Content.String(), o.Result.String())
		c.progress.Step()
		publish(Transition{State: StateDraining, Remaining: remaining})
	}
	c.progress.Finish()

	if err := <-feedErr; err != nil {
		return err
	}
	if writeErr != nil {
		return writeErr
	}
	if remaining > 0 {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("interrupted with %d entries left: %w", remaining, err)
		}
		return fmt.Errorf("%d entries never completed", remaining)
	}
	return nil
}

// checkDestination rejects a destination that would overwrite the source.
func checkDestination(src, dst string) error {
	absSrc, err := filepath.Abs(src)
	if err != nil {
		return core.WrapError(core.ErrArchiveOpen, err)
	}
	absDst, err := filepath.Abs(dst)
	if err != nil {
		return core.WrapError(core.ErrPackFailed, err)
	}
	if absSrc == absDst {
		return core.WrapError(core.ErrPackFailed, fmt.Errorf("destination %s is the source archive", dst))
	}
	return nil
}

// removePartial deletes a half-written output archive. Anything that is not
// a regular file was never ours and is left alone.
func removePartial(p string) error {
	info, err := os.Lstat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if !info.Mode().IsRegular() {
		return nil
	}
	return os.Remove(p)
}

func stem(p string) string {
	base := filepath.Base(p)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func progressLabel(req Request) string {
	if req.Total > 0 {
		return fmt.Sprintf("[%d/%d] %s", req.Ordinal, req.Total, filepath.Base(req.Source))
	}
	return filepath.Base(req.Source)
}
