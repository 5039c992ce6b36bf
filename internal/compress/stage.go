// Package compress runs image re-encodes on a fixed-size worker pool.
//
// Tasks are admitted in the order they are sent; outcomes come back in
// completion order, which differs from submission order whenever more than
// one worker is running. Consumers must not assume FIFO delivery.
package compress

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/newthinker/comicshrink/internal/cbz"
	"github.com/newthinker/comicshrink/internal/codec"
	"github.com/newthinker/comicshrink/internal/core"
	"github.com/newthinker/comicshrink/internal/metrics"
	"go.uber.org/zap"
)

// Result tells how an outcome's payload was produced.
type Result int

const (
	Recompressed Result = iota // Codec output.
	Copied                     // Opaque entry, bytes unchanged.
	Fallback                   // Codec failed, original bytes.
)

func (r Result) String() string {
	switch r {
	case Recompressed:
		return "recompressed"
	case Copied:
		return "copied"
	case Fallback:
		return "fallback"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// Task is one leaf entry submitted to the stage.
type Task struct {
	Entry cbz.Entry
	Data  []byte
}

// Outcome is the processed form of a Task. Data is always set.
type Outcome struct {
	Entry  cbz.Entry
	Data   []byte
	Result Result
	Reason error // set for Fallback
}

// Stage bounds concurrent codec calls to Limit workers.
type Stage struct {
	codec   codec.Codec
	level   float64
	limit   int
	archive string
	logger  *zap.Logger
	metrics *metrics.Registry
}

// Config holds Stage settings.
type Config struct {
	Codec   codec.Codec
	Level   float64
	Limit   int    // <= 0 means runtime.NumCPU()
	Archive string // used in log context only
	Logger  *zap.Logger
	Metrics *metrics.Registry
}

// NewStage creates a Stage.
func NewStage(cfg Config) *Stage {
	limit := cfg.Limit
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c := cfg.Codec
	if c == nil {
		c = codec.JPEG{}
	}
	return &Stage{
		codec:   c,
		level:   cfg.Level,
		limit:   limit,
		archive: cfg.Archive,
		logger:  logger,
		metrics: cfg.Metrics,
	}
}

// Limit returns the number of workers.
func (s *Stage) Limit() int { return s.limit }

// Run starts the workers. They consume tasks until it is closed or ctx is
// done, and the returned channel is closed once every worker has exited.
// Each task received yields exactly one outcome unless ctx is cancelled
// first.
func (s *Stage) Run(ctx context.Context, tasks <-chan Task) <-chan Outcome {
	out := make(chan Outcome, s.limit)

	var wg sync.WaitGroup
	for i := 0; i < s.limit; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case t, ok := <-tasks:
					if !ok {
						return
					}
					select {
					case out <- s.process(t):
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

func (s *Stage) process(t Task) Outcome {
	if t.Entry.Class.Content != cbz.ContentImage {
		return Outcome{Entry: t.Entry, Data: t.Data, Result: Copied}
	}

	data, err := s.encode(t.Data)
	if err != nil {
		s.logger.Warn("recompression failed, keeping original",
			zap.String("archive", s.archive),
			zap.String("entry", t.Entry.Path),
			zap.Error(err),
		)
		return Outcome{Entry: t.Entry, Data: t.Data, Result: Fallback, Reason: err}
	}
	return Outcome{Entry: t.Entry, Data: data, Result: Recompressed}
}

// encode calls the codec, turning a panic into an error.
func (s *Stage) encode(data []byte) (out []byte, err error) {
	s.metrics.CompressStarted()
	start := time.Now()
	defer func() {
		s.metrics.CompressFinished(time.Since(start).Seconds())
		if r := recover(); r != nil {
			out, err = nil, core.WrapError(core.ErrCodecFailed, fmt.Errorf("panic: %v", r))
		}
	}()

	out, err = s.codec.Encode(data, s.level)
	if err == nil && len(out) == 0 {
		err = core.WrapError(core.ErrCodecFailed, fmt.Errorf("empty output"))
	}
	return out, err
}
