package compress

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/newthinker/comicshrink/internal/cbz"
	"github.com/newthinker/comicshrink/internal/codec"
	"github.com/newthinker/comicshrink/internal/core"
	"github.com/newthinker/comicshrink/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// peakCodec records the highest number of concurrent Encode calls.
type peakCodec struct {
	current atomic.Int32
	peak    atomic.Int32
	delay   time.Duration
}

func (c *peakCodec) Encode(data []byte, _ float64) ([]byte, error) {
	n := c.current.Add(1)
	defer c.current.Add(-1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(c.delay)
	return append([]byte("z:"), data...), nil
}

func entryFor(p string) cbz.Entry {
	return cbz.Entry{Path: p, Class: cbz.Classify(p)}
}

func feed(tasks []Task) <-chan Task {
	ch := make(chan Task)
	go func() {
		defer close(ch)
		for _, t := range tasks {
			ch <- t
		}
	}()
	return ch
}

func collect(out <-chan Outcome) map[string]Outcome {
	got := map[string]Outcome{}
	for o := range out {
		got[o.Entry.Path] = o
	}
	return got
}

func TestStage_RespectsConcurrencyLimit(t *testing.T) {
	for _, limit := range []int{1, 2, 4} {
		t.Run(fmt.Sprintf("limit=%d", limit), func(t *testing.T) {
			c := &peakCodec{delay: 10 * time.Millisecond}
			s := NewStage(Config{Codec: c, Level: 50, Limit: limit})

			var tasks []Task
			for i := 0; i < 24; i++ {
				tasks = append(tasks, Task{Entry: entryFor(fmt.Sprintf("p%02d.jpg", i)), Data: []byte{byte(i)}})
			}

			got := collect(s.Run(context.Background(), feed(tasks)))
			assert.Len(t, got, 24)
			assert.LessOrEqual(t, int(c.peak.Load()), limit)
			assert.GreaterOrEqual(t, int(c.peak.Load()), 1)
		})
	}
}

func TestStage_DefaultLimitIsPositive(t *testing.T) {
	s := NewStage(Config{})
	assert.Greater(t, s.Limit(), 0)
}

func TestStage_ResultsPerKind(t *testing.T) {
	failing := codec.Func(func(data []byte, _ float64) ([]byte, error) {
		if string(data) == "corrupt" {
			return nil, core.WrapError(core.ErrCodecFailed, errors.New("invalid JPEG format"))
		}
		return []byte("small"), nil
	})
	s := NewStage(Config{Codec: failing, Limit: 3, Archive: "test.cbz"})

	got := collect(s.Run(context.Background(), feed([]Task{
		{Entry: entryFor("page1.jpg"), Data: []byte("large page")},
		{Entry: entryFor("broken.jpg"), Data: []byte("corrupt")},
		{Entry: entryFor("cover.png"), Data: []byte("png bytes")},
	})))

	require.Len(t, got, 3)

	assert.Equal(t, Recompressed, got["page1.jpg"].Result)
	assert.Equal(t, []byte("small"), got["page1.jpg"].Data)

	assert.Equal(t, Fallback, got["broken.jpg"].Result)
	assert.Equal(t, []byte("corrupt"), got["broken.jpg"].Data)
	assert.True(t, errors.Is(got["broken.jpg"].Reason, core.ErrCodecFailed))

	assert.Equal(t, Copied, got["cover.png"].Result)
	assert.Equal(t, []byte("png bytes"), got["cover.png"].Data)
}

func TestStage_PanicBecomesFallback(t *testing.T) {
	s := NewStage(Config{
		Codec: codec.Func(func([]byte, float64) ([]byte, error) { panic("decoder exploded") }),
		Limit: 1,
	})

	got := collect(s.Run(context.Background(), feed([]Task{{Entry: entryFor("p.jpg"), Data: []byte("orig")}})))

	require.Contains(t, got, "p.jpg")
	assert.Equal(t, Fallback, got["p.jpg"].Result)
	assert.Equal(t, []byte("orig"), got["p.jpg"].Data)
	assert.True(t, errors.Is(got["p.jpg"].Reason, core.ErrCodecFailed))
}

func TestStage_EmptyCodecOutputFallsBack(t *testing.T) {
	s := NewStage(Config{
		Codec: codec.Func(func([]byte, float64) ([]byte, error) { return nil, nil }),
		Limit: 1,
	})

	got := collect(s.Run(context.Background(), feed([]Task{{Entry: entryFor("p.jpg"), Data: []byte("orig")}})))
	assert.Equal(t, Fallback, got["p.jpg"].Result)
	assert.Equal(t, []byte("orig"), got["p.jpg"].Data)
}

func TestStage_PassesLevel(t *testing.T) {
	var seen atomic.Value
	s := NewStage(Config{
		Codec: codec.Func(func(data []byte, level float64) ([]byte, error) {
			seen.Store(level)
			return data, nil
		}),
		Level: 42.5,
		Limit: 1,
	})

	collect(s.Run(context.Background(), feed([]Task{{Entry: entryFor("p.jpg"), Data: []byte("x")}})))
	assert.Equal(t, 42.5, seen.Load())
}

func TestStage_CancelStopsWorkers(t *testing.T) {
	block := make(chan struct{})
	s := NewStage(Config{
		Codec: codec.Func(func(data []byte, _ float64) ([]byte, error) {
			<-block
			return data, nil
		}),
		Limit: 2,
	})

	ctx, cancel := context.WithCancel(context.Background())
	tasks := make(chan Task)
	out := s.Run(ctx, tasks)

	go func() {
		for i := 0; i < 2; i++ {
			tasks <- Task{Entry: entryFor(fmt.Sprintf("p%d.jpg", i)), Data: []byte("x")}
		}
	}()

	cancel()
	close(block)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range out {
		}
	}()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("outcome channel not closed after cancel")
	}
}

func TestStage_RecordsInFlightMetrics(t *testing.T) {
	reg := metrics.NewRegistry()
	s := NewStage(Config{Codec: &peakCodec{}, Limit: 2, Metrics: reg})

	collect(s.Run(context.Background(), feed([]Task{
		{Entry: entryFor("a.jpg"), Data: []byte("a")},
		{Entry: entryFor("b.jpg"), Data: []byte("b")},
	})))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		switch mf.GetName() {
		case "comicshrink_compress_in_flight":
			assert.Equal(t, 0.0, mf.GetMetric()[0].GetGauge().GetValue())
		case "comicshrink_compress_duration_seconds":
			assert.Equal(t, uint64(2), mf.GetMetric()[0].GetHistogram().GetSampleCount())
		}
	}
}

func TestResult_String(t *testing.T) {
	assert.Equal(t, "recompressed", Recompressed.String())
	assert.Equal(t, "copied", Copied.String())
	assert.Equal(t, "fallback", Fallback.String())
	assert.Equal(t, "Result(9)", Result(9).String())
}
