// Package progress reports per-entry completion while an archive drains.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/mattn/go-isatty"
)

// Reporter receives one Step per completed leaf entry. Implementations must
// be safe for concurrent use and must not block for long.
type Reporter interface {
	Start(label string, total int)
	Step()
	Finish()
}

// New returns a terminal bar when w is a terminal and enabled is set, and a
// Nop reporter otherwise.
func New(w io.Writer, enabled bool) Reporter {
	if !enabled || !IsTerminal(w) {
		return Nop{}
	}
	return NewBar(w)
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Nop discards all progress.
type Nop struct{}

func (Nop) Start(string, int) {}
func (Nop) Step()             {}
func (Nop) Finish()           {}

// Counter counts steps. It is used where progress is only checked, never shown.
type Counter struct {
	total atomic.Int64
	steps atomic.Int64
}

func (c *Counter) Start(_ string, total int) {
	c.total.Store(int64(total))
	c.steps.Store(0)
}

func (c *Counter) Step()   { c.steps.Add(1) }
func (c *Counter) Finish() {}

// Steps returns the number of steps since the last Start.
func (c *Counter) Steps() int { return int(c.steps.Load()) }

// Total returns the total passed to the last Start.
func (c *Counter) Total() int { return int(c.total.Load()) }

const redrawInterval = 100 * time.Millisecond

// Bar draws a single-line gradient bar, redrawn in place with "\r".
type Bar struct {
	w     io.Writer
	model progress.Model

	mu       sync.Mutex
	label    string
	total    int
	done     int
	lastDraw time.Time
}

// NewBar creates a Bar writing to w.
func NewBar(w io.Writer) *Bar {
	return &Bar{
		w:     w,
		model: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

func (b *Bar) Start(label string, total int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.label, b.total, b.done = label, total, 0
	b.draw()
}

func (b *Bar) Step() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.done++
	if b.done >= b.total || time.Since(b.lastDraw) >= redrawInterval {
		b.draw()
	}
}

func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.draw()
	fmt.Fprintln(b.w)
}

// draw must be called with mu held.
func (b *Bar) draw() {
	pct := 1.0
	if b.total > 0 {
		pct = float64(b.done) / float64(b.total)
	}
	fmt.Fprintf(b.w, "\r%s %s %d/%d", b.label, b.model.ViewAs(pct), b.done, b.total)
	b.lastDraw = time.Now()
}
