package notifier

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type recordingNotifier struct {
	name string
	err  error
	got  []Summary
}

func (n *recordingNotifier) Name() string { return n.name }

func (n *recordingNotifier) Notify(_ context.Context, s Summary) error {
	n.got = append(n.got, s)
	return n.err
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&recordingNotifier{name: "a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Register(&recordingNotifier{name: "a"}); err == nil {
		t.Error("expected duplicate registration to fail")
	}
	if r.Len() != 1 {
		t.Errorf("expected 1 notifier, got %d", r.Len())
	}
}

func TestRegistry_NotifyAll(t *testing.T) {
	r := NewRegistry()
	ok := &recordingNotifier{name: "ok"}
	bad := &recordingNotifier{name: "bad", err: errors.New("unreachable")}
	after := &recordingNotifier{name: "after"}
	for _, n := range []Notifier{ok, bad, after} {
		if err := r.Register(n); err != nil {
			t.Fatal(err)
		}
	}

	err := r.NotifyAll(context.Background(), Summary{Total: 3})
	if err == nil || !strings.Contains(err.Error(), "bad: unreachable") {
		t.Errorf("expected aggregated error, got %v", err)
	}
	if len(ok.got) != 1 || len(after.got) != 1 {
		t.Error("every notifier should be called")
	}
}

func TestRegistry_NotifyAll_Empty(t *testing.T) {
	if err := NewRegistry().NotifyAll(context.Background(), Summary{}); err != nil {
		t.Errorf("empty registry should not error: %v", err)
	}
}

func TestSummary_Saved(t *testing.T) {
	s := Summary{BytesBefore: 1000, BytesAfter: 250}
	if s.Saved() != 750 {
		t.Errorf("expected 750, got %d", s.Saved())
	}
}
