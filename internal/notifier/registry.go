package notifier

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Registry manages notifier instances
type Registry struct {
	mu        sync.RWMutex
	notifiers []Notifier
}

// NewRegistry creates a new notifier registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a notifier to the registry
func (r *Registry) Register(n Notifier) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.notifiers {
		if existing.Name() == n.Name() {
			return fmt.Errorf("notifier %s already registered", n.Name())
		}
	}
	r.notifiers = append(r.notifiers, n)
	return nil
}

// Len returns the number of registered notifiers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.notifiers)
}

// NotifyAll sends s to every notifier in registration order. One notifier
// failing does not stop the others.
func (r *Registry) NotifyAll(ctx context.Context, s Summary) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs *multierror.Error
	for _, n := range r.notifiers {
		if err := n.Notify(ctx, s); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errs.ErrorOrNil()
}
