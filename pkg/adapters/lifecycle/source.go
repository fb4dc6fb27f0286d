// Package lifecycle turns mapping file changes into lifecycle events.
package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/introspection"
	"github.com/aretw0/lifecycle"

	"github.com/aretw0/strata/pkg/metadata"
)

// Loader rebuilds the collector after a change.
type Loader func() (*metadata.Collector, error)

// Reload is emitted once per change. Collector is nil when Err is set.
type Reload struct {
	Trigger   metadata.Event
	Collector *metadata.Collector
	Err       error
}

func (r Reload) String() string {
	if r.Err != nil {
		return fmt.Sprintf("reload after %s failed: %v", r.Trigger, r.Err)
	}
	return fmt.Sprintf("reloaded after %s: %d repositories", r.Trigger, len(r.Collector.Descriptors()))
}

// ReloadSource reloads mappings on every watch event and emits the outcome.
// A failed load does not stop the source; mapping files are often saved mid-edit.
type ReloadSource struct {
	changes <-chan metadata.Event
	load    Loader
	out     chan lifecycle.Event

	mu       sync.Mutex
	reloads  int
	failures int
	last     string
}

// NewSource creates a source fed by metadata.Watch.
func NewSource(changes <-chan metadata.Event, load Loader) *ReloadSource {
	return &ReloadSource{
		changes: changes,
		load:    load,
		out:     make(chan lifecycle.Event),
	}
}

// Events returns the reload outcomes. It is closed when the source stops.
func (s *ReloadSource) Events() <-chan lifecycle.Event {
	return s.out
}

// Start runs until the change channel closes or ctx is done.
func (s *ReloadSource) Start(ctx context.Context) error {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		for {
			var change metadata.Event
			select {
			case <-ctx.Done():
				return nil
			case e, ok := <-s.changes:
				if !ok {
					return nil
				}
				change = e
			}

			reload := s.reload(change)
			select {
			case s.out <- reload:
			case <-ctx.Done():
				return nil
			}
		}
	})
	return nil
}

func (s *ReloadSource) reload(change metadata.Event) Reload {
	collector, err := s.load()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = change.Path
	if err != nil {
		s.failures++
		return Reload{Trigger: change, Err: err}
	}
	s.reloads++
	return Reload{Trigger: change, Collector: collector}
}

// SourceState exposes internal state for observability.
type SourceState struct {
	Reloads  int    `json:"reloads"`
	Failures int    `json:"failures"`
	LastPath string `json:"last_path,omitempty"`
}

// State implements introspection.Introspectable.
func (s *ReloadSource) State() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SourceState{Reloads: s.reloads, Failures: s.failures, LastPath: s.last}
}

// ComponentType implements introspection.Component.
func (s *ReloadSource) ComponentType() string {
	return "mapping-reload"
}

var (
	_ lifecycle.Source             = (*ReloadSource)(nil)
	_ introspection.Introspectable = (*ReloadSource)(nil)
	_ introspection.Component      = (*ReloadSource)(nil)
)
