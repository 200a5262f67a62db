package suggest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// Registry maps an index id to its suggester. Lookups of an existing suggester take no lock;
// construction is serialized by a single mutex and re-checked under it, so concurrent first
// requests for an index build exactly one suggester.
type Registry struct {
	mu       sync.Mutex
	handles  sync.Map
	size     atomic.Int64
	factory  Factory
	logger   *log.Logger
	builds   atomic.Uint64
	failures atomic.Uint64
}

func NewRegistry(factory Factory, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{
		factory: factory,
		logger:  logger.WithPrefix("registry"),
	}
}

// Get returns the suggester of an index, building it on first use. A failed build is not
// cached, the next Get tries again.
func (r *Registry) Get(ctx context.Context, id string) (Suggester, error) {
	if id == "" {
		return nil, ErrEmptyIndex
	}
	if s, ok := r.handles.Load(id); ok {
		return s.(Suggester), nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.handles.Load(id); ok {
		return s.(Suggester), nil
	}

	s, err := r.factory(ctx, id)
	if err != nil {
		r.failures.Add(1)
		return nil, engineError(id, "build", err)
	}
	r.builds.Add(1)
	r.handles.Store(id, s)
	r.size.Add(1)
	r.logger.Debug("suggester created", "index", id)
	return s, nil
}

// Invalidate drops the suggester of an index so that the next Get builds a fresh one
func (r *Registry) Invalidate(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, loaded := r.handles.LoadAndDelete(id); loaded {
		r.size.Add(-1)
		r.logger.Debug("suggester invalidated", "index", id)
	}
}

// Len returns the number of live suggesters
func (r *Registry) Len() int {
	return int(r.size.Load())
}

// Builds returns how many suggesters were constructed and how many constructions failed
func (r *Registry) Builds() (ok, failed uint64) {
	return r.builds.Load(), r.failures.Load()
}
