package store

import (
	"errors"
	"sort"
	"sync"

	"github.com/esmtools/grid-coverage/internal/grid"
)

var (
	// ErrNotFound is returned when no dataset is registered under a name.
	ErrNotFound = errors.New("no dataset registered under that name")
)

// Registry is a concurrency-safe collection of named read-only datasets.
// Datasets themselves are immutable; the registry only swaps which handle a
// name points at, so a request keeps working on the handle it resolved even
// if the name is re-registered mid-flight.
type Registry struct {
	mu       sync.RWMutex
	datasets map[string]*grid.Dataset
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		datasets: make(map[string]*grid.Dataset),
	}
}

// Register stores a dataset under a name, replacing any previous handle.
func (r *Registry) Register(name string, ds *grid.Dataset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.datasets[name] = ds
}

// Get returns the dataset registered under the name.
func (r *Registry) Get(name string) (*grid.Dataset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ds, ok := r.datasets[name]
	if !ok {
		return nil, ErrNotFound
	}
	return ds, nil
}

// Names returns the registered dataset names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.datasets))
	for name := range r.datasets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
