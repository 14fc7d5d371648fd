package feed

import (
	"slices"
	"sync"
)

// Registry holds the current Feed of every source. Feeds are swapped in
// wholesale and never modified in place.
type Registry struct {
	mu          sync.RWMutex
	feeds       map[string]*Feed
	failures    map[string]error
	generations map[string]uint64
}

func NewRegistry() *Registry {
	return &Registry{
		feeds:       make(map[string]*Feed),
		failures:    make(map[string]error),
		generations: make(map[string]uint64),
	}
}

func (r *Registry) Swap(name string, f *Feed) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feeds[name] = f
	delete(r.failures, name)
}

// SwapIfAbsent installs f only when the source has no Feed yet.
func (r *Registry) SwapIfAbsent(name string, f *Feed) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.feeds[name]; ok {
		return false
	}
	r.feeds[name] = f
	return true
}

// Generation changes every time the source is removed. Work started under an
// older generation must not install anything.
func (r *Registry) Generation(name string) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generations[name]
}

// SwapAt installs f only if the source has not been removed since gen was read.
func (r *Registry) SwapAt(name string, f *Feed, gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generations[name] != gen {
		return false
	}
	r.feeds[name] = f
	delete(r.failures, name)
	return true
}

// Fail records the last load error of a source. The previously loaded Feed,
// if any, stays available.
func (r *Registry) Fail(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[name] = err
}

func (r *Registry) Get(name string) (*Feed, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.feeds[name]
	return f, ok
}

func (r *Registry) Failure(name string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.failures[name]
}

func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.feeds, name)
	delete(r.failures, name)
	r.generations[name]++
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.feeds))
	for name := range r.feeds {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
