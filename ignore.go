package encrypt

import "sync"

// TypeSet is a concurrency-safe set of type names. The Transformer consults
// one as its ignore list before any processing, and the Subscriber uses one
// to track read-only types during pre-flush scans.
//
// Names match the package-qualified form reflect reports, e.g.
// "billing.Account".
type TypeSet struct {
	mu    sync.RWMutex
	names map[string]struct{}
}

// NewTypeSet creates a TypeSet holding the given names.
func NewTypeSet(names ...string) *TypeSet {
	s := &TypeSet{names: make(map[string]struct{}, len(names))}
	for _, name := range names {
		s.names[name] = struct{}{}
	}
	return s
}

// Add inserts a type name into the set.
func (s *TypeSet) Add(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names[name] = struct{}{}
}

// Remove deletes a type name from the set.
func (s *TypeSet) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.names, name)
}

// Has reports whether the set contains name.
func (s *TypeSet) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.names[name]
	return ok
}
