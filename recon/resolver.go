/*
resolver.go - Per-insurer mapping cache

PURPOSE:
  Insurer field mappings are rarely-changing reference data. The Resolver
  fetches each insurer's mapping from the MappingStore once and caches it
  for the process lifetime; administrative updates call Invalidate to
  force a refetch. There is deliberately no ambient global - the cache is
  an explicit, process-scoped value.

SEE ALSO:
  - mapping.go: MappingStore interface and mapping model
  - runner.go: Resolves mappings per reconciliation run
*/
package recon

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownInsurer is returned when no mapping is registered for the
// requested insurer. Use with errors.Is().
var ErrUnknownInsurer = errors.New("no mapping registered for insurer")

// UnknownInsurerError carries the insurer name for display.
type UnknownInsurerError struct {
	Insurer string
}

func (e *UnknownInsurerError) Error() string {
	return fmt.Sprintf("insurer %q: %v", e.Insurer, ErrUnknownInsurer)
}

func (e *UnknownInsurerError) Unwrap() error { return ErrUnknownInsurer }

// Resolver caches insurer field mappings, fetched once per insurer.
// Safe for concurrent use; reconciliation runs may resolve in parallel.
type Resolver struct {
	mu    sync.RWMutex
	store MappingStore
	cache map[string]InsurerFieldMapping
}

// NewResolver creates a resolver over the given store.
func NewResolver(store MappingStore) *Resolver {
	return &Resolver{
		store: store,
		cache: make(map[string]InsurerFieldMapping),
	}
}

// Resolve returns the insurer's mapping, fetching it on first use and
// caching indefinitely after. Returns an UnknownInsurerError when the
// store has no entry.
func (r *Resolver) Resolve(ctx context.Context, insurer string) (InsurerFieldMapping, error) {
	r.mu.RLock()
	m, ok := r.cache[insurer]
	r.mu.RUnlock()
	if ok {
		return m, nil
	}

	m, err := r.store.GetMapping(ctx, insurer)
	if err != nil {
		if errors.Is(err, ErrUnknownInsurer) {
			return InsurerFieldMapping{}, &UnknownInsurerError{Insurer: insurer}
		}
		return InsurerFieldMapping{}, fmt.Errorf("resolve mapping for %q: %w", insurer, err)
	}
	if err := m.Validate(); err != nil {
		return InsurerFieldMapping{}, fmt.Errorf("resolve mapping for %q: %w", insurer, err)
	}

	r.mu.Lock()
	// A concurrent Resolve may have raced us; keep the first cached copy
	// so callers within one process lifetime see one consistent mapping.
	if cached, ok := r.cache[insurer]; ok {
		m = cached
	} else {
		r.cache[insurer] = m
	}
	r.mu.Unlock()
	return m, nil
}

// Invalidate drops the cached mapping so the next Resolve refetches.
// For administrative mapping updates.
func (r *Resolver) Invalidate(insurer string) {
	r.mu.Lock()
	delete(r.cache, insurer)
	r.mu.Unlock()
}
