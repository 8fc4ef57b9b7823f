// Package backends holds the storage adapters a flush fans out to and the
// registry the flush service looks them up in.
package backends

import (
	"context"
	"sync"

	"github.com/saiset-co/sai-cache-admin/types"
)

// Removal is what one adapter reclaimed for one flush.
type Removal struct {
	Entries int64
	Bytes   int64
}

// Adapter issues the invalidation for one backend. Scopes the backend
// cannot address remove nothing and are not an error.
type Adapter interface {
	ID() types.BackendID
	Family() types.CacheFamily
	Flush(ctx context.Context, scope types.Scope) (Removal, error)
}

// Registry maps configured backends to their adapters.
type Registry struct {
	adapters map[types.CacheFamily]map[types.BackendID]Adapter
	mu       sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[types.CacheFamily]map[types.BackendID]Adapter)}
}

func (r *Registry) Register(adapter Adapter) error {
	family := adapter.Family()
	if !family.Supports(adapter.ID()) {
		return types.Errorf(types.ErrBackendTypeUnknown, "%s is not a %s backend", adapter.ID(), family)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.adapters[family] == nil {
		r.adapters[family] = make(map[types.BackendID]Adapter)
	}
	r.adapters[family][adapter.ID()] = adapter

	return nil
}

func (r *Registry) Get(family types.CacheFamily, id types.BackendID) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, ok := r.adapters[family][id]
	return adapter, ok
}

// Configured lists the registered backends of a family in canonical order.
func (r *Registry) Configured(family types.CacheFamily) []types.BackendID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []types.BackendID
	for _, id := range family.Backends() {
		if _, ok := r.adapters[family][id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}
