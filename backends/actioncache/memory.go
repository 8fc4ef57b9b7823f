package actioncache

import (
	"context"
	"strings"
	"sync"

	"github.com/saiset-co/sai-cache-admin/backends"
	"github.com/saiset-co/sai-cache-admin/types"
)

// Key addresses one action result.
type Key struct {
	InstanceName string
	Digest       string
}

// MemoryStore is an in-process Action Cache shared with whatever serves
// action results in this process.
type MemoryStore struct {
	entries map[Key][]byte
	mu      sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[Key][]byte)}
}

func (s *MemoryStore) Put(key Key, result []byte) {
	s.mu.Lock()
	s.entries[key] = result
	s.mu.Unlock()
}

func (s *MemoryStore) Get(key Key) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result, ok := s.entries[key]
	return result, ok
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// RemoveIf deletes every entry whose key matches and returns how many went.
func (s *MemoryStore) RemoveIf(match func(Key) bool) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for key := range s.entries {
		if match(key) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

func (s *MemoryStore) Clear() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := int64(len(s.entries))
	s.entries = make(map[Key][]byte)
	return removed
}

type MemoryAdapter struct {
	store *MemoryStore
}

func NewMemoryAdapter(store *MemoryStore) *MemoryAdapter {
	return &MemoryAdapter{store: store}
}

func (a *MemoryAdapter) ID() types.BackendID {
	return types.BackendInMemory
}

func (a *MemoryAdapter) Family() types.CacheFamily {
	return types.FamilyActionCache
}

func (a *MemoryAdapter) Flush(ctx context.Context, scope types.Scope) (backends.Removal, error) {
	if err := ctx.Err(); err != nil {
		return backends.Removal{}, err
	}

	switch scope.Kind {
	case types.ScopeAll:
		return backends.Removal{Entries: a.store.Clear()}, nil
	case types.ScopeInstance:
		return backends.Removal{Entries: a.store.RemoveIf(func(k Key) bool {
			return k.InstanceName == scope.InstanceName
		})}, nil
	case types.ScopeDigestPrefix:
		return backends.Removal{Entries: a.store.RemoveIf(func(k Key) bool {
			return strings.HasPrefix(k.Digest, scope.DigestPrefix)
		})}, nil
	default:
		return backends.Removal{}, types.Errorf(types.ErrInvalidParameter, "unknown flush scope: %s", scope.Kind)
	}
}
