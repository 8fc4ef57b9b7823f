package cas

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/saiset-co/sai-cache-admin/backends"
	"github.com/saiset-co/sai-cache-admin/types"
)

const defaultLRUCapacity = 100000

// LRUStore is the in-process CAS tier: blobs keyed by digest hash, bounded
// by entry count and optionally expiring after ttl.
type LRUStore struct {
	lru      *expirable.LRU[string, []byte]
	capacity int
}

func NewLRUStore(capacity int, ttl time.Duration) *LRUStore {
	if capacity <= 0 {
		capacity = defaultLRUCapacity
	}

	return &LRUStore{
		lru:      expirable.NewLRU[string, []byte](capacity, nil, ttl),
		capacity: capacity,
	}
}

func (s *LRUStore) Put(digest string, blob []byte) {
	s.lru.Add(digest, blob)
}

func (s *LRUStore) Get(digest string) ([]byte, bool) {
	return s.lru.Get(digest)
}

func (s *LRUStore) Len() int {
	return s.lru.Len()
}

// removeMatching drops matching blobs one by one so entries added or
// expired concurrently are neither counted nor missed.
func (s *LRUStore) removeMatching(ctx context.Context, match func(string) bool) (backends.Removal, error) {
	var removal backends.Removal

	for _, digest := range s.lru.Keys() {
		if err := ctx.Err(); err != nil {
			return removal, err
		}
		if !match(digest) {
			continue
		}

		blob, ok := s.lru.Peek(digest)
		if !ok {
			continue
		}
		if s.lru.Remove(digest) {
			removal.Entries++
			removal.Bytes += int64(len(blob))
		}
	}

	return removal, nil
}

type LRUAdapter struct {
	store *LRUStore
}

func NewLRUAdapter(store *LRUStore) *LRUAdapter {
	return &LRUAdapter{store: store}
}

func (a *LRUAdapter) ID() types.BackendID {
	return types.BackendInMemoryLRU
}

func (a *LRUAdapter) Family() types.CacheFamily {
	return types.FamilyCAS
}

func (a *LRUAdapter) Flush(ctx context.Context, scope types.Scope) (backends.Removal, error) {
	switch scope.Kind {
	case types.ScopeAll:
		return a.store.removeMatching(ctx, func(string) bool { return true })
	case types.ScopeInstance:
		return backends.Removal{}, nil
	case types.ScopeDigestPrefix:
		return a.store.removeMatching(ctx, func(digest string) bool {
			return strings.HasPrefix(digest, scope.DigestPrefix)
		})
	default:
		return backends.Removal{}, types.Errorf(types.ErrInvalidParameter, "unknown flush scope: %s", scope.Kind)
	}
}
