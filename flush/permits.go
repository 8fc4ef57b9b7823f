package flush

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/saiset-co/sai-cache-admin/types"
)

// ConcurrencyLimitError is returned when no flush permit for a family
// became free in time.
type ConcurrencyLimitError struct {
	Family types.CacheFamily
	Active int64
	Max    int64
}

func (e *ConcurrencyLimitError) Error() string {
	return fmt.Sprintf("Concurrency limit reached for %s flush operations", e.Family.DisplayName())
}

func (e *ConcurrencyLimitError) Unwrap() error {
	return types.ErrFlushPermitUnavailable
}

// Permits caps concurrent flushes per cache family. A family with no
// positive limit, or a disabled config, is never blocked but is still
// counted.
type Permits struct {
	timeout time.Duration
	sems    map[types.CacheFamily]*semaphore.Weighted
	limits  map[types.CacheFamily]int64
	active  map[types.CacheFamily]*atomic.Int64
}

func NewPermits(config *types.FlushConfig) *Permits {
	p := &Permits{
		sems:   make(map[types.CacheFamily]*semaphore.Weighted),
		limits: make(map[types.CacheFamily]int64),
		active: map[types.CacheFamily]*atomic.Int64{
			types.FamilyActionCache: {},
			types.FamilyCAS:         {},
		},
	}

	if config == nil || !config.Enabled {
		return p
	}

	p.timeout = config.PermitTimeout
	for family, limit := range map[types.CacheFamily]int64{
		types.FamilyActionCache: config.MaxConcurrentActionCache,
		types.FamilyCAS:         config.MaxConcurrentCAS,
	} {
		if limit > 0 {
			p.sems[family] = semaphore.NewWeighted(limit)
			p.limits[family] = limit
		}
	}

	return p
}

// Acquire waits up to the configured timeout for a permit. The returned
// release must be called exactly once.
func (p *Permits) Acquire(ctx context.Context, family types.CacheFamily) (func(), error) {
	active, ok := p.active[family]
	if !ok {
		return nil, types.NewInvalidEnum("cacheFamily", string(family))
	}

	sem := p.sems[family]
	if sem == nil {
		active.Add(1)
		return func() { active.Add(-1) }, nil
	}

	if !p.tryAcquire(ctx, sem) {
		return nil, &ConcurrencyLimitError{Family: family, Active: active.Load(), Max: p.limits[family]}
	}

	active.Add(1)
	var released atomic.Bool
	return func() {
		if released.CompareAndSwap(false, true) {
			active.Add(-1)
			sem.Release(1)
		}
	}, nil
}

func (p *Permits) tryAcquire(ctx context.Context, sem *semaphore.Weighted) bool {
	if p.timeout <= 0 {
		return sem.TryAcquire(1)
	}

	acquireCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	return sem.Acquire(acquireCtx, 1) == nil
}

func (p *Permits) Active(family types.CacheFamily) int64 {
	if active, ok := p.active[family]; ok {
		return active.Load()
	}
	return 0
}

// Limit is zero when the family is unbounded.
func (p *Permits) Limit(family types.CacheFamily) int64 {
	return p.limits[family]
}
