package flush

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/saiset-co/sai-cache-admin/backends"
	"github.com/saiset-co/sai-cache-admin/logger"
	"github.com/saiset-co/sai-cache-admin/metrics"
	"github.com/saiset-co/sai-cache-admin/resolver"
	"github.com/saiset-co/sai-cache-admin/types"
)

type fakeAdapter struct {
	id      types.BackendID
	family  types.CacheFamily
	removal backends.Removal
	err     error
	panics  bool
	block   chan struct{}
	scopes  []types.Scope
	mu      sync.Mutex
}

func (f *fakeAdapter) ID() types.BackendID        { return f.id }
func (f *fakeAdapter) Family() types.CacheFamily { return f.family }

func (f *fakeAdapter) Flush(ctx context.Context, scope types.Scope) (backends.Removal, error) {
	f.mu.Lock()
	f.scopes = append(f.scopes, scope)
	f.mu.Unlock()

	if f.block != nil {
		<-f.block
	}
	if f.panics {
		panic("boom")
	}
	return f.removal, f.err
}

func newService(t *testing.T, config *types.FlushConfig, adapters ...backends.Adapter) (*Service, *metrics.FlushMetrics) {
	t.Helper()

	registry := backends.NewRegistry()
	for _, a := range adapters {
		require.NoError(t, registry.Register(a))
	}

	prom, err := metrics.NewPrometheusMetrics(logger.NewNop(), &types.MetricsConfig{Enabled: true, Path: "/metrics"})
	require.NoError(t, err)
	flushMetrics := metrics.NewFlushMetrics(prom)

	return NewService(logger.NewNop(), config, registry, flushMetrics), flushMetrics
}

func acRequest(t *testing.T, body types.ActionCacheFlushBody) *resolver.FlushRequest {
	t.Helper()
	req, err := resolver.FromActionCacheBody(body)
	require.NoError(t, err)
	return req
}

func casRequest(t *testing.T, body types.CASFlushBody) *resolver.FlushRequest {
	t.Helper()
	req, err := resolver.FromCASBody(body)
	require.NoError(t, err)
	return req
}

func TestFlushActionCacheMergesBackends(t *testing.T) {
	redisAdapter := &fakeAdapter{id: types.BackendRedis, family: types.FamilyActionCache, removal: backends.Removal{Entries: 30}}
	memAdapter := &fakeAdapter{id: types.BackendInMemory, family: types.FamilyActionCache, removal: backends.Removal{Entries: 12}}
	service, flushMetrics := newService(t, nil, redisAdapter, memAdapter)

	result, err := service.Flush(context.Background(), acRequest(t, types.ActionCacheFlushBody{
		Scope: "INSTANCE", InstanceName: "prod", FlushRedis: true, FlushInMemory: true,
	}), "alice")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Empty(t, result.Message)
	assert.Equal(t, int64(42), result.EntriesRemoved)
	assert.Equal(t, map[string]int64{"redis": 30, "in-memory": 12}, result.EntriesRemovedByBackend)
	assert.Nil(t, result.BytesReclaimed)
	assert.Nil(t, result.BytesReclaimedByBackend)

	assert.Equal(t, []types.Scope{types.InstanceScope("prod")}, redisAdapter.scopes)

	summary, err := flushMetrics.Summary()
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.Family(types.FamilyActionCache).OperationsSuccessValue())
	assert.Equal(t, int64(42), summary.Family(types.FamilyActionCache).EntriesRemovedValue())
}

func TestFlushOnlySelectedBackends(t *testing.T) {
	redisAdapter := &fakeAdapter{id: types.BackendRedis, family: types.FamilyActionCache}
	memAdapter := &fakeAdapter{id: types.BackendInMemory, family: types.FamilyActionCache, removal: backends.Removal{Entries: 5}}
	service, _ := newService(t, nil, redisAdapter, memAdapter)

	result, err := service.Flush(context.Background(), acRequest(t, types.ActionCacheFlushBody{Scope: "ALL", FlushInMemory: true}), "alice")
	require.NoError(t, err)

	assert.Empty(t, redisAdapter.scopes)
	assert.Equal(t, map[string]int64{"in-memory": 5}, result.EntriesRemovedByBackend)
}

func TestFlushCASPartialFailure(t *testing.T) {
	fs := &fakeAdapter{id: types.BackendFilesystem, family: types.FamilyCAS, err: errors.New("disk full")}
	lru := &fakeAdapter{id: types.BackendInMemoryLRU, family: types.FamilyCAS, removal: backends.Removal{Entries: 7, Bytes: 2048}}
	workers := &fakeAdapter{id: types.BackendRedisWorkerMap, family: types.FamilyCAS, panics: true}
	service, flushMetrics := newService(t, nil, fs, lru, workers)

	result, err := service.Flush(context.Background(), casRequest(t, types.CASFlushBody{
		Scope: "ALL", FlushFilesystem: true, FlushInMemoryLRU: true, FlushRedisWorkerMap: true,
	}), "bob")
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, "Error flushing CAS backend: filesystem: disk full, "+
		"Error flushing CAS backend: redis-worker-map: backend flush failed: panic: boom", result.Message)
	assert.Equal(t, int64(7), result.EntriesRemoved)
	require.NotNil(t, result.BytesReclaimed)
	assert.Equal(t, int64(2048), *result.BytesReclaimed)
	assert.Equal(t, map[string]int64{"filesystem": 0, "in-memory-lru": 2048, "redis-worker-map": 0}, result.BytesReclaimedByBackend)

	summary, err := flushMetrics.Summary()
	require.NoError(t, err)
	cas := summary.Family(types.FamilyCAS)
	assert.Equal(t, int64(1), cas.OperationsSuccessValue())
	assert.Equal(t, int64(2), cas.OperationsFailureValue())
	assert.Equal(t, int64(2048), cas.BytesReclaimedValue())
}

func TestFlushNoConfiguredBackends(t *testing.T) {
	service, _ := newService(t, nil)

	result, err := service.Flush(context.Background(), acRequest(t, types.ActionCacheFlushBody{Scope: "ALL", FlushRedis: true}), "alice")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "No Action Cache backends were flushed", result.Message)
	assert.Zero(t, result.EntriesRemoved)
}

func TestFlushNilRequest(t *testing.T) {
	service, _ := newService(t, nil)
	_, err := service.Flush(context.Background(), nil, "alice")
	assert.ErrorIs(t, err, types.ErrFlushRequestIsNil)
}

func TestFlushConcurrencyLimit(t *testing.T) {
	block := make(chan struct{})
	adapter := &fakeAdapter{id: types.BackendInMemory, family: types.FamilyActionCache, block: block}
	service, _ := newService(t, &types.FlushConfig{
		Enabled:                  true,
		MaxConcurrentActionCache: 1,
		MaxConcurrentCAS:         1,
		PermitTimeout:            20 * time.Millisecond,
	}, adapter)

	req := acRequest(t, types.ActionCacheFlushBody{Scope: "ALL", FlushInMemory: true})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = service.Flush(context.Background(), req, "first")
	}()

	require.Eventually(t, func() bool {
		return service.Permits().Active(types.FamilyActionCache) == 1
	}, time.Second, 5*time.Millisecond)

	_, err := service.Flush(context.Background(), req, "second")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrFlushPermitUnavailable)

	var limitErr *ConcurrencyLimitError
	require.True(t, errors.As(err, &limitErr))
	assert.Equal(t, int64(1), limitErr.Active)
	assert.Equal(t, int64(1), limitErr.Max)
	assert.Equal(t, "Concurrency limit reached for Action Cache flush operations", limitErr.Error())

	close(block)
	<-done
	assert.Zero(t, service.Permits().Active(types.FamilyActionCache))
}

func TestPermitsUnboundedWhenDisabled(t *testing.T) {
	permits := NewPermits(&types.FlushConfig{Enabled: false, MaxConcurrentCAS: 1})

	release1, err := permits.Acquire(context.Background(), types.FamilyCAS)
	require.NoError(t, err)
	release2, err := permits.Acquire(context.Background(), types.FamilyCAS)
	require.NoError(t, err)

	assert.Equal(t, int64(2), permits.Active(types.FamilyCAS))
	assert.Zero(t, permits.Limit(types.FamilyCAS))

	release1()
	release2()
	assert.Zero(t, permits.Active(types.FamilyCAS))
}

func TestPermitReleaseIsIdempotent(t *testing.T) {
	permits := NewPermits(&types.FlushConfig{Enabled: true, MaxConcurrentActionCache: 1, MaxConcurrentCAS: 1})

	release, err := permits.Acquire(context.Background(), types.FamilyActionCache)
	require.NoError(t, err)
	release()
	release()

	assert.Zero(t, permits.Active(types.FamilyActionCache))

	_, err = permits.Acquire(context.Background(), types.FamilyActionCache)
	require.NoError(t, err)
	_, err = permits.Acquire(context.Background(), types.FamilyActionCache)
	assert.ErrorIs(t, err, types.ErrFlushPermitUnavailable)
}

func TestAuditLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	audit := NewAuditLogger(logger.NewZapWrapper(zap.New(core)), true)

	req := casRequest(t, types.CASFlushBody{Scope: "DIGEST_PREFIX", DigestPrefix: "abc", FlushFilesystem: true})

	audit.LogFlush("op-1", "alice", req, &types.FlushResult{Success: true, EntriesRemoved: 2, BytesReclaimed: types.Int64(10)}, time.Millisecond)
	audit.LogFlush("op-2", "alice", req, &types.FlushResult{Success: false, Message: "disk full"}, time.Millisecond)

	entries := logs.All()
	require.Len(t, entries, 2)

	first := entries[0].ContextMap()
	assert.Equal(t, "CAS flush operation", entries[0].Message)
	assert.Equal(t, "op-1", first["operation_id"])
	assert.Equal(t, "alice", first["user"])
	assert.Equal(t, "DIGEST_PREFIX", first["scope"])
	assert.Equal(t, "abc", first["digest_prefix"])
	assert.Equal(t, "filesystem", first["backends"])
	assert.Equal(t, int64(10), first["bytes_reclaimed"])

	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.Equal(t, "disk full", entries[1].ContextMap()["message"])
}

func TestAuditLoggerDisabled(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	audit := NewAuditLogger(logger.NewZapWrapper(zap.New(core)), false)

	req := acRequest(t, types.ActionCacheFlushBody{Scope: "ALL", FlushRedis: true})
	audit.LogFlush("op", "alice", req, &types.FlushResult{Success: true}, 0)

	assert.Zero(t, logs.Len())
}
