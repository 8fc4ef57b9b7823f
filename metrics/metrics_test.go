package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/saiset-co/sai-cache-admin/logger"
	"github.com/saiset-co/sai-cache-admin/types"
)

func newTestMetrics(t *testing.T) *PrometheusMetrics {
	t.Helper()
	m, err := NewPrometheusMetrics(logger.NewNop(), &types.MetricsConfig{Enabled: true, Path: "/metrics"})
	require.NoError(t, err)
	return m
}

func TestCounterGaugeHistogram(t *testing.T) {
	m := newTestMetrics(t)

	c := m.Counter("things_total", map[string]string{"kind": "a"})
	c.Inc()
	c.Add(2)
	assert.Equal(t, float64(3), c.Get())
	assert.Equal(t, float64(3), m.Counter("things_total", map[string]string{"kind": "a"}).Get())
	assert.Equal(t, float64(0), m.Counter("things_total", map[string]string{"kind": "b"}).Get())

	g := m.Gauge("level", nil)
	g.Set(10)
	g.Dec()
	g.Sub(4)
	assert.Equal(t, float64(5), g.Get())

	h := m.Histogram("latency_seconds", []float64{1, 2}, nil)
	h.Observe(0.5)
	h.Observe(1.5)
	assert.Equal(t, uint64(2), h.GetCount())
	assert.Equal(t, 2.0, h.GetSum())
}

func TestLifecycle(t *testing.T) {
	m := newTestMetrics(t)

	require.NoError(t, m.Start())
	assert.True(t, m.IsRunning())
	assert.ErrorIs(t, m.Start(), types.ErrServiceIsRunning)

	require.NoError(t, m.Stop())
	assert.False(t, m.IsRunning())
	assert.ErrorIs(t, m.Stop(), types.ErrServiceIsNotRunning)
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := newTestMetrics(t)
	m.Counter("served_total", nil).Inc()

	ctx := &fasthttp.RequestCtx{}
	ctx.Request.SetRequestURI("/metrics")
	ctx.Request.Header.SetMethod(fasthttp.MethodGet)

	m.Handler()(ctx)

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.True(t, strings.Contains(string(ctx.Response.Body()), "sai_cache_admin_served_total 1"))
}

func TestSummaryEmpty(t *testing.T) {
	flush := NewFlushMetrics(newTestMetrics(t))

	summary, err := flush.Summary()
	require.NoError(t, err)

	ac := summary.Family(types.FamilyActionCache)
	require.NotNil(t, ac.OperationsSuccess)
	assert.Zero(t, ac.OperationsSuccessValue())
	assert.Nil(t, ac.BytesReclaimed)

	cas := summary.Family(types.FamilyCAS)
	require.NotNil(t, cas.BytesReclaimed)
	assert.Zero(t, cas.BytesReclaimedValue())
}

func TestSummarySumsAcrossBackendsAndScopes(t *testing.T) {
	flush := NewFlushMetrics(newTestMetrics(t))

	flush.RecordOutcome(types.FamilyActionCache, types.ScopeAll, types.BackendOutcome{Backend: types.BackendRedis, EntriesRemoved: 30})
	flush.RecordOutcome(types.FamilyActionCache, types.ScopeInstance, types.BackendOutcome{Backend: types.BackendInMemory, EntriesRemoved: 12})
	flush.RecordOutcome(types.FamilyActionCache, types.ScopeAll, types.BackendOutcome{Backend: types.BackendRedis, Err: errors.New("down")})
	flush.RecordOutcome(types.FamilyCAS, types.ScopeDigestPrefix, types.BackendOutcome{Backend: types.BackendFilesystem, EntriesRemoved: 2, BytesReclaimed: 1024})
	flush.RecordOutcome(types.FamilyCAS, types.ScopeAll, types.BackendOutcome{Backend: types.BackendInMemoryLRU, EntriesRemoved: 1, BytesReclaimed: 512})
	flush.ObserveDuration(types.FamilyCAS, time.Now())

	summary, err := flush.Summary()
	require.NoError(t, err)

	ac := summary.Family(types.FamilyActionCache)
	assert.Equal(t, int64(2), ac.OperationsSuccessValue())
	assert.Equal(t, int64(1), ac.OperationsFailureValue())
	assert.Equal(t, int64(42), ac.EntriesRemovedValue())

	cas := summary.Family(types.FamilyCAS)
	assert.Equal(t, int64(2), cas.OperationsSuccessValue())
	assert.Equal(t, int64(0), cas.OperationsFailureValue())
	assert.Equal(t, int64(3), cas.EntriesRemovedValue())
	assert.Equal(t, int64(1536), cas.BytesReclaimedValue())
}
