package server

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/saiset-co/sai-cache-admin/client"
	"github.com/saiset-co/sai-cache-admin/flush"
	"github.com/saiset-co/sai-cache-admin/logger"
	"github.com/saiset-co/sai-cache-admin/resolver"
	"github.com/saiset-co/sai-cache-admin/types"
	"github.com/saiset-co/sai-cache-admin/utils"
)

type staticConfig struct {
	config *types.ServiceConfig
}

func (s *staticConfig) Load() error { return nil }
func (s *staticConfig) GetConfig() *types.ServiceConfig { return s.config }
func (s *staticConfig) GetValue(string, interface{}) interface{} { return nil }
func (s *staticConfig) GetAs(string, interface{}) error { return nil }

type fakeFlusher struct {
	mu     sync.Mutex
	result *types.FlushResult
	err    error
	last   *resolver.FlushRequest
	user   string
}

func (f *fakeFlusher) Flush(ctx context.Context, req *resolver.FlushRequest, user string) (*types.FlushResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = req
	f.user = user
	return f.result, f.err
}

type fakeSummary struct {
	snapshot *types.MetricsSnapshot
	err      error
}

func (f *fakeSummary) Summary() (*types.MetricsSnapshot, error) {
	return f.snapshot, f.err
}

func newTestServer(t *testing.T, flusher Flusher, summary SummaryProvider) *FastHTTPServer {
	t.Helper()
	router := NewRouter()
	NewHandlers(logger.NewNop(), flusher, summary).RegisterRoutes(router)

	cfg := &staticConfig{config: &types.ServiceConfig{
		Server: &types.ServerConfig{HTTP: &types.HTTPConfig{Host: "127.0.0.1", Port: 0}},
	}}
	srv, err := NewHTTPServer(context.Background(), cfg, logger.NewNop(), nil, router)
	require.NoError(t, err)
	return srv
}

func serve(srv *FastHTTPServer, method, path, body string) *fasthttp.RequestCtx {
	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	ctx.Request.Header.Set("X-User-ID", "alice")
	if body != "" {
		ctx.Request.SetBodyString(body)
	}
	srv.Handler()(&ctx)
	return &ctx
}

func errorBody(t *testing.T, ctx *fasthttp.RequestCtx) types.ErrorResponse {
	t.Helper()
	var body types.ErrorResponse
	require.NoError(t, utils.Unmarshal(ctx.Response.Body(), &body))
	return body
}

func TestActionCacheFlushSuccess(t *testing.T) {
	flusher := &fakeFlusher{result: &types.FlushResult{
		Success:                 true,
		EntriesRemoved:          3,
		EntriesRemovedByBackend: map[string]int64{"redis": 3},
	}}
	srv := newTestServer(t, flusher, &fakeSummary{})

	ctx := serve(srv, "POST", client.ActionCacheFlushPath, `{"scope":"INSTANCE","instanceName":"main","flushRedis":true,"flushInMemory":false}`)

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	require.NotNil(t, flusher.last)
	assert.Equal(t, "alice", flusher.user)
	assert.Equal(t, types.FamilyActionCache, flusher.last.Family())
	assert.Equal(t, types.InstanceScope("main"), flusher.last.Scope())

	result, err := client.ParseFlushResult(ctx.Response.Body())
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.EntriesRemoved)
}

func TestCASFlushFailureResultIs500(t *testing.T) {
	flusher := &fakeFlusher{result: &types.FlushResult{
		Success:        false,
		Message:        "Error flushing CAS backend: filesystem: permission denied",
		BytesReclaimed: types.Int64(0),
	}}
	srv := newTestServer(t, flusher, &fakeSummary{})

	ctx := serve(srv, "POST", client.CASFlushPath, `{"scope":"ALL","flushFilesystem":true}`)

	assert.Equal(t, fasthttp.StatusInternalServerError, ctx.Response.StatusCode())
	result, err := client.ParseFlushResult(ctx.Response.Body())
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "Error flushing CAS backend: filesystem: permission denied", result.Message)
}

func TestFlushValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		body    string
		message string
	}{
		{"empty body", client.ActionCacheFlushPath, "", "Request cannot be null"},
		{"malformed", client.ActionCacheFlushPath, `{"scope":`, "Malformed request body"},
		{"missing scope", client.ActionCacheFlushPath, `{"flushRedis":true}`, "Scope must be specified"},
		{"missing instance", client.ActionCacheFlushPath, `{"scope":"INSTANCE","flushRedis":true}`, "Instance name must be specified when scope is INSTANCE"},
		{"missing prefix", client.CASFlushPath, `{"scope":"DIGEST_PREFIX","flushFilesystem":true}`, "Digest prefix must be specified when scope is DIGEST_PREFIX"},
		{"no backends", client.CASFlushPath, `{"scope":"ALL"}`, "At least one backend must be selected for flushing"},
		{"non-hex prefix", client.CASFlushPath, `{"scope":"DIGEST_PREFIX","digestPrefix":"xyz","flushFilesystem":true}`, "invalid digestPrefix: failed digest_prefix check"},
		{"0x prefix", client.CASFlushPath, `{"scope":"DIGEST_PREFIX","digestPrefix":"0xab","flushFilesystem":true}`, "invalid digestPrefix: failed digest_prefix check"},
		{"blank prefix", client.CASFlushPath, `{"scope":"DIGEST_PREFIX","digestPrefix":"  ","flushFilesystem":true}`, "Digest prefix must be specified when scope is DIGEST_PREFIX"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flusher := &fakeFlusher{}
			srv := newTestServer(t, flusher, &fakeSummary{})

			ctx := serve(srv, "POST", tt.path, tt.body)

			assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
			body := errorBody(t, ctx)
			assert.Equal(t, types.ErrorCodeInvalidArgument, body.ErrorCode)
			assert.Equal(t, tt.message, body.Message)
			assert.Nil(t, flusher.last)
		})
	}
}

func TestFlushTrimsDigestPrefix(t *testing.T) {
	flusher := &fakeFlusher{result: &types.FlushResult{Success: true}}
	srv := newTestServer(t, flusher, &fakeSummary{})

	ctx := serve(srv, "POST", client.CASFlushPath, `{"scope":"DIGEST_PREFIX","digestPrefix":" ab12 ","flushFilesystem":true}`)

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	require.NotNil(t, flusher.last)
	assert.Equal(t, types.DigestPrefixScope("ab12"), flusher.last.Scope())
}

func TestFlushConcurrencyLimitIs503(t *testing.T) {
	flusher := &fakeFlusher{err: &flush.ConcurrencyLimitError{Family: types.FamilyCAS, Active: 2, Max: 2}}
	srv := newTestServer(t, flusher, &fakeSummary{})

	ctx := serve(srv, "POST", client.CASFlushPath, `{"scope":"ALL","flushInMemoryLRU":true}`)

	assert.Equal(t, fasthttp.StatusServiceUnavailable, ctx.Response.StatusCode())
	var body ConcurrencyLimitExceeded
	require.NoError(t, utils.Unmarshal(ctx.Response.Body(), &body))
	assert.Equal(t, types.ErrorCodeConcurrencyExceeded, body.ErrorCode)
	assert.Equal(t, "Concurrency limit reached for CAS flush operations", body.Message)
	assert.Equal(t, int64(2), body.ActiveOperations)
	assert.Equal(t, int64(2), body.MaxConcurrentOperations)
}

func TestFlushUnexpectedErrorIs500(t *testing.T) {
	srv := newTestServer(t, &fakeFlusher{err: errors.New("registry closed")}, &fakeSummary{})

	ctx := serve(srv, "POST", client.ActionCacheFlushPath, `{"scope":"ALL","flushInMemory":true}`)

	assert.Equal(t, fasthttp.StatusInternalServerError, ctx.Response.StatusCode())
	body := errorBody(t, ctx)
	assert.Equal(t, types.ErrorCodeInternal, body.ErrorCode)
	assert.Equal(t, "Error flushing Action Cache: registry closed", body.Message)
}

func TestMetricsSummary(t *testing.T) {
	snapshot := &types.MetricsSnapshot{CacheTypes: map[types.CacheFamily]types.FamilyCounters{
		types.FamilyActionCache: {OperationsSuccess: types.Int64(4), OperationsFailure: types.Int64(1), EntriesRemoved: types.Int64(40)},
		types.FamilyCAS:         {OperationsSuccess: types.Int64(0), OperationsFailure: types.Int64(0), EntriesRemoved: types.Int64(0), BytesReclaimed: types.Int64(0)},
	}}
	srv := newTestServer(t, &fakeFlusher{}, &fakeSummary{snapshot: snapshot})

	ctx := serve(srv, "GET", client.MetricsPath, "")

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	parsed, err := client.ParseMetricsSnapshot(ctx.Response.Body())
	require.NoError(t, err)
	assert.Equal(t, int64(40), parsed.Family(types.FamilyActionCache).EntriesRemovedValue())
}

func TestUnknownRouteAndMethod(t *testing.T) {
	srv := newTestServer(t, &fakeFlusher{}, &fakeSummary{})

	ctx := serve(srv, "GET", "/nope", "")
	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
	assert.Equal(t, types.ErrorCodeNotFound, errorBody(t, ctx).ErrorCode)

	ctx = serve(srv, "GET", client.ActionCacheFlushPath, "")
	assert.Equal(t, fasthttp.StatusMethodNotAllowed, ctx.Response.StatusCode())
}

func TestRouterNormalizesPaths(t *testing.T) {
	router := NewRouter()
	router.GET("metrics/", func(*fasthttp.RequestCtx) {}, nil)

	info, ok := router.Lookup("GET", "/metrics")
	require.True(t, ok)
	assert.Equal(t, "/metrics", info.Path)
	assert.NotNil(t, info.Config)
	assert.Len(t, router.GetAllRoutes(), 1)
}

func TestServerRoundTripWithAdminClient(t *testing.T) {
	flusher := &fakeFlusher{result: &types.FlushResult{
		Success:                 true,
		EntriesRemoved:          5,
		EntriesRemovedByBackend: map[string]int64{"in-memory-lru": 5},
		BytesReclaimed:          types.Int64(2048),
		BytesReclaimedByBackend: map[string]int64{"in-memory-lru": 2048},
	}}
	srv := newTestServer(t, flusher, &fakeSummary{})
	require.NoError(t, srv.Start())
	defer func() { require.NoError(t, srv.Stop()) }()

	admin, err := client.NewAdminClient(logger.NewNop(), &types.AdminClientConfig{
		BaseURL: "http://" + srv.Addr(),
		Headers: map[string]string{"X-User-ID": "bob"},
	})
	require.NoError(t, err)

	req, err := resolver.FromCASBody(types.CASFlushBody{Scope: "DIGEST_PREFIX", DigestPrefix: "ab12", FlushInMemoryLRU: true})
	require.NoError(t, err)

	result, err := admin.Flush(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(2048), *result.BytesReclaimed)
	assert.Equal(t, "bob", flusher.user)
	assert.Equal(t, types.DigestPrefixScope("ab12"), flusher.last.Scope())
}
