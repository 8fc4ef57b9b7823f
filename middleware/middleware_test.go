package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/saiset-co/sai-cache-admin/logger"
	"github.com/saiset-co/sai-cache-admin/metrics"
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

func middlewaresConfig(rateLimitParams map[string]interface{}) *staticConfig {
	return &staticConfig{config: &types.ServiceConfig{
		Middlewares: &types.MiddlewaresConfig{
			Enabled:   true,
			Recovery:  &types.MiddlewareItemConfig{Enabled: true, Weight: 10},
			Logging:   &types.MiddlewareItemConfig{Enabled: true, Weight: 20},
			RateLimit: &types.MiddlewareItemConfig{Enabled: true, Weight: 30, Params: rateLimitParams},
		},
	}}
}

func newManager(t *testing.T, cfg *staticConfig) *Manager {
	t.Helper()
	prom, err := metrics.NewPrometheusMetrics(logger.NewNop(), &types.MetricsConfig{})
	require.NoError(t, err)

	m := NewManager(context.Background(), cfg, logger.NewNop(), prom)
	require.NoError(t, m.RegisterMiddlewares())
	return m
}

func flushRoute() *types.RouteConfig {
	return &types.RouteConfig{Operation: "action-cache-flush"}
}

func TestManagerOrdersByWeight(t *testing.T) {
	m := newManager(t, middlewaresConfig(nil))
	assert.Equal(t, []string{"recovery", "logging", "rate-limit"}, m.Names())
}

func TestManagerRejectsDuplicateWeights(t *testing.T) {
	cfg := middlewaresConfig(nil)
	cfg.config.Middlewares.Logging.Weight = 10

	m := NewManager(context.Background(), cfg, logger.NewNop(), nil)
	assert.Error(t, m.RegisterMiddlewares())
}

func TestManagerDisabledMiddlewaresRunsHandlerOnly(t *testing.T) {
	m := NewManager(context.Background(), &staticConfig{config: &types.ServiceConfig{}}, logger.NewNop(), nil)
	require.NoError(t, m.RegisterMiddlewares())
	assert.Empty(t, m.Names())

	var ctx fasthttp.RequestCtx
	called := false
	m.Execute(&ctx, func(*fasthttp.RequestCtx) { called = true }, nil)
	assert.True(t, called)
}

func TestRecoveryTurnsPanicInto500(t *testing.T) {
	m := newManager(t, middlewaresConfig(nil))

	var ctx fasthttp.RequestCtx
	m.Execute(&ctx, func(*fasthttp.RequestCtx) { panic("boom") }, nil)

	assert.Equal(t, fasthttp.StatusInternalServerError, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), types.ErrorCodeInternal)
}

func TestRouteCanDisableMiddleware(t *testing.T) {
	m := newManager(t, middlewaresConfig(map[string]interface{}{"max_operations_per_window": 1}))
	route := &types.RouteConfig{Operation: "cas-flush", DisabledMiddlewares: []string{"rate-limit"}}

	for i := 0; i < 3; i++ {
		var ctx fasthttp.RequestCtx
		m.Execute(&ctx, func(ctx *fasthttp.RequestCtx) { ctx.SetStatusCode(fasthttp.StatusOK) }, route)
		assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	}
}

func TestRateLimitPerUserAndOperation(t *testing.T) {
	rl := newRateLimitMiddleware(&RateLimitConfig{MaxOperationsPerWindow: 2, WindowSizeMs: 60000}, 30, logger.NewNop(), nil)

	allowed, _, _ := rl.Allow("alice", "action-cache-flush")
	assert.True(t, allowed)
	allowed, _, _ = rl.Allow("alice", "action-cache-flush")
	assert.True(t, allowed)

	allowed, performed, remaining := rl.Allow("alice", "action-cache-flush")
	assert.False(t, allowed)
	assert.Equal(t, 2, performed)
	assert.True(t, remaining > 0 && remaining <= time.Minute)

	allowed, _, _ = rl.Allow("alice", "cas-flush")
	assert.True(t, allowed)
	allowed, _, _ = rl.Allow("bob", "action-cache-flush")
	assert.True(t, allowed)
}

func TestRateLimitWindowResets(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := newRateLimitMiddleware(&RateLimitConfig{MaxOperationsPerWindow: 1, WindowSizeMs: 1000}, 30, logger.NewNop(), nil)
	rl.now = func() time.Time { return now }

	allowed, _, _ := rl.Allow("alice", "cas-flush")
	assert.True(t, allowed)
	allowed, _, remaining := rl.Allow("alice", "cas-flush")
	assert.False(t, allowed)
	assert.Equal(t, time.Second, remaining)

	now = now.Add(1500 * time.Millisecond)
	allowed, _, _ = rl.Allow("alice", "cas-flush")
	assert.True(t, allowed)
}

func TestRateLimitResponseBody(t *testing.T) {
	m := newManager(t, middlewaresConfig(map[string]interface{}{"max_operations_per_window": 1, "window_size_ms": 60000}))
	handler := func(ctx *fasthttp.RequestCtx) { ctx.SetStatusCode(fasthttp.StatusOK) }

	var first fasthttp.RequestCtx
	first.Request.Header.Set(UserHeader, "alice")
	m.Execute(&first, handler, flushRoute())
	require.Equal(t, fasthttp.StatusOK, first.Response.StatusCode())

	var second fasthttp.RequestCtx
	second.Request.Header.Set(UserHeader, "alice")
	m.Execute(&second, handler, flushRoute())
	require.Equal(t, fasthttp.StatusTooManyRequests, second.Response.StatusCode())

	var body RateLimitExceeded
	require.NoError(t, utils.Unmarshal(second.Response.Body(), &body))
	assert.Equal(t, types.ErrorCodeRateLimitExceeded, body.ErrorCode)
	assert.Equal(t, 1, body.OperationsPerformed)
	assert.Equal(t, 1, body.MaxOperationsAllowed)
	assert.Equal(t, int64(60000), body.WindowSizeMs)
	assert.Greater(t, body.TimeRemainingMs, int64(0))

	var other fasthttp.RequestCtx
	other.Request.Header.Set(UserHeader, "bob")
	m.Execute(&other, handler, flushRoute())
	assert.Equal(t, fasthttp.StatusOK, other.Response.StatusCode())
}

func TestRateLimitIgnoresRoutesWithoutOperation(t *testing.T) {
	rl := newRateLimitMiddleware(&RateLimitConfig{MaxOperationsPerWindow: 1}, 30, logger.NewNop(), nil)

	for i := 0; i < 3; i++ {
		var ctx fasthttp.RequestCtx
		called := false
		rl.Handle(&ctx, func(*fasthttp.RequestCtx) { called = true }, &types.RouteConfig{})
		assert.True(t, called)
	}
}

func TestSpikeArrestRejectsBurst(t *testing.T) {
	rl := newRateLimitMiddleware(&RateLimitConfig{MaxOperationsPerWindow: 100, SpikeArrestRPS: 0.001, SpikeArrestBurst: 1}, 30, logger.NewNop(), nil)
	handler := func(ctx *fasthttp.RequestCtx) { ctx.SetStatusCode(fasthttp.StatusOK) }

	var first, second fasthttp.RequestCtx
	rl.Handle(&first, handler, flushRoute())
	rl.Handle(&second, handler, flushRoute())

	assert.Equal(t, fasthttp.StatusOK, first.Response.StatusCode())
	assert.Equal(t, fasthttp.StatusTooManyRequests, second.Response.StatusCode())
}

func TestUserIdentityFallback(t *testing.T) {
	var ctx fasthttp.RequestCtx
	assert.Equal(t, UnknownUser, UserIdentity(&ctx))
	ctx.Request.Header.Set(UserHeader, "carol")
	assert.Equal(t, "carol", UserIdentity(&ctx))
}
