package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saiset-co/sai-cache-admin/logger"
	"github.com/saiset-co/sai-cache-admin/resolver"
	"github.com/saiset-co/sai-cache-admin/types"
	"github.com/saiset-co/sai-cache-admin/utils"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, breaker *types.CircuitBreakerConfig) *AdminClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := NewAdminClient(logger.NewNop(), &types.AdminClientConfig{
		BaseURL:        server.URL + "/",
		Timeout:        2 * time.Second,
		Headers:        map[string]string{"X-User-ID": "alice"},
		CircuitBreaker: breaker,
	})
	require.NoError(t, err)
	return c
}

func actionRequest(t *testing.T) *resolver.FlushRequest {
	t.Helper()
	req, err := resolver.FromActionCacheBody(types.ActionCacheFlushBody{
		Scope:         "INSTANCE",
		InstanceName:  "prod",
		FlushInMemory: true,
	})
	require.NoError(t, err)
	return req
}

func TestFlushSendsBodyAndDecodesResult(t *testing.T) {
	var received map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, ActionCacheFlushPath, r.URL.Path)
		assert.Equal(t, "alice", r.Header.Get("X-User-ID"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		data, _ := io.ReadAll(r.Body)
		_ = utils.Unmarshal(data, &received)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"entriesRemoved":42,"entriesRemovedByBackend":{"in-memory":42}}`))
	}, nil)

	result, err := c.Flush(context.Background(), actionRequest(t))
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, int64(42), result.EntriesRemoved)
	assert.Equal(t, map[string]int64{"in-memory": 42}, result.EntriesRemovedByBackend)
	assert.Nil(t, result.BytesReclaimed)

	assert.Equal(t, "INSTANCE", received["scope"])
	assert.Equal(t, "prod", received["instanceName"])
	assert.Equal(t, true, received["flushInMemory"])
	assert.Equal(t, false, received["flushRedis"])
}

func TestFlushCASUsesCASEndpoint(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, CASFlushPath, r.URL.Path)
		_, _ = w.Write([]byte(`{"success":true,"entriesRemoved":3,"bytesReclaimed":1536}`))
	}, nil)

	req, err := resolver.FromCASBody(types.CASFlushBody{Scope: "ALL", FlushFilesystem: true})
	require.NoError(t, err)

	result, err := c.Flush(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result.BytesReclaimed)
	assert.Equal(t, int64(1536), *result.BytesReclaimed)
}

func TestFlushNonSuccessStatusCarriesMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"errorCode":"RATE_LIMIT_EXCEEDED","message":"Rate limit exceeded"}`))
	}, nil)

	_, err := c.Flush(context.Background(), actionRequest(t))
	require.Error(t, err)

	var te *types.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusTooManyRequests, te.StatusCode)
	assert.Equal(t, "Rate limit exceeded", te.DisplayMessage())
}

func TestFlushFailedResultStatusUsesResultMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"message":"redis: connection refused","entriesRemoved":4}`))
	}, nil)

	result, err := c.Flush(context.Background(), actionRequest(t))
	assert.Nil(t, result)

	var te *types.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusInternalServerError, te.StatusCode)
	assert.Equal(t, "redis: connection refused", te.DisplayMessage())
}

func TestFlushNonSuccessStatusWithoutBodyFallsBack(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}, nil)

	_, err := c.Flush(context.Background(), actionRequest(t))

	var te *types.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, types.FallbackErrorMessage, te.DisplayMessage())
}

func TestFlushMalformedBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>oops</html>`},
		{"missing success", `{"entriesRemoved":1}`},
		{"missing entries", `{"success":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}, nil)

			_, err := c.Flush(context.Background(), actionRequest(t))

			var te *types.TransportError
			require.True(t, errors.As(err, &te))
			assert.True(t, errors.Is(err, types.ErrClientResponseInvalid))
			assert.NotEmpty(t, te.DisplayMessage())
		})
	}
}

func TestFlushUnreachableServer(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c, err := NewAdminClient(logger.NewNop(), &types.AdminClientConfig{BaseURL: url, Timeout: time.Second})
	require.NoError(t, err)

	_, err = c.Flush(context.Background(), actionRequest(t))

	var te *types.TransportError
	require.True(t, errors.As(err, &te))
	assert.Zero(t, te.StatusCode)
	assert.NotEmpty(t, te.DisplayMessage())
}

func TestFlushNilRequest(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {}, nil)
	_, err := c.Flush(context.Background(), nil)
	assert.ErrorIs(t, err, types.ErrFlushRequestIsNil)
}

func TestFetchMetrics(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, MetricsPath, r.URL.Path)
		_, _ = w.Write([]byte(`{"cache_types":{"action-cache":{"operations_success":4,"entries_removed":120},"cas":{"operations_failure":1,"bytes_reclaimed":2048}}}`))
	}, nil)

	snapshot, err := c.FetchMetrics(context.Background())
	require.NoError(t, err)

	ac := snapshot.Family(types.FamilyActionCache)
	assert.Equal(t, int64(4), ac.OperationsSuccessValue())
	assert.Equal(t, int64(120), ac.EntriesRemovedValue())
	assert.Nil(t, ac.OperationsFailure)

	cas := snapshot.Family(types.FamilyCAS)
	assert.Equal(t, int64(1), cas.OperationsFailureValue())
	assert.Equal(t, int64(2048), cas.BytesReclaimedValue())
}

func TestFetchMetricsMissingCacheTypes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}, nil)

	_, err := c.FetchMetrics(context.Background())
	assert.ErrorIs(t, err, types.ErrClientResponseInvalid)
}

func TestFetchMetricsBreakerOpens(t *testing.T) {
	var hits int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}, &types.CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 2,
		RecoveryTimeout:  time.Minute,
		HalfOpenRequests: 1,
	})

	for i := 0; i < 2; i++ {
		_, err := c.FetchMetrics(context.Background())
		require.Error(t, err)
	}

	_, err := c.FetchMetrics(context.Background())
	assert.ErrorIs(t, err, types.ErrCircuitBreakerOpen)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	assert.Equal(t, "open", c.breaker.state().String())
}

func TestNewAdminClientRequiresBaseURL(t *testing.T) {
	_, err := NewAdminClient(logger.NewNop(), &types.AdminClientConfig{})
	assert.ErrorIs(t, err, types.ErrInvalidParameter)
}
