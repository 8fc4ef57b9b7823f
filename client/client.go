package client

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-cache-admin/resolver"
	"github.com/saiset-co/sai-cache-admin/types"
	"github.com/saiset-co/sai-cache-admin/utils"
)

const (
	ActionCacheFlushPath = "/admin/v1/cache/action/flush"
	CASFlushPath         = "/admin/v1/cache/cas/flush"
	MetricsPath          = "/admin/v1/cache/metrics"
)

// AdminClient talks to the cache admin API. Flushes are never retried;
// metrics fetches go through a circuit breaker when one is configured.
type AdminClient struct {
	logger  types.Logger
	client  *fasthttp.Client
	baseURL string
	timeout time.Duration
	headers map[string]string
	breaker *metricsBreaker
}

func NewAdminClient(logger types.Logger, config *types.AdminClientConfig) (*AdminClient, error) {
	if config == nil || config.BaseURL == "" {
		return nil, types.Errorf(types.ErrInvalidParameter, "admin client base url is required")
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	httpClient := &fasthttp.Client{
		Name:                "sai-cache-admin",
		ReadTimeout:         timeout,
		WriteTimeout:        timeout,
		MaxIdleConnDuration: config.IdleConnTimeout,
	}
	if config.MaxIdleConnections > 0 {
		httpClient.MaxConnsPerHost = config.MaxIdleConnections
	}

	return &AdminClient{
		logger:  logger,
		client:  httpClient,
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		timeout: timeout,
		headers: config.Headers,
		breaker: newMetricsBreaker(config.CircuitBreaker, logger),
	}, nil
}

// Flush sends the request to its family's flush endpoint.
func (c *AdminClient) Flush(ctx context.Context, req *resolver.FlushRequest) (*types.FlushResult, error) {
	if req == nil {
		return nil, types.ErrFlushRequestIsNil
	}

	path := ActionCacheFlushPath
	if req.Family() == types.FamilyCAS {
		path = CASFlushPath
	}

	status, body, err := c.do(ctx, fasthttp.MethodPost, path, req.Body())
	if err != nil {
		return nil, err
	}

	result, err := ParseFlushResult(body)
	if err != nil {
		return nil, &types.TransportError{StatusCode: status, Message: "Malformed flush result from admin API", Err: err}
	}

	return result, nil
}

// FetchMetrics retrieves the process-wide flush counters.
func (c *AdminClient) FetchMetrics(ctx context.Context) (*types.MetricsSnapshot, error) {
	fetch := func() (*types.MetricsSnapshot, error) {
		status, body, err := c.do(ctx, fasthttp.MethodGet, MetricsPath, nil)
		if err != nil {
			return nil, err
		}

		snapshot, err := ParseMetricsSnapshot(body)
		if err != nil {
			return nil, &types.TransportError{StatusCode: status, Message: "Malformed metrics from admin API", Err: err}
		}
		return snapshot, nil
	}

	if c.breaker == nil {
		return fetch()
	}
	return c.breaker.execute(fetch)
}

func (c *AdminClient) do(ctx context.Context, method, path string, payload interface{}) (int, []byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, &types.TransportError{Err: types.WrapError(err, "request not sent")}
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	if payload != nil {
		data, err := utils.Marshal(payload)
		if err != nil {
			return 0, nil, types.WrapError(err, "failed to marshal request body")
		}
		req.Header.SetContentType("application/json")
		req.SetBody(data)
	}

	deadline := time.Now().Add(c.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	start := time.Now()
	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		c.logger.Warn("Admin API request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))

		if err == fasthttp.ErrTimeout {
			err = types.WrapError(types.ErrClientTimeout, err.Error())
		}
		return 0, nil, &types.TransportError{Err: err}
	}

	status := resp.StatusCode()
	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())

	c.logger.Debug("Admin API request completed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", status),
		zap.Duration("duration", time.Since(start)))

	if status < 200 || status >= 300 {
		return status, body, &types.TransportError{
			StatusCode: status,
			Message:    errorMessage(body),
			Err:        types.Errorf(types.ErrClientRequestFailed, "HTTP %d", status),
		}
	}

	return status, body, nil
}

// errorMessage extracts the message field of an error body, if any.
func errorMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var payload struct {
		Message string `json:"message"`
	}
	if err := utils.Unmarshal(body, &payload); err != nil {
		return ""
	}

	return strings.TrimSpace(payload.Message)
}
