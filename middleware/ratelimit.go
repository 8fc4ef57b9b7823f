package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/saiset-co/sai-cache-admin/types"
	"github.com/saiset-co/sai-cache-admin/utils"
)

const (
	UserHeader          = "X-User-ID"
	UnknownUser         = "unknown"
	RateLimitedMetric   = "rate_limited_total"
	defaultMaxClients   = 10000
	defaultMaxOps       = 10
	defaultWindowSizeMs = 60000
)

// RateLimitExceeded is the 429 body returned to a throttled caller.
type RateLimitExceeded struct {
	ErrorCode            string `json:"errorCode"`
	Message              string `json:"message"`
	OperationsPerformed  int    `json:"operationsPerformed"`
	MaxOperationsAllowed int    `json:"maxOperationsAllowed"`
	WindowSizeMs         int64  `json:"windowSizeMs"`
	TimeRemainingMs      int64  `json:"timeRemainingMs"`
}

type RateLimitConfig struct {
	MaxOperationsPerWindow int     `json:"max_operations_per_window"`
	WindowSizeMs           int64   `json:"window_size_ms"`
	MaxTrackedClients      int     `json:"max_tracked_clients"`
	SpikeArrestRPS         float64 `json:"spike_arrest_rps"`
	SpikeArrestBurst       int     `json:"spike_arrest_burst"`
}

// RateLimitMiddleware caps flush operations per user and operation type in
// a fixed window. Routes without an Operation pass through untouched.
type RateLimitMiddleware struct {
	logger          types.Logger
	metrics         types.MetricsManager
	rateLimitConfig *RateLimitConfig
	windows         *expirable.LRU[string, *window]
	windowsMu       sync.Mutex
	global          *rate.Limiter
	weight          int
	now             func() time.Time
}

type window struct {
	mu    sync.Mutex
	start time.Time
	count int
}

func NewRateLimitMiddleware(config types.ConfigManager, logger types.Logger, metrics types.MetricsManager) *RateLimitMiddleware {
	var rateLimitConfig = &RateLimitConfig{
		MaxOperationsPerWindow: defaultMaxOps,
		WindowSizeMs:           defaultWindowSizeMs,
		MaxTrackedClients:      defaultMaxClients,
	}

	item := config.GetConfig().Middlewares.RateLimit
	if params := paramsOf(item); params != nil {
		if err := utils.UnmarshalConfig(params, rateLimitConfig); err != nil {
			logger.Error("Failed to unmarshal RateLimit middleware config", zap.Error(err))
		}
	}

	return newRateLimitMiddleware(rateLimitConfig, weightOf(item, 30), logger, metrics)
}

func newRateLimitMiddleware(cfg *RateLimitConfig, weight int, logger types.Logger, metrics types.MetricsManager) *RateLimitMiddleware {
	if cfg.MaxOperationsPerWindow <= 0 {
		cfg.MaxOperationsPerWindow = defaultMaxOps
	}
	if cfg.WindowSizeMs <= 0 {
		cfg.WindowSizeMs = defaultWindowSizeMs
	}
	if cfg.MaxTrackedClients <= 0 {
		cfg.MaxTrackedClients = defaultMaxClients
	}

	rl := &RateLimitMiddleware{
		logger:          logger,
		metrics:         metrics,
		rateLimitConfig: cfg,
		windows:         expirable.NewLRU[string, *window](cfg.MaxTrackedClients, nil, cfg.windowSize()),
		weight:          weight,
		now:             time.Now,
	}

	if cfg.SpikeArrestRPS > 0 {
		burst := cfg.SpikeArrestBurst
		if burst <= 0 {
			burst = int(cfg.SpikeArrestRPS)
			if burst < 1 {
				burst = 1
			}
		}
		rl.global = rate.NewLimiter(rate.Limit(cfg.SpikeArrestRPS), burst)
	}

	return rl
}

func (c *RateLimitConfig) windowSize() time.Duration {
	return time.Duration(c.WindowSizeMs) * time.Millisecond
}

func (rl *RateLimitMiddleware) Name() string { return "rate-limit" }
func (rl *RateLimitMiddleware) Weight() int  { return rl.weight }

func (rl *RateLimitMiddleware) Handle(ctx *fasthttp.RequestCtx, next types.FastHTTPHandler, config *types.RouteConfig) {
	if config == nil || config.Operation == "" {
		next(ctx)
		return
	}

	user := UserIdentity(ctx)

	if rl.global != nil && !rl.global.Allow() {
		rl.reject(ctx, user, config.Operation, rl.rateLimitConfig.MaxOperationsPerWindow, 0)
		return
	}

	allowed, performed, remaining := rl.Allow(user, config.Operation)
	if !allowed {
		rl.reject(ctx, user, config.Operation, performed, remaining)
		return
	}

	next(ctx)
}

// Allow counts one operation for user. It reports the count already
// performed in the window and the time left in it when the call is refused.
func (rl *RateLimitMiddleware) Allow(user, operation string) (bool, int, time.Duration) {
	key := user + "|" + operation
	now := rl.now()
	size := rl.rateLimitConfig.windowSize()

	rl.windowsMu.Lock()
	w, ok := rl.windows.Get(key)
	if !ok {
		w = &window{start: now}
		rl.windows.Add(key, w)
	}
	rl.windowsMu.Unlock()

	w.mu.Lock()
	defer w.mu.Unlock()

	if now.Sub(w.start) > size {
		w.start = now
		w.count = 0
	}

	if w.count >= rl.rateLimitConfig.MaxOperationsPerWindow {
		remaining := size - now.Sub(w.start)
		if remaining < 0 {
			remaining = 0
		}
		return false, w.count, remaining
	}

	w.count++
	return true, w.count, 0
}

func (rl *RateLimitMiddleware) reject(ctx *fasthttp.RequestCtx, user, operation string, performed int, remaining time.Duration) {
	rl.logger.Warn("Rate limit exceeded",
		zap.String("user", user),
		zap.String("operation", operation),
		zap.Int("operations_performed", performed),
		zap.Int64("window_size_ms", rl.rateLimitConfig.WindowSizeMs))

	if rl.metrics != nil {
		rl.metrics.Counter(RateLimitedMetric, map[string]string{"operation": operation}).Inc()
	}

	ctx.Response.Header.Set("Retry-After", strconv.FormatInt(int64((remaining+time.Second-1)/time.Second), 10))
	ctx.Response.Header.Set("X-RateLimit-Limit", strconv.Itoa(rl.rateLimitConfig.MaxOperationsPerWindow))

	utils.WriteJSON(ctx, fasthttp.StatusTooManyRequests, RateLimitExceeded{
		ErrorCode:            types.ErrorCodeRateLimitExceeded,
		Message:              "Rate limit exceeded for " + operation + " operations",
		OperationsPerformed:  performed,
		MaxOperationsAllowed: rl.rateLimitConfig.MaxOperationsPerWindow,
		WindowSizeMs:         rl.rateLimitConfig.WindowSizeMs,
		TimeRemainingMs:      remaining.Milliseconds(),
	})
}

// UserIdentity is the caller named by the X-User-ID header, or "unknown".
func UserIdentity(ctx *fasthttp.RequestCtx) string {
	if user := string(ctx.Request.Header.Peek(UserHeader)); user != "" {
		return user
	}
	return UnknownUser
}
