package server

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-cache-admin/client"
	"github.com/saiset-co/sai-cache-admin/flush"
	"github.com/saiset-co/sai-cache-admin/middleware"
	"github.com/saiset-co/sai-cache-admin/resolver"
	"github.com/saiset-co/sai-cache-admin/types"
	"github.com/saiset-co/sai-cache-admin/utils"
)

const (
	OperationActionCacheFlush = "action-cache-flush"
	OperationCASFlush         = "cas-flush"

	timeoutKey = "route_timeout"
)

// Flusher runs a validated flush on behalf of user.
type Flusher interface {
	Flush(ctx context.Context, req *resolver.FlushRequest, user string) (*types.FlushResult, error)
}

// SummaryProvider reports the cumulative flush counters.
type SummaryProvider interface {
	Summary() (*types.MetricsSnapshot, error)
}

// ConcurrencyLimitExceeded is the 503 body returned when no flush permit
// is available.
type ConcurrencyLimitExceeded struct {
	ErrorCode               string `json:"errorCode"`
	Message                 string `json:"message"`
	ActiveOperations        int64  `json:"activeOperations"`
	MaxConcurrentOperations int64  `json:"maxConcurrentOperations"`
}

type Handlers struct {
	logger    types.Logger
	flusher   Flusher
	summary   SummaryProvider
	validator *validator.Validate
	timeout   time.Duration
}

func NewHandlers(logger types.Logger, flusher Flusher, summary SummaryProvider) *Handlers {
	validate := validator.New()
	_ = validate.RegisterValidation("digest_prefix", isDigestPrefix)

	return &Handlers{
		logger:    logger,
		flusher:   flusher,
		summary:   summary,
		validator: validate,
		timeout:   60 * time.Second,
	}
}

// isDigestPrefix accepts plain hex digits once surrounding blanks are
// trimmed. A blank value is left for the scope resolver to report.
func isDigestPrefix(fl validator.FieldLevel) bool {
	prefix := strings.TrimSpace(fl.Field().String())
	for _, c := range prefix {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}

// RegisterRoutes mounts the admin API on router.
func (h *Handlers) RegisterRoutes(router *Router) {
	router.POST(client.ActionCacheFlushPath, h.HandleActionCacheFlush, &types.RouteConfig{
		Operation: OperationActionCacheFlush,
		Timeout:   h.timeout,
	})
	router.POST(client.CASFlushPath, h.HandleCASFlush, &types.RouteConfig{
		Operation: OperationCASFlush,
		Timeout:   h.timeout,
	})
	router.GET(client.MetricsPath, h.HandleMetricsSummary, &types.RouteConfig{
		DisabledMiddlewares: []string{"rate-limit"},
	})
}

func (h *Handlers) HandleActionCacheFlush(ctx *fasthttp.RequestCtx) {
	var body types.ActionCacheFlushBody
	if !decodeBody(ctx, h.validator, &body) {
		return
	}

	req, err := resolver.FromActionCacheBody(body)
	if err != nil {
		h.invalid(ctx, types.FamilyActionCache, err)
		return
	}

	h.flush(ctx, req)
}

func (h *Handlers) HandleCASFlush(ctx *fasthttp.RequestCtx) {
	var body types.CASFlushBody
	if !decodeBody(ctx, h.validator, &body) {
		return
	}

	req, err := resolver.FromCASBody(body)
	if err != nil {
		h.invalid(ctx, types.FamilyCAS, err)
		return
	}

	h.flush(ctx, req)
}

func (h *Handlers) HandleMetricsSummary(ctx *fasthttp.RequestCtx) {
	snapshot, err := h.summary.Summary()
	if err != nil {
		h.logger.Error("Failed to build metrics summary", zap.Error(err))
		utils.WriteError(ctx, fasthttp.StatusInternalServerError, types.ErrorCodeInternal, "Error reading cache flush metrics: "+err.Error())
		return
	}

	utils.WriteJSON(ctx, fasthttp.StatusOK, snapshot)
}

// decodeBody reads a JSON body into target and runs struct validation. It
// writes the 400 response itself and reports false when the body is unusable.
func decodeBody[T any](ctx *fasthttp.RequestCtx, validate *validator.Validate, target *T) bool {
	raw := ctx.PostBody()
	if len(raw) == 0 {
		utils.WriteError(ctx, fasthttp.StatusBadRequest, types.ErrorCodeInvalidArgument, "Request cannot be null")
		return false
	}

	if err := utils.Unmarshal(raw, target); err != nil {
		utils.WriteError(ctx, fasthttp.StatusBadRequest, types.ErrorCodeInvalidArgument, "Malformed request body")
		return false
	}

	if err := validate.Struct(target); err != nil {
		message := err.Error()
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
			message = "invalid " + lowerFirst(fieldErrors[0].Field()) + ": failed " + fieldErrors[0].Tag() + " check"
		}
		utils.WriteError(ctx, fasthttp.StatusBadRequest, types.ErrorCodeInvalidArgument, message)
		return false
	}

	return true
}

func (h *Handlers) invalid(ctx *fasthttp.RequestCtx, family types.CacheFamily, err error) {
	h.logger.Warn("Invalid flush request",
		zap.String("cache_type", string(family)),
		zap.String("user", middleware.UserIdentity(ctx)),
		zap.Error(err))
	utils.WriteError(ctx, fasthttp.StatusBadRequest, types.ErrorCodeInvalidArgument, err.Error())
}

func (h *Handlers) flush(ctx *fasthttp.RequestCtx, req *resolver.FlushRequest) {
	family := req.Family()
	user := middleware.UserIdentity(ctx)

	h.logger.Info("Flush requested",
		zap.String("cache_type", string(family)),
		zap.String("user", user))

	flushCtx, cancel := requestContext(ctx)
	defer cancel()

	result, err := h.flusher.Flush(flushCtx, req, user)
	if err != nil {
		var limitErr *flush.ConcurrencyLimitError
		if errors.As(err, &limitErr) {
			utils.WriteJSON(ctx, fasthttp.StatusServiceUnavailable, ConcurrencyLimitExceeded{
				ErrorCode:               types.ErrorCodeConcurrencyExceeded,
				Message:                 limitErr.Error(),
				ActiveOperations:        limitErr.Active,
				MaxConcurrentOperations: limitErr.Max,
			})
			return
		}

		h.logger.Error("Error flushing cache", zap.String("cache_type", string(family)), zap.Error(err))
		utils.WriteError(ctx, fasthttp.StatusInternalServerError, types.ErrorCodeInternal,
			"Error flushing "+family.DisplayName()+": "+err.Error())
		return
	}

	if !result.Success {
		h.logger.Warn("Flush operation failed",
			zap.String("cache_type", string(family)),
			zap.String("message", result.Message))
		utils.WriteJSON(ctx, fasthttp.StatusInternalServerError, result)
		return
	}

	h.logger.Info("Flush operation completed successfully",
		zap.String("cache_type", string(family)),
		zap.Int64("entries_removed", result.EntriesRemoved))
	utils.WriteJSON(ctx, fasthttp.StatusOK, result)
}

func requestContext(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	if timeout, ok := ctx.UserValue(timeoutKey).(time.Duration); ok && timeout > 0 {
		return context.WithTimeout(context.Background(), timeout)
	}
	return context.WithCancel(context.Background())
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'A' && s[0] <= 'Z' {
		return string(s[0]-'A'+'a') + s[1:]
	}
	return s
}
