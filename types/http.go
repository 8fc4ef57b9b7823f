package types

import (
	"time"

	"github.com/valyala/fasthttp"
)

type FastHTTPHandler func(ctx *fasthttp.RequestCtx)

type HTTPRouter interface {
	Add(method, path string, handler FastHTTPHandler, config *RouteConfig)
	GET(path string, handler FastHTTPHandler, config *RouteConfig)
	POST(path string, handler FastHTTPHandler, config *RouteConfig)
	Lookup(method, path string) (*RouteInfo, bool)
	GetAllRoutes() map[string]*RouteInfo
}

type RouteConfig struct {
	DisabledMiddlewares []string
	Timeout             time.Duration
	Operation           string
}

// Disabled reports whether the named middleware is switched off for the route.
func (c *RouteConfig) Disabled(name string) bool {
	if c == nil {
		return false
	}
	for _, disabled := range c.DisabledMiddlewares {
		if disabled == name {
			return true
		}
	}
	return false
}

type RouteInfo struct {
	Method  string
	Path    string
	Handler FastHTTPHandler
	Config  *RouteConfig
}

// ErrorResponse is the body of every non-2xx admin API response.
type ErrorResponse struct {
	ErrorCode string            `json:"errorCode"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
}

const (
	ErrorCodeInvalidArgument     = "INVALID_ARGUMENT"
	ErrorCodeRateLimitExceeded   = "RATE_LIMIT_EXCEEDED"
	ErrorCodeConcurrencyExceeded = "CONCURRENCY_LIMIT_EXCEEDED"
	ErrorCodeInternal            = "INTERNAL_ERROR"
	ErrorCodeNotFound            = "NOT_FOUND"
)
