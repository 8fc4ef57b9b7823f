package server

import (
	"strings"
	"sync"

	"github.com/saiset-co/sai-cache-admin/types"
)

// Router is a static method+path table. The admin API has no path
// parameters, so lookups are a single map read.
type Router struct {
	routes map[string]*types.RouteInfo
	mu     sync.RWMutex
}

func NewRouter() *Router {
	return &Router{routes: make(map[string]*types.RouteInfo)}
}

func (r *Router) Add(method, path string, handler types.FastHTTPHandler, config *types.RouteConfig) {
	if config == nil {
		config = &types.RouteConfig{}
	}

	method = strings.ToUpper(method)
	path = normalizePath(path)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.routes[routeKey(method, path)] = &types.RouteInfo{
		Method:  method,
		Path:    path,
		Handler: handler,
		Config:  config,
	}
}

func (r *Router) GET(path string, handler types.FastHTTPHandler, config *types.RouteConfig) {
	r.Add("GET", path, handler, config)
}

func (r *Router) POST(path string, handler types.FastHTTPHandler, config *types.RouteConfig) {
	r.Add("POST", path, handler, config)
}

func (r *Router) Lookup(method, path string) (*types.RouteInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.routes[routeKey(method, normalizePath(path))]
	return info, ok
}

// AllowsPath reports whether any method is registered for path.
func (r *Router) AllowsPath(path string) bool {
	path = normalizePath(path)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, info := range r.routes {
		if info.Path == path {
			return true
		}
	}
	return false
}

func (r *Router) GetAllRoutes() map[string]*types.RouteInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	routes := make(map[string]*types.RouteInfo, len(r.routes))
	for key, info := range r.routes {
		routes[key] = info
	}
	return routes
}

func routeKey(method, path string) string {
	return method + ":" + path
}

func normalizePath(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}
