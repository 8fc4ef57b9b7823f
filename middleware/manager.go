package middleware

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-cache-admin/types"
)

const MaxMiddlewares = 16

type Manager struct {
	ctx                context.Context
	config             types.ConfigManager
	logger             types.Logger
	metrics            types.MetricsManager
	orderedMiddlewares []types.MiddlewareEntry
	middlewareMap      map[string]*types.MiddlewareEntry
	mu                 sync.RWMutex
	initialized        int32
}

func NewManager(ctx context.Context, config types.ConfigManager, logger types.Logger, metrics types.MetricsManager) *Manager {
	return &Manager{
		ctx:           ctx,
		config:        config,
		logger:        logger,
		metrics:       metrics,
		middlewareMap: make(map[string]*types.MiddlewareEntry),
	}
}

// RegisterMiddlewares builds every middleware enabled in config and freezes
// the chain order.
func (m *Manager) RegisterMiddlewares() error {
	config := m.config.GetConfig().Middlewares
	if config == nil || !config.Enabled {
		return m.finalizeConfiguration()
	}

	if enabled(config.Recovery) {
		if err := m.Register(NewRecoveryMiddleware(m.config, m.logger, m.metrics)); err != nil {
			return err
		}
		m.logger.Info("Recovery middleware registered")
	}

	if enabled(config.Logging) {
		if err := m.Register(NewLoggingMiddleware(m.config, m.logger, m.metrics)); err != nil {
			return err
		}
		m.logger.Info("Logging middleware registered")
	}

	if enabled(config.RateLimit) {
		if err := m.Register(NewRateLimitMiddleware(m.config, m.logger, m.metrics)); err != nil {
			return err
		}
		m.logger.Info("RateLimit middleware registered")
	}

	return m.finalizeConfiguration()
}

func (m *Manager) Register(middleware types.Middleware) error {
	if middleware == nil {
		return types.Errorf(types.ErrInvalidParameter, "middleware is nil")
	}

	if atomic.LoadInt32(&m.initialized) == 1 {
		return types.NewErrorf("cannot register middleware after finalization")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.middlewareMap) >= MaxMiddlewares {
		return types.NewErrorf("maximum middleware count exceeded: %d", MaxMiddlewares)
	}

	m.middlewareMap[middleware.Name()] = &types.MiddlewareEntry{
		Name:       middleware.Name(),
		Middleware: middleware,
		Weight:     middleware.Weight(),
	}
	return nil
}

func (m *Manager) finalizeConfiguration() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if atomic.LoadInt32(&m.initialized) == 1 {
		return types.NewErrorf("configuration already finalized")
	}

	weights := make(map[int]string)
	for name, entry := range m.middlewareMap {
		if existingName, exists := weights[entry.Weight]; exists {
			return types.NewErrorf("duplicate weight %d for middlewares '%s' and '%s'",
				entry.Weight, existingName, name)
		}
		weights[entry.Weight] = name
	}

	m.orderedMiddlewares = make([]types.MiddlewareEntry, 0, len(m.middlewareMap))
	for _, entry := range m.middlewareMap {
		m.orderedMiddlewares = append(m.orderedMiddlewares, *entry)
	}

	sort.Slice(m.orderedMiddlewares, func(i, j int) bool {
		return m.orderedMiddlewares[i].Weight < m.orderedMiddlewares[j].Weight
	})

	m.middlewareMap = nil
	atomic.StoreInt32(&m.initialized, 1)

	return nil
}

// Execute runs handler behind every registered middleware the route has not
// disabled, lowest weight outermost.
func (m *Manager) Execute(ctx *fasthttp.RequestCtx, handler types.FastHTTPHandler, config *types.RouteConfig) {
	if atomic.LoadInt32(&m.initialized) == 0 {
		handler(ctx)
		return
	}

	m.mu.RLock()
	ordered := m.orderedMiddlewares
	m.mu.RUnlock()

	var index int
	var next types.FastHTTPHandler
	next = func(ctx *fasthttp.RequestCtx) {
		for index < len(ordered) {
			entry := ordered[index]
			index++
			if config.Disabled(entry.Name) {
				continue
			}
			entry.Middleware.Handle(ctx, next, config)
			return
		}
		handler(ctx)
	}

	next(ctx)
}

// Names lists the registered middlewares in execution order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.orderedMiddlewares))
	for _, entry := range m.orderedMiddlewares {
		names = append(names, entry.Name)
	}
	return names
}

// Stop releases middlewares holding background resources.
func (m *Manager) Stop() {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, entry := range m.orderedMiddlewares {
		if stopper, ok := entry.Middleware.(interface{ Stop() error }); ok {
			if err := stopper.Stop(); err != nil {
				m.logger.Warn("Failed to stop middleware", zap.String("middleware", entry.Name), zap.Error(err))
			}
		}
	}

	m.logger.Info("Middleware manager stopped")
}

func enabled(item *types.MiddlewareItemConfig) bool {
	return item != nil && item.Enabled
}

func weightOf(item *types.MiddlewareItemConfig, fallback int) int {
	if item == nil || item.Weight == 0 {
		return fallback
	}
	return item.Weight
}

func paramsOf(item *types.MiddlewareItemConfig) map[string]interface{} {
	if item == nil {
		return nil
	}
	return item.Params
}
