// Package service wires the cache admin server together and owns its
// lifecycle.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/saiset-co/sai-cache-admin/backends"
	"github.com/saiset-co/sai-cache-admin/backends/actioncache"
	"github.com/saiset-co/sai-cache-admin/backends/cas"
	"github.com/saiset-co/sai-cache-admin/config"
	"github.com/saiset-co/sai-cache-admin/flush"
	"github.com/saiset-co/sai-cache-admin/health"
	"github.com/saiset-co/sai-cache-admin/logger"
	"github.com/saiset-co/sai-cache-admin/metrics"
	"github.com/saiset-co/sai-cache-admin/middleware"
	"github.com/saiset-co/sai-cache-admin/server"
	"github.com/saiset-co/sai-cache-admin/types"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

type Service struct {
	ctx             context.Context
	cancel          context.CancelFunc
	done            chan struct{}
	ready           chan struct{}
	wg              sync.WaitGroup
	state           atomic.Value
	shutdownTimeout time.Duration
	startTimeout    time.Duration

	config      *config.ConfigurationManager
	logger      types.LoggerManager
	metrics     *metrics.PrometheusMetrics
	redis       *redis.Client
	registry    *backends.Registry
	actionStore *actioncache.MemoryStore
	casStore    *cas.LRUStore
	flush       *flush.Service
	middlewares *middleware.Manager
	router      *server.Router
	health      *health.Manager
	server      *server.FastHTTPServer
}

// NewService loads configPath and builds every component. Nothing listens
// until Start.
func NewService(ctx context.Context, configPath string) (*Service, error) {
	if configPath == "" {
		return nil, types.ErrConfigInvalidPath
	}

	configManager, err := config.NewConfigurationManager(ctx, configPath)
	if err != nil {
		return nil, types.WrapError(err, "failed to register config manager")
	}

	return newService(ctx, configManager)
}

// NewServiceFromConfig builds the service around an in-memory configuration.
func NewServiceFromConfig(ctx context.Context, serviceConfig *types.ServiceConfig) (*Service, error) {
	configManager, err := config.NewFromConfig(ctx, serviceConfig)
	if err != nil {
		return nil, types.WrapError(err, "failed to register config manager")
	}

	return newService(ctx, configManager)
}

func newService(ctx context.Context, configManager *config.ConfigurationManager) (*Service, error) {
	serviceCtx, cancel := context.WithCancel(ctx)

	s := &Service{
		ctx:             serviceCtx,
		cancel:          cancel,
		config:          configManager,
		done:            make(chan struct{}),
		ready:           make(chan struct{}),
		shutdownTimeout: 30 * time.Second,
		startTimeout:    60 * time.Second,
	}
	s.state.Store(StateStopped)

	if err := s.registerProviders(); err != nil {
		if s.redis != nil {
			_ = s.redis.Close()
		}
		cancel()
		return nil, types.WrapError(err, "failed to register providers")
	}

	return s, nil
}

func (s *Service) registerProviders() error {
	_config := s.config.GetConfig()

	loggerManager, err := logger.NewManager(s.ctx, s.config)
	if err != nil {
		return types.WrapError(err, "failed to register logger")
	}
	s.logger = loggerManager

	metricsConfig := _config.Metrics
	if metricsConfig == nil {
		metricsConfig = &types.MetricsConfig{}
	}
	s.metrics, err = metrics.NewPrometheusMetrics(s.logger, metricsConfig)
	if err != nil {
		return types.WrapError(err, "failed to register metrics")
	}

	if _config.Redis != nil && _config.Redis.Enabled {
		s.redis, err = backends.NewRedisClient(s.ctx, _config.Redis)
		if err != nil {
			return types.WrapError(err, "failed to register redis client")
		}
	}

	if err := s.registerBackends(_config.Backends); err != nil {
		return types.WrapError(err, "failed to register backends")
	}

	flushMetrics := metrics.NewFlushMetrics(s.metrics)
	s.flush = flush.NewService(s.logger, _config.Flush, s.registry, flushMetrics)

	s.middlewares = middleware.NewManager(s.ctx, s.config, s.logger, s.metrics)
	if err := s.middlewares.RegisterMiddlewares(); err != nil {
		return types.WrapError(err, "failed to register middlewares")
	}

	s.router = server.NewRouter()
	server.NewHandlers(s.logger, s.flush, flushMetrics).RegisterRoutes(s.router)

	if metricsConfig.Enabled {
		s.router.GET(metricsConfig.Path, s.metrics.Handler(), &types.RouteConfig{
			DisabledMiddlewares: []string{"logging", "rate-limit"},
		})
	}

	if _config.Health != nil && _config.Health.Enabled {
		s.health = health.NewManager(s.ctx, s.config, s.logger, s.router)
		s.registerCheckers(_config.Backends)
	}

	s.server, err = server.NewHTTPServer(s.ctx, s.config, s.logger, s.middlewares, s.router)
	if err != nil {
		return types.WrapError(err, "failed to register http server")
	}

	return nil
}

// registerBackends builds an adapter for every enabled backend. A redis
// backed adapter without redis.enabled is a configuration error.
func (s *Service) registerBackends(backendsConfig *types.BackendsConfig) error {
	s.registry = backends.NewRegistry()
	if backendsConfig == nil {
		return nil
	}

	var adapters []backends.Adapter

	if ac := backendsConfig.ActionCache; ac != nil {
		if ac.InMemory != nil && ac.InMemory.Enabled {
			s.actionStore = actioncache.NewMemoryStore()
			adapters = append(adapters, actioncache.NewMemoryAdapter(s.actionStore))
		}
		if ac.Redis != nil && ac.Redis.Enabled {
			if s.redis == nil {
				return types.Errorf(types.ErrBackendNotConfigured, "action_cache.redis requires redis.enabled")
			}
			adapters = append(adapters, actioncache.NewRedisAdapter(s.redis, ac.Redis))
		}
	}

	if cs := backendsConfig.CAS; cs != nil {
		if cs.Filesystem != nil && cs.Filesystem.Enabled {
			adapters = append(adapters, cas.NewFilesystemAdapter(s.logger, cs.Filesystem.Root))
		}
		if cs.InMemoryLRU != nil && cs.InMemoryLRU.Enabled {
			s.casStore = cas.NewLRUStore(cs.InMemoryLRU.Capacity, cs.InMemoryLRU.TTL)
			adapters = append(adapters, cas.NewLRUAdapter(s.casStore))
		}
		if cs.RedisWorkerMap != nil && cs.RedisWorkerMap.Enabled {
			if s.redis == nil {
				return types.Errorf(types.ErrBackendNotConfigured, "cas.redis_worker_map requires redis.enabled")
			}
			adapters = append(adapters, cas.NewWorkerMapAdapter(s.redis, cs.RedisWorkerMap))
		}
	}

	for _, adapter := range adapters {
		if err := s.registry.Register(adapter); err != nil {
			return err
		}
		s.logger.Info("Backend registered",
			zap.String("cache_type", string(adapter.Family())),
			zap.String("backend", string(adapter.ID())))
	}

	return nil
}

func (s *Service) registerCheckers(backendsConfig *types.BackendsConfig) {
	if s.redis != nil {
		s.health.RegisterChecker("redis", redisChecker(s.redis))
	}
	if backendsConfig != nil && backendsConfig.CAS != nil {
		if fs := backendsConfig.CAS.Filesystem; fs != nil && fs.Enabled {
			s.health.RegisterChecker("filesystem", filesystemChecker(fs.Root))
		}
	}
	s.health.RegisterChecker("backends", registryChecker(s.registry))
}

// Start brings the components up and blocks until the service is stopped by
// Stop, a signal or the parent context.
func (s *Service) Start() error {
	if !s.transitionState(StateStopped, StateStarting) {
		s.logger.Warn("Service is already running")
		return types.ErrServerAlreadyRunning
	}

	var runErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				buf := make([]byte, 4096)
				n := runtime.Stack(buf, false)
				runErr = fmt.Errorf("service panic: %v", r)
				s.logger.Error("Service run panic", zap.Stack(string(buf[:n])))
				s.setState(StateStopped)
			}
		}()

		runErr = s.run()
	}()

	return runErr
}

func (s *Service) run() error {
	s.logger.Info("Starting service")

	ctx, cancel := context.WithTimeout(s.ctx, s.startTimeout)
	defer cancel()

	if err := s.startComponents(ctx); err != nil {
		s.cancel()
		s.setState(StateStopped)
		if stopErr := s.stopComponents(); stopErr != nil {
			s.logger.Error("Error during rollback", zap.Error(stopErr))
		}
		return types.WrapError(err, "failed to start components")
	}

	s.setState(StateRunning)
	s.setupSignalHandling()

	s.wg.Add(1)
	go s.contextMonitor()

	s.logger.Info("Service started successfully", zap.String("address", s.server.Addr()))
	close(s.ready)

	<-s.done

	if err := s.stopComponents(); err != nil {
		s.logger.Error("Error during service shutdown", zap.Error(err))
	}

	s.wg.Wait()
	s.setState(StateStopped)

	s.logger.Info("Service stopped gracefully")
	return nil
}

func (s *Service) Stop() error {
	if !s.transitionState(StateRunning, StateStopping) {
		s.logger.Warn("Service is not running")
		return types.ErrServiceIsNotRunning
	}

	s.logger.Info("Stopping service...")
	s.cancel()
	return nil
}

// Ready is closed once every component is up and the listener is bound.
func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

func (s *Service) Done() <-chan struct{} {
	return s.done
}

func (s *Service) Context() context.Context {
	return s.ctx
}

func (s *Service) IsRunning() bool {
	return s.getState() == StateRunning
}

// Addr is the address the admin API listens on.
func (s *Service) Addr() string {
	return s.server.Addr()
}

func (s *Service) Registry() *backends.Registry {
	return s.registry
}

// ActionCacheStore is the in-process action cache, nil unless the in-memory
// backend is enabled.
func (s *Service) ActionCacheStore() *actioncache.MemoryStore {
	return s.actionStore
}

// CASStore is the in-process CAS LRU, nil unless that backend is enabled.
func (s *Service) CASStore() *cas.LRUStore {
	return s.casStore
}

func (s *Service) getState() State {
	return s.state.Load().(State)
}

func (s *Service) setState(newState State) {
	s.state.Store(newState)
}

func (s *Service) transitionState(from, to State) bool {
	return s.state.CompareAndSwap(from, to)
}

type component struct {
	name     string
	manager  types.LifecycleManager
	required bool
}

func (s *Service) startComponents(ctx context.Context) error {
	starters := []component{
		{"config manager", s.config, true},
		{"logger", s.logger, true},
		{"metrics manager", s.metrics, false},
	}
	if s.health != nil {
		starters = append(starters, component{"health manager", s.health, false})
	}

	for _, starter := range starters {
		select {
		case <-ctx.Done():
			return types.NewErrorf("component startup timeout: %v", ctx.Err())
		default:
		}

		if err := starter.manager.Start(); err != nil {
			if starter.required {
				return types.WrapError(err, "failed to start "+starter.name)
			}
			s.logger.Error("Failed to start "+starter.name, zap.Error(err))
		}
	}

	if err := s.server.Start(); err != nil {
		return types.WrapError(err, "failed to start HTTP server")
	}

	s.logger.Info("All components started successfully")
	return nil
}

func (s *Service) stopComponents() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	var errs []error

	s.logger.Info("Stopping service components...")

	if s.server.IsRunning() {
		if err := s.server.Stop(); err != nil {
			s.logger.Error("Failed to stop HTTP server", zap.Error(err))
			errs = append(errs, err)
		}
	}

	s.middlewares.Stop()

	g, gCtx := errgroup.WithContext(ctx)

	if s.health != nil && s.health.IsRunning() {
		g.Go(func() error {
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			default:
				if err := s.health.Stop(); err != nil {
					s.logger.Error("Failed to stop health manager", zap.Error(err))
					return err
				}
				return nil
			}
		})
	}

	if s.metrics.IsRunning() {
		g.Go(func() error {
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			default:
				if err := s.metrics.Stop(); err != nil {
					s.logger.Error("Failed to stop metrics manager", zap.Error(err))
					return err
				}
				return nil
			}
		})
	}

	if s.redis != nil {
		g.Go(func() error {
			if err := s.redis.Close(); err != nil {
				s.logger.Error("Failed to close redis client", zap.Error(err))
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		select {
		case <-ctx.Done():
			s.logger.Warn("Component shutdown timeout, some components may not have stopped gracefully")
		default:
			errs = append(errs, err)
		}
	}

	s.logger.Info("All components stopped")

	if s.logger.IsRunning() {
		if err := s.logger.Stop(); err != nil {
			errs = append(errs, err)
		}
	}

	if s.config.IsRunning() {
		if err := s.config.Stop(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return types.NewErrorf("errors during shutdown: %v", errs)
	}

	return nil
}
