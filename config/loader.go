package config

import (
	"context"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/saiset-co/sai-cache-admin/types"
)

type Loader struct {
	validator *validator.Validate
}

func NewLoader() *Loader {
	return &Loader{
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (l *Loader) LoadFromFile(ctx context.Context, configPath string) (*types.ServiceConfig, map[string]interface{}, error) {
	if configPath == "" {
		return nil, nil, types.ErrConfigNotFound
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, nil, types.Errorf(types.ErrConfigNotFound, "file: %s", configPath)
	}

	data, err := l.ReadFileWithTimeout(ctx, configPath)
	if err != nil {
		return nil, nil, types.WrapError(err, "failed to read config file")
	}

	return l.LoadFromBytes(data)
}

// LoadFromBytes expands ${VAR} references, applies the document over the
// defaults and validates the result.
func (l *Loader) LoadFromBytes(data []byte) (*types.ServiceConfig, map[string]interface{}, error) {
	expanded := []byte(os.ExpandEnv(string(data)))

	config := l.Defaults()
	if err := yaml.Unmarshal(expanded, config); err != nil {
		return nil, nil, types.Errorf(types.ErrConfigParseFailed, "%v", err)
	}

	if err := l.validator.Struct(config); err != nil {
		return nil, nil, types.Errorf(types.ErrConfigValidateFailed, "%v", err)
	}

	rawData := make(map[string]interface{})
	if err := yaml.Unmarshal(expanded, &rawData); err != nil {
		return nil, nil, types.Errorf(types.ErrConfigParseFailed, "%v", err)
	}

	return config, rawData, nil
}

func (l *Loader) ReadFileWithTimeout(ctx context.Context, filepath string) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}

	resultChan := make(chan result, 1)

	go func() {
		data, err := os.ReadFile(filepath)
		resultChan <- result{data: data, err: err}
	}()

	select {
	case res := <-resultChan:
		return res.data, res.err
	case <-ctx.Done():
		return nil, types.WrapError(ctx.Err(), "file read timeout")
	}
}

func (l *Loader) Defaults() *types.ServiceConfig {
	return &types.ServiceConfig{
		Name:    "sai-cache-admin",
		Version: "1.0.0",
		Server: &types.ServerConfig{
			HTTP: &types.HTTPConfig{
				Host:            "localhost",
				Port:            8080,
				ReadTimeout:     30,
				WriteTimeout:    30,
				IdleTimeout:     120,
				ShutdownTimeout: 5,
				MaxBodySize:     64 * 1024,
			},
		},
		Logger: &types.LoggerConfig{
			Level: "info",
		},
		AdminClient: &types.AdminClientConfig{
			BaseURL:            "http://localhost:8080",
			Timeout:            30 * time.Second,
			MaxIdleConnections: 16,
			IdleConnTimeout:    90 * time.Second,
			CircuitBreaker: &types.CircuitBreakerConfig{
				Enabled:          true,
				FailureThreshold: 5,
				RecoveryTimeout:  30 * time.Second,
				HalfOpenRequests: 1,
			},
		},
		Poller: &types.PollerConfig{
			Enabled:      true,
			Interval:     30 * time.Second,
			FetchTimeout: 10 * time.Second,
		},
		Flush: &types.FlushConfig{
			Enabled:                  true,
			MaxConcurrentActionCache: 5,
			MaxConcurrentCAS:         3,
			PermitTimeout:            5 * time.Minute,
			AuditLog:                 true,
		},
		Middlewares: &types.MiddlewaresConfig{
			Enabled: true,
			Recovery: &types.MiddlewareItemConfig{
				Enabled: true,
				Weight:  10,
				Params: map[string]interface{}{
					"stack_trace": true,
				},
			},
			Logging: &types.MiddlewareItemConfig{
				Enabled: true,
				Weight:  20,
				Params: map[string]interface{}{
					"log_level":   "info",
					"log_headers": false,
				},
			},
			RateLimit: &types.MiddlewareItemConfig{
				Enabled: true,
				Weight:  30,
				Params: map[string]interface{}{
					"max_operations_per_window": 10,
					"window_size_ms":            60000,
					"max_tracked_clients":       10000,
				},
			},
		},
		Backends: &types.BackendsConfig{
			ActionCache: &types.ActionCacheBackendsConfig{
				Redis: &types.RedisBackendConfig{
					Enabled:   false,
					KeyPrefix: "ActionCache:",
					ScanCount: 1000,
				},
				InMemory: &types.InMemoryConfig{
					Enabled: true,
				},
			},
			CAS: &types.CASBackendsConfig{
				Filesystem: &types.FilesystemConfig{
					Enabled: false,
					Root:    "/tmp/worker/cache",
				},
				InMemoryLRU: &types.InMemoryLRUConfig{
					Enabled:  true,
					Capacity: 100000,
				},
				RedisWorkerMap: &types.RedisBackendConfig{
					Enabled:   false,
					KeyPrefix: "ContentAddressableStorage:",
					ScanCount: 1000,
				},
			},
		},
		Redis: &types.RedisConfig{
			Enabled:      false,
			Addr:         "localhost:6379",
			PoolSize:     10,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Metrics: &types.MetricsConfig{
			Enabled:   true,
			Path:      "/metrics",
			GoMetrics: true,
		},
		Health: &types.HealthConfig{
			Enabled: true,
			Path:    "/health",
			Timeout: 5 * time.Second,
		},
	}
}
