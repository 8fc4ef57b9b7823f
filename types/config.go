package types

import (
	"time"
)

type ConfigManager interface {
	Load() error
	GetConfig() *ServiceConfig
	GetValue(path string, defaultValue interface{}) interface{}
	GetAs(path string, target interface{}) error
}

type ServiceConfig struct {
	Name        string             `yaml:"name" json:"name" validate:"required"`
	Version     string             `yaml:"version" json:"version" validate:"required"`
	Server      *ServerConfig      `yaml:"server" json:"server"`
	Logger      *LoggerConfig      `yaml:"logger" json:"logger"`
	AdminClient *AdminClientConfig `yaml:"admin_client" json:"admin_client"`
	Poller      *PollerConfig      `yaml:"poller" json:"poller"`
	Flush       *FlushConfig       `yaml:"flush" json:"flush"`
	Middlewares *MiddlewaresConfig `yaml:"middlewares" json:"middlewares"`
	Backends    *BackendsConfig    `yaml:"backends" json:"backends"`
	Redis       *RedisConfig       `yaml:"redis" json:"redis"`
	Metrics     *MetricsConfig     `yaml:"metrics" json:"metrics"`
	Health      *HealthConfig      `yaml:"health" json:"health"`
}

type ServerConfig struct {
	HTTP *HTTPConfig `yaml:"http" json:"http" validate:"required"`
}

type HTTPConfig struct {
	Host            string `yaml:"host" json:"host"`
	Port            int    `yaml:"port" json:"port" validate:"min=0,max=65535"`
	ReadTimeout     int    `yaml:"read_timeout" json:"read_timeout" validate:"min=0"`
	WriteTimeout    int    `yaml:"write_timeout" json:"write_timeout" validate:"min=0"`
	IdleTimeout     int    `yaml:"idle_timeout" json:"idle_timeout" validate:"min=0"`
	ShutdownTimeout int    `yaml:"shutdown_timeout" json:"shutdown_timeout" validate:"min=0"`
	MaxBodySize     int    `yaml:"max_body_size" json:"max_body_size" validate:"min=0"`
}

type LoggerConfig struct {
	Type   string      `yaml:"type" json:"type"`
	Level  string      `yaml:"level" json:"level" validate:"required"`
	Config interface{} `yaml:"config" json:"config"`
}

type AdminClientConfig struct {
	BaseURL            string                `yaml:"base_url" json:"base_url" validate:"required,url"`
	Timeout            time.Duration         `yaml:"timeout" json:"timeout" validate:"min=0"`
	MaxIdleConnections int                   `yaml:"max_idle_connections" json:"max_idle_connections" validate:"min=0"`
	IdleConnTimeout    time.Duration         `yaml:"idle_conn_timeout" json:"idle_conn_timeout" validate:"min=0"`
	Headers            map[string]string     `yaml:"headers" json:"headers"`
	CircuitBreaker     *CircuitBreakerConfig `yaml:"circuit_breaker" json:"circuit_breaker"`
}

type CircuitBreakerConfig struct {
	Enabled          bool          `yaml:"enabled" json:"enabled"`
	FailureThreshold uint32        `yaml:"failure_threshold" json:"failure_threshold" validate:"required_if=Enabled true"`
	RecoveryTimeout  time.Duration `yaml:"recovery_timeout" json:"recovery_timeout"`
	HalfOpenRequests uint32        `yaml:"half_open_requests" json:"half_open_requests"`
}

type PollerConfig struct {
	Enabled      bool          `yaml:"enabled" json:"enabled"`
	Interval     time.Duration `yaml:"interval" json:"interval" validate:"required_if=Enabled true"`
	FetchTimeout time.Duration `yaml:"fetch_timeout" json:"fetch_timeout"`
}

// FlushConfig bounds concurrent flushes per cache family.
type FlushConfig struct {
	Enabled                  bool          `yaml:"enabled" json:"enabled"`
	MaxConcurrentActionCache int64         `yaml:"max_concurrent_action_cache" json:"max_concurrent_action_cache" validate:"required_if=Enabled true,min=0"`
	MaxConcurrentCAS         int64         `yaml:"max_concurrent_cas" json:"max_concurrent_cas" validate:"required_if=Enabled true,min=0"`
	PermitTimeout            time.Duration `yaml:"permit_timeout" json:"permit_timeout"`
	AuditLog                 bool          `yaml:"audit_log" json:"audit_log"`
}

type MiddlewaresConfig struct {
	Enabled   bool                  `yaml:"enabled" json:"enabled"`
	Recovery  *MiddlewareItemConfig `yaml:"recovery" json:"recovery"`
	Logging   *MiddlewareItemConfig `yaml:"logging" json:"logging"`
	RateLimit *MiddlewareItemConfig `yaml:"rate_limit" json:"rate_limit"`
}

type MiddlewareItemConfig struct {
	Enabled bool                   `yaml:"enabled" json:"enabled"`
	Weight  int                    `yaml:"weight" json:"weight" validate:"min=0"`
	Params  map[string]interface{} `yaml:"params" json:"params"`
}

type BackendsConfig struct {
	ActionCache *ActionCacheBackendsConfig `yaml:"action_cache" json:"action_cache"`
	CAS         *CASBackendsConfig         `yaml:"cas" json:"cas"`
}

type ActionCacheBackendsConfig struct {
	Redis    *RedisBackendConfig `yaml:"redis" json:"redis"`
	InMemory *InMemoryConfig     `yaml:"in_memory" json:"in_memory"`
}

type CASBackendsConfig struct {
	Filesystem     *FilesystemConfig   `yaml:"filesystem" json:"filesystem"`
	InMemoryLRU    *InMemoryLRUConfig  `yaml:"in_memory_lru" json:"in_memory_lru"`
	RedisWorkerMap *RedisBackendConfig `yaml:"redis_worker_map" json:"redis_worker_map"`
}

type RedisBackendConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix" validate:"required_if=Enabled true"`
	ScanCount int64  `yaml:"scan_count" json:"scan_count" validate:"min=0"`
}

type InMemoryConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

type FilesystemConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Root    string `yaml:"root" json:"root" validate:"required_if=Enabled true"`
}

type InMemoryLRUConfig struct {
	Enabled  bool          `yaml:"enabled" json:"enabled"`
	Capacity int           `yaml:"capacity" json:"capacity" validate:"required_if=Enabled true,min=0"`
	TTL      time.Duration `yaml:"ttl" json:"ttl" validate:"min=0"`
}

type RedisConfig struct {
	Enabled      bool          `yaml:"enabled" json:"enabled"`
	Addr         string        `yaml:"addr" json:"addr" validate:"required_if=Enabled true"`
	Password     string        `yaml:"password" json:"password"`
	DB           int           `yaml:"db" json:"db" validate:"min=0"`
	PoolSize     int           `yaml:"pool_size" json:"pool_size" validate:"min=0"`
	DialTimeout  time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

type MetricsConfig struct {
	Enabled   bool              `yaml:"enabled" json:"enabled"`
	Path      string            `yaml:"path" json:"path" validate:"required_if=Enabled true"`
	Namespace string            `yaml:"namespace" json:"namespace"`
	Labels    map[string]string `yaml:"labels" json:"labels"`
	GoMetrics bool              `yaml:"go_metrics" json:"go_metrics"`
}

type HealthConfig struct {
	Enabled bool          `yaml:"enabled" json:"enabled"`
	Path    string        `yaml:"path" json:"path" validate:"required_if=Enabled true"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

type VersionInfo struct {
	Version   string `json:"version"`
	BuildInfo string `json:"build_info"`
}
