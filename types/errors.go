package types

import (
	"errors"
	"fmt"
)

var (
	ErrConfigNotFound       = errors.New("config not found")
	ErrConfigInvalidPath    = errors.New("config invalid path")
	ErrConfigParseFailed    = errors.New("config parse failed")
	ErrConfigIsNil          = errors.New("config is nil")
	ErrConfigValidateFailed = errors.New("config validate failed")
)

var (
	ErrServerNotRunning     = errors.New("server not running")
	ErrServerAlreadyRunning = errors.New("server already running")
	ErrServerStartFailed    = errors.New("server start failed")
	ErrServerStopFailed     = errors.New("server stop failed")
	ErrHandlerIsNil         = errors.New("handler is nil")
)

var (
	ErrBackendNotConfigured = errors.New("backend not configured")
	ErrBackendUnavailable   = errors.New("backend unavailable")
	ErrBackendFlushFailed   = errors.New("backend flush failed")
	ErrBackendTypeUnknown   = errors.New("backend type unknown")
)

var (
	ErrFlushPermitUnavailable = errors.New("flush concurrency limit reached")
	ErrSubmissionInFlight     = errors.New("flush submission already in flight")
	ErrFamilyMismatch         = errors.New("flush request targets a different cache family")
	ErrFlushRequestIsNil      = errors.New("flush request is nil")
	ErrFlushPanicked          = errors.New("flush panicked")
)

var (
	ErrPollerIsRunning    = errors.New("metrics poller is running")
	ErrPollerNotRunning   = errors.New("metrics poller is not running")
	ErrPollerFetchTimeout = errors.New("metrics fetch timeout")
)

var (
	ErrMetricsConfigInvalid = errors.New("metrics config invalid")
)

var (
	ErrClientRequestFailed   = errors.New("client request failed")
	ErrClientResponseInvalid = errors.New("client response invalid")
	ErrClientTimeout         = errors.New("client timeout")
	ErrCircuitBreakerOpen    = errors.New("circuit breaker open")
)

var (
	ErrLoggerConfigInvalid = errors.New("logger config invalid")
	ErrLogFileIsEmpty      = errors.New("log file is empty")
	ErrLogFileWrongFormat  = errors.New("log file wrong format")
	ErrLoggerTypeUnknown   = errors.New("logger type unknown")
)

var (
	ErrServiceIsRunning    = errors.New("service is running")
	ErrServiceIsNotRunning = errors.New("service is not running")
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
)

func Errorf(baseErr error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", baseErr, fmt.Sprintf(format, args...))
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func NewErrorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

func IsError(err, target error) bool {
	return errors.Is(err, target)
}
