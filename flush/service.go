// Package flush fans a validated flush out to the selected backend adapters
// and merges their outcomes into a single result.
package flush

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/saiset-co/sai-cache-admin/backends"
	"github.com/saiset-co/sai-cache-admin/metrics"
	"github.com/saiset-co/sai-cache-admin/resolver"
	"github.com/saiset-co/sai-cache-admin/types"
)

type Service struct {
	logger   types.Logger
	registry *backends.Registry
	metrics  *metrics.FlushMetrics
	permits  *Permits
	audit    *AuditLogger
}

func NewService(logger types.Logger, config *types.FlushConfig, registry *backends.Registry, flushMetrics *metrics.FlushMetrics) *Service {
	auditEnabled := config != nil && config.AuditLog

	return &Service{
		logger:   logger,
		registry: registry,
		metrics:  flushMetrics,
		permits:  NewPermits(config),
		audit:    NewAuditLogger(logger, auditEnabled),
	}
}

func (s *Service) Permits() *Permits {
	return s.permits
}

// Flush runs req against every selected backend that is configured here.
// Backend failures are reported inside the result; the error return is
// reserved for requests that never ran.
func (s *Service) Flush(ctx context.Context, req *resolver.FlushRequest, user string) (*types.FlushResult, error) {
	if req == nil {
		return nil, types.ErrFlushRequestIsNil
	}

	operationID := uuid.NewString()
	family := req.Family()

	release, err := s.permits.Acquire(ctx, family)
	if err != nil {
		s.logger.Warn("Could not acquire flush permit",
			zap.String("operation_id", operationID),
			zap.String("cache_type", string(family)),
			zap.Error(err))
		s.audit.LogRejected(operationID, user, req, err)
		return nil, err
	}
	defer release()

	start := time.Now()
	outcomes := s.run(ctx, operationID, req)
	result := merge(family, outcomes)

	if s.metrics != nil {
		for _, outcome := range outcomes {
			s.metrics.RecordOutcome(family, req.Scope().Kind, outcome)
		}
		s.metrics.ObserveDuration(family, start)
	}

	s.audit.LogFlush(operationID, user, req, result, time.Since(start))

	return result, nil
}

func (s *Service) run(ctx context.Context, operationID string, req *resolver.FlushRequest) []types.BackendOutcome {
	family := req.Family()
	scope := req.Scope()

	var adapters []backends.Adapter
	for _, id := range req.Backends().IDs() {
		adapter, ok := s.registry.Get(family, id)
		if !ok {
			s.logger.Warn("Selected backend is not configured",
				zap.String("operation_id", operationID),
				zap.String("cache_type", string(family)),
				zap.String("backend", string(id)))
			continue
		}
		adapters = append(adapters, adapter)
	}

	outcomes := make([]types.BackendOutcome, len(adapters))

	var g errgroup.Group
	for i, adapter := range adapters {
		g.Go(func() error {
			outcomes[i] = s.flushBackend(ctx, operationID, adapter, scope)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (s *Service) flushBackend(ctx context.Context, operationID string, adapter backends.Adapter, scope types.Scope) (outcome types.BackendOutcome) {
	outcome.Backend = adapter.ID()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			outcome.Err = types.Errorf(types.ErrBackendFlushFailed, "panic: %v", r)
			s.logger.Error("Backend flush panicked",
				zap.String("operation_id", operationID),
				zap.String("backend", string(adapter.ID())),
				zap.Any("panic", r))
		}
	}()

	removal, err := adapter.Flush(ctx, scope)
	outcome.EntriesRemoved = removal.Entries
	outcome.BytesReclaimed = removal.Bytes
	outcome.Err = err

	if err != nil {
		s.logger.ErrorWithErrStack("Backend flush failed", err,
			zap.String("operation_id", operationID),
			zap.String("backend", string(adapter.ID())))
		return outcome
	}

	s.logger.Info("Backend flushed",
		zap.String("operation_id", operationID),
		zap.String("cache_type", string(adapter.Family())),
		zap.String("backend", string(adapter.ID())),
		zap.String("scope", scope.String()),
		zap.Int64("entries_removed", removal.Entries),
		zap.Int64("bytes_reclaimed", removal.Bytes),
		zap.Duration("duration", time.Since(start)))

	return outcome
}

// merge folds backend outcomes, already in canonical order, into one result.
func merge(family types.CacheFamily, outcomes []types.BackendOutcome) *types.FlushResult {
	result := &types.FlushResult{
		Success:                 true,
		EntriesRemovedByBackend: make(map[string]int64, len(outcomes)),
	}

	var bytesTotal int64
	var bytesByBackend map[string]int64
	if family == types.FamilyCAS {
		bytesByBackend = make(map[string]int64, len(outcomes))
	}

	var failures []string
	for _, outcome := range outcomes {
		id := string(outcome.Backend)

		result.EntriesRemoved += outcome.EntriesRemoved
		result.EntriesRemovedByBackend[id] = outcome.EntriesRemoved

		if bytesByBackend != nil {
			bytesTotal += outcome.BytesReclaimed
			bytesByBackend[id] = outcome.BytesReclaimed
		}

		if outcome.Err != nil {
			result.Success = false
			failures = append(failures, fmt.Sprintf("Error flushing %s backend: %s: %v", family.DisplayName(), id, outcome.Err))
		}
	}

	if bytesByBackend != nil {
		result.BytesReclaimed = types.Int64(bytesTotal)
		result.BytesReclaimedByBackend = bytesByBackend
	}

	switch {
	case len(failures) > 0:
		result.Message = strings.Join(failures, ", ")
	case len(outcomes) == 0:
		result.Message = fmt.Sprintf("No %s backends were flushed", family.DisplayName())
	}

	return result
}
