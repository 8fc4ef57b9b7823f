package flush

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-cache-admin/resolver"
	"github.com/saiset-co/sai-cache-admin/types"
)

// AuditLogger writes one record per flush: who asked, what was selected,
// and what came back.
type AuditLogger struct {
	logger  types.Logger
	enabled bool
}

func NewAuditLogger(logger types.Logger, enabled bool) *AuditLogger {
	return &AuditLogger{logger: logger, enabled: enabled}
}

func (a *AuditLogger) LogFlush(operationID, user string, req *resolver.FlushRequest, result *types.FlushResult, duration time.Duration) {
	if !a.enabled {
		return
	}

	fields := append(requestFields(operationID, user, req),
		zap.Bool("success", result.Success),
		zap.Int64("entries_removed", result.EntriesRemoved),
		zap.Duration("duration", duration),
	)
	if req.Family() == types.FamilyCAS && result.BytesReclaimed != nil {
		fields = append(fields, zap.Int64("bytes_reclaimed", *result.BytesReclaimed))
	}

	msg := req.Family().DisplayName() + " flush operation"
	if result.Success {
		a.logger.Info(msg, fields...)
		return
	}

	a.logger.Warn(msg, append(fields, zap.String("message", result.Message))...)
}

func (a *AuditLogger) LogRejected(operationID, user string, req *resolver.FlushRequest, err error) {
	if !a.enabled {
		return
	}

	a.logger.Warn(req.Family().DisplayName()+" flush rejected",
		append(requestFields(operationID, user, req), zap.Error(err))...)
}

func requestFields(operationID, user string, req *resolver.FlushRequest) []zap.Field {
	scope := req.Scope()
	ids := req.Backends().IDs()

	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = string(id)
	}

	fields := []zap.Field{
		zap.String("operation_id", operationID),
		zap.String("user", user),
		zap.String("cache_type", string(req.Family())),
		zap.String("scope", string(scope.Kind)),
		zap.String("backends", strings.Join(names, ",")),
	}

	switch scope.Kind {
	case types.ScopeInstance:
		fields = append(fields, zap.String("instance_name", scope.InstanceName))
	case types.ScopeDigestPrefix:
		fields = append(fields, zap.String("digest_prefix", scope.DigestPrefix))
	}

	return fields
}
