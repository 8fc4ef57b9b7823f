package actioncache

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/saiset-co/sai-cache-admin/backends"
	"github.com/saiset-co/sai-cache-admin/types"
)

// RedisAdapter flushes action results stored as <prefix><instance>:<digest>.
type RedisAdapter struct {
	client    redis.UniversalClient
	prefix    string
	scanCount int64
}

func NewRedisAdapter(client redis.UniversalClient, config *types.RedisBackendConfig) *RedisAdapter {
	return &RedisAdapter{
		client:    client,
		prefix:    config.KeyPrefix,
		scanCount: config.ScanCount,
	}
}

func (a *RedisAdapter) ID() types.BackendID {
	return types.BackendRedis
}

func (a *RedisAdapter) Family() types.CacheFamily {
	return types.FamilyActionCache
}

func (a *RedisAdapter) Flush(ctx context.Context, scope types.Scope) (backends.Removal, error) {
	pattern, err := a.Pattern(scope)
	if err != nil {
		return backends.Removal{}, err
	}

	var filter backends.KeyFilter
	if scope.Kind == types.ScopeInstance {
		instancePrefix := a.prefix + scope.InstanceName + ":"
		filter = func(key string) bool { return strings.HasPrefix(key, instancePrefix) }
	}

	return backends.ScanDelete(ctx, a.client, pattern, a.scanCount, filter, nil)
}

// Pattern is the SCAN MATCH pattern covering a scope.
func (a *RedisAdapter) Pattern(scope types.Scope) (string, error) {
	prefix := backends.EscapePattern(a.prefix)
	switch scope.Kind {
	case types.ScopeAll:
		return prefix + "*", nil
	case types.ScopeInstance:
		return prefix + backends.EscapePattern(scope.InstanceName) + ":*", nil
	case types.ScopeDigestPrefix:
		return prefix + "*:" + backends.EscapePattern(scope.DigestPrefix) + "*", nil
	default:
		return "", types.Errorf(types.ErrInvalidParameter, "unknown flush scope: %s", scope.Kind)
	}
}
