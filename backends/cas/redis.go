package cas

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/saiset-co/sai-cache-admin/backends"
	"github.com/saiset-co/sai-cache-admin/types"
)

// estimatedEntryBytes stands in for a key whose MEMORY USAGE is unavailable.
const estimatedEntryBytes = 100

// WorkerMapAdapter flushes the Redis map of digest to worker locations,
// stored as <mapName>:<digest>.
type WorkerMapAdapter struct {
	client    redis.UniversalClient
	mapName   string
	scanCount int64
}

func NewWorkerMapAdapter(client redis.UniversalClient, config *types.RedisBackendConfig) *WorkerMapAdapter {
	return &WorkerMapAdapter{
		client:    client,
		mapName:   strings.TrimSuffix(config.KeyPrefix, ":"),
		scanCount: config.ScanCount,
	}
}

func (a *WorkerMapAdapter) ID() types.BackendID {
	return types.BackendRedisWorkerMap
}

func (a *WorkerMapAdapter) Family() types.CacheFamily {
	return types.FamilyCAS
}

func (a *WorkerMapAdapter) Flush(ctx context.Context, scope types.Scope) (backends.Removal, error) {
	switch scope.Kind {
	case types.ScopeAll:
		return backends.ScanDelete(ctx, a.client, backends.EscapePattern(a.mapName)+":*", a.scanCount, nil, a.memoryUsage)
	case types.ScopeInstance:
		// worker locations are not partitioned by instance
		return backends.Removal{}, nil
	case types.ScopeDigestPrefix:
		return backends.ScanDelete(ctx, a.client, backends.EscapePattern(a.mapName+":"+scope.DigestPrefix)+"*", a.scanCount, func(key string) bool {
			return IsWorkerMapKey(key, a.mapName, scope.DigestPrefix)
		}, a.memoryUsage)
	default:
		return backends.Removal{}, types.Errorf(types.ErrInvalidParameter, "unknown flush scope: %s", scope.Kind)
	}
}

// IsWorkerMapKey reports whether key is exactly <mapName>:<digest> with the
// digest starting with prefix.
func IsWorkerMapKey(key, mapName, prefix string) bool {
	digest, ok := strings.CutPrefix(key, mapName+":")
	if !ok || strings.Contains(digest, ":") {
		return false
	}
	return strings.HasPrefix(digest, prefix)
}

func (a *WorkerMapAdapter) memoryUsage(ctx context.Context, keys []string) int64 {
	pipe := a.client.Pipeline()
	cmds := make([]*redis.IntCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.MemoryUsage(ctx, key)
	}
	_, _ = pipe.Exec(ctx)

	var total int64
	for _, cmd := range cmds {
		if n, err := cmd.Result(); err == nil {
			total += n
		} else {
			total += estimatedEntryBytes
		}
	}
	return total
}
