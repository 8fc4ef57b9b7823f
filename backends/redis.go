package backends

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/saiset-co/sai-cache-admin/types"
)

const defaultScanCount int64 = 1000

func NewRedisClient(ctx context.Context, config *types.RedisConfig) (*redis.Client, error) {
	if config == nil || config.Addr == "" {
		return nil, types.Errorf(types.ErrBackendNotConfigured, "redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, types.WrapError(types.ErrBackendUnavailable, "failed to connect to redis: "+err.Error())
	}

	return client, nil
}

var patternEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// EscapePattern quotes the glob metacharacters of a SCAN MATCH pattern so s
// only ever matches itself.
func EscapePattern(s string) string {
	return patternEscaper.Replace(s)
}

// KeyFilter narrows a SCAN page further than a MATCH pattern can.
type KeyFilter func(key string) bool

// KeySizer reports the bytes held by keys about to be deleted.
type KeySizer func(ctx context.Context, keys []string) int64

// ScanDelete walks the keyspace matching pattern and deletes every page of
// matches as it goes. The count is what DEL actually removed.
func ScanDelete(ctx context.Context, client redis.UniversalClient, pattern string, count int64, filter KeyFilter, sizer KeySizer) (Removal, error) {
	if count <= 0 {
		count = defaultScanCount
	}

	var removal Removal
	var cursor uint64

	for {
		keys, next, err := client.Scan(ctx, cursor, pattern, count).Result()
		if err != nil {
			return removal, err
		}

		if filter != nil {
			keys = filterKeys(keys, filter)
		}

		if len(keys) > 0 {
			if sizer != nil {
				removal.Bytes += sizer(ctx, keys)
			}

			deleted, err := client.Del(ctx, keys...).Result()
			if err != nil {
				return removal, err
			}
			removal.Entries += deleted
		}

		cursor = next
		if cursor == 0 {
			return removal, nil
		}
	}
}

func filterKeys(keys []string, filter KeyFilter) []string {
	kept := keys[:0]
	for _, key := range keys {
		if filter(key) {
			kept = append(kept, key)
		}
	}
	return kept
}
