package service

import (
	"context"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/saiset-co/sai-cache-admin/backends"
	"github.com/saiset-co/sai-cache-admin/types"
)

func redisChecker(client redis.UniversalClient) types.HealthChecker {
	return func(ctx context.Context) types.HealthCheck {
		if err := client.Ping(ctx).Err(); err != nil {
			return types.HealthCheck{Status: types.StatusUnhealthy, Message: err.Error()}
		}
		return types.HealthCheck{Status: types.StatusHealthy}
	}
}

// filesystemChecker reports whether the worker cache root is a readable
// directory.
func filesystemChecker(root string) types.HealthChecker {
	return func(context.Context) types.HealthCheck {
		info, err := os.Stat(root)
		if err != nil {
			return types.HealthCheck{Status: types.StatusUnhealthy, Message: err.Error()}
		}
		if !info.IsDir() {
			return types.HealthCheck{Status: types.StatusUnhealthy, Message: root + " is not a directory"}
		}
		return types.HealthCheck{
			Status:  types.StatusHealthy,
			Details: map[string]interface{}{"root": root},
		}
	}
}

// registryChecker lists the configured backends per family. A family with
// no backends cannot be flushed, which is reported but not fatal.
func registryChecker(registry *backends.Registry) types.HealthChecker {
	return func(context.Context) types.HealthCheck {
		details := make(map[string]interface{})
		status := types.StatusHealthy

		for _, family := range []types.CacheFamily{types.FamilyActionCache, types.FamilyCAS} {
			configured := registry.Configured(family)
			names := make([]string, 0, len(configured))
			for _, id := range configured {
				names = append(names, string(id))
			}
			details[string(family)] = names

			if len(names) == 0 {
				status = types.StatusUnknown
			}
		}

		return types.HealthCheck{Status: status, Details: details}
	}
}
