package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saiset-co/sai-cache-admin/types"
)

func requireValidation(t *testing.T, err error, kind types.ValidationKind, field string) {
	t.Helper()
	verr, ok := types.AsValidationError(err)
	require.True(t, ok, "expected validation error, got %v", err)
	assert.Equal(t, kind, verr.Kind)
	assert.Equal(t, field, verr.Field)
}

func TestResolveScopeAllIgnoresOtherFields(t *testing.T) {
	for _, extra := range [][2]string{{"", ""}, {"  ", "\t"}, {"main", "abc"}} {
		scope, err := ResolveScope("ALL", extra[0], extra[1])
		require.NoError(t, err)
		assert.Equal(t, types.AllScope(), scope)
	}
}

func TestResolveScopeBlankScopedFields(t *testing.T) {
	for _, blank := range []string{"", " ", "\t\n "} {
		_, err := ResolveScope("INSTANCE", blank, "abc")
		requireValidation(t, err, types.MissingField, "instanceName")

		_, err = ResolveScope("DIGEST_PREFIX", "main", blank)
		requireValidation(t, err, types.MissingField, "digestPrefix")
	}
}

func TestResolveScopeTrimsValues(t *testing.T) {
	scope, err := ResolveScope("INSTANCE", "  shard-1 ", "")
	require.NoError(t, err)
	assert.Equal(t, types.InstanceScope("shard-1"), scope)

	scope, err = ResolveScope(" DIGEST_PREFIX ", "", " a1b2 ")
	require.NoError(t, err)
	assert.Equal(t, types.DigestPrefixScope("a1b2"), scope)
}

func TestResolveScopeRejectsUnknownTokens(t *testing.T) {
	for _, token := range []string{"", "all", "EVERYTHING", "INSTANCES"} {
		_, err := ResolveScope(token, "x", "y")
		verr, ok := types.AsValidationError(err)
		require.True(t, ok)
		assert.Equal(t, types.InvalidEnum, verr.Kind)
		assert.Equal(t, token, verr.Value)
	}
}

func TestResolveBackendsEveryCombination(t *testing.T) {
	families := map[types.CacheFamily][]types.BackendID{
		types.FamilyActionCache: {types.BackendRedis, types.BackendInMemory},
		types.FamilyCAS:         {types.BackendFilesystem, types.BackendInMemoryLRU, types.BackendRedisWorkerMap},
	}

	for family, ids := range families {
		for mask := 0; mask < 1<<len(ids); mask++ {
			flags := make(map[types.BackendID]bool, len(ids))
			var want []types.BackendID
			for i, id := range ids {
				on := mask&(1<<i) != 0
				flags[id] = on
				if on {
					want = append(want, id)
				}
			}

			selection, err := ResolveBackends(family, flags)
			if mask == 0 {
				requireValidation(t, err, types.EmptySelection, "backends")
				continue
			}
			require.NoError(t, err)
			assert.Equal(t, want, selection.IDs())
			assert.Equal(t, family, selection.Family())
		}
	}
}

func TestResolveBackendsRejectsForeignBackend(t *testing.T) {
	_, err := ResolveBackends(types.FamilyActionCache, map[types.BackendID]bool{
		types.BackendRedis:      true,
		types.BackendFilesystem: false,
	})
	requireValidation(t, err, types.InvalidEnum, "backend")
}

func TestResolveBackendNamesAcceptsAliases(t *testing.T) {
	selection, err := ResolveBackendNames(types.FamilyCAS, []string{"REDIS_WORKER_MAP", "filesystem"})
	require.NoError(t, err)
	assert.Equal(t, []types.BackendID{types.BackendFilesystem, types.BackendRedisWorkerMap}, selection.IDs())

	_, err = ResolveBackendNames(types.FamilyCAS, []string{"tape"})
	requireValidation(t, err, types.InvalidEnum, "backend")

	_, err = ResolveBackendNames(types.FamilyCAS, nil)
	requireValidation(t, err, types.EmptySelection, "backends")
}

func TestFromBodies(t *testing.T) {
	req, err := FromActionCacheBody(types.ActionCacheFlushBody{Scope: "INSTANCE", InstanceName: "main", FlushRedis: true})
	require.NoError(t, err)
	assert.Equal(t, types.FamilyActionCache, req.Family())
	assert.Equal(t, types.InstanceScope("main"), req.Scope())
	assert.Equal(t, types.ActionCacheFlushBody{Scope: "INSTANCE", InstanceName: "main", FlushRedis: true}, req.ActionCacheBody())

	_, err = FromActionCacheBody(types.ActionCacheFlushBody{Scope: "ALL"})
	requireValidation(t, err, types.EmptySelection, "backends")

	req, err = FromCASBody(types.CASFlushBody{Scope: "ALL", InstanceName: "ignored", FlushInMemoryLRU: true})
	require.NoError(t, err)
	assert.Equal(t, types.CASFlushBody{Scope: "ALL", FlushInMemoryLRU: true}, req.Body())
}

func TestNewFlushRequestRejectsMismatchedFamily(t *testing.T) {
	selection, err := ResolveBackends(types.FamilyCAS, map[types.BackendID]bool{types.BackendFilesystem: true})
	require.NoError(t, err)

	_, err = NewFlushRequest(types.FamilyActionCache, types.AllScope(), selection)
	assert.ErrorIs(t, err, types.ErrFamilyMismatch)

	_, err = NewFlushRequest(types.FamilyCAS, types.InstanceScope("  "), selection)
	requireValidation(t, err, types.MissingField, "instanceName")
}
