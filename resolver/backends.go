package resolver

import (
	"github.com/saiset-co/sai-cache-admin/types"
)

// ResolveBackends returns the backends whose flag is set, in the family's
// canonical order. A flag for a backend outside the family is rejected even
// when false, so typos surface instead of being ignored.
func ResolveBackends(family types.CacheFamily, flags map[types.BackendID]bool) (types.BackendSelection, error) {
	if !family.Valid() {
		return types.BackendSelection{}, types.NewInvalidEnum("cacheFamily", string(family))
	}

	for id := range flags {
		if !family.Supports(id) {
			return types.BackendSelection{}, types.NewInvalidEnum("backend", string(id))
		}
	}

	selected := make([]types.BackendID, 0, len(flags))
	for _, id := range family.Backends() {
		if flags[id] {
			selected = append(selected, id)
		}
	}

	if len(selected) == 0 {
		return types.BackendSelection{}, types.NewEmptySelection()
	}

	return types.NewBackendSelection(family, selected), nil
}

// ResolveBackendNames is ResolveBackends for names typed by an operator,
// accepting wire ids and display names alike.
func ResolveBackendNames(family types.CacheFamily, names []string) (types.BackendSelection, error) {
	flags := make(map[types.BackendID]bool, len(names))
	for _, name := range names {
		id, ok := types.ParseBackendID(name)
		if !ok {
			return types.BackendSelection{}, types.NewInvalidEnum("backend", name)
		}
		flags[id] = true
	}
	return ResolveBackends(family, flags)
}
