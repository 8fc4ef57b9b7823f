// Package resolver turns raw operator input into validated flush requests.
// Nothing here performs I/O; every entry point (CLI, HTTP handler, tests)
// goes through the same checks.
package resolver

import (
	"strings"

	"github.com/saiset-co/sai-cache-admin/types"
)

// ResolveScope validates a raw scope token and the field its variant needs.
// The scoped field is trimmed; a blank one is never coerced to ALL.
func ResolveScope(rawScope, rawInstance, rawDigestPrefix string) (types.Scope, error) {
	token := strings.TrimSpace(rawScope)

	kind, ok := types.ParseScopeKind(token)
	if !ok {
		return types.Scope{}, types.NewInvalidEnum("scope", rawScope)
	}

	switch kind {
	case types.ScopeInstance:
		instance := strings.TrimSpace(rawInstance)
		if instance == "" {
			return types.Scope{}, types.NewMissingField("instanceName")
		}
		return types.InstanceScope(instance), nil
	case types.ScopeDigestPrefix:
		prefix := strings.TrimSpace(rawDigestPrefix)
		if prefix == "" {
			return types.Scope{}, types.NewMissingField("digestPrefix")
		}
		return types.DigestPrefixScope(prefix), nil
	default:
		return types.AllScope(), nil
	}
}
