package main

import (
	"strings"

	"github.com/saiset-co/sai-cache-admin/resolver"
	"github.com/saiset-co/sai-cache-admin/types"
)

const promptUsage = "usage: <action|cas> <ALL | INSTANCE <name> | DIGEST_PREFIX <prefix>> <backend>[,<backend>...]"

// parsePrompt reads one dashboard command line, for example
// "cas DIGEST_PREFIX ab12 filesystem,in-memory-lru".
func parsePrompt(line string) (*resolver.FlushRequest, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return nil, types.Errorf(types.ErrInvalidParameter, promptUsage)
	}

	var family types.CacheFamily
	switch strings.ToLower(fields[0]) {
	case "action", "ac":
		family = types.FamilyActionCache
	case "cas":
		family = types.FamilyCAS
	default:
		return nil, types.Errorf(types.ErrInvalidParameter, "unknown cache %q, %s", fields[0], promptUsage)
	}

	scopeToken := strings.ToUpper(fields[1])
	rest := fields[2:]
	var value string
	if kind, ok := types.ParseScopeKind(scopeToken); ok && kind != types.ScopeAll {
		value = fields[2]
		rest = fields[3:]
	}
	if len(rest) == 0 {
		return nil, types.Errorf(types.ErrInvalidParameter, promptUsage)
	}

	scope, err := resolver.ResolveScope(scopeToken, value, value)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, field := range rest {
		for _, name := range strings.Split(field, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
	}

	selection, err := resolver.ResolveBackendNames(family, names)
	if err != nil {
		return nil, err
	}

	return resolver.NewFlushRequest(family, scope, selection)
}
