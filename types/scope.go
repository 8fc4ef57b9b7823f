package types

type ScopeKind string

const (
	ScopeAll          ScopeKind = "ALL"
	ScopeInstance     ScopeKind = "INSTANCE"
	ScopeDigestPrefix ScopeKind = "DIGEST_PREFIX"
)

// ParseScopeKind reports whether token is one of the literal scope tokens.
func ParseScopeKind(token string) (ScopeKind, bool) {
	switch ScopeKind(token) {
	case ScopeAll, ScopeInstance, ScopeDigestPrefix:
		return ScopeKind(token), true
	default:
		return "", false
	}
}

func (k ScopeKind) String() string {
	return string(k)
}

// Scope is the breadth of a flush. Only the field belonging to Kind is
// meaningful; constructors in the resolver package guarantee it is non-blank.
type Scope struct {
	Kind         ScopeKind
	InstanceName string
	DigestPrefix string
}

func AllScope() Scope {
	return Scope{Kind: ScopeAll}
}

func InstanceScope(instanceName string) Scope {
	return Scope{Kind: ScopeInstance, InstanceName: instanceName}
}

func DigestPrefixScope(digestPrefix string) Scope {
	return Scope{Kind: ScopeDigestPrefix, DigestPrefix: digestPrefix}
}

func (s Scope) String() string {
	switch s.Kind {
	case ScopeInstance:
		return string(s.Kind) + "(" + s.InstanceName + ")"
	case ScopeDigestPrefix:
		return string(s.Kind) + "(" + s.DigestPrefix + ")"
	default:
		return string(s.Kind)
	}
}
