package types

import "strings"

type CacheFamily string

const (
	FamilyActionCache CacheFamily = "action-cache"
	FamilyCAS         CacheFamily = "cas"
)

func (f CacheFamily) String() string {
	return string(f)
}

func (f CacheFamily) Valid() bool {
	return f == FamilyActionCache || f == FamilyCAS
}

// DisplayName is the label used in banners and dashboards.
func (f CacheFamily) DisplayName() string {
	switch f {
	case FamilyActionCache:
		return "Action Cache"
	case FamilyCAS:
		return "CAS"
	default:
		return string(f)
	}
}

// BackendID is the wire identifier of a physical backend. Breakdown maps in
// flush results and metric labels are keyed by it.
type BackendID string

const (
	BackendRedis          BackendID = "redis"
	BackendInMemory       BackendID = "in-memory"
	BackendFilesystem     BackendID = "filesystem"
	BackendInMemoryLRU    BackendID = "in-memory-lru"
	BackendRedisWorkerMap BackendID = "redis-worker-map"
)

var familyBackends = map[CacheFamily][]BackendID{
	FamilyActionCache: {BackendRedis, BackendInMemory},
	FamilyCAS:         {BackendFilesystem, BackendInMemoryLRU, BackendRedisWorkerMap},
}

var backendAliases = map[string]BackendID{
	"REDIS":            BackendRedis,
	"IN_MEMORY":        BackendInMemory,
	"FILESYSTEM":       BackendFilesystem,
	"IN_MEMORY_LRU":    BackendInMemoryLRU,
	"REDIS_WORKER_MAP": BackendRedisWorkerMap,
}

// Backends returns the canonical backend order for the family.
func (f CacheFamily) Backends() []BackendID {
	backends := familyBackends[f]
	out := make([]BackendID, len(backends))
	copy(out, backends)
	return out
}

func (f CacheFamily) Supports(id BackendID) bool {
	for _, backend := range familyBackends[f] {
		if backend == id {
			return true
		}
	}
	return false
}

// ParseBackendID accepts both wire ids ("in-memory-lru") and display
// names ("IN_MEMORY_LRU").
func ParseBackendID(raw string) (BackendID, bool) {
	raw = strings.TrimSpace(raw)
	if id, ok := backendAliases[strings.ToUpper(raw)]; ok {
		return id, true
	}
	id := BackendID(strings.ToLower(raw))
	for _, backends := range familyBackends {
		for _, backend := range backends {
			if backend == id {
				return id, true
			}
		}
	}
	return "", false
}

// DisplayName returns the upper-case label, e.g. IN_MEMORY_LRU.
func (b BackendID) DisplayName() string {
	for alias, id := range backendAliases {
		if id == b {
			return alias
		}
	}
	return string(b)
}

func (b BackendID) String() string {
	return string(b)
}

// BackendSelection is a validated, non-empty set of backends of one family,
// kept in canonical family order.
type BackendSelection struct {
	family   CacheFamily
	backends []BackendID
}

func NewBackendSelection(family CacheFamily, backends []BackendID) BackendSelection {
	out := make([]BackendID, len(backends))
	copy(out, backends)
	return BackendSelection{family: family, backends: out}
}

func (s BackendSelection) Family() CacheFamily {
	return s.family
}

func (s BackendSelection) IDs() []BackendID {
	out := make([]BackendID, len(s.backends))
	copy(out, s.backends)
	return out
}

func (s BackendSelection) Has(id BackendID) bool {
	for _, backend := range s.backends {
		if backend == id {
			return true
		}
	}
	return false
}

func (s BackendSelection) Len() int {
	return len(s.backends)
}
