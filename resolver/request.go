package resolver

import (
	"github.com/saiset-co/sai-cache-admin/types"
)

// FlushRequest is a validated flush for one cache family. It can only be
// obtained from this package and is immutable once built.
type FlushRequest struct {
	family   types.CacheFamily
	scope    types.Scope
	backends types.BackendSelection
}

func NewFlushRequest(family types.CacheFamily, scope types.Scope, backends types.BackendSelection) (*FlushRequest, error) {
	if !family.Valid() {
		return nil, types.NewInvalidEnum("cacheFamily", string(family))
	}
	if backends.Len() == 0 {
		return nil, types.NewEmptySelection()
	}
	if backends.Family() != family {
		return nil, types.Errorf(types.ErrFamilyMismatch, "selection is %s, request is %s", backends.Family(), family)
	}

	resolved, err := ResolveScope(string(scope.Kind), scope.InstanceName, scope.DigestPrefix)
	if err != nil {
		return nil, err
	}

	return &FlushRequest{family: family, scope: resolved, backends: backends}, nil
}

// FromActionCacheBody validates an Action Cache request body.
func FromActionCacheBody(body types.ActionCacheFlushBody) (*FlushRequest, error) {
	return fromBody(types.FamilyActionCache, body.Scope, body.InstanceName, body.DigestPrefix, body.Flags())
}

// FromCASBody validates a CAS request body.
func FromCASBody(body types.CASFlushBody) (*FlushRequest, error) {
	return fromBody(types.FamilyCAS, body.Scope, body.InstanceName, body.DigestPrefix, body.Flags())
}

func fromBody(family types.CacheFamily, rawScope, rawInstance, rawPrefix string, flags map[types.BackendID]bool) (*FlushRequest, error) {
	scope, err := ResolveScope(rawScope, rawInstance, rawPrefix)
	if err != nil {
		return nil, err
	}

	backends, err := ResolveBackends(family, flags)
	if err != nil {
		return nil, err
	}

	return NewFlushRequest(family, scope, backends)
}

func (r *FlushRequest) Family() types.CacheFamily {
	return r.family
}

func (r *FlushRequest) Scope() types.Scope {
	return r.scope
}

func (r *FlushRequest) Backends() types.BackendSelection {
	return r.backends
}

// ActionCacheBody is the wire form of an Action Cache request.
func (r *FlushRequest) ActionCacheBody() types.ActionCacheFlushBody {
	return types.ActionCacheFlushBody{
		Scope:         string(r.scope.Kind),
		InstanceName:  r.scope.InstanceName,
		DigestPrefix:  r.scope.DigestPrefix,
		FlushRedis:    r.backends.Has(types.BackendRedis),
		FlushInMemory: r.backends.Has(types.BackendInMemory),
	}
}

// CASBody is the wire form of a CAS request.
func (r *FlushRequest) CASBody() types.CASFlushBody {
	return types.CASFlushBody{
		Scope:               string(r.scope.Kind),
		InstanceName:        r.scope.InstanceName,
		DigestPrefix:        r.scope.DigestPrefix,
		FlushFilesystem:     r.backends.Has(types.BackendFilesystem),
		FlushInMemoryLRU:    r.backends.Has(types.BackendInMemoryLRU),
		FlushRedisWorkerMap: r.backends.Has(types.BackendRedisWorkerMap),
	}
}

// Body returns the wire body matching the request's family.
func (r *FlushRequest) Body() interface{} {
	if r.family == types.FamilyCAS {
		return r.CASBody()
	}
	return r.ActionCacheBody()
}
