package types

// ActionCacheFlushBody is the request body of POST /admin/v1/cache/action/flush.
type ActionCacheFlushBody struct {
	Scope         string `json:"scope"`
	InstanceName  string `json:"instanceName,omitempty" validate:"max=256"`
	DigestPrefix  string `json:"digestPrefix,omitempty" validate:"omitempty,max=128,digest_prefix"`
	FlushRedis    bool   `json:"flushRedis"`
	FlushInMemory bool   `json:"flushInMemory"`
}

// CASFlushBody is the request body of POST /admin/v1/cache/cas/flush.
type CASFlushBody struct {
	Scope               string `json:"scope"`
	InstanceName        string `json:"instanceName,omitempty" validate:"max=256"`
	DigestPrefix        string `json:"digestPrefix,omitempty" validate:"omitempty,max=128,digest_prefix"`
	FlushFilesystem     bool   `json:"flushFilesystem"`
	FlushInMemoryLRU    bool   `json:"flushInMemoryLRU"`
	FlushRedisWorkerMap bool   `json:"flushRedisWorkerMap"`
}

func (b ActionCacheFlushBody) Flags() map[BackendID]bool {
	return map[BackendID]bool{
		BackendRedis:    b.FlushRedis,
		BackendInMemory: b.FlushInMemory,
	}
}

func (b CASFlushBody) Flags() map[BackendID]bool {
	return map[BackendID]bool{
		BackendFilesystem:     b.FlushFilesystem,
		BackendInMemoryLRU:    b.FlushInMemoryLRU,
		BackendRedisWorkerMap: b.FlushRedisWorkerMap,
	}
}

// FlushResult is the outcome of one flush across the selected backends.
// Breakdown maps are keyed by backend wire id and are nil when the
// upstream did not report them. Byte fields only apply to CAS.
type FlushResult struct {
	Success                 bool             `json:"success"`
	Message                 string           `json:"message,omitempty"`
	EntriesRemoved          int64            `json:"entriesRemoved"`
	EntriesRemovedByBackend map[string]int64 `json:"entriesRemovedByBackend,omitempty"`
	BytesReclaimed          *int64           `json:"bytesReclaimed,omitempty"`
	BytesReclaimedByBackend map[string]int64 `json:"bytesReclaimedByBackend,omitempty"`
}

// BackendOutcome is what a single backend adapter reports for one flush.
type BackendOutcome struct {
	Backend        BackendID
	EntriesRemoved int64
	BytesReclaimed int64
	Err            error
}
