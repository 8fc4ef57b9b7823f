package client

import (
	"github.com/saiset-co/sai-cache-admin/types"
	"github.com/saiset-co/sai-cache-admin/utils"
)

type flushResultWire struct {
	Success                 *bool            `json:"success"`
	Message                 string           `json:"message"`
	EntriesRemoved          *int64           `json:"entriesRemoved"`
	EntriesRemovedByBackend map[string]int64 `json:"entriesRemovedByBackend"`
	BytesReclaimed          *int64           `json:"bytesReclaimed"`
	BytesReclaimedByBackend map[string]int64 `json:"bytesReclaimedByBackend"`
}

// ParseFlushResult decodes a flush response body. success and
// entriesRemoved are required; everything else is kept as sent.
func ParseFlushResult(body []byte) (*types.FlushResult, error) {
	var wire flushResultWire
	if err := utils.Unmarshal(body, &wire); err != nil {
		return nil, types.Errorf(types.ErrClientResponseInvalid, "%v", err)
	}

	if wire.Success == nil {
		return nil, types.Errorf(types.ErrClientResponseInvalid, "missing field success")
	}
	if wire.EntriesRemoved == nil {
		return nil, types.Errorf(types.ErrClientResponseInvalid, "missing field entriesRemoved")
	}

	return &types.FlushResult{
		Success:                 *wire.Success,
		Message:                 wire.Message,
		EntriesRemoved:          *wire.EntriesRemoved,
		EntriesRemovedByBackend: wire.EntriesRemovedByBackend,
		BytesReclaimed:          wire.BytesReclaimed,
		BytesReclaimedByBackend: wire.BytesReclaimedByBackend,
	}, nil
}

// ParseMetricsSnapshot decodes a metrics summary body. Families and
// counters may be missing; cache_types itself may not.
func ParseMetricsSnapshot(body []byte) (*types.MetricsSnapshot, error) {
	var snapshot types.MetricsSnapshot
	if err := utils.Unmarshal(body, &snapshot); err != nil {
		return nil, types.Errorf(types.ErrClientResponseInvalid, "%v", err)
	}

	if snapshot.CacheTypes == nil {
		return nil, types.Errorf(types.ErrClientResponseInvalid, "missing field cache_types")
	}

	return &snapshot, nil
}
