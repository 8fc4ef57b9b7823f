package poller

import (
	"strconv"
	"time"

	"github.com/saiset-co/sai-cache-admin/types"
	"github.com/saiset-co/sai-cache-admin/utils"
)

// DisplayState is the dashboard's metrics view. Snapshot keeps the last
// good fetch even while the error indicator is showing.
type DisplayState struct {
	Snapshot       *types.MetricsSnapshot
	MetricsVisible bool
	ErrorVisible   bool
	ErrorMessage   string
	UpdatedAt      time.Time
	Sequence       uint64
}

// FamilyView is one family's counters formatted for display. Missing
// counters show as zero; BytesReclaimed is empty for Action Cache.
type FamilyView struct {
	Family            types.CacheFamily
	Title             string
	OperationsSuccess string
	OperationsFailure string
	EntriesRemoved    string
	BytesReclaimed    string
}

func (d DisplayState) Families() []FamilyView {
	var snapshot types.MetricsSnapshot
	if d.Snapshot != nil {
		snapshot = *d.Snapshot
	}

	views := make([]FamilyView, 0, 2)
	for _, family := range []types.CacheFamily{types.FamilyActionCache, types.FamilyCAS} {
		counters := snapshot.Family(family)
		view := FamilyView{
			Family:            family,
			Title:             family.DisplayName(),
			OperationsSuccess: strconv.FormatInt(counters.OperationsSuccessValue(), 10),
			OperationsFailure: strconv.FormatInt(counters.OperationsFailureValue(), 10),
			EntriesRemoved:    strconv.FormatInt(counters.EntriesRemovedValue(), 10),
		}
		if family == types.FamilyCAS {
			view.BytesReclaimed = utils.FormatBytes(counters.BytesReclaimedValue())
		}
		views = append(views, view)
	}

	return views
}
