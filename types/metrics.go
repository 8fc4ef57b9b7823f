package types

import (
	"time"

	dto "github.com/prometheus/client_model/go"
)

type MetricsManager interface {
	LifecycleManager
	Counter(name string, labels map[string]string) Counter
	Gauge(name string, labels map[string]string) Gauge
	Histogram(name string, buckets []float64, labels map[string]string) Histogram
	Gather() ([]*dto.MetricFamily, error)
	Handler() FastHTTPHandler
}

type Counter interface {
	Inc()
	Add(value float64)
	Get() float64
}

type Gauge interface {
	Set(value float64)
	Inc()
	Dec()
	Add(value float64)
	Sub(value float64)
	Get() float64
}

type Histogram interface {
	Observe(value float64)
	ObserveDuration(start time.Time)
	GetCount() uint64
	GetSum() float64
}

// FamilyCounters is one cache family's slice of the metrics summary.
// A nil counter was absent from the payload.
type FamilyCounters struct {
	OperationsSuccess *int64 `json:"operations_success,omitempty"`
	OperationsFailure *int64 `json:"operations_failure,omitempty"`
	EntriesRemoved    *int64 `json:"entries_removed,omitempty"`
	BytesReclaimed    *int64 `json:"bytes_reclaimed,omitempty"`
}

func (c FamilyCounters) OperationsSuccessValue() int64 { return deref(c.OperationsSuccess) }
func (c FamilyCounters) OperationsFailureValue() int64 { return deref(c.OperationsFailure) }
func (c FamilyCounters) EntriesRemovedValue() int64    { return deref(c.EntriesRemoved) }
func (c FamilyCounters) BytesReclaimedValue() int64    { return deref(c.BytesReclaimed) }

type MetricsSnapshot struct {
	CacheTypes map[CacheFamily]FamilyCounters `json:"cache_types"`
}

// Family returns the counters for f, zero-valued when the family is absent.
func (s *MetricsSnapshot) Family(f CacheFamily) FamilyCounters {
	if s == nil || s.CacheTypes == nil {
		return FamilyCounters{}
	}
	return s.CacheTypes[f]
}

func Int64(v int64) *int64 {
	return &v
}

func deref(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
