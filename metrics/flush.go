package metrics

import (
	"strconv"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/saiset-co/sai-cache-admin/types"
)

const (
	OperationsMetric     = "cache_flush_operations_total"
	EntriesRemovedMetric = "cache_flush_entries_removed_total"
	BytesReclaimedMetric = "cache_flush_bytes_reclaimed_total"
	DurationMetric       = "cache_flush_duration_seconds"

	labelCacheType = "cache_type"
	labelBackend   = "backend"
	labelScope     = "scope"
	labelSuccess   = "success"
)

var durationBuckets = []float64{0.005, 0.05, 0.25, 1, 5, 30, 120}

// FlushMetrics records per-backend flush outcomes and folds them back
// into the per-family summary served by the admin API.
type FlushMetrics struct {
	metrics *PrometheusMetrics
}

func NewFlushMetrics(metrics *PrometheusMetrics) *FlushMetrics {
	return &FlushMetrics{metrics: metrics}
}

func (m *FlushMetrics) RecordOutcome(family types.CacheFamily, scope types.ScopeKind, outcome types.BackendOutcome) {
	labels := map[string]string{
		labelCacheType: string(family),
		labelBackend:   string(outcome.Backend),
		labelScope:     string(scope),
	}

	opLabels := map[string]string{labelSuccess: strconv.FormatBool(outcome.Err == nil)}
	for k, v := range labels {
		opLabels[k] = v
	}
	m.metrics.Counter(OperationsMetric, opLabels).Inc()

	if outcome.EntriesRemoved > 0 {
		m.metrics.Counter(EntriesRemovedMetric, labels).Add(float64(outcome.EntriesRemoved))
	}

	if family == types.FamilyCAS && outcome.BytesReclaimed > 0 {
		m.metrics.Counter(BytesReclaimedMetric, labels).Add(float64(outcome.BytesReclaimed))
	}
}

func (m *FlushMetrics) ObserveDuration(family types.CacheFamily, start time.Time) {
	m.metrics.Histogram(DurationMetric, durationBuckets, map[string]string{labelCacheType: string(family)}).ObserveDuration(start)
}

// Summary sums every recorded series per family, across all backends and
// scopes. Both families are always present; bytes_reclaimed is CAS only.
func (m *FlushMetrics) Summary() (*types.MetricsSnapshot, error) {
	families, err := m.metrics.Gather()
	if err != nil {
		return nil, types.WrapError(err, "failed to gather flush metrics")
	}

	type totals struct {
		success, failure, entries, bytes int64
	}
	byFamily := map[types.CacheFamily]*totals{
		types.FamilyActionCache: {},
		types.FamilyCAS:         {},
	}

	operations := m.metrics.FullName(OperationsMetric)
	entries := m.metrics.FullName(EntriesRemovedMetric)
	bytes := m.metrics.FullName(BytesReclaimedMetric)

	for _, mf := range families {
		name := mf.GetName()
		if name != operations && name != entries && name != bytes {
			continue
		}

		for _, metric := range mf.GetMetric() {
			t, ok := byFamily[types.CacheFamily(labelValue(metric, labelCacheType))]
			if !ok {
				continue
			}

			value := int64(metric.GetCounter().GetValue())
			switch name {
			case operations:
				if labelValue(metric, labelSuccess) == "true" {
					t.success += value
				} else {
					t.failure += value
				}
			case entries:
				t.entries += value
			case bytes:
				t.bytes += value
			}
		}
	}

	snapshot := &types.MetricsSnapshot{CacheTypes: make(map[types.CacheFamily]types.FamilyCounters, len(byFamily))}
	for family, t := range byFamily {
		counters := types.FamilyCounters{
			OperationsSuccess: types.Int64(t.success),
			OperationsFailure: types.Int64(t.failure),
			EntriesRemoved:    types.Int64(t.entries),
		}
		if family == types.FamilyCAS {
			counters.BytesReclaimed = types.Int64(t.bytes)
		}
		snapshot.CacheTypes[family] = counters
	}

	return snapshot, nil
}

func labelValue(metric *dto.Metric, name string) string {
	for _, label := range metric.GetLabel() {
		if label.GetName() == name {
			return label.GetValue()
		}
	}
	return ""
}
