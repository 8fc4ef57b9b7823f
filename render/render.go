package render

import (
	"sort"
	"strconv"
	"strings"

	"github.com/saiset-co/sai-cache-admin/types"
	"github.com/saiset-co/sai-cache-admin/utils"
)

const (
	successText       = "✓ Operation completed successfully"
	failurePrefix     = "✗ Operation failed: "
	transportPrefix   = "Error: "
	entriesTitle      = "Entries removed by backend"
	bytesTitle        = "Bytes reclaimed by backend"
	entriesLinePrefix = "Entries removed: "
	bytesLinePrefix   = "Bytes reclaimed: "
)

type Banner struct {
	Success bool
	Text    string
}

type BreakdownRow struct {
	Backend string
	Value   string
}

type Breakdown struct {
	Title string
	Rows  []BreakdownRow
}

// DisplayModel is a rendered flush outcome, independent of any output medium.
type DisplayModel struct {
	Banner     Banner
	Lines      []string
	Breakdowns []Breakdown
}

// Render turns a flush result into a display model. Totals are shown as
// reported; breakdowns appear only when the result carries them.
func Render(result *types.FlushResult, family types.CacheFamily) *DisplayModel {
	model := &DisplayModel{}

	if result.Success {
		model.Banner = Banner{Success: true, Text: successText}
	} else {
		model.Banner = Banner{Success: false, Text: failurePrefix + utils.FirstNonEmpty(result.Message, types.FallbackErrorMessage)}
	}

	model.Lines = append(model.Lines, entriesLinePrefix+strconv.FormatInt(result.EntriesRemoved, 10))

	if family == types.FamilyCAS {
		var bytes int64
		if result.BytesReclaimed != nil {
			bytes = *result.BytesReclaimed
		}
		model.Lines = append(model.Lines, bytesLinePrefix+utils.FormatBytes(bytes))
	}

	if result.EntriesRemovedByBackend != nil {
		model.Breakdowns = append(model.Breakdowns, breakdown(entriesTitle, family, result.EntriesRemovedByBackend, func(v int64) string {
			return strconv.FormatInt(v, 10)
		}))
	}

	if family == types.FamilyCAS && result.BytesReclaimedByBackend != nil {
		model.Breakdowns = append(model.Breakdowns, breakdown(bytesTitle, family, result.BytesReclaimedByBackend, utils.FormatBytes))
	}

	return model
}

// RenderError builds the failure banner for a request that never produced
// a flush result.
func RenderError(message string) *DisplayModel {
	return &DisplayModel{
		Banner: Banner{
			Success: false,
			Text:    transportPrefix + utils.FirstNonEmpty(message, types.FallbackErrorMessage),
		},
	}
}

// Text renders the model as plain text, one item per line.
func (m *DisplayModel) Text() string {
	var sb strings.Builder

	sb.WriteString(m.Banner.Text)
	sb.WriteByte('\n')

	for _, line := range m.Lines {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}

	for _, b := range m.Breakdowns {
		sb.WriteString(b.Title)
		sb.WriteString(":\n")
		for _, row := range b.Rows {
			sb.WriteString("  ")
			sb.WriteString(row.Backend)
			sb.WriteString(": ")
			sb.WriteString(row.Value)
			sb.WriteByte('\n')
		}
	}

	return sb.String()
}

func breakdown(title string, family types.CacheFamily, values map[string]int64, format func(int64) string) Breakdown {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sortBackendKeys(family, keys)

	rows := make([]BreakdownRow, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, BreakdownRow{Backend: k, Value: format(values[k])})
	}

	return Breakdown{Title: title, Rows: rows}
}

// sortBackendKeys puts the family's known backends first in canonical
// order, then anything else alphabetically.
func sortBackendKeys(family types.CacheFamily, keys []string) {
	rank := make(map[types.BackendID]int)
	for i, id := range family.Backends() {
		rank[id] = i
	}

	position := func(key string) int {
		if id, ok := types.ParseBackendID(key); ok {
			if r, known := rank[id]; known {
				return r
			}
		}
		return len(rank)
	}

	sort.SliceStable(keys, func(i, j int) bool {
		pi, pj := position(keys[i]), position(keys[j])
		if pi != pj {
			return pi < pj
		}
		return keys[i] < keys[j]
	})
}
