package impact

import (
	"strings"

	"github.com/emberwatch/firecommand/pkg/core"
)

// Filter narrows a risk report the way the incident chat queries it.
// Zero values mean "no constraint"; MaxHours of 0 is treated as unbounded.
type Filter struct {
	MinHours   float64          `json:"min_time"`
	MaxHours   float64          `json:"max_time"`
	AssetTypes []core.AssetType `json:"asset_types"`
	NameQuery  string           `json:"name_query"`
}

// Apply returns the records matching f, preserving report order.
func (f Filter) Apply(records []core.RiskRecord) []core.RiskRecord {
	out := make([]core.RiskRecord, 0, len(records))
	query := strings.ToLower(strings.TrimSpace(f.NameQuery))
	for _, r := range records {
		if r.TimeToImpactHours < f.MinHours {
			continue
		}
		if f.MaxHours > 0 && r.TimeToImpactHours > f.MaxHours {
			continue
		}
		if len(f.AssetTypes) > 0 && !containsType(f.AssetTypes, r.Type) {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(r.Name), query) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func containsType(types []core.AssetType, t core.AssetType) bool {
	for _, v := range types {
		if v == t {
			return true
		}
	}
	return false
}

// MatchNames returns the records whose asset name contains any requested
// name, case-insensitively.
func MatchNames(records []core.RiskRecord, names []string) []core.RiskRecord {
	out := make([]core.RiskRecord, 0)
	for _, r := range records {
		lower := strings.ToLower(r.Name)
		for _, n := range names {
			n = strings.ToLower(strings.TrimSpace(n))
			if n != "" && strings.Contains(lower, n) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// Summary aggregates a risk report for the status line.
type Summary struct {
	Total         int                    `json:"total"`
	ByType        map[core.AssetType]int `json:"byType"`
	EarliestHours *float64               `json:"earliestHours,omitempty"`
	EarliestAsset string                 `json:"earliestAsset,omitempty"`
}

// Summarize counts records per asset type. records must be sorted by time.
func Summarize(records []core.RiskRecord) Summary {
	s := Summary{Total: len(records), ByType: make(map[core.AssetType]int)}
	for _, r := range records {
		s.ByType[r.Type]++
	}
	if len(records) > 0 {
		t := records[0].TimeToImpactHours
		s.EarliestHours = &t
		s.EarliestAsset = records[0].Name
	}
	return s
}
