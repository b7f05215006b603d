package results

import (
	"sort"

	"github.com/xkilldash9x/phpsca/api/schemas"
)

// Prioritize sorts findings most severe first. Findings of equal severity
// keep source order.
func Prioritize(findings []schemas.Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		ri, rj := findings[i].Severity.Rank(), findings[j].Severity.Rank()
		if ri != rj {
			return ri > rj
		}
		li, lj := findings[i].Location, findings[j].Location
		if li.Line != lj.Line {
			return li.Line < lj.Line
		}
		return li.Column < lj.Column
	})
}

// filterBySeverity drops findings ranked below threshold in place and returns how
// many were dropped.
func filterBySeverity(findings []schemas.Finding, threshold schemas.Severity) ([]schemas.Finding, int) {
	if threshold == "" {
		return findings, 0
	}
	kept := findings[:0]
	for _, f := range findings {
		if f.Severity.Rank() >= threshold.Rank() {
			kept = append(kept, f)
		}
	}
	return kept, len(findings) - len(kept)
}
