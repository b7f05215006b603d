package schemas

import (
	"strings"
	"time"
)

// -- Finding Schemas --

// Severity represents the severity level of a security finding, ranging from
// critical to informational.
type Severity string

// Constants defining the standard severity levels for findings.
const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// ParseSeverity maps a case-insensitive name onto a Severity. Unknown names map to SeverityMedium.
func ParseSeverity(s string) Severity {
	switch sev := Severity(strings.ToLower(strings.TrimSpace(s))); sev {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		return sev
	}
	return SeverityMedium
}

// Rank orders severities, higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// Location points at a position in an analyzed file. Line and Column are 1-based.
type Location struct {
	File    string `json:"file" yaml:"file"`
	Line    int    `json:"line" yaml:"line"`
	Column  int    `json:"column,omitempty" yaml:"column,omitempty"`
	Snippet string `json:"snippet,omitempty" yaml:"snippet,omitempty"`
}

// TraceStep is one variable version on the path from a sink argument back to
// the user input it was derived from.
type TraceStep struct {
	Name  string `json:"name" yaml:"name"`
	Line  int    `json:"line" yaml:"line"`
	Kind  string `json:"kind" yaml:"kind"`
	Scope string `json:"scope,omitempty" yaml:"scope,omitempty"`
}

// Finding encapsulates a single tainted flow into a sink. Trace[0] is the
// argument passed to the sink and the last step is the source.
type Finding struct {
	ID     string `json:"id" yaml:"id"`
	ScanID string `json:"scan_id" yaml:"scan_id"`

	// ObservedAt is the timestamp when the finding was produced.
	ObservedAt time.Time `json:"observed_at" yaml:"observed_at"`

	Target string `json:"target" yaml:"target"` // The analyzed file.
	Module string `json:"module" yaml:"module"`

	// VulnerabilityName is a descriptive name for the class, e.g. "SQL Injection".
	VulnerabilityName string   `json:"vulnerability_name" yaml:"vulnerability_name"`
	Class             string   `json:"class" yaml:"class"`
	Severity          Severity `json:"severity" yaml:"severity"`
	Description       string   `json:"description" yaml:"description"`
	Recommendation    string   `json:"recommendation" yaml:"recommendation"`
	CWE               []string `json:"cwe,omitempty" yaml:"cwe,omitempty"`
	// Weakness is the full title of the first CWE, filled in by enrichment.
	Weakness   string   `json:"weakness,omitempty" yaml:"weakness,omitempty"`
	References []string `json:"references,omitempty" yaml:"references,omitempty"`

	// Sink is the called function and Location the call site.
	Sink     string   `json:"sink" yaml:"sink"`
	Location Location `json:"location" yaml:"location"`
	// Sources lists the request keys the flow originates from.
	Sources []string    `json:"sources,omitempty" yaml:"sources,omitempty"`
	Trace   []TraceStep `json:"trace" yaml:"trace"`
	// Context identifies the chain of calls the flow was found in.
	Context string `json:"context,omitempty" yaml:"context,omitempty"`

	// Fingerprint is stable across runs for the same flow.
	Fingerprint string `json:"fingerprint" yaml:"fingerprint"`
}
