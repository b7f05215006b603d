package schemas

import "time"

// -- Result Schemas --

// ResultEnvelope is the top level wrapper for the results of analyzing one file.
type ResultEnvelope struct {
	ScanID    string    `json:"scan_id" yaml:"scan_id"`
	File      string    `json:"file" yaml:"file"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Findings  []Finding `json:"findings" yaml:"findings"`
	// Truncated is set when the analysis stopped at its step budget.
	Truncated bool `json:"truncated,omitempty" yaml:"truncated,omitempty"`
	// Error holds the reason the file could not be analyzed, such as a syntax error.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Failed reports whether the file could not be analyzed.
func (r *ResultEnvelope) Failed() bool { return r.Error != "" }

// Summary aggregates a set of envelopes.
type Summary struct {
	Files      int              `json:"files" yaml:"files"`
	Failed     int              `json:"failed" yaml:"failed"`
	Findings   int              `json:"findings" yaml:"findings"`
	BySeverity map[Severity]int `json:"by_severity" yaml:"by_severity"`
}

// Summarize counts files, failures and findings per severity.
func Summarize(envelopes []*ResultEnvelope) Summary {
	s := Summary{BySeverity: make(map[Severity]int)}
	for _, env := range envelopes {
		if env == nil {
			continue
		}
		s.Files++
		if env.Failed() {
			s.Failed++
		}
		for _, f := range env.Findings {
			s.Findings++
			s.BySeverity[f.Severity]++
		}
	}
	return s
}
