package reporting

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/xkilldash9x/phpsca/api/schemas"
	"github.com/xkilldash9x/phpsca/internal/analysis/static/php"
)

// ModuleName identifies the producer of findings in reports.
const ModuleName = "php_taint"

// FromAnalysis converts every recorded trace of an analysis into a Finding.
// Findings follow source order of the sink calls and, per call, recording
// order. src is used for snippets and may be nil.
func FromAnalysis(scanID string, a *php.Analysis, src []byte) *schemas.ResultEnvelope {
	now := time.Now().UTC()
	env := &schemas.ResultEnvelope{
		ScanID:    scanID,
		File:      a.File,
		Timestamp: now,
		Truncated: a.Truncated(),
		Findings:  []schemas.Finding{},
	}

	for _, call := range a.FuncCalls(false) {
		for _, tr := range call.Traces() {
			meta := tr.Class.Metadata()
			f := schemas.Finding{
				ScanID:            scanID,
				ObservedAt:        now,
				Target:            a.File,
				Module:            ModuleName,
				VulnerabilityName: meta.Name,
				Class:             string(tr.Class),
				Severity:          schemas.ParseSeverity(meta.Severity),
				Description:       meta.Description,
				Recommendation:    meta.Recommendation,
				CWE:               meta.CWE,
				Sink:              call.Name,
				Location: schemas.Location{
					File:    a.File,
					Line:    call.Pos.Line,
					Column:  call.Pos.Column,
					Snippet: lineAt(src, call.Pos.Offset),
				},
				Trace:   traceSteps(tr.Chain),
				Context: tr.Context,
			}
			if root := tr.Source(); root != nil && root.Index != "" {
				f.Sources = []string{root.Index}
			}
			f.Fingerprint = fingerprint(f, tr.Arg)
			f.ID = f.Fingerprint[:16]
			env.Findings = append(env.Findings, f)
		}
	}
	return env
}

// FromError builds the envelope of a file that could not be analyzed.
func FromError(scanID, file string, err error) *schemas.ResultEnvelope {
	return &schemas.ResultEnvelope{
		ScanID:    scanID,
		File:      file,
		Timestamp: time.Now().UTC(),
		Findings:  []schemas.Finding{},
		Error:     err.Error(),
	}
}

func traceSteps(chain []*php.Variable) []schemas.TraceStep {
	steps := make([]schemas.TraceStep, 0, len(chain))
	for _, v := range chain {
		name := v.Name
		if v.IsRoot() && v.Index != "" && v.Container != "" {
			name = fmt.Sprintf("%s[%s]", v.Container, v.Index)
		}
		step := schemas.TraceStep{Name: name, Line: v.Line, Kind: v.Kind.String()}
		if v.Scope != nil {
			step.Scope = v.Scope.Function()
		}
		steps = append(steps, step)
	}
	return steps
}

// fingerprint identifies a flow by what it connects rather than by IDs, so
// it survives unrelated edits to the file.
func fingerprint(f schemas.Finding, arg int) string {
	var names []string
	for _, s := range f.Trace {
		names = append(names, s.Name)
	}
	key := strings.Join([]string{
		f.Target, f.Class, f.Sink, fmt.Sprint(arg), f.Context, strings.Join(names, ">"),
	}, "|")
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// lineAt returns the trimmed source line containing offset.
func lineAt(src []byte, offset int) string {
	if offset < 0 || offset >= len(src) {
		return ""
	}
	start := bytes.LastIndexByte(src[:offset], '\n') + 1
	end := bytes.IndexByte(src[offset:], '\n')
	if end < 0 {
		end = len(src)
	} else {
		end += offset
	}
	return strings.TrimSpace(string(src[start:end]))
}
