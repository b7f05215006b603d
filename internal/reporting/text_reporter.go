package reporting

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/phpsca/api/schemas"
)

// TextReporter prints findings as they arrive, one block per finding, and a
// summary line on Close.
type TextReporter struct {
	writer io.WriteCloser
	logger *zap.Logger

	mu        sync.Mutex
	out       *bufio.Writer
	envelopes []*schemas.ResultEnvelope
}

func NewTextReporter(writer io.WriteCloser, logger *zap.Logger) *TextReporter {
	return &TextReporter{
		writer: writer,
		logger: logger.Named("text_reporter"),
		out:    bufio.NewWriter(writer),
	}
}

func (r *TextReporter) Write(result *schemas.ResultEnvelope) error {
	if result == nil {
		return fmt.Errorf("cannot write a nil envelope")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envelopes = append(r.envelopes, result)

	if result.Failed() {
		fmt.Fprintf(r.out, "%s: analysis failed: %s\n", result.File, result.Error)
	}
	for _, f := range result.Findings {
		fmt.Fprintf(r.out, "%s:%d: [%s] %s in %s\n",
			f.Location.File, f.Location.Line, strings.ToUpper(string(f.Severity)), f.VulnerabilityName, f.Sink)
		if f.Context != "" {
			fmt.Fprintf(r.out, "    via %s\n", f.Context)
		}
		for _, step := range f.Trace {
			fmt.Fprintf(r.out, "    <- %s\n", stepLabel(step))
		}
	}
	if result.Truncated {
		fmt.Fprintf(r.out, "%s: analysis truncated, results may be incomplete\n", result.File)
	}
	return r.out.Flush()
}

func (r *TextReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := schemas.Summarize(r.envelopes)
	fmt.Fprintf(r.out, "%d file(s) analyzed, %d failed, %d finding(s)", s.Files, s.Failed, s.Findings)
	if s.Findings > 0 {
		var parts []string
		for _, sev := range []schemas.Severity{schemas.SeverityCritical, schemas.SeverityHigh, schemas.SeverityMedium, schemas.SeverityLow, schemas.SeverityInfo} {
			if n := s.BySeverity[sev]; n > 0 {
				parts = append(parts, fmt.Sprintf("%s: %d", sev, n))
			}
		}
		fmt.Fprintf(r.out, " (%s)", strings.Join(parts, ", "))
	}
	fmt.Fprintln(r.out)

	flushErr := r.out.Flush()
	closeErr := r.writer.Close()
	if flushErr != nil {
		return fmt.Errorf("failed to write text report: %w", flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	return nil
}

// stepLabel renders a trace step as "$name (kind, line N in scope)".
func stepLabel(step schemas.TraceStep) string {
	where := fmt.Sprintf("line %d", step.Line)
	if step.Scope != "" {
		where += " in " + step.Scope
	}
	return fmt.Sprintf("%s (%s, %s)", step.Name, step.Kind, where)
}
