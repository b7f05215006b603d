package reporting

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/phpsca/api/schemas"
)

// Document is the layout shared by the JSON and YAML formats.
type Document struct {
	Tool    string                    `json:"tool" yaml:"tool"`
	Version string                    `json:"version" yaml:"version"`
	Summary schemas.Summary           `json:"summary" yaml:"summary"`
	Results []*schemas.ResultEnvelope `json:"results" yaml:"results"`
}

// documentReporter buffers envelopes and encodes one Document on Close.
// Results are sorted by file so output does not depend on scheduling.
type documentReporter struct {
	writer  io.WriteCloser
	logger  *zap.Logger
	version string
	encode  func(io.Writer, *Document) error

	mu      sync.Mutex
	results []*schemas.ResultEnvelope
}

// NewJSONReporter writes an indented JSON document.
func NewJSONReporter(writer io.WriteCloser, toolVersion string, logger *zap.Logger) Reporter {
	return &documentReporter{
		writer:  writer,
		logger:  logger.Named("json_reporter"),
		version: toolVersion,
		encode: func(w io.Writer, doc *Document) error {
			out, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return err
			}
			_, err = w.Write(append(out, '\n'))
			return err
		},
	}
}

// NewYAMLReporter writes a single YAML document.
func NewYAMLReporter(writer io.WriteCloser, toolVersion string, logger *zap.Logger) Reporter {
	return &documentReporter{
		writer:  writer,
		logger:  logger.Named("yaml_reporter"),
		version: toolVersion,
		encode: func(w io.Writer, doc *Document) error {
			enc := yaml.NewEncoder(w)
			enc.SetIndent(2)
			if err := enc.Encode(doc); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func (r *documentReporter) Write(result *schemas.ResultEnvelope) error {
	if result == nil {
		return fmt.Errorf("cannot write a nil envelope")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
	return nil
}

func (r *documentReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sort.SliceStable(r.results, func(i, j int) bool { return r.results[i].File < r.results[j].File })
	doc := &Document{
		Tool:    ToolName,
		Version: r.version,
		Summary: schemas.Summarize(r.results),
		Results: r.results,
	}
	if doc.Results == nil {
		doc.Results = []*schemas.ResultEnvelope{}
	}

	encodeErr := r.encode(r.writer, doc)
	closeErr := r.writer.Close()
	if encodeErr != nil {
		r.logger.Error("Failed to encode report", zap.Error(encodeErr))
		return fmt.Errorf("failed to encode report: %w", encodeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	r.logger.Debug("Wrote report", zap.Int("files", doc.Summary.Files), zap.Int("findings", doc.Summary.Findings))
	return nil
}
