// -- internal/reporting/reporter.go --
package reporting

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/phpsca/api/schemas"
)

// Reporter defines the interface for writing scan results to an output.
// Implementations are safe for concurrent use.
type Reporter interface {
	// Write processes a single result envelope.
	Write(result *schemas.ResultEnvelope) error
	// Close finalizes the report and closes any underlying resources (e.g., file handles).
	Close() error
}

// Supported output formats.
const (
	FormatSARIF = "sarif"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
	FormatText  = "text"
)

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a new reporter based on the specified format and output path.
// An empty path or "stdout" writes to standard output.
func New(format, outputPath, toolVersion string, logger *zap.Logger) (Reporter, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	format = strings.ToLower(format)
	if !supported(format) {
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	var writer io.WriteCloser
	if outputPath == "" || outputPath == "stdout" {
		// Wrap Stdout so Close() is a no-op.
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}
	return NewWithWriter(format, writer, toolVersion, logger)
}

// NewWithWriter creates a reporter that takes ownership of writer.
func NewWithWriter(format string, writer io.WriteCloser, toolVersion string, logger *zap.Logger) (Reporter, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	switch strings.ToLower(format) {
	case FormatSARIF:
		return NewSARIFReporter(writer, toolVersion, logger), nil
	case FormatJSON:
		return NewJSONReporter(writer, toolVersion, logger), nil
	case FormatYAML:
		return NewYAMLReporter(writer, toolVersion, logger), nil
	case FormatText:
		return NewTextReporter(writer, logger), nil
	}
	return nil, fmt.Errorf("unsupported output format: %s", format)
}

func supported(format string) bool {
	switch format {
	case FormatSARIF, FormatJSON, FormatYAML, FormatText:
		return true
	}
	return false
}
