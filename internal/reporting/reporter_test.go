// internal/reporting/reporter_test.go
package reporting_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/phpsca/internal/reporting"
)

const testToolVersion = "v1.0.0-test"

func TestNew_LoggerRequirement(t *testing.T) {
	r, err := reporting.New("sarif", "stdout", testToolVersion, nil)
	assert.Error(t, err)
	assert.Nil(t, r)
	assert.Contains(t, err.Error(), "logger cannot be nil")
}

func TestNew_Stdout(t *testing.T) {
	logger := zaptest.NewLogger(t)
	for _, path := range []string{"", "stdout"} {
		r, err := reporting.New("sarif", path, testToolVersion, logger)
		require.NoError(t, err)
		require.NotNil(t, r)
		// Close must not close os.Stdout.
		assert.NoError(t, r.Close())
	}
}

func TestNew_File(t *testing.T) {
	logger := zaptest.NewLogger(t)
	for _, format := range []string{"sarif", "json", "yaml", "text", "JSON"} {
		t.Run(format, func(t *testing.T) {
			outputPath := filepath.Join(t.TempDir(), "report.out")
			r, err := reporting.New(format, outputPath, testToolVersion, logger)
			require.NoError(t, err)
			assert.FileExists(t, outputPath)
			require.NoError(t, r.Close())

			info, err := os.Stat(outputPath)
			require.NoError(t, err)
			assert.Positive(t, info.Size(), "an empty report still has content")
		})
	}
}

func TestNew_UnsupportedFormat(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "never.out")
	r, err := reporting.New("html", outputPath, testToolVersion, zaptest.NewLogger(t))
	assert.Error(t, err)
	assert.Nil(t, r)
	assert.Contains(t, err.Error(), "unsupported output format: html")
	assert.NoFileExists(t, outputPath, "no file is created for an unsupported format")
}

func TestNew_UnwritablePath(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "missing", "dir", "report.sarif")
	r, err := reporting.New("sarif", outputPath, testToolVersion, zaptest.NewLogger(t))
	assert.Error(t, err)
	assert.Nil(t, r)
	assert.Contains(t, err.Error(), "failed to create output file")
}

func TestNewWithWriter(t *testing.T) {
	w := &MockWriteCloser{Buffer: new(bytes.Buffer)}
	r, err := reporting.NewWithWriter("text", w, testToolVersion, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.IsType(t, &reporting.TextReporter{}, r)
	require.NoError(t, r.Close())
	assert.True(t, w.Closed)

	_, err = reporting.NewWithWriter("xml", w, testToolVersion, zaptest.NewLogger(t))
	assert.Error(t, err)
}
