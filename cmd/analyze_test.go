// File: cmd/analyze_test.go
package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/phpsca/api/schemas"
	"github.com/xkilldash9x/phpsca/internal/config"
	"github.com/xkilldash9x/phpsca/internal/reporting"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// newProject lays out a small tree with one vulnerable file, one safe file,
// one broken file and files that must be skipped.
func newProject(t *testing.T) string {
	dir := t.TempDir()
	writeFile(t, dir, "vuln.php", "<?php\nsystem($_GET['cmd']);\n")
	writeFile(t, dir, "lib/safe.php", "<?php\necho htmlspecialchars($_GET['q']);\n")
	writeFile(t, dir, "lib/broken.php", "<?php\n$x = ;\n")
	writeFile(t, dir, "notes.txt", "system($_GET['cmd']);\n")
	writeFile(t, dir, ".git/hook.php", "<?php\nsystem($_GET['cmd']);\n")
	return dir
}

func TestAnalyzeCmd_JSONReport(t *testing.T) {
	dir := newProject(t)

	out, err := executeCommand(t, "analyze", dir, "--format", "json")
	require.NoError(t, err)

	var doc reporting.Document
	require.NoError(t, jsoniter.Unmarshal([]byte(out), &doc))
	assert.Equal(t, reporting.ToolName, doc.Tool)
	assert.Equal(t, 3, doc.Summary.Files)
	assert.Equal(t, 1, doc.Summary.Failed)
	assert.Equal(t, 1, doc.Summary.Findings)

	require.Len(t, doc.Results, 3)
	var findings []schemas.Finding
	for _, res := range doc.Results {
		findings = append(findings, res.Findings...)
	}
	require.Len(t, findings, 1)
	assert.Equal(t, "system", findings[0].Sink)
	assert.Equal(t, filepath.Join(dir, "vuln.php"), findings[0].Location.File)
	assert.Equal(t, 2, findings[0].Location.Line)
	assert.Equal(t, []string{"cmd"}, findings[0].Sources)
}

func TestAnalyzeCmd_MinSeverityAndEnrichment(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "page.php", "<?php\necho $_GET['q'];\nsystem($_POST['c']);\n")

	out, err := executeCommand(t, "analyze", dir, "--format", "json", "--min-severity", "critical")
	require.NoError(t, err)

	var doc reporting.Document
	require.NoError(t, jsoniter.Unmarshal([]byte(out), &doc))
	require.Len(t, doc.Results, 1)
	require.Len(t, doc.Results[0].Findings, 1, "the high severity echo is dropped")
	f := doc.Results[0].Findings[0]
	assert.Equal(t, "system", f.Sink)
	assert.Contains(t, f.Weakness, "OS Command Injection")
	assert.Equal(t, []string{"https://cwe.mitre.org/data/definitions/78.html"}, f.References)
}

func TestAnalyzeCmd_FailOnFindings(t *testing.T) {
	dir := newProject(t)

	_, err := executeCommand(t, "analyze", dir, "--fail-on-findings")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFindingsReported))

	clean := t.TempDir()
	writeFile(t, clean, "ok.php", "<?php\necho 'hello';\n")
	_, err = executeCommand(t, "analyze", clean, "--fail-on-findings")
	assert.NoError(t, err)
}

func TestAnalyzeCmd_OutputFile(t *testing.T) {
	dir := newProject(t)
	report := filepath.Join(t.TempDir(), "report.sarif")

	out, err := executeCommand(t, "analyze", filepath.Join(dir, "vuln.php"), "-f", "sarif", "-o", report)
	require.NoError(t, err)
	assert.Empty(t, out, "the report goes to the file, not stdout")

	raw, err := os.ReadFile(report)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"version": "2.1.0"`)
	assert.Contains(t, string(raw), "system")
}

func TestAnalyzeCmd_Errors(t *testing.T) {
	_, err := executeCommand(t, "analyze")
	assert.Error(t, err, "at least one path is required")

	_, err = executeCommand(t, "analyze", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot access")

	_, err = executeCommand(t, "analyze", t.TempDir(), "--format", "html")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format: html")

	_, err = executeCommand(t, "analyze", t.TempDir(), "--min-severity", "severe")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--min-severity must be one of")

	_, err = executeCommand(t, "analyze", t.TempDir(), "--concurrency", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--concurrency must be a positive integer")
}

func TestApplyAnalyzeFlagOverrides(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		expect func(t *testing.T, sc config.ScanConfig)
	}{
		{
			name: "unset flags keep configured values",
			args: nil,
			expect: func(t *testing.T, sc config.ScanConfig) {
				assert.Equal(t, 4, sc.Concurrency)
				assert.Equal(t, "text", sc.Format)
				assert.Equal(t, "stdout", sc.Output)
				assert.Equal(t, []string{".php"}, sc.Extensions)
				assert.False(t, sc.FailOnFindings)
				assert.Equal(t, "info", sc.MinSeverity)
			},
		},
		{
			name: "flags override configuration",
			args: []string{"-j", "9", "-f", "SARIF", "-o", "out.sarif", "--ext", ".php,.inc", "--fail-on-findings", "--min-severity", "HIGH"},
			expect: func(t *testing.T, sc config.ScanConfig) {
				assert.Equal(t, 9, sc.Concurrency)
				assert.Equal(t, "sarif", sc.Format)
				assert.Equal(t, "out.sarif", sc.Output)
				assert.Equal(t, []string{".php", ".inc"}, sc.Extensions)
				assert.True(t, sc.FailOnFindings)
				assert.Equal(t, "high", sc.MinSeverity)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newAnalyzeCmd()
			require.NoError(t, cmd.ParseFlags(tt.args))
			cfg := config.NewDefaultConfig()
			require.NoError(t, applyAnalyzeFlagOverrides(cmd, cfg))
			tt.expect(t, cfg.Scan())
		})
	}
}

func TestCollectFiles(t *testing.T) {
	dir := newProject(t)
	explicit := writeFile(t, dir, "tpl/page.phtml", "<?php echo 1;")

	files, err := collectFiles([]string{dir, explicit, filepath.Join(dir, "vuln.php")}, []string{".php"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "lib", "broken.php"),
		filepath.Join(dir, "lib", "safe.php"),
		explicit,
		filepath.Join(dir, "vuln.php"),
	}, files)

	files, err = collectFiles([]string{dir}, []string{".PHTML"})
	require.NoError(t, err)
	assert.Equal(t, []string{explicit}, files)
}

func TestRunAnalyze_Canceled(t *testing.T) {
	dir := newProject(t)
	cfg := config.NewDefaultConfig()
	sc := cfg.Scan()
	sc.Targets = []string{dir}
	cfg.SetScanConfig(sc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := runAnalyze(ctx, zaptest.NewLogger(t), cfg, &out)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyzeCmd_RequiresConfig(t *testing.T) {
	cmd := newAnalyzeCmd()
	cmd.SetArgs([]string{t.TempDir()})
	cmd.SetContext(context.Background())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	assert.EqualError(t, err, "configuration not found in context")
}
