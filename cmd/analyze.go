// File: cmd/analyze.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/phpsca/api/schemas"
	"github.com/xkilldash9x/phpsca/internal/analysis/core"
	"github.com/xkilldash9x/phpsca/internal/analysis/static/php"
	"github.com/xkilldash9x/phpsca/internal/config"
	"github.com/xkilldash9x/phpsca/internal/observability"
	"github.com/xkilldash9x/phpsca/internal/reporting"
	"github.com/xkilldash9x/phpsca/internal/results"
	"github.com/xkilldash9x/phpsca/internal/results/providers"
)

// ErrFindingsReported is returned when --fail-on-findings is set and the run
// reported at least one finding.
var ErrFindingsReported = errors.New("findings reported")

// newAnalyzeCmd creates and configures the `analyze` command.
func newAnalyzeCmd() *cobra.Command {
	analyzeCmd := &cobra.Command{
		Use:     "analyze [paths...]",
		Aliases: []string{"scan"},
		Short:   "Analyzes PHP files and directories for tainted data flows",
		Long: `Parses every PHP file under the given paths, tracks user-controlled data
from superglobals and source functions, and reports each flow that reaches a
dangerous call without a matching sanitizer.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if err := applyAnalyzeFlagOverrides(cmd, cfg); err != nil {
				return err
			}
			sc := cfg.Scan()
			sc.Targets = args
			cfg.SetScanConfig(sc)

			return runAnalyze(ctx, logger, cfg, cmd.OutOrStdout())
		},
	}

	analyzeCmd.Flags().StringP("output", "o", "", "Output file path for the report. (Overrides config/env, default stdout)")
	analyzeCmd.Flags().StringP("format", "f", "", "Report format: text, json, yaml or sarif. (Overrides config/env)")
	analyzeCmd.Flags().IntP("concurrency", "j", 0, "Number of files analyzed in parallel. (Overrides config/env)")
	analyzeCmd.Flags().StringSlice("ext", nil, "File extensions to analyze when walking directories. (Overrides config/env)")
	analyzeCmd.Flags().String("min-severity", "", "Drop findings below this severity: info, low, medium, high or critical. (Overrides config/env)")
	analyzeCmd.Flags().Bool("fail-on-findings", false, "Exit with status 2 when any finding is reported.")

	return analyzeCmd
}

// applyAnalyzeFlagOverrides copies explicitly set flags over the loaded
// scan configuration.
func applyAnalyzeFlagOverrides(cmd *cobra.Command, cfg config.Interface) error {
	sc := cfg.Scan()
	flags := cmd.Flags()

	if flags.Changed("output") {
		sc.Output, _ = flags.GetString("output")
	}
	if flags.Changed("format") {
		format, _ := flags.GetString("format")
		sc.Format = strings.ToLower(format)
	}
	if flags.Changed("concurrency") {
		n, _ := flags.GetInt("concurrency")
		if n <= 0 {
			return fmt.Errorf("--concurrency must be a positive integer, got %d", n)
		}
		sc.Concurrency = n
	}
	if flags.Changed("ext") {
		sc.Extensions, _ = flags.GetStringSlice("ext")
	}
	if flags.Changed("min-severity") {
		sev, _ := flags.GetString("min-severity")
		sev = strings.ToLower(sev)
		if schemas.ParseSeverity(sev) != schemas.Severity(sev) {
			return fmt.Errorf("--min-severity must be one of info, low, medium, high, critical, got %q", sev)
		}
		sc.MinSeverity = sev
	}
	if flags.Changed("fail-on-findings") {
		sc.FailOnFindings, _ = flags.GetBool("fail-on-findings")
	}

	cfg.SetScanConfig(sc)
	return nil
}

// runAnalyze holds the testable core of the analyze command. Reports for
// stdout go to out.
func runAnalyze(ctx context.Context, logger *zap.Logger, cfg config.Interface, out io.Writer) error {
	sc := cfg.Scan()
	scanID := uuid.New().String()

	files, err := collectFiles(sc.Targets, sc.Extensions)
	if err != nil {
		return err
	}
	logger.Info("Starting analysis",
		zap.String("scan_id", scanID),
		zap.Int("files", len(files)),
		zap.Int("concurrency", sc.Concurrency),
	)

	tables, err := core.NewTables(cfg.Analysis())
	if err != nil {
		return fmt.Errorf("failed to build classification tables: %w", err)
	}
	analyzer := php.NewAnalyzer(logger, tables, php.OptionsFromConfig(cfg.Analysis())...)

	reporter, err := newReporter(sc, out, logger)
	if err != nil {
		return err
	}

	envelopes := analyzeFiles(ctx, logger, analyzer, scanID, files, sc.Concurrency)
	if err := ctx.Err(); err != nil {
		_ = reporter.Close()
		logger.Warn("Analysis aborted", zap.String("scan_id", scanID))
		return err
	}

	pipeline := results.NewPipeline(results.PipelineConfig{
		MinSeverity: schemas.Severity(strings.ToLower(sc.MinSeverity)),
		CWEProvider: providers.NewInMemoryCWEProvider(),
	}, logger)
	if err := pipeline.Process(ctx, envelopes); err != nil {
		_ = reporter.Close()
		return err
	}

	for _, res := range envelopes {
		if err := reporter.Write(res); err != nil {
			_ = reporter.Close()
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	if err := reporter.Close(); err != nil {
		return fmt.Errorf("failed to finalize report: %w", err)
	}

	summary := schemas.Summarize(envelopes)
	logger.Info("Analysis complete",
		zap.String("scan_id", scanID),
		zap.Int("files", summary.Files),
		zap.Int("failed", summary.Failed),
		zap.Int("findings", summary.Findings),
	)

	if sc.FailOnFindings && summary.Findings > 0 {
		return fmt.Errorf("%w: %d", ErrFindingsReported, summary.Findings)
	}
	return nil
}

func newReporter(sc config.ScanConfig, out io.Writer, logger *zap.Logger) (reporting.Reporter, error) {
	if sc.Output == "" || sc.Output == "stdout" {
		return reporting.NewWithWriter(sc.Format, nopCloser{out}, Version, logger)
	}
	return reporting.New(sc.Format, sc.Output, Version, logger)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// analyzeFiles analyzes files in parallel and returns one envelope per file
// in input order. Per-file failures become error envelopes.
func analyzeFiles(ctx context.Context, logger *zap.Logger, analyzer *php.Analyzer, scanID string, files []string, concurrency int) []*schemas.ResultEnvelope {
	envelopes := make([]*schemas.ResultEnvelope, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			envelopes[i] = analyzeOne(gctx, logger, analyzer, scanID, file)
			return nil
		})
	}
	// Only cancellation surfaces here; the caller checks ctx.
	_ = g.Wait()

	for i, env := range envelopes {
		if env == nil {
			envelopes[i] = reporting.FromError(scanID, files[i], context.Canceled)
		}
	}
	return envelopes
}

func analyzeOne(ctx context.Context, logger *zap.Logger, analyzer *php.Analyzer, scanID, file string) *schemas.ResultEnvelope {
	src, err := os.ReadFile(file)
	if err != nil {
		logger.Warn("Failed to read file", zap.String("file", file), zap.Error(err))
		return reporting.FromError(scanID, file, err)
	}
	analysis, err := analyzer.Analyze(ctx, file, src)
	if err != nil {
		logger.Warn("Failed to analyze file", zap.String("file", file), zap.Error(err))
		return reporting.FromError(scanID, file, err)
	}
	if analysis.Truncated() {
		logger.Warn("Analysis truncated by step budget", zap.String("file", file))
	}
	return reporting.FromAnalysis(scanID, analysis, src)
}

// collectFiles expands targets into a sorted, de-duplicated list of files.
// Directories are walked for the given extensions; files named explicitly
// are always included.
func collectFiles(targets, extensions []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		path = filepath.Clean(path)
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, target := range targets {
		info, err := os.Stat(target)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", target, err)
		}
		if !info.IsDir() {
			add(target)
			continue
		}
		err = filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != target && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if hasExtension(path, extensions) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", target, err)
		}
	}

	sort.Strings(files)
	return files, nil
}

func hasExtension(path string, extensions []string) bool {
	ext := filepath.Ext(path)
	for _, want := range extensions {
		if strings.EqualFold(ext, want) {
			return true
		}
	}
	return false
}
