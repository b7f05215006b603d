// Filename: php/analyzer.go
// Package php implements a flow-sensitive, context-sensitive taint analysis of
// PHP programs. Each assignment creates an immutable variable version linked to
// the versions it was computed from; conditionals get one scope per arm and
// are joined afterwards; user functions and methods are re-analyzed for every
// call context; sink calls record a trace per tainted argument.
package php

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/phpsca/internal/analysis/core"
	"github.com/xkilldash9x/phpsca/internal/analysis/static/php/ast"
	"github.com/xkilldash9x/phpsca/internal/analysis/static/php/parser"
	"github.com/xkilldash9x/phpsca/internal/config"
)

const (
	DefaultMaxCallDepth = 50
	DefaultMaxSteps     = 1_000_000
)

// Options tune a single analysis.
type Options struct {
	// MaxCallDepth bounds the number of active call frames.
	MaxCallDepth int
	// MaxSteps bounds the number of statements walked.
	MaxSteps int
	// PropagateUnknownCalls makes calls to unknown functions return their
	// arguments' taint instead of an untainted value.
	PropagateUnknownCalls bool
}

// Option configures an Analyzer.
type Option func(*Options)

func WithMaxCallDepth(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxCallDepth = n
		}
	}
}

func WithMaxSteps(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxSteps = n
		}
	}
}

// WithUnknownCallPolicy selects config.UnknownCallsOpaque or config.UnknownCallsPropagate.
func WithUnknownCallPolicy(policy string) Option {
	return func(o *Options) {
		o.PropagateUnknownCalls = policy == config.UnknownCallsPropagate
	}
}

// OptionsFromConfig translates the analysis section of the configuration.
func OptionsFromConfig(cfg config.AnalysisConfig) []Option {
	return []Option{
		WithMaxCallDepth(cfg.MaxCallDepth),
		WithMaxSteps(cfg.MaxSteps),
		WithUnknownCallPolicy(cfg.UnknownCalls),
	}
}

// Analyzer parses and analyzes PHP files. It holds no per-analysis state and
// is safe for concurrent use.
type Analyzer struct {
	logger *zap.Logger
	tables *core.Tables
	parser *parser.Parser
	opts   Options
}

// NewAnalyzer creates an Analyzer. A nil logger disables logging and nil
// tables select the default classification tables.
func NewAnalyzer(logger *zap.Logger, tables *core.Tables, opts ...Option) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tables == nil {
		tables = core.DefaultTables()
	}
	o := Options{MaxCallDepth: DefaultMaxCallDepth, MaxSteps: DefaultMaxSteps}
	for _, opt := range opts {
		opt(&o)
	}
	return &Analyzer{
		logger: logger.Named("php_analyzer"),
		tables: tables,
		parser: parser.New(logger),
		opts:   o,
	}
}

// Analyze parses src and runs the analysis. A malformed input yields a
// *parser.SyntaxError and no result.
func (an *Analyzer) Analyze(ctx context.Context, filename string, src []byte) (*Analysis, error) {
	file, err := an.parser.Parse(ctx, filename, src)
	if err != nil {
		return nil, err
	}
	return an.AnalyzeFile(ctx, file)
}

// AnalyzeFile runs the analysis over an already parsed file.
func (an *Analyzer) AnalyzeFile(ctx context.Context, file *ast.File) (*Analysis, error) {
	a := newAnalysis(file.Name, an.logger, an.tables)
	an.logger.Debug("Starting taint analysis",
		zap.String("file", file.Name),
		zap.String("run_id", a.RunID),
		zap.Int("statements", len(file.Stmts)),
	)

	w := newWalker(a, an.tables, an.opts)
	if err := w.run(ctx, file); err != nil {
		return nil, fmt.Errorf("analysis of %s aborted: %w", file.Name, err)
	}

	an.logger.Debug("Taint analysis completed",
		zap.String("file", file.Name),
		zap.Int("versions", len(a.vars)),
		zap.Int("call_sites", len(a.calls)),
		zap.Int("vulnerabilities", len(a.vulns)),
		zap.Bool("truncated", a.truncated),
	)
	return a, nil
}

// AnalyzeSource analyzes a PHP snippet with the default tables and options.
func AnalyzeSource(src string) (*Analysis, error) {
	return NewAnalyzer(nil, nil).Analyze(context.Background(), "input.php", []byte(src))
}

// Analysis is the result of one analysis pass. It is immutable once returned.
type Analysis struct {
	RunID string
	File  string

	logger *zap.Logger
	global *Scope
	scopes []*Scope
	vars   []*Variable

	sites     map[siteKey]*CallSite
	calls     []*CallSite
	functions map[string]*FunctionDecl
	classes   map[string]*ClassDecl
	declOrder []*FunctionDecl
	objects   []*ObjectInstance
	vulns     []Vulnerability

	looseStatics map[string]*Scope
	truncated    bool
}

func newAnalysis(file string, logger *zap.Logger, tables *core.Tables) *Analysis {
	a := &Analysis{
		RunID:        uuid.NewString(),
		File:         file,
		logger:       logger,
		sites:        make(map[siteKey]*CallSite),
		functions:    make(map[string]*FunctionDecl),
		classes:      make(map[string]*ClassDecl),
		looseStatics: make(map[string]*Scope),
	}
	a.global = a.newScope(ScopeGlobal, nil, "")
	a.global.builtins = make(map[string]*Variable)
	for _, sg := range tables.Superglobals() {
		a.global.builtins[sg] = a.newRoot(sg, "", 0, KindBuiltin, a.global)
	}
	return a
}
