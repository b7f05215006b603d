package php

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/xkilldash9x/phpsca/internal/analysis/core"
	"github.com/xkilldash9x/phpsca/internal/analysis/static/php/ast"
)

// CallKind classifies what a call site resolved to when it was first seen.
type CallKind int

const (
	CallUnknown CallKind = iota
	CallSink
	CallSanitizer
	CallSource
	CallPropagator
	CallFunction
	CallMethod
	CallConstructor
)

func (k CallKind) String() string {
	switch k {
	case CallSink:
		return "sink"
	case CallSanitizer:
		return "sanitizer"
	case CallSource:
		return "source"
	case CallPropagator:
		return "propagator"
	case CallFunction:
		return "function"
	case CallMethod:
		return "method"
	case CallConstructor:
		return "constructor"
	}
	return "unknown"
}

// Trace pairs a vulnerability class with the dependency chain from a sink
// argument back to the root it came from. Chain[0] is the argument version and
// the last element is the root.
type Trace struct {
	Class core.VulnClass
	Chain []*Variable
	// Context lists the call sites the trace was found under, outermost
	// first, e.g. "test@21 > A->run@9". It is empty at the top level. Arg is
	// the index of the tainted argument.
	Context string
	Arg     int
}

// Source returns the root at the end of the chain.
func (t Trace) Source() *Variable {
	if len(t.Chain) == 0 {
		return nil
	}
	return t.Chain[len(t.Chain)-1]
}

// Vulnerability is one recorded trace together with the call site it was recorded at.
type Vulnerability struct {
	Class core.VulnClass
	Call  *CallSite
	Chain []*Variable
}

// CallSite is a syntactic call. It is visited once per analysis context; the
// current class set and sources reflect the last live visit while the trace
// list accumulates over all of them.
type CallSite struct {
	ID     int
	Offset int
	Name   string
	Kind   CallKind
	// Class is the vulnerability class of a sink call.
	Class core.VulnClass
	Pos   ast.Pos
	Args  []ast.Expr

	vulnTypes   core.ClassSet
	vulnSources map[string]struct{}
	traces      []Trace
	traceKeys   map[string]bool
	visits      int
	dead        bool
}

// VulnTypes returns the classes found on the most recent live visit, sorted.
func (c *CallSite) VulnTypes() []core.VulnClass { return c.vulnTypes.Sorted() }

// IsVulnerable reports whether the most recent live visit found a tainted argument.
func (c *CallSite) IsVulnerable() bool { return !c.vulnTypes.Empty() }

// VulnSources returns the root index names found on the most recent live visit.
func (c *CallSite) VulnSources() []string {
	out := make([]string, 0, len(c.vulnSources))
	for s := range c.vulnSources {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Traces returns every trace recorded across all contexts, in recording order.
func (c *CallSite) Traces() []Trace { return append([]Trace(nil), c.traces...) }

// Dead reports whether the site was last visited in unreachable code.
func (c *CallSite) Dead() bool { return c.dead }

// Visits returns how many times the site was evaluated.
func (c *CallSite) Visits() int { return c.visits }

func (c *CallSite) Line() int { return c.Pos.Line }

// ArgNames describes each argument expression.
func (c *CallSite) ArgNames() []string {
	out := make([]string, len(c.Args))
	for i, arg := range c.Args {
		out[i] = ast.Describe(arg)
	}
	return out
}

func (c *CallSite) String() string {
	return fmt.Sprintf("%s@%d", c.Name, c.Pos.Line)
}

type siteKey struct {
	offset int
	name   string
}

// registerCall returns the CallSite for a syntactic call, creating it on first sight.
func (a *Analysis) registerCall(name string, kind CallKind, pos ast.Pos, args []ast.Expr, dead bool) *CallSite {
	key := siteKey{offset: pos.Offset, name: name}
	site, ok := a.sites[key]
	if !ok {
		site = &CallSite{
			ID:          len(a.calls),
			Offset:      pos.Offset,
			Name:        name,
			Kind:        kind,
			Pos:         pos,
			Args:        args,
			vulnTypes:   core.NewClassSet(),
			vulnSources: make(map[string]struct{}),
			traceKeys:   make(map[string]bool),
		}
		a.sites[key] = site
		a.calls = append(a.calls, site)
	}
	site.visits++
	site.dead = dead
	return site
}

// recordSink evaluates a live sink visit. Each argument gets an argument
// version at the call line; tainted ones add the class, their sources and a
// trace. ctxKey identifies the analysis context so a site records at most one
// trace per class, context and argument; path is its readable form.
func (a *Analysis) recordSink(site *CallSite, class core.VulnClass, scope *Scope, args [][]*Variable, ctxKey, path string) {
	site.vulnTypes = core.NewClassSet()
	site.vulnSources = make(map[string]struct{})

	for i, ops := range args {
		name := fmt.Sprintf("%s#%d", site.Name, i)
		if i < len(site.Args) {
			name = ast.Describe(site.Args[i])
		}
		arg := a.newVariable(name, site.Pos.Line, KindArgument, scope, ops)
		if !arg.TaintedFor(class) {
			continue
		}

		site.vulnTypes.Add(class)
		for _, src := range arg.VulnSources(class) {
			site.vulnSources[src] = struct{}{}
		}

		key := fmt.Sprintf("%s|%s|%d", class, ctxKey, i)
		if site.traceKeys[key] {
			continue
		}
		site.traceKeys[key] = true

		chain := arg.TaintPath(class)
		site.traces = append(site.traces, Trace{Class: class, Chain: chain, Context: path, Arg: i})
		a.vulns = append(a.vulns, Vulnerability{Class: class, Call: site, Chain: chain})

		a.logger.Debug("Tainted data reaches sink",
			zap.String("sink", site.Name),
			zap.Int("line", site.Pos.Line),
			zap.String("class", string(class)),
			zap.Stringer("source", Trace{Chain: chain}.Source()),
			zap.Int("chain_length", len(chain)),
		)
	}
}
