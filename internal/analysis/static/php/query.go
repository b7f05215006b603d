package php

import (
	"sort"

	"github.com/xkilldash9x/phpsca/internal/analysis/core"
)

// GlobalScope returns the root of the scope tree.
func (a *Analysis) GlobalScope() *Scope { return a.global }

// Truncated reports whether the step budget cut the analysis short.
func (a *Analysis) Truncated() bool { return a.truncated }

// Vars returns the latest version of every name in every scope reachable from
// the global scope, scopes in depth-first order and names in first-declaration
// order. Builtin roots are not included.
func (a *Analysis) Vars(userControlled bool) []*Variable {
	var out []*Variable
	var visit func(*Scope)
	visit = func(s *Scope) {
		for _, name := range s.order {
			v := s.Latest(name)
			if !userControlled || v.ControlledByUser() {
				out = append(out, v)
			}
		}
		for _, c := range s.children {
			visit(c)
		}
	}
	visit(a.global)
	return out
}

// Versions returns every version registered in a scope, in creation order.
func (a *Analysis) Versions(userControlled bool) []*Variable {
	var out []*Variable
	for _, v := range a.vars {
		if !v.registered {
			continue
		}
		if !userControlled || v.ControlledByUser() {
			out = append(out, v)
		}
	}
	return out
}

// Variable returns the version with the given ID, or nil.
func (a *Analysis) Variable(id VarID) *Variable {
	if id < 0 || int(id) >= len(a.vars) {
		return nil
	}
	return a.vars[id]
}

// Resolve returns the version of name visible from scope at line.
func (a *Analysis) Resolve(name string, scope *Scope, line int) (*Variable, error) {
	if scope == nil {
		scope = a.global
	}
	if v := scope.lookup(name, line); v != nil {
		return v, nil
	}
	return nil, &UnboundVariableError{Name: name, Line: line}
}

// Calls returns every call site in source order.
func (a *Analysis) Calls() []*CallSite {
	out := append([]*CallSite(nil), a.calls...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Offset != out[j].Offset {
			return out[i].Offset < out[j].Offset
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// FuncCalls returns the sink call sites in source order, including those in
// dead code. With vulnOnly set only sites whose last live visit found a
// tainted argument are returned.
func (a *Analysis) FuncCalls(vulnOnly bool) []*CallSite {
	var out []*CallSite
	for _, c := range a.Calls() {
		if c.Kind != CallSink {
			continue
		}
		if vulnOnly && !c.IsVulnerable() {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Vulns groups every recorded trace by class, in recording order.
func (a *Analysis) Vulns() map[core.VulnClass][]Vulnerability {
	out := make(map[core.VulnClass][]Vulnerability)
	for _, v := range a.vulns {
		out[v.Class] = append(out[v.Class], v)
	}
	return out
}

// Vulnerabilities returns every recorded trace in recording order.
func (a *Analysis) Vulnerabilities() []Vulnerability {
	return append([]Vulnerability(nil), a.vulns...)
}

// Functions returns the declared functions by name and methods as `Class::method`.
func (a *Analysis) Functions() map[string]*FunctionDecl {
	out := make(map[string]*FunctionDecl, len(a.declOrder))
	for _, fn := range a.declOrder {
		out[fn.QualifiedName()] = fn
	}
	return out
}

// Classes returns the declared classes by name.
func (a *Analysis) Classes() map[string]*ClassDecl {
	out := make(map[string]*ClassDecl, len(a.classes))
	for _, c := range a.classes {
		out[c.Name] = c
	}
	return out
}

// Objects returns the instances created during the analysis, in creation order.
func (a *Analysis) Objects() []*ObjectInstance {
	return append([]*ObjectInstance(nil), a.objects...)
}

// ObjectsByVar returns instances keyed by the first variable bound to them.
func (a *Analysis) ObjectsByVar() map[string]*ObjectInstance {
	out := make(map[string]*ObjectInstance)
	for _, o := range a.objects {
		if o.VarName == "" {
			continue
		}
		if _, ok := out[o.VarName]; !ok {
			out[o.VarName] = o
		}
	}
	return out
}
