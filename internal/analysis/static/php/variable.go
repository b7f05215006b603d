package php

import (
	"fmt"
	"sort"

	"github.com/xkilldash9x/phpsca/internal/analysis/core"
)

// VarID is the stable arena index of a Variable within one Analysis.
type VarID int

// VarKind records how a version came into existence.
type VarKind int

const (
	KindAssigned VarKind = iota
	KindParam
	KindMerged
	KindArgument
	KindTemp
	KindRoot
	KindBuiltin
	KindProperty
)

func (k VarKind) String() string {
	switch k {
	case KindAssigned:
		return "assigned"
	case KindParam:
		return "param"
	case KindMerged:
		return "merged"
	case KindArgument:
		return "argument"
	case KindTemp:
		return "temp"
	case KindRoot:
		return "root"
	case KindBuiltin:
		return "builtin"
	case KindProperty:
		return "property"
	}
	return "unknown"
}

// Variable is one immutable version of a variable. Versions link to the
// versions they were computed from, forming an acyclic provenance graph:
// predecessors always exist before the version that references them.
type Variable struct {
	ID    VarID
	Name  string
	Line  int
	Kind  VarKind
	Scope *Scope

	// Container and Index describe a taint source: the superglobal (or source
	// function) and the key that was read from it.
	Container string
	Index     string

	// Object is the instance this version points to, if any.
	Object *ObjectInstance

	preds      []*Variable
	labels     core.ClassSet
	controlled bool
	registered bool
}

// IsRoot reports whether the version is a taint source with no predecessor.
func (v *Variable) IsRoot() bool {
	return v.Kind == KindRoot || v.Kind == KindBuiltin
}

// ControlledByUser reports whether some predecessor chain reaches a root.
// Sanitization does not change this; it only removes taint labels.
func (v *Variable) ControlledByUser() bool { return v.controlled }

// TaintedFor reports whether the value is dangerous for the given class.
func (v *Variable) TaintedFor(class core.VulnClass) bool {
	return v.controlled && v.labels.Has(class)
}

// Labels returns a copy of the classes the value is tainted for.
func (v *Variable) Labels() core.ClassSet {
	if !v.controlled {
		return core.NewClassSet()
	}
	return v.labels.Clone()
}

// Predecessors returns the versions this one was computed from.
func (v *Variable) Predecessors() []*Variable {
	return append([]*Variable(nil), v.preds...)
}

// Parent returns the primary predecessor, or nil.
func (v *Variable) Parent() *Variable {
	if len(v.preds) == 0 {
		return nil
	}
	return v.preds[0]
}

// Deps follows the primary predecessor chain back to its origin.
func (v *Variable) Deps() []*Variable {
	var out []*Variable
	for cur := v.Parent(); cur != nil; cur = cur.Parent() {
		out = append(out, cur)
	}
	return out
}

// TaintPath returns the dependency chain from v back to a root along
// predecessors that carry class. The chain starts with v and ends with the
// root. It returns nil when v is not tainted for class.
func (v *Variable) TaintPath(class core.VulnClass) []*Variable {
	if !v.TaintedFor(class) {
		return nil
	}
	chain := []*Variable{v}
	cur := v
	for !cur.IsRoot() {
		var next *Variable
		for _, p := range cur.preds {
			if p.TaintedFor(class) {
				next = p
				break
			}
		}
		if next == nil {
			break
		}
		chain = append(chain, next)
		cur = next
	}
	return chain
}

// VulnSources returns the index names of every root reachable from v along
// predecessors tainted for class, sorted.
func (v *Variable) VulnSources(class core.VulnClass) []string {
	seen := make(map[VarID]bool)
	names := make(map[string]struct{})
	var visit func(*Variable)
	visit = func(cur *Variable) {
		if seen[cur.ID] || !cur.TaintedFor(class) {
			return
		}
		seen[cur.ID] = true
		if cur.IsRoot() {
			if cur.Index != "" {
				names[cur.Index] = struct{}{}
			}
			return
		}
		for _, p := range cur.preds {
			visit(p)
		}
	}
	visit(v)

	out := make([]string, 0, len(names))
	for n := range names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Compare orders two versions by visibility: a version in a more deeply nested
// scope, or in a later sibling branch, is more recent than one in an enclosing
// or earlier scope. Versions in the same scope (or in unrelated trees) compare
// by line and then by creation order. It returns -1, 0 or 1.
func (v *Variable) Compare(o *Variable) int {
	if v == o {
		return 0
	}
	if v.Scope != nil && o.Scope != nil && v.Scope != o.Scope {
		switch {
		case v.Scope.isAncestorOf(o.Scope):
			return -1
		case o.Scope.isAncestorOf(v.Scope):
			return 1
		}
		if a, b, ok := divergingChildren(v.Scope, o.Scope); ok && a.Seq != b.Seq {
			return compareInts(a.Seq, b.Seq)
		}
	}
	if c := compareInts(v.Line, o.Line); c != 0 {
		return c
	}
	return compareInts(int(v.ID), int(o.ID))
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (v *Variable) String() string {
	if v.IsRoot() && v.Index != "" {
		return fmt.Sprintf("%s[%s]@%d", v.Container, v.Index, v.Line)
	}
	return fmt.Sprintf("%s@%d", v.Name, v.Line)
}

// -- Arena --

// newVariable allocates a version in the analysis arena and derives its taint
// state from preds. Duplicate predecessors are dropped.
func (a *Analysis) newVariable(name string, line int, kind VarKind, scope *Scope, preds []*Variable) *Variable {
	v := &Variable{
		ID:     VarID(len(a.vars)),
		Name:   name,
		Line:   line,
		Kind:   kind,
		Scope:  scope,
		labels: core.NewClassSet(),
	}
	seen := make(map[VarID]bool, len(preds))
	for _, p := range preds {
		if p == nil || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		v.preds = append(v.preds, p)
		if p.controlled {
			v.controlled = true
			v.labels.Union(p.labels)
		}
	}
	v.Object = objectOf(v.preds)
	a.vars = append(a.vars, v)
	return v
}

// newRoot allocates a taint source version, tainted for every class.
func (a *Analysis) newRoot(container, index string, line int, kind VarKind, scope *Scope) *Variable {
	v := a.newVariable(container, line, kind, scope, nil)
	v.Container = container
	v.Index = index
	v.controlled = true
	v.labels = core.FullClassSet()
	return v
}

// sanitized allocates a version derived from preds with classes removed.
func (a *Analysis) sanitized(name string, line int, scope *Scope, preds []*Variable, classes core.ClassSet) *Variable {
	v := a.newVariable(name, line, KindTemp, scope, preds)
	v.labels = v.labels.Minus(classes)
	return v
}

// objectOf returns the instance the values point to. When they point to
// different instances, as after a branch join, the first one wins so that
// method calls on the merged value still resolve.
func objectOf(vals []*Variable) *ObjectInstance {
	for _, v := range vals {
		if v.Object != nil {
			return v.Object
		}
	}
	return nil
}
