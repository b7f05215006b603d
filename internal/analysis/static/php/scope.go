package php

import (
	"errors"
	"fmt"
)

// ScopeKind classifies a Scope.
type ScopeKind int

const (
	ScopeGlobal ScopeKind = iota
	ScopeFunction
	ScopeBranchThen
	ScopeBranchElse
	ScopeLoop
	ScopeProperty
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeGlobal:
		return "global"
	case ScopeFunction:
		return "function"
	case ScopeBranchThen:
		return "branch-then"
	case ScopeBranchElse:
		return "branch-else"
	case ScopeLoop:
		return "loop"
	case ScopeProperty:
		return "property"
	}
	return "unknown"
}

var (
	// ErrUnboundVariable is wrapped when a name has no visible definition.
	ErrUnboundVariable = errors.New("unbound variable")
	// ErrInvalidVariable is returned when registering a nil or unnamed version.
	ErrInvalidVariable = errors.New("invalid variable")
)

// UnboundVariableError reports a use of a name that was never assigned and is
// not a taint source.
type UnboundVariableError struct {
	Name string
	Line int
}

func (e *UnboundVariableError) Error() string {
	return fmt.Sprintf("%s used at line %d: %v", e.Name, e.Line, ErrUnboundVariable)
}

func (e *UnboundVariableError) Unwrap() error { return ErrUnboundVariable }

// Scope is a node of the scope tree. A scope owns its children and the
// versions declared directly in it; the parent link is for lookups only.
type Scope struct {
	ID    int
	Kind  ScopeKind
	Seq   int
	Owner string

	parent   *Scope
	children []*Scope
	vars     map[string][]*Variable
	order    []string
	dead     bool

	// builtins holds the source roots; only the global scope has it.
	builtins map[string]*Variable
	// imported names come from `global $x;` inside a function body.
	imported map[string]bool
}

func (a *Analysis) newScope(kind ScopeKind, parent *Scope, owner string) *Scope {
	s := &Scope{
		ID:       len(a.scopes),
		Kind:     kind,
		Owner:    owner,
		parent:   parent,
		vars:     make(map[string][]*Variable),
		imported: make(map[string]bool),
	}
	if parent != nil {
		s.Seq = len(parent.children)
		parent.children = append(parent.children, s)
		s.dead = parent.dead
	}
	a.scopes = append(a.scopes, s)
	return s
}

func (s *Scope) Parent() *Scope { return s.parent }

func (s *Scope) Children() []*Scope {
	return append([]*Scope(nil), s.children...)
}

// Dead reports whether the scope belongs to code never reached from a live call path.
func (s *Scope) Dead() bool { return s.dead }

// Builtins returns the source roots of the global scope, keyed by name.
func (s *Scope) Builtins() map[string]*Variable {
	out := make(map[string]*Variable, len(s.builtins))
	for k, v := range s.builtins {
		out[k] = v
	}
	return out
}

// AddVar registers a new version of v.Name declared in this scope.
func (s *Scope) AddVar(v *Variable) error {
	if v == nil || v.Name == "" {
		return ErrInvalidVariable
	}
	s.addVarAs(v.Name, v)
	return nil
}

// addVarAs registers v under key. Property scopes key versions by property
// name while the version keeps its access-path name.
func (s *Scope) addVarAs(key string, v *Variable) {
	if _, ok := s.vars[key]; !ok {
		s.order = append(s.order, key)
	}
	s.vars[key] = append(s.vars[key], v)
	v.registered = true
}

// Names returns the names declared directly in the scope, in first-declaration order.
func (s *Scope) Names() []string {
	return append([]string(nil), s.order...)
}

// Versions returns the versions of name declared directly in the scope.
func (s *Scope) Versions(name string) []*Variable {
	return append([]*Variable(nil), s.vars[name]...)
}

// Latest returns the most recent version of name declared directly in the scope.
func (s *Scope) Latest(name string) *Variable {
	vs := s.vars[name]
	if len(vs) == 0 {
		return nil
	}
	return vs[len(vs)-1]
}

// latestBefore returns the last version declared at or before line.
func (s *Scope) latestBefore(name string, line int) *Variable {
	vs := s.vars[name]
	for i := len(vs) - 1; i >= 0; i-- {
		if vs[i].Line <= line {
			return vs[i]
		}
	}
	return nil
}

func (s *Scope) root() *Scope {
	cur := s
	for cur.parent != nil {
		cur = cur.parent
	}
	return cur
}

// lookup walks outward to the nearest scope holding a version of name. A
// function body is a boundary unless the name was imported with `global`.
// Builtin roots are consulted last. When line > 0 only versions declared at or
// before that line are visible.
func (s *Scope) lookup(name string, line int) *Variable {
	for cur := s; cur != nil; {
		var v *Variable
		if line > 0 {
			v = cur.latestBefore(name, line)
		} else {
			v = cur.Latest(name)
		}
		if v != nil {
			return v
		}
		if cur.Kind == ScopeFunction {
			if !cur.imported[name] {
				break
			}
			cur = cur.root()
			continue
		}
		cur = cur.parent
	}
	if global := s.root(); global.builtins != nil {
		if b, ok := global.builtins[name]; ok {
			return b
		}
	}
	return nil
}

// enclosingFunction returns the innermost function-body scope, or nil at top level.
func (s *Scope) enclosingFunction() *Scope {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.Kind == ScopeFunction {
			return cur
		}
	}
	return nil
}

// Function returns the name of the function whose body contains s, or "" at top level.
func (s *Scope) Function() string {
	if f := s.enclosingFunction(); f != nil {
		return f.Owner
	}
	return ""
}

func (s *Scope) isAncestorOf(o *Scope) bool {
	for cur := o.parent; cur != nil; cur = cur.parent {
		if cur == s {
			return true
		}
	}
	return false
}

// divergingChildren returns the children of the lowest common ancestor of a
// and b that lead to a and to b respectively.
func divergingChildren(a, b *Scope) (*Scope, *Scope, bool) {
	pathA := pathFromRoot(a)
	pathB := pathFromRoot(b)
	if len(pathA) == 0 || len(pathB) == 0 || pathA[0] != pathB[0] {
		return nil, nil, false
	}
	i := 0
	for i < len(pathA) && i < len(pathB) && pathA[i] == pathB[i] {
		i++
	}
	if i >= len(pathA) || i >= len(pathB) {
		return nil, nil, false
	}
	return pathA[i], pathB[i], true
}

func pathFromRoot(s *Scope) []*Scope {
	var path []*Scope
	for cur := s; cur != nil; cur = cur.parent {
		path = append([]*Scope{cur}, path...)
	}
	return path
}

// markDead flags the scope and its descendants as unreachable.
func (s *Scope) markDead() {
	s.dead = true
	for _, c := range s.children {
		c.markDead()
	}
}
