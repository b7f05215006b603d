package php

import (
	"github.com/xkilldash9x/phpsca/internal/analysis/core"
	"github.com/xkilldash9x/phpsca/internal/analysis/static/php/ast"
)

// ObjectInstance is one `new` evaluation. Its property scope is owned by the
// instance and never shared with another instance of the same class.
type ObjectInstance struct {
	ID        int
	ClassName string
	Class     *ClassDecl
	// VarName is the first variable the instance was bound to.
	VarName string
	Line    int

	props *Scope
}

// Property returns the current version of the named property, or nil.
func (o *ObjectInstance) Property(name string) *Variable {
	return o.props.Latest(name)
}

// Properties returns the property scope of the instance.
func (o *ObjectInstance) Properties() *Scope { return o.props }

// ClassDecl is a declared class. Methods are keyed by their folded name.
type ClassDecl struct {
	Name        string
	Parent      string
	Decl        *ast.ClassDecl
	Conditional bool

	methods map[string]*FunctionDecl
	statics *Scope
}

// Methods returns the methods declared directly on the class.
func (c *ClassDecl) Methods() []*FunctionDecl {
	out := make([]*FunctionDecl, 0, len(c.methods))
	for _, m := range c.Decl.Methods {
		out = append(out, c.methods[core.NormalizeFunctionName(m.Name)])
	}
	return out
}

// parentClass resolves the `extends` clause, or nil.
func (a *Analysis) parentClass(c *ClassDecl) *ClassDecl {
	if c == nil || c.Parent == "" {
		return nil
	}
	p := a.classes[core.NormalizeFunctionName(c.Parent)]
	if p == c {
		return nil
	}
	return p
}

// lineage returns c and its ancestors, base class first. Inheritance cycles
// are cut at the first repeated class.
func (a *Analysis) lineage(c *ClassDecl) []*ClassDecl {
	var chain []*ClassDecl
	seen := make(map[*ClassDecl]bool)
	for cur := c; cur != nil && !seen[cur]; cur = a.parentClass(cur) {
		seen[cur] = true
		chain = append([]*ClassDecl{cur}, chain...)
	}
	return chain
}

// lookupMethod finds name on c or the nearest ancestor declaring it.
func (a *Analysis) lookupMethod(c *ClassDecl, name string) *FunctionDecl {
	key := core.NormalizeFunctionName(name)
	seen := make(map[*ClassDecl]bool)
	for cur := c; cur != nil && !seen[cur]; cur = a.parentClass(cur) {
		seen[cur] = true
		if m, ok := cur.methods[key]; ok {
			return m
		}
	}
	return nil
}

// constructorOf returns __construct or, failing that, a method named after the class.
func (a *Analysis) constructorOf(c *ClassDecl) *FunctionDecl {
	if c == nil {
		return nil
	}
	if m := a.lookupMethod(c, "__construct"); m != nil {
		return m
	}
	return c.methods[core.NormalizeFunctionName(c.Name)]
}

// newInstance creates an instance with an empty property scope.
func (a *Analysis) newInstance(className string, class *ClassDecl, line int) *ObjectInstance {
	obj := &ObjectInstance{
		ID:        len(a.objects),
		ClassName: className,
		Class:     class,
		Line:      line,
	}
	obj.props = a.newScope(ScopeProperty, nil, className)
	a.objects = append(a.objects, obj)
	return obj
}

// writeProperty stores a new version of obj's property. A strong write
// replaces the visible version; a weak write keeps it as an extra predecessor
// because the assignment may not execute.
func (a *Analysis) writeProperty(obj *ObjectInstance, prop, label string, line int, ops []*Variable, weak bool) *Variable {
	preds := ops
	if weak {
		if prev := obj.props.Latest(prop); prev != nil {
			preds = append(append([]*Variable(nil), ops...), prev)
		}
	}
	v := a.newVariable(label, line, KindProperty, obj.props, preds)
	obj.props.addVarAs(prop, v)
	return v
}

// readProperty returns the visible version of obj's property, or nil.
func (a *Analysis) readProperty(obj *ObjectInstance, prop string) *Variable {
	if obj == nil {
		return nil
	}
	return obj.props.Latest(prop)
}

// staticScope returns the scope holding the static properties of a class.
func (a *Analysis) staticScope(className string) *Scope {
	key := core.NormalizeFunctionName(className)
	if c, ok := a.classes[key]; ok {
		if c.statics == nil {
			c.statics = a.newScope(ScopeProperty, nil, c.Name)
		}
		return c.statics
	}
	s, ok := a.looseStatics[key]
	if !ok {
		s = a.newScope(ScopeProperty, nil, className)
		a.looseStatics[key] = s
	}
	return s
}
