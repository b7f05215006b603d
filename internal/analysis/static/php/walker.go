// Filename: php/walker.go
// Depth-first traversal of the syntax tree. Statements update the scope graph,
// expressions evaluate to the versions their value is derived from.
package php

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/phpsca/internal/analysis/core"
	"github.com/xkilldash9x/phpsca/internal/analysis/static/php/ast"
)

// walker carries the traversal state of one analysis.
type walker struct {
	a      *Analysis
	tables *core.Tables
	opts   Options

	scope *Scope
	stack []*frame
	// dead is set while walking declarations unreachable from live code.
	dead  bool
	steps int
}

func newWalker(a *Analysis, tables *core.Tables, opts Options) *walker {
	return &walker{a: a, tables: tables, opts: opts, scope: a.global}
}

// run walks the file's top-level statements and then the dead declarations.
func (w *walker) run(ctx context.Context, file *ast.File) error {
	w.hoist(file.Stmts)
	for _, s := range file.Stmts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !w.step() {
			break
		}
		w.stmt(s)
	}
	if !w.a.truncated {
		w.walkDead()
	}
	return nil
}

// step counts one unit of work and reports whether the budget allows more.
func (w *walker) step() bool {
	if w.a.truncated {
		return false
	}
	w.steps++
	if w.steps > w.opts.MaxSteps {
		w.a.truncated = true
		w.a.logger.Warn("Step budget exhausted, analysis truncated",
			zap.String("file", w.a.File),
			zap.Int("max_steps", w.opts.MaxSteps),
		)
		return false
	}
	return true
}

// stmts walks list with scope as the current scope.
func (w *walker) stmts(list []ast.Stmt, scope *Scope) {
	saved := w.scope
	w.scope = scope
	defer func() { w.scope = saved }()

	for _, s := range list {
		if !w.step() {
			return
		}
		w.stmt(s)
	}
}

// arm walks one arm of a branch or loop in a fresh child scope.
func (w *walker) arm(kind ScopeKind, cond ast.Expr, body []ast.Stmt) *Scope {
	scope := w.a.newScope(kind, w.scope, "")
	if cond != nil {
		w.evalIn(cond, scope)
	}
	w.stmts(body, scope)
	return scope
}

func (w *walker) stmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.ExprStmt:
		w.eval(s.X)

	case *ast.If:
		w.eval(s.Cond)
		arms := []*Scope{w.arm(ScopeBranchThen, nil, s.Then)}
		for _, ei := range s.ElseIfs {
			arms = append(arms, w.arm(ScopeBranchElse, ei.Cond, ei.Body))
		}
		if s.HasElse {
			arms = append(arms, w.arm(ScopeBranchElse, nil, s.Else))
			w.a.mergeArms(w.scope, arms, s.EndLine)
		}

	case *ast.Switch:
		w.eval(s.Subject)
		var arms []*Scope
		hasDefault := false
		for i, c := range s.Cases {
			kind := ScopeBranchElse
			if i == 0 {
				kind = ScopeBranchThen
			}
			arm := w.arm(kind, c.Test, c.Body)
			if c.Test == nil {
				hasDefault = true
			}
			// An empty case without break shares the next case's body. A
			// terminated or trailing empty case is a path that assigns nothing.
			fallsThrough := len(c.Body) == 0 && !c.Terminated && i < len(s.Cases)-1
			if !fallsThrough {
				arms = append(arms, arm)
			}
		}
		if hasDefault {
			w.a.mergeArms(w.scope, arms, s.EndLine)
		}

	case *ast.While:
		if !s.Do {
			w.eval(s.Cond)
			w.a.mergeLoop(w.scope, w.arm(ScopeLoop, nil, s.Body), s.EndLine)
			return
		}
		body := w.arm(ScopeLoop, nil, s.Body)
		w.evalIn(s.Cond, body)
		w.a.mergeLoop(w.scope, body, s.EndLine)

	case *ast.For:
		for _, e := range s.Init {
			w.eval(e)
		}
		body := w.a.newScope(ScopeLoop, w.scope, "")
		for _, e := range s.Cond {
			w.evalIn(e, body)
		}
		w.stmts(s.Body, body)
		for _, e := range s.Update {
			w.evalIn(e, body)
		}
		w.a.mergeLoop(w.scope, body, s.EndLine)

	case *ast.Foreach:
		subject := w.eval(s.Subject)
		body := w.a.newScope(ScopeLoop, w.scope, "")
		saved := w.scope
		w.scope = body
		if s.Key != nil {
			w.assignTo(s.Key, subject, s.Pos.Line)
		}
		w.assignTo(s.Value, subject, s.Pos.Line)
		w.scope = saved
		w.stmts(s.Body, body)
		w.a.mergeLoop(w.scope, body, s.EndLine)

	case *ast.Try:
		w.stmts(s.Body, w.scope)
		for _, c := range s.Catches {
			scope := w.a.newScope(ScopeBranchElse, w.scope, "")
			if c.Var != "" {
				_ = scope.AddVar(w.a.newVariable(c.Var, c.Pos.Line, KindAssigned, scope, nil))
			}
			w.stmts(c.Body, scope)
		}
		w.stmts(s.Finally, w.scope)

	case *ast.Return:
		ops := w.eval(s.Value)
		if f := w.top(); f != nil {
			f.returns = append(f.returns, ops...)
		}

	case *ast.Global:
		if fn := w.scope.enclosingFunction(); fn != nil {
			for _, name := range s.Names {
				fn.imported[name] = true
			}
		}

	case *ast.StaticVar:
		for i, name := range s.Names {
			var ops []*Variable
			if i < len(s.Inits) {
				ops = w.eval(s.Inits[i])
			}
			_ = w.scope.AddVar(w.a.newVariable(name, s.Pos.Line, KindAssigned, w.scope, ops))
		}

	case *ast.FuncDecl:
		// Top-level declarations were hoisted; anything new here is conditional.
		w.declareFunction(s, true)

	case *ast.ClassDecl:
		w.declareClass(s, true)
	}
}

// -- Expressions --

// evalIn evaluates e with scope as the current scope.
func (w *walker) evalIn(e ast.Expr, scope *Scope) []*Variable {
	saved := w.scope
	w.scope = scope
	defer func() { w.scope = saved }()
	return w.eval(e)
}

// comparisons yield booleans, which carry no taint.
var comparisons = map[string]bool{
	"==": true, "!=": true, "<>": true, "===": true, "!==": true,
	"<": true, ">": true, "<=": true, ">=": true, "<=>": true,
	"&&": true, "||": true, "and": true, "or": true, "xor": true,
	"instanceof": true,
}

// sanitizingCasts convert the value to a scalar that cannot carry a payload.
var sanitizingCasts = map[string]bool{
	"int": true, "integer": true, "float": true, "double": true, "real": true,
	"bool": true, "boolean": true, "unset": true,
}

// eval returns the versions the value of e is derived from.
func (w *walker) eval(e ast.Expr) []*Variable {
	switch e := e.(type) {
	case nil:
		return nil

	case *ast.Var:
		return w.evalVar(e)

	case *ast.Index:
		if base, ok := e.Base.(*ast.Var); ok && w.tables.IsSuperglobal(base.Name) {
			w.eval(e.Index)
			root := w.a.newRoot(base.Name, indexName(e.Index), e.Pos.Line, KindRoot, w.scope)
			return []*Variable{root}
		}
		ops := w.eval(e.Base)
		w.eval(e.Index)
		return ops

	case *ast.Prop:
		ops := w.eval(e.Object)
		if obj := objectOf(ops); obj != nil {
			if v := w.a.readProperty(obj, e.Name); v != nil {
				return []*Variable{v}
			}
			return nil
		}
		return ops

	case *ast.StaticProp:
		_, className := w.staticTarget(e.Class)
		if v := w.a.staticScope(className).Latest(e.Name); v != nil {
			return []*Variable{v}
		}
		return nil

	case *ast.Lit:
		return nil

	case *ast.Interp:
		return w.evalAll(e.Parts)

	case *ast.Binary:
		left := w.eval(e.Left)
		right := w.eval(e.Right)
		if comparisons[strings.ToLower(e.Op)] {
			return nil
		}
		return append(left, right...)

	case *ast.Unary:
		w.eval(e.X)
		return nil

	case *ast.Cast:
		ops := w.eval(e.X)
		typ := strings.ToLower(strings.Trim(e.Type, "() \t"))
		if sanitizingCasts[typ] {
			return []*Variable{w.a.sanitized("("+typ+")", e.Pos.Line, w.scope, ops, core.FullClassSet())}
		}
		return ops

	case *ast.Assign:
		return w.evalAssign(e)

	case *ast.Array:
		var ops []*Variable
		for _, item := range e.Items {
			ops = append(ops, w.eval(item.Key)...)
			ops = append(ops, w.eval(item.Value)...)
		}
		return ops

	case *ast.Ternary:
		cond := w.eval(e.Cond)
		if e.Coalesce {
			return append(cond, w.eval(e.Else)...)
		}
		then := cond
		if e.Then != nil {
			then = w.eval(e.Then)
		}
		return append(then, w.eval(e.Else)...)

	case *ast.Call:
		return w.evalCall(e)
	case *ast.DynamicCall:
		return w.evalDynamicCall(e)
	case *ast.MethodCall:
		return w.evalMethodCall(e)
	case *ast.StaticCall:
		return w.evalStaticCall(e)
	case *ast.New:
		return w.evalNew(e)

	case *ast.Opaque:
		return w.evalAll(e.Parts)
	}
	return nil
}

func (w *walker) evalAll(list []ast.Expr) []*Variable {
	var ops []*Variable
	for _, e := range list {
		ops = append(ops, w.eval(e)...)
	}
	return ops
}

func (w *walker) evalVar(e *ast.Var) []*Variable {
	if e.Name == "$this" {
		if f := w.top(); f != nil && f.this != nil {
			return []*Variable{f.this}
		}
		return nil
	}
	v := w.scope.lookup(e.Name, 0)
	if v == nil {
		w.a.logger.Debug("Unbound variable treated as untainted",
			zap.String("name", e.Name),
			zap.Int("line", e.Pos.Line),
		)
		return nil
	}
	return []*Variable{v}
}

// indexName is the key recorded on a source root.
func indexName(idx ast.Expr) string {
	switch idx := idx.(type) {
	case nil:
		return ""
	case *ast.Lit:
		return idx.Value
	}
	return ast.Describe(idx)
}

// -- Assignment --

func (w *walker) evalAssign(e *ast.Assign) []*Variable {
	ops := w.eval(e.Value)
	if e.Op != "" && e.Op != "=" {
		// Compound assignments keep the old value as a predecessor.
		ops = append(w.eval(e.Target), ops...)
	}
	return w.assignTo(e.Target, ops, e.Pos.Line)
}

// weakWrites reports whether property writes at this point may not execute
// and therefore must keep the previous version. That holds inside a branch
// or loop, and anywhere in a callee whose call sat in one.
func (w *walker) weakWrites() bool {
	switch w.scope.Kind {
	case ScopeBranchThen, ScopeBranchElse, ScopeLoop:
		return true
	}
	if f := w.top(); f != nil && f.weak {
		return true
	}
	return false
}

// assignTo binds ops to target and returns the new version as the value of
// the assignment expression.
func (w *walker) assignTo(target ast.Expr, ops []*Variable, line int) []*Variable {
	switch t := target.(type) {
	case *ast.Var:
		if t.Name == "$this" {
			return ops
		}
		v := w.a.newVariable(t.Name, line, KindAssigned, w.scope, ops)
		_ = w.scope.AddVar(v)
		if v.Object != nil && v.Object.VarName == "" {
			v.Object.VarName = t.Name
		}
		return []*Variable{v}

	case *ast.Index:
		// Writing one element updates the whole array weakly.
		w.eval(t.Index)
		old := w.eval(t.Base)
		return w.assignTo(t.Base, append(append([]*Variable(nil), ops...), old...), line)

	case *ast.Prop:
		obj := objectOf(w.eval(t.Object))
		if obj == nil || t.Name == "" {
			return ops
		}
		return []*Variable{w.a.writeProperty(obj, t.Name, ast.Describe(t), line, ops, w.weakWrites())}

	case *ast.StaticProp:
		_, className := w.staticTarget(t.Class)
		scope := w.a.staticScope(className)
		preds := ops
		if w.weakWrites() {
			if prev := scope.Latest(t.Name); prev != nil {
				preds = append(append([]*Variable(nil), ops...), prev)
			}
		}
		v := w.a.newVariable(ast.Describe(t), line, KindProperty, scope, preds)
		scope.addVarAs(t.Name, v)
		return []*Variable{v}

	case *ast.Array:
		// Destructuring: every target receives the taint of the whole value.
		for _, item := range t.Items {
			if item.Value != nil {
				w.assignTo(item.Value, ops, line)
			}
		}
		return ops
	}

	w.eval(target)
	return ops
}
