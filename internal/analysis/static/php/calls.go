package php

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/phpsca/internal/analysis/core"
	"github.com/xkilldash9x/phpsca/internal/analysis/static/php/ast"
)

// FunctionDecl is a declared function or method. Its body is analyzed again
// for every live call context, each time under a fresh function scope.
type FunctionDecl struct {
	Name string
	// Class is set for methods.
	Class *ClassDecl
	Decl  *ast.FuncDecl
	// Conditional declarations appear inside a branch or another body. They are
	// not callable because their existence depends on run-time control flow.
	Conditional bool

	scopes   []*Scope
	contexts []string
	live     bool
	dead     bool
}

// QualifiedName returns `Class::method` for methods and the plain name otherwise.
func (f *FunctionDecl) QualifiedName() string {
	if f.Class != nil {
		return f.Class.Name + "::" + f.Name
	}
	return f.Name
}

func (f *FunctionDecl) Params() []ast.Param { return f.Decl.Params }

// Scope returns the body scope of the most recent analysis of the declaration,
// or nil if it was never walked.
func (f *FunctionDecl) Scope() *Scope {
	if len(f.scopes) == 0 {
		return nil
	}
	return f.scopes[len(f.scopes)-1]
}

// Scopes returns one body scope per analyzed context, in analysis order.
func (f *FunctionDecl) Scopes() []*Scope { return append([]*Scope(nil), f.scopes...) }

// Contexts returns the keys of the call contexts the body was analyzed under.
func (f *FunctionDecl) Contexts() []string { return append([]string(nil), f.contexts...) }

// Dead reports whether the declaration is never reached from live code.
func (f *FunctionDecl) Dead() bool { return f.dead }

// frame is one active invocation.
type frame struct {
	decl     *FunctionDecl
	site     *CallSite
	receiver *ObjectInstance
	scope    *Scope
	this     *Variable
	returns  []*Variable
	ctxKey   string
	// sig summarizes the argument taint the body was entered with.
	sig string
	// weak is set when the call itself may not run, so the callee's
	// property writes cannot replace earlier values.
	weak bool
}

// -- Declarations --

// declareFunction registers a function. The first declaration of a name wins.
func (w *walker) declareFunction(decl *ast.FuncDecl, conditional bool) *FunctionDecl {
	key := core.NormalizeFunctionName(decl.Name)
	if fn, ok := w.a.functions[key]; ok {
		return fn
	}
	fn := &FunctionDecl{Name: decl.Name, Decl: decl, Conditional: conditional}
	w.a.functions[key] = fn
	w.a.declOrder = append(w.a.declOrder, fn)
	return fn
}

func (w *walker) declareClass(decl *ast.ClassDecl, conditional bool) *ClassDecl {
	key := core.NormalizeFunctionName(decl.Name)
	if c, ok := w.a.classes[key]; ok {
		return c
	}
	c := &ClassDecl{
		Name:        decl.Name,
		Parent:      decl.Extends,
		Decl:        decl,
		Conditional: conditional,
		methods:     make(map[string]*FunctionDecl),
	}
	for _, m := range decl.Methods {
		mkey := core.NormalizeFunctionName(m.Name)
		if _, dup := c.methods[mkey]; dup {
			continue
		}
		fn := &FunctionDecl{Name: m.Name, Class: c, Decl: m, Conditional: conditional}
		c.methods[mkey] = fn
		w.a.declOrder = append(w.a.declOrder, fn)
	}
	w.a.classes[key] = c
	return c
}

// hoist registers the unconditional top-level declarations before traversal,
// so calls may precede declarations as they can in PHP.
func (w *walker) hoist(stmts []ast.Stmt) {
	for _, s := range stmts {
		switch s := s.(type) {
		case *ast.FuncDecl:
			w.declareFunction(s, false)
		case *ast.ClassDecl:
			w.declareClass(s, false)
		}
	}
}

// callableFunction returns the declaration a name-based call dispatches to.
func (w *walker) callableFunction(name string) *FunctionDecl {
	fn, ok := w.a.functions[core.NormalizeFunctionName(name)]
	if !ok || fn.Conditional {
		return nil
	}
	return fn
}

func (w *walker) callableClass(name string) *ClassDecl {
	c, ok := w.a.classes[core.NormalizeFunctionName(name)]
	if !ok || c.Conditional {
		return nil
	}
	return c
}

// -- Invocation --

func (w *walker) top() *frame {
	if len(w.stack) == 0 {
		return nil
	}
	return w.stack[len(w.stack)-1]
}

func (w *walker) ctxKey() string {
	if f := w.top(); f != nil {
		return f.ctxKey
	}
	return ""
}

// callPath renders the live call stack as "name@line" entries joined by " > ".
func (w *walker) callPath() string {
	parts := make([]string, 0, len(w.stack))
	for _, f := range w.stack {
		if f.site != nil {
			parts = append(parts, f.site.String())
		}
	}
	return strings.Join(parts, " > ")
}

// contextKey identifies a call context by its parent context, the call site,
// the receiver and the argument versions.
func (w *walker) contextKey(site *CallSite, receiver *ObjectInstance, args [][]*Variable) string {
	var b strings.Builder
	b.WriteString(w.ctxKey())
	b.WriteByte('/')
	b.WriteString(strconv.Itoa(site.ID))
	if receiver != nil {
		b.WriteString("@")
		b.WriteString(strconv.Itoa(receiver.ID))
	}
	b.WriteByte('(')
	for i, ops := range args {
		if i > 0 {
			b.WriteByte(',')
		}
		for j, v := range ops {
			if j > 0 {
				b.WriteByte('|')
			}
			b.WriteString(strconv.Itoa(int(v.ID)))
		}
	}
	b.WriteByte(')')
	return b.String()
}

// taintSignature summarizes what a callee can observe about its arguments:
// user control, taint classes and object identity per position.
func taintSignature(args [][]*Variable) string {
	var b strings.Builder
	for i, ops := range args {
		if i > 0 {
			b.WriteByte(',')
		}
		labels := core.NewClassSet()
		controlled := false
		for _, v := range ops {
			if v.ControlledByUser() {
				controlled = true
				labels.Union(v.Labels())
			}
			if v.Object != nil {
				b.WriteByte('#')
				b.WriteString(strconv.Itoa(v.Object.ID))
			}
		}
		if controlled {
			b.WriteByte('u')
		}
		for _, c := range labels.Sorted() {
			b.WriteByte(' ')
			b.WriteString(string(c))
		}
	}
	return b.String()
}

// guarded reports whether invoking decl would re-enter an active frame of
// the same declaration, receiver and argument taint, or exceed the call
// depth limit. Re-entry with the same taint cannot add flows, so recursion
// stops after one level whichever site it goes through.
func (w *walker) guarded(decl *FunctionDecl, site *CallSite, receiver *ObjectInstance, sig string) bool {
	if len(w.stack) >= w.opts.MaxCallDepth {
		w.a.logger.Warn("Call depth limit reached, treating call as analyzed",
			zap.String("callee", decl.QualifiedName()),
			zap.Int("line", site.Pos.Line),
			zap.Int("max_call_depth", w.opts.MaxCallDepth),
		)
		return true
	}
	for _, f := range w.stack {
		if f.decl == decl && f.receiver == receiver && f.sig == sig {
			w.a.logger.Debug("Recursive call context already active",
				zap.String("callee", decl.QualifiedName()),
				zap.Int("line", site.Pos.Line),
			)
			return true
		}
	}
	return false
}

// invoke analyzes decl's body for one call context and returns the operands
// of the call result.
func (w *walker) invoke(decl *FunctionDecl, site *CallSite, receiver *ObjectInstance, args [][]*Variable) []*Variable {
	sig := taintSignature(args)
	if w.dead || w.guarded(decl, site, receiver, sig) {
		return w.unknownResult(args)
	}

	decl.live = true
	fr := &frame{
		decl:     decl,
		site:     site,
		receiver: receiver,
		ctxKey:   w.contextKey(site, receiver, args),
		sig:      sig,
		weak:     w.weakWrites(),
	}
	decl.contexts = append(decl.contexts, fr.ctxKey)
	fr.scope = w.a.newScope(ScopeFunction, w.a.global, decl.QualifiedName())
	decl.scopes = append(decl.scopes, fr.scope)

	w.stack = append(w.stack, fr)
	defer func() { w.stack = w.stack[:len(w.stack)-1] }()

	w.enterBody(fr, args)
	w.stmts(decl.Decl.Body, fr.scope)

	if len(fr.returns) == 0 {
		return nil
	}
	result := w.a.newVariable(decl.QualifiedName()+"()", site.Pos.Line, KindTemp, w.scope, fr.returns)
	return []*Variable{result}
}

// enterBody binds the receiver and parameters in the frame's scope. A missing
// argument evaluates the parameter default inside the callee scope.
func (w *walker) enterBody(fr *frame, args [][]*Variable) {
	line := fr.decl.Decl.Pos.Line
	if fr.receiver != nil {
		fr.this = w.a.newVariable("$this", line, KindTemp, fr.scope, nil)
		fr.this.Object = fr.receiver
	}
	for i, p := range fr.decl.Params() {
		var preds []*Variable
		switch {
		case i < len(args):
			preds = args[i]
		case p.Default != nil:
			preds = w.evalIn(p.Default, fr.scope)
		}
		v := w.a.newVariable(p.Name, p.Pos.Line, KindParam, fr.scope, preds)
		_ = fr.scope.AddVar(v)
	}
}

// walkDead walks every declaration never reached from live code once, with
// its scope marked dead. Call sites inside are registered so they can be
// enumerated, but nothing is recorded and no callee is invoked.
func (w *walker) walkDead() {
	w.dead = true
	defer func() { w.dead = false }()

	for i := 0; i < len(w.a.declOrder); i++ {
		decl := w.a.declOrder[i]
		if decl.live || decl.dead {
			continue
		}
		decl.dead = true
		scope := w.a.newScope(ScopeFunction, w.a.global, decl.QualifiedName())
		scope.markDead()
		decl.scopes = append(decl.scopes, scope)

		w.a.logger.Debug("Walking unreachable declaration", zap.String("name", decl.QualifiedName()))

		fr := &frame{decl: decl, scope: scope, ctxKey: "dead:" + decl.QualifiedName()}
		w.stack = append(w.stack, fr)
		w.enterBody(fr, nil)
		w.stmts(decl.Decl.Body, scope)
		w.stack = w.stack[:len(w.stack)-1]
	}
}

// unknownResult applies the unknown-call policy to the argument operands.
func (w *walker) unknownResult(args [][]*Variable) []*Variable {
	if !w.opts.PropagateUnknownCalls {
		return nil
	}
	return flatten(args)
}

func flatten(args [][]*Variable) []*Variable {
	var out []*Variable
	for _, ops := range args {
		out = append(out, ops...)
	}
	return out
}

// -- Call expressions --

// evalArgs evaluates arguments left to right.
func (w *walker) evalArgs(args []ast.Expr) [][]*Variable {
	out := make([][]*Variable, len(args))
	for i, arg := range args {
		out[i] = w.eval(arg)
	}
	return out
}

// callKind classifies a name-based call.
func (w *walker) callKind(name string) CallKind {
	t := w.tables
	if _, ok := t.CheckIfSink(name); ok {
		return CallSink
	}
	if _, ok := t.CheckIfSanitizer(name); ok {
		return CallSanitizer
	}
	if t.CheckIfSourceFunction(name) {
		return CallSource
	}
	if w.callableFunction(name) != nil {
		return CallFunction
	}
	if t.CheckIfPropagator(name) {
		return CallPropagator
	}
	return CallUnknown
}

func (w *walker) evalCall(c *ast.Call) []*Variable {
	site := w.a.registerCall(c.Name, w.callKind(c.Name), c.Pos, c.Args, w.dead)
	args := w.evalArgs(c.Args)
	line := c.Pos.Line

	if class, ok := w.tables.CheckIfSink(c.Name); ok {
		site.Class = class
		if !w.dead {
			w.a.recordSink(site, class, w.scope, args, w.ctxKey(), w.callPath())
		}
		if w.tables.CheckIfPropagator(c.Name) {
			return flatten(args)
		}
		return w.unknownResult(args)
	}
	if classes, ok := w.tables.CheckIfSanitizer(c.Name); ok {
		return []*Variable{w.a.sanitized(c.Name+"()", line, w.scope, flatten(args), classes)}
	}
	if w.tables.CheckIfSourceFunction(c.Name) {
		return []*Variable{w.a.newRoot(c.Name+"()", c.Name, line, KindRoot, w.scope)}
	}
	if fn := w.callableFunction(c.Name); fn != nil {
		return w.invoke(fn, site, nil, args)
	}
	if w.tables.CheckIfPropagator(c.Name) {
		return flatten(args)
	}
	return w.unknownResult(args)
}

func (w *walker) evalDynamicCall(c *ast.DynamicCall) []*Variable {
	w.eval(c.Callee)
	name := ast.Describe(c.Callee) + "(...)"
	w.a.registerCall(name, CallUnknown, c.Pos, c.Args, w.dead)
	return w.unknownResult(w.evalArgs(c.Args))
}

func (w *walker) evalMethodCall(c *ast.MethodCall) []*Variable {
	recvOps := w.eval(c.Receiver)
	obj := objectOf(recvOps)
	site := w.a.registerCall(ast.Describe(c.Receiver)+"->"+c.Method, CallMethod, c.Pos, c.Args, w.dead)
	args := w.evalArgs(c.Args)

	if obj != nil && c.Method != "" {
		if m := w.a.lookupMethod(obj.Class, c.Method); m != nil {
			return w.invoke(m, site, obj, args)
		}
	}
	return w.unknownResult(args)
}

// staticTarget resolves the class named in a static call or `new` expression,
// including self, static and parent relative to the active method.
func (w *walker) staticTarget(name string) (*ClassDecl, string) {
	var current *ClassDecl
	if f := w.top(); f != nil && f.decl.Class != nil {
		current = f.decl.Class
	}
	switch strings.ToLower(name) {
	case "self", "static":
		if current != nil {
			return current, current.Name
		}
		return nil, name
	case "parent":
		if p := w.a.parentClass(current); p != nil {
			return p, p.Name
		}
		return nil, name
	}
	return w.callableClass(name), name
}

func (w *walker) evalStaticCall(c *ast.StaticCall) []*Variable {
	class, className := w.staticTarget(c.Class)
	site := w.a.registerCall(className+"::"+c.Method, CallMethod, c.Pos, c.Args, w.dead)
	args := w.evalArgs(c.Args)

	if class == nil || c.Method == "" {
		return w.unknownResult(args)
	}
	m := w.a.lookupMethod(class, c.Method)
	if m == nil {
		return w.unknownResult(args)
	}
	// self:: and parent:: keep the current receiver, A::m() has none.
	var receiver *ObjectInstance
	switch strings.ToLower(c.Class) {
	case "self", "static", "parent":
		if f := w.top(); f != nil {
			receiver = f.receiver
		}
	}
	return w.invoke(m, site, receiver, args)
}

// evalNew creates an instance, initializes its declared property defaults
// (base class first) and runs the constructor.
func (w *walker) evalNew(n *ast.New) []*Variable {
	class, className := w.staticTarget(n.Class)
	if className == "" {
		className = "class@anonymous"
	}
	site := w.a.registerCall("new "+className, CallConstructor, n.Pos, n.Args, w.dead)
	args := w.evalArgs(n.Args)
	if w.dead {
		return nil
	}

	obj := w.a.newInstance(className, class, n.Pos.Line)
	for _, c := range w.a.lineage(class) {
		for _, p := range c.Decl.Props {
			if p.Static {
				continue
			}
			var ops []*Variable
			if p.Default != nil {
				ops = w.eval(p.Default)
			}
			w.a.writeProperty(obj, p.Name, "$this->"+p.Name, p.Pos.Line, ops, false)
		}
	}
	if ctor := w.a.constructorOf(class); ctor != nil {
		w.invoke(ctor, site, obj, args)
	}

	ref := w.a.newVariable("new "+className, n.Pos.Line, KindTemp, w.scope, nil)
	ref.Object = obj
	return []*Variable{ref}
}
