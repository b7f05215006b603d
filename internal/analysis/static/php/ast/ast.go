// Package ast defines the closed PHP syntax tree consumed by the taint engine.
//
// The tree is produced by the parser package from a tree-sitter concrete syntax
// tree. Only constructs the engine reasons about get a dedicated node; anything
// else is folded into Opaque, whose value is derived from its parts.
package ast

// Pos locates a node in the source. Line and Column are 1-based, Offset is the byte offset.
type Pos struct {
	Line   int
	Column int
	Offset int
}

// Node is implemented by every syntax node. The unexported marker methods keep
// the set of node kinds closed.
type Node interface {
	Position() Pos
	node()
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// StmtNode is embedded by every statement.
type StmtNode struct{ Pos Pos }

func (n StmtNode) Position() Pos { return n.Pos }
func (StmtNode) node()           {}
func (StmtNode) stmtNode()       {}

// ExprNode is embedded by every expression.
type ExprNode struct{ Pos Pos }

func (n ExprNode) Position() Pos { return n.Pos }
func (ExprNode) node()           {}
func (ExprNode) exprNode()       {}

// -- Statements --

// File is the root of a parsed program.
type File struct {
	Name  string
	Stmts []Stmt
}

// ExprStmt evaluates an expression for its effects.
type ExprStmt struct {
	StmtNode
	X Expr
}

// ElseIf is one `elseif` arm of an If.
type ElseIf struct {
	Pos  Pos
	Cond Expr
	Body []Stmt
}

// If is a conditional. HasElse distinguishes an empty else arm from a missing one.
type If struct {
	StmtNode
	EndLine int
	Cond    Expr
	Then    []Stmt
	ElseIfs []ElseIf
	Else    []Stmt
	HasElse bool
}

// Case is one arm of a Switch. Test is nil for `default`. Terminated is set
// when the body ends in break, continue or return, so control never reaches
// the next case.
type Case struct {
	Pos        Pos
	Test       Expr
	Body       []Stmt
	Terminated bool
}

type Switch struct {
	StmtNode
	EndLine int
	Subject Expr
	Cases   []Case
}

// While covers both `while` and `do ... while`.
type While struct {
	StmtNode
	EndLine int
	Cond    Expr
	Body    []Stmt
	Do      bool
}

type For struct {
	StmtNode
	EndLine int
	Init    []Expr
	Cond    []Expr
	Update  []Expr
	Body    []Stmt
}

// Foreach binds Key (optional) and Value on every iteration over Subject.
type Foreach struct {
	StmtNode
	EndLine int
	Subject Expr
	Key     Expr
	Value   Expr
	Body    []Stmt
}

type Catch struct {
	Pos  Pos
	Var  string
	Body []Stmt
}

type Try struct {
	StmtNode
	EndLine int
	Body    []Stmt
	Catches []Catch
	Finally []Stmt
}

type Return struct {
	StmtNode
	Value Expr
}

// Global imports global variables into a function body.
type Global struct {
	StmtNode
	Names []string
}

// StaticVar declares function-static variables; they are analyzed as plain locals.
type StaticVar struct {
	StmtNode
	Names []string
	Inits []Expr
}

// Param is a formal parameter of a function or method.
type Param struct {
	Pos     Pos
	Name    string
	Default Expr
	ByRef   bool
}

// FuncDecl declares a function, or a method when it appears in a ClassDecl.
type FuncDecl struct {
	StmtNode
	EndLine int
	Name    string
	Params  []Param
	Body    []Stmt
	Static  bool
}

// PropDecl declares a class property. Name carries no sigil.
type PropDecl struct {
	Pos     Pos
	Name    string
	Default Expr
	Static  bool
}

type ClassDecl struct {
	StmtNode
	EndLine int
	Name    string
	Extends string
	Methods []*FuncDecl
	Props   []PropDecl
}

// -- Expressions --

// Var is a named variable, Name includes the `$` sigil.
type Var struct {
	ExprNode
	Name string
}

// Index is an array access. Index is nil for `$a[]`.
type Index struct {
	ExprNode
	Base  Expr
	Index Expr
}

// Prop is an instance property access. Name is empty for dynamic member names.
type Prop struct {
	ExprNode
	Object   Expr
	Name     string
	NullSafe bool
}

// StaticProp is a class property access such as `A::$x`.
type StaticProp struct {
	ExprNode
	Class string
	Name  string
}

// LitKind classifies literals.
type LitKind string

const (
	LitString LitKind = "string"
	LitInt    LitKind = "int"
	LitFloat  LitKind = "float"
	LitBool   LitKind = "bool"
	LitNull   LitKind = "null"
	LitConst  LitKind = "const"
)

type Lit struct {
	ExprNode
	Kind  LitKind
	Value string
}

// Interp is an interpolated string or heredoc. Parts holds only the embedded expressions.
type Interp struct {
	ExprNode
	Parts []Expr
}

type Binary struct {
	ExprNode
	Op    string
	Left  Expr
	Right Expr
}

type Unary struct {
	ExprNode
	Op string
	X  Expr
}

type Cast struct {
	ExprNode
	Type string
	X    Expr
}

// Assign covers `=`, `=&` and compound operators like `.=`.
type Assign struct {
	ExprNode
	Target Expr
	Op     string
	Value  Expr
	ByRef  bool
}

// ArrayItem is one element of an array literal or destructuring list. Key may be nil.
type ArrayItem struct {
	Key   Expr
	Value Expr
}

// Array is an array literal; as an assignment target it destructures.
type Array struct {
	ExprNode
	Items []ArrayItem
}

// Ternary covers `c ? a : b`, `c ?: b` (Then nil) and `a ?? b` (Coalesce).
type Ternary struct {
	ExprNode
	Cond     Expr
	Then     Expr
	Else     Expr
	Coalesce bool
}

// Call is a call by static name. Construct marks language constructs such as
// echo, print, include and backtick execution, which have no parentheses.
type Call struct {
	ExprNode
	Name      string
	Args      []Expr
	Construct bool
}

// DynamicCall calls a computed callee, e.g. `$f($x)`.
type DynamicCall struct {
	ExprNode
	Callee Expr
	Args   []Expr
}

type MethodCall struct {
	ExprNode
	Receiver Expr
	Method   string
	Args     []Expr
	NullSafe bool
}

type StaticCall struct {
	ExprNode
	Class  string
	Method string
	Args   []Expr
}

type New struct {
	ExprNode
	Class string
	Args  []Expr
}

// Opaque stands for a construct the engine does not model. Its value derives
// from Parts.
type Opaque struct {
	ExprNode
	Kind  string
	Parts []Expr
}
