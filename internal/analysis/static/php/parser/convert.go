package parser

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/xkilldash9x/phpsca/internal/analysis/static/php/ast"
)

// converter maps tree-sitter-php node types onto ast nodes.
type converter struct {
	src []byte
}

func (c *converter) text(n *sitter.Node) string {
	return NodeContent(n, c.src)
}

// skippedNodes never contribute statements or values.
var skippedNodes = map[string]bool{
	"comment":                    true,
	"php_tag":                    true,
	"text_interpolation":         true,
	"text":                       true,
	"empty_statement":            true,
	"namespace_use_declaration":  true,
	"const_declaration":          true,
	"interface_declaration":      true,
	"break_statement":            true,
	"continue_statement":         true,
	"goto_statement":             true,
	"named_label_statement":      true,
	"unset_statement":            true,
	"use_declaration":            true,
	"attribute_list":             true,
	"variadic_placeholder":       true,
	"visibility_modifier":        true,
	"static_modifier":            true,
	"abstract_modifier":          true,
	"final_modifier":             true,
	"readonly_modifier":          true,
	"var_modifier":               true,
	"reference_modifier":         true,
	"named_type":                 true,
	"optional_type":              true,
	"union_type":                 true,
	"primitive_type":             true,
	"intersection_type":          true,
}

// -- Statements --

// stmtList converts the named children of n as statements.
func (c *converter) stmtList(n *sitter.Node) []ast.Stmt {
	var out []ast.Stmt
	for i := 0; i < int(n.NamedChildCount()); i++ {
		out = append(out, c.stmt(n.NamedChild(i))...)
	}
	return out
}

// body converts a statement body, which is either a block or a single statement.
func (c *converter) body(n *sitter.Node) []ast.Stmt {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "compound_statement", "colon_block", "declaration_list", "switch_block":
		return c.stmtList(n)
	}
	return c.stmt(n)
}

func (c *converter) stmt(n *sitter.Node) []ast.Stmt {
	if n == nil || skippedNodes[n.Type()] {
		return nil
	}
	pos := position(n)

	switch n.Type() {
	case "compound_statement", "colon_block":
		return c.stmtList(n)

	case "namespace_definition":
		return c.body(n.ChildByFieldName("body"))

	case "declare_statement":
		// declare(strict_types=1) carries no data flow; its optional body does.
		var out []ast.Stmt
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			if child.Type() != "declare_directive" {
				out = append(out, c.stmt(child)...)
			}
		}
		return out

	case "expression_statement":
		if n.NamedChildCount() == 0 {
			return nil
		}
		return []ast.Stmt{&ast.ExprStmt{StmtNode: ast.StmtNode{Pos: pos}, X: c.expr(n.NamedChild(0))}}

	case "echo_statement":
		call := &ast.Call{ExprNode: ast.ExprNode{Pos: pos}, Name: "echo", Construct: true, Args: c.exprList(n)}
		return []ast.Stmt{&ast.ExprStmt{StmtNode: ast.StmtNode{Pos: pos}, X: call}}

	case "exit_statement":
		call := &ast.Call{ExprNode: ast.ExprNode{Pos: pos}, Name: "exit", Construct: true, Args: c.exprList(n)}
		return []ast.Stmt{&ast.ExprStmt{StmtNode: ast.StmtNode{Pos: pos}, X: call}}

	case "return_statement":
		ret := &ast.Return{StmtNode: ast.StmtNode{Pos: pos}}
		if n.NamedChildCount() > 0 {
			ret.Value = c.expr(n.NamedChild(0))
		}
		return []ast.Stmt{ret}

	case "global_declaration":
		g := &ast.Global{StmtNode: ast.StmtNode{Pos: pos}}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if child := n.NamedChild(i); child.Type() == "variable_name" {
				g.Names = append(g.Names, c.text(child))
			}
		}
		return []ast.Stmt{g}

	case "function_static_declaration":
		sv := &ast.StaticVar{StmtNode: ast.StmtNode{Pos: pos}}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			decl := n.NamedChild(i)
			if decl.Type() != "static_variable_declaration" {
				continue
			}
			name := decl.ChildByFieldName("name")
			if name == nil && decl.NamedChildCount() > 0 {
				name = decl.NamedChild(0)
			}
			sv.Names = append(sv.Names, c.text(name))
			var init ast.Expr
			if value := decl.ChildByFieldName("value"); value != nil {
				init = c.expr(value)
			}
			sv.Inits = append(sv.Inits, init)
		}
		return []ast.Stmt{sv}

	case "if_statement":
		return []ast.Stmt{c.ifStmt(n)}

	case "switch_statement":
		return []ast.Stmt{c.switchStmt(n)}

	case "while_statement", "do_statement":
		return []ast.Stmt{&ast.While{
			StmtNode: ast.StmtNode{Pos: pos},
			EndLine:  endLine(n),
			Cond:     c.condition(n.ChildByFieldName("condition")),
			Body:     c.body(n.ChildByFieldName("body")),
			Do:       n.Type() == "do_statement",
		}}

	case "for_statement":
		return []ast.Stmt{c.forStmt(n)}

	case "foreach_statement":
		return []ast.Stmt{c.foreachStmt(n)}

	case "try_statement":
		return []ast.Stmt{c.tryStmt(n)}

	case "function_definition":
		return []ast.Stmt{c.funcDecl(n)}

	case "class_declaration", "trait_declaration", "enum_declaration":
		return []ast.Stmt{c.classDecl(n)}
	}

	// Anything else is evaluated for its sub-expressions.
	return []ast.Stmt{&ast.ExprStmt{StmtNode: ast.StmtNode{Pos: pos}, X: c.expr(n)}}
}

// condition unwraps the parenthesized condition of a control statement.
func (c *converter) condition(n *sitter.Node) ast.Expr {
	if n == nil {
		return nil
	}
	return c.expr(n)
}

func (c *converter) ifStmt(n *sitter.Node) *ast.If {
	out := &ast.If{
		StmtNode: ast.StmtNode{Pos: position(n)},
		EndLine:  endLine(n),
		Cond:     c.condition(n.ChildByFieldName("condition")),
		Then:     c.body(n.ChildByFieldName("body")),
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "else_if_clause":
			out.ElseIfs = append(out.ElseIfs, ast.ElseIf{
				Pos:  position(child),
				Cond: c.condition(child.ChildByFieldName("condition")),
				Body: c.clauseBody(child),
			})
		case "else_clause":
			out.HasElse = true
			out.Else = c.clauseBody(child)
		}
	}
	return out
}

// clauseBody returns the body of an else/elseif clause, falling back to its
// statement children when the grammar exposes no body field.
func (c *converter) clauseBody(clause *sitter.Node) []ast.Stmt {
	if b := clause.ChildByFieldName("body"); b != nil {
		return c.body(b)
	}
	var out []ast.Stmt
	cond := clause.ChildByFieldName("condition")
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		child := clause.NamedChild(i)
		if cond != nil && child.StartByte() == cond.StartByte() && child.Type() == cond.Type() {
			continue
		}
		out = append(out, c.body(child)...)
	}
	return out
}

func (c *converter) switchStmt(n *sitter.Node) *ast.Switch {
	out := &ast.Switch{
		StmtNode: ast.StmtNode{Pos: position(n)},
		EndLine:  endLine(n),
		Subject:  c.condition(n.ChildByFieldName("condition")),
	}
	block := n.ChildByFieldName("body")
	if block == nil {
		return out
	}
	for i := 0; i < int(block.NamedChildCount()); i++ {
		arm := block.NamedChild(i)
		switch arm.Type() {
		case "case_statement":
			value := arm.ChildByFieldName("value")
			kase := ast.Case{Pos: position(arm)}
			for j := 0; j < int(arm.NamedChildCount()); j++ {
				child := arm.NamedChild(j)
				if j == 0 && (value == nil || child.StartByte() == value.StartByte()) {
					kase.Test = c.expr(child)
					continue
				}
				kase.Body = append(kase.Body, c.stmt(child)...)
			}
			kase.Terminated = endsCase(arm)
			out.Cases = append(out.Cases, kase)
		case "default_statement":
			out.Cases = append(out.Cases, ast.Case{
				Pos:        position(arm),
				Body:       c.stmtList(arm),
				Terminated: endsCase(arm),
			})
		}
	}
	return out
}

// endsCase reports whether a case arm leaves the switch instead of falling
// through to the next arm.
func endsCase(arm *sitter.Node) bool {
	for i := 0; i < int(arm.NamedChildCount()); i++ {
		switch arm.NamedChild(i).Type() {
		case "break_statement", "continue_statement", "return_statement":
			return true
		}
	}
	return false
}

// forStmt splits the header on its `;` tokens, which works whether or not the
// grammar labels the header fields.
func (c *converter) forStmt(n *sitter.Node) *ast.For {
	out := &ast.For{StmtNode: ast.StmtNode{Pos: position(n)}, EndLine: endLine(n)}
	segment := 0
	inHeader := false
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if !child.IsNamed() {
			switch child.Type() {
			case "(":
				inHeader = true
			case ";":
				if inHeader {
					segment++
				}
			case ")":
				inHeader = false
				segment = 3
			}
			continue
		}
		if skippedNodes[child.Type()] {
			continue
		}
		switch {
		case segment == 0 && inHeader:
			out.Init = append(out.Init, c.flatten(child)...)
		case segment == 1 && inHeader:
			out.Cond = append(out.Cond, c.flatten(child)...)
		case segment == 2 && inHeader:
			out.Update = append(out.Update, c.flatten(child)...)
		default:
			out.Body = append(out.Body, c.body(child)...)
		}
	}
	return out
}

func (c *converter) foreachStmt(n *sitter.Node) *ast.Foreach {
	out := &ast.Foreach{StmtNode: ast.StmtNode{Pos: position(n)}, EndLine: endLine(n)}
	const (
		beforeAs = iota
		afterAs
		inBody
	)
	state := beforeAs
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if !child.IsNamed() {
			switch strings.ToLower(child.Type()) {
			case "as":
				state = afterAs
			case ")":
				if state == afterAs {
					state = inBody
				}
			}
			continue
		}
		if skippedNodes[child.Type()] {
			continue
		}
		switch state {
		case beforeAs:
			out.Subject = c.expr(child)
		case afterAs:
			if child.Type() == "pair" && child.NamedChildCount() >= 2 {
				out.Key = c.expr(child.NamedChild(0))
				out.Value = c.expr(child.NamedChild(1))
			} else {
				out.Value = c.expr(child)
			}
		default:
			out.Body = append(out.Body, c.body(child)...)
		}
	}
	return out
}

func (c *converter) tryStmt(n *sitter.Node) *ast.Try {
	out := &ast.Try{
		StmtNode: ast.StmtNode{Pos: position(n)},
		EndLine:  endLine(n),
		Body:     c.body(n.ChildByFieldName("body")),
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "catch_clause":
			catch := ast.Catch{Pos: position(child), Body: c.body(child.ChildByFieldName("body"))}
			if name := child.ChildByFieldName("name"); name != nil {
				catch.Var = c.text(name)
			}
			out.Catches = append(out.Catches, catch)
		case "finally_clause":
			out.Finally = c.body(child.ChildByFieldName("body"))
		}
	}
	return out
}

func (c *converter) funcDecl(n *sitter.Node) *ast.FuncDecl {
	decl := &ast.FuncDecl{
		StmtNode: ast.StmtNode{Pos: position(n)},
		EndLine:  endLine(n),
		Name:     c.text(n.ChildByFieldName("name")),
		Params:   c.params(n.ChildByFieldName("parameters")),
		Body:     c.body(n.ChildByFieldName("body")),
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if n.NamedChild(i).Type() == "static_modifier" {
			decl.Static = true
		}
	}
	return decl
}

func (c *converter) params(n *sitter.Node) []ast.Param {
	if n == nil {
		return nil
	}
	var out []ast.Param
	for i := 0; i < int(n.NamedChildCount()); i++ {
		p := n.NamedChild(i)
		switch p.Type() {
		case "simple_parameter", "variadic_parameter", "property_promotion_parameter":
		default:
			continue
		}
		param := ast.Param{Pos: position(p), Name: c.text(p.ChildByFieldName("name"))}
		if def := p.ChildByFieldName("default_value"); def != nil {
			param.Default = c.expr(def)
		}
		for j := 0; j < int(p.ChildCount()); j++ {
			if p.Child(j).Type() == "reference_modifier" {
				param.ByRef = true
			}
		}
		out = append(out, param)
	}
	return out
}

func (c *converter) classDecl(n *sitter.Node) *ast.ClassDecl {
	decl := &ast.ClassDecl{
		StmtNode: ast.StmtNode{Pos: position(n)},
		EndLine:  endLine(n),
		Name:     c.text(n.ChildByFieldName("name")),
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == "base_clause" && child.NamedChildCount() > 0 {
			decl.Extends = strings.TrimPrefix(c.text(child.NamedChild(0)), `\`)
		}
	}

	body := n.ChildByFieldName("body")
	if body == nil {
		return decl
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		member := body.NamedChild(i)
		switch member.Type() {
		case "method_declaration":
			decl.Methods = append(decl.Methods, c.funcDecl(member))
		case "property_declaration":
			decl.Props = append(decl.Props, c.propDecls(member)...)
		}
	}
	return decl
}

func (c *converter) propDecls(n *sitter.Node) []ast.PropDecl {
	static := false
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if n.NamedChild(i).Type() == "static_modifier" {
			static = true
		}
	}
	var out []ast.PropDecl
	for i := 0; i < int(n.NamedChildCount()); i++ {
		elem := n.NamedChild(i)
		if elem.Type() != "property_element" {
			continue
		}
		name := elem.ChildByFieldName("name")
		if name == nil && elem.NamedChildCount() > 0 {
			name = elem.NamedChild(0)
		}
		prop := ast.PropDecl{
			Pos:    position(elem),
			Name:   strings.TrimPrefix(c.text(name), "$"),
			Static: static,
		}
		if def := elem.ChildByFieldName("default_value"); def != nil {
			prop.Default = c.expr(def)
		} else {
			for j := 0; j < int(elem.NamedChildCount()); j++ {
				init := elem.NamedChild(j)
				if init.Type() == "property_initializer" && init.NamedChildCount() > 0 {
					prop.Default = c.expr(init.NamedChild(0))
				}
			}
		}
		out = append(out, prop)
	}
	return out
}

// -- Expressions --

// exprList converts every named child of n, flattening comma sequences.
func (c *converter) exprList(n *sitter.Node) []ast.Expr {
	var out []ast.Expr
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if skippedNodes[child.Type()] {
			continue
		}
		out = append(out, c.flatten(child)...)
	}
	return out
}

// flatten expands a sequence_expression into its elements.
func (c *converter) flatten(n *sitter.Node) []ast.Expr {
	if n.Type() != "sequence_expression" {
		return []ast.Expr{c.expr(n)}
	}
	var out []ast.Expr
	for i := 0; i < int(n.NamedChildCount()); i++ {
		out = append(out, c.flatten(n.NamedChild(i))...)
	}
	return out
}

func (c *converter) args(n *sitter.Node) []ast.Expr {
	if n == nil {
		return nil
	}
	var out []ast.Expr
	for i := 0; i < int(n.NamedChildCount()); i++ {
		arg := n.NamedChild(i)
		if skippedNodes[arg.Type()] {
			continue
		}
		if arg.Type() != "argument" {
			out = append(out, c.expr(arg))
			continue
		}
		// Skip the label of a named argument; the value is the last named child.
		if arg.NamedChildCount() == 0 {
			continue
		}
		out = append(out, c.expr(arg.NamedChild(int(arg.NamedChildCount())-1)))
	}
	return out
}

func (c *converter) expr(n *sitter.Node) ast.Expr {
	if n == nil {
		return nil
	}
	pos := position(n)
	en := ast.ExprNode{Pos: pos}

	switch n.Type() {
	case "parenthesized_expression", "clone_expression", "error_suppression_expression", "by_ref", "variadic_unpacking":
		if n.NamedChildCount() == 0 {
			return &ast.Opaque{ExprNode: en, Kind: n.Type()}
		}
		return c.expr(n.NamedChild(0))

	case "variable_name":
		return &ast.Var{ExprNode: en, Name: c.text(n)}

	case "subscript_expression":
		idx := &ast.Index{ExprNode: en}
		if n.NamedChildCount() > 0 {
			idx.Base = c.expr(n.NamedChild(0))
		}
		if n.NamedChildCount() > 1 {
			idx.Index = c.expr(n.NamedChild(1))
		}
		return idx

	case "member_access_expression", "nullsafe_member_access_expression":
		return &ast.Prop{
			ExprNode: en,
			Object:   c.expr(n.ChildByFieldName("object")),
			Name:     c.memberName(n.ChildByFieldName("name")),
			NullSafe: n.Type() == "nullsafe_member_access_expression",
		}

	case "scoped_property_access_expression":
		return &ast.StaticProp{
			ExprNode: en,
			Class:    c.text(n.ChildByFieldName("scope")),
			Name:     strings.TrimPrefix(c.text(n.ChildByFieldName("name")), "$"),
		}

	case "string", "nowdoc":
		return &ast.Lit{ExprNode: en, Kind: ast.LitString, Value: unquote(c.text(n))}

	case "encapsed_string", "heredoc":
		parts := c.interpolated(n)
		if len(parts) == 0 {
			return &ast.Lit{ExprNode: en, Kind: ast.LitString, Value: unquote(c.text(n))}
		}
		return &ast.Interp{ExprNode: en, Parts: parts}

	case "shell_command_expression":
		cmd := &ast.Interp{ExprNode: en, Parts: c.interpolated(n)}
		return &ast.Call{ExprNode: en, Name: "`", Construct: true, Args: []ast.Expr{cmd}}

	case "integer":
		return &ast.Lit{ExprNode: en, Kind: ast.LitInt, Value: c.text(n)}
	case "float":
		return &ast.Lit{ExprNode: en, Kind: ast.LitFloat, Value: c.text(n)}
	case "boolean":
		return &ast.Lit{ExprNode: en, Kind: ast.LitBool, Value: c.text(n)}
	case "null":
		return &ast.Lit{ExprNode: en, Kind: ast.LitNull, Value: "null"}
	case "name", "qualified_name", "class_constant_access_expression":
		return &ast.Lit{ExprNode: en, Kind: ast.LitConst, Value: c.text(n)}

	case "binary_expression":
		return &ast.Binary{
			ExprNode: en,
			Op:       c.operator(n),
			Left:     c.expr(n.ChildByFieldName("left")),
			Right:    c.expr(n.ChildByFieldName("right")),
		}

	case "unary_op_expression":
		u := &ast.Unary{ExprNode: en, Op: c.operator(n)}
		if n.NamedChildCount() > 0 {
			u.X = c.expr(n.NamedChild(int(n.NamedChildCount()) - 1))
		}
		return u

	case "cast_expression":
		cast := &ast.Cast{ExprNode: en}
		typ, value := n.ChildByFieldName("type"), n.ChildByFieldName("value")
		if typ == nil && n.NamedChildCount() > 0 {
			typ = n.NamedChild(0)
		}
		if value == nil && n.NamedChildCount() > 1 {
			value = n.NamedChild(1)
		}
		cast.Type = strings.ToLower(strings.TrimSpace(c.text(typ)))
		cast.X = c.expr(value)
		return cast

	case "assignment_expression", "reference_assignment_expression":
		return &ast.Assign{
			ExprNode: en,
			Target:   c.expr(n.ChildByFieldName("left")),
			Op:       "=",
			Value:    c.expr(n.ChildByFieldName("right")),
			ByRef:    n.Type() == "reference_assignment_expression",
		}

	case "augmented_assignment_expression":
		return &ast.Assign{
			ExprNode: en,
			Target:   c.expr(n.ChildByFieldName("left")),
			Op:       c.operator(n),
			Value:    c.expr(n.ChildByFieldName("right")),
		}

	case "conditional_expression":
		return &ast.Ternary{
			ExprNode: en,
			Cond:     c.expr(n.ChildByFieldName("condition")),
			Then:     c.expr(n.ChildByFieldName("body")),
			Else:     c.expr(n.ChildByFieldName("alternative")),
		}

	case "array_creation_expression", "list_literal":
		arr := &ast.Array{ExprNode: en}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			elem := n.NamedChild(i)
			switch {
			case elem.Type() == "array_element_initializer" && elem.NamedChildCount() >= 2:
				arr.Items = append(arr.Items, ast.ArrayItem{Key: c.expr(elem.NamedChild(0)), Value: c.expr(elem.NamedChild(1))})
			case elem.Type() == "array_element_initializer" && elem.NamedChildCount() == 1:
				arr.Items = append(arr.Items, ast.ArrayItem{Value: c.expr(elem.NamedChild(0))})
			case elem.Type() == "pair" && elem.NamedChildCount() >= 2:
				arr.Items = append(arr.Items, ast.ArrayItem{Key: c.expr(elem.NamedChild(0)), Value: c.expr(elem.NamedChild(1))})
			case !skippedNodes[elem.Type()]:
				arr.Items = append(arr.Items, ast.ArrayItem{Value: c.expr(elem)})
			}
		}
		return arr

	case "function_call_expression":
		fn := n.ChildByFieldName("function")
		args := c.args(n.ChildByFieldName("arguments"))
		if fn != nil && (fn.Type() == "name" || fn.Type() == "qualified_name") {
			return &ast.Call{ExprNode: en, Name: strings.TrimPrefix(c.text(fn), `\`), Args: args}
		}
		return &ast.DynamicCall{ExprNode: en, Callee: c.expr(fn), Args: args}

	case "member_call_expression", "nullsafe_member_call_expression":
		return &ast.MethodCall{
			ExprNode: en,
			Receiver: c.expr(n.ChildByFieldName("object")),
			Method:   c.memberName(n.ChildByFieldName("name")),
			Args:     c.args(n.ChildByFieldName("arguments")),
			NullSafe: n.Type() == "nullsafe_member_call_expression",
		}

	case "scoped_call_expression":
		return &ast.StaticCall{
			ExprNode: en,
			Class:    strings.TrimPrefix(c.text(n.ChildByFieldName("scope")), `\`),
			Method:   c.memberName(n.ChildByFieldName("name")),
			Args:     c.args(n.ChildByFieldName("arguments")),
		}

	case "object_creation_expression":
		obj := &ast.New{ExprNode: en}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			switch child.Type() {
			case "name", "qualified_name":
				obj.Class = strings.TrimPrefix(c.text(child), `\`)
			case "arguments":
				obj.Args = c.args(child)
			}
		}
		return obj

	case "print_intrinsic":
		return &ast.Call{ExprNode: en, Name: "print", Construct: true, Args: c.exprList(n)}

	case "include_expression", "include_once_expression", "require_expression", "require_once_expression":
		return &ast.Call{ExprNode: en, Name: strings.TrimSuffix(n.Type(), "_expression"), Construct: true, Args: c.exprList(n)}

	case "exit_statement":
		return &ast.Call{ExprNode: en, Name: "exit", Construct: true, Args: c.exprList(n)}

	case "anonymous_function_creation_expression", "anonymous_function", "arrow_function":
		return &ast.Opaque{ExprNode: en, Kind: "closure"}

	case "update_expression":
		// ++/-- yield numbers.
		return &ast.Lit{ExprNode: en, Kind: ast.LitInt, Value: c.text(n)}
	}

	return &ast.Opaque{ExprNode: en, Kind: n.Type(), Parts: c.exprList(n)}
}

// memberName returns a static member name, or "" for computed names.
func (c *converter) memberName(n *sitter.Node) string {
	if n == nil || n.Type() != "name" {
		return ""
	}
	return c.text(n)
}

// operator returns the operator token of a binary, unary or compound assignment node.
func (c *converter) operator(n *sitter.Node) string {
	if op := n.ChildByFieldName("operator"); op != nil {
		return c.text(op)
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if child := n.Child(i); !child.IsNamed() {
			return child.Type()
		}
	}
	return ""
}

// textualParts hold literal text inside interpolated strings.
var textualParts = map[string]bool{
	"string_content":  true,
	"string_value":    true,
	"escape_sequence": true,
	"heredoc_start":   true,
	"heredoc_end":     true,
	"nowdoc_body":     true,
	"nowdoc_string":   true,
	"text":            true,
}

// interpolated collects the expressions embedded in a double-quoted string,
// heredoc or backtick command.
func (c *converter) interpolated(n *sitter.Node) []ast.Expr {
	var out []ast.Expr
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch {
		case textualParts[child.Type()]:
		case child.Type() == "heredoc_body":
			out = append(out, c.interpolated(child)...)
		default:
			out = append(out, c.expr(child))
		}
	}
	return out
}

// unquote strips PHP string delimiters. Escapes are left untouched since only
// provenance matters to the engine.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "<<<") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		if nl := strings.LastIndexByte(s, '\n'); nl >= 0 {
			s = s[:nl]
		}
		return s
	}
	if len(s) > 0 && (s[0] == 'b' || s[0] == 'B') {
		s = s[1:]
	}
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
