package ast

import (
	"strconv"
	"strings"
)

// Describe renders a short, single-line form of an expression. It labels
// argument values in traces, so it favours readability over round-tripping.
func Describe(e Expr) string {
	var b strings.Builder
	describe(&b, e)
	return b.String()
}

func describe(b *strings.Builder, e Expr) {
	switch n := e.(type) {
	case nil:
		b.WriteString("?")
	case *Var:
		b.WriteString(n.Name)
	case *Index:
		describe(b, n.Base)
		b.WriteByte('[')
		if n.Index != nil {
			describe(b, n.Index)
		}
		b.WriteByte(']')
	case *Prop:
		describe(b, n.Object)
		if n.NullSafe {
			b.WriteString("?->")
		} else {
			b.WriteString("->")
		}
		if n.Name == "" {
			b.WriteString("{...}")
		} else {
			b.WriteString(n.Name)
		}
	case *StaticProp:
		b.WriteString(n.Class + "::$" + n.Name)
	case *Lit:
		if n.Kind == LitString {
			b.WriteString(strconv.Quote(n.Value))
		} else {
			b.WriteString(n.Value)
		}
	case *Interp:
		b.WriteString(`"...`)
		for _, p := range n.Parts {
			b.WriteString("{")
			describe(b, p)
			b.WriteString("}")
		}
		b.WriteString(`..."`)
	case *Binary:
		describe(b, n.Left)
		b.WriteString(" " + n.Op + " ")
		describe(b, n.Right)
	case *Unary:
		b.WriteString(n.Op)
		describe(b, n.X)
	case *Cast:
		b.WriteString("(" + n.Type + ")")
		describe(b, n.X)
	case *Assign:
		describe(b, n.Target)
		b.WriteString(" " + n.Op + " ")
		describe(b, n.Value)
	case *Array:
		b.WriteString("[...]")
	case *Ternary:
		describe(b, n.Cond)
		if n.Coalesce {
			b.WriteString(" ?? ")
			describe(b, n.Else)
			return
		}
		b.WriteString(" ? ")
		if n.Then != nil {
			describe(b, n.Then)
		}
		b.WriteString(" : ")
		describe(b, n.Else)
	case *Call:
		b.WriteString(n.Name + "(...)")
	case *DynamicCall:
		describe(b, n.Callee)
		b.WriteString("(...)")
	case *MethodCall:
		describe(b, n.Receiver)
		b.WriteString("->" + n.Method + "(...)")
	case *StaticCall:
		b.WriteString(n.Class + "::" + n.Method + "(...)")
	case *New:
		b.WriteString("new " + n.Class + "(...)")
	case *Opaque:
		b.WriteString("<" + n.Kind + ">")
	default:
		b.WriteString("?")
	}
}
