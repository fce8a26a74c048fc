package builtin

import (
	"github.com/zeptools/gw-typst/diag"
	"github.com/zeptools/gw-typst/values"
)

type at struct{ span diag.Span }

func (a at) Span() diag.Span { return a.span }

// Node is a markup node.
type Node interface {
	Span() diag.Span
}

type (
	TextNode struct {
		at
		Text string
	}
	SpaceNode     struct{ at }
	LinebreakNode struct{ at }
	ParbreakNode  struct{ at }
	StrongNode    struct {
		at
		Body []Node
	}
	EmphNode struct {
		at
		Body []Node
	}
	HeadingNode struct {
		at
		Level int
		Body  []Node
	}
	// EmbedNode is code embedded in markup with '#'.
	EmbedNode struct {
		at
		Expr Expr
	}
)

// Expr is a code expression.
type Expr interface {
	Span() diag.Span
}

type (
	Ident struct {
		at
		Name string
	}
	Literal struct {
		at
		Value values.Value
	}
	ArrayExpr struct {
		at
		Items []Expr
	}
	DictExpr struct {
		at
		Keys  []string
		Items []Expr
	}
	UnaryExpr struct {
		at
		Op string
		X  Expr
	}
	BinaryExpr struct {
		at
		Op   string
		X, Y Expr
	}
	FieldExpr struct {
		at
		X    Expr
		Name string
	}
	CallExpr struct {
		at
		Callee Expr
		Args   []Arg
	}
	ContentBlock struct {
		at
		Body []Node
	}
	CodeBlock struct {
		at
		Exprs []Expr
	}
	LetExpr struct {
		at
		Pattern Pattern
		Params  []Param // non-nil for `let f(x) = ...`
		Init    Expr    // nil binds none
	}
	SetExpr struct {
		at
		Target *Ident
		Args   []Arg
	}
	ForExpr struct {
		at
		Pattern Pattern
		Iter    Expr
		Body    Expr
	}
	IfExpr struct {
		at
		Cond Expr
		Then Expr
		Else Expr // nil when absent
	}
)

type Arg struct {
	Name  string // empty for positional
	Value Expr
}

type Param struct {
	Name    string
	Default Expr // nil for positional parameters
}

// Pattern binds one name, or destructures an array into several.
type Pattern struct {
	Names       []string
	Destructure bool
}
