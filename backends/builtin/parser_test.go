package builtin

import (
	"strings"
	"testing"
)

func TestParseMarkup(t *testing.T) {
	nodes, errs := Parse("= Title\nSome *bold* and _emph_ text.\n\nNext")
	if len(errs) > 0 {
		t.Fatalf("Parse() errors = %v", errs)
	}
	h, ok := nodes[0].(*HeadingNode)
	if !ok || h.Level != 1 {
		t.Fatalf("nodes[0] = %#v, want level 1 heading", nodes[0])
	}
	if txt, ok := h.Body[0].(*TextNode); !ok || txt.Text != "Title" {
		t.Errorf("heading body = %#v", h.Body)
	}
	var strong, emph, parbreak bool
	for _, n := range nodes {
		switch n.(type) {
		case *StrongNode:
			strong = true
		case *EmphNode:
			emph = true
		case *ParbreakNode:
			parbreak = true
		}
	}
	if !strong || !emph || !parbreak {
		t.Errorf("strong=%v emph=%v parbreak=%v, want all true", strong, emph, parbreak)
	}
}

func TestParseEmbeddedCode(t *testing.T) {
	src := `#let greet(name, punct: "!") = [Hello #name#punct]
#greet("Ada")`
	nodes, errs := Parse(src)
	if len(errs) > 0 {
		t.Fatalf("Parse() errors = %v", errs)
	}
	let, ok := nodes[0].(*EmbedNode).Expr.(*LetExpr)
	if !ok {
		t.Fatalf("nodes[0] = %#v, want let", nodes[0])
	}
	if len(let.Params) != 2 || let.Params[1].Name != "punct" || let.Params[1].Default == nil {
		t.Errorf("params = %+v", let.Params)
	}
	last := nodes[len(nodes)-1].(*EmbedNode)
	if _, ok := last.Expr.(*CallExpr); !ok {
		t.Errorf("last node = %#v, want call", last.Expr)
	}
}

func TestParseEmbedStopsAtSentenceEnd(t *testing.T) {
	nodes, errs := Parse("Dear #name. Bye")
	if len(errs) > 0 {
		t.Fatalf("Parse() errors = %v", errs)
	}
	embed := nodes[2].(*EmbedNode)
	if id, ok := embed.Expr.(*Ident); !ok || id.Name != "name" {
		t.Errorf("embed = %#v, want ident name", embed.Expr)
	}
	if txt := nodes[3].(*TextNode); txt.Text != "." {
		t.Errorf("text after embed = %q, want %q", txt.Text, ".")
	}
}

func TestParseWordInternalDelimiters(t *testing.T) {
	nodes, errs := Parse("snake_case and 2*3")
	if len(errs) > 0 {
		t.Fatalf("Parse() errors = %v", errs)
	}
	for _, n := range nodes {
		switch n.(type) {
		case *EmphNode, *StrongNode:
			t.Errorf("unexpected %T", n)
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		src   string
		msg   string
		start int
	}{
		{src: "Some *bold", msg: "unclosed delimiter", start: 5},
		{src: "#f(1, 2", msg: "unclosed delimiter", start: 2},
		{src: `#let s = "abc`, msg: "unclosed string", start: 9},
		{src: "#(1 +)", msg: "expected expression", start: 5},
		{src: "#let x = 3em", msg: "unsupported unit: em", start: 9},
		{src: "#show heading: it => it", msg: "`show` is not supported", start: 1},
		{src: "a /* never closed", msg: "unclosed comment", start: 2},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			_, errs := Parse(tt.src)
			if len(errs) == 0 {
				t.Fatal("Parse() no errors")
			}
			found := false
			for _, d := range errs {
				if strings.Contains(d.Message, tt.msg) && d.Span != nil && d.Span.Start == tt.start {
					found = true
				}
			}
			if !found {
				t.Errorf("Parse() errors = %+v, want %q at %d", errs, tt.msg, tt.start)
			}
		})
	}
}

func TestParseDeepNestingIsBounded(t *testing.T) {
	src := "#" + strings.Repeat("(", 10000) + "1" + strings.Repeat(")", 10000)
	_, errs := Parse(src)
	if len(errs) == 0 {
		t.Fatal("Parse() no errors for deep nesting")
	}
}
