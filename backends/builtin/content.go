package builtin

import (
	"strings"

	"github.com/zeptools/gw-typst/diag"
	"github.com/zeptools/gw-typst/values"
)

// Ensure Content implements values.Content
var _ values.Content = (*Content)(nil)

// Content is a sequence of document elements.
type Content struct {
	elems []elem
}

type elem any

type (
	textElem      struct{ text string }
	spaceElem     struct{}
	linebreakElem struct{}
	parbreakElem  struct{}
	pagebreakElem struct{}
	strongElem    struct{ body *Content }
	emphElem      struct{ body *Content }
	headingElem   struct {
		level int
		body  *Content
	}
	// styledElem applies text properties to body.
	styledElem struct {
		style textStyle
		body  *Content
	}
	imageElem struct {
		path          string
		data          []byte
		width, height float64 // 0 means natural size
		span          diag.Span
	}
)

// textStyle holds the text properties a set rule or text() call overrides.
// Zero fields inherit.
type textStyle struct {
	fonts    []string
	fontSpan *diag.Span
	size     float64
	weight   int
	italic   *bool
}

func (c *Content) IsEmpty() bool { return c == nil || len(c.elems) == 0 }

func contentOf(elems ...elem) *Content {
	return &Content{elems: elems}
}

func textContent(s string) *Content {
	if s == "" {
		return &Content{}
	}
	return contentOf(textElem{text: s})
}

// join concatenates two sequences without mutating either.
func (c *Content) join(other *Content) *Content {
	out := &Content{elems: make([]elem, 0, len(c.elems)+len(other.elems))}
	out.elems = append(out.elems, c.elems...)
	out.elems = append(out.elems, other.elems...)
	return out
}

// plainText flattens the content to its text, used by str-like functions.
func (c *Content) plainText() string {
	var sb strings.Builder
	c.writeText(&sb)
	return sb.String()
}

func (c *Content) writeText(sb *strings.Builder) {
	if c == nil {
		return
	}
	for _, e := range c.elems {
		switch e := e.(type) {
		case textElem:
			sb.WriteString(e.text)
		case spaceElem:
			sb.WriteByte(' ')
		case linebreakElem, parbreakElem:
			sb.WriteByte('\n')
		case strongElem:
			e.body.writeText(sb)
		case emphElem:
			e.body.writeText(sb)
		case headingElem:
			e.body.writeText(sb)
		case styledElem:
			e.body.writeText(sb)
		}
	}
}

// toContent converts a value for display in markup.
func toContent(v values.Value) *Content {
	if c, ok := v.AsContent(); ok {
		if c, ok := c.(*Content); ok {
			return c
		}
	}
	return textContent(v.Display())
}
