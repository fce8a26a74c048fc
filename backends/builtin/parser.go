package builtin

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/zeptools/gw-typst/diag"
)

const maxDepth = 256

type parser struct {
	src   string
	pos   int
	nl    bool // newlines end code expressions
	depth int
	errs  diag.List
}

// Parse parses a whole document in markup mode. Parsing never stops at the
// first error; every syntax error found is returned.
func Parse(src string) ([]Node, diag.List) {
	p := &parser{src: src}
	nodes := p.markup("")
	return nodes, p.errs
}

func span(start, end int) at {
	return at{diag.Span{Start: start, End: end}}
}

func (p *parser) errorAt(start, end int, msg string) {
	p.errs = append(p.errs, diag.Error(diag.At(start, end), msg))
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte { return p.peekAt(0) }

func (p *parser) peekAt(n int) byte {
	if p.pos+n >= len(p.src) {
		return 0
	}
	return p.src[p.pos+n]
}

func (p *parser) enter(start int) bool {
	p.depth++
	if p.depth > maxDepth {
		p.errorAt(start, start+1, "maximum nesting depth exceeded")
		return false
	}
	return true
}

func (p *parser) leave() { p.depth-- }

// markup parses until the end of input or an unconsumed byte of stops.
func (p *parser) markup(stops string) []Node {
	var nodes []Node
	depth := 0
	for !p.eof() {
		c := p.src[p.pos]
		if strings.IndexByte(stops, c) >= 0 {
			if c == ']' && depth > 0 {
				depth--
				nodes = p.text(nodes, p.pos, p.pos+1)
				continue
			}
			break
		}
		switch {
		case c == '[':
			depth++
			nodes = p.text(nodes, p.pos, p.pos+1)
		case c == ' ' || c == '\t' || c == '\r':
			start := p.pos
			for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t' || p.src[p.pos] == '\r') {
				p.pos++
			}
			nodes = appendSpace(nodes, start, p.pos)
		case c == '\n':
			nodes = p.newline(nodes)
		case c == '\\':
			nodes = p.escape(nodes)
		case c == '/' && p.peekAt(1) == '/':
			p.lineComment()
		case c == '/' && p.peekAt(1) == '*':
			p.blockComment()
		case (c == '*' || c == '_') && !p.inWord():
			nodes = append(nodes, p.delimited(c, stops))
		case c == '=' && p.atLineStart():
			nodes = p.heading(nodes, stops)
		case c == '#' && p.embedStart():
			start := p.pos
			p.pos++
			expr := p.embedded()
			nodes = append(nodes, &EmbedNode{at: span(start, p.pos), Expr: expr})
			if p.peek() == ';' {
				p.pos++
			}
		default:
			start := p.pos
			p.pos++
			for p.pos < len(p.src) && !isMarkupSpecial(p.src[p.pos]) {
				p.pos++
			}
			nodes = p.text(nodes, start, p.pos)
		}
	}
	return nodes
}

func isMarkupSpecial(c byte) bool {
	switch c {
	case '[', ']', ' ', '\t', '\r', '\n', '\\', '/', '*', '_', '=', '#':
		return true
	}
	return false
}

// text appends src[start:end] as text and advances to end, merging with a
// preceding text node.
func (p *parser) text(nodes []Node, start, end int) []Node {
	p.pos = end
	return appendText(nodes, start, end, p.src[start:end])
}

func appendText(nodes []Node, start, end int, s string) []Node {
	if n := len(nodes); n > 0 {
		if t, ok := nodes[n-1].(*TextNode); ok && t.span.End == start {
			t.Text += s
			t.span.End = end
			return nodes
		}
	}
	return append(nodes, &TextNode{at: span(start, end), Text: s})
}

func appendSpace(nodes []Node, start, end int) []Node {
	if n := len(nodes); n > 0 {
		switch prev := nodes[n-1].(type) {
		case *SpaceNode:
			prev.span.End = end
			return nodes
		case *ParbreakNode:
			return nodes
		}
	}
	return append(nodes, &SpaceNode{at: span(start, end)})
}

// newline turns one line break into a space and a blank line into a
// paragraph break.
func (p *parser) newline(nodes []Node) []Node {
	start := p.pos
	end := p.pos + 1
	blank := false
	for k := end; k < len(p.src); k++ {
		c := p.src[k]
		if c == ' ' || c == '\t' || c == '\r' {
			continue
		}
		if c == '\n' {
			blank = true
			end = k + 1
			continue
		}
		break
	}
	p.pos = end
	if !blank {
		return appendSpace(nodes, start, end)
	}
	if n := len(nodes); n > 0 {
		if _, ok := nodes[n-1].(*SpaceNode); ok {
			nodes = nodes[:n-1]
		}
	}
	return append(nodes, &ParbreakNode{at: span(start, end)})
}

func (p *parser) escape(nodes []Node) []Node {
	start := p.pos
	p.pos++
	c := p.peek()
	switch {
	case p.eof() || c == ' ' || c == '\t' || c == '\r' || c == '\n':
		return append(nodes, &LinebreakNode{at: span(start, p.pos)})
	case c == 'u' && p.peekAt(1) == '{':
		r, ok := p.unicodeEscape()
		if !ok {
			p.errorAt(start, p.pos, "invalid unicode escape sequence")
			return nodes
		}
		return appendText(nodes, start, p.pos, string(r))
	}
	_, size := utf8.DecodeRuneInString(p.src[p.pos:])
	s := p.src[p.pos : p.pos+size]
	p.pos += size
	return appendText(nodes, start, p.pos, s)
}

// unicodeEscape reads u{XXXX} at p.pos.
func (p *parser) unicodeEscape() (rune, bool) {
	p.pos += 2
	end := strings.IndexByte(p.src[p.pos:], '}')
	if end < 0 {
		p.pos = len(p.src)
		return 0, false
	}
	hex := p.src[p.pos : p.pos+end]
	p.pos += end + 1
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil || !utf8.ValidRune(rune(n)) {
		return 0, false
	}
	return rune(n), true
}

func (p *parser) lineComment() {
	if i := strings.IndexByte(p.src[p.pos:], '\n'); i >= 0 {
		p.pos += i
		return
	}
	p.pos = len(p.src)
}

func (p *parser) blockComment() {
	start := p.pos
	if i := strings.Index(p.src[p.pos+2:], "*/"); i >= 0 {
		p.pos += i + 4
		return
	}
	p.errorAt(start, start+2, "unclosed comment")
	p.pos = len(p.src)
}

// inWord reports whether the byte at p.pos sits between two alphanumeric
// characters, in which case '*' and '_' are plain text.
func (p *parser) inWord() bool {
	prev, _ := utf8.DecodeLastRuneInString(p.src[:p.pos])
	next, _ := utf8.DecodeRuneInString(p.src[p.pos+1:])
	alnum := func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }
	return p.pos > 0 && p.pos+1 < len(p.src) && alnum(prev) && alnum(next)
}

func (p *parser) atLineStart() bool {
	k := p.pos - 1
	for k >= 0 && (p.src[k] == ' ' || p.src[k] == '\t') {
		k--
	}
	return k < 0 || p.src[k] == '\n' || p.src[k] == '['
}

func (p *parser) delimited(delim byte, stops string) Node {
	start := p.pos
	p.pos++
	if !p.enter(start) {
		p.leave()
		return &TextNode{at: span(start, p.pos), Text: string(delim)}
	}
	body := p.markup(stops + string(delim))
	p.leave()
	if p.peek() != delim {
		p.errorAt(start, start+1, "unclosed delimiter")
	} else {
		p.pos++
	}
	if delim == '*' {
		return &StrongNode{at: span(start, p.pos), Body: body}
	}
	return &EmphNode{at: span(start, p.pos), Body: body}
}

func (p *parser) heading(nodes []Node, stops string) []Node {
	start := p.pos
	level := 0
	for p.peekAt(level) == '=' {
		level++
	}
	if after := p.peekAt(level); after != ' ' && after != '\t' {
		return p.text(nodes, start, start+level)
	}
	p.pos += level
	for p.peek() == ' ' || p.peek() == '\t' {
		p.pos++
	}
	body := p.markup(stops + "\n")
	if n := len(body); n > 0 {
		if _, ok := body[n-1].(*SpaceNode); ok {
			body = body[:n-1]
		}
	}
	return append(nodes, &HeadingNode{at: span(start, p.pos), Level: level, Body: body})
}

func (p *parser) embedStart() bool {
	switch c := p.peekAt(1); c {
	case '(', '{', '[', '"':
		return true
	}
	return p.pos+1 < len(p.src) && p.identEnd(p.pos+1) > p.pos+1
}
