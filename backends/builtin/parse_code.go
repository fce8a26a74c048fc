package builtin

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/zeptools/gw-typst/values"
)

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }

func isIdentContinue(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// identEnd returns the end of the identifier starting at i, or i if there
// is none. A hyphen belongs to the identifier when a letter follows it.
func (p *parser) identEnd(i int) int {
	r, n := utf8.DecodeRuneInString(p.src[i:])
	if !isIdentStart(r) {
		return i
	}
	i += n
	for i < len(p.src) {
		r, n := utf8.DecodeRuneInString(p.src[i:])
		if r == '-' {
			next, _ := utf8.DecodeRuneInString(p.src[i+n:])
			if !isIdentStart(next) {
				return i
			}
		} else if !isIdentContinue(r) {
			return i
		}
		i += n
	}
	return i
}

// word returns the identifier at p.pos without consuming it.
func (p *parser) word() string {
	return p.src[p.pos:p.identEnd(p.pos)]
}

// keyword consumes kw if it is the whole identifier at p.pos.
func (p *parser) keyword(kw string) bool {
	if p.word() != kw {
		return false
	}
	p.pos += len(kw)
	return true
}

func (p *parser) skipTrivia() {
	for !p.eof() {
		switch c := p.src[p.pos]; {
		case c == ' ' || c == '\t' || c == '\r':
			p.pos++
		case c == '\n' && !p.nl:
			p.pos++
		case c == '/' && p.peekAt(1) == '/':
			p.lineComment()
		case c == '/' && p.peekAt(1) == '*':
			p.blockComment()
		default:
			return
		}
	}
}

// embedded parses the code after '#' in markup. Keyword statements take a
// full expression up to the end of the line; anything else is one atom
// with directly attached field accesses and calls.
func (p *parser) embedded() Expr {
	saved := p.nl
	p.nl = true
	defer func() { p.nl = saved }()
	switch p.word() {
	case "let", "set", "for", "if":
		return p.primary()
	}
	return p.postfix(p.primary())
}

func binaryPrec(op string) (prec int, right bool) {
	switch op {
	case "*", "/":
		return 6, false
	case "+", "-":
		return 5, false
	case "==", "!=", "<", "<=", ">", ">=", "in", "not in":
		return 4, false
	case "and":
		return 3, false
	case "or":
		return 2, false
	}
	return 1, true // assignments
}

func (p *parser) binaryOp() (string, int) {
	rest := p.src[p.pos:]
	for _, op := range []string{"==", "!=", "<=", ">=", "+=", "-=", "*=", "/="} {
		if strings.HasPrefix(rest, op) {
			return op, len(op)
		}
	}
	if len(rest) > 0 {
		switch c := rest[0]; c {
		case '<', '>', '+', '-', '*', '/':
			return string(c), 1
		case '=':
			if !strings.HasPrefix(rest, "=>") {
				return "=", 1
			}
		}
	}
	switch p.word() {
	case "and", "or", "in":
		return p.word(), len(p.word())
	case "not":
		save := p.pos
		p.pos += 3
		p.skipTrivia()
		ok := p.word() == "in"
		n := p.pos + 2 - save
		p.pos = save
		if ok {
			return "not in", n
		}
	}
	return "", 0
}

func (p *parser) expr(minPrec int) Expr {
	p.skipTrivia()
	start := p.pos
	if !p.enter(start) {
		p.leave()
		p.pos = len(p.src)
		return &Literal{at: span(start, start), Value: values.None()}
	}
	defer p.leave()

	var x Expr
	switch {
	case p.peek() == '-' || p.peek() == '+':
		op := string(p.peek())
		p.pos++
		y := p.expr(7)
		x = &UnaryExpr{at: span(start, y.Span().End), Op: op, X: y}
	case p.word() == "not":
		p.pos += 3
		y := p.expr(3)
		x = &UnaryExpr{at: span(start, y.Span().End), Op: "not", X: y}
	default:
		x = p.postfix(p.primary())
	}

	for {
		save := p.pos
		p.skipTrivia()
		op, n := p.binaryOp()
		if op == "" {
			p.pos = save
			return x
		}
		prec, right := binaryPrec(op)
		if prec < minPrec {
			p.pos = save
			return x
		}
		p.pos += n
		next := prec + 1
		if right {
			next = prec
		}
		y := p.expr(next)
		x = &BinaryExpr{at: span(x.Span().Start, y.Span().End), Op: op, X: x, Y: y}
	}
}

func (p *parser) primary() Expr {
	start := p.pos
	c := p.peek()
	switch {
	case c == '(':
		return p.parens()
	case c == '[':
		return p.contentBlock()
	case c == '{':
		return p.codeBlock()
	case c == '"':
		return p.str()
	case isDigit(c) || (c == '.' && isDigit(p.peekAt(1))):
		return p.number()
	}
	end := p.identEnd(p.pos)
	if end == p.pos {
		_, size := utf8.DecodeRuneInString(p.src[p.pos:])
		if p.eof() {
			size = 0
		}
		p.errorAt(start, start+max(size, 1), "expected expression")
		if !p.eof() && !strings.ContainsRune(")]}", rune(c)) {
			p.pos += size
		}
		return &Literal{at: span(start, p.pos), Value: values.None()}
	}
	word := p.src[start:end]
	switch word {
	case "none":
		p.pos = end
		return &Literal{at: span(start, end), Value: values.None()}
	case "auto":
		p.pos = end
		return &Literal{at: span(start, end), Value: values.Auto()}
	case "true", "false":
		p.pos = end
		return &Literal{at: span(start, end), Value: values.Bool(word == "true")}
	case "let":
		return p.letExpr()
	case "set":
		return p.setExpr()
	case "for":
		return p.forExpr()
	case "if":
		return p.ifExpr()
	case "show", "import", "include", "while", "break", "continue", "return", "context":
		p.pos = end
		p.errorAt(start, end, "`"+word+"` is not supported")
		return &Literal{at: span(start, end), Value: values.None()}
	}
	p.pos = end
	return &Ident{at: span(start, end), Name: word}
}

// postfix attaches field accesses, argument lists and trailing content
// blocks that directly follow x.
func (p *parser) postfix(x Expr) Expr {
	for {
		switch p.peek() {
		case '.':
			end := p.identEnd(p.pos + 1)
			if end == p.pos+1 {
				return x
			}
			name := p.src[p.pos+1 : end]
			p.pos = end
			x = &FieldExpr{at: span(x.Span().Start, end), X: x, Name: name}
		case '(':
			args := p.args()
			args = p.trailing(args)
			x = &CallExpr{at: span(x.Span().Start, p.pos), Callee: x, Args: args}
		case '[':
			switch x.(type) {
			case *Ident, *FieldExpr:
			default:
				return x
			}
			args := p.trailing(nil)
			x = &CallExpr{at: span(x.Span().Start, p.pos), Callee: x, Args: args}
		default:
			return x
		}
	}
}

func (p *parser) trailing(args []Arg) []Arg {
	for p.peek() == '[' {
		args = append(args, Arg{Value: p.contentBlock()})
	}
	return args
}

// namedKey reports the key of a `key: value` pair at p.pos and the position
// after its colon.
func (p *parser) namedKey() (string, int, bool) {
	var key string
	i := p.identEnd(p.pos)
	if i > p.pos {
		key = p.src[p.pos:i]
	} else if p.peek() == '"' {
		save, errs := p.pos, len(p.errs)
		lit := p.str().(*Literal)
		i, p.pos = p.pos, save
		p.errs = p.errs[:errs]
		key, _ = lit.Value.AsStr()
	} else {
		return "", 0, false
	}
	for i < len(p.src) && (p.src[i] == ' ' || p.src[i] == '\t') {
		i++
	}
	if i < len(p.src) && p.src[i] == ':' {
		return key, i + 1, true
	}
	return "", 0, false
}

type item struct {
	key   string
	named bool
	value Expr
}

// items parses a comma separated list up to the closing parenthesis.
func (p *parser) items(open int) (list []item, comma bool) {
	saved := p.nl
	p.nl = false
	defer func() { p.nl = saved }()
	p.pos++
	for {
		p.skipTrivia()
		if p.eof() {
			p.errorAt(open, open+1, "unclosed delimiter")
			return list, comma
		}
		if p.peek() == ')' {
			p.pos++
			return list, comma
		}
		var it item
		if key, after, ok := p.namedKey(); ok {
			p.pos = after
			it = item{key: key, named: true}
		}
		before := p.pos
		it.value = p.expr(0)
		list = append(list, it)
		p.skipTrivia()
		switch {
		case p.peek() == ',':
			p.pos++
			comma = true
		case p.peek() == ')' || p.eof():
		default:
			p.errorAt(p.pos, p.pos+1, "expected comma")
			if p.pos == before {
				p.pos++
			}
		}
	}
}

func (p *parser) args() []Arg {
	list, _ := p.items(p.pos)
	args := make([]Arg, 0, len(list))
	for _, it := range list {
		args = append(args, Arg{Name: it.key, Value: it.value})
	}
	return args
}

// parens parses a parenthesized expression, an array or a dictionary.
func (p *parser) parens() Expr {
	start := p.pos
	if strings.HasPrefix(p.src[p.pos:], "(:)") {
		p.pos += 3
		return &DictExpr{at: span(start, p.pos)}
	}
	list, comma := p.items(start)
	named := 0
	for _, it := range list {
		if it.named {
			named++
		}
	}
	switch {
	case len(list) == 1 && !comma && named == 0:
		return list[0].value
	case named == 0:
		arr := &ArrayExpr{at: span(start, p.pos)}
		for _, it := range list {
			arr.Items = append(arr.Items, it.value)
		}
		return arr
	case named == len(list):
		dict := &DictExpr{at: span(start, p.pos)}
		for _, it := range list {
			dict.Keys = append(dict.Keys, it.key)
			dict.Items = append(dict.Items, it.value)
		}
		return dict
	}
	p.errorAt(start, p.pos, "cannot mix named and positional items")
	return &Literal{at: span(start, p.pos), Value: values.None()}
}

func (p *parser) contentBlock() Expr {
	start := p.pos
	p.pos++
	if !p.enter(start) {
		p.leave()
		p.pos = len(p.src)
		return &ContentBlock{at: span(start, p.pos)}
	}
	body := p.markup("]")
	p.leave()
	if p.peek() != ']' {
		p.errorAt(start, start+1, "unclosed delimiter")
	} else {
		p.pos++
	}
	return &ContentBlock{at: span(start, p.pos), Body: body}
}

func (p *parser) codeBlock() Expr {
	start := p.pos
	saved := p.nl
	p.nl = false
	defer func() { p.nl = saved }()
	p.pos++
	var exprs []Expr
	for {
		p.skipTrivia()
		switch {
		case p.eof():
			p.errorAt(start, start+1, "unclosed delimiter")
			return &CodeBlock{at: span(start, p.pos), Exprs: exprs}
		case p.peek() == '}':
			p.pos++
			return &CodeBlock{at: span(start, p.pos), Exprs: exprs}
		case p.peek() == ';':
			p.pos++
		case p.peek() == ')' || p.peek() == ']':
			p.errorAt(p.pos, p.pos+1, "unexpected closing delimiter")
			p.pos++
		default:
			before := p.pos
			exprs = append(exprs, p.expr(0))
			if p.pos == before {
				p.pos++
			}
		}
	}
}

func (p *parser) block() Expr {
	p.skipTrivia()
	switch p.peek() {
	case '[':
		return p.contentBlock()
	case '{':
		return p.codeBlock()
	}
	p.errorAt(p.pos, p.pos+1, "expected block")
	return &Literal{at: span(p.pos, p.pos), Value: values.None()}
}

func (p *parser) str() Expr {
	start := p.pos
	p.pos++
	var sb strings.Builder
	for {
		if p.eof() {
			p.errorAt(start, start+1, "unclosed string")
			break
		}
		c := p.src[p.pos]
		if c == '"' {
			p.pos++
			break
		}
		if c != '\\' {
			sb.WriteByte(c)
			p.pos++
			continue
		}
		esc := p.pos
		p.pos++
		switch p.peek() {
		case '\\', '"':
			sb.WriteByte(p.peek())
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case 'u':
			if p.peekAt(1) == '{' {
				if r, ok := p.unicodeEscape(); ok {
					sb.WriteRune(r)
					continue
				}
			}
			p.errorAt(esc, p.pos, "invalid unicode escape sequence")
			continue
		default:
			p.errorAt(esc, esc+2, "invalid escape sequence")
		}
		p.pos++
	}
	return &Literal{at: span(start, p.pos), Value: values.Str(sb.String())}
}

func (p *parser) number() Expr {
	start := p.pos
	for isDigit(p.peek()) {
		p.pos++
	}
	if p.peek() == '.' && isDigit(p.peekAt(1)) {
		p.pos++
		for isDigit(p.peek()) {
			p.pos++
		}
	}
	if c := p.peek(); c == 'e' || c == 'E' {
		k := 1
		if s := p.peekAt(1); s == '+' || s == '-' {
			k = 2
		}
		if isDigit(p.peekAt(k)) {
			p.pos += k
			for isDigit(p.peek()) {
				p.pos++
			}
		}
	}
	lit := p.src[start:p.pos]
	unitEnd := p.pos
	for unitEnd < len(p.src) && isUnitByte(p.src[unitEnd]) {
		unitEnd++
	}
	unit := p.src[p.pos:unitEnd]
	p.pos = unitEnd
	if unit == "" {
		return &Literal{at: span(start, p.pos), Value: values.Number(lit)}
	}
	f, _ := strconv.ParseFloat(lit, 64)
	var pt float64
	switch unit {
	case "pt":
		pt = f
	case "mm":
		pt = f * 72 / 25.4
	case "cm":
		pt = f * 72 / 2.54
	case "in":
		pt = f * 72
	default:
		p.errorAt(start, p.pos, "unsupported unit: "+unit)
		return &Literal{at: span(start, p.pos), Value: values.None()}
	}
	return &Literal{at: span(start, p.pos), Value: values.Length(pt)}
}

func isUnitByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '%'
}

func (p *parser) pattern() Pattern {
	p.skipTrivia()
	if p.peek() != '(' {
		end := p.identEnd(p.pos)
		if end == p.pos {
			p.errorAt(p.pos, p.pos+1, "expected identifier")
			return Pattern{}
		}
		name := p.src[p.pos:end]
		p.pos = end
		return Pattern{Names: []string{name}}
	}
	open := p.pos
	pat := Pattern{Destructure: true}
	list, _ := p.items(open)
	for _, it := range list {
		id, ok := it.value.(*Ident)
		if !ok || it.named {
			p.errorAt(it.value.Span().Start, it.value.Span().End, "expected identifier")
			continue
		}
		pat.Names = append(pat.Names, id.Name)
	}
	return pat
}

func (p *parser) letExpr() Expr {
	start := p.pos
	p.pos += len("let")
	pat := p.pattern()
	var params []Param
	if !pat.Destructure && p.peek() == '(' {
		params = []Param{}
		for _, it := range p.mustItems() {
			id, ok := it.value.(*Ident)
			switch {
			case it.named:
				params = append(params, Param{Name: it.key, Default: it.value})
			case ok:
				params = append(params, Param{Name: id.Name})
			default:
				p.errorAt(it.value.Span().Start, it.value.Span().End, "expected identifier")
			}
		}
	}
	save := p.pos
	p.skipTrivia()
	var init Expr
	if p.peek() == '=' && p.peekAt(1) != '=' {
		p.pos++
		init = p.expr(0)
	} else {
		p.pos = save
		if params != nil {
			p.errorAt(start, p.pos, "expected function body")
		}
	}
	return &LetExpr{at: span(start, p.pos), Pattern: pat, Params: params, Init: init}
}

func (p *parser) mustItems() []item {
	list, _ := p.items(p.pos)
	return list
}

func (p *parser) setExpr() Expr {
	start := p.pos
	p.pos += len("set")
	p.skipTrivia()
	end := p.identEnd(p.pos)
	if end == p.pos {
		p.errorAt(p.pos, p.pos+1, "expected identifier")
		return &Literal{at: span(start, p.pos), Value: values.None()}
	}
	target := &Ident{at: span(p.pos, end), Name: p.src[p.pos:end]}
	p.pos = end
	if p.peek() != '(' {
		p.errorAt(p.pos, p.pos+1, "expected argument list")
		return &SetExpr{at: span(start, p.pos), Target: target}
	}
	args := p.args()
	return &SetExpr{at: span(start, p.pos), Target: target, Args: args}
}

func (p *parser) forExpr() Expr {
	start := p.pos
	p.pos += len("for")
	pat := p.pattern()
	p.skipTrivia()
	if !p.keyword("in") {
		p.errorAt(p.pos, p.pos+1, "expected keyword `in`")
		return &Literal{at: span(start, p.pos), Value: values.None()}
	}
	iter := p.expr(0)
	body := p.block()
	return &ForExpr{at: span(start, p.pos), Pattern: pat, Iter: iter, Body: body}
}

func (p *parser) ifExpr() Expr {
	start := p.pos
	p.pos += len("if")
	cond := p.expr(0)
	then := p.block()
	x := &IfExpr{Cond: cond, Then: then}
	save := p.pos
	p.skipTrivia()
	if p.keyword("else") {
		p.skipTrivia()
		if p.word() == "if" {
			x.Else = p.ifExpr()
		} else {
			x.Else = p.block()
		}
	} else {
		p.pos = save
	}
	x.at = span(start, p.pos)
	return x
}
