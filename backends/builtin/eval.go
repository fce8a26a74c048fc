package builtin

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/zeptools/gw-typst/diag"
	"github.com/zeptools/gw-typst/pdfs"
	"github.com/zeptools/gw-typst/scope"
	"github.com/zeptools/gw-typst/values"
	"github.com/zeptools/gw-typst/world"
)

const maxCallDepth = 64

// evalError is a failure tied to a source span. It becomes a diagnostic.
type evalError struct {
	span diag.Span
	msg  string
}

func (e *evalError) Error() string { return e.msg }

func errorf(sp diag.Span, format string, args ...any) error {
	return &evalError{span: sp, msg: fmt.Sprintf(format, args...)}
}

// diagnostics converts an evaluation failure into diagnostics. Errors not
// tied to the source, like context cancellation, are returned unchanged.
func diagnostics(err error) (diag.List, bool) {
	var ee *evalError
	if errors.As(err, &ee) {
		sp := ee.span
		return diag.List{diag.Error(&sp, ee.msg)}, true
	}
	return nil, false
}

type pageProps struct {
	size   pdfs.PaperSize
	margin float64 // negative means derived from the paper size
}

type docProps struct {
	title  string
	author string
}

type vm struct {
	ctx    context.Context
	world  world.World
	scopes []*scope.Scope
	page   pageProps
	doc    docProps
	depth  int
}

func newVM(ctx context.Context, w world.World) *vm {
	return &vm{
		ctx:    ctx,
		world:  w,
		scopes: []*scope.Scope{w.Library().Global, scope.New()},
		page:   pageProps{size: pdfs.A4Size, margin: -1},
	}
}

func (vm *vm) push() { vm.scopes = append(vm.scopes, scope.New()) }

func (vm *vm) pop() { vm.scopes = vm.scopes[:len(vm.scopes)-1] }

func (vm *vm) bind(name string, v values.Value) {
	vm.scopes[len(vm.scopes)-1].Bind(name, v)
}

func (vm *vm) lookup(name string) (values.Value, *scope.Scope, bool) {
	for i := len(vm.scopes) - 1; i >= 0; i-- {
		if v, ok := vm.scopes[i].Get(name); ok {
			return v, vm.scopes[i], true
		}
	}
	return values.Value{}, nil, false
}

// markup evaluates a markup sequence. A set rule styles everything after
// it up to the end of the sequence.
func (vm *vm) markup(nodes []Node) (*Content, error) {
	out := &Content{}
	for i, n := range nodes {
		switch n := n.(type) {
		case *TextNode:
			out.elems = append(out.elems, textElem{text: n.Text})
		case *SpaceNode:
			out.elems = append(out.elems, spaceElem{})
		case *LinebreakNode:
			out.elems = append(out.elems, linebreakElem{})
		case *ParbreakNode:
			out.elems = append(out.elems, parbreakElem{})
		case *StrongNode:
			body, err := vm.markup(n.Body)
			if err != nil {
				return nil, err
			}
			out.elems = append(out.elems, strongElem{body: body})
		case *EmphNode:
			body, err := vm.markup(n.Body)
			if err != nil {
				return nil, err
			}
			out.elems = append(out.elems, emphElem{body: body})
		case *HeadingNode:
			body, err := vm.markup(n.Body)
			if err != nil {
				return nil, err
			}
			out.elems = append(out.elems, headingElem{level: n.Level, body: body})
		case *EmbedNode:
			if set, ok := n.Expr.(*SetExpr); ok {
				style, err := vm.setRule(set)
				if err != nil {
					return nil, err
				}
				rest, err := vm.markup(nodes[i+1:])
				if err != nil {
					return nil, err
				}
				return out.join(wrapStyle(style, rest)), nil
			}
			v, err := vm.eval(n.Expr)
			if err != nil {
				return nil, err
			}
			out = out.join(toContent(v))
		}
	}
	return out, nil
}

func wrapStyle(style *textStyle, body *Content) *Content {
	if style == nil || body.IsEmpty() {
		return body
	}
	return contentOf(styledElem{style: *style, body: body})
}

// code evaluates the expressions of a code block and joins their values.
func (vm *vm) code(exprs []Expr) (values.Value, error) {
	acc := values.None()
	for i, e := range exprs {
		if set, ok := e.(*SetExpr); ok {
			style, err := vm.setRule(set)
			if err != nil {
				return values.Value{}, err
			}
			rest, err := vm.code(exprs[i+1:])
			if err != nil {
				return values.Value{}, err
			}
			if style != nil && !rest.IsNone() {
				rest = values.ContentValue(wrapStyle(style, toContent(rest)))
			}
			return join(acc, rest, e.Span())
		}
		v, err := vm.eval(e)
		if err != nil {
			return values.Value{}, err
		}
		if acc, err = join(acc, v, e.Span()); err != nil {
			return values.Value{}, err
		}
	}
	return acc, nil
}

func (vm *vm) eval(expr Expr) (values.Value, error) {
	switch e := expr.(type) {
	case *Literal:
		return e.Value, nil
	case *Ident:
		v, _, ok := vm.lookup(e.Name)
		if !ok {
			return values.Value{}, errorf(e.Span(), "unknown variable: %s", e.Name)
		}
		return v, nil
	case *ArrayExpr:
		items := make([]values.Value, 0, len(e.Items))
		for _, it := range e.Items {
			v, err := vm.eval(it)
			if err != nil {
				return values.Value{}, err
			}
			items = append(items, v)
		}
		return values.Array(items...), nil
	case *DictExpr:
		d := values.NewDict()
		for i, it := range e.Items {
			v, err := vm.eval(it)
			if err != nil {
				return values.Value{}, err
			}
			d.Set(e.Keys[i], v)
		}
		return values.DictValue(d), nil
	case *UnaryExpr:
		x, err := vm.eval(e.X)
		if err != nil {
			return values.Value{}, err
		}
		return unary(e.Op, x, e.Span())
	case *BinaryExpr:
		return vm.binary(e)
	case *FieldExpr:
		x, err := vm.eval(e.X)
		if err != nil {
			return values.Value{}, err
		}
		return field(x, e.Name, e.Span())
	case *CallExpr:
		return vm.call(e)
	case *ContentBlock:
		vm.push()
		defer vm.pop()
		c, err := vm.markup(e.Body)
		if err != nil {
			return values.Value{}, err
		}
		return values.ContentValue(c), nil
	case *CodeBlock:
		vm.push()
		defer vm.pop()
		return vm.code(e.Exprs)
	case *LetExpr:
		return values.None(), vm.let(e)
	case *SetExpr:
		return values.Value{}, errorf(e.Span(), "set rules are only allowed directly in markup and code blocks")
	case *ForExpr:
		return vm.forLoop(e)
	case *IfExpr:
		return vm.ifElse(e)
	}
	return values.Value{}, errorf(expr.Span(), "unexpected expression")
}

func (vm *vm) binary(e *BinaryExpr) (values.Value, error) {
	switch e.Op {
	case "and", "or":
		x, err := vm.eval(e.X)
		if err != nil {
			return values.Value{}, err
		}
		b, ok := x.AsBool()
		if !ok {
			return values.Value{}, errorf(e.X.Span(), "expected boolean, found %s", x.Kind())
		}
		if (e.Op == "and" && !b) || (e.Op == "or" && b) {
			return values.Bool(b), nil
		}
		y, err := vm.eval(e.Y)
		if err != nil {
			return values.Value{}, err
		}
		if _, ok := y.AsBool(); !ok {
			return values.Value{}, errorf(e.Y.Span(), "expected boolean, found %s", y.Kind())
		}
		return y, nil
	case "=", "+=", "-=", "*=", "/=":
		return values.None(), vm.assign(e)
	}
	x, err := vm.eval(e.X)
	if err != nil {
		return values.Value{}, err
	}
	y, err := vm.eval(e.Y)
	if err != nil {
		return values.Value{}, err
	}
	return binary(e.Op, x, y, e.Span())
}

func (vm *vm) assign(e *BinaryExpr) error {
	id, ok := e.X.(*Ident)
	if !ok {
		return errorf(e.X.Span(), "cannot assign to this expression")
	}
	old, sc, ok := vm.lookup(id.Name)
	if !ok {
		return errorf(id.Span(), "unknown variable: %s", id.Name)
	}
	if sc == vm.scopes[0] {
		return errorf(id.Span(), "cannot mutate a constant: %s", id.Name)
	}
	v, err := vm.eval(e.Y)
	if err != nil {
		return err
	}
	if e.Op != "=" {
		if v, err = binary(e.Op[:1], old, v, e.Span()); err != nil {
			return err
		}
	}
	sc.Bind(id.Name, v)
	return nil
}

func (vm *vm) let(e *LetExpr) error {
	if e.Params != nil {
		c := &closure{
			name:     e.Pattern.Names[0],
			params:   e.Params,
			body:     e.Init,
			captured: slices.Clone(vm.scopes),
		}
		vm.bind(c.name, values.FuncValue(c))
		return nil
	}
	v := values.None()
	if e.Init != nil {
		var err error
		if v, err = vm.eval(e.Init); err != nil {
			return err
		}
	}
	return vm.bindPattern(e.Pattern, v, e.Span())
}

func (vm *vm) bindPattern(pat Pattern, v values.Value, sp diag.Span) error {
	if !pat.Destructure {
		if len(pat.Names) == 1 {
			vm.bind(pat.Names[0], v)
		}
		return nil
	}
	items, ok := v.AsArray()
	if !ok {
		return errorf(sp, "cannot destructure %s", v.Kind())
	}
	switch {
	case len(items) < len(pat.Names):
		return errorf(sp, "not enough elements to destructure")
	case len(items) > len(pat.Names):
		return errorf(sp, "too many elements to destructure")
	}
	for i, name := range pat.Names {
		vm.bind(name, items[i])
	}
	return nil
}

func (vm *vm) forLoop(e *ForExpr) (values.Value, error) {
	iter, err := vm.eval(e.Iter)
	if err != nil {
		return values.Value{}, err
	}
	var items []values.Value
	switch iter.Kind() {
	case values.KindArray:
		items, _ = iter.AsArray()
	case values.KindDict:
		d, _ := iter.AsDict()
		for _, k := range d.Keys() {
			v, _ := d.Get(k)
			items = append(items, values.Array(values.Str(k), v))
		}
	case values.KindStr:
		s, _ := iter.AsStr()
		for _, r := range s {
			items = append(items, values.Str(string(r)))
		}
	default:
		return values.Value{}, errorf(e.Iter.Span(), "cannot loop over %s", iter.Kind())
	}
	acc := values.None()
	for _, it := range items {
		if err := vm.ctx.Err(); err != nil {
			return values.Value{}, err
		}
		vm.push()
		err := vm.bindPattern(e.Pattern, it, e.Span())
		var v values.Value
		if err == nil {
			v, err = vm.eval(e.Body)
		}
		vm.pop()
		if err != nil {
			return values.Value{}, err
		}
		if acc, err = join(acc, v, e.Body.Span()); err != nil {
			return values.Value{}, err
		}
	}
	return acc, nil
}

func (vm *vm) ifElse(e *IfExpr) (values.Value, error) {
	cond, err := vm.eval(e.Cond)
	if err != nil {
		return values.Value{}, err
	}
	b, ok := cond.AsBool()
	if !ok {
		return values.Value{}, errorf(e.Cond.Span(), "expected boolean, found %s", cond.Kind())
	}
	if b {
		return vm.eval(e.Then)
	}
	if e.Else != nil {
		return vm.eval(e.Else)
	}
	return values.None(), nil
}

func (vm *vm) call(e *CallExpr) (values.Value, error) {
	if f, ok := e.Callee.(*FieldExpr); ok {
		target, err := vm.eval(f.X)
		if err != nil {
			return values.Value{}, err
		}
		if target.Kind() != values.KindFunc {
			a, err := vm.args(e)
			if err != nil {
				return values.Value{}, err
			}
			return vm.method(target, f.Name, a, f.Span())
		}
	}
	callee, err := vm.eval(e.Callee)
	if err != nil {
		return values.Value{}, err
	}
	fn, ok := callee.AsFunc()
	if !ok {
		return values.Value{}, errorf(e.Callee.Span(), "expected function, found %s", callee.Kind())
	}
	a, err := vm.args(e)
	if err != nil {
		return values.Value{}, err
	}
	return vm.callFunc(fn, a)
}

func (vm *vm) args(e *CallExpr) (*args, error) {
	return vm.evalArgs(e.Span(), e.Args)
}

func (vm *vm) evalArgs(sp diag.Span, list []Arg) (*args, error) {
	a := &args{span: sp}
	for _, arg := range list {
		v, err := vm.eval(arg.Value)
		if err != nil {
			return nil, err
		}
		sv := spanned{v: v, span: arg.Value.Span()}
		if arg.Name == "" {
			a.pos = append(a.pos, sv)
		} else {
			a.named = append(a.named, namedValue{name: arg.Name, spanned: sv})
		}
	}
	return a, nil
}

func (vm *vm) callFunc(fn values.Func, a *args) (values.Value, error) {
	if err := vm.ctx.Err(); err != nil {
		return values.Value{}, err
	}
	vm.depth++
	defer func() { vm.depth-- }()
	if vm.depth > maxCallDepth {
		return values.Value{}, errorf(a.span, "maximum function call depth exceeded")
	}
	switch f := fn.(type) {
	case *native:
		return f.fn(vm, a)
	case *closure:
		return vm.callClosure(f, a)
	}
	return values.Value{}, errorf(a.span, "cannot call %s", fn.FuncName())
}

func (vm *vm) callClosure(f *closure, a *args) (values.Value, error) {
	saved := vm.scopes
	vm.scopes = append(slices.Clone(f.captured), scope.New())
	defer func() { vm.scopes = saved }()
	for _, p := range f.params {
		if p.Default == nil {
			arg, err := a.expect(p.Name)
			if err != nil {
				return values.Value{}, err
			}
			vm.bind(p.Name, arg.v)
			continue
		}
		if arg, ok := a.take(p.Name); ok {
			vm.bind(p.Name, arg.v)
			continue
		}
		v, err := vm.eval(p.Default)
		if err != nil {
			return values.Value{}, err
		}
		vm.bind(p.Name, v)
	}
	if err := a.finish(); err != nil {
		return values.Value{}, err
	}
	if f.body == nil {
		return values.None(), nil
	}
	return vm.eval(f.body)
}

func field(x values.Value, name string, sp diag.Span) (values.Value, error) {
	switch x.Kind() {
	case values.KindDict:
		d, _ := x.AsDict()
		if v, ok := d.Get(name); ok {
			return v, nil
		}
		return values.Value{}, errorf(sp, "dictionary does not contain key %q", name)
	case values.KindFunc:
		fn, _ := x.AsFunc()
		if n, ok := fn.(*native); ok {
			if v, ok := n.scope[name]; ok {
				return v, nil
			}
		}
		return values.Value{}, errorf(sp, "function does not contain field %q", name)
	}
	return values.Value{}, errorf(sp, "cannot access fields on type %s", x.Kind())
}

// closure is a function defined with `let f(..) = body`.
type closure struct {
	name     string
	params   []Param
	body     Expr
	captured []*scope.Scope
}

func (c *closure) FuncName() string { return c.name }

type native struct {
	name  string
	fn    func(vm *vm, a *args) (values.Value, error)
	scope map[string]values.Value
}

func (n *native) FuncName() string { return n.name }
