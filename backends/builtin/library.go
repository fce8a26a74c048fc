package builtin

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/zeptools/gw-typst/pdfs"
	"github.com/zeptools/gw-typst/scope"
	"github.com/zeptools/gw-typst/values"
	"github.com/zeptools/gw-typst/world"
)

const maxRange = 1 << 20

// library builds the global definitions every document starts with.
func library() *scope.Scope {
	s := scope.New()
	def := func(name string, fn func(*vm, *args) (values.Value, error)) *native {
		n := &native{name: name, fn: fn}
		s.Bind(name, values.FuncValue(n))
		return n
	}
	def("text", fnText)
	def("strong", fnWrap(func(c *Content) elem { return strongElem{body: c} }))
	def("emph", fnWrap(func(c *Content) elem { return emphElem{body: c} }))
	def("heading", fnHeading)
	def("image", fnImage)
	def("pagebreak", fnElem(pagebreakElem{}))
	def("linebreak", fnElem(linebreakElem{}))
	def("parbreak", fnElem(parbreakElem{}))
	def("str", fnStr)
	def("int", fnInt)
	def("float", fnFloat)
	def("upper", fnCase(strings.ToUpper))
	def("lower", fnCase(strings.ToLower))
	def("repr", fnRepr)
	def("type", fnType)
	def("range", fnRange)
	dt := def("datetime", fnDatetime)
	dt.scope = map[string]values.Value{
		"today": values.FuncValue(&native{name: "today", fn: fnToday}),
	}
	return s
}

func fnText(vm *vm, a *args) (values.Value, error) {
	style, err := textStyleArgs(a)
	if err != nil {
		return values.Value{}, err
	}
	body, err := a.expect("body")
	if err != nil {
		return values.Value{}, err
	}
	c, err := body.content()
	if err != nil {
		return values.Value{}, err
	}
	if err := a.finish(); err != nil {
		return values.Value{}, err
	}
	return values.ContentValue(wrapStyle(style, c)), nil
}

func fnWrap(wrap func(*Content) elem) func(*vm, *args) (values.Value, error) {
	return func(vm *vm, a *args) (values.Value, error) {
		body, err := a.expect("body")
		if err != nil {
			return values.Value{}, err
		}
		c, err := body.content()
		if err != nil {
			return values.Value{}, err
		}
		if err := a.finish(); err != nil {
			return values.Value{}, err
		}
		return values.ContentValue(contentOf(wrap(c))), nil
	}
}

func fnElem(e elem) func(*vm, *args) (values.Value, error) {
	return func(vm *vm, a *args) (values.Value, error) {
		if err := a.finish(); err != nil {
			return values.Value{}, err
		}
		return values.ContentValue(contentOf(e)), nil
	}
}

func fnHeading(vm *vm, a *args) (values.Value, error) {
	level := int64(1)
	if arg, ok := a.take("level"); ok {
		var err error
		if level, err = arg.int(); err != nil {
			return values.Value{}, err
		}
		if level < 1 {
			return values.Value{}, errorf(arg.span, "level must be at least 1")
		}
	}
	return fnWrap(func(c *Content) elem { return headingElem{level: int(level), body: c} })(vm, a)
}

func fnImage(vm *vm, a *args) (values.Value, error) {
	arg, err := a.expect("path")
	if err != nil {
		return values.Value{}, err
	}
	path, err := arg.str()
	if err != nil {
		return values.Value{}, err
	}
	img := imageElem{path: path, span: arg.span}
	for _, dim := range []struct {
		name string
		dst  *float64
	}{{"width", &img.width}, {"height", &img.height}} {
		v, ok := a.take(dim.name)
		if !ok || v.v.Kind() == values.KindAuto {
			continue
		}
		if *dim.dst, err = v.length(); err != nil {
			return values.Value{}, err
		}
	}
	if err := a.finish(); err != nil {
		return values.Value{}, err
	}
	data, err := vm.world.File(world.FileID(path))
	if err != nil {
		return values.Value{}, fileError(arg, path, err)
	}
	img.data = data
	return values.ContentValue(contentOf(img)), nil
}

func fileError(arg spanned, path string, err error) error {
	switch {
	case errors.Is(err, world.ErrNotFound):
		return errorf(arg.span, "file not found (searched at %s)", path)
	case errors.Is(err, world.ErrAccessDenied):
		return errorf(arg.span, "failed to load file (access denied)")
	case errors.Is(err, world.ErrIsDirectory):
		return errorf(arg.span, "failed to load file (is a directory)")
	}
	return errorf(arg.span, "failed to load file (%v)", err)
}

func fnStr(vm *vm, a *args) (values.Value, error) {
	arg, err := a.expect("value")
	if err != nil {
		return values.Value{}, err
	}
	if err := a.finish(); err != nil {
		return values.Value{}, err
	}
	switch arg.v.Kind() {
	case values.KindStr, values.KindInt, values.KindFloat:
		return values.Str(arg.v.Display()), nil
	}
	return values.Value{}, errorf(arg.span, "expected integer, float, or string, found %s", arg.v.Kind())
}

func fnInt(vm *vm, a *args) (values.Value, error) {
	arg, err := a.expect("value")
	if err != nil {
		return values.Value{}, err
	}
	if err := a.finish(); err != nil {
		return values.Value{}, err
	}
	switch arg.v.Kind() {
	case values.KindInt:
		return arg.v, nil
	case values.KindBool:
		if b, _ := arg.v.AsBool(); b {
			return values.Int(1), nil
		}
		return values.Int(0), nil
	case values.KindFloat:
		f, _ := arg.v.AsFloat()
		if math.IsNaN(f) || f >= 1<<63 || f < -(1<<63) {
			return values.Value{}, errorf(arg.span, "number does not fit into an integer")
		}
		return values.Int(int64(f)), nil
	case values.KindStr:
		s, _ := arg.v.AsStr()
		i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return values.Value{}, errorf(arg.span, "invalid integer: %s", s)
		}
		return values.Int(i), nil
	}
	return values.Value{}, errorf(arg.span, "expected integer, boolean, float, or string, found %s", arg.v.Kind())
}

func fnFloat(vm *vm, a *args) (values.Value, error) {
	arg, err := a.expect("value")
	if err != nil {
		return values.Value{}, err
	}
	if err := a.finish(); err != nil {
		return values.Value{}, err
	}
	if f, ok := arg.v.AsNumber(); ok {
		return values.Float(f), nil
	}
	if s, ok := arg.v.AsStr(); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return values.Value{}, errorf(arg.span, "invalid float: %s", s)
		}
		return values.Float(f), nil
	}
	return values.Value{}, errorf(arg.span, "expected integer, float, or string, found %s", arg.v.Kind())
}

func fnCase(transform func(string) string) func(*vm, *args) (values.Value, error) {
	return func(vm *vm, a *args) (values.Value, error) {
		arg, err := a.expect("text")
		if err != nil {
			return values.Value{}, err
		}
		if err := a.finish(); err != nil {
			return values.Value{}, err
		}
		if s, ok := arg.v.AsStr(); ok {
			return values.Str(transform(s)), nil
		}
		if c, ok := arg.v.AsContent(); ok {
			if c, ok := c.(*Content); ok {
				return values.ContentValue(mapText(c, transform)), nil
			}
		}
		return values.Value{}, errorf(arg.span, "expected string or content, found %s", arg.v.Kind())
	}
}

// mapText rewrites every text element below c.
func mapText(c *Content, fn func(string) string) *Content {
	out := &Content{elems: make([]elem, len(c.elems))}
	for i, e := range c.elems {
		switch e := e.(type) {
		case textElem:
			out.elems[i] = textElem{text: fn(e.text)}
		case strongElem:
			out.elems[i] = strongElem{body: mapText(e.body, fn)}
		case emphElem:
			out.elems[i] = emphElem{body: mapText(e.body, fn)}
		case headingElem:
			out.elems[i] = headingElem{level: e.level, body: mapText(e.body, fn)}
		case styledElem:
			out.elems[i] = styledElem{style: e.style, body: mapText(e.body, fn)}
		default:
			out.elems[i] = e
		}
	}
	return out
}

func fnRepr(vm *vm, a *args) (values.Value, error) {
	arg, err := a.expect("value")
	if err != nil {
		return values.Value{}, err
	}
	return values.Str(arg.v.Repr()), a.finish()
}

func fnType(vm *vm, a *args) (values.Value, error) {
	arg, err := a.expect("value")
	if err != nil {
		return values.Value{}, err
	}
	return values.Str(arg.v.Kind().String()), a.finish()
}

func fnRange(vm *vm, a *args) (values.Value, error) {
	first, err := a.expect("end")
	if err != nil {
		return values.Value{}, err
	}
	start, end := int64(0), int64(0)
	if end, err = first.int(); err != nil {
		return values.Value{}, err
	}
	if second, ok := a.eat(); ok {
		start = end
		if end, err = second.int(); err != nil {
			return values.Value{}, err
		}
	}
	step := int64(1)
	if arg, ok := a.take("step"); ok {
		if step, err = arg.int(); err != nil {
			return values.Value{}, err
		}
		if step == 0 {
			return values.Value{}, errorf(arg.span, "step must not be zero")
		}
	}
	if err := a.finish(); err != nil {
		return values.Value{}, err
	}
	var out []values.Value
	for i := start; (step > 0 && i < end) || (step < 0 && i > end); i += step {
		if len(out) >= maxRange {
			return values.Value{}, errorf(a.span, "range is too large")
		}
		out = append(out, values.Int(i))
	}
	return values.Array(out...), nil
}

func fnDatetime(vm *vm, a *args) (values.Value, error) {
	var parts [3]int64
	for i, name := range []string{"year", "month", "day"} {
		arg, ok := a.take(name)
		if !ok {
			return values.Value{}, errorf(a.span, "missing argument: %s", name)
		}
		var err error
		if parts[i], err = arg.int(); err != nil {
			return values.Value{}, err
		}
	}
	if err := a.finish(); err != nil {
		return values.Value{}, err
	}
	dt, ok := values.DateFromYMD(int(parts[0]), int(parts[1]), int(parts[2]))
	if !ok {
		return values.Value{}, errorf(a.span, "datetime is invalid")
	}
	return values.DatetimeValue(dt), nil
}

func fnToday(vm *vm, a *args) (values.Value, error) {
	var offset *int64
	if arg, ok := a.take("offset"); ok && arg.v.Kind() != values.KindAuto {
		o, err := arg.int()
		if err != nil {
			return values.Value{}, err
		}
		offset = &o
	}
	if err := a.finish(); err != nil {
		return values.Value{}, err
	}
	dt, ok := vm.world.Today(offset)
	if !ok {
		return values.Value{}, errorf(a.span, "unable to get the current date")
	}
	return values.DatetimeValue(dt), nil
}

var weights = map[string]int{
	"thin": 100, "extralight": 200, "light": 300, "regular": 400,
	"medium": 500, "semibold": 600, "bold": 700, "extrabold": 800, "black": 900,
}

// textStyleArgs consumes the text properties shared by text() and set text.
func textStyleArgs(a *args) (*textStyle, error) {
	var st textStyle
	if arg, ok := a.take("font"); ok {
		switch arg.v.Kind() {
		case values.KindStr:
			s, _ := arg.v.AsStr()
			st.fonts = []string{s}
		case values.KindArray:
			items, _ := arg.v.AsArray()
			for _, item := range items {
				s, ok := item.AsStr()
				if !ok {
					return nil, errorf(arg.span, "expected string, found %s", item.Kind())
				}
				st.fonts = append(st.fonts, s)
			}
		default:
			return nil, errorf(arg.span, "expected string or array, found %s", arg.v.Kind())
		}
		sp := arg.span
		st.fontSpan = &sp
	}
	if arg, ok := a.take("size"); ok {
		size, err := arg.length()
		if err != nil {
			return nil, err
		}
		if size <= 0 {
			return nil, errorf(arg.span, "size must be positive")
		}
		st.size = size
	}
	if arg, ok := a.take("weight"); ok {
		if s, isStr := arg.v.AsStr(); isStr {
			w, known := weights[s]
			if !known {
				return nil, errorf(arg.span, "unknown font weight: %s", s)
			}
			st.weight = w
		} else {
			w, err := arg.int()
			if err != nil {
				return nil, err
			}
			if w < 100 || w > 900 {
				return nil, errorf(arg.span, "weight must be between 100 and 900")
			}
			st.weight = int(w)
		}
	}
	if arg, ok := a.take("style"); ok {
		s, err := arg.str()
		if err != nil {
			return nil, err
		}
		switch s {
		case "normal":
			st.italic = new(bool)
		case "italic", "oblique":
			italic := true
			st.italic = &italic
		default:
			return nil, errorf(arg.span, "unknown font style: %s", s)
		}
	}
	return &st, nil
}

// setRule applies a set rule. Text properties are returned for the caller
// to scope; page and document properties are global.
func (vm *vm) setRule(set *SetExpr) (*textStyle, error) {
	a, err := vm.evalArgs(set.Span(), set.Args)
	if err != nil {
		return nil, err
	}
	switch set.Target.Name {
	case "text":
		st, err := textStyleArgs(a)
		if err != nil {
			return nil, err
		}
		return st, a.finish()
	case "page":
		return nil, vm.setPage(a)
	case "document":
		return nil, vm.setDocument(a)
	}
	if _, _, ok := vm.lookup(set.Target.Name); !ok {
		return nil, errorf(set.Target.Span(), "unknown variable: %s", set.Target.Name)
	}
	return nil, errorf(set.Target.Span(), "set rules are not supported for %s", set.Target.Name)
}

func (vm *vm) setPage(a *args) error {
	page := vm.page
	if arg, ok := a.take("paper"); ok {
		name, err := arg.str()
		if err != nil {
			return err
		}
		size, known := pdfs.LookupPaperSize(name)
		if !known {
			return errorf(arg.span, "unknown paper size: %s", name)
		}
		page.size = size
	}
	for _, dim := range []struct {
		name string
		dst  *float64
	}{{"width", &page.size.Width}, {"height", &page.size.Height}} {
		arg, ok := a.take(dim.name)
		if !ok {
			continue
		}
		l, err := arg.length()
		if err != nil {
			return err
		}
		if l <= 0 {
			return errorf(arg.span, "%s must be positive", dim.name)
		}
		*dim.dst = l
		page.size.Name = "custom"
	}
	if arg, ok := a.take("margin"); ok {
		if arg.v.Kind() == values.KindAuto {
			page.margin = -1
		} else {
			m, err := arg.length()
			if err != nil {
				return err
			}
			if m < 0 {
				return errorf(arg.span, "margin must not be negative")
			}
			page.margin = m
		}
	}
	if arg, ok := a.take("flipped"); ok {
		flipped, isBool := arg.v.AsBool()
		if !isBool {
			return errorf(arg.span, "expected boolean, found %s", arg.v.Kind())
		}
		if flipped {
			page.size = page.size.Landscape()
		}
	}
	if err := a.finish(); err != nil {
		return err
	}
	vm.page = page
	return nil
}

func (vm *vm) setDocument(a *args) error {
	doc := vm.doc
	if arg, ok := a.take("title"); ok {
		c, err := arg.content()
		if err != nil {
			return err
		}
		doc.title = c.plainText()
	}
	if arg, ok := a.take("author"); ok {
		if items, isArr := arg.v.AsArray(); isArr {
			names := make([]string, 0, len(items))
			for _, item := range items {
				s, isStr := item.AsStr()
				if !isStr {
					return errorf(arg.span, "expected string, found %s", item.Kind())
				}
				names = append(names, s)
			}
			doc.author = strings.Join(names, ", ")
		} else {
			s, err := arg.str()
			if err != nil {
				return err
			}
			doc.author = s
		}
	}
	if err := a.finish(); err != nil {
		return err
	}
	vm.doc = doc
	return nil
}
