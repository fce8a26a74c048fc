package builtin

import (
	"github.com/zeptools/gw-typst/diag"
	"github.com/zeptools/gw-typst/values"
)

type spanned struct {
	v    values.Value
	span diag.Span
}

type namedValue struct {
	name string
	spanned
}

// args are the evaluated arguments of one call. Functions consume what
// they understand and finish reports anything left over.
type args struct {
	span  diag.Span
	pos   []spanned
	named []namedValue
}

func (a *args) eat() (spanned, bool) {
	if len(a.pos) == 0 {
		return spanned{}, false
	}
	v := a.pos[0]
	a.pos = a.pos[1:]
	return v, true
}

func (a *args) expect(what string) (spanned, error) {
	if v, ok := a.eat(); ok {
		return v, nil
	}
	return spanned{}, errorf(a.span, "missing argument: %s", what)
}

// take removes every named argument called name and returns the last.
func (a *args) take(name string) (spanned, bool) {
	var found spanned
	ok := false
	kept := a.named[:0]
	for _, n := range a.named {
		if n.name == name {
			found, ok = n.spanned, true
			continue
		}
		kept = append(kept, n)
	}
	a.named = kept
	return found, ok
}

func (a *args) finish() error {
	if len(a.pos) > 0 {
		return errorf(a.pos[0].span, "unexpected argument")
	}
	if len(a.named) > 0 {
		return errorf(a.named[0].span, "unexpected argument: %s", a.named[0].name)
	}
	return nil
}

func (s spanned) str() (string, error) {
	if v, ok := s.v.AsStr(); ok {
		return v, nil
	}
	return "", errorf(s.span, "expected string, found %s", s.v.Kind())
}

func (s spanned) int() (int64, error) {
	if v, ok := s.v.AsInt(); ok {
		return v, nil
	}
	return 0, errorf(s.span, "expected integer, found %s", s.v.Kind())
}

func (s spanned) length() (float64, error) {
	if v, ok := s.v.AsLength(); ok {
		return v, nil
	}
	return 0, errorf(s.span, "expected length, found %s", s.v.Kind())
}

func (s spanned) function() (values.Func, error) {
	if f, ok := s.v.AsFunc(); ok {
		return f, nil
	}
	return nil, errorf(s.span, "expected function, found %s", s.v.Kind())
}

// content accepts content and anything displayable as text.
func (s spanned) content() (*Content, error) {
	switch s.v.Kind() {
	case values.KindContent, values.KindStr, values.KindInt, values.KindFloat, values.KindNone:
		return toContent(s.v), nil
	}
	return nil, errorf(s.span, "expected content, found %s", s.v.Kind())
}
