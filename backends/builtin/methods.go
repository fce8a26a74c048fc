package builtin

import (
	"slices"
	"strings"

	"github.com/zeptools/gw-typst/diag"
	"github.com/zeptools/gw-typst/values"
)

func (vm *vm) method(target values.Value, name string, a *args, sp diag.Span) (values.Value, error) {
	var (
		v   values.Value
		err error
		ok  = true
	)
	switch target.Kind() {
	case values.KindStr:
		s, _ := target.AsStr()
		v, ok, err = strMethod(s, name, a)
	case values.KindArray:
		arr, _ := target.AsArray()
		v, ok, err = vm.arrayMethod(arr, name, a)
	case values.KindDict:
		d, _ := target.AsDict()
		v, ok, err = dictMethod(d, name, a)
	case values.KindDatetime:
		dt, _ := target.AsDatetime()
		v, ok, err = datetimeMethod(dt, name, a)
	default:
		ok = false
	}
	if !ok {
		return values.Value{}, errorf(sp, "type %s has no method `%s`", target.Kind(), name)
	}
	if err != nil {
		return values.Value{}, err
	}
	return v, a.finish()
}

func strMethod(s, name string, a *args) (values.Value, bool, error) {
	pattern := func() (string, error) {
		arg, err := a.expect("pattern")
		if err != nil {
			return "", err
		}
		return arg.str()
	}
	switch name {
	case "len":
		return values.Int(int64(len(s))), true, nil
	case "contains", "starts-with", "ends-with":
		p, err := pattern()
		if err != nil {
			return values.Value{}, true, err
		}
		switch name {
		case "contains":
			return values.Bool(strings.Contains(s, p)), true, nil
		case "starts-with":
			return values.Bool(strings.HasPrefix(s, p)), true, nil
		}
		return values.Bool(strings.HasSuffix(s, p)), true, nil
	case "trim":
		return values.Str(strings.TrimSpace(s)), true, nil
	case "split":
		var parts []string
		if arg, ok := a.eat(); ok {
			sep, err := arg.str()
			if err != nil {
				return values.Value{}, true, err
			}
			parts = strings.Split(s, sep)
		} else {
			parts = strings.Fields(s)
		}
		out := make([]values.Value, len(parts))
		for i, p := range parts {
			out[i] = values.Str(p)
		}
		return values.Array(out...), true, nil
	case "replace":
		p, err := pattern()
		if err != nil {
			return values.Value{}, true, err
		}
		arg, err := a.expect("replacement")
		if err != nil {
			return values.Value{}, true, err
		}
		repl, err := arg.str()
		if err != nil {
			return values.Value{}, true, err
		}
		return values.Str(strings.ReplaceAll(s, p, repl)), true, nil
	case "first", "last":
		r := []rune(s)
		if len(r) == 0 {
			return values.Value{}, true, errorf(a.span, "string is empty")
		}
		if name == "first" {
			return values.Str(string(r[0])), true, nil
		}
		return values.Str(string(r[len(r)-1])), true, nil
	}
	return values.Value{}, false, nil
}

func (vm *vm) arrayMethod(arr []values.Value, name string, a *args) (values.Value, bool, error) {
	switch name {
	case "len":
		return values.Int(int64(len(arr))), true, nil
	case "at":
		v, err := arrayAt(arr, a)
		return v, true, err
	case "first", "last":
		if len(arr) == 0 {
			return values.Value{}, true, errorf(a.span, "array is empty")
		}
		if name == "first" {
			return arr[0], true, nil
		}
		return arr[len(arr)-1], true, nil
	case "contains":
		x, err := a.expect("value")
		if err != nil {
			return values.Value{}, true, err
		}
		found, _ := contains(values.Array(arr...), x.v, a.span)
		return values.Bool(found), true, nil
	case "slice":
		v, err := slice(arr, a)
		return v, true, err
	case "rev":
		out := slices.Clone(arr)
		slices.Reverse(out)
		return values.Array(out...), true, nil
	case "join":
		v, err := joinArray(arr, a)
		return v, true, err
	case "enumerate":
		out := make([]values.Value, len(arr))
		for i, v := range arr {
			out[i] = values.Array(values.Int(int64(i)), v)
		}
		return values.Array(out...), true, nil
	case "map", "filter":
		arg, err := a.expect("function")
		if err != nil {
			return values.Value{}, true, err
		}
		fn, err := arg.function()
		if err != nil {
			return values.Value{}, true, err
		}
		out := make([]values.Value, 0, len(arr))
		for _, item := range arr {
			r, err := vm.callFunc(fn, &args{span: a.span, pos: []spanned{{v: item, span: a.span}}})
			if err != nil {
				return values.Value{}, true, err
			}
			if name == "map" {
				out = append(out, r)
				continue
			}
			keep, ok := r.AsBool()
			if !ok {
				return values.Value{}, true, errorf(a.span, "expected boolean from filter function, found %s", r.Kind())
			}
			if keep {
				out = append(out, item)
			}
		}
		return values.Array(out...), true, nil
	case "sorted":
		out := slices.Clone(arr)
		var cmpErr error
		slices.SortStableFunc(out, func(x, y values.Value) int {
			c, err := compare(x, y, a.span)
			if err != nil && cmpErr == nil {
				cmpErr = err
			}
			return c
		})
		return values.Array(out...), true, cmpErr
	case "sum":
		def, hasDef := a.take("default")
		if len(arr) == 0 {
			if !hasDef {
				return values.Value{}, true, errorf(a.span, "cannot calculate sum of empty array with no default")
			}
			return def.v, true, nil
		}
		acc := arr[0]
		for _, item := range arr[1:] {
			var err error
			if acc, err = add(acc, item, a.span); err != nil {
				return values.Value{}, true, err
			}
		}
		return acc, true, nil
	}
	return values.Value{}, false, nil
}

func arrayAt(arr []values.Value, a *args) (values.Value, error) {
	arg, err := a.expect("index")
	if err != nil {
		return values.Value{}, err
	}
	i, err := arg.int()
	if err != nil {
		return values.Value{}, err
	}
	def, hasDef := a.take("default")
	idx := i
	if idx < 0 {
		idx += int64(len(arr))
	}
	if idx < 0 || idx >= int64(len(arr)) {
		if hasDef {
			return def.v, nil
		}
		return values.Value{}, errorf(arg.span, "array index out of bounds (index: %d, len: %d)", i, len(arr))
	}
	return arr[idx], nil
}

func slice(arr []values.Value, a *args) (values.Value, error) {
	bound := func(s spanned) (int, error) {
		i, err := s.int()
		if err != nil {
			return 0, err
		}
		if i < 0 {
			i += int64(len(arr))
		}
		if i < 0 || i > int64(len(arr)) {
			return 0, errorf(s.span, "array index out of bounds (index: %d, len: %d)", i, len(arr))
		}
		return int(i), nil
	}
	arg, err := a.expect("start")
	if err != nil {
		return values.Value{}, err
	}
	start, err := bound(arg)
	if err != nil {
		return values.Value{}, err
	}
	end := len(arr)
	if arg, ok := a.eat(); ok {
		if end, err = bound(arg); err != nil {
			return values.Value{}, err
		}
	}
	if end < start {
		end = start
	}
	return values.Array(slices.Clone(arr[start:end])...), nil
}

func joinArray(arr []values.Value, a *args) (values.Value, error) {
	sep := values.None()
	if arg, ok := a.eat(); ok {
		sep = arg.v
	}
	last := sep
	if arg, ok := a.take("last"); ok {
		last = arg.v
	}
	acc := values.None()
	for i, item := range arr {
		var err error
		if i > 0 {
			s := sep
			if i == len(arr)-1 {
				s = last
			}
			if acc, err = join(acc, s, a.span); err != nil {
				return values.Value{}, err
			}
		}
		if acc, err = join(acc, item, a.span); err != nil {
			return values.Value{}, err
		}
	}
	return acc, nil
}

func dictMethod(d *values.Dict, name string, a *args) (values.Value, bool, error) {
	switch name {
	case "len":
		return values.Int(int64(d.Len())), true, nil
	case "at":
		arg, err := a.expect("key")
		if err != nil {
			return values.Value{}, true, err
		}
		key, err := arg.str()
		if err != nil {
			return values.Value{}, true, err
		}
		def, hasDef := a.take("default")
		if v, ok := d.Get(key); ok {
			return v, true, nil
		}
		if hasDef {
			return def.v, true, nil
		}
		return values.Value{}, true, errorf(arg.span, "dictionary does not contain key %q", key)
	case "keys", "values", "pairs":
		out := make([]values.Value, 0, d.Len())
		for _, k := range d.Keys() {
			v, _ := d.Get(k)
			switch name {
			case "keys":
				out = append(out, values.Str(k))
			case "values":
				out = append(out, v)
			default:
				out = append(out, values.Array(values.Str(k), v))
			}
		}
		return values.Array(out...), true, nil
	}
	return values.Value{}, false, nil
}

func datetimeMethod(dt values.Datetime, name string, a *args) (values.Value, bool, error) {
	switch name {
	case "display":
		if arg, ok := a.eat(); ok {
			pattern, err := arg.str()
			if err != nil {
				return values.Value{}, true, err
			}
			return values.Str(dt.Format(pattern)), true, nil
		}
		return values.Str(dt.Display()), true, nil
	case "year", "month", "day":
		if !dt.HasDate {
			return values.None(), true, nil
		}
		switch name {
		case "year":
			return values.Int(int64(dt.Year)), true, nil
		case "month":
			return values.Int(int64(dt.Month)), true, nil
		}
		return values.Int(int64(dt.Day)), true, nil
	}
	return values.Value{}, false, nil
}
