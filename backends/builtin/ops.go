package builtin

import (
	"errors"
	"math"
	"strings"

	"github.com/zeptools/gw-typst/diag"
	"github.com/zeptools/gw-typst/values"
)

// Size limits for values built by repetition or concatenation.
const (
	maxStrLen     = 1 << 24
	maxArrayLen   = 1 << 20
	maxContentLen = 1 << 20
)

func unary(op string, x values.Value, sp diag.Span) (values.Value, error) {
	switch op {
	case "-":
		switch x.Kind() {
		case values.KindInt:
			i, _ := x.AsInt()
			if i == math.MinInt64 {
				return values.Value{}, errorf(sp, "value is too large")
			}
			return values.Int(-i), nil
		case values.KindFloat:
			f, _ := x.AsFloat()
			return values.Float(-f), nil
		case values.KindLength:
			f, _ := x.AsLength()
			return values.Length(-f), nil
		}
	case "+":
		switch x.Kind() {
		case values.KindInt, values.KindFloat, values.KindLength:
			return x, nil
		}
	case "not":
		if b, ok := x.AsBool(); ok {
			return values.Bool(!b), nil
		}
	}
	return values.Value{}, errorf(sp, "cannot apply '%s' to %s", op, x.Kind())
}

func binary(op string, x, y values.Value, sp diag.Span) (values.Value, error) {
	switch op {
	case "+":
		return add(x, y, sp)
	case "-":
		return sub(x, y, sp)
	case "*":
		return mul(x, y, sp)
	case "/":
		return div(x, y, sp)
	case "==":
		return values.Bool(values.Equal(x, y)), nil
	case "!=":
		return values.Bool(!values.Equal(x, y)), nil
	case "<", "<=", ">", ">=":
		c, err := compare(x, y, sp)
		if err != nil {
			return values.Value{}, err
		}
		switch op {
		case "<":
			return values.Bool(c < 0), nil
		case "<=":
			return values.Bool(c <= 0), nil
		case ">":
			return values.Bool(c > 0), nil
		}
		return values.Bool(c >= 0), nil
	case "in", "not in":
		in, err := contains(y, x, sp)
		if err != nil {
			return values.Value{}, err
		}
		return values.Bool(in == (op == "in")), nil
	}
	return values.Value{}, errorf(sp, "unknown operator %s", op)
}

func bothInt(x, y values.Value) (int64, int64, bool) {
	a, ok1 := x.AsInt()
	b, ok2 := y.AsInt()
	return a, b, ok1 && ok2
}

func bothNumber(x, y values.Value) (float64, float64, bool) {
	a, ok1 := x.AsNumber()
	b, ok2 := y.AsNumber()
	return a, b, ok1 && ok2
}

func add(x, y values.Value, sp diag.Span) (values.Value, error) {
	if x.IsNone() {
		return y, nil
	}
	if y.IsNone() {
		return x, nil
	}
	if a, b, ok := bothInt(x, y); ok {
		s := a + b
		if (s > a) != (b > 0) {
			return values.Value{}, errorf(sp, "value is too large")
		}
		return values.Int(s), nil
	}
	if a, b, ok := bothNumber(x, y); ok {
		return values.Float(a + b), nil
	}
	if x.Kind() == values.KindLength && y.Kind() == values.KindLength {
		a, _ := x.AsLength()
		b, _ := y.AsLength()
		return values.Length(a + b), nil
	}
	v, err := join(x, y, sp)
	var ee *evalError
	if errors.As(err, &ee) && !strings.HasSuffix(ee.msg, "is too large") {
		return values.Value{}, errorf(sp, "cannot add %s and %s", x.Kind(), y.Kind())
	}
	return v, err
}

func sub(x, y values.Value, sp diag.Span) (values.Value, error) {
	if a, b, ok := bothInt(x, y); ok {
		d := a - b
		if (d < a) != (b > 0) {
			return values.Value{}, errorf(sp, "value is too large")
		}
		return values.Int(d), nil
	}
	if a, b, ok := bothNumber(x, y); ok {
		return values.Float(a - b), nil
	}
	if x.Kind() == values.KindLength && y.Kind() == values.KindLength {
		a, _ := x.AsLength()
		b, _ := y.AsLength()
		return values.Length(a - b), nil
	}
	return values.Value{}, errorf(sp, "cannot subtract %s from %s", y.Kind(), x.Kind())
}

func mul(x, y values.Value, sp diag.Span) (values.Value, error) {
	if a, b, ok := bothInt(x, y); ok {
		if a != 0 && ((a*b)/a != b || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64)) {
			return values.Value{}, errorf(sp, "value is too large")
		}
		return values.Int(a * b), nil
	}
	if a, b, ok := bothNumber(x, y); ok {
		return values.Float(a * b), nil
	}
	if l, ok := x.AsLength(); ok {
		if n, ok := y.AsNumber(); ok {
			return values.Length(l * n), nil
		}
	}
	if l, ok := y.AsLength(); ok {
		if n, ok := x.AsNumber(); ok {
			return values.Length(l * n), nil
		}
	}
	if _, ok := x.AsInt(); ok {
		x, y = y, x
	}
	if n, ok := y.AsInt(); ok {
		if n < 0 {
			return values.Value{}, errorf(sp, "cannot repeat this %s %d times", x.Kind(), n)
		}
		if s, ok := x.AsStr(); ok {
			if int64(len(s))*n > maxStrLen {
				return values.Value{}, errorf(sp, "string is too large")
			}
			return values.Str(strings.Repeat(s, int(n))), nil
		}
		if arr, ok := x.AsArray(); ok {
			if int64(len(arr))*n > maxArrayLen {
				return values.Value{}, errorf(sp, "array is too large")
			}
			out := make([]values.Value, 0, len(arr)*int(n))
			for range n {
				out = append(out, arr...)
			}
			return values.Array(out...), nil
		}
	}
	return values.Value{}, errorf(sp, "cannot multiply %s with %s", x.Kind(), y.Kind())
}

func div(x, y values.Value, sp diag.Span) (values.Value, error) {
	if n, ok := y.AsNumber(); ok && n == 0 {
		return values.Value{}, errorf(sp, "cannot divide by zero")
	}
	if a, b, ok := bothNumber(x, y); ok {
		return values.Float(a / b), nil
	}
	if l, ok := x.AsLength(); ok {
		if n, ok := y.AsNumber(); ok {
			return values.Length(l / n), nil
		}
		if m, ok := y.AsLength(); ok {
			if m == 0 {
				return values.Value{}, errorf(sp, "cannot divide by zero")
			}
			return values.Float(l / m), nil
		}
	}
	return values.Value{}, errorf(sp, "cannot divide %s by %s", x.Kind(), y.Kind())
}

func compare(x, y values.Value, sp diag.Span) (int, error) {
	cmp3 := func(a, b float64) int {
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	}
	if a, b, ok := bothNumber(x, y); ok {
		return cmp3(a, b), nil
	}
	switch {
	case x.Kind() == values.KindLength && y.Kind() == values.KindLength:
		a, _ := x.AsLength()
		b, _ := y.AsLength()
		return cmp3(a, b), nil
	case x.Kind() == values.KindStr && y.Kind() == values.KindStr:
		a, _ := x.AsStr()
		b, _ := y.AsStr()
		return strings.Compare(a, b), nil
	case x.Kind() == values.KindDatetime && y.Kind() == values.KindDatetime:
		a, _ := x.AsDatetime()
		b, _ := y.AsDatetime()
		return a.Time().Compare(b.Time()), nil
	}
	return 0, errorf(sp, "cannot compare %s with %s", x.Kind(), y.Kind())
}

// contains implements `x in collection`.
func contains(collection, x values.Value, sp diag.Span) (bool, error) {
	switch collection.Kind() {
	case values.KindStr:
		s, _ := collection.AsStr()
		if sub, ok := x.AsStr(); ok {
			return strings.Contains(s, sub), nil
		}
	case values.KindArray:
		arr, _ := collection.AsArray()
		for _, item := range arr {
			if values.Equal(item, x) {
				return true, nil
			}
		}
		return false, nil
	case values.KindDict:
		d, _ := collection.AsDict()
		if key, ok := x.AsStr(); ok {
			_, found := d.Get(key)
			return found, nil
		}
	}
	return false, errorf(sp, "cannot apply 'in' to %s and %s", x.Kind(), collection.Kind())
}

// join combines the values of consecutive expressions in a block.
func join(x, y values.Value, sp diag.Span) (values.Value, error) {
	switch {
	case x.IsNone():
		return y, nil
	case y.IsNone():
		return x, nil
	case x.Kind() == values.KindStr && y.Kind() == values.KindStr:
		a, _ := x.AsStr()
		b, _ := y.AsStr()
		if len(a)+len(b) > maxStrLen {
			return values.Value{}, errorf(sp, "string is too large")
		}
		return values.Str(a + b), nil
	case x.Kind() == values.KindArray && y.Kind() == values.KindArray:
		a, _ := x.AsArray()
		b, _ := y.AsArray()
		if len(a)+len(b) > maxArrayLen {
			return values.Value{}, errorf(sp, "array is too large")
		}
		out := make([]values.Value, 0, len(a)+len(b))
		return values.Array(append(append(out, a...), b...)...), nil
	case x.Kind() == values.KindDict && y.Kind() == values.KindDict:
		a, _ := x.AsDict()
		b, _ := y.AsDict()
		out := a.Clone()
		for _, k := range b.Keys() {
			v, _ := b.Get(k)
			out.Set(k, v)
		}
		return values.DictValue(out), nil
	case joinsAsContent(x) && joinsAsContent(y) &&
		(x.Kind() == values.KindContent || y.Kind() == values.KindContent):
		a, b := toContent(x), toContent(y)
		if len(a.elems)+len(b.elems) > maxContentLen {
			return values.Value{}, errorf(sp, "content is too large")
		}
		return values.ContentValue(a.join(b)), nil
	}
	return values.Value{}, errorf(sp, "cannot join %s with %s", x.Kind(), y.Kind())
}

func joinsAsContent(v values.Value) bool {
	return v.Kind() == values.KindContent || v.Kind() == values.KindStr
}
