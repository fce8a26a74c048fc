package values

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type Kind uint8

const (
	KindNone Kind = iota
	KindAuto
	KindBool
	KindInt
	KindFloat
	KindLength // in pt
	KindStr
	KindArray
	KindDict
	KindDatetime
	KindFunc
	KindContent
)

var kindNames = [...]string{
	KindNone:     "none",
	KindAuto:     "auto",
	KindBool:     "boolean",
	KindInt:      "integer",
	KindFloat:    "float",
	KindLength:   "length",
	KindStr:      "string",
	KindArray:    "array",
	KindDict:     "dictionary",
	KindDatetime: "datetime",
	KindFunc:     "function",
	KindContent:  "content",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Func is implemented by callable values. The backend that creates them owns
// the calling convention; this package only carries them around.
type Func interface {
	FuncName() string
}

// Content is an opaque markup payload produced by a backend.
type Content interface {
	IsEmpty() bool
}

// Value is a tagged variant. The zero Value is none.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	arr  []Value
	dict *Dict
	dt   Datetime
	ref  any
}

func None() Value             { return Value{} }
func Auto() Value             { return Value{kind: KindAuto} }
func Bool(b bool) Value       { return Value{kind: KindBool, b: b} }
func Int(i int64) Value       { return Value{kind: KindInt, i: i} }
func Float(f float64) Value   { return Value{kind: KindFloat, f: f} }
func Length(pt float64) Value { return Value{kind: KindLength, f: pt} }
func Str(s string) Value      { return Value{kind: KindStr, s: s} }

func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindArray, arr: items}
}

func DictValue(d *Dict) Value {
	if d == nil {
		d = NewDict()
	}
	return Value{kind: KindDict, dict: d}
}

func DatetimeValue(dt Datetime) Value { return Value{kind: KindDatetime, dt: dt} }
func FuncValue(f Func) Value          { return Value{kind: KindFunc, ref: f} }
func ContentValue(c Content) Value    { return Value{kind: KindContent, ref: c} }

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNone() bool { return v.kind == KindNone }

func (v Value) AsBool() (bool, bool)     { return v.b, v.kind == KindBool }
func (v Value) AsInt() (int64, bool)     { return v.i, v.kind == KindInt }
func (v Value) AsFloat() (float64, bool) { return v.f, v.kind == KindFloat }
func (v Value) AsLength() (float64, bool) {
	return v.f, v.kind == KindLength
}
func (v Value) AsStr() (string, bool)        { return v.s, v.kind == KindStr }
func (v Value) AsArray() ([]Value, bool)     { return v.arr, v.kind == KindArray }
func (v Value) AsDict() (*Dict, bool)        { return v.dict, v.kind == KindDict }
func (v Value) AsDatetime() (Datetime, bool) { return v.dt, v.kind == KindDatetime }

func (v Value) AsFunc() (Func, bool) {
	f, ok := v.ref.(Func)
	return f, ok && v.kind == KindFunc
}

func (v Value) AsContent() (Content, bool) {
	c, ok := v.ref.(Content)
	return c, ok && v.kind == KindContent
}

// AsNumber widens integers to floats.
func (v Value) AsNumber() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	}
	return 0, false
}

// Equal reports structural equality. Integers and floats compare numerically.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		x, okx := a.AsNumber()
		y, oky := b.AsNumber()
		return okx && oky && x == y
	}
	switch a.kind {
	case KindNone, KindAuto:
		return true
	case KindBool:
		return a.b == b.b
	case KindInt:
		return a.i == b.i
	case KindFloat, KindLength:
		return a.f == b.f
	case KindStr:
		return a.s == b.s
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindDict:
		if a.dict.Len() != b.dict.Len() {
			return false
		}
		for _, k := range a.dict.Keys() {
			av, _ := a.dict.Get(k)
			bv, ok := b.dict.Get(k)
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	case KindDatetime:
		return a.dt == b.dt
	}
	return a.ref == b.ref
}

// Display renders the value the way it appears when placed into markup.
func (v Value) Display() string {
	switch v.kind {
	case KindNone:
		return ""
	case KindStr:
		return v.s
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return formatFloat(v.f)
	case KindDatetime:
		return v.dt.Display()
	}
	return v.Repr()
}

// Repr renders a debug representation close to source syntax.
func (v Value) Repr() string {
	var sb strings.Builder
	v.writeRepr(&sb)
	return sb.String()
}

func (v Value) writeRepr(sb *strings.Builder) {
	switch v.kind {
	case KindNone:
		sb.WriteString("none")
	case KindAuto:
		sb.WriteString("auto")
	case KindBool:
		sb.WriteString(strconv.FormatBool(v.b))
	case KindInt:
		sb.WriteString(strconv.FormatInt(v.i, 10))
	case KindFloat:
		s := formatFloat(v.f)
		sb.WriteString(s)
		if !strings.ContainsAny(s, ".naif") {
			sb.WriteString(".0")
		}
	case KindLength:
		sb.WriteString(formatFloat(v.f))
		sb.WriteString("pt")
	case KindStr:
		sb.WriteString(strconv.Quote(v.s))
	case KindArray:
		sb.WriteByte('(')
		for i, item := range v.arr {
			if i > 0 {
				sb.WriteString(", ")
			}
			item.writeRepr(sb)
		}
		if len(v.arr) == 1 {
			sb.WriteByte(',')
		}
		sb.WriteByte(')')
	case KindDict:
		if v.dict.Len() == 0 {
			sb.WriteString("(:)")
			return
		}
		sb.WriteByte('(')
		for i, k := range v.dict.Keys() {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(k)
			sb.WriteString(": ")
			item, _ := v.dict.Get(k)
			item.writeRepr(sb)
		}
		sb.WriteByte(')')
	case KindDatetime:
		sb.WriteString(v.dt.Repr())
	case KindFunc:
		if f, ok := v.AsFunc(); ok {
			sb.WriteString(f.FuncName())
		}
	case KindContent:
		sb.WriteString("[..]")
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
