package values

import (
	"encoding/json/jsontext"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ParseJSON decodes one JSON document into a Value.
// Trailing non-whitespace input is an error. Duplicate object names are
// accepted; the last occurrence wins and keeps the first position.
func ParseJSON(raw string) (Value, error) {
	dec := jsontext.NewDecoder(strings.NewReader(raw), jsontext.AllowDuplicateNames(true))
	v, err := decodeValue(dec)
	if err != nil {
		return Value{}, err
	}
	if _, err := dec.ReadToken(); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("trailing data after JSON value")
		}
		return Value{}, err
	}
	return v, nil
}

// decodeValue reads exactly one JSON value. Every token kind maps to exactly
// one Value kind.
func decodeValue(dec *jsontext.Decoder) (Value, error) {
	tok, err := dec.ReadToken()
	if err != nil {
		return Value{}, err
	}
	switch tok.Kind() {
	case 'n':
		return None(), nil
	case 'f', 't':
		return Bool(tok.Bool()), nil
	case '0':
		return Number(tok.String()), nil
	case '"':
		return Str(tok.String()), nil
	case '[':
		items := []Value{}
		for dec.PeekKind() != ']' {
			item, err := decodeValue(dec)
			if err != nil {
				return Value{}, err
			}
			items = append(items, item)
		}
		if _, err := dec.ReadToken(); err != nil {
			return Value{}, err
		}
		return Array(items...), nil
	case '{':
		d := NewDict()
		for dec.PeekKind() != '}' {
			name, err := dec.ReadToken()
			if err != nil {
				return Value{}, err
			}
			// The token is voided by the next decoder call.
			key := name.String()
			item, err := decodeValue(dec)
			if err != nil {
				return Value{}, err
			}
			d.Set(key, item)
		}
		if _, err := dec.ReadToken(); err != nil {
			return Value{}, err
		}
		return DictValue(d), nil
	}
	return Value{}, fmt.Errorf("unexpected JSON token %v", tok.Kind())
}

// Number converts a JSON number literal. Literals that fit an int64 exactly
// become integers; everything else becomes a float, and magnitudes a float
// cannot hold become NaN.
func Number(lit string) Value {
	if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
		return Int(i)
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return Float(math.NaN())
	}
	return Float(f)
}

// FromAny converts the output of a generic JSON decoder (nil, bool, float64,
// string, []any, map[string]any) and common Go scalars. Map keys are visited in sorted order since Go maps are unordered.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return None(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return Int(int64(t)), nil
		}
		return Float(t), nil
	case string:
		return Str(t), nil
	case fmt.Stringer:
		return Str(t.String()), nil
	case []any:
		items := make([]Value, 0, len(t))
		for _, e := range t {
			v, err := FromAny(e)
			if err != nil {
				return Value{}, err
			}
			items = append(items, v)
		}
		return Array(items...), nil
	case map[string]any:
		d := NewDict()
		for _, k := range sortedKeys(t) {
			v, err := FromAny(t[k])
			if err != nil {
				return Value{}, err
			}
			d.Set(k, v)
		}
		return DictValue(d), nil
	}
	return Value{}, fmt.Errorf("values: unsupported Go type %T", x)
}
