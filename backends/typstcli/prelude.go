package typstcli

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/zeptools/gw-typst/diag"
	"github.com/zeptools/gw-typst/scope"
	"github.com/zeptools/gw-typst/values"
)

// prelude renders the global scope as one `#let` line per binding. The
// typst executable has no other way to receive values, so each value is
// written as Typst code. Bindings that have no code form are left out with
// a warning.
func prelude(sc *scope.Scope) (string, int, diag.List) {
	if sc == nil {
		return "", 0, nil
	}
	var (
		sb       strings.Builder
		lines    int
		warnings diag.List
	)
	for _, name := range sc.Names() {
		if !isIdent(name) {
			warnings = append(warnings, diag.Warning(nil, fmt.Sprintf("binding %q is not a valid identifier", name)))
			continue
		}
		v, _ := sc.Get(name)
		var code strings.Builder
		if err := writeCode(&code, v); err != nil {
			warnings = append(warnings, diag.Warning(nil, fmt.Sprintf("binding %s: %v", name, err)))
			continue
		}
		sb.WriteString("#let ")
		sb.WriteString(name)
		sb.WriteString(" = ")
		sb.WriteString(code.String())
		sb.WriteByte('\n')
		lines++
	}
	return sb.String(), lines, warnings
}

func writeCode(sb *strings.Builder, v values.Value) error {
	switch v.Kind() {
	case values.KindNone:
		sb.WriteString("none")
	case values.KindAuto:
		sb.WriteString("auto")
	case values.KindBool:
		b, _ := v.AsBool()
		sb.WriteString(strconv.FormatBool(b))
	case values.KindInt:
		i, _ := v.AsInt()
		sb.WriteString(strconv.FormatInt(i, 10))
	case values.KindFloat:
		f, _ := v.AsFloat()
		sb.WriteString(floatCode(f))
	case values.KindLength:
		f, _ := v.AsLength()
		sb.WriteString(strconv.FormatFloat(f, 'f', -1, 64))
		sb.WriteString("pt")
	case values.KindStr:
		s, _ := v.AsStr()
		writeString(sb, s)
	case values.KindArray:
		items, _ := v.AsArray()
		sb.WriteByte('(')
		for i, item := range items {
			if i > 0 {
				sb.WriteString(", ")
			}
			if err := writeCode(sb, item); err != nil {
				return err
			}
		}
		if len(items) == 1 {
			sb.WriteByte(',')
		}
		sb.WriteByte(')')
	case values.KindDict:
		d, _ := v.AsDict()
		if d.Len() == 0 {
			sb.WriteString("(:)")
			return nil
		}
		sb.WriteByte('(')
		for i, k := range d.Keys() {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeString(sb, k)
			sb.WriteString(": ")
			item, _ := d.Get(k)
			if err := writeCode(sb, item); err != nil {
				return err
			}
		}
		sb.WriteByte(')')
	case values.KindDatetime:
		dt, _ := v.AsDatetime()
		sb.WriteString(dt.Repr())
	default:
		return fmt.Errorf("cannot pass %s to the typst executable", v.Kind())
	}
	return nil
}

func floatCode(f float64) string {
	switch {
	case math.IsNaN(f):
		return "float.nan"
	case math.IsInf(f, 1):
		return "float.inf"
	case math.IsInf(f, -1):
		return "-float.inf"
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// writeString quotes s as a Typst string literal. Control characters and
// invalid bytes use \u{..} escapes.
func writeString(sb *strings.Builder, s string) {
	sb.WriteByte('"')
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		s = s[size:]
		switch {
		case r == '"' || r == '\\':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case r == '\n':
			sb.WriteString(`\n`)
		case r == '\t':
			sb.WriteString(`\t`)
		case r == '\r':
			sb.WriteString(`\r`)
		case r == utf8.RuneError && size == 1, unicode.IsControl(r):
			fmt.Fprintf(sb, `\u{%x}`, r)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || unicode.IsLetter(r):
		case i > 0 && (r == '-' || unicode.IsDigit(r)):
		default:
			return false
		}
	}
	switch s {
	case "none", "auto", "true", "false", "let", "set", "show", "if", "else",
		"for", "in", "while", "break", "continue", "return", "import",
		"include", "not", "and", "or", "as", "context":
		return false
	}
	return true
}
