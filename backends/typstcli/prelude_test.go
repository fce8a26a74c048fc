package typstcli

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/zeptools/gw-typst/scope"
	"github.com/zeptools/gw-typst/values"
)

func TestPrelude(t *testing.T) {
	sc := scope.New()
	post, err := values.ParseJSON(`{"title": "Say \"hi\"\n", "n": 3, "x": 2.5, "tags": ["a"], "empty": {}, "my key": null}`)
	if err != nil {
		t.Fatal(err)
	}
	sc.Bind("post", post)
	sc.Bind("total", values.Float(4))
	sc.Bind("gap", values.Length(12))
	sc.Bind("nan", values.Float(math.NaN()))
	dt, _ := values.DateFromYMD(2024, 2, 29)
	sc.Bind("when", values.DatetimeValue(dt))
	sc.Bind("not", values.Int(1))

	got, lines, warnings := prelude(sc)
	want := `#let post = ("title": "Say \"hi\"\n", "n": 3, "x": 2.5, "tags": ("a",), "empty": (:), "my key": none)
#let total = 4.0
#let gap = 12pt
#let nan = float.nan
#let when = datetime(year: 2024, month: 2, day: 29)
`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("prelude mismatch (-want +got):\n%s", diff)
	}
	if lines != 5 {
		t.Errorf("lines = %d, want 5", lines)
	}
	if len(warnings) != 1 || warnings[0].Message != `binding "not" is not a valid identifier` {
		t.Errorf("warnings = %v", warnings)
	}
}

func TestPreludeSkipsFunctions(t *testing.T) {
	sc := scope.New()
	sc.Bind("f", values.FuncValue(fakeFunc{}))
	got, lines, warnings := prelude(sc)
	if got != "" || lines != 0 {
		t.Errorf("prelude = %q, %d", got, lines)
	}
	if len(warnings) != 1 {
		t.Errorf("warnings = %v", warnings)
	}
}

type fakeFunc struct{}

func (fakeFunc) FuncName() string { return "f" }

func TestIsIdent(t *testing.T) {
	tests := map[string]bool{
		"post":     true,
		"my-data":  true,
		"_x1":      true,
		"größe":    true,
		"":         false,
		"1x":       false,
		"-x":       false,
		"my key":   false,
		"let":      false,
		"a.b":      false,
		"données2": true,
	}
	for in, want := range tests {
		if got := isIdent(in); got != want {
			t.Errorf("isIdent(%q) = %v, want %v", in, got, want)
		}
	}
}
