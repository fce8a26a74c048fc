package typstcli

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/zeptools/gw-typst/diag"
)

func TestParseDiagnostics(t *testing.T) {
	body := "Hello\n#let x = 1\nwörld #nope\n"
	stderr := `<stdin>:4:8: error: unknown variable: nope
  = hint: if you meant to use subtraction, try adding spaces around the minus sign
<stdin>:3:6: warning: unused binding
/tmp/other.typ:1:1: error: file not found
`
	got := parseDiagnostics(stderr, body, 1)
	want := diag.List{
		{
			Severity: diag.SeverityError,
			Message:  "unknown variable: nope",
			Span:     diag.At(25, 26),
			Hints:    []string{"if you meant to use subtraction, try adding spaces around the minus sign"},
		},
		{
			Severity: diag.SeverityWarning,
			Message:  "unused binding",
			Span:     diag.At(11, 12),
		},
		{
			Severity: diag.SeverityError,
			Message:  "/tmp/other.typ:1:1: file not found",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parseDiagnostics mismatch (-want +got):\n%s", diff)
	}
	if line := diag.LineNumber([]byte(body), got[0].Span.Start); line != 3 {
		t.Errorf("line = %d, want 3", line)
	}
}

func TestParseDiagnosticsInPrelude(t *testing.T) {
	got := parseDiagnostics("<stdin>:1:12: error: expected expression\n", "body", 2)
	if len(got) != 1 || got[0].Span != nil {
		t.Fatalf("got %+v", got)
	}
	if got[0].Message != "<stdin>:1:12: expected expression" {
		t.Errorf("message = %q", got[0].Message)
	}
}

func TestLocate(t *testing.T) {
	src := "ab\nc"
	tests := []struct {
		line, col  int
		start, end int
	}{
		{1, 1, 0, 1},
		{1, 2, 1, 2},
		{1, 9, 2, 2},
		{2, 1, 3, 4},
		{2, 2, 4, 4},
		{5, 1, 4, 4},
	}
	for _, tt := range tests {
		sp := locate(src, tt.line, tt.col)
		if sp.Start != tt.start || sp.End != tt.end {
			t.Errorf("locate(%d, %d) = %d..%d, want %d..%d", tt.line, tt.col, sp.Start, sp.End, tt.start, tt.end)
		}
	}
}
