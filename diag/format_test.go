package diag

import (
	"strings"
	"testing"
)

func TestFormat(t *testing.T) {
	src := "= Title\nHello #name!\n\n#oops\nend"
	off := strings.Index(src, "oops")
	tests := []struct {
		name  string
		diags List
		want  string
	}{
		{
			name:  "no span",
			diags: List{Error(nil, "something failed")},
			want:  "something failed",
		},
		{
			name:  "span on line four",
			diags: List{Error(At(off, off+4), "unknown variable: oops")},
			want:  "unknown variable: oops\nerror on line 4: #oops",
		},
		{
			name:  "first line",
			diags: List{Error(At(2, 7), "bad heading")},
			want:  "bad heading\nerror on line 1: = Title",
		},
		{
			name:  "last line without newline",
			diags: List{Error(At(len(src)-1, len(src)), "eof")},
			want:  "eof\nerror on line 5: end",
		},
		{
			name: "multiple joined by newline",
			diags: List{
				Error(nil, "first"),
				Error(At(9, 14), "second"),
			},
			want: "first\nsecond\nerror on line 2: Hello #name!",
		},
		{
			name:  "span across lines",
			diags: List{Error(At(9, off+1), "wide")},
			want:  "wide\nerror on line 2: Hello #name!\n\n#oops",
		},
		{
			name:  "span out of range is clamped",
			diags: List{Error(At(1000, 2000), "far")},
			want:  "far\nerror on line 5: end",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Format(tt.diags, src); got != tt.want {
				t.Errorf("Format() =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

func TestFormatLineNumberCountsNewlines(t *testing.T) {
	src := "a\nb\nc\nd\n#bad"
	for off := 0; off < len(src); off++ {
		want := 1 + strings.Count(src[:off], "\n")
		if got := LineNumber([]byte(src), off); got != want {
			t.Errorf("LineNumber(%d) = %d, want %d", off, got, want)
		}
	}
}

func TestFormatSkipsInvalidUTF8Snippet(t *testing.T) {
	src := "ok\n\xff\xfe broken\nok"
	got := Format(List{Error(At(3, 5), "decode")}, src)
	want := "decode\nerror on line 2: "
	if got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}
}

func TestListSplit(t *testing.T) {
	l := List{Warning(nil, "w1"), Error(nil, "e1"), Warning(nil, "w2")}
	errs, warns := l.Split()
	if len(errs) != 1 || len(warns) != 2 || !l.HasErrors() {
		t.Fatalf("Split() = %d errors, %d warnings", len(errs), len(warns))
	}
	if got := l.Error(); got != "w1\ne1\nw2" {
		t.Errorf("Error() = %q", got)
	}
}
