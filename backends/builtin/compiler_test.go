package builtin

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zeptools/gw-typst/diag"
	"github.com/zeptools/gw-typst/fonts"
	"github.com/zeptools/gw-typst/scope"
	"github.com/zeptools/gw-typst/values"
	"github.com/zeptools/gw-typst/world"
)

var testCatalog = fonts.Discover(fonts.Options{IgnoreSystem: true, Embedded: true})

func compile(t *testing.T, ctx context.Context, body string, cfg world.Config) ([]byte, world.Document, diag.List, error) {
	t.Helper()
	c := New()
	if cfg.Library == nil {
		cfg.Library = scope.NewLibrary(c.Defaults())
	}
	if cfg.Catalog == nil {
		cfg.Catalog = testCatalog
	}
	cfg.Body = body
	env, err := world.New(cfg)
	if err != nil {
		t.Fatalf("world.New() error = %v", err)
	}
	defer env.Close()
	doc, warnings, err := c.Compile(ctx, env)
	if err != nil {
		return nil, nil, warnings, err
	}
	out, more, err := c.ExportPDF(ctx, doc, world.PDFOptions{})
	return out, doc, append(warnings, more...), err
}

func TestCompileMinimal(t *testing.T) {
	out, doc, warnings, err := compile(t, context.Background(), "= Invoice\nHello *world*", world.Config{})
	if err != nil {
		t.Fatalf("compile error = %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none", warnings)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Errorf("output does not start with %%PDF-: %q", out[:min(len(out), 16)])
	}
	if got := doc.Pages(); got != 1 {
		t.Errorf("Pages() = %d, want 1", got)
	}
}

func TestCompilePagination(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "pagebreak", body: "one #pagebreak() two", want: 2},
		{name: "overflow", body: "#for i in range(200) [line #i \\\n]", want: 3},
		{name: "empty", body: "", want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, doc, _, err := compile(t, context.Background(), tt.body, world.Config{})
			if err != nil {
				t.Fatalf("compile error = %v", err)
			}
			if got := doc.Pages(); got < tt.want {
				t.Errorf("Pages() = %d, want at least %d", got, tt.want)
			}
		})
	}
}

func TestCompileUnknownFontWarns(t *testing.T) {
	out, _, warnings, err := compile(t, context.Background(), `#set text(font: "No Such Font")
text`, world.Config{})
	if err != nil {
		t.Fatalf("compile error = %v", err)
	}
	if len(out) == 0 {
		t.Fatal("no PDF produced")
	}
	if len(warnings) != 1 || warnings[0].Message != "unknown font family: no such font" {
		t.Fatalf("warnings = %v", warnings)
	}
	if warnings[0].Severity != diag.SeverityWarning {
		t.Errorf("severity = %v", warnings[0].Severity)
	}
}

func TestCompileErrorLine(t *testing.T) {
	body := "first\nsecond\n#nope\n"
	_, _, _, err := compile(t, context.Background(), body, world.Config{})
	var list diag.List
	if !errors.As(err, &list) {
		t.Fatalf("error = %v (%T), want diag.List", err, err)
	}
	got := diag.Format(list, body)
	want := "unknown variable: nope\nerror on line 3: #nope"
	if got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}
}

func TestCompileImages(t *testing.T) {
	dir := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "logo.png"), buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, _, err := compile(t, context.Background(), `#image("logo.png", width: 40pt)`, world.Config{FilesRoot: dir})
	if err != nil {
		t.Fatalf("compile error = %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Error("output is not a PDF")
	}

	tests := []struct {
		body string
		want string
	}{
		{body: `#image("missing.png")`, want: "file not found (searched at missing.png)"},
		{body: `#image("notes.txt")`, want: "failed to decode image"},
		{body: `#image("../logo.png")`, want: "failed to load file (access denied)"},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			_, _, _, err := compile(t, context.Background(), tt.body, world.Config{FilesRoot: dir})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestCompileWithBindings(t *testing.T) {
	lib := scope.NewLibrary(New().Defaults())
	var b scope.Bindings
	b.JSON("post", `{"title": "Hello", "tags": ["a", "b"]}`)
	b.Var("count", values.Int(2))
	if skipped := b.Apply(lib.Global); len(skipped) != 0 {
		t.Fatalf("skipped = %v", skipped)
	}
	_, doc, _, err := compile(t, context.Background(),
		`#set document(title: post.title)
#post.tags.join(", ") #count`, world.Config{Library: lib})
	if err != nil {
		t.Fatalf("compile error = %v", err)
	}
	if d := doc.(*Document); d.title != "Hello" {
		t.Errorf("title = %q", d.title)
	}
}

func TestCompilePaper(t *testing.T) {
	_, doc, _, err := compile(t, context.Background(), `#set page(paper: "us-letter")
hi`, world.Config{})
	if err != nil {
		t.Fatalf("compile error = %v", err)
	}
	pg := doc.(*Document).pages[0]
	if pg.size.Width != 612 || pg.size.Height != 792 {
		t.Errorf("page size = %v", pg.size)
	}
}

func TestCompileCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, _, err := compile(t, ctx, "#for i in range(10) [#i]", world.Config{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestExportTwice(t *testing.T) {
	c := New()
	env, err := world.New(world.Config{Body: "x", Library: scope.NewLibrary(c.Defaults()), Catalog: testCatalog})
	if err != nil {
		t.Fatal(err)
	}
	defer env.Close()
	doc, _, err := c.Compile(context.Background(), env)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := c.ExportPDF(context.Background(), doc, world.PDFOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := c.ExportPDF(context.Background(), doc, world.PDFOptions{}); err == nil {
		t.Error("second export succeeded")
	}
}
