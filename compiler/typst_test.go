package compiler

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/zeptools/gw-typst/diag"
	"github.com/zeptools/gw-typst/fonts"
	"github.com/zeptools/gw-typst/scope"
	"github.com/zeptools/gw-typst/values"
	"github.com/zeptools/gw-typst/world"
)

var testCatalog = fonts.Discover(fonts.Options{IgnoreSystem: true, Embedded: true})

func ptr(s string) *string { return &s }

func TestCompileWithoutBody(t *testing.T) {
	typ := New(nil)
	discovered := 0
	typ.discover = func(fonts.Options) *fonts.Catalog {
		discovered++
		return testCatalog
	}
	_, err := typ.Compile(context.Background())
	if !errors.Is(err, ErrNoBody) {
		t.Fatalf("error = %v, want ErrNoBody", err)
	}
	if discovered != 0 {
		t.Errorf("font discovery ran %d times", discovered)
	}
}

func TestCompileMinimal(t *testing.T) {
	typ := New(ptr("Hello"))
	typ.discover = func(opts fonts.Options) *fonts.Catalog {
		return testCatalog
	}
	out, err := typ.Compile(context.Background())
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Errorf("output starts with %q", out[:min(len(out), 5)])
	}
}

func TestNativeBindingWins(t *testing.T) {
	typ := New(ptr(`#let check = (native: 1).at(post)`), WithCatalog(testCatalog))
	typ.Var("post", values.Str("native"))
	typ.JSON("post", `"json"`)
	if _, err := typ.Compile(context.Background()); err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
}

func TestMalformedJSONIsSkipped(t *testing.T) {
	typ := New(ptr("fine"), WithCatalog(testCatalog))
	typ.JSON("broken", "{")
	if _, err := typ.Compile(context.Background()); err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	typ = New(ptr("#broken"), WithCatalog(testCatalog))
	typ.JSON("broken", "{")
	_, err := typ.Compile(context.Background())
	var ce *CompileError
	if !errors.As(err, &ce) || ce.Diagnostics[0].Message != "unknown variable: broken" {
		t.Fatalf("error = %v", err)
	}
}

func TestCompileErrorFormatting(t *testing.T) {
	body := "first\nsecond\n#(1 + \"x\")\nlast"
	_, err := New(&body, WithCatalog(testCatalog)).Compile(context.Background())
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v (%T), want *CompileError", err, err)
	}
	if ce.Stage != StageCompile {
		t.Errorf("Stage = %q", ce.Stage)
	}
	want := "cannot add integer and string\nerror on line 3: #(1 + \"x\")"
	if diff := cmp.Diff(want, ce.Error()); diff != "" {
		t.Errorf("message mismatch (-want +got):\n%s", diff)
	}
}

func TestMissingFontPathIsNotFatal(t *testing.T) {
	typ := New(ptr(`#text(font: "Go")[x]`), WithCatalog(testCatalog))
	typ.Font(t.TempDir() + "/missing")
	if _, err := typ.Compile(context.Background()); err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
}

func TestCompileCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(ptr("#range(3)"), WithCatalog(testCatalog)).Compile(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

// failingExport compiles anything and fails every export.
type failingExport struct{}

type emptyDoc struct{}

func (emptyDoc) Pages() int { return 0 }

func (failingExport) Name() string           { return "failing" }
func (failingExport) Defaults() *scope.Scope { return scope.New() }
func (failingExport) Compile(context.Context, world.World) (world.Document, diag.List, error) {
	return emptyDoc{}, nil, nil
}
func (failingExport) ExportPDF(context.Context, world.Document, world.PDFOptions) ([]byte, diag.List, error) {
	return nil, nil, diag.List{diag.Error(nil, "failed to write PDF: disk full")}
}

func TestExportErrorStage(t *testing.T) {
	_, err := New(ptr("x"), WithBackend(failingExport{}), WithCatalog(testCatalog)).Compile(context.Background())
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v", err)
	}
	if ce.Stage != StageExport || ce.Message != "failed to write PDF: disk full" {
		t.Errorf("got %+v", ce)
	}
}
