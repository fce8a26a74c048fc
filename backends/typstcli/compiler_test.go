package typstcli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/zeptools/gw-typst/diag"
	"github.com/zeptools/gw-typst/fonts"
	"github.com/zeptools/gw-typst/scope"
	"github.com/zeptools/gw-typst/values"
	"github.com/zeptools/gw-typst/world"
)

func newCompiler(t *testing.T) *Compiler {
	t.Helper()
	c := New("")
	if !c.Available() {
		t.Skip("typst not found")
	}
	return c
}

func compile(t *testing.T, c *Compiler, body string, lib *scope.Library) ([]byte, diag.List, error) {
	t.Helper()
	env, err := world.New(world.Config{
		Body:    body,
		Library: lib,
		Catalog: fonts.Discover(fonts.Options{IgnoreSystem: true, Embedded: true}),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer env.Close()
	doc, warnings, err := c.Compile(context.Background(), env)
	if err != nil {
		return nil, warnings, err
	}
	out, _, err := c.ExportPDF(context.Background(), doc, world.PDFOptions{})
	return out, warnings, err
}

func TestCompileMinimal(t *testing.T) {
	c := newCompiler(t)
	out, _, err := compile(t, c, "Hello *world*", nil)
	if err != nil {
		t.Fatalf("compile error = %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Error("output is not a PDF")
	}
}

func TestCompileBindings(t *testing.T) {
	c := newCompiler(t)
	lib := scope.NewLibrary(c.Defaults())
	post, _ := values.ParseJSON(`{"title": "Hi", "n": 2}`)
	lib.Global.Bind("post", post)
	_, _, err := compile(t, c, `#assert.eq(post.n, 2)
#assert.eq(type(post.n), int)
= #post.title`, lib)
	if err != nil {
		t.Fatalf("compile error = %v", err)
	}
}

func TestCompileErrorSpan(t *testing.T) {
	c := newCompiler(t)
	lib := scope.NewLibrary(c.Defaults())
	lib.Global.Bind("post", values.DictValue(nil))
	body := "one\ntwo\n#nope\n"
	_, _, err := compile(t, c, body, lib)
	var list diag.List
	if !errors.As(err, &list) {
		t.Fatalf("error = %v, want diag.List", err)
	}
	msg := diag.Format(list, body)
	if !strings.Contains(msg, "error on line 3: #nope") {
		t.Errorf("Format() = %q", msg)
	}
}

func TestCompileMissingBinary(t *testing.T) {
	c := New("gw-typst-no-such-binary")
	if c.Available() {
		t.Skip("unexpected binary on PATH")
	}
	_, _, err := compile(t, c, "x", nil)
	if err == nil {
		t.Fatal("compile succeeded without an executable")
	}
}
