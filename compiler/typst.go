// Package compiler turns a template body and its bindings into PDF bytes
// through a typesetting backend.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/zeptools/gw-typst/backends/builtin"
	"github.com/zeptools/gw-typst/diag"
	"github.com/zeptools/gw-typst/fonts"
	"github.com/zeptools/gw-typst/scope"
	"github.com/zeptools/gw-typst/values"
	"github.com/zeptools/gw-typst/world"
)

var ErrNoBody = errors.New("no body for typst compiler")

type Stage string

const (
	StageCompile Stage = "compile"
	StageExport  Stage = "export"
)

// CompileError is a failed compile or export. Message is the formatted
// diagnostics with line numbers and source lines.
type CompileError struct {
	Stage       Stage
	Message     string
	Diagnostics diag.List
}

func (e *CompileError) Error() string { return e.Message }

// Typst holds one compilation request. It is not safe for concurrent use.
type Typst struct {
	body     *string
	bindings scope.Bindings
	fonts    []string
	opts     Options
	discover func(fonts.Options) *fonts.Catalog
}

// New creates a request. A nil body is allowed and reported by Compile.
func New(body *string, fns ...OptionFn) *Typst {
	t := &Typst{body: body, discover: fonts.Discover}
	for _, fn := range fns {
		if fn != nil {
			fn(&t.opts)
		}
	}
	if t.opts.Backend == nil {
		t.opts.Backend = builtin.New()
	}
	return t
}

// JSON binds the parsed raw text under key. Text that does not parse leaves
// key unbound.
func (t *Typst) JSON(key, raw string) {
	t.bindings.JSON(key, raw)
}

// Var binds v under key. It wins over a JSON binding of the same key.
func (t *Typst) Var(key string, v values.Value) {
	t.bindings.Var(key, v)
}

// Font adds a font file or directory searched after the catalog's fonts.
func (t *Typst) Font(path string) {
	t.fonts = append(t.fonts, path)
}

func (t *Typst) Backend() world.Compiler { return t.opts.Backend }

// Compile runs the backend and exports the document to PDF.
func (t *Typst) Compile(ctx context.Context) ([]byte, error) {
	if t.body == nil {
		return nil, ErrNoBody
	}
	body := *t.body
	backend := t.opts.Backend

	lib := scope.NewLibrary(backend.Defaults())
	for _, key := range t.bindings.Apply(lib.Global) {
		log.Printf("[WARN][TYPST] binding %q skipped: malformed JSON", key)
	}
	env, err := world.New(world.Config{
		Body:      body,
		Library:   lib,
		Catalog:   t.catalog().With(t.fonts),
		FilesRoot: t.opts.FilesRoot,
		Clock:     t.opts.Clock,
	})
	if err != nil {
		return nil, fmt.Errorf("compiler: %w", err)
	}
	defer env.Close()

	doc, warnings, err := backend.Compile(ctx, env)
	logWarnings(warnings, body)
	if err != nil {
		return nil, failure(StageCompile, err, body)
	}
	out, warnings, err := backend.ExportPDF(ctx, doc, world.PDFOptions{})
	logWarnings(warnings, body)
	if err != nil {
		return nil, failure(StageExport, err, body)
	}
	return out, nil
}

func (t *Typst) catalog() *fonts.Catalog {
	switch {
	case t.opts.Catalog != nil:
		return t.opts.Catalog
	case t.opts.Registry != nil:
		return t.opts.Registry.Catalog()
	}
	return t.discover(t.opts.Discovery)
}

func failure(stage Stage, err error, body string) error {
	var list diag.List
	if errors.As(err, &list) {
		return &CompileError{Stage: stage, Message: diag.Format(list, body), Diagnostics: list}
	}
	return fmt.Errorf("compiler: %s: %w", stage, err)
}

func logWarnings(warnings diag.List, body string) {
	for _, w := range warnings {
		log.Printf("[WARN][TYPST] %s", diag.Format(diag.List{w}, body))
	}
}
