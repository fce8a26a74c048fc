// Package builtin is an in-process typesetting backend for a subset of the
// Typst markup language. It parses and evaluates the template, lays it out
// on pages and exports PDF through gofpdf.
package builtin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zeptools/gw-typst/diag"
	"github.com/zeptools/gw-typst/pdfs"
	"github.com/zeptools/gw-typst/scope"
	"github.com/zeptools/gw-typst/world"
)

// Ensure Compiler implements world.Compiler
var _ world.Compiler = (*Compiler)(nil)

type Compiler struct {
	defaults *scope.Scope
}

func New() *Compiler {
	return &Compiler{defaults: library()}
}

func (c *Compiler) Name() string { return "builtin" }

// Defaults is shared by all compilations; environments copy it.
func (c *Compiler) Defaults() *scope.Scope { return c.defaults }

// Document is a laid out document waiting for export.
type Document struct {
	pages    []*page
	writer   pdfs.Writer
	title    string
	author   string
	world    world.World
	exported bool
}

func (d *Document) Pages() int { return len(d.pages) }

func (c *Compiler) Compile(ctx context.Context, w world.World) (doc world.Document, warnings diag.List, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, warnings, err = nil, nil, fmt.Errorf("builtin: internal error: %v", r)
		}
	}()
	src, err := w.Source(w.Main())
	if err != nil {
		return nil, nil, err
	}
	nodes, errs := Parse(src.Text)
	if len(errs) > 0 {
		return nil, nil, errs
	}
	vm := newVM(ctx, w)
	body, err := vm.markup(nodes)
	if err != nil {
		if d, ok := diagnostics(err); ok {
			return nil, nil, d
		}
		return nil, nil, err
	}

	writer := pdfs.NewFPDFWriter(vm.page.size)
	l := newLayouter(ctx, w, writer, vm.page)
	root := style{size: defaultSize, weight: 400}
	if err := l.content(body, root); err != nil {
		if d, ok := diagnostics(err); ok {
			return nil, l.warnings, d
		}
		return nil, l.warnings, err
	}
	l.finishPar(root)
	return &Document{
		pages:  l.pages,
		writer: writer,
		title:  vm.doc.title,
		author: vm.doc.author,
		world:  w,
	}, l.warnings, nil
}

func (c *Compiler) ExportPDF(ctx context.Context, doc world.Document, opts world.PDFOptions) (out []byte, warnings diag.List, err error) {
	d, ok := doc.(*Document)
	if !ok {
		return nil, nil, fmt.Errorf("builtin: cannot export %T", doc)
	}
	if d.exported {
		return nil, nil, errors.New("builtin: document was already exported")
	}
	d.exported = true
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			out, warnings, err = nil, nil, diag.List{diag.Error(nil, fmt.Sprintf("failed to write PDF: %v", r))}
		}
	}()

	w := d.writer
	if d.title != "" {
		w.SetTitle(d.title)
	}
	if d.author != "" {
		w.SetAuthor(d.author)
	}
	if ts := opts.Timestamp; ts != nil {
		w.SetCreationDate(ts.Time())
	} else if today, ok := d.world.Today(nil); ok {
		w.SetCreationDate(today.Time())
	} else {
		w.SetCreationDate(time.Unix(0, 0).UTC())
	}
	for _, pg := range d.pages {
		w.AddPage(pg.size)
		for _, it := range pg.items {
			if it.image != "" {
				w.Image(it.image, it.x, it.y, it.w, it.h)
				continue
			}
			w.SetFont(it.font.family, it.font.style, it.size)
			w.Text(it.x, it.y, it.text)
		}
	}
	if err := w.Err(); err != nil {
		return nil, nil, diag.List{diag.Error(nil, "failed to write PDF: "+err.Error())}
	}
	out, err = w.ProduceBytes()
	if err != nil {
		return nil, nil, diag.List{diag.Error(nil, "failed to write PDF: "+err.Error())}
	}
	return out, nil, nil
}
