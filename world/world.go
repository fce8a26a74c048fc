package world

import (
	"context"

	"github.com/zeptools/gw-typst/diag"
	"github.com/zeptools/gw-typst/fonts"
	"github.com/zeptools/gw-typst/scope"
	"github.com/zeptools/gw-typst/values"
)

// FileID is a virtual path. Paths are slash separated and interpreted
// relative to the files root, with or without a leading slash.
type FileID string

// MainID names the in-memory template body. It never refers to a real file.
const MainID FileID = "/__main__.typ"

type Source struct {
	ID   FileID
	Text string
}

// World is everything a backend may ask of its host during one compilation.
type World interface {
	Library() *scope.Library
	Main() FileID
	Source(id FileID) (Source, error)
	Book() *fonts.Book
	Font(index int) (*fonts.Font, error)
	File(id FileID) ([]byte, error)
	Today(offset *int64) (values.Datetime, bool)
}

// FileRooted is implemented by worlds that expose a containment root for
// backends which hand file access to another process.
type FileRooted interface {
	FileRoot() string
}

// FontSourced is implemented by worlds that can name where their fonts
// came from, for backends that cannot call back into Font.
type FontSourced interface {
	FontSources() []string
	EmbeddedFonts() []int
}

// Document is a compiled, not yet exported, document. Only the backend that
// produced it knows how to export it.
type Document interface {
	Pages() int
}

type PDFOptions struct {
	// Timestamp overrides the creation date. Nil means the world's Today.
	Timestamp *values.Datetime
}

// Compiler is a typesetting backend. Failures carrying diagnostics are
// returned as diag.List; warnings are returned alongside any result.
type Compiler interface {
	Name() string
	Defaults() *scope.Scope
	Compile(ctx context.Context, w World) (Document, diag.List, error)
	ExportPDF(ctx context.Context, doc Document, opts PDFOptions) ([]byte, diag.List, error)
}
