package compiler

import (
	"github.com/zeptools/gw-typst/fonts"
	"github.com/zeptools/gw-typst/world"
)

// Options configures a Typst. The zero value compiles with the builtin
// backend and discovers fonts on every Compile.
type Options struct {
	Backend world.Compiler
	// Catalog is a shared catalog. It wins over Registry.
	Catalog  *fonts.Catalog
	Registry *fonts.Registry
	// Discovery is used for each Compile when neither Catalog nor Registry
	// is set.
	Discovery fonts.Options
	FilesRoot string
	Clock     world.Clock
}

type OptionFn func(*Options)

func WithBackend(b world.Compiler) OptionFn {
	return func(o *Options) {
		o.Backend = b
	}
}

func WithCatalog(c *fonts.Catalog) OptionFn {
	return func(o *Options) {
		o.Catalog = c
	}
}

func WithRegistry(r *fonts.Registry) OptionFn {
	return func(o *Options) {
		o.Registry = r
	}
}

func WithDiscovery(opts fonts.Options) OptionFn {
	return func(o *Options) {
		o.Discovery = opts
	}
}

// WithFilesRoot sets the only directory templates may read files from.
func WithFilesRoot(dir string) OptionFn {
	return func(o *Options) {
		o.FilesRoot = dir
	}
}

func WithClock(c world.Clock) OptionFn {
	return func(o *Options) {
		o.Clock = c
	}
}
