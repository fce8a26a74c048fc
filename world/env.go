package world

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/zeptools/gw-typst/fonts"
	"github.com/zeptools/gw-typst/scope"
	"github.com/zeptools/gw-typst/values"
)

// Ensure Environment implements World and its optional capabilities
var (
	_ World       = (*Environment)(nil)
	_ FileRooted  = (*Environment)(nil)
	_ FontSourced = (*Environment)(nil)
)

// Clock reports the current time for Today. A nil Clock keeps the fixed
// placeholder date.
type Clock func() time.Time

type Config struct {
	Body    string
	Library *scope.Library
	Catalog *fonts.Catalog
	// FilesRoot is the only directory File may read from. Empty denies all
	// file access.
	FilesRoot string
	Clock     Clock
}

// Environment is the single-use World of one compilation request.
type Environment struct {
	library  *scope.Library
	main     Source
	catalog  *fonts.Catalog
	book     *fonts.Book
	rootDir  string
	root     *os.Root
	clock    Clock
	mu       sync.Mutex
	resolved map[int]*fonts.Font
}

// New builds an environment. The caller must Close it.
func New(cfg Config) (*Environment, error) {
	env := &Environment{
		library:  cfg.Library,
		main:     Source{ID: MainID, Text: cfg.Body},
		catalog:  cfg.Catalog,
		clock:    cfg.Clock,
		resolved: make(map[int]*fonts.Font),
	}
	if env.library == nil {
		env.library = scope.NewLibrary(nil)
	}
	if cfg.Catalog != nil && cfg.Catalog.Book != nil {
		env.book = cfg.Catalog.Book
	} else {
		env.book = fonts.NewBook()
	}
	if cfg.FilesRoot != "" {
		abs, err := filepath.Abs(cfg.FilesRoot)
		if err != nil {
			return nil, fmt.Errorf("world: files root: %w", err)
		}
		root, err := os.OpenRoot(abs)
		if err != nil {
			return nil, fmt.Errorf("world: files root: %w", err)
		}
		env.rootDir = abs
		env.root = root
	}
	return env, nil
}

func (e *Environment) Close() error {
	if e.root == nil {
		return nil
	}
	return e.root.Close()
}

func (e *Environment) Library() *scope.Library { return e.library }

func (e *Environment) Main() FileID { return e.main.ID }

// Source returns the template body whatever id is asked for; includes of
// other files are not supported.
func (e *Environment) Source(_ FileID) (Source, error) {
	return e.main, nil
}

func (e *Environment) Book() *fonts.Book { return e.book }

// Font resolves slot index to its bytes. Each slot is read at most once
// per environment.
func (e *Environment) Font(index int) (font *fonts.Font, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if f, ok := e.resolved[index]; ok {
		return f, nil
	}
	defer func() {
		if r := recover(); r != nil {
			font, err = nil, fmt.Errorf("world: font %d: %v", index, r)
		}
	}()
	f, err := e.catalog.Font(index)
	if err != nil {
		return nil, fmt.Errorf("world: font %d: %w", index, err)
	}
	e.resolved[index] = f
	return f, nil
}

// File reads id below the files root. Paths that leave the root, lexically
// or through symlinks, are denied.
func (e *Environment) File(id FileID) ([]byte, error) {
	if e.root == nil {
		return nil, fmt.Errorf("%w: %s: no files root", ErrAccessDenied, id)
	}
	rel := strings.TrimLeft(string(id), "/")
	if rel == "" {
		rel = "."
	}
	rel = filepath.FromSlash(rel)
	if !filepath.IsLocal(rel) && rel != "." {
		return nil, fmt.Errorf("%w: %s", ErrAccessDenied, id)
	}
	fi, err := e.root.Stat(rel)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case err != nil:
		return nil, fmt.Errorf("%w: %s: %w", ErrAccessDenied, id, err)
	case fi.IsDir():
		return nil, fmt.Errorf("%w: %s", ErrIsDirectory, id)
	}
	data, err := e.root.ReadFile(rel)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrAccessDenied, id, err)
	}
	return data, nil
}

// Today returns 1970-01-01 and ignores offset unless a Clock is set, in
// which case it is the clock's UTC date shifted by offset hours.
func (e *Environment) Today(offset *int64) (values.Datetime, bool) {
	if e.clock == nil {
		return values.DateFromYMD(1970, 1, 1)
	}
	now := e.clock().UTC()
	if offset != nil {
		now = now.Add(time.Duration(*offset) * time.Hour)
	}
	return values.DateFromTime(now), true
}

func (e *Environment) FileRoot() string { return e.rootDir }

func (e *Environment) FontSources() []string { return e.catalog.Paths() }

func (e *Environment) EmbeddedFonts() []int { return e.catalog.InMemoryIDs() }
