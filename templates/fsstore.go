package templates

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

// Ensure FSStore implements Store
var _ Store = (*FSStore)(nil)

// FSStore reads `<dir>/<name>.typ` on every lookup. Reads cannot leave dir.
type FSStore struct {
	dir  string
	root *os.Root
}

func NewFSStore(dir string) (*FSStore, error) {
	dir = filepath.Clean(dir)
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("templates: %w", err)
	}
	log.Printf("[INFO][TEMPLATE] serving templates from %s", dir)
	return &FSStore{dir: dir, root: root}, nil
}

func (s *FSStore) Close() error {
	return s.root.Close()
}

func (s *FSStore) Lookup(_ context.Context, name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	data, err := s.root.ReadFile(filepath.FromSlash(name) + FileSuffix)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return "", fmt.Errorf("%w: %s: %w", ErrUnreadable, name, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s is not valid UTF-8", ErrUnreadable, name)
	}
	return string(data), nil
}

// List walks the directory and returns the names of all templates, sorted.
// Hidden files and directories are skipped.
func (s *FSStore) List(ctx context.Context) ([]string, error) {
	var names []string
	err := fs.WalkDir(s.root.FS(), ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path != "." && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(path, FileSuffix) {
			return nil
		}
		names = append(names, strings.TrimSuffix(path, FileSuffix))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}
