// Package templates resolves template names to template bodies.
package templates

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

const FileSuffix = ".typ"

var (
	ErrNoName     = errors.New("templates: no template name")
	ErrTraversal  = errors.New("templates: name traverses the file tree")
	ErrNotFound   = errors.New("templates: not found")
	ErrUnreadable = errors.New("templates: unreadable")
)

// Store looks up template bodies by name. Names use forward slashes and
// carry no suffix.
type Store interface {
	Lookup(ctx context.Context, name string) (string, error)
	List(ctx context.Context) ([]string, error)
}

// ValidateName rejects empty names and names that could leave the store's
// namespace.
func ValidateName(name string) error {
	if name == "" {
		return ErrNoName
	}
	if strings.Contains(name, "..") || strings.ContainsRune(name, 0) || strings.HasPrefix(name, "/") ||
		!filepath.IsLocal(filepath.FromSlash(name)) {
		return ErrTraversal
	}
	return nil
}
