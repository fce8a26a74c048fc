package fonts

import (
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// Options selects where discovery looks.
type Options struct {
	Paths        []string // directories or single font files, in order
	IgnoreSystem bool
	Embedded     bool // append the Go fonts compiled into the binary
}

// Searcher accumulates slots and their metadata in discovery order.
type Searcher struct {
	book  *Book
	slots []Slot
}

func NewSearcher() *Searcher {
	return &Searcher{book: NewBook()}
}

// Discover runs system discovery (unless ignored) and then each extra path
// in the given order.
func Discover(opts Options) *Catalog {
	s := NewSearcher()
	if !opts.IgnoreSystem {
		s.SearchSystem()
	}
	for _, p := range opts.Paths {
		s.SearchPath(p)
	}
	if opts.Embedded {
		s.SearchEmbedded()
	}
	return s.Catalog()
}

func (s *Searcher) Catalog() *Catalog {
	return &Catalog{Book: s.book, Slots: s.slots}
}

// SearchPath dispatches to SearchDir or SearchFile. Missing paths are
// logged and ignored.
func (s *Searcher) SearchPath(path string) {
	fi, err := os.Stat(path)
	if err != nil {
		log.Printf("[WARN][FONTS] skipping font path %q: %v", path, err)
		return
	}
	if fi.IsDir() {
		s.SearchDir(path)
		return
	}
	s.SearchFile(path)
}

func (s *Searcher) SearchSystem() {
	for _, dir := range systemDirs() {
		if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
			s.SearchDir(dir)
		}
	}
}

// SearchDir indexes every font file below dir. Candidate paths are sorted
// before indexing so slot ids do not depend on directory enumeration order.
func (s *Searcher) SearchDir(dir string) {
	var paths []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Printf("[WARN][FONTS] walking %q: %v", path, err)
			if d != nil && d.IsDir() && path != dir {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() && isFontFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	sort.Strings(paths)
	for _, p := range paths {
		s.SearchFile(p)
	}
}

// SearchFile indexes all faces of one file. Unparseable files are skipped.
func (s *Searcher) SearchFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[WARN][FONTS] reading %q: %v", path, err)
		return
	}
	s.push(path, data, false)
}

// SearchEmbedded indexes the Go font family shipped with the binary.
func (s *Searcher) SearchEmbedded() {
	for _, e := range embedded {
		s.push("embedded:"+e.name, e.data, true)
	}
}

func (s *Searcher) push(path string, data []byte, keep bool) {
	faces, err := readFaces(data)
	if err != nil {
		log.Printf("[WARN][FONTS] parsing %q: %v", path, err)
		return
	}
	for _, f := range faces {
		slot := Slot{Path: path, Index: f.index}
		if keep {
			slot.data = data
		}
		s.book.Push(f.info)
		s.slots = append(s.slots, slot)
	}
}

func isFontFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ttf", ".otf", ".ttc", ".otc":
		return true
	}
	return false
}

func systemDirs() []string {
	home, _ := os.UserHomeDir()
	var dirs []string
	switch runtime.GOOS {
	case "darwin":
		dirs = []string{"/Library/Fonts", "/Network/Library/Fonts", "/System/Library/Fonts"}
		if home != "" {
			dirs = append(dirs, filepath.Join(home, "Library", "Fonts"))
		}
	case "windows":
		windir := os.Getenv("WINDIR")
		if windir == "" {
			windir = `C:\Windows`
		}
		dirs = []string{filepath.Join(windir, "Fonts")}
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			dirs = append(dirs, filepath.Join(local, "Microsoft", "Windows", "Fonts"))
		}
	default:
		dirs = []string{"/usr/share/fonts", "/usr/local/share/fonts"}
		if home != "" {
			dirs = append(dirs,
				filepath.Join(home, ".local", "share", "fonts"),
				filepath.Join(home, ".fonts"),
			)
		}
	}
	return dirs
}
