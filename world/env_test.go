package world

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/zeptools/gw-typst/fonts"
	"github.com/zeptools/gw-typst/scope"
	"github.com/zeptools/gw-typst/values"
)

func newEnv(t *testing.T, cfg Config) *Environment {
	t.Helper()
	env, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = env.Close() })
	return env
}

func TestSourceAlwaysReturnsMain(t *testing.T) {
	env := newEnv(t, Config{Body: "= Hello"})
	for _, id := range []FileID{env.Main(), "/other.typ", "../../etc/passwd", ""} {
		src, err := env.Source(id)
		if err != nil {
			t.Fatalf("Source(%q) error = %v", id, err)
		}
		if src.ID != MainID || src.Text != "= Hello" {
			t.Errorf("Source(%q) = %+v", id, src)
		}
	}
}

func TestFileContainment(t *testing.T) {
	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.txt")
	if err := os.WriteFile(secret, []byte("secret"), 0o644); err != nil {
		t.Fatal(err)
	}
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "img"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "img", "logo.txt"), []byte("logo"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(secret, filepath.Join(root, "link.txt")); err != nil {
		t.Fatal(err)
	}
	env := newEnv(t, Config{FilesRoot: root})

	tests := []struct {
		id      FileID
		want    string
		wantErr error
	}{
		{id: "img/logo.txt", want: "logo"},
		{id: "/img/logo.txt", want: "logo"},
		{id: "img/../img/logo.txt", want: "logo"},
		{id: "missing.txt", wantErr: ErrNotFound},
		{id: "img", wantErr: ErrIsDirectory},
		{id: "../" + FileID(filepath.Base(outside)) + "/secret.txt", wantErr: ErrAccessDenied},
		{id: "img/../../x", wantErr: ErrAccessDenied},
		{id: "link.txt", wantErr: ErrAccessDenied},
	}
	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			got, err := env.File(tt.id)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("File() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("File() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("File() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFileWithoutRootIsDenied(t *testing.T) {
	env := newEnv(t, Config{})
	if _, err := env.File("/etc/hostname"); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("File() error = %v, want ErrAccessDenied", err)
	}
	if env.FileRoot() != "" {
		t.Errorf("FileRoot() = %q, want empty", env.FileRoot())
	}
}

func TestNewFailsOnMissingRoot(t *testing.T) {
	if _, err := New(Config{FilesRoot: filepath.Join(t.TempDir(), "nope")}); err == nil {
		t.Error("New() error = nil, want error for missing root")
	}
}

func TestTodayPlaceholder(t *testing.T) {
	env := newEnv(t, Config{})
	offset := int64(48)
	for _, off := range []*int64{nil, &offset} {
		got, ok := env.Today(off)
		if !ok {
			t.Fatal("Today() not ok")
		}
		if got.Display() != "1970-01-01" {
			t.Errorf("Today() = %s, want 1970-01-01", got.Display())
		}
	}
}

func TestTodayRealClock(t *testing.T) {
	now := time.Date(2024, 2, 28, 23, 30, 0, 0, time.UTC)
	env := newEnv(t, Config{Clock: func() time.Time { return now }})
	got, _ := env.Today(nil)
	if got.Display() != "2024-02-28" {
		t.Errorf("Today(nil) = %s", got.Display())
	}
	offset := int64(1)
	got, _ = env.Today(&offset)
	if got.Display() != "2024-02-29" {
		t.Errorf("Today(+1) = %s", got.Display())
	}
}

func TestFontResolution(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "regular.ttf")
	if err := os.WriteFile(path, goregular.TTF, 0o644); err != nil {
		t.Fatal(err)
	}
	catalog := fonts.Discover(fonts.Options{Paths: []string{dir}, IgnoreSystem: true})
	env := newEnv(t, Config{Catalog: catalog})

	if env.Book().Len() != 1 {
		t.Fatalf("Book().Len() = %d, want 1", env.Book().Len())
	}
	if diff := cmp.Diff([]string{path}, env.FontSources()); diff != "" {
		t.Errorf("FontSources() mismatch (-want +got):\n%s", diff)
	}
	f, err := env.Font(0)
	if err != nil {
		t.Fatalf("Font(0) error = %v", err)
	}
	if len(f.Data) != len(goregular.TTF) {
		t.Errorf("Font(0) returned %d bytes", len(f.Data))
	}
	if _, err := env.Font(7); err == nil {
		t.Error("Font(7) error = nil, want out of range error")
	}
}

func TestFontMissingFileIsRecoverable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "regular.ttf")
	if err := os.WriteFile(path, goregular.TTF, 0o644); err != nil {
		t.Fatal(err)
	}
	catalog := fonts.Discover(fonts.Options{Paths: []string{dir}, IgnoreSystem: true})
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	env := newEnv(t, Config{Catalog: catalog})
	if _, err := env.Font(0); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Font(0) error = %v, want not-exist", err)
	}
}

func TestLibraryIsIsolated(t *testing.T) {
	defaults := scope.New()
	defaults.Bind("pi", values.Float(3.14))
	env := newEnv(t, Config{Library: scope.NewLibrary(defaults)})
	env.Library().Global.Bind("name", values.Str("x"))
	if _, ok := defaults.Get("name"); ok {
		t.Error("binding leaked into defaults")
	}
}
