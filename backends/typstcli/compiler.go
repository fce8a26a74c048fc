// Package typstcli is a typesetting backend that drives the typst
// executable. Bindings are passed as a prelude of `#let` lines in front of
// the template, fonts through TYPST_FONT_PATHS and the document date
// through SOURCE_DATE_EPOCH.
package typstcli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/zeptools/gw-typst/diag"
	"github.com/zeptools/gw-typst/scope"
	"github.com/zeptools/gw-typst/world"
)

// Ensure Compiler implements world.Compiler
var _ world.Compiler = (*Compiler)(nil)

const DefaultBinary = "typst"

type Compiler struct {
	bin      string
	defaults *scope.Scope
}

// New returns a backend running bin, or DefaultBinary when bin is empty.
func New(bin string) *Compiler {
	if bin == "" {
		bin = DefaultBinary
	}
	// typst brings its own standard library
	return &Compiler{bin: bin, defaults: scope.New()}
}

func (c *Compiler) Name() string { return "typst" }

func (c *Compiler) Defaults() *scope.Scope { return c.defaults }

// Available reports whether the executable can be found.
func (c *Compiler) Available() bool {
	_, err := exec.LookPath(c.bin)
	return err == nil
}

type Document struct {
	pdf   []byte
	pages int
	epoch int64
	world world.World
}

func (d *Document) Pages() int { return d.pages }

func (c *Compiler) Compile(ctx context.Context, w world.World) (world.Document, diag.List, error) {
	epoch := int64(0)
	if today, ok := w.Today(nil); ok {
		epoch = today.Time().Unix()
	}
	return c.run(ctx, w, epoch)
}

// ExportPDF returns the bytes produced by Compile. A timestamp other than
// the one compiled with runs the executable again.
func (c *Compiler) ExportPDF(ctx context.Context, doc world.Document, opts world.PDFOptions) ([]byte, diag.List, error) {
	d, ok := doc.(*Document)
	if !ok {
		return nil, nil, fmt.Errorf("typstcli: cannot export %T", doc)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if opts.Timestamp == nil || opts.Timestamp.Time().Unix() == d.epoch {
		return d.pdf, nil, nil
	}
	again, warnings, err := c.run(ctx, d.world, opts.Timestamp.Time().Unix())
	if err != nil {
		return nil, warnings, err
	}
	return again.(*Document).pdf, warnings, nil
}

func (c *Compiler) run(ctx context.Context, w world.World, epoch int64) (world.Document, diag.List, error) {
	src, err := w.Source(w.Main())
	if err != nil {
		return nil, nil, err
	}
	pre, preLines, warnings := prelude(w.Library().Global)

	tmp, err := os.MkdirTemp("", "gw-typst-")
	if err != nil {
		return nil, warnings, fmt.Errorf("typstcli: %w", err)
	}
	defer os.RemoveAll(tmp)

	root := ""
	if fr, ok := w.(world.FileRooted); ok {
		root = fr.FileRoot()
	}
	if root == "" {
		// an empty root denies every file read
		root = filepath.Join(tmp, "root")
		if err := os.Mkdir(root, 0o700); err != nil {
			return nil, warnings, fmt.Errorf("typstcli: %w", err)
		}
	}
	fontPaths, fontWarnings := stageFonts(w, tmp)
	warnings = append(warnings, fontWarnings...)

	cmd := exec.CommandContext(ctx, c.bin,
		"compile",
		"--format", "pdf",
		"--diagnostic-format", "short",
		"--ignore-system-fonts",
		"--root", root,
		"-", "-",
	)
	cmd.Dir = tmp
	cmd.Stdin = strings.NewReader(pre + src.Text)
	cmd.Env = append(os.Environ(),
		"TYPST_FONT_PATHS="+strings.Join(fontPaths, string(os.PathListSeparator)),
		"SOURCE_DATE_EPOCH="+strconv.FormatInt(epoch, 10),
	)
	cmd.WaitDelay = 5 * time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if err := ctx.Err(); err != nil {
		return nil, warnings, err
	}
	errs, more := parseDiagnostics(stderr.String(), src.Text, preLines).Split()
	warnings = append(warnings, more...)
	if runErr != nil {
		if len(errs) > 0 {
			return nil, warnings, errs
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return nil, warnings, fmt.Errorf("typstcli: %s: %s", runErr, strings.TrimSpace(stderr.String()))
		}
		return nil, warnings, fmt.Errorf("typstcli: %w", runErr)
	}
	if !bytes.HasPrefix(stdout.Bytes(), []byte("%PDF-")) {
		return nil, warnings, errors.New("typstcli: executable did not write a PDF")
	}
	return &Document{
		pdf:   stdout.Bytes(),
		pages: countPages(stdout.Bytes()),
		epoch: epoch,
		world: w,
	}, warnings, nil
}

// stageFonts lists the font files of the world's catalog. Faces held in
// memory are written below dir first since typst can only read files.
func stageFonts(w world.World, dir string) ([]string, diag.List) {
	fs, ok := w.(world.FontSourced)
	if !ok {
		return nil, nil
	}
	paths := fs.FontSources()
	ids := fs.EmbeddedFonts()
	if len(ids) == 0 {
		return paths, nil
	}
	var warnings diag.List
	fontDir := filepath.Join(dir, "fonts")
	if err := os.Mkdir(fontDir, 0o700); err != nil {
		return paths, diag.List{diag.Warning(nil, "failed to stage embedded fonts: "+err.Error())}
	}
	for _, id := range ids {
		f, err := w.Font(id)
		if err != nil {
			warnings = append(warnings, diag.Warning(nil, fmt.Sprintf("failed to load font %d: %v", id, err)))
			continue
		}
		name := fmt.Sprintf("embedded-%d.ttf", id)
		if err := os.WriteFile(filepath.Join(fontDir, name), f.Data, 0o600); err != nil {
			warnings = append(warnings, diag.Warning(nil, fmt.Sprintf("failed to stage font %d: %v", id, err)))
		}
	}
	return append(paths, fontDir), warnings
}

var pageObject = regexp.MustCompile(`/Type\s*/Page\b`)

// countPages counts uncompressed page objects. Page trees inside object
// streams are not visible, so the result is at least one.
func countPages(pdf []byte) int {
	return max(1, len(pageObject.FindAllIndex(pdf, -1)))
}
