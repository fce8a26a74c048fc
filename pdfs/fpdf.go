package pdfs

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/zeptools/gw-typst/rw"
)

// Ensure FPDFWriter implements Writer
var _ Writer = (*FPDFWriter)(nil)

// FPDFWriter implements Writer on top of gofpdf.
type FPDFWriter struct {
	pdf       *gofpdf.Fpdf
	size      PaperSize
	utf8      map[string]struct{}
	core      bool // current font is a core font
	translate func(string) string
}

func NewFPDFWriter(size PaperSize) *FPDFWriter {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: size.Width, Ht: size.Height},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCatalogSort(true)
	pdf.SetCreator("gw-typst", true)
	pdf.SetCompression(true)
	return &FPDFWriter{
		pdf:       pdf,
		size:      size,
		utf8:      make(map[string]struct{}),
		translate: pdf.UnicodeTranslatorFromDescriptor(""),
	}
}

func (w *FPDFWriter) PaperSize() PaperSize { return w.size }

func (w *FPDFWriter) AddFont(family string, data []byte) (err error) {
	if _, ok := w.utf8[family]; ok {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdfs: font %s: %v", family, r)
		}
	}()
	w.pdf.AddUTF8FontFromBytes(family, "", data)
	if w.pdf.Err() {
		err = fmt.Errorf("pdfs: font %s: %w", family, w.pdf.Error())
		w.pdf.ClearError()
		return err
	}
	w.utf8[family] = struct{}{}
	return nil
}

func (w *FPDFWriter) HasFont(family string) bool {
	_, ok := w.utf8[family]
	return ok
}

func (w *FPDFWriter) AddPage(size PaperSize) {
	orientation := "P"
	if size.Width > size.Height {
		orientation = "L"
	}
	w.pdf.AddPageFormat(orientation, gofpdf.SizeType{Wd: size.Width, Ht: size.Height})
}

func (w *FPDFWriter) PageCount() int { return w.pdf.PageCount() }

func (w *FPDFWriter) SetFont(family string, style string, size float64) {
	if _, ok := w.utf8[family]; ok {
		w.core = false
		w.pdf.SetFont(family, "", size)
		return
	}
	w.core = true
	w.pdf.SetFont(family, style, size)
}

func (w *FPDFWriter) TextWidth(text string) float64 {
	return w.pdf.GetStringWidth(w.encode(text))
}

func (w *FPDFWriter) Text(x float64, y float64, text string) {
	w.pdf.Text(x, y, w.encode(text))
}

// core fonts only cover cp1252
func (w *FPDFWriter) encode(text string) string {
	if w.core {
		return w.translate(text)
	}
	return text
}

func (w *FPDFWriter) RegisterImage(name string, data []byte) (float64, float64, error) {
	typ, err := imageType(data)
	if err != nil {
		return 0, 0, err
	}
	info := w.pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: typ, ReadDpi: true}, bytes.NewReader(data))
	if w.pdf.Err() {
		err := fmt.Errorf("pdfs: image %s: %w", name, w.pdf.Error())
		w.pdf.ClearError()
		return 0, 0, err
	}
	if info == nil {
		return 0, 0, fmt.Errorf("pdfs: image %s: not registered", name)
	}
	return info.Width(), info.Height(), nil
}

func (w *FPDFWriter) Image(name string, x, y, width, height float64) {
	w.pdf.ImageOptions(name, x, y, width, height, false, gofpdf.ImageOptions{}, 0, "")
}

func (w *FPDFWriter) SetTitle(title string)   { w.pdf.SetTitle(title, true) }
func (w *FPDFWriter) SetAuthor(author string) { w.pdf.SetAuthor(author, true) }

func (w *FPDFWriter) SetCreationDate(t time.Time) {
	w.pdf.SetCreationDate(t)
}

func (w *FPDFWriter) Err() error {
	return w.pdf.Error()
}

func (w *FPDFWriter) WriteTo(dst io.Writer) (int64, error) {
	cw := rw.NewCountWriter(dst)
	err := w.pdf.Output(cw)
	return cw.BytesWritten(), err
}

func (w *FPDFWriter) ProduceBytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func imageType(data []byte) (string, error) {
	switch {
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return "PNG", nil
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return "JPG", nil
	case bytes.HasPrefix(data, []byte("GIF87a")), bytes.HasPrefix(data, []byte("GIF89a")):
		return "GIF", nil
	}
	return "", fmt.Errorf("pdfs: unsupported image format")
}

// IsCoreFont reports whether family is one of the PDF standard fonts.
func IsCoreFont(family string) bool {
	switch strings.ToLower(family) {
	case "helvetica", "arial", "times", "courier", "symbol", "zapfdingbats":
		return true
	}
	return false
}
