package pdfs

import (
	"io"
	"time"
)

// Writer is a minimal, stream-style, append-only PDF writer. No page navigation.
// Units are points; y grows downward from the top edge of the page.
type Writer interface {
	PaperSize() PaperSize

	// AddFont registers a UTF-8 TrueType face under family.
	AddFont(family string, data []byte) error
	HasFont(family string) bool

	AddPage(size PaperSize)
	PageCount() int

	// SetFont selects a registered family, or one of the PDF core fonts
	// (Helvetica, Times, Courier) with style "", "B", "I" or "BI".
	SetFont(family string, style string, size float64)
	TextWidth(text string) float64
	Text(x float64, y float64, text string)

	// RegisterImage decodes a PNG, JPEG or GIF and returns its natural
	// size in points.
	RegisterImage(name string, data []byte) (width, height float64, err error)
	Image(name string, x, y, width, height float64)

	SetTitle(title string)
	SetAuthor(author string)
	SetCreationDate(t time.Time)

	Err() error
	WriteTo(w io.Writer) (int64, error)
	ProduceBytes() ([]byte, error)
}
