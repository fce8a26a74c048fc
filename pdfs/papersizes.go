package pdfs

import "strings"

type PaperSize struct {
	Name   string
	Width  float64 // in `pt` (1" = 72pts)
	Height float64 // in `pt`
}

var (
	LetterSize = PaperSize{Name: "Letter", Width: 612, Height: 792}          // 8.5" x 11"
	LegalSize  = PaperSize{Name: "Legal", Width: 612, Height: 1008}          // 8.5" x 14"
	A3Size     = PaperSize{Name: "A3", Width: 841.88976, Height: 1190.55118} // 297mm x 420mm
	A4Size     = PaperSize{Name: "A4", Width: 595.27559, Height: 841.88976}  // 210mm x 297mm
	A5Size     = PaperSize{Name: "A5", Width: 419.52756, Height: 595.27559}  // 148mm x 210mm
)

var paperSizes = map[string]PaperSize{
	"us-letter": LetterSize,
	"letter":    LetterSize,
	"us-legal":  LegalSize,
	"legal":     LegalSize,
	"a3":        A3Size,
	"a4":        A4Size,
	"a5":        A5Size,
}

// LookupPaperSize finds a paper by name, case-insensitively.
func LookupPaperSize(name string) (PaperSize, bool) {
	p, ok := paperSizes[strings.ToLower(name)]
	return p, ok
}

// Landscape swaps width and height.
func (p PaperSize) Landscape() PaperSize {
	return PaperSize{Name: p.Name, Width: p.Height, Height: p.Width}
}
