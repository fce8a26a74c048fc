package pdfs

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"golang.org/x/image/font/gofont/goregular"
)

func TestLookupPaperSize(t *testing.T) {
	for name, want := range map[string]PaperSize{"A4": A4Size, "us-letter": LetterSize, "a5": A5Size} {
		got, ok := LookupPaperSize(name)
		if !ok || got != want {
			t.Errorf("LookupPaperSize(%q) = %v, %v", name, got, ok)
		}
	}
	if _, ok := LookupPaperSize("b99"); ok {
		t.Error("LookupPaperSize(b99) ok, want not found")
	}
	if l := A4Size.Landscape(); l.Width != A4Size.Height {
		t.Errorf("Landscape() = %v", l)
	}
}

func TestFPDFWriterProducesPDF(t *testing.T) {
	w := NewFPDFWriter(A4Size)
	if err := w.AddFont("f0", goregular.TTF); err != nil {
		t.Fatalf("AddFont() error = %v", err)
	}
	if !w.HasFont("f0") || w.HasFont("f1") {
		t.Fatal("HasFont() mismatch")
	}
	w.SetCreationDate(time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC))
	w.SetTitle("Test")
	w.AddPage(A4Size)
	w.SetFont("f0", "", 12)
	if width := w.TextWidth("Hello"); width <= 0 {
		t.Errorf("TextWidth() = %v, want > 0", width)
	}
	w.Text(72, 72, "Hello, wörld")
	w.SetFont("Helvetica", "B", 12)
	w.Text(72, 100, "Grüße")

	var img bytes.Buffer
	m := image.NewRGBA(image.Rect(0, 0, 4, 2))
	m.Set(0, 0, color.Black)
	if err := png.Encode(&img, m); err != nil {
		t.Fatal(err)
	}
	iw, ih, err := w.RegisterImage("logo", img.Bytes())
	if err != nil {
		t.Fatalf("RegisterImage() error = %v", err)
	}
	if iw <= ih {
		t.Errorf("RegisterImage() size = %vx%v, want wider than tall", iw, ih)
	}
	w.Image("logo", 72, 120, iw, ih)

	out, err := w.ProduceBytes()
	if err != nil {
		t.Fatalf("ProduceBytes() error = %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Errorf("output starts with %q", out[:8])
	}
	if w.PageCount() != 1 {
		t.Errorf("PageCount() = %d, want 1", w.PageCount())
	}
}

func TestFPDFWriterRejectsUnknownImage(t *testing.T) {
	w := NewFPDFWriter(LetterSize)
	if _, _, err := w.RegisterImage("x", []byte("not an image")); err == nil {
		t.Error("RegisterImage() error = nil, want error")
	}
	if w.Err() != nil {
		t.Errorf("Err() = %v, want nil", w.Err())
	}
}
