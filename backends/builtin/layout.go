package builtin

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/zeptools/gw-typst/diag"
	"github.com/zeptools/gw-typst/fonts"
	"github.com/zeptools/gw-typst/pdfs"
	"github.com/zeptools/gw-typst/world"
)

const (
	defaultSize  = 11.0
	lineHeight   = 1.3 // of the largest size on the line
	ascent       = 0.9
	parSpacing   = 0.6
	headingAbove = 0.8
)

// style is the fully resolved text style at one point of the document.
type style struct {
	fonts    []string
	fontSpan *diag.Span
	size     float64
	weight   int
	italic   bool
}

func (s style) with(t textStyle) style {
	if t.fonts != nil {
		s.fonts, s.fontSpan = t.fonts, t.fontSpan
	}
	if t.size > 0 {
		s.size = t.size
	}
	if t.weight > 0 {
		s.weight = t.weight
	}
	if t.italic != nil {
		s.italic = *t.italic
	}
	return s
}

// fontRef names a face as registered with the writer.
type fontRef struct {
	family string
	style  string
}

type placed struct {
	x, y  float64
	text  string
	font  fontRef
	size  float64
	image string
	w, h  float64
}

type page struct {
	size  pdfs.PaperSize
	items []placed
}

type piece struct {
	text  string
	font  fontRef
	size  float64
	width float64
	space bool
	glue  bool // no break allowed before this piece
}

type layouter struct {
	ctx      context.Context
	world    world.World
	writer   pdfs.Writer
	props    pageProps
	margin   float64
	pages    []*page
	y        float64
	line     []piece
	lineW    float64
	parUsed  bool
	gap      bool // the last piece added was a space
	fonts    map[string]fontRef
	warned   map[string]bool
	warnings diag.List
	images   int
}

func newLayouter(ctx context.Context, w world.World, writer pdfs.Writer, props pageProps) *layouter {
	l := &layouter{
		ctx:    ctx,
		world:  w,
		writer: writer,
		props:  props,
		margin: props.margin,
		fonts:  make(map[string]fontRef),
		warned: make(map[string]bool),
	}
	if l.margin < 0 {
		l.margin = min(props.size.Width, props.size.Height) * 2.5 / 21
	}
	l.newPage()
	return l
}

func (l *layouter) cur() *page { return l.pages[len(l.pages)-1] }

func (l *layouter) newPage() {
	l.pages = append(l.pages, &page{size: l.props.size})
	l.y = l.margin
}

func (l *layouter) left() float64   { return l.margin }
func (l *layouter) right() float64  { return l.props.size.Width - l.margin }
func (l *layouter) bottom() float64 { return l.props.size.Height - l.margin }

func (l *layouter) warn(sp *diag.Span, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if l.warned[msg] {
		return
	}
	l.warned[msg] = true
	l.warnings = append(l.warnings, diag.Warning(sp, msg))
}

func (l *layouter) content(c *Content, st style) error {
	if err := l.ctx.Err(); err != nil {
		return err
	}
	for _, e := range c.elems {
		switch e := e.(type) {
		case textElem:
			l.text(e.text, st)
		case spaceElem:
			l.space(st)
		case linebreakElem:
			l.emitLine(st, true)
		case parbreakElem:
			l.finishPar(st)
		case pagebreakElem:
			l.finishPar(st)
			l.newPage()
			l.parUsed = false
		case strongElem:
			s := st
			s.weight = min(st.weight+300, fonts.WeightBlack)
			if err := l.content(e.body, s); err != nil {
				return err
			}
		case emphElem:
			s := st
			s.italic = !st.italic
			if err := l.content(e.body, s); err != nil {
				return err
			}
		case headingElem:
			if err := l.heading(e, st); err != nil {
				return err
			}
		case styledElem:
			if err := l.content(e.body, st.with(e.style)); err != nil {
				return err
			}
		case imageElem:
			l.finishPar(st)
			if err := l.image(e); err != nil {
				return err
			}
		}
	}
	return nil
}

func headingScale(level int) float64 {
	switch level {
	case 1:
		return 1.4
	case 2:
		return 1.2
	}
	return 1
}

func (l *layouter) heading(e headingElem, st style) error {
	l.finishPar(st)
	hs := st
	hs.weight = fonts.WeightBold
	hs.size = st.size * headingScale(e.level)
	if l.y > l.margin {
		l.y += hs.size * headingAbove
	}
	if err := l.content(e.body, hs); err != nil {
		return err
	}
	l.finishPar(hs)
	return nil
}

// text splits s at whitespace into pieces. Pieces not preceded by
// whitespace are glued to what came before.
func (l *layouter) text(s string, st style) {
	font := l.font(st)
	for s != "" {
		i := strings.IndexFunc(s, unicode.IsSpace)
		if i == 0 {
			l.space(st)
			s = strings.TrimLeftFunc(s, unicode.IsSpace)
			continue
		}
		if i < 0 {
			i = len(s)
		}
		l.word(s[:i], font, st)
		s = s[i:]
	}
}

func (l *layouter) measure(text string, font fontRef, size float64) float64 {
	l.writer.SetFont(font.family, font.style, size)
	return l.writer.TextWidth(text)
}

func (l *layouter) word(text string, font fontRef, st style) {
	p := piece{text: text, font: font, size: st.size, glue: !l.gap && len(l.line) > 0}
	p.width = l.measure(text, font, st.size)
	l.gap = false
	if l.lineW+p.width > l.right()-l.left() && len(l.line) > 0 {
		// break before the word p belongs to; a word wider than the line
		// stays where it is
		start := len(l.line)
		if p.glue {
			start = 0
			for i := len(l.line) - 1; i >= 0; i-- {
				if l.line[i].space {
					start = i + 1
					break
				}
			}
		}
		if start > 0 {
			carry := append([]piece(nil), l.line[start:]...)
			l.line = l.line[:start]
			l.emitLine(st, false)
			l.line = append(l.line, carry...)
			for _, c := range carry {
				l.lineW += c.width
			}
		}
	}
	l.line = append(l.line, p)
	l.lineW += p.width
}

func (l *layouter) space(st style) {
	if len(l.line) == 0 || l.gap {
		return
	}
	font := l.font(st)
	w := l.measure(" ", font, st.size)
	l.line = append(l.line, piece{text: " ", font: font, size: st.size, width: w, space: true})
	l.lineW += w
	l.gap = true
}

// emitLine places the pending line. An empty line is only placed for a
// forced break.
func (l *layouter) emitLine(st style, forced bool) {
	for len(l.line) > 0 && l.line[len(l.line)-1].space {
		l.line = l.line[:len(l.line)-1]
	}
	if len(l.line) == 0 && !forced {
		return
	}
	size := st.size
	if len(l.line) > 0 {
		size = 0
		for _, p := range l.line {
			size = max(size, p.size)
		}
	}
	if l.y+size*lineHeight > l.bottom() && len(l.cur().items) > 0 {
		l.newPage()
	}
	baseline := l.y + size*ascent
	x := l.left()
	for _, p := range l.line {
		if !p.space {
			l.cur().items = append(l.cur().items, placed{x: x, y: baseline, text: p.text, font: p.font, size: p.size})
		}
		x += p.width
	}
	l.y += size * lineHeight
	l.line, l.lineW, l.gap = l.line[:0], 0, false
	l.parUsed = true
}

func (l *layouter) finishPar(st style) {
	l.emitLine(st, false)
	if l.parUsed {
		l.y += st.size * parSpacing
		l.parUsed = false
	}
}

func (l *layouter) image(e imageElem) error {
	l.images++
	name := fmt.Sprintf("img%d", l.images)
	w, h, err := l.writer.RegisterImage(name, e.data)
	if err != nil {
		return errorf(e.span, "failed to decode image (%v)", err)
	}
	switch {
	case e.width > 0 && e.height > 0:
		w, h = e.width, e.height
	case e.width > 0:
		w, h = e.width, h*e.width/w
	case e.height > 0:
		w, h = w*e.height/h, e.height
	}
	if avail := l.right() - l.left(); w > avail {
		w, h = avail, h*avail/w
	}
	if l.y+h > l.bottom() && len(l.cur().items) > 0 {
		l.newPage()
	}
	l.cur().items = append(l.cur().items, placed{x: l.left(), y: l.y, image: name, w: w, h: h})
	l.y += h
	l.parUsed = true
	return nil
}

func embeddable(info fonts.Info) bool {
	return info.Format == fonts.FormatTrueType && !info.Collection
}

// font resolves the face for st: the requested families in order, then
// the embedded family, then a PDF core font.
func (l *layouter) font(st style) fontRef {
	key := fmt.Sprintf("%s|%d|%t", strings.Join(st.fonts, "\x00"), st.weight, st.italic)
	if ref, ok := l.fonts[key]; ok {
		return ref
	}
	v := fonts.Variant{Weight: st.weight, Italic: st.italic}
	ref, ok := fontRef{}, false
	for _, family := range st.fonts {
		if pdfs.IsCoreFont(family) {
			ref, ok = coreFont(family, v), true
			break
		}
		if ref, ok = l.face(family, v, st.fontSpan); ok {
			break
		}
	}
	if !ok {
		if ref, ok = l.face(fonts.EmbeddedFamily, v, nil); !ok {
			ref = coreFont("Helvetica", v)
		}
	}
	l.fonts[key] = ref
	return ref
}

func (l *layouter) face(family string, v fonts.Variant, sp *diag.Span) (fontRef, bool) {
	book := l.world.Book()
	id, ok := book.SelectFunc(family, v, embeddable)
	if !ok {
		if sp != nil {
			if book.Contains(family) {
				l.warn(sp, "font family %s has no embeddable TrueType face", family)
			} else {
				l.warn(sp, "unknown font family: %s", strings.ToLower(family))
			}
		}
		return fontRef{}, false
	}
	ref := fontRef{family: fmt.Sprintf("f%d", id)}
	if l.writer.HasFont(ref.family) {
		return ref, true
	}
	f, err := l.world.Font(id)
	if err != nil {
		l.warn(nil, "failed to load font %s: %v", family, err)
		return fontRef{}, false
	}
	if err := l.writer.AddFont(ref.family, f.Data); err != nil {
		l.warn(nil, "failed to embed font %s: %v", family, err)
		return fontRef{}, false
	}
	return ref, true
}

func coreFont(family string, v fonts.Variant) fontRef {
	var s string
	if v.Weight >= fonts.WeightSemiBold {
		s += "B"
	}
	if v.Italic {
		s += "I"
	}
	return fontRef{family: strings.ToLower(family), style: s}
}
