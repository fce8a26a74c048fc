package fonts

import (
	"sort"
	"strings"
)

type Format uint8

const (
	FormatUnknown Format = iota
	FormatTrueType
	FormatCFF
)

func (f Format) String() string {
	switch f {
	case FormatTrueType:
		return "truetype"
	case FormatCFF:
		return "cff"
	}
	return "unknown"
}

const (
	WeightThin       = 100
	WeightExtraLight = 200
	WeightLight      = 300
	WeightRegular    = 400
	WeightMedium     = 500
	WeightSemiBold   = 600
	WeightBold       = 700
	WeightExtraBold  = 800
	WeightBlack      = 900
)

type Variant struct {
	Weight int
	Italic bool
}

// Info is the metadata of one font face, as read from its name table.
type Info struct {
	Family     string
	Subfamily  string
	FullName   string
	PostScript string
	Variant    Variant
	Format     Format
	Collection bool // face lives in a TTC/OTC file
}

// Book indexes font metadata. Ids are positions in the catalog's slot list.
type Book struct {
	infos    []Info
	families map[string][]int // lower-cased family -> ids
}

func NewBook() *Book {
	return &Book{families: make(map[string][]int)}
}

// Push appends info and returns its id.
func (b *Book) Push(info Info) int {
	id := len(b.infos)
	b.infos = append(b.infos, info)
	key := strings.ToLower(info.Family)
	b.families[key] = append(b.families[key], id)
	return id
}

func (b *Book) Len() int {
	if b == nil {
		return 0
	}
	return len(b.infos)
}

func (b *Book) Info(id int) (Info, bool) {
	if b == nil || id < 0 || id >= len(b.infos) {
		return Info{}, false
	}
	return b.infos[id], true
}

func (b *Book) Contains(family string) bool {
	if b == nil {
		return false
	}
	_, ok := b.families[strings.ToLower(family)]
	return ok
}

// Families lists the family names in the book, sorted case-insensitively.
func (b *Book) Families() []string {
	if b == nil {
		return nil
	}
	out := make([]string, 0, len(b.families))
	for _, ids := range b.families {
		out = append(out, b.infos[ids[0]].Family)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i]) < strings.ToLower(out[j])
	})
	return out
}

// Select finds the face of family closest to the requested variant.
func (b *Book) Select(family string, v Variant) (int, bool) {
	return b.SelectFunc(family, v, nil)
}

// SelectFunc is Select restricted to faces accepted by accept (nil accepts
// all). Matching style beats matching weight; ties go to the lower id.
func (b *Book) SelectFunc(family string, v Variant, accept func(Info) bool) (int, bool) {
	if b == nil {
		return 0, false
	}
	best, bestScore := -1, 0
	for _, id := range b.families[strings.ToLower(family)] {
		info := b.infos[id]
		if accept != nil && !accept(info) {
			continue
		}
		score := abs(info.Variant.Weight - v.Weight)
		if info.Variant.Italic != v.Italic {
			score += 10000
		}
		if best < 0 || score < bestScore {
			best, bestScore = id, score
		}
	}
	return best, best >= 0
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// variantFromSubfamily derives weight and style from a subfamily name such
// as "Bold Italic" or "SemiBold".
func variantFromSubfamily(sub string) Variant {
	s := strings.ToLower(strings.ReplaceAll(strings.ReplaceAll(sub, " ", ""), "-", ""))
	v := Variant{Weight: WeightRegular}
	v.Italic = strings.Contains(s, "italic") || strings.Contains(s, "oblique")
	// longest names first so "extrabold" is not read as "bold"
	weights := []struct {
		name   string
		weight int
	}{
		{"extralight", WeightExtraLight},
		{"ultralight", WeightExtraLight},
		{"extrabold", WeightExtraBold},
		{"ultrabold", WeightExtraBold},
		{"semibold", WeightSemiBold},
		{"demibold", WeightSemiBold},
		{"hairline", WeightThin},
		{"medium", WeightMedium},
		{"black", WeightBlack},
		{"heavy", WeightBlack},
		{"light", WeightLight},
		{"thin", WeightThin},
		{"bold", WeightBold},
	}
	for _, w := range weights {
		if strings.Contains(s, w.name) {
			v.Weight = w.weight
			break
		}
	}
	return v
}
