package fonts

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"golang.org/x/image/font/sfnt"
)

var ErrIsDirectory = errors.New("fonts: path is a directory")

// Slot locates one face: a file plus the face index inside it. Bytes are
// only read by Load.
type Slot struct {
	Path  string
	Index int

	data []byte // set for faces compiled into the binary
}

// Font is a loaded face.
type Font struct {
	Data  []byte
	Index int
	Info  Info
}

func (s Slot) InMemory() bool { return s.data != nil }

// Load reads the slot's file now and checks that the face parses.
func (s Slot) Load() ([]byte, error) {
	if s.data != nil {
		return s.data, nil
	}
	fi, err := os.Stat(s.Path)
	if err != nil {
		return nil, fmt.Errorf("fonts: load %s: %w", s.Path, err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("fonts: load %s: %w", s.Path, ErrIsDirectory)
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("fonts: load %s: %w", s.Path, err)
	}
	c, err := sfnt.ParseCollection(data)
	if err != nil {
		return nil, fmt.Errorf("fonts: parse %s: %w", s.Path, err)
	}
	if s.Index < 0 || s.Index >= c.NumFonts() {
		return nil, fmt.Errorf("fonts: %s has no face %d", s.Path, s.Index)
	}
	if _, err := c.Font(s.Index); err != nil {
		return nil, fmt.Errorf("fonts: parse %s face %d: %w", s.Path, s.Index, err)
	}
	return data, nil
}

type face struct {
	index int
	info  Info
}

// readFaces parses the metadata of every named face in data.
func readFaces(data []byte) ([]face, error) {
	c, err := sfnt.ParseCollection(data)
	if err != nil {
		return nil, err
	}
	collection := isCollection(data)
	faces := make([]face, 0, c.NumFonts())
	var buf sfnt.Buffer
	for i := 0; i < c.NumFonts(); i++ {
		f, err := c.Font(i)
		if err != nil {
			return nil, err
		}
		family := firstName(f, &buf, sfnt.NameIDTypographicFamily, sfnt.NameIDFamily)
		if family == "" {
			continue
		}
		sub := firstName(f, &buf, sfnt.NameIDTypographicSubfamily, sfnt.NameIDSubfamily)
		faces = append(faces, face{index: i, info: Info{
			Family:     family,
			Subfamily:  sub,
			FullName:   firstName(f, &buf, sfnt.NameIDFull),
			PostScript: firstName(f, &buf, sfnt.NameIDPostScript),
			Variant:    variantFromSubfamily(sub),
			Format:     faceFormat(data, i),
			Collection: collection,
		}})
	}
	return faces, nil
}

func firstName(f *sfnt.Font, buf *sfnt.Buffer, ids ...sfnt.NameID) string {
	for _, id := range ids {
		if name, err := f.Name(buf, id); err == nil && name != "" {
			return name
		}
	}
	return ""
}

func isCollection(data []byte) bool {
	return len(data) >= 4 && string(data[:4]) == "ttcf"
}

// faceFormat inspects the sfnt version tag of face i.
func faceFormat(data []byte, i int) Format {
	off := 0
	if isCollection(data) {
		p := 12 + 4*i
		if len(data) < p+4 {
			return FormatUnknown
		}
		off = int(binary.BigEndian.Uint32(data[p:]))
	}
	if len(data) < off+4 {
		return FormatUnknown
	}
	switch string(data[off : off+4]) {
	case "\x00\x01\x00\x00", "true":
		return FormatTrueType
	case "OTTO":
		return FormatCFF
	}
	return FormatUnknown
}
