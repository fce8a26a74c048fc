package fonts

import (
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

// EmbeddedFamily is the family name of the fonts added by SearchEmbedded.
const EmbeddedFamily = "Go"

var embedded = []struct {
	name string
	data []byte
}{
	{"go-regular", goregular.TTF},
	{"go-bold", gobold.TTF},
	{"go-italic", goitalic.TTF},
	{"go-bold-italic", gobolditalic.TTF},
	{"go-mono", gomono.TTF},
}
