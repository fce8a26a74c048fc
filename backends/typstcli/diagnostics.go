package typstcli

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/zeptools/gw-typst/diag"
)

// shortLine matches one diagnostic of --diagnostic-format short:
//
//	<stdin>:3:2: error: unknown variable: nope
var shortLine = regexp.MustCompile(`^(.*?):(\d+):(\d+): (error|warning): (.*)$`)

// parseDiagnostics reads the typst stderr. Locations in the main source are
// mapped back to byte spans of body by dropping the prelude lines; other
// locations are kept in the message. Lines that are not diagnostics become
// hints of the previous diagnostic.
func parseDiagnostics(stderr, body string, preludeLines int) diag.List {
	var out diag.List
	sc := bufio.NewScanner(strings.NewReader(stderr))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		m := shortLine.FindStringSubmatch(line)
		if m == nil {
			hint := strings.TrimSpace(line)
			hint = strings.TrimPrefix(hint, "= ")
			if hint != "" && len(out) > 0 {
				last := &out[len(out)-1]
				last.Hints = append(last.Hints, strings.TrimPrefix(hint, "hint: "))
			}
			continue
		}
		d := diag.Diagnostic{Severity: diag.SeverityError, Message: m[5]}
		if m[4] == "warning" {
			d.Severity = diag.SeverityWarning
		}
		ln, _ := strconv.Atoi(m[2])
		col, _ := strconv.Atoi(m[3])
		if isMain(m[1]) && ln > preludeLines {
			d.Span = locate(body, ln-preludeLines, col)
		} else {
			d.Message = m[1] + ":" + m[2] + ":" + m[3] + ": " + d.Message
		}
		out = append(out, d)
	}
	return out
}

func isMain(path string) bool {
	return path == "<stdin>" || path == "-" || strings.HasSuffix(path, "/-")
}

// locate turns a 1-based line and character column into a one-character
// span of src. Out of range positions are clamped to the end of their line.
func locate(src string, line, col int) *diag.Span {
	off := 0
	for l := 1; l < line; l++ {
		i := strings.IndexByte(src[off:], '\n')
		if i < 0 {
			return diag.At(len(src), len(src))
		}
		off += i + 1
	}
	for c := 1; c < col && off < len(src) && src[off] != '\n'; c++ {
		_, size := utf8.DecodeRuneInString(src[off:])
		off += size
	}
	end := off
	if end < len(src) && src[end] != '\n' {
		_, size := utf8.DecodeRuneInString(src[end:])
		end += size
	}
	return diag.At(off, end)
}
