package diag

import (
	"bytes"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Format joins the diagnostics into one message. A diagnostic with a span
// renders as
//
//	<message>
//	error on line <N>: <source lines>
//
// where the source lines are the full lines the span touches. They are left
// out, marker kept, when they are not valid UTF-8.
func Format(diags List, source string) string {
	var sb strings.Builder
	src := []byte(source)
	for i, d := range diags {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(d.Message)
		if d.Span == nil {
			continue
		}
		start, end := clamp(d.Span.Start, len(src)), clamp(d.Span.End, len(src))
		if end < start {
			end = start
		}
		sb.WriteString("\nerror on line ")
		sb.WriteString(strconv.Itoa(LineNumber(src, start)))
		sb.WriteString(": ")
		if snippet := lineContext(src, start, end); utf8.Valid(snippet) {
			sb.Write(snippet)
		}
	}
	return sb.String()
}

// LineNumber is one plus the number of newline bytes before offset.
func LineNumber(src []byte, offset int) int {
	return 1 + bytes.Count(src[:clamp(offset, len(src))], []byte{'\n'})
}

// lineContext widens [start, end) to whole lines, without the newlines.
func lineContext(src []byte, start, end int) []byte {
	lo := bytes.LastIndexByte(src[:start], '\n') + 1
	hi := len(src)
	if j := bytes.IndexByte(src[end:], '\n'); j >= 0 {
		hi = end + j
	}
	if end > start && src[end-1] == '\n' && end-1 >= lo {
		// a span ending on a newline does not pull in the next line
		hi = end - 1
	}
	return src[lo:hi]
}

func clamp(x, n int) int {
	if x < 0 {
		return 0
	}
	if x > n {
		return n
	}
	return x
}
