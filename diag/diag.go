package diag

import (
	"strings"
)

type Severity uint8

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Span is a byte range [Start, End) into the main source text.
type Span struct {
	Start, End int
}

// Diagnostic is one message from a compiler or exporter. Span is nil when
// the message is not tied to the main source.
type Diagnostic struct {
	Severity Severity
	Message  string
	Span     *Span
	Hints    []string
}

func Error(span *Span, msg string) Diagnostic {
	return Diagnostic{Severity: SeverityError, Message: msg, Span: span}
}

func Warning(span *Span, msg string) Diagnostic {
	return Diagnostic{Severity: SeverityWarning, Message: msg, Span: span}
}

func At(start, end int) *Span {
	return &Span{Start: start, End: end}
}

// List is a sequence of diagnostics. As an error it reports the messages
// without source context; use Format for the positioned form.
type List []Diagnostic

func (l List) Error() string {
	msgs := make([]string, 0, len(l))
	for _, d := range l {
		msgs = append(msgs, d.Message)
	}
	return strings.Join(msgs, "\n")
}

func (l List) HasErrors() bool {
	for _, d := range l {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Split separates errors from warnings, keeping order.
func (l List) Split() (errs, warnings List) {
	for _, d := range l {
		if d.Severity == SeverityError {
			errs = append(errs, d)
		} else {
			warnings = append(warnings, d)
		}
	}
	return errs, warnings
}
