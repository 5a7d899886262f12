// Package diag defines the compiler's diagnostic kinds and an
// accumulating sink, modeled on the teacher's util.perror buffered error
// listener (see util/perror.go) but simplified to single-threaded use:
// every phase in this compiler runs synchronously (see SPEC_FULL.md §5),
// so there is no need for perror's channel-and-mutex plumbing.
package diag

import (
	"fmt"

	"wabbitc/internal/ast"
)

// Kind identifies which phase raised a Diagnostic and what kind of
// problem it describes.
type Kind int

const (
	LexError Kind = iota
	ParseError
	NameError
	TypeError
	ReturnError
	EmitError
)

var kindNames = [...]string{
	LexError:   "LexError",
	ParseError: "ParseError",
	NameError:  "NameError",
	TypeError:  "TypeError",
	ReturnError: "ReturnError",
	EmitError:  "EmitError",
}

// String returns the print friendly name of the Kind.
func (k Kind) String() string {
	if int(k) < 0 || int(k) >= len(kindNames) {
		return "Diagnostic"
	}
	return kindNames[k]
}

// Diagnostic is a single compile-time error report.
type Diagnostic struct {
	Kind Kind
	Pos  ast.Pos
	Path string
	Msg  string
}

// String renders the Diagnostic as `path:line:col: <Kind>: <message>`,
// per the external interface contract.
func (d Diagnostic) String() string {
	path := d.Path
	if path == "" {
		path = "<input>"
	}
	return fmt.Sprintf("%s:%d:%d: %s: %s", path, d.Pos.Line, d.Pos.Col, d.Kind, d.Msg)
}

// Sink accumulates Diagnostics across an entire compilation run. Phases
// append to it; the driver stops once any Diagnostic has been recorded.
type Sink struct {
	Path string // source path, used to format Diagnostic.String
	errs []Diagnostic
}

// NewSink creates a Sink for diagnostics from the source file at path.
func NewSink(path string) *Sink {
	return &Sink{Path: path}
}

// Add records a new Diagnostic.
func (s *Sink) Add(kind Kind, pos ast.Pos, format string, args ...interface{}) {
	s.errs = append(s.errs, Diagnostic{
		Kind: kind,
		Pos:  pos,
		Path: s.Path,
		Msg:  fmt.Sprintf(format, args...),
	})
}

// HasErrors reports whether any Diagnostic has been recorded.
func (s *Sink) HasErrors() bool {
	return len(s.errs) > 0
}

// Errors returns all recorded Diagnostics, in the order they were added.
func (s *Sink) Errors() []Diagnostic {
	return s.errs
}
