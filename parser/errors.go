package parser

import "fmt"

// Kind separates malformed text from well-formed text that makes no sense.
type Kind int

const (
	Syntax Kind = iota
	Semantic
)

// Error is a failed parse. Line is 1-based; 0 means the error is about the
// program as a whole.
type Error struct {
	Kind Kind
	Line int
	Msg  string
	EOF  bool // hit the end of input
}

func (e *Error) Error() string {
	if e.Kind == Syntax {
		if e.EOF {
			return "Syntax error near end of file"
		}
		if e.Msg == "" {
			return fmt.Sprintf("Syntax error on line %d", e.Line)
		}
		return fmt.Sprintf("Syntax error on line %d: %s", e.Line, e.Msg)
	}
	if e.Line == 0 {
		return "Error: " + e.Msg
	}
	return fmt.Sprintf("Error on line %d: %s", e.Line, e.Msg)
}

func syntaxErr(line int, format string, args ...any) *Error {
	return &Error{Kind: Syntax, Line: line, Msg: fmt.Sprintf(format, args...)}
}

func semanticErr(line int, format string, args ...any) *Error {
	return &Error{Kind: Semantic, Line: line, Msg: fmt.Sprintf(format, args...)}
}
