// errors.go: the condition taxonomy and caret-snippet rendering.
//
// What this file does
// -------------------
// Every language-level failure is an *Error. The Kind field classifies it:
//
//	SyntaxError      reader-level failure surfaced at run time (read, string->datum)
//	BadSpecialForm   malformed special form or macro use
//	TypeMismatch     an argument of the wrong kind
//	UnboundVariable  reference to an undefined name
//	WrongArity       wrong number of arguments
//	UserCondition    (raise obj) or (error msg irritant...)
//	InternalError    a host panic caught at the machine boundary
//
// Inside the machine, natives and the compiler signal failures by panicking an
// *Error (see the fail helpers below). The machine recovers the panic and
// raises it, so Scheme handlers installed by with-exception-handler observe
// the same failures host code does.
//
// For the host, `WrapErrorWithName` turns *LexError, *ParseError and *Error
// into Python-style snippets with a caret under the offending column:
//
//	TYPE MISMATCH in <main> at 3:5: car: argument 1: expected pair, got 5
//
//	   2 | (define x 5)
//	   3 | (car x)
//	     |     ^
//
// The wrapped error still unwraps to the original value (errors.As works).
//
// Dependencies (other files)
// --------------------------
//   - lexer.go / parser.go: *LexError and *ParseError (0-based Col).
//   - printer.go: WriteString for irritants and payloads.
//   - types.go: Kind names for TypeMismatch messages.
package scheme

import (
	"errors"
	"fmt"
	"strings"
)

/* ===========================
   PUBLIC API
   =========================== */

// DiagKind classifies an *Error.
type DiagKind int

const (
	SyntaxError DiagKind = iota + 1
	BadSpecialForm
	TypeMismatch
	UnboundVariable
	WrongArity
	UserCondition
	InternalError
)

var diagNames = map[DiagKind]string{
	SyntaxError:     "syntax error",
	BadSpecialForm:  "bad special form",
	TypeMismatch:    "type mismatch",
	UnboundVariable: "unbound variable",
	WrongArity:      "wrong arity",
	UserCondition:   "error",
	InternalError:   "internal error",
}

func (k DiagKind) String() string {
	if s, ok := diagNames[k]; ok {
		return s
	}
	return "error"
}

// Error is a Scheme condition. Line/Col are 1-based; zero means unknown.
//
// A condition raised with (raise obj) for a non-condition obj carries obj as
// Payload; handlers receive the payload itself. All other conditions reach
// handlers as condition values (VTCondition).
type Error struct {
	Kind      DiagKind
	Who       string
	Msg       string
	Irritants []Value
	Payload   Value
	Src       *SourceRef // source the position refers to, when known
	Line      int
	Col       int

	raised bool // Payload is meaningful
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Who != "" {
		b.WriteString(e.Who)
		b.WriteString(": ")
	}
	b.WriteString(e.Msg)
	for _, x := range e.Irritants {
		b.WriteByte(' ')
		b.WriteString(WriteString(x))
	}
	return b.String()
}

// Value returns what a Scheme handler receives for this condition.
func (e *Error) Value() Value {
	if e.raised {
		return e.Payload
	}
	return Value{Tag: VTCondition, Data: e}
}

// Raised reports whether the condition wraps an arbitrary raised object.
func (e *Error) Raised() bool { return e.raised }

// NewError builds a condition of the given kind.
func NewError(kind DiagKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// ConditionOf converts a raised Scheme value into an *Error. Condition values
// are unwrapped; anything else becomes an uncaught UserCondition payload.
func ConditionOf(v Value) *Error {
	if v.Tag == VTCondition {
		return v.Data.(*Error)
	}
	return &Error{Kind: UserCondition, Msg: "uncaught raise: " + WriteString(v), Payload: v, raised: true}
}

// IsIncomplete reports whether err is a reader failure caused by input ending
// early. REPLs use it to ask for a continuation line.
func IsIncomplete(err error) bool {
	var le *LexError
	if errors.As(err, &le) {
		return le.Incomplete
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Incomplete
	}
	return false
}

// WrapErrorWithSource is WrapErrorWithName without a source name.
func WrapErrorWithSource(err error, src string) error {
	return WrapErrorWithName(err, "", src)
}

// WrapErrorWithName renders err with a caret snippet of src. An *Error that
// carries its own SourceRef (raised inside a loaded file) is rendered against
// that source instead. Errors without a known position, or of foreign types,
// are returned unchanged.
func WrapErrorWithName(err error, srcName string, src string) error {
	switch e := err.(type) {
	case *LexError:
		return &snippetError{err: e, text: prettyErrorStringLabeled(src, "LEXICAL ERROR", srcName, e.Line, e.Col+1, e.Msg)}
	case *ParseError:
		return &snippetError{err: e, text: prettyErrorStringLabeled(src, "PARSE ERROR", srcName, e.Line, e.Col+1, e.Message())}
	case *Error:
		if e.Line == 0 {
			return err
		}
		if e.Src != nil {
			srcName, src = e.Src.Name, e.Src.Src
		}
		header := strings.ToUpper(e.Kind.String())
		if e.Kind == UserCondition {
			header = "ERROR"
		}
		return &snippetError{err: e, text: prettyErrorStringLabeled(src, header, srcName, e.Line, e.Col, e.Error())}
	default:
		return err
	}
}

//// END_OF_PUBLIC

/* ===========================
   PRIVATE: constructors
   =========================== */

type snippetError struct {
	err  error
	text string
}

func (s *snippetError) Error() string { return s.text }
func (s *snippetError) Unwrap() error { return s.err }

func typeMismatch(who string, pos int, want Kind, got Value) *Error {
	return &Error{
		Kind: TypeMismatch,
		Who:  who,
		Msg:  fmt.Sprintf("argument %d: expected %s, got %s", pos, want, WriteString(got)),
	}
}

func wrongArity(who string, min, max, got int) *Error {
	var want string
	switch {
	case max < 0:
		want = fmt.Sprintf("at least %d", min)
	case min == max:
		want = fmt.Sprintf("%d", min)
	default:
		want = fmt.Sprintf("%d to %d", min, max)
	}
	if who == "" {
		who = "#<procedure>"
	}
	return &Error{Kind: WrongArity, Who: who, Msg: fmt.Sprintf("expected %s argument(s), got %d", want, got)}
}

func unboundVariable(s *Symbol) *Error {
	return &Error{Kind: UnboundVariable, Msg: "unbound variable: " + s.Name}
}

func badForm(form Value, format string, args ...interface{}) *Error {
	return &Error{Kind: BadSpecialForm, Msg: fmt.Sprintf(format, args...), Irritants: []Value{form}}
}

// fail panics a condition; the machine turns it into a raise.
func fail(kind DiagKind, format string, args ...interface{}) {
	panic(NewError(kind, format, args...))
}

// failWho is fail with the name of the failing primitive.
func failWho(who string, kind DiagKind, format string, args ...interface{}) {
	e := NewError(kind, format, args...)
	e.Who = who
	panic(e)
}

// internalError wraps a recovered host panic.
func internalError(r interface{}) *Error {
	if e, ok := r.(*Error); ok {
		return e
	}
	if err, ok := r.(error); ok {
		return &Error{Kind: InternalError, Msg: err.Error()}
	}
	return &Error{Kind: InternalError, Msg: fmt.Sprint(r)}
}

/* ===========================
   PRIVATE: rendering
   =========================== */

// prettyErrorStringLabeled builds a snippet with a header and a caret. It
// shows at most one previous and one next line. Coordinates are 1-based and
// clamped to the source.
func prettyErrorStringLabeled(src, header, name string, line, col int, msg string) string {
	lines := strings.Split(src, "\n")
	if line < 1 {
		line = 1
	}
	if col < 1 {
		col = 1
	}
	if line > len(lines) {
		line = len(lines)
	}

	var b strings.Builder
	if name != "" {
		fmt.Fprintf(&b, "%s in %s at %d:%d: %s\n\n", header, name, line, col, msg)
	} else {
		fmt.Fprintf(&b, "%s at %d:%d: %s\n\n", header, line, col, msg)
	}
	if line > 1 {
		fmt.Fprintf(&b, "%4d | %s\n", line-1, lines[line-2])
	}
	fmt.Fprintf(&b, "%4d | %s\n", line, lines[line-1])
	fmt.Fprintf(&b, "     | %s^\n", strings.Repeat(" ", col-1))
	if line < len(lines) {
		fmt.Fprintf(&b, "%4d | %s\n", line+1, lines[line])
	}
	return b.String()
}
