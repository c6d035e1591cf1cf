// parser.go: datum parser for Scheme source.
//
// OVERVIEW
// --------
// The parser consumes the token stream produced by lexer.go and builds datums
// (Values). Grammar:
//
//	datum        = simple | abbreviation | list | vector | label
//	simple       = DATUM
//	abbreviation = ("'" | "`" | "," | ",@") datum
//	list         = "(" datum* ["." datum] ")"  |  "[" datum* ["." datum] "]"
//	vector       = "#(" datum* ")"
//	label        = "#n=" datum  |  "#n#"
//
// An empty list is the Nil sentinel. `#;` discards the following datum.
//
// ERRORS
// ------
// Failures are returned as *ParseError, never panicked. A ParseError carries a
// position (token index plus line/col) and a set of messages, each with a
// rank:
//
//	SysUnexpect < UnExpect < Expect < Fail
//
// When several alternatives fail, the error from the alternative that got
// furthest wins; errors at the same position are merged. The rendered message
// leads with the highest-ranked class present.
//
// DEPENDENCIES
// ------------
//   - lexer.go (tokens, *LexError)
//   - spans.go (SpanIndex for datum positions)
package scheme

import (
	"fmt"
	"sort"
	"strings"
)

////////////////////////////////////////////////////////////////////////////////
//                                  PUBLIC API
////////////////////////////////////////////////////////////////////////////////

// MsgKind ranks parse messages by specificity.
type MsgKind int

const (
	SysUnexpect MsgKind = iota + 1 // raw unexpected input
	UnExpect                       // unexpected token
	Expect                         // labelled expectation
	Fail                           // explicit failure
)

type Message struct {
	Kind MsgKind
	Text string
}

// ParseError is a structured parse failure. Line is 1-based, Col 0-based.
type ParseError struct {
	Line       int
	Col        int
	Pos        int // token index where the failing alternative stopped
	Messages   []Message
	Incomplete bool // input ended before the datum was complete
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("PARSE ERROR at %d:%d: %s", e.Line, e.Col+1, e.Message())
}

// Message renders the messages, highest rank first.
func (e *ParseError) Message() string {
	var fails, expects, unexpected, sysUnexpected []string
	for _, m := range e.Messages {
		switch m.Kind {
		case Fail:
			fails = append(fails, m.Text)
		case Expect:
			expects = appendUnique(expects, m.Text)
		case UnExpect:
			unexpected = appendUnique(unexpected, m.Text)
		case SysUnexpect:
			sysUnexpected = appendUnique(sysUnexpected, m.Text)
		}
	}
	var parts []string
	if len(fails) > 0 {
		parts = append(parts, strings.Join(fails, "; "))
	}
	if len(expects) > 0 {
		parts = append(parts, "expecting "+orList(expects))
	}
	switch {
	case len(unexpected) > 0:
		parts = append(parts, "unexpected "+unexpected[0])
	case len(sysUnexpected) > 0:
		parts = append(parts, "unexpected "+sysUnexpected[0])
	}
	if len(parts) == 0 {
		return "unknown parse error"
	}
	return strings.Join(parts, ", ")
}

// Rank returns the highest message kind present.
func (e *ParseError) Rank() MsgKind {
	r := MsgKind(0)
	for _, m := range e.Messages {
		if m.Kind > r {
			r = m.Kind
		}
	}
	return r
}

// Parse reads every datum in src, interning symbols in syms.
func Parse(src string, syms *Interner) ([]Value, error) {
	forms, _, err := ParseWithSpans(src, syms)
	return forms, err
}

// ParseWithSpans is Parse plus a SpanIndex holding the start position of
// each top-level datum and of every list read.
func ParseWithSpans(src string, syms *Interner) ([]Value, *SpanIndex, error) {
	toks, err := NewLexer(src, syms).Scan()
	if err != nil {
		return nil, nil, err
	}
	p := &parser{toks: toks, syms: syms, spans: newSpanIndex()}
	var forms []Value
	for p.peek().Type != EOI {
		start := p.peek()
		d, perr := p.datum()
		if perr != nil {
			return nil, nil, perr
		}
		if d.Tag == vtSkip {
			continue
		}
		forms = append(forms, d)
		p.spans.Top = append(p.spans.Top, Span{Line: start.Line, Col: start.Col + 1})
	}
	return forms, p.spans, nil
}

// ReadDatum parses the first datum of src and reports how many runes of src
// it spans. When src holds no datum the result is EOF.
func ReadDatum(src string, syms *Interner) (Value, int, error) {
	toks, err := NewLexer(src, syms).Scan()
	if err != nil {
		return Value{}, 0, err
	}
	p := &parser{toks: toks, syms: syms, spans: newSpanIndex()}
	for p.peek().Type != EOI {
		d, perr := p.datum()
		if perr != nil {
			return Value{}, 0, perr
		}
		if d.Tag == vtSkip {
			continue
		}
		return d, p.toks[p.i-1].End, nil
	}
	return EOF, len([]rune(src)), nil
}

//// END_OF_PUBLIC

////////////////////////////////////////////////////////////////////////////////
//                                 PRIVATE
////////////////////////////////////////////////////////////////////////////////

// Private tags used only while parsing.
const (
	vtPlaceholder ValueTag = -1 - iota // forward datum-label reference
	vtSkip                             // a #; comment at the end of a sequence
)

type labelSlot struct {
	hole  *Pair // identity of the placeholder
	value Value
	done  bool
	used  bool
}

type parser struct {
	toks   []Token
	i      int
	syms   *Interner
	labels map[int]*labelSlot
	spans  *SpanIndex
}

func (p *parser) peek() Token { return p.toks[p.i] }

func (p *parser) advance() Token {
	t := p.toks[p.i]
	if t.Type != EOI {
		p.i++
	}
	return t
}

func (p *parser) errAt(t Token, msgs ...Message) *ParseError {
	e := &ParseError{Line: t.Line, Col: t.Col, Pos: p.i, Messages: msgs}
	if t.Type == EOI {
		e.Incomplete = true
	}
	return e
}

// merge keeps the error that consumed more input, combining equal positions.
func merge(a, b *ParseError) *ParseError {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case a.Pos > b.Pos:
		return a
	case b.Pos > a.Pos:
		return b
	}
	out := *a
	out.Messages = append(append([]Message(nil), a.Messages...), b.Messages...)
	out.Incomplete = a.Incomplete || b.Incomplete
	return &out
}

func describe(t Token) Message {
	switch t.Type {
	case EOI:
		return Message{SysUnexpect, "end of input"}
	case DATUM:
		return Message{UnExpect, fmt.Sprintf("%q", t.Lexeme)}
	}
	return Message{UnExpect, t.Type.String()}
}

var closerFor = map[TokenType]TokenType{LPAREN: RPAREN, LBRACK: RBRACK, VECOPEN: RPAREN}

func (p *parser) datum() (Value, *ParseError) {
	t := p.peek()
	switch t.Type {
	case DATUM:
		p.advance()
		return t.Literal.(Value), nil
	case LPAREN, LBRACK:
		return p.list()
	case VECOPEN:
		return p.vector()
	case QUOTE, QUASIQUOTE, UNQUOTE, UNQUOTE_SPLICING:
		return p.abbreviation()
	case LABEL_DEF:
		return p.labelDef()
	case LABEL_REF:
		return p.labelRef()
	case DATUM_COMMENT:
		p.advance()
		if _, err := p.datum(); err != nil {
			return Value{}, err
		}
		switch p.peek().Type {
		case EOI, RPAREN, RBRACK:
			return Value{Tag: vtSkip}, nil
		}
		return p.datum()
	}
	return Value{}, p.errAt(t, describe(t), Message{Expect, "expression"})
}

func (p *parser) abbreviation() (Value, *ParseError) {
	t := p.advance()
	var name string
	switch t.Type {
	case QUOTE:
		name = "quote"
	case QUASIQUOTE:
		name = "quasiquote"
	case UNQUOTE:
		name = "unquote"
	default:
		name = "unquote-splicing"
	}
	d, err := p.datum()
	if err != nil {
		return Value{}, err
	}
	if d.Tag == vtSkip {
		return Value{}, p.errAt(p.peek(), describe(p.peek()), Message{Expect, "expression"})
	}
	v := List(SymVal(p.syms.Intern(name)), d)
	p.spans.record(v, t)
	return v, nil
}

// sequence reads datums up to the closer; dotted enables "." tails.
func (p *parser) sequence(closer TokenType, dotted bool) ([]Value, Value, *ParseError) {
	var items []Value
	tail := Nil
	for {
		t := p.peek()
		if t.Type == closer {
			p.advance()
			return items, tail, nil
		}
		closeErr := p.errAt(t, describe(t), Message{Expect, closer.String()})
		if dotted && t.Type == DOT && len(items) > 0 {
			p.advance()
			d, err := p.datum()
			if err != nil {
				return nil, Nil, err
			}
			if d.Tag == vtSkip {
				d, err = p.datum()
				if err != nil {
					return nil, Nil, err
				}
			}
			tail = d
			if c := p.peek(); c.Type != closer {
				return nil, Nil, p.errAt(c, describe(c), Message{Expect, closer.String()})
			}
			continue
		}
		d, err := p.datum()
		if err != nil {
			return nil, Nil, merge(err, closeErr)
		}
		if d.Tag == vtSkip {
			continue
		}
		items = append(items, d)
	}
}

func (p *parser) list() (Value, *ParseError) {
	open := p.advance()
	items, tail, err := p.sequence(closerFor[open.Type], true)
	if err != nil {
		return Value{}, err
	}
	if len(items) == 0 {
		return Nil, nil
	}
	v := ListTail(items, tail)
	p.spans.record(v, open)
	return v, nil
}

func (p *parser) vector() (Value, *ParseError) {
	p.advance()
	items, _, err := p.sequence(RPAREN, false)
	if err != nil {
		return Value{}, err
	}
	return Vec(items), nil
}

func (p *parser) labelDef() (Value, *ParseError) {
	t := p.advance()
	n := t.Literal.(int)
	if p.labels == nil {
		p.labels = map[int]*labelSlot{}
	}
	slot := &labelSlot{hole: &Pair{}}
	p.labels[n] = slot
	d, err := p.datum()
	if err != nil {
		return Value{}, err
	}
	if d.Tag == vtPlaceholder && d.Data.(*Pair) == slot.hole {
		return Value{}, p.errAt(t, Message{Fail, fmt.Sprintf("datum label #%d= refers to itself", n)})
	}
	slot.value, slot.done = d, true
	if slot.used {
		patchLabel(d, slot.hole, d, map[interface{}]bool{})
	}
	return d, nil
}

func (p *parser) labelRef() (Value, *ParseError) {
	t := p.advance()
	n := t.Literal.(int)
	slot, ok := p.labels[n]
	if !ok {
		return Value{}, p.errAt(t, Message{Fail, fmt.Sprintf("undefined datum label #%d#", n)})
	}
	if slot.done {
		return slot.value, nil
	}
	slot.used = true
	return Value{Tag: vtPlaceholder, Data: slot.hole}, nil
}

// patchLabel replaces the placeholder hole with target throughout v.
func patchLabel(v Value, hole *Pair, target Value, seen map[interface{}]bool) {
	isHole := func(x Value) bool { return x.Tag == vtPlaceholder && x.Data.(*Pair) == hole }
	for {
		switch v.Tag {
		case VTPair:
			pr := v.Data.(*Pair)
			if seen[pr] {
				return
			}
			seen[pr] = true
			if isHole(pr.Car) {
				pr.Car = target
			} else {
				patchLabel(pr.Car, hole, target, seen)
			}
			if isHole(pr.Cdr) {
				pr.Cdr = target
				return
			}
			v = pr.Cdr
			continue
		case VTVector:
			vec := v.Data.(*Vector)
			if seen[vec] {
				return
			}
			seen[vec] = true
			for i := 0; i < vec.Len(); i++ {
				if x := vec.Get(i); isHole(x) {
					vec.Set(i, target)
				} else {
					patchLabel(x, hole, target, seen)
				}
			}
		case VTBox:
			b := v.Data.(*Box)
			if seen[b] {
				return
			}
			seen[b] = true
			if isHole(b.V) {
				b.V = target
			} else {
				patchLabel(b.V, hole, target, seen)
			}
		}
		return
	}
}

func appendUnique(xs []string, s string) []string {
	for _, x := range xs {
		if x == s {
			return xs
		}
	}
	return append(xs, s)
}

func orList(xs []string) string {
	sort.Strings(xs)
	if len(xs) == 1 {
		return xs[0]
	}
	return strings.Join(xs[:len(xs)-1], ", ") + " or " + xs[len(xs)-1]
}
