// printer.go: external representation of values.
//
// OVERVIEW
// ========
// WriteString renders a value the way `write` does (strings quoted, chars as
// #\x, symbols bar-quoted when they would not read back). DisplayString is the
// `display` variant (strings and chars raw).
//
// CYCLES
// ------
// Pairs, vectors and boxes may form cycles. The printer makes a single forward
// pass that emits pieces into a buffer while keeping the set of compound
// nodes currently being printed (the ancestors of the current position). A
// node met again while still active is emitted as a back-reference
// placeholder instead of being descended into, so printing always terminates.
//
// Label numbers are only known once every reference has been seen, so a
// second step backfills the buffer: the definition marker in front of each
// referenced node becomes "#n=" and each placeholder becomes "#n#". Markers
// of nodes never referenced render as nothing.
//
// A pair in the middle of a list is a node of its own: when it is the target
// of a reference, the list is printed in dotted form from that pair on, e.g.
//
//	(1 . #0=(2 3 . #0#))
//
// Only cycles get labels; shared but acyclic structure prints in full.
//
// DEPENDENCIES
// ------------
//   - interpreter.go (Value model)
//   - internal/numeric (number formatting)
package scheme

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/daios-ai/scheme/internal/numeric"
)

////////////////////////////////////////////////////////////////////////////////
//                                  PUBLIC API
////////////////////////////////////////////////////////////////////////////////

// WriteString renders v as `write` would.
func WriteString(v Value) string { return render(v, false) }

// DisplayString renders v as `display` would.
func DisplayString(v Value) string { return render(v, true) }

//// END_OF_PUBLIC

////////////////////////////////////////////////////////////////////////////////
//                                 PRIVATE
////////////////////////////////////////////////////////////////////////////////

type pieceKind int

const (
	pText     pieceKind = iota
	pDef                // "#n=" when referenced
	pRef                // "#n#"
	pTailDef            // " . #n=(" when referenced, else " "
	pTailStop           // ")" when referenced
)

type piece struct {
	kind pieceKind
	text string
	node interface{}
}

type printer struct {
	display bool
	out     []piece
	active  map[interface{}]bool
	refd    map[interface{}]bool
}

func render(v Value, display bool) string {
	p := &printer{display: display, active: map[interface{}]bool{}, refd: map[interface{}]bool{}}
	p.value(v)
	return p.backfill()
}

func (p *printer) text(s string) { p.out = append(p.out, piece{kind: pText, text: s}) }

func (p *printer) mark(k pieceKind, node interface{}) {
	p.out = append(p.out, piece{kind: k, node: node})
}

// enter emits a back-reference and reports false when node is on the path.
func (p *printer) enter(node interface{}) bool {
	if p.active[node] {
		p.refd[node] = true
		p.mark(pRef, node)
		return false
	}
	p.mark(pDef, node)
	p.active[node] = true
	return true
}

func (p *printer) value(v Value) {
	switch v.Tag {
	case VTPair:
		p.list(v.Data.(*Pair))
	case VTVector:
		vec := v.Data.(*Vector)
		if !p.enter(vec) {
			return
		}
		p.text("#(")
		for i := 0; i < vec.Len(); i++ {
			if i > 0 {
				p.text(" ")
			}
			p.value(vec.Get(i))
		}
		p.text(")")
		delete(p.active, vec)
	case VTBox:
		b := v.Data.(*Box)
		if !p.enter(b) {
			return
		}
		p.text("#&")
		p.value(b.V)
		delete(p.active, b)
	case VTValues:
		for i, x := range v.Data.([]Value) {
			if i > 0 {
				p.text(" ")
			}
			p.value(x)
		}
	default:
		p.text(p.atom(v))
	}
}

var abbreviations = map[string]string{
	"quote":            "'",
	"quasiquote":       "`",
	"unquote":          ",",
	"unquote-splicing": ",@",
}

func (p *printer) list(head *Pair) {
	if !p.enter(head) {
		return
	}
	if prefix, ok := abbreviation(head); ok {
		p.text(prefix)
		p.value(head.Cdr.Data.(*Pair).Car)
		delete(p.active, head)
		return
	}
	p.text("(")
	p.value(head.Car)
	chain := []*Pair{head}
	rest := head.Cdr
	for rest.Tag == VTPair {
		pr := rest.Data.(*Pair)
		if p.active[pr] {
			p.refd[pr] = true
			p.text(" . ")
			p.mark(pRef, pr)
			rest = Nil
			break
		}
		p.mark(pTailDef, pr)
		p.active[pr] = true
		chain = append(chain, pr)
		p.value(pr.Car)
		rest = pr.Cdr
	}
	if rest.Tag != VTNil {
		p.text(" . ")
		p.value(rest)
	}
	for i := len(chain) - 1; i >= 1; i-- {
		p.mark(pTailStop, chain[i])
	}
	p.text(")")
	for _, pr := range chain {
		delete(p.active, pr)
	}
}

func abbreviation(head *Pair) (string, bool) {
	if head.Car.Tag != VTSymbol || head.Cdr.Tag != VTPair {
		return "", false
	}
	prefix, ok := abbreviations[head.Car.Data.(*Symbol).Name]
	if !ok || head.Cdr.Data.(*Pair).Cdr.Tag != VTNil {
		return "", false
	}
	return prefix, true
}

func (p *printer) backfill() string {
	labels := map[interface{}]int{}
	var b strings.Builder
	for _, pc := range p.out {
		switch pc.kind {
		case pText:
			b.WriteString(pc.text)
		case pDef, pTailDef:
			if !p.refd[pc.node] {
				if pc.kind == pTailDef {
					b.WriteByte(' ')
				}
				continue
			}
			n := len(labels)
			labels[pc.node] = n
			if pc.kind == pTailDef {
				fmt.Fprintf(&b, " . #%d=(", n)
			} else {
				fmt.Fprintf(&b, "#%d=", n)
			}
		case pRef:
			fmt.Fprintf(&b, "#%d#", labels[pc.node])
		case pTailStop:
			if p.refd[pc.node] {
				b.WriteByte(')')
			}
		}
	}
	return b.String()
}

var charNames = map[rune]string{
	0:    "nul",
	'\a': "alarm",
	'\b': "backspace",
	'\t': "tab",
	'\n': "newline",
	'\v': "vtab",
	'\f': "page",
	'\r': "return",
	0x1b: "escape",
	' ':  "space",
	0x7f: "delete",
}

func (p *printer) atom(v Value) string {
	switch v.Tag {
	case VTNil:
		return "()"
	case VTBool:
		if v.Data.(bool) {
			return "#t"
		}
		return "#f"
	case VTNum:
		return v.Data.(Number).String()
	case VTChar:
		r := v.Data.(rune)
		if p.display {
			return string(r)
		}
		return writeChar(r)
	case VTStr:
		s := v.Data.(*Text).String()
		if p.display {
			return s
		}
		return writeText(s)
	case VTSymbol:
		name := v.Data.(*Symbol).Name
		if p.display {
			return name
		}
		return writeSymbol(name)
	case VTKeyword:
		return v.Data.(*Symbol).Name + ":"
	case VTPrim:
		return "#<primitive:" + v.Data.(*Primitive).Name + ">"
	case VTClosure:
		if name := v.Data.(*Closure).Name; name != "" {
			return "#<procedure:" + name + ">"
		}
		return "#<procedure>"
	case VTCont:
		return "#<continuation>"
	case VTMacro:
		return "#<macro:" + v.Data.(*Macro).Name + ">"
	case VTPromise:
		return "#<promise>"
	case VTVoid:
		return "#<void>"
	case VTEOF:
		return "#<eof>"
	case VTEnv:
		return "#<environment>"
	case VTCondition:
		e := v.Data.(*Error)
		return "#<condition:" + e.Kind.String() + " " + e.Error() + ">"
	case VTHandle:
		h := v.Data.(*Handle)
		if port, ok := h.Data.(*Port); ok {
			return "#<" + h.Kind + ":" + port.Name + ">"
		}
		return "#<" + h.Kind + ">"
	}
	return "#<unknown>"
}

func writeChar(r rune) string {
	if name, ok := charNames[r]; ok {
		return `#\` + name
	}
	if unicode.IsPrint(r) {
		return `#\` + string(r)
	}
	return `#\x` + strconv.FormatInt(int64(r), 16)
}

func writeText(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		case '\a':
			b.WriteString(`\a`)
		case '\b':
			b.WriteString(`\b`)
		case '\v':
			b.WriteString(`\v`)
		case '\f':
			b.WriteString(`\f`)
		default:
			if unicode.IsPrint(r) {
				b.WriteRune(r)
			} else {
				fmt.Fprintf(&b, `\x%x;`, r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

// writeSymbol bar-quotes names that would not read back as the same symbol.
func writeSymbol(name string) string {
	if !symbolNeedsBars(name) {
		return name
	}
	var b strings.Builder
	b.WriteByte('|')
	for _, r := range name {
		if r == '|' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('|')
	return b.String()
}

func symbolNeedsBars(name string) bool {
	if name == "" || name == "." || name[0] == '#' || name[0] == '|' {
		return true
	}
	if len(name) > 1 && strings.HasSuffix(name, ":") {
		return true
	}
	if _, ok := numeric.Parse(name); ok {
		return true
	}
	for _, r := range name {
		if isDelimiter(r) || r == '|' || unicode.IsUpper(r) || !unicode.IsPrint(r) {
			return true
		}
	}
	return false
}
