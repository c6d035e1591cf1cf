package numeric

import (
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/hucsmn/peg"
)

// Literal grammar (per radix):
//
//	integer  = [+-] digit+
//	ratio    = [+-] digit+ "/" digit+
//	decimal  = [+-] (digit+ "." digit* | "." digit+ | digit+) ([eE] [+-] digit+)?   (radix 10 only)
//
// A literal may carry prefixes #b #o #d #x (radix) and #e #i (exactness).

type grammar struct {
	integer, ratio, decimal peg.Pattern
}

var grammars = map[int]*grammar{
	2:  newGrammar(peg.R('0', '1')),
	8:  newGrammar(peg.R('0', '7')),
	10: newGrammar(peg.R('0', '9')),
	16: newGrammar(peg.R('0', '9', 'a', 'f', 'A', 'F')),
}

func newGrammar(digit peg.Pattern) *grammar {
	sign := peg.Q01(peg.S("+-"))
	digits := peg.Q1(digit)
	g := &grammar{
		integer: peg.Seq(sign, digits),
		ratio:   peg.Seq(sign, digits, peg.T("/"), digits),
	}
	g.decimal = peg.Seq(
		sign,
		peg.Check(
			func(s string) bool { return s != "." },
			peg.Alt(
				peg.Seq(peg.Q0(digit), peg.T("."), peg.Q0(digit)),
				digits)),
		peg.Q01(peg.Seq(
			peg.TI("e"),
			peg.Q01(peg.S("+-")),
			peg.Q1(peg.R('0', '9')))))
	return g
}

type literal string

func (literal) IsTerminal() bool { return true }

func captureLiteral(lit string, _ peg.Position) (peg.Capture, error) { return literal(lit), nil }

// fullMatch reports whether pat consumes all of text.
func fullMatch(pat peg.Pattern, text string) bool {
	caps, err := peg.Parse(peg.CT(captureLiteral, pat), text)
	if err != nil || len(caps) != 1 {
		return false
	}
	lit, ok := caps[0].(literal)
	return ok && string(lit) == text
}

// Parse reads a numeric literal in radix 10 unless a prefix says otherwise.
func Parse(text string) (Number, bool) { return ParseRadix(text, 10) }

// ParseRadix reads a numeric literal with a default radix. It reports false
// when text is not a number.
func ParseRadix(text string, radix int) (Number, bool) {
	exactness := byte(0)
	for len(text) >= 2 && text[0] == '#' {
		switch text[1] | 0x20 {
		case 'b':
			radix = 2
		case 'o':
			radix = 8
		case 'd':
			radix = 10
		case 'x':
			radix = 16
		case 'e', 'i':
			if exactness != 0 {
				return nil, false
			}
			exactness = text[1] | 0x20
		default:
			return nil, false
		}
		text = text[2:]
	}
	n, ok := parseBody(text, radix, exactness == 'e')
	if !ok {
		return nil, false
	}
	switch exactness {
	case 'e':
		e, err := Exact(n)
		if err != nil {
			return nil, false
		}
		return e, true
	case 'i':
		return Inexact(n), true
	}
	return n, true
}

func parseBody(text string, radix int, exact bool) (Number, bool) {
	switch strings.ToLower(text) {
	case "+inf.0":
		return Real(math.Inf(1)), true
	case "-inf.0":
		return Real(math.Inf(-1)), true
	case "+nan.0", "-nan.0":
		return Real(math.NaN()), true
	}
	g, ok := grammars[radix]
	if !ok || text == "" {
		return nil, false
	}
	switch {
	case fullMatch(g.integer, text):
		return parseInteger(text, radix)
	case fullMatch(g.ratio, text):
		i := strings.IndexByte(text, '/')
		num, ok1 := new(big.Int).SetString(strings.TrimPrefix(text[:i], "+"), radix)
		den, ok2 := new(big.Int).SetString(text[i+1:], radix)
		if !ok1 || !ok2 {
			return nil, false
		}
		n, err := FromFraction(num, den)
		return n, err == nil
	case radix == 10 && fullMatch(g.decimal, text):
		if exact {
			if q, ok := new(big.Rat).SetString(text); ok {
				return FromRat(q), true
			}
		}
		f, err := strconv.ParseFloat(text, 64)
		if err != nil && !isRangeErr(err) {
			return nil, false
		}
		return Real(f), true
	}
	return nil, false
}

// parseInteger tries the fixed-width path first and falls back to big.Int on
// overflow.
func parseInteger(text string, radix int) (Number, bool) {
	if n, err := strconv.ParseInt(text, radix, 64); err == nil {
		return FromInt64(n), true
	}
	b, ok := new(big.Int).SetString(strings.TrimPrefix(text, "+"), radix)
	if !ok {
		return nil, false
	}
	return FromBig(b), true
}

func isRangeErr(err error) bool {
	ne, ok := err.(*strconv.NumError)
	return ok && ne.Err == strconv.ErrRange
}
