// lexer.go: Scheme tokenizer.
//
// Delimiters, abbreviations, strings, characters and comments are scanned by
// hand. Everything else is an *atom*: a maximal run of non-delimiter runes that
// is then classified by rule, in order:
//
//	"."                        → DOT
//	#t #true #f #false         → boolean
//	#n= / #n#                  → datum label definition / reference
//	#b #o #d #x #e #i prefixed → number (anything else with such a prefix is
//	                             "invalid number format")
//	numeric grammar            → number (internal/numeric, peg patterns)
//	name:                      → keyword
//	otherwise                  → symbol, case-folded to lowercase and interned
//
// Symbols between bars (|Hello World|) are taken verbatim.
package scheme

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/daios-ai/scheme/internal/numeric"
)

// TokenType represents the kind of token.
type TokenType int

const (
	// Special
	EOI TokenType = iota

	// Punctuation
	LPAREN           // "("
	RPAREN           // ")"
	LBRACK           // "["
	RBRACK           // "]"
	DOT              // "."
	VECOPEN          // "#("
	QUOTE            // "'"
	QUASIQUOTE       // "`"
	UNQUOTE          // ","
	UNQUOTE_SPLICING // ",@"
	DATUM_COMMENT    // "#;"

	// Atoms
	DATUM     // Literal holds the Value
	LABEL_DEF // "#n=", Literal holds n
	LABEL_REF // "#n#", Literal holds n
)

var tokenNames = [...]string{
	"end of input", "\"(\"", "\")\"", "\"[\"", "\"]\"", "\".\"", "\"#(\"", "\"'\"",
	"\"`\"", "\",\"", "\",@\"", "\"#;\"", "datum", "label", "label reference",
}

func (t TokenType) String() string { return tokenNames[t] }

// Token is a lexical token with optional literal value.
type Token struct {
	Type    TokenType
	Lexeme  string      // raw text slice
	Literal interface{} // Value for DATUM, int for labels
	Line    int         // 1-based
	Col     int         // 0-based
	End     int         // rune offset just past the token
}

// Lexer scans Scheme source into tokens, interning symbols as it goes.
type Lexer struct {
	src    []rune
	syms   *Interner
	start  int // start index of current token
	cur    int // current index
	line   int // 1-based
	col    int // 0-based column within line
	tokens []Token

	// Comments counts line, block and datum comments seen so far.
	Comments int

	tokStartLine int
	tokStartCol  int
}

// NewLexer creates a lexer whose symbols are interned in syms.
func NewLexer(src string, syms *Interner) *Lexer {
	return &Lexer{src: []rune(src), syms: syms, line: 1}
}

func (l *Lexer) isAtEnd() bool { return l.cur >= len(l.src) }

func (l *Lexer) peek() (rune, bool) {
	if l.isAtEnd() {
		return 0, false
	}
	return l.src[l.cur], true
}

func (l *Lexer) peekN(n int) (rune, bool) {
	idx := l.cur + n
	if idx >= len(l.src) {
		return 0, false
	}
	return l.src[idx], true
}

func (l *Lexer) advance() (rune, bool) {
	if l.isAtEnd() {
		return 0, false
	}
	ch := l.src[l.cur]
	l.cur++
	if ch == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
	return ch, true
}

func (l *Lexer) addToken(tt TokenType, lit interface{}) Token {
	tok := Token{
		Type:    tt,
		Lexeme:  string(l.src[l.start:l.cur]),
		Literal: lit,
		Line:    l.tokStartLine,
		Col:     l.tokStartCol,
		End:     l.cur,
	}
	l.tokens = append(l.tokens, tok)
	l.start = l.cur
	return tok
}

// skipAtmosphere drops whitespace, line comments and #| |# block comments.
func (l *Lexer) skipAtmosphere() error {
	for !l.isAtEnd() {
		ch, _ := l.peek()
		switch {
		case unicode.IsSpace(ch):
			l.advance()
		case ch == ';':
			l.Comments++
			for !l.isAtEnd() {
				if c, _ := l.peek(); c == '\n' {
					break
				}
				l.advance()
			}
		case ch == '#':
			if n, _ := l.peekN(1); n != '|' {
				return nil
			}
			line, col := l.line, l.col
			l.Comments++
			l.advance()
			l.advance()
			depth := 1
			for depth > 0 {
				c, ok := l.advance()
				if !ok {
					return &LexError{Line: line, Col: col, Msg: "unterminated block comment", Incomplete: true}
				}
				n, _ := l.peek()
				switch {
				case c == '|' && n == '#':
					l.advance()
					depth--
				case c == '#' && n == '|':
					l.advance()
					depth++
				}
			}
		default:
			return nil
		}
	}
	return nil
}

func isDelimiter(ch rune) bool {
	switch ch {
	case '(', ')', '[', ']', '"', ';', '\'', '`', ',':
		return true
	}
	return unicode.IsSpace(ch)
}

// ----- errors -----

// LexError is a hard tokenizer failure. Incomplete marks failures caused by
// input ending early (unterminated string or comment).
type LexError struct {
	Line       int
	Col        int
	Msg        string
	Incomplete bool
}

func (e *LexError) Error() string {
	return fmt.Sprintf("LEXICAL ERROR at %d:%d: %s", e.Line, e.Col+1, e.Msg)
}

func (l *Lexer) err(msg string) error {
	return &LexError{Line: l.tokStartLine, Col: l.tokStartCol, Msg: msg}
}

// ----- scanners -----

// scanString reads a string literal; the opening quote is consumed.
func (l *Lexer) scanString() (string, error) {
	var out []rune
	for {
		ch, ok := l.advance()
		if !ok {
			return "", &LexError{Line: l.tokStartLine, Col: l.tokStartCol, Msg: "unterminated string literal", Incomplete: true}
		}
		if ch == '"' {
			return string(out), nil
		}
		if ch != '\\' {
			out = append(out, ch)
			continue
		}
		esc, ok := l.advance()
		if !ok {
			return "", &LexError{Line: l.tokStartLine, Col: l.tokStartCol, Msg: "unterminated string literal", Incomplete: true}
		}
		switch esc {
		case 'a':
			out = append(out, '\a')
		case 'b':
			out = append(out, '\b')
		case 't':
			out = append(out, '\t')
		case 'n':
			out = append(out, '\n')
		case 'v':
			out = append(out, '\v')
		case 'f':
			out = append(out, '\f')
		case 'r':
			out = append(out, '\r')
		case '"':
			out = append(out, '"')
		case '\\':
			out = append(out, '\\')
		case 'x':
			var hex []rune
			for {
				c, ok := l.advance()
				if !ok {
					return "", l.err("unterminated string literal")
				}
				if c == ';' {
					break
				}
				hex = append(hex, c)
			}
			n, err := strconv.ParseUint(string(hex), 16, 32)
			if err != nil || n > unicode.MaxRune {
				return "", l.err("unknown escape sequence: \\x" + string(hex))
			}
			out = append(out, rune(n))
		default:
			return "", l.err(fmt.Sprintf("unknown escape sequence: \\%c", esc))
		}
	}
}

// scanBarSymbol reads |...|; the opening bar is consumed.
func (l *Lexer) scanBarSymbol() (string, error) {
	var out []rune
	for {
		ch, ok := l.advance()
		if !ok {
			return "", &LexError{Line: l.tokStartLine, Col: l.tokStartCol, Msg: "unterminated symbol literal", Incomplete: true}
		}
		switch ch {
		case '|':
			return string(out), nil
		case '\\':
			if c, ok := l.advance(); ok {
				out = append(out, c)
			}
		default:
			out = append(out, ch)
		}
	}
}

// scanCharacter reads the body of #\x; "#\" is consumed.
func (l *Lexer) scanCharacter() (rune, error) {
	first, ok := l.advance()
	if !ok {
		return 0, l.err("missing character after #\\")
	}
	name := []rune{first}
	for {
		ch, ok := l.peek()
		if !ok || isDelimiter(ch) {
			break
		}
		name = append(name, ch)
		l.advance()
	}
	if len(name) == 1 {
		return first, nil
	}
	lower := strings.ToLower(string(name))
	if r, ok := charByName[lower]; ok {
		return r, nil
	}
	if lower[0] == 'x' {
		if n, err := strconv.ParseUint(lower[1:], 16, 32); err == nil && n <= unicode.MaxRune {
			return rune(n), nil
		}
	}
	return 0, l.err("unknown character name: " + string(name))
}

var charByName = map[string]rune{
	"nul":       0,
	"null":      0,
	"alarm":     '\a',
	"backspace": '\b',
	"tab":       '\t',
	"newline":   '\n',
	"linefeed":  '\n',
	"vtab":      '\v',
	"page":      '\f',
	"return":    '\r',
	"esc":       0x1b,
	"escape":    0x1b,
	"space":     ' ',
	"delete":    0x7f,
	"rubout":    0x7f,
}

func (l *Lexer) scanAtomText() string {
	for {
		ch, ok := l.peek()
		if !ok || isDelimiter(ch) {
			break
		}
		l.advance()
	}
	return string(l.src[l.start:l.cur])
}

// classifyAtom turns raw atom text into a token.
func (l *Lexer) classifyAtom(text string) (Token, error) {
	if text == "." {
		return l.addToken(DOT, nil), nil
	}
	if text[0] == '#' {
		return l.classifyHash(text)
	}
	switch text[0] {
	case '+', '-', '.', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		if n, ok := numeric.Parse(text); ok {
			return l.addToken(DATUM, Num(n)), nil
		}
	}
	lower := strings.ToLower(text)
	if len(lower) > 1 && strings.HasSuffix(lower, ":") {
		kw := l.syms.Keyword(strings.TrimSuffix(lower, ":"))
		return l.addToken(DATUM, Value{Tag: VTKeyword, Data: kw}), nil
	}
	return l.addToken(DATUM, SymVal(l.syms.Intern(lower))), nil
}

func (l *Lexer) classifyHash(text string) (Token, error) {
	lower := strings.ToLower(text)
	switch lower {
	case "#t", "#true":
		return l.addToken(DATUM, True), nil
	case "#f", "#false":
		return l.addToken(DATUM, False), nil
	}
	if len(lower) >= 3 {
		body, last := lower[1:len(lower)-1], lower[len(lower)-1]
		if (last == '=' || last == '#') && isDecimal(body) {
			n, _ := strconv.Atoi(body)
			if last == '=' {
				return l.addToken(LABEL_DEF, n), nil
			}
			return l.addToken(LABEL_REF, n), nil
		}
	}
	if len(lower) >= 2 && strings.ContainsRune("bodxei", rune(lower[1])) {
		if n, ok := numeric.ParseRadix(text, 10); ok {
			return l.addToken(DATUM, Num(n)), nil
		}
		return Token{}, l.err("invalid number format: " + text)
	}
	return Token{}, l.err("unknown # syntax: " + text)
}

func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// ----- main scanner -----

func (l *Lexer) scanToken() (Token, error) {
	if err := l.skipAtmosphere(); err != nil {
		return Token{}, err
	}
	l.tokStartLine = l.line
	l.tokStartCol = l.col
	l.start = l.cur

	if l.isAtEnd() {
		return l.addToken(EOI, nil), nil
	}

	ch, _ := l.advance()
	switch ch {
	case '(':
		return l.addToken(LPAREN, nil), nil
	case ')':
		return l.addToken(RPAREN, nil), nil
	case '[':
		return l.addToken(LBRACK, nil), nil
	case ']':
		return l.addToken(RBRACK, nil), nil
	case '\'':
		return l.addToken(QUOTE, nil), nil
	case '`':
		return l.addToken(QUASIQUOTE, nil), nil
	case ',':
		if n, _ := l.peek(); n == '@' {
			l.advance()
			return l.addToken(UNQUOTE_SPLICING, nil), nil
		}
		return l.addToken(UNQUOTE, nil), nil
	case '"':
		s, err := l.scanString()
		if err != nil {
			return Token{}, err
		}
		return l.addToken(DATUM, ConstStr(s)), nil
	case '|':
		s, err := l.scanBarSymbol()
		if err != nil {
			return Token{}, err
		}
		return l.addToken(DATUM, SymVal(l.syms.Intern(s))), nil
	case '#':
		switch n, _ := l.peek(); n {
		case '(':
			l.advance()
			return l.addToken(VECOPEN, nil), nil
		case ';':
			l.advance()
			l.Comments++
			return l.addToken(DATUM_COMMENT, nil), nil
		case '\\':
			l.advance()
			r, err := l.scanCharacter()
			if err != nil {
				return Token{}, err
			}
			return l.addToken(DATUM, Char(r)), nil
		}
	}
	return l.classifyAtom(l.scanAtomText())
}

// Scan tokenizes the entire source and returns tokens (EOI included).
func (l *Lexer) Scan() ([]Token, error) {
	for {
		tok, err := l.scanToken()
		if err != nil {
			return nil, err
		}
		if tok.Type == EOI {
			return l.tokens, nil
		}
	}
}
