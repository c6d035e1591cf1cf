package scheme

import (
	"errors"
	"testing"
)

func scanAll(t *testing.T, src string) []Token {
	t.Helper()
	toks, err := NewLexer(src, NewInterner()).Scan()
	if err != nil {
		t.Fatalf("Scan(%q): %v", src, err)
	}
	return toks
}

func scanErr(t *testing.T, src string) *LexError {
	t.Helper()
	_, err := NewLexer(src, NewInterner()).Scan()
	if err == nil {
		t.Fatalf("Scan(%q): expected error", src)
	}
	var le *LexError
	if !errors.As(err, &le) {
		t.Fatalf("Scan(%q): want *LexError, got %T", src, err)
	}
	return le
}

func tokenTypes(toks []Token) []TokenType {
	out := make([]TokenType, len(toks))
	for i, tk := range toks {
		out[i] = tk.Type
	}
	return out
}

func wantTypes(t *testing.T, src string, want ...TokenType) {
	t.Helper()
	got := tokenTypes(scanAll(t, src))
	want = append(want, EOI)
	if len(got) != len(want) {
		t.Fatalf("%q: want %v, got %v", src, want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("%q: token %d: want %v, got %v", src, i, want[i], got[i])
		}
	}
}

func Test_Lexer_Punctuation(t *testing.T) {
	wantTypes(t, "( ) [ ] . #( ' ` , ,@ #;",
		LPAREN, RPAREN, LBRACK, RBRACK, DOT, VECOPEN, QUOTE, QUASIQUOTE, UNQUOTE, UNQUOTE_SPLICING, DATUM_COMMENT)
	wantTypes(t, "'(a . b)", QUOTE, LPAREN, DATUM, DOT, DATUM, RPAREN)
}

func Test_Lexer_Atoms(t *testing.T) {
	cases := []struct {
		src  string
		want string
	}{
		{"42", "42"},
		{"-17", "-17"},
		{"+5", "5"},
		{"1/2", "1/2"},
		{"4/2", "2"},
		{"3.25", "3.25"},
		{"1e3", "1000.0"},
		{"#xff", "255"},
		{"#b101", "5"},
		{"#e1.5", "3/2"},
		{"#t", "#t"},
		{"#true", "#t"},
		{"#F", "#f"},
		{"+", "+"},
		{"-", "-"},
		{"...", "..."},
		{"->x", "->x"},
		{"Hello", "hello"},
		{"|Hello World|", "|Hello World|"},
		{"name:", "name:"},
		{`"a\nb"`, `"a\nb"`},
		{`"\x41;"`, `"A"`},
		{`#\a`, `#\a`},
		{`#\space`, `#\space`},
		{`#\x41`, `#\A`},
		{`#\(`, `#\(`},
	}
	for _, c := range cases {
		toks := scanAll(t, c.src)
		if len(toks) != 2 || toks[0].Type != DATUM {
			t.Fatalf("%q: want one datum, got %v", c.src, tokenTypes(toks))
		}
		if got := WriteString(toks[0].Literal.(Value)); got != c.want {
			t.Fatalf("%q: want %s, got %s", c.src, c.want, got)
		}
	}
}

func Test_Lexer_Symbols_Are_Interned_And_Folded(t *testing.T) {
	in := NewInterner()
	toks, err := NewLexer("foo FOO |foo| Foo", in).Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	first := toks[0].Literal.(Value).Data.(*Symbol)
	for _, tk := range toks[1:4] {
		if tk.Literal.(Value).Data.(*Symbol) != first {
			t.Fatalf("%s should be the same symbol as foo", tk.Lexeme)
		}
	}
	if in.Intern("foo") != first {
		t.Fatalf("interner disagrees with lexer")
	}
}

func Test_Lexer_String_Literals_Are_Constant(t *testing.T) {
	toks := scanAll(t, `"abc"`)
	txt := toks[0].Literal.(Value).Data.(*Text)
	if !txt.IsConstant() || txt.String() != "abc" {
		t.Fatalf("want constant \"abc\", got %q constant=%v", txt.String(), txt.IsConstant())
	}
}

func Test_Lexer_Comments(t *testing.T) {
	wantTypes(t, "; line comment\n1 ; trailing\n2", DATUM, DATUM)
	wantTypes(t, "#| block #| nested |# still |# 1", DATUM)
	wantTypes(t, "#;(ignored) 1", DATUM_COMMENT, LPAREN, DATUM, RPAREN, DATUM)
}

func Test_Lexer_Counts_Comments(t *testing.T) {
	cases := []struct {
		src  string
		want int
	}{
		{`(a "; not a comment" #\;)`, 0},
		{"; one\n1 ; two\n", 2},
		{"#| outer #| inner |# |# 1", 1},
		{"#;(x) 1", 1},
	}
	for _, c := range cases {
		lx := NewLexer(c.src, NewInterner())
		if _, err := lx.Scan(); err != nil {
			t.Fatalf("Scan(%q): %v", c.src, err)
		}
		if lx.Comments != c.want {
			t.Fatalf("%q: want %d comments, got %d", c.src, c.want, lx.Comments)
		}
	}
}

func Test_Lexer_Labels(t *testing.T) {
	toks := scanAll(t, "#0=(a . #0#)")
	if toks[0].Type != LABEL_DEF || toks[0].Literal.(int) != 0 {
		t.Fatalf("want label def 0, got %v %v", toks[0].Type, toks[0].Literal)
	}
	if toks[4].Type != LABEL_REF || toks[4].Literal.(int) != 0 {
		t.Fatalf("want label ref 0, got %v %v", toks[4].Type, toks[4].Literal)
	}
	toks = scanAll(t, "#12=x")
	if toks[0].Type != LABEL_DEF || toks[0].Literal.(int) != 12 {
		t.Fatalf("want label def 12, got %v", toks[0])
	}
}

func Test_Lexer_Positions(t *testing.T) {
	toks := scanAll(t, "(a\n  bc)")
	cases := []struct {
		i, line, col, end int
	}{
		{0, 1, 0, 1}, // (
		{1, 1, 1, 2}, // a
		{2, 2, 2, 7}, // bc
		{3, 2, 4, 8}, // )
	}
	for _, c := range cases {
		tk := toks[c.i]
		if tk.Line != c.line || tk.Col != c.col || tk.End != c.end {
			t.Fatalf("token %d (%q): want %d:%d end %d, got %d:%d end %d",
				c.i, tk.Lexeme, c.line, c.col, c.end, tk.Line, tk.Col, tk.End)
		}
	}
}

func Test_Lexer_Errors(t *testing.T) {
	cases := []struct {
		src        string
		msg        string
		incomplete bool
	}{
		{`"abc`, "unterminated string literal", true},
		{`#| open`, "unterminated block comment", true},
		{`|abc`, "unterminated symbol literal", true},
		{`"\q"`, `unknown escape sequence: \q`, false},
		{`#\bogus`, "unknown character name: bogus", false},
		{`#xzz`, "invalid number format: #xzz", false},
		{`#<foo>`, "unknown # syntax: #<foo>", false},
	}
	for _, c := range cases {
		le := scanErr(t, c.src)
		if le.Msg != c.msg {
			t.Fatalf("%q: want %q, got %q", c.src, c.msg, le.Msg)
		}
		if le.Incomplete != c.incomplete {
			t.Fatalf("%q: incomplete want %v, got %v", c.src, c.incomplete, le.Incomplete)
		}
		if IsIncomplete(le) != c.incomplete {
			t.Fatalf("%q: IsIncomplete disagrees", c.src)
		}
	}
}

func Test_Lexer_Error_Position(t *testing.T) {
	le := scanErr(t, "(a\n  \"oops")
	if le.Line != 2 || le.Col != 2 {
		t.Fatalf("want 2:2, got %d:%d", le.Line, le.Col)
	}
	if le.Error() != "LEXICAL ERROR at 2:3: unterminated string literal" {
		t.Fatalf("rendering: %q", le.Error())
	}
}
