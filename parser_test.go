package scheme

import (
	"errors"
	"testing"
)

func parseOne(t *testing.T, src string) Value {
	t.Helper()
	forms, err := Parse(src, NewInterner())
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	if len(forms) != 1 {
		t.Fatalf("Parse(%q): want 1 datum, got %d", src, len(forms))
	}
	return forms[0]
}

func parseErr(t *testing.T, src string) *ParseError {
	t.Helper()
	_, err := Parse(src, NewInterner())
	if err == nil {
		t.Fatalf("Parse(%q): expected error", src)
	}
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("Parse(%q): want *ParseError, got %T: %v", src, err, err)
	}
	return pe
}

func Test_Parser_Data(t *testing.T) {
	cases := []struct {
		src, want string
	}{
		{"()", "()"},
		{"[]", "()"},
		{"(1 2 3)", "(1 2 3)"},
		{"[a b]", "(a b)"},
		{"(a [b c] d)", "(a (b c) d)"},
		{"(1 . 2)", "(1 . 2)"},
		{"(1 2 . 3)", "(1 2 . 3)"},
		{"(1 . (2 3))", "(1 2 3)"},
		{"#()", "#()"},
		{"#(1 #(2) \"s\")", `#(1 #(2) "s")`},
		{"'a", "'a"},
		{"`(a ,b ,@c)", "`(a ,b ,@c)"},
		{"(quote a b)", "(quote a b)"},
		{"(a #;(hidden) b)", "(a b)"},
		{"(a #;b)", "(a)"},
		{"(a . #;x b)", "(a . b)"},
		{"#;1 2", "2"},
		{"(#t #f #\\x \"\")", `(#t #f #\x "")`},
		{"(Mixed CASE)", "(mixed case)"},
		{"(|Mixed| CASE)", "(|Mixed| case)"},
	}
	for _, c := range cases {
		if got := WriteString(parseOne(t, c.src)); got != c.want {
			t.Fatalf("%q: want %s, got %s", c.src, c.want, got)
		}
	}
}

func Test_Parser_Multiple_Forms(t *testing.T) {
	forms, err := Parse("1 (a) ; comment\n\"x\" #;skipped", NewInterner())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(forms) != 3 {
		t.Fatalf("want 3 forms, got %d", len(forms))
	}
	forms, err = Parse("  ; nothing here\n", NewInterner())
	if err != nil || len(forms) != 0 {
		t.Fatalf("empty source: forms=%v err=%v", forms, err)
	}
}

func Test_Parser_Datum_Labels_Build_Cycles(t *testing.T) {
	v := parseOne(t, "#0=(a b . #0#)")
	p := v.Data.(*Pair)
	third := p.Cdr.Data.(*Pair).Cdr
	if third.Tag != VTPair || third.Data.(*Pair) != p {
		t.Fatalf("cdr of second pair should point back at the head")
	}
	wantWrite(t, v, "#0=(a b . #0#)")

	v = parseOne(t, "#1=(x #1#)")
	p = v.Data.(*Pair)
	if inner := p.Cdr.Data.(*Pair).Car; inner.Data.(*Pair) != p {
		t.Fatalf("car reference not patched")
	}

	v = parseOne(t, "#0=#(1 #0#)")
	vec := v.Data.(*Vector)
	if vec.Get(1).Data.(*Vector) != vec {
		t.Fatalf("vector self reference not patched")
	}
	wantWrite(t, v, "#0=#(1 #0#)")
}

func Test_Parser_Datum_Labels_Share(t *testing.T) {
	v := parseOne(t, "(#0=(x) #0#)")
	xs, _ := ListToSlice(v)
	if xs[0].Data.(*Pair) != xs[1].Data.(*Pair) {
		t.Fatalf("label reference should share structure")
	}
	wantWrite(t, v, "((x) (x))")
}

func Test_Parser_Label_Errors(t *testing.T) {
	pe := parseErr(t, "#3#")
	if pe.Message() != "undefined datum label #3#" {
		t.Fatalf("message: %q", pe.Message())
	}
	pe = parseErr(t, "#0=#0#")
	if pe.Message() != "datum label #0= refers to itself" {
		t.Fatalf("message: %q", pe.Message())
	}
}

func Test_Parser_Errors(t *testing.T) {
	cases := []struct {
		src        string
		msg        string
		incomplete bool
	}{
		{"(1 2", `expecting ")" or expression, unexpected end of input`, true},
		{"[1 2", `expecting "]" or expression, unexpected end of input`, true},
		{")", `expecting expression, unexpected ")"`, false},
		{"(a ]", `expecting ")" or expression, unexpected "]"`, false},
		{"(. a)", `expecting ")" or expression, unexpected "."`, false},
		{"(a . b c)", `expecting ")", unexpected "c"`, false},
		{"'", `expecting expression, unexpected end of input`, true},
		{"#(1 . 2)", `expecting ")" or expression, unexpected "."`, false},
	}
	for _, c := range cases {
		pe := parseErr(t, c.src)
		if pe.Message() != c.msg {
			t.Fatalf("%q: want %q, got %q", c.src, c.msg, pe.Message())
		}
		if pe.Incomplete != c.incomplete || IsIncomplete(pe) != c.incomplete {
			t.Fatalf("%q: incomplete want %v, got %v", c.src, c.incomplete, pe.Incomplete)
		}
	}
}

func Test_Parser_Error_Position(t *testing.T) {
	pe := parseErr(t, "(a\n  b")
	if pe.Line != 2 || pe.Col != 3 {
		t.Fatalf("want 2:3 (0-based col), got %d:%d", pe.Line, pe.Col)
	}
	if pe.Error() != `PARSE ERROR at 2:4: expecting ")" or expression, unexpected end of input` {
		t.Fatalf("rendering: %q", pe.Error())
	}
}

func Test_Parser_Lex_Errors_Pass_Through(t *testing.T) {
	_, err := Parse(`(a "open`, NewInterner())
	var le *LexError
	if !errors.As(err, &le) {
		t.Fatalf("want *LexError, got %T", err)
	}
	if !IsIncomplete(err) {
		t.Fatalf("unterminated string should be incomplete")
	}
}

func Test_Parser_ReadDatum_Reports_Consumed(t *testing.T) {
	syms := NewInterner()
	cases := []struct {
		src  string
		want string
		n    int
	}{
		{"(a b) rest", "(a b)", 5},
		{"  42 43", "42", 4},
		{"#;skip x y", "x", 8},
		{"; only a comment", "#<eof>", 16},
		{"", "#<eof>", 0},
	}
	for _, c := range cases {
		v, n, err := ReadDatum(c.src, syms)
		if err != nil {
			t.Fatalf("%q: %v", c.src, err)
		}
		if WriteString(v) != c.want || n != c.n {
			t.Fatalf("%q: want %s/%d, got %s/%d", c.src, c.want, c.n, WriteString(v), n)
		}
	}
}

func Test_Parser_Spans(t *testing.T) {
	forms, spans, err := ParseWithSpans("(a)\n  (b (c))\n'd", NewInterner())
	if err != nil {
		t.Fatalf("ParseWithSpans: %v", err)
	}
	want := []Span{{1, 1}, {2, 3}, {3, 1}}
	if len(spans.Top) != len(want) {
		t.Fatalf("want %d top spans, got %d", len(want), len(spans.Top))
	}
	for i, w := range want {
		if spans.Top[i] != w {
			t.Fatalf("top %d: want %v, got %v", i, w, spans.Top[i])
		}
	}
	inner := forms[1].Data.(*Pair).Cdr.Data.(*Pair).Car
	if s, ok := spans.Of(inner); !ok || s != (Span{Line: 2, Col: 6}) {
		t.Fatalf("inner list span: %v %v", s, ok)
	}
	if _, ok := spans.Of(Int(1)); ok {
		t.Fatalf("atoms have no span")
	}
}

// Printing then reading an acyclic value yields an equal value.
func Test_Parser_Printer_Roundtrip(t *testing.T) {
	syms := NewInterner()
	values := []Value{
		Int(0),
		Int(-12345),
		parseOne(t, "123456789012345678901234567890"),
		parseOne(t, "-7/9"),
		Float(2.5),
		Float(-0.125),
		Float(1e100),
		Float(3),
		True,
		False,
		Nil,
		Char('a'),
		Char(' '),
		Char('\n'),
		Char(0x3bb),
		Str(""),
		Str("tab\there \"quoted\" back\\slash\n"),
		Str("\x01 control"),
		SymVal(syms.Intern("plain")),
		SymVal(syms.Intern("With Space")),
		SymVal(syms.Intern("UPPER")),
		SymVal(syms.Intern("123")),
		SymVal(syms.Intern("")),
		SymVal(syms.Intern("end:")),
		Value{Tag: VTKeyword, Data: syms.Keyword("kw")},
		List(Int(1), List(Int(2), Str("x")), Vec([]Value{Char('c'), Nil})),
		Cons(Int(1), Int(2)),
		ListTail([]Value{SymVal(syms.Intern("a")), SymVal(syms.Intern("b"))}, Float(0.5)),
		Vec(nil),
		List(SymVal(syms.Intern("quote")), SymVal(syms.Intern("x"))),
		List(SymVal(syms.Intern("quasiquote")), List(SymVal(syms.Intern("unquote")), Int(1))),
		List(SymVal(syms.Intern("quote")), Int(1), Int(2)),
	}
	for _, v := range values {
		text := WriteString(v)
		back, err := Parse(text, syms)
		if err != nil {
			t.Fatalf("re-reading %s: %v", text, err)
		}
		if len(back) != 1 || !Equal(v, back[0]) {
			t.Fatalf("roundtrip of %s gave %v", text, back)
		}
	}
}
