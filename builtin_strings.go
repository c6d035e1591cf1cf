package scheme

import (
	"strings"
	"unicode"
)

// ---- strings and characters --------------------------------------------

func text(v Value) *Text { return v.Data.(*Text) }

func mutableText(who string, v Value) *Text {
	t := text(v)
	if t.constant {
		failWho(who, TypeMismatch, "cannot modify a string literal: %s", WriteString(v))
	}
	return t
}

// span resolves optional [start, end) arguments at a[i], a[i+1].
func span(who string, n int, a []Value, i int) (int, int) {
	start, end := 0, n
	if len(a) > i {
		start = toIndex(a[i])
	}
	if len(a) > i+1 {
		end = toIndex(a[i+1])
	}
	if start > end || end > n {
		failWho(who, TypeMismatch, "range [%d, %d) out of bounds for length %d", start, end, n)
	}
	return start, end
}

func registerStringBuiltins(ip *Interpreter) {
	ip.RegisterNative("make-string", params(arg("k", KIndex), opt("fill", KChar)), KString,
		func(_ *Interpreter, a []Value) Value {
			fill := ' '
			if len(a) > 1 {
				fill = a[1].Data.(rune)
			}
			return Str(strings.Repeat(string(fill), toIndex(a[0])))
		})
	ip.RegisterNative("string", params(rest("chars", KChar)), KString,
		func(_ *Interpreter, a []Value) Value {
			rs := make([]rune, len(a))
			for i, c := range a {
				rs[i] = c.Data.(rune)
			}
			return Value{Tag: VTStr, Data: &Text{r: rs}}
		})
	ip.RegisterNative("string-length", params(arg("s", KString)), KIndex,
		func(_ *Interpreter, a []Value) Value { return Int(int64(text(a[0]).Len())) })
	ip.RegisterNative("string-ref", params(arg("s", KString), arg("k", KIndex)), KChar,
		func(_ *Interpreter, a []Value) Value {
			t, k := text(a[0]), toIndex(a[1])
			if k >= t.Len() {
				failWho("string-ref", TypeMismatch, "index %d out of range for string of length %d", k, t.Len())
			}
			return Char(t.r[k])
		})
	ip.RegisterNative("string-set!", params(arg("s", KString), arg("k", KIndex), arg("c", KChar)), KAny,
		func(_ *Interpreter, a []Value) Value {
			t, k := mutableText("string-set!", a[0]), toIndex(a[1])
			if k >= t.Len() {
				failWho("string-set!", TypeMismatch, "index %d out of range for string of length %d", k, t.Len())
			}
			t.r[k] = a[2].Data.(rune)
			return Void
		})
	setBuiltinDoc(ip, "string-set!", `Store c at index k of s. String literals are immutable.`)
	ip.RegisterNative("string-fill!", params(arg("s", KString), arg("c", KChar)), KAny,
		func(_ *Interpreter, a []Value) Value {
			t := mutableText("string-fill!", a[0])
			for i := range t.r {
				t.r[i] = a[1].Data.(rune)
			}
			return Void
		})
	ip.RegisterNative("substring", params(arg("s", KString), arg("start", KIndex), opt("end", KIndex)), KString,
		func(_ *Interpreter, a []Value) Value {
			t := text(a[0])
			i, j := span("substring", t.Len(), a, 1)
			return Str(string(t.r[i:j]))
		})
	ip.RegisterNative("string-copy", params(arg("s", KString), opt("start", KIndex), opt("end", KIndex)), KString,
		func(_ *Interpreter, a []Value) Value {
			t := text(a[0])
			i, j := span("string-copy", t.Len(), a, 1)
			return Str(string(t.r[i:j]))
		})
	ip.RegisterNative("string-append", params(rest("ss", KString)), KString,
		func(_ *Interpreter, a []Value) Value {
			var b strings.Builder
			for _, s := range a {
				b.WriteString(text(s).String())
			}
			return Str(b.String())
		})
	ip.RegisterNative("string->list", params(arg("s", KString)), KList,
		func(_ *Interpreter, a []Value) Value {
			t := text(a[0])
			out := make([]Value, t.Len())
			for i, r := range t.r {
				out[i] = Char(r)
			}
			return List(out...)
		})
	ip.RegisterNative("list->string", params(arg("chars", KList)), KString,
		func(_ *Interpreter, a []Value) Value {
			xs, _ := ListToSlice(a[0])
			rs := make([]rune, len(xs))
			for i, x := range xs {
				if x.Tag != VTChar {
					panic(typeMismatch("list->string", 1, KChar, x))
				}
				rs[i] = x.Data.(rune)
			}
			return Value{Tag: VTStr, Data: &Text{r: rs}}
		})
	ip.RegisterNative("string-upcase", params(arg("s", KString)), KString,
		func(_ *Interpreter, a []Value) Value { return Str(strings.ToUpper(text(a[0]).String())) })
	ip.RegisterNative("string-downcase", params(arg("s", KString)), KString,
		func(_ *Interpreter, a []Value) Value { return Str(strings.ToLower(text(a[0]).String())) })

	// string-index(s, c) -> index | #f
	ip.RegisterNative("string-index", params(arg("s", KString), arg("c", KChar)), KAny,
		func(_ *Interpreter, a []Value) Value {
			for i, r := range text(a[0]).r {
				if r == a[1].Data.(rune) {
					return Int(int64(i))
				}
			}
			return False
		})
	// string-search(pattern, s, start?) -> index | #f
	ip.RegisterNative("string-search", params(arg("pattern", KString), arg("s", KString), opt("start", KIndex)), KAny,
		func(_ *Interpreter, a []Value) Value {
			pat, t := text(a[0]).r, text(a[1]).r
			start, _ := span("string-search", len(t), a, 2)
			for i := start; i+len(pat) <= len(t); i++ {
				if string(t[i:i+len(pat)]) == string(pat) {
					return Int(int64(i))
				}
			}
			return False
		})
	setBuiltinDoc(ip, "string-search", `Find pattern in s.

Params:
  pattern: string
  s:       string
  start:   index?, where to begin (default 0)

Returns:
  the character index of the first match, or #f`)

	ip.RegisterNative("string-split", params(arg("s", KString), arg("sep", KAny)), KList,
		func(_ *Interpreter, a []Value) Value {
			var sep string
			switch a[1].Tag {
			case VTChar:
				sep = string(a[1].Data.(rune))
			case VTStr:
				sep = text(a[1]).String()
			default:
				panic(typeMismatch("string-split", 2, KString, a[1]))
			}
			parts := strings.Split(text(a[0]).String(), sep)
			out := make([]Value, len(parts))
			for i, p := range parts {
				out[i] = Str(p)
			}
			return List(out...)
		})
	ip.RegisterNative("string-join", params(arg("strings", KList), opt("sep", KString)), KString,
		func(_ *Interpreter, a []Value) Value {
			xs, _ := ListToSlice(a[0])
			parts := make([]string, len(xs))
			for i, x := range xs {
				if x.Tag != VTStr {
					panic(typeMismatch("string-join", 1, KString, x))
				}
				parts[i] = text(x).String()
			}
			sep := " "
			if len(a) > 1 {
				sep = text(a[1]).String()
			}
			return Str(strings.Join(parts, sep))
		})

	// string=? string<? ... and the -ci variants
	orders := []struct {
		suffix string
		ok     func(c int) bool
	}{
		{"=?", func(c int) bool { return c == 0 }},
		{"<?", func(c int) bool { return c < 0 }},
		{">?", func(c int) bool { return c > 0 }},
		{"<=?", func(c int) bool { return c <= 0 }},
		{">=?", func(c int) bool { return c >= 0 }},
	}
	for _, o := range orders {
		ok := o.ok
		for _, fold := range []bool{false, true} {
			fold := fold
			infix := ""
			if fold {
				infix = "-ci"
			}
			ip.RegisterNative("string"+infix+o.suffix, params(arg("a", KString), rest("ss", KString)), KBool,
				func(_ *Interpreter, a []Value) Value {
					for i := 0; i+1 < len(a); i++ {
						x, y := text(a[i]).String(), text(a[i+1]).String()
						if fold {
							x, y = strings.ToLower(x), strings.ToLower(y)
						}
						if !ok(strings.Compare(x, y)) {
							return False
						}
					}
					return True
				})
			ip.RegisterNative("char"+infix+o.suffix, params(arg("a", KChar), rest("cs", KChar)), KBool,
				func(_ *Interpreter, a []Value) Value {
					for i := 0; i+1 < len(a); i++ {
						x, y := a[i].Data.(rune), a[i+1].Data.(rune)
						if fold {
							x, y = unicode.ToLower(x), unicode.ToLower(y)
						}
						c := 0
						if x < y {
							c = -1
						} else if x > y {
							c = 1
						}
						if !ok(c) {
							return False
						}
					}
					return True
				})
		}
	}

	// ---- characters ----

	charPred := func(name string, test func(rune) bool) {
		ip.RegisterNative(name, params(arg("c", KChar)), KBool,
			func(_ *Interpreter, a []Value) Value { return Bool(test(a[0].Data.(rune))) })
	}
	charPred("char-alphabetic?", unicode.IsLetter)
	charPred("char-numeric?", unicode.IsDigit)
	charPred("char-whitespace?", unicode.IsSpace)
	charPred("char-upper-case?", unicode.IsUpper)
	charPred("char-lower-case?", unicode.IsLower)

	ip.RegisterNative("char-upcase", params(arg("c", KChar)), KChar,
		func(_ *Interpreter, a []Value) Value { return Char(unicode.ToUpper(a[0].Data.(rune))) })
	ip.RegisterNative("char-downcase", params(arg("c", KChar)), KChar,
		func(_ *Interpreter, a []Value) Value { return Char(unicode.ToLower(a[0].Data.(rune))) })
	ip.RegisterNative("char->integer", params(arg("c", KChar)), KIndex,
		func(_ *Interpreter, a []Value) Value { return Int(int64(a[0].Data.(rune))) })
	ip.RegisterNative("integer->char", params(arg("n", KIndex)), KChar,
		func(_ *Interpreter, a []Value) Value {
			n := toIndex(a[0])
			if n > unicode.MaxRune {
				failWho("integer->char", TypeMismatch, "%d is not a code point", n)
			}
			return Char(rune(n))
		})
	ip.RegisterNative("digit-value", params(arg("c", KChar)), KAny,
		func(_ *Interpreter, a []Value) Value {
			r := a[0].Data.(rune)
			if r >= '0' && r <= '9' {
				return Int(int64(r - '0'))
			}
			return False
		})
}
