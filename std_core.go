package scheme

// ---- standard built-ins ----------------------------------------------------

func registerStandardBuiltins(ip *Interpreter) {
	// equivalence
	ip.RegisterNative("eq?", params(arg("a", KAny), arg("b", KAny)), KBool,
		func(_ *Interpreter, a []Value) Value { return Bool(Eqv(a[0], a[1])) })
	ip.RegisterNative("eqv?", params(arg("a", KAny), arg("b", KAny)), KBool,
		func(_ *Interpreter, a []Value) Value { return Bool(Eqv(a[0], a[1])) })
	ip.RegisterNative("equal?", params(arg("a", KAny), arg("b", KAny)), KBool,
		func(_ *Interpreter, a []Value) Value { return Bool(Equal(a[0], a[1])) })
	setBuiltinDoc(ip, "equal?", `Structural equality.

Recurses through pairs, vectors, strings and boxes. Terminates on cyclic
structure: two nodes already under comparison are assumed equal.`)

	// equal-hash(x) -> Int
	ip.RegisterNative("equal-hash", params(arg("x", KAny)), KInteger,
		func(_ *Interpreter, a []Value) Value { return Int(int64(Hash(a[0]) >> 2)) })
	setBuiltinDoc(ip, "equal-hash", `Hash consistent with equal?: equal values hash alike, including
numbers produced by different arithmetic paths.

Returns:
  a non-negative exact integer`)

	ip.RegisterNative("not", params(arg("x", KAny)), KBool,
		func(_ *Interpreter, a []Value) Value { return Bool(!Truthy(a[0])) })
	ip.RegisterNative("void", params(rest("xs", KAny)), KAny,
		func(_ *Interpreter, _ []Value) Value { return Void })

	// ---- symbols and keywords ----

	ip.RegisterNative("symbol->string", params(arg("sym", KSymbol)), KString,
		func(_ *Interpreter, a []Value) Value { return ConstStr(a[0].Data.(*Symbol).Name) })
	ip.RegisterNative("string->symbol", params(arg("s", KString)), KSymbol,
		func(ip *Interpreter, a []Value) Value { return ip.Sym(a[0].Data.(*Text).String()) })
	ip.RegisterNative("keyword->string", params(arg("kw", KKeyword)), KString,
		func(_ *Interpreter, a []Value) Value { return Str(a[0].Data.(*Symbol).Name) })
	ip.RegisterNative("string->keyword", params(arg("s", KString)), KKeyword,
		func(ip *Interpreter, a []Value) Value { return ip.Keyword(a[0].Data.(*Text).String()) })

	// gensym(prefix?: String|Symbol) -> Symbol
	ip.RegisterNative("gensym", params(opt("prefix", KAny)), KSymbol,
		func(ip *Interpreter, a []Value) Value {
			prefix := "g"
			if len(a) > 0 {
				switch a[0].Tag {
				case VTStr:
					prefix = a[0].Data.(*Text).String()
				case VTSymbol:
					prefix = a[0].Data.(*Symbol).Name
				default:
					panic(typeMismatch("gensym", 1, KString, a[0]))
				}
			}
			return SymVal(ip.Symbols.Gensym(prefix))
		})
	setBuiltinDoc(ip, "gensym", `Return a fresh uninterned symbol.

The symbol prints like prefixN but is never eq? to any symbol read from
source, so macros can use it to introduce bindings that cannot capture
user names.`)

	// symbols(prefix?: String) -> list of symbols, sorted
	ip.RegisterNative("symbols", params(opt("prefix", KString)), KList,
		func(ip *Interpreter, a []Value) Value {
			prefix := ""
			if len(a) > 0 {
				prefix = a[0].Data.(*Text).String()
			}
			names := ip.SymbolNames(prefix)
			out := make([]Value, len(names))
			for i, n := range names {
				out[i] = ip.Sym(n)
			}
			return List(out...)
		})

	// ---- condition objects ----

	ip.RegisterNative("error-object?", params(arg("x", KAny)), KBool,
		func(_ *Interpreter, a []Value) Value { return Bool(a[0].Tag == VTCondition) })
	ip.RegisterNative("error-object-message", params(arg("c", KCondition)), KString,
		func(_ *Interpreter, a []Value) Value { return Str(a[0].Data.(*Error).Msg) })
	ip.RegisterNative("error-object-irritants", params(arg("c", KCondition)), KList,
		func(_ *Interpreter, a []Value) Value { return List(a[0].Data.(*Error).Irritants...) })
	ip.RegisterNative("condition/report-string", params(arg("c", KCondition)), KString,
		func(_ *Interpreter, a []Value) Value { return Str(a[0].Data.(*Error).Error()) })
	ip.RegisterNative("condition-kind", params(arg("c", KCondition)), KSymbol,
		func(ip *Interpreter, a []Value) Value {
			return ip.Sym(kindSymbol(a[0].Data.(*Error).Kind))
		})
	setBuiltinDoc(ip, "condition-kind", `Classify a condition.

Returns one of the symbols syntax-error, bad-special-form, type-mismatch,
unbound-variable, wrong-arity, user-condition, internal-error.`)

	// ---- environments ----

	ip.RegisterNative("interaction-environment", nil, KEnv,
		func(ip *Interpreter, _ []Value) Value { return EnvVal(ip.Global) })
	ip.RegisterNative("scheme-report-environment", params(opt("version", KAny)), KEnv,
		func(ip *Interpreter, _ []Value) Value { return EnvVal(NewEnv(ip.Core)) })
	ip.RegisterNative("null-environment", params(opt("version", KAny)), KEnv,
		func(ip *Interpreter, _ []Value) Value { return EnvVal(ip.syntaxOnly()) })
	setBuiltinDoc(ip, "null-environment", `Return a fresh environment holding only the special forms.`)
}

func kindSymbol(k DiagKind) string {
	switch k {
	case SyntaxError:
		return "syntax-error"
	case BadSpecialForm:
		return "bad-special-form"
	case TypeMismatch:
		return "type-mismatch"
	case UnboundVariable:
		return "unbound-variable"
	case WrongArity:
		return "wrong-arity"
	case UserCondition:
		return "user-condition"
	}
	return "internal-error"
}

// syntaxOnly builds an environment whose macro namespace holds Core's special
// forms and whose variable namespace is empty.
func (ip *Interpreter) syntaxOnly() *Env {
	env := NewEnv(nil)
	for s, m := range ip.Core.macros {
		if m.syntax != nil {
			env.DefineMacro(s, m)
		}
	}
	return NewEnv(env)
}
