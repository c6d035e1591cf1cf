package scheme

// ---- introspection built-ins ---------------------------------------------

func registerIntrospectionBuiltins(ip *Interpreter) {
	// macroexpand(form, env?) -> datum
	ip.RegisterNative("macroexpand", params(arg("form", KAny), opt("env", KEnv)), KAny,
		func(ip *Interpreter, a []Value) Value { return ip.expandArg("macroexpand", a, false) })
	setBuiltinDoc(ip, "macroexpand", `Expand every macro use in form, to a fixed point.

Quoted data is left alone; special forms are kept and their subforms
expanded. The result is a datum, not evaluated.

Params:
  form: any
  env:  environment?, whose macros apply (default: the interaction environment)`)

	// macroexpand-1(form, env?) -> datum
	ip.RegisterNative("macroexpand-1", params(arg("form", KAny), opt("env", KEnv)), KAny,
		func(ip *Interpreter, a []Value) Value { return ip.expandArg("macroexpand-1", a, true) })
	setBuiltinDoc(ip, "macroexpand-1", `Rewrite form once if its head names a macro; otherwise return it unchanged.`)

	ip.RegisterNative("dump", params(arg("x", KAny)), KString,
		func(_ *Interpreter, a []Value) Value { return Str(Dump(a[0])) })
	setBuiltinDoc(ip, "dump", `Debug rendering of x: a tree of tagged nodes, numbers annotated with
their storage class. Not meant to be read back.`)

	ip.RegisterNative("procedure-documentation", params(arg("proc", KAny)), KString,
		func(ip *Interpreter, a []Value) Value { return Str(ip.Describe(a[0])) })
	ip.RegisterNative("help", params(arg("name", KSymbol)), KString,
		func(ip *Interpreter, a []Value) Value {
			s := a[0].Data.(*Symbol)
			if m, ok := ip.Global.LookupMacro(s); ok {
				return Str(ip.Describe(Value{Tag: VTMacro, Data: m}))
			}
			v, ok := ip.Global.Lookup(s)
			if !ok {
				panic(unboundVariable(s))
			}
			return Str(ip.Describe(v))
		})
	setBuiltinDoc(ip, "help", `Describe the procedure or macro bound to name: (help 'car).`)

	// procedure-arity(proc) -> (min . max) ; max is #f when variadic
	ip.RegisterNative("procedure-arity", params(arg("proc", KProc)), KPair,
		func(_ *Interpreter, a []Value) Value {
			min, max, _ := Arity(a[0])
			hi := False
			if max >= 0 {
				hi = Int(int64(max))
			}
			return Cons(Int(int64(min)), hi)
		})
	ip.RegisterNative("procedure-name", params(arg("proc", KProc)), KAny,
		func(ip *Interpreter, a []Value) Value {
			switch a[0].Tag {
			case VTPrim:
				return ip.Sym(a[0].Data.(*Primitive).Name)
			case VTClosure:
				if n := a[0].Data.(*Closure).Name; n != "" {
					return ip.Sym(n)
				}
			}
			return False
		})

	ip.RegisterNative("environment-bound-names", params(arg("env", KEnv), opt("inherited", KBool)), KList,
		func(ip *Interpreter, a []Value) Value {
			inherited := len(a) > 1 && Truthy(a[1])
			names := EnvNames(a[0].Data.(*Env), inherited)
			out := make([]Value, len(names))
			for i, n := range names {
				out[i] = ip.Sym(n)
			}
			return List(out...)
		})
	ip.RegisterNative("environment-bound?", params(arg("env", KEnv), arg("name", KSymbol)), KBool,
		func(_ *Interpreter, a []Value) Value {
			_, ok := a[0].Data.(*Env).Lookup(a[1].Data.(*Symbol))
			return Bool(ok)
		})
	ip.RegisterNative("macro?", params(arg("name", KSymbol), opt("env", KEnv)), KBool,
		func(ip *Interpreter, a []Value) Value {
			env := ip.Global
			if len(a) > 1 {
				env = a[1].Data.(*Env)
			}
			_, ok := env.LookupMacro(a[0].Data.(*Symbol))
			return Bool(ok)
		})
}

func (ip *Interpreter) expandArg(who string, a []Value, single bool) Value {
	env := ip.Global
	if len(a) > 1 {
		env = a[1].Data.(*Env)
	}
	out, err := ip.Expand(a[0], env, single)
	if err != nil {
		panic(asError(err))
	}
	return out
}
