// syntax.go: derived special forms.
//
// Every form here is a rewrite into the core forms of interpreter_ops.go.
// Rewrites embed primitive procedure values (not their names) in head
// position, so user code that rebinds `memv` or `call-with-values` cannot
// change what `case` or `let-values` mean. The few helpers a rewrite needs
// that are not user-visible primitives are built here as private values.
//
//	let, named let, let*, letrec, letrec*  -> lambda / internal define
//	do                                      -> named let
//	cond (with =>), case (with =>)          -> if
//	when, unless                            -> if + begin
//	cons-stream                             -> cons + delay
//	let-values, let*-values                 -> call-with-values
//	define-values                           -> its own Code node
//	guard                                   -> with-exception-handler + cond
//	parameterize                            -> dynamic-wind over parameter cells
//	require                                 -> a call of the require procedure
package scheme

type paramCell struct {
	v    Value
	conv Value // converter procedure, or Nil
}

func newParameter(v, conv Value) Value {
	return paramValue("parameter", &paramCell{v: v, conv: conv})
}

func paramValue(name string, cell *paramCell) Value {
	p := &Primitive{Name: name, Ret: KAny, param: cell}
	p.impl = func(_ *Interpreter, _ []Value) Value { return cell.v }
	return Value{Tag: VTPrim, Data: p}
}

func paramOf(who string, v Value) *paramCell {
	if v.Tag == VTPrim {
		if cell := v.Data.(*Primitive).param; cell != nil {
			return cell
		}
	}
	panic(&Error{Kind: TypeMismatch, Who: who, Msg: "not a parameter: " + WriteString(v)})
}

func helper(name string, params []ParamSpec, impl NativeImpl) Value {
	return Value{Tag: VTPrim, Data: &Primitive{Name: name, Params: params, Ret: KAny, impl: impl}}
}

// rewrite compiles out in place of form, carrying form's source position.
func (c *CompileCtx) rewrite(form, out Value) Code {
	if c.src != nil && c.src.Spans != nil && out.Tag == VTPair {
		if s, ok := c.src.Spans.Of(form); ok {
			if _, has := c.src.Spans.Of(out); !has {
				c.src.Spans.pairs[out.Data.(*Pair)] = s
			}
		}
	}
	return c.Compile(out)
}

// bindingList parses ((name init) ...). A binding without init is void.
func bindingList(form, bs Value) ([]Value, []Value) {
	xs, ok := ListToSlice(bs)
	if !ok {
		panic(badForm(form, "%s: bad bindings", headName(form)))
	}
	names := make([]Value, len(xs))
	inits := make([]Value, len(xs))
	for i, b := range xs {
		pair, ok := ListToSlice(b)
		if !ok || len(pair) < 1 || len(pair) > 2 {
			panic(badForm(form, "%s: bad binding %s", headName(form), WriteString(b)))
		}
		symbolOf(form, pair[0])
		names[i] = pair[0]
		inits[i] = Void
		if len(pair) == 2 {
			inits[i] = pair[1]
		}
	}
	return names, inits
}

// ----- define-values -----

type defineValuesCode struct {
	params []*Symbol
	rest   *Symbol
	val    Code
}

func (c *defineValuesCode) run(m *machine) {
	m.push(&defineValuesFrame{c: c, env: m.env})
	m.eval(c.val, m.env)
}

type defineValuesFrame struct {
	c   *defineValuesCode
	env *Env
}

func (f *defineValuesFrame) resume(m *machine) {
	vals := spread(m.val)
	n := len(f.c.params)
	if len(vals) < n || (f.c.rest == nil && len(vals) > n) {
		max := n
		if f.c.rest != nil {
			max = -1
		}
		panic(wrongArity("define-values", n, max, len(vals)))
	}
	for i, s := range f.c.params {
		f.env.Define(s, vals[i])
	}
	if f.c.rest != nil {
		f.env.Define(f.c.rest, List(vals[n:]...))
	}
	m.val = Void
}

func registerDerivedForms(ip *Interpreter) {
	sym := func(s *Symbol) Value { return SymVal(s) }
	lambda := sym(ip.sym.lambda)
	define := sym(ip.sym.define)
	begin := sym(ip.sym.begin)
	if_ := sym(ip.sym.if_)
	let := sym(ip.sym.let)
	cond := sym(ip.Intern("cond"))
	quote := sym(ip.sym.quote)
	else_ := ip.sym.else_
	arrow := ip.sym.arrow

	caseMember := helper("case", []ParamSpec{{Name: "key", Type: KAny}, {Name: "data", Type: KList}}, func(_ *Interpreter, a []Value) Value {
		for v := a[1]; v.Tag == VTPair; v = v.Data.(*Pair).Cdr {
			if Eqv(a[0], v.Data.(*Pair).Car) {
				return True
			}
		}
		return False
	})
	identity := helper("identity", []ParamSpec{{Name: "x", Type: KAny}}, func(_ *Interpreter, a []Value) Value { return a[0] })
	paramConverter := helper("parameterize", []ParamSpec{{Name: "param", Type: KAny}}, func(_ *Interpreter, a []Value) Value {
		cell := paramOf("parameterize", a[0])
		if cell.conv.Tag == VTNil {
			return identity
		}
		return cell.conv
	})
	paramSwap := helper("parameterize", []ParamSpec{{Name: "param", Type: KAny}, {Name: "v", Type: KAny}}, func(_ *Interpreter, a []Value) Value {
		cell := paramOf("parameterize", a[0])
		old := cell.v
		cell.v = a[1]
		return old
	})

	// ----- binding forms -----

	ip.RegisterSyntax("let", func(c *CompileCtx, form Value) Code {
		xs := forms(form, 2, -1)
		if xs[0].Tag == VTSymbol {
			// named let: the loop name is visible in the body but not in the inits
			if len(xs) < 3 {
				panic(badForm(form, "let: missing body"))
			}
			name := xs[0]
			names, inits := bindingList(form, xs[1])
			loop := List(define, name, ListTail([]Value{lambda, List(names...)}, List(xs[2:]...)))
			thunk := List(lambda, Nil, loop, name)
			return c.rewrite(form, ListTail([]Value{List(thunk)}, List(inits...)))
		}
		names, inits := bindingList(form, xs[0])
		fn := ListTail([]Value{lambda, List(names...)}, List(xs[1:]...))
		return c.rewrite(form, ListTail([]Value{fn}, List(inits...)))
	})

	ip.RegisterSyntax("let*", func(c *CompileCtx, form Value) Code {
		xs := forms(form, 2, -1)
		names, inits := bindingList(form, xs[0])
		out := ListTail([]Value{let, Nil}, List(xs[1:]...))
		for i := len(names) - 1; i >= 0; i-- {
			out = List(let, List(List(names[i], inits[i])), out)
		}
		return c.rewrite(form, out)
	})

	letrec := func(c *CompileCtx, form Value) Code {
		xs := forms(form, 2, -1)
		names, inits := bindingList(form, xs[0])
		body := make([]Value, 0, len(names)+len(xs))
		for i := range names {
			body = append(body, List(define, names[i], inits[i]))
		}
		body = append(body, ListTail([]Value{let, Nil}, List(xs[1:]...)))
		return c.rewrite(form, List(ListTail([]Value{lambda, Nil}, List(body...))))
	}
	ip.RegisterSyntax("letrec", letrec)
	ip.RegisterSyntax("letrec*", letrec)

	ip.RegisterSyntax("do", func(c *CompileCtx, form Value) Code {
		xs := forms(form, 2, -1)
		specs, ok := ListToSlice(xs[0])
		if !ok {
			panic(badForm(form, "do: bad variable clauses"))
		}
		exit, ok := ListToSlice(xs[1])
		if !ok || len(exit) == 0 {
			panic(badForm(form, "do: expected (test expr...)"))
		}
		loop := c.gensym("do-loop")
		var binds, steps []Value
		for _, s := range specs {
			parts, ok := ListToSlice(s)
			if !ok || len(parts) < 2 || len(parts) > 3 {
				panic(badForm(form, "do: bad variable clause %s", WriteString(s)))
			}
			symbolOf(form, parts[0])
			binds = append(binds, List(parts[0], parts[1]))
			step := parts[0]
			if len(parts) == 3 {
				step = parts[2]
			}
			steps = append(steps, step)
		}
		again := ListTail([]Value{begin}, ListTail(xs[2:], List(ListTail([]Value{loop}, List(steps...)))))
		done := ListTail([]Value{begin}, List(exit[1:]...))
		body := List(if_, exit[0], done, again)
		return c.rewrite(form, List(let, loop, List(binds...), body))
	})

	// ----- conditionals -----

	ip.RegisterSyntax("cond", func(c *CompileCtx, form Value) Code {
		clauses := forms(form, 0, -1)
		if len(clauses) == 0 {
			return &constCode{v: Void}
		}
		cl, ok := ListToSlice(clauses[0])
		if !ok || len(cl) == 0 {
			panic(badForm(form, "cond: bad clause %s", WriteString(clauses[0])))
		}
		rest := ListTail([]Value{cond}, List(clauses[1:]...))
		if cl[0].Tag == VTSymbol && cl[0].Data.(*Symbol) == else_ {
			if len(clauses) > 1 {
				panic(badForm(form, "cond: else clause must be last"))
			}
			return c.rewrite(form, ListTail([]Value{begin}, List(cl[1:]...)))
		}
		switch {
		case len(cl) == 1:
			t := c.gensym("t")
			return c.rewrite(form, List(let, List(List(t, cl[0])), List(if_, t, t, rest)))
		case len(cl) == 3 && cl[1].Tag == VTSymbol && cl[1].Data.(*Symbol) == arrow:
			t := c.gensym("t")
			return c.rewrite(form, List(let, List(List(t, cl[0])), List(if_, t, List(cl[2], t), rest)))
		}
		then := ListTail([]Value{begin}, List(cl[1:]...))
		if len(clauses) == 1 {
			return c.rewrite(form, List(if_, cl[0], then))
		}
		return c.rewrite(form, List(if_, cl[0], then, rest))
	})

	ip.RegisterSyntax("case", func(c *CompileCtx, form Value) Code {
		xs := forms(form, 1, -1)
		key := c.gensym("key")
		var clauses []Value
		for _, clause := range xs[1:] {
			cl, ok := ListToSlice(clause)
			if !ok || len(cl) < 1 {
				panic(badForm(form, "case: bad clause %s", WriteString(clause)))
			}
			var test Value
			if cl[0].Tag == VTSymbol && cl[0].Data.(*Symbol) == else_ {
				test = SymVal(else_)
			} else {
				if !IsList(cl[0]) {
					panic(badForm(form, "case: expected a list of data, got %s", WriteString(cl[0])))
				}
				test = List(caseMember, key, List(quote, cl[0]))
			}
			body := cl[1:]
			if len(body) == 2 && body[0].Tag == VTSymbol && body[0].Data.(*Symbol) == arrow {
				body = []Value{List(body[1], key)}
			}
			clauses = append(clauses, ListTail([]Value{test}, List(body...)))
		}
		return c.rewrite(form, List(let, List(List(key, xs[0])), ListTail([]Value{cond}, List(clauses...))))
	})

	ip.RegisterSyntax("when", func(c *CompileCtx, form Value) Code {
		xs := forms(form, 1, -1)
		return c.rewrite(form, List(if_, xs[0], ListTail([]Value{begin}, List(xs[1:]...))))
	})
	ip.RegisterSyntax("unless", func(c *CompileCtx, form Value) Code {
		xs := forms(form, 1, -1)
		return c.rewrite(form, List(if_, xs[0], Void, ListTail([]Value{begin}, List(xs[1:]...))))
	})

	ip.RegisterSyntax("cons-stream", func(c *CompileCtx, form Value) Code {
		xs := forms(form, 2, 2)
		return c.rewrite(form, List(c.ip.qqCons, xs[0], List(SymVal(c.ip.Intern("delay")), xs[1])))
	})

	// ----- multiple values -----

	ip.RegisterSyntax("let-values", func(c *CompileCtx, form Value) Code {
		xs := forms(form, 2, -1)
		bs, ok := ListToSlice(xs[0])
		if !ok {
			panic(badForm(form, "let-values: bad bindings"))
		}
		cwv := c.embed("call-with-values")
		// bind temporaries first so no init sees another binding
		var finals []Value
		temps := make([]Value, len(bs))
		inits := make([]Value, len(bs))
		for i, b := range bs {
			pair, ok := ListToSlice(b)
			if !ok || len(pair) != 2 {
				panic(badForm(form, "let-values: bad binding %s", WriteString(b)))
			}
			temps[i] = c.renameFormals(form, pair[0], &finals)
			inits[i] = pair[1]
		}
		out := ListTail([]Value{let, List(finals...)}, List(xs[1:]...))
		for i := len(bs) - 1; i >= 0; i-- {
			out = List(cwv, List(lambda, Nil, inits[i]), List(lambda, temps[i], out))
		}
		return c.rewrite(form, out)
	})

	ip.RegisterSyntax("let*-values", func(c *CompileCtx, form Value) Code {
		xs := forms(form, 2, -1)
		bs, ok := ListToSlice(xs[0])
		if !ok {
			panic(badForm(form, "let*-values: bad bindings"))
		}
		cwv := c.embed("call-with-values")
		out := ListTail([]Value{let, Nil}, List(xs[1:]...))
		for i := len(bs) - 1; i >= 0; i-- {
			pair, ok := ListToSlice(bs[i])
			if !ok || len(pair) != 2 {
				panic(badForm(form, "let*-values: bad binding %s", WriteString(bs[i])))
			}
			out = List(cwv, List(lambda, Nil, pair[1]), List(lambda, pair[0], out))
		}
		return c.rewrite(form, out)
	})

	ip.RegisterSyntax("define-values", func(c *CompileCtx, form Value) Code {
		xs := forms(form, 2, 2)
		lc := c.lambda(form, xs[0], nil, "")
		return &defineValuesCode{params: lc.params, rest: lc.rest, val: c.Compile(xs[1])}
	})

	// ----- conditions and parameters -----

	ip.RegisterSyntax("guard", func(c *CompileCtx, form Value) Code {
		xs := forms(form, 1, -1)
		spec, ok := ListToSlice(xs[0])
		if !ok || len(spec) < 1 {
			panic(badForm(form, "guard: expected (var clause...)"))
		}
		v := spec[0]
		symbolOf(form, v)
		clauses := spec[1:]
		hasElse := false
		if n := len(clauses); n > 0 {
			if last, ok := ListToSlice(clauses[n-1]); ok && len(last) > 0 &&
				last[0].Tag == VTSymbol && last[0].Data.(*Symbol) == else_ {
				hasElse = true
			}
		}
		if !hasElse {
			clauses = append(append([]Value(nil), clauses...), List(SymVal(else_), List(c.embed("raise"), v)))
		}
		handler := List(lambda, List(v), ListTail([]Value{cond}, List(clauses...)))
		thunk := ListTail([]Value{lambda, Nil}, List(xs[1:]...))
		return c.rewrite(form, List(c.embed("with-exception-handler"), handler, thunk))
	})

	ip.RegisterSyntax("parameterize", func(c *CompileCtx, form Value) Code {
		xs := forms(form, 2, -1)
		bs, ok := ListToSlice(xs[0])
		if !ok {
			panic(badForm(form, "parameterize: bad bindings"))
		}
		var binds, swaps []Value
		for _, b := range bs {
			pair, ok := ListToSlice(b)
			if !ok || len(pair) != 2 {
				panic(badForm(form, "parameterize: bad binding %s", WriteString(b)))
			}
			p, val := c.gensym("p"), c.gensym("v")
			binds = append(binds, List(p, pair[0]), List(val, List(List(paramConverter, p), pair[1])))
			swaps = append(swaps, List(SymVal(c.ip.sym.set), val, List(paramSwap, p, val)))
		}
		swap := ListTail([]Value{lambda, Nil}, List(append(swaps, Void)...))
		body := ListTail([]Value{lambda, Nil}, List(xs[1:]...))
		wind := List(c.embed("dynamic-wind"), swap, body, swap)
		return c.rewrite(form, List(SymVal(c.ip.Intern("let*")), List(binds...), wind))
	})

	ip.registerControl("make-parameter", []ParamSpec{{Name: "value", Type: KAny}, {Name: "converter", Type: KProc, Optional: true}}, func(m *machine, args []Value) {
		if len(args) == 1 {
			m.val = newParameter(args[0], Nil)
			return
		}
		conv := args[1]
		m.push(&funcFrame{k: func(m *machine) { m.val = newParameter(single(m.val), conv) }})
		m.apply(conv, args[:1])
	})
	setBuiltinDoc(ip, "make-parameter", `Create a parameter object holding value (passed through converter, if given).

Calling the parameter with no arguments returns its current value;
parameterize rebinds it for the dynamic extent of a body.`)

	// (require name) accepts a bare symbol; anything else is evaluated.
	ip.RegisterSyntax("require", func(c *CompileCtx, form Value) Code {
		xs := forms(form, 1, 1)
		arg := xs[0]
		if arg.Tag == VTSymbol {
			arg = Str(arg.Data.(*Symbol).Name)
		}
		return c.rewrite(form, List(c.embed("require"), arg))
	})
}

// renameFormals mirrors formals with fresh temporaries, appending a
// (name temp) binding for each name to finals.
func (c *CompileCtx) renameFormals(form, formals Value, finals *[]Value) Value {
	switch formals.Tag {
	case VTNil:
		return Nil
	case VTSymbol:
		t := c.gensym(formals.Data.(*Symbol).Name)
		*finals = append(*finals, List(formals, t))
		return t
	case VTPair:
		p := formals.Data.(*Pair)
		if p.Car.Tag != VTSymbol {
			panic(badForm(form, "%s: bad formals %s", headName(form), WriteString(formals)))
		}
		head := c.renameFormals(form, p.Car, finals)
		return Cons(head, c.renameFormals(form, p.Cdr, finals))
	}
	panic(badForm(form, "%s: bad formals %s", headName(form), WriteString(formals)))
}
