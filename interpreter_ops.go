// interpreter_ops.go: PRIVATE: the compiler from datums to Code, the Code
// nodes the machine runs, and the core special forms.
//
// This file:
//   - Defines CompileCtx (macro scope + source positions) and Compile.
//   - Defines the Code nodes (constants, variables, combinations, if, define,
//     set!, lambda, sequences, and/or, promises, reset/shift) and the frames
//     that continue them.
//   - Registers the core special forms. Derived forms (let, cond, do, ...)
//     rewrite to these in syntax.go; macros live in expander.go.
//
// Compilation is eager: a top-level form is compiled completely before it
// runs. Macro uses are expanded while compiling, against the macro namespace
// of the compile scope. Special forms are macros whose analyzer returns Code.
//
// Public API is in interpreter.go. The machine and frames are in vm.go and
// interpreter_exec.go.
package scheme

////////////////////////////////////////////////////////////////////////////////
//                               COMPILE CONTEXT
////////////////////////////////////////////////////////////////////////////////

// SyntaxAnalyzer compiles a special form. It receives the whole form,
// unevaluated, and returns Code to run later. Malformed input is reported by
// panicking an *Error (BadSpecialForm).
type SyntaxAnalyzer func(c *CompileCtx, form Value) Code

// CompileCtx carries the compile-time scope of one compilation.
type CompileCtx struct {
	ip  *Interpreter
	env *Env // macro scope; variables are resolved at run time
	src *SourceRef
}

const maxCompileDepth = 5000

func newCompileCtx(ip *Interpreter, env *Env, src *SourceRef) *CompileCtx {
	return &CompileCtx{ip: ip, env: env, src: src}
}

// Interpreter returns the interpreter being compiled for.
func (c *CompileCtx) Interpreter() *Interpreter { return c.ip }

// Scope returns a context with a fresh macro scope nested in c's. Bodies use
// it so define-syntax inside a body stays local to the body.
func (c *CompileCtx) Scope() *CompileCtx {
	return &CompileCtx{ip: c.ip, env: NewEnv(c.env), src: c.src}
}

// Compile translates one datum.
func (c *CompileCtx) Compile(form Value) Code {
	c.ip.compileDepth++
	defer func() { c.ip.compileDepth-- }()
	if c.ip.compileDepth > maxCompileDepth {
		panic(badForm(form, "expression nested too deeply (runaway macro?)"))
	}
	switch form.Tag {
	case VTSymbol:
		return &varCode{sym: form.Data.(*Symbol)}
	case VTPair:
		p := form.Data.(*Pair)
		if p.Car.Tag == VTSymbol {
			if mac, ok := c.env.LookupMacro(p.Car.Data.(*Symbol)); ok {
				if mac.syntax != nil {
					return mac.syntax(c, form)
				}
				return c.Compile(c.expandOnce(mac, form))
			}
		}
		return c.compileCall(form)
	case VTNil:
		panic(badForm(form, "missing procedure expression"))
	case VTValues:
		panic(badForm(form, "multiple values cannot be evaluated"))
	}
	return &constCode{v: form}
}

// CompileBody compiles a sequence; an empty sequence yields the void value.
func (c *CompileCtx) CompileBody(forms []Value) Code {
	switch len(forms) {
	case 0:
		return &constCode{v: Void}
	case 1:
		return c.Compile(forms[0])
	}
	body := make([]Code, len(forms))
	for i, f := range forms {
		body[i] = c.Compile(f)
	}
	return &seqCode{body: body}
}

func (c *CompileCtx) compileCall(form Value) Code {
	parts, ok := ListToSlice(form)
	if !ok {
		panic(badForm(form, "improper combination"))
	}
	call := &callCode{fn: c.Compile(parts[0]), args: make([]Code, len(parts)-1), src: c.src}
	for i, a := range parts[1:] {
		call.args[i] = c.Compile(a)
	}
	if c.src != nil {
		call.pos, _ = c.src.Spans.Of(form)
	}
	return call
}

// CodeFunc wraps a host function as Code, for analyzers registered by hosts.
func CodeFunc(f func(ip *Interpreter, env *Env) Value) Code { return &hostCode{f: f} }

// forms returns the elements of a special form after the keyword, requiring
// between min and max of them (max < 0: no limit).
func forms(form Value, min, max int) []Value {
	xs, ok := ListToSlice(form)
	if !ok {
		panic(badForm(form, "%s: improper form", headName(form)))
	}
	xs = xs[1:]
	if len(xs) < min || (max >= 0 && len(xs) > max) {
		panic(badForm(form, "%s: bad syntax", headName(form)))
	}
	return xs
}

func headName(form Value) string {
	if form.Tag == VTPair {
		if h := form.Data.(*Pair).Car; h.Tag == VTSymbol {
			return h.Data.(*Symbol).Name
		}
	}
	return "form"
}

func symbolOf(form, v Value) *Symbol {
	if v.Tag != VTSymbol {
		panic(badForm(form, "%s: expected an identifier, got %s", headName(form), WriteString(v)))
	}
	return v.Data.(*Symbol)
}

////////////////////////////////////////////////////////////////////////////////
//                                 CODE NODES
////////////////////////////////////////////////////////////////////////////////

type constCode struct{ v Value }

func (c *constCode) run(m *machine)       { m.val = c.v }
func (c *constCode) value(env *Env) Value { return c.v }

type varCode struct{ sym *Symbol }

func (c *varCode) run(m *machine) { m.val = c.value(m.env) }
func (c *varCode) value(env *Env) Value {
	v, ok := env.Lookup(c.sym)
	if !ok {
		panic(unboundVariable(c.sym))
	}
	return v
}

type hostCode struct {
	f func(ip *Interpreter, env *Env) Value
}

func (c *hostCode) run(m *machine) { m.val = c.f(m.ip, m.env) }

// ----- combinations -----

type callCode struct {
	fn   Code
	args []Code
	pos  Span
	src  *SourceRef
}

func (c *callCode) part(i int) Code {
	if i == 0 {
		return c.fn
	}
	return c.args[i-1]
}

func (c *callCode) run(m *machine) { m.continueCall(c, 0, m.env, nil) }

// argList accumulates evaluated operands in reverse. It is never mutated, so
// continuations captured mid-evaluation can resume it more than once.
type argList struct {
	v    Value
	next *argList
}

type argFrame struct {
	call *callCode
	i    int
	env  *Env
	acc  *argList
}

func (f *argFrame) resume(m *machine) {
	m.continueCall(f.call, f.i+1, f.env, &argList{v: single(m.val), next: f.acc})
}

func (m *machine) continueCall(c *callCode, i int, env *Env, acc *argList) {
	n := len(c.args) + 1
	for ; i < n; i++ {
		part := c.part(i)
		if sc, ok := part.(simpleCode); ok {
			acc = &argList{v: sc.value(env), next: acc}
			continue
		}
		m.push(&argFrame{call: c, i: i, env: env, acc: acc})
		m.eval(part, env)
		return
	}
	vals := make([]Value, n)
	for j := n - 1; j >= 0; j-- {
		vals[j] = acc.v
		acc = acc.next
	}
	if !c.pos.IsZero() {
		m.pos, m.src = c.pos, c.src
	}
	m.apply(vals[0], vals[1:])
}

// ----- if -----

type ifCode struct{ test, then, els Code }

func (c *ifCode) run(m *machine) {
	if sc, ok := c.test.(simpleCode); ok {
		m.branch(c, sc.value(m.env), m.env)
		return
	}
	m.push(&ifFrame{c: c, env: m.env})
	m.eval(c.test, m.env)
}

func (m *machine) branch(c *ifCode, v Value, env *Env) {
	if Truthy(v) {
		m.eval(c.then, env)
	} else {
		m.eval(c.els, env)
	}
}

type ifFrame struct {
	c   *ifCode
	env *Env
}

func (f *ifFrame) resume(m *machine) { m.branch(f.c, single(m.val), f.env) }

// ----- define / set! -----

type defineCode struct {
	sym *Symbol
	val Code
}

func (c *defineCode) run(m *machine) {
	if sc, ok := c.val.(simpleCode); ok {
		m.env.Define(c.sym, sc.value(m.env))
		m.val = SymVal(c.sym)
		return
	}
	m.push(&defineFrame{sym: c.sym, env: m.env})
	m.eval(c.val, m.env)
}

type defineFrame struct {
	sym *Symbol
	env *Env
}

func (f *defineFrame) resume(m *machine) {
	f.env.Define(f.sym, single(m.val))
	m.val = SymVal(f.sym)
}

type setCode struct {
	sym *Symbol
	val Code
}

func (c *setCode) run(m *machine) {
	if sc, ok := c.val.(simpleCode); ok {
		assign(m.env, c.sym, sc.value(m.env))
		m.val = Void
		return
	}
	m.push(&setFrame{sym: c.sym, env: m.env})
	m.eval(c.val, m.env)
}

type setFrame struct {
	sym *Symbol
	env *Env
}

func (f *setFrame) resume(m *machine) {
	assign(f.env, f.sym, single(m.val))
	m.val = Void
}

func assign(env *Env, sym *Symbol, v Value) {
	if env.Set(sym, v) != nil {
		e := unboundVariable(sym)
		e.Who = "set!"
		panic(e)
	}
}

// ----- lambda / sequences -----

type lambdaCode struct {
	name    string
	params  []*Symbol
	rest    *Symbol
	formals Value
	body    Code
}

func (c *lambdaCode) run(m *machine) { m.val = c.value(m.env) }
func (c *lambdaCode) value(env *Env) Value {
	return Value{Tag: VTClosure, Data: &Closure{
		Name: c.name, Params: c.params, Rest: c.rest, Formals: c.formals, Body: c.body, Env: env,
	}}
}

type seqCode struct{ body []Code }

func (c *seqCode) run(m *machine) { m.runBody(c.body, 0, m.env) }

// ----- and / or -----

type logicCode struct {
	exprs []Code
	or    bool
}

func (c *logicCode) run(m *machine) {
	if len(c.exprs) == 0 {
		m.val = Bool(!c.or)
		return
	}
	m.logicFrom(c, 0, m.env)
}

func (m *machine) logicFrom(c *logicCode, i int, env *Env) {
	last := len(c.exprs) - 1
	for ; i < last; i++ {
		sc, ok := c.exprs[i].(simpleCode)
		if !ok {
			m.push(&logicFrame{c: c, i: i, env: env})
			m.eval(c.exprs[i], env)
			return
		}
		if v := sc.value(env); Truthy(v) == c.or {
			m.val = v
			return
		}
	}
	m.eval(c.exprs[last], env)
}

type logicFrame struct {
	c   *logicCode
	i   int
	env *Env
}

func (f *logicFrame) resume(m *machine) {
	v := single(m.val)
	if Truthy(v) == f.c.or {
		m.val = v
		return
	}
	m.logicFrom(f.c, f.i+1, f.env)
}

// ----- promises and delimited control -----

type promiseCode struct {
	body Code
	lazy bool
}

func (c *promiseCode) run(m *machine) { m.val = c.value(m.env) }
func (c *promiseCode) value(env *Env) Value {
	return Value{Tag: VTPromise, Data: &Promise{code: c.body, env: env, lazy: c.lazy}}
}

type resetCode struct{ body Code }

func (c *resetCode) run(m *machine) { m.reset(c.body, m.env) }

type shiftCode struct {
	k    *Symbol
	body Code
}

func (c *shiftCode) run(m *machine) { m.shift(c.k, c.body, m.env) }

////////////////////////////////////////////////////////////////////////////////
//                              CORE SPECIAL FORMS
////////////////////////////////////////////////////////////////////////////////

func registerSpecialForms(ip *Interpreter) {
	ip.RegisterSyntax("quote", func(c *CompileCtx, form Value) Code {
		return &constCode{v: forms(form, 1, 1)[0]}
	})

	ip.RegisterSyntax("quasiquote", func(c *CompileCtx, form Value) Code {
		return c.Compile(c.ip.quasi(forms(form, 1, 1)[0], 1))
	})
	for _, name := range []string{"unquote", "unquote-splicing"} {
		name := name
		ip.RegisterSyntax(name, func(c *CompileCtx, form Value) Code {
			panic(badForm(form, "%s: not in quasiquote", name))
		})
	}

	ip.RegisterSyntax("if", func(c *CompileCtx, form Value) Code {
		xs := forms(form, 2, 3)
		code := &ifCode{test: c.Compile(xs[0]), then: c.Compile(xs[1]), els: &constCode{v: Void}}
		if len(xs) == 3 {
			code.els = c.Compile(xs[2])
		}
		return code
	})

	ip.RegisterSyntax("define", func(c *CompileCtx, form Value) Code {
		xs := forms(form, 1, -1)
		target, body := xs[0], xs[1:]
		// (define ((f a) b) ...) curries.
		for target.Tag == VTPair {
			p := target.Data.(*Pair)
			lam := Cons(SymVal(c.ip.sym.lambda), Cons(p.Cdr, List(body...)))
			target, body = p.Car, []Value{lam}
		}
		sym := symbolOf(form, target)
		if len(body) > 1 {
			panic(badForm(form, "define: too many expressions"))
		}
		var val Code = &constCode{v: Void}
		if len(body) == 1 {
			val = c.Compile(body[0])
		}
		if lc, ok := val.(*lambdaCode); ok && lc.name == "" {
			lc.name = sym.Name
		}
		return &defineCode{sym: sym, val: val}
	})

	ip.RegisterSyntax("set!", func(c *CompileCtx, form Value) Code {
		xs := forms(form, 2, 2)
		return &setCode{sym: symbolOf(form, xs[0]), val: c.Compile(xs[1])}
	})

	ip.RegisterSyntax("lambda", func(c *CompileCtx, form Value) Code {
		xs := forms(form, 1, -1)
		return c.lambda(form, xs[0], xs[1:], "")
	})
	ip.RegisterSyntax("named-lambda", func(c *CompileCtx, form Value) Code {
		xs := forms(form, 1, -1)
		if xs[0].Tag != VTPair {
			panic(badForm(form, "named-lambda: expected (name . formals)"))
		}
		p := xs[0].Data.(*Pair)
		return c.lambda(form, p.Cdr, xs[1:], symbolOf(form, p.Car).Name)
	})

	ip.RegisterSyntax("begin", func(c *CompileCtx, form Value) Code {
		return c.CompileBody(forms(form, 0, -1))
	})

	ip.RegisterSyntax("and", func(c *CompileCtx, form Value) Code {
		return &logicCode{exprs: c.compileAll(forms(form, 0, -1))}
	})
	ip.RegisterSyntax("or", func(c *CompileCtx, form Value) Code {
		return &logicCode{exprs: c.compileAll(forms(form, 0, -1)), or: true}
	})

	ip.RegisterSyntax("delay", func(c *CompileCtx, form Value) Code {
		return &promiseCode{body: c.CompileBody(forms(form, 1, -1))}
	})
	ip.RegisterSyntax("delay-force", func(c *CompileCtx, form Value) Code {
		return &promiseCode{body: c.CompileBody(forms(form, 1, -1)), lazy: true}
	})

	ip.RegisterSyntax("reset", func(c *CompileCtx, form Value) Code {
		return &resetCode{body: c.CompileBody(forms(form, 1, -1))}
	})
	ip.RegisterSyntax("shift", func(c *CompileCtx, form Value) Code {
		xs := forms(form, 2, -1)
		return &shiftCode{k: symbolOf(form, xs[0]), body: c.Scope().CompileBody(xs[1:])}
	})

	registerDerivedForms(ip)
	registerMacroForms(ip)
}

func (c *CompileCtx) compileAll(xs []Value) []Code {
	out := make([]Code, len(xs))
	for i, x := range xs {
		out[i] = c.Compile(x)
	}
	return out
}

// lambda compiles formals and body. Formals are a symbol (all arguments), a
// proper list, or a dotted list whose tail collects the rest.
func (c *CompileCtx) lambda(form, formals Value, body []Value, name string) *lambdaCode {
	lc := &lambdaCode{name: name, formals: formals}
	seen := map[*Symbol]bool{}
	add := func(v Value) *Symbol {
		s := symbolOf(form, v)
		if seen[s] {
			panic(badForm(form, "lambda: duplicate parameter %s", s.Name))
		}
		seen[s] = true
		return s
	}
	f := formals
	for f.Tag == VTPair {
		p := f.Data.(*Pair)
		lc.params = append(lc.params, add(p.Car))
		f = p.Cdr
	}
	switch f.Tag {
	case VTNil:
	case VTSymbol:
		lc.rest = add(f)
	default:
		panic(badForm(form, "lambda: bad formals %s", WriteString(formals)))
	}
	lc.body = c.Scope().CompileBody(body)
	return lc
}

// embed returns a primitive value from Core for use inside rewritten forms.
// Placing the procedure itself in head position keeps rewrites immune to user
// rebinding of the name.
func (c *CompileCtx) embed(name string) Value {
	v, ok := c.ip.Core.Lookup(c.ip.Intern(name))
	if !ok {
		panic(NewError(InternalError, "%s is not available", name))
	}
	return v
}

func (c *CompileCtx) gensym(prefix string) Value {
	return SymVal(c.ip.Symbols.Gensym(prefix))
}
