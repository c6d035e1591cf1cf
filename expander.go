// expander.go: macros: pattern matching, template instantiation, expansion.
//
// OVERVIEW
// ========
// Macros live in a namespace disjoint from variables (Env.DefineMacro). In
// head position a macro binding always wins, so a name may be a macro and,
// elsewhere, a variable.
//
// Two kinds of user macro share one matcher:
//
//   - (define-macro (name . pattern) body...)
//     The rest of the use is matched against pattern; body is evaluated with
//     the pattern variables bound, and its value is the replacement form.
//
//   - (define-syntax name (syntax-rules (literal...) (pattern template)...))
//     The first rule whose pattern matches wins; its template is instantiated
//     by substitution.
//
// PATTERN LANGUAGE
// ----------------
//   - a symbol binds the matched datum; `_` matches anything, binding nothing
//   - a syntax-rules literal, or (quote sym), matches exactly that symbol
//   - `p ...` matches zero or more data; each variable of p is bound to the
//     list of its per-element matches (nesting follows ellipsis depth)
//   - a dotted tail binds the rest of the list
//   - vectors match element-wise; other atoms match by equal?
//
// A use that matches no pattern is a BadSpecialForm error naming the macro.
//
// EXPANSION
// ---------
// Expand(form, single) rewrites the head of form until it is no longer a
// macro use (exactly once when single), then, when not single, expands each
// subform, leaving quoted data alone. Quasiquote is expanded by building its
// construction code, running it in the ambient environment, and re-expanding
// the result.
//
// Hygiene is not provided; gensym creates names no source can mention.
package scheme

////////////////////////////////////////////////////////////////////////////////
//                                  PUBLIC API
////////////////////////////////////////////////////////////////////////////////

// Macro is a binding in the macro namespace: either a special form (syntax)
// or a user macro.
type Macro struct {
	Name string

	syntax SyntaxAnalyzer

	// syntax-rules
	literals map[*Symbol]bool
	rules    []macroRule

	// define-macro
	pattern Value
	body    Code
	env     *Env
}

// IsSpecialForm reports whether m is built into the compiler.
func (m *Macro) IsSpecialForm() bool { return m.syntax != nil }

type macroRule struct {
	pattern  Value
	template Value
}

// Expand macro-expands form in env. With single, only the head rewrite is
// performed, once.
func (ip *Interpreter) Expand(form Value, env *Env, single bool) (Value, error) {
	if env == nil {
		env = ip.Global
	}
	var out Value
	_, err := ip.runNested(func(m *machine) {
		c := newCompileCtx(ip, env, nil)
		if single {
			out = c.expand1(form)
		} else {
			out = c.expandAll(form)
		}
		m.val = out
	})
	return out, err
}

//// END_OF_PUBLIC

////////////////////////////////////////////////////////////////////////////////
//                                 EXPANSION
////////////////////////////////////////////////////////////////////////////////

// macroUse returns the user macro form invokes, if any.
func (c *CompileCtx) macroUse(form Value) (*Macro, bool) {
	if form.Tag != VTPair {
		return nil, false
	}
	head := form.Data.(*Pair).Car
	if head.Tag != VTSymbol {
		return nil, false
	}
	mac, ok := c.env.LookupMacro(head.Data.(*Symbol))
	if !ok || mac.syntax != nil {
		return nil, false
	}
	return mac, true
}

func (c *CompileCtx) expand1(form Value) Value {
	if mac, ok := c.macroUse(form); ok {
		return c.expandOnce(mac, form)
	}
	return form
}

func (c *CompileCtx) expandAll(form Value) Value {
	c.ip.compileDepth++
	defer func() { c.ip.compileDepth-- }()
	if c.ip.compileDepth > maxCompileDepth {
		panic(badForm(form, "expansion nested too deeply (runaway macro?)"))
	}
	for {
		mac, ok := c.macroUse(form)
		if !ok {
			break
		}
		form = c.expandOnce(mac, form)
	}
	if form.Tag != VTPair {
		return form
	}
	head := form.Data.(*Pair).Car
	if head.Tag == VTSymbol {
		switch head.Data.(*Symbol) {
		case c.ip.sym.quote:
			return form
		case c.ip.sym.quasiquote:
			if xs, ok := ListToSlice(form); ok && len(xs) == 2 {
				return c.expandAll(c.ip.evalQuasi(xs[1], c.env))
			}
		}
	}
	if xs, ok := ListToSlice(form); ok && head.Tag == VTSymbol {
		if mac, ok := c.env.LookupMacro(head.Data.(*Symbol)); ok && mac.syntax != nil {
			if out, ok := c.expandSpecial(mac.Name, xs); ok {
				return out
			}
		}
	}
	return c.expandEach(form)
}

// expandSpecial expands the subforms of a special form, leaving binding
// names, formals and case data alone. It reports false for forms whose
// every element is an expression.
func (c *CompileCtx) expandSpecial(name string, xs []Value) (Value, bool) {
	out := append([]Value(nil), xs...)
	rest := func(from int) {
		for i := from; i < len(out); i++ {
			out[i] = c.expandAll(out[i])
		}
	}
	switch name {
	case "define-syntax", "let-syntax", "define-macro", "syntax-rules", "require":
		return List(xs...), true
	case "lambda", "named-lambda", "define", "define-values":
		rest(2)
	case "let", "let*", "letrec", "letrec*", "let-values", "let*-values", "parameterize":
		i := 1
		if name == "let" && len(out) > 1 && out[1].Tag == VTSymbol {
			i = 2
		}
		if i < len(out) {
			out[i] = c.expandBindings(out[i])
		}
		rest(i + 1)
	case "do":
		if len(out) > 2 {
			out[1] = c.expandBindings(out[1])
			out[2] = c.expandEach(out[2])
		}
		rest(3)
	case "case":
		if len(out) > 1 {
			out[1] = c.expandAll(out[1])
		}
		for i := 2; i < len(out); i++ {
			out[i] = c.expandTail(out[i])
		}
	case "cond":
		for i := 1; i < len(out); i++ {
			out[i] = c.expandEach(out[i])
		}
	case "guard":
		if len(out) > 1 && out[1].Tag == VTPair {
			p := out[1].Data.(*Pair)
			clauses := p.Cdr
			var cs []Value
			for clauses.Tag == VTPair {
				cs = append(cs, c.expandEach(clauses.Data.(*Pair).Car))
				clauses = clauses.Data.(*Pair).Cdr
			}
			out[1] = Cons(p.Car, ListTail(cs, clauses))
		}
		rest(2)
	default:
		return Void, false
	}
	return List(out...), true
}

// expandEach expands every element of a list, keeping an improper tail as is.
func (c *CompileCtx) expandEach(form Value) Value {
	var items []Value
	v := form
	for v.Tag == VTPair {
		p := v.Data.(*Pair)
		items = append(items, c.expandAll(p.Car))
		v = p.Cdr
	}
	return ListTail(items, v)
}

// expandTail expands all but the first element of (name expr ...).
func (c *CompileCtx) expandTail(b Value) Value {
	if b.Tag != VTPair {
		return b
	}
	p := b.Data.(*Pair)
	return Cons(p.Car, c.expandEach(p.Cdr))
}

// expandBindings expands ((name expr ...) ...) keeping each name.
func (c *CompileCtx) expandBindings(bs Value) Value {
	var items []Value
	v := bs
	for v.Tag == VTPair {
		items = append(items, c.expandTail(v.Data.(*Pair).Car))
		v = v.Data.(*Pair).Cdr
	}
	return ListTail(items, v)
}

// expandOnce performs one rewrite of a macro use.
func (c *CompileCtx) expandOnce(mac *Macro, form Value) Value {
	args := form.Data.(*Pair).Cdr
	if mac.rules != nil {
		for _, r := range mac.rules {
			b := newBindings(nil)
			// the keyword position of a syntax-rules pattern is ignored
			if matchPattern(r.pattern.Data.(*Pair).Cdr, args, b, mac.literals, 0, c.ip) {
				return instantiate(r.template, b, c.ip)
			}
		}
		panic(badForm(form, "%s: no syntax rule matches", mac.Name))
	}
	b := newBindings(nil)
	if !matchPattern(mac.pattern, args, b, nil, 0, c.ip) {
		panic(badForm(form, "%s: use does not match pattern %s", mac.Name, WriteString(mac.pattern)))
	}
	env := NewEnv(mac.env)
	for s, v := range b.vals {
		env.Define(s, v)
	}
	out, err := c.ip.runNested(func(m *machine) { m.eval(mac.body, env) })
	if err != nil {
		panic(asError(err))
	}
	return single(out)
}

// expandTop rewrites a top-level form until its head is not a user macro. A
// top-level begin reports its body for splicing.
func (c *CompileCtx) expandTop(form Value) (Value, []Value, bool) {
	for {
		mac, ok := c.macroUse(form)
		if !ok {
			break
		}
		form = c.expandOnce(mac, form)
	}
	if form.Tag == VTPair {
		p := form.Data.(*Pair)
		if p.Car.Tag == VTSymbol && p.Car.Data.(*Symbol) == c.ip.sym.begin {
			if mac, ok := c.env.LookupMacro(c.ip.sym.begin); ok && mac.syntax != nil {
				return form, forms(form, 0, -1), true
			}
		}
	}
	return form, nil, false
}

func asError(err error) *Error {
	if e, ok := err.(*Error); ok {
		return e
	}
	return internalError(err)
}

////////////////////////////////////////////////////////////////////////////////
//                                   MATCHER
////////////////////////////////////////////////////////////////////////////////

// bindings maps pattern variables to matched data. depth records the
// ellipsis depth at which a variable was bound.
type bindings struct {
	vals   map[*Symbol]Value
	depth  map[*Symbol]int
	parent *bindings
}

func newBindings(parent *bindings) *bindings {
	return &bindings{vals: map[*Symbol]Value{}, depth: map[*Symbol]int{}, parent: parent}
}

func (b *bindings) lookup(s *Symbol) (Value, int, bool) {
	for f := b; f != nil; f = f.parent {
		if v, ok := f.vals[s]; ok {
			return v, f.depth[s], true
		}
	}
	return Value{}, 0, false
}

func isEllipsis(v Value, ip *Interpreter) bool {
	return v.Tag == VTSymbol && v.Data.(*Symbol) == ip.sym.ellipsis
}

func matchPattern(pat, form Value, b *bindings, lits map[*Symbol]bool, depth int, ip *Interpreter) bool {
	switch pat.Tag {
	case VTSymbol:
		s := pat.Data.(*Symbol)
		switch {
		case lits[s]:
			return form.Tag == VTSymbol && form.Data.(*Symbol) == s
		case s == ip.sym.underscore:
			return true
		}
		b.vals[s], b.depth[s] = form, depth
		return true
	case VTPair:
		p := pat.Data.(*Pair)
		if p.Car.Tag == VTSymbol && p.Car.Data.(*Symbol) == ip.sym.quote {
			if xs, ok := ListToSlice(pat); ok && len(xs) == 2 {
				return Equal(xs[1], form)
			}
		}
		if p.Cdr.Tag == VTPair && isEllipsis(p.Cdr.Data.(*Pair).Car, ip) {
			return matchEllipsis(p.Car, p.Cdr.Data.(*Pair).Cdr, form, b, lits, depth, ip)
		}
		if form.Tag != VTPair {
			return false
		}
		f := form.Data.(*Pair)
		return matchPattern(p.Car, f.Car, b, lits, depth, ip) &&
			matchPattern(p.Cdr, f.Cdr, b, lits, depth, ip)
	case VTVector:
		if form.Tag != VTVector {
			return false
		}
		return matchPattern(List(pat.Data.(*Vector).Snapshot()...), List(form.Data.(*Vector).Snapshot()...), b, lits, depth, ip)
	case VTNil:
		return form.Tag == VTNil
	}
	return Equal(pat, form)
}

// matchEllipsis matches `sub ... . tail` against form.
func matchEllipsis(sub, tail, form Value, b *bindings, lits map[*Symbol]bool, depth int, ip *Interpreter) bool {
	// elements required by the tail pattern after the ellipsis
	need := 0
	for t := tail; t.Tag == VTPair; t = t.Data.(*Pair).Cdr {
		need++
	}
	var items []Value
	v := form
	for v.Tag == VTPair {
		items = append(items, v.Data.(*Pair).Car)
		v = v.Data.(*Pair).Cdr
	}
	n := len(items) - need
	if n < 0 {
		return false
	}
	vars := patternVars(sub, lits, ip, nil)
	per := make(map[*Symbol][]Value, len(vars))
	for _, item := range items[:n] {
		nb := newBindings(nil)
		if !matchPattern(sub, item, nb, lits, depth+1, ip) {
			return false
		}
		for _, s := range vars {
			per[s] = append(per[s], nb.vals[s])
		}
		// nested ellipsis variables keep their deeper depth
		for s, d := range nb.depth {
			b.depth[s] = d
		}
	}
	for _, s := range vars {
		b.vals[s] = List(per[s]...)
		if _, ok := b.depth[s]; !ok || b.depth[s] < depth+1 {
			b.depth[s] = depth + 1
		}
	}
	rest := form
	for i := 0; i < n; i++ {
		rest = rest.Data.(*Pair).Cdr
	}
	return matchPattern(tail, rest, b, lits, depth, ip)
}

func patternVars(pat Value, lits map[*Symbol]bool, ip *Interpreter, out []*Symbol) []*Symbol {
	switch pat.Tag {
	case VTSymbol:
		s := pat.Data.(*Symbol)
		if !lits[s] && s != ip.sym.underscore && s != ip.sym.ellipsis {
			out = append(out, s)
		}
	case VTPair:
		p := pat.Data.(*Pair)
		if p.Car.Tag == VTSymbol && p.Car.Data.(*Symbol) == ip.sym.quote {
			return out
		}
		out = patternVars(p.Car, lits, ip, out)
		out = patternVars(p.Cdr, lits, ip, out)
	case VTVector:
		for _, x := range pat.Data.(*Vector).Snapshot() {
			out = patternVars(x, lits, ip, out)
		}
	}
	return out
}

////////////////////////////////////////////////////////////////////////////////
//                                  TEMPLATES
////////////////////////////////////////////////////////////////////////////////

func instantiate(tmpl Value, b *bindings, ip *Interpreter) Value {
	switch tmpl.Tag {
	case VTSymbol:
		if v, _, ok := b.lookup(tmpl.Data.(*Symbol)); ok {
			return v
		}
		return tmpl
	case VTPair:
		p := tmpl.Data.(*Pair)
		// (... ...) escapes a literal ellipsis
		if isEllipsis(p.Car, ip) && p.Cdr.Tag == VTPair {
			return p.Cdr.Data.(*Pair).Car
		}
		if p.Cdr.Tag == VTPair && isEllipsis(p.Cdr.Data.(*Pair).Car, ip) {
			items := instantiateEllipsis(p.Car, b, ip)
			rest := p.Cdr.Data.(*Pair).Cdr
			// `x ... ...` flattens one more level
			for rest.Tag == VTPair && isEllipsis(rest.Data.(*Pair).Car, ip) {
				var flat []Value
				for _, it := range items {
					xs, _ := ListToSlice(it)
					flat = append(flat, xs...)
				}
				items = flat
				rest = rest.Data.(*Pair).Cdr
			}
			return ListTail(items, instantiate(rest, b, ip))
		}
		return Cons(instantiate(p.Car, b, ip), instantiate(p.Cdr, b, ip))
	case VTVector:
		xs, _ := ListToSlice(instantiate(List(tmpl.Data.(*Vector).Snapshot()...), b, ip))
		return Vec(xs)
	}
	return tmpl
}

func instantiateEllipsis(sub Value, b *bindings, ip *Interpreter) []Value {
	var vars []*Symbol
	for _, s := range templateSymbols(sub, nil) {
		if _, d, ok := b.lookup(s); ok && d > 0 {
			vars = append(vars, s)
		}
	}
	if len(vars) == 0 {
		panic(NewError(BadSpecialForm, "template ellipsis follows no pattern variable: %s", WriteString(sub)))
	}
	n := -1
	seqs := make([][]Value, len(vars))
	for i, s := range vars {
		v, _, _ := b.lookup(s)
		xs, _ := ListToSlice(v)
		seqs[i] = xs
		if n < 0 || len(xs) < n {
			n = len(xs)
		}
	}
	out := make([]Value, 0, n)
	for k := 0; k < n; k++ {
		nb := newBindings(b)
		for i, s := range vars {
			_, d, _ := b.lookup(s)
			nb.vals[s], nb.depth[s] = seqs[i][k], d-1
		}
		out = append(out, instantiate(sub, nb, ip))
	}
	return out
}

func templateSymbols(t Value, out []*Symbol) []*Symbol {
	switch t.Tag {
	case VTSymbol:
		out = append(out, t.Data.(*Symbol))
	case VTPair:
		out = templateSymbols(t.Data.(*Pair).Car, out)
		out = templateSymbols(t.Data.(*Pair).Cdr, out)
	case VTVector:
		for _, x := range t.Data.(*Vector).Snapshot() {
			out = templateSymbols(x, out)
		}
	}
	return out
}

////////////////////////////////////////////////////////////////////////////////
//                                 QUASIQUOTE
////////////////////////////////////////////////////////////////////////////////

// quasi builds construction code for a quasiquoted template at nesting
// level depth. Constructors are embedded as procedure values.
func (ip *Interpreter) quasi(x Value, depth int) Value {
	quote := func(v Value) Value { return List(SymVal(ip.sym.quote), v) }
	switch x.Tag {
	case VTPair:
		p := x.Data.(*Pair)
		if tag, arg, ok := ip.qqForm(x); ok {
			switch tag {
			case ip.sym.unquote:
				if depth == 1 {
					return arg
				}
				return List(ip.qqList, quote(SymVal(tag)), ip.quasi(arg, depth-1))
			case ip.sym.quasiquote:
				return List(ip.qqList, quote(SymVal(tag)), ip.quasi(arg, depth+1))
			}
		}
		if tag, arg, ok := ip.qqForm(p.Car); ok && tag == ip.sym.unquoteSplicing {
			rest := ip.quasi(p.Cdr, depth)
			if depth == 1 {
				return List(ip.qqAppend, arg, rest)
			}
			inner := List(ip.qqList, quote(SymVal(tag)), ip.quasi(arg, depth-1))
			return List(ip.qqCons, inner, rest)
		}
		return List(ip.qqCons, ip.quasi(p.Car, depth), ip.quasi(p.Cdr, depth))
	case VTVector:
		return List(ip.qqVector, ip.quasi(List(x.Data.(*Vector).Snapshot()...), depth))
	case VTSymbol, VTNil:
		return quote(x)
	}
	return x
}

// qqForm recognizes (unquote x), (unquote-splicing x) and (quasiquote x).
func (ip *Interpreter) qqForm(v Value) (*Symbol, Value, bool) {
	if v.Tag != VTPair {
		return nil, Value{}, false
	}
	p := v.Data.(*Pair)
	if p.Car.Tag != VTSymbol || p.Cdr.Tag != VTPair || p.Cdr.Data.(*Pair).Cdr.Tag != VTNil {
		return nil, Value{}, false
	}
	s := p.Car.Data.(*Symbol)
	switch s {
	case ip.sym.unquote, ip.sym.unquoteSplicing, ip.sym.quasiquote:
		return s, p.Cdr.Data.(*Pair).Car, true
	}
	return nil, Value{}, false
}

// evalQuasi runs the construction code of a quasiquote in env. Used by
// macroexpand, which shows quasiquoted templates already built.
func (ip *Interpreter) evalQuasi(tmpl Value, env *Env) Value {
	code := newCompileCtx(ip, env, nil).Compile(ip.quasi(tmpl, 1))
	out, err := ip.runNested(func(m *machine) { m.eval(code, env) })
	if err != nil {
		panic(asError(err))
	}
	return out
}

func (ip *Interpreter) initQuasiHelpers() {
	mk := func(name string, params []ParamSpec, impl NativeImpl) Value {
		return Value{Tag: VTPrim, Data: &Primitive{Name: name, Params: params, Ret: KAny, impl: impl}}
	}
	ip.qqCons = mk("cons", []ParamSpec{{Name: "a", Type: KAny}, {Name: "b", Type: KAny}}, func(_ *Interpreter, a []Value) Value {
		return Cons(a[0], a[1])
	})
	ip.qqList = mk("list", []ParamSpec{{Name: "xs", Type: KAny, Rest: true}}, func(_ *Interpreter, a []Value) Value {
		return List(a...)
	})
	ip.qqAppend = mk("append", []ParamSpec{{Name: "xs", Type: KAny, Rest: true}}, func(_ *Interpreter, a []Value) Value {
		return appendLists("unquote-splicing", a)
	})
	ip.qqVector = mk("list->vector", []ParamSpec{{Name: "xs", Type: KList}}, func(_ *Interpreter, a []Value) Value {
		xs, _ := ListToSlice(a[0])
		return Vec(xs)
	})
}

// appendLists concatenates lists; the last argument becomes the tail as is.
func appendLists(who string, xs []Value) Value {
	if len(xs) == 0 {
		return Nil
	}
	out := xs[len(xs)-1]
	for i := len(xs) - 2; i >= 0; i-- {
		items, ok := ListToSlice(xs[i])
		if !ok {
			panic(typeMismatch(who, i+1, KList, xs[i]))
		}
		out = ListTail(items, out)
	}
	return out
}

////////////////////////////////////////////////////////////////////////////////
//                              MACRO DEFINITIONS
////////////////////////////////////////////////////////////////////////////////

func registerMacroForms(ip *Interpreter) {
	// Macro definitions take effect at compile time so later forms of the
	// same body can use them; at run time they evaluate to the macro's name.
	ip.RegisterSyntax("define-macro", func(c *CompileCtx, form Value) Code {
		xs := forms(form, 2, -1)
		if xs[0].Tag != VTPair {
			panic(badForm(form, "define-macro: expected (name . pattern)"))
		}
		p := xs[0].Data.(*Pair)
		name := symbolOf(form, p.Car)
		mac := &Macro{Name: name.Name, pattern: p.Cdr, env: c.env}
		mac.body = c.Scope().CompileBody(xs[1:])
		c.env.DefineMacro(name, mac)
		return &constCode{v: SymVal(name)}
	})

	ip.RegisterSyntax("define-syntax", func(c *CompileCtx, form Value) Code {
		xs := forms(form, 2, 2)
		name := symbolOf(form, xs[0])
		c.env.DefineMacro(name, c.syntaxRules(name.Name, xs[1]))
		return &constCode{v: SymVal(name)}
	})

	scoped := func(c *CompileCtx, form Value) Code {
		xs := forms(form, 1, -1)
		bs, ok := ListToSlice(xs[0])
		if !ok {
			panic(badForm(form, "%s: bad bindings", headName(form)))
		}
		inner := c.Scope()
		for _, b := range bs {
			pair := forms(Cons(Nil, b), 2, 2)
			name := symbolOf(form, pair[0])
			inner.env.DefineMacro(name, inner.syntaxRules(name.Name, pair[1]))
		}
		return inner.CompileBody(xs[1:])
	}
	ip.RegisterSyntax("let-syntax", scoped)
	ip.RegisterSyntax("letrec-syntax", scoped)

	ip.RegisterSyntax("syntax-rules", func(c *CompileCtx, form Value) Code {
		panic(badForm(form, "syntax-rules: only valid in define-syntax"))
	})
}

// syntaxRules builds a macro from (syntax-rules (literal...) (pattern template)...).
func (c *CompileCtx) syntaxRules(name string, spec Value) *Macro {
	xs, ok := ListToSlice(spec)
	if !ok || len(xs) < 2 || xs[0].Tag != VTSymbol || xs[0].Data.(*Symbol).Name != "syntax-rules" {
		panic(badForm(spec, "define-syntax %s: expected (syntax-rules (literal...) rule...)", name))
	}
	lits, ok := ListToSlice(xs[1])
	if !ok {
		panic(badForm(spec, "syntax-rules: bad literal list"))
	}
	mac := &Macro{Name: name, literals: map[*Symbol]bool{}, rules: []macroRule{}}
	for _, l := range lits {
		mac.literals[symbolOf(spec, l)] = true
	}
	for _, r := range xs[2:] {
		rule, ok := ListToSlice(r)
		if !ok || len(rule) != 2 || rule[0].Tag != VTPair {
			panic(badForm(r, "syntax-rules %s: bad rule", name))
		}
		mac.rules = append(mac.rules, macroRule{pattern: rule[0], template: rule[1]})
	}
	return mac
}
