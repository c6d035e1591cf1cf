package scheme

// ---- parameter shorthands ----------------------------------------------

func arg(name string, k Kind) ParamSpec  { return ParamSpec{Name: name, Type: k} }
func opt(name string, k Kind) ParamSpec  { return ParamSpec{Name: name, Type: k, Optional: true} }
func rest(name string, k Kind) ParamSpec { return ParamSpec{Name: name, Type: k, Rest: true} }

func params(ps ...ParamSpec) []ParamSpec { return ps }

// ---- pairs, lists, vectors, boxes --------------------------------------

func registerCoreBuiltins(ip *Interpreter) {
	// cons(a, b) -> pair
	ip.RegisterNative("cons", params(arg("a", KAny), arg("b", KAny)), KPair,
		func(_ *Interpreter, a []Value) Value { return Cons(a[0], a[1]) })
	setBuiltinDoc(ip, "cons", `Allocate a fresh pair whose car is a and whose cdr is b.`)

	ip.RegisterNative("car", params(arg("pair", KPair)), KAny,
		func(_ *Interpreter, a []Value) Value { return a[0].Data.(*Pair).Car })
	ip.RegisterNative("cdr", params(arg("pair", KPair)), KAny,
		func(_ *Interpreter, a []Value) Value { return a[0].Data.(*Pair).Cdr })

	// caar ... cddddr
	for _, path := range cxrPaths() {
		path := path
		name := "c" + path + "r"
		ip.RegisterNative(name, params(arg("x", KAny)), KAny, func(_ *Interpreter, a []Value) Value {
			v := a[0]
			for i := len(path) - 1; i >= 0; i-- {
				if v.Tag != VTPair {
					panic(typeMismatch(name, 1, KPair, a[0]))
				}
				if path[i] == 'a' {
					v = v.Data.(*Pair).Car
				} else {
					v = v.Data.(*Pair).Cdr
				}
			}
			return v
		})
	}

	ip.RegisterNative("set-car!", params(arg("pair", KPair), arg("v", KAny)), KAny,
		func(_ *Interpreter, a []Value) Value {
			a[0].Data.(*Pair).Car = a[1]
			return Void
		})
	ip.RegisterNative("set-cdr!", params(arg("pair", KPair), arg("v", KAny)), KAny,
		func(_ *Interpreter, a []Value) Value {
			a[0].Data.(*Pair).Cdr = a[1]
			return Void
		})
	setBuiltinDoc(ip, "set-cdr!", `Replace the cdr of pair. The pair may become part of a cycle;
the printer labels shared structure with #n= / #n#.`)

	ip.RegisterNative("list", params(rest("xs", KAny)), KList,
		func(_ *Interpreter, a []Value) Value { return List(a...) })

	ip.RegisterNative("length", params(arg("list", KList)), KIndex,
		func(_ *Interpreter, a []Value) Value {
			n := 0
			for v := a[0]; v.Tag == VTPair; v = v.Data.(*Pair).Cdr {
				n++
			}
			return Int(int64(n))
		})

	ip.RegisterNative("list-tail", params(arg("list", KAny), arg("k", KIndex)), KAny,
		func(_ *Interpreter, a []Value) Value { return listTail("list-tail", a[0], toIndex(a[1])) })
	ip.RegisterNative("list-ref", params(arg("list", KAny), arg("k", KIndex)), KAny,
		func(_ *Interpreter, a []Value) Value {
			v := listTail("list-ref", a[0], toIndex(a[1]))
			if v.Tag != VTPair {
				failWho("list-ref", TypeMismatch, "index %d out of range", toIndex(a[1]))
			}
			return v.Data.(*Pair).Car
		})
	ip.RegisterNative("list-copy", params(arg("list", KAny)), KAny,
		func(_ *Interpreter, a []Value) Value {
			var xs []Value
			v := a[0]
			for v.Tag == VTPair {
				xs = append(xs, v.Data.(*Pair).Car)
				v = v.Data.(*Pair).Cdr
			}
			return ListTail(xs, v)
		})
	ip.RegisterNative("last-pair", params(arg("list", KPair)), KPair,
		func(_ *Interpreter, a []Value) Value {
			v := a[0]
			for {
				next := v.Data.(*Pair).Cdr
				if next.Tag != VTPair {
					return v
				}
				v = next
			}
		})

	ip.RegisterNative("append", params(rest("lists", KAny)), KAny,
		func(_ *Interpreter, a []Value) Value { return appendLists("append", a) })
	setBuiltinDoc(ip, "append", `Concatenate lists. Every argument but the last must be a proper
list and is copied; the last becomes the tail of the result as is.`)

	ip.RegisterNative("reverse", params(arg("list", KList)), KList,
		func(_ *Interpreter, a []Value) Value {
			out := Nil
			for v := a[0]; v.Tag == VTPair; v = v.Data.(*Pair).Cdr {
				out = Cons(v.Data.(*Pair).Car, out)
			}
			return out
		})

	// memq / memv / member, assq / assv / assoc
	registerSearch(ip, "memq", Eqv, false)
	registerSearch(ip, "memv", Eqv, false)
	registerSearch(ip, "member", Equal, false)
	registerSearch(ip, "assq", Eqv, true)
	registerSearch(ip, "assv", Eqv, true)
	registerSearch(ip, "assoc", Equal, true)

	// ---- vectors ----

	ip.RegisterNative("vector", params(rest("xs", KAny)), KVector,
		func(_ *Interpreter, a []Value) Value { return Vec(append([]Value(nil), a...)) })
	ip.RegisterNative("make-vector", params(arg("k", KIndex), opt("fill", KAny)), KVector,
		func(_ *Interpreter, a []Value) Value {
			fill := Void
			if len(a) > 1 {
				fill = a[1]
			}
			xs := make([]Value, toIndex(a[0]))
			for i := range xs {
				xs[i] = fill
			}
			return Vec(xs)
		})
	ip.RegisterNative("vector-length", params(arg("v", KVector)), KIndex,
		func(_ *Interpreter, a []Value) Value { return Int(int64(a[0].Data.(*Vector).Len())) })
	ip.RegisterNative("vector-ref", params(arg("v", KVector), arg("k", KIndex)), KAny,
		func(_ *Interpreter, a []Value) Value {
			vec := a[0].Data.(*Vector)
			return vec.Get(vectorIndex("vector-ref", vec, a[1]))
		})
	ip.RegisterNative("vector-set!", params(arg("v", KVector), arg("k", KIndex), arg("x", KAny)), KAny,
		func(_ *Interpreter, a []Value) Value {
			vec := a[0].Data.(*Vector)
			vec.Set(vectorIndex("vector-set!", vec, a[1]), a[2])
			return Void
		})
	ip.RegisterNative("vector->list", params(arg("v", KVector)), KList,
		func(_ *Interpreter, a []Value) Value { return List(a[0].Data.(*Vector).Snapshot()...) })
	ip.RegisterNative("list->vector", params(arg("list", KList)), KVector,
		func(_ *Interpreter, a []Value) Value {
			xs, _ := ListToSlice(a[0])
			return Vec(xs)
		})
	ip.RegisterNative("vector-fill!", params(arg("v", KVector), arg("x", KAny)), KAny,
		func(_ *Interpreter, a []Value) Value {
			vec := a[0].Data.(*Vector)
			for i := 0; i < vec.Len(); i++ {
				vec.Set(i, a[1])
			}
			return Void
		})
	ip.RegisterNative("vector-copy", params(arg("v", KVector)), KVector,
		func(_ *Interpreter, a []Value) Value {
			// the persistent list is shared; Set on either side copies
			return Value{Tag: VTVector, Data: &Vector{items: a[0].Data.(*Vector).items}}
		})

	// ---- boxes ----

	ip.RegisterNative("box", params(arg("v", KAny)), KBox,
		func(_ *Interpreter, a []Value) Value { return BoxOf(a[0]) })
	ip.RegisterNative("unbox", params(arg("b", KBox)), KAny,
		func(_ *Interpreter, a []Value) Value { return a[0].Data.(*Box).V })
	ip.RegisterNative("set-box!", params(arg("b", KBox), arg("v", KAny)), KAny,
		func(_ *Interpreter, a []Value) Value {
			a[0].Data.(*Box).V = a[1]
			return Void
		})

	// ---- promises ----

	ip.RegisterNative("make-promise", params(arg("v", KAny)), KPromise,
		func(_ *Interpreter, a []Value) Value {
			if a[0].Tag == VTPromise {
				return a[0]
			}
			return Value{Tag: VTPromise, Data: &Promise{done: true, val: a[0]}}
		})
	setBuiltinDoc(ip, "make-promise", `Return a promise already forced to v (v itself when it is a promise).`)

	// ---- type predicates ----

	preds := []struct {
		name string
		test func(Value) bool
	}{
		{"null?", func(v Value) bool { return v.Tag == VTNil }},
		{"pair?", func(v Value) bool { return v.Tag == VTPair }},
		{"list?", IsList},
		{"boolean?", func(v Value) bool { return v.Tag == VTBool }},
		{"symbol?", func(v Value) bool { return v.Tag == VTSymbol }},
		{"keyword?", func(v Value) bool { return v.Tag == VTKeyword }},
		{"char?", func(v Value) bool { return v.Tag == VTChar }},
		{"string?", func(v Value) bool { return v.Tag == VTStr }},
		{"vector?", func(v Value) bool { return v.Tag == VTVector }},
		{"procedure?", IsProcedure},
		{"promise?", func(v Value) bool { return v.Tag == VTPromise }},
		{"box?", func(v Value) bool { return v.Tag == VTBox }},
		{"eof-object?", func(v Value) bool { return v.Tag == VTEOF }},
		{"environment?", func(v Value) bool { return v.Tag == VTEnv }},
		{"void?", func(v Value) bool { return v.Tag == VTVoid }},
	}
	for _, p := range preds {
		test := p.test
		ip.RegisterNative(p.name, params(arg("x", KAny)), KBool,
			func(_ *Interpreter, a []Value) Value { return Bool(test(a[0])) })
	}
}

// cxrPaths lists the a/d paths of the composed accessors, two to four deep.
func cxrPaths() []string {
	var out []string
	var grow func(prefix string)
	grow = func(prefix string) {
		if len(prefix) >= 2 {
			out = append(out, prefix)
		}
		if len(prefix) == 4 {
			return
		}
		grow(prefix + "a")
		grow(prefix + "d")
	}
	grow("")
	return out
}

func listTail(who string, v Value, k int) Value {
	for i := 0; i < k; i++ {
		if v.Tag != VTPair {
			failWho(who, TypeMismatch, "index %d out of range", k)
		}
		v = v.Data.(*Pair).Cdr
	}
	return v
}

func vectorIndex(who string, vec *Vector, k Value) int {
	i := toIndex(k)
	if i >= vec.Len() {
		failWho(who, TypeMismatch, "index %d out of range for vector of length %d", i, vec.Len())
	}
	return i
}

// registerSearch installs a mem*/ass* primitive. The prelude wraps member
// and assoc to accept a comparison procedure.
func registerSearch(ip *Interpreter, name string, eq func(a, b Value) bool, assoc bool) {
	ip.RegisterNative(name, params(arg("x", KAny), arg("list", KAny)), KAny, func(_ *Interpreter, a []Value) Value {
		for v := a[1]; v.Tag == VTPair; v = v.Data.(*Pair).Cdr {
			item := v.Data.(*Pair).Car
			if assoc {
				if item.Tag != VTPair {
					panic(typeMismatch(name, 2, KPair, item))
				}
				if eq(a[0], item.Data.(*Pair).Car) {
					return item
				}
				continue
			}
			if eq(a[0], item) {
				return v
			}
		}
		return False
	})
}
