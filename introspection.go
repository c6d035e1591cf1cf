package scheme

// introspection.go, debug rendering and reflection over runtime values
//
// FINAL SURFACE
// -------------
//   Dump(v Value) string
//     • A debug tree of v: every node is shown with its tag, numbers with
//       their storage class (int32, int64, bignum, ratnum, flonum), pairs as
//       nested (pair car cdr) nodes. Shared nodes already on the current path
//       are shown as <cycle>.
//     • Not an external representation: it does not read back.
//
//   (*Interpreter) Describe(v Value) string
//     • Help text for a procedure or macro: signature line, then the doc
//       string registered with the primitive (if any).
//
//   Arity(v Value) (min, max int, ok bool)
//     • Argument counts accepted by a procedure (max < 0: variadic).
//
//   EnvNames(env *Env, inherited bool) []string
//     • Sorted variable names bound in env (and its parents when inherited).
//
// Dependencies: interpreter.go (Value API), printer.go (atoms), internal/numeric.

import (
	"fmt"
	"sort"
	"strings"
)

// ==============================
// ========== PUBLIC ============
// ==============================

// Dump renders a debug tree of v.
func Dump(v Value) string {
	d := &dumper{active: map[interface{}]bool{}}
	d.node(v, 0)
	return d.b.String()
}

// Arity reports the argument counts a procedure accepts.
func Arity(v Value) (int, int, bool) {
	switch v.Tag {
	case VTPrim:
		min, max := v.Data.(*Primitive).Arity()
		return min, max, true
	case VTClosure:
		c := v.Data.(*Closure)
		if c.Rest != nil {
			return len(c.Params), -1, true
		}
		return len(c.Params), len(c.Params), true
	case VTCont:
		return 0, -1, true
	}
	return 0, 0, false
}

// Describe returns help text for a procedure or macro value.
func (ip *Interpreter) Describe(v Value) string {
	switch v.Tag {
	case VTPrim:
		p := v.Data.(*Primitive)
		var parts []string
		for _, ps := range p.Params {
			s := ps.Name + ":" + ps.Type.String()
			switch {
			case ps.Rest:
				s += "..."
			case ps.Optional:
				s += "?"
			}
			parts = append(parts, s)
		}
		sig := fmt.Sprintf("(%s) -> %s", strings.TrimSpace(p.Name+" "+strings.Join(parts, " ")), p.Ret)
		if p.Doc == "" {
			return sig
		}
		return sig + "\n\n" + p.Doc
	case VTClosure:
		c := v.Data.(*Closure)
		name := c.Name
		if name == "" {
			name = "lambda"
		}
		return WriteString(Cons(ip.Sym(name), c.Formals))
	case VTCont:
		return "#<continuation> accepts any number of values"
	case VTMacro:
		m := v.Data.(*Macro)
		if m.IsSpecialForm() {
			return m.Name + ": special form"
		}
		return m.Name + ": macro"
	}
	return WriteString(v)
}

// EnvNames lists variable names bound in env, sorted.
func EnvNames(env *Env, inherited bool) []string {
	seen := map[string]bool{}
	for f := env; f != nil; f = f.parent {
		for _, s := range f.Bindings() {
			seen[s.Name] = true
		}
		if !inherited {
			break
		}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// ==============================
// ========= PRIVATE ============
// ==============================

type dumper struct {
	b      strings.Builder
	active map[interface{}]bool
}

func (d *dumper) line(depth int, format string, args ...interface{}) {
	d.b.WriteString(strings.Repeat("  ", depth))
	fmt.Fprintf(&d.b, format, args...)
	d.b.WriteByte('\n')
}

func (d *dumper) node(v Value, depth int) {
	switch v.Tag {
	case VTNum:
		n := v.Data.(Number)
		d.line(depth, "%s %s", n.Tag(), n)
		return
	case VTPair, VTVector, VTBox:
		if d.active[v.Data] {
			d.line(depth, "<cycle %s>", v.Tag)
			return
		}
		d.active[v.Data] = true
		defer delete(d.active, v.Data)
	}
	switch v.Tag {
	case VTPair:
		p := v.Data.(*Pair)
		d.line(depth, "pair")
		d.node(p.Car, depth+1)
		d.node(p.Cdr, depth+1)
	case VTVector:
		vec := v.Data.(*Vector)
		d.line(depth, "vector[%d]", vec.Len())
		for i := 0; i < vec.Len(); i++ {
			d.node(vec.Get(i), depth+1)
		}
	case VTBox:
		d.line(depth, "box")
		d.node(v.Data.(*Box).V, depth+1)
	case VTValues:
		xs := v.Data.([]Value)
		d.line(depth, "values[%d]", len(xs))
		for _, x := range xs {
			d.node(x, depth+1)
		}
	case VTStr:
		t := v.Data.(*Text)
		kind := "string"
		if t.constant {
			kind = "string/literal"
		}
		d.line(depth, "%s %s", kind, WriteString(v))
	case VTSymbol:
		s := v.Data.(*Symbol)
		if s.uninterned {
			d.line(depth, "symbol/uninterned %s", s.Name)
			return
		}
		d.line(depth, "symbol %s", s.Name)
	case VTPromise:
		p := v.Data.(*Promise).resolve()
		switch {
		case !p.done:
			d.line(depth, "promise/pending")
		case p.err != nil:
			d.line(depth, "promise/failed %s", p.err.Error())
		default:
			d.line(depth, "promise/forced")
			d.node(p.val, depth+1)
		}
	default:
		d.line(depth, "%s %s", v.Tag, WriteString(v))
	}
}
