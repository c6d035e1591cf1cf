// interpreter_exec.go: PRIVATE: execution & call engine.
//   - Runs compiled Code on the trampoline machine (vm.go) and bubbles
//     uncaught conditions as *Error without formatting.
//   - Implements procedure application, full and delimited continuations,
//     promises and the control primitives that need the machine.
//   - No exported identifiers here except the Continuation and Promise types.
//     The public facade lives in interpreter.go.
//
// ──────────────────────────────────────────────────────────────────────────────
// CONTINUATIONS
// =============
//
// Full continuations (call/cc)
// ----------------------------
// Capture copies the frame slice and remembers the wind list and the run
// barrier. Invocation:
//  1. checks the barrier (a continuation cannot jump into a host run that
//     already returned);
//  2. runs after thunks of winds being left (innermost first), then before
//     thunks of winds being entered (outermost first);
//  3. replaces the frame slice with a fresh copy of the captured one and
//     delivers the value(s).
//
// Copies are taken both on capture and on resume, so one continuation can be
// invoked any number of times.
//
// Delimited continuations (shift/reset)
// -------------------------------------
// `reset` pushes a promptFrame recording the wind depth. `shift` captures the
// frames above the nearest promptFrame, keeps the prompt, unwinds to the prompt's depth and runs its body there.
// Invoking the captured continuation pushes a new promptFrame, rewinds the
// captured winds on top of the current ones, and appends the captured frames;
// it returns to its caller when the frames run out.
//
// Error policy
// ------------
//   - Natives panic *Error; steps() recovers and the machine raises it.
//   - Uncaught conditions unwind every wind and end the run with that error.
//   - Go runtime panics become InternalError conditions.
package scheme

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

////////////////////////////////////////////////////////////////////////////////
//                           VALUES OWNED BY THE MACHINE
////////////////////////////////////////////////////////////////////////////////

// Continuation is a captured continuation. Delimited continuations return to
// their caller; full ones abandon it.
type Continuation struct {
	stack     []frame
	winds     *windList // full: the whole list; delimited: the part above the prompt
	bar       *barrier
	delimited bool
}

// Promise is a delayed computation, forced at most once.
type Promise struct {
	done bool
	val  Value
	err  *Error

	code Code
	env  *Env
	lazy bool     // delay-force: the body yields another promise
	fwd  *Promise // shares the result of fwd once chained
}

func (p *Promise) resolve() *Promise {
	for p.fwd != nil {
		p = p.fwd
	}
	return p
}

// fail memoizes a condition raised while forcing.
func (p *Promise) fail(e *Error) {
	p = p.resolve()
	if !p.done {
		p.done, p.err = true, e
		p.code, p.env = nil, nil
	}
}

// controlImpl implements a primitive that needs the machine: it may push
// frames, schedule code or replace the continuation. It must leave either
// m.val or m.code set.
type controlImpl func(m *machine, args []Value)

////////////////////////////////////////////////////////////////////////////////
//                                 APPLICATION
////////////////////////////////////////////////////////////////////////////////

func (m *machine) apply(fn Value, args []Value) {
	switch fn.Tag {
	case VTPrim:
		p := fn.Data.(*Primitive)
		checkArgs(p, args)
		if p.control != nil {
			p.control(m, args)
			return
		}
		v := p.impl(m.ip, args)
		if p.Ret != KAny && !p.Ret.Accepts(v) {
			panic(&Error{Kind: InternalError, Who: p.Name, Msg: fmt.Sprintf("returned %s, declared %s", WriteString(v), p.Ret)})
		}
		m.val = v
	case VTClosure:
		c := fn.Data.(*Closure)
		m.eval(c.Body, bindParams(c, args))
	case VTCont:
		m.throw(fn.Data.(*Continuation), args)
	default:
		panic(&Error{Kind: TypeMismatch, Msg: "not a procedure: " + WriteString(fn)})
	}
}

func checkArgs(p *Primitive, args []Value) {
	min, max := p.Arity()
	if len(args) < min || (max >= 0 && len(args) > max) {
		panic(wrongArity(p.Name, min, max, len(args)))
	}
	for i, a := range args {
		ps := p.Params[len(p.Params)-1]
		if i < len(p.Params) {
			ps = p.Params[i]
		}
		if !ps.Type.Accepts(a) {
			panic(typeMismatch(p.Name, i+1, ps.Type, a))
		}
	}
}

func bindParams(c *Closure, args []Value) *Env {
	n := len(c.Params)
	if len(args) < n || (c.Rest == nil && len(args) > n) {
		max := n
		if c.Rest != nil {
			max = -1
		}
		panic(wrongArity(c.Name, n, max, len(args)))
	}
	env := NewEnv(c.Env)
	for i, s := range c.Params {
		env.Define(s, args[i])
	}
	if c.Rest != nil {
		env.Define(c.Rest, List(args[n:]...))
	}
	return env
}

// spread turns a (possibly multiple) value into an argument slice.
func spread(v Value) []Value {
	if v.Tag == VTValues {
		return append([]Value(nil), v.Data.([]Value)...)
	}
	return []Value{v}
}

type cwvFrame struct{ consumer Value }

func (f *cwvFrame) resume(m *machine) { m.apply(f.consumer, spread(m.val)) }

////////////////////////////////////////////////////////////////////////////////
//                                CONTINUATIONS
////////////////////////////////////////////////////////////////////////////////

func (m *machine) capture() *Continuation {
	return &Continuation{stack: append([]frame(nil), m.stack...), winds: m.winds, bar: m.bar}
}

func (m *machine) throw(k *Continuation, args []Value) {
	v := MultipleValues(args)
	if k.delimited {
		m.push(&promptFrame{depth: m.winds.Len()})
		target := m.winds
		for i := 0; i < k.winds.Len(); i++ {
			target = target.Append(k.winds.Get(i))
		}
		m.transition(target, func(m *machine) {
			m.stack = append(m.stack, k.stack...)
			m.val = v
		})
		return
	}
	if k.bar != m.bar {
		panic(NewError(InternalError, "continuation invoked outside the host call that captured it"))
	}
	m.transition(k.winds, func(m *machine) {
		m.stack = append(make([]frame, 0, len(k.stack)+8), k.stack...)
		m.val = v
	})
}

// promptFrame delimits shift. Values pass through it unchanged.
type promptFrame struct{ depth int }

func (f *promptFrame) resume(m *machine) {}

func (m *machine) reset(body Code, env *Env) {
	m.push(&promptFrame{depth: m.winds.Len()})
	m.eval(body, env)
}

func (m *machine) shift(k *Symbol, body Code, env *Env) {
	i := len(m.stack) - 1
	for ; i >= 0; i-- {
		if _, ok := m.stack[i].(*promptFrame); ok {
			break
		}
	}
	depth := 0
	if i >= 0 {
		depth = m.stack[i].(*promptFrame).depth
	}
	cont := &Continuation{
		stack:     append([]frame(nil), m.stack[i+1:]...),
		winds:     m.winds.Slice(depth, m.winds.Len()),
		bar:       m.bar,
		delimited: true,
	}
	m.stack = m.stack[:i+1]
	benv := NewEnv(env)
	benv.Define(k, Value{Tag: VTCont, Data: cont})
	m.transition(m.windPrefix(depth), func(m *machine) { m.eval(body, benv) })
}

////////////////////////////////////////////////////////////////////////////////
//                                  PROMISES
////////////////////////////////////////////////////////////////////////////////

type forceFrame struct{ p *Promise }

func (f *forceFrame) resume(m *machine) {
	p := f.p.resolve()
	if p.done {
		m.deliver(p)
		return
	}
	v := single(m.val)
	if p.lazy && v.Tag == VTPromise {
		q := v.Data.(*Promise).resolve()
		if q == p {
			m.push(f)
			m.eval(p.code, p.env)
			return
		}
		if q.done {
			p.done, p.val, p.err = true, q.val, q.err
			p.code, p.env = nil, nil
			m.deliver(p)
			return
		}
		p.code, p.env, p.lazy = q.code, q.env, q.lazy
		q.fwd = p
		m.push(f)
		m.eval(p.code, p.env)
		return
	}
	p.done, p.val = true, v
	p.code, p.env = nil, nil
	m.val = v
}

func (m *machine) deliver(p *Promise) {
	if p.err != nil {
		panic(p.err)
	}
	m.val = p.val
}

func (m *machine) force(v Value) {
	if v.Tag != VTPromise {
		m.val = v
		return
	}
	p := v.Data.(*Promise).resolve()
	if p.done {
		m.deliver(p)
		return
	}
	m.push(&forceFrame{p: p})
	m.eval(p.code, p.env)
}

////////////////////////////////////////////////////////////////////////////////
//                              TOP-LEVEL RUNS
////////////////////////////////////////////////////////////////////////////////

// topFrame compiles and runs a sequence of top-level forms one at a time, so
// definitions and macros made by one form are visible to the next. A
// top-level begin is spliced into the sequence. Each form runs under its own
// prompt, so a shift without a reset never captures the forms after it.
type topFrame struct {
	forms []Value
	next  int
	ctx   *CompileCtx
	env   *Env
}

func (f *topFrame) resume(m *machine) {
	if f.next >= len(f.forms) {
		return
	}
	form, body, spliced := f.ctx.expandTop(f.forms[f.next])
	if spliced {
		forms := make([]Value, 0, len(f.forms)+len(body))
		forms = append(forms, body...)
		forms = append(forms, f.forms[f.next+1:]...)
		m.val = Void
		m.push(&topFrame{forms: forms, ctx: f.ctx, env: f.env})
		return
	}
	if f.next+1 < len(f.forms) {
		m.push(&topFrame{forms: f.forms, next: f.next + 1, ctx: f.ctx, env: f.env})
	}
	m.src = f.ctx.src
	m.push(&promptFrame{depth: m.winds.Len()})
	m.eval(f.ctx.Compile(form), f.env)
}

// runTop evaluates one form on a machine that shares the top-level barrier.
func (ip *Interpreter) runTop(form Value, env *Env, src *SourceRef) (Value, error) {
	m := newMachine(ip, ip.top)
	m.src = src
	m.push(&topFrame{forms: []Value{form}, ctx: newCompileCtx(ip, env, src), env: env})
	v, err := m.execute()
	if err != nil {
		ip.abortLoads()
	}
	return v, err
}

const maxNesting = 10000

func (ip *Interpreter) newBarrier() *barrier {
	ip.runs++
	return &barrier{id: ip.runs}
}

// runNested runs setup on a fresh machine with its own barrier. It is used
// when host code (Apply, macro transformers) needs a value synchronously.
func (ip *Interpreter) runNested(setup func(m *machine)) (v Value, err error) {
	if ip.depth >= maxNesting {
		return Void, NewError(InternalError, "nested evaluation too deep")
	}
	ip.depth++
	defer func() { ip.depth-- }()
	m := newMachine(ip, ip.newBarrier())
	m.push(&funcFrame{k: setup})
	v, err = m.execute()
	if err != nil && ip.depth == 1 {
		ip.abortLoads()
	}
	return v, err
}

////////////////////////////////////////////////////////////////////////////////
//                                 LOADING
////////////////////////////////////////////////////////////////////////////////

// loadDoneFrame commits a module once its last form has run.
type loadDoneFrame struct{ canon string }

func (f *loadDoneFrame) resume(m *machine) {
	m.ip.finishLoad(f.canon)
	m.val = Void
}

// load reads a file and schedules its forms. With require, a file already
// loaded (or being loaded) is not run again.
func (m *machine) load(spec string, env *Env, require bool) {
	ip := m.ip
	importer := ""
	if n := len(ip.loadStack); n > 0 {
		importer = ip.loadStack[n-1]
	}
	canon, src, err := resolveAndFetch(spec, importer, ip.cfg.SearchPath)
	if err != nil {
		panic(NewError(UserCondition, "%s", err.Error()))
	}
	if require {
		if rec, ok := ip.modules[canon]; ok {
			if rec.state == modLoading {
				panic(NewError(UserCondition, "require cycle detected: %s", joinCyclePath(ip.loadStack, canon)))
			}
			ip.log.WithField("module", canon).Debug("require: cached")
			m.val = Void
			return
		}
	}
	forms, spans, perr := ParseWithSpans(src, ip.Symbols)
	if perr != nil {
		panic(&Error{Kind: SyntaxError, Msg: WrapErrorWithName(perr, canon, src).Error()})
	}
	ip.log.WithFields(logrus.Fields{"module": canon, "forms": len(forms), "require": require}).Debug("load")
	ip.startLoad(canon, src)
	sr := &SourceRef{Name: canon, Src: src, Spans: spans}
	m.push(&loadDoneFrame{canon: canon})
	m.val = Void
	if len(forms) > 0 {
		m.push(&topFrame{forms: forms, ctx: newCompileCtx(ip, env, sr), env: env})
	}
}

////////////////////////////////////////////////////////////////////////////////
//                             CONTROL PRIMITIVES
////////////////////////////////////////////////////////////////////////////////

func (ip *Interpreter) registerControl(name string, params []ParamSpec, impl controlImpl) {
	p := &Primitive{Name: name, Params: params, Ret: KAny, control: impl}
	ip.Core.Define(ip.Intern(name), Value{Tag: VTPrim, Data: p})
}

// ExitError is returned by a run that called (exit).
type ExitError struct{ Code int }

func (e *ExitError) Error() string { return fmt.Sprintf("exit %d", e.Code) }

func registerControlBuiltins(ip *Interpreter) {
	callcc := func(m *machine, args []Value) {
		m.apply(args[0], []Value{{Tag: VTCont, Data: m.capture()}})
	}
	ip.registerControl("call-with-current-continuation", []ParamSpec{{Name: "proc", Type: KProc}}, callcc)
	ip.registerControl("call/cc", []ParamSpec{{Name: "proc", Type: KProc}}, callcc)
	setBuiltinDoc(ip, "call/cc", `Call proc with the current continuation.

The continuation is a procedure of any number of arguments. Invoking it,
even after call/cc has returned, abandons the current computation and
returns its arguments from the call/cc expression. Continuations may be
invoked any number of times; dynamic-wind thunks run on the way out and in.`)

	ip.registerControl("values", []ParamSpec{{Name: "xs", Type: KAny, Rest: true}}, func(m *machine, args []Value) {
		m.val = MultipleValues(append([]Value(nil), args...))
	})
	setBuiltinDoc(ip, "values", `Return zero or more values to the continuation.`)

	ip.registerControl("call-with-values", []ParamSpec{{Name: "producer", Type: KProc}, {Name: "consumer", Type: KProc}}, func(m *machine, args []Value) {
		m.push(&cwvFrame{consumer: args[1]})
		m.apply(args[0], nil)
	})
	setBuiltinDoc(ip, "call-with-values", `Call producer with no arguments and pass the values it returns to consumer.`)

	ip.registerControl("dynamic-wind", []ParamSpec{{Name: "before", Type: KProc}, {Name: "thunk", Type: KProc}, {Name: "after", Type: KProc}}, func(m *machine, args []Value) {
		m.dynamicWind(args[0], args[1], args[2])
	})
	setBuiltinDoc(ip, "dynamic-wind", `Call thunk, running before each time control enters its extent and
after each time control leaves it, including jumps through continuations.`)

	ip.registerControl("with-exception-handler", []ParamSpec{{Name: "handler", Type: KProc}, {Name: "thunk", Type: KProc}}, func(m *machine, args []Value) {
		m.push(&handlerFrame{handler: args[0], depth: m.winds.Len()})
		m.apply(args[1], nil)
	})
	setBuiltinDoc(ip, "with-exception-handler", `Call thunk with handler installed.

When a condition is raised inside thunk, control returns to the point where
the handler was installed (after thunks run) and handler is called with the
condition; its value becomes the value of the with-exception-handler form.
raise-continuable instead calls handler at the raise point and returns its
value there.`)

	ip.registerControl("raise", []ParamSpec{{Name: "obj", Type: KAny}}, func(m *machine, args []Value) {
		m.raise(ConditionOf(args[0]), false)
	})
	ip.registerControl("raise-continuable", []ParamSpec{{Name: "obj", Type: KAny}}, func(m *machine, args []Value) {
		m.raise(ConditionOf(args[0]), true)
	})

	ip.registerControl("error", []ParamSpec{{Name: "args", Type: KAny, Rest: true}}, func(m *machine, args []Value) {
		e := &Error{Kind: UserCondition}
		if len(args) > 1 && args[0].Tag == VTSymbol && args[1].Tag == VTStr {
			e.Who = args[0].Data.(*Symbol).Name
			args = args[1:]
		}
		if len(args) == 0 {
			panic(wrongArity("error", 1, -1, 0))
		}
		if args[0].Tag != VTStr {
			panic(typeMismatch("error", 1, KString, args[0]))
		}
		e.Msg = args[0].Data.(*Text).String()
		e.Irritants = append([]Value(nil), args[1:]...)
		m.raise(e, false)
	})
	setBuiltinDoc(ip, "error", `Raise a condition: (error [who] message irritant...).`)

	ip.registerControl("force", []ParamSpec{{Name: "promise", Type: KAny}}, func(m *machine, args []Value) {
		m.force(args[0])
	})
	setBuiltinDoc(ip, "force", `Force a promise, memoizing its value or the condition it raised.
Non-promises are returned unchanged.`)

	ip.registerControl("apply", []ParamSpec{{Name: "proc", Type: KProc}, {Name: "args", Type: KAny, Rest: true}}, func(m *machine, args []Value) {
		if len(args) == 1 {
			m.apply(args[0], nil)
			return
		}
		last, ok := ListToSlice(args[len(args)-1])
		if !ok {
			panic(typeMismatch("apply", len(args), KList, args[len(args)-1]))
		}
		all := append(append([]Value(nil), args[1:len(args)-1]...), last...)
		m.apply(args[0], all)
	})

	ip.registerControl("eval", []ParamSpec{{Name: "expr", Type: KAny}, {Name: "env", Type: KEnv, Optional: true}}, func(m *machine, args []Value) {
		env := m.ip.Global
		if len(args) > 1 {
			env = args[1].Data.(*Env)
		}
		ctx := newCompileCtx(m.ip, env, nil)
		m.eval(ctx.Compile(args[0]), env)
	})

	ip.registerControl("load", []ParamSpec{{Name: "file", Type: KString}, {Name: "env", Type: KEnv, Optional: true}}, func(m *machine, args []Value) {
		env := m.ip.Global
		if len(args) > 1 {
			env = args[1].Data.(*Env)
		}
		m.load(args[0].Data.(*Text).String(), env, false)
	})
	ip.registerControl("require", []ParamSpec{{Name: "lib", Type: KAny}}, func(m *machine, args []Value) {
		var name string
		switch args[0].Tag {
		case VTSymbol:
			name = args[0].Data.(*Symbol).Name
		case VTStr:
			name = args[0].Data.(*Text).String()
		default:
			panic(typeMismatch("require", 1, KString, args[0]))
		}
		m.load(name, m.ip.Global, true)
	})

	ip.registerControl("exit", []ParamSpec{{Name: "code", Type: KAny, Optional: true}}, func(m *machine, args []Value) {
		code := 0
		if len(args) > 0 {
			switch {
			case args[0].Tag == VTBool && !args[0].Data.(bool):
				code = 1
			case KIndex.Accepts(args[0]):
				code = toIndex(args[0])
			}
		}
		m.ip.log.WithField("code", code).Debug("exit requested")
		m.stack = m.stack[:0]
		m.transition(m.windPrefix(0), func(m *machine) {
			m.stack = m.stack[:0]
			m.exit = &ExitError{Code: code}
		})
	})
}
