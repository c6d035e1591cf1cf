// vm.go
package scheme

// The trampoline machine.
// - One machine per run; no package-level mutability.
// - The continuation is an explicit slice of frames. Frames are immutable
//   once pushed, so capturing a continuation is a slice copy.
// - A step either runs `code` (which may set a new `code`, push frames, or
//   produce `val`) or pops the top frame and resumes it with `val`.
// - Tail calls set `code` without pushing, so the host stack never grows.

import (
	"github.com/benbjohnson/immutable"
)

// -----------------------------
// Machine state
// -----------------------------

// Code is one compiled expression.
type Code interface {
	run(m *machine)
}

// simpleCode can be evaluated without touching the machine (constants and
// variable references). Combinations evaluate simple operands inline.
type simpleCode interface {
	Code
	value(env *Env) Value
}

type frame interface {
	resume(m *machine)
}

// barrier identifies the host run a full continuation belongs to. It must
// not be zero-sized: distinct zero-size allocations may share an address.
type barrier struct{ id uint64 }

type windFrame struct {
	before, after Value
}

type windList = immutable.List[*windFrame]

type machine struct {
	ip    *Interpreter
	val   Value
	code  Code
	env   *Env
	stack []frame
	winds *windList
	bar   *barrier
	pos   Span       // last combination applied, for error locations
	src   *SourceRef // source pos refers to

	failure *Error     // uncaught condition, reported once winds are unwound
	exit    *ExitError // (exit) was called
}

func newMachine(ip *Interpreter, bar *barrier) *machine {
	return &machine{ip: ip, val: Void, winds: immutable.NewList[*windFrame](), bar: bar}
}

func (m *machine) push(f frame) { m.stack = append(m.stack, f) }

// eval schedules c in env.
func (m *machine) eval(c Code, env *Env) {
	m.code, m.env = c, env
}

// -----------------------------
// Run loop
// -----------------------------

// execute runs until the stack is empty and returns the final value or the
// uncaught condition.
func (m *machine) execute() (Value, error) {
	for {
		done, e := m.steps()
		if e != nil {
			m.raise(e, false)
			continue
		}
		if done {
			if m.exit != nil {
				return Void, m.exit
			}
			if m.failure != nil {
				return Void, m.failure
			}
			return m.val, nil
		}
	}
}

func (m *machine) steps() (done bool, err *Error) {
	defer func() {
		if r := recover(); r != nil {
			err = internalError(r)
		}
	}()
	for {
		if c := m.code; c != nil {
			m.code = nil
			c.run(m)
			continue
		}
		n := len(m.stack)
		if n == 0 {
			return true, nil
		}
		f := m.stack[n-1]
		m.stack[n-1] = nil
		m.stack = m.stack[:n-1]
		f.resume(m)
	}
}

// -----------------------------
// Conditions
// -----------------------------

// handlerFrame marks the dynamic extent of a with-exception-handler thunk.
// depth is the length of the wind list at install time.
type handlerFrame struct {
	handler Value
	depth   int
}

func (f *handlerFrame) resume(m *machine) {}

// maskFrame hides the handler that is currently running for
// raise-continuable (and every frame down to it) from nested raises.
type maskFrame struct {
	skip int
}

func (f *maskFrame) resume(m *machine) {}

// findHandler returns the index of the innermost visible handler frame, or -1.
func (m *machine) findHandler() int {
	for i := len(m.stack) - 1; i >= 0; i-- {
		switch f := m.stack[i].(type) {
		case *handlerFrame:
			return i
		case *maskFrame:
			i -= f.skip
		}
	}
	return -1
}

// raise delivers e to the innermost handler. Non-continuable raises abort to
// the handler's install site; the handler's value replaces the protected
// expression. Continuable raises call the handler in place.
func (m *machine) raise(e *Error, continuable bool) {
	m.code = nil
	if e.Line == 0 && !m.pos.IsZero() {
		e.Line, e.Col, e.Src = m.pos.Line, m.pos.Col, m.src
	}
	i := m.findHandler()
	if !continuable {
		lo := i
		if lo < 0 {
			lo = 0
		}
		for j := len(m.stack) - 1; j >= lo; j-- {
			if ff, ok := m.stack[j].(*forceFrame); ok {
				ff.p.fail(e)
			}
		}
	}
	if i < 0 {
		m.stack = m.stack[:0]
		m.failure = e
		m.transition(immutable.NewList[*windFrame](), func(m *machine) { m.val = Void })
		return
	}
	hf := m.stack[i].(*handlerFrame)
	if continuable {
		m.push(&maskFrame{skip: len(m.stack) - i})
		m.apply(hf.handler, []Value{e.Value()})
		return
	}
	m.failure = nil
	m.stack = m.stack[:i]
	m.transition(m.windPrefix(hf.depth), func(m *machine) {
		m.apply(hf.handler, []Value{e.Value()})
	})
}

// -----------------------------
// Dynamic wind
// -----------------------------

type windStep struct {
	thunk Value
	winds *windList // in effect while thunk runs
}

// windSteps lists the after thunks (innermost first) and then the before
// thunks (outermost first) needed to move from one wind list to another.
func windSteps(from, to *windList) []windStep {
	common := 0
	for common < from.Len() && common < to.Len() && from.Get(common) == to.Get(common) {
		common++
	}
	var steps []windStep
	for i := from.Len() - 1; i >= common; i-- {
		steps = append(steps, windStep{thunk: from.Get(i).after, winds: from.Slice(0, i)})
	}
	for i := common; i < to.Len(); i++ {
		steps = append(steps, windStep{thunk: to.Get(i).before, winds: to.Slice(0, i)})
	}
	return steps
}

type transitionFrame struct {
	steps []windStep
	next  int
	final *windList
	k     func(m *machine)
}

func (f *transitionFrame) resume(m *machine) { m.stepTransition(f.steps, f.next, f.final, f.k) }

// windPrefix returns the outermost n winds.
func (m *machine) windPrefix(n int) *windList {
	if n >= m.winds.Len() {
		return m.winds
	}
	return m.winds.Slice(0, n)
}

// transition runs the wind thunks between the current winds and to, then k.
func (m *machine) transition(to *windList, k func(m *machine)) {
	m.stepTransition(windSteps(m.winds, to), 0, to, k)
}

func (m *machine) stepTransition(steps []windStep, i int, final *windList, k func(m *machine)) {
	if i == len(steps) {
		m.winds = final
		k(m)
		return
	}
	m.winds = steps[i].winds
	m.push(&transitionFrame{steps: steps, next: i + 1, final: final, k: k})
	m.apply(steps[i].thunk, nil)
}

type windBeforeFrame struct {
	thunk, after Value
	wf           *windFrame
}

func (f *windBeforeFrame) resume(m *machine) {
	m.winds = m.winds.Append(f.wf)
	m.push(&windThunkFrame{wf: f.wf})
	m.apply(f.thunk, nil)
}

// windThunkFrame pops the wind pushed for wf once the thunk returns.
type windThunkFrame struct {
	wf *windFrame
}

func (f *windThunkFrame) resume(m *machine) {
	m.winds = m.winds.Slice(0, m.winds.Len()-1)
	m.push(&restoreFrame{v: m.val})
	m.apply(f.wf.after, nil)
}

// restoreFrame discards the current value in favour of v.
type restoreFrame struct{ v Value }

func (f *restoreFrame) resume(m *machine) { m.val = f.v }

func (m *machine) dynamicWind(before, thunk, after Value) {
	wf := &windFrame{before: before, after: after}
	m.push(&windBeforeFrame{thunk: thunk, after: after, wf: wf})
	m.apply(before, nil)
}

// -----------------------------
// Generic frames
// -----------------------------

// funcFrame resumes with a host callback; used by control primitives.
type funcFrame struct{ k func(m *machine) }

func (f *funcFrame) resume(m *machine) { f.k(m) }

// bodyFrame continues a sequence of body codes in env.
type bodyFrame struct {
	body []Code
	next int
	env  *Env
}

func (f *bodyFrame) resume(m *machine) { m.runBody(f.body, f.next, f.env) }

// runBody evaluates body[i:] in env; the last code is a tail position.
func (m *machine) runBody(body []Code, i int, env *Env) {
	for ; i < len(body)-1; i++ {
		if sc, ok := body[i].(simpleCode); ok {
			sc.value(env)
			continue
		}
		m.push(&bodyFrame{body: body, next: i + 1, env: env})
		m.eval(body[i], env)
		return
	}
	if i < len(body) {
		m.eval(body[i], env)
		return
	}
	m.val = Void
}
