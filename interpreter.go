// interpreter.go: SINGLE PUBLIC API SURFACE for the Scheme interpreter.
//
// OVERVIEW
// ========
// This file exposes the public surface of the runtime: the value model, the
// environment type, native registration and the Interpreter entry points. The
// algorithms (reader, compiler, trampoline machine, printer, macro expander)
// live in private files and are reached through the thin methods below.
//
// What you get in this file:
//   • The **runtime value model** (`Value`, `ValueTag`, constructors such as
//     `Int/Float/Str/Cons/List/Vec`).
//   • **Symbols** interned per interpreter (`Interner`, see symbols.go).
//   • **Environments** (`Env`) with a variable namespace and a disjoint macro
//     namespace.
//   • **Natives**: `RegisterNative` (declarative arity + argument kinds) and
//     `RegisterSyntax` (special-form analyzers).
//   • The **Interpreter** with `Read`, `EvalSource`, `EvalEach`, `EvalDatum`,
//     `Apply`, `LoadFile`, `Require`.
//
// EXECUTION MODEL
// ---------------
// Each top-level datum is compiled to `Code` (interpreter_ops.go) and run on a
// trampoline machine (vm.go) whose continuation is an explicit stack of frames.
// Tail calls replace the current step instead of pushing a frame, so loops of
// any length run in constant host stack. call/cc copies the frame stack;
// shift/reset copies the slice above the nearest prompt (interpreter_exec.go).
//
// ENVIRONMENTS
// ------------
//   • `Core`: special forms, primitives and the prelude.
//   • `Global`: user program state (child of Core). REPL input and loaded files
//     evaluate here.
//
// ERRORS
// ------
// All language-level failures are `*Error` values (errors.go) and are
// recoverable: `EvalEach` reports a failing form and continues with the next.
// Reader failures are returned as `*LexError`/`*ParseError`, never panicked.
//
// DEPENDENCIES (OTHER FILES)
// --------------------------
//   • lexer.go / parser.go: text → datums.
//   • printer.go: cycle-safe external representation.
//   • interpreter_ops.go: syntax → Code (special forms).
//   • interpreter_exec.go / vm.go: machine, continuations, winds, handlers.
//   • expander.go: macro matching and expansion.
//   • runtime.go: NewRuntime (library + prelude).
//   • internal/numeric: the numeric tower.

package scheme

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/benbjohnson/immutable"
	"github.com/sirupsen/logrus"

	"github.com/daios-ai/scheme/internal/numeric"
)

////////////////////////////////////////////////////////////////////////////////
//                              PUBLIC TYPES & CTORS
////////////////////////////////////////////////////////////////////////////////

// ValueTag enumerates all runtime kinds a Value may hold.
// The tag determines which Go type Value.Data carries.
type ValueTag int

const (
	VTNil       ValueTag = iota // empty list (no payload)
	VTBool                      // bool
	VTNum                       // numeric.Number
	VTChar                      // rune
	VTStr                       // *Text
	VTSymbol                    // *Symbol
	VTKeyword                   // *Symbol (keyword table)
	VTPair                      // *Pair
	VTVector                    // *Vector
	VTPrim                      // *Primitive
	VTClosure                   // *Closure
	VTCont                      // *Continuation
	VTMacro                     // *Macro
	VTPromise                   // *Promise
	VTBox                       // *Box
	VTValues                    // []Value (never exactly one element)
	VTVoid                      // no payload
	VTCondition                 // *Error
	VTEnv                       // *Env
	VTHandle                    // *Handle (ports)
	VTEOF                       // no payload
)

var tagNames = [...]string{
	"null", "boolean", "number", "char", "string", "symbol", "keyword", "pair",
	"vector", "primitive", "procedure", "continuation", "macro", "promise", "box",
	"values", "void", "condition", "environment", "port", "eof",
}

func (t ValueTag) String() string {
	if t >= 0 && int(t) < len(tagNames) {
		return tagNames[t]
	}
	return "unknown"
}

// Value is the universal runtime carrier. The zero Value is the empty list.
type Value struct {
	Tag  ValueTag
	Data interface{}
}

// String renders the external representation (same as `write`).
func (v Value) String() string { return WriteString(v) }

// Number is a member of the numeric tower.
type Number = numeric.Number

var (
	Nil   = Value{Tag: VTNil}
	True  = Value{Tag: VTBool, Data: true}
	False = Value{Tag: VTBool, Data: false}
	Void  = Value{Tag: VTVoid}
	EOF   = Value{Tag: VTEOF}
)

func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

func Num(n Number) Value      { return Value{Tag: VTNum, Data: n} }
func Int(n int64) Value       { return Num(numeric.FromInt64(n)) }
func Float(f float64) Value   { return Num(numeric.Real(f)) }
func Char(r rune) Value       { return Value{Tag: VTChar, Data: r} }
func Str(s string) Value      { return Value{Tag: VTStr, Data: &Text{r: []rune(s)}} }
func ConstStr(s string) Value { return Value{Tag: VTStr, Data: &Text{r: []rune(s), constant: true}} }
func BoxOf(v Value) Value     { return Value{Tag: VTBox, Data: &Box{V: v}} }
func EnvVal(e *Env) Value     { return Value{Tag: VTEnv, Data: e} }

// Cons allocates a fresh mutable pair.
func Cons(car, cdr Value) Value { return Value{Tag: VTPair, Data: &Pair{Car: car, Cdr: cdr}} }

// List builds a proper list.
func List(xs ...Value) Value { return ListTail(xs, Nil) }

// ListTail builds a list of xs ending in tail (improper when tail is not Nil).
func ListTail(xs []Value, tail Value) Value {
	out := tail
	for i := len(xs) - 1; i >= 0; i-- {
		out = Cons(xs[i], out)
	}
	return out
}

// Vec builds a vector holding xs.
func Vec(xs []Value) Value {
	return Value{Tag: VTVector, Data: &Vector{items: immutable.NewList(xs...)}}
}

// MultipleValues packages a values bundle; one value stays unpackaged.
func MultipleValues(xs []Value) Value {
	if len(xs) == 1 {
		return xs[0]
	}
	return Value{Tag: VTValues, Data: xs}
}

// Symbol is an interned name. Two interned symbols with equal names are the
// same pointer; gensyms are never interned.
type Symbol struct {
	Name       string
	uninterned bool
}

// Pair is a mutable cons cell. Pairs may be shared and may form cycles.
type Pair struct {
	Car, Cdr Value
}

// Text is a character buffer. Literals read from source are constant.
type Text struct {
	r        []rune
	constant bool
}

func (t *Text) String() string   { return string(t.r) }
func (t *Text) Len() int         { return len(t.r) }
func (t *Text) Runes() []rune    { return t.r }
func (t *Text) IsConstant() bool { return t.constant }

// Vector is a mutable handle over a persistent list; mutation swaps the list.
type Vector struct {
	items *immutable.List[Value]
}

func (v *Vector) Len() int           { return v.items.Len() }
func (v *Vector) Get(i int) Value    { return v.items.Get(i) }
func (v *Vector) Set(i int, x Value) { v.items = v.items.Set(i, x) }

func (v *Vector) Snapshot() []Value {
	out := make([]Value, 0, v.items.Len())
	itr := v.items.Iterator()
	for !itr.Done() {
		_, x := itr.Next()
		out = append(out, x)
	}
	return out
}

// Box is a single mutable cell.
type Box struct{ V Value }

// Handle is an opaque host object (ports).
type Handle struct {
	Kind string
	Data interface{}
}

// Env is a lexical frame: a variable namespace, a macro namespace and a
// parent link. Small frames keep bindings in parallel slices.
type Env struct {
	parent *Env
	names  []*Symbol
	vals   []Value
	table  map[*Symbol]Value
	macros map[*Symbol]*Macro
}

const envSliceLimit = 8

// NewEnv creates a new frame with the given parent (which may be nil).
func NewEnv(parent *Env) *Env { return &Env{parent: parent} }

func (e *Env) Parent() *Env { return e.parent }

// Define binds sym in this frame, shadowing outer bindings.
func (e *Env) Define(sym *Symbol, v Value) {
	if e.table != nil {
		e.table[sym] = v
		return
	}
	for i, n := range e.names {
		if n == sym {
			e.vals[i] = v
			return
		}
	}
	if len(e.names) < envSliceLimit {
		e.names = append(e.names, sym)
		e.vals = append(e.vals, v)
		return
	}
	e.table = make(map[*Symbol]Value, 2*envSliceLimit)
	for i, n := range e.names {
		e.table[n] = e.vals[i]
	}
	e.names, e.vals = nil, nil
	e.table[sym] = v
}

func (e *Env) slot(sym *Symbol) (*Env, int, bool) {
	for f := e; f != nil; f = f.parent {
		if f.table != nil {
			if _, ok := f.table[sym]; ok {
				return f, -1, true
			}
			continue
		}
		for i, n := range f.names {
			if n == sym {
				return f, i, true
			}
		}
	}
	return nil, 0, false
}

// Set updates the nearest existing binding. It never defines.
func (e *Env) Set(sym *Symbol, v Value) error {
	f, i, ok := e.slot(sym)
	if !ok {
		return fmt.Errorf("undefined variable: %s", sym.Name)
	}
	if i < 0 {
		f.table[sym] = v
	} else {
		f.vals[i] = v
	}
	return nil
}

// Lookup returns the nearest visible binding.
func (e *Env) Lookup(sym *Symbol) (Value, bool) {
	f, i, ok := e.slot(sym)
	if !ok {
		return Value{}, false
	}
	if i < 0 {
		return f.table[sym], true
	}
	return f.vals[i], true
}

// Get is Lookup with an error for unbound names.
func (e *Env) Get(sym *Symbol) (Value, error) {
	if v, ok := e.Lookup(sym); ok {
		return v, nil
	}
	return Value{}, fmt.Errorf("undefined variable: %s", sym.Name)
}

// DefineMacro binds sym in this frame's macro namespace.
func (e *Env) DefineMacro(sym *Symbol, m *Macro) {
	if e.macros == nil {
		e.macros = map[*Symbol]*Macro{}
	}
	e.macros[sym] = m
}

// LookupMacro walks the macro namespace parent-ward.
func (e *Env) LookupMacro(sym *Symbol) (*Macro, bool) {
	for f := e; f != nil; f = f.parent {
		if m, ok := f.macros[sym]; ok {
			return m, true
		}
	}
	return nil, false
}

// Bindings lists the symbols bound directly in this frame.
func (e *Env) Bindings() []*Symbol {
	if e.table == nil {
		return append([]*Symbol(nil), e.names...)
	}
	out := make([]*Symbol, 0, len(e.table))
	for s := range e.table {
		out = append(out, s)
	}
	return out
}

// ParamSpec declares one native parameter. Optional parameters may be
// omitted; a Rest parameter (last only) collects the remaining arguments,
// each of which must satisfy Type.
type ParamSpec struct {
	Name     string
	Type     Kind
	Optional bool
	Rest     bool
}

// NativeImpl implements a primitive. Arguments have already been checked
// against the declared ParamSpecs; omitted optionals are absent from args.
// Implementations signal failure by panicking an *Error (see fail helpers).
type NativeImpl func(ip *Interpreter, args []Value) Value

// Primitive is a host procedure.
type Primitive struct {
	Name   string
	Params []ParamSpec
	Ret    Kind
	Doc    string

	impl    NativeImpl
	control controlImpl
	param   *paramCell // set for parameter objects
}

// Arity returns the minimum and maximum argument counts (max < 0: variadic).
func (p *Primitive) Arity() (int, int) {
	min, max := 0, 0
	for _, ps := range p.Params {
		switch {
		case ps.Rest:
			return min, -1
		case ps.Optional:
			max++
		default:
			min++
			max++
		}
	}
	return min, max
}

// Closure is a user procedure: formals, compiled body and defining frame.
type Closure struct {
	Name    string
	Params  []*Symbol
	Rest    *Symbol
	Formals Value
	Body    Code
	Env     *Env
}

////////////////////////////////////////////////////////////////////////////////
//                               PUBLIC INTERPRETER
////////////////////////////////////////////////////////////////////////////////

// Config tunes an interpreter. Zero values select sensible defaults.
type Config struct {
	Stdout     io.Writer      // default os.Stdout
	Stdin      io.Reader      // default os.Stdin
	Logger     *logrus.Logger // default: discards below Warn to stderr
	SearchPath []string       // roots for load/require (cwd is always tried first)
	NoPrelude  bool           // NewRuntime: skip the Scheme prelude
	Trace      bool           // log every top-level form at Debug level
}

// Interpreter owns one isolated Scheme world: symbol table, environments,
// ports and module cache. It is not safe for concurrent use.
type Interpreter struct {
	Core    *Env
	Global  *Env
	Symbols *Interner

	cfg    Config
	log    *logrus.Logger
	stdout *paramCell // current-output-port
	stdin  *paramCell // current-input-port

	sym       wellKnown
	modules   map[string]*moduleRec
	loadStack []string

	depth        int      // nested machine runs (host Apply, macro bodies)
	compileDepth int      // nesting of Compile/expand, bounds runaway macros
	top          *barrier // shared by all top-level runs
	runs         uint64   // barriers handed out

	// constructors embedded in quasiquote expansions
	qqCons, qqList, qqAppend, qqVector Value
}

// NewInterpreter constructs an engine with special forms and the control
// primitives (call/cc, dynamic-wind, values, raise, ...) in Core and an empty
// Global. Use NewRuntime for the full library and prelude.
func NewInterpreter(cfg Config) *Interpreter {
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stdin == nil {
		cfg.Stdin = os.Stdin
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.New()
		log.SetOutput(os.Stderr)
		log.SetLevel(logrus.WarnLevel)
	}
	ip := &Interpreter{
		cfg:     cfg,
		log:     log,
		Symbols: NewInterner(),
		modules: map[string]*moduleRec{},
	}
	ip.top = ip.newBarrier()
	ip.sym = newWellKnown(ip.Symbols)
	ip.Core = NewEnv(nil)
	ip.Global = NewEnv(ip.Core)
	ip.stdout = &paramCell{v: newOutputPort("stdout", cfg.Stdout), conv: Nil}
	ip.stdin = &paramCell{v: newInputPort("stdin", cfg.Stdin), conv: Nil}

	ip.initQuasiHelpers()
	registerSpecialForms(ip)
	registerControlBuiltins(ip)
	return ip
}

////////////////////////////////////////////////////////////////////////////////
//                         PUBLIC METHODS (THIN DELEGATIONS)
////////////////////////////////////////////////////////////////////////////////

// Logger returns the interpreter's logger.
func (ip *Interpreter) Logger() *logrus.Logger { return ip.log }

// Intern returns the unique symbol named name.
func (ip *Interpreter) Intern(name string) *Symbol { return ip.Symbols.Intern(name) }

// Sym is Intern wrapped as a Value.
func (ip *Interpreter) Sym(name string) Value { return SymVal(ip.Symbols.Intern(name)) }

// Keyword returns the unique keyword named name.
func (ip *Interpreter) Keyword(name string) Value {
	return Value{Tag: VTKeyword, Data: ip.Symbols.Keyword(name)}
}

// Define binds name in Global.
func (ip *Interpreter) Define(name string, v Value) { ip.Global.Define(ip.Intern(name), v) }

// Lookup reads name from Global (and Core).
func (ip *Interpreter) Lookup(name string) (Value, bool) { return ip.Global.Lookup(ip.Intern(name)) }

// Read parses all datums in src. Errors are *LexError or *ParseError.
func (ip *Interpreter) Read(src string) ([]Value, error) {
	forms, _, err := ip.readWithSpans(src)
	return forms, err
}

// EvalSource reads and evaluates src in Global, stopping at the first error.
// It returns the value of the last form.
func (ip *Interpreter) EvalSource(src string) (Value, error) {
	out := Void
	var first error
	err := ip.EvalEach("<main>", src, func(_ Value, v Value, err error) bool {
		if err != nil {
			first = err
			return false
		}
		out = v
		return true
	})
	if err != nil {
		return Void, err
	}
	if first != nil {
		return Void, first
	}
	return out, nil
}

// EvalEach reads src and evaluates each top-level form in Global, calling fn
// with the form and its outcome. Runtime errors are wrapped with a caret
// snippet and do not stop evaluation unless fn returns false. The returned
// error is the (wrapped) read error, if any.
func (ip *Interpreter) EvalEach(name, src string, fn func(form, v Value, err error) bool) error {
	forms, spans, err := ip.readWithSpans(src)
	if err != nil {
		return WrapErrorWithName(err, name, src)
	}
	ref := &SourceRef{Name: name, Src: src, Spans: spans}
	for i, form := range forms {
		at := spans.Top[i]
		if ip.cfg.Trace {
			ip.log.WithFields(logrus.Fields{"src": name, "line": at.Line}).Debug(WriteString(form))
		}
		v, err := ip.runTop(form, ip.Global, ref)
		if err != nil {
			if e, ok := err.(*Error); ok && e.Line == 0 {
				e.Line, e.Col, e.Src = at.Line, at.Col, ref
			}
			err = WrapErrorWithName(err, name, src)
		}
		if !fn(form, v, err) {
			return nil
		}
	}
	return nil
}

// EvalDatum evaluates an already-read datum in env (Global when nil).
func (ip *Interpreter) EvalDatum(form Value, env *Env) (Value, error) {
	if env == nil {
		env = ip.Global
	}
	return ip.runTop(form, env, nil)
}

func (ip *Interpreter) readWithSpans(src string) ([]Value, *SpanIndex, error) {
	return ParseWithSpans(src, ip.Symbols)
}

// Apply calls a procedure value from the host. Continuations captured inside
// cannot be invoked once Apply has returned to a different host frame.
func (ip *Interpreter) Apply(fn Value, args []Value) (Value, error) {
	return ip.runNested(func(m *machine) { m.apply(fn, args) })
}

// RegisterNative installs a primitive in Core.
//
// Contract:
//   - `params` fixes the arity: required, then Optional, then at most one Rest.
//   - each argument is checked against its ParamSpec.Type before impl runs;
//     a failure raises TypeMismatch naming the primitive and the position.
//   - `ret` is checked on return (KAny disables the check).
func (ip *Interpreter) RegisterNative(name string, params []ParamSpec, ret Kind, impl NativeImpl) {
	p := &Primitive{Name: name, Params: params, Ret: ret, impl: impl}
	ip.Core.Define(ip.Intern(name), Value{Tag: VTPrim, Data: p})
}

// RegisterSyntax installs a special form. The analyzer receives the whole
// form, unevaluated, and returns Code to run later.
func (ip *Interpreter) RegisterSyntax(name string, an SyntaxAnalyzer) {
	sym := ip.Intern(name)
	ip.Core.DefineMacro(sym, &Macro{Name: name, syntax: an})
}

// LoadFile reads and evaluates a file in Global, stopping at the first error.
func (ip *Interpreter) LoadFile(path string) error {
	_, err := ip.runNested(func(m *machine) { m.load(path, ip.Global, false) })
	return err
}

// Require loads a library once, resolving name against the search path.
func (ip *Interpreter) Require(name string) error {
	_, err := ip.runNested(func(m *machine) { m.load(name, ip.Global, true) })
	return err
}

// SymVal wraps a symbol as a Value.
func SymVal(s *Symbol) Value { return Value{Tag: VTSymbol, Data: s} }

// Truthy reports Scheme truth: everything except #f is true.
func Truthy(v Value) bool { return !(v.Tag == VTBool && !v.Data.(bool)) }

// IsList reports whether v is a proper (finite, Nil-terminated) list.
func IsList(v Value) bool {
	slow := v
	for {
		if v.Tag == VTNil {
			return true
		}
		if v.Tag != VTPair {
			return false
		}
		v = v.Data.(*Pair).Cdr
		if v.Tag == VTNil {
			return true
		}
		if v.Tag != VTPair {
			return false
		}
		v = v.Data.(*Pair).Cdr
		slow = slow.Data.(*Pair).Cdr
		if v.Tag == VTPair && v.Data == slow.Data {
			return false
		}
	}
}

// ListToSlice flattens a proper list. ok is false for improper or cyclic lists.
func ListToSlice(v Value) ([]Value, bool) {
	if !IsList(v) {
		return nil, false
	}
	var out []Value
	for v.Tag == VTPair {
		p := v.Data.(*Pair)
		out = append(out, p.Car)
		v = p.Cdr
	}
	return out, true
}

// SymbolNames reports the interned symbol names beginning with prefix, sorted.
func (ip *Interpreter) SymbolNames(prefix string) []string {
	var out []string
	for _, n := range ip.Symbols.Names() {
		if strings.HasPrefix(n, prefix) {
			out = append(out, n)
		}
	}
	return out
}

//// END_OF_PUBLIC
