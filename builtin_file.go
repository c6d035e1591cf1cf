// builtin_file.go
//
// This file provides:
//   • Ports: the Port type behind every input and output handle
//   • Console and string I/O: display, write, newline, read, read-line, ...
//   • File I/O: open-input-file, open-output-file, close-port, file-exists?, delete-file
//   • The current-input-port / current-output-port parameters
//
// Conventions:
//   - ports are VTHandle values whose Data is *Port
//   - an omitted port argument means the current port
//   - host I/O failures raise conditions naming the primitive
//   - cleanup that must survive non-local exits (call-with-output-file and
//     friends) is written in the prelude with dynamic-wind

package scheme

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// Port is an input or output channel.
type Port struct {
	Name string

	in      *bufio.Reader
	pending []rune // read from in but not yet consumed
	eof     bool

	out    io.Writer
	buf    *bufio.Writer    // files only
	sb     *strings.Builder // string output ports only
	closer io.Closer
	closed bool
}

func newOutputPort(name string, w io.Writer) Value {
	return HandleVal("output-port", &Port{Name: name, out: w})
}

func newInputPort(name string, r io.Reader) Value {
	return HandleVal("input-port", &Port{Name: name, in: bufio.NewReader(r)})
}

func (p *Port) IsInput() bool  { return p.in != nil || p.pending != nil }
func (p *Port) IsOutput() bool { return p.out != nil }

func (p *Port) write(who, s string) {
	if p.closed {
		failWho(who, UserCondition, "port %s is closed", p.Name)
	}
	if _, err := io.WriteString(p.out, s); err != nil {
		failWho(who, UserCondition, "%s", err.Error())
	}
}

// fill reads one more line into pending. It reports false at end of input.
func (p *Port) fill() bool {
	if p.eof || p.in == nil {
		return false
	}
	line, err := p.in.ReadString('\n')
	p.pending = append(p.pending, []rune(line)...)
	if err != nil {
		p.eof = true
	}
	return line != ""
}

func (p *Port) peekRune() (rune, bool) {
	for len(p.pending) == 0 {
		if !p.fill() {
			return 0, false
		}
	}
	return p.pending[0], true
}

func (p *Port) readRune() (rune, bool) {
	r, ok := p.peekRune()
	if ok {
		p.pending = p.pending[1:]
	}
	return r, ok
}

func (p *Port) readLine() (string, bool) {
	for {
		for i, r := range p.pending {
			if r == '\n' {
				line := string(p.pending[:i])
				p.pending = p.pending[i+1:]
				return line, true
			}
		}
		if !p.fill() {
			if len(p.pending) == 0 {
				return "", false
			}
			line := string(p.pending)
			p.pending = p.pending[:0]
			return line, true
		}
	}
}

// readDatum reads one datum, pulling in lines until it is complete.
func (p *Port) readDatum(syms *Interner) (Value, error) {
	for {
		v, n, err := ReadDatum(string(p.pending), syms)
		if err == nil && (v.Tag != VTEOF || p.eof || p.in == nil) {
			p.pending = p.pending[n:]
			return v, nil
		}
		if err != nil && (!IsIncomplete(err) || p.eof || p.in == nil) {
			p.pending = p.pending[:0]
			return Value{}, err
		}
		if !p.fill() && p.eof && len(p.pending) == 0 {
			return EOF, nil
		}
	}
}

func (p *Port) close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.pending = nil
	if p.buf != nil {
		if err := p.buf.Flush(); err != nil {
			return err
		}
	}
	if p.closer != nil {
		return p.closer.Close()
	}
	return nil
}

func portArg(who string, v Value, output bool) *Port {
	if v.Tag == VTHandle {
		if p, ok := v.Data.(*Handle).Data.(*Port); ok {
			if output && p.IsOutput() || !output && !p.IsOutput() {
				return p
			}
		}
	}
	want := "input port"
	if output {
		want = "output port"
	}
	panic(&Error{Kind: TypeMismatch, Who: who, Msg: "expected " + want + ", got " + WriteString(v)})
}

func (ip *Interpreter) outPort(who string, a []Value, i int) *Port {
	if len(a) > i {
		return portArg(who, a[i], true)
	}
	return portArg(who, ip.stdout.v, true)
}

func (ip *Interpreter) inPort(who string, a []Value, i int) *Port {
	if len(a) > i {
		return portArg(who, a[i], false)
	}
	return portArg(who, ip.stdin.v, false)
}

// --- registration ----------------------------------------------------------

func registerIOBuiltins(ip *Interpreter) {
	ip.Core.Define(ip.Intern("current-output-port"), paramValue("current-output-port", ip.stdout))
	ip.Core.Define(ip.Intern("current-input-port"), paramValue("current-input-port", ip.stdin))
	setBuiltinDoc(ip, "current-output-port", `Parameter holding the default output port.

(parameterize ((current-output-port port)) body...) redirects display,
write and newline for the extent of body.`)

	// display(x, port?) / write(x, port?)
	ip.RegisterNative("display", params(arg("x", KAny), opt("port", KPort)), KAny,
		func(ip *Interpreter, a []Value) Value {
			ip.outPort("display", a, 1).write("display", DisplayString(a[0]))
			return Void
		})
	ip.RegisterNative("write", params(arg("x", KAny), opt("port", KPort)), KAny,
		func(ip *Interpreter, a []Value) Value {
			ip.outPort("write", a, 1).write("write", WriteString(a[0]))
			return Void
		})
	setBuiltinDoc(ip, "write", `Write the external representation of x.

Shared and cyclic structure is written with datum labels (#0= ... #0#),
so the output reads back as an equal? datum.`)
	ip.RegisterNative("newline", params(opt("port", KPort)), KAny,
		func(ip *Interpreter, a []Value) Value {
			ip.outPort("newline", a, 0).write("newline", "\n")
			return Void
		})
	ip.RegisterNative("write-char", params(arg("c", KChar), opt("port", KPort)), KAny,
		func(ip *Interpreter, a []Value) Value {
			ip.outPort("write-char", a, 1).write("write-char", string(a[0].Data.(rune)))
			return Void
		})
	ip.RegisterNative("write-string", params(arg("s", KString), opt("port", KPort)), KAny,
		func(ip *Interpreter, a []Value) Value {
			ip.outPort("write-string", a, 1).write("write-string", text(a[0]).String())
			return Void
		})
	ip.RegisterNative("flush-output", params(opt("port", KPort)), KAny,
		func(ip *Interpreter, a []Value) Value {
			if p := ip.outPort("flush-output", a, 0); p.buf != nil {
				if err := p.buf.Flush(); err != nil {
					failWho("flush-output", UserCondition, "%s", err.Error())
				}
			}
			return Void
		})

	// ---- input ----

	ip.RegisterNative("read", params(opt("port", KPort)), KAny,
		func(ip *Interpreter, a []Value) Value {
			v, err := ip.inPort("read", a, 0).readDatum(ip.Symbols)
			if err != nil {
				failWho("read", SyntaxError, "%s", err.Error())
			}
			return v
		})
	ip.RegisterNative("read-line", params(opt("port", KPort)), KAny,
		func(ip *Interpreter, a []Value) Value {
			line, ok := ip.inPort("read-line", a, 0).readLine()
			if !ok {
				return EOF
			}
			return Str(strings.TrimSuffix(line, "\r"))
		})
	ip.RegisterNative("read-char", params(opt("port", KPort)), KAny,
		func(ip *Interpreter, a []Value) Value {
			r, ok := ip.inPort("read-char", a, 0).readRune()
			if !ok {
				return EOF
			}
			return Char(r)
		})
	ip.RegisterNative("peek-char", params(opt("port", KPort)), KAny,
		func(ip *Interpreter, a []Value) Value {
			r, ok := ip.inPort("peek-char", a, 0).peekRune()
			if !ok {
				return EOF
			}
			return Char(r)
		})
	ip.RegisterNative("eof-object", nil, KAny,
		func(_ *Interpreter, _ []Value) Value { return EOF })

	// ---- string ports ----

	ip.RegisterNative("open-input-string", params(arg("s", KString)), KPort,
		func(_ *Interpreter, a []Value) Value {
			p := &Port{Name: "string", pending: append([]rune{}, text(a[0]).r...), eof: true}
			return HandleVal("input-port", p)
		})
	ip.RegisterNative("open-output-string", nil, KPort,
		func(_ *Interpreter, _ []Value) Value {
			sb := &strings.Builder{}
			return HandleVal("output-port", &Port{Name: "string", out: sb, sb: sb})
		})
	ip.RegisterNative("get-output-string", params(arg("port", KPort)), KString,
		func(_ *Interpreter, a []Value) Value {
			p := portArg("get-output-string", a[0], true)
			if p.sb == nil {
				failWho("get-output-string", TypeMismatch, "not a string port: %s", WriteString(a[0]))
			}
			return Str(p.sb.String())
		})

	// ---- files ----

	ip.RegisterNative("open-input-file", params(arg("path", KString)), KPort,
		func(_ *Interpreter, a []Value) Value {
			path := text(a[0]).String()
			f, err := os.Open(path)
			if err != nil {
				failWho("open-input-file", UserCondition, "%s", err.Error())
			}
			return HandleVal("input-port", &Port{Name: path, in: bufio.NewReader(f), closer: f})
		})
	ip.RegisterNative("open-output-file", params(arg("path", KString), opt("append", KBool)), KPort,
		func(_ *Interpreter, a []Value) Value {
			path := text(a[0]).String()
			flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
			if len(a) > 1 && Truthy(a[1]) {
				flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
			}
			f, err := os.OpenFile(path, flags, 0o644)
			if err != nil {
				failWho("open-output-file", UserCondition, "%s", err.Error())
			}
			w := bufio.NewWriter(f)
			return HandleVal("output-port", &Port{Name: path, out: w, buf: w, closer: f})
		})
	setBuiltinDoc(ip, "open-output-file", `Open path for writing, truncating it unless append is true.

Output is buffered until the port is closed or flushed; prefer
call-with-output-file, which closes the port even on a non-local exit.`)

	closer := func(name string) {
		ip.RegisterNative(name, params(arg("port", KPort)), KAny,
			func(_ *Interpreter, a []Value) Value {
				h := a[0].Data.(*Handle)
				p, ok := h.Data.(*Port)
				if !ok {
					panic(typeMismatch(name, 1, KPort, a[0]))
				}
				if err := p.close(); err != nil {
					failWho(name, UserCondition, "%s", err.Error())
				}
				return Void
			})
	}
	closer("close-port")
	closer("close-input-port")
	closer("close-output-port")

	ip.RegisterNative("input-port?", params(arg("x", KAny)), KBool,
		func(_ *Interpreter, a []Value) Value { return Bool(isPort(a[0], false)) })
	ip.RegisterNative("output-port?", params(arg("x", KAny)), KBool,
		func(_ *Interpreter, a []Value) Value { return Bool(isPort(a[0], true)) })
	ip.RegisterNative("port?", params(arg("x", KAny)), KBool,
		func(_ *Interpreter, a []Value) Value { return Bool(isPort(a[0], true) || isPort(a[0], false)) })

	ip.RegisterNative("file-exists?", params(arg("path", KString)), KBool,
		func(_ *Interpreter, a []Value) Value {
			_, err := os.Stat(text(a[0]).String())
			return Bool(err == nil)
		})
	ip.RegisterNative("delete-file", params(arg("path", KString)), KAny,
		func(_ *Interpreter, a []Value) Value {
			if err := os.Remove(text(a[0]).String()); err != nil {
				failWho("delete-file", UserCondition, "%s", err.Error())
			}
			return Void
		})
}

func isPort(v Value, output bool) bool {
	if v.Tag != VTHandle {
		return false
	}
	p, ok := v.Data.(*Handle).Data.(*Port)
	return ok && p.IsOutput() == output
}
