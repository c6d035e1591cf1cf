// runtime.go
//
// NewRuntime assembles the full language: the engine from NewInterpreter,
// every native library (builtin_*.go, std_core.go) and the Scheme prelude
// (prelude.scm, embedded). Libraries are registered against the public
// RegisterNative surface; only the control primitives and special forms reach
// into the machine.

package scheme

import (
	_ "embed"
	"fmt"

	"github.com/sirupsen/logrus"
)

//go:embed prelude.scm
var preludeSrc string

// Version and BuildDate are overridden at link time (-ldflags -X).
var (
	Version   = "0.1.0-dev"
	BuildDate = "unknown"
)

// HandleVal wraps a host object.
func HandleVal(kind string, data interface{}) Value {
	return Value{Tag: VTHandle, Data: &Handle{Kind: kind, Data: data}}
}

// annotate a core builtin with a docstring
func setBuiltinDoc(ip *Interpreter, name, doc string) {
	if v, ok := ip.Core.Lookup(ip.Intern(name)); ok && v.Tag == VTPrim {
		v.Data.(*Primitive).Doc = doc
	}
}

// NewRuntime returns a fully-initialized interpreter with the standard
// library and prelude.
func NewRuntime(cfg Config) (*Interpreter, error) {
	ip := NewInterpreter(cfg)

	registerCoreBuiltins(ip)
	registerStandardBuiltins(ip)
	registerNumberBuiltins(ip)
	registerStringBuiltins(ip)
	registerIOBuiltins(ip)
	registerTimeBuiltins(ip)
	registerPathBuiltins(ip)
	registerIntrospectionBuiltins(ip)

	if cfg.NoPrelude {
		return ip, nil
	}
	if err := ip.LoadPrelude("prelude", preludeSrc); err != nil {
		return nil, err
	}
	return ip, nil
}

// LoadPrelude evaluates src directly in Core, so its definitions are shared
// by every program and shadowable from Global. The first failure is returned
// with a caret snippet.
func (ip *Interpreter) LoadPrelude(name, src string) error {
	forms, spans, err := ip.readWithSpans(src)
	if err != nil {
		return WrapErrorWithName(err, name, src)
	}
	ref := &SourceRef{Name: name, Src: src, Spans: spans}
	for i, form := range forms {
		if _, err := ip.runTop(form, ip.Core, ref); err != nil {
			if e, ok := err.(*Error); ok && e.Line == 0 {
				e.Line, e.Col, e.Src = spans.Top[i].Line, spans.Top[i].Col, ref
			}
			return fmt.Errorf("prelude %s: %w", name, WrapErrorWithName(err, name, src))
		}
	}
	ip.log.WithFields(logrus.Fields{"prelude": name, "forms": len(forms)}).Debug("prelude loaded")
	return nil
}
