// builtin_path.go
//
// Builtins surfaced:
//  1. path-join(part...) -> string
//  2. path-base(path) / path-dir(path) / path-ext(path) / path-clean(path)
//  3. path-absolute(path) -> string
//  4. current-directory() -> string
//  5. directory-list(path) -> list of names, sorted
//  6. get-environment-variable(name) -> string | #f
//  7. get-environment-variables() -> alist of (name . value)
//
// Conventions:
//   - Paths use the OS separator (path/filepath).
//   - Host failures raise conditions naming the primitive.
package scheme

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

func registerPathBuiltins(ip *Interpreter) {
	// path-join(part...) -> string
	ip.RegisterNative("path-join", params(rest("parts", KString)), KString,
		func(_ *Interpreter, a []Value) Value {
			parts := make([]string, len(a))
			for i, p := range a {
				parts[i] = text(p).String()
			}
			return Str(filepath.Join(parts...))
		})
	setBuiltinDoc(ip, "path-join", `Join path elements with the OS separator and clean the result.

Params:
  part: string..., path elements, empty ones are ignored

Returns:
  string`)

	unary := func(name string, f func(string) string, doc string) {
		ip.RegisterNative(name, params(arg("path", KString)), KString,
			func(_ *Interpreter, a []Value) Value { return Str(f(text(a[0]).String())) })
		setBuiltinDoc(ip, name, doc)
	}
	unary("path-base", filepath.Base, `Last element of path; "." for the empty path.`)
	unary("path-dir", filepath.Dir, `All but the last element of path, cleaned.`)
	unary("path-ext", filepath.Ext, `File extension including the dot, or "".`)
	unary("path-clean", filepath.Clean, `Lexically simplified path (removes "." and resolves "..").`)

	ip.RegisterNative("path-absolute", params(arg("path", KString)), KString,
		func(_ *Interpreter, a []Value) Value {
			abs, err := filepath.Abs(text(a[0]).String())
			if err != nil {
				failWho("path-absolute", UserCondition, "%s", err.Error())
			}
			return Str(abs)
		})

	ip.RegisterNative("current-directory", nil, KString,
		func(_ *Interpreter, _ []Value) Value {
			wd, err := os.Getwd()
			if err != nil {
				failWho("current-directory", UserCondition, "%s", err.Error())
			}
			return Str(wd)
		})

	ip.RegisterNative("directory-list", params(arg("path", KString)), KList,
		func(_ *Interpreter, a []Value) Value {
			entries, err := os.ReadDir(text(a[0]).String())
			if err != nil {
				failWho("directory-list", UserCondition, "%s", err.Error())
			}
			names := make([]string, 0, len(entries))
			for _, e := range entries {
				names = append(names, e.Name())
			}
			sort.Strings(names)
			out := make([]Value, len(names))
			for i, n := range names {
				out[i] = Str(n)
			}
			return List(out...)
		})
	setBuiltinDoc(ip, "directory-list", `Names of the entries in a directory, sorted, without "." and "..".`)

	ip.RegisterNative("get-environment-variable", params(arg("name", KString)), KAny,
		func(_ *Interpreter, a []Value) Value {
			v, ok := os.LookupEnv(text(a[0]).String())
			if !ok {
				return False
			}
			return Str(v)
		})
	ip.RegisterNative("get-environment-variables", nil, KList,
		func(_ *Interpreter, _ []Value) Value {
			env := os.Environ()
			sort.Strings(env)
			out := make([]Value, 0, len(env))
			for _, kv := range env {
				k, v, _ := strings.Cut(kv, "=")
				out = append(out, Cons(Str(k), Str(v)))
			}
			return List(out...)
		})
}
