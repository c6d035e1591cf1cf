package scheme

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func newRTWithPath(t *testing.T, roots ...string) (*Interpreter, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	ip, err := NewRuntime(Config{Stdout: &out, SearchPath: roots})
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	return ip, &out
}

func Test_Modules_Require_Runs_Once(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "counter.scm", `
(define loads (if (environment-bound? (interaction-environment) 'loads) (+ loads 1) 1))
(display "loaded ")`)
	ip, out := newRTWithPath(t, dir)
	mustEval(t, ip, `(require "counter") (require 'counter) (require "counter.scm")`)
	wantInt(t, mustEval(t, ip, `loads`), 1)
	if out.String() != "loaded " {
		t.Fatalf("output: %q", out.String())
	}

	mods := ip.Modules()
	if len(mods) != 1 || mods[0].Display != "counter" || !mods[0].Loaded || mods[0].LoadedAt.IsZero() {
		t.Fatalf("Modules: %+v", mods)
	}
	if !strings.HasSuffix(mods[0].Name, "counter.scm") || !filepath.IsAbs(mods[0].Name) {
		t.Fatalf("canonical name: %q", mods[0].Name)
	}
}

func Test_Modules_Load_Runs_Every_Time(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "tick.scm", `(display "tick ")`)
	ip, out := newRTWithPath(t)
	mustEval(t, ip, `(load "`+filepath.ToSlash(p)+`") (load "`+filepath.ToSlash(p)+`")`)
	if out.String() != "tick tick " {
		t.Fatalf("output: %q", out.String())
	}
}

func Test_Modules_Definitions_And_Macros_Visible(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lib.scm", `
(define-syntax twice (syntax-rules () ((_ e) (begin e e))))
(define (lib-square x) (* x x))
(define lib-result (let ((n 0)) (twice (set! n (+ n 1))) n))`)
	ip, _ := newRTWithPath(t, dir)
	wantInt(t, mustEval(t, ip, `(require lib) (lib-square lib-result)`), 4)
	wantInt(t, mustEval(t, ip, `(let ((k 0)) (twice (set! k (+ k 5))) k)`), 10)
}

func Test_Modules_Relative_To_Importer(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pkg/helper.scm", `(define helper-value 7)`)
	main := writeFile(t, dir, "pkg/main.scm", `(require "helper") (define main-value (* 6 helper-value))`)
	ip, _ := newRTWithPath(t)
	if err := ip.LoadFile(main); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	wantInt(t, mustEval(t, ip, `main-value`), 42)
}

func Test_Modules_Search_Path_Order(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	writeFile(t, first, "which.scm", `(define which 'first)`)
	writeFile(t, second, "which.scm", `(define which 'second)`)
	writeFile(t, second, "only-second.scm", `(define only 'second)`)
	ip, _ := newRTWithPath(t, first, second)
	wantWrite(t, mustEval(t, ip, `(require "which") which`), "first")
	wantWrite(t, mustEval(t, ip, `(require "only-second") only`), "second")
}

func Test_Modules_Cycle_Detected(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.scm", `(require "b")`)
	writeFile(t, dir, "b.scm", `(require "a")`)
	ip, _ := newRTWithPath(t, dir)
	_, err := ip.EvalSource(`(require "a")`)
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("want *Error, got %v", err)
	}
	if !strings.Contains(e.Msg, "require cycle detected: a -> b -> a") {
		t.Fatalf("message: %q", e.Msg)
	}
	// failed loads are forgotten
	if mods := ip.Modules(); len(mods) != 0 {
		t.Fatalf("in-progress modules should be dropped: %+v", mods)
	}
}

func Test_Modules_Shift_In_Loaded_File_Keeps_Later_Forms(t *testing.T) {
	dir := t.TempDir()
	main := writeFile(t, dir, "main.scm", `
(define k #f)
(define n 0)
(+ 1 (shift c (set! k c) 0))
(set! n (+ n 1))
(if (< n 5) (k 1))
(display n)`)
	ip, out := newRTWithPath(t)
	if err := ip.LoadFile(main); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if out.String() != "1" {
		t.Fatalf("want output 1, got %q", out.String())
	}
}

func Test_Modules_Shift_In_Required_File_Finishes_Load(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lib.scm", `
(define lib-k #f)
(shift c (set! lib-k c) 0)
(define after 'ran)`)
	writeFile(t, dir, "sub/other.scm", `(define other-value 3)`)
	writeFile(t, dir, "sub/user.scm", `(require "other")`)
	ip, _ := newRTWithPath(t, dir)
	wantWrite(t, mustEval(t, ip, `(require 'lib) after`), "ran")
	if len(ip.loadStack) != 0 {
		t.Fatalf("load stack not unwound: %v", ip.loadStack)
	}
	mods := ip.Modules()
	if len(mods) != 1 || !mods[0].Loaded {
		t.Fatalf("Modules: %+v", mods)
	}
	// the next require resolves against its own importer, not lib.scm
	wantInt(t, mustEval(t, ip, `(require "sub/user") other-value`), 3)
}

func Test_Modules_Failed_Require_Can_Be_Retried(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "flaky.scm", `(car '())`)
	ip, _ := newRTWithPath(t, dir)
	if _, err := ip.EvalSource(`(require "flaky")`); err == nil {
		t.Fatalf("expected first require to fail")
	}
	if err := os.WriteFile(p, []byte(`(define flaky-ok #t)`), 0o644); err != nil {
		t.Fatal(err)
	}
	wantBool(t, mustEval(t, ip, `(require "flaky") flaky-ok`), true)
}

func Test_Modules_Not_Found(t *testing.T) {
	ip, _ := newRTWithPath(t, t.TempDir())
	_, err := ip.EvalSource(`(require "no-such-module-anywhere")`)
	if err == nil || !strings.Contains(err.Error(), "file not found: no-such-module-anywhere") {
		t.Fatalf("want not found error, got %v", err)
	}
	err = ip.Require("no-such-module-anywhere")
	if err == nil {
		t.Fatalf("host Require should fail too")
	}
}

func Test_Modules_Syntax_Error_Names_File(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.scm", "(define x\n")
	ip, _ := newRTWithPath(t, dir)
	_, err := ip.EvalSource(`(require "broken")`)
	var e *Error
	if !errors.As(err, &e) || e.Kind != SyntaxError {
		t.Fatalf("want syntax error, got %v", err)
	}
	if !strings.Contains(e.Msg, "PARSE ERROR in ") || !strings.Contains(e.Msg, "broken.scm") {
		t.Fatalf("message: %q", e.Msg)
	}
}

func Test_Modules_Host_Require(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "hosted.scm", `(define hosted 'yes)`)
	ip, _ := newRTWithPath(t, dir)
	if err := ip.Require("hosted"); err != nil {
		t.Fatalf("Require: %v", err)
	}
	wantWrite(t, mustEval(t, ip, `hosted`), "yes")
}

func Test_Modules_Require_Over_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/lib/remote.scm":
			_, _ = w.Write([]byte(`(define remote-answer 42)`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ip, _ := newRTWithPath(t)
	wantInt(t, mustEval(t, ip, `(require "`+srv.URL+`/lib/remote") remote-answer`), 42)
	mods := ip.Modules()
	if len(mods) != 1 || mods[0].Name != srv.URL+"/lib/remote.scm" || mods[0].Display != "remote" {
		t.Fatalf("Modules: %+v", mods)
	}

	_, err := ip.EvalSource(`(require "` + srv.URL + `/missing")`)
	if err == nil || !strings.Contains(err.Error(), "http 404") {
		t.Fatalf("want http 404, got %v", err)
	}
}

func Test_Modules_PrettySpec(t *testing.T) {
	cases := map[string]string{
		"/a/b/c.scm":                  "c",
		"/a/b/noext":                  "noext",
		"https://example.com/x/y.scm": "y",
		"https://example.com/":        "/",
	}
	for in, want := range cases {
		if got := prettySpec(in); got != want {
			t.Fatalf("prettySpec(%q) = %q, want %q", in, got, want)
		}
	}
	if got := joinCyclePath([]string{"/x/main.scm", "/x/a.scm", "/x/b.scm"}, "/x/a.scm"); got != "a -> b -> a" {
		t.Fatalf("joinCyclePath: %q", got)
	}
}
