package scheme

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/daios-ai/scheme/internal/numeric"
)

// --- helpers ---------------------------------------------------------------

func newRT(t *testing.T) (*Interpreter, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	ip, err := NewRuntime(Config{Stdout: &out, Stdin: strings.NewReader("")})
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	return ip, &out
}

func mustEval(t *testing.T, ip *Interpreter, src string) Value {
	t.Helper()
	v, err := ip.EvalSource(src)
	if err != nil {
		t.Fatalf("eval error for %q: %v", src, err)
	}
	return v
}

func evalSrc(t *testing.T, src string) Value {
	t.Helper()
	ip, _ := newRT(t)
	v, err := ip.EvalSource(src)
	if err != nil {
		t.Fatalf("EvalSource error: %v\nsource:\n%s", err, src)
	}
	return v
}

func evalErr(t *testing.T, src string) *Error {
	t.Helper()
	ip, _ := newRT(t)
	_, err := ip.EvalSource(src)
	if err == nil {
		t.Fatalf("expected error, got nil\nsource:\n%s", src)
	}
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	return e
}

func wantInt(t *testing.T, v Value, n int64) {
	t.Helper()
	if v.Tag != VTNum || !numeric.IsExactInteger(v.Data.(Number)) {
		t.Fatalf("want int %d, got %#v", n, v)
	}
	got, ok := numeric.Int64Value(v.Data.(Number))
	if !ok || got != n {
		t.Fatalf("want int %d, got %s", n, WriteString(v))
	}
}

func wantStr(t *testing.T, v Value, s string) {
	t.Helper()
	if v.Tag != VTStr || v.Data.(*Text).String() != s {
		t.Fatalf("want str %q, got %#v", s, v)
	}
}

func wantBool(t *testing.T, v Value, b bool) {
	t.Helper()
	if v.Tag != VTBool || v.Data.(bool) != b {
		t.Fatalf("want bool %v, got %s", b, WriteString(v))
	}
}

// wantWrite compares the written representation of v.
func wantWrite(t *testing.T, v Value, s string) {
	t.Helper()
	if got := WriteString(v); got != s {
		t.Fatalf("want %s, got %s", s, got)
	}
}

func wantErrContains(t *testing.T, e *Error, kind DiagKind, substr string) {
	t.Helper()
	if e.Kind != kind {
		t.Fatalf("want %v, got %v (%v)", kind, e.Kind, e)
	}
	if !strings.Contains(e.Error(), substr) {
		t.Fatalf("error %q does not contain %q", e.Error(), substr)
	}
}

// --- core evaluation -------------------------------------------------------

func Test_Interpreter_Literals_Self_Evaluate(t *testing.T) {
	cases := []struct {
		src, want string
	}{
		{`42`, `42`},
		{`-7`, `-7`},
		{`#t`, `#t`},
		{`#f`, `#f`},
		{`"hi"`, `"hi"`},
		{`#\a`, `#\a`},
		{`1/2`, `1/2`},
		{`2.5`, `2.5`},
		{`#(1 2)`, `#(1 2)`},
		{`'()`, `()`},
		{`key:`, `key:`},
	}
	ip, _ := newRT(t)
	for _, c := range cases {
		wantWrite(t, mustEval(t, ip, c.src), c.want)
	}
}

func Test_Interpreter_Define_Returns_Symbol(t *testing.T) {
	ip, _ := newRT(t)
	v := mustEval(t, ip, `(define answer 42)`)
	wantWrite(t, v, "answer")
	wantInt(t, mustEval(t, ip, `answer`), 42)
	v = mustEval(t, ip, `(set! answer 43)`)
	if v.Tag != VTVoid {
		t.Fatalf("set! should return void, got %s", WriteString(v))
	}
	wantInt(t, mustEval(t, ip, `answer`), 43)
}

func Test_Interpreter_Curried_Define(t *testing.T) {
	v := evalSrc(t, `
(define ((adder n) x) (+ n x))
((adder 3) 4)`)
	wantInt(t, v, 7)
}

func Test_Interpreter_Lambda_Rest_And_Closures(t *testing.T) {
	v := evalSrc(t, `
(define (counter)
  (let ((n 0))
    (lambda () (set! n (+ n 1)) n)))
(define c (counter))
(c) (c)
(define (f a . rest) (list a rest))
(list (c) (f 1 2 3) ((lambda args args)))`)
	wantWrite(t, v, "(3 (1 (2 3)) ())")
}

func Test_Interpreter_Unbound_Variable(t *testing.T) {
	e := evalErr(t, `(+ 1 nope)`)
	wantErrContains(t, e, UnboundVariable, "unbound variable: nope")
}

func Test_Interpreter_Set_Unbound_Fails(t *testing.T) {
	e := evalErr(t, `(set! never-defined 1)`)
	if e.Kind != UnboundVariable {
		t.Fatalf("want unbound variable, got %v", e)
	}
}

func Test_Interpreter_Wrong_Arity(t *testing.T) {
	e := evalErr(t, `((lambda (a b) a) 1)`)
	wantErrContains(t, e, WrongArity, "expected 2 argument(s), got 1")

	e = evalErr(t, `(car 1 2)`)
	wantErrContains(t, e, WrongArity, "car")
}

func Test_Interpreter_Type_Mismatch_Names_Primitive(t *testing.T) {
	e := evalErr(t, `(car 5)`)
	wantErrContains(t, e, TypeMismatch, "car: argument 1: expected pair, got 5")
}

func Test_Interpreter_Apply_Non_Procedure(t *testing.T) {
	e := evalErr(t, `(5 1 2)`)
	if e.Kind != TypeMismatch {
		t.Fatalf("want type mismatch, got %v", e)
	}
}

func Test_Interpreter_Bad_Special_Form(t *testing.T) {
	e := evalErr(t, `(if)`)
	if e.Kind != BadSpecialForm {
		t.Fatalf("want bad special form, got %v", e)
	}
}

// --- numeric tower properties ---------------------------------------------

func Test_Interpreter_Rational_Division(t *testing.T) {
	ip, _ := newRT(t)
	wantInt(t, mustEval(t, ip, `(/ 4 2)`), 2)
	wantWrite(t, mustEval(t, ip, `(/ 1 3)`), "1/3")
	wantWrite(t, mustEval(t, ip, `(+ 1/3 2/3)`), "1")
	wantWrite(t, mustEval(t, ip, `(number-representation (/ 4 2))`), "int32")
	wantWrite(t, mustEval(t, ip, `(number-representation (/ 1 3))`), "ratnum")
}

func Test_Interpreter_Bignum_Promotion_And_Demotion(t *testing.T) {
	ip, _ := newRT(t)
	wantWrite(t, mustEval(t, ip, `(+ 9223372036854775807 1)`), "9223372036854775808")
	wantWrite(t, mustEval(t, ip, `(number-representation (+ 9223372036854775807 1))`), "bignum")
	wantWrite(t, mustEval(t, ip, `(number-representation (- (+ 9223372036854775807 1) 1))`), "int64")
	wantWrite(t, mustEval(t, ip, `(number-representation (+ 2147483647 1))`), "int64")
	wantWrite(t, mustEval(t, ip, `(number-representation (- (+ 2147483647 1) 1))`), "int32")
}

func Test_Interpreter_Add_Sub_Roundtrip(t *testing.T) {
	ip, _ := newRT(t)
	pairs := [][2]string{
		{"0", "0"},
		{"1", "-1"},
		{"2147483647", "2147483647"},
		{"9223372036854775807", "12345"},
		{"-9223372036854775808", "-1"},
		{"123456789012345678901234567890", "-987654321098765432109876543210"},
	}
	for _, p := range pairs {
		v := mustEval(t, ip, "(= (- (+ "+p[0]+" "+p[1]+") "+p[1]+") "+p[0]+")")
		wantBool(t, v, true)
		v = mustEval(t, ip, "(- (+ "+p[0]+" "+p[1]+") "+p[1]+")")
		wantWrite(t, v, p[0])
	}
}

// --- tail calls and control -----------------------------------------------

func Test_Interpreter_Tail_Loop_Million(t *testing.T) {
	v := evalSrc(t, `
(define (loop n acc)
  (if (= n 0) acc (loop (- n 1) (+ acc 1))))
(loop 1000000 0)`)
	wantInt(t, v, 1000000)
}

func Test_Interpreter_Tail_Position_In_Cond_And_When(t *testing.T) {
	v := evalSrc(t, `
(define (count n)
  (cond ((= n 0) 'done)
        (else (when #t (count (- n 1))))))
(count 300000)`)
	wantWrite(t, v, "done")
}

func Test_Interpreter_Mutual_Recursion_Tail(t *testing.T) {
	v := evalSrc(t, `
(define (ev? n) (if (= n 0) #t (od? (- n 1))))
(define (od? n) (if (= n 0) #f (ev? (- n 1))))
(ev? 100001)`)
	wantBool(t, v, false)
}

func Test_Interpreter_Deep_Non_Tail_Recursion(t *testing.T) {
	v := evalSrc(t, `
(define (build n) (if (= n 0) '() (cons n (build (- n 1)))))
(length (build 100000))`)
	wantInt(t, v, 100000)
}

func Test_Interpreter_CallCC_Escape(t *testing.T) {
	wantInt(t, evalSrc(t, `(call/cc (lambda (k) (+ 1 (k 41))))`), 41)
	wantInt(t, evalSrc(t, `(+ 1 (call-with-current-continuation (lambda (k) 1)))`), 2)
}

func Test_Interpreter_CallCC_Reentry(t *testing.T) {
	v := evalSrc(t, `
(let ((k #f) (n 0))
  (let ((x (call/cc (lambda (c) (set! k c) 0))))
    (set! n (+ n 1))
    (if (< x 3) (k (+ x 1)) (list x n))))`)
	wantWrite(t, v, "(3 4)")
}

func Test_Interpreter_Shift_Reset(t *testing.T) {
	wantInt(t, evalSrc(t, `(reset (+ 1 (shift k (k 2))))`), 3)
	wantInt(t, evalSrc(t, `(reset (+ 1 (shift k 2)))`), 2)
	wantInt(t, evalSrc(t, `(reset (* 2 (shift k (k (k 5)))))`), 20)
	wantInt(t, evalSrc(t, `(+ 1 (reset 10))`), 11)
}

func Test_Interpreter_Shift_Without_Reset_Delimits_Top_Level_Form(t *testing.T) {
	ip, out := newRT(t)
	mustEval(t, ip, `
(define k #f)
(define n 0)
(+ 1 (shift c (set! k c) 0))
(set! n (+ n 1))
(if (< n 5) (k 1))
(display n)`)
	if out.String() != "1" {
		t.Fatalf("want output 1, got %q", out.String())
	}
	wantInt(t, mustEval(t, ip, `(k 41)`), 42)
}

func Test_Interpreter_Continuation_Cannot_Cross_Host_Call(t *testing.T) {
	ip, _ := newRT(t)
	mustEval(t, ip, `(define saved #f) (define r (+ 100 (call/cc (lambda (k) (set! saved k) 1))))`)
	saved, _ := ip.Lookup("saved")

	_, err := ip.Apply(saved, []Value{Int(5)})
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("want *Error, got %v", err)
	}
	wantErrContains(t, e, InternalError, "continuation invoked outside the host call that captured it")
	wantInt(t, mustEval(t, ip, `r`), 101)

	// macro transformers run in their own host call too
	mustEval(t, ip, `(define-macro (jump) (begin (saved 7) ''never))`)
	_, err = ip.EvalSource(`(jump)`)
	if err == nil || !strings.Contains(err.Error(), "outside the host call") {
		t.Fatalf("want cross-call error from macro body, got %v", err)
	}
	wantInt(t, mustEval(t, ip, `r`), 101)

	// each top-level form shares one host call, so re-entry still works
	mustEval(t, ip, `(saved 2)`)
	wantInt(t, mustEval(t, ip, `r`), 102)
}

func Test_Interpreter_Dynamic_Wind_Ordering(t *testing.T) {
	v := evalSrc(t, `
(let ((trace '()) (k #f) (n 0))
  (define (note x) (set! trace (cons x trace)))
  (dynamic-wind
    (lambda () (note 'in))
    (lambda () (call/cc (lambda (c) (set! k c))) (note 'body))
    (lambda () (note 'out)))
  (if (< n 1)
      (begin (set! n (+ n 1)) (k 'again)))
  (reverse trace))`)
	wantWrite(t, v, "(in body out in body out)")
}

func Test_Interpreter_Dynamic_Wind_Escape_Runs_After(t *testing.T) {
	v := evalSrc(t, `
(let ((trace '()))
  (call/cc
    (lambda (k)
      (dynamic-wind
        (lambda () (set! trace (cons 'before trace)))
        (lambda () (k 'escaped) (set! trace (cons 'unreached trace)))
        (lambda () (set! trace (cons 'after trace))))))
  (reverse trace))`)
	wantWrite(t, v, "(before after)")
}

func Test_Interpreter_Values(t *testing.T) {
	ip, _ := newRT(t)
	wantInt(t, mustEval(t, ip, `(call-with-values (lambda () (values 1 2 3)) +)`), 6)
	wantWrite(t, mustEval(t, ip, `(let-values (((a b) (values 1 2)) ((c . d) (values 3 4 5))) (list a b c d))`), "(1 2 3 (4 5))")
	mustEval(t, ip, `(define-values (q r) (values 7 8))`)
	wantWrite(t, mustEval(t, ip, `(list q r)`), "(7 8)")
	wantInt(t, mustEval(t, ip, `(call-with-values (lambda () 5) (lambda (x) x))`), 5)
}

// --- errors and handlers ---------------------------------------------------

func Test_Interpreter_Guard_Catches_Error(t *testing.T) {
	v := evalSrc(t, `
(guard (e ((error-object? e) (error-object-message e)))
  (error "boom" 1 2))`)
	wantStr(t, v, "boom")

	v = evalSrc(t, `
(guard (e ((symbol? e) (list 'sym e))
          ((string? e) (list 'str e)))
  (raise 'oops))`)
	wantWrite(t, v, "(sym oops)")
}

func Test_Interpreter_Guard_Reraises_Without_Match(t *testing.T) {
	v := evalSrc(t, `
(guard (outer (#t (list 'outer outer)))
  (guard (inner ((string? inner) 'inner))
    (raise 42)))`)
	wantWrite(t, v, "(outer 42)")
}

func Test_Interpreter_With_Exception_Handler(t *testing.T) {
	v := evalSrc(t, `
(with-exception-handler
  (lambda (e) 10)
  (lambda () (+ 1 (raise-continuable 'c))))`)
	wantInt(t, v, 11)

	v = evalSrc(t, `
(call/cc
  (lambda (k)
    (with-exception-handler
      (lambda (e) (k (list 'caught e)))
      (lambda () (raise 'bad)))))`)
	wantWrite(t, v, "(caught bad)")
}

func Test_Interpreter_Error_With_Who(t *testing.T) {
	e := evalErr(t, `(error 'frob "bad value:" 1 "x")`)
	if e.Who != "frob" || e.Msg != "bad value:" {
		t.Fatalf("who/msg: %q %q", e.Who, e.Msg)
	}
	if e.Error() != `frob: bad value: 1 "x"` {
		t.Fatalf("rendering: %q", e.Error())
	}
}

func Test_Interpreter_Uncaught_Raise_Of_Non_Condition(t *testing.T) {
	e := evalErr(t, `(raise (list 1 2))`)
	if !e.Raised() {
		t.Fatalf("expected raised payload, got %v", e)
	}
	wantWrite(t, e.Payload, "(1 2)")
}

func Test_Interpreter_Condition_Kind(t *testing.T) {
	v := evalSrc(t, `
(list (guard (e (#t (condition-kind e))) (car 1))
      (guard (e (#t (condition-kind e))) undefined-thing)
      (guard (e (#t (condition-kind e))) (error "x")))`)
	wantWrite(t, v, "(type-mismatch unbound-variable user-condition)")
}

func Test_Interpreter_Error_Inside_Dynamic_Wind_Runs_After(t *testing.T) {
	ip, out := newRT(t)
	_, err := ip.EvalSource(`
(dynamic-wind
  (lambda () (display "in "))
  (lambda () (car '()))
  (lambda () (display "out")))`)
	if err == nil {
		t.Fatalf("expected error")
	}
	if out.String() != "in out" {
		t.Fatalf("winds: %q", out.String())
	}
}

// --- derived forms ---------------------------------------------------------

func Test_Interpreter_Let_Forms(t *testing.T) {
	cases := []struct {
		src, want string
	}{
		{`(let ((x 1) (y 2)) (+ x y))`, `3`},
		{`(let* ((x 1) (y (+ x 1))) (* x y))`, `2`},
		{`(letrec ((even? (lambda (n) (if (= n 0) #t (odd? (- n 1))))) (odd? (lambda (n) (if (= n 0) #f (even? (- n 1)))))) (even? 10))`, `#t`},
		{`(let loop ((i 0) (acc '())) (if (= i 3) (reverse acc) (loop (+ i 1) (cons i acc))))`, `(0 1 2)`},
		{`(do ((i 0 (+ i 1)) (s 0 (+ s i))) ((= i 5) s))`, `10`},
		{`(case 3 ((1 2) 'low) ((3 4) 'mid) (else 'high))`, `mid`},
		{`(case 9 ((1) 'one) (else 'other))`, `other`},
		{`(cond ((assv 2 '((1 . a) (2 . b))) => cdr) (else 'no))`, `b`},
		{`(when (> 1 0) 'yes)`, `yes`},
		{`(unless (> 1 0) 'yes)`, `#<void>`},
		{`(and 1 2 3)`, `3`},
		{`(and)`, `#t`},
		{`(or #f 2)`, `2`},
		{`(or)`, `#f`},
		{"`(1 ,(+ 1 1) ,@(list 3 4))", `(1 2 3 4)`},
		{"`#(1 ,(+ 1 1))", `#(1 2)`},
	}
	ip, _ := newRT(t)
	for _, c := range cases {
		v, err := ip.EvalSource(c.src)
		if err != nil {
			t.Fatalf("%s: %v", c.src, err)
		}
		if got := WriteString(v); got != c.want {
			t.Fatalf("%s: want %s, got %s", c.src, c.want, got)
		}
	}
}

func Test_Interpreter_Parameterize(t *testing.T) {
	v := evalSrc(t, `
(define p (make-parameter 10 (lambda (x) (* x 2))))
(define (get) (p))
(list (get) (parameterize ((p 3)) (get)) (get))`)
	wantWrite(t, v, "(20 6 20)")
}

func Test_Interpreter_Parameterize_Restored_After_Escape(t *testing.T) {
	v := evalSrc(t, `
(define p (make-parameter 'outer))
(call/cc (lambda (k) (parameterize ((p 'inner)) (k #f))))
(p)`)
	wantWrite(t, v, "outer")
}

func Test_Interpreter_Promises(t *testing.T) {
	v := evalSrc(t, `
(define n 0)
(define p (delay (begin (set! n (+ n 1)) n)))
(list (force p) (force p) n (force 5))`)
	wantWrite(t, v, "(1 1 1 5)")
}

func Test_Interpreter_Delay_Force_Iterates(t *testing.T) {
	v := evalSrc(t, `
(define (loop n) (delay-force (if (= n 0) (delay 'end) (loop (- n 1)))))
(force (loop 100000))`)
	wantWrite(t, v, "end")
}

func Test_Interpreter_Streams(t *testing.T) {
	v := evalSrc(t, `
(define (ints n) (cons-stream n (ints (+ n 1))))
(stream-head (stream-map (lambda (x) (* x x)) (ints 1)) 5)`)
	wantWrite(t, v, "(1 4 9 16 25)")
}

// --- macros ----------------------------------------------------------------

func Test_Interpreter_Macroexpand_One_Step_Vs_Full(t *testing.T) {
	ip, _ := newRT(t)
	mustEval(t, ip, `(define-syntax my-if (syntax-rules () ((_ c t e) (cond (c t) (else e)))))`)
	wantWrite(t, mustEval(t, ip, `(macroexpand-1 '(my-if a b c))`), "(cond (a b) (else c))")
	wantWrite(t, mustEval(t, ip, `(macroexpand '(my-if a b c))`), "(cond (a b) (else c))")
	wantWrite(t, mustEval(t, ip, `(macroexpand-1 '(my-if a (my-if b 1 2) 3))`),
		"(cond (a (my-if b 1 2)) (else 3))")
	wantWrite(t, mustEval(t, ip, `(macroexpand '(my-if a (my-if b 1 2) 3))`),
		"(cond (a (cond (b 1) (else 2))) (else 3))")
	wantInt(t, mustEval(t, ip, `(my-if #f 1 2)`), 2)
}

func Test_Interpreter_Syntax_Rules_Ellipsis_And_Literals(t *testing.T) {
	v := evalSrc(t, `
(define-syntax my-let*
  (syntax-rules ()
    ((_ () body ...) (let () body ...))
    ((_ ((x v) rest ...) body ...) (let ((x v)) (my-let* (rest ...) body ...)))))
(define-syntax arrow
  (syntax-rules (=>)
    ((_ a => b) (list 'to a b))
    ((_ a b) (list 'plain a b))))
(list (my-let* ((a 1) (b (+ a 1))) (* a b)) (arrow 1 => 2) (arrow 1 2))`)
	wantWrite(t, v, "(2 (to 1 2) (plain 1 2))")
}

func Test_Interpreter_Define_Macro(t *testing.T) {
	v := evalSrc(t, "(define-macro (swap! a b) `(let ((tmp ,a)) (set! ,a ,b) (set! ,b tmp)))\n" + `
(define x 1)
(define y 2)
(swap! x y)
(list x y)`)
	wantWrite(t, v, "(2 1)")
}

func Test_Interpreter_Let_Syntax(t *testing.T) {
	v := evalSrc(t, `
(let-syntax ((twice (syntax-rules () ((_ e) (begin e e)))))
  (let ((n 0))
    (twice (set! n (+ n 1)))
    n))`)
	wantInt(t, v, 2)
}

func Test_Interpreter_No_Rule_Matches(t *testing.T) {
	e := evalErr(t, `
(define-syntax only-one (syntax-rules () ((_ x) x)))
(only-one 1 2)`)
	wantErrContains(t, e, BadSpecialForm, "no syntax rule matches")
}

// --- printing --------------------------------------------------------------

func Test_Interpreter_Cyclic_List_Prints_With_Labels(t *testing.T) {
	v := evalSrc(t, `
(define x (list 1 2 3))
(set-cdr! (cddr x) x)
x`)
	wantWrite(t, v, "#0=(1 2 3 . #0#)")
}

func Test_Interpreter_Display_Output(t *testing.T) {
	ip, out := newRT(t)
	mustEval(t, ip, `(display "a") (write "b") (newline) (display #\c) (write #\d)`)
	if out.String() != "a\"b\"\nc#\\d" {
		t.Fatalf("stdout: %q", out.String())
	}
}

// --- host surface ----------------------------------------------------------

func Test_Interpreter_Exit(t *testing.T) {
	ip, _ := newRT(t)
	_, err := ip.EvalSource(`(display "x") (exit 3) (display "unreached")`)
	var ex *ExitError
	if !errors.As(err, &ex) || ex.Code != 3 {
		t.Fatalf("want ExitError 3, got %v", err)
	}
	_, err = ip.EvalSource(`(exit)`)
	if !errors.As(err, &ex) || ex.Code != 0 {
		t.Fatalf("want ExitError 0, got %v", err)
	}
}

func Test_Interpreter_EvalEach_Continues_After_Errors(t *testing.T) {
	ip, _ := newRT(t)
	var got []string
	var errs int
	err := ip.EvalEach("<test>", `1 (car '()) 3`, func(_ Value, v Value, err error) bool {
		if err != nil {
			errs++
			if !strings.Contains(err.Error(), "<test>") {
				t.Fatalf("error not labeled: %v", err)
			}
			return true
		}
		got = append(got, WriteString(v))
		return true
	})
	if err != nil {
		t.Fatalf("EvalEach: %v", err)
	}
	if errs != 1 || strings.Join(got, ",") != "1,3" {
		t.Fatalf("errs=%d got=%v", errs, got)
	}
}

func Test_Interpreter_EvalEach_Read_Error(t *testing.T) {
	ip, _ := newRT(t)
	err := ip.EvalEach("<test>", `(+ 1`, func(Value, Value, error) bool { return true })
	if err == nil || !IsIncomplete(err) {
		t.Fatalf("want incomplete read error, got %v", err)
	}
}

func Test_Interpreter_Apply_From_Host(t *testing.T) {
	ip, _ := newRT(t)
	plus, ok := ip.Lookup("+")
	if !ok {
		t.Fatalf("+ not bound")
	}
	v, err := ip.Apply(plus, []Value{Int(1), Int(2), Int(3)})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	wantInt(t, v, 6)

	sq := mustEval(t, ip, `(lambda (x) (* x x))`)
	v, err = ip.Apply(sq, []Value{Int(9)})
	if err != nil {
		t.Fatalf("Apply closure: %v", err)
	}
	wantInt(t, v, 81)

	_, err = ip.Apply(Int(1), nil)
	if err == nil {
		t.Fatalf("applying a number should fail")
	}
}

func Test_Interpreter_RegisterNative(t *testing.T) {
	ip, _ := newRT(t)
	ip.RegisterNative("twice", []ParamSpec{{Name: "n", Type: KInteger}}, KInteger,
		func(_ *Interpreter, a []Value) Value {
			return Num(numeric.Add(a[0].Data.(Number), a[0].Data.(Number)))
		})
	wantInt(t, mustEval(t, ip, `(twice 21)`), 42)

	_, err := ip.EvalSource(`(twice "x")`)
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("want *Error, got %v", err)
	}
	wantErrContains(t, e, TypeMismatch, `twice: argument 1: expected integer, got "x"`)
}

func Test_Interpreter_RegisterNative_Return_Check(t *testing.T) {
	ip, _ := newRT(t)
	ip.RegisterNative("liar", nil, KString, func(_ *Interpreter, _ []Value) Value { return Int(1) })
	_, err := ip.EvalSource(`(liar)`)
	if err == nil {
		t.Fatalf("expected return type error")
	}
}

func Test_Interpreter_Native_Panics_Become_Conditions(t *testing.T) {
	ip, _ := newRT(t)
	ip.RegisterNative("explode", nil, KAny, func(_ *Interpreter, _ []Value) Value {
		panic(errors.New("kaboom"))
	})
	v := mustEval(t, ip, `(guard (e (#t (condition-kind e))) (explode))`)
	wantWrite(t, v, "internal-error")
}

func Test_Interpreter_Eval_Builtin(t *testing.T) {
	ip, _ := newRT(t)
	wantInt(t, mustEval(t, ip, `(eval '(+ 1 2))`), 3)
	wantInt(t, mustEval(t, ip, `(eval '(* 2 3) (interaction-environment))`), 6)
	mustEval(t, ip, `(eval '(define from-eval 5))`)
	wantInt(t, mustEval(t, ip, `from-eval`), 5)
}

func Test_Interpreter_Apply_Builtin(t *testing.T) {
	ip, _ := newRT(t)
	wantInt(t, mustEval(t, ip, `(apply + 1 2 '(3 4))`), 10)
	wantWrite(t, mustEval(t, ip, `(apply list '())`), "()")
}

func Test_Interpreter_Isolation(t *testing.T) {
	a, _ := newRT(t)
	b, _ := newRT(t)
	mustEval(t, a, `(define only-in-a 1)`)
	if _, err := b.EvalSource(`only-in-a`); err == nil {
		t.Fatalf("definitions leaked between interpreters")
	}
	mustEval(t, a, `(define (car x) 'shadowed)`)
	wantInt(t, mustEval(t, b, `(car '(1))`), 1)
}

func Test_Interpreter_NewInterpreter_Has_Control_Only(t *testing.T) {
	ip := NewInterpreter(Config{Stdout: &bytes.Buffer{}})
	if _, ok := ip.Lookup("call/cc"); !ok {
		t.Fatalf("call/cc should be registered by NewInterpreter")
	}
	if _, ok := ip.Lookup("string-append"); ok {
		t.Fatalf("library primitives belong to NewRuntime")
	}
	v, err := ip.EvalSource(`(if #t 'a 'b)`)
	if err != nil {
		t.Fatalf("special forms: %v", err)
	}
	wantWrite(t, v, "a")
}
