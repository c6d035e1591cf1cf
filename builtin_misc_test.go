package scheme

import (
	"math"
	"testing"

	"github.com/daios-ai/scheme/internal/numeric"
)

func Test_Builtin_Misc_Arithmetic(t *testing.T) {
	cases := []struct {
		src, want string
	}{
		{`(+)`, "0"},
		{`(*)`, "1"},
		{`(- 5)`, "-5"},
		{`(/ 2)`, "1/2"},
		{`(/ 0.0 1)`, "0.0"},
		{`(+ 1 2.5)`, "3.5"},
		{`(- 10 1 2 3)`, "4"},
		{`(/ 12 2 3)`, "2"},
		{`(/ 1 3 2)`, "1/6"},
		{`(+ 1/3 2/3)`, "1"},
		{`(* 1/2 4)`, "2"},
		{`(- (+ 2147483647 1) 1)`, "2147483647"},
		{`(* 4294967296 4294967296)`, "18446744073709551616"},
		{`(abs -7/2)`, "7/2"},
		{`(square 12)`, "144"},
		{`(sqrt 16)`, "4"},
		{`(sqrt 1/4)`, "1/2"},
		{`(sqrt 2.25)`, "1.5"},
		{`(numerator 6/4)`, "3"},
		{`(denominator 6/4)`, "2"},
		{`(denominator 5)`, "1"},
		{`(exact->inexact 1/8)`, "0.125"},
		{`(inexact->exact 0.5)`, "1/2"},
		{`(exact 2.0)`, "2"},
	}
	ip, _ := newRT(t)
	for _, c := range cases {
		wantWrite(t, mustEval(t, ip, c.src), c.want)
	}
}

func Test_Builtin_Misc_Integer_Division(t *testing.T) {
	cases := []struct {
		src, want string
	}{
		{`(quotient 17 5)`, "3"},
		{`(quotient -17 5)`, "-3"},
		{`(remainder 17 -5)`, "2"},
		{`(remainder -17 5)`, "-2"},
		{`(modulo -17 5)`, "3"},
		{`(modulo 17 -5)`, "-3"},
		{`(modulo 17 5)`, "2"},
		{`(quotient 7.0 2)`, "3.0"},
		{`(modulo -7.0 2)`, "1.0"},
		{`(gcd)`, "0"},
		{`(gcd 12 -18)`, "6"},
		{`(lcm)`, "1"},
		{`(lcm 4 6)`, "12"},
		{`(lcm 0 5)`, "0"},
		{`(quotient (expt 10 30) (expt 10 28))`, "100"},
	}
	ip, _ := newRT(t)
	for _, c := range cases {
		wantWrite(t, mustEval(t, ip, c.src), c.want)
	}
	wantErrContains(t, evalErr(t, `(quotient 1 0)`), UserCondition, "quotient: division by zero")
	wantErrContains(t, evalErr(t, `(/ 1 0)`), UserCondition, "/: division by zero")
	wantErrContains(t, evalErr(t, `(modulo 1.5 1)`), TypeMismatch, "expected integer")
}

func Test_Builtin_Misc_Comparison(t *testing.T) {
	cases := []struct {
		src  string
		want bool
	}{
		{`(= 1 1.0 1)`, true},
		{`(< 1 2 3)`, true},
		{`(< 1 3 2)`, false},
		{`(<= 1 1 2)`, true},
		{`(> 3 2 1)`, true},
		{`(>= 1 2)`, false},
		{`(= 1/2 0.5)`, true},
		{`(< 1/3 0.34)`, true},
		{`(= +nan.0 +nan.0)`, false},
		{`(< (expt 2 64) (expt 2 65))`, true},
		{`(zero? 0.0)`, true},
		{`(positive? -1)`, false},
		{`(negative? -1/2)`, true},
		{`(odd? 7)`, true},
		{`(even? -4)`, true},
		{`(odd? (+ (expt 2 70) 1))`, true},
		{`(exact? 1/2)`, true},
		{`(inexact? 0.5)`, true},
		{`(integer? 2.0)`, true},
		{`(integer? 5/2)`, false},
		{`(exact-integer? 2.0)`, false},
		{`(rational? 1.5)`, true},
		{`(rational? +inf.0)`, false},
		{`(number? 'a)`, false},
		{`(nan? (/ 0.0 0.0))`, true},
	}
	ip, _ := newRT(t)
	for _, c := range cases {
		wantBool(t, mustEval(t, ip, c.src), c.want)
	}
}

func Test_Builtin_Misc_Max_Min_Contagion(t *testing.T) {
	ip, _ := newRT(t)
	wantWrite(t, mustEval(t, ip, `(max 1 2 3)`), "3")
	wantWrite(t, mustEval(t, ip, `(min 1 2 3)`), "1")
	wantWrite(t, mustEval(t, ip, `(max 1 2.0)`), "2.0")
	wantWrite(t, mustEval(t, ip, `(max 3 2.0)`), "3.0")
	wantWrite(t, mustEval(t, ip, `(min 1/2 1)`), "1/2")
}

func Test_Builtin_Misc_Rounding(t *testing.T) {
	cases := []struct {
		src, want string
	}{
		{`(floor 2.5)`, "2.0"},
		{`(ceiling 2.1)`, "3.0"},
		{`(truncate -2.7)`, "-2.0"},
		{`(round 2.5)`, "2.0"},
		{`(round 3.5)`, "4.0"},
		{`(round -2.5)`, "-2.0"},
		{`(floor -7/2)`, "-4"},
		{`(ceiling -7/2)`, "-3"},
		{`(truncate -7/2)`, "-3"},
		{`(round 7/2)`, "4"},
		{`(round 5/2)`, "2"},
		{`(round 8/3)`, "3"},
		{`(floor 5)`, "5"},
	}
	ip, _ := newRT(t)
	for _, c := range cases {
		wantWrite(t, mustEval(t, ip, c.src), c.want)
	}
}

func Test_Builtin_Misc_Expt_And_Sqrt(t *testing.T) {
	cases := []struct {
		src, want string
	}{
		{`(expt 2 10)`, "1024"},
		{`(expt 2 -2)`, "1/4"},
		{`(expt 2/3 2)`, "4/9"},
		{`(expt 0 0)`, "1"},
		{`(expt 2.0 3)`, "8.0"},
		{`(expt 4 0.5)`, "2.0"},
		{`(call-with-values (lambda () (exact-integer-sqrt 17)) list)`, "(4 1)"},
		{`(call-with-values (lambda () (exact-integer-sqrt (expt 10 40))) list)`, "(100000000000000000000 0)"},
	}
	ip, _ := newRT(t)
	for _, c := range cases {
		wantWrite(t, mustEval(t, ip, c.src), c.want)
	}
	wantErrContains(t, evalErr(t, `(expt 0 -1)`), UserCondition, "division by zero")
	wantErrContains(t, evalErr(t, `(log 0)`), UserCondition, "logarithm of exact zero")
}

func Test_Builtin_Misc_Transcendentals(t *testing.T) {
	ip, _ := newRT(t)
	approx := func(src string, want float64) {
		t.Helper()
		v := mustEval(t, ip, src)
		if v.Tag != VTNum {
			t.Fatalf("%s: want number, got %s", src, WriteString(v))
		}
		if got := numeric.ToFloat(v.Data.(Number)); math.Abs(got-want) > 1e-9 {
			t.Fatalf("%s: want %v, got %v", src, want, got)
		}
	}
	approx(`(exp 0)`, 1)
	approx(`(log 100 10)`, 2)
	approx(`(sin 0)`, 0)
	approx(`(cos 0)`, 1)
	approx(`(atan 1 1)`, math.Pi/4)
	approx(`(atan 1)`, math.Pi/4)
	approx(`(acos 1)`, 0)
}

func Test_Builtin_Misc_Number_String_Conversion(t *testing.T) {
	cases := []struct {
		src, want string
	}{
		{`(number->string 255)`, `"255"`},
		{`(number->string 255 16)`, `"ff"`},
		{`(number->string -10 2)`, `"-1010"`},
		{`(number->string 3/4 2)`, `"11/100"`},
		{`(number->string 1.5)`, `"1.5"`},
		{`(string->number "42")`, "42"},
		{`(string->number "ff" 16)`, "255"},
		{`(string->number "#xff")`, "255"},
		{`(string->number "1/3")`, "1/3"},
		{`(string->number "1e3")`, "1000.0"},
		{`(string->number "abc")`, "#f"},
		{`(string->number "")`, "#f"},
		{`(string->number "12" 8)`, "10"},
	}
	ip, _ := newRT(t)
	for _, c := range cases {
		wantWrite(t, mustEval(t, ip, c.src), c.want)
	}
	wantErrContains(t, evalErr(t, `(number->string 10 3)`), TypeMismatch, "unsupported radix 3")
}

func Test_Builtin_Misc_Number_Representation(t *testing.T) {
	cases := []struct {
		src, want string
	}{
		{`(number-representation 1)`, "int32"},
		{`(number-representation 2147483648)`, "int64"},
		{`(number-representation (expt 2 64))`, "bignum"},
		{`(number-representation (- (+ 2147483647 1) 1))`, "int32"},
		{`(number-representation (/ (expt 2 64) (expt 2 60)))`, "int32"},
		{`(number-representation 1/2)`, "ratnum"},
		{`(number-representation (+ 1/2 1/2))`, "int32"},
		{`(number-representation 1.0)`, "flonum"},
	}
	ip, _ := newRT(t)
	for _, c := range cases {
		wantWrite(t, mustEval(t, ip, c.src), c.want)
	}
}

func Test_Builtin_Misc_Random(t *testing.T) {
	ip, _ := newRT(t)
	v := mustEval(t, ip, `
(let loop ((i 0) (ok #t))
  (if (= i 200)
      ok
      (let ((r (random 10)))
        (loop (+ i 1) (and ok (exact-integer? r) (>= r 0) (< r 10))))))`)
	wantBool(t, v, true)

	v = mustEval(t, ip, `(let ((r (random 1.5))) (and (inexact? r) (>= r 0) (< r 1.5)))`)
	wantBool(t, v, true)

	v = mustEval(t, ip, `(< (random (expt 10 30)) (expt 10 30))`)
	wantBool(t, v, true)

	wantErrContains(t, evalErr(t, `(random 0)`), TypeMismatch, "random: argument 1: expected index")
	wantErrContains(t, evalErr(t, `(random 1/2)`), TypeMismatch, "random: argument 1: expected integer")
}

func Test_Builtin_Misc_Random_Seed_Deterministic(t *testing.T) {
	ip, _ := newRT(t)
	a := mustEval(t, ip, `(random-seed! 42) (list (random 1000) (random 1000) (random 1000))`)
	b := mustEval(t, ip, `(random-seed! 42) (list (random 1000) (random 1000) (random 1000))`)
	if !Equal(a, b) {
		t.Fatalf("same seed should repeat: %s vs %s", WriteString(a), WriteString(b))
	}

	// interpreters do not share a generator
	other, _ := newRT(t)
	c := mustEval(t, other, `(random-seed! 42) (list (random 1000) (random 1000) (random 1000))`)
	if !Equal(a, c) {
		t.Fatalf("seeded sequences differ across interpreters: %s vs %s", WriteString(a), WriteString(c))
	}
}
