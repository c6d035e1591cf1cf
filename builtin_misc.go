package scheme

import (
	"math"
	"math/big"
	"math/rand"

	"github.com/daios-ai/scheme/internal/numeric"
)

// ---- numbers -----------------------------------------------------------

func num(v Value) Number { return v.Data.(Number) }

func numericInt64(v Value) (int64, bool) { return numeric.Int64Value(num(v)) }

// numResult turns a numeric error into a condition attributed to who.
func numResult(who string, n Number, err error) Value {
	if err != nil {
		failWho(who, UserCondition, "%s", err.Error())
	}
	return Num(n)
}

func registerNumberBuiltins(ip *Interpreter) {
	// + - * / fold left to right; - and / negate or invert a single argument.
	fold := func(name string, unit int64, op func(a, b Number) (Number, error), single func(Number) (Number, error)) {
		ps := params(rest("xs", KNumber))
		if single != nil {
			ps = params(arg("x", KNumber), rest("xs", KNumber))
		}
		ip.RegisterNative(name, ps, KNumber, func(_ *Interpreter, a []Value) Value {
			if len(a) == 0 {
				return Int(unit)
			}
			if len(a) == 1 && single != nil {
				n, err := single(num(a[0]))
				return numResult(name, n, err)
			}
			acc := num(a[0])
			for _, x := range a[1:] {
				n, err := op(acc, num(x))
				if err != nil {
					return numResult(name, nil, err)
				}
				acc = n
			}
			return Num(acc)
		})
	}
	exactly := func(f func(a, b Number) Number) func(a, b Number) (Number, error) {
		return func(a, b Number) (Number, error) { return f(a, b), nil }
	}
	fold("+", 0, exactly(numeric.Add), nil)
	fold("*", 1, exactly(numeric.Mul), nil)
	fold("-", 0, exactly(numeric.Sub), func(n Number) (Number, error) { return numeric.Neg(n), nil })
	fold("/", 1, numeric.Div, func(n Number) (Number, error) { return numeric.Div(numeric.Int32(1), n) })
	setBuiltinDoc(ip, "/", `Divide left to right; (/ x) is 1/x.

Exact operands give an exact result reduced to lowest terms: (/ 4 2) is 2,
(/ 1 3) is 1/3. Exact division by zero raises a condition.`)
	setBuiltinDoc(ip, "+", `Sum. Fixed-width overflow promotes to a bignum; results are always
stored in the narrowest exact representation.`)

	// = < > <= >= compare every adjacent pair.
	compare := func(name string, ok func(c int) bool) {
		ip.RegisterNative(name, params(arg("a", KNumber), rest("xs", KNumber)), KBool, func(_ *Interpreter, a []Value) Value {
			for i := 0; i+1 < len(a); i++ {
				x, y := num(a[i]), num(a[i+1])
				if numeric.IsNaN(x) || numeric.IsNaN(y) || !ok(numeric.Compare(x, y)) {
					return False
				}
			}
			return True
		})
	}
	compare("=", func(c int) bool { return c == 0 })
	compare("<", func(c int) bool { return c < 0 })
	compare(">", func(c int) bool { return c > 0 })
	compare("<=", func(c int) bool { return c <= 0 })
	compare(">=", func(c int) bool { return c >= 0 })

	extreme := func(name string, want int) {
		ip.RegisterNative(name, params(arg("x", KNumber), rest("xs", KNumber)), KNumber, func(_ *Interpreter, a []Value) Value {
			best, inexact := num(a[0]), !numeric.IsExact(num(a[0]))
			for _, x := range a[1:] {
				n := num(x)
				inexact = inexact || !numeric.IsExact(n)
				if numeric.Compare(n, best) == want {
					best = n
				}
			}
			if inexact {
				best = numeric.Inexact(best)
			}
			return Num(best)
		})
	}
	extreme("max", 1)
	extreme("min", -1)

	int2 := func(name string, f func(a, b Number) (Number, error)) {
		ip.RegisterNative(name, params(arg("n", KInteger), arg("d", KInteger)), KInteger, func(_ *Interpreter, a []Value) Value {
			n, err := f(num(a[0]), num(a[1]))
			return numResult(name, n, err)
		})
	}
	int2("quotient", numeric.Quotient)
	int2("remainder", numeric.Remainder)
	int2("modulo", numeric.Modulo)

	lattice := func(name string, f func(a, b Number) (Number, error), unit int64) {
		ip.RegisterNative(name, params(rest("xs", KInteger)), KInteger, func(_ *Interpreter, a []Value) Value {
			acc := numeric.FromInt64(unit)
			for _, x := range a {
				n, err := f(acc, num(x))
				if err != nil {
					return numResult(name, nil, err)
				}
				acc = n
			}
			return Num(acc)
		})
	}
	lattice("gcd", numeric.GCD, 0)
	lattice("lcm", numeric.LCM, 1)

	unary := func(name string, f func(Number) Number) {
		ip.RegisterNative(name, params(arg("x", KNumber)), KNumber,
			func(_ *Interpreter, a []Value) Value { return Num(f(num(a[0]))) })
	}
	unary("abs", numeric.Abs)
	unary("magnitude", numeric.Abs)
	unary("floor", numeric.Floor)
	unary("ceiling", numeric.Ceiling)
	unary("round", numeric.Round)
	unary("truncate", numeric.Truncate)
	unary("numerator", numeric.Numerator)
	unary("denominator", numeric.Denominator)
	unary("sqrt", numeric.Sqrt)
	unary("square", func(n Number) Number { return numeric.Mul(n, n) })
	unary("exact->inexact", numeric.Inexact)
	unary("inexact", numeric.Inexact)
	unary("exp", func(n Number) Number { return numeric.Float1(n, math.Exp) })
	unary("sin", func(n Number) Number { return numeric.Float1(n, math.Sin) })
	unary("cos", func(n Number) Number { return numeric.Float1(n, math.Cos) })
	unary("tan", func(n Number) Number { return numeric.Float1(n, math.Tan) })
	unary("asin", func(n Number) Number { return numeric.Float1(n, math.Asin) })
	unary("acos", func(n Number) Number { return numeric.Float1(n, math.Acos) })

	for _, name := range []string{"inexact->exact", "exact"} {
		name := name
		ip.RegisterNative(name, params(arg("x", KNumber)), KNumber, func(_ *Interpreter, a []Value) Value {
			n, err := numeric.Exact(num(a[0]))
			return numResult(name, n, err)
		})
	}

	ip.RegisterNative("log", params(arg("x", KNumber), opt("base", KNumber)), KNumber,
		func(_ *Interpreter, a []Value) Value {
			if numeric.IsExact(num(a[0])) && numeric.Sign(num(a[0])) == 0 {
				failWho("log", UserCondition, "logarithm of exact zero")
			}
			x := math.Log(numeric.ToFloat(num(a[0])))
			if len(a) > 1 {
				x /= math.Log(numeric.ToFloat(num(a[1])))
			}
			return Float(x)
		})
	ip.RegisterNative("atan", params(arg("y", KNumber), opt("x", KNumber)), KNumber,
		func(_ *Interpreter, a []Value) Value {
			if len(a) > 1 {
				return Float(math.Atan2(numeric.ToFloat(num(a[0])), numeric.ToFloat(num(a[1]))))
			}
			return Num(numeric.Float1(num(a[0]), math.Atan))
		})
	ip.RegisterNative("expt", params(arg("base", KNumber), arg("power", KNumber)), KNumber,
		func(_ *Interpreter, a []Value) Value {
			n, err := numeric.Expt(num(a[0]), num(a[1]))
			return numResult("expt", n, err)
		})
	ip.RegisterNative("exact-integer-sqrt", params(arg("n", KIndex)), KAny,
		func(_ *Interpreter, a []Value) Value {
			s, r, err := numeric.ExactIntegerSqrt(num(a[0]))
			if err != nil {
				return numResult("exact-integer-sqrt", nil, err)
			}
			return MultipleValues([]Value{Num(s), Num(r)})
		})
	setBuiltinDoc(ip, "exact-integer-sqrt", `Return two values s and r with s*s + r = n and s as large as possible.`)

	// ---- predicates ----

	numPred := func(name string, test func(Number) bool) {
		ip.RegisterNative(name, params(arg("x", KNumber)), KBool,
			func(_ *Interpreter, a []Value) Value { return Bool(test(num(a[0]))) })
	}
	numPred("zero?", numeric.IsZero)
	numPred("positive?", func(n Number) bool { return numeric.Sign(n) > 0 })
	numPred("negative?", func(n Number) bool { return numeric.Sign(n) < 0 })
	numPred("exact?", numeric.IsExact)
	numPred("inexact?", func(n Number) bool { return !numeric.IsExact(n) })
	numPred("nan?", numeric.IsNaN)
	parity := func(name string, odd bool) {
		ip.RegisterNative(name, params(arg("n", KInteger)), KBool, func(_ *Interpreter, a []Value) Value {
			r, _ := numeric.Remainder(num(a[0]), numeric.Int32(2))
			return Bool(numeric.IsZero(r) != odd)
		})
	}
	parity("odd?", true)
	parity("even?", false)

	anyPred := func(name string, test func(Value) bool) {
		ip.RegisterNative(name, params(arg("x", KAny)), KBool,
			func(_ *Interpreter, a []Value) Value { return Bool(test(a[0])) })
	}
	anyPred("number?", func(v Value) bool { return v.Tag == VTNum })
	anyPred("complex?", func(v Value) bool { return v.Tag == VTNum })
	anyPred("real?", func(v Value) bool { return v.Tag == VTNum })
	anyPred("rational?", func(v Value) bool {
		if v.Tag != VTNum {
			return false
		}
		f := numeric.ToFloat(num(v))
		return numeric.IsExact(num(v)) || !(math.IsInf(f, 0) || math.IsNaN(f))
	})
	anyPred("integer?", KInteger.Accepts)
	anyPred("exact-integer?", func(v Value) bool { return v.Tag == VTNum && numeric.IsExactInteger(num(v)) })

	// ---- conversion ----

	ip.RegisterNative("number->string", params(arg("n", KNumber), opt("radix", KIndex)), KString,
		func(_ *Interpreter, a []Value) Value {
			return Str(numeric.Format(num(a[0]), radixArg("number->string", a, 1)))
		})
	ip.RegisterNative("string->number", params(arg("s", KString), opt("radix", KIndex)), KAny,
		func(_ *Interpreter, a []Value) Value {
			n, ok := numeric.ParseRadix(a[0].Data.(*Text).String(), radixArg("string->number", a, 1))
			if !ok {
				return False
			}
			return Num(n)
		})
	setBuiltinDoc(ip, "string->number", `Parse a numeric literal; #f when s is not a number.

Params:
  s:     string, digits, optional #b/#o/#d/#x and #e/#i prefixes, n/d rationals
  radix: index?, 2, 8, 10 (default) or 16`)

	// number-representation(n) -> Symbol: int32 | int64 | bignum | ratnum | flonum
	ip.RegisterNative("number-representation", params(arg("n", KNumber)), KSymbol,
		func(ip *Interpreter, a []Value) Value { return ip.Sym(num(a[0]).Tag().String()) })
	setBuiltinDoc(ip, "number-representation", `Name the storage class of n.

Numbers are always stored in the narrowest class that holds them exactly,
so (number-representation (- (+ 2147483647 1) 1)) is int32 again.`)

	// ---- random ----

	rng := rand.New(rand.NewSource(1))
	ip.RegisterNative("random", params(arg("limit", KNumber)), KNumber,
		func(_ *Interpreter, a []Value) Value {
			n := num(a[0])
			if numeric.Sign(n) <= 0 {
				panic(typeMismatch("random", 1, KIndex, a[0]))
			}
			if !numeric.IsExact(n) {
				return Float(rng.Float64() * numeric.ToFloat(n))
			}
			b, ok := numeric.BigValue(n)
			if !ok {
				panic(typeMismatch("random", 1, KInteger, a[0]))
			}
			return Num(numeric.FromBig(new(big.Int).Rand(rng, b)))
		})
	setBuiltinDoc(ip, "random", `Return a pseudo-random number in [0, limit).

An exact integer limit gives an exact integer; an inexact limit a flonum.
The generator is seeded per interpreter; see random-seed!.`)
	ip.RegisterNative("random-seed!", params(arg("seed", KInteger)), KAny,
		func(_ *Interpreter, a []Value) Value {
			s, _ := numeric.Int64Value(num(a[0]))
			rng.Seed(s)
			return Void
		})
}

func radixArg(who string, a []Value, i int) int {
	if len(a) <= i {
		return 10
	}
	switch r := toIndex(a[i]); r {
	case 2, 8, 10, 16:
		return r
	}
	failWho(who, TypeMismatch, "unsupported radix %s", WriteString(a[i]))
	return 10
}
