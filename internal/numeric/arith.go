package numeric

import (
	"math"
	"math/big"
)

// Add returns a+b. Fixed-width overflow is detected from the sign bits of the
// operands and the wrapped result, and promotes one step up the ladder.
func Add(a, b Number) Number {
	switch maxTag(a, b) {
	case TagInt32:
		x, y := int32(a.(Int32)), int32(b.(Int32))
		r := x + y
		if (x^r)&(y^r) < 0 {
			return Int64(int64(x) + int64(y))
		}
		return Int32(r)
	case TagInt64:
		x, y := asInt64(a), asInt64(b)
		r := x + y
		if (x^r)&(y^r) < 0 {
			return FromBig(new(big.Int).Add(big.NewInt(x), big.NewInt(y)))
		}
		return FromInt64(r)
	case TagBig:
		return FromBig(new(big.Int).Add(asBig(a), asBig(b)))
	case TagRat:
		return FromRat(new(big.Rat).Add(asRat(a), asRat(b)))
	}
	return Real(ToFloat(a) + ToFloat(b))
}

// Sub returns a-b.
func Sub(a, b Number) Number {
	switch maxTag(a, b) {
	case TagInt32:
		x, y := int32(a.(Int32)), int32(b.(Int32))
		r := x - y
		if (x^y)&(x^r) < 0 {
			return Int64(int64(x) - int64(y))
		}
		return Int32(r)
	case TagInt64:
		x, y := asInt64(a), asInt64(b)
		r := x - y
		if (x^y)&(x^r) < 0 {
			return FromBig(new(big.Int).Sub(big.NewInt(x), big.NewInt(y)))
		}
		return FromInt64(r)
	case TagBig:
		return FromBig(new(big.Int).Sub(asBig(a), asBig(b)))
	case TagRat:
		return FromRat(new(big.Rat).Sub(asRat(a), asRat(b)))
	}
	return Real(ToFloat(a) - ToFloat(b))
}

// Mul returns a*b. Int64 products are suspected of overflow when either
// magnitude reaches 2^31; suspects are re-checked exactly.
func Mul(a, b Number) Number {
	switch maxTag(a, b) {
	case TagInt32:
		return FromInt64(int64(a.(Int32)) * int64(b.(Int32)))
	case TagInt64:
		x, y := asInt64(a), asInt64(b)
		if (magnitude(x)|magnitude(y))>>31 == 0 {
			return FromInt64(x * y)
		}
		r := x * y
		if x != 0 && (r/x != y || (x == -1 && y == math.MinInt64) || (y == -1 && x == math.MinInt64)) {
			return FromBig(new(big.Int).Mul(big.NewInt(x), big.NewInt(y)))
		}
		return FromInt64(r)
	case TagBig:
		return FromBig(new(big.Int).Mul(asBig(a), asBig(b)))
	case TagRat:
		return FromRat(new(big.Rat).Mul(asRat(a), asRat(b)))
	}
	return Real(ToFloat(a) * ToFloat(b))
}

func magnitude(x int64) uint64 {
	if x < 0 {
		return uint64(-x)
	}
	return uint64(x)
}

// Div returns a/b. Exact division yields a reduced rational, demoted to an
// integer when the denominator is 1. Exact division by zero is an error;
// inexact division follows IEEE.
func Div(a, b Number) (Number, error) {
	t := maxTag(a, b)
	if t == TagReal {
		return Real(ToFloat(a) / ToFloat(b)), nil
	}
	if Sign(b) == 0 {
		return nil, ErrDivideByZero
	}
	if t <= TagInt64 {
		x, y := asInt64(a), asInt64(b)
		if !(x == math.MinInt64 && y == -1) && x%y == 0 {
			return FromInt64(x / y), nil
		}
	}
	return FromRat(new(big.Rat).Quo(asRat(a), asRat(b))), nil
}

// Neg returns -n.
func Neg(n Number) Number { return Sub(Int32(0), n) }

func Abs(n Number) Number {
	if Sign(n) < 0 {
		return Neg(n)
	}
	return n
}

////////////////////////////////////////////////////////////////////////////////
//                            INTEGER DIVISION
////////////////////////////////////////////////////////////////////////////////

type divKind int

const (
	divQuotient divKind = iota
	divRemainder
	divModulo
)

func Quotient(a, b Number) (Number, error)  { return intDiv(a, b, divQuotient) }
func Remainder(a, b Number) (Number, error) { return intDiv(a, b, divRemainder) }

// Modulo takes the sign of the divisor.
func Modulo(a, b Number) (Number, error) { return intDiv(a, b, divModulo) }

func intDiv(a, b Number, kind divKind) (Number, error) {
	if !IsInteger(a) || !IsInteger(b) {
		return nil, ErrNotInteger
	}
	if Sign(b) == 0 {
		return nil, ErrDivideByZero
	}
	if maxTag(a, b) == TagReal {
		x, y := ToFloat(a), ToFloat(b)
		switch kind {
		case divQuotient:
			return Real(math.Trunc(x / y)), nil
		case divRemainder:
			return Real(math.Mod(x, y)), nil
		}
		m := math.Mod(x, y)
		if m != 0 && (m < 0) != (y < 0) {
			m += y
		}
		return Real(m), nil
	}
	x, y := asBig(a), asBig(b)
	q, r := new(big.Int).QuoRem(x, y, new(big.Int))
	switch kind {
	case divQuotient:
		return FromBig(q), nil
	case divRemainder:
		return FromBig(r), nil
	}
	if r.Sign() != 0 && r.Sign() != y.Sign() {
		r.Add(r, y)
	}
	return FromBig(r), nil
}

// GCD of two integers, always non-negative.
func GCD(a, b Number) (Number, error) {
	if !IsInteger(a) || !IsInteger(b) {
		return nil, ErrNotInteger
	}
	if !IsExact(a) || !IsExact(b) {
		x, y := math.Abs(ToFloat(a)), math.Abs(ToFloat(b))
		for y != 0 {
			x, y = y, math.Mod(x, y)
		}
		return Real(x), nil
	}
	x, y := new(big.Int).Abs(asBig(a)), new(big.Int).Abs(asBig(b))
	return FromBig(new(big.Int).GCD(nil, nil, x, y)), nil
}

// LCM of two integers, always non-negative.
func LCM(a, b Number) (Number, error) {
	if IsZero(a) || IsZero(b) {
		if !IsExact(a) || !IsExact(b) {
			return Real(0), nil
		}
		return Int32(0), nil
	}
	g, err := GCD(a, b)
	if err != nil {
		return nil, err
	}
	q, err := Quotient(Abs(a), g)
	if err != nil {
		return nil, err
	}
	return Abs(Mul(q, b)), nil
}

////////////////////////////////////////////////////////////////////////////////
//                           EXACTNESS AND ROUNDING
////////////////////////////////////////////////////////////////////////////////

// Exact converts n to an exact number (floats convert by their binary value).
func Exact(n Number) (Number, error) {
	r, ok := n.(Real)
	if !ok {
		return n, nil
	}
	f := float64(r)
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, ErrNotFinite
	}
	return FromRat(new(big.Rat).SetFloat64(f)), nil
}

func Inexact(n Number) Number { return Real(ToFloat(n)) }

type roundMode int

const (
	roundFloor roundMode = iota
	roundCeiling
	roundTruncate
	roundNearest
)

func Floor(n Number) Number    { return round(n, roundFloor) }
func Ceiling(n Number) Number  { return round(n, roundCeiling) }
func Truncate(n Number) Number { return round(n, roundTruncate) }

// Round rounds to even on ties.
func Round(n Number) Number { return round(n, roundNearest) }

func round(n Number, mode roundMode) Number {
	switch x := n.(type) {
	case Real:
		f := float64(x)
		switch mode {
		case roundFloor:
			return Real(math.Floor(f))
		case roundCeiling:
			return Real(math.Ceil(f))
		case roundTruncate:
			return Real(math.Trunc(f))
		}
		return Real(math.RoundToEven(f))
	case *Rat:
		num, den := x.v.Num(), x.v.Denom()
		q, m := new(big.Int).DivMod(num, den, new(big.Int)) // floor division, m >= 0
		switch mode {
		case roundCeiling:
			q.Add(q, big.NewInt(1))
		case roundTruncate:
			if num.Sign() < 0 {
				q.Add(q, big.NewInt(1))
			}
		case roundNearest:
			twice := new(big.Int).Lsh(m, 1)
			switch c := twice.Cmp(den); {
			case c > 0:
				q.Add(q, big.NewInt(1))
			case c == 0 && q.Bit(0) == 1:
				q.Add(q, big.NewInt(1))
			}
		}
		return FromBig(q)
	}
	return n
}

func Numerator(n Number) Number {
	switch x := n.(type) {
	case *Rat:
		return FromBig(new(big.Int).Set(x.v.Num()))
	case Real:
		e, err := Exact(x)
		if err != nil {
			return x
		}
		return Inexact(Numerator(e))
	}
	return n
}

func Denominator(n Number) Number {
	switch x := n.(type) {
	case *Rat:
		return FromBig(new(big.Int).Set(x.v.Denom()))
	case Real:
		e, err := Exact(x)
		if err != nil {
			return Real(1)
		}
		return Inexact(Denominator(e))
	}
	return Int32(1)
}

////////////////////////////////////////////////////////////////////////////////
//                             TRANSCENDENTALS
////////////////////////////////////////////////////////////////////////////////

// Expt raises base to power. Exact base with exact integer power stays exact.
func Expt(base, power Number) (Number, error) {
	if IsExact(base) && IsExactInteger(power) {
		p := asBig(power)
		if p.Sign() >= 0 {
			if r, ok := base.(*Rat); ok {
				num := new(big.Int).Exp(r.v.Num(), p, nil)
				den := new(big.Int).Exp(r.v.Denom(), p, nil)
				return FromFraction(num, den)
			}
			return FromBig(new(big.Int).Exp(asBig(base), p, nil)), nil
		}
		pos, err := Expt(base, Neg(power))
		if err != nil {
			return nil, err
		}
		return Div(Int32(1), pos)
	}
	return Real(math.Pow(ToFloat(base), ToFloat(power))), nil
}

// Sqrt is exact for exact perfect squares and inexact otherwise.
func Sqrt(n Number) Number {
	if IsExact(n) && Sign(n) >= 0 {
		num, den := asRat(n).Num(), asRat(n).Denom()
		sn, sd := new(big.Int).Sqrt(num), new(big.Int).Sqrt(den)
		if new(big.Int).Mul(sn, sn).Cmp(num) == 0 && new(big.Int).Mul(sd, sd).Cmp(den) == 0 {
			q, _ := FromFraction(sn, sd)
			return q
		}
	}
	return Real(math.Sqrt(ToFloat(n)))
}

// ExactIntegerSqrt returns s, r with s*s + r = n.
func ExactIntegerSqrt(n Number) (Number, Number, error) {
	if !IsExactInteger(n) || Sign(n) < 0 {
		return nil, nil, ErrNotInteger
	}
	b := asBig(n)
	s := new(big.Int).Sqrt(b)
	r := new(big.Int).Sub(b, new(big.Int).Mul(s, s))
	return FromBig(s), FromBig(r), nil
}

// Float1 applies a float64 function (sin, log, ...) to n.
func Float1(n Number, f func(float64) float64) Number { return Real(f(ToFloat(n))) }
