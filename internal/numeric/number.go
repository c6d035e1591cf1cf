// Package numeric implements the Scheme numeric tower.
//
// LADDER (narrowest to widest)
//
//	Int32 -> Int64 -> *Big -> *Rat -> Real
//
// Every constructor in this package returns the canonical representation: the
// narrowest tag that holds the value exactly. Binary operations lift both
// operands to the wider tag, dispatch on that tag, and canonicalize the result,
// so two mathematically equal exact numbers are always stored identically and
// compare/hash the same no matter how they were produced.
//
// Real (float64) is the only inexact tag and never demotes.
package numeric

import (
	"errors"
	"hash/fnv"
	"math"
	"math/big"
)

// Tag orders the representations; a larger tag can hold every value of a
// smaller one.
type Tag uint8

const (
	TagInt32 Tag = iota
	TagInt64
	TagBig
	TagRat
	TagReal
)

var tagNames = [...]string{"int32", "int64", "bignum", "ratnum", "flonum"}

func (t Tag) String() string { return tagNames[t] }

// Number is any member of the tower.
type Number interface {
	Tag() Tag
	String() string
}

type (
	Int32 int32
	Int64 int64
	Real  float64
)

// Big is an integer outside the int64 range. Treat as immutable.
type Big struct{ v *big.Int }

// Rat is an exact non-integral rational in lowest terms. Treat as immutable.
type Rat struct{ v *big.Rat }

func (Int32) Tag() Tag { return TagInt32 }
func (Int64) Tag() Tag { return TagInt64 }
func (*Big) Tag() Tag  { return TagBig }
func (*Rat) Tag() Tag  { return TagRat }
func (Real) Tag() Tag  { return TagReal }

var (
	ErrDivideByZero = errors.New("division by zero")
	ErrNotInteger   = errors.New("integer required")
	ErrNotFinite    = errors.New("no exact representation")
)

////////////////////////////////////////////////////////////////////////////////
//                               CONSTRUCTORS
////////////////////////////////////////////////////////////////////////////////

// FromInt64 returns the canonical form of n.
func FromInt64(n int64) Number {
	if n >= math.MinInt32 && n <= math.MaxInt32 {
		return Int32(n)
	}
	return Int64(n)
}

// FromBig returns the canonical form of b. b must not be mutated afterwards.
func FromBig(b *big.Int) Number {
	if b.IsInt64() {
		return FromInt64(b.Int64())
	}
	return &Big{b}
}

// FromRat returns the canonical form of r (big.Rat keeps lowest terms).
func FromRat(r *big.Rat) Number {
	if r.IsInt() {
		return FromBig(new(big.Int).Set(r.Num()))
	}
	return &Rat{r}
}

// FromFraction builds num/den, reducing and demoting.
func FromFraction(num, den *big.Int) (Number, error) {
	if den.Sign() == 0 {
		return nil, ErrDivideByZero
	}
	return FromRat(new(big.Rat).SetFrac(num, den)), nil
}

func FromFloat(f float64) Number { return Real(f) }

////////////////////////////////////////////////////////////////////////////////
//                                 LIFTING
////////////////////////////////////////////////////////////////////////////////

func maxTag(a, b Number) Tag {
	ta, tb := a.Tag(), b.Tag()
	if ta > tb {
		return ta
	}
	return tb
}

func asInt64(n Number) int64 {
	switch x := n.(type) {
	case Int32:
		return int64(x)
	case Int64:
		return int64(x)
	}
	panic("numeric: asInt64 on " + n.Tag().String())
}

func asBig(n Number) *big.Int {
	switch x := n.(type) {
	case Int32:
		return big.NewInt(int64(x))
	case Int64:
		return big.NewInt(int64(x))
	case *Big:
		return x.v
	}
	panic("numeric: asBig on " + n.Tag().String())
}

func asRat(n Number) *big.Rat {
	switch x := n.(type) {
	case Int32, Int64:
		return new(big.Rat).SetInt64(asInt64(x))
	case *Big:
		return new(big.Rat).SetInt(x.v)
	case *Rat:
		return x.v
	}
	panic("numeric: asRat on " + n.Tag().String())
}

// ToFloat converts any number to float64 (possibly rounding).
func ToFloat(n Number) float64 {
	switch x := n.(type) {
	case Int32:
		return float64(x)
	case Int64:
		return float64(x)
	case *Big:
		f, _ := new(big.Float).SetInt(x.v).Float64()
		return f
	case *Rat:
		f, _ := x.v.Float64()
		return f
	case Real:
		return float64(x)
	}
	return math.NaN()
}

// Int64Value reports n as an int64 when it is an exact integer in range.
func Int64Value(n Number) (int64, bool) {
	switch x := n.(type) {
	case Int32:
		return int64(x), true
	case Int64:
		return int64(x), true
	}
	return 0, false
}

// BigValue returns a copy of an exact integer as *big.Int.
func BigValue(n Number) (*big.Int, bool) {
	switch n.(type) {
	case Int32, Int64, *Big:
		return new(big.Int).Set(asBig(n)), true
	}
	return nil, false
}

////////////////////////////////////////////////////////////////////////////////
//                               PREDICATES
////////////////////////////////////////////////////////////////////////////////

func IsExact(n Number) bool { return n.Tag() != TagReal }

// IsExactInteger is true for Int32, Int64 and Big.
func IsExactInteger(n Number) bool { return n.Tag() <= TagBig }

// IsInteger also accepts integral reals.
func IsInteger(n Number) bool {
	if r, ok := n.(Real); ok {
		f := float64(r)
		return !math.IsInf(f, 0) && f == math.Trunc(f)
	}
	return n.Tag() <= TagBig
}

func IsNaN(n Number) bool {
	r, ok := n.(Real)
	return ok && math.IsNaN(float64(r))
}

func Sign(n Number) int {
	switch x := n.(type) {
	case Int32:
		return cmpInt(int64(x), 0)
	case Int64:
		return cmpInt(int64(x), 0)
	case *Big:
		return x.v.Sign()
	case *Rat:
		return x.v.Sign()
	case Real:
		switch {
		case x > 0:
			return 1
		case x < 0:
			return -1
		}
	}
	return 0
}

func IsZero(n Number) bool { return Sign(n) == 0 && !IsNaN(n) }

////////////////////////////////////////////////////////////////////////////////
//                         EQUALITY, ORDER AND HASHING
////////////////////////////////////////////////////////////////////////////////

// Compare orders a and b numerically. NaN compares equal to everything; callers
// that care test IsNaN first.
func Compare(a, b Number) int {
	switch maxTag(a, b) {
	case TagInt32, TagInt64:
		return cmpInt(asInt64(a), asInt64(b))
	case TagBig:
		return asBig(a).Cmp(asBig(b))
	case TagRat:
		return asRat(a).Cmp(asRat(b))
	}
	x, y := ToFloat(a), ToFloat(b)
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

// NumEqual is Scheme's `=`.
func NumEqual(a, b Number) bool {
	if IsNaN(a) || IsNaN(b) {
		return false
	}
	return Compare(a, b) == 0
}

// Eqv is true when a and b have the same exactness and value. Canonical form
// makes the exact case a tag check plus a value check.
func Eqv(a, b Number) bool {
	if a.Tag() != b.Tag() {
		return false
	}
	switch x := a.(type) {
	case Int32:
		return x == b.(Int32)
	case Int64:
		return x == b.(Int64)
	case *Big:
		return x.v.Cmp(b.(*Big).v) == 0
	case *Rat:
		return x.v.Cmp(b.(*Rat).v) == 0
	case Real:
		return math.Float64bits(float64(x)) == math.Float64bits(float64(b.(Real)))
	}
	return false
}

// Hash agrees with Eqv.
func Hash(n Number) uint64 {
	switch x := n.(type) {
	case Int32:
		return mix(uint64(int64(x)))
	case Int64:
		return mix(uint64(int64(x)))
	case *Big:
		return hashBig(x.v)
	case *Rat:
		return hashBig(x.v.Num())*31 ^ hashBig(x.v.Denom())
	case Real:
		return mix(math.Float64bits(float64(x))) ^ 0x9e3779b97f4a7c15
	}
	return 0
}

func hashBig(b *big.Int) uint64 {
	h := fnv.New64a()
	if b.Sign() < 0 {
		h.Write([]byte{'-'})
	}
	h.Write(b.Bytes())
	return h.Sum64()
}

func mix(x uint64) uint64 {
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	return x
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
