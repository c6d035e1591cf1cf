// types.go
//
// Argument kinds and the equivalence predicates.
//
// Design:
//  1. Kind is the declarative parameter type used by RegisterNative. The
//     machine checks every argument against its ParamSpec.Type before a native
//     runs, so natives can assert Data directly.
//  2. Kinds are predicates, not a type system: KList accepts any proper list,
//     KIndex any exact non-negative integer that fits an int.
//  3. eqv? compares by identity except for numbers and characters (numbers are
//     canonical, so Eqv on the tower is enough). equal? recurses through pairs,
//     vectors, strings and boxes and terminates on cyclic data by assuming any
//     pair of nodes already under comparison is equal.
//  4. Hash agrees with equal? and is bounded in depth so cyclic data hashes
//     in finite time.
package scheme

import (
	"hash/fnv"
	"math"

	"github.com/daios-ai/scheme/internal/numeric"
)

// Kind names a class of values accepted by a native parameter.
type Kind int

const (
	KAny Kind = iota
	KNumber
	KInteger
	KIndex
	KString
	KChar
	KSymbol
	KKeyword
	KPair
	KList
	KVector
	KBox
	KProc
	KBool
	KPromise
	KEnv
	KPort
	KCondition
)

var kindNames = [...]string{
	"any", "number", "integer", "index", "string", "char", "symbol", "keyword",
	"pair", "list", "vector", "box", "procedure", "boolean", "promise",
	"environment", "port", "condition",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Accepts reports whether v belongs to k.
func (k Kind) Accepts(v Value) bool {
	switch k {
	case KAny:
		return true
	case KNumber:
		return v.Tag == VTNum
	case KInteger:
		return v.Tag == VTNum && numeric.IsInteger(v.Data.(Number))
	case KIndex:
		if v.Tag != VTNum {
			return false
		}
		n := v.Data.(Number)
		if !numeric.IsExactInteger(n) || numeric.Sign(n) < 0 {
			return false
		}
		_, ok := numeric.Int64Value(n)
		return ok
	case KString:
		return v.Tag == VTStr
	case KChar:
		return v.Tag == VTChar
	case KSymbol:
		return v.Tag == VTSymbol
	case KKeyword:
		return v.Tag == VTKeyword
	case KPair:
		return v.Tag == VTPair
	case KList:
		return IsList(v)
	case KVector:
		return v.Tag == VTVector
	case KBox:
		return v.Tag == VTBox
	case KProc:
		return IsProcedure(v)
	case KBool:
		return v.Tag == VTBool
	case KPromise:
		return v.Tag == VTPromise
	case KEnv:
		return v.Tag == VTEnv
	case KPort:
		return v.Tag == VTHandle
	case KCondition:
		return v.Tag == VTCondition
	}
	return false
}

// IsProcedure reports whether v can be applied.
func IsProcedure(v Value) bool {
	switch v.Tag {
	case VTPrim, VTClosure, VTCont:
		return true
	}
	return false
}

// Eqv implements eqv? (and eq?, which is the same relation here).
func Eqv(a, b Value) bool {
	if a.Tag != b.Tag {
		return false
	}
	switch a.Tag {
	case VTNil, VTVoid, VTEOF:
		return true
	case VTBool:
		return a.Data.(bool) == b.Data.(bool)
	case VTNum:
		return numeric.Eqv(a.Data.(Number), b.Data.(Number))
	case VTChar:
		return a.Data.(rune) == b.Data.(rune)
	case VTValues:
		return false
	}
	return a.Data == b.Data
}

// Equal implements equal?.
func Equal(a, b Value) bool {
	return equalRec(a, b, map[[2]interface{}]bool{})
}

func equalRec(a, b Value, active map[[2]interface{}]bool) bool {
	for {
		if Eqv(a, b) {
			return true
		}
		if a.Tag != b.Tag {
			return false
		}
		switch a.Tag {
		case VTStr:
			return a.Data.(*Text).String() == b.Data.(*Text).String()
		case VTPair:
			key := [2]interface{}{a.Data, b.Data}
			if active[key] {
				return true
			}
			active[key] = true
			pa, pb := a.Data.(*Pair), b.Data.(*Pair)
			if !equalRec(pa.Car, pb.Car, active) {
				return false
			}
			a, b = pa.Cdr, pb.Cdr
			continue
		case VTVector:
			key := [2]interface{}{a.Data, b.Data}
			if active[key] {
				return true
			}
			active[key] = true
			va, vb := a.Data.(*Vector), b.Data.(*Vector)
			if va.Len() != vb.Len() {
				return false
			}
			for i := 0; i < va.Len(); i++ {
				if !equalRec(va.Get(i), vb.Get(i), active) {
					return false
				}
			}
			return true
		case VTBox:
			key := [2]interface{}{a.Data, b.Data}
			if active[key] {
				return true
			}
			active[key] = true
			a, b = a.Data.(*Box).V, b.Data.(*Box).V
			continue
		}
		return false
	}
}

const hashDepth = 4

// Hash returns a hash consistent with Equal.
func Hash(v Value) uint64 { return hashRec(v, hashDepth) }

func hashRec(v Value, depth int) uint64 {
	h := uint64(v.Tag) * 0x9e3779b97f4a7c15
	switch v.Tag {
	case VTBool:
		if v.Data.(bool) {
			h ^= 1
		}
	case VTNum:
		h ^= numeric.Hash(v.Data.(Number))
	case VTChar:
		h ^= uint64(v.Data.(rune))
	case VTStr:
		h ^= hashString(v.Data.(*Text).String())
	case VTSymbol, VTKeyword:
		h ^= hashString(v.Data.(*Symbol).Name)
	case VTPair:
		if depth == 0 {
			return h
		}
		n := 0
		for v.Tag == VTPair && n < 8 {
			p := v.Data.(*Pair)
			h = h*31 + hashRec(p.Car, depth-1)
			v = p.Cdr
			n++
		}
		if v.Tag != VTPair {
			h = h*31 + hashRec(v, depth-1)
		}
	case VTVector:
		if depth == 0 {
			return h
		}
		vec := v.Data.(*Vector)
		h ^= uint64(vec.Len())
		for i := 0; i < vec.Len() && i < 8; i++ {
			h = h*31 + hashRec(vec.Get(i), depth-1)
		}
	case VTBox:
		if depth > 0 {
			h = h*31 + hashRec(v.Data.(*Box).V, depth-1)
		}
	case VTNil, VTVoid, VTEOF:
	default:
		// identity-compared values share one bucket per tag
	}
	return h
}

func hashString(s string) uint64 {
	f := fnv.New64a()
	f.Write([]byte(s))
	return f.Sum64()
}

// single collapses a values bundle to its first element (Void when empty).
func single(v Value) Value {
	if v.Tag == VTValues {
		xs := v.Data.([]Value)
		if len(xs) == 0 {
			return Void
		}
		return xs[0]
	}
	return v
}

// toIndex converts a KIndex argument.
func toIndex(v Value) int {
	n, _ := numeric.Int64Value(v.Data.(Number))
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}
