package numeric

import (
	"math"
	"strconv"
	"strings"
)

func (n Int32) String() string { return strconv.FormatInt(int64(n), 10) }
func (n Int64) String() string { return strconv.FormatInt(int64(n), 10) }
func (n *Big) String() string  { return n.v.String() }
func (n *Rat) String() string  { return n.v.Num().String() + "/" + n.v.Denom().String() }
func (n Real) String() string  { return formatReal(float64(n)) }

// Format renders n in the given radix (2, 8, 10 or 16). Inexact numbers are
// always rendered in decimal.
func Format(n Number, radix int) string {
	if radix == 10 {
		return n.String()
	}
	switch x := n.(type) {
	case Int32, Int64:
		return strconv.FormatInt(asInt64(x), radix)
	case *Big:
		return x.v.Text(radix)
	case *Rat:
		return x.v.Num().Text(radix) + "/" + x.v.Denom().Text(radix)
	}
	return n.String()
}

func formatReal(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "+inf.0"
	case math.IsInf(f, -1):
		return "-inf.0"
	case math.IsNaN(f):
		return "+nan.0"
	}
	var s string
	if a := math.Abs(f); a != 0 && (a >= 1e21 || a < 1e-7) {
		s = strconv.FormatFloat(f, 'e', -1, 64)
	} else {
		s = strconv.FormatFloat(f, 'f', -1, 64)
	}
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}
