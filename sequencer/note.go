package sequencer

import (
	"math"
	"strconv"
)

// Note is a pitch, or Pause for silence.
type Note int

// Pause orders below every real note. Parsed notes are limited to the int32
// range, so no real note can collide with it.
const Pause Note = math.MinInt

// IsPause reports whether n is the silence sentinel.
func (n Note) IsPause() bool {
	return n == Pause
}

func (n Note) String() string {
	if n.IsPause() {
		return "_"
	}
	return strconv.Itoa(int(n))
}

// Comparator is one of the six condition operators.
type Comparator int

const (
	Equal Comparator = iota
	NotEqual
	Less
	LessEqual
	Greater
	GreaterEqual
)

var comparatorSymbols = [...]string{
	Equal:        "==",
	NotEqual:     "!=",
	Less:         "<",
	LessEqual:    "<=",
	Greater:      ">",
	GreaterEqual: ">=",
}

func (c Comparator) String() string {
	if c < 0 || int(c) >= len(comparatorSymbols) {
		return "?"
	}
	return comparatorSymbols[c]
}

// ParseComparator maps an operator symbol to its Comparator.
func ParseComparator(sym string) (Comparator, bool) {
	for c, s := range comparatorSymbols {
		if s == sym {
			return Comparator(c), true
		}
	}
	return 0, false
}

// Compare applies the operator. Pause is negative infinity: it equals only
// itself and is less than every real note.
func (c Comparator) Compare(a, b Note) bool {
	switch c {
	case Equal:
		return a == b
	case NotEqual:
		return a != b
	case Less:
		return less(a, b)
	case LessEqual:
		return a == b || less(a, b)
	case Greater:
		return less(b, a)
	case GreaterEqual:
		return a == b || less(b, a)
	}
	return false
}

func less(a, b Note) bool {
	if b.IsPause() {
		return false
	}
	if a.IsPause() {
		return true
	}
	return a < b
}
