package eruntime

import "strconv"

// ValueKind tags a Value's elementary type, mirroring internal/types.Kind
// minus Array (arrays are their own ArrayVar, not a Value variant).
type ValueKind int

const (
	IntegerKind ValueKind = iota
	LongKind
	SingleKind
	DoubleKind
	StringKind
)

// Value is a tagged union of the five elementary QBasic value kinds. The
// numeric kinds all share the same int64/float64 storage; which field is
// meaningful follows from kind, the same way Value did for erago's two
// kinds.
type Value struct {
	kind ValueKind
	i    int64
	f    float64
	s    string
}

func Integer(v int64) Value { return Value{kind: IntegerKind, i: v} }
func Long(v int64) Value    { return Value{kind: LongKind, i: v} }
func Single(v float64) Value { return Value{kind: SingleKind, f: v} }
func Double(v float64) Value { return Value{kind: DoubleKind, f: v} }
func Str(v string) Value    { return Value{kind: StringKind, s: v} }

func (v Value) Kind() ValueKind { return v.kind }

func (v Value) IsNumeric() bool { return v.kind != StringKind }

// Int64 coerces the value to an integer, truncating any fractional part
// of a SINGLE/DOUBLE the way QBasic's integer conversion does.
func (v Value) Int64() int64 {
	switch v.kind {
	case IntegerKind, LongKind:
		return v.i
	case SingleKind, DoubleKind:
		return int64(v.f)
	default:
		n, err := strconv.ParseInt(v.s, 10, 64)
		if err != nil {
			return 0
		}
		return n
	}
}

// Float64 widens the value to a float, the common representation binary
// arithmetic between mixed numeric kinds is done in.
func (v Value) Float64() float64 {
	switch v.kind {
	case IntegerKind, LongKind:
		return float64(v.i)
	case SingleKind, DoubleKind:
		return v.f
	default:
		f, err := strconv.ParseFloat(v.s, 64)
		if err != nil {
			return 0
		}
		return f
	}
}

// String renders the value's plain textual form -- the one STR$ and
// string concatenation use. PRINT applies its own column/sign padding on
// top of this in print.go.
func (v Value) String() string {
	switch v.kind {
	case StringKind:
		return v.s
	case IntegerKind, LongKind:
		return strconv.FormatInt(v.i, 10)
	case SingleKind:
		return strconv.FormatFloat(v.f, 'g', 7, 32)
	default: // DoubleKind
		return strconv.FormatFloat(v.f, 'g', 15, 64)
	}
}

func (v Value) Truthy() bool {
	switch v.kind {
	case StringKind:
		return v.s != ""
	default:
		return v.Float64() != 0
	}
}
