package runtime

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the runtime value category.
type Kind int

const (
	KindUndef Kind = iota
	KindUnset
	KindInt
	KindFloat
	KindBool
	KindString
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindUndef:
		return "undef"
	case KindUnset:
		return "unset"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	default:
		return fmt.Sprintf("unknown_kind_%d", int(k))
	}
}

// Value is the shared behaviour for all runtime values. String returns the
// value's textual rendering as used by string concatenation and formatting.
type Value interface {
	Kind() Kind
	String() string
}

// UndefValue is the sentinel for a variable that was never assigned in its
// activation.
type UndefValue struct{}

func (UndefValue) Kind() Kind     { return KindUndef }
func (UndefValue) String() string { return "<undef>" }

// Undef is the shared never-assigned sentinel.
var Undef = UndefValue{}

// IsUndef reports whether v is the never-assigned sentinel.
func IsUndef(v Value) bool {
	_, ok := v.(UndefValue)
	return ok
}

// UnsetValue marks an array element that was allocated but never written.
// Distinct from Undef: an unset element was reachable, just empty.
type UnsetValue struct{}

func (UnsetValue) Kind() Kind     { return KindUnset }
func (UnsetValue) String() string { return "null" }

// Unset is the shared empty-element marker.
var Unset = UnsetValue{}

type IntValue struct {
	Val int64
}

func (IntValue) Kind() Kind       { return KindInt }
func (v IntValue) String() string { return strconv.FormatInt(v.Val, 10) }

type FloatValue struct {
	Val float64
}

func (FloatValue) Kind() Kind { return KindFloat }

// String renders floats with an explicit decimal point ("2.0", not "2"),
// matching how the source languages print them.
func (v FloatValue) String() string {
	s := strconv.FormatFloat(v.Val, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnI") {
		s += ".0"
	}
	return s
}

type BoolValue struct {
	Val bool
}

func (BoolValue) Kind() Kind { return KindBool }

func (v BoolValue) String() string {
	if v.Val {
		return "true"
	}
	return "false"
}

type StringValue struct {
	Val string
}

func (StringValue) Kind() Kind       { return KindString }
func (v StringValue) String() string { return v.Val }

// ArrayValue is a fixed-length sequence of values. Elements that were never
// written hold Unset.
type ArrayValue struct {
	Elems []Value
}

func (*ArrayValue) Kind() Kind { return KindArray }

func (v *ArrayValue) String() string {
	parts := make([]string, len(v.Elems))
	for i, el := range v.Elems {
		parts[i] = el.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Len returns the array length.
func (v *ArrayValue) Len() int { return len(v.Elems) }

// NewArray allocates an array of n unset elements.
func NewArray(n int) *ArrayValue {
	if n < 0 {
		n = 0
	}
	elems := make([]Value, n)
	for i := range elems {
		elems[i] = Unset
	}
	return &ArrayValue{Elems: elems}
}

// Copy deep-copies a value. Scalars are immutable and returned as-is;
// arrays are copied element-wise so the result shares no storage with v.
func Copy(v Value) Value {
	arr, ok := v.(*ArrayValue)
	if !ok {
		return v
	}
	elems := make([]Value, len(arr.Elems))
	for i, el := range arr.Elems {
		elems[i] = Copy(el)
	}
	return &ArrayValue{Elems: elems}
}

// Equal reports exact value equality. Numbers compare across int/float by
// numeric value; arrays compare element-wise; Undef equals Undef.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case UndefValue:
		return IsUndef(b)
	case UnsetValue:
		_, ok := b.(UnsetValue)
		return ok
	case IntValue:
		switch bv := b.(type) {
		case IntValue:
			return av.Val == bv.Val
		case FloatValue:
			return float64(av.Val) == bv.Val
		}
		return false
	case FloatValue:
		switch bv := b.(type) {
		case IntValue:
			return av.Val == float64(bv.Val)
		case FloatValue:
			return av.Val == bv.Val
		}
		return false
	case BoolValue:
		bv, ok := b.(BoolValue)
		return ok && av.Val == bv.Val
	case StringValue:
		bv, ok := b.(StringValue)
		return ok && av.Val == bv.Val
	case *ArrayValue:
		bv, ok := b.(*ArrayValue)
		if !ok || len(av.Elems) != len(bv.Elems) {
			return false
		}
		for i := range av.Elems {
			if !Equal(av.Elems[i], bv.Elems[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Truthy is the boolean coercion used for branch conditions, conditional
// expressions and short-circuit evaluation: zero numbers and empty
// strings/arrays are false; Undef and Unset are true.
func Truthy(v Value) bool {
	switch val := v.(type) {
	case IntValue:
		return val.Val != 0
	case FloatValue:
		return val.Val != 0
	case BoolValue:
		return val.Val
	case StringValue:
		return val.Val != ""
	case *ArrayValue:
		return len(val.Elems) > 0
	default:
		return true
	}
}
