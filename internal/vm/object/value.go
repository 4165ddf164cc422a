package object

// Kind discriminates the payload a Value carries. Mirrors the handful of
// primitive object kinds the instruction set needs (vm/src/vm/instructions/
// array.rs and error.rs in the reference sources), not a general object
// system -- compiled code objects are opaque handles here, since bytecode
// representation is out of scope.
type Kind int

const (
	KindNone Kind = iota
	KindBoolean
	KindInteger
	KindFloat
	KindString
	KindArray
	KindError
	KindCompiledCode
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindBoolean:
		return "boolean"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindError:
		return "error"
	case KindCompiledCode:
		return "compiled_code"
	default:
		return "unknown"
	}
}

// Value is the payload stored in a slot. Only the fields relevant to Kind
// are meaningful; this mirrors the reference VM's tagged representation
// without needing a full interface hierarchy for a handful of primitives.
type Value struct {
	Kind Kind

	Int   int64
	Float float64
	Str   string

	// Elements holds an array's member handles, in order.
	Elements []Pointer

	// Code is an opaque handle to a compiled code object; the instruction
	// decoder and bytecode format that would populate it are out of scope.
	Code any
}

func NewNone() Value { return Value{Kind: KindNone} }

func NewBoolean(v bool) Value {
	i := int64(0)
	if v {
		i = 1
	}
	return Value{Kind: KindBoolean, Int: i}
}

func NewInteger(v int64) Value      { return Value{Kind: KindInteger, Int: v} }
func NewFloat(v float64) Value      { return Value{Kind: KindFloat, Float: v} }
func NewString(v string) Value      { return Value{Kind: KindString, Str: v} }
func NewArray(elems []Pointer) Value { return Value{Kind: KindArray, Elements: elems} }
func NewError(code int64) Value     { return Value{Kind: KindError, Int: code} }
func NewCompiledCode(code any) Value { return Value{Kind: KindCompiledCode, Code: code} }

// Bool decodes a KindBoolean value's truthiness.
func (v Value) Bool() bool { return v.Int != 0 }
