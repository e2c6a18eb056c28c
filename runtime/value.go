package runtime

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wippyai/wasm-runtime/wasm"
)

// ValueType is the tag of a numeric WebAssembly value.
type ValueType byte

const (
	I32 ValueType = iota + 1
	I64
	F32
	F64
)

func (t ValueType) String() string {
	switch t {
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	default:
		return fmt.Sprintf("valtype(%d)", byte(t))
	}
}

// ParseValueType accepts the text names used by the WebAssembly text format.
func ParseValueType(s string) (ValueType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "i32":
		return I32, nil
	case "i64":
		return I64, nil
	case "f32":
		return F32, nil
	case "f64":
		return F64, nil
	}
	return 0, fmt.Errorf("unknown value type %q", s)
}

// fromWasmValType maps a decoded binary value type. Non-numeric types
// (v128, references) report ok=false.
func fromWasmValType(v wasm.ValType) (ValueType, bool) {
	switch v {
	case wasm.ValI32:
		return I32, true
	case wasm.ValI64:
		return I64, true
	case wasm.ValF32:
		return F32, true
	case wasm.ValF64:
		return F64, true
	}
	return 0, false
}

// Value is a tagged numeric value used for call arguments and results.
// The zero Value has no type and is rejected by every call.
type Value struct {
	typ  ValueType
	bits uint64
}

func ValueI32(v int32) Value   { return Value{typ: I32, bits: uint64(uint32(v))} }
func ValueI64(v int64) Value   { return Value{typ: I64, bits: uint64(v)} }
func ValueF32(v float32) Value { return Value{typ: F32, bits: uint64(math.Float32bits(v))} }
func ValueF64(v float64) Value { return Value{typ: F64, bits: math.Float64bits(v)} }

func (v Value) Type() ValueType { return v.typ }
func (v Value) I32() int32      { return int32(uint32(v.bits)) }
func (v Value) I64() int64      { return int64(v.bits) }
func (v Value) F32() float32    { return math.Float32frombits(uint32(v.bits)) }
func (v Value) F64() float64    { return math.Float64frombits(v.bits) }

// String renders the value as "type:value", the same form ParseValue reads.
func (v Value) String() string {
	switch v.typ {
	case I32:
		return "i32:" + strconv.FormatInt(int64(v.I32()), 10)
	case I64:
		return "i64:" + strconv.FormatInt(v.I64(), 10)
	case F32:
		return "f32:" + strconv.FormatFloat(float64(v.F32()), 'g', -1, 32)
	case F64:
		return "f64:" + strconv.FormatFloat(v.F64(), 'g', -1, 64)
	default:
		return "<invalid>"
	}
}

// ParseValue reads "type:value", e.g. "i32:10" or "f64:-1.5".
// A bare integer is taken as i32.
func ParseValue(s string) (Value, error) {
	typ, lit, found := strings.Cut(strings.TrimSpace(s), ":")
	if !found {
		typ, lit = "i32", typ
	}
	t, err := ParseValueType(typ)
	if err != nil {
		return Value{}, err
	}
	switch t {
	case I32:
		n, err := strconv.ParseInt(lit, 10, 32)
		if err != nil {
			return Value{}, fmt.Errorf("invalid i32 %q: %w", lit, err)
		}
		return ValueI32(int32(n)), nil
	case I64:
		n, err := strconv.ParseInt(lit, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("invalid i64 %q: %w", lit, err)
		}
		return ValueI64(n), nil
	case F32:
		f, err := strconv.ParseFloat(lit, 32)
		if err != nil {
			return Value{}, fmt.Errorf("invalid f32 %q: %w", lit, err)
		}
		return ValueF32(float32(f)), nil
	default:
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return Value{}, fmt.Errorf("invalid f64 %q: %w", lit, err)
		}
		return ValueF64(f), nil
	}
}

// ParseValues parses each string with ParseValue.
func ParseValues(ss []string) ([]Value, error) {
	vals := make([]Value, 0, len(ss))
	for i, s := range ss {
		v, err := ParseValue(s)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		vals = append(vals, v)
	}
	return vals, nil
}

// toEngine converts to the Go types WasmEdge expects for numeric params.
func (v Value) toEngine() interface{} {
	switch v.typ {
	case I32:
		return v.I32()
	case I64:
		return v.I64()
	case F32:
		return v.F32()
	default:
		return v.F64()
	}
}

// fromEngine converts one WasmEdge return value, checking it against the
// declared result type.
func fromEngine(raw interface{}, want ValueType) (Value, bool) {
	var v Value
	switch x := raw.(type) {
	case int32:
		v = ValueI32(x)
	case int64:
		v = ValueI64(x)
	case float32:
		v = ValueF32(x)
	case float64:
		v = ValueF64(x)
	default:
		return Value{}, false
	}
	return v, v.typ == want
}

// Signature is the parameter and result types of an exported function.
type Signature struct {
	Params  []ValueType
	Results []ValueType
}

func (s Signature) String() string {
	return "(" + joinTypes(s.Params) + ") -> (" + joinTypes(s.Results) + ")"
}

func joinTypes(ts []ValueType) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}
