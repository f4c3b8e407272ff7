// Package vm implements the Moonix bytecode compiler and stack virtual
// machine.
package vm

import (
	"fmt"
	"math"
)

// ValueType identifies the kind of value stored in the Value struct.
type ValueType uint8

const (
	ValNil ValueType = iota
	ValBoolean
	ValNumber
	ValString
	ValAddress // code offset, used by branches
	ValIndex   // operand index, used by memory instructions
	ValTable
	ValClosure
	ValPointer // upvalue cell reference
)

var valueTypeNames = map[ValueType]string{
	ValNil:     "nil",
	ValBoolean: "boolean",
	ValNumber:  "number",
	ValString:  "string",
	ValAddress: "address",
	ValIndex:   "index",
	ValTable:   "table",
	ValClosure: "closure",
	ValPointer: "pointer",
}

// Value is a stack-allocated tagged union. Small primitives live in the
// Data bits; strings, tables, closures and upvalue cells hang off Obj.
type Value struct {
	Type ValueType
	Data uint64      // number bits, bool (0/1), address or index payload
	Obj  interface{} // string, *Table, *Closure or *Upvalue
}

// Constructors

func NilVal() Value {
	return Value{Type: ValNil}
}

func BoolVal(v bool) Value {
	var data uint64
	if v {
		data = 1
	}
	return Value{Type: ValBoolean, Data: data}
}

func NumberVal(v float64) Value {
	return Value{Type: ValNumber, Data: math.Float64bits(v)}
}

func StringVal(s string) Value {
	return Value{Type: ValString, Obj: s}
}

func AddressVal(pc int) Value {
	return Value{Type: ValAddress, Data: uint64(int64(pc))}
}

func IndexVal(i int) Value {
	return Value{Type: ValIndex, Data: uint64(i)}
}

func TableVal(t *Table) Value {
	return Value{Type: ValTable, Obj: t}
}

func ClosureVal(c *Closure) Value {
	return Value{Type: ValClosure, Obj: c}
}

func PointerVal(u *Upvalue) Value {
	return Value{Type: ValPointer, Obj: u}
}

// Accessors

func (v Value) AsBool() bool      { return v.Data == 1 }
func (v Value) AsNumber() float64 { return math.Float64frombits(v.Data) }
func (v Value) AsAddress() int    { return int(int64(v.Data)) }
func (v Value) AsIndex() int      { return int(v.Data) }
func (v Value) AsString() string  { return v.Obj.(string) }
func (v Value) AsTable() *Table   { return v.Obj.(*Table) }
func (v Value) AsClosure() *Closure {
	return v.Obj.(*Closure)
}
func (v Value) AsPointer() *Upvalue { return v.Obj.(*Upvalue) }

// Type checking helpers

func (v Value) IsNil() bool     { return v.Type == ValNil }
func (v Value) IsBool() bool    { return v.Type == ValBoolean }
func (v Value) IsNumber() bool  { return v.Type == ValNumber }
func (v Value) IsString() bool  { return v.Type == ValString }
func (v Value) IsAddress() bool { return v.Type == ValAddress }
func (v Value) IsIndex() bool   { return v.Type == ValIndex }
func (v Value) IsTable() bool   { return v.Type == ValTable }
func (v Value) IsClosure() bool { return v.Type == ValClosure }
func (v Value) IsPointer() bool { return v.Type == ValPointer }

// TypeName returns the user-facing name of the value's kind.
func (v Value) TypeName() string {
	return valueTypeNames[v.Type]
}

// Truthy implements the language's truth rule: nil and false are falsey,
// everything else is truthy.
func (v Value) Truthy() bool {
	switch v.Type {
	case ValNil:
		return false
	case ValBoolean:
		return v.Data == 1
	}
	return true
}

// Equals compares values: structural for primitives, reference identity
// for tables and closures, pointer identity for upvalue cells. Values of
// different kinds are never equal.
func (v Value) Equals(other Value) bool {
	if v.Type != other.Type {
		return false
	}
	switch v.Type {
	case ValNil:
		return true
	case ValBoolean, ValAddress, ValIndex:
		return v.Data == other.Data
	case ValNumber:
		return v.AsNumber() == other.AsNumber()
	case ValString:
		return v.AsString() == other.AsString()
	case ValTable, ValClosure, ValPointer:
		return v.Obj == other.Obj
	}
	return false
}

// Inspect returns the printed representation.
func (v Value) Inspect() string {
	switch v.Type {
	case ValNil:
		return "nil"
	case ValBoolean:
		return fmt.Sprintf("%t", v.Data == 1)
	case ValNumber:
		return fmt.Sprintf("%g", v.AsNumber())
	case ValString:
		return v.AsString()
	case ValAddress:
		return fmt.Sprintf("@%d", v.AsAddress())
	case ValIndex:
		return fmt.Sprintf("#%d", v.AsIndex())
	case ValTable:
		return fmt.Sprintf("table: %p", v.Obj)
	case ValClosure:
		return fmt.Sprintf("function: %p", v.Obj)
	case ValPointer:
		return fmt.Sprintf("pointer: %p", v.Obj)
	}
	return "<?>"
}
