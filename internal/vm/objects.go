package vm

// Closure pairs a code region with its captured upvalues. The body
// extends from EntryPC up to (not including) EndPC, which indexes the
// matching end marker.
type Closure struct {
	NumParams  int
	NumLocals  int
	IsVariadic bool
	EntryPC    int
	EndPC      int
	Upvalues   []*Upvalue
	Name       string // for stack traces and the disassembler
}

// Upvalue is an indirect reference to a value slot. Open upvalues point
// at an absolute operand-stack location; closing copies the value into
// the cell owned by the upvalue and redirects the reference there. An
// upvalue closes exactly once, when its defining frame is popped.
type Upvalue struct {
	Location int // absolute operand-stack slot while open
	Closed   Value
	IsClosed bool

	// For the VM's open upvalue list (singly linked, sorted by
	// location, highest first).
	Next *Upvalue
}

// get reads through the upvalue.
func (u *Upvalue) get(vm *VM) Value {
	if u.IsClosed {
		return u.Closed
	}
	return vm.stack[u.Location]
}

// set writes through the upvalue.
func (u *Upvalue) set(vm *VM, v Value) {
	if u.IsClosed {
		u.Closed = v
		return
	}
	vm.stack[u.Location] = v
}
