package vm

import (
	"context"

	"github.com/Chubek/Moonix/internal/config"
)

// Program is a compiled unit: the code stream plus the root closure
// that enters it.
type Program struct {
	Code   *Code
	Root   *Closure
	Source string // file the program was compiled from
}

// VM is the stack virtual machine. It is single-threaded: one
// fetch-decode-execute loop runs a program to completion.
type VM struct {
	stack []Value
	sp    int // points to the next free slot

	frames     []CallFrame
	frameCount int
	frame      *CallFrame // current frame (nil before Run)

	code *Code
	pc   int // cursor into code.Units
	base int // current frame's base (== frame.StaticLink)

	// Linked list of open upvalues, sorted by stack location
	// (highest first).
	openUpvalues *Upvalue

	// building receives captures emitted after a MAKE_CLOSURE.
	building *Closure

	limits   config.Limits
	executed int64

	// Context for cancellation, checked periodically.
	ctx context.Context
}

// New creates a VM with default limits.
func New() *VM {
	return &VM{
		stack:  make([]Value, config.InitialStackSize),
		frames: make([]CallFrame, config.InitialFrameCount),
		limits: config.DefaultLimits(),
		ctx:    context.Background(),
	}
}

// SetLimits overrides the runtime ceilings.
func (vm *VM) SetLimits(l config.Limits) {
	vm.limits = l
}

// SetContext sets the context checked for cancellation.
func (vm *VM) SetContext(ctx context.Context) {
	vm.ctx = ctx
}

// Executed returns the number of instructions executed so far.
func (vm *VM) Executed() int64 {
	return vm.executed
}

// Run executes a program's root closure and returns its result value.
// The bottom config.MaxGlobals operand slots are reserved for globals.
func (vm *VM) Run(program *Program) (Value, error) {
	vm.code = program.Code
	vm.sp = 0
	vm.frameCount = 0
	vm.openUpvalues = nil
	vm.building = nil
	vm.executed = 0

	// Reserve the global region.
	for i := 0; i < config.MaxGlobals; i++ {
		if err := vm.push(NilVal()); err != nil {
			return NilVal(), err
		}
	}

	if err := vm.enterClosure(program.Root, 0, -1); err != nil {
		return NilVal(), err
	}

	return vm.loop()
}

// loop is the dispatcher: pop a code unit, dispatch on its kind, repeat
// until the root frame unwinds.
func (vm *VM) loop() (Value, error) {
	for {
		if vm.limits.MaxInstructions > 0 && vm.executed >= vm.limits.MaxInstructions {
			return NilVal(), vm.fault(FaultBudget, "exceeded %d instructions", vm.limits.MaxInstructions)
		}
		if vm.executed%1024 == 0 {
			select {
			case <-vm.ctx.Done():
				return NilVal(), vm.fault(FaultCancelled, "%s", vm.ctx.Err())
			default:
			}
		}
		vm.executed++

		if vm.pc < 0 || vm.pc >= vm.code.Len() {
			return NilVal(), vm.fault(FaultMalformedCode, "program counter %d outside code", vm.pc)
		}
		unit := vm.code.Units[vm.pc]
		vm.pc++

		switch unit.Kind {
		case UnitEndClosure:
			// Falling off the end of a body yields nil.
			done, err := vm.clearUpCallFrame(NilVal())
			if err != nil {
				return NilVal(), err
			}
			if done {
				return vm.rootResult()
			}
		case UnitValue:
			return NilVal(), vm.fault(FaultMalformedCode, "instruction expected, found inline value")
		case UnitInstruction:
			done, err := vm.executeOneOp(unit.Op)
			if err != nil {
				return NilVal(), err
			}
			if done {
				return vm.rootResult()
			}
		}
	}
}

// rootResult pops the value the root frame left behind.
func (vm *VM) rootResult() (Value, error) {
	if vm.sp <= config.MaxGlobals {
		return NilVal(), nil
	}
	v, err := vm.pop()
	if err != nil {
		return NilVal(), err
	}
	return v, nil
}

// enterClosure establishes a call frame for c per the frame layout:
// numArgs argument slots are already on the stack, locals are
// initialized to nil above them, and the frame records its links.
func (vm *VM) enterClosure(c *Closure, numArgs int, returnPC int) *FatalError {
	newBase := vm.sp - numArgs
	if newBase < 0 {
		return vm.fault(FaultStackFlow, "call with %d arguments but only %d operands", numArgs, vm.sp)
	}

	for i := 0; i < c.NumLocals; i++ {
		if err := vm.push(NilVal()); err != nil {
			return err
		}
	}

	prevBase := vm.base
	if vm.frameCount == 0 {
		prevBase = 0
	}
	frame := CallFrame{
		Closure:     c,
		NumArgs:     numArgs,
		NumLocals:   c.NumLocals,
		StaticLink:  newBase,
		DynamicLink: returnPC,
		FrameLink:   prevBase,
	}
	if err := vm.pushFrame(frame); err != nil {
		return err
	}
	vm.base = newBase
	vm.pc = c.EntryPC
	return nil
}

// clearUpCallFrame pops the current frame: open upvalues into the
// frame's region are closed, the operand stack is truncated to the
// static link, the result is pushed, and the caller's PC and base are
// restored. Returns true when the root frame was just popped.
func (vm *VM) clearUpCallFrame(result Value) (bool, *FatalError) {
	if vm.frameCount == 0 {
		return false, vm.fault(FaultStackFlow, "call stack underflow")
	}
	frame := vm.frame

	vm.closeUpvalues(frame.StaticLink)

	// Truncate the callee's region (arguments, locals, temporaries).
	for i := frame.StaticLink; i < vm.sp; i++ {
		vm.stack[i] = NilVal()
	}
	vm.sp = frame.StaticLink

	if err := vm.push(result); err != nil {
		return false, err
	}

	vm.frameCount--
	if vm.frameCount == 0 {
		vm.frame = nil
		return true, nil
	}
	vm.frame = &vm.frames[vm.frameCount-1]
	vm.pc = frame.DynamicLink
	vm.base = frame.FrameLink
	return false, nil
}

// captureUpvalue creates or reuses an open upvalue for an absolute
// stack location. The open list is kept sorted by location, highest
// first, so closing can stop early.
func (vm *VM) captureUpvalue(location int) *Upvalue {
	var prev *Upvalue
	upvalue := vm.openUpvalues

	for upvalue != nil && upvalue.Location > location {
		prev = upvalue
		upvalue = upvalue.Next
	}
	if upvalue != nil && upvalue.Location == location {
		return upvalue
	}

	created := &Upvalue{Location: location, Next: upvalue}
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.Next = created
	}
	return created
}

// closeUpvalues closes every open upvalue at or above lastSlot: the
// referenced value is copied into the upvalue's own cell and the
// reference redirected there. Closing is idempotent; an already-closed
// upvalue never re-enters the open list.
func (vm *VM) closeUpvalues(lastSlot int) {
	for vm.openUpvalues != nil && vm.openUpvalues.Location >= lastSlot {
		upvalue := vm.openUpvalues
		upvalue.Closed = vm.stack[upvalue.Location]
		upvalue.IsClosed = true
		upvalue.Location = -1
		vm.openUpvalues = upvalue.Next
		upvalue.Next = nil
	}
}

// closureExtent returns the valid branch range of the executing body.
func (vm *VM) closureExtent() (int, int) {
	if vm.frame != nil && vm.frame.Closure != nil {
		return vm.frame.Closure.EntryPC, vm.frame.Closure.EndPC
	}
	return 0, vm.code.Len()
}
