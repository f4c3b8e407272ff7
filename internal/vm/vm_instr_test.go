package vm

import (
	"testing"

	"github.com/Chubek/Moonix/internal/config"
)

// asm builds a program directly from code units, the way the compiler
// would emit them.
type asm struct {
	code *Code
}

func newAsm() *asm {
	return &asm{code: NewCode()}
}

func (a *asm) op(op Opcode) *asm {
	a.code.EmitOp(op, 0)
	return a
}

func (a *asm) push(v Value) *asm {
	a.code.EmitOp(OP_LOAD_CODE, 0)
	a.code.EmitValue(v, 0)
	return a
}

func (a *asm) end() *asm {
	a.code.EmitEnd(0)
	return a
}

func (a *asm) program(rootLocals int) *Program {
	return &Program{
		Code: a.code,
		Root: &Closure{NumLocals: rootLocals, EntryPC: 0, EndPC: a.code.Len() - 1, Name: "main"},
	}
}

func runProgram(t *testing.T, p *Program) Value {
	t.Helper()
	vm := New()
	v, err := vm.Run(p)
	if err != nil {
		t.Fatalf("runtime error: %s", err)
	}
	return v
}

func runProgramError(t *testing.T, p *Program) *FatalError {
	t.Helper()
	vm := New()
	_, err := vm.Run(p)
	if err == nil {
		t.Fatal("expected runtime error")
	}
	return err.(*FatalError)
}

func TestInlineValueArithmetic(t *testing.T) {
	p := newAsm().
		push(NumberVal(2)).
		push(NumberVal(3)).
		op(OP_MUL).
		push(NumberVal(1)).
		op(OP_ADD).
		op(OP_RETURN).
		end().
		program(0)
	testNumber(t, runProgram(t, p), 7)
}

func TestUnaryNumberOps(t *testing.T) {
	p := newAsm().push(NumberVal(3.7)).op(OP_TRUNCATE).op(OP_RETURN).end().program(0)
	testNumber(t, runProgram(t, p), 3)

	p = newAsm().push(NumberVal(-3.2)).op(OP_FLOOR).op(OP_RETURN).end().program(0)
	testNumber(t, runProgram(t, p), -4)

	p = newAsm().push(NumberVal(-3.2)).op(OP_TRUNCATE).op(OP_RETURN).end().program(0)
	testNumber(t, runProgram(t, p), -3)

	p = newAsm().push(NumberVal(9)).op(OP_NEGATE).op(OP_RETURN).end().program(0)
	testNumber(t, runProgram(t, p), -9)
}

func TestBitwiseOps(t *testing.T) {
	tests := []struct {
		a, b float64
		op   Opcode
		want float64
	}{
		{0xF0, 0x3C, OP_BAND, 0x30},
		{0xF0, 0x0F, OP_BOR, 0xFF},
		{0xFF, 0x0F, OP_BXOR, 0xF0},
		{1, 8, OP_SHL, 256},
		{256, 4, OP_SHR, 16},
	}
	for _, tc := range tests {
		p := newAsm().push(NumberVal(tc.a)).push(NumberVal(tc.b)).op(tc.op).op(OP_RETURN).end().program(0)
		testNumber(t, runProgram(t, p), tc.want)
	}
}

func TestBitwiseNot(t *testing.T) {
	p := newAsm().push(NumberVal(0)).op(OP_BNOT).op(OP_RETURN).end().program(0)
	testNumber(t, runProgram(t, p), float64(^uint64(0)))
}

func TestShiftAmountValidated(t *testing.T) {
	p := newAsm().push(NumberVal(1)).push(NumberVal(0)).op(OP_SHL).op(OP_RETURN).end().program(0)
	fe := runProgramError(t, p)
	if fe.Kind != FaultTypeMismatch {
		t.Errorf("wrong fault kind: %v", fe.Kind)
	}

	p = newAsm().push(NumberVal(1)).push(NumberVal(65)).op(OP_SHR).op(OP_RETURN).end().program(0)
	fe = runProgramError(t, p)
	if fe.Kind != FaultTypeMismatch {
		t.Errorf("wrong fault kind: %v", fe.Kind)
	}
}

func TestBitwiseRejectsNegative(t *testing.T) {
	p := newAsm().push(NumberVal(-1)).push(NumberVal(1)).op(OP_BAND).op(OP_RETURN).end().program(0)
	fe := runProgramError(t, p)
	if fe.Kind != FaultTypeMismatch {
		t.Errorf("wrong fault kind: %v", fe.Kind)
	}
}

func TestIPowExact(t *testing.T) {
	p := newAsm().push(NumberVal(3)).push(NumberVal(4)).op(OP_IPOW).op(OP_RETURN).end().program(0)
	testNumber(t, runProgram(t, p), 81)

	p = newAsm().push(NumberVal(2)).push(NumberVal(-2)).op(OP_IPOW).op(OP_RETURN).end().program(0)
	testNumber(t, runProgram(t, p), 0.25)
}

func TestStrictLogicOps(t *testing.T) {
	p := newAsm().push(BoolVal(true)).push(BoolVal(false)).op(OP_CONJ).op(OP_RETURN).end().program(0)
	testBool(t, runProgram(t, p), false)

	p = newAsm().push(BoolVal(false)).push(BoolVal(true)).op(OP_DISJ).op(OP_RETURN).end().program(0)
	testBool(t, runProgram(t, p), true)

	// Non-boolean operands are a type fault, not a coercion.
	p = newAsm().push(NumberVal(1)).push(BoolVal(true)).op(OP_CONJ).op(OP_RETURN).end().program(0)
	fe := runProgramError(t, p)
	if fe.Kind != FaultTypeMismatch {
		t.Errorf("wrong fault kind: %v", fe.Kind)
	}
}

func TestStackBalanceAfterCall(t *testing.T) {
	// A closure whose body has no return: after the call unwinds, the
	// operand stack holds exactly the entry state plus one result.
	src := `
local function noisy()
  local a = 1
  local b = 2
  local c = a + b
end
noisy()
return 5`
	program := compileSource(t, src)
	vm := New()
	v, err := vm.Run(program)
	if err != nil {
		t.Fatalf("runtime error: %s", err)
	}
	testNumber(t, v, 5)
	// Only the globals region remains after the root result is popped.
	if vm.sp != config.MaxGlobals {
		t.Errorf("operand stack not balanced: sp=%d, want %d", vm.sp, config.MaxGlobals)
	}
	if vm.frameCount != 0 {
		t.Errorf("call stack not unwound: %d frames", vm.frameCount)
	}
}

func TestFallthroughYieldsNil(t *testing.T) {
	v := runVM(t, "local function quiet() end return quiet()")
	if !v.IsNil() {
		t.Errorf("body without return should yield nil, got %s", v.Inspect())
	}
}

func TestConstantPoolIsolation(t *testing.T) {
	// Frames write the same constant index; each frame sees only its
	// own pool. The inner call stores 99 at index 0 and must not
	// disturb the outer frame's slot 0.
	inner := func(a *asm) {
		a.push(NumberVal(99)).push(IndexVal(0)).op(OP_STORE_CONST)
		a.push(NilVal()).op(OP_RETURN)
	}

	a := newAsm()
	// outer: store 7 at const 0
	a.push(NumberVal(7)).push(IndexVal(0)).op(OP_STORE_CONST)
	// make inner closure, call it
	a.push(BoolVal(false)).push(IndexVal(0)).push(IndexVal(0)).op(OP_MAKE_CLOSURE)
	inner(a)
	a.end() // inner body marker
	// closure on stack: push argc, swap shape: argc below closure
	// (the closure is already on top, so re-push protocol: store to
	// const 1, push argc, reload)
	a.push(IndexVal(1)).op(OP_STORE_CONST)
	a.push(IndexVal(0)) // zero arguments
	a.push(IndexVal(1)).op(OP_LOAD_CONST)
	a.op(OP_CALL)
	a.op(OP_POP) // discard inner result
	// outer: read const 0 back
	a.push(IndexVal(0)).op(OP_LOAD_CONST)
	a.op(OP_RETURN)
	a.end()

	testNumber(t, runProgram(t, a.program(0)), 7)
}

func TestConstantIndexBounds(t *testing.T) {
	p := newAsm().push(NumberVal(1)).push(IndexVal(config.MaxConst)).op(OP_STORE_CONST).end().program(0)
	fe := runProgramError(t, p)
	if fe.Kind != FaultBadConstantIndex {
		t.Errorf("wrong fault kind: %v", fe.Kind)
	}
}

func TestBranchTargetSafety(t *testing.T) {
	// A branch outside the executing closure's extent faults without
	// executing further instructions.
	a := newAsm()
	a.push(AddressVal(999)).op(OP_BRANCH)
	a.push(NumberVal(1)).op(OP_RETURN)
	a.end()
	fe := runProgramError(t, a.program(0))
	if fe.Kind != FaultBadBranch {
		t.Errorf("wrong fault kind: %v", fe.Kind)
	}

	// Address 0 is valid root code but sits outside a nested closure's
	// body, so branching there from inside the closure faults too.
	b := newAsm()
	b.push(BoolVal(false)).push(IndexVal(0)).push(IndexVal(0)).op(OP_MAKE_CLOSURE)
	b.push(AddressVal(0)).op(OP_BRANCH) // closure body
	b.end()                             // closure body marker
	// Stack holds the closure; park it so the argc goes below it.
	b.push(IndexVal(0)).op(OP_STORE_CONST)
	b.push(IndexVal(0)) // zero arguments
	b.push(IndexVal(0)).op(OP_LOAD_CONST)
	b.op(OP_CALL)
	b.op(OP_RETURN)
	b.end()
	fe = runProgramError(t, b.program(0))
	if fe.Kind != FaultBadBranch {
		t.Errorf("wrong fault kind: %v", fe.Kind)
	}
}

func TestBranchWithinExtentWorks(t *testing.T) {
	// A forward branch inside the body skips over dead code.
	a := newAsm()
	a.push(NumberVal(1))       // 0,1
	skip := a.code.Len() + 1   // address unit position
	a.push(AddressVal(0))      // 2,3 placeholder
	a.op(OP_BRANCH)            // 4
	a.push(NumberVal(999))     // 5,6 dead code
	a.op(OP_POP)               // 7
	target := a.code.Len()     // 8
	a.op(OP_RETURN)            // 8
	a.end()                    // 9
	a.code.Units[skip].Val = AddressVal(target)
	testNumber(t, runProgram(t, a.program(0)), 1)
}

func TestMisalignedCodeFaults(t *testing.T) {
	// A bare inline value where an instruction is expected.
	a := newAsm()
	a.code.EmitValue(NumberVal(1), 0)
	a.end()
	fe := runProgramError(t, a.program(0))
	if fe.Kind != FaultMalformedCode {
		t.Errorf("wrong fault kind: %v", fe.Kind)
	}

	// LOAD_CODE with no inline value after it.
	b := newAsm()
	b.code.EmitOp(OP_LOAD_CODE, 0)
	b.code.EmitOp(OP_POP, 0)
	b.end()
	fe = runProgramError(t, b.program(0))
	if fe.Kind != FaultMalformedCode {
		t.Errorf("wrong fault kind: %v", fe.Kind)
	}
}

func TestLoadFromCodeAtOffset(t *testing.T) {
	// Branch over a stashed inline value, then read it back by address.
	a := newAsm()
	a.push(AddressVal(0)).op(OP_BRANCH) // units 0-2; unit 1 patched below
	stash := a.code.EmitValue(StringVal("stashed"), 0)
	a.code.Units[1].Val = AddressVal(a.code.Len())
	a.push(AddressVal(stash))
	a.op(OP_LOAD_CODE_AT)
	a.op(OP_RETURN)
	a.end()
	testString(t, runProgram(t, a.program(0)), "stashed")
}

func TestCallConcurrentlyFaults(t *testing.T) {
	p := newAsm().op(OP_CALL_CONCURRENT).end().program(0)
	fe := runProgramError(t, p)
	if fe.Kind != FaultUnsupported {
		t.Errorf("wrong fault kind: %v", fe.Kind)
	}
}

func TestStackUnderflowFaults(t *testing.T) {
	p := newAsm().op(OP_POP).end().program(0)
	fe := runProgramError(t, p)
	if fe.Kind != FaultStackFlow {
		t.Errorf("wrong fault kind: %v", fe.Kind)
	}
}

func TestGlobalPointerWrites(t *testing.T) {
	// LOAD_GLOBAL_PTR yields a pointer that writes through to the
	// global slot.
	a := newAsm()
	a.push(IndexVal(3)).op(OP_LOAD_GLOBAL_PTR)
	a.push(NumberVal(77)).op(OP_WRITE_PTR)
	a.push(IndexVal(3)).op(OP_LOAD_GLOBAL)
	a.op(OP_RETURN)
	a.end()
	testNumber(t, runProgram(t, a.program(0)), 77)
}

func TestPointerReadThrough(t *testing.T) {
	a := newAsm()
	a.push(NumberVal(5)).push(IndexVal(2)).op(OP_STORE_GLOBAL)
	a.push(IndexVal(2)).op(OP_LOAD_GLOBAL_PTR)
	a.op(OP_READ_PTR)
	a.op(OP_RETURN)
	a.end()
	testNumber(t, runProgram(t, a.program(0)), 5)
}

func TestTruthyCoercion(t *testing.T) {
	p := newAsm().push(NumberVal(0)).op(OP_TRUTHY).op(OP_RETURN).end().program(0)
	testBool(t, runProgram(t, p), true)

	p = newAsm().push(NilVal()).op(OP_TRUTHY).op(OP_RETURN).end().program(0)
	testBool(t, runProgram(t, p), false)
}

func TestDupAndPop(t *testing.T) {
	p := newAsm().push(NumberVal(6)).op(OP_DUP).op(OP_ADD).op(OP_RETURN).end().program(0)
	testNumber(t, runProgram(t, p), 12)
}

func TestTableInstructions(t *testing.T) {
	// Insert appends without dedup; lookups see the latest entry.
	a := newAsm()
	a.op(OP_NEW_TABLE)
	a.push(StringVal("k")).push(NumberVal(1)).op(OP_INSERT_TABLE)
	a.push(StringVal("k")).push(NumberVal(2)).op(OP_INSERT_TABLE)
	a.op(OP_DUP)
	a.push(StringVal("k")).op(OP_GET_TABLE) // latest entry wins
	a.op(OP_RETURN)
	a.end()
	testNumber(t, runProgram(t, a.program(0)), 2)

	// The same table holds two entries under Insert.
	b := newAsm()
	b.op(OP_NEW_TABLE)
	b.push(StringVal("k")).push(NumberVal(1)).op(OP_INSERT_TABLE)
	b.push(StringVal("k")).push(NumberVal(2)).op(OP_INSERT_TABLE)
	b.op(OP_LEN)
	b.op(OP_RETURN)
	b.end()
	testNumber(t, runProgram(t, b.program(0)), 2)

	// Set dedups: one entry after two stores under one key.
	c := newAsm()
	c.op(OP_NEW_TABLE)
	c.push(IndexVal(0)).op(OP_STORE_CONST) // park the table
	c.push(IndexVal(0)).op(OP_LOAD_CONST)
	c.push(StringVal("k")).push(NumberVal(1)).op(OP_SET_TABLE)
	c.push(IndexVal(0)).op(OP_LOAD_CONST)
	c.push(StringVal("k")).push(NumberVal(2)).op(OP_SET_TABLE)
	c.push(IndexVal(0)).op(OP_LOAD_CONST)
	c.op(OP_LEN)
	c.op(OP_RETURN)
	c.end()
	testNumber(t, runProgram(t, c.program(0)), 1)
}

func TestHasTableInstruction(t *testing.T) {
	a := newAsm()
	a.op(OP_NEW_TABLE)
	a.push(NumberVal(1)).push(StringVal("v")).op(OP_INSERT_TABLE)
	a.op(OP_DUP)
	a.push(NumberVal(1)).op(OP_HAS_TABLE)
	a.op(OP_RETURN)
	a.end()
	testBool(t, runProgram(t, a.program(0)), true)

	b := newAsm()
	b.op(OP_NEW_TABLE)
	b.push(NumberVal(1)).op(OP_HAS_TABLE)
	b.op(OP_RETURN)
	b.end()
	testBool(t, runProgram(t, b.program(0)), false)
}
