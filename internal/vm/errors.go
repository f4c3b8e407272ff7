package vm

import (
	"fmt"
)

// FaultKind classifies fatal runtime errors.
type FaultKind int

const (
	FaultStackFlow FaultKind = iota
	FaultTypeMismatch
	FaultMissingTableEntry
	FaultBadConstantIndex
	FaultMalformedCode
	FaultBadBranch
	FaultBudget
	FaultCancelled
	FaultUnsupported
)

var faultNames = map[FaultKind]string{
	FaultStackFlow:         "stack flow",
	FaultTypeMismatch:      "type mismatch",
	FaultMissingTableEntry: "missing table entry",
	FaultBadConstantIndex:  "bad constant index",
	FaultMalformedCode:     "malformed code",
	FaultBadBranch:         "bad branch",
	FaultBudget:            "instruction budget exhausted",
	FaultCancelled:         "cancelled",
	FaultUnsupported:       "unsupported operation",
}

// Trace snapshots the machine state at the moment of a fault: enough to
// reproduce the failure.
type Trace struct {
	PC         int
	Line       int
	OperandTop int
	FrameCount int
	FrameBase  int
	CodeLen    int
}

// FatalError is a fatal VM error. It aborts the executing script.
type FatalError struct {
	Kind    FaultKind
	Message string
	Trace   Trace
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("vm: %s: %s (pc=%d line=%d sp=%d frames=%d base=%d)",
		faultNames[e.Kind], e.Message, e.Trace.PC, e.Trace.Line,
		e.Trace.OperandTop, e.Trace.FrameCount, e.Trace.FrameBase)
}

// fault builds a FatalError carrying the current machine snapshot.
func (vm *VM) fault(kind FaultKind, format string, args ...interface{}) *FatalError {
	line := 0
	if vm.code != nil && vm.pc-1 >= 0 && vm.pc-1 < vm.code.Len() {
		line = vm.code.Units[vm.pc-1].Line
	}
	return &FatalError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Trace: Trace{
			PC:         vm.pc,
			Line:       line,
			OperandTop: vm.sp,
			FrameCount: vm.frameCount,
			FrameBase:  vm.base,
			CodeLen:    vm.codeLen(),
		},
	}
}

func (vm *VM) codeLen() int {
	if vm.code == nil {
		return 0
	}
	return vm.code.Len()
}
