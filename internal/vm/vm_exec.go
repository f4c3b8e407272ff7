package vm

import (
	"github.com/Chubek/Moonix/internal/config"
)

// executeOneOp executes a single instruction. It reports done=true when
// the root frame unwound (via OP_RETURN at root depth).
func (vm *VM) executeOneOp(op Opcode) (bool, error) {
	switch op {
	case OP_POP:
		if _, err := vm.pop(); err != nil {
			return false, err
		}

	case OP_DUP:
		v, err := vm.peek(0)
		if err != nil {
			return false, err
		}
		if err := vm.push(v); err != nil {
			return false, err
		}

	case OP_TRUTHY:
		v, err := vm.pop()
		if err != nil {
			return false, err
		}
		if err := vm.push(BoolVal(v.Truthy())); err != nil {
			return false, err
		}

	case OP_ADD, OP_SUB, OP_MUL, OP_DIV, OP_MOD, OP_FPOW, OP_IPOW:
		if err := vm.binaryNumberOp(op); err != nil {
			return false, err
		}

	case OP_NEGATE, OP_TRUNCATE, OP_FLOOR:
		if err := vm.unaryNumberOp(op); err != nil {
			return false, err
		}

	case OP_BAND, OP_BOR, OP_BXOR, OP_SHL, OP_SHR:
		if err := vm.bitwiseOp(op); err != nil {
			return false, err
		}

	case OP_BNOT:
		if err := vm.bitwiseNotOp(); err != nil {
			return false, err
		}

	case OP_CONJ, OP_DISJ:
		b, err := vm.popKind(ValBoolean, OpcodeNames[op])
		if err != nil {
			return false, err
		}
		a, err := vm.popKind(ValBoolean, OpcodeNames[op])
		if err != nil {
			return false, err
		}
		var r bool
		if op == OP_CONJ {
			r = a.AsBool() && b.AsBool()
		} else {
			r = a.AsBool() || b.AsBool()
		}
		if err := vm.push(BoolVal(r)); err != nil {
			return false, err
		}

	case OP_NOT:
		v, err := vm.popKind(ValBoolean, "NOT")
		if err != nil {
			return false, err
		}
		if err := vm.push(BoolVal(!v.AsBool())); err != nil {
			return false, err
		}

	case OP_CONCAT:
		if err := vm.concatOp(); err != nil {
			return false, err
		}

	case OP_LEN:
		if err := vm.lenOp(); err != nil {
			return false, err
		}

	case OP_EQ, OP_NE:
		b, err := vm.pop()
		if err != nil {
			return false, err
		}
		a, err := vm.pop()
		if err != nil {
			return false, err
		}
		r := a.Equals(b)
		if op == OP_NE {
			r = !r
		}
		if err := vm.push(BoolVal(r)); err != nil {
			return false, err
		}

	case OP_LT, OP_LE, OP_GT, OP_GE:
		if err := vm.comparisonOp(op); err != nil {
			return false, err
		}

	case OP_LOAD_LOCAL:
		i, err := vm.popIndex("LOAD_LOCAL")
		if err != nil {
			return false, err
		}
		slot, err := vm.localSlot(i)
		if err != nil {
			return false, err
		}
		if err := vm.push(vm.stack[slot]); err != nil {
			return false, err
		}

	case OP_STORE_LOCAL:
		i, err := vm.popIndex("STORE_LOCAL")
		if err != nil {
			return false, err
		}
		v, err := vm.pop()
		if err != nil {
			return false, err
		}
		slot, err := vm.localSlot(i)
		if err != nil {
			return false, err
		}
		vm.stack[slot] = v

	case OP_LOAD_ARG:
		i, err := vm.popIndex("LOAD_ARG")
		if err != nil {
			return false, err
		}
		slot, err := vm.argSlot(i)
		if err != nil {
			return false, err
		}
		if err := vm.push(vm.stack[slot]); err != nil {
			return false, err
		}

	case OP_LOAD_GLOBAL:
		g, err := vm.popGlobalIndex("LOAD_GLOBAL")
		if err != nil {
			return false, err
		}
		if err := vm.push(vm.stack[g]); err != nil {
			return false, err
		}

	case OP_STORE_GLOBAL:
		g, err := vm.popGlobalIndex("STORE_GLOBAL")
		if err != nil {
			return false, err
		}
		v, err := vm.pop()
		if err != nil {
			return false, err
		}
		vm.stack[g] = v

	case OP_LOAD_GLOBAL_PTR:
		g, err := vm.popGlobalIndex("LOAD_GLOBAL_PTR")
		if err != nil {
			return false, err
		}
		up := vm.captureUpvalue(g)
		if err := vm.push(PointerVal(up)); err != nil {
			return false, err
		}

	case OP_LOAD_CONST:
		i, err := vm.popIndex("LOAD_CONST")
		if err != nil {
			return false, err
		}
		v, ok := vm.frame.loadConstant(i)
		if !ok {
			return false, vm.fault(FaultBadConstantIndex, "constant index %d outside [0, %d)", i, config.MaxConst)
		}
		if err := vm.push(v); err != nil {
			return false, err
		}

	case OP_STORE_CONST:
		i, err := vm.popIndex("STORE_CONST")
		if err != nil {
			return false, err
		}
		v, err := vm.pop()
		if err != nil {
			return false, err
		}
		if !vm.frame.storeConstant(i, v) {
			return false, vm.fault(FaultBadConstantIndex, "constant index %d outside [0, %d)", i, config.MaxConst)
		}

	case OP_LOAD_CODE:
		if vm.pc >= vm.code.Len() || vm.code.Units[vm.pc].Kind != UnitValue {
			return false, vm.fault(FaultMalformedCode, "inline value expected after LOAD_CODE")
		}
		v := vm.code.Units[vm.pc].Val
		vm.pc++
		if err := vm.push(v); err != nil {
			return false, err
		}

	case OP_LOAD_CODE_AT:
		addr, err := vm.popKind(ValAddress, "LOAD_CODE_AT")
		if err != nil {
			return false, err
		}
		a := addr.AsAddress()
		if a < 0 || a >= vm.code.Len() || vm.code.Units[a].Kind != UnitValue {
			return false, vm.fault(FaultMalformedCode, "no inline value at address %d", a)
		}
		if err := vm.push(vm.code.Units[a].Val); err != nil {
			return false, err
		}

	case OP_READ_PTR:
		p, err := vm.popKind(ValPointer, "READ_PTR")
		if err != nil {
			return false, err
		}
		if err := vm.push(p.AsPointer().get(vm)); err != nil {
			return false, err
		}

	case OP_WRITE_PTR:
		v, err := vm.pop()
		if err != nil {
			return false, err
		}
		p, err := vm.popKind(ValPointer, "WRITE_PTR")
		if err != nil {
			return false, err
		}
		p.AsPointer().set(vm, v)

	case OP_NEW_TABLE:
		if err := vm.push(TableVal(NewTable())); err != nil {
			return false, err
		}

	case OP_INSERT_TABLE:
		v, err := vm.pop()
		if err != nil {
			return false, err
		}
		k, err := vm.pop()
		if err != nil {
			return false, err
		}
		t, err := vm.popKind(ValTable, "INSERT_TABLE")
		if err != nil {
			return false, err
		}
		t.AsTable().Insert(k, v)
		if err := vm.push(t); err != nil {
			return false, err
		}

	case OP_SET_TABLE:
		v, err := vm.pop()
		if err != nil {
			return false, err
		}
		k, err := vm.pop()
		if err != nil {
			return false, err
		}
		t, err := vm.popKind(ValTable, "SET_TABLE")
		if err != nil {
			return false, err
		}
		t.AsTable().Set(k, v)

	case OP_GET_TABLE:
		k, err := vm.pop()
		if err != nil {
			return false, err
		}
		t, err := vm.popKind(ValTable, "GET_TABLE")
		if err != nil {
			return false, err
		}
		v, ok := t.AsTable().Get(k)
		if !ok {
			return false, vm.fault(FaultMissingTableEntry, "no entry for key %s", k.Inspect())
		}
		if err := vm.push(v); err != nil {
			return false, err
		}

	case OP_HAS_TABLE:
		k, err := vm.pop()
		if err != nil {
			return false, err
		}
		t, err := vm.popKind(ValTable, "HAS_TABLE")
		if err != nil {
			return false, err
		}
		if err := vm.push(BoolVal(t.AsTable().Has(k))); err != nil {
			return false, err
		}

	case OP_MAKE_CLOSURE:
		if err := vm.makeClosureOp(); err != nil {
			return false, err
		}

	case OP_LOAD_UPVALUE:
		i, err := vm.popIndex("LOAD_UPVALUE")
		if err != nil {
			return false, err
		}
		if vm.building == nil {
			return false, vm.fault(FaultMalformedCode, "LOAD_UPVALUE with no closure under construction")
		}
		abs := vm.base + i
		if _, err := vm.slot(abs); err != nil {
			return false, err
		}
		vm.building.Upvalues = append(vm.building.Upvalues, vm.captureUpvalue(abs))

	case OP_CAPTURE_UPVALUE:
		i, err := vm.popIndex("CAPTURE_UPVALUE")
		if err != nil {
			return false, err
		}
		if vm.building == nil {
			return false, vm.fault(FaultMalformedCode, "CAPTURE_UPVALUE with no closure under construction")
		}
		encl := vm.frame.Closure
		if encl == nil || i >= len(encl.Upvalues) {
			return false, vm.fault(FaultMalformedCode, "no enclosing upvalue %d", i)
		}
		vm.building.Upvalues = append(vm.building.Upvalues, encl.Upvalues[i])

	case OP_STORE_UPVALUE:
		i, err := vm.popIndex("STORE_UPVALUE")
		if err != nil {
			return false, err
		}
		c := vm.frame.Closure
		if c == nil || i >= len(c.Upvalues) {
			return false, vm.fault(FaultMalformedCode, "closure has no upvalue %d", i)
		}
		if err := vm.push(PointerVal(c.Upvalues[i])); err != nil {
			return false, err
		}

	case OP_CALL:
		if err := vm.callOp(); err != nil {
			return false, err
		}

	case OP_RETURN:
		result, err := vm.pop()
		if err != nil {
			return false, err
		}
		done, ferr := vm.clearUpCallFrame(result)
		if ferr != nil {
			return false, ferr
		}
		return done, nil

	case OP_CALL_CONCURRENT:
		return false, vm.fault(FaultUnsupported, "concurrent calls are not supported")

	case OP_BRANCH, OP_BRANCH_TRUE, OP_BRANCH_FALSE:
		if err := vm.branchOp(op); err != nil {
			return false, err
		}

	default:
		return false, vm.fault(FaultMalformedCode, "unknown opcode %d", op)
	}
	return false, nil
}

// localSlot maps a frame-relative local index to an absolute slot.
// Arguments sit at the bottom of the frame, locals above them.
func (vm *VM) localSlot(i int) (int, *FatalError) {
	if vm.frame == nil {
		return 0, vm.fault(FaultMalformedCode, "local access outside a frame")
	}
	if i < 0 || i >= vm.frame.NumLocals {
		return 0, vm.fault(FaultStackFlow, "local index %d outside [0, %d)", i, vm.frame.NumLocals)
	}
	return vm.base + vm.frame.NumArgs + i, nil
}

// argSlot maps an argument index to an absolute slot.
func (vm *VM) argSlot(i int) (int, *FatalError) {
	if vm.frame == nil {
		return 0, vm.fault(FaultMalformedCode, "argument access outside a frame")
	}
	if i < 0 || i >= vm.frame.NumArgs {
		return 0, vm.fault(FaultStackFlow, "argument index %d outside [0, %d)", i, vm.frame.NumArgs)
	}
	return vm.base + i, nil
}

func (vm *VM) popIndex(what string) (int, *FatalError) {
	v, err := vm.popKind(ValIndex, what)
	if err != nil {
		return 0, err
	}
	return v.AsIndex(), nil
}

func (vm *VM) popGlobalIndex(what string) (int, *FatalError) {
	i, err := vm.popIndex(what)
	if err != nil {
		return 0, err
	}
	if i < 0 || i >= config.MaxGlobals {
		return 0, vm.fault(FaultStackFlow, "global index %d outside [0, %d)", i, config.MaxGlobals)
	}
	return i, nil
}

// makeClosureOp builds a closure from the body that starts at the
// current PC and runs to the matching end marker. Operands, top first:
// the local count, the parameter count, and the variadic flag. It then
// moves the PC past the marker; capture instructions follow it
// and append to the closure just built.
func (vm *VM) makeClosureOp() *FatalError {
	numLocals, err := vm.popIndex("MAKE_CLOSURE")
	if err != nil {
		return err
	}
	numParamsVal, err := vm.popIndex("MAKE_CLOSURE")
	if err != nil {
		return err
	}
	isVarargs, err := vm.popKind(ValBoolean, "MAKE_CLOSURE")
	if err != nil {
		return err
	}

	entry := vm.pc
	end := vm.code.FindMatchingEnd(entry)
	if end < 0 {
		return vm.fault(FaultMalformedCode, "closure body at %d has no end marker", entry)
	}

	closure := &Closure{
		NumParams:  numParamsVal,
		NumLocals:  numLocals,
		IsVariadic: isVarargs.AsBool(),
		EntryPC:    entry,
		EndPC:      end,
	}
	if err := vm.push(ClosureVal(closure)); err != nil {
		return err
	}
	vm.building = closure
	vm.pc = end + 1
	return nil
}

// callOp invokes a closure. Operands, top first: the closure, then the
// pushed argument count, below which the arguments sit in source order.
// The argument list is reconciled against the callee's parameter count:
// missing arguments read as nil, extras are dropped, and a variadic
// callee packs its extras into a fresh table passed as a trailing
// argument.
func (vm *VM) callOp() *FatalError {
	calleeVal, err := vm.pop()
	if err != nil {
		return err
	}
	if !calleeVal.IsClosure() {
		return vm.fault(FaultTypeMismatch, "cannot call a %s value", calleeVal.TypeName())
	}
	callee := calleeVal.AsClosure()

	pushed, err := vm.popIndex("CALL")
	if err != nil {
		return err
	}
	if pushed > vm.sp {
		return vm.fault(FaultStackFlow, "call claims %d arguments but stack holds %d", pushed, vm.sp)
	}

	numArgs := callee.NumParams
	if callee.IsVariadic {
		extra := pushed - callee.NumParams
		for extra < 0 {
			if err := vm.push(NilVal()); err != nil {
				return err
			}
			extra++
			pushed++
		}
		pack := NewTable()
		for i := 0; i < extra; i++ {
			k := NumberVal(float64(i + 1))
			pack.Insert(k, vm.stack[vm.sp-extra+i])
		}
		for i := 0; i < extra; i++ {
			if _, err := vm.pop(); err != nil {
				return err
			}
		}
		if err := vm.push(TableVal(pack)); err != nil {
			return err
		}
		numArgs = callee.NumParams + 1
	} else {
		for pushed < callee.NumParams {
			if err := vm.push(NilVal()); err != nil {
				return err
			}
			pushed++
		}
		for pushed > callee.NumParams {
			if _, err := vm.pop(); err != nil {
				return err
			}
			pushed--
		}
	}

	return vm.enterClosure(callee, numArgs, vm.pc)
}

// branchOp transfers control within the executing closure. The target
// address is popped first; conditional forms then pop a strict boolean.
func (vm *VM) branchOp(op Opcode) *FatalError {
	addr, err := vm.popKind(ValAddress, OpcodeNames[op])
	if err != nil {
		return err
	}
	target := addr.AsAddress()

	take := true
	if op != OP_BRANCH {
		cond, err := vm.popKind(ValBoolean, OpcodeNames[op])
		if err != nil {
			return err
		}
		if op == OP_BRANCH_TRUE {
			take = cond.AsBool()
		} else {
			take = !cond.AsBool()
		}
	}
	if !take {
		return nil
	}

	lo, hi := vm.closureExtent()
	if target < lo || target >= hi {
		return vm.fault(FaultBadBranch, "branch target %d outside [%d, %d)", target, lo, hi)
	}
	vm.pc = target
	return nil
}
