package vm

import (
	"github.com/Chubek/Moonix/internal/ast"
)

func (c *Compiler) pushLoop() {
	fc := c.current
	fc.loops = append(fc.loops, loopContext{scopeDepth: fc.scopeDepth})
}

// popLoop patches every break in the innermost loop to the current end
// of code.
func (c *Compiler) popLoop() {
	fc := c.current
	loop := fc.loops[len(fc.loops)-1]
	fc.loops = fc.loops[:len(fc.loops)-1]
	for _, j := range loop.breakJumps {
		c.patchJump(j)
	}
}

func (c *Compiler) compileWhile(s *ast.WhileStatement) {
	line := s.Token.Line
	c.pushLoop()

	loopStart := c.code.Len()
	c.compileExpression(s.Condition)
	if c.failed() {
		return
	}
	c.emitOp(OP_TRUTHY, line)
	exit := c.emitJump(OP_BRANCH_FALSE, line)

	c.compileBlock(s.Body)
	if c.failed() {
		return
	}
	c.emitBranchTo(loopStart, line)

	c.patchJump(exit)
	c.popLoop()
}

func (c *Compiler) compileRepeat(s *ast.RepeatStatement) {
	line := s.Token.Line
	c.pushLoop()

	loopStart := c.code.Len()

	// The condition sees the body's locals, so the body's scope stays
	// open across it.
	c.beginScope()
	if s.Body != nil {
		for _, stmt := range s.Body.Statements {
			c.compileStatement(stmt)
			if c.failed() {
				return
			}
		}
		if s.Body.Last != nil {
			c.compileStatement(s.Body.Last)
			if c.failed() {
				return
			}
		}
	}
	c.compileExpression(s.Condition)
	if c.failed() {
		return
	}
	c.endScope()

	c.emitOp(OP_TRUTHY, line)
	c.emitPush(AddressVal(loopStart), line)
	c.emitOp(OP_BRANCH_FALSE, line)

	c.popLoop()
}

// compileNumericFor lowers for i = start, stop, step into explicit
// locals and branches. The loop continues while step >= 0 and i <= stop,
// or step < 0 and i >= stop.
func (c *Compiler) compileNumericFor(s *ast.NumericFor) {
	line := s.Token.Line
	c.pushLoop()
	c.beginScope()

	iSlot := c.declareLocal(s.Name.Value, s.Name.Token)
	limitSlot := c.declareLocal("(for-limit)", s.Token)
	stepSlot := c.declareLocal("(for-step)", s.Token)

	c.compileExpression(s.Start)
	c.emitIndex(iSlot, line)
	c.emitOp(OP_STORE_LOCAL, line)

	c.compileExpression(s.Stop)
	c.emitIndex(limitSlot, line)
	c.emitOp(OP_STORE_LOCAL, line)

	if s.Step != nil {
		c.compileExpression(s.Step)
	} else {
		c.emitPush(NumberVal(1), line)
	}
	c.emitIndex(stepSlot, line)
	c.emitOp(OP_STORE_LOCAL, line)
	if c.failed() {
		return
	}

	loopStart := c.code.Len()

	// (step >= 0 and i <= limit) or (step < 0 and i >= limit)
	c.emitIndex(stepSlot, line)
	c.emitOp(OP_LOAD_LOCAL, line)
	c.emitPush(NumberVal(0), line)
	c.emitOp(OP_GE, line)
	c.emitIndex(iSlot, line)
	c.emitOp(OP_LOAD_LOCAL, line)
	c.emitIndex(limitSlot, line)
	c.emitOp(OP_LOAD_LOCAL, line)
	c.emitOp(OP_LE, line)
	c.emitOp(OP_CONJ, line)

	c.emitIndex(stepSlot, line)
	c.emitOp(OP_LOAD_LOCAL, line)
	c.emitPush(NumberVal(0), line)
	c.emitOp(OP_LT, line)
	c.emitIndex(iSlot, line)
	c.emitOp(OP_LOAD_LOCAL, line)
	c.emitIndex(limitSlot, line)
	c.emitOp(OP_LOAD_LOCAL, line)
	c.emitOp(OP_GE, line)
	c.emitOp(OP_CONJ, line)

	c.emitOp(OP_DISJ, line)
	exit := c.emitJump(OP_BRANCH_FALSE, line)

	c.compileBlock(s.Body)
	if c.failed() {
		return
	}

	// i = i + step
	c.emitIndex(iSlot, line)
	c.emitOp(OP_LOAD_LOCAL, line)
	c.emitIndex(stepSlot, line)
	c.emitOp(OP_LOAD_LOCAL, line)
	c.emitOp(OP_ADD, line)
	c.emitIndex(iSlot, line)
	c.emitOp(OP_STORE_LOCAL, line)

	c.emitBranchTo(loopStart, line)

	c.patchJump(exit)
	c.endScope()
	c.popLoop()
}

// compileGenericFor lowers for vars in f, s, ctrl: each iteration calls
// f(s, ctrl); a nil result ends the loop, otherwise it becomes both the
// new control value and the first loop variable. Extra loop variables
// read nil.
func (c *Compiler) compileGenericFor(s *ast.GenericFor) {
	line := s.Token.Line
	c.pushLoop()
	c.beginScope()

	fSlot := c.declareLocal("(for-fn)", s.Token)
	sSlot := c.declareLocal("(for-state)", s.Token)
	ctrlSlot := c.declareLocal("(for-control)", s.Token)

	varSlots := make([]int, len(s.Names))
	for i, name := range s.Names {
		varSlots[i] = c.declareLocal(name.Value, name.Token)
	}

	c.adjustValues(s.Exprs, 3, line)
	if c.failed() {
		return
	}
	c.emitIndex(ctrlSlot, line)
	c.emitOp(OP_STORE_LOCAL, line)
	c.emitIndex(sSlot, line)
	c.emitOp(OP_STORE_LOCAL, line)
	c.emitIndex(fSlot, line)
	c.emitOp(OP_STORE_LOCAL, line)

	loopStart := c.code.Len()

	// result = f(s, ctrl)
	c.emitIndex(sSlot, line)
	c.emitOp(OP_LOAD_LOCAL, line)
	c.emitIndex(ctrlSlot, line)
	c.emitOp(OP_LOAD_LOCAL, line)
	c.emitIndex(2, line)
	c.emitIndex(fSlot, line)
	c.emitOp(OP_LOAD_LOCAL, line)
	c.emitOp(OP_CALL, line)

	// Stop when the result is nil.
	c.emitOp(OP_DUP, line)
	c.emitPush(NilVal(), line)
	c.emitOp(OP_EQ, line)
	exit := c.emitJump(OP_BRANCH_TRUE, line)

	// ctrl and the first loop variable take the result.
	c.emitOp(OP_DUP, line)
	c.emitIndex(ctrlSlot, line)
	c.emitOp(OP_STORE_LOCAL, line)
	c.emitIndex(varSlots[0], line)
	c.emitOp(OP_STORE_LOCAL, line)
	for _, slot := range varSlots[1:] {
		c.emitPush(NilVal(), line)
		c.emitIndex(slot, line)
		c.emitOp(OP_STORE_LOCAL, line)
	}

	c.compileBlock(s.Body)
	if c.failed() {
		return
	}
	c.emitBranchTo(loopStart, line)

	// The exit path still holds the nil result.
	c.patchJump(exit)
	c.emitOp(OP_POP, line)

	c.endScope()
	c.popLoop()
}
