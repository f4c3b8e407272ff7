package vm

import (
	"github.com/Chubek/Moonix/internal/ast"
	"github.com/Chubek/Moonix/internal/diagnostics"
)

// compileBlock compiles a block in its own scope.
func (c *Compiler) compileBlock(block *ast.Block) {
	if c.failed() || block == nil {
		return
	}
	c.beginScope()
	for _, stmt := range block.Statements {
		c.compileStatement(stmt)
		if c.failed() {
			return
		}
	}
	if block.Last != nil {
		c.compileStatement(block.Last)
	}
	c.endScope()
}

func (c *Compiler) compileStatement(stmt ast.Statement) {
	if c.failed() {
		return
	}
	switch s := stmt.(type) {
	case *ast.LocalStatement:
		c.compileLocalStatement(s)
	case *ast.LocalFunction:
		c.compileLocalFunction(s)
	case *ast.Assign:
		c.compileAssign(s)
	case *ast.CallStatement:
		c.compileExpression(s.Call)
		c.emitOp(OP_POP, s.Token.Line)
	case *ast.DoStatement:
		c.compileBlock(s.Body)
	case *ast.IfStatement:
		c.compileIf(s)
	case *ast.WhileStatement:
		c.compileWhile(s)
	case *ast.RepeatStatement:
		c.compileRepeat(s)
	case *ast.NumericFor:
		c.compileNumericFor(s)
	case *ast.GenericFor:
		c.compileGenericFor(s)
	case *ast.FunctionStatement:
		c.compileFunctionStatement(s)
	case *ast.ReturnStatement:
		c.compileReturn(s)
	case *ast.BreakStatement:
		c.compileBreak(s)
	case *ast.GotoStatement:
		c.compileGoto(s)
	case *ast.LabelStatement:
		c.current.labels[s.Name.Value] = c.code.Len()
	default:
		c.failf(diagnostics.ErrC005, stmt.GetToken(), "cannot compile %T", stmt)
	}
}

// adjustValues compiles an expression list and pads or drops results so
// exactly want values remain on the stack.
func (c *Compiler) adjustValues(exprs []ast.Expression, want, line int) {
	for _, e := range exprs {
		c.compileExpression(e)
		if c.failed() {
			return
		}
	}
	got := len(exprs)
	for got < want {
		c.emitPush(NilVal(), line)
		got++
	}
	for got > want {
		c.emitOp(OP_POP, line)
		got--
	}
}

func (c *Compiler) compileLocalStatement(s *ast.LocalStatement) {
	line := s.Token.Line

	// Values are evaluated before the names enter scope.
	c.adjustValues(s.Values, len(s.Names), line)
	if c.failed() {
		return
	}

	slots := make([]int, len(s.Names))
	for i, name := range s.Names {
		slots[i] = c.declareLocal(name.Value, name.Token)
	}
	for i := len(slots) - 1; i >= 0; i-- {
		c.emitIndex(slots[i], line)
		c.emitOp(OP_STORE_LOCAL, line)
	}
}

func (c *Compiler) compileLocalFunction(s *ast.LocalFunction) {
	line := s.Token.Line
	// The name is in scope inside the body so recursion resolves to it.
	slot := c.declareLocal(s.Name.Value, s.Name.Token)
	c.compileFunctionLiteral(s.Fn)
	if c.failed() {
		return
	}
	c.emitIndex(slot, line)
	c.emitOp(OP_STORE_LOCAL, line)
}

func (c *Compiler) compileAssign(s *ast.Assign) {
	line := s.Token.Line

	c.adjustValues(s.Values, len(s.Targets), line)
	if c.failed() {
		return
	}

	// The last value is on top, so targets assign right to left.
	for i := len(s.Targets) - 1; i >= 0; i-- {
		c.compileStoreTarget(s.Targets[i], line)
		if c.failed() {
			return
		}
	}
}

// compileStoreTarget stores the value on top of the stack into an
// lvalue.
func (c *Compiler) compileStoreTarget(target ast.Expression, line int) {
	switch t := target.(type) {
	case *ast.Identifier:
		c.storeVar(c.resolveVar(t.Value, t.Token), line)
	case *ast.Field:
		c.compileTableStore(t.Object, StringVal(t.Name.Value), nil, line)
	case *ast.Index:
		c.compileTableStore(t.Object, NilVal(), t.Key, line)
	default:
		c.failf(diagnostics.ErrP005, target.GetToken(), "cannot assign to this expression")
	}
}

// compileTableStore parks the pending value in a scratch constant, then
// evaluates the table and key and writes through SET_TABLE. Exactly one
// of litKey / keyExpr is used.
func (c *Compiler) compileTableStore(object ast.Expression, litKey Value, keyExpr ast.Expression, line int) {
	k := c.allocScratch()
	c.emitIndex(k, line)
	c.emitOp(OP_STORE_CONST, line)

	c.compileExpression(object)
	if keyExpr != nil {
		c.compileExpression(keyExpr)
	} else {
		c.emitPush(litKey, line)
	}
	if c.failed() {
		return
	}

	c.emitIndex(k, line)
	c.emitOp(OP_LOAD_CONST, line)
	c.emitOp(OP_SET_TABLE, line)
	c.releaseScratch()
}

func (c *Compiler) compileIf(s *ast.IfStatement) {
	line := s.Token.Line
	var endJumps []int

	for i, cb := range s.CondBlocks {
		c.compileExpression(cb.Condition)
		if c.failed() {
			return
		}
		c.emitOp(OP_TRUTHY, line)
		skip := c.emitJump(OP_BRANCH_FALSE, line)

		c.compileBlock(cb.Body)
		if c.failed() {
			return
		}

		last := i == len(s.CondBlocks)-1 && s.ElseBlock == nil
		if !last {
			endJumps = append(endJumps, c.emitJump(OP_BRANCH, line))
		}
		c.patchJump(skip)
	}

	if s.ElseBlock != nil {
		c.compileBlock(s.ElseBlock)
		if c.failed() {
			return
		}
	}
	for _, j := range endJumps {
		c.patchJump(j)
	}
}

// compileFunctionStatement assigns a function literal to its dotted
// target: function a.b.c:m(...) is sugar for a.b.c.m = function(self, ...).
func (c *Compiler) compileFunctionStatement(s *ast.FunctionStatement) {
	line := s.Token.Line
	name := s.Name

	c.compileFunctionLiteral(s.Fn)
	if c.failed() {
		return
	}

	segments := make([]string, 0, len(name.Path)+1)
	for _, seg := range name.Path {
		segments = append(segments, seg.Value)
	}
	if name.Method != nil {
		segments = append(segments, name.Method.Value)
	}

	ref := c.resolveVar(name.Base.Value, name.Base.Token)
	if len(segments) == 0 {
		c.storeVar(ref, line)
		return
	}

	// Park the closure, walk the table path, set the final key.
	k := c.allocScratch()
	c.emitIndex(k, line)
	c.emitOp(OP_STORE_CONST, line)

	c.loadVar(ref, line)
	for _, seg := range segments[:len(segments)-1] {
		c.emitPush(StringVal(seg), line)
		c.emitOp(OP_GET_TABLE, line)
	}
	c.emitPush(StringVal(segments[len(segments)-1]), line)
	c.emitIndex(k, line)
	c.emitOp(OP_LOAD_CONST, line)
	c.emitOp(OP_SET_TABLE, line)
	c.releaseScratch()
}

func (c *Compiler) compileReturn(s *ast.ReturnStatement) {
	line := s.Token.Line
	switch len(s.Values) {
	case 0:
		c.emitPush(NilVal(), line)
	case 1:
		c.compileExpression(s.Values[0])
	default:
		c.failf(diagnostics.ErrC005, s.Token, "multiple return values are not supported")
		return
	}
	if c.failed() {
		return
	}
	c.emitOp(OP_RETURN, line)
}

func (c *Compiler) compileBreak(s *ast.BreakStatement) {
	fc := c.current
	if len(fc.loops) == 0 {
		c.failf(diagnostics.ErrC003, s.Token, "break outside a loop")
		return
	}
	loop := &fc.loops[len(fc.loops)-1]
	loop.breakJumps = append(loop.breakJumps, c.emitJump(OP_BRANCH, s.Token.Line))
}

func (c *Compiler) compileGoto(s *ast.GotoStatement) {
	at := c.emitJump(OP_BRANCH, s.Token.Line)
	c.current.gotos = append(c.current.gotos, pendingGoto{
		name:    s.Label.Value,
		valueAt: at,
		tok:     s.Token,
	})
}
