package vm

import (
	"math"

	"github.com/Chubek/Moonix/internal/ast"
	"github.com/Chubek/Moonix/internal/diagnostics"
)

func (c *Compiler) compileExpression(expr ast.Expression) {
	if c.failed() {
		return
	}
	switch e := expr.(type) {
	case *ast.NilLiteral:
		c.emitPush(NilVal(), e.Token.Line)
	case *ast.BooleanLiteral:
		c.emitPush(BoolVal(e.Value), e.Token.Line)
	case *ast.NumberLiteral:
		c.emitPush(NumberVal(e.Value), e.Token.Line)
	case *ast.StringLiteral:
		c.emitPush(StringVal(e.Value), e.Token.Line)
	case *ast.Identifier:
		c.loadVar(c.resolveVar(e.Value, e.Token), e.Token.Line)
	case *ast.Varargs:
		c.compileVarargs(e)
	case *ast.Paren:
		c.compileExpression(e.Inner)
	case *ast.Unary:
		c.compileUnary(e)
	case *ast.Binary:
		c.compileBinary(e)
	case *ast.Index:
		c.compileExpression(e.Object)
		c.compileExpression(e.Key)
		c.emitOp(OP_GET_TABLE, e.Token.Line)
	case *ast.Field:
		c.compileExpression(e.Object)
		c.emitPush(StringVal(e.Name.Value), e.Token.Line)
		c.emitOp(OP_GET_TABLE, e.Token.Line)
	case *ast.Call:
		c.compileCall(e)
	case *ast.MethodCall:
		c.compileMethodCall(e)
	case *ast.TableConstructor:
		c.compileTableConstructor(e)
	case *ast.FunctionLiteral:
		c.compileFunctionLiteral(e)
	default:
		c.failf(diagnostics.ErrC005, expr.GetToken(), "cannot compile %T", expr)
	}
}

// compileVarargs loads the pack table that the call protocol appends
// after the declared parameters.
func (c *Compiler) compileVarargs(e *ast.Varargs) {
	fc := c.current
	if !fc.isVariadic {
		c.failf(diagnostics.ErrC004, e.Token, "... outside a variadic function")
		return
	}
	c.emitIndex(len(fc.params), e.Token.Line)
	c.emitOp(OP_LOAD_ARG, e.Token.Line)
}

func (c *Compiler) compileUnary(e *ast.Unary) {
	line := e.Token.Line
	c.compileExpression(e.Operand)
	if c.failed() {
		return
	}
	switch e.Operator {
	case "-":
		c.emitOp(OP_NEGATE, line)
	case "not":
		c.emitOp(OP_TRUTHY, line)
		c.emitOp(OP_NOT, line)
	case "#":
		c.emitOp(OP_LEN, line)
	default:
		c.failf(diagnostics.ErrC005, e.Token, "unknown unary operator %s", e.Operator)
	}
}

func (c *Compiler) compileBinary(e *ast.Binary) {
	line := e.Token.Line

	switch e.Operator {
	case "and":
		// Value semantics with short circuit: keep the left operand
		// when it is falsey, otherwise evaluate the right.
		c.compileExpression(e.Left)
		c.emitOp(OP_DUP, line)
		c.emitOp(OP_TRUTHY, line)
		skip := c.emitJump(OP_BRANCH_FALSE, line)
		c.emitOp(OP_POP, line)
		c.compileExpression(e.Right)
		c.patchJump(skip)
		return
	case "or":
		c.compileExpression(e.Left)
		c.emitOp(OP_DUP, line)
		c.emitOp(OP_TRUTHY, line)
		skip := c.emitJump(OP_BRANCH_TRUE, line)
		c.emitOp(OP_POP, line)
		c.compileExpression(e.Right)
		c.patchJump(skip)
		return
	}

	c.compileExpression(e.Left)
	c.compileExpression(e.Right)
	if c.failed() {
		return
	}

	switch e.Operator {
	case "+":
		c.emitOp(OP_ADD, line)
	case "-":
		c.emitOp(OP_SUB, line)
	case "*":
		c.emitOp(OP_MUL, line)
	case "/":
		c.emitOp(OP_DIV, line)
	case "%":
		c.emitOp(OP_MOD, line)
	case "^":
		// An integral literal exponent takes the exact power path.
		if n, ok := e.Right.(*ast.NumberLiteral); ok && n.Value == math.Trunc(n.Value) {
			c.emitOp(OP_IPOW, line)
		} else {
			c.emitOp(OP_FPOW, line)
		}
	case "..":
		c.emitOp(OP_CONCAT, line)
	case "==":
		c.emitOp(OP_EQ, line)
	case "~=":
		c.emitOp(OP_NE, line)
	case "<":
		c.emitOp(OP_LT, line)
	case "<=":
		c.emitOp(OP_LE, line)
	case ">":
		c.emitOp(OP_GT, line)
	case ">=":
		c.emitOp(OP_GE, line)
	default:
		c.failf(diagnostics.ErrC005, e.Token, "unknown operator %s", e.Operator)
	}
}

// compileCall pushes the arguments, the pushed-argument count, and the
// callee, in that order.
func (c *Compiler) compileCall(e *ast.Call) {
	line := e.Token.Line
	for _, arg := range e.Args {
		c.compileExpression(arg)
		if c.failed() {
			return
		}
	}
	c.emitIndex(len(e.Args), line)
	c.compileExpression(e.Callee)
	if c.failed() {
		return
	}
	c.emitOp(OP_CALL, line)
}

// compileMethodCall evaluates the receiver once into a scratch constant
// slot, then calls receiver[method] with the receiver as first argument.
func (c *Compiler) compileMethodCall(e *ast.MethodCall) {
	line := e.Token.Line

	c.compileExpression(e.Receiver)
	if c.failed() {
		return
	}
	k := c.allocScratch()
	c.emitIndex(k, line)
	c.emitOp(OP_STORE_CONST, line)

	// self
	c.emitIndex(k, line)
	c.emitOp(OP_LOAD_CONST, line)
	for _, arg := range e.Args {
		c.compileExpression(arg)
		if c.failed() {
			return
		}
	}
	c.emitIndex(len(e.Args)+1, line)

	// the method function
	c.emitIndex(k, line)
	c.emitOp(OP_LOAD_CONST, line)
	c.emitPush(StringVal(e.Method.Value), line)
	c.emitOp(OP_GET_TABLE, line)

	c.emitOp(OP_CALL, line)
	c.releaseScratch()
}

// compileTableConstructor builds the table entry by entry with the raw
// insert primitive; positional fields number from 1.
func (c *Compiler) compileTableConstructor(e *ast.TableConstructor) {
	line := e.Token.Line
	c.emitOp(OP_NEW_TABLE, line)

	n := 0
	for _, field := range e.Fields {
		switch field.Kind {
		case ast.FieldPositional:
			n++
			c.emitPush(NumberVal(float64(n)), line)
			c.compileExpression(field.Value)
		case ast.FieldNamed:
			c.emitPush(StringVal(field.Name.Value), line)
			c.compileExpression(field.Value)
		case ast.FieldBracketed:
			c.compileExpression(field.Key)
			c.compileExpression(field.Value)
		}
		if c.failed() {
			return
		}
		c.emitOp(OP_INSERT_TABLE, line)
	}
}
