package parser

import (
	"testing"

	"github.com/Chubek/Moonix/internal/ast"
	"github.com/Chubek/Moonix/internal/lexer"
	"github.com/Chubek/Moonix/internal/pipeline"
)

func parseChunk(t *testing.T, input string) *ast.Chunk {
	t.Helper()
	ctx := pipeline.NewPipelineContext(input)
	ctx = (&lexer.LexerProcessor{}).Process(ctx)
	if ctx.HasErrors() {
		t.Fatalf("lexer error: %s", ctx.Errors[0])
	}
	ctx = (&ParserProcessor{}).Process(ctx)
	if ctx.HasErrors() {
		t.Fatalf("parser error: %s", ctx.Errors[0])
	}
	return ctx.AstRoot.(*ast.Chunk)
}

func parseError(t *testing.T, input string) {
	t.Helper()
	ctx := pipeline.NewPipelineContext(input)
	ctx = (&lexer.LexerProcessor{}).Process(ctx)
	if ctx.HasErrors() {
		return // scan error also counts as rejection
	}
	ctx = (&ParserProcessor{}).Process(ctx)
	if !ctx.HasErrors() {
		t.Fatalf("expected parse error for %q", input)
	}
}

func firstStatement(t *testing.T, input string) ast.Statement {
	t.Helper()
	chunk := parseChunk(t, input)
	if len(chunk.Block.Statements) == 0 {
		t.Fatalf("no statements parsed from %q", input)
	}
	return chunk.Block.Statements[0]
}

func exprOf(t *testing.T, input string) ast.Expression {
	t.Helper()
	chunk := parseChunk(t, "return "+input)
	ret, ok := chunk.Block.Last.(*ast.ReturnStatement)
	if !ok {
		t.Fatalf("expected return statement, got %T", chunk.Block.Last)
	}
	if len(ret.Values) != 1 {
		t.Fatalf("expected 1 return value, got %d", len(ret.Values))
	}
	return ret.Values[0]
}

func TestPrecedenceMulOverAdd(t *testing.T) {
	expr := exprOf(t, "a + b * c")
	add, ok := expr.(*ast.Binary)
	if !ok || add.Operator != "+" {
		t.Fatalf("expected + at root, got %T", expr)
	}
	mul, ok := add.Right.(*ast.Binary)
	if !ok || mul.Operator != "*" {
		t.Fatalf("expected * as right child of +, got %T", add.Right)
	}
	if _, ok := add.Left.(*ast.Identifier); !ok {
		t.Errorf("expected identifier as left child, got %T", add.Left)
	}
}

func TestPowerRightAssociative(t *testing.T) {
	expr := exprOf(t, "a ^ b ^ c")
	outer, ok := expr.(*ast.Binary)
	if !ok || outer.Operator != "^" {
		t.Fatalf("expected ^ at root, got %T", expr)
	}
	if _, ok := outer.Left.(*ast.Identifier); !ok {
		t.Errorf("expected a ^ (b ^ c): left should be identifier, got %T", outer.Left)
	}
	inner, ok := outer.Right.(*ast.Binary)
	if !ok || inner.Operator != "^" {
		t.Fatalf("expected nested ^ on the right, got %T", outer.Right)
	}
}

func TestConcatRightAssociative(t *testing.T) {
	expr := exprOf(t, `"a" .. "b" .. "c"`)
	outer, ok := expr.(*ast.Binary)
	if !ok || outer.Operator != ".." {
		t.Fatalf("expected .. at root, got %T", expr)
	}
	if _, ok := outer.Right.(*ast.Binary); !ok {
		t.Errorf("expected right-nested .., got %T", outer.Right)
	}
}

func TestChainedCall(t *testing.T) {
	expr := exprOf(t, "f(1)(2)")
	outer, ok := expr.(*ast.Call)
	if !ok {
		t.Fatalf("expected call, got %T", expr)
	}
	inner, ok := outer.Callee.(*ast.Call)
	if !ok {
		t.Fatalf("expected inner call as callee, got %T", outer.Callee)
	}
	if name, ok := inner.Callee.(*ast.Identifier); !ok || name.Value != "f" {
		t.Errorf("expected f as innermost callee, got %T", inner.Callee)
	}
	if len(inner.Args) != 1 || len(outer.Args) != 1 {
		t.Errorf("wrong arg counts: inner=%d outer=%d", len(inner.Args), len(outer.Args))
	}
}

func TestSuffixChain(t *testing.T) {
	expr := exprOf(t, "a.b[1]:m(2)")
	mc, ok := expr.(*ast.MethodCall)
	if !ok {
		t.Fatalf("expected method call, got %T", expr)
	}
	if mc.Method.Value != "m" {
		t.Errorf("method name: got %q, want m", mc.Method.Value)
	}
	idx, ok := mc.Receiver.(*ast.Index)
	if !ok {
		t.Fatalf("expected index receiver, got %T", mc.Receiver)
	}
	if _, ok := idx.Object.(*ast.Field); !ok {
		t.Errorf("expected field below index, got %T", idx.Object)
	}
}

func TestCallArgumentForms(t *testing.T) {
	if _, ok := exprOf(t, `f"s"`).(*ast.Call); !ok {
		t.Error("string-argument call not parsed as call")
	}
	call, ok := exprOf(t, "f{1, 2}").(*ast.Call)
	if !ok {
		t.Fatal("table-argument call not parsed as call")
	}
	if len(call.Args) != 1 {
		t.Fatalf("table-argument call should have 1 arg, got %d", len(call.Args))
	}
	if _, ok := call.Args[0].(*ast.TableConstructor); !ok {
		t.Errorf("expected table constructor arg, got %T", call.Args[0])
	}
}

func TestCallDoesNotAttachAcrossNewline(t *testing.T) {
	chunk := parseChunk(t, "local a = f\n(g)(1)")
	if len(chunk.Block.Statements) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(chunk.Block.Statements))
	}
	local, ok := chunk.Block.Statements[0].(*ast.LocalStatement)
	if !ok {
		t.Fatalf("first statement should be local, got %T", chunk.Block.Statements[0])
	}
	if _, ok := local.Values[0].(*ast.Identifier); !ok {
		t.Errorf("local value should be bare f, got %T", local.Values[0])
	}
}

func TestIfShape(t *testing.T) {
	stmt := firstStatement(t, `
if a then x = 1
elseif b then x = 2
elseif c then x = 3
else x = 4 end`)
	ifs, ok := stmt.(*ast.IfStatement)
	if !ok {
		t.Fatalf("expected if statement, got %T", stmt)
	}
	if len(ifs.CondBlocks) != 3 {
		t.Errorf("expected 3 cond blocks, got %d", len(ifs.CondBlocks))
	}
	if ifs.ElseBlock == nil {
		t.Error("expected else block")
	}
}

func TestForDisambiguation(t *testing.T) {
	if _, ok := firstStatement(t, "for i = 1, 10 do end").(*ast.NumericFor); !ok {
		t.Error("numeric for not recognized")
	}
	if _, ok := firstStatement(t, "for i = 1, 10, 2 do end").(*ast.NumericFor); !ok {
		t.Error("numeric for with step not recognized")
	}
	gf, ok := firstStatement(t, "for k, v in pairs do end").(*ast.GenericFor)
	if !ok {
		t.Fatal("generic for not recognized")
	}
	if len(gf.Names) != 2 {
		t.Errorf("expected 2 names, got %d", len(gf.Names))
	}
	if _, ok := firstStatement(t, "for x in iter do end").(*ast.GenericFor); !ok {
		t.Error("single-name generic for not recognized")
	}
}

func TestAssignShapes(t *testing.T) {
	stmt := firstStatement(t, "a, t.x, t[1] = 1, 2, 3")
	assign, ok := stmt.(*ast.Assign)
	if !ok {
		t.Fatalf("expected assign, got %T", stmt)
	}
	if len(assign.Targets) != 3 || len(assign.Values) != 3 {
		t.Fatalf("targets=%d values=%d", len(assign.Targets), len(assign.Values))
	}
	if _, ok := assign.Targets[0].(*ast.Identifier); !ok {
		t.Errorf("target 0: got %T", assign.Targets[0])
	}
	if _, ok := assign.Targets[1].(*ast.Field); !ok {
		t.Errorf("target 1: got %T", assign.Targets[1])
	}
	if _, ok := assign.Targets[2].(*ast.Index); !ok {
		t.Errorf("target 2: got %T", assign.Targets[2])
	}
}

func TestFunctionStatementNames(t *testing.T) {
	stmt := firstStatement(t, "function a.b.c:m(x) return x end")
	fs, ok := stmt.(*ast.FunctionStatement)
	if !ok {
		t.Fatalf("expected function statement, got %T", stmt)
	}
	if fs.Name.Base.Value != "a" || len(fs.Name.Path) != 2 || fs.Name.Method.Value != "m" {
		t.Errorf("bad function name: base=%s path=%d method=%v", fs.Name.Base.Value, len(fs.Name.Path), fs.Name.Method)
	}
	// Method definitions carry an implicit self.
	if len(fs.Fn.Params) != 2 || fs.Fn.Params[0].Value != "self" {
		t.Errorf("expected implicit self param, got %v", fs.Fn.Params)
	}
}

func TestLocalFunction(t *testing.T) {
	stmt := firstStatement(t, "local function fib(n) return n end")
	lf, ok := stmt.(*ast.LocalFunction)
	if !ok {
		t.Fatalf("expected local function, got %T", stmt)
	}
	if lf.Name.Value != "fib" {
		t.Errorf("name: got %q", lf.Name.Value)
	}
}

func TestVariadicParams(t *testing.T) {
	stmt := firstStatement(t, "local f = function(a, b, ...) return a end")
	local := stmt.(*ast.LocalStatement)
	fn, ok := local.Values[0].(*ast.FunctionLiteral)
	if !ok {
		t.Fatalf("expected function literal, got %T", local.Values[0])
	}
	if !fn.IsVariadic || len(fn.Params) != 2 {
		t.Errorf("variadic=%v params=%d", fn.IsVariadic, len(fn.Params))
	}
}

func TestTableConstructorFields(t *testing.T) {
	expr := exprOf(t, `{1, a = 2, [3] = 4; 5}`)
	tbl, ok := expr.(*ast.TableConstructor)
	if !ok {
		t.Fatalf("expected table constructor, got %T", expr)
	}
	kinds := []ast.FieldKind{ast.FieldPositional, ast.FieldNamed, ast.FieldBracketed, ast.FieldPositional}
	if len(tbl.Fields) != len(kinds) {
		t.Fatalf("expected %d fields, got %d", len(kinds), len(tbl.Fields))
	}
	for i, k := range kinds {
		if tbl.Fields[i].Kind != k {
			t.Errorf("field %d: kind=%d want=%d", i, tbl.Fields[i].Kind, k)
		}
	}
}

func TestRepeatUntil(t *testing.T) {
	stmt := firstStatement(t, "repeat x = x + 1 until x > 10")
	rs, ok := stmt.(*ast.RepeatStatement)
	if !ok {
		t.Fatalf("expected repeat, got %T", stmt)
	}
	if rs.Condition == nil || rs.Body == nil {
		t.Error("repeat missing body or condition")
	}
}

func TestGotoAndLabel(t *testing.T) {
	chunk := parseChunk(t, "::top:: x = x + 1 goto top")
	if len(chunk.Block.Statements) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(chunk.Block.Statements))
	}
	if _, ok := chunk.Block.Statements[0].(*ast.LabelStatement); !ok {
		t.Errorf("expected label, got %T", chunk.Block.Statements[0])
	}
	gs, ok := chunk.Block.Last.(*ast.GotoStatement)
	if !ok {
		t.Fatalf("expected goto as last statement, got %T", chunk.Block.Last)
	}
	if gs.Label.Value != "top" {
		t.Errorf("label: got %q", gs.Label.Value)
	}
}

func TestLastStatementTerminatesBlock(t *testing.T) {
	parseError(t, "return 1 x = 2")
	parseError(t, "do break x = 1 end")
}

func TestParseErrors(t *testing.T) {
	inputs := []string{
		"if x then",           // missing end
		"local = 1",           // missing name
		"x =",                 // missing value
		"f(",                  // unterminated call
		"1 = 2",               // number is not an lvalue... scanner fine, parser rejects
		"function f( end",     // bad parameter list
		"for i do end",        // malformed for
		"a.b.",                // dangling dot
		"t[1",                 // unterminated index
		"repeat x = 1",        // missing until
		"(a",                  // unterminated paren
		"local x = function(", // unterminated function
	}
	for _, input := range inputs {
		parseError(t, input)
	}
}

func TestPositionsNonDecreasing(t *testing.T) {
	input := `
local x = 1
function f(a)
  if a > 0 then return a end
  return x
end
x = f(2) + f(3)
`
	chunk := parseChunk(t, input)
	var walk func(n interface{}, minLine int) int
	walk = func(n interface{}, minLine int) int {
		tp, ok := n.(ast.TokenProvider)
		if !ok {
			return minLine
		}
		tok := tp.GetToken()
		if tok.Line != 0 && tok.Line < minLine {
			t.Errorf("node %T at line %d before preceding line %d", n, tok.Line, minLine)
		}
		if tok.Line > minLine {
			minLine = tok.Line
		}
		return minLine
	}
	minLine := 0
	for _, stmt := range chunk.Block.Statements {
		minLine = walk(stmt, minLine)
	}
}

func TestStatementAfterExpressionRejected(t *testing.T) {
	parseError(t, "x + 1") // bare expression is not a statement
}
