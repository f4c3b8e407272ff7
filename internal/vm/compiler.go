package vm

import (
	"github.com/Chubek/Moonix/internal/ast"
	"github.com/Chubek/Moonix/internal/config"
	"github.com/Chubek/Moonix/internal/diagnostics"
	"github.com/Chubek/Moonix/internal/token"
)

// Local represents a local variable during compilation.
type Local struct {
	Name  string
	Depth int // scope depth where this local was declared
	Slot  int // local slot relative to the frame's locals region
}

// compUpvalue records one capture of the function being compiled.
// IsLocal means the capture targets a frame slot of the enclosing
// function (index is frame-relative, arguments included); otherwise it
// re-captures the enclosing closure's upvalue at the index.
type compUpvalue struct {
	Index   int
	IsLocal bool
}

// loopContext tracks the innermost loop for break.
type loopContext struct {
	breakJumps []int // address-unit indices to patch to the loop end
	scopeDepth int
}

// pendingGoto is a goto waiting for its label's address.
type pendingGoto struct {
	name    string
	valueAt int // address unit to patch
	tok     token.Token
}

// funcCompiler compiles one function body. Nested function literals
// push a new funcCompiler linked through enclosing.
type funcCompiler struct {
	enclosing *funcCompiler

	params     []string
	isVariadic bool

	locals     []Local
	scopeDepth int
	maxSlots   int // local-slot high-water mark

	upvalues []compUpvalue

	loops []loopContext

	labels map[string]int
	gotos  []pendingGoto

	scratch int // next scratch constant-pool slot
}

// numArgs is the frame argument count: declared parameters plus the
// variadic pack.
func (fc *funcCompiler) numArgs() int {
	if fc.isVariadic {
		return len(fc.params) + 1
	}
	return len(fc.params)
}

// Compiler translates a parsed chunk into a Program.
type Compiler struct {
	code    *Code
	current *funcCompiler

	globals    map[string]int
	globalNext int

	err *diagnostics.Error
}

func NewCompiler() *Compiler {
	return &Compiler{
		code:    NewCode(),
		globals: make(map[string]int),
	}
}

// Compile translates chunk into a runnable program. The first error
// aborts compilation.
func (c *Compiler) Compile(chunk *ast.Chunk) (*Program, *diagnostics.Error) {
	root := &funcCompiler{labels: make(map[string]int)}
	c.current = root

	c.compileBlock(chunk.Block)
	// An implicit "return nil" gives exit branches a target inside the
	// body's [entry, end) extent.
	c.emitPush(NilVal(), 0)
	c.emitOp(OP_RETURN, 0)
	endAt := c.code.EmitEnd(0)
	c.resolveGotos()
	if c.err != nil {
		return nil, c.err
	}

	program := &Program{
		Code: c.code,
		Root: &Closure{
			NumParams: 0,
			NumLocals: root.maxSlots,
			EntryPC:   0,
			EndPC:     endAt,
			Name:      "main",
		},
		Source: chunk.File,
	}
	return program, nil
}

func (c *Compiler) failf(code diagnostics.ErrorCode, tok token.Token, format string, args ...interface{}) {
	if c.err == nil {
		c.err = diagnostics.NewError(code, tok, format, args...)
	}
}

func (c *Compiler) failed() bool { return c.err != nil }

// Emission helpers

func (c *Compiler) emitOp(op Opcode, line int) int {
	return c.code.EmitOp(op, line)
}

// emitPush emits LOAD_CODE with an inline value and returns the address
// of the value unit, which jump patching rewrites in place.
func (c *Compiler) emitPush(v Value, line int) int {
	c.code.EmitOp(OP_LOAD_CODE, line)
	return c.code.EmitValue(v, line)
}

func (c *Compiler) emitIndex(i, line int) {
	c.emitPush(IndexVal(i), line)
}

// emitJump emits a branch with a placeholder target and returns the
// address unit to patch.
func (c *Compiler) emitJump(op Opcode, line int) int {
	at := c.emitPush(AddressVal(0), line)
	c.emitOp(op, line)
	return at
}

// patchJump points a placeholder at the current end of code.
func (c *Compiler) patchJump(valueAt int) {
	c.code.Units[valueAt].Val = AddressVal(c.code.Len())
}

// emitBranchTo emits an unconditional backward branch.
func (c *Compiler) emitBranchTo(target, line int) {
	c.emitPush(AddressVal(target), line)
	c.emitOp(OP_BRANCH, line)
}

// Scopes and variables

func (c *Compiler) beginScope() {
	c.current.scopeDepth++
}

func (c *Compiler) endScope() {
	fc := c.current
	fc.scopeDepth--
	for len(fc.locals) > 0 && fc.locals[len(fc.locals)-1].Depth > fc.scopeDepth {
		fc.locals = fc.locals[:len(fc.locals)-1]
	}
}

// declareLocal allocates a slot for name in the current scope.
func (c *Compiler) declareLocal(name string, tok token.Token) int {
	fc := c.current
	slot := len(fc.locals)
	if slot >= config.MaxConst {
		c.failf(diagnostics.ErrC001, tok, "too many locals in one function")
		return 0
	}
	fc.locals = append(fc.locals, Local{Name: name, Depth: fc.scopeDepth, Slot: slot})
	if len(fc.locals) > fc.maxSlots {
		fc.maxSlots = len(fc.locals)
	}
	return slot
}

// varRef is a resolved variable access.
type varRef struct {
	kind varKind
	idx  int
}

type varKind int

const (
	varLocal varKind = iota
	varUpvalue
	varGlobal
)

// resolveVar finds name in the current function's locals, then in
// enclosing functions (becoming an upvalue), and finally falls back to
// a global slot, allocating one on first use.
func (c *Compiler) resolveVar(name string, tok token.Token) varRef {
	if slot, ok := resolveLocal(c.current, name); ok {
		return varRef{kind: varLocal, idx: slot}
	}
	if idx, ok := c.resolveUpvalue(c.current, name); ok {
		return varRef{kind: varUpvalue, idx: idx}
	}
	return varRef{kind: varGlobal, idx: c.globalSlot(name, tok)}
}

func resolveLocal(fc *funcCompiler, name string) (int, bool) {
	for i := len(fc.locals) - 1; i >= 0; i-- {
		if fc.locals[i].Name == name {
			return fc.locals[i].Slot, true
		}
	}
	return 0, false
}

// resolveUpvalue walks the enclosing compiler chain, adding an upvalue
// at every level so intermediate closures forward the capture.
func (c *Compiler) resolveUpvalue(fc *funcCompiler, name string) (int, bool) {
	if fc.enclosing == nil {
		return 0, false
	}
	if slot, ok := resolveLocal(fc.enclosing, name); ok {
		// Frame-relative index: arguments sit below the locals region.
		return addUpvalue(fc, fc.enclosing.numArgs()+slot, true), true
	}
	if idx, ok := c.resolveUpvalue(fc.enclosing, name); ok {
		return addUpvalue(fc, idx, false), true
	}
	return 0, false
}

func addUpvalue(fc *funcCompiler, index int, isLocal bool) int {
	for i, uv := range fc.upvalues {
		if uv.Index == index && uv.IsLocal == isLocal {
			return i
		}
	}
	fc.upvalues = append(fc.upvalues, compUpvalue{Index: index, IsLocal: isLocal})
	return len(fc.upvalues) - 1
}

func (c *Compiler) globalSlot(name string, tok token.Token) int {
	if g, ok := c.globals[name]; ok {
		return g
	}
	if c.globalNext >= config.MaxGlobals {
		c.failf(diagnostics.ErrC001, tok, "too many globals")
		return 0
	}
	g := c.globalNext
	c.globalNext++
	c.globals[name] = g
	return g
}

// loadVar pushes the variable's value.
func (c *Compiler) loadVar(ref varRef, line int) {
	switch ref.kind {
	case varLocal:
		c.emitIndex(ref.idx, line)
		c.emitOp(OP_LOAD_LOCAL, line)
	case varUpvalue:
		c.emitIndex(ref.idx, line)
		c.emitOp(OP_STORE_UPVALUE, line)
		c.emitOp(OP_READ_PTR, line)
	case varGlobal:
		c.emitIndex(ref.idx, line)
		c.emitOp(OP_LOAD_GLOBAL, line)
	}
}

// storeVar stores the value on top of the stack into the variable.
func (c *Compiler) storeVar(ref varRef, line int) {
	switch ref.kind {
	case varLocal:
		c.emitIndex(ref.idx, line)
		c.emitOp(OP_STORE_LOCAL, line)
	case varUpvalue:
		// The write primitive wants the pointer below the value, so
		// park the value in a scratch constant slot first.
		k := c.allocScratch()
		c.emitIndex(k, line)
		c.emitOp(OP_STORE_CONST, line)
		c.emitIndex(ref.idx, line)
		c.emitOp(OP_STORE_UPVALUE, line)
		c.emitIndex(k, line)
		c.emitOp(OP_LOAD_CONST, line)
		c.emitOp(OP_WRITE_PTR, line)
		c.releaseScratch()
	case varGlobal:
		c.emitIndex(ref.idx, line)
		c.emitOp(OP_STORE_GLOBAL, line)
	}
}

// Scratch constant slots hold evaluation temporaries (method receivers,
// assignment values in flight). Allocation is stack-shaped.
func (c *Compiler) allocScratch() int {
	fc := c.current
	k := fc.scratch
	fc.scratch++
	return k
}

func (c *Compiler) releaseScratch() {
	c.current.scratch--
}

// resolveGotos patches every goto in the finished function against its
// label table.
func (c *Compiler) resolveGotos() {
	fc := c.current
	for _, g := range fc.gotos {
		target, ok := fc.labels[g.name]
		if !ok {
			c.failf(diagnostics.ErrC002, g.tok, "no visible label '%s' for goto", g.name)
			return
		}
		c.code.Units[g.valueAt].Val = AddressVal(target)
	}
	fc.gotos = nil
}

// compileFunctionLiteral emits the closure-construction protocol: the
// variadic flag, parameter count and local count are pushed, the body
// follows MAKE_CLOSURE up to its end marker, and the capture
// instructions trail the marker.
func (c *Compiler) compileFunctionLiteral(fn *ast.FunctionLiteral) {
	line := fn.Token.Line

	c.emitPush(BoolVal(fn.IsVariadic), line)
	c.emitPush(IndexVal(len(fn.Params)), line)
	localsAt := c.emitPush(IndexVal(0), line) // patched after the body
	c.emitOp(OP_MAKE_CLOSURE, line)

	fc := &funcCompiler{
		enclosing:  c.current,
		isVariadic: fn.IsVariadic,
		labels:     make(map[string]int),
	}
	for _, p := range fn.Params {
		fc.params = append(fc.params, p.Value)
	}
	c.current = fc

	// Parameters are copied into local slots so they assign and
	// capture like any other local.
	c.beginScope()
	for i, p := range fn.Params {
		slot := c.declareLocal(p.Value, p.Token)
		c.emitIndex(i, line)
		c.emitOp(OP_LOAD_ARG, line)
		c.emitIndex(slot, line)
		c.emitOp(OP_STORE_LOCAL, line)
	}

	c.compileBlock(fn.Body)
	c.endScope()
	// Implicit "return nil", as in Compile.
	c.emitPush(NilVal(), line)
	c.emitOp(OP_RETURN, line)
	c.code.EmitEnd(line)
	c.resolveGotos()

	c.code.Units[localsAt].Val = IndexVal(fc.maxSlots)

	c.current = fc.enclosing

	for _, uv := range fc.upvalues {
		c.emitIndex(uv.Index, line)
		if uv.IsLocal {
			c.emitOp(OP_LOAD_UPVALUE, line)
		} else {
			c.emitOp(OP_CAPTURE_UPVALUE, line)
		}
	}
}
