package vm

import (
	"github.com/Chubek/Moonix/internal/ast"
	"github.com/Chubek/Moonix/internal/diagnostics"
	"github.com/Chubek/Moonix/internal/pipeline"
	"github.com/Chubek/Moonix/internal/token"
)

// CompileProcessor is the pipeline stage that turns ctx.AstRoot into a
// Program.
type CompileProcessor struct{}

func (cp *CompileProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	chunk, ok := ctx.AstRoot.(*ast.Chunk)
	if !ok {
		err := diagnostics.NewError(diagnostics.ErrC005, token.Token{}, "compiler: no syntax tree")
		ctx.Errors = append(ctx.Errors, err)
		return ctx
	}

	compiler := NewCompiler()
	program, err := compiler.Compile(chunk)
	if err != nil {
		if err.File == "" {
			err.File = ctx.FilePath
		}
		ctx.Errors = append(ctx.Errors, err)
		return ctx
	}
	ctx.Program = program
	return ctx
}
