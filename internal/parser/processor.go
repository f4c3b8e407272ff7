package parser

import (
	"github.com/Chubek/Moonix/internal/diagnostics"
	"github.com/Chubek/Moonix/internal/pipeline"
	"github.com/Chubek/Moonix/internal/token"
)

// ParserProcessor is the pipeline stage that parses ctx.TokenStream.
type ParserProcessor struct{}

func (pp *ParserProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if ctx.TokenStream == nil {
		err := diagnostics.NewError(diagnostics.ErrP001, token.Token{}, "parser: token stream is nil")
		ctx.Errors = append(ctx.Errors, err)
		return ctx
	}

	parser := New(ctx.TokenStream, ctx)
	chunk := parser.ParseChunk()
	if chunk != nil {
		chunk.File = ctx.FilePath
		ctx.AstRoot = chunk
	}

	for _, err := range ctx.Errors {
		if err.File == "" {
			err.File = ctx.FilePath
		}
	}

	return ctx
}
