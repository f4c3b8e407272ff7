package lexer

import (
	"github.com/Chubek/Moonix/internal/pipeline"
)

// LexerProcessor is the pipeline stage that scans ctx.Source.
type LexerProcessor struct{}

func (lp *LexerProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	toks, err := Scan(ctx.Source)
	if err != nil {
		if err.File == "" {
			err.File = ctx.FilePath
		}
		ctx.Errors = append(ctx.Errors, err)
		return ctx
	}
	ctx.TokenStream = toks
	return ctx
}
