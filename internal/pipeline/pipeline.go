// Package pipeline wires the front-end stages together around a shared
// context.
package pipeline

import (
	"github.com/Chubek/Moonix/internal/diagnostics"
	"github.com/Chubek/Moonix/internal/token"
)

// PipelineContext is threaded through every stage. Stage artifacts are
// stored untyped so the context does not depend on downstream packages;
// each consumer asserts the type it produced.
type PipelineContext struct {
	Source   string
	FilePath string

	TokenStream []token.Token
	AstRoot     interface{} // *ast.Chunk
	Program     interface{} // *vm.Program

	Errors []*diagnostics.Error
}

func NewPipelineContext(source string) *PipelineContext {
	return &PipelineContext{Source: source}
}

// HasErrors reports whether any stage recorded a diagnostic.
func (ctx *PipelineContext) HasErrors() bool {
	return len(ctx.Errors) > 0
}

// Processor is a single pipeline stage.
type Processor interface {
	Process(ctx *PipelineContext) *PipelineContext
}

// Pipeline represents a sequence of processing stages.
type Pipeline struct {
	processors []Processor
}

func New(processors ...Processor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Run executes the pipeline. A stage that records errors stops the run;
// later stages would only compound the damage.
func (p *Pipeline) Run(initialCtx *PipelineContext) *PipelineContext {
	ctx := initialCtx
	for _, processor := range p.processors {
		ctx = processor.Process(ctx)
		if ctx.HasErrors() {
			return ctx
		}
	}
	return ctx
}
