package pipeline

// Pipeline runs the stages that turn statement text into a program: the
// lexer fills TokenStream, the parser fills AstRoot.
type Pipeline struct {
	processors []Processor
}

func New(processors ...Processor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Run passes ctx through every stage in order. A stage that records
// diagnostics does not stop the run: the parser still reports its own
// errors after a lexer failure, and callers read them all through ctx.Err.
func (p *Pipeline) Run(ctx *PipelineContext) *PipelineContext {
	for _, stage := range p.processors {
		ctx = stage.Process(ctx)
	}
	return ctx
}
