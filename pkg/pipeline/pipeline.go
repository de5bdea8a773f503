package pipeline

import (
	"context"
	"time"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"

	"github.com/sgpage/hillshade-converter/pkg/pipeline/model"
)

// Pipeline is a sequence of stages passing a value of type T from one to the next.
type Pipeline[T any] struct {
	opts      []model.PipelineOption
	graph     graph.Graph[string, string]
	stages    map[string]*stage[T]
	last      *model.StageInfo
	startTime time.Time
}

// New creates a new pipeline.
func New[T any](opts ...model.PipelineOption) (*Pipeline[T], error) {
	pipe := &Pipeline[T]{
		opts:   opts,
		graph:  graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles()),
		stages: make(map[string]*stage[T]),
		last:   model.StartStage,
	}

	for _, opt := range opts {
		err := opt.New()
		if err != nil {
			return nil, errors.Wrap(err, "unable to apply pipeline option")
		}
	}

	return pipe, nil
}

// Stages returns the stage names in run order.
func (p *Pipeline[T]) Stages() ([]string, error) {
	if len(p.stages) == 0 {
		return nil, nil
	}

	order, err := graph.TopologicalSort(p.graph)
	if err != nil {
		return nil, errors.Wrap(err, "unable to sort stages")
	}

	return order, nil
}

// Run executes every stage in order, feeding input to the first one, and returns the value
// produced by the last stage.
// It returns early on the first error.
func (p *Pipeline[T]) Run(ctx context.Context, input T) (T, error) {
	var zero T

	order, err := p.Stages()
	if err != nil {
		return zero, err
	}

	if len(order) == 0 {
		return zero, ErrNoStage
	}

	p.startTime = time.Now()
	curr := input

	for _, name := range order {
		st := p.stages[name]

		// we check the context between stages so that a cancelled run never starts a new one
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, p.finishRun(errors.Wrapf(ctxErr, "pipeline stopped before stage %s", name))
		}

		out, err := p.runStage(ctx, st, curr)
		if err != nil {
			return zero, p.finishRun(err)
		}

		curr = out
	}

	return curr, p.finishRun(nil)
}

// Elapsed returns the time spent since the last Run started.
func (p *Pipeline[T]) Elapsed() time.Duration {
	if p.startTime.IsZero() {
		return 0
	}

	return time.Since(p.startTime)
}

func (p *Pipeline[T]) finishRun(runErr error) error {
	for _, opt := range p.opts {
		err := opt.Finish(runErr)
		if err != nil && runErr == nil {
			return errors.Wrap(err, "unable to finish pipeline option")
		}
	}

	return runErr
}
