package pipeline

import (
	"context"
	"time"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"

	"github.com/sgpage/hillshade-converter/pkg/pipeline/model"
)

// StageFn transforms the value produced by the previous stage.
type StageFn[T any] func(ctx context.Context, in T) (T, error)

type stage[T any] struct {
	details *model.StageInfo
	fn      StageFn[T]
}

func prepareStage[T any](pipe *Pipeline[T], st *stage[T]) error {
	err := pipe.graph.AddVertex(st.details.Name)
	if err != nil {
		if errors.Is(err, graph.ErrVertexAlreadyExists) {
			return errors.Errorf("stage %s already exists", st.details.Name)
		}

		return errors.Wrap(err, "unable to add stage")
	}

	if pipe.last.Type != model.StartStageType {
		err = pipe.graph.AddEdge(pipe.last.Name, st.details.Name)
		if err != nil {
			return errors.Wrapf(err, "unable to link %s to %s", pipe.last.Name, st.details.Name)
		}
	}

	for _, opt := range pipe.opts {
		err := opt.PrepareStage(pipe.last, st.details)
		if err != nil {
			return errors.Wrap(err, "unable to run prepare stage function")
		}
	}

	return nil
}

// AddStage appends a stage to the pipeline. Stages run in the order they are added.
func AddStage[T any](pipe *Pipeline[T], name string, stageFn StageFn[T], opts ...StageOption) (*model.StageInfo, error) {
	if pipe == nil {
		return nil, ErrPipelineMustBeSet
	}

	if name == "" {
		return nil, ErrStageNameEmpty
	}

	if stageFn == nil {
		return nil, ErrStageFnMustBeSet
	}

	st := &stage[T]{
		details: &model.StageInfo{
			Type:  model.NormalStageType,
			Name:  name,
			Index: len(pipe.stages),
		},
		fn: stageFn,
	}

	for _, opt := range opts {
		opt(st.details)
	}

	err := prepareStage(pipe, st)
	if err != nil {
		return nil, err
	}

	pipe.stages[name] = st
	pipe.last = st.details

	return st.details, nil
}

func (p *Pipeline[T]) runStage(ctx context.Context, st *stage[T], in T) (T, error) {
	var zero T

	for _, opt := range p.opts {
		err := opt.BeforeStage(st.details)
		if err != nil {
			return zero, errors.Wrap(err, "unable to run before stage function")
		}
	}

	start := time.Now()
	out, err := st.fn(ctx, in)
	elapsed := time.Since(start)

	if err != nil {
		err = &StageError{Stage: st.details.Name, Index: st.details.Index, Err: err}
	}

	for _, opt := range p.opts {
		optErr := opt.AfterStage(st.details, elapsed, err)
		if optErr != nil && err == nil {
			err = errors.Wrap(optErr, "unable to run after stage function")
		}
	}

	if err != nil {
		return zero, err
	}

	return out, nil
}
