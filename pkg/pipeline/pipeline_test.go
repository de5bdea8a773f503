package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgpage/hillshade-converter/pkg/pipeline"
	"github.com/sgpage/hillshade-converter/pkg/pipeline/model"
)

func appendStage(name string) pipeline.StageFn[[]string] {
	return func(_ context.Context, in []string) ([]string, error) {
		return append(in, name), nil
	}
}

func TestAddStageNilPipe(t *testing.T) {
	t.Parallel()

	_, err := pipeline.AddStage[int](nil, "render", func(_ context.Context, in int) (int, error) {
		return in, nil
	})
	require.ErrorIs(t, err, pipeline.ErrPipelineMustBeSet)
}

func TestAddStageInvalid(t *testing.T) {
	t.Parallel()

	pipe, err := pipeline.New[int]()
	require.NoError(t, err)

	_, err = pipeline.AddStage(pipe, "render", nil)
	require.ErrorIs(t, err, pipeline.ErrStageFnMustBeSet)

	_, err = pipeline.AddStage(pipe, "", func(_ context.Context, in int) (int, error) {
		return in, nil
	})
	require.ErrorIs(t, err, pipeline.ErrStageNameEmpty)
}

func TestAddStageDuplicate(t *testing.T) {
	t.Parallel()

	pipe, err := pipeline.New[[]string]()
	require.NoError(t, err)

	_, err = pipeline.AddStage(pipe, "render", appendStage("render"))
	require.NoError(t, err)

	_, err = pipeline.AddStage(pipe, "render", appendStage("render"))
	require.ErrorContains(t, err, "stage render already exists")
}

func TestRunEmpty(t *testing.T) {
	t.Parallel()

	pipe, err := pipeline.New[int]()
	require.NoError(t, err)

	_, err = pipe.Run(context.Background(), 0)
	require.ErrorIs(t, err, pipeline.ErrNoStage)
}

func TestRunInOrder(t *testing.T) {
	t.Parallel()

	pipe, err := pipeline.New[[]string]()
	require.NoError(t, err)

	names := []string{"render", "normalize", "reproject", "tile", "verify"}
	for i, name := range names {
		info, err := pipeline.AddStage(pipe, name, appendStage(name), pipeline.StageProgress(float64(i*10)))
		require.NoError(t, err)
		assert.Equal(t, i, info.Index)
		assert.InDelta(t, float64(i*10), info.Progress, 0)
	}

	order, err := pipe.Stages()
	require.NoError(t, err)
	assert.Equal(t, names, order)

	got, err := pipe.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, names, got)
	assert.Positive(t, pipe.Elapsed())
}

func TestRunStopsAtFirstError(t *testing.T) {
	t.Parallel()

	pipe, err := pipeline.New[[]string]()
	require.NoError(t, err)

	var ran []string

	record := func(name string, fail bool) pipeline.StageFn[[]string] {
		return func(_ context.Context, in []string) ([]string, error) {
			ran = append(ran, name)
			if fail {
				return nil, assert.AnError
			}

			return append(in, name), nil
		}
	}

	_, err = pipeline.AddStage(pipe, "render", record("render", false))
	require.NoError(t, err)
	_, err = pipeline.AddStage(pipe, "normalize", record("normalize", true))
	require.NoError(t, err)
	_, err = pipeline.AddStage(pipe, "reproject", record("reproject", false))
	require.NoError(t, err)

	got, err := pipe.Run(context.Background(), nil)
	require.ErrorIs(t, err, assert.AnError)
	assert.Nil(t, got)
	assert.Equal(t, []string{"render", "normalize"}, ran)

	var stageErr *pipeline.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "normalize", stageErr.Stage)
	assert.Equal(t, 1, stageErr.Index)
	assert.Equal(t, "normalize: "+assert.AnError.Error(), err.Error())

	stage, ok := pipeline.FailedStage(err)
	assert.True(t, ok)
	assert.Equal(t, "normalize", stage)

	_, ok = pipeline.FailedStage(assert.AnError)
	assert.False(t, ok)
}

func TestRunCancelledBetweenStages(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipe, err := pipeline.New[[]string]()
	require.NoError(t, err)

	_, err = pipeline.AddStage(pipe, "render", func(_ context.Context, in []string) ([]string, error) {
		cancel()

		return append(in, "render"), nil
	})
	require.NoError(t, err)

	reprojected := false
	_, err = pipeline.AddStage(pipe, "reproject", func(_ context.Context, in []string) ([]string, error) {
		reprojected = true

		return in, nil
	})
	require.NoError(t, err)

	_, err = pipe.Run(ctx, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "pipeline stopped before stage reproject")
	assert.False(t, reprojected)
}

// hookRecorder records the calls made to a pipeline option.
type hookRecorder struct {
	calls  []string
	errAt  string
	runErr error
}

func (h *hookRecorder) hook(name string) error {
	h.calls = append(h.calls, name)
	if name == h.errAt {
		return assert.AnError
	}

	return nil
}

func (h *hookRecorder) New() error {
	return h.hook("new")
}

func (h *hookRecorder) PrepareStage(parent, stage *model.StageInfo) error {
	return h.hook("prepare " + parent.Name + "->" + stage.Name)
}

func (h *hookRecorder) BeforeStage(stage *model.StageInfo) error {
	return h.hook("before " + stage.Name)
}

func (h *hookRecorder) AfterStage(stage *model.StageInfo, _ time.Duration, err error) error {
	if err != nil {
		return h.hook("after " + stage.Name + " failed")
	}

	return h.hook("after " + stage.Name)
}

func (h *hookRecorder) Finish(runErr error) error {
	h.runErr = runErr

	return h.hook("finish")
}

func TestPipelineOptionHooks(t *testing.T) {
	t.Parallel()

	rec := &hookRecorder{}

	pipe, err := pipeline.New[[]string](rec)
	require.NoError(t, err)

	_, err = pipeline.AddStage(pipe, "render", appendStage("render"))
	require.NoError(t, err)
	_, err = pipeline.AddStage(pipe, "tile", func(context.Context, []string) ([]string, error) {
		return nil, assert.AnError
	})
	require.NoError(t, err)

	_, err = pipe.Run(context.Background(), nil)
	require.Error(t, err)

	assert.Equal(t, []string{
		"new",
		"prepare start->render",
		"prepare render->tile",
		"before render",
		"after render",
		"before tile",
		"after tile failed",
		"finish",
	}, rec.calls)
	require.ErrorIs(t, rec.runErr, assert.AnError)
}

func TestPipelineOptionErrors(t *testing.T) {
	t.Parallel()

	_, err := pipeline.New[int](&hookRecorder{errAt: "new"})
	require.ErrorIs(t, err, assert.AnError)

	pipe, err := pipeline.New[[]string](&hookRecorder{errAt: "prepare start->render"})
	require.NoError(t, err)

	_, err = pipeline.AddStage(pipe, "render", appendStage("render"))
	require.ErrorIs(t, err, assert.AnError)

	pipe, err = pipeline.New[[]string](&hookRecorder{errAt: "before render"})
	require.NoError(t, err)

	_, err = pipeline.AddStage(pipe, "render", appendStage("render"))
	require.NoError(t, err)

	_, err = pipe.Run(context.Background(), nil)
	require.ErrorIs(t, err, assert.AnError)

	pipe, err = pipeline.New[[]string](&hookRecorder{errAt: "finish"})
	require.NoError(t, err)

	_, err = pipeline.AddStage(pipe, "render", appendStage("render"))
	require.NoError(t, err)

	_, err = pipe.Run(context.Background(), nil)
	require.ErrorIs(t, err, assert.AnError, "an option failing to finish fails a successful run")
}
