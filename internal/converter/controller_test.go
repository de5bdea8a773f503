package converter_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgpage/hillshade-converter/internal/converter"
	"github.com/sgpage/hillshade-converter/internal/gdal"
	"github.com/sgpage/hillshade-converter/internal/process"
)

func newController(t *testing.T, runner process.Runner, tempDir string) *converter.Controller {
	t.Helper()

	conv, err := converter.NewConverter(runner, gdal.Toolset{}, converter.WithTempDir(tempDir))
	require.NoError(t, err)

	return converter.NewController(conv, newPreviewer(t, runner, tempDir), nil)
}

// collect drains the events of r.
func collect(t *testing.T, r *converter.Run) []converter.Event {
	t.Helper()

	var events []converter.Event

	timeout := time.After(10 * time.Second)

	for {
		select {
		case ev, ok := <-r.Events():
			if !ok {
				return events
			}

			events = append(events, ev)
		case <-timeout:
			t.Fatal("run did not finish")
		}
	}
}

func TestControllerConversion(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	rec := newRecorder(&fakeGDAL{zooms: []int{10, 11, 12}})
	ctrl := newController(t, rec, fx.tempDir)

	run, err := ctrl.StartConversion(context.Background(), fx.params)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)

	events := collect(t, run)
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	require.Equal(t, converter.ResultEvent, last.Kind)
	require.NotNil(t, last.Result)
	assert.Equal(t, converter.Succeeded, last.Result.State)
	assert.Equal(t, run.ID, last.Result.RunID)
	require.NotNil(t, last.Result.Outcome)
	assert.Equal(t, fx.params.OutputPath, last.Result.Outcome.OutputPath)

	var (
		progress []float64
		lines    []string
	)

	stages := make(map[string]int)

	for _, ev := range events[:len(events)-1] {
		switch ev.Kind {
		case converter.ProgressEvent:
			progress = append(progress, ev.Percent)
		case converter.LogEvent:
			lines = append(lines, ev.Line)
		case converter.StateEvent:
			if ev.Stage != "" {
				stages[ev.Stage] = ev.Index
			}
		case converter.ResultEvent:
			t.Fatal("result must be the last event")
		}
	}

	assert.Equal(t, []float64{0, 10, 30, 60, 90, 100}, progress)
	assert.Contains(t, lines, "Output saved to: "+fx.params.OutputPath)
	assert.Equal(t, map[string]int{
		converter.StageRender:    0,
		converter.StageNormalize: 1,
		converter.StageReproject: 2,
		converter.StageTile:      3,
		converter.StageVerify:    4,
	}, stages)
	assert.Equal(t, -1, last.Index)

	res := run.Wait()
	assert.Equal(t, converter.Succeeded, res.State)

	state, _ := run.State()
	assert.Equal(t, converter.Succeeded, state)
	assert.False(t, ctrl.Busy())
	requireNoWorkspace(t, fx.tempDir)
}

func TestControllerRejectsWhileBusy(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	release := make(chan struct{})
	rec := newRecorder(&fakeGDAL{
		zooms: []int{10, 11, 12},
		block: map[string]chan struct{}{kindRender: release},
	})
	rec.Started = make(chan []string, 10)
	ctrl := newController(t, rec, fx.tempDir)

	run, err := ctrl.StartConversion(context.Background(), fx.params)
	require.NoError(t, err)

	// wait for the render command to be blocked
	for argv := range rec.Started {
		if commandKind(argv) == kindRender {
			break
		}
	}

	callsBefore := len(rec.Calls())

	_, err = ctrl.StartConversion(context.Background(), fx.params)
	require.ErrorIs(t, err, converter.ErrBusy)

	_, err = ctrl.StartPreview(context.Background(), fx.params)
	require.ErrorIs(t, err, converter.ErrBusy)

	assert.Len(t, rec.Calls(), callsBefore, "a rejected start runs nothing")
	assert.True(t, ctrl.Busy())

	close(release)

	events := collect(t, run)
	assert.Equal(t, converter.Succeeded, events[len(events)-1].Result.State)
	assert.False(t, ctrl.Busy())

	next, err := ctrl.StartPreview(context.Background(), fx.params)
	require.NoError(t, err)

	collect(t, next)
	assert.Equal(t, converter.Succeeded, next.Wait().State)
}

func TestControllerCancel(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	rec := newRecorder(&fakeGDAL{
		zooms: []int{10, 11, 12},
		block: map[string]chan struct{}{kindNormalize: release},
	})
	rec.Started = make(chan []string, 10)
	ctrl := newController(t, rec, fx.tempDir)

	run, err := ctrl.StartConversion(context.Background(), fx.params)
	require.NoError(t, err)

	go func() {
		for argv := range rec.Started {
			if commandKind(argv) == kindNormalize {
				run.Cancel()

				return
			}
		}
	}()

	events := collect(t, run)
	res := events[len(events)-1].Result
	require.NotNil(t, res)
	assert.Equal(t, converter.Cancelled, res.State)
	require.ErrorIs(t, res.Err, context.Canceled)
	require.ErrorIs(t, res.Err, converter.ErrCancelled)

	assert.NotContains(t, kinds(rec.Calls()), kindReproject)
	assert.False(t, ctrl.Busy())
	requireNoWorkspace(t, fx.tempDir)
}

func TestControllerFailure(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	rec := newRecorder(&fakeGDAL{failures: map[string]int{kindReproject: 1}})
	ctrl := newController(t, rec, fx.tempDir)

	run, err := ctrl.StartConversion(context.Background(), fx.params)
	require.NoError(t, err)

	events := collect(t, run)
	res := events[len(events)-1].Result
	require.NotNil(t, res)
	assert.Equal(t, converter.Failed, res.State)

	var errorLine string

	for _, ev := range events {
		if ev.Kind == converter.LogEvent && strings.HasPrefix(ev.Line, "✗ ERROR: ") {
			errorLine = ev.Line
		}
	}

	assert.Contains(t, errorLine, "✗ ERROR: reproject: command failed with exit code 1")
	assert.Equal(t, "✗ ERROR: "+res.Message, converter.Describe(*res))
}

func TestControllerRecoversPanic(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	rec := process.NewRecorder(func(argv []string) process.Response {
		if commandKind(argv) == kindRender {
			panic("boom")
		}

		return process.Response{}
	})
	ctrl := newController(t, rec, fx.tempDir)

	run, err := ctrl.StartConversion(context.Background(), fx.params)
	require.NoError(t, err)

	collect(t, run)

	res := run.Wait()
	assert.Equal(t, converter.Failed, res.State)
	assert.Contains(t, res.Message, "boom")
	assert.False(t, ctrl.Busy())
}

func TestControllerValidatesBeforeStarting(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.params.Azimuth = 360
	rec := newRecorder(&fakeGDAL{})
	ctrl := newController(t, rec, fx.tempDir)

	_, err := ctrl.StartConversion(context.Background(), fx.params)

	var cfgErr *converter.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.False(t, ctrl.Busy())
	assert.Empty(t, rec.Calls())
}

func TestControllerRegenerate(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctrl := newController(t, newRecorder(&fakeGDAL{}), fx.tempDir)

	run, err := ctrl.StartRegenerate(context.Background(), fx.params)
	require.NoError(t, err)
	collect(t, run)
	require.ErrorIs(t, run.Wait().Err, converter.ErrNoPreview)

	run, err = ctrl.StartPreview(context.Background(), fx.params)
	require.NoError(t, err)
	collect(t, run)
	require.Equal(t, converter.Succeeded, run.Wait().State)

	params := fx.params
	params.Altitude = 60

	run, err = ctrl.StartRegenerate(context.Background(), params)
	require.NoError(t, err)
	collect(t, run)

	res := run.Wait()
	require.Equal(t, converter.Succeeded, res.State)
	require.NotNil(t, res.Preview)
	assert.InDelta(t, 60, res.Preview.Params.Altitude, 0)
}
