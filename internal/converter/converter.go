// Package converter turns a DEM into a hillshade MBTiles archive by chaining GDAL commands.
//
// A conversion runs five stages, each one a GDAL command working on the output of the previous:
//
//	render     gdaldem hillshade              DEM -> shaded relief
//	normalize  gdal_translate -ot Byte         -> 8 bit greyscale
//	reproject  gdalwarp -t_srs EPSG:3857       -> Web Mercator
//	tile       gdal_translate -of MBTiles      -> tile archive at the output path
//	verify     zoom levels read back from the archive
//
// Intermediate files live in a workspace removed when the run ends, whatever its outcome.
// The first failing stage stops the run. Verification only reports.
//
// Controller runs conversions and previews in the background, one at a time, and streams their
// progress as events.
package converter

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/sgpage/hillshade-converter/internal/gdal"
	"github.com/sgpage/hillshade-converter/internal/process"
	"github.com/sgpage/hillshade-converter/internal/workspace"
	"github.com/sgpage/hillshade-converter/pkg/pipeline"
	"github.com/sgpage/hillshade-converter/pkg/pipeline/drawer"
	"github.com/sgpage/hillshade-converter/pkg/pipeline/measure"
	"github.com/sgpage/hillshade-converter/pkg/pipeline/model"
	"github.com/sgpage/hillshade-converter/pkg/pipeline/tracing"
)

// Publisher uploads a finished archive and returns where it can be found.
type Publisher interface {
	Publish(ctx context.Context, path string) (string, error)
}

// Converter runs full conversions.
type Converter struct {
	settings
}

// NewConverter creates a Converter running the GDAL commands of tools with runner.
func NewConverter(runner process.Runner, tools gdal.Toolset, opts ...Option) (*Converter, error) {
	s, err := newSettings(runner, tools, opts)
	if err != nil {
		return nil, err
	}

	return &Converter{settings: s}, nil
}

// Convert runs a conversion synchronously, reporting to sink.
func (c *Converter) Convert(ctx context.Context, runID string, p Parameters, sink Sink) (Outcome, error) {
	if sink == nil {
		sink = discardSink{}
	}

	sink.State(Preparing, "", -1)
	sink.Progress(0)

	err := p.Validate()
	if err != nil {
		return Outcome{}, err
	}

	err = prepareOutput(p.OutputPath, sink)
	if err != nil {
		return Outcome{}, err
	}

	ws, err := workspace.New(c.tempDir, runID)
	if err != nil {
		return Outcome{}, &FilesystemError{Op: "create", Path: "workspace", Err: err}
	}

	sink.Log("Created temporary directory: " + ws.Dir())

	j := &job{settings: &c.settings, params: p, ws: ws, sink: sink}
	m := measure.NewDefaultMeasure()

	pipe, err := c.build(ctx, j, m)
	if err == nil {
		_, err = pipe.Run(ctx, StageResult{Artifact: p.InputPath})
		c.logMetrics(runID, pipe, m)
	}

	sink.Log("Cleaning up temporary files...")

	closeErr := ws.Close()
	if err != nil {
		if closeErr != nil {
			c.logger.Warn("unable to remove workspace",
				slog.String("run_id", runID),
				slog.String("error", closeErr.Error()),
			)
		}

		return Outcome{}, err
	}

	if closeErr != nil {
		return Outcome{}, &FilesystemError{Op: "remove", Path: ws.Dir(), Err: closeErr}
	}

	sink.Progress(100)
	sink.Log("✓ Conversion complete!")
	sink.Log("Output saved to: " + p.OutputPath)

	return Outcome{OutputPath: p.OutputPath, Report: j.report, Location: j.location}, nil
}

func (c *Converter) build(ctx context.Context, j *job, m measure.Measure) (*pipeline.Pipeline[StageResult], error) {
	opts := []model.PipelineOption{progressReporter{sink: j.sink}, measure.PipelineMeasure(m)}

	if c.graphPath != "" {
		opts = append(opts, drawer.PipelineDrawer(drawer.NewDOTDrawer(c.graphPath), m))
	}

	if c.tracer != nil {
		opts = append(opts, tracing.PipelineTracing(ctx, c.tracer, "conversion"))
	}

	pipe, err := pipeline.New[StageResult](opts...)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create pipeline")
	}

	type stageDef struct {
		name     string
		fn       pipeline.StageFn[StageResult]
		progress float64
	}

	stages := []stageDef{
		{name: StageRender, fn: j.render(hillshadeFile, "Step 1/4: Analyzing input and generating hillshade..."), progress: 10},
		{name: StageNormalize, fn: j.normalize},
		{name: StageReproject, fn: j.reproject, progress: 30},
		{name: StageTile, fn: j.tile, progress: 60},
		{name: StageVerify, fn: j.verify, progress: 90},
	}

	if c.publisher != nil {
		stages = append(stages, stageDef{name: StagePublish, fn: j.publish, progress: 95})
	}

	for _, st := range stages {
		_, err = pipeline.AddStage(pipe, st.name, st.fn, pipeline.StageProgress(st.progress))
		if err != nil {
			return nil, errors.Wrapf(err, "unable to add stage %s", st.name)
		}
	}

	return pipe, nil
}

func (c *Converter) logMetrics(runID string, pipe *pipeline.Pipeline[StageResult], m measure.Measure) {
	names, err := pipe.Stages()
	if err != nil {
		return
	}

	attrs := []any{slog.String("run_id", runID), slog.Duration("total", pipe.Elapsed())}

	for _, name := range names {
		mt := m.GetMetric(name)
		if mt == nil || mt.Runs() == 0 {
			continue
		}

		attrs = append(attrs, slog.Duration(name, mt.AVGDuration()))
	}

	c.logger.Info("conversion timings", attrs...)
}

// prepareOutput makes sure the output can be written and that no previous archive is left at
// its path.
func prepareOutput(output string, sink Sink) error {
	err := workspace.PrepareOutput(output)
	if err != nil {
		var unwritable *workspace.UnwritableError
		if errors.As(err, &unwritable) {
			return &ConfigurationError{
				Field:   "output",
				Message: "Permission denied: cannot write to " + unwritable.Dir,
				Hint:    unwritable.Hint(),
				Err:     unwritable.Err,
			}
		}

		return err
	}

	removed, err := workspace.RemoveStale(output)
	if err != nil {
		return &FilesystemError{Op: "remove", Path: output, Err: err}
	}

	if removed {
		sink.Log("Removing existing file: " + output)
	}

	return nil
}
