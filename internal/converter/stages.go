package converter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/sgpage/hillshade-converter/internal/mbtiles"
	"github.com/sgpage/hillshade-converter/internal/workspace"
	"github.com/sgpage/hillshade-converter/pkg/pipeline/model"
)

// Stage names, in run order.
const (
	StageRender    = "render"
	StageNormalize = "normalize"
	StageReproject = "reproject"
	StageTile      = "tile"
	StageVerify    = "verify"
	StagePublish   = "publish"
)

const (
	hillshadeFile   = "hillshade.tif"
	greyscaleFile   = "hillshade_grey.tif"
	mercatorFile    = "hillshade_3857.tif"
	previewFile     = "hillshade_preview.tif"
	previewPNGFile  = "hillshade_preview.png"
	errorMarker     = "✗ ERROR: "
	upperStrategyA  = "IMPORTANT: Using UPPER zoom strategy to create tiles at all zoom levels."
	upperStrategyB  = "Tiles may appear stretched at higher zoom if input resolution is insufficient."
	shortfallNotice = "WARNING: Not all zoom levels have tiles. This may cause visibility issues."
)

// StageResult is the value passed from one stage to the next.
type StageResult struct {
	// Artifact is the file the stage produced.
	Artifact string
	// Log holds the output lines of the stage commands.
	Log      []string
	ExitCode int
}

// job is the state shared by the stages of one run.
type job struct {
	*settings
	params Parameters
	ws     *workspace.Workspace
	sink   Sink
	report *mbtiles.ZoomReport
	// location is where the archive was published.
	location string
}

// exec runs argv, forwarding its output to the sink, and describes artifact as the result.
func (j *job) exec(ctx context.Context, argv []string, artifact string) (StageResult, error) {
	var lines []string

	code, err := j.runner.Run(ctx, argv, func(line string) {
		lines = append(lines, line)
		j.sink.Log(line)
	})
	if err != nil {
		return StageResult{Log: lines, ExitCode: code}, err
	}

	return StageResult{Artifact: artifact, Log: lines, ExitCode: code}, nil
}

func (j *job) inspect(ctx context.Context, input string) error {
	j.sink.Log("Input file information:")

	_, err := j.exec(ctx, j.tools.Inspect(input), input)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}

		j.sink.Log("Could not read input information: " + err.Error())
		j.logger.Warn("input inspection failed",
			slog.String("input", input),
			slog.String("error", err.Error()),
		)
	}

	j.sink.Log("")

	return nil
}

// render builds the shaded relief stage writing to the workspace file name.
func (j *job) render(name, banner string) func(ctx context.Context, in StageResult) (StageResult, error) {
	return func(ctx context.Context, in StageResult) (StageResult, error) {
		j.sink.Log(banner)

		err := j.inspect(ctx, in.Artifact)
		if err != nil {
			return StageResult{}, err
		}

		out := j.ws.Path(name)

		return j.exec(ctx, j.tools.Hillshade(in.Artifact, out, j.params.hillshade()), out)
	}
}

func (j *job) normalize(ctx context.Context, in StageResult) (StageResult, error) {
	j.sink.Log("Converting to greyscale...")

	out := j.ws.Path(greyscaleFile)

	return j.exec(ctx, j.tools.Greyscale(in.Artifact, out), out)
}

func (j *job) reproject(ctx context.Context, in StageResult) (StageResult, error) {
	j.sink.Log("Step 2/4: Reprojecting to Web Mercator EPSG:3857...")

	out := j.ws.Path(mercatorFile)

	return j.exec(ctx, j.tools.Reproject(in.Artifact, out), out)
}

func (j *job) tile(ctx context.Context, in StageResult) (StageResult, error) {
	j.sink.Log("Step 3/4: Converting to MBTiles format...")
	j.sink.Log(fmt.Sprintf("Zoom levels: %d to %d", j.params.MinZoom, j.params.MaxZoom))
	j.sink.Log("")
	j.sink.Log(upperStrategyA)
	j.sink.Log(upperStrategyB)
	j.sink.Log("")

	out := j.params.OutputPath

	removed, err := workspace.RemoveStale(out)
	if err != nil {
		return StageResult{}, &FilesystemError{Op: "remove", Path: out, Err: err}
	}

	if removed {
		j.sink.Log("Removing existing file: " + out)
	}

	return j.exec(ctx, j.tools.MBTiles(in.Artifact, out, j.params.tiles()), out)
}

func (j *job) verify(ctx context.Context, in StageResult) (StageResult, error) {
	j.sink.Log("Step 4/4: Verifying MBTiles output...")
	j.sink.Log("Checking zoom levels in generated MBTiles...")

	report, err := mbtiles.Verify(ctx, in.Artifact, j.params.MinZoom, j.params.MaxZoom)
	if err != nil {
		if ctx.Err() != nil {
			return StageResult{}, err
		}

		j.sink.Log("Could not verify zoom levels: " + err.Error())

		return in, nil
	}

	j.report = &report
	j.sink.Log(fmt.Sprintf("Created tiles at zoom levels: %v", report.Observed))

	if warning := report.Warning(); warning != nil {
		j.sink.Log(shortfallNotice)
		j.sink.Log(warning.Hint())
		j.logger.Warn("archive is missing zoom levels",
			slog.String("output", in.Artifact),
			slog.String("warning", warning.Error()),
		)
	}

	md, err := mbtiles.ReadMetadata(ctx, in.Artifact)
	if err == nil && len(md) > 0 {
		j.logger.Debug("archive metadata",
			slog.String("output", in.Artifact),
			slog.String("format", md["format"]),
			slog.String("bounds", md["bounds"]),
			slog.String("minzoom", md["minzoom"]),
			slog.String("maxzoom", md["maxzoom"]),
		)
	}

	return in, nil
}

func (j *job) publish(ctx context.Context, in StageResult) (StageResult, error) {
	j.sink.Log("Publishing archive...")

	location, err := j.publisher.Publish(ctx, in.Artifact)
	if err != nil {
		return StageResult{}, errors.Wrap(err, "unable to publish archive")
	}

	j.location = location
	j.sink.Log("Published to: " + location)

	return in, nil
}

// progressReporter forwards stage checkpoints and transitions to the sink.
type progressReporter struct {
	sink Sink
}

func (pr progressReporter) New() error {
	return nil
}

func (pr progressReporter) PrepareStage(*model.StageInfo, *model.StageInfo) error {
	return nil
}

func (pr progressReporter) BeforeStage(stage *model.StageInfo) error {
	state := RunningStage
	if stage.Name == StageVerify {
		state = Verifying
	}

	pr.sink.State(state, stage.Name, stage.Index)

	if stage.Progress > 0 {
		pr.sink.Progress(stage.Progress)
	}

	return nil
}

func (pr progressReporter) AfterStage(*model.StageInfo, time.Duration, error) error {
	return nil
}

func (pr progressReporter) Finish(error) error {
	return nil
}

var _ model.PipelineOption = progressReporter{}
