package converter

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/sgpage/hillshade-converter/internal/gdal"
	"github.com/sgpage/hillshade-converter/internal/preview"
	"github.com/sgpage/hillshade-converter/internal/process"
	"github.com/sgpage/hillshade-converter/internal/workspace"
	"github.com/sgpage/hillshade-converter/pkg/pipeline"
	"github.com/sgpage/hillshade-converter/pkg/pipeline/model"
	"github.com/sgpage/hillshade-converter/pkg/pipeline/tracing"
)

// Previewer renders hillshades for display without producing an archive. The rendered hillshade
// of the last preview is kept until Close, so Regenerate can try new illumination parameters on
// the same input.
type Previewer struct {
	settings

	mu     sync.Mutex
	ws     *workspace.Workspace
	params Parameters
	closed bool
}

// NewPreviewer creates a Previewer running the GDAL commands of tools with runner.
func NewPreviewer(runner process.Runner, tools gdal.Toolset, opts ...Option) (*Previewer, error) {
	s, err := newSettings(runner, tools, opts)
	if err != nil {
		return nil, err
	}

	return &Previewer{settings: s}, nil
}

// Preview renders p.InputPath in a new workspace, replacing any previous preview.
func (pv *Previewer) Preview(ctx context.Context, runID string, p Parameters, sink Sink) (PreviewImage, error) {
	if sink == nil {
		sink = discardSink{}
	}

	sink.State(Preparing, "", -1)
	sink.Progress(0)

	err := p.ValidateIllumination()
	if err != nil {
		return PreviewImage{}, err
	}

	pv.mu.Lock()
	defer pv.mu.Unlock()

	if pv.closed {
		return PreviewImage{}, ErrPreviewerClosed
	}

	pv.release()

	ws, err := workspace.New(pv.tempDir, runID)
	if err != nil {
		return PreviewImage{}, &FilesystemError{Op: "create", Path: "workspace", Err: err}
	}

	pv.ws = ws

	return pv.generate(ctx, p, sink)
}

// Regenerate renders the input of the last preview again with the illumination of p. The
// input path of p is ignored.
func (pv *Previewer) Regenerate(ctx context.Context, p Parameters, sink Sink) (PreviewImage, error) {
	if sink == nil {
		sink = discardSink{}
	}

	pv.mu.Lock()
	defer pv.mu.Unlock()

	if pv.closed {
		return PreviewImage{}, ErrPreviewerClosed
	}

	if pv.ws == nil {
		return PreviewImage{}, ErrNoPreview
	}

	sink.State(Preparing, "", -1)
	sink.Progress(0)

	p.InputPath = pv.params.InputPath

	err := p.ValidateIllumination()
	if err != nil {
		return PreviewImage{}, err
	}

	return pv.generate(ctx, p, sink)
}

// HillshadePath returns the raw hillshade of the last preview, or an empty string.
func (pv *Previewer) HillshadePath() string {
	pv.mu.Lock()
	defer pv.mu.Unlock()

	if pv.ws == nil {
		return ""
	}

	return pv.ws.Path(previewFile)
}

// Close removes the retained workspace. The Previewer cannot be used afterwards.
func (pv *Previewer) Close() error {
	pv.mu.Lock()
	defer pv.mu.Unlock()

	pv.closed = true

	if pv.ws == nil {
		return nil
	}

	err := pv.ws.Close()
	pv.ws = nil

	return err
}

// generate renders the hillshade and converts it for display. A failed preview discards the
// workspace.
func (pv *Previewer) generate(ctx context.Context, p Parameters, sink Sink) (PreviewImage, error) {
	img, err := pv.render(ctx, p, sink)
	if err != nil {
		pv.release()

		return PreviewImage{}, err
	}

	pv.params = p

	sink.Progress(100)
	sink.Log("✓ Preview generated successfully!")

	return img, nil
}

func (pv *Previewer) render(ctx context.Context, p Parameters, sink Sink) (PreviewImage, error) {
	j := &job{settings: &pv.settings, params: p, ws: pv.ws, sink: sink}

	opts := []model.PipelineOption{progressReporter{sink: sink}}
	if pv.tracer != nil {
		opts = append(opts, tracing.PipelineTracing(ctx, pv.tracer, "preview"))
	}

	pipe, err := pipeline.New[StageResult](opts...)
	if err != nil {
		return PreviewImage{}, errors.Wrap(err, "unable to create pipeline")
	}

	_, err = pipeline.AddStage(pipe, StageRender, j.render(previewFile, "Generating hillshade preview..."))
	if err != nil {
		return PreviewImage{}, errors.Wrap(err, "unable to add render stage")
	}

	rendered, err := pipe.Run(ctx, StageResult{Artifact: p.InputPath})
	if err != nil {
		return PreviewImage{}, err
	}

	sink.Progress(50)

	if err := ctx.Err(); err != nil {
		return PreviewImage{}, errors.Wrap(err, "preview stopped before display conversion")
	}

	png := pv.ws.Path(previewPNGFile)

	_, err = j.exec(ctx, pv.tools.PNG(rendered.Artifact, png), png)
	if err != nil {
		return PreviewImage{}, err
	}

	src, err := preview.Load(png)
	if err != nil {
		return PreviewImage{}, err
	}

	err = os.Remove(png)
	if err != nil {
		pv.logger.Debug("unable to remove preview image", slog.String("path", png), slog.String("error", err.Error()))
	}

	bounds := src.Bounds()

	return PreviewImage{
		Image:         preview.Fit(src, pv.maxSize),
		SourceWidth:   bounds.Dx(),
		SourceHeight:  bounds.Dy(),
		HillshadePath: rendered.Artifact,
		Params:        p,
	}, nil
}

// release drops the current workspace, logging rather than failing when it cannot be removed.
func (pv *Previewer) release() {
	if pv.ws == nil {
		return
	}

	err := pv.ws.Close()
	if err != nil {
		pv.logger.Warn("unable to remove preview workspace", slog.String("error", err.Error()))
	}

	pv.ws = nil
	pv.params = Parameters{}
}
