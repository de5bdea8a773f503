package converter

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Controller starts conversions and previews in the background. Only one of them may run at a
// time: a start request while another run is active fails with ErrBusy.
type Controller struct {
	converter *Converter
	previewer *Previewer
	logger    *slog.Logger
	busy      atomic.Bool
}

// NewController creates a Controller. previewer may be nil when previews are not needed.
func NewController(converter *Converter, previewer *Previewer, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{converter: converter, previewer: previewer, logger: logger}
}

// Busy reports whether a run is active.
func (c *Controller) Busy() bool {
	return c.busy.Load()
}

// StartConversion validates p and starts a conversion.
func (c *Controller) StartConversion(ctx context.Context, p Parameters) (*Run, error) {
	if c.converter == nil {
		return nil, ErrConverterMustBeSet
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return c.start(ctx, "conversion", func(ctx context.Context, r *Run) Result {
		outcome, err := c.converter.Convert(ctx, r.ID, p, runSink{r})
		if err != nil {
			return Result{Err: err}
		}

		return Result{Outcome: &outcome, Message: "Output saved to: " + outcome.OutputPath}
	})
}

// StartPreview validates p and starts rendering a preview of p.InputPath.
func (c *Controller) StartPreview(ctx context.Context, p Parameters) (*Run, error) {
	if c.previewer == nil {
		return nil, ErrPreviewerMustBeSet
	}

	if err := p.ValidateIllumination(); err != nil {
		return nil, err
	}

	return c.start(ctx, "preview", func(ctx context.Context, r *Run) Result {
		img, err := c.previewer.Preview(ctx, r.ID, p, runSink{r})
		if err != nil {
			return Result{Err: err}
		}

		return Result{Preview: &img, Message: "Preview generated"}
	})
}

// StartRegenerate renders the last preview again with the illumination of p.
func (c *Controller) StartRegenerate(ctx context.Context, p Parameters) (*Run, error) {
	if c.previewer == nil {
		return nil, ErrPreviewerMustBeSet
	}

	return c.start(ctx, "preview", func(ctx context.Context, r *Run) Result {
		img, err := c.previewer.Regenerate(ctx, p, runSink{r})
		if err != nil {
			return Result{Err: err}
		}

		return Result{Preview: &img, Message: "Preview generated"}
	})
}

func (c *Controller) start(ctx context.Context, kind string, work func(ctx context.Context, r *Run) Result) (*Run, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := newRun(uuid.NewString(), cancel)

	logger := c.logger.With(slog.String("run_id", r.ID), slog.String("kind", kind))
	logger.Info("run started")

	go func() {
		start := time.Now()
		res := execute(runCtx, r, work)

		cancel()

		res.RunID = r.ID
		res.Elapsed = time.Since(start)

		switch res.State {
		case Failed:
			r.Log(errorMarker + res.Err.Error())
			logger.Error("run failed", slog.String("error", res.Err.Error()), slog.Duration("elapsed", res.Elapsed))
		case Cancelled:
			r.Log("Cancelled.")
			logger.Info("run cancelled", slog.Duration("elapsed", res.Elapsed))
		default:
			logger.Info("run succeeded", slog.Duration("elapsed", res.Elapsed))
		}

		// the token is free by the time the consumer sees the result
		c.busy.Store(false)
		r.finish(res)
	}()

	return r, nil
}

// execute runs work and turns its error, or its panic, into a terminal state.
func execute(ctx context.Context, r *Run, work func(ctx context.Context, r *Run) Result) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			res = Result{State: Failed, Err: errors.Errorf("unexpected failure: %v", rec)}
			res.Message = res.Err.Error()
		}
	}()

	res = work(ctx, r)

	switch {
	case res.Err == nil:
		res.State = Succeeded
	case errors.Is(res.Err, context.Canceled):
		res.State = Cancelled
		res.Message = "Cancelled"
		res.Err = fmt.Errorf("%w: %w", ErrCancelled, res.Err)
	default:
		res.State = Failed
		res.Message = res.Err.Error()
	}

	return res
}

// Describe renders a result for display.
func Describe(res Result) string {
	switch res.State {
	case Succeeded:
		return res.Message
	case Cancelled:
		return fmt.Sprintf("Run %s cancelled", res.RunID)
	default:
		return errorMarker + res.Message
	}
}
