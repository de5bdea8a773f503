// Package tracing provides a pipeline option emitting an OpenTelemetry span per stage.
package tracing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sgpage/hillshade-converter/pkg/pipeline/model"
)

type pipelineTracing struct {
	ctx      context.Context
	tracer   trace.Tracer
	name     string
	runCtx   context.Context
	runSpan  trace.Span
	stageSpn trace.Span
}

func (pt *pipelineTracing) New() error {
	return nil
}

func (pt *pipelineTracing) PrepareStage(*model.StageInfo, *model.StageInfo) error {
	return nil
}

func (pt *pipelineTracing) BeforeStage(stage *model.StageInfo) error {
	if pt.runSpan == nil {
		pt.runCtx, pt.runSpan = pt.tracer.Start(pt.ctx, pt.name)
	}

	_, pt.stageSpn = pt.tracer.Start(pt.runCtx, stage.Name,
		trace.WithAttributes(
			attribute.Int("stage.index", stage.Index),
			attribute.Float64("stage.progress", stage.Progress),
		),
	)

	return nil
}

func (pt *pipelineTracing) AfterStage(_ *model.StageInfo, duration time.Duration, err error) error {
	if pt.stageSpn == nil {
		return nil
	}

	pt.stageSpn.SetAttributes(attribute.Int64("stage.duration_ms", duration.Milliseconds()))
	endSpan(pt.stageSpn, err)
	pt.stageSpn = nil

	return nil
}

func (pt *pipelineTracing) Finish(runErr error) error {
	if pt.runSpan == nil {
		return nil
	}

	endSpan(pt.runSpan, runErr)
	pt.runSpan = nil

	return nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

// PipelineTracing wraps a pipeline run in a span named name, with one child span per stage.
func PipelineTracing(ctx context.Context, tracer trace.Tracer, name string) model.PipelineOption {
	return &pipelineTracing{ctx: ctx, tracer: tracer, name: name}
}
