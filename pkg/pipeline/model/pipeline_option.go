package model

import "time"

// PipelineOption defines the interface for pipeline options.
type PipelineOption interface {
	// New initialises the pipeline option.
	New() error

	pipelineStageOption

	// Finish runs after the pipeline is finished. runErr is the error that stopped the run, if any.
	Finish(runErr error) error
}

// pipelineStageOption defines the interface for stage options at the pipeline level.
type pipelineStageOption interface {
	// PrepareStage runs when the stage is added to the pipeline.
	PrepareStage(parentStage, stage *StageInfo) error
	// BeforeStage runs right before the stage is executed.
	BeforeStage(stage *StageInfo) error
	// AfterStage runs once the stage returned, err is the stage error.
	AfterStage(stage *StageInfo, duration time.Duration, err error) error
}
