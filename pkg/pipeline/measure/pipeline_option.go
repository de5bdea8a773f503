package measure

import (
	"time"

	"github.com/sgpage/hillshade-converter/pkg/pipeline/model"
)

type pipelineMeasure struct {
	Measure
	startTime time.Time
}

func (pm *pipelineMeasure) New() error {
	pm.AddMetric(model.StartStage.Name)
	pm.AddMetric(model.EndStage.Name)

	return nil
}

func (pm *pipelineMeasure) PrepareStage(_, stage *model.StageInfo) error {
	pm.AddMetric(stage.Name)

	return nil
}

func (pm *pipelineMeasure) BeforeStage(stage *model.StageInfo) error {
	if stage.Index == 0 {
		pm.startTime = time.Now()
	}

	return nil
}

func (pm *pipelineMeasure) AfterStage(stage *model.StageInfo, duration time.Duration, err error) error {
	mt := pm.GetMetric(stage.Name)
	if mt == nil {
		mt = pm.AddMetric(stage.Name)
	}

	mt.AddDuration(duration)
	mt.SetTotalDuration(time.Since(pm.startTime))

	if err != nil {
		mt.SetError(err)
	}

	return nil
}

func (pm *pipelineMeasure) Finish(runErr error) error {
	if pm.startTime.IsZero() {
		return nil
	}

	end := pm.GetMetric(model.EndStage.Name)
	end.SetTotalDuration(time.Since(pm.startTime))

	if runErr != nil {
		end.SetError(runErr)
	}

	return nil
}

// PipelineMeasure records the duration and outcome of every stage into measure.
func PipelineMeasure(measure Measure) model.PipelineOption {
	return &pipelineMeasure{Measure: measure}
}
