package drawer

import (
	"time"

	"github.com/pkg/errors"

	"github.com/sgpage/hillshade-converter/pkg/pipeline/measure"
	"github.com/sgpage/hillshade-converter/pkg/pipeline/model"
)

type pipelineDrawer struct {
	Drawer
	m         measure.Measure
	startTime time.Time
	last      string
}

func (pd *pipelineDrawer) New() error {
	err := pd.AddStep(model.StartStage.Name)
	if err != nil {
		return errors.Wrap(err, "unable to add start step to drawer")
	}

	err = pd.AddStep(model.EndStage.Name)
	if err != nil {
		return errors.Wrap(err, "unable to add end step to drawer")
	}

	return nil
}

func (pd *pipelineDrawer) PrepareStage(parentStage, stage *model.StageInfo) error {
	err := pd.AddStep(stage.Name)
	if err != nil {
		return err
	}

	err = pd.AddLink(parentStage.Name, stage.Name)
	if err != nil {
		return err
	}

	pd.last = stage.Name

	return nil
}

func (pd *pipelineDrawer) BeforeStage(stage *model.StageInfo) error {
	if stage.Index == 0 {
		pd.startTime = time.Now()
	}

	return nil
}

func (pd *pipelineDrawer) AfterStage(*model.StageInfo, time.Duration, error) error {
	return nil
}

func (pd *pipelineDrawer) Finish(error) error {
	if pd.last != "" {
		err := pd.AddLink(pd.last, model.EndStage.Name)
		if err != nil {
			return errors.Wrap(err, "unable to link last step to end")
		}

		// a second run of the same pipeline must not link twice
		pd.last = ""
	}

	if !pd.startTime.IsZero() {
		err := pd.SetTotalTime(model.EndStage.Name, pd.startTime)
		if err != nil {
			return errors.Wrap(err, "unable to set total time")
		}
	}

	if pd.m != nil {
		err := pd.AddMeasure(pd.m)
		if err != nil {
			return errors.Wrap(err, "unable to add measure")
		}
	}

	err := pd.Draw()
	if err != nil {
		return errors.Wrap(err, "unable to draw pipeline")
	}

	return nil
}

// PipelineDrawer draws the stage graph once the pipeline finished, successfully or not.
// When measure is set, stage durations and failures are added to the drawing.
func PipelineDrawer(drawer Drawer, measure measure.Measure) model.PipelineOption {
	return &pipelineDrawer{Drawer: drawer, m: measure}
}
