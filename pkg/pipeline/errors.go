package pipeline

import (
	"github.com/pkg/errors"
)

var (
	ErrPipelineMustBeSet = errors.New("p must be set")
	ErrStageFnMustBeSet  = errors.New("stage function must be set")
	ErrStageNameEmpty    = errors.New("stage name must not be empty")
	ErrNoStage           = errors.New("pipeline has no stage")
)

// StageError is returned by Run when a stage fails.
type StageError struct {
	Stage string
	Index int
	Err   error
}

func (e *StageError) Error() string {
	return e.Stage + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage returns the name of the stage that produced err, if any.
func FailedStage(err error) (string, bool) {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage, true
	}

	return "", false
}
