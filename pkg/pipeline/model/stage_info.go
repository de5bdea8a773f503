package model

type stageType string

const (
	StartStageType  = "start"
	NormalStageType = "stage"
	EndStageType    = "end"
)

// StageInfo describes a stage to the pipeline options.
type StageInfo struct {
	Type stageType
	Name string
	// Index is the position of the stage in the run order, starting at 0.
	Index int
	// Progress is the checkpoint, in percent, reached when the stage begins. Zero means none.
	Progress float64
}

var (
	StartStage = &StageInfo{Type: StartStageType, Name: "start", Index: -1}
	EndStage   = &StageInfo{Type: EndStageType, Name: "end", Index: -1}
)
