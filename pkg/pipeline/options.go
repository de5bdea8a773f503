package pipeline

import "github.com/sgpage/hillshade-converter/pkg/pipeline/model"

type StageOption func(s *model.StageInfo)

// StageProgress sets the progress checkpoint, in percent, reached when the stage begins.
func StageProgress(percent float64) StageOption {
	return func(s *model.StageInfo) {
		s.Progress = percent
	}
}
