package converter

import (
	"image"
	"time"

	"github.com/sgpage/hillshade-converter/internal/mbtiles"
)

// Sink receives what a run reports while it progresses.
type Sink interface {
	// Log receives one user-facing log line.
	Log(line string)
	// Progress receives the completion percentage, between 0 and 100.
	Progress(percent float64)
	// State receives every state transition. stage names the running stage, if any, and index
	// is its position in the run order, or -1 outside a stage.
	State(state State, stage string, index int)
}

type discardSink struct{}

func (discardSink) Log(string)               {}
func (discardSink) Progress(float64)         {}
func (discardSink) State(State, string, int) {}

// Kind tells which field of an Event is set.
type Kind int

const (
	LogEvent Kind = iota
	ProgressEvent
	StateEvent
	ResultEvent
)

// Event is one message from a run to its consumer.
type Event struct {
	Kind    Kind
	Line    string
	Percent float64
	State   State
	Stage   string
	// Index is the run order position of Stage, -1 when no stage is running.
	Index  int
	Result *Result
}

// Outcome describes a finished conversion.
type Outcome struct {
	OutputPath string
	// Report is nil when the archive could not be verified.
	Report *mbtiles.ZoomReport
	// Location is where the archive was published, if it was.
	Location string
}

// PreviewImage is a hillshade rendered for display.
type PreviewImage struct {
	Image         image.Image
	SourceWidth   int
	SourceHeight  int
	HillshadePath string
	Params        Parameters
}

// Result is the terminal report of a run.
type Result struct {
	RunID   string
	State   State
	Message string
	Err     error
	Elapsed time.Duration
	Outcome *Outcome
	Preview *PreviewImage
}
