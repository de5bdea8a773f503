package converter

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrBusy               = errors.New("a conversion or preview is already running")
	ErrCancelled          = errors.New("run cancelled")
	ErrRunnerMustBeSet    = errors.New("runner must be set")
	ErrConverterMustBeSet = errors.New("converter must be set")
	ErrPreviewerMustBeSet = errors.New("previewer must be set")
	ErrNoPreview          = errors.New("no preview has been generated")
	ErrPreviewerClosed    = errors.New("previewer is closed")
)

// ConfigurationError reports parameters or an output location that cannot work. It is raised
// before any external process runs and before any workspace exists.
type ConfigurationError struct {
	Field   string
	Message string
	// Hint tells the user how to fix the problem, when there is a known remedy.
	Hint string
	Err  error
}

func (e *ConfigurationError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}

	if e.Hint != "" {
		msg += "\n" + e.Hint
	}

	return msg
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// FilesystemError reports a failure to create or delete a file or directory during a run.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("unable to %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error {
	return e.Err
}
