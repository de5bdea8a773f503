package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const probeName = ".write_test"

// UnwritableError reports an output directory that cannot be created or written to.
type UnwritableError struct {
	Dir string
	Err error
}

func (e *UnwritableError) Error() string {
	return fmt.Sprintf("cannot write to output directory %s: %v", e.Dir, e.Err)
}

func (e *UnwritableError) Unwrap() error {
	return e.Err
}

// Hint suggests where the user can save instead.
func (e *UnwritableError) Hint() string {
	return "Please choose a folder where you have write permission, such as your Desktop, " +
		"your Documents folder, or a folder you created."
}

// PrepareOutput makes sure the parent directory of output exists and accepts new files, by
// creating and removing a probe file in it.
func PrepareOutput(output string) error {
	dir := filepath.Dir(output)

	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return &UnwritableError{Dir: dir, Err: err}
	}

	probe := filepath.Join(dir, probeName)

	err = os.WriteFile(probe, []byte("test"), 0o600)
	if err != nil {
		return &UnwritableError{Dir: dir, Err: err}
	}

	err = os.Remove(probe)
	if err != nil {
		return &UnwritableError{Dir: dir, Err: err}
	}

	return nil
}

// RemoveStale deletes a previous archive at output. It reports whether a file was removed.
func RemoveStale(output string) (bool, error) {
	err := os.Remove(output)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, errors.Wrapf(err, "unable to remove existing output %s", output)
	}
}
