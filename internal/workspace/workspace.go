// Package workspace manages the scratch directory of a run and the destination of its output.
package workspace

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

const namePrefix = "hillshade_"

// Workspace is a temporary directory owned by exactly one run.
type Workspace struct {
	mu     sync.Mutex
	dir    string
	closed bool
}

// New creates a workspace under baseDir, or under the system temporary directory when baseDir
// is empty. runID becomes part of the directory name.
func New(baseDir, runID string) (*Workspace, error) {
	dir, err := os.MkdirTemp(baseDir, namePrefix+runID+"_*")
	if err != nil {
		return nil, errors.Wrap(err, "unable to create workspace")
	}

	return &Workspace{dir: dir}, nil
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string {
	return w.dir
}

// Path returns the path of name inside the workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// Close removes the workspace and everything in it. Calling Close again is a no-op.
func (w *Workspace) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	err := os.RemoveAll(w.dir)
	if err != nil {
		return errors.Wrapf(err, "unable to remove workspace %s", w.dir)
	}

	w.closed = true

	return nil
}

// Closed reports whether the workspace has been removed.
func (w *Workspace) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.closed
}
