// Package process runs external commands and streams their merged output line by line.
package process

import (
	"context"
	"fmt"
	"strings"
)

// LineFunc receives one line of command output, without its line terminator.
type LineFunc func(line string)

// Runner executes a command and reports every output line to onLine as soon as it is produced.
// A non-zero exit status is returned as a *StageExecutionError.
type Runner interface {
	Run(ctx context.Context, argv []string, onLine LineFunc) (int, error)
}

// StageExecutionError reports a command that exited with a non-zero status or could not start.
type StageExecutionError struct {
	ExitCode int
	Argv     []string
	// Err is set when the command could not be started at all.
	Err error
}

func (e *StageExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("command could not be started (exit code %d): %s: %v", e.ExitCode, e.CommandLine(), e.Err)
	}

	return fmt.Sprintf("command failed with exit code %d: %s", e.ExitCode, e.CommandLine())
}

func (e *StageExecutionError) Unwrap() error {
	return e.Err
}

// CommandLine returns the command line as it is logged.
func (e *StageExecutionError) CommandLine() string {
	return CommandLine(e.Argv)
}

// CommandLine joins argv the way commands are logged before execution.
func CommandLine(argv []string) string {
	return strings.Join(argv, " ")
}

// NotFoundExitCode is reported when the executable could not be started, following the shell
// convention for "command not found".
const NotFoundExitCode = 127
