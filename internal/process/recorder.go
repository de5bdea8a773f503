package process

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// Response scripts the behaviour of one command run by a Recorder.
type Response struct {
	// Lines are emitted in order before the command "exits".
	Lines []string
	// ExitCode is the status the command exits with.
	ExitCode int
	// Err is returned as is, in place of an exit status.
	Err error
	// Effect runs before the lines are emitted, to create the files the real command would write.
	Effect func(argv []string) error
	// Block, when set, holds the command until it is closed or the context is done.
	Block <-chan struct{}
}

// Recorder implements Runner for testing. It records every command and answers with scripted
// responses instead of starting processes.
type Recorder struct {
	mu sync.Mutex
	// Commands records the argv of every run, in call order.
	Commands [][]string
	// Handler picks the response for a command. If nil, every command succeeds silently.
	Handler func(argv []string) Response
	// Started, when set, receives the argv of every command once it is recorded.
	Started chan []string
}

// NewRecorder creates a Recorder answering with handler.
func NewRecorder(handler func(argv []string) Response) *Recorder {
	return &Recorder{Handler: handler}
}

// Run records argv and plays the scripted response.
func (r *Recorder) Run(ctx context.Context, argv []string, onLine LineFunc) (int, error) {
	if len(argv) == 0 {
		return -1, ErrEmptyCommand
	}

	if onLine == nil {
		onLine = func(string) {}
	}

	argvCopy := append([]string(nil), argv...)

	r.mu.Lock()
	r.Commands = append(r.Commands, argvCopy)
	handler := r.Handler
	r.mu.Unlock()

	if r.Started != nil {
		r.Started <- argvCopy
	}

	onLine("Running: " + CommandLine(argv))

	var resp Response
	if handler != nil {
		resp = handler(argvCopy)
	}

	if resp.Block != nil {
		select {
		case <-resp.Block:
		case <-ctx.Done():
			return -1, errors.Wrapf(ctx.Err(), "command interrupted: %s", CommandLine(argv))
		}
	}

	if resp.Effect != nil {
		err := resp.Effect(argvCopy)
		if err != nil {
			return -1, errors.Wrap(err, "unable to apply command effect")
		}
	}

	for _, line := range resp.Lines {
		onLine(line)
	}

	if resp.Err != nil {
		return -1, resp.Err
	}

	if resp.ExitCode != 0 {
		return resp.ExitCode, &StageExecutionError{ExitCode: resp.ExitCode, Argv: argvCopy}
	}

	return 0, nil
}

// Calls returns a copy of the recorded commands.
func (r *Recorder) Calls() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	calls := make([][]string, len(r.Commands))
	copy(calls, r.Commands)

	return calls
}

// Programs returns argv[0] of every recorded command.
func (r *Recorder) Programs() []string {
	calls := r.Calls()
	programs := make([]string, len(calls))

	for i, argv := range calls {
		programs[i] = argv[0]
	}

	return programs
}

var _ Runner = (*Recorder)(nil)
