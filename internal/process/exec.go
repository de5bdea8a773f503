package process

import (
	"bufio"
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

var ErrEmptyCommand = errors.New("argv must not be empty")

const (
	defaultWaitDelay = 5 * time.Second
	maxLineSize      = 1024 * 1024
)

// ExecRunner runs commands on the local machine.
type ExecRunner struct {
	logger    *slog.Logger
	waitDelay time.Duration
	env       []string
}

type ExecOption func(r *ExecRunner)

// WithWaitDelay bounds how long a cancelled command may keep running before it is killed.
func WithWaitDelay(d time.Duration) ExecOption {
	return func(r *ExecRunner) {
		r.waitDelay = d
	}
}

// WithEnv sets the environment of the commands, in os.Environ form.
func WithEnv(env []string) ExecOption {
	return func(r *ExecRunner) {
		r.env = env
	}
}

// NewExecRunner creates a runner executing commands with os/exec.
func NewExecRunner(logger *slog.Logger, opts ...ExecOption) *ExecRunner {
	if logger == nil {
		logger = slog.Default()
	}

	r := &ExecRunner{
		logger:    logger,
		waitDelay: defaultWaitDelay,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run executes argv. Standard output and standard error share a single pipe so lines reach onLine
// in the order the command wrote them. The pipe is drained while the command runs.
func (r *ExecRunner) Run(ctx context.Context, argv []string, onLine LineFunc) (int, error) {
	if len(argv) == 0 {
		return -1, ErrEmptyCommand
	}

	if onLine == nil {
		onLine = func(string) {}
	}

	cmdLine := CommandLine(argv)
	r.logger.Info("running command", slog.String("command", cmdLine))
	onLine("Running: " + cmdLine)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.WaitDelay = r.waitDelay

	if r.env != nil {
		cmd.Env = r.env
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return -1, errors.Wrap(err, "unable to create output pipe")
	}
	defer pr.Close()

	cmd.Stdout = pw
	cmd.Stderr = pw

	err = cmd.Start()
	// the child owns its copy of the write end, ours must be closed so reads end with the child
	pw.Close()

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return -1, errors.Wrapf(ctxErr, "command interrupted: %s", cmdLine)
		}

		r.logger.Warn("command could not start", slog.String("command", cmdLine), slog.String("error", err.Error()))

		return NotFoundExitCode, &StageExecutionError{ExitCode: NotFoundExitCode, Argv: argv, Err: err}
	}

	var waitErr error

	errGrp := errgroup.Group{}
	errGrp.Go(func() error {
		return drain(pr, onLine)
	})
	errGrp.Go(func() error {
		waitErr = cmd.Wait()

		return nil
	})

	drainErr := errGrp.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return -1, errors.Wrapf(ctxErr, "command interrupted: %s", cmdLine)
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			code := exitErr.ExitCode()
			r.logger.Warn("command failed", slog.String("command", cmdLine), slog.Int("exit_code", code))

			return code, &StageExecutionError{ExitCode: code, Argv: argv}
		}

		return -1, errors.Wrapf(waitErr, "unable to wait for %s", argv[0])
	}

	if drainErr != nil {
		return 0, errors.Wrapf(drainErr, "unable to read output of %s", argv[0])
	}

	return 0, nil
}

func drain(pr *os.File, onLine LineFunc) error {
	scanner := bufio.NewScanner(pr)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	scanner.Split(scanLines)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		onLine(line)
	}

	return scanner.Err()
}

// scanLines splits on '\n' and on bare '\r', which GDAL uses to redraw its progress meter.
func scanLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		advance := i + 1
		if data[i] == '\r' && i+1 < len(data) && data[i+1] == '\n' {
			advance++
		}

		return advance, data[:i], nil
	}

	if atEOF {
		return len(data), data, nil
	}

	return 0, nil, nil
}

var _ Runner = (*ExecRunner)(nil)
