package process_test

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgpage/hillshade-converter/internal/process"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func collect(lines *[]string) process.LineFunc {
	return func(line string) {
		*lines = append(*lines, line)
	}
}

func TestExecRunnerStreamsLinesInOrder(t *testing.T) {
	t.Parallel()
	skipWithoutShell(t)

	var lines []string

	argv := []string{"sh", "-c", "echo L1; echo L2 1>&2; echo; echo '  L3  '"}
	code, err := process.NewExecRunner(nil).Run(context.Background(), argv, collect(&lines))
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, []string{"Running: " + process.CommandLine(argv), "L1", "L2", "L3"}, lines)
}

func TestExecRunnerSplitsCarriageReturns(t *testing.T) {
	t.Parallel()
	skipWithoutShell(t)

	var lines []string

	_, err := process.NewExecRunner(nil).Run(context.Background(),
		[]string{"sh", "-c", `printf '0...10\r20...\r\ndone\n'`}, collect(&lines))
	require.NoError(t, err)
	assert.Equal(t, []string{"0...10", "20...", "done"}, lines[1:])
}

func TestExecRunnerNonZeroExit(t *testing.T) {
	t.Parallel()
	skipWithoutShell(t)

	var lines []string

	argv := []string{"sh", "-c", "echo boom; exit 3"}
	code, err := process.NewExecRunner(nil).Run(context.Background(), argv, collect(&lines))
	require.Error(t, err)
	assert.Equal(t, 3, code)

	var stageErr *process.StageExecutionError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, 3, stageErr.ExitCode)
	assert.Equal(t, argv, stageErr.Argv)
	assert.Contains(t, lines, "boom")
}

func TestExecRunnerMissingExecutable(t *testing.T) {
	t.Parallel()

	argv := []string{"/nonexistent/bin/gdaldem", "hillshade"}
	code, err := process.NewExecRunner(nil).Run(context.Background(), argv, nil)
	require.Error(t, err)
	assert.Equal(t, process.NotFoundExitCode, code)

	var stageErr *process.StageExecutionError
	require.True(t, errors.As(err, &stageErr))
	assert.Error(t, stageErr.Err)
}

func TestExecRunnerCancel(t *testing.T) {
	t.Parallel()
	skipWithoutShell(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := process.NewExecRunner(nil, process.WithWaitDelay(time.Second)).Run(ctx, []string{"sleep", "10"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestExecRunnerEmptyArgv(t *testing.T) {
	t.Parallel()

	_, err := process.NewExecRunner(nil).Run(context.Background(), nil, nil)
	assert.ErrorIs(t, err, process.ErrEmptyCommand)
}

func TestExecRunnerEnv(t *testing.T) {
	t.Parallel()
	skipWithoutShell(t)

	var lines []string

	runner := process.NewExecRunner(nil, process.WithEnv([]string{"PATH=/usr/bin:/bin", "GDAL_DATA=/opt/gdal/share"}))
	code, err := runner.Run(context.Background(), []string{"sh", "-c", `echo "data=$GDAL_DATA"`}, collect(&lines))
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "data=/opt/gdal/share", lines[len(lines)-1])
}
