package converter_test

import (
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sgpage/hillshade-converter/internal/converter"
	"github.com/sgpage/hillshade-converter/internal/gdal"
	"github.com/sgpage/hillshade-converter/internal/process"
	"github.com/sgpage/hillshade-converter/internal/testutil"
)

// Command kinds recognised by commandKind.
const (
	kindInfo      = "info"
	kindRender    = "render"
	kindNormalize = "normalize"
	kindReproject = "reproject"
	kindTile      = "tile"
	kindPNG       = "png"
)

// commandKind tells which GDAL operation argv performs.
func commandKind(argv []string) string {
	switch filepath.Base(argv[0]) {
	case gdal.Info:
		return kindInfo
	case gdal.DEM:
		return kindRender
	case gdal.Warp:
		return kindReproject
	case gdal.Translate:
		switch {
		case slices.Contains(argv, "MBTiles"):
			return kindTile
		case slices.Contains(argv, "PNG"):
			return kindPNG
		default:
			return kindNormalize
		}
	}

	return ""
}

// inputArg returns the file argv reads. gdaldem takes its files right after the subcommand,
// the other tools end with input then output.
func inputArg(argv []string) string {
	if commandKind(argv) == kindRender {
		return argv[2]
	}

	return argv[len(argv)-2]
}

// outputArg returns the file argv writes.
func outputArg(argv []string) string {
	if commandKind(argv) == kindRender {
		return argv[3]
	}

	return argv[len(argv)-1]
}

func kinds(calls [][]string) []string {
	out := make([]string, len(calls))
	for i, argv := range calls {
		out[i] = commandKind(argv)
	}

	return out
}

// fakeGDAL scripts a Recorder so that every command writes the file the real tool would.
type fakeGDAL struct {
	// zooms are the levels written to the archive by the tile command.
	zooms []int
	// lines are printed by the commands of each kind.
	lines map[string][]string
	// failures maps a command kind to the exit code it fails with.
	failures map[string]int
	// block holds the commands of a kind until closed.
	block map[string]chan struct{}
}

func (f *fakeGDAL) handle(argv []string) process.Response {
	kind := commandKind(argv)

	resp := process.Response{
		Lines:    f.lines[kind],
		ExitCode: f.failures[kind],
		Block:    f.block[kind],
	}

	if resp.ExitCode != 0 || kind == kindInfo {
		return resp
	}

	out := outputArg(argv)

	resp.Effect = func([]string) error {
		switch kind {
		case kindTile:
			return testutil.CreateMBTiles(out, f.zooms...)
		case kindPNG:
			return testutil.CreatePNG(out, 1500, 1000)
		default:
			return os.WriteFile(out, []byte("raster"), 0o644)
		}
	}

	return resp
}

func newRecorder(f *fakeGDAL) *process.Recorder {
	return process.NewRecorder(f.handle)
}

// recordingSink keeps everything a run reports.
type recordingSink struct {
	mu       sync.Mutex
	lines    []string
	progress []float64
	states   []converter.State
	stages   []string
	indexes  []int
}

func (s *recordingSink) Log(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = append(s.lines, line)
}

func (s *recordingSink) Progress(percent float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.progress = append(s.progress, percent)
}

func (s *recordingSink) State(state converter.State, stage string, index int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states = append(s.states, state)
	if stage != "" {
		s.stages = append(s.stages, stage)
		s.indexes = append(s.indexes, index)
	}
}

func (s *recordingSink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.lines)
}

type fixture struct {
	tempDir string
	params  converter.Parameters
}

// newFixture creates an input DEM and a parameter set writing next to it.
func newFixture(t *testing.T) fixture {
	t.Helper()

	root := t.TempDir()
	input := filepath.Join(root, "dem.tif")
	require.NoError(t, os.WriteFile(input, []byte("dem"), 0o644))

	tempDir := filepath.Join(root, "tmp")
	require.NoError(t, os.MkdirAll(tempDir, 0o755))

	params := converter.Defaults(input)
	params.MinZoom = 10
	params.MaxZoom = 12

	return fixture{tempDir: tempDir, params: params}
}

// requireNoWorkspace fails when a workspace is left in dir.
func requireNoWorkspace(t *testing.T, dir string) {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries, "workspace left behind")
}

func newConverter(t *testing.T, runner process.Runner, tempDir string, opts ...converter.Option) *converter.Converter {
	t.Helper()

	conv, err := converter.NewConverter(runner, gdal.Toolset{}, append([]converter.Option{converter.WithTempDir(tempDir)}, opts...)...)
	require.NoError(t, err)

	return conv
}
