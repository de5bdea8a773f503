package gdal

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// DefaultProbeTimeout bounds a single "--version" probe.
const DefaultProbeTimeout = 5 * time.Second

const (
	banner     = "GDAL"
	probeLimit = 4
)

// ToolNotFoundError reports that no candidate location of a tool answered the version probe.
type ToolNotFoundError struct {
	Tool  string
	Tried []string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("%s not found (tried %s)", e.Tool, strings.Join(e.Tried, ", "))
}

// ProbeResult is the outcome of running a candidate with "--version".
type ProbeResult struct {
	ExitCode int
	Output   string
}

// Accepted reports whether the probed candidate is a usable GDAL executable: it either exited
// cleanly or printed the GDAL banner while complaining about the flag.
func (r ProbeResult) Accepted() bool {
	return r.ExitCode == 0 || strings.Contains(r.Output, banner)
}

// Version returns the first line of the probe output.
func (r ProbeResult) Version() string {
	line, _, _ := strings.Cut(strings.TrimSpace(r.Output), "\n")

	return strings.TrimSpace(line)
}

// Prober runs a candidate executable to check it is a GDAL tool.
type Prober interface {
	Probe(ctx context.Context, executable string) (ProbeResult, error)
}

// ExecProber probes candidates by executing them.
type ExecProber struct{}

// Probe runs "executable --version". An error means the candidate could not be run at all.
func (ExecProber) Probe(ctx context.Context, executable string) (ProbeResult, error) {
	argv := Version(executable)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	out, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return ProbeResult{ExitCode: exitErr.ExitCode(), Output: string(out)}, nil
		}

		return ProbeResult{}, errors.Wrapf(err, "unable to run %s", executable)
	}

	return ProbeResult{Output: string(bytes.TrimSpace(out))}, nil
}

// Resolved is a located tool.
type Resolved struct {
	Tool    string
	Path    string
	Version string
}

// Locator finds GDAL executables in the usual install locations.
type Locator struct {
	dirs     []string
	timeout  time.Duration
	logger   *slog.Logger
	prober   Prober
	lookPath func(file string) (string, error)
}

type LocatorOption func(l *Locator)

// WithSearchDirs replaces the platform install locations.
func WithSearchDirs(dirs ...string) LocatorOption {
	return func(l *Locator) {
		l.dirs = dirs
	}
}

// WithProbeTimeout sets how long each candidate may take to answer.
func WithProbeTimeout(d time.Duration) LocatorOption {
	return func(l *Locator) {
		if d > 0 {
			l.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) LocatorOption {
	return func(l *Locator) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func WithProber(p Prober) LocatorOption {
	return func(l *Locator) {
		if p != nil {
			l.prober = p
		}
	}
}

// WithLookPath replaces the operating system search used for the bare tool name.
func WithLookPath(fn func(file string) (string, error)) LocatorOption {
	return func(l *Locator) {
		if fn != nil {
			l.lookPath = fn
		}
	}
}

// NewLocator creates a Locator searching the platform defaults.
func NewLocator(opts ...LocatorOption) *Locator {
	exe, _ := os.Executable()

	l := &Locator{
		dirs:     DefaultSearchDirs(runtime.GOOS, exe),
		timeout:  DefaultProbeTimeout,
		logger:   slog.Default(),
		prober:   ExecProber{},
		lookPath: exec.LookPath,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// DefaultSearchDirs lists where GDAL is usually installed on goos, in search order. A "bin"
// directory next to executable comes first, for bundled distributions.
func DefaultSearchDirs(goos, executable string) []string {
	var dirs []string

	if executable != "" {
		dirs = append(dirs, filepath.Join(filepath.Dir(executable), "bin"))
	}

	switch goos {
	case "windows":
		dirs = append(dirs, `C:\OSGeo4W\bin`, `C:\OSGeo4W64\bin`, `C:\Program Files\GDAL`)
	default:
		dirs = append(dirs,
			"/opt/homebrew/bin",
			"/usr/local/bin",
			"/opt/homebrew/opt/gdal/bin",
			"/usr/local/opt/gdal/bin",
			"/usr/bin",
		)
	}

	return dirs
}

// Candidates returns the locations Locate will probe for tool, in order: existing files in the
// search directories, then the bare name if the operating system can resolve it.
func (l *Locator) Candidates(tool string) []string {
	name := executableName(tool)

	var candidates []string

	for _, dir := range l.dirs {
		path := filepath.Join(dir, name)

		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}

		candidates = append(candidates, path)
	}

	if path, err := l.lookPath(tool); err == nil {
		candidates = append(candidates, path)
	}

	return candidates
}

// Locate returns the first candidate for tool that answers the version probe. Candidates are
// probed concurrently, but list order decides the winner.
func (l *Locator) Locate(ctx context.Context, tool string) (Resolved, error) {
	candidates := l.Candidates(tool)
	results := make([]*ProbeResult, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(probeLimit)

	for i, candidate := range candidates {
		g.Go(func() error {
			probeCtx, cancel := context.WithTimeout(gctx, l.timeout)
			defer cancel()

			res, err := l.prober.Probe(probeCtx, candidate)
			if err != nil {
				l.logger.Debug("gdal candidate rejected",
					slog.String("tool", tool),
					slog.String("path", candidate),
					slog.String("error", err.Error()),
				)

				return nil
			}

			results[i] = &res

			return nil
		})
	}

	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return Resolved{}, errors.Wrapf(err, "locating %s interrupted", tool)
	}

	for i, res := range results {
		if res == nil || !res.Accepted() {
			continue
		}

		resolved := Resolved{Tool: tool, Path: candidates[i], Version: res.Version()}

		l.logger.Info("gdal tool located",
			slog.String("tool", tool),
			slog.String("path", resolved.Path),
			slog.String("version", resolved.Version),
		)

		return resolved, nil
	}

	tried := append(append([]string(nil), l.dirs...), tool)

	return Resolved{}, &ToolNotFoundError{Tool: tool, Tried: tried}
}

// LocateAll resolves every tool. Tools that cannot be found keep their bare name in the Toolset
// and are reported in the returned errors, so a run can still attempt them.
func (l *Locator) LocateAll(ctx context.Context, tools ...string) (Toolset, []error) {
	ts := make(Toolset, len(tools))

	var errs []error

	for _, tool := range tools {
		resolved, err := l.Locate(ctx, tool)
		if err != nil {
			l.logger.Warn("gdal tool not found, falling back to bare name",
				slog.String("tool", tool),
				slog.String("error", err.Error()),
			)

			ts[tool] = tool
			errs = append(errs, err)

			continue
		}

		ts[tool] = resolved.Path
	}

	return ts, errs
}

func executableName(tool string) string {
	if runtime.GOOS == "windows" && !strings.HasSuffix(tool, ".exe") {
		return tool + ".exe"
	}

	return tool
}
