package converter

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/sgpage/hillshade-converter/internal/gdal"
	"github.com/sgpage/hillshade-converter/internal/preview"
	"github.com/sgpage/hillshade-converter/internal/process"
)

type settings struct {
	runner    process.Runner
	tools     gdal.Toolset
	logger    *slog.Logger
	tempDir   string
	tracer    trace.Tracer
	graphPath string
	publisher Publisher
	maxSize   int
}

func newSettings(runner process.Runner, tools gdal.Toolset, opts []Option) (settings, error) {
	if runner == nil {
		return settings{}, ErrRunnerMustBeSet
	}

	if tools == nil {
		tools = gdal.Toolset{}
	}

	s := settings{
		runner:  runner,
		tools:   tools,
		logger:  slog.Default(),
		maxSize: preview.DefaultMaxSize,
	}

	for _, opt := range opts {
		opt(&s)
	}

	return s, nil
}

type Option func(s *settings)

func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTempDir sets where workspaces are created. The system temporary directory is used by default.
func WithTempDir(dir string) Option {
	return func(s *settings) {
		s.tempDir = dir
	}
}

// WithTracer emits a span per run and per stage.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *settings) {
		s.tracer = tracer
	}
}

// WithGraph writes the stage graph of every conversion, coloured by stage duration, to path in
// the DOT language.
func WithGraph(path string) Option {
	return func(s *settings) {
		s.graphPath = path
	}
}

// WithPublisher uploads the archive once it has been verified.
func WithPublisher(p Publisher) Option {
	return func(s *settings) {
		s.publisher = p
	}
}

// WithPreviewSize caps the longest side of preview images.
func WithPreviewSize(maxSize int) Option {
	return func(s *settings) {
		if maxSize > 0 {
			s.maxSize = maxSize
		}
	}
}
