package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/trace"

	"github.com/sgpage/hillshade-converter/internal/config"
	"github.com/sgpage/hillshade-converter/internal/converter"
	"github.com/sgpage/hillshade-converter/internal/gdal"
	"github.com/sgpage/hillshade-converter/internal/logging"
	"github.com/sgpage/hillshade-converter/internal/process"
	"github.com/sgpage/hillshade-converter/internal/publish"
	"github.com/sgpage/hillshade-converter/internal/telemetry"
)

const serviceName = "hillshade"

type app struct {
	cfg    *config.Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer

	runner  process.Runner
	locator *gdal.Locator
	tracer  trace.Tracer
	closers []func(context.Context) error
}

func newApp(configPath string, stdout, stderr io.Writer) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(stderr, cfg.Log)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create logger")
	}

	var execOpts []process.ExecOption
	if env := cfg.GDAL.Environ(os.Environ()); env != nil {
		execOpts = append(execOpts, process.WithEnv(env))
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		stdout: stdout,
		stderr: stderr,
		runner: process.NewExecRunner(logger, execOpts...),
	}

	locatorOpts := []gdal.LocatorOption{
		gdal.WithLogger(logger),
		gdal.WithProbeTimeout(cfg.GDAL.ProbeTimeout),
	}
	if len(cfg.GDAL.SearchDirs) > 0 {
		locatorOpts = append(locatorOpts, gdal.WithSearchDirs(cfg.GDAL.SearchDirs...))
	}

	a.locator = gdal.NewLocator(locatorOpts...)

	if cfg.Trace.Enabled {
		tracer, shutdown, err := telemetry.InitTracer(serviceName, stderr, logger)
		if err != nil {
			return nil, err
		}

		a.tracer = tracer
		a.closers = append(a.closers, shutdown)
	}

	return a, nil
}

func (a *app) close() {
	for _, closer := range a.closers {
		err := closer(context.Background())
		if err != nil {
			a.logger.Warn("shutdown failed", slog.String("error", err.Error()))
		}
	}
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.stdout, format, args...)
}

// toolset resolves the GDAL tools, reporting the missing ones without failing.
func (a *app) toolset(ctx context.Context) gdal.Toolset {
	tools, errs := a.locator.LocateAll(ctx, gdal.Tools...)
	if len(errs) > 0 {
		a.printf("⚠ GDAL not found in common locations\n")

		for _, err := range errs {
			a.printf("  %v\n", err)
		}
	}

	return tools
}

func (a *app) options() ([]converter.Option, error) {
	opts := []converter.Option{
		converter.WithLogger(a.logger),
		converter.WithTempDir(a.cfg.TempDir),
		converter.WithPreviewSize(a.cfg.Preview.MaxSize),
	}

	if a.tracer != nil {
		opts = append(opts, converter.WithTracer(a.tracer))
	}

	if a.cfg.Graph.Path != "" {
		opts = append(opts, converter.WithGraph(a.cfg.Graph.Path))
	}

	if a.cfg.Publish.Enabled() {
		pub, err := publish.New(a.cfg.Publish, a.logger)
		if err != nil {
			return nil, err
		}

		opts = append(opts, converter.WithPublisher(pub))
	}

	return opts, nil
}

// follow prints the events of r until it ends. Cancelling ctx cancels the run.
func (a *app) follow(ctx context.Context, r *converter.Run) converter.Result {
	stop := context.AfterFunc(ctx, r.Cancel)
	defer stop()

	for ev := range r.Events() {
		switch ev.Kind {
		case converter.LogEvent:
			a.printf("%s\n", ev.Line)
		case converter.ProgressEvent:
			a.printf("[%3.0f%%]\n", ev.Percent)
		case converter.StateEvent:
			a.logger.Debug("run state", slog.String("run_id", r.ID), slog.String("state", ev.State.String()), slog.String("stage", ev.Stage), slog.Int("index", ev.Index))
		}
	}

	return r.Wait()
}

// illuminationFlags registers the hillshade parameters on fs, defaulting to the values in p.
func illuminationFlags(fs *flag.FlagSet, p *converter.Parameters) {
	fs.StringVar(&p.InputPath, "in", p.InputPath, "input DEM (GeoTIFF or any raster GDAL reads)")
	fs.Float64Var(&p.ZFactor, "z", p.ZFactor, "vertical exaggeration")
	fs.Float64Var(&p.Azimuth, "az", p.Azimuth, "light azimuth in degrees, clockwise from north")
	fs.Float64Var(&p.Altitude, "alt", p.Altitude, "light altitude in degrees above the horizon")
}

func exitCode(res converter.Result) int {
	if res.State == converter.Succeeded {
		return 0
	}

	return 1
}
