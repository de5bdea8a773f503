package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/sgpage/hillshade-converter/internal/converter"
	"github.com/sgpage/hillshade-converter/internal/gdal"
	"github.com/sgpage/hillshade-converter/internal/preview"
)

func (a *app) locateCmd(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("locate", flag.ContinueOnError)
	fs.SetOutput(a.stderr)

	if err := fs.Parse(args); err != nil {
		return 2
	}

	missing := 0

	for _, tool := range gdal.Tools {
		resolved, err := a.locator.Locate(ctx, tool)
		if err != nil {
			missing++

			a.printf("⚠ %v\n", err)

			continue
		}

		a.printf("✓ %s: %s (%s)\n", tool, resolved.Path, resolved.Version)
	}

	if missing > 0 {
		return 1
	}

	return 0
}

func (a *app) convertCmd(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	fs.SetOutput(a.stderr)

	p := a.cfg.Parameters("", "")

	illuminationFlags(fs, &p)
	fs.StringVar(&p.OutputPath, "out", p.OutputPath, "output MBTiles archive (default: <input>_hillshade.mbtiles next to the input)")
	fs.IntVar(&p.MinZoom, "minzoom", p.MinZoom, "lowest zoom level")
	fs.IntVar(&p.MaxZoom, "maxzoom", p.MaxZoom, "highest zoom level")
	fs.StringVar(&a.cfg.Graph.Path, "graph", a.cfg.Graph.Path, "write the stage graph of the run to this DOT file")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if p.InputPath == "" {
		fmt.Fprintln(a.stderr, "convert: -in is required")
		fs.Usage()

		return 2
	}

	if p.OutputPath == "" {
		p.OutputPath = a.cfg.Parameters(p.InputPath, "").OutputPath
	}

	opts, err := a.options()
	if err != nil {
		a.printf("✗ ERROR: %v\n", err)

		return 1
	}

	conv, err := converter.NewConverter(a.runner, a.toolset(ctx), opts...)
	if err != nil {
		a.printf("✗ ERROR: %v\n", err)

		return 1
	}

	ctrl := converter.NewController(conv, nil, a.logger)

	run, err := ctrl.StartConversion(ctx, p)
	if err != nil {
		a.printf("✗ ERROR: %v\n", err)

		return 1
	}

	return exitCode(a.follow(ctx, run))
}

func (a *app) previewCmd(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("preview", flag.ContinueOnError)
	fs.SetOutput(a.stderr)

	p := a.cfg.Parameters("", "")

	illuminationFlags(fs, &p)
	pngPath := fs.String("png", "", "write the preview image to this PNG file")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if p.InputPath == "" {
		fmt.Fprintln(a.stderr, "preview: -in is required")
		fs.Usage()

		return 2
	}

	opts, err := a.options()
	if err != nil {
		a.printf("✗ ERROR: %v\n", err)

		return 1
	}

	pv, err := converter.NewPreviewer(a.runner, a.toolset(ctx), opts...)
	if err != nil {
		a.printf("✗ ERROR: %v\n", err)

		return 1
	}
	defer pv.Close()

	ctrl := converter.NewController(nil, pv, a.logger)

	run, err := ctrl.StartPreview(ctx, p)
	if err != nil {
		a.printf("✗ ERROR: %v\n", err)

		return 1
	}

	res := a.follow(ctx, run)
	if res.State != converter.Succeeded {
		return exitCode(res)
	}

	img := res.Preview
	b := img.Image.Bounds()
	a.printf("Preview: %dx%d (hillshade %dx%d)\n", b.Dx(), b.Dy(), img.SourceWidth, img.SourceHeight)

	if *pngPath != "" {
		err = preview.Save(*pngPath, img.Image)
		if err != nil {
			a.printf("✗ ERROR: %v\n", err)

			return 1
		}

		a.printf("Preview saved to: %s\n", *pngPath)
	}

	return 0
}
