// Command hillshade converts digital elevation models into hillshade MBTiles archives with GDAL.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

func main() {
	// a missing .env file is fine, the environment may be set another way
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)

	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("hillshade", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { printUsage(stderr) }

	configPath := global.String("config", "", "YAML configuration file (default: ./hillshade.yaml when present)")

	err := global.Parse(args)
	if err != nil {
		return 2
	}

	if global.NArg() < 1 {
		printUsage(stderr)

		return 2
	}

	command, cmdArgs := global.Arg(0), global.Args()[1:]

	if command == "help" {
		printUsage(stdout)

		return 0
	}

	a, err := newApp(*configPath, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "✗ ERROR: %v\n", err)

		return 1
	}
	defer a.close()

	switch command {
	case "locate":
		return a.locateCmd(ctx, cmdArgs)
	case "convert":
		return a.convertCmd(ctx, cmdArgs)
	case "preview":
		return a.previewCmd(ctx, cmdArgs)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", command)
		printUsage(stderr)

		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `hillshade - convert a DEM into a hillshade MBTiles archive

Usage: hillshade [-config file] <command> [options]

Commands:
  locate     Report where the GDAL tools were found
  convert    Render, reproject and tile a DEM into an MBTiles archive
  preview    Render a hillshade preview of a DEM
  help       Show this help message

Run "hillshade <command> -h" for the options of a command.
Settings are read from the config file, then from HILLSHADE_ environment variables
(HILLSHADE_HILLSHADE__MAX_ZOOM=14 sets hillshade.max_zoom). A .env file is loaded when present.`)
}
