package gdal

import (
	"strconv"
)

// WebMercator is the projection of standard web tile pyramids.
const WebMercator = "EPSG:3857"

// HillshadeOptions are the illumination parameters of a shaded relief.
type HillshadeOptions struct {
	ZFactor  float64
	Azimuth  float64
	Altitude float64
}

// TileOptions configure the MBTiles pyramid.
type TileOptions struct {
	MinZoom int
	MaxZoom int
}

// Hillshade renders a shaded relief of input into output, computing edges so the border pixels
// are not left empty.
func (ts Toolset) Hillshade(input, output string, opts HillshadeOptions) []string {
	return []string{
		ts.Command(DEM), "hillshade",
		input,
		output,
		"-z", formatFloat(opts.ZFactor),
		"-az", formatFloat(opts.Azimuth),
		"-alt", formatFloat(opts.Altitude),
		"-compute_edges",
	}
}

// Greyscale converts input to a single byte per pixel, black-is-zero raster, removing any colour
// interpretation left by the hillshade.
func (ts Toolset) Greyscale(input, output string) []string {
	return []string{
		ts.Command(Translate),
		"-ot", "Byte",
		"-co", "PHOTOMETRIC=MINISBLACK",
		input,
		output,
	}
}

// Reproject warps input to Web Mercator with bilinear resampling into a tiled, deflate
// compressed GeoTIFF.
func (ts Toolset) Reproject(input, output string) []string {
	return []string{
		ts.Command(Warp),
		"-t_srs", WebMercator,
		"-r", "bilinear",
		"-co", "TILED=YES",
		"-co", "COMPRESS=DEFLATE",
		input,
		output,
	}
}

// MBTiles builds a PNG tile archive. The UPPER zoom level strategy maps the native resolution to
// the zoom level above it, so every requested level gets tiles even when it means upsampling.
func (ts Toolset) MBTiles(input, output string, opts TileOptions) []string {
	return []string{
		ts.Command(Translate),
		"-of", "MBTiles",
		"-co", "TILE_FORMAT=PNG",
		"-co", "RESAMPLING=AVERAGE",
		"-co", "MINZOOM=" + strconv.Itoa(opts.MinZoom),
		"-co", "MAXZOOM=" + strconv.Itoa(opts.MaxZoom),
		"-co", "ZOOM_LEVEL_STRATEGY=UPPER",
		input,
		output,
	}
}

// PNG converts input to a PNG image, scaling pixel values to the full byte range.
func (ts Toolset) PNG(input, output string) []string {
	return []string{
		ts.Command(Translate),
		"-of", "PNG",
		"-scale",
		input,
		output,
	}
}

// Inspect prints the metadata of input.
func (ts Toolset) Inspect(input string) []string {
	return []string{ts.Command(Info), input}
}

// Version asks a GDAL executable for its version banner.
func Version(executable string) []string {
	return []string{executable, "--version"}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
