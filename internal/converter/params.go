package converter

import (
	"path/filepath"
	"strings"

	"github.com/sgpage/hillshade-converter/internal/gdal"
)

// MaxZoomLevel is the deepest zoom level accepted.
const MaxZoomLevel = 24

// Parameters describe one conversion. They are copied into the run when it starts and never
// change afterwards.
type Parameters struct {
	InputPath  string
	OutputPath string
	// ZFactor is the vertical exaggeration applied to elevations.
	ZFactor float64
	// Azimuth is the direction of the light source in degrees, clockwise from north.
	Azimuth float64
	// Altitude is the elevation of the light source in degrees above the horizon.
	Altitude float64
	MinZoom  int
	MaxZoom  int
}

// Defaults returns the usual illumination and zoom range for input. The output path is derived
// from the input with DefaultOutputPath.
func Defaults(input string) Parameters {
	return Parameters{
		InputPath:  input,
		OutputPath: DefaultOutputPath(input),
		ZFactor:    1.0,
		Azimuth:    315,
		Altitude:   45,
		MinZoom:    10,
		MaxZoom:    17,
	}
}

// DefaultOutputPath names the archive after the input, next to it: dem.tif gives
// dem_hillshade.mbtiles.
func DefaultOutputPath(input string) string {
	if input == "" {
		return ""
	}

	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	return filepath.Join(filepath.Dir(input), stem+"_hillshade.mbtiles")
}

// Validate checks every parameter of a conversion.
func (p Parameters) Validate() error {
	err := p.ValidateIllumination()
	if err != nil {
		return err
	}

	switch {
	case p.OutputPath == "":
		return &ConfigurationError{Field: "output", Message: "an output file is required"}
	case p.MinZoom < 0 || p.MinZoom > MaxZoomLevel:
		return &ConfigurationError{Field: "min_zoom", Message: "minimum zoom must be between 0 and 24"}
	case p.MaxZoom < 0 || p.MaxZoom > MaxZoomLevel:
		return &ConfigurationError{Field: "max_zoom", Message: "maximum zoom must be between 0 and 24"}
	case p.MinZoom > p.MaxZoom:
		return &ConfigurationError{Field: "min_zoom", Message: "minimum zoom must not exceed maximum zoom"}
	}

	if sameFile(p.InputPath, p.OutputPath) {
		return &ConfigurationError{Field: "output", Message: "output must not overwrite the input"}
	}

	return nil
}

// ValidateIllumination checks the parameters a preview depends on.
func (p Parameters) ValidateIllumination() error {
	switch {
	case p.InputPath == "":
		return &ConfigurationError{Field: "input", Message: "an input file is required"}
	case !(p.ZFactor > 0):
		return &ConfigurationError{Field: "z_factor", Message: "z-factor must be positive"}
	case p.Azimuth < 0 || p.Azimuth >= 360:
		return &ConfigurationError{Field: "azimuth", Message: "azimuth must be in [0, 360)"}
	case p.Altitude < 0 || p.Altitude > 90:
		return &ConfigurationError{Field: "altitude", Message: "altitude must be in [0, 90]"}
	}

	return nil
}

func (p Parameters) hillshade() gdal.HillshadeOptions {
	return gdal.HillshadeOptions{ZFactor: p.ZFactor, Azimuth: p.Azimuth, Altitude: p.Altitude}
}

func (p Parameters) tiles() gdal.TileOptions {
	return gdal.TileOptions{MinZoom: p.MinZoom, MaxZoom: p.MaxZoom}
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)

	return errA == nil && errB == nil && absA == absB
}
