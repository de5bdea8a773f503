// Package config loads the settings of the command line tools from defaults, an optional YAML
// file and HILLSHADE_ environment variables, in increasing order of precedence.
package config

import (
	"io/fs"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"

	"github.com/sgpage/hillshade-converter/internal/converter"
	"github.com/sgpage/hillshade-converter/internal/gdal"
	"github.com/sgpage/hillshade-converter/internal/logging"
	"github.com/sgpage/hillshade-converter/internal/preview"
	"github.com/sgpage/hillshade-converter/internal/publish"
)

const (
	// EnvPrefix starts every environment variable read. A double underscore separates nested
	// keys: HILLSHADE_HILLSHADE__MAX_ZOOM sets hillshade.max_zoom.
	EnvPrefix = "HILLSHADE_"
	// DefaultFile is read when no file is given and it exists.
	DefaultFile = "hillshade.yaml"
)

type Config struct {
	Hillshade HillshadeConfig `koanf:"hillshade"`
	GDAL      GDALConfig      `koanf:"gdal"`
	Preview   PreviewConfig   `koanf:"preview"`
	Log       logging.Config  `koanf:"log"`
	Trace     TraceConfig     `koanf:"trace"`
	Publish   publish.Config  `koanf:"publish"`
	Graph     GraphConfig     `koanf:"graph"`
	// TempDir is where workspaces are created. Empty means the system temporary directory.
	TempDir string `koanf:"temp_dir"`
}

// HillshadeConfig holds the default conversion parameters.
type HillshadeConfig struct {
	ZFactor  float64 `koanf:"z_factor"`
	Azimuth  float64 `koanf:"azimuth"`
	Altitude float64 `koanf:"altitude"`
	MinZoom  int     `koanf:"min_zoom"`
	MaxZoom  int     `koanf:"max_zoom"`
}

type GDALConfig struct {
	// SearchDirs replaces the platform install locations when set.
	SearchDirs   []string      `koanf:"search_dirs"`
	ProbeTimeout time.Duration `koanf:"probe_timeout"`
	// Env is added to the environment of every GDAL command, e.g. GDAL_DATA or PROJ_LIB for a
	// bundled installation. Names are upper-cased.
	Env map[string]string `koanf:"env"`
}

// Environ returns base followed by the configured variables, or nil when none is configured.
func (g GDALConfig) Environ(base []string) []string {
	if len(g.Env) == 0 {
		return nil
	}

	names := make([]string, 0, len(g.Env))
	for name := range g.Env {
		names = append(names, name)
	}

	sort.Strings(names)

	env := slices.Clone(base)
	for _, name := range names {
		env = append(env, strings.ToUpper(name)+"="+g.Env[name])
	}

	return env
}

type PreviewConfig struct {
	MaxSize int `koanf:"max_size"`
}

type TraceConfig struct {
	Enabled bool `koanf:"enabled"`
}

type GraphConfig struct {
	// Path receives the DOT graph of every conversion when set.
	Path string `koanf:"path"`
}

func defaults() map[string]any {
	p := converter.Defaults("")

	return map[string]any{
		"hillshade.z_factor":    p.ZFactor,
		"hillshade.azimuth":     p.Azimuth,
		"hillshade.altitude":    p.Altitude,
		"hillshade.min_zoom":    p.MinZoom,
		"hillshade.max_zoom":    p.MaxZoom,
		"gdal.probe_timeout":    gdal.DefaultProbeTimeout.String(),
		"preview.max_size":      preview.DefaultMaxSize,
		"log.level":             "info",
		"log.format":            logging.FormatText,
		"trace.enabled":         false,
		"publish.use_ssl":       true,
		"publish.prefix":        "",
		"publish.create_bucket": false,
	}
}

// Load reads the configuration. path names a YAML file that must exist; when path is empty,
// DefaultFile is read if it exists.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	filePath := path
	if filePath == "" {
		filePath = DefaultFile
	}

	err := k.Load(file.Provider(filePath), yaml.Parser())
	if err != nil && (path != "" || !errors.Is(err, fs.ErrNotExist)) {
		return nil, errors.Wrapf(err, "unable to load config file %s", filePath)
	}

	err = k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil)
	if err != nil {
		return nil, errors.Wrap(err, "unable to load environment")
	}

	for key, value := range defaults() {
		if !k.Exists(key) {
			err = k.Set(key, value)
			if err != nil {
				return nil, errors.Wrapf(err, "unable to set default %s", key)
			}
		}
	}

	var cfg Config

	err = k.Unmarshal("", &cfg)
	if err != nil {
		return nil, errors.Wrap(err, "unable to decode config")
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	err := c.Log.Validate()
	if err != nil {
		return errors.Wrap(err, "log")
	}

	if c.Preview.MaxSize <= 0 {
		return errors.Errorf("preview.max_size must be positive, got %d", c.Preview.MaxSize)
	}

	if c.GDAL.ProbeTimeout <= 0 {
		return errors.Errorf("gdal.probe_timeout must be positive, got %s", c.GDAL.ProbeTimeout)
	}

	if c.Publish.Enabled() {
		err = c.Publish.Validate()
		if err != nil {
			return errors.Wrap(err, "publish")
		}
	}

	return nil
}

// Parameters returns the conversion parameters of input using the configured defaults. An
// empty output is derived from the input, when there is one.
func (c *Config) Parameters(input, output string) converter.Parameters {
	if output == "" && input != "" {
		output = converter.DefaultOutputPath(input)
	}

	return converter.Parameters{
		InputPath:  input,
		OutputPath: output,
		ZFactor:    c.Hillshade.ZFactor,
		Azimuth:    c.Hillshade.Azimuth,
		Altitude:   c.Hillshade.Altitude,
		MinZoom:    c.Hillshade.MinZoom,
		MaxZoom:    c.Hillshade.MaxZoom,
	}
}
