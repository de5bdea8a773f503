// Package gdal knows how to find the GDAL command line utilities and how to call them.
package gdal

import "sort"

// GDAL executables used by the converter.
const (
	DEM       = "gdaldem"
	Translate = "gdal_translate"
	Warp      = "gdalwarp"
	Info      = "gdalinfo"
)

// Tools lists every executable the converter needs.
var Tools = []string{DEM, Translate, Warp, Info}

// Toolset maps a logical tool name to the executable to run.
// A Toolset is resolved once and passed to whoever builds command lines; nothing mutates PATH.
type Toolset map[string]string

// Command returns the executable for tool, falling back to the bare name so that the operating
// system search path still gets a chance to resolve it.
func (ts Toolset) Command(tool string) string {
	if path, ok := ts[tool]; ok && path != "" {
		return path
	}

	return tool
}

// Names returns the resolved tool names, sorted.
func (ts Toolset) Names() []string {
	names := make([]string, 0, len(ts))
	for name := range ts {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
