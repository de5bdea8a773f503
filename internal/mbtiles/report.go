// Package mbtiles inspects MBTiles archives produced by the converter.
package mbtiles

import (
	"fmt"
)

// ZoomReport compares the zoom levels found in an archive with the requested range.
type ZoomReport struct {
	RequestedMin int
	RequestedMax int
	// Observed holds the distinct zoom levels present, ascending.
	Observed []int
}

// Expected is the number of levels in the requested range.
func (r ZoomReport) Expected() int {
	if r.RequestedMax < r.RequestedMin {
		return 0
	}

	return r.RequestedMax - r.RequestedMin + 1
}

// Shortfall is how many requested levels are not in the archive, never negative.
func (r ZoomReport) Shortfall() int {
	return len(r.Missing())
}

// Complete reports whether every requested level has tiles.
func (r ZoomReport) Complete() bool {
	return r.Shortfall() == 0
}

// Missing lists the requested levels without tiles.
func (r ZoomReport) Missing() []int {
	present := make(map[int]struct{}, len(r.Observed))
	for _, z := range r.Observed {
		present[z] = struct{}{}
	}

	var missing []int

	for z := r.RequestedMin; z <= r.RequestedMax; z++ {
		if _, ok := present[z]; !ok {
			missing = append(missing, z)
		}
	}

	return missing
}

// Warning returns the diagnostic for an incomplete archive, or nil.
func (r ZoomReport) Warning() *VerificationWarning {
	if r.Complete() {
		return nil
	}

	return &VerificationWarning{Report: r}
}

// VerificationWarning describes an archive that lacks some requested zoom levels. It is a
// diagnostic: the archive is still usable.
type VerificationWarning struct {
	Report ZoomReport
}

func (w *VerificationWarning) Error() string {
	return fmt.Sprintf("only %d of %d requested zoom levels were generated (%d-%d), missing %v",
		len(w.Report.Observed), w.Report.Expected(), w.Report.RequestedMin, w.Report.RequestedMax, w.Report.Missing())
}

// Hint is the remediation offered to the user.
func (w *VerificationWarning) Hint() string {
	return "Try using a higher resolution input file or reducing MAXZOOM."
}
