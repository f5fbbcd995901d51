package geom

import (
	"github.com/golang/geo/s2"
)

// CoveringMaxCells is the default cell budget for extent coverings.
const CoveringMaxCells = 8

// Covering returns s2 cell tokens covering e, a compact spatial key for an
// extent. maxCells <= 0 picks CoveringMaxCells.
func Covering(e Extent, maxCells int) []string {
	if e.IsZero() {
		return nil
	}
	if maxCells <= 0 {
		maxCells = CoveringMaxCells
	}
	rect := s2.RectFromLatLng(s2.LatLngFromDegrees(e.South, e.West))
	rect = rect.AddPoint(s2.LatLngFromDegrees(e.North, e.East))
	coverer := &s2.RegionCoverer{MaxLevel: 16, MaxCells: maxCells}
	cells := coverer.Covering(rect)
	tokens := make([]string, len(cells))
	for i, id := range cells {
		tokens[i] = id.ToToken()
	}
	return tokens
}
