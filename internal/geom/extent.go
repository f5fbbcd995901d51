package geom

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Extent is a WGS84 bounding rectangle.
type Extent struct {
	West  float64 `json:"west" yaml:"west"`
	South float64 `json:"south" yaml:"south"`
	East  float64 `json:"east" yaml:"east"`
	North float64 `json:"north" yaml:"north"`
}

// FromBound converts an orb bound.
func FromBound(b orb.Bound) Extent {
	return Extent{West: b.Min[0], South: b.Min[1], East: b.Max[0], North: b.Max[1]}
}

// Bound converts back to an orb bound.
func (e Extent) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{e.West, e.South}, Max: orb.Point{e.East, e.North}}
}

// IsZero reports an unset extent.
func (e Extent) IsZero() bool { return e == Extent{} }

// Union grows e to cover o.
func (e Extent) Union(o Extent) Extent {
	if e.IsZero() {
		return o
	}
	if o.IsZero() {
		return e
	}
	return FromBound(e.Bound().Union(o.Bound()))
}

// Intersects reports whether the two rectangles overlap. Unset extents never
// intersect anything.
func (e Extent) Intersects(o Extent) bool {
	if e.IsZero() || o.IsZero() {
		return false
	}
	return e.Bound().Intersects(o.Bound())
}

// Contains reports whether the point lies inside the rectangle. An unset
// extent contains nothing.
func (e Extent) Contains(p orb.Point) bool {
	if e.IsZero() {
		return false
	}
	return e.Bound().Contains(p)
}

// Center returns the midpoint of the rectangle.
func (e Extent) Center() orb.Point { return e.Bound().Center() }

// String renders west,south,east,north to four decimal places.
func (e Extent) String() string {
	return fmt.Sprintf("%.4f,%.4f,%.4f,%.4f", e.West, e.South, e.East, e.North)
}

// CollectionExtent unions the bounds of every feature geometry in fc. ok is
// false when the collection holds no geometry at all.
func CollectionExtent(fc *geojson.FeatureCollection) (Extent, bool) {
	var ext Extent
	found := false
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		b := FromBound(f.Geometry.Bound())
		if !found {
			ext, found = b, true
		} else {
			ext = ext.Union(b)
		}
	}
	return ext, found
}
