// Package geom holds the geometry plumbing shared by the format converters
// and the layer pipeline: leaf-run traversal, vertex thinning, reprojection
// to WGS84 and extent math. All geometry is expressed with paulmach/orb types.
package geom

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Thinning thresholds. Collections below these keep full fidelity.
const (
	// MinRunLength is the smallest leaf run the reducer will touch.
	MinRunLength = 50
	// MinCollectionVertices is the smallest collection worth thinning.
	MinCollectionVertices = 10000

	// DefaultTolerance is the Manhattan-distance tolerance in degrees used
	// when the caller does not pick one.
	DefaultTolerance = 0.005
	// DefaultMaxRun caps consecutive skipped vertices.
	DefaultMaxRun = 20
)

// eachRun visits every leaf coordinate run in g. A point is visited as a
// single-element run.
func eachRun(g orb.Geometry, visit func([]orb.Point)) {
	switch t := g.(type) {
	case orb.Point:
		visit([]orb.Point{t})
	case orb.MultiPoint:
		visit(t)
	case orb.LineString:
		visit(t)
	case orb.MultiLineString:
		for _, ls := range t {
			visit(ls)
		}
	case orb.Ring:
		visit(t)
	case orb.Polygon:
		for _, r := range t {
			visit(r)
		}
	case orb.MultiPolygon:
		for _, p := range t {
			for _, r := range p {
				visit(r)
			}
		}
	case orb.Collection:
		for _, c := range t {
			eachRun(c, visit)
		}
	case orb.Bound:
		eachRun(t.ToPolygon(), visit)
	}
}

// WalkRuns rebuilds g by applying fn to every leaf coordinate run. Rings are
// re-closed when fn breaks their closure; points and bounds pass through
// unchanged.
func WalkRuns(g orb.Geometry, fn func(orb.LineString) orb.LineString) orb.Geometry {
	switch t := g.(type) {
	case orb.Point, orb.Bound:
		return g
	case orb.MultiPoint:
		return orb.MultiPoint(fn(orb.LineString(t)))
	case orb.LineString:
		return fn(t)
	case orb.MultiLineString:
		out := make(orb.MultiLineString, len(t))
		for i, ls := range t {
			out[i] = fn(ls)
		}
		return out
	case orb.Ring:
		return CloseRing(orb.Ring(fn(orb.LineString(t))))
	case orb.Polygon:
		out := make(orb.Polygon, len(t))
		for i, r := range t {
			out[i] = CloseRing(orb.Ring(fn(orb.LineString(r))))
		}
		return out
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, len(t))
		for i, p := range t {
			out[i] = WalkRuns(p, fn).(orb.Polygon)
		}
		return out
	case orb.Collection:
		out := make(orb.Collection, len(t))
		for i, c := range t {
			out[i] = WalkRuns(c, fn)
		}
		return out
	}
	return g
}

// CloseRing appends the first vertex when a ring is missing its closing
// point.
func CloseRing(r orb.Ring) orb.Ring {
	if len(r) >= 3 && r[0] != r[len(r)-1] {
		r = append(r, r[0])
	}
	return r
}

// OrientRing returns r wound counter-clockwise, reversing in place when
// needed.
func OrientRing(r orb.Ring) orb.Ring {
	if r.Orientation() == orb.CW {
		r.Reverse()
	}
	return r
}

// VertexCount reports the total number of vertices in g.
func VertexCount(g orb.Geometry) int {
	n := 0
	eachRun(g, func(run []orb.Point) { n += len(run) })
	return n
}

// LongestRun reports the length of the longest leaf coordinate run in g.
func LongestRun(g orb.Geometry) int {
	longest := 0
	eachRun(g, func(run []orb.Point) {
		if len(run) > longest {
			longest = len(run)
		}
	})
	return longest
}

// ReduceVertices thins run with a single greedy pass: the first vertex is
// always retained, and from each retained vertex the following ones are
// skipped while their Manhattan distance (|dLon|+|dLat|) to it stays within
// tolDeg, at most maxRun in a row. Runs shorter than MinRunLength come back
// untouched. Non-positive parameters pick the package defaults.
func ReduceVertices(run orb.LineString, tolDeg float64, maxRun int) orb.LineString {
	if len(run) < MinRunLength {
		return run
	}
	if tolDeg <= 0 {
		tolDeg = DefaultTolerance
	}
	if maxRun <= 0 {
		maxRun = DefaultMaxRun
	}
	out := make(orb.LineString, 1, len(run)/2+1)
	out[0] = run[0]
	last := run[0]
	skipped := 0
	for i := 1; i < len(run); i++ {
		d := math.Abs(run[i][0]-last[0]) + math.Abs(run[i][1]-last[1])
		if d <= tolDeg && skipped < maxRun {
			skipped++
			continue
		}
		out = append(out, run[i])
		last = run[i]
		skipped = 0
	}
	return out
}

// ReduceCollection thins every leaf run of every feature in fc, but only when
// the collection is big enough to matter: at least MinCollectionVertices in
// total and one run of MinRunLength points. It reports the vertex counts
// before and after; equal counts mean the collection was left alone.
func ReduceCollection(fc *geojson.FeatureCollection, tolDeg float64, maxRun int) (before, after int) {
	longest := 0
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		before += VertexCount(f.Geometry)
		if l := LongestRun(f.Geometry); l > longest {
			longest = l
		}
	}
	if before < MinCollectionVertices || longest < MinRunLength {
		return before, before
	}
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		f.Geometry = WalkRuns(f.Geometry, func(run orb.LineString) orb.LineString {
			return ReduceVertices(run, tolDeg, maxRun)
		})
		after += VertexCount(f.Geometry)
	}
	return before, after
}
