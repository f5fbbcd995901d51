package flatmap

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"

	"github.com/joeblew999/plat-view/internal/geom"
)

// RenderTile encodes the visible feature overlays into one gzipped Mapbox
// vector tile, one named layer per overlay, painted bottom first so the top
// of the stack draws last. Imagery and passthrough documents contribute
// nothing. An empty tile returns nil data and no error.
func (m *Map) RenderTile(tile maptile.Tile) ([]byte, error) {
	type job struct {
		name string
		fc   *geojson.FeatureCollection
	}
	m.mu.Lock()
	jobs := make([]job, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		o := m.overlays[m.order[i]]
		if !o.visible || o.l.Collection == nil {
			continue
		}
		jobs = append(jobs, job{o.l.Name, o.l.Collection})
	}
	m.mu.Unlock()

	tileBound := tile.Bound()
	var layers mvt.Layers
	for _, j := range jobs {
		fc := geojson.NewFeatureCollection()
		for _, f := range j.fc.Features {
			if f.Geometry == nil || !geometryIntersectsBound(f.Geometry, tileBound) {
				continue
			}
			// Clip and ProjectToTile mutate geometry in place, so the
			// overlay keeps its own copy.
			clone := geojson.NewFeature(orb.Clone(f.Geometry))
			for k, v := range f.Properties {
				clone.Properties[k] = v
			}
			fc.Append(clone)
		}
		if len(fc.Features) == 0 {
			continue
		}
		l := mvt.NewLayer(j.name, fc)
		if eps := simplifyEpsilon(tile.Z); eps > 0 {
			l.Simplify(simplify.DouglasPeucker(eps))
		}
		l.Clip(tileBound)
		l.ProjectToTile(tile)
		l.RemoveEmpty(0.5, 0.5)
		if len(l.Features) == 0 {
			continue
		}
		layers = append(layers, l)
	}
	if len(layers) == 0 {
		return nil, nil
	}
	data, err := mvt.MarshalGzipped(layers)
	if err != nil {
		return nil, fmt.Errorf("encode tile %d/%d/%d: %w", tile.Z, tile.X, tile.Y, err)
	}
	return data, nil
}

// CoveringTiles lists the tiles at a zoom level that cover the extent.
func CoveringTiles(e geom.Extent, zoom maptile.Zoom) []maptile.Tile {
	if e.IsZero() {
		return nil
	}
	b := e.Bound()
	minTile := maptile.At(b.Min, zoom)
	maxTile := maptile.At(b.Max, zoom)

	minX, maxX := minTile.X, maxTile.X
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	minY, maxY := minTile.Y, maxTile.Y
	if minY > maxY {
		minY, maxY = maxY, minY
	}

	var tiles []maptile.Tile
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			tiles = append(tiles, maptile.New(x, y, zoom))
		}
	}
	return tiles
}

// geometryIntersectsBound checks beyond bounding boxes: polygon containment
// needs planar tests so a tile sitting inside a large polygon still renders.
func geometryIntersectsBound(g orb.Geometry, bound orb.Bound) bool {
	if !g.Bound().Intersects(bound) {
		return false
	}
	switch t := g.(type) {
	case orb.Point:
		return bound.Contains(t)
	case orb.MultiPoint:
		for _, p := range t {
			if bound.Contains(p) {
				return true
			}
		}
		return false
	case orb.Polygon:
		for _, ring := range t {
			for _, p := range ring {
				if bound.Contains(p) {
					return true
				}
			}
		}
		corners := []orb.Point{
			bound.Min,
			{bound.Max[0], bound.Min[1]},
			bound.Max,
			{bound.Min[0], bound.Max[1]},
		}
		for _, p := range corners {
			if planar.PolygonContains(t, p) {
				return true
			}
		}
		return planar.PolygonContains(t, bound.Center())
	case orb.MultiPolygon:
		for _, poly := range t {
			if geometryIntersectsBound(poly, bound) {
				return true
			}
		}
		return false
	case orb.MultiLineString:
		for _, ls := range t {
			if geometryIntersectsBound(ls, bound) {
				return true
			}
		}
		return false
	default:
		// lines and anything else: a bound overlap is close enough
		return true
	}
}

// simplifyEpsilon returns the Douglas-Peucker tolerance in degrees for a
// zoom level. High zooms keep full detail.
func simplifyEpsilon(zoom maptile.Zoom) float64 {
	switch {
	case zoom >= 14:
		return 0
	case zoom >= 10:
		return 0.00001
	case zoom >= 6:
		return 0.0001
	case zoom >= 4:
		return 0.0005
	default:
		return 0.001
	}
}
