package format

import (
	"context"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-view/internal/geom"
)

// XMLTranslator is the built-in Translator for KML and GPX payloads. It
// covers the common Placemark, waypoint and track shapes; callers with
// richer needs can plug their own Translator into the pipeline.
type XMLTranslator struct{}

func (XMLTranslator) Translate(_ context.Context, tag Tag, data []byte) (*geojson.FeatureCollection, error) {
	switch tag {
	case KML:
		return kmlToGeoJSON(data)
	case GPX:
		return gpxToGeoJSON(data)
	}
	return nil, fmt.Errorf("translate %q: %w", tag, ErrUnsupported)
}

// kmlToGeoJSON walks the document for Placemark elements at any folder
// depth. Each placemark contributes one feature carrying its name and
// description; placemarks without a recognized geometry are skipped.
func kmlToGeoJSON(data []byte) (*geojson.FeatureCollection, error) {
	var root xmlNode
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse kml: %w", err)
	}
	fc := geojson.NewFeatureCollection()
	var walk func(n *xmlNode)
	walk = func(n *xmlNode) {
		if n.XMLName.Local == "Placemark" {
			if f := placemarkFeature(n); f != nil {
				fc.Append(f)
			}
			return
		}
		for i := range n.Children {
			walk(&n.Children[i])
		}
	}
	walk(&root)
	return fc, nil
}

func placemarkFeature(n *xmlNode) *geojson.Feature {
	g := kmlGeometryUnder(n)
	if g == nil {
		return nil
	}
	f := geojson.NewFeature(g)
	if name := childText(n, "name"); name != "" {
		f.Properties["name"] = name
	}
	if desc := childText(n, "description"); desc != "" {
		f.Properties["description"] = desc
	}
	return f
}

// kmlGeometryUnder finds the first Point, LineString or Polygon below n.
// Unlike the service converters, KML polygons keep all their rings.
func kmlGeometryUnder(n *xmlNode) orb.Geometry {
	var g orb.Geometry
	var walk func(m *xmlNode) bool
	walk = func(m *xmlNode) bool {
		switch m.XMLName.Local {
		case "Point":
			if pts := kmlCoordinates(m); len(pts) > 0 {
				g = pts[0]
				return true
			}
		case "LineString":
			if pts := kmlCoordinates(m); len(pts) >= 2 {
				g = orb.LineString(pts)
				return true
			}
		case "Polygon":
			if rings := kmlRings(m); len(rings) > 0 {
				g = orb.Polygon(rings)
				return true
			}
		}
		for i := range m.Children {
			if walk(&m.Children[i]) {
				return true
			}
		}
		return false
	}
	walk(n)
	return g
}

// kmlRings collects LinearRing runs in document order, so the outer boundary
// comes first.
func kmlRings(n *xmlNode) []orb.Ring {
	var rings []orb.Ring
	var walk func(m *xmlNode)
	walk = func(m *xmlNode) {
		if m.XMLName.Local == "LinearRing" {
			if pts := kmlCoordinates(m); len(pts) >= 3 {
				rings = append(rings, geom.CloseRing(orb.Ring(pts)))
			}
			return
		}
		for i := range m.Children {
			walk(&m.Children[i])
		}
	}
	walk(n)
	return rings
}

// kmlCoordinates parses the lon,lat[,alt] tuple syntax. Altitude is dropped.
func kmlCoordinates(n *xmlNode) []orb.Point {
	var pts []orb.Point
	for _, tuple := range strings.Fields(geomText(n)) {
		vals := strings.Split(tuple, ",")
		if len(vals) < 2 {
			continue
		}
		lon, errLon := strconv.ParseFloat(vals[0], 64)
		lat, errLat := strconv.ParseFloat(vals[1], 64)
		if errLon != nil || errLat != nil {
			continue
		}
		pts = append(pts, orb.Point{lon, lat})
	}
	return pts
}

// childText returns the text of the first direct child named local.
func childText(n *xmlNode, local string) string {
	for i := range n.Children {
		if n.Children[i].XMLName.Local == local {
			return strings.TrimSpace(n.Children[i].Text)
		}
	}
	return ""
}

type gpxFile struct {
	Waypoints []gpxPoint `xml:"wpt"`
	Tracks    []gpxTrack `xml:"trk"`
	Routes    []gpxRoute `xml:"rte"`
}

type gpxPoint struct {
	Lat  float64 `xml:"lat,attr"`
	Lon  float64 `xml:"lon,attr"`
	Name string  `xml:"name"`
}

type gpxTrack struct {
	Name     string       `xml:"name"`
	Segments []gpxSegment `xml:"trkseg"`
}

type gpxSegment struct {
	Points []gpxPoint `xml:"trkpt"`
}

type gpxRoute struct {
	Name   string     `xml:"name"`
	Points []gpxPoint `xml:"rtept"`
}

// gpxToGeoJSON maps waypoints to points and tracks and routes to
// linestrings. Track segments are concatenated into one run.
func gpxToGeoJSON(data []byte) (*geojson.FeatureCollection, error) {
	var file gpxFile
	if err := xml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse gpx: %w", err)
	}
	fc := geojson.NewFeatureCollection()
	for _, w := range file.Waypoints {
		f := geojson.NewFeature(orb.Point{w.Lon, w.Lat})
		if w.Name != "" {
			f.Properties["name"] = w.Name
		}
		fc.Append(f)
	}
	for _, trk := range file.Tracks {
		var line orb.LineString
		for _, seg := range trk.Segments {
			for _, p := range seg.Points {
				line = append(line, orb.Point{p.Lon, p.Lat})
			}
		}
		appendLine(fc, line, trk.Name)
	}
	for _, rte := range file.Routes {
		var line orb.LineString
		for _, p := range rte.Points {
			line = append(line, orb.Point{p.Lon, p.Lat})
		}
		appendLine(fc, line, rte.Name)
	}
	return fc, nil
}

func appendLine(fc *geojson.FeatureCollection, line orb.LineString, name string) {
	if len(line) < 2 {
		return
	}
	f := geojson.NewFeature(line)
	if name != "" {
		f.Properties["name"] = name
	}
	fc.Append(f)
}
