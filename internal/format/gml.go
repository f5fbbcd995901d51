package format

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	log "github.com/sirupsen/logrus"

	"github.com/joeblew999/plat-view/internal/geom"
)

// xmlNode is a generic element tree, enough to scan XML payloads of any
// schema vintage without per-schema structs.
type xmlNode struct {
	XMLName  xml.Name
	Text     string    `xml:",chardata"`
	Children []xmlNode `xml:",any"`
}

// gazetterMarker flags responses from gazetteer services that already emit
// longitude-first positions. The name is spelled that way on the wire.
const gazetterMarker = "gazetter"

// FromEsriGML converts a WFS/GML XML response to a GeoJSON feature
// collection. The element tree is scanned recursively for Point, LineString
// and Polygon elements at any depth; each match becomes one feature with
// empty properties. GML positions are latitude-first and get swapped to
// lon/lat unless the gazetteer marker appears in the payload.
//
// Polygons keep their exterior ring only; interior rings are dropped with a
// warning.
func FromEsriGML(data []byte) (*geojson.FeatureCollection, error) {
	var root xmlNode
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse gml response: %w", err)
	}
	latFirst := !bytes.Contains(bytes.ToLower(data), []byte(gazetterMarker))
	fc := geojson.NewFeatureCollection()
	dropped := 0
	scanGML(&root, latFirst, fc, &dropped)
	if dropped > 0 {
		log.WithField("rings", dropped).Warn("interior rings dropped from gml polygons")
	}
	return fc, nil
}

// scanGML walks the tree and appends one feature per geometry element. It
// does not descend into matched elements, so nested rings stay with their
// polygon.
func scanGML(n *xmlNode, latFirst bool, fc *geojson.FeatureCollection, dropped *int) {
	switch n.XMLName.Local {
	case "Point":
		if pts := positionsUnder(n, latFirst); len(pts) > 0 {
			fc.Append(geojson.NewFeature(pts[0]))
		}
		return
	case "LineString":
		if pts := positionsUnder(n, latFirst); len(pts) >= 2 {
			fc.Append(geojson.NewFeature(orb.LineString(pts)))
		}
		return
	case "Polygon":
		rings := ringsUnder(n, latFirst)
		if len(rings) == 0 {
			return
		}
		*dropped += len(rings) - 1
		ring := geom.OrientRing(geom.CloseRing(rings[0]))
		if len(ring) >= 4 {
			fc.Append(geojson.NewFeature(orb.Polygon{ring}))
		}
		return
	}
	for i := range n.Children {
		scanGML(&n.Children[i], latFirst, fc, dropped)
	}
}

// geomText concatenates the position text under n, covering the pos, posList
// and coordinates spellings.
func geomText(n *xmlNode) string {
	var sb strings.Builder
	var walk func(m *xmlNode)
	walk = func(m *xmlNode) {
		switch m.XMLName.Local {
		case "pos", "posList", "coordinates":
			sb.WriteString(" ")
			sb.WriteString(m.Text)
			return
		}
		for i := range m.Children {
			walk(&m.Children[i])
		}
	}
	walk(n)
	return sb.String()
}

// positionsUnder parses every position under n into one run.
func positionsUnder(n *xmlNode, latFirst bool) []orb.Point {
	return parsePositions(geomText(n), latFirst)
}

// ringsUnder returns one run per LinearRing under a Polygon element, exterior
// first in document order. Polygons written without LinearRing wrappers
// collapse to a single run.
func ringsUnder(n *xmlNode, latFirst bool) []orb.Ring {
	var rings []orb.Ring
	var walk func(m *xmlNode)
	walk = func(m *xmlNode) {
		if m.XMLName.Local == "LinearRing" {
			if pts := positionsUnder(m, latFirst); len(pts) > 0 {
				rings = append(rings, orb.Ring(pts))
			}
			return
		}
		for i := range m.Children {
			walk(&m.Children[i])
		}
	}
	walk(n)
	if len(rings) == 0 {
		if pts := positionsUnder(n, latFirst); len(pts) > 0 {
			rings = append(rings, orb.Ring(pts))
		}
	}
	return rings
}

// parsePositions splits a GML position list into points. Values separated by
// commas or whitespace are paired in order and swapped to lon/lat when
// latFirst.
func parsePositions(s string, latFirst bool) []orb.Point {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	pts := make([]orb.Point, 0, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		a, errA := strconv.ParseFloat(fields[i], 64)
		b, errB := strconv.ParseFloat(fields[i+1], 64)
		if errA != nil || errB != nil {
			continue
		}
		if latFirst {
			pts = append(pts, orb.Point{b, a})
		} else {
			pts = append(pts, orb.Point{a, b})
		}
	}
	return pts
}
