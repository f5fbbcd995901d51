package format

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	log "github.com/sirupsen/logrus"

	"github.com/joeblew999/plat-view/internal/geom"
)

// esriFeatureSet is the shape of an ArcGIS REST query response.
type esriFeatureSet struct {
	GeometryType     string         `json:"geometryType"`
	SpatialReference *esriReference `json:"spatialReference"`
	Features         []esriFeature  `json:"features"`
}

type esriReference struct {
	WKID       int `json:"wkid"`
	LatestWKID int `json:"latestWkid"`
}

type esriFeature struct {
	Attributes map[string]interface{} `json:"attributes"`
	Geometry   *esriGeometry          `json:"geometry"`
}

type esriGeometry struct {
	X     *float64      `json:"x"`
	Y     *float64      `json:"y"`
	Paths [][][]float64 `json:"paths"`
	Rings [][][]float64 `json:"rings"`
}

// FromEsriJSON converts an ArcGIS REST JSON response to a GeoJSON feature
// collection. Payloads that already are a feature collection, or that carry
// no geometryType tag, go through a plain GeoJSON parse instead. The
// response's spatial reference is kept as a crs annotation for the
// normalizer to resolve.
//
// Multipart geometries are truncated to their first path or ring; the
// remainder is dropped with a warning.
func FromEsriJSON(data []byte) (*geojson.FeatureCollection, error) {
	var probe struct {
		Type         string `json:"type"`
		GeometryType string `json:"geometryType"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parse service response: %w", err)
	}
	if probe.Type == "FeatureCollection" || probe.GeometryType == "" {
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("parse service response: %w", err)
		}
		return fc, nil
	}

	var set esriFeatureSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parse arcgis response: %w", err)
	}

	fc := geojson.NewFeatureCollection()
	dropped := 0
	for _, ef := range set.Features {
		g, extra := esriGeometryOf(set.GeometryType, ef.Geometry)
		dropped += extra
		if g == nil {
			continue
		}
		f := geojson.NewFeature(g)
		for k, v := range ef.Attributes {
			f.Properties[k] = v
		}
		fc.Append(f)
	}
	if dropped > 0 {
		log.WithField("parts", dropped).Warn("multipart arcgis geometries truncated to their first part")
	}
	if code := esriCRS(set.SpatialReference); code != "" && code != geom.WGS84 {
		fc.ExtraMembers = geojson.Properties{"crs": crsMember(code)}
	}
	return fc, nil
}

// esriGeometryOf maps one ArcGIS geometry to orb. extra counts the multipart
// members dropped on the way.
func esriGeometryOf(geometryType string, g *esriGeometry) (_ orb.Geometry, extra int) {
	if g == nil {
		return nil, 0
	}
	switch geometryType {
	case "esriGeometryPoint":
		if g.X == nil || g.Y == nil {
			return nil, 0
		}
		return orb.Point{*g.X, *g.Y}, 0
	case "esriGeometryPolyline":
		if len(g.Paths) == 0 {
			return nil, 0
		}
		line := lineOf(g.Paths[0])
		if len(line) < 2 {
			return nil, len(g.Paths) - 1
		}
		return line, len(g.Paths) - 1
	case "esriGeometryPolygon":
		if len(g.Rings) == 0 {
			return nil, 0
		}
		ring := geom.OrientRing(geom.CloseRing(orb.Ring(lineOf(g.Rings[0]))))
		if len(ring) < 4 {
			return nil, len(g.Rings) - 1
		}
		return orb.Polygon{ring}, len(g.Rings) - 1
	}
	return nil, 0
}

func lineOf(coords [][]float64) orb.LineString {
	line := make(orb.LineString, 0, len(coords))
	for _, c := range coords {
		if len(c) < 2 {
			continue
		}
		line = append(line, orb.Point{c[0], c[1]})
	}
	return line
}

func esriCRS(ref *esriReference) string {
	if ref == nil {
		return ""
	}
	wkid := ref.WKID
	if wkid == 0 {
		wkid = ref.LatestWKID
	}
	if wkid == 0 {
		return ""
	}
	return fmt.Sprintf("EPSG:%d", wkid)
}

// crsMember builds the named-CRS annotation the normalizer understands.
func crsMember(code string) map[string]interface{} {
	return map[string]interface{}{
		"type":       "name",
		"properties": map[string]interface{}{"name": code},
	}
}
