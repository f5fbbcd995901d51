// Package format detects geodata formats from URLs and converts the service
// payload flavors (ArcGIS REST JSON and WFS/GML XML) to GeoJSON feature
// collections.
package format

import (
	"errors"
	"net/url"
	"path"
	"strings"
)

// Tag identifies a data format the pipeline knows how to route. The zero Tag
// means unrecognized.
type Tag string

// The recognized formats.
const (
	CZML     Tag = "czml"
	GeoJSON  Tag = "geojson"
	GJSON    Tag = "gjson"
	TopoJSON Tag = "topojson"
	JSON     Tag = "json"
	KML      Tag = "kml"
	KMZ      Tag = "kmz"
	GPX      Tag = "gpx"
	CSV      Tag = "csv"
)

// ErrUnsupported reports a payload outside the recognized format set.
var ErrUnsupported = errors.New("unsupported data format")

// byName maps lowercased query values and file extensions to tags.
var byName = map[string]Tag{
	"czml":     CZML,
	"geojson":  GeoJSON,
	"gjson":    GJSON,
	"topojson": TopoJSON,
	"json":     JSON,
	"kml":      KML,
	"kmz":      KMZ,
	"gpx":      GPX,
	"csv":      CSV,
}

// Detect identifies the format of a URL or file name. The outputFormat and f
// query parameters take precedence, in that order, over the path extension;
// matching is case-insensitive.
func Detect(name string) Tag {
	rest := name
	if u, err := url.Parse(name); err == nil {
		q := u.Query()
		for _, key := range []string{"outputFormat", "f"} {
			if t, ok := byName[strings.ToLower(queryValue(q, key))]; ok {
				return t
			}
		}
		rest = u.Path
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(rest)), ".")
	return byName[ext]
}

// queryValue finds a query parameter by case-insensitive name.
func queryValue(q url.Values, key string) string {
	for k, vs := range q {
		if strings.EqualFold(k, key) && len(vs) > 0 {
			return vs[0]
		}
	}
	return ""
}

// Lookup resolves a format name or extension to its tag.
func Lookup(name string) (Tag, bool) {
	t, ok := byName[strings.ToLower(name)]
	return t, ok
}

// Supported reports whether Detect recognizes name.
func Supported(name string) bool { return Detect(name) != "" }

// Passthrough reports formats the renderers consume natively, with no
// conversion or normalization on the way through.
func Passthrough(t Tag) bool { return t == CZML || t == TopoJSON }

// SniffJSON reports whether data opens a JSON document. Service responses
// that are not JSON are treated as XML.
func SniffJSON(data []byte) bool {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case '{', '[':
			return true
		default:
			return false
		}
	}
	return false
}
