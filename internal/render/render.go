// Package render holds the renderer-neutral imagery source description the
// backends consume. The backends themselves live in the globe and flatmap
// subpackages.
package render

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/joeblew999/plat-view/internal/geom"
)

// ImageryKind selects how an imagery URL is interpreted.
type ImageryKind string

const (
	// Tiles is a slippy tile template with {z}, {x} and {y} placeholders.
	Tiles ImageryKind = "tiles"
	// WMS is an OGC Web Map Service endpoint queried with GetMap.
	WMS ImageryKind = "wms"
)

// Imagery describes a tile or WMS imagery source in renderer-neutral terms.
type Imagery struct {
	Kind        ImageryKind `json:"kind" yaml:"kind"`
	URL         string      `json:"url" yaml:"url"`
	Layers      string      `json:"layers,omitempty" yaml:"layers,omitempty"`
	Format      string      `json:"format,omitempty" yaml:"format,omitempty"`
	Attribution string      `json:"attribution,omitempty" yaml:"attribution,omitempty"`
	MinZoom     int         `json:"min_zoom,omitempty" yaml:"min_zoom,omitempty"`
	MaxZoom     int         `json:"max_zoom,omitempty" yaml:"max_zoom,omitempty"`
}

// TileURL expands the template for one slippy tile.
func (p *Imagery) TileURL(z, x, y int) string {
	r := strings.NewReplacer(
		"{z}", strconv.Itoa(z),
		"{x}", strconv.Itoa(x),
		"{y}", strconv.Itoa(y),
	)
	return r.Replace(p.URL)
}

// MapURL builds a WMS GetMap request for the extent at the given pixel size.
// The bounding box is WGS84, west,south,east,north.
func (p *Imagery) MapURL(e geom.Extent, width, height int) string {
	format := p.Format
	if format == "" {
		format = "image/png"
	}
	q := url.Values{}
	q.Set("SERVICE", "WMS")
	q.Set("VERSION", "1.1.1")
	q.Set("REQUEST", "GetMap")
	q.Set("LAYERS", p.Layers)
	q.Set("SRS", geom.WGS84)
	q.Set("BBOX", fmt.Sprintf("%g,%g,%g,%g", e.West, e.South, e.East, e.North))
	q.Set("WIDTH", strconv.Itoa(width))
	q.Set("HEIGHT", strconv.Itoa(height))
	q.Set("FORMAT", format)
	q.Set("TRANSPARENT", "true")
	sep := "?"
	if strings.Contains(p.URL, "?") {
		sep = "&"
	}
	return p.URL + sep + q.Encode()
}
