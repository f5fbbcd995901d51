package geom

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"
	log "github.com/sirupsen/logrus"
)

// WGS84 is the reference system every collection is normalized to.
const WGS84 = "EPSG:4326"

// ErrNoTransform reports a reference system without a registered transform.
var ErrNoTransform = errors.New("no transform registered")

// Transform converts vertices between a source reference system and WGS84.
type Transform struct {
	ToWGS84   func(orb.Point) orb.Point
	FromWGS84 func(orb.Point) orb.Point
}

var (
	transformMu sync.RWMutex
	transforms  = map[string]Transform{}
)

func identity(p orb.Point) orb.Point { return p }

func init() {
	id := Transform{ToWGS84: identity, FromWGS84: identity}
	// GDA94 (4283) is indistinguishable from WGS84 at display precision.
	for _, code := range []string{"EPSG:4326", "CRS84", "EPSG:4283"} {
		RegisterTransform(code, id)
	}
	merc := Transform{ToWGS84: project.Mercator.ToWGS84, FromWGS84: project.WGS84.ToMercator}
	// 102100 and 102113 are vendor aliases for web mercator.
	for _, code := range []string{"EPSG:3857", "EPSG:900913", "EPSG:102100", "EPSG:102113"} {
		RegisterTransform(code, merc)
	}
}

// RegisterTransform makes a reference system available to Reproject. The code
// is normalized first, so "epsg:3857" and the urn spelling share one entry.
func RegisterTransform(code string, t Transform) {
	transformMu.Lock()
	transforms[NormalizeCode(code)] = t
	transformMu.Unlock()
}

// TransformFor looks up the transform registered for code.
func TransformFor(code string) (Transform, bool) {
	transformMu.RLock()
	t, ok := transforms[NormalizeCode(code)]
	transformMu.RUnlock()
	return t, ok
}

// NormalizeCode reduces the many spellings of a reference system identifier
// ("epsg:4326", "EPSG::4326", "urn:ogc:def:crs:EPSG::4326",
// "urn:ogc:def:crs:OGC:1.3:CRS84", bare "4326") to AUTHORITY:CODE.
func NormalizeCode(code string) string {
	c := strings.ToUpper(strings.TrimSpace(code))
	if c == "" {
		return ""
	}
	if strings.HasPrefix(c, "URN:") {
		parts := strings.Split(c, ":")
		if len(parts) < 6 {
			return c
		}
		auth, id := parts[4], parts[len(parts)-1]
		if auth == "OGC" {
			return id
		}
		return auth + ":" + id
	}
	c = strings.ReplaceAll(c, "::", ":")
	if !strings.Contains(c, ":") {
		if digits(c) {
			return "EPSG:" + c
		}
		return c
	}
	return c
}

func digits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Reproject converts every vertex of g from the crs reference system to
// WGS84. An unregistered crs is a recoverable no-op: the input comes back
// unchanged together with ErrNoTransform.
func Reproject(g orb.Geometry, crs string) (orb.Geometry, error) {
	code := NormalizeCode(crs)
	if code == "" || code == "CRS84" || code == WGS84 {
		return g, nil
	}
	tf, ok := TransformFor(code)
	if !ok {
		log.WithField("crs", crs).Warn("no transform for reference system, geometry left unchanged")
		return g, fmt.Errorf("reference system %q: %w", crs, ErrNoTransform)
	}
	return project.Geometry(g, tf.ToWGS84), nil
}

// CollectionCRS reads the crs annotation a converter or a legacy GeoJSON
// document left on fc. It understands both the name form
// {"type":"name","properties":{"name":...}} and the authority/code form
// {"type":"EPSG","properties":{"code":...}}. Empty means none was present
// and WGS84 is implied.
func CollectionCRS(fc *geojson.FeatureCollection) string {
	raw, ok := fc.ExtraMembers["crs"]
	if !ok {
		return ""
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return ""
	}
	typ, _ := m["type"].(string)
	props, _ := m["properties"].(map[string]interface{})
	if typ == "" || props == nil {
		return ""
	}
	if strings.EqualFold(typ, "name") {
		name, _ := props["name"].(string)
		return name
	}
	switch v := props["code"].(type) {
	case string:
		return typ + ":" + v
	case float64:
		return fmt.Sprintf("%s:%.0f", typ, v)
	}
	return ""
}

// NormalizeCollection rewrites fc in place so it leaves the pipeline in
// WGS84: geometries reprojected, the crs annotation stripped, oversized
// vertex runs thinned and the extent computed. Zero tolerance or maxRun pick
// the package defaults.
func NormalizeCollection(fc *geojson.FeatureCollection, tolDeg float64, maxRun int) (Extent, error) {
	crs := CollectionCRS(fc)
	code := NormalizeCode(crs)
	if code != "" && code != "CRS84" && code != WGS84 {
		if _, ok := TransformFor(code); !ok {
			log.WithField("crs", crs).Warn("no transform for reference system, collection left unchanged")
			return Extent{}, fmt.Errorf("normalize: reference system %q: %w", crs, ErrNoTransform)
		}
		for _, f := range fc.Features {
			if f.Geometry == nil {
				continue
			}
			g, err := Reproject(f.Geometry, code)
			if err != nil {
				return Extent{}, fmt.Errorf("normalize: %w", err)
			}
			f.Geometry = g
		}
	}
	delete(fc.ExtraMembers, "crs")
	before, after := ReduceCollection(fc, tolDeg, maxRun)
	if after < before {
		log.WithFields(log.Fields{"before": before, "after": after}).Debug("thinned oversized vertex runs")
	}
	ext, _ := CollectionExtent(fc)
	return ext, nil
}
