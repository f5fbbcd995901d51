package format

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEsriJSONPoint(t *testing.T) {
	data := `{
		"geometryType": "esriGeometryPoint",
		"spatialReference": {"wkid": 4326},
		"features": [
			{"attributes": {"NAME": "Flinders Street", "PLATFORMS": 13},
			 "geometry": {"x": 144.9671, "y": -37.8183}}
		]
	}`
	fc, err := FromEsriJSON([]byte(data))
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)

	f := fc.Features[0]
	assert.Equal(t, orb.Point{144.9671, -37.8183}, f.Geometry)
	assert.Equal(t, "Flinders Street", f.Properties["NAME"])
	assert.Nil(t, fc.ExtraMembers, "wgs84 responses need no crs annotation")
}

func TestFromEsriJSONPolylineTruncatesPaths(t *testing.T) {
	data := `{
		"geometryType": "esriGeometryPolyline",
		"spatialReference": {"wkid": 3857},
		"features": [
			{"attributes": {},
			 "geometry": {"paths": [
				[[0, 0], [10, 10], [20, 20]],
				[[100, 100], [110, 110]]
			 ]}}
		]
	}`
	fc, err := FromEsriJSON([]byte(data))
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)

	line, ok := fc.Features[0].Geometry.(orb.LineString)
	require.True(t, ok)
	assert.Len(t, line, 3, "only the first path survives")
	assert.Equal(t, orb.Point{20, 20}, line[2])

	require.Contains(t, fc.ExtraMembers, "crs")
	crs, ok := fc.ExtraMembers["crs"].(map[string]interface{})
	require.True(t, ok)
	props, ok := crs["properties"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "EPSG:3857", props["name"])
}

func TestFromEsriJSONPolygonFirstRing(t *testing.T) {
	data := `{
		"geometryType": "esriGeometryPolygon",
		"features": [
			{"attributes": {"LGA": "Melbourne"},
			 "geometry": {"rings": [
				[[0, 0], [0, 1], [1, 1], [1, 0]],
				[[0.2, 0.2], [0.2, 0.4], [0.4, 0.4]]
			 ]}}
		]
	}`
	fc, err := FromEsriJSON([]byte(data))
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)

	poly, ok := fc.Features[0].Geometry.(orb.Polygon)
	require.True(t, ok)
	require.Len(t, poly, 1, "interior rings are dropped")

	ring := poly[0]
	assert.Equal(t, ring[0], ring[len(ring)-1], "ring is closed")
	assert.Equal(t, orb.CCW, ring.Orientation())
}

func TestFromEsriJSONFeatureCollectionPassthrough(t *testing.T) {
	data := `{
		"type": "FeatureCollection",
		"features": [
			{"type": "Feature",
			 "properties": {"name": "depot"},
			 "geometry": {"type": "Point", "coordinates": [144.9, -37.8]}}
		]
	}`
	fc, err := FromEsriJSON([]byte(data))
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, orb.Point{144.9, -37.8}, fc.Features[0].Geometry)
}

func TestFromEsriJSONLatestWKID(t *testing.T) {
	data := `{
		"geometryType": "esriGeometryPoint",
		"spatialReference": {"wkid": 0, "latestWkid": 102100},
		"features": [{"attributes": {}, "geometry": {"x": 1, "y": 2}}]
	}`
	fc, err := FromEsriJSON([]byte(data))
	require.NoError(t, err)

	crs, ok := fc.ExtraMembers["crs"].(map[string]interface{})
	require.True(t, ok)
	props := crs["properties"].(map[string]interface{})
	assert.Equal(t, "EPSG:102100", props["name"])
}

func TestFromEsriJSONSkipsEmptyGeometries(t *testing.T) {
	data := `{
		"geometryType": "esriGeometryPolyline",
		"features": [
			{"attributes": {}, "geometry": {"paths": []}},
			{"attributes": {}},
			{"attributes": {}, "geometry": {"paths": [[[0, 0], [1, 1]]]}}
		]
	}`
	fc, err := FromEsriJSON([]byte(data))
	require.NoError(t, err)
	assert.Len(t, fc.Features, 1)
}

func TestFromEsriJSONMalformed(t *testing.T) {
	_, err := FromEsriJSON([]byte(`{"geometryType": "esriGeometryPoint", "features": `))
	assert.Error(t, err)
}
