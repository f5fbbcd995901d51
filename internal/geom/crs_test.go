package geom

import (
	"testing"

	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCode(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"epsg:4326", "EPSG:4326"},
		{"EPSG::3857", "EPSG:3857"},
		{"urn:ogc:def:crs:EPSG::4326", "EPSG:4326"},
		{"urn:ogc:def:crs:OGC:1.3:CRS84", "CRS84"},
		{"4283", "EPSG:4283"},
		{"CRS84", "CRS84"},
		{" epsg:900913 ", "EPSG:900913"},
		{"", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, NormalizeCode(c.in), "input %q", c.in)
	}
}

func TestReprojectIdentity(t *testing.T) {
	p := orb.Point{151.2093, -33.8688}
	for _, crs := range []string{"", "EPSG:4326", "CRS84", "EPSG:4283"} {
		got, err := Reproject(p, crs)
		require.NoError(t, err, "crs %q", crs)
		assert.Equal(t, p, got)
	}
}

func TestReprojectMercatorRoundTrip(t *testing.T) {
	want := orb.LineString{{144.9631, -37.8136}, {151.2093, -33.8688}}
	merc := project.Geometry(orb.Clone(want), project.WGS84.ToMercator)

	got, err := Reproject(merc, "EPSG:3857")
	require.NoError(t, err)
	ls, ok := got.(orb.LineString)
	require.True(t, ok)
	require.Len(t, ls, len(want))
	for i := range want {
		assert.InDelta(t, want[i][0], ls[i][0], 1e-6)
		assert.InDelta(t, want[i][1], ls[i][1], 1e-6)
	}
}

func TestReprojectUnknownCRS(t *testing.T) {
	in := orb.Point{500000, 6000000}
	got, err := Reproject(in, "EPSG:28356")
	require.ErrorIs(t, err, ErrNoTransform)
	assert.Equal(t, in, got, "input must come back unchanged")
}

func TestCollectionCRS(t *testing.T) {
	t.Run("name form", func(t *testing.T) {
		fc := geojson.NewFeatureCollection()
		fc.ExtraMembers = geojson.Properties{
			"crs": map[string]interface{}{
				"type":       "name",
				"properties": map[string]interface{}{"name": "urn:ogc:def:crs:EPSG::3857"},
			},
		}
		assert.Equal(t, "EPSG:3857", NormalizeCode(CollectionCRS(fc)))
	})

	t.Run("code form", func(t *testing.T) {
		fc := geojson.NewFeatureCollection()
		fc.ExtraMembers = geojson.Properties{
			"crs": map[string]interface{}{
				"type":       "EPSG",
				"properties": map[string]interface{}{"code": float64(4326)},
			},
		}
		assert.Equal(t, "EPSG:4326", CollectionCRS(fc))
	})

	t.Run("absent", func(t *testing.T) {
		assert.Equal(t, "", CollectionCRS(geojson.NewFeatureCollection()))
	})
}

func TestNormalizeCollection(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	merc := project.WGS84.ToMercator(orb.Point{145.0, -37.8})
	fc.Append(geojson.NewFeature(merc))
	fc.ExtraMembers = geojson.Properties{
		"crs": map[string]interface{}{
			"type":       "name",
			"properties": map[string]interface{}{"name": "EPSG:3857"},
		},
	}

	ext, err := NormalizeCollection(fc, 0, 0)
	require.NoError(t, err)

	pt, ok := fc.Features[0].Geometry.(orb.Point)
	require.True(t, ok)
	assert.InDelta(t, 145.0, pt[0], 1e-6)
	assert.InDelta(t, -37.8, pt[1], 1e-6)
	assert.InDelta(t, 145.0, ext.West, 1e-6)
	assert.InDelta(t, -37.8, ext.North, 1e-6)
	_, has := fc.ExtraMembers["crs"]
	assert.False(t, has, "crs annotation must be stripped")
}

func TestNormalizeCollectionUnknownCRS(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Point{500000, 6000000}))
	fc.ExtraMembers = geojson.Properties{
		"crs": map[string]interface{}{
			"type":       "name",
			"properties": map[string]interface{}{"name": "EPSG:28356"},
		},
	}
	_, err := NormalizeCollection(fc, 0, 0)
	require.ErrorIs(t, err, ErrNoTransform)
	// The collection stays in its source system for the caller to discard.
	assert.Equal(t, orb.Point{500000, 6000000}, fc.Features[0].Geometry)
}

func TestCovering(t *testing.T) {
	ext := Extent{West: 144, South: -39, East: 146, North: -37}
	tokens := Covering(ext, 8)
	require.NotEmpty(t, tokens)
	assert.LessOrEqual(t, len(tokens), 8)
	for _, tok := range tokens {
		assert.True(t, s2.CellIDFromToken(tok).IsValid(), "token %q", tok)
	}
	assert.Nil(t, Covering(Extent{}, 8))
}
