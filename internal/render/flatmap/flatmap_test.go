package flatmap

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-view/internal/format"
	"github.com/joeblew999/plat-view/internal/geom"
	"github.com/joeblew999/plat-view/internal/layer"
)

func collectionAround(center orb.Point) *geojson.FeatureCollection {
	d := 0.01
	fc := geojson.NewFeatureCollection()
	ring := orb.Ring{
		{center[0] - d, center[1] - d},
		{center[0] + d, center[1] - d},
		{center[0] + d, center[1] + d},
		{center[0] - d, center[1] + d},
		{center[0] - d, center[1] - d},
	}
	poly := geojson.NewFeature(orb.Polygon{ring})
	poly.Properties["name"] = "box"
	fc.Append(poly)
	fc.Append(geojson.NewFeature(orb.Point{center[0], center[1]}))
	return fc
}

func featureLayer(name string, fc *geojson.FeatureCollection) *layer.Layer {
	return &layer.Layer{Name: name, Kind: layer.Feature, Collection: fc}
}

func TestOrderMirrorsRegistry(t *testing.T) {
	m := New()
	r := layer.New(m)
	center := orb.Point{145.0, -37.8}

	require.NoError(t, r.Add(featureLayer("F1", collectionAround(center))))
	require.NoError(t, r.Add(&layer.Layer{Name: "I1", Kind: layer.Imagery}))
	require.NoError(t, r.Add(featureLayer("F2", collectionAround(center))))
	require.NoError(t, r.Add(&layer.Layer{Name: "I2", Kind: layer.Imagery}))

	assert.Equal(t, r.Names(), m.Order(), "backend order tracks the registry")

	r.MoveDown("I2")
	assert.Equal(t, r.Names(), m.Order())
	r.MoveUp("I2")
	assert.Equal(t, r.Names(), m.Order())

	r.RemoveName("F1")
	assert.Equal(t, r.Names(), m.Order())
}

func TestRaiseLowerClampAtEnds(t *testing.T) {
	m := New()
	_, err := m.Attach(&layer.Layer{Name: "only", Kind: layer.Imagery})
	require.NoError(t, err)

	assert.NoError(t, m.Raise("only"))
	assert.NoError(t, m.Lower("only"))
	assert.Equal(t, []string{"only"}, m.Order())

	assert.Error(t, m.Raise("ghost"))
	assert.Error(t, m.Lower("ghost"))
}

func TestRejectsCZML(t *testing.T) {
	m := New()
	r := layer.New(m)
	err := r.Add(&layer.Layer{
		Name:     "flight path",
		Kind:     layer.Feature,
		Format:   format.CZML,
		Document: []byte(`[{"id":"document","version":"1.0"}]`),
	})
	assert.Error(t, err)
	assert.Zero(t, r.Len())
	assert.False(t, m.Has("flight path"))
}

func TestRenderTileRoundTrip(t *testing.T) {
	m := New()
	r := layer.New(m)
	center := orb.Point{145.0, -37.8}

	require.NoError(t, r.Add(featureLayer("upper", collectionAround(center))))
	require.NoError(t, r.Add(featureLayer("lower", collectionAround(center))))
	// registry order is [upper lower]; paint order is bottom first

	tile := maptile.At(center, 14)
	data, err := m.RenderTile(tile)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	layers, err := mvt.UnmarshalGzipped(data)
	require.NoError(t, err)
	require.Len(t, layers, 2)
	assert.Equal(t, "lower", layers[0].Name)
	assert.Equal(t, "upper", layers[1].Name)
	assert.NotEmpty(t, layers[0].Features)

	found := false
	for _, f := range layers[1].Features {
		if f.Properties["name"] == "box" {
			found = true
		}
	}
	assert.True(t, found, "properties survive the tile encoding")
}

func TestRenderTileSkipsHiddenAndDistant(t *testing.T) {
	m := New()
	r := layer.New(m)
	center := orb.Point{145.0, -37.8}
	require.NoError(t, r.Add(featureLayer("roads", collectionAround(center))))

	faraway := maptile.At(orb.Point{0.0, 50.0}, 10)
	data, err := m.RenderTile(faraway)
	require.NoError(t, err)
	assert.Empty(t, data)

	r.Show("roads", false)
	assert.False(t, m.Visible("roads"))
	data, err = m.RenderTile(maptile.At(center, 10))
	require.NoError(t, err)
	assert.Empty(t, data, "hidden overlays render nothing")
}

func TestCoveringTiles(t *testing.T) {
	e := geom.Extent{West: 144.0, South: -38.5, East: 146.0, North: -37.0}
	tiles := CoveringTiles(e, 8)
	assert.NotEmpty(t, tiles)
	for _, tl := range tiles {
		assert.True(t, tl.Bound().Intersects(e.Bound()))
	}

	assert.Nil(t, CoveringTiles(geom.Extent{}, 8))
}
