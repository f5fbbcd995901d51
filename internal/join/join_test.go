package join

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTable(t *testing.T) {
	data := `LGA_CODE, Risk Rating
20660, 3
21180 , 7
24600,10
26980
`
	table, err := ParseTable([]byte(data))
	require.NoError(t, err)

	assert.Equal(t, "LGA_CODE", table.KeyField)
	assert.Equal(t, "Risk Rating", table.ValueLabel)
	assert.Equal(t, map[string]string{"20660": "3", "21180": "7", "24600": "10"}, table.Values)
}

func TestParseTableErrors(t *testing.T) {
	_, err := ParseTable([]byte(""))
	assert.Error(t, err)

	_, err = ParseTable([]byte("justonecolumn\n1\n"))
	assert.Error(t, err)
}

func feature(g orb.Geometry, key string, code interface{}) *geojson.Feature {
	f := geojson.NewFeature(g)
	f.Properties[key] = code
	return f
}

func TestCorrelate(t *testing.T) {
	table := &Table{
		KeyField:   "id",
		ValueLabel: "score",
		Values:     map[string]string{"A": "7", "B": "11", "C": "1", "D": "high"},
	}

	fc := geojson.NewFeatureCollection()
	fc.Append(feature(orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}, "id", "A"))
	fc.Append(feature(orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}, "id", "B"))
	fc.Append(feature(orb.LineString{{0, 0}, {1, 1}}, "id", "C"))
	fc.Append(feature(orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}, "id", "D"))
	fc.Append(feature(orb.Point{0, 0}, "id", "Z"))
	fc.Append(feature(orb.Point{1, 1}, "other", "A"))

	matched := Correlate(fc, table)
	assert.Equal(t, 4, matched)

	colored := fc.Features[0]
	assert.Equal(t, 7, colored.Properties["score"])
	assert.Equal(t, Ramp[7], colored.Properties["fill"])
	assert.Equal(t, Ramp[7], colored.Properties["stroke"])

	outOfRange := fc.Features[1]
	assert.Equal(t, 11, outOfRange.Properties["score"], "out of range values still correlate")
	assert.NotContains(t, outOfRange.Properties, "fill")

	line := fc.Features[2]
	assert.Equal(t, Ramp[1], line.Properties["stroke"])
	assert.NotContains(t, line.Properties, "fill")

	text := fc.Features[3]
	assert.Equal(t, "high", text.Properties["score"])
	assert.NotContains(t, text.Properties, "fill")

	assert.NotContains(t, fc.Features[4].Properties, "score")
	assert.NotContains(t, fc.Features[5].Properties, "score")
}

func TestCorrelatePointRecordsValueOnly(t *testing.T) {
	table := &Table{
		KeyField:   "id",
		ValueLabel: "score",
		Values:     map[string]string{"A": "4"},
	}
	fc := geojson.NewFeatureCollection()
	fc.Append(feature(orb.Point{145.0, -37.8}, "id", "A"))

	assert.Equal(t, 1, Correlate(fc, table))
	assert.Equal(t, 4, fc.Features[0].Properties["score"])
	assert.NotContains(t, fc.Features[0].Properties, "fill")
	assert.NotContains(t, fc.Features[0].Properties, "stroke")
}

func TestCorrelateNumericKeyFormatting(t *testing.T) {
	table := &Table{
		KeyField:   "id",
		ValueLabel: "v",
		Values:     map[string]string{"7": "2", "7.5": "4"},
	}
	fc := geojson.NewFeatureCollection()
	fc.Append(feature(orb.Point{0, 0}, "id", float64(7)))
	fc.Append(feature(orb.Point{0, 0}, "id", 7.5))

	assert.Equal(t, 2, Correlate(fc, table))
	assert.Equal(t, 2, fc.Features[0].Properties["v"])
	assert.Equal(t, 4, fc.Features[1].Properties["v"])
}

func TestCellValueTyping(t *testing.T) {
	assert.Equal(t, 3, cellValue("3"))
	assert.Equal(t, 2.5, cellValue("2.5"))
	assert.Equal(t, "n/a", cellValue("n/a"))
}

func TestRamp(t *testing.T) {
	assert.Empty(t, Ramp[0], "index zero is reserved")
	for i := 1; i <= MaxRampValue; i++ {
		assert.Len(t, Ramp[i], 7)
	}
}
