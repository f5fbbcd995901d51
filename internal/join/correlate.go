package join

import (
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"
	log "github.com/sirupsen/logrus"
)

// MaxRampValue is the largest colorable value. Ramp[0] is reserved and never
// assigned.
const MaxRampValue = 10

// Ramp is the fixed ten step sequential color ramp indexed by joined value.
var Ramp = [MaxRampValue + 1]string{
	"",
	"#440154",
	"#482878",
	"#3e4989",
	"#31688e",
	"#26828e",
	"#1f9e89",
	"#35b779",
	"#6ece58",
	"#b5de2b",
	"#fde725",
}

// Correlate matches features against the table by key field and writes the
// joined value into the feature properties under the table's value label.
// When the value is an integer in [1,10] the matching ramp color is written
// too: polygons get fill and stroke, lines get stroke. Values outside the
// ramp correlate without recoloring. The return value counts matched
// features.
func Correlate(fc *geojson.FeatureCollection, table *Table) int {
	if fc == nil || table == nil {
		return 0
	}
	matched := 0
	for _, f := range fc.Features {
		raw, ok := f.Properties[table.KeyField]
		if !ok {
			continue
		}
		key := keyString(raw)
		cell, ok := table.Values[key]
		if !ok {
			continue
		}
		matched++
		f.Properties[table.ValueLabel] = cellValue(cell)
		class, ok := rampClass(cell)
		if !ok || f.Geometry == nil {
			continue
		}
		switch f.Geometry.Dimensions() {
		case 2:
			f.Properties["fill"] = Ramp[class]
			f.Properties["stroke"] = Ramp[class]
		case 1:
			f.Properties["stroke"] = Ramp[class]
		default:
			log.WithFields(log.Fields{
				"key":   key,
				"class": class,
			}).Debug("join matched a point feature, color not applied")
		}
	}
	log.WithFields(log.Fields{
		"matched": matched,
		"total":   len(fc.Features),
		"key":     table.KeyField,
	}).Debug("join table correlated")
	return matched
}

// rampClass reports whether the cell is an integer inside the ramp.
func rampClass(cell string) (int, bool) {
	v, err := strconv.Atoi(cell)
	if err != nil || v < 1 || v > MaxRampValue {
		return 0, false
	}
	return v, true
}

// cellValue types a raw CSV cell the way JSON would: integer, then float,
// then plain string.
func cellValue(cell string) interface{} {
	if v, err := strconv.Atoi(cell); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(cell, 64); err == nil {
		return v
	}
	return cell
}

// keyString renders a property value the way it would appear in a CSV cell.
// Numeric properties print without trailing zeros so 123.0 matches "123".
func keyString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	}
	return ""
}
