package style

// LineStyle styles linework.
type LineStyle struct {
	Color string  `json:"color" yaml:"color"`
	Width float64 `json:"width" yaml:"width"`
}

// PointStyle styles markers.
type PointStyle struct {
	Color string  `json:"color" yaml:"color"`
	Size  float64 `json:"size" yaml:"size"`
}

// PolygonStyle styles fills.
type PolygonStyle struct {
	Fill    string  `json:"fill" yaml:"fill"`
	Stroke  string  `json:"stroke" yaml:"stroke"`
	Opacity float64 `json:"opacity" yaml:"opacity"`
}

// Style is the presentation bundle attached to a vector layer.
type Style struct {
	Line    LineStyle    `json:"line" yaml:"line"`
	Point   PointStyle   `json:"point" yaml:"point"`
	Polygon PolygonStyle `json:"polygon" yaml:"polygon"`
}

// Default returns the house style.
func Default() Style {
	return Style{
		Line:    LineStyle{Color: "#3388ff", Width: 2},
		Point:   PointStyle{Color: "#2266cc", Size: 8},
		Polygon: PolygonStyle{Fill: "#3388ff", Stroke: "#2266cc", Opacity: 0.7},
	}
}

// ForName derives a stable style from a layer name, so a layer keeps its
// colors across reloads without any stored state.
func ForName(name string) Style {
	line := ColorFromSeed(LinePalette, []byte(name))
	point := ColorFromSeed(PointPalette, []byte(name))
	return Style{
		Line:    LineStyle{Color: line.Hex(), Width: 2},
		Point:   PointStyle{Color: point.Hex(), Size: 8},
		Polygon: PolygonStyle{Fill: line.Hex(), Stroke: point.Hex(), Opacity: 0.7},
	}
}
