// Package style carries the presentation side of a layer: CSS-style colors,
// deterministic per-layer color seeding and the line/point/polygon style
// bundle the renderer backends consume.
package style

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Color is an RGBA color with channels in [0,1].
type Color struct {
	R, G, B, A float64
}

func clamp(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}

// Hex renders the color as lowercase #rrggbb. Alpha is carried separately as
// an opacity value where the consumer needs it.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x",
		uint8(math.Round(clamp(c.R)*255)),
		uint8(math.Round(clamp(c.G)*255)),
		uint8(math.Round(clamp(c.B)*255)))
}

// ParseHex reads #rgb or #rrggbb into a Color with alpha 1.
func ParseHex(s string) (Color, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(h) {
	case 3:
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	case 6:
	default:
		return Color{}, fmt.Errorf("color %q: want #rgb or #rrggbb", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("color %q: %w", s, err)
	}
	return Color{
		R: float64(v>>16&0xff) / 255,
		G: float64(v>>8&0xff) / 255,
		B: float64(v&0xff) / 255,
		A: 1,
	}, nil
}
