package style

import (
	"math/rand/v2"
)

// Palette bounds the channels a seeded color may use. Keeping the floor well
// above zero avoids colors that vanish against dark basemaps.
type Palette struct {
	MinRed, MaxRed     float64
	MinGreen, MaxGreen float64
	MinBlue, MaxBlue   float64
	Alpha              float64
}

// LinePalette is used for line and polygon colors.
var LinePalette = Palette{
	MinRed: 0.4, MaxRed: 0.9,
	MinGreen: 0.4, MaxGreen: 0.9,
	MinBlue: 0.4, MaxBlue: 0.9,
	Alpha: 1,
}

// PointPalette skews brighter so markers stand out.
var PointPalette = Palette{
	MinRed: 0.6, MaxRed: 1,
	MinGreen: 0.6, MaxGreen: 1,
	MinBlue: 0.6, MaxBlue: 1,
	Alpha: 1,
}

// ColorFromSeed derives a color within p's bounds from seed. It is a pure
// function: the same seed always yields the same color, and no shared
// random state is touched.
func ColorFromSeed(p Palette, seed []byte) Color {
	var sum uint64
	for _, b := range seed {
		sum += uint64(b)
	}
	r := rand.New(rand.NewPCG(sum, uint64(len(seed))))
	span := func(lo, hi float64) float64 {
		if hi <= lo {
			return lo
		}
		return lo + r.Float64()*(hi-lo)
	}
	return Color{
		R: span(p.MinRed, p.MaxRed),
		G: span(p.MinGreen, p.MaxGreen),
		B: span(p.MinBlue, p.MaxBlue),
		A: p.Alpha,
	}
}
