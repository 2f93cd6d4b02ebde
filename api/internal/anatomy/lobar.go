package anatomy

import "github.com/golang/geo/r3"

const (
	LeftTemporalLobeAnterior  Region = "Left Temporal Lobe (Anterior)"
	RightTemporalLobeAnterior Region = "Right Temporal Lobe (Anterior)"
	TemporalPole              Region = "Temporal Pole"

	LeftTemporalLobePosterior  Region = "Left Temporal Lobe (Posterior)"
	RightTemporalLobePosterior Region = "Right Temporal Lobe (Posterior)"
	TemporalOccipitalJunction  Region = "Temporal-Occipital Junction"

	LeftTemporalLobe    Region = "Left Temporal Lobe"
	RightTemporalLobe   Region = "Right Temporal Lobe"
	TemporalLobeMidline Region = "Temporal Lobe (Midline)"

	BrainstemAnterior  Region = "Brainstem (Anterior)"
	Cerebellum         Region = "Cerebellum"
	BrainstemPosterior Region = "Brainstem (Posterior)"
)

// Lobar is the coarser tree: everything below the upper band is temporal,
// cerebellum or brainstem, so it never yields a catch-all label.
func Lobar(c r3.Vector, t TumorType) Region {
	if t.Is(Pituitary) {
		return PituitaryFossa
	}
	x, y, z := c.X, c.Y, c.Z

	switch {
	case y > 0.55:
		return upperBand(x, z)
	case y > 0.35:
		switch {
		case z > 0.6:
			return side(x, LeftTemporalLobeAnterior, RightTemporalLobeAnterior, TemporalPole)
		case z < 0.4:
			return side(x, LeftTemporalLobePosterior, RightTemporalLobePosterior, TemporalOccipitalJunction)
		}
		return side(x, LeftTemporalLobe, RightTemporalLobe, TemporalLobeMidline)
	case z > 0.5:
		return BrainstemAnterior
	case y > 0.25:
		return Cerebellum
	}
	return BrainstemPosterior
}
