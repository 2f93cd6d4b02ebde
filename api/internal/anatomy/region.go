package anatomy

import (
	"fmt"
	"strings"

	"github.com/golang/geo/r3"
)

// Region — имя анатомической области.
type Region string

const (
	PituitaryFossa Region = "Pituitary Fossa"

	LeftFrontalLobe    Region = "Left Frontal Lobe"
	RightFrontalLobe   Region = "Right Frontal Lobe"
	FrontalLobeMidline Region = "Frontal Lobe (Midline)"

	LeftOccipitalLobe    Region = "Left Occipital Lobe"
	RightOccipitalLobe   Region = "Right Occipital Lobe"
	OccipitalLobeMidline Region = "Occipital Lobe (Midline)"

	LeftFrontalParietalJunction  Region = "Left Frontal-Parietal Junction"
	RightFrontalParietalJunction Region = "Right Frontal-Parietal Junction"
	SuperiorFrontalGyrus         Region = "Superior Frontal Gyrus"

	LeftParietalLobe    Region = "Left Parietal Lobe"
	RightParietalLobe   Region = "Right Parietal Lobe"
	ParietalLobeMidline Region = "Parietal Lobe (Midline)"

	LeftAnteriorTemporalLobe   Region = "Left Anterior Temporal Lobe"
	LeftPosteriorTemporalLobe  Region = "Left Posterior Temporal Lobe"
	LeftMidTemporalLobe        Region = "Left Mid-Temporal Lobe"
	RightAnteriorTemporalLobe  Region = "Right Anterior Temporal Lobe"
	RightPosteriorTemporalLobe Region = "Right Posterior Temporal Lobe"
	RightMidTemporalLobe       Region = "Right Mid-Temporal Lobe"

	AnteriorCingulateCortex  Region = "Anterior Cingulate Cortex"
	PosteriorCingulateCortex Region = "Posterior Cingulate Cortex"
	Thalamus                 Region = "Thalamus"

	CerebellumVermis          Region = "Cerebellum (Vermis)"
	LeftCerebellarHemisphere  Region = "Left Cerebellar Hemisphere"
	RightCerebellarHemisphere Region = "Right Cerebellar Hemisphere"
	OrbitalFrontalCortex      Region = "Orbital Frontal Cortex"
	BrainStem                 Region = "Brain Stem"
	PonsMedulla               Region = "Pons/Medulla"
	Hypothalamus              Region = "Hypothalamus"
	Midbrain                  Region = "Midbrain"
	LeftInsula                Region = "Left Insula"
	RightInsula               Region = "Right Insula"
	LeftHippocampus           Region = "Left Hippocampus"
	RightHippocampus          Region = "Right Hippocampus"
	DeepBrainStructures       Region = "Deep Brain Structures"
	UndeterminedBrainRegion   Region = "Undetermined Brain Region"
)

// Tree maps a normalized center to a region. Implementations are pure.
type Tree func(c r3.Vector, t TumorType) Region

const (
	TreeAnatomical = "anatomical"
	TreeLobar      = "lobar"
)

// TreeByName: "" → anatomical.
func TreeByName(name string) (Tree, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", TreeAnatomical:
		return Anatomical, nil
	case TreeLobar:
		return Lobar, nil
	}
	return nil, fmt.Errorf("unknown region tree %q", name)
}

// Classify uses the canonical anatomical tree.
func Classify(c r3.Vector, t TumorType) Region { return Anatomical(c, t) }

func side(x float64, left, right, mid Region) Region {
	switch {
	case x < 0.4:
		return left
	case x > 0.6:
		return right
	}
	return mid
}

// upperBand — общая для обоих деревьев часть, y > 0.55.
func upperBand(x, z float64) Region {
	switch {
	case z > 0.65:
		return side(x, LeftFrontalLobe, RightFrontalLobe, FrontalLobeMidline)
	case z < 0.35:
		return side(x, LeftOccipitalLobe, RightOccipitalLobe, OccipitalLobeMidline)
	case z > 0.5:
		return side(x, LeftFrontalParietalJunction, RightFrontalParietalJunction, SuperiorFrontalGyrus)
	}
	return side(x, LeftParietalLobe, RightParietalLobe, ParietalLobeMidline)
}

// Anatomical is the canonical tree. First match wins; unmatched cells fall to
// the deep-brain / undetermined catch-all.
func Anatomical(c r3.Vector, t TumorType) Region {
	if t.Is(Pituitary) {
		return PituitaryFossa
	}
	x, y, z := c.X, c.Y, c.Z

	if y > 0.55 {
		return upperBand(x, z)
	}
	if y > 0.35 && y < 0.6 {
		if r, ok := temporalBand(x, z); ok {
			return r
		}
	}
	if y < 0.35 {
		if r, ok := lowerBand(x, y, z); ok {
			return r
		}
	}

	if inRange(x, 0.4, 0.6) && inRange(y, 0.4, 0.6) && inRange(z, 0.4, 0.6) {
		return DeepBrainStructures
	}
	return UndeterminedBrainRegion
}

func temporalBand(x, z float64) (Region, bool) {
	third := func(ant, post, mid Region) Region {
		switch {
		case z > 0.6:
			return ant
		case z < 0.4:
			return post
		}
		return mid
	}
	switch {
	case x < 0.3:
		return third(LeftAnteriorTemporalLobe, LeftPosteriorTemporalLobe, LeftMidTemporalLobe), true
	case x > 0.7:
		return third(RightAnteriorTemporalLobe, RightPosteriorTemporalLobe, RightMidTemporalLobe), true
	case inRange(x, 0.4, 0.6):
		return third(AnteriorCingulateCortex, PosteriorCingulateCortex, Thalamus), true
	}
	return "", false
}

func lowerBand(x, y, z float64) (Region, bool) {
	if y < 0.2 {
		switch {
		case z < 0.4:
			switch {
			case inRange(x, 0.4, 0.6):
				return CerebellumVermis, true
			case x < 0.4:
				return LeftCerebellarHemisphere, true
			}
			return RightCerebellarHemisphere, true
		case z > 0.6:
			return OrbitalFrontalCortex, true
		case inRange(x, 0.45, 0.55):
			return BrainStem, true
		}
		return PonsMedulla, true
	}

	midline := inRange(x, 0.45, 0.55)
	switch {
	case midline && z > 0.55:
		return Hypothalamus, true
	case midline && inRange(z, 0.45, 0.55):
		return Midbrain, true
	case x < 0.4 && z > 0.5:
		return LeftInsula, true
	case x > 0.6 && z > 0.5:
		return RightInsula, true
	case x < 0.4 && z < 0.5:
		return LeftHippocampus, true
	case x > 0.6 && z < 0.5:
		return RightHippocampus, true
	}
	return "", false
}

func inRange(v, lo, hi float64) bool { return v >= lo && v <= hi }
