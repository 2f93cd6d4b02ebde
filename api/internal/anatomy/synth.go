package anatomy

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/golang/geo/r3"
)

const (
	defaultExtent = 0.15
	defaultDepth  = 0.15

	pituitaryExtent = 0.1
	pituitaryJitter = 0.025
	seedJitter      = 0.05

	gliomaScaleMin = 0.8
	gliomaScaleMax = 1.2
)

var (
	brainCenter     = r3.Vector{X: 0.5, Y: 0.5, Z: 0.5}
	pituitaryCenter = r3.Vector{X: 0.5, Y: 0.25, Z: 0.65}

	// GliomaSeeds: лобные, теменные, височные L/R, затылочная, мозжечок, ствол.
	GliomaSeeds = []r3.Vector{
		{X: 0.3, Y: 0.75, Z: 0.7}, {X: 0.7, Y: 0.75, Z: 0.7},
		{X: 0.3, Y: 0.75, Z: 0.4}, {X: 0.7, Y: 0.75, Z: 0.4},
		{X: 0.2, Y: 0.5, Z: 0.6}, {X: 0.8, Y: 0.5, Z: 0.6},
		{X: 0.5, Y: 0.7, Z: 0.2},
		{X: 0.5, Y: 0.3, Z: 0.2},
		{X: 0.5, Y: 0.25, Z: 0.4},
	}

	// MeningiomaSeeds: парасагиттальная, конвекситальные, крылья клиновидной кости,
	// ольфакторная ямка, задняя черепная ямка.
	MeningiomaSeeds = []r3.Vector{
		{X: 0.5, Y: 0.9, Z: 0.5},
		{X: 0.2, Y: 0.85, Z: 0.5}, {X: 0.8, Y: 0.85, Z: 0.5},
		{X: 0.2, Y: 0.5, Z: 0.8}, {X: 0.8, Y: 0.5, Z: 0.8},
		{X: 0.5, Y: 0.4, Z: 0.9},
		{X: 0.5, Y: 0.3, Z: 0.1},
	}

	meningiomaExtents = Extents{Width: 0.17, Height: 0.17, Depth: 0.15}
)

// Synthesizer places tumors inside the unit brain volume.
// Safe for concurrent use; the rng is guarded by a mutex.
type Synthesizer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSynthesizer: nil rng — сид от текущего времени.
func NewSynthesizer(rng *rand.Rand) *Synthesizer {
	if rng == nil {
		s := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))
	}
	return &Synthesizer{rng: rng}
}

// NewSeeded is shorthand for a reproducible synthesizer.
func NewSeeded(seed uint64) *Synthesizer {
	return NewSynthesizer(rand.New(rand.NewPCG(seed, seed)))
}

// Synthesize builds a normalized 3D box for one detection. A known tumor type
// wins over the box; without either the box sits at the brain center.
func (s *Synthesizer) Synthesize(t TumorType, box *Rect, dims *Dimensions) Box3D {
	s.mu.Lock()
	center, ext := s.place(t, box, dims)
	s.mu.Unlock()

	center.X = clampAxis(center.X, ext.Width)
	center.Y = clampAxis(center.Y, ext.Height)
	center.Z = clampAxis(center.Z, ext.Depth)
	return newBox3D(center, ext)
}

func (s *Synthesizer) place(t TumorType, box *Rect, dims *Dimensions) (r3.Vector, Extents) {
	switch t.Known() {
	case Pituitary:
		c := pituitaryCenter.Add(s.jitter(pituitaryJitter))
		return c, Extents{Width: pituitaryExtent, Height: pituitaryExtent, Depth: pituitaryExtent}
	case Glioma:
		c := GliomaSeeds[s.rng.IntN(len(GliomaSeeds))].Add(s.jitter(seedJitter))
		k := gliomaScaleMin + s.rng.Float64()*(gliomaScaleMax-gliomaScaleMin)
		e := defaultExtent * k
		return c, Extents{Width: e, Height: e, Depth: e}
	case Meningioma:
		c := MeningiomaSeeds[s.rng.IntN(len(MeningiomaSeeds))].Add(s.jitter(seedJitter))
		return c, meningiomaExtents
	}
	if t == "" && box != nil && dims.valid() {
		return fromBox(*box, *dims)
	}
	return brainCenter, Extents{Width: defaultExtent, Height: defaultExtent, Depth: defaultExtent}
}

func (s *Synthesizer) jitter(a float64) r3.Vector {
	return r3.Vector{X: s.uniform(a), Y: s.uniform(a), Z: s.uniform(a)}
}

func (s *Synthesizer) uniform(a float64) float64 {
	return s.rng.Float64()*2*a - a
}

// fromBox — плоская экструзия 2D бокса: глубина фиксирована, центр по z = 0.5.
func fromBox(b Rect, d Dimensions) (r3.Vector, Extents) {
	w, h := float64(d.Width), float64(d.Height)
	x1, x2 := math.Min(b.X1, b.X2)/w, math.Max(b.X1, b.X2)/w
	y1, y2 := math.Min(b.Y1, b.Y2)/h, math.Max(b.Y1, b.Y2)/h

	c := r3.Vector{X: (x1 + x2) / 2, Y: (y1 + y2) / 2, Z: 0.5}
	if math.IsNaN(c.X) {
		c.X = 0.5
	}
	if math.IsNaN(c.Y) {
		c.Y = 0.5
	}
	return c, Extents{
		Width:  sanitizeExtent(x2 - x1),
		Height: sanitizeExtent(y2 - y1),
		Depth:  defaultDepth,
	}
}

func sanitizeExtent(e float64) float64 {
	switch {
	case math.IsNaN(e) || e <= 0:
		return defaultExtent
	case e > 1:
		return 1
	}
	return e
}

func clampAxis(c, ext float64) float64 {
	lo, hi := ext/2, 1-ext/2
	if c < lo {
		return lo
	}
	if c > hi {
		return hi
	}
	return c
}
