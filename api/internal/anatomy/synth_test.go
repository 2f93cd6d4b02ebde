package anatomy

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/golang/geo/r3"
)

const eps = 1e-9

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestSynthesizeStaysInsideUnitCube(t *testing.T) {
	cases := []struct {
		name string
		typ  TumorType
		box  *Rect
		dims *Dimensions
	}{
		{"glioma", Glioma, nil, nil},
		{"meningioma", Meningioma, nil, nil},
		{"pituitary", Pituitary, nil, nil},
		{"fallback", "", nil, nil},
		{"unknown type", "astrocytoma", nil, nil},
		{"box", "", &Rect{10, 10, 50, 50}, &Dimensions{Height: 100, Width: 100}},
		{"box at edge", "", &Rect{0, 0, 5, 100}, &Dimensions{Height: 100, Width: 100}},
		{"box larger than image", "", &Rect{-50, -50, 400, 400}, &Dimensions{Height: 100, Width: 100}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for seed := uint64(0); seed < 200; seed++ {
				b := NewSeeded(seed).Synthesize(tc.typ, tc.box, tc.dims)
				for i, c := range b.Corners {
					for _, v := range []float64{c.X, c.Y, c.Z} {
						if v < -eps || v > 1+eps {
							t.Fatalf("seed %d corner %d out of unit cube: %+v", seed, i, c)
						}
					}
				}
				e := b.Extents()
				if e.Depth <= 0 {
					t.Fatalf("seed %d: depth %v <= 0", seed, e.Depth)
				}
				if !near(b.ZBack()-b.ZFront(), e.Depth, eps) {
					t.Fatalf("seed %d: z_back-z_front=%v, depth=%v", seed, b.ZBack()-b.ZFront(), e.Depth)
				}
			}
		})
	}
}

func TestSynthesizeCornerOrder(t *testing.T) {
	b := NewSeeded(1).Synthesize("", nil, nil)
	c := b.Corners
	// front BL, BR, TR, TL
	if !(c[0].X < c[1].X && c[1].Y < c[2].Y && c[3].X < c[2].X && c[0].Y == c[1].Y) {
		t.Fatalf("front face winding wrong: %+v", c[:4])
	}
	for i := 0; i < 4; i++ {
		if c[i].X != c[i+4].X || c[i].Y != c[i+4].Y {
			t.Fatalf("back corner %d does not mirror front: %+v vs %+v", i, c[i], c[i+4])
		}
		if c[i].Z >= c[i+4].Z {
			t.Fatalf("front z %v must be below back z %v", c[i].Z, c[i+4].Z)
		}
	}
}

func TestSynthesizeFromBox(t *testing.T) {
	b := NewSeeded(7).Synthesize("", &Rect{10, 10, 50, 50}, &Dimensions{Height: 100, Width: 100})
	c, e := b.Center(), b.Extents()
	if !near(c.X, 0.3, eps) || !near(c.Y, 0.3, eps) || !near(c.Z, 0.5, eps) {
		t.Fatalf("center = %+v, want (0.3,0.3,0.5)", c)
	}
	if !near(e.Width, 0.4, eps) || !near(e.Height, 0.4, eps) || !near(e.Depth, 0.15, eps) {
		t.Fatalf("extents = %+v, want 0.4x0.4x0.15", e)
	}
}

func TestSynthesizeBoxUsesAxisDimensions(t *testing.T) {
	// width 200, height 100: x normalized by 200, y by 100
	b := NewSeeded(7).Synthesize("", &Rect{20, 10, 100, 30}, &Dimensions{Height: 100, Width: 200})
	c, e := b.Center(), b.Extents()
	if !near(c.X, 0.3, eps) || !near(c.Y, 0.2, eps) {
		t.Fatalf("center = %+v, want (0.3,0.2,_)", c)
	}
	if !near(e.Width, 0.4, eps) || !near(e.Height, 0.2, eps) {
		t.Fatalf("extents = %+v", e)
	}
}

func TestSynthesizeDegenerateBox(t *testing.T) {
	cases := []struct {
		name string
		box  *Rect
		dims *Dimensions
		want Extents
	}{
		{"zero area", &Rect{30, 30, 30, 30}, &Dimensions{100, 100}, Extents{0.15, 0.15, 0.15}},
		{"zero width", &Rect{30, 10, 30, 50}, &Dimensions{100, 100}, Extents{0.15, 0.4, 0.15}},
		{"no dims", &Rect{10, 10, 50, 50}, nil, Extents{0.15, 0.15, 0.15}},
		{"zero dims", &Rect{10, 10, 50, 50}, &Dimensions{0, 0}, Extents{0.15, 0.15, 0.15}},
		{"swapped corners", &Rect{50, 50, 10, 10}, &Dimensions{100, 100}, Extents{0.4, 0.4, 0.15}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := NewSeeded(3).Synthesize("", tc.box, tc.dims).Extents()
			if !near(e.Width, tc.want.Width, eps) || !near(e.Height, tc.want.Height, eps) || !near(e.Depth, tc.want.Depth, eps) {
				t.Fatalf("extents = %+v, want %+v", e, tc.want)
			}
		})
	}
}

func TestSynthesizeGliomaMatchesSeed(t *testing.T) {
	for seed := uint64(0); seed < 100; seed++ {
		b := NewSeeded(seed).Synthesize(Glioma, nil, nil)
		c, e := b.Center(), b.Extents()

		if !near(e.Width, e.Height, eps) || !near(e.Width, e.Depth, eps) {
			t.Fatalf("glioma extents not uniform: %+v", e)
		}
		k := e.Width / 0.15
		if k < 0.8-eps || k > 1.2+eps {
			t.Fatalf("glioma scale %v outside [0.8,1.2]", k)
		}
		if !nearAnySeed(c, GliomaSeeds, 0.05+eps) {
			t.Fatalf("seed %d: glioma center %+v not within jitter of any seed", seed, c)
		}
	}
}

func TestSynthesizeMeningioma(t *testing.T) {
	for seed := uint64(0); seed < 100; seed++ {
		b := NewSeeded(seed).Synthesize("Meningioma", nil, nil)
		e := b.Extents()
		if !near(e.Width, 0.17, eps) || !near(e.Height, 0.17, eps) || !near(e.Depth, 0.15, eps) {
			t.Fatalf("meningioma extents = %+v", e)
		}
		if !nearAnySeed(b.Center(), MeningiomaSeeds, 0.05+eps) {
			t.Fatalf("seed %d: meningioma center %+v not near any seed", seed, b.Center())
		}
	}
}

func TestSynthesizePituitary(t *testing.T) {
	for seed := uint64(0); seed < 100; seed++ {
		b := NewSeeded(seed).Synthesize("pituitary", &Rect{0, 0, 90, 90}, &Dimensions{100, 100})
		c, e := b.Center(), b.Extents()
		if !near(e.Width, 0.1, eps) || !near(e.Depth, 0.1, eps) {
			t.Fatalf("pituitary extents = %+v", e)
		}
		if !near(c.X, 0.5, 0.025+eps) || !near(c.Y, 0.25, 0.025+eps) || !near(c.Z, 0.65, 0.025+eps) {
			t.Fatalf("pituitary center = %+v", c)
		}
	}
}

func TestSynthesizeFallback(t *testing.T) {
	for _, typ := range []TumorType{"", NoTumor, "unknown"} {
		b := NewSeeded(1).Synthesize(typ, nil, nil)
		c, e := b.Center(), b.Extents()
		if !near(c.X, 0.5, eps) || !near(c.Y, 0.5, eps) || !near(c.Z, 0.5, eps) {
			t.Fatalf("%q: center = %+v", typ, c)
		}
		if !near(e.Width, 0.15, eps) {
			t.Fatalf("%q: extents = %+v", typ, e)
		}
	}
}

func TestSynthesizeSameSeedSameBox(t *testing.T) {
	for _, typ := range []TumorType{Glioma, Meningioma, Pituitary} {
		a := NewSeeded(42).Synthesize(typ, nil, nil)
		b := NewSeeded(42).Synthesize(typ, nil, nil)
		if a != b {
			t.Fatalf("%s: same seed gave different boxes:\n%+v\n%+v", typ, a, b)
		}
	}
}

func TestBox3DJSON(t *testing.T) {
	b := NewSeeded(1).Synthesize("", nil, nil)
	raw, err := json.Marshal(b)
	if err != nil {
		t.Fatal(err)
	}
	var pts [][]float64
	if err := json.Unmarshal(raw, &pts); err != nil {
		t.Fatalf("coordinates must be a list of points: %v", err)
	}
	if len(pts) != 8 || len(pts[0]) != 3 {
		t.Fatalf("got shape %dx%d", len(pts), len(pts[0]))
	}
	var back Box3D
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatal(err)
	}
	if back != b {
		t.Fatalf("decoded box differs")
	}
}

func nearAnySeed(c r3.Vector, seeds []r3.Vector, tol float64) bool {
	for _, s := range seeds {
		// центр мог быть подвинут clamp-ом к границе, допуск по оси
		if near(c.X, s.X, tol) && near(c.Y, s.Y, tol) && near(c.Z, s.Z, tol) {
			return true
		}
	}
	return false
}
