package anatomy

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang/geo/r3"
)

// TumorType — метка класса от детектора. Пустая строка означает «тип неизвестен».
type TumorType string

const (
	Glioma     TumorType = "glioma"
	Meningioma TumorType = "meningioma"
	Pituitary  TumorType = "pituitary"
	NoTumor    TumorType = "notumor"
)

// Is reports whether t names kind, case-insensitive substring match.
func (t TumorType) Is(kind TumorType) bool {
	if t == "" {
		return false
	}
	return strings.Contains(strings.ToLower(string(t)), string(kind))
}

// Known returns the canonical type t refers to, or "" if none.
func (t TumorType) Known() TumorType {
	for _, k := range []TumorType{Pituitary, Glioma, Meningioma, NoTumor} {
		if t.Is(k) {
			return k
		}
	}
	return ""
}

// Rect — 2D бокс в пикселях исходного снимка.
type Rect struct {
	X1, Y1, X2, Y2 float64
}

func (r Rect) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{r.X1, r.Y1, r.X2, r.Y2})
}

func (r *Rect) UnmarshalJSON(b []byte) error {
	var v []float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if len(v) != 4 {
		return fmt.Errorf("box_2d: want 4 values, got %d", len(v))
	}
	r.X1, r.Y1, r.X2, r.Y2 = v[0], v[1], v[2], v[3]
	return nil
}

// Dimensions — размер снимка в пикселях.
type Dimensions struct {
	Height int `json:"height"`
	Width  int `json:"width"`
}

func (d *Dimensions) valid() bool {
	return d != nil && d.Height > 0 && d.Width > 0
}

// Extents — размеры бокса по осям в нормированных координатах.
type Extents struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Depth  float64 `json:"depth"`
}

func (e Extents) Volume() float64 { return e.Width * e.Height * e.Depth }

// Box3D is a normalized box: front face BL, BR, TR, TL then back face in the same order.
type Box3D struct {
	Corners [8]r3.Vector
}

func newBox3D(c r3.Vector, e Extents) Box3D {
	x0, x1 := c.X-e.Width/2, c.X+e.Width/2
	y0, y1 := c.Y-e.Height/2, c.Y+e.Height/2
	zf, zb := c.Z-e.Depth/2, c.Z+e.Depth/2
	return Box3D{Corners: [8]r3.Vector{
		{X: x0, Y: y0, Z: zf}, {X: x1, Y: y0, Z: zf}, {X: x1, Y: y1, Z: zf}, {X: x0, Y: y1, Z: zf},
		{X: x0, Y: y0, Z: zb}, {X: x1, Y: y0, Z: zb}, {X: x1, Y: y1, Z: zb}, {X: x0, Y: y1, Z: zb},
	}}
}

// Center — середина между передним BL и задним TR углами.
func (b Box3D) Center() r3.Vector {
	return b.Corners[0].Add(b.Corners[6]).Mul(0.5)
}

func (b Box3D) Extents() Extents {
	d := b.Corners[6].Sub(b.Corners[0])
	return Extents{Width: d.X, Height: d.Y, Depth: d.Z}
}

// ZFront and ZBack are the depth planes of the front and back faces.
func (b Box3D) ZFront() float64 { return b.Corners[0].Z }
func (b Box3D) ZBack() float64  { return b.Corners[4].Z }

func (b Box3D) MarshalJSON() ([]byte, error) {
	out := make([][3]float64, len(b.Corners))
	for i, c := range b.Corners {
		out[i] = [3]float64{c.X, c.Y, c.Z}
	}
	return json.Marshal(out)
}

func (b *Box3D) UnmarshalJSON(data []byte) error {
	var raw [][3]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != len(b.Corners) {
		return fmt.Errorf("coordinates_3d: want 8 corners, got %d", len(raw))
	}
	for i, p := range raw {
		b.Corners[i] = r3.Vector{X: p[0], Y: p[1], Z: p[2]}
	}
	return nil
}
