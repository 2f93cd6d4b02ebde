package detect

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var boxColor = color.RGBA{0, 255, 0, 255}

const boxThickness = 2

// Annotate draws every detection box with a "label: conf" caption and returns PNG bytes.
// Detections without a box get only a caption in the top-left corner.
func Annotate(src image.Image, dets []Detection) ([]byte, error) {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, src, b.Min, draw.Src)

	face := basicfont.Face7x13
	ascent := face.Metrics().Ascent.Ceil()
	captionY := b.Min.Y + ascent + 2

	for _, d := range dets {
		text := fmt.Sprintf("%s: %.2f", d.TumorType, d.Confidence)
		if d.Box == nil {
			drawLabel(dst, face, text, b.Min.X+2, captionY)
			captionY += ascent + 4
			continue
		}
		r := image.Rect(int(d.Box.X1), int(d.Box.Y1), int(d.Box.X2), int(d.Box.Y2)).Canon().Intersect(b)
		if r.Empty() {
			continue
		}
		strokeRect(dst, r)
		y := r.Min.Y - 4
		if y-ascent < b.Min.Y {
			y = r.Min.Y + ascent + boxThickness
		}
		drawLabel(dst, face, text, r.Min.X, y)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode annotated image: %w", err)
	}
	return buf.Bytes(), nil
}

func strokeRect(dst *image.RGBA, r image.Rectangle) {
	fill := image.NewUniform(boxColor)
	for i := 0; i < boxThickness; i++ {
		edges := []image.Rectangle{
			image.Rect(r.Min.X, r.Min.Y+i, r.Max.X, r.Min.Y+i+1),
			image.Rect(r.Min.X, r.Max.Y-i-1, r.Max.X, r.Max.Y-i),
			image.Rect(r.Min.X+i, r.Min.Y, r.Min.X+i+1, r.Max.Y),
			image.Rect(r.Max.X-i-1, r.Min.Y, r.Max.X-i, r.Max.Y),
		}
		for _, e := range edges {
			draw.Draw(dst, e.Intersect(r), fill, image.Point{}, draw.Src)
		}
	}
}

func drawLabel(dst *image.RGBA, face font.Face, text string, x, y int) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.Black),
		Face: face,
	}
	// чёрная обводка под зелёным текстом
	for _, off := range []image.Point{{X: -1}, {X: 1}, {Y: -1}, {Y: 1}} {
		d.Dot = fixed.P(x+off.X, y+off.Y)
		d.DrawString(text)
	}
	d.Src = image.NewUniform(boxColor)
	d.Dot = fixed.P(x, y)
	d.DrawString(text)
}

// Thumbnail scales src down so its longer side is at most maxSide.
func Thumbnail(src image.Image, maxSide int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxSide <= 0 || (w <= maxSide && h <= maxSide) {
		return src
	}
	if w >= h {
		h = max(1, h*maxSide/w)
		w = maxSide
	} else {
		w = max(1, w*maxSide/h)
		h = maxSide
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}
