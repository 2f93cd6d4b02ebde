package detect

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"neuromap/api/internal/util"
)

var ErrUnsupportedImage = errors.New("unsupported image format")

// Decode reads a raster image or a DICOM file. For DICOM the first frame
// of PixelData is re-encoded as PNG so detectors only ever see rasters.
func Decode(name string, data []byte) (Image, image.Image, error) {
	if len(data) == 0 {
		return Image{}, nil, fmt.Errorf("decode %s: empty file", name)
	}
	mime := util.PickMIME("", "", data)
	if mime == util.MIMEDicom {
		return decodeDICOM(name, data)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return Image{}, nil, fmt.Errorf("decode %s: %w", name, ErrUnsupportedImage)
		}
		return Image{}, nil, fmt.Errorf("decode %s: %w", name, err)
	}
	b := img.Bounds()
	return Image{Name: name, Data: data, MIME: mime, Width: b.Dx(), Height: b.Dy()}, img, nil
}

func decodeDICOM(name string, data []byte) (Image, image.Image, error) {
	ds, err := dicom.Parse(bytes.NewReader(data), int64(len(data)), nil)
	if err != nil {
		return Image{}, nil, fmt.Errorf("decode %s: dicom: %w", name, err)
	}
	el, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return Image{}, nil, fmt.Errorf("decode %s: dicom has no pixel data: %w", name, err)
	}
	info, ok := el.Value.GetValue().(dicom.PixelDataInfo)
	if !ok || len(info.Frames) == 0 {
		return Image{}, nil, fmt.Errorf("decode %s: dicom pixel data is empty", name)
	}
	fr, err := info.Frames[0].GetImage()
	if err != nil {
		return Image{}, nil, fmt.Errorf("decode %s: dicom frame: %w", name, err)
	}
	img := stretch(fr)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Image{}, nil, fmt.Errorf("decode %s: re-encode: %w", name, err)
	}
	b := img.Bounds()
	return Image{Name: name, Data: buf.Bytes(), MIME: "image/png", Width: b.Dx(), Height: b.Dy()}, img, nil
}

// stretch растягивает 16-битный серый диапазон кадра на 8 бит (окно min..max).
func stretch(src image.Image) image.Image {
	g16, ok := src.(*image.Gray16)
	if !ok {
		return src
	}
	b := g16.Bounds()
	lo, hi := uint16(0xFFFF), uint16(0)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := g16.Gray16At(x, y).Y
			lo, hi = min(lo, v), max(hi, v)
		}
	}
	out := image.NewGray(b)
	span := uint32(hi) - uint32(lo)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var v uint8
			if span > 0 {
				v = uint8((uint32(g16.Gray16At(x, y).Y-lo) * 255) / span)
			}
			out.Pix[out.PixOffset(x, y)] = v
		}
	}
	return out
}
