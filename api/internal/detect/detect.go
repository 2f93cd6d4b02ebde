// Package detect is the tumor detection boundary: the Detector capability,
// its HTTP and stub implementations, image decoding and annotation.
package detect

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"neuromap/api/internal/anatomy"
)

// DefaultThreshold — минимальная уверенность детекции.
const DefaultThreshold = 0.5

// Detection — один найденный объект на снимке.
type Detection struct {
	TumorType  anatomy.TumorType   `json:"tumor_type"`
	Confidence float64             `json:"confidence"`
	Box        *anatomy.Rect       `json:"box_2d,omitempty"`
	Dimensions *anatomy.Dimensions `json:"image_dimensions,omitempty"`
}

// Image is the payload handed to a detector. Data is always a raster format
// (DICOM is re-encoded to PNG by Decode).
type Image struct {
	Name   string
	Data   []byte
	MIME   string
	Width  int
	Height int
}

func (im Image) Dimensions() *anatomy.Dimensions {
	if im.Width <= 0 || im.Height <= 0 {
		return nil
	}
	return &anatomy.Dimensions{Height: im.Height, Width: im.Width}
}

type Detector interface {
	Detect(ctx context.Context, img Image) ([]Detection, error)
}

// классы модели в порядке индексов
var classes = []anatomy.TumorType{anatomy.Glioma, anatomy.Meningioma, anatomy.NoTumor, anatomy.Pituitary}

// ParseLabel accepts a class name ("Glioma", "no_tumor") or a class index 0..3.
func ParseLabel(s string) (anatomy.TumorType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n >= len(classes) {
			return "", fmt.Errorf("class index %d out of range", n)
		}
		return classes[n], nil
	}
	s = strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)
	if s == "" {
		return "", fmt.Errorf("empty class label")
	}
	if k := anatomy.TumorType(s).Known(); k != "" {
		return k, nil
	}
	return "", fmt.Errorf("unknown class label %q", s)
}

// Filter keeps detections at or above threshold. A notumor verdict is dropped
// when any tumor passes.
func Filter(dets []Detection, threshold float64) []Detection {
	var tumors, none []Detection
	for _, d := range dets {
		if d.Confidence < threshold {
			continue
		}
		if d.TumorType.Is(anatomy.NoTumor) {
			none = append(none, d)
			continue
		}
		tumors = append(tumors, d)
	}
	if len(tumors) > 0 {
		return tumors
	}
	return none
}

// Static returns fixed detections. Dimensions default to the image's.
type Static struct {
	Detections []Detection
}

func (s Static) Detect(_ context.Context, img Image) ([]Detection, error) {
	out := make([]Detection, len(s.Detections))
	copy(out, s.Detections)
	for i := range out {
		if out[i].Dimensions == nil {
			out[i].Dimensions = img.Dimensions()
		}
	}
	return out, nil
}

// NoTumorStub всегда отвечает «опухоли нет».
func NoTumorStub() Static {
	return Static{Detections: []Detection{{TumorType: anatomy.NoTumor, Confidence: 1}}}
}

// Fallback tries Primary and switches to Secondary on error.
type Fallback struct {
	Primary   Detector
	Secondary Detector
	Log       *logrus.Logger
}

func (f Fallback) Detect(ctx context.Context, img Image) ([]Detection, error) {
	dets, err := f.Primary.Detect(ctx, img)
	if err == nil || f.Secondary == nil {
		return dets, err
	}
	log := f.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log.WithError(err).WithField("image", img.Name).Warn("primary detector failed, using fallback")
	return f.Secondary.Detect(ctx, img)
}
