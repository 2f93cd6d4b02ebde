package pipeline

import (
	"gonum.org/v1/gonum/stat"

	"neuromap/api/internal/advisor"
)

// Нормализованные координаты переводим в сантиметры.
const cmPerUnit = 10.0

// Size is a finding's extents in centimeters.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Depth  float64 `json:"depth"`
}

// Largest returns the biggest of the three sides.
func (s Size) Largest() float64 { return max(s.Width, s.Height, s.Depth) }

type Summary struct {
	TotalTumors    int            `json:"total_tumors"`
	TumorTypes     map[string]int `json:"tumor_types"`
	RiskLevels     map[string]int `json:"risk_levels"`
	Regions        map[string]int `json:"regions"`
	MeanConfidence float64        `json:"mean_confidence"`
	MeanVolume     float64        `json:"mean_volume"`
	Sizes          []Size         `json:"sizes"`
}

func SizeOf(f Finding) Size {
	e := f.Coordinates3D.Extents()
	return Size{Width: e.Width * cmPerUnit, Height: e.Height * cmPerUnit, Depth: e.Depth * cmPerUnit}
}

// Summarize aggregates a report for the dashboard.
func Summarize(r *Report) Summary {
	s := Summary{
		TumorTypes: map[string]int{},
		RiskLevels: map[string]int{},
		Regions:    map[string]int{},
		Sizes:      []Size{},
	}
	if r == nil || len(r.Findings) == 0 {
		return s
	}
	conf := make([]float64, 0, len(r.Findings))
	vol := make([]float64, 0, len(r.Findings))
	for _, f := range r.Findings {
		s.TumorTypes[string(f.TumorType)]++
		s.RiskLevels[f.Impact.Level()]++
		s.Regions[string(f.BrainRegion)]++
		s.Sizes = append(s.Sizes, SizeOf(f))
		conf = append(conf, f.Confidence)
		vol = append(vol, f.Coordinates3D.Extents().Volume())
	}
	s.TotalTumors = len(r.Findings)
	s.MeanConfidence = stat.Mean(conf, nil)
	s.MeanVolume = stat.Mean(vol, nil)
	return s
}

// TumorContexts turns findings into the advisor's patient context.
func TumorContexts(r *Report) []advisor.TumorContext {
	if r == nil {
		return nil
	}
	out := make([]advisor.TumorContext, 0, len(r.Findings))
	for _, f := range r.Findings {
		out = append(out, advisor.TumorContext{
			Type:     string(f.TumorType),
			Location: string(f.BrainRegion),
			Size:     SizeOf(f).Largest(),
		})
	}
	return out
}
