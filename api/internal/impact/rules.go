package impact

import (
	"context"
	"strings"

	"neuromap/api/internal/anatomy"
)

const (
	highVolume   = 0.004
	mediumVolume = 0.002
)

type family struct {
	match     []string
	cognitive []string
	motor     []string
	sensory   []string
	// стороны тела противоположны полушарию
	leftMotor, rightMotor     string
	leftSensory, rightSensory string
	critical                  bool
}

// Порядок важен: срабатывает только первое совпадение.
var families = []family{
	{
		match:      []string{"Frontal"},
		cognitive:  []string{"Executive function", "Decision making", "Personality changes"},
		leftMotor:  "Right side weakness",
		rightMotor: "Left side weakness",
	},
	{
		match:        []string{"Temporal"},
		cognitive:    []string{"Memory", "Language comprehension", "Emotional processing"},
		leftSensory:  "Right visual field deficits",
		rightSensory: "Left visual field deficits",
	},
	{
		match:      []string{"Parietal"},
		sensory:    []string{"Spatial awareness", "Sensory processing"},
		leftMotor:  "Right side coordination",
		rightMotor: "Left side coordination",
	},
	{
		match:   []string{"Occipital"},
		sensory: []string{"Visual processing", "Visual field deficits"},
	},
	{
		match: []string{"Cerebellum", "Cerebellar"},
		motor: []string{"Balance", "Coordination", "Fine motor skills"},
	},
	{
		match:    []string{"Brainstem", "Brain Stem"},
		motor:    []string{"Basic life functions", "Cranial nerve function"},
		critical: true,
	},
}

func (f family) matches(region string) bool {
	for _, m := range f.match {
		if strings.Contains(region, m) {
			return true
		}
	}
	return false
}

// Rules is the table-driven assessor. It has no external dependencies.
type Rules struct{}

func (Rules) Assess(_ context.Context, t anatomy.TumorType, region anatomy.Region, e anatomy.Extents) Assessment {
	a := blank()
	a.RiskLevel, a.Urgency = byVolume(e.Volume())

	r := string(region)
	for _, f := range families {
		if !f.matches(r) {
			continue
		}
		a.CognitiveImpact = append(a.CognitiveImpact, f.cognitive...)
		a.MotorImpact = append(a.MotorImpact, f.motor...)
		a.SensoryImpact = append(a.SensoryImpact, f.sensory...)
		switch {
		case strings.Contains(r, "Left"):
			a.MotorImpact = appendNonEmpty(a.MotorImpact, f.leftMotor)
			a.SensoryImpact = appendNonEmpty(a.SensoryImpact, f.leftSensory)
		case strings.Contains(r, "Right"):
			a.MotorImpact = appendNonEmpty(a.MotorImpact, f.rightMotor)
			a.SensoryImpact = appendNonEmpty(a.SensoryImpact, f.rightSensory)
		}
		if f.critical {
			a.RiskLevel, a.Urgency = High, Immediate
		}
		break
	}

	switch {
	case t.Is(anatomy.Glioma):
		a.CognitiveImpact = append(a.CognitiveImpact, "Progressive cognitive decline")
		// Нижняя граница только для риска; срочность остаётся от объёма.
		if rank(a.RiskLevel) < rank(Medium) {
			a.RiskLevel = Medium
		}
	case t.Is(anatomy.Meningioma):
		a.CognitiveImpact = append(a.CognitiveImpact, "Gradual cognitive changes")
	case t.Is(anatomy.Pituitary):
		a.SensoryImpact = append(a.SensoryImpact, "Visual field deficits", "Hormonal imbalances")
	}
	return a
}

func byVolume(v float64) (risk, urgency string) {
	switch {
	case v > highVolume:
		return High, Immediate
	case v > mediumVolume:
		return Medium, Urgent
	}
	return Low, Routine
}

func rank(level string) int {
	switch level {
	case Low:
		return 1
	case Medium:
		return 2
	case High:
		return 3
	}
	return 0
}

func appendNonEmpty(s []string, v string) []string {
	if v == "" {
		return s
	}
	return append(s, v)
}
