package impact

import (
	"context"
	"fmt"

	"neuromap/api/internal/anatomy"
)

// Уровни риска (rule-based).
const (
	Low     = "Low"
	Medium  = "Medium"
	High    = "High"
	Unknown = "Unknown"
)

// Срочность.
const (
	Routine   = "Routine"
	Urgent    = "Urgent"
	Immediate = "Immediate"
)

// Moderate is the generator-mode severity. It lives in its own string space
// and is never compared with risk levels.
const Moderate = "Moderate"

const unavailableText = "Unable to generate impact data"

// Assessment — результат оценки влияния опухоли для одной детекции.
type Assessment struct {
	RiskLevel string `json:"risk_level,omitempty"`
	Severity  string `json:"severity,omitempty"`
	Urgency   string `json:"urgency,omitempty"`

	CognitiveImpact []string `json:"cognitive_impact"`
	MotorImpact     []string `json:"motor_impact"`
	SensoryImpact   []string `json:"sensory_impact"`

	PotentialEffects string   `json:"potential_effects,omitempty"`
	TreatmentOptions string   `json:"treatment_options,omitempty"`
	Symptoms         string   `json:"symptoms,omitempty"`
	Sources          []string `json:"sources,omitempty"`
}

// Level is the label dashboards group by: risk level, else severity.
func (a Assessment) Level() string {
	if a.RiskLevel != "" {
		return a.RiskLevel
	}
	if a.Severity != "" {
		return a.Severity
	}
	return Unknown
}

func blank() Assessment {
	return Assessment{
		CognitiveImpact: []string{},
		MotorImpact:     []string{},
		SensoryImpact:   []string{},
	}
}

// Degraded is returned when the generator cannot produce anything usable.
func Degraded() Assessment {
	a := blank()
	a.Severity = Unknown
	a.RiskLevel = Unknown
	a.PotentialEffects = unavailableText
	return a
}

// Fallback — статичный текст, когда генератор ответил пустотой.
func Fallback(t anatomy.TumorType, region anatomy.Region) Assessment {
	a := blank()
	a.Severity = Moderate
	a.PotentialEffects = fmt.Sprintf(
		"A %s tumor in the %s region may affect various functions depending on its size and exact location. "+
			"Please consult a medical professional for specific information.", t, region)
	return a
}

// Assessor maps (type, region, extents) to an assessment. Implementations never fail.
type Assessor interface {
	Assess(ctx context.Context, t anatomy.TumorType, region anatomy.Region, e anatomy.Extents) Assessment
}
