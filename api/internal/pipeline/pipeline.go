// Package pipeline composes detection with the anatomical mapping core:
// synthesize a 3D box, classify its region, assess the impact.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"neuromap/api/internal/anatomy"
	"neuromap/api/internal/detect"
	"neuromap/api/internal/impact"
	"neuromap/api/internal/llm"
)

// ErrDetector marks failures of the detection capability, as opposed to bad input.
var ErrDetector = errors.New("detect")

// Finding — итог по одной детекции.
type Finding struct {
	TumorType     anatomy.TumorType `json:"tumor_type"`
	Confidence    float64           `json:"confidence"`
	Box2D         *anatomy.Rect     `json:"box_2d,omitempty"`
	Coordinates3D anatomy.Box3D     `json:"coordinates_3d"`
	BrainRegion   anatomy.Region    `json:"brain_region"`
	Impact        impact.Assessment `json:"impact_data"`
}

// Report is everything a session keeps about one scan.
type Report struct {
	SessionID     string        `json:"session_id"`
	CreatedAt     time.Time     `json:"created_at"`
	ImageName     string        `json:"image_name,omitempty"`
	AnnotatedName string        `json:"annotated_name,omitempty"`
	NoTumor       bool          `json:"no_tumor"`
	Confidence    float64       `json:"confidence"`
	Findings      []Finding     `json:"findings"`
	Chat          []llm.Message `json:"chat,omitempty"`
}

// Инструменты глобального MeterProvider; без telemetry.Init это no-op.
type instruments struct {
	scans    metric.Int64Counter
	findings metric.Int64Counter
}

func newInstruments() instruments {
	m := otel.Meter("neuromap/pipeline")
	scans, _ := m.Int64Counter("neuromap.scans", metric.WithDescription("Processed scans"))
	findings, _ := m.Int64Counter("neuromap.findings", metric.WithDescription("Findings by region"))
	return instruments{scans: scans, findings: findings}
}

type Pipeline struct {
	det       detect.Detector
	synth     *anatomy.Synthesizer
	tree      anatomy.Tree
	asr       impact.Assessor
	threshold float64
	log       *logrus.Logger
	metrics   instruments
}

type Option func(*Pipeline)

func WithThreshold(th float64) Option {
	return func(p *Pipeline) {
		if th >= 0 && th <= 1 {
			p.threshold = th
		}
	}
}

func WithLogger(l *logrus.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// New wires the stages. A nil synthesizer, tree or assessor gets the default
// (time-seeded synthesizer, anatomical tree, rule tables).
func New(det detect.Detector, synth *anatomy.Synthesizer, tree anatomy.Tree, asr impact.Assessor, opts ...Option) *Pipeline {
	if synth == nil {
		synth = anatomy.NewSynthesizer(nil)
	}
	if tree == nil {
		tree = anatomy.Classify
	}
	if asr == nil {
		asr = impact.Rules{}
	}
	p := &Pipeline{
		det:       det,
		synth:     synth,
		tree:      tree,
		asr:       asr,
		threshold: detect.DefaultThreshold,
		log:       logrus.StandardLogger(),
		metrics:   newInstruments(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// WithAssessor returns a shallow copy using asr. Used for per-chat policies.
func (p *Pipeline) WithAssessor(asr impact.Assessor) *Pipeline {
	cp := *p
	if asr != nil {
		cp.asr = asr
	}
	return &cp
}

// Analyze runs synthesize → classify → assess for one detection.
// Returns false only for notumor. Without type and box the finding is placed
// at the brain center.
func (p *Pipeline) Analyze(ctx context.Context, d detect.Detection) (Finding, bool) {
	if d.TumorType.Is(anatomy.NoTumor) {
		return Finding{}, false
	}

	box := p.synth.Synthesize(d.TumorType, d.Box, d.Dimensions)
	region := p.tree(box.Center(), d.TumorType)
	a := p.asr.Assess(ctx, d.TumorType, region, box.Extents())

	p.metrics.findings.Add(ctx, 1, metric.WithAttributes(
		attribute.String("region", string(region)),
		attribute.String("level", a.Level()),
	))
	p.log.WithFields(logrus.Fields{
		"tumor_type": d.TumorType,
		"region":     region,
		"level":      a.Level(),
	}).Debug("finding analyzed")

	return Finding{
		TumorType:     d.TumorType,
		Confidence:    d.Confidence,
		Box2D:         d.Box,
		Coordinates3D: box,
		BrainRegion:   region,
		Impact:        a,
	}, true
}

// Process decodes the upload, detects, analyzes every kept detection and
// returns the report with the annotated PNG.
func (p *Pipeline) Process(ctx context.Context, name string, data []byte) (*Report, []byte, error) {
	img, raster, err := detect.Decode(name, data)
	if err != nil {
		return nil, nil, err
	}
	if p.det == nil {
		return nil, nil, fmt.Errorf("%w: no detector configured", ErrDetector)
	}
	dets, err := p.det.Detect(ctx, img)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrDetector, err)
	}
	dets = detect.Filter(dets, p.threshold)

	r := &Report{
		SessionID: uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		ImageName: name,
		Findings:  []Finding{},
	}
	for _, d := range dets {
		r.Confidence = max(r.Confidence, d.Confidence)
		if f, ok := p.Analyze(ctx, d); ok {
			r.Findings = append(r.Findings, f)
		}
	}
	r.NoTumor = len(r.Findings) == 0

	annotated, err := detect.Annotate(raster, dets)
	if err != nil {
		return nil, nil, err
	}

	p.metrics.scans.Add(ctx, 1, metric.WithAttributes(attribute.Bool("no_tumor", r.NoTumor)))
	p.log.WithFields(logrus.Fields{
		"session":    r.SessionID,
		"image":      name,
		"detections": len(dets),
		"findings":   len(r.Findings),
	}).Info("scan processed")
	return r, annotated, nil
}
