package impact

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"neuromap/api/internal/anatomy"
	"neuromap/api/internal/util"
)

// ErrNoGenerator is logged when the generator policy runs without an engine.
var ErrNoGenerator = errors.New("impact: generator not configured")

// Generator is an opaque text generator (an LLM engine).
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Enricher дополняет оценку лечением, симптомами и источниками.
type Enricher interface {
	TreatmentOptions(ctx context.Context, tumorType string) (string, error)
	Symptoms(ctx context.Context, tumorType, location string) (string, error)
	Sources() []string
}

// Generated wraps generator output as potential_effects. Failures degrade,
// they are never returned.
type Generated struct {
	Gen      Generator
	Enricher Enricher
	Timeout  time.Duration
	Log      *logrus.Logger
}

func Prompt(t anatomy.TumorType, region anatomy.Region, e anatomy.Extents) string {
	return fmt.Sprintf(
		"Tell me about %s tumors in the %s region of size %.3fx%.3fx%.3f (normalized width x height x depth). "+
			"Describe the potential effects on cognitive, motor and sensory function.",
		t, region, e.Width, e.Height, e.Depth)
}

func (g *Generated) Assess(ctx context.Context, t anatomy.TumorType, region anatomy.Region, e anatomy.Extents) Assessment {
	log := g.logger().WithFields(logrus.Fields{"tumor_type": t, "region": region})

	text, err := g.generate(ctx, Prompt(t, region, e))
	if err != nil {
		log.WithError(err).Warn("impact generator failed")
		return Degraded()
	}

	var a Assessment
	if strings.TrimSpace(text) == "" {
		log.Warn("impact generator returned empty text")
		a = Fallback(t, region)
	} else {
		a = blank()
		a.Severity = Moderate
		a.PotentialEffects = text
	}

	if g.Enricher != nil {
		g.enrich(ctx, log, &a, t, region)
	}
	return a
}

func (g *Generated) generate(ctx context.Context, prompt string) (text string, err error) {
	if g.Gen == nil {
		return "", ErrNoGenerator
	}
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}
	defer func() {
		// мусор от движка не должен ронять запрос
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("impact generator panic: %v", r)
		}
	}()
	out, err := g.Gen.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(util.StripCodeFences(out)), nil
}

func (g *Generated) enrich(ctx context.Context, log *logrus.Entry, a *Assessment, t anatomy.TumorType, region anatomy.Region) {
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 2*g.Timeout)
		defer cancel()
	}
	if s, err := g.Enricher.TreatmentOptions(ctx, string(t)); err != nil {
		log.WithError(err).Debug("treatment options unavailable")
	} else {
		a.TreatmentOptions = s
	}
	if s, err := g.Enricher.Symptoms(ctx, string(t), string(region)); err != nil {
		log.WithError(err).Debug("symptoms unavailable")
	} else {
		a.Symptoms = s
	}
	a.Sources = g.Enricher.Sources()
}

func (g *Generated) logger() *logrus.Logger {
	if g.Log != nil {
		return g.Log
	}
	return logrus.StandardLogger()
}
