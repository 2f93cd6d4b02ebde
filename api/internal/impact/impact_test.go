package impact

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"neuromap/api/internal/anatomy"
)

func cube(s float64) anatomy.Extents { return anatomy.Extents{Width: s, Height: s, Depth: s} }

func TestRulesVolumeThresholds(t *testing.T) {
	cases := []struct {
		name          string
		ext           anatomy.Extents
		risk, urgency string
	}{
		{"large", cube(0.2), High, Immediate},
		{"medium", anatomy.Extents{Width: 0.15, Height: 0.15, Depth: 0.1}, Medium, Urgent},
		{"small", cube(0.1), Low, Routine},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := Rules{}.Assess(context.Background(), "", anatomy.Thalamus, tc.ext)
			if a.RiskLevel != tc.risk || a.Urgency != tc.urgency {
				t.Fatalf("got %s/%s, want %s/%s", a.RiskLevel, a.Urgency, tc.risk, tc.urgency)
			}
		})
	}
}

func TestRulesBrainstemForcesHigh(t *testing.T) {
	for _, r := range []anatomy.Region{anatomy.BrainstemPosterior, anatomy.BrainstemAnterior, anatomy.BrainStem} {
		a := Rules{}.Assess(context.Background(), anatomy.Meningioma, r, cube(0.05))
		if a.RiskLevel != High || a.Urgency != Immediate {
			t.Fatalf("%s: got %s/%s", r, a.RiskLevel, a.Urgency)
		}
		if !reflect.DeepEqual(a.MotorImpact, []string{"Basic life functions", "Cranial nerve function"}) {
			t.Fatalf("%s: motor = %v", r, a.MotorImpact)
		}
	}
}

func TestRulesRegionImpacts(t *testing.T) {
	cases := []struct {
		region                  anatomy.Region
		cognitive, motor, senso []string
	}{
		{anatomy.LeftFrontalLobe,
			[]string{"Executive function", "Decision making", "Personality changes"},
			[]string{"Right side weakness"}, []string{}},
		{anatomy.RightFrontalParietalJunction,
			[]string{"Executive function", "Decision making", "Personality changes"},
			[]string{"Left side weakness"}, []string{}},
		{anatomy.FrontalLobeMidline,
			[]string{"Executive function", "Decision making", "Personality changes"},
			[]string{}, []string{}},
		{anatomy.LeftTemporalLobeAnterior,
			[]string{"Memory", "Language comprehension", "Emotional processing"},
			[]string{}, []string{"Right visual field deficits"}},
		{anatomy.RightMidTemporalLobe,
			[]string{"Memory", "Language comprehension", "Emotional processing"},
			[]string{}, []string{"Left visual field deficits"}},
		{anatomy.LeftParietalLobe,
			[]string{}, []string{"Right side coordination"}, []string{"Spatial awareness", "Sensory processing"}},
		{anatomy.RightParietalLobe,
			[]string{}, []string{"Left side coordination"}, []string{"Spatial awareness", "Sensory processing"}},
		{anatomy.OccipitalLobeMidline,
			[]string{}, []string{}, []string{"Visual processing", "Visual field deficits"}},
		{anatomy.Cerebellum,
			[]string{}, []string{"Balance", "Coordination", "Fine motor skills"}, []string{}},
		{anatomy.LeftCerebellarHemisphere,
			[]string{}, []string{"Balance", "Coordination", "Fine motor skills"}, []string{}},
		{anatomy.Thalamus, []string{}, []string{}, []string{}},
		// первое совпадение выигрывает
		{anatomy.TemporalOccipitalJunction,
			[]string{"Memory", "Language comprehension", "Emotional processing"}, []string{}, []string{}},
	}
	for _, tc := range cases {
		t.Run(string(tc.region), func(t *testing.T) {
			a := Rules{}.Assess(context.Background(), "", tc.region, cube(0.1))
			if !reflect.DeepEqual(a.CognitiveImpact, tc.cognitive) {
				t.Errorf("cognitive = %v, want %v", a.CognitiveImpact, tc.cognitive)
			}
			if !reflect.DeepEqual(a.MotorImpact, tc.motor) {
				t.Errorf("motor = %v, want %v", a.MotorImpact, tc.motor)
			}
			if !reflect.DeepEqual(a.SensoryImpact, tc.senso) {
				t.Errorf("sensory = %v, want %v", a.SensoryImpact, tc.senso)
			}
		})
	}
}

func TestRulesTumorTypeAdditions(t *testing.T) {
	ctx := context.Background()

	g := Rules{}.Assess(ctx, "Glioma", anatomy.Thalamus, cube(0.1))
	if g.RiskLevel != Medium || g.Urgency != Routine {
		t.Fatalf("glioma floor: got %s/%s", g.RiskLevel, g.Urgency)
	}
	// срочность берётся из объёма, пол её не трогает
	pp := Rules{}.Assess(ctx, anatomy.Glioma, anatomy.LeftParietalLobe, cube(0.1))
	if pp.RiskLevel != Medium || pp.Urgency != Routine {
		t.Fatalf("small parietal glioma: got %s/%s", pp.RiskLevel, pp.Urgency)
	}
	if last := g.CognitiveImpact[len(g.CognitiveImpact)-1]; last != "Progressive cognitive decline" {
		t.Fatalf("glioma cognitive = %v", g.CognitiveImpact)
	}

	// floor never lowers an existing High
	big := Rules{}.Assess(ctx, anatomy.Glioma, anatomy.Thalamus, cube(0.2))
	if big.RiskLevel != High || big.Urgency != Immediate {
		t.Fatalf("large glioma: got %s/%s", big.RiskLevel, big.Urgency)
	}

	m := Rules{}.Assess(ctx, anatomy.Meningioma, anatomy.Thalamus, cube(0.1))
	if !reflect.DeepEqual(m.CognitiveImpact, []string{"Gradual cognitive changes"}) || m.RiskLevel != Low {
		t.Fatalf("meningioma = %+v", m)
	}

	p := Rules{}.Assess(ctx, anatomy.Pituitary, anatomy.PituitaryFossa, cube(0.1))
	if !reflect.DeepEqual(p.SensoryImpact, []string{"Visual field deficits", "Hormonal imbalances"}) {
		t.Fatalf("pituitary sensory = %v", p.SensoryImpact)
	}
}

type fakeGen struct {
	text   string
	err    error
	panics bool
	prompt string
}

func (f *fakeGen) Generate(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	if f.panics {
		panic("boom")
	}
	return f.text, f.err
}

type fakeEnricher struct{ fail bool }

func (f fakeEnricher) TreatmentOptions(context.Context, string) (string, error) {
	if f.fail {
		return "", errors.New("down")
	}
	return "surgery", nil
}

func (f fakeEnricher) Symptoms(_ context.Context, _, location string) (string, error) {
	if f.fail {
		return "", errors.New("down")
	}
	return "headache near " + location, nil
}

func (fakeEnricher) Sources() []string { return []string{"https://www.cancer.gov/types/brain"} }

func quietLogger() *logrus.Logger {
	l, _ := test.NewNullLogger()
	return l
}

func TestGeneratedSuccess(t *testing.T) {
	gen := &fakeGen{text: "```\nMay affect memory.\n```"}
	g := &Generated{Gen: gen, Timeout: time.Second, Log: quietLogger()}
	a := g.Assess(context.Background(), anatomy.Glioma, anatomy.LeftTemporalLobe, cube(0.15))

	if a.Severity != Moderate || a.RiskLevel != "" {
		t.Fatalf("severity/risk = %q/%q", a.Severity, a.RiskLevel)
	}
	if a.PotentialEffects != "May affect memory." {
		t.Fatalf("potential_effects = %q", a.PotentialEffects)
	}
	if !strings.Contains(gen.prompt, "glioma") || !strings.Contains(gen.prompt, "Left Temporal Lobe") || !strings.Contains(gen.prompt, "0.150x0.150x0.150") {
		t.Fatalf("prompt lacks inputs: %q", gen.prompt)
	}
	if a.CognitiveImpact == nil || len(a.MotorImpact) != 0 {
		t.Fatalf("lists must be empty and non-nil: %+v", a)
	}
}

func TestGeneratedFailureDegrades(t *testing.T) {
	cases := []struct {
		name string
		gen  Generator
	}{
		{"error", &fakeGen{err: errors.New("502 bad gateway")}},
		{"panic", &fakeGen{panics: true}},
		{"no generator", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			logger, hook := test.NewNullLogger()
			g := &Generated{Gen: tc.gen, Log: logger}
			a := g.Assess(context.Background(), anatomy.Meningioma, anatomy.Thalamus, cube(0.1))
			if a.Severity != Unknown || a.RiskLevel != Unknown {
				t.Fatalf("got %q/%q", a.Severity, a.RiskLevel)
			}
			if a.PotentialEffects == "" {
				t.Fatal("fallback text must be non-empty")
			}
			if len(a.CognitiveImpact)+len(a.MotorImpact)+len(a.SensoryImpact) != 0 {
				t.Fatalf("lists must be empty: %+v", a)
			}
			if hook.LastEntry() == nil || hook.LastEntry().Level != logrus.WarnLevel {
				t.Fatal("failure must be logged as a warning")
			}
		})
	}
}

func TestGeneratedEmptyTextUsesStaticNarrative(t *testing.T) {
	g := &Generated{Gen: &fakeGen{text: "   "}, Log: quietLogger()}
	a := g.Assess(context.Background(), anatomy.Glioma, anatomy.Thalamus, cube(0.1))
	if a.Severity != Moderate {
		t.Fatalf("severity = %q", a.Severity)
	}
	want := "A glioma tumor in the Thalamus region may affect various functions"
	if !strings.HasPrefix(a.PotentialEffects, want) {
		t.Fatalf("potential_effects = %q", a.PotentialEffects)
	}
}

func TestGeneratedEnrichment(t *testing.T) {
	g := &Generated{Gen: &fakeGen{text: "ok"}, Enricher: fakeEnricher{}, Log: quietLogger()}
	a := g.Assess(context.Background(), anatomy.Glioma, anatomy.Thalamus, cube(0.1))
	if a.TreatmentOptions != "surgery" || a.Symptoms != "headache near Thalamus" || len(a.Sources) != 1 {
		t.Fatalf("enrichment missing: %+v", a)
	}

	g.Enricher = fakeEnricher{fail: true}
	a = g.Assess(context.Background(), anatomy.Glioma, anatomy.Thalamus, cube(0.1))
	if a.Severity != Moderate || a.TreatmentOptions != "" || a.Symptoms != "" {
		t.Fatalf("enricher failure must not degrade: %+v", a)
	}
}

func TestNewPolicy(t *testing.T) {
	if a, err := New("rules", nil, nil, 0, nil); err != nil {
		t.Fatal(err)
	} else if _, ok := a.(Rules); !ok {
		t.Fatalf("rules policy gave %T", a)
	}
	if a, err := New("Generator", &fakeGen{}, nil, time.Second, nil); err != nil {
		t.Fatal(err)
	} else if _, ok := a.(*Generated); !ok {
		t.Fatalf("generator policy gave %T", a)
	}
	if _, err := New("astrology", nil, nil, 0, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestLevel(t *testing.T) {
	if (Assessment{RiskLevel: High}).Level() != High {
		t.Fatal("risk level first")
	}
	if (Assessment{Severity: Moderate}).Level() != Moderate {
		t.Fatal("severity second")
	}
	if (Assessment{}).Level() != Unknown {
		t.Fatal("unknown by default")
	}
}
