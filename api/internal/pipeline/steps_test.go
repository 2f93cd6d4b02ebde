package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
	"testing"

	"github.com/cucumber/godog"
	"github.com/sirupsen/logrus/hooks/test"

	"neuromap/api/internal/anatomy"
	"neuromap/api/internal/detect"
	"neuromap/api/internal/impact"
)

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

type downGenerator struct{}

func (downGenerator) Generate(context.Context, string) (string, error) {
	return "", errors.New("503 service unavailable")
}

// scenarioState holds one scenario's inputs and the processed report.
type scenarioState struct {
	image  []byte
	dets   []detect.Detection
	asr    impact.Assessor
	report *Report
}

func InitializeScenario(sc *godog.ScenarioContext) {
	st := &scenarioState{}

	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		*st = scenarioState{}
		return ctx, nil
	})

	sc.Step(`^a (\d+)x(\d+) scan$`, st.aScan)
	sc.Step(`^the detector reports an untyped box (\d+),(\d+),(\d+),(\d+) with confidence ([\d.]+)$`, st.untypedBox)
	sc.Step(`^the detector reports "([^"]*)" with confidence ([\d.]+)$`, st.typed)
	sc.Step(`^the impact generator is down$`, st.generatorDown)
	sc.Step(`^the scan is processed$`, st.process)
	sc.Step(`^there is (\d+) finding$`, st.findingCount)
	sc.Step(`^the finding center is ([\d.]+),([\d.]+),([\d.]+)$`, st.centerIs)
	sc.Step(`^the finding extents are ([\d.]+),([\d.]+),([\d.]+)$`, st.extentsAre)
	sc.Step(`^the finding region is "([^"]*)"$`, st.regionIs)
	sc.Step(`^the risk level is "([^"]*)"$`, st.riskIs)
	sc.Step(`^the risk level is not "([^"]*)"$`, st.riskIsNot)
	sc.Step(`^the severity is "([^"]*)"$`, st.severityIs)
	sc.Step(`^the potential effects are not empty$`, st.effectsNotEmpty)
	sc.Step(`^all corners are inside the unit cube$`, st.cornersInside)
	sc.Step(`^the report says no tumor$`, st.noTumor)
}

func (st *scenarioState) aScan(w, h int) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		return err
	}
	st.image = buf.Bytes()
	return nil
}

func (st *scenarioState) untypedBox(x1, y1, x2, y2 int, conf float64) error {
	st.dets = append(st.dets, detect.Detection{
		Confidence: conf,
		Box:        &anatomy.Rect{X1: float64(x1), Y1: float64(y1), X2: float64(x2), Y2: float64(y2)},
	})
	return nil
}

func (st *scenarioState) typed(label string, conf float64) error {
	t, err := detect.ParseLabel(label)
	if err != nil {
		return err
	}
	st.dets = append(st.dets, detect.Detection{TumorType: t, Confidence: conf})
	return nil
}

func (st *scenarioState) generatorDown() error {
	log, _ := test.NewNullLogger()
	asr, err := impact.New(impact.PolicyGenerator, downGenerator{}, nil, 0, log)
	st.asr = asr
	return err
}

func (st *scenarioState) process() error {
	log, _ := test.NewNullLogger()
	p := New(detect.Static{Detections: st.dets}, anatomy.NewSeeded(42), nil, st.asr, WithLogger(log))
	r, _, err := p.Process(context.Background(), "scan.png", st.image)
	st.report = r
	return err
}

func (st *scenarioState) finding() (Finding, error) {
	if st.report == nil || len(st.report.Findings) == 0 {
		return Finding{}, fmt.Errorf("no findings")
	}
	return st.report.Findings[0], nil
}

func (st *scenarioState) findingCount(n int) error {
	if got := len(st.report.Findings); got != n {
		return fmt.Errorf("expected %d findings, got %d", n, got)
	}
	return nil
}

func closeTo(got, want float64) bool { return math.Abs(got-want) < 1e-6 }

func (st *scenarioState) centerIs(x, y, z float64) error {
	f, err := st.finding()
	if err != nil {
		return err
	}
	c := f.Coordinates3D.Center()
	if !closeTo(c.X, x) || !closeTo(c.Y, y) || !closeTo(c.Z, z) {
		return fmt.Errorf("center = %v", c)
	}
	return nil
}

func (st *scenarioState) extentsAre(w, h, d float64) error {
	f, err := st.finding()
	if err != nil {
		return err
	}
	e := f.Coordinates3D.Extents()
	if !closeTo(e.Width, w) || !closeTo(e.Height, h) || !closeTo(e.Depth, d) {
		return fmt.Errorf("extents = %+v", e)
	}
	return nil
}

func (st *scenarioState) regionIs(region string) error {
	f, err := st.finding()
	if err != nil {
		return err
	}
	if string(f.BrainRegion) != region {
		return fmt.Errorf("region = %q", f.BrainRegion)
	}
	return nil
}

func (st *scenarioState) riskIs(level string) error {
	f, err := st.finding()
	if err != nil {
		return err
	}
	if f.Impact.RiskLevel != level {
		return fmt.Errorf("risk level = %q", f.Impact.RiskLevel)
	}
	return nil
}

func (st *scenarioState) riskIsNot(level string) error {
	f, err := st.finding()
	if err != nil {
		return err
	}
	if f.Impact.RiskLevel == level {
		return fmt.Errorf("risk level must not be %q", level)
	}
	return nil
}

func (st *scenarioState) severityIs(s string) error {
	f, err := st.finding()
	if err != nil {
		return err
	}
	if f.Impact.Severity != s {
		return fmt.Errorf("severity = %q", f.Impact.Severity)
	}
	return nil
}

func (st *scenarioState) effectsNotEmpty() error {
	f, err := st.finding()
	if err != nil {
		return err
	}
	if f.Impact.PotentialEffects == "" {
		return fmt.Errorf("potential effects are empty")
	}
	return nil
}

func (st *scenarioState) cornersInside() error {
	f, err := st.finding()
	if err != nil {
		return err
	}
	for i, c := range f.Coordinates3D.Corners {
		for _, v := range []float64{c.X, c.Y, c.Z} {
			if v < 0 || v > 1 {
				return fmt.Errorf("corner %d out of unit cube: %v", i, c)
			}
		}
	}
	return nil
}

func (st *scenarioState) noTumor() error {
	if !st.report.NoTumor {
		return fmt.Errorf("expected no tumor, got %d findings", len(st.report.Findings))
	}
	return nil
}
