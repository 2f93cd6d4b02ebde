package impact

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type Policy string

const (
	PolicyRules     Policy = "rules"
	PolicyGenerator Policy = "generator"
)

// New selects an assessor by policy. gen and enr are used by the generator policy only;
// a nil gen there still yields an assessor that always degrades.
func New(p Policy, gen Generator, enr Enricher, timeout time.Duration, log *logrus.Logger) (Assessor, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(string(p)))) {
	case "", PolicyRules:
		return Rules{}, nil
	case PolicyGenerator:
		return &Generated{Gen: gen, Enricher: enr, Timeout: timeout, Log: log}, nil
	}
	return nil, fmt.Errorf("unknown impact policy %q; use rules | generator", p)
}
