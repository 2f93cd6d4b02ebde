// Package app builds the shared object graph for both binaries from config.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"neuromap/api/internal/advisor"
	"neuromap/api/internal/anatomy"
	"neuromap/api/internal/config"
	"neuromap/api/internal/detect"
	"neuromap/api/internal/impact"
	"neuromap/api/internal/llm"
	"neuromap/api/internal/llm/gemini"
	"neuromap/api/internal/llm/openai"
	"neuromap/api/internal/pipeline"
	"neuromap/api/internal/store"
)

type App struct {
	Engines   *llm.Engines
	Generator llm.Engine // nil: генератор не настроен
	Advisor   *advisor.Bot
	Detector  detect.Detector
	Pipeline  *pipeline.Pipeline
	Sessions  store.Sessions
	Checks    map[string]func(context.Context) error

	closers []func() error
}

// Build wires engines, detector, pipeline and the session store.
func Build(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*App, error) {
	a := &App{Checks: map[string]func(context.Context) error{}}

	a.Engines = buildEngines(cfg)
	if eng, err := a.Engines.GetEngine(cfg.GeneratorEngine); err == nil {
		a.Generator = eng
		a.Advisor = advisor.New(eng)
	} else {
		log.WithError(err).WithField("engine", cfg.GeneratorEngine).Warn("generator disabled")
	}

	det, err := buildDetector(cfg, log)
	if err != nil {
		return nil, err
	}
	a.Detector = det
	if h, ok := det.(*detect.HTTP); ok {
		a.Checks["detector"] = h.CheckHealth
	}

	tree, err := anatomy.TreeByName(cfg.RegionTree)
	if err != nil {
		return nil, err
	}
	synth := anatomy.NewSynthesizer(nil)
	if cfg.SynthSeed > 0 {
		synth = anatomy.NewSeeded(cfg.SynthSeed)
	}
	asr, err := a.Assessor(impact.Policy(cfg.ImpactPolicy), a.Generator, cfg, log)
	if err != nil {
		return nil, err
	}
	a.Pipeline = pipeline.New(det, synth, tree, asr,
		pipeline.WithThreshold(cfg.ConfidenceThreshold),
		pipeline.WithLogger(log),
	)

	if err := a.openSessions(ctx, cfg, log); err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"detector": fmt.Sprintf("%T", det),
		"policy":   cfg.ImpactPolicy,
		"tree":     cfg.RegionTree,
		"sessions": cfg.SessionBackend,
	}).Info("app wired")
	return a, nil
}

// Assessor builds an impact assessor; the advisor enriches generated output when enabled.
func (a *App) Assessor(p impact.Policy, gen llm.Engine, cfg *config.Config, log *logrus.Logger) (impact.Assessor, error) {
	var g impact.Generator
	var enr impact.Enricher
	if gen != nil {
		g = gen
		if cfg.GeneratorEnrich {
			enr = advisor.New(gen)
		}
	}
	return impact.New(p, g, enr, cfg.Generator.Timeout, log)
}

func buildEngines(cfg *config.Config) *llm.Engines {
	e := &llm.Engines{}
	if c := cfg.LLM("gpt"); c.APIKey != "" {
		e.OpenAI = openai.New(c)
	}
	if c := cfg.LLM("deepseek"); c.APIKey != "" {
		e.DeepSeek = openai.NewNamed("deepseek", c)
	}
	if c := cfg.LLM("gemini"); c.APIKey != "" {
		e.Gemini = gemini.New(c)
	}
	return e
}

func buildDetector(cfg *config.Config, log *logrus.Logger) (detect.Detector, error) {
	if strings.TrimSpace(cfg.InferenceURL) == "" {
		log.Warn("INFERENCE_URL is empty: every scan is reported as notumor")
		return detect.NoTumorStub(), nil
	}
	h := detect.NewHTTP(cfg.InferenceURL, cfg.InferenceTimeout)
	switch cfg.DetectorFallback {
	case "", "none":
		return h, nil
	case "static":
		return detect.Fallback{Primary: h, Secondary: detect.NoTumorStub(), Log: log}, nil
	}
	return nil, fmt.Errorf("unknown DETECTOR_FALLBACK %q; use none | static", cfg.DetectorFallback)
}

func (a *App) openSessions(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	switch cfg.SessionBackend {
	case "", "file":
		fs, err := store.NewFileStore(cfg.UploadDir)
		if err != nil {
			return err
		}
		a.Sessions = fs
		return nil
	case "postgres", "pg":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = store.ResolveDSN()
		}
		db, err := store.OpenPG(ctx, dsn)
		if err != nil {
			return err
		}
		pg := store.NewPGStore(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return err
		}
		log.Infof("db connected: %s", store.SafeDSNSummary(dsn))
		a.Sessions = pg
		a.closers = append(a.closers, pg.Close)
		if cfg.SessionTTL > 0 {
			go purgeLoop(ctx, pg, cfg.SessionTTL, log)
		}
		return nil
	}
	return fmt.Errorf("unknown SESSION_BACKEND %q; use file | postgres", cfg.SessionBackend)
}

type purger interface {
	PurgeOlderThan(ctx context.Context, d time.Duration) (int64, error)
}

// purgeLoop чистит старые сессии раз в ttl/4 (не чаще раза в минуту), пока жив ctx.
func purgeLoop(ctx context.Context, p purger, ttl time.Duration, log *logrus.Logger) {
	every := max(ttl/4, time.Minute)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		n, err := p.PurgeOlderThan(ctx, ttl)
		switch {
		case err != nil && ctx.Err() == nil:
			log.WithError(err).Warn("session purge failed")
		case n > 0:
			log.WithField("removed", n).Info("old sessions purged")
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Ready runs every registered check plus the store ping.
func (a *App) Ready(ctx context.Context) error {
	var errs []error
	if p, ok := a.Sessions.(store.Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	for name, fn := range a.Checks {
		if err := fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
