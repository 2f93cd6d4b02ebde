package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CONFIG_FILE", "PORT", "UPLOAD_DIR", "SESSION_BACKEND", "INFERENCE_TIMEOUT",
		"CONFIDENCE_THRESHOLD", "IMPACT_POLICY", "GENERATOR_ENGINE", "GENERATOR_TIMEOUT",
		"GENERATOR_MAX_TOKENS", "GENERATOR_TEMPERATURE", "GENERATOR_ENRICH", "OPENAI_MODEL",
		"GEMINI_API_KEY", "GEMINI_MODEL", "REGION_TREE", "SYNTH_SEED", "CORS_ORIGINS", "MAX_UPLOAD_BYTES", "LOG_FORMAT", "LOG_LEVEL",
		"OTEL_EXPORTER_OTLP_ENDPOINT", "SESSION_TTL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "8000" || cfg.SessionBackend != "file" || cfg.ImpactPolicy != "rules" {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.ConfidenceThreshold != 0.5 || cfg.InferenceTimeout != 30*time.Second {
		t.Fatalf("detector defaults = %+v", cfg)
	}
	if cfg.Generator.Temperature != 0.7 || cfg.Generator.MaxTokens != 750 {
		t.Fatalf("generator defaults = %+v", cfg.Generator)
	}
	if cfg.OtelEndpoint != "" {
		t.Fatalf("otel endpoint = %q", cfg.OtelEndpoint)
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "neuromap.yaml")
	yml := `
port: "9000"
impact_policy: generator
generator_engine: gemini
region_tree: lobar
generator:
  timeout: 4s
  max_tokens: 300
gemini:
  model: gemini-pro
cors_origins: [http://a.example]
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "9100")
	t.Setenv("GEMINI_API_KEY", "k")
	t.Setenv("GENERATOR_ENRICH", "true")
	t.Setenv("SYNTH_SEED", "42")
	t.Setenv("SESSION_TTL", "72h")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "9100" {
		t.Fatalf("env must override file, port = %s", cfg.Port)
	}
	if cfg.ImpactPolicy != "generator" || cfg.RegionTree != "lobar" || !cfg.GeneratorEnrich || cfg.SynthSeed != 42 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.SessionTTL != 72*time.Hour {
		t.Fatalf("session ttl = %v", cfg.SessionTTL)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "http://a.example" {
		t.Fatalf("cors = %v", cfg.CORSOrigins)
	}

	g := cfg.LLM("gemini")
	if g.APIKey != "k" || g.Model != "gemini-pro" || g.Timeout != 4*time.Second || g.MaxTokens != 300 {
		t.Fatalf("gemini llm config = %+v", g)
	}
	if o := cfg.LLM("gpt"); o.Model != "gpt-4o-mini" {
		t.Fatalf("openai llm config = %+v", o)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("GENERATOR_TIMEOUT", "soon")
	t.Setenv("CONFIDENCE_THRESHOLD", "high")
	if _, err := Load(); err == nil {
		t.Fatal("expected error")
	}
}

func TestLogger(t *testing.T) {
	c := &Config{LogLevel: "debug", LogFormat: "json"}
	log := c.Logger()
	if log.GetLevel() != logrus.DebugLevel {
		t.Fatalf("level = %v", log.GetLevel())
	}
	if _, ok := log.Formatter.(*logrus.JSONFormatter); !ok {
		t.Fatalf("formatter = %T", log.Formatter)
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" a, ,b ,")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("splitList = %q", got)
	}
}
