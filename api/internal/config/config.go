package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"neuromap/api/internal/llm"
	"neuromap/api/internal/llm/openai"
)

type Config struct {
	Port           string   `yaml:"port"`
	UploadDir      string   `yaml:"upload_dir"`
	SessionBackend string   `yaml:"session_backend"`
	DatabaseURL    string   `yaml:"database_url"`
	CORSOrigins    []string `yaml:"cors_origins"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes"`
	// Только для postgres: сессии старше TTL удаляются фоном; 0 — хранить вечно.
	SessionTTL time.Duration `yaml:"session_ttl"`

	InferenceURL        string        `yaml:"inference_url"`
	InferenceTimeout    time.Duration `yaml:"inference_timeout"`
	DetectorFallback    string        `yaml:"detector_fallback"`
	ConfidenceThreshold float64       `yaml:"confidence_threshold"`

	RegionTree string `yaml:"region_tree"`
	SynthSeed  uint64 `yaml:"synth_seed"`

	ImpactPolicy    string `yaml:"impact_policy"`
	GeneratorEngine string `yaml:"generator_engine"`
	GeneratorEnrich bool   `yaml:"generator_enrich"`
	// Общие параметры генерации; ключи и модели — в секциях движков.
	Generator llm.Config `yaml:"generator"`
	OpenAI    llm.Config `yaml:"openai"`
	DeepSeek  llm.Config `yaml:"deepseek"`
	Gemini    llm.Config `yaml:"gemini"`

	TelegramBotToken string `yaml:"telegram_bot_token"`
	WebhookURL       string `yaml:"webhook_url"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	// OTLP/gRPC коллектор; пусто — телеметрия не экспортируется.
	OtelEndpoint string `yaml:"otel_endpoint"`
}

func defaults() *Config {
	return &Config{
		Port:                "8000",
		UploadDir:           "uploads",
		SessionBackend:      "file",
		MaxUploadBytes:      16 << 20,
		InferenceTimeout:    30 * time.Second,
		ConfidenceThreshold: 0.5,
		ImpactPolicy:        "rules",
		GeneratorEngine:     "gpt",
		Generator: llm.Config{
			Timeout:     llm.DefaultTimeout,
			MaxTokens:   llm.DefaultMaxTokens,
			Temperature: llm.DefaultTemperature,
		},
		OpenAI:    llm.Config{Model: "gpt-4o-mini", Endpoint: llm.DefaultEndpoint},
		DeepSeek:  llm.Config{Model: "deepseek-chat", Endpoint: openai.DeepSeekEndpoint},
		Gemini:    llm.Config{Model: "gemini-2.5-flash"},
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load: defaults → YAML из CONFIG_FILE (если задан) → .env → переменные окружения.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	var errs []string
	fail := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.UploadDir = getEnv("UPLOAD_DIR", cfg.UploadDir)
	cfg.SessionBackend = strings.ToLower(getEnv("SESSION_BACKEND", cfg.SessionBackend))
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	var err error
	cfg.SessionTTL, err = getDuration("SESSION_TTL", cfg.SessionTTL)
	fail(err)
	if v := getEnv("CORS_ORIGINS", ""); v != "" {
		cfg.CORSOrigins = splitList(v)
	}
	cfg.MaxUploadBytes, err = getInt64("MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)
	fail(err)

	cfg.InferenceURL = getEnv("INFERENCE_URL", cfg.InferenceURL)
	cfg.InferenceTimeout, err = getDuration("INFERENCE_TIMEOUT", cfg.InferenceTimeout)
	fail(err)
	cfg.DetectorFallback = strings.ToLower(getEnv("DETECTOR_FALLBACK", cfg.DetectorFallback))
	cfg.ConfidenceThreshold, err = getFloat("CONFIDENCE_THRESHOLD", cfg.ConfidenceThreshold)
	fail(err)

	cfg.RegionTree = getEnv("REGION_TREE", cfg.RegionTree)
	seed, err := getInt64("SYNTH_SEED", int64(cfg.SynthSeed))
	fail(err)
	cfg.SynthSeed = uint64(seed)

	cfg.ImpactPolicy = strings.ToLower(getEnv("IMPACT_POLICY", cfg.ImpactPolicy))
	cfg.GeneratorEngine = strings.ToLower(getEnv("GENERATOR_ENGINE", cfg.GeneratorEngine))
	cfg.GeneratorEnrich, err = getBool("GENERATOR_ENRICH", cfg.GeneratorEnrich)
	fail(err)
	cfg.Generator.Timeout, err = getDuration("GENERATOR_TIMEOUT", cfg.Generator.Timeout)
	fail(err)
	cfg.Generator.MaxTokens, err = getInt("GENERATOR_MAX_TOKENS", cfg.Generator.MaxTokens)
	fail(err)
	cfg.Generator.Temperature, err = getFloat("GENERATOR_TEMPERATURE", cfg.Generator.Temperature)
	fail(err)

	cfg.OpenAI.APIKey = getEnv("OPENAI_API_KEY", cfg.OpenAI.APIKey)
	cfg.OpenAI.Model = getEnv("OPENAI_MODEL", cfg.OpenAI.Model)
	cfg.OpenAI.Endpoint = getEnv("OPENAI_ENDPOINT", cfg.OpenAI.Endpoint)
	cfg.DeepSeek.APIKey = getEnv("DEEPSEEK_API_KEY", cfg.DeepSeek.APIKey)
	cfg.DeepSeek.Model = getEnv("DEEPSEEK_MODEL", cfg.DeepSeek.Model)
	cfg.Gemini.APIKey = getEnv("GEMINI_API_KEY", cfg.Gemini.APIKey)
	cfg.Gemini.Model = getEnv("GEMINI_MODEL", cfg.Gemini.Model)

	cfg.TelegramBotToken = getEnv("TELEGRAM_BOT_TOKEN", cfg.TelegramBotToken)
	cfg.WebhookURL = getEnv("WEBHOOK_URL", cfg.WebhookURL)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", cfg.LogFormat))
	cfg.OtelEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OtelEndpoint)

	if len(errs) > 0 {
		return nil, fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// LLM merges the shared generator settings into the engine's own section.
func (c *Config) LLM(engine string) llm.Config {
	var e llm.Config
	switch strings.ToLower(engine) {
	case "gemini":
		e = c.Gemini
	case "deepseek":
		e = c.DeepSeek
	default:
		e = c.OpenAI
	}
	if e.Timeout <= 0 {
		e.Timeout = c.Generator.Timeout
	}
	if e.MaxTokens <= 0 {
		e.MaxTokens = c.Generator.MaxTokens
	}
	if e.Temperature == 0 {
		e.Temperature = c.Generator.Temperature
	}
	return e
}

// Logger строит logrus по LOG_LEVEL / LOG_FORMAT.
func (c *Config) Logger() *logrus.Logger {
	log := logrus.New()
	if lvl, err := logrus.ParseLevel(c.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	if c.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}

// MustBotToken — токен обязателен только для бота.
func (c *Config) MustBotToken() string {
	if c.TelegramBotToken == "" {
		c.TelegramBotToken = mustEnv("TELEGRAM_BOT_TOKEN")
	}
	return c.TelegramBotToken
}

func mustEnv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		logrus.Fatalf("missing required env %s", k)
	}
	return v
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) (int, error) {
	v := getEnv(k, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}

func getInt64(k string, def int64) (int64, error) {
	v := getEnv(k, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}

func getFloat(k string, def float64) (float64, error) {
	v := getEnv(k, "")
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def, fmt.Errorf("%s: %w", k, err)
	}
	return f, nil
}

func getBool(k string, def bool) (bool, error) {
	v := getEnv(k, "")
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", k, err)
	}
	return b, nil
}

func getDuration(k string, def time.Duration) (time.Duration, error) {
	v := getEnv(k, "")
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", k, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
