package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"neuromap/api/internal/llm"
	"neuromap/api/internal/util"
)

const DeepSeekEndpoint = "https://api.deepseek.com/chat/completions"

// Engine talks to any OpenAI-compatible chat/completions endpoint.
type Engine struct {
	APIKey      string
	Model       string
	Endpoint    string
	MaxTokens   int
	Temperature float64

	name  string
	httpc *http.Client
}

func New(cfg llm.Config) *Engine {
	return NewNamed("gpt", cfg)
}

// NewNamed — тот же клиент под другим именем (deepseek, mixtral и т.п.).
func NewNamed(name string, cfg llm.Config) *Engine {
	cfg = cfg.WithDefaults()
	return &Engine{
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Endpoint:    cfg.Endpoint,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		name:        name,
		httpc: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (e *Engine) Name() string { return e.name }

func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) Generate(ctx context.Context, prompt string) (string, error) {
	return e.Chat(ctx, llm.Request{Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}}})
}

func (e *Engine) Chat(ctx context.Context, req llm.Request) (string, error) {
	if e.APIKey == "" {
		return "", fmt.Errorf("%s: %w", e.name, llm.ErrNoAPIKey)
	}

	msgs := make([]llm.Message, 0, len(req.Messages)+1)
	if s := strings.TrimSpace(req.System); s != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: s})
	}
	msgs = append(msgs, req.Messages...)

	body := map[string]any{
		"model":       e.Model,
		"messages":    msgs,
		"max_tokens":  e.MaxTokens,
		"temperature": e.Temperature,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Authorization", "Bearer "+e.APIKey)

	resp, err := e.httpc.Do(hreq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		x, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", fmt.Errorf("%s generate %d: %s", e.name, resp.StatusCode, strings.TrimSpace(string(x)))
	}

	var raw struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			// completions-style хосты (mixtral) отдают text
			Text string `json:"text"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", fmt.Errorf("%s generate: bad JSON: %w", e.name, err)
	}
	if len(raw.Choices) == 0 {
		return "", fmt.Errorf("%s generate: empty response", e.name)
	}
	out := raw.Choices[0].Message.Content
	if strings.TrimSpace(out) == "" {
		out = raw.Choices[0].Text
	}
	return util.StripCodeFences(out), nil
}
