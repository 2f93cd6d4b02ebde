package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"neuromap/api/internal/llm"
	"neuromap/api/internal/util"
)

type Engine struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

func New(cfg llm.Config) *Engine {
	cfg = cfg.WithDefaults()
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	return &Engine{
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Timeout:     cfg.Timeout,
	}
}

func (e *Engine) Name() string     { return "gemini" }
func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) Generate(ctx context.Context, prompt string) (string, error) {
	return e.Chat(ctx, llm.Request{Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}}})
}

// Chat: системные сообщения из истории уходят в SystemInstruction, остальное — в историю сессии.
func (e *Engine) Chat(ctx context.Context, req llm.Request) (string, error) {
	if e.APIKey == "" {
		return "", fmt.Errorf("gemini: %w", llm.ErrNoAPIKey)
	}
	system, history, last, err := split(req)
	if err != nil {
		return "", err
	}
	ctx, cancel := e.withDeadline(ctx)
	defer cancel()

	cl, err := genai.NewClient(ctx, option.WithAPIKey(e.APIKey))
	if err != nil {
		return "", err
	}
	defer cl.Close()

	m := cl.GenerativeModel(strings.TrimSpace(e.Model))
	if m == nil {
		return "", fmt.Errorf("gemini: model is nil")
	}
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:     ptrFloat32(float32(e.Temperature)),
		MaxOutputTokens: ptrInt32(int32(e.MaxTokens)),
	}
	if system != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	cs := m.StartChat()
	cs.History = history

	// Ретраи на случай 5xx/транзиентных сбоёв
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		resp, err := cs.SendMessage(ctx, genai.Text(last))
		if err != nil {
			lastErr = err
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * 300 * time.Millisecond):
			}
			continue
		}
		txt := firstText(resp)
		if txt == "" {
			return "", fmt.Errorf("gemini generate: empty response")
		}
		return util.StripCodeFences(txt), nil
	}
	return "", lastErr
}

// withDeadline ограничивает весь вызов, включая ретраи, таймаутом движка.
// Более ранний дедлайн вызывающего остаётся в силе.
func (e *Engine) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.Timeout)
}

// split раскладывает запрос на system, историю genai и последнюю реплику пользователя.
func split(req llm.Request) (string, []*genai.Content, string, error) {
	var sys []string
	if s := strings.TrimSpace(req.System); s != "" {
		sys = append(sys, s)
	}
	var turns []llm.Message
	for _, m := range req.Messages {
		if m.Role == llm.RoleSystem {
			sys = append(sys, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	if len(turns) == 0 || turns[len(turns)-1].Role != llm.RoleUser {
		return "", nil, "", errors.New("gemini: last message must be from user")
	}

	history := make([]*genai.Content, 0, len(turns)-1)
	for _, m := range turns[:len(turns)-1] {
		role := "user"
		if m.Role == llm.RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	return strings.Join(sys, "\n\n"), history, turns[len(turns)-1].Content, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
func ptrInt32(v int32) *int32       { return &v }
