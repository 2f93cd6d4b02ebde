package llm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

var ErrNoAPIKey = errors.New("llm: api key is empty")

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request — один вызов чата: системная инструкция + история, последнее сообщение от пользователя.
type Request struct {
	System   string
	Messages []Message
}

// Config describes one generator endpoint.
type Config struct {
	APIKey      string        `yaml:"api_key"`
	Endpoint    string        `yaml:"endpoint"`
	Model       string        `yaml:"model"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
}

const (
	DefaultEndpoint    = "https://api.openai.com/v1/chat/completions"
	DefaultTimeout     = 10 * time.Second
	DefaultMaxTokens   = 750
	DefaultTemperature = 0.7
)

// WithDefaults fills zero fields. Temperature is taken as is.
func (c Config) WithDefaults() Config {
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.Model = strings.TrimSpace(c.Model)
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	return c
}

type Engine interface {
	Name() string
	GetModel() string
	Generate(ctx context.Context, prompt string) (string, error)
	Chat(ctx context.Context, req Request) (string, error)
}

type Engines struct {
	OpenAI   Engine
	Gemini   Engine
	DeepSeek Engine
}

func (e *Engines) GetEngine(name string) (Engine, error) {
	var eng Engine
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "gpt", "openai":
		eng = e.OpenAI
	case "gemini":
		eng = e.Gemini
	case "deepseek":
		eng = e.DeepSeek
	default:
		return nil, errors.New("unknown llm name; use gpt | gemini | deepseek")
	}
	if eng == nil {
		return nil, errors.New("llm " + name + " is not configured")
	}
	return eng, nil
}

// Manager хранит выбор движка на чат. nil-движок означает «без генератора».
type Manager struct {
	def Engine
	m   sync.Map // chatID -> choice
}

type choice struct{ eng Engine }

func NewManager(defaultEngine Engine) *Manager {
	return &Manager{def: defaultEngine}
}

func (m *Manager) Get(chatID int64) Engine {
	if v, ok := m.m.Load(chatID); ok {
		return v.(choice).eng
	}
	return m.def
}

func (m *Manager) Set(chatID int64, e Engine) {
	m.m.Store(chatID, choice{eng: e})
}

func (m *Manager) Reset(chatID int64) {
	m.m.Delete(chatID)
}
