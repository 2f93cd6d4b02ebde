// Package advisor is the brain-tumor chat assistant: fixed prompts for tumor
// info, treatments and symptoms plus a free chat grounded in session findings.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"neuromap/api/internal/llm"
)

// MaxHistory — сколько последних сообщений хранить в истории сессии.
const MaxHistory = 10

const preamble = "You are a medical expert specializing in brain tumors. " +
	"Provide clear, accurate, and specific information about brain tumors. " +
	"Always base your responses on current medical research and guidelines. " +
	"If you're unsure about something, acknowledge the limitations of your knowledge."

var medicalSources = []string{
	"https://www.cancer.gov/types/brain",
	"https://www.mayoclinic.org/diseases-conditions/brain-tumor/symptoms-causes/",
	"https://www.cancer.org/cancer/brain-spinal-cord-tumors-adults/",
	"https://www.hopkinsmedicine.org/health/conditions-and-diseases/brain-tumor",
	"https://www.aans.org/en/Patients/Neurosurgical-Conditions-and-Treatments/Brain-Tumors",
}

var ErrNoEngine = errors.New("advisor: no llm engine configured")

// TumorContext describes one finding the patient has.
type TumorContext struct {
	Type     string  `json:"type"`
	Location string  `json:"location"`
	Size     float64 `json:"size"`
}

func (t TumorContext) String() string {
	var b strings.Builder
	b.WriteString("a " + t.Type + " tumor")
	if t.Location != "" {
		b.WriteString(" in the " + t.Location + " region")
	}
	if t.Size > 0 {
		fmt.Fprintf(&b, " of size %.2f cm", t.Size)
	}
	return b.String()
}

// Bot is stateless; chat history lives with the caller's session.
type Bot struct {
	eng llm.Engine
}

func New(eng llm.Engine) *Bot {
	return &Bot{eng: eng}
}

func (b *Bot) Sources() []string {
	return append([]string(nil), medicalSources...)
}

func (b *Bot) TumorInfo(ctx context.Context, tumorType, location string, size float64) (string, error) {
	t := TumorContext{Type: tumorType, Location: location, Size: size}
	prompt := "Please provide detailed information about " + tumorType + " brain tumors"
	if location != "" {
		prompt += " in the " + location + " region"
	}
	if size > 0 {
		prompt += fmt.Sprintf(" of size %.2f cm", size)
	}
	prompt += `. Include:
1. Detailed description and characteristics
2. Common symptoms and warning signs
3. Treatment options and approaches
4. Prognosis and survival rates
5. Risk factors and prevention
Keep the response medically accurate and cite sources where possible.`
	return b.ask(ctx, prompt, &t)
}

func (b *Bot) TreatmentOptions(ctx context.Context, tumorType string) (string, error) {
	prompt := "As a medical expert, provide detailed treatment options for " + tumorType + ` brain tumors.
Include:
1. Surgical options and techniques
2. Radiation therapy approaches
3. Chemotherapy protocols
4. Targeted therapies
5. Clinical trials
6. Rehabilitation and follow-up care
Base your response on current medical research and guidelines.`
	return b.ask(ctx, prompt, &TumorContext{Type: tumorType})
}

func (b *Bot) Symptoms(ctx context.Context, tumorType, location string) (string, error) {
	prompt := "As a medical expert, describe the symptoms of " + tumorType + " brain tumors"
	if location != "" {
		prompt += " in the " + location + " region"
	}
	prompt += `:
1. Common symptoms
2. Location-specific symptoms
3. Early warning signs
4. Progressive symptoms
5. Emergency symptoms
Include both general and specific symptoms based on current medical literature.`
	return b.ask(ctx, prompt, &TumorContext{Type: tumorType, Location: location})
}

func (b *Bot) RegionInfo(ctx context.Context, region string) (string, error) {
	prompt := "Explain the functions of the " + region + ` brain region and how a tumor there may affect a patient.
Cover cognitive, motor and sensory functions in plain language.`
	return b.ask(ctx, prompt, nil)
}

// Chat appends msg to history, asks the engine and returns the reply with
// the trimmed history including both turns.
func (b *Bot) Chat(ctx context.Context, history []llm.Message, msg string, tumors []TumorContext) (string, []llm.Message, error) {
	if b == nil || b.eng == nil {
		return "", history, ErrNoEngine
	}
	turns := append(append([]llm.Message(nil), history...), llm.Message{Role: llm.RoleUser, Content: msg})

	reply, err := b.eng.Chat(ctx, llm.Request{System: systemPrompt(tumors), Messages: turns})
	if err != nil {
		return "", history, err
	}
	turns = append(turns, llm.Message{Role: llm.RoleAssistant, Content: reply})
	return reply, Trim(turns), nil
}

func (b *Bot) ask(ctx context.Context, prompt string, t *TumorContext) (string, error) {
	if b == nil || b.eng == nil {
		return "", ErrNoEngine
	}
	var tumors []TumorContext
	if t != nil {
		tumors = []TumorContext{*t}
	}
	return b.eng.Chat(ctx, llm.Request{
		System:   systemPrompt(tumors),
		Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
	})
}

func systemPrompt(tumors []TumorContext) string {
	var b strings.Builder
	b.WriteString(preamble)
	if len(tumors) > 0 {
		b.WriteString("\n\nPatient Context: The patient has ")
		for i, t := range tumors {
			if i > 0 {
				b.WriteString("; ")
			}
			b.WriteString(t.String())
		}
		b.WriteString(".")
	}
	b.WriteString("\n\nReference sources:\n")
	for _, s := range medicalSources {
		b.WriteString("- " + s + "\n")
	}
	return strings.TrimSpace(b.String())
}

// Trim keeps the last MaxHistory messages.
func Trim(h []llm.Message) []llm.Message {
	if len(h) <= MaxHistory {
		return h
	}
	return append([]llm.Message(nil), h[len(h)-MaxHistory:]...)
}
