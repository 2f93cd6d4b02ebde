// Package telegram is the chat front end: a scan sent as photo or DICOM
// document goes through the pipeline, follow-up questions go to the advisor.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"neuromap/api/internal/impact"
	"neuromap/api/internal/llm"
	"neuromap/api/internal/pipeline"
	"neuromap/api/internal/store"
)

// Sender — часть *tgbotapi.BotAPI, которой пользуется роутер.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

type Router struct {
	Bot        Sender
	Pipeline   *pipeline.Pipeline
	Sessions   store.Sessions
	Engines    *llm.Engines
	EngManager *llm.Manager

	// Policy is the impact policy for chats that never ran /engine.
	Policy           impact.Policy
	GeneratorTimeout time.Duration
	Enrich           bool

	Health     func(ctx context.Context) error
	HTTPClient *http.Client
	Log        *logrus.Logger
}

func (r *Router) log() *logrus.Logger {
	if r.Log == nil {
		return logrus.StandardLogger()
	}
	return r.Log
}

func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.CallbackQuery != nil {
		r.handleCallback(ctx, *upd.CallbackQuery)
		return
	}
	if upd.Message == nil || upd.Message.Chat == nil {
		return
	}
	msg := upd.Message

	switch {
	case msg.IsCommand():
		r.HandleCommand(ctx, msg)
	case len(msg.Photo) > 0 || msg.Document != nil:
		r.acceptScan(ctx, msg)
	case strings.TrimSpace(msg.Text) != "":
		r.handleText(ctx, msg.Chat.ID, msg.Text)
	}
}

func (r *Router) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	switch msg.Command() {
	case "start", "help":
		r.send(cid, helpText)
	case "health":
		if r.Health != nil {
			hctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			if err := r.Health(hctx); err != nil {
				r.send(cid, "⚠️ degraded: "+err.Error())
				return
			}
		}
		r.send(cid, "✅ OK")
	case "engine":
		r.handleEngineCommand(cid, msg.CommandArguments())
	case "reset":
		resetChat(cid)
		if r.EngManager != nil {
			r.EngManager.Reset(cid)
		}
		r.send(cid, "Контекст чата сброшен.")
	default:
		r.send(cid, "Неизвестная команда. /help")
	}
}

const helpText = `Пришлите МРТ-срез фото или DICOM-файлом: найду опухоль, оценю 3D-положение, область мозга и возможное влияние.
После анализа можно задавать вопросы текстом.

Команды:
/engine rules | gpt | gemini | deepseek
/health
/reset`

// handleEngineCommand переключает генератор для чата.
// "rules" оставляет движок для вопросов, но оценку влияния считает по таблицам.
func (r *Router) handleEngineCommand(chatID int64, args string) {
	name := strings.ToLower(strings.TrimSpace(args))
	if name == "" {
		cur := "rules"
		if getPolicy(chatID, r.Policy) == impact.PolicyGenerator {
			if e := r.engine(chatID); e != nil {
				cur = e.Name() + " (" + e.GetModel() + ")"
			}
		}
		r.send(chatID, "Текущий режим: "+cur+"\nИспользование: /engine rules | gpt | gemini | deepseek")
		return
	}
	if name == "rules" {
		setPolicy(chatID, impact.PolicyRules)
		r.send(chatID, "✅ Оценка влияния: rules.")
		return
	}
	if r.Engines == nil || r.EngManager == nil {
		r.send(chatID, "❌ Генераторы не настроены.")
		return
	}
	eng, err := r.Engines.GetEngine(name)
	if err != nil {
		r.send(chatID, "❌ "+err.Error())
		return
	}
	r.EngManager.Set(chatID, eng)
	setPolicy(chatID, impact.PolicyGenerator)
	r.send(chatID, fmt.Sprintf("✅ Движок: %s (%s).", eng.Name(), eng.GetModel()))
}

func (r *Router) engine(chatID int64) llm.Engine {
	if r.EngManager == nil {
		return nil
	}
	return r.EngManager.Get(chatID)
}

func (r *Router) send(chatID int64, text string) {
	if _, err := r.Bot.Send(tgbotapi.NewMessage(chatID, trimText(text))); err != nil {
		r.log().WithError(err).WithField("chat", chatID).Warn("telegram send")
	}
}

func (r *Router) sendError(chatID int64, err error) {
	r.log().WithError(err).WithField("chat", chatID).Warn("scan failed")
	r.send(chatID, fmt.Sprintf("Ошибка: %v", err))
}
