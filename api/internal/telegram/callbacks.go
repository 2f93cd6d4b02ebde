package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"neuromap/api/internal/advisor"
	"neuromap/api/internal/pipeline"
	"neuromap/api/internal/store"
)

const advisorTimeout = 70 * time.Second

func (r *Router) handleCallback(ctx context.Context, cb tgbotapi.CallbackQuery) {
	if cb.Message == nil || cb.Message.Chat == nil {
		return
	}
	cid := cb.Message.Chat.ID
	_, _ = r.Bot.Request(tgbotapi.NewCallback(cb.ID, "")) // ack

	if idx, ok := strings.CutPrefix(cb.Data, infoPrefix); ok {
		n, err := strconv.Atoi(idx)
		if err != nil {
			return
		}
		r.onFindingInfo(ctx, cid, n)
	}
}

func (r *Router) onFindingInfo(ctx context.Context, chatID int64, idx int) {
	rep, ok := r.lastReport(ctx, chatID)
	if !ok {
		return
	}
	if idx < 0 || idx >= len(rep.Findings) {
		r.send(chatID, "Такой находки нет в последнем скане.")
		return
	}
	f := rep.Findings[idx]

	ctx, cancel := context.WithTimeout(ctx, advisorTimeout)
	defer cancel()
	info, err := advisor.New(r.engine(chatID)).TumorInfo(ctx, string(f.TumorType), string(f.BrainRegion), pipeline.SizeOf(f).Largest())
	if err != nil {
		r.advisorError(chatID, err)
		return
	}
	r.send(chatID, info)
}

// handleText — свободный вопрос по последнему скану чата.
func (r *Router) handleText(ctx context.Context, chatID int64, text string) {
	rep, ok := r.lastReport(ctx, chatID)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, advisorTimeout)
	defer cancel()
	reply, hist, err := advisor.New(r.engine(chatID)).Chat(ctx, rep.Chat, text, pipeline.TumorContexts(rep))
	if err != nil {
		r.advisorError(chatID, err)
		return
	}
	rep.Chat = hist
	if err := r.Sessions.Save(ctx, rep); err != nil {
		r.log().WithError(err).WithField("session", rep.SessionID).Error("save chat history")
	}
	r.send(chatID, reply)
}

func (r *Router) lastReport(ctx context.Context, chatID int64) (*pipeline.Report, bool) {
	id := getSession(chatID)
	if id == "" || r.Sessions == nil {
		r.send(chatID, "Сначала пришлите скан.")
		return nil, false
	}
	rep, err := r.Sessions.Load(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		r.send(chatID, "Сессия не найдена, пришлите скан ещё раз.")
		return nil, false
	}
	if err != nil {
		r.sendError(chatID, err)
		return nil, false
	}
	return rep, true
}

func (r *Router) advisorError(chatID int64, err error) {
	if errors.Is(err, advisor.ErrNoEngine) {
		r.send(chatID, "ИИ-ассистент не настроен. Выберите движок: /engine gpt | gemini | deepseek")
		return
	}
	r.sendError(chatID, err)
}
