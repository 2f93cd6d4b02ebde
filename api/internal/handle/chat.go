package handle

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"neuromap/api/internal/advisor"
	"neuromap/api/internal/pipeline"
)

const advisorTimeout = 70 * time.Second

type tumorInfoRequest struct {
	SessionID  string `json:"session_id"`
	TumorIndex int    `json:"tumor_index"`
}

// TumorInfo asks the advisor about one finding of a session.
func (h *Handle) TumorInfo(c *gin.Context) {
	if h.adv == nil {
		writeErr(c, http.StatusServiceUnavailable, "ai assistant is not configured")
		return
	}
	var req tumorInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, http.StatusBadRequest, "bad json: "+err.Error())
		return
	}
	r, ok := h.loadSession(c, req.SessionID)
	if !ok {
		return
	}
	if req.TumorIndex < 0 || req.TumorIndex >= len(r.Findings) {
		writeErr(c, http.StatusBadRequest, "tumor_index out of range")
		return
	}
	f := r.Findings[req.TumorIndex]

	ctx, cancel := contextWithTimeout(c, advisorTimeout)
	defer cancel()

	info, err := h.adv.TumorInfo(ctx, string(f.TumorType), string(f.BrainRegion), pipeline.SizeOf(f).Largest())
	if err != nil {
		h.advisorError(c, err)
		return
	}
	region, err := h.adv.RegionInfo(ctx, string(f.BrainRegion))
	if err != nil {
		h.log.WithError(err).WithField("region", f.BrainRegion).Warn("region info unavailable")
	}
	c.JSON(http.StatusOK, gin.H{
		"tumor_type":  f.TumorType,
		"location":    f.BrainRegion,
		"tumor_info":  info,
		"region_info": region,
		"sources":     h.adv.Sources(),
	})
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// ChatWithAI продолжает диалог сессии; история хранится в отчёте.
func (h *Handle) ChatWithAI(c *gin.Context) {
	if h.adv == nil {
		writeErr(c, http.StatusServiceUnavailable, "ai assistant is not configured")
		return
	}
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, http.StatusBadRequest, "bad json: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeErr(c, http.StatusBadRequest, "message is required")
		return
	}
	r, ok := h.loadSession(c, req.SessionID)
	if !ok {
		return
	}

	ctx, cancel := contextWithTimeout(c, advisorTimeout)
	defer cancel()

	reply, hist, err := h.adv.Chat(ctx, r.Chat, req.Message, pipeline.TumorContexts(r))
	if err != nil {
		h.advisorError(c, err)
		return
	}
	r.Chat = hist
	if err := h.sessions.Save(ctx, r); err != nil {
		h.log.WithError(err).WithField("session", r.SessionID).Error("save chat history")
	}
	c.JSON(http.StatusOK, gin.H{"response": reply, "status": "success"})
}

func (h *Handle) advisorError(c *gin.Context, err error) {
	if errors.Is(err, advisor.ErrNoEngine) {
		writeErr(c, http.StatusServiceUnavailable, "ai assistant is not configured")
		return
	}
	h.log.WithError(err).Warn("advisor call failed")
	writeErr(c, http.StatusBadGateway, "ai assistant error: "+err.Error())
}
