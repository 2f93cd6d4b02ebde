package handle

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"neuromap/api/internal/pipeline"
)

func contextWithTimeout(c *gin.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), d)
}

func (h *Handle) Visualize(c *gin.Context) {
	r, ok := h.loadSession(c, c.Param("session"))
	if !ok {
		return
	}
	if r.NoTumor {
		c.HTML(http.StatusOK, "no_tumor.html", gin.H{
			"Message":    "No tumor detected in the scan. The brain appears normal.",
			"Confidence": r.Confidence,
		})
		return
	}
	c.HTML(http.StatusOK, "visualize.html", gin.H{"Findings": r.Findings, "SessionID": r.SessionID})
}

func (h *Handle) Dashboard(c *gin.Context) {
	r, ok := h.loadSession(c, c.Param("session"))
	if !ok {
		return
	}
	c.HTML(http.StatusOK, "dashboard.html", gin.H{"Report": r, "Summary": pipeline.Summarize(r)})
}

func (h *Handle) VisualizationData(c *gin.Context) {
	r, ok := h.loadSession(c, c.Query("session_id"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": r.SessionID,
		"no_tumor":   r.NoTumor,
		"detections": r.Findings,
		"summary":    pipeline.Summarize(r),
	})
}
