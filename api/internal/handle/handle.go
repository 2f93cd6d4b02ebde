// Package handle is the gin HTTP layer: upload and analysis pages, session
// views, the core assess endpoint and the advisor chat.
package handle

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"neuromap/api/internal/advisor"
	"neuromap/api/internal/pipeline"
	"neuromap/api/internal/store"
)

// Deps — всё, что нужно хендлерам. Advisor может быть nil.
type Deps struct {
	Pipeline  *pipeline.Pipeline
	Sessions  store.Sessions
	Advisor   *advisor.Bot
	UploadDir string
	// Checks are run by /readyz in addition to the store ping.
	Checks map[string]func(context.Context) error
	Log    *logrus.Logger
}

type Handle struct {
	pipe      *pipeline.Pipeline
	sessions  store.Sessions
	adv       *advisor.Bot
	uploadDir string
	checks    map[string]func(context.Context) error
	log       *logrus.Logger
}

func New(d Deps) *Handle {
	log := d.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handle{
		pipe:      d.Pipeline,
		sessions:  d.Sessions,
		adv:       d.Advisor,
		uploadDir: d.UploadDir,
		checks:    d.Checks,
		log:       log,
	}
}

// Routes registers templates and every endpoint on r.
func (h *Handle) Routes(r *gin.Engine) {
	r.SetHTMLTemplate(template.Must(template.New("").Funcs(funcs).ParseFS(templatesFS, "templates/*.html")))

	r.GET("/", h.Index)
	r.POST("/", h.Upload)
	r.GET("/uploads/:file", h.Uploads)
	r.GET("/visualize/:session", h.Visualize)
	r.GET("/dashboard/:session", h.Dashboard)
	r.GET("/visualization_data", h.VisualizationData)
	r.POST("/get_tumor_info", h.TumorInfo)
	r.POST("/chat_with_ai", h.ChatWithAI)

	api := r.Group("/api")
	api.POST("/analyze", h.Analyze)
	api.POST("/assess", h.Assess)

	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
}

func (h *Handle) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handle) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := gin.H{"status": "ok"}
	code := http.StatusOK
	check := func(name string, fn func(context.Context) error) {
		if err := fn(ctx); err != nil {
			status[name] = "unhealthy: " + err.Error()
			status["status"] = "degraded"
			code = http.StatusServiceUnavailable
			return
		}
		status[name] = "ok"
	}
	if p, ok := h.sessions.(store.Pinger); ok {
		check("store", p.Ping)
	}
	for name, fn := range h.checks {
		check(name, fn)
	}
	c.JSON(code, status)
}

func (h *Handle) loadSession(c *gin.Context, id string) (*pipeline.Report, bool) {
	if id == "" {
		writeErr(c, http.StatusBadRequest, "session_id is required")
		return nil, false
	}
	r, err := h.sessions.Load(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeErr(c, http.StatusNotFound, "session not found")
		return nil, false
	}
	if err != nil {
		h.log.WithError(err).WithField("session", id).Error("load session")
		writeErr(c, http.StatusInternalServerError, "session storage error")
		return nil, false
	}
	return r, true
}

func writeErr(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}

// RequestLogger пишет одну строку logrus на запрос.
func RequestLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := log.WithFields(logrus.Fields{
			"status":  c.Writer.Status(),
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"latency": time.Since(start).String(),
			"ip":      c.ClientIP(),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}
		switch {
		case c.Writer.Status() >= 500:
			entry.Error("request")
		case c.Writer.Status() >= 400:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
	}
}

func LimitBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
