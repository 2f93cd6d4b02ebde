package handle

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"neuromap/api/internal/anatomy"
	"neuromap/api/internal/detect"
	"neuromap/api/internal/pipeline"
	"neuromap/api/internal/util"
)

const scanTimeout = 90 * time.Second

type indexPage struct {
	Report *pipeline.Report
	Error  string
}

func (h *Handle) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", indexPage{})
}

// Upload — форма: сохраняет файл, гоняет пайплайн и рендерит результат.
func (h *Handle) Upload(c *gin.Context) {
	r, code, err := h.scan(c)
	if err != nil {
		c.HTML(code, "index.html", indexPage{Error: err.Error()})
		return
	}
	c.HTML(http.StatusOK, "index.html", indexPage{Report: r})
}

// Analyze is Upload for API clients: the report comes back as JSON.
func (h *Handle) Analyze(c *gin.Context) {
	r, code, err := h.scan(c)
	if err != nil {
		writeErr(c, code, err.Error())
		return
	}
	c.JSON(http.StatusOK, r)
}

// imageRequest — JSON-вариант загрузки: base64 или data:URI.
type imageRequest struct {
	Image string `json:"image"`
	Name  string `json:"name"`
}

// uploadErr отличает превышение лимита тела (413) от прочих ошибок ввода (400).
func uploadErr(err error, msg string) (int, error) {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return http.StatusRequestEntityTooLarge, fmt.Errorf("file is larger than %d bytes", mbe.Limit)
	}
	return http.StatusBadRequest, errors.New(msg)
}

// readUpload принимает multipart поле file или JSON {image, name}.
func readUpload(c *gin.Context) (string, []byte, int, error) {
	if c.ContentType() == gin.MIMEJSON {
		var req imageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			code, e := uploadErr(err, "bad json: "+err.Error())
			return "", nil, code, e
		}
		data, hint, err := util.DecodeBase64MaybeDataURL(req.Image)
		if err != nil || len(data) == 0 {
			return "", nil, http.StatusBadRequest, errors.New("image must be base64 or a data URI")
		}
		name := req.Name
		if name == "" {
			name = "upload" + extFor(util.PickMIME("", hint, data))
		}
		return name, data, http.StatusOK, nil
	}

	fh, err := c.FormFile("file")
	if err != nil {
		code, e := uploadErr(err, "file is required")
		return "", nil, code, e
	}
	f, err := fh.Open()
	if err != nil {
		return "", nil, http.StatusBadRequest, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, http.StatusBadRequest, fmt.Errorf("read upload: %w", err)
	}
	return fh.Filename, data, http.StatusOK, nil
}

func extFor(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case util.MIMEDicom:
		return ".dcm"
	}
	if i := strings.IndexByte(mime, '/'); i >= 0 && strings.HasPrefix(mime, "image/") {
		return "." + mime[i+1:]
	}
	return ".img"
}

func (h *Handle) scan(c *gin.Context) (*pipeline.Report, int, error) {
	name, data, code, err := readUpload(c)
	if err != nil {
		return nil, code, err
	}

	ctx, cancel := contextWithTimeout(c, scanTimeout)
	defer cancel()

	r, annotated, err := h.pipe.Process(ctx, name, data)
	switch {
	case errors.Is(err, pipeline.ErrDetector):
		h.log.WithError(err).WithField("file", name).Error("detector failed")
		return nil, http.StatusBadGateway, errors.New("detection service unavailable")
	case err != nil:
		return nil, http.StatusBadRequest, err
	}

	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" || strings.ContainsAny(ext, `/\`) {
		ext = ".img"
	}
	r.ImageName = r.SessionID + ext
	r.AnnotatedName = r.SessionID + "_annotated.png"
	if err := h.saveUpload(r.ImageName, data); err != nil {
		return nil, http.StatusInternalServerError, err
	}
	if err := h.saveUpload(r.AnnotatedName, annotated); err != nil {
		return nil, http.StatusInternalServerError, err
	}
	if err := h.sessions.Save(ctx, r); err != nil {
		h.log.WithError(err).WithField("session", r.SessionID).Error("save session")
		return nil, http.StatusInternalServerError, errors.New("session storage error")
	}

	h.log.WithFields(logrus.Fields{
		"session":  r.SessionID,
		"no_tumor": r.NoTumor,
		"findings": len(r.Findings),
	}).Info("scan stored")
	return r, http.StatusOK, nil
}

func (h *Handle) saveUpload(name string, data []byte) error {
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return fmt.Errorf("upload dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(h.uploadDir, filepath.Base(name)), data, 0o644); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}

// Uploads отдаёт файлы из каталога загрузок; имя всегда через filepath.Base.
func (h *Handle) Uploads(c *gin.Context) {
	name := filepath.Base(c.Param("file"))
	if name == "." || name == "/" || strings.HasPrefix(name, ".") {
		writeErr(c, http.StatusNotFound, "file not found")
		return
	}
	path := filepath.Join(h.uploadDir, name)
	if st, err := os.Stat(path); err != nil || st.IsDir() {
		writeErr(c, http.StatusNotFound, "file not found")
		return
	}
	c.File(path)
}

type assessRequest struct {
	TumorType   *string       `json:"tumor_type"`
	Box2D       *anatomy.Rect `json:"box_2d"`
	ImageHeight int           `json:"image_height"`
	ImageWidth  int           `json:"image_width"`
}

// Assess is the core boundary: one detection in, coordinates, region and impact out.
func (h *Handle) Assess(c *gin.Context) {
	var req assessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, http.StatusBadRequest, "bad json: "+err.Error())
		return
	}

	d := detect.Detection{Box: req.Box2D, Confidence: 1}
	if req.TumorType != nil && strings.TrimSpace(*req.TumorType) != "" {
		t, err := detect.ParseLabel(*req.TumorType)
		if err != nil {
			// неизвестный тип: синтез уйдёт в центр мозга
			t = anatomy.TumorType(strings.ToLower(strings.TrimSpace(*req.TumorType)))
		}
		d.TumorType = t
	}
	if req.ImageHeight > 0 && req.ImageWidth > 0 {
		d.Dimensions = &anatomy.Dimensions{Height: req.ImageHeight, Width: req.ImageWidth}
	}

	ctx, cancel := contextWithTimeout(c, scanTimeout)
	defer cancel()
	f, ok := h.pipe.Analyze(ctx, d)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"no_tumor": true})
		return
	}
	c.JSON(http.StatusOK, f)
}
