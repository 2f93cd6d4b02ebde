package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"neuromap/api/internal/anatomy"
)

// HTTP calls a remote inference service: POST {base}/predict with a multipart
// "file" field, GET {base}/health for liveness.
type HTTP struct {
	baseURL string
	httpc   *http.Client
}

func NewHTTP(baseURL string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTP{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type wireDetection struct {
	Class      json.RawMessage `json:"class"`
	Label      string          `json:"label"`
	Confidence float64         `json:"confidence"`
	Box        []float64       `json:"box"`
}

type wireResponse struct {
	Detections []wireDetection `json:"detections"`
	Height     int             `json:"height"`
	Width      int             `json:"width"`
}

func (h *HTTP) Detect(ctx context.Context, img Image) ([]Detection, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	name := img.Name
	if name == "" {
		name = "image"
	}
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, fmt.Errorf("copy image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/predict", body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := h.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		x, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("inference failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(x)))
	}

	var wr wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	dims := img.Dimensions()
	if wr.Height > 0 && wr.Width > 0 {
		dims = &anatomy.Dimensions{Height: wr.Height, Width: wr.Width}
	}
	out := make([]Detection, 0, len(wr.Detections))
	for i, wd := range wr.Detections {
		d, err := wd.toDetection(dims)
		if err != nil {
			return nil, fmt.Errorf("detection %d: %w", i, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func (wd wireDetection) toDetection(dims *anatomy.Dimensions) (Detection, error) {
	label := wd.Label
	if len(wd.Class) > 0 {
		var s string
		if err := json.Unmarshal(wd.Class, &s); err != nil {
			// числовой индекс класса
			s = string(wd.Class)
		}
		label = s
	}
	t, err := ParseLabel(label)
	if err != nil {
		return Detection{}, err
	}
	d := Detection{TumorType: t, Confidence: wd.Confidence, Dimensions: dims}
	switch len(wd.Box) {
	case 0:
	case 4:
		d.Box = &anatomy.Rect{X1: wd.Box[0], Y1: wd.Box[1], X2: wd.Box[2], Y2: wd.Box[3]}
	default:
		return Detection{}, fmt.Errorf("box must have 4 values, got %d", len(wd.Box))
	}
	return d, nil
}

// CheckHealth проверяет доступность ML-сервиса.
func (h *HTTP) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := h.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ml service unhealthy: %d", resp.StatusCode)
	}
	return nil
}
