package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"neuromap/api/internal/advisor"
	"neuromap/api/internal/detect"
	"neuromap/api/internal/impact"
	"neuromap/api/internal/pipeline"
)

const (
	scanTimeout  = 90 * time.Second
	maxScanBytes = 20 << 20 // лимит Bot API на скачивание
	thumbSide    = 512

	tooLargeText = "Файл слишком большой, максимум 20 МБ."
)

var errTooLarge = errors.New("scan exceeds download limit")

func (r *Router) acceptScan(ctx context.Context, msg *tgbotapi.Message) {
	cid := msg.Chat.ID

	var fileID, name string
	switch {
	case msg.Document != nil:
		fileID, name = msg.Document.FileID, msg.Document.FileName
		if msg.Document.FileSize > maxScanBytes {
			r.send(cid, tooLargeText)
			return
		}
	default:
		ph := msg.Photo[len(msg.Photo)-1] // самое большое превью
		fileID, name = ph.FileID, "photo.jpg"
	}
	if name == "" {
		name = "scan"
	}

	url, err := r.Bot.GetFileDirectURL(fileID)
	if err != nil {
		r.sendError(cid, err)
		return
	}
	r.send(cid, "Скан принят, анализирую…")

	ctx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()

	data, err := r.download(ctx, url)
	if errors.Is(err, errTooLarge) {
		r.send(cid, tooLargeText)
		return
	}
	if err != nil {
		r.sendError(cid, fmt.Errorf("скачивание: %w", err))
		return
	}

	rep, annotated, err := r.pipelineFor(cid).Process(ctx, name, data)
	switch {
	case errors.Is(err, detect.ErrUnsupportedImage):
		r.send(cid, "Не удалось прочитать изображение. Поддерживаются PNG, JPEG, BMP, TIFF, WebP и DICOM.")
		return
	case errors.Is(err, pipeline.ErrDetector):
		r.sendError(cid, errors.New("сервис детекции недоступен"))
		return
	case err != nil:
		r.sendError(cid, err)
		return
	}

	if r.Sessions != nil {
		if err := r.Sessions.Save(ctx, rep); err != nil {
			r.log().WithError(err).WithField("session", rep.SessionID).Error("save session")
		}
	}
	setSession(cid, rep.SessionID)

	r.log().WithFields(logrus.Fields{
		"chat":     cid,
		"session":  rep.SessionID,
		"findings": len(rep.Findings),
	}).Info("telegram scan processed")

	r.sendReport(cid, rep, annotated)
}

// pipelineFor подбирает оценщик влияния под выбор чата.
func (r *Router) pipelineFor(chatID int64) *pipeline.Pipeline {
	if getPolicy(chatID, r.Policy) != impact.PolicyGenerator {
		return r.Pipeline.WithAssessor(impact.Rules{})
	}
	eng := r.engine(chatID)
	var gen impact.Generator
	var enr impact.Enricher
	if eng != nil {
		gen = eng
		if r.Enrich {
			enr = advisor.New(eng)
		}
	}
	asr, err := impact.New(impact.PolicyGenerator, gen, enr, r.GeneratorTimeout, r.log())
	if err != nil {
		return r.Pipeline
	}
	return r.Pipeline.WithAssessor(asr)
}

func (r *Router) sendReport(chatID int64, rep *pipeline.Report, annotated []byte) {
	msg := tgbotapi.NewMessage(chatID, trimText(formatReport(rep)))
	if !rep.NoTumor {
		msg.ReplyMarkup = findingsKeyboard(len(rep.Findings))
	}
	if _, err := r.Bot.Send(msg); err != nil {
		r.log().WithError(err).WithField("chat", chatID).Warn("telegram send")
	}

	thumb, err := thumbnail(annotated)
	if err != nil {
		r.log().WithError(err).Warn("thumbnail")
		return
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: rep.SessionID + ".png", Bytes: thumb})
	photo.Caption = "Разметка детекций"
	if _, err := r.Bot.Send(photo); err != nil {
		r.log().WithError(err).WithField("chat", chatID).Warn("telegram send photo")
	}
}

func thumbnail(pngBytes []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(pngBytes))
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := png.Encode(&out, detect.Thumbnail(img, thumbSide)); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func (r *Router) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxScanBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxScanBytes {
		return nil, errTooLarge
	}
	return data, nil
}

func (r *Router) httpClient() *http.Client {
	if r.HTTPClient != nil {
		return r.HTTPClient
	}
	return &http.Client{Timeout: 60 * time.Second, Transport: otelhttp.NewTransport(http.DefaultTransport)}
}
