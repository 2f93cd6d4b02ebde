package main

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"net"
	"net/http"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"neuromap/api/internal/app"
	"neuromap/api/internal/config"
	"neuromap/api/internal/httpserver"
	"neuromap/api/internal/impact"
	"neuromap/api/internal/llm"
	"neuromap/api/internal/telegram"
	"neuromap/api/internal/telemetry"
)

// version is set at build time: -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatal(err)
	}
	log := cfg.Logger()
	token := cfg.MustBotToken()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := telemetry.Init(ctx, "neuromap-bot", version, cfg.OtelEndpoint)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			log.WithError(err).Warn("telemetry shutdown")
		}
	}()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	defer a.Close()

	// --- Telegram bot ---
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		log.Fatal(err)
	}
	bot.Debug = false
	log.Infof("authorized as @%s", bot.Self.UserName)

	r := &telegram.Router{
		Bot:              bot,
		Pipeline:         a.Pipeline,
		Sessions:         a.Sessions,
		Engines:          a.Engines,
		EngManager:       llm.NewManager(a.Generator),
		Policy:           impact.Policy(cfg.ImpactPolicy),
		GeneratorTimeout: cfg.Generator.Timeout,
		Enrich:           cfg.GeneratorEnrich,
		Health:           a.Ready,
		Log:              log,
	}

	// ListenForWebhook регистрирует обработчик на DefaultServeMux, поэтому healthz туда же.
	http.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		hctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := a.Ready(hctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ok\n" + err.Error()))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := httpserver.New("0.0.0.0:"+cfg.Port, nil) // DefaultServeMux
	handle := func(upd tgbotapi.Update) {
		go r.HandleUpdate(ctx, upd)
	}

	if webhookURL := strings.TrimSpace(cfg.WebhookURL); webhookURL != "" {
		startWebhookMode(ctx, srv, bot, webhookURL, handle, log)
	} else {
		startPollingMode(ctx, srv, bot, handle, log)
	}
	log.Info("bot exiting")
}

// ---------------- Modes -----------------

func startWebhookMode(ctx context.Context, srv *http.Server, bot *tgbotapi.BotAPI, baseURL string, handle func(tgbotapi.Update), log *logrus.Logger) {
	// секретный путь вебхука
	path := "/webhook/" + shortHash(bot.Token)
	public := strings.TrimRight(baseURL, "/") + path

	wh, err := tgbotapi.NewWebhook(public)
	if err != nil {
		log.Fatal(err)
	}
	wh.DropPendingUpdates = true
	if _, err := bot.Request(wh); err != nil {
		log.Fatal(err)
	}

	updates := bot.ListenForWebhook(path)
	go func() {
		for upd := range updates {
			handle(upd)
		}
		log.Info("webhook updates channel closed")
	}()

	log.Infof("webhook listening on %s%s", srv.Addr, path)
	if err := httpserver.Run(ctx, srv, log); err != nil {
		log.Fatal(err)
	}
}

func startPollingMode(ctx context.Context, srv *http.Server, bot *tgbotapi.BotAPI, handle func(tgbotapi.Update), log *logrus.Logger) {
	// healthz для платформы, для polling он не обязателен
	go func() {
		if err := httpserver.Run(ctx, srv, log); err != nil {
			log.WithError(err).Error("health server")
		}
	}()

	// Устойчивый поллинг с backoff без log.Fatal/os.Exit
	runPolling(ctx, bot, handle, log)
}

// ---------------- Polling loop -----------------

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

func retryDelayFromError(err error) time.Duration {
	if err == nil {
		return 0
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") { // HTTP 429 от Telegram
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return 1 * time.Second
}

// updateSource — часть BotAPI для long polling.
type updateSource interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

func runPolling(ctx context.Context, bot updateSource, handle func(tgbotapi.Update), log *logrus.Logger) {
	offset := 0
	baseDelay := 1 * time.Second
	maxDelay := 15 * time.Second

	for {
		select {
		case <-ctx.Done():
			log.Info("polling: context cancelled")
			return
		default:
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30 // long polling timeout (sec)

		updates, err := bot.GetUpdates(u)
		if err != nil {
			d := min(max(retryDelayFromError(err), baseDelay), maxDelay)
			log.WithError(err).Warnf("polling error; retry in %v", d)
			if !sleep(ctx, d) {
				return
			}
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			handle(upd)
		}

		if len(updates) == 0 && !sleep(ctx, 200*time.Millisecond) {
			return
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// ---------------- Helpers -----------------

// shortHash — FNV-1a токена, 16 hex-символов: стабильный секретный путь вебхука.
func shortHash(s string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return fmt.Sprintf("%016x", h.Sum64())
}
