package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"neuromap/api/internal/app"
	"neuromap/api/internal/config"
	"neuromap/api/internal/handle"
	"neuromap/api/internal/httpserver"
	"neuromap/api/internal/telemetry"
)

const serviceName = "neuromap"

// version is set at build time: -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatal(err)
	}
	log := cfg.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := telemetry.Init(ctx, serviceName, version, cfg.OtelEndpoint)
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

	if log.GetLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handle.RequestLogger(log))
	router.Use(handle.LimitBodySize(cfg.MaxUploadBytes))
	router.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	router.Use(otelgin.Middleware(serviceName))
	router.MaxMultipartMemory = cfg.MaxUploadBytes

	h := handle.New(handle.Deps{
		Pipeline:  a.Pipeline,
		Sessions:  a.Sessions,
		Advisor:   a.Advisor,
		UploadDir: cfg.UploadDir,
		Checks:    a.Checks,
		Log:       log,
	})
	h.Routes(router)

	if err := httpserver.Run(ctx, httpserver.New(":"+cfg.Port, router), log); err != nil {
		log.Fatalf("server: %v", err)
	}
	log.Info("server exiting")
}

func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	if len(origins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	c.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	c.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	return c
}
