package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Aarogya/controllers"
	"Aarogya/middleware"
	"Aarogya/pkg/chat"
	"Aarogya/pkg/config"
	"Aarogya/pkg/logger"
	"Aarogya/pkg/reveal"
	"Aarogya/pkg/services"
	"Aarogya/pkg/store"
	"Aarogya/pkg/telemetry"
	tokenstore "Aarogya/pkg/token"
	"Aarogya/routes"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.IsDevelopment()})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.OTelEndpoint, "aarogya", log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up tracing")
	}
	defer shutdownTracer(context.Background())

	// one store client for the whole process
	st, err := store.Open(ctx, cfg, logger.Component(log, "store"))
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open conversation store")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			log.Error().Err(err).Msg("failed to close store")
		}
	}()

	revocations, err := tokenstore.Open(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect revocation store")
	}

	provider, err := services.NewProvider(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("provider", cfg.LLMProvider).Msg("failed to initialize completion provider")
	}
	log.Info().Str("provider", provider.Name()).Msg("completion provider ready")

	gate := chat.NewTopicGate(provider, chat.GateOptions{
		Timeout:       cfg.GateTimeout,
		CacheTTL:      cfg.GateCacheTTL,
		CacheMaxItems: cfg.GateCacheMaxItems,
	}, logger.Component(log, "gate"))
	gate.StartJanitor(time.Minute)
	defer gate.Close()

	invoker := chat.NewInvoker(provider, chat.FramingMode(cfg.FramingMode), logger.Component(log, "invoker"))
	pipeline := chat.NewPipeline(st, gate, invoker, cfg.PipelineMaxDuration, logger.Component(log, "pipeline"))

	secret := cfg.JWTSecret
	if secret == "" {
		log.Warn().Msg("JWT_SECRET_KEY not set, using the development secret")
		secret = config.DevJWTSecret
	}

	deps := &controllers.Deps{
		Store:          st,
		Pipeline:       pipeline,
		Revocations:    revocations,
		Duplicates:     middleware.NewDuplicateGuard(cfg.DuplicateWindow),
		RevealInterval: reveal.DefaultInterval,
		Log:            logger.Component(log, "http"),
	}
	guards := routes.Guards{
		Session: middleware.NewSessionGuard(secret, cfg.JWTIssuer, revocations, logger.Component(log, "auth")),
		Limiter: middleware.NewRateLimiter(cfg.RateLimitWindow, cfg.RateLimitCapacity),
		Slots:   middleware.NewUserSlots(cfg.UserConcurrencyLimit),
	}

	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.Recovery(log))
	r.Use(otelgin.Middleware("aarogya"))
	r.Use(middleware.RequestLogger(logger.Component(log, "http")))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	routes.RegisterRoutes(r, deps, guards)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.AppEnv).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	// in-flight pipelines get their full budget to persist
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.PipelineMaxDuration+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
