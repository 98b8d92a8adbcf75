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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/roomchat/internal/adapters/http"
	wssignal "github.com/dkeye/roomchat/internal/adapters/signal"
	"github.com/dkeye/roomchat/internal/app"
	"github.com/dkeye/roomchat/internal/app/bus"
	"github.com/dkeye/roomchat/internal/app/chat"
	"github.com/dkeye/roomchat/internal/app/orch"
	"github.com/dkeye/roomchat/internal/assistant"
	"github.com/dkeye/roomchat/internal/auth"
	"github.com/dkeye/roomchat/internal/config"
	"github.com/dkeye/roomchat/internal/core"
	"github.com/dkeye/roomchat/internal/domain"
	"github.com/dkeye/roomchat/internal/store"
)

func main() {
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg)

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
	log.Info().Msg("Server exited gracefully")
}

func setupLogger(cfg *config.Config) {
	if cfg.Mode == "release" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func run(ctx context.Context, cfg *config.Config) error {
	db, err := store.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	bot, err := db.EnsureAssistant(ctx)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := app.NewMetrics(reg)

	var policy app.Policy = app.SimplePolicy{}
	if cfg.Coordinator.Policy == "tolerate" {
		policy = app.TolerantPolicy{}
	}
	coord := orch.New(cfg.Coordinator.Queue, policy, metrics)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return coord.Run(ctx) })

	var publisher bus.Publisher = bus.NewLocalPublisher(coord)
	if cfg.Redis.Enabled {
		rb, err := bus.NewRedisBus(ctx, cfg.Redis, coord)
		if err != nil {
			return err
		}
		defer rb.Close()
		publisher = rb
		g.Go(func() error { return rb.Run(ctx) })
	}

	opts := chat.Options{
		Assistant: bot,
		History:   cfg.Assistant.History,
		Fallback:  cfg.Assistant.Fallback,
		Limiter:   app.NewRateLimiter[domain.UserID](cfg.RateLimit.MessageLimit, cfg.RateLimit.MessageInterval),
	}
	if gen := assistant.NewOpenAIGenerator(cfg.Assistant); gen != nil {
		opts.Generator = gen
	} else {
		log.Info().Str("module", "main").Msg("assistant disabled: no api key")
	}
	svc := chat.NewService(db, publisher, opts)

	ctl := wssignal.NewSignalWSController(
		coord,
		wssignal.OptionsFromConfig(cfg),
		app.NewRateLimiter[core.ConnectionID](cfg.RateLimit.JoinLimit, cfg.RateLimit.JoinInterval),
	)

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Store:    db,
		Chat:     svc,
		Presence: coord,
		JWT:      auth.NewJWTManager(cfg.Secret, cfg.JWTTTL),
		Profiles: auth.NewGoogleFetcher(cfg.Auth.UserInfoURL),
		Signal:   ctl,
		Gatherer: reg,
	})
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router.WithCORS(r, cfg.CORS.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("roomchat server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		svc.Wait()
		return nil
	})

	return g.Wait()
}
