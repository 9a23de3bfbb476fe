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

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/callrecap/internal/adapters/ai"
	router "github.com/dkeye/callrecap/internal/adapters/http"
	"github.com/dkeye/callrecap/internal/adapters/mail"
	"github.com/dkeye/callrecap/internal/adapters/sink"
	"github.com/dkeye/callrecap/internal/adapters/storage"
	"github.com/dkeye/callrecap/internal/app"
	"github.com/dkeye/callrecap/internal/app/orch"
	"github.com/dkeye/callrecap/internal/app/recap"
	"github.com/dkeye/callrecap/internal/app/recording"
	"github.com/dkeye/callrecap/internal/config"
	"github.com/dkeye/callrecap/internal/domain"
)

const shutdownTimeout = 30 * time.Second

func main() {
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
	if cfg.Mode == "release" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	blobs, err := openStore(ctx, cfg.Recording)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Recording.Driver).Msg("failed to open recording store")
	}

	proc := &recap.Processor{
		Blobs:       blobs,
		Transcriber: ai.NewMistralTranscriber(cfg.AI),
		Summarizer:  ai.NewAnthropicSummarizer(cfg.AI),
		Concurrency: cfg.AI.Concurrency,
	}
	if cfg.SMTP.Host != "" {
		m, err := mail.NewSMTPMailer(cfg.SMTP)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to set up mailer")
		}
		proc.Mailer = m
	} else {
		log.Warn().Msg("smtp.host not set, recap emails disabled")
	}
	if wh := sink.NewWebhook(cfg.Webhook); wh != nil {
		proc.Sink = wh
	}

	agg := recording.NewAggregator(recording.Config{
		ExpectedContributors: domain.RoomCapacity,
		ProcessingDelay:      cfg.Recording.ProcessingDelay,
		StaleAfter:           cfg.Recording.StaleAfter,
	}, blobs, proc)

	policy, err := app.PolicyFor(cfg.Signal.Backpressure)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid backpressure policy")
	}
	o := &orch.Orchestrator{
		Registry:      app.NewRegistry(),
		Policy:        policy,
		Recordings:    agg,
		EndCallResend: cfg.Signal.EndCallResend,
	}
	rooms := app.NewRoomManager(cfg.Room.GracePeriod, o.OnRoomReaped)
	o.Rooms = rooms

	r := router.SetupRouter(ctx, cfg, o, agg)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("callrecap server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		o.Close()
		rooms.Close()
		return agg.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
	log.Info().Msg("Server exited gracefully")
}

func openStore(ctx context.Context, cfg config.RecordingConfig) (storage.Store, error) {
	switch cfg.Driver {
	case "s3":
		client, err := storage.NewS3Client(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return storage.NewS3Store(client, cfg.S3.Bucket, cfg.S3.Prefix)
	default:
		return storage.NewFSStore(cfg.Dir)
	}
}
