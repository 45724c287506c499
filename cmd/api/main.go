package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-assistant/internal/api"
	"github.com/dvloznov/finance-assistant/internal/archive"
	"github.com/dvloznov/finance-assistant/internal/assistant"
	"github.com/dvloznov/finance-assistant/internal/config"
	"github.com/dvloznov/finance-assistant/internal/gemini"
	infraBQ "github.com/dvloznov/finance-assistant/internal/infra/bigquery"
	"github.com/dvloznov/finance-assistant/internal/jobs/inmemory"
	"github.com/dvloznov/finance-assistant/internal/logger"
	"github.com/dvloznov/finance-assistant/internal/recorder"
	sessionmem "github.com/dvloznov/finance-assistant/internal/session/inmemory"
)

func main() {
	// Parse command-line flags
	var (
		port    = flag.String("port", "", "HTTP server port (overrides PORT)")
		envFile = flag.String("env", ".env", "Path to an optional .env file")
	)
	flag.Parse()

	bootLog := logger.New()

	cfg, err := config.Load(*envFile)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	// Initialize logger
	log, err := logger.NewFromConfig(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("Invalid logging configuration")
	}

	ctx := logger.WithContext(context.Background(), log)

	gen, err := gemini.NewClient(ctx, cfg.Gemini.APIKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}

	sessions := sessionmem.NewStore()
	if cfg.Server.SessionIdle > 0 {
		sweeper, err := sessionmem.StartSweeper(sessions, cfg.Server.SweepSchedule, cfg.Server.SessionIdle, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to start session sweeper")
		}
		defer sweeper.Stop()
	}

	opts := []assistant.Option{assistant.WithHistoryWindow(cfg.Server.HistoryWindow)}
	deps := api.Deps{
		Sessions:       sessions,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		SecureCookies:  cfg.Server.SecureCookies,
		Log:            log,
	}

	// Start worker in background to record exchanges
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	var rec *recording
	if cfg.Recording.Enabled() {
		rec, err = startRecording(workerCtx, cfg.Recording, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to start exchange recording")
		}
		opts = append(opts, assistant.WithPublisher(rec.queue))
		deps.Jobs = rec.store
	} else {
		log.Warn().Msg("No ARCHIVE_BUCKET or BQ_PROJECT_ID configured - exchange recording disabled")
	}

	deps.Assistant = assistant.NewService(gen, cfg.Gemini.Model, opts...)

	// Create HTTP server
	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().
			Str("port", cfg.Server.Port).
			Str("model", cfg.Gemini.Model).
			Int("history_window", cfg.Server.HistoryWindow).
			Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if rec != nil {
		rec.stop(shutdownCtx, log)
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}

// recording bundles the queue and sinks behind exchange recording.
type recording struct {
	queue    *inmemory.Queue
	store    *inmemory.Store
	archiver *archive.GCSArchiver
	repo     *infraBQ.ExchangeRepository
}

func startRecording(ctx context.Context, cfg config.RecordingConfig, log zerolog.Logger) (*recording, error) {
	rec := &recording{}

	// Sinks stay nil unless configured; the recorder skips nil sinks.
	var (
		arch   archive.Archiver
		writer recorder.ExchangeWriter
	)

	if cfg.ArchiveBucket != "" {
		a, err := archive.NewGCSArchiver(ctx, cfg.ArchiveBucket)
		if err != nil {
			return nil, err
		}
		rec.archiver = a
		arch = a
		log.Info().Str("bucket", cfg.ArchiveBucket).Msg("Attachment archive enabled")
	}

	if cfg.BQProjectID != "" {
		repo, err := infraBQ.NewExchangeRepository(ctx, cfg.BQProjectID, cfg.BQDataset)
		if err != nil {
			rec.closeSinks(log)
			return nil, err
		}
		rec.repo = repo
		writer = repo
		log.Info().Str("project", cfg.BQProjectID).Str("dataset", cfg.BQDataset).Msg("Exchange table enabled")
	}

	rec.store = inmemory.NewStore()
	rec.queue = inmemory.NewQueue(inmemory.QueueOptions{
		BufferSize: cfg.QueueSize,
		Workers:    cfg.Workers,
	}, rec.store)

	handler := recorder.New(arch, writer)
	if err := rec.queue.Start(ctx, handler.Handle); err != nil {
		rec.closeSinks(log)
		return nil, err
	}
	log.Info().Int("workers", cfg.Workers).Msg("Started exchange recording workers")

	return rec, nil
}

// stop waits for in-flight jobs and then closes the sinks.
func (r *recording) stop(ctx context.Context, log zerolog.Logger) {
	if err := r.queue.Stop(ctx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	r.closeSinks(log)
}

func (r *recording) closeSinks(log zerolog.Logger) {
	if r.archiver != nil {
		if err := r.archiver.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close archive client")
		}
	}
	if r.repo != nil {
		if err := r.repo.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close BigQuery client")
		}
	}
}
