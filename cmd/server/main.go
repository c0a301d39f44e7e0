// @title           Photo Review Backend API
// @version         1.0.0
// @description     Accepts photo uploads, asks a Discord reviewer channel for a verdict through buttons or a text command, and reports the verdict back to the uploading client.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:3000
// @BasePath  /

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"photo-review-backend/internal/config"
	"photo-review-backend/internal/discord"
	"photo-review-backend/internal/dispatcher"
	"photo-review-backend/internal/handlers"
	"photo-review-backend/internal/idgen"
	"photo-review-backend/internal/ledger"
	"photo-review-backend/internal/middleware"
	"photo-review-backend/internal/notifier"
	"photo-review-backend/internal/services"
	"photo-review-backend/internal/signature"
	"photo-review-backend/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	setupLogging(cfg)

	// Set Gin mode
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	vocab, err := cfg.Vocabulary()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid verdict vocabulary")
	}

	verifier, err := signature.NewVerifier(cfg.DiscordPublicKey)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid DISCORD_PUBLIC_KEY")
	}

	ids, err := idgen.New(cfg.IDNode)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize id generator")
	}

	store, uploadDir, err := newStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StorageBackend).Msg("failed to initialize storage")
	}

	queue, err := newQueue(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("queue", cfg.NotifyQueue).Msg("failed to initialize notification queue")
	}

	discordClient, err := discord.NewClient(cfg.DiscordBotToken, cfg.DiscordChannelID, vocab)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize discord client")
	}

	guard, err := middleware.NewReplayGuard(cfg.InteractionReplayCache, cfg.InteractionMaxSkew)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize replay guard")
	}

	// Core
	l := ledger.New()
	d := dispatcher.New(l)
	statusService := services.NewStatusService(l)
	uploadService := services.NewUploadService(ids, store, l, queue, cfg.BaseURL)
	worker := notifier.NewWorker(queue, discordClient, cfg.NotifyMaxRetries, notifier.WithRecords(l))

	interactionGate := middleware.SignatureGate(verifier, guard)
	var messageGate gin.HandlerFunc
	switch cfg.MessageAuthMode {
	case config.AuthModeSignature:
		messageGate = interactionGate
	case config.AuthModeToken:
		messageGate = middleware.BridgeToken(cfg.BridgeJWTSecret)
	case config.AuthModeTrusted:
		log.Warn().Msg("MESSAGE_AUTH_MODE=trusted: /discord/message accepts unauthenticated commands; keep it on an internal network")
	}

	router := handlers.NewRouter(handlers.Routes{
		Upload:          handlers.NewUploadHandler(uploadService, cfg.MaxUploadBytes),
		Status:          handlers.NewStatusHandler(statusService),
		Stream:          handlers.NewStreamHandler(statusService),
		Interactions:    handlers.NewInteractionsHandler(d),
		Messages:        handlers.NewMessageHandler(d),
		InteractionGate: interactionGate,
		MessageGate:     messageGate,
		UploadDir:       uploadDir,
		StaticDir:       cfg.StaticDir,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Str("storage", cfg.StorageBackend).Str("queue", cfg.NotifyQueue).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// The worker outlives the server so notifications for uploads accepted
	// while draining still go out; it stops once the closed queue is empty
	// or the drain deadline passes.
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()

	g.Go(func() error {
		err := worker.Run(workerCtx)
		if err == nil && gctx.Err() == nil {
			// Quit on its own (e.g. broker gone); bring the server down too.
			err = errors.New("notification worker stopped unexpectedly")
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)

		if cerr := queue.Close(); cerr != nil {
			log.Error().Err(cerr).Msg("failed to close notification queue")
		}
		time.AfterFunc(shutdownTimeout, stopWorker)
		return err
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
	log.Info().Msg("server stopped")
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// newStore returns the configured photo store and, for the disk backend, the
// directory the router should serve under /uploads.
func newStore(cfg *config.Config) (storage.Store, string, error) {
	switch cfg.StorageBackend {
	case config.StorageSupabase:
		s, err := storage.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket)
		return s, "", err
	case config.StorageMinio:
		s, err := storage.NewMinioStore(storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			Region:    cfg.MinioRegion,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			URLExpiry: cfg.MinioURLExpiry,
		})
		return s, "", err
	default:
		s, err := storage.NewDiskStore(cfg.UploadDir, "uploads")
		if err != nil {
			return nil, "", err
		}
		return s, s.Root(), nil
	}
}

func newQueue(cfg *config.Config) (notifier.Queue, error) {
	if cfg.NotifyQueue == config.QueueAMQP {
		return notifier.DialAMQP(cfg.AMQPURL, cfg.AMQPQueue)
	}
	return notifier.NewMemoryQueue(cfg.NotifyQueueSize), nil
}
