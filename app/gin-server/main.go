package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoochat/config"
	"github.com/yoockh/yoochat/internal/api/handlers"
	"github.com/yoockh/yoochat/internal/api/middleware"
	"github.com/yoockh/yoochat/internal/api/routes"
	"github.com/yoockh/yoochat/internal/cache"
	"github.com/yoockh/yoochat/internal/logger"
	"github.com/yoockh/yoochat/internal/models"
	"github.com/yoockh/yoochat/internal/providers/llm"
	"github.com/yoockh/yoochat/internal/providers/stt"
	"github.com/yoockh/yoochat/internal/pubsub"
	mongorepo "github.com/yoockh/yoochat/internal/repositories/mongo"
	pgrepo "github.com/yoockh/yoochat/internal/repositories/postgres"
	"github.com/yoockh/yoochat/internal/services"
	"github.com/yoockh/yoochat/internal/storage"
	"github.com/yoockh/yoochat/internal/workers"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()
	cfg := config.LoadApp()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.WithError(err).WithField("backend", cfg.StorageBackend).Fatal("storage init error")
	}
	defer closeStore()
	log.WithField("backend", cfg.StorageBackend).Info("storage ready")

	bus, err := openBus(cfg, log)
	if err != nil {
		log.WithError(err).WithField("bus", cfg.EventBus).Fatal("event bus init error")
	}

	sessions := services.NewSessionService(store)
	if err := sessions.Load(ctx); err != nil {
		log.WithError(err).Warn("starting with an empty session list")
	}
	settings := services.NewSettingsService(store)
	if err := settings.Load(ctx); err != nil {
		log.WithError(err).Warn("starting with default settings")
	}

	// Providers
	adapters := map[models.ProviderID]llm.Adapter{
		models.ProviderOpenAI:   llm.NewOpenAI(cfg.OpenAIBaseURL, cfg.OpenAIModel, nil, log),
		models.ProviderDeepSeek: llm.NewDeepSeek(cfg.DeepSeekBaseURL, cfg.DeepSeekModel, nil, log),
	}
	titles := llm.NewTitleGenerator(nil, log)
	if cfg.GoogleProject != "" {
		gemini, err := llm.NewVertexGemini(ctx, cfg.GoogleProject, cfg.GoogleLocation, cfg.GeminiModel)
		if err != nil {
			log.WithError(err).Fatal("vertex ai init error")
		}
		defer gemini.Close()
		adapters[models.ProviderGemini] = gemini
		titles = llm.NewTitleGenerator(gemini, log)
	} else {
		log.Warn("GOOGLE_CLOUD_PROJECT not set; gemini provider disabled")
	}
	normalizer := llm.NewNormalizer(adapters, log)

	var transcriber stt.Transcriber
	if cfg.Dictation {
		gs, err := stt.NewGoogleSpeech(ctx)
		if err != nil {
			log.WithError(err).Fatal("speech init error")
		}
		defer gs.Close()
		transcriber = gs
	}

	// Workers
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	persist := workers.NewPersistWorker(sessions, cfg.PersistDebounce, log)
	sessions.OnChange(persist.Notify)
	persist.Start(workerCtx)

	titlePool := &workers.TitleWorkerPool{
		Sessions:   sessions,
		Titles:     titles,
		Bus:        bus,
		NumWorkers: cfg.TitleWorkers,
		Logger:     log,
	}
	if err := titlePool.Start(workerCtx); err != nil {
		log.WithError(err).Fatal("title workers init error")
	}

	conversation := services.NewConversationService(workerCtx, sessions, settings, normalizer, titlePool, bus, log)

	// HTTP
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log), middleware.CORS(cfg.CORSOrigins))

	routes.RegisterRoutes(r, routes.Deps{
		Session:      handlers.NewSessionHandler(sessions, settings, bus, log),
		Settings:     handlers.NewSettingsHandler(settings),
		Conversation: handlers.NewConversationHandler(conversation),
		Events:       handlers.NewEventsHandler(sessions, bus),
		WS:           handlers.NewWSHandler(sessions, bus, middleware.OriginAllowed(cfg.CORSOrigins)),
		Dictation:    handlers.NewDictationHandler(transcriber),
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		log.WithField("port", cfg.Port).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server error")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}

	// let in-flight replies land before the final flush
	turnsDone := make(chan struct{})
	go func() {
		conversation.Wait()
		close(turnsDone)
	}()
	select {
	case <-turnsDone:
	case <-shutdownCtx.Done():
		log.Warn("abandoning in-flight turns")
	}

	stopWorkers()
	titlePool.Wait()
	<-persist.Done()
	log.Info("bye")
}

func openStore(ctx context.Context, cfg config.App) (storage.BlobStore, func(), error) {
	noop := func() {}

	switch cfg.StorageBackend {
	case "", "file":
		s, err := storage.NewFileStore(cfg.DataDir)
		return s, noop, err

	case "redis":
		if err := config.InitRedis(); err != nil {
			return nil, noop, err
		}
		return cache.NewRedisCache(config.RedisClient), noop, nil

	case "mongo":
		if err := config.InitMongo(); err != nil {
			return nil, noop, err
		}
		if err := config.EnsureMongoIndexes(); err != nil {
			return nil, noop, err
		}
		db, err := config.MongoDatabase()
		if err != nil {
			return nil, noop, err
		}
		return mongorepo.NewBlobRepo(db), func() { _ = config.MongoClient.Disconnect(context.Background()) }, nil

	case "postgres":
		if err := config.InitPostgres(); err != nil {
			return nil, noop, err
		}
		repo, err := pgrepo.NewBlobRepo(config.PostgresDB)
		return repo, noop, err

	case "gcs":
		if cfg.GCSBucket == "" {
			return nil, noop, errors.New("GCS_BUCKET environment variable is not set")
		}
		s, err := storage.NewGCSStore(ctx, cfg.GCSBucket, cfg.GCSPrefix)
		if err != nil {
			return nil, noop, err
		}
		return s, func() { _ = s.Close() }, nil
	}
	return nil, noop, errors.New("unknown STORAGE_BACKEND: " + cfg.StorageBackend)
}

func openBus(cfg config.App, log *logrus.Logger) (pubsub.Bus, error) {
	switch cfg.EventBus {
	case "", "memory":
		return pubsub.NewMemoryBus(log), nil
	case "redis":
		if err := config.InitRedis(); err != nil {
			return nil, err
		}
		return pubsub.NewRedisBus(config.RedisClient, log), nil
	}
	return nil, errors.New("unknown EVENT_BUS: " + cfg.EventBus)
}
