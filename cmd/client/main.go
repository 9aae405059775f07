package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"faindi/internal/adapter/api"
	"faindi/internal/adapter/api/handler"
	apimiddleware "faindi/internal/adapter/api/middleware"
	"faindi/internal/adapter/api/router"
	"faindi/internal/adapter/repository"
	apiclient "faindi/internal/infrastructure/api"
	"faindi/internal/infrastructure/metrics"
	"faindi/internal/infrastructure/ratelimit"
	"faindi/internal/infrastructure/storage"
	"faindi/internal/infrastructure/websocket"
	"faindi/internal/usecase"
	"faindi/pkg/config"
	"faindi/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger.SetLevel(level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := repository.OpenDB(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to open local store: %v", err)
	}
	defer db.Close()

	tokenRepo := repository.NewSQLiteTokenRepository(db, cfg.TokenSecret)
	outboxRepo := repository.NewSQLiteOutboxRepository(db)

	if err := os.MkdirAll(cfg.MediaDir, 0o700); err != nil {
		log.Fatalf("Failed to create media directory: %v", err)
	}
	storageClient, err := storage.NewCloudStorageClient(ctx, cfg.StorageBucket, cfg.FirebaseProject, cfg.FirebaseServiceAccountPath, cfg.MediaDir)
	if err != nil {
		log.Fatalf("Failed to initialize storage client: %v", err)
	}

	m := metrics.New()
	wsManager := websocket.NewManager()
	wsManager.Start(ctx)

	var sessionUseCase *usecase.SessionUseCase
	backend := apiclient.NewClient(
		cfg.APIURL,
		&http.Client{Timeout: cfg.HTTPTimeout},
		func() string { return sessionUseCase.Token() },
		apiclient.WithObserver(m),
		apiclient.WithLogger(logger.Std{}),
	)

	channel := websocket.NewChannel(cfg.HostURL, func() http.Header {
		h := http.Header{}
		if token := sessionUseCase.Token(); token != "" {
			h.Set("x-access-token", token)
		}
		return h
	}, 5*time.Second)

	rateLimiter := ratelimit.NewRateLimiter()

	sessionUseCase = usecase.NewSessionUseCase(backend, tokenRepo, storageClient, wsManager)
	catalogUseCase := usecase.NewCatalogUseCase(backend, sessionUseCase, wsManager, m)
	chatUseCase := usecase.NewChatUseCase(backend, sessionUseCase, channel, storageClient, outboxRepo, rateLimiter, wsManager, m)
	profileUseCase := usecase.NewProfileUseCase(backend, sessionUseCase, catalogUseCase, chatUseCase, wsManager, m)
	catalogUseCase.MirrorLikesTo(profileUseCase)
	usecase.BindSession(sessionUseCase, catalogUseCase, profileUseCase, chatUseCase)

	backend.OnUnauthorized(func() {
		logger.Warn("Backend rejected the access token, signing out")
		if err := sessionUseCase.Logout(context.Background()); err != nil {
			logger.Error("Failed to sign out: %v", err)
		}
	})

	// a signed-in user joins the chat room on every (re)connect so the
	// server routes their messages to this channel
	channel.OnConnect(func(ctx context.Context) {
		if !sessionUseCase.Authenticated() {
			return
		}
		if err := chatUseCase.Join(ctx); err != nil {
			logger.Error("Failed to join chat: %v", err)
		}
	})
	sessionUseCase.OnChange(func(authenticated bool) {
		if !authenticated {
			return
		}
		go func() {
			if err := chatUseCase.Join(ctx); err != nil {
				logger.Debug("Chat join deferred until reconnect: %v", err)
			}
			if err := usecase.LoadAll(ctx, catalogUseCase, profileUseCase, chatUseCase); err != nil {
				logger.Error("Failed to load caches: %v", err)
			}
		}()
	})

	go channel.Run(ctx)
	go func() {
		for env := range channel.Events() {
			if err := chatUseCase.HandleInbound(ctx, env); err != nil {
				logger.Warn("Dropped %s event: %v", env.Event, err)
			}
		}
	}()

	rateLimiter.StartCleanupRoutine(ctx)
	go retryLoop(ctx, chatUseCase, cfg.RetryInterval)

	restored, err := sessionUseCase.Restore(ctx)
	if err != nil {
		logger.Warn("Session restore failed, keeping stored token: %v", err)
	}
	if restored {
		logger.Info("Restored session for %s", sessionUseCase.UserID())
	}

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.Validator = api.NewValidator()

	originMiddleware := apimiddleware.NewOriginMiddleware(cfg.AllowedOrigins)

	handlers := handler.Setup(sessionUseCase, catalogUseCase, profileUseCase, chatUseCase, channel, wsManager, originMiddleware)
	router.Setup(e, handlers, apimiddleware.NewSessionMiddleware(sessionUseCase), originMiddleware, m.Handler())

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting local API on %s...", cfg.LocalAddr)
		serverErr <- e.Start(cfg.LocalAddr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Local API stopped: %v", err)
		}
	case sig := <-shutdown:
		logger.Info("Received %s, shutting down", sig)
	}

	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown: %v", err)
	}
}

// retryLoop re-sends failed outbox messages while a session is active.
func retryLoop(ctx context.Context, chat *usecase.ChatUseCase, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := chat.RetryFailed(ctx)
			if err != nil {
				logger.Debug("Outbox retry: %v", err)
				continue
			}
			if n > 0 {
				logger.Info("Outbox retry re-sent %d messages", n)
			}
		}
	}
}
