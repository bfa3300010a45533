package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/prepdeck-marketing-api/api/swagger"
	"github.com/noah-isme/prepdeck-marketing-api/internal/handler"
	internalmiddleware "github.com/noah-isme/prepdeck-marketing-api/internal/middleware"
	"github.com/noah-isme/prepdeck-marketing-api/internal/repository"
	"github.com/noah-isme/prepdeck-marketing-api/internal/service"
	"github.com/noah-isme/prepdeck-marketing-api/pkg/broker"
	"github.com/noah-isme/prepdeck-marketing-api/pkg/cache"
	"github.com/noah-isme/prepdeck-marketing-api/pkg/config"
	"github.com/noah-isme/prepdeck-marketing-api/pkg/database"
	"github.com/noah-isme/prepdeck-marketing-api/pkg/docstore"
	"github.com/noah-isme/prepdeck-marketing-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/prepdeck-marketing-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/prepdeck-marketing-api/pkg/middleware/requestid"
	"github.com/noah-isme/prepdeck-marketing-api/pkg/storage"
)

// @title PrepDeck Marketing API
// @version 1.0.0
// @description Live home page content, reviews, analytics and the page stream
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	clock := clockwork.NewRealClock()
	metrics := service.NewMetricsService()
	validate := validator.New()

	cacheRepo, closeCache, err := openCache(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer closeCache()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, cfg.Cache.KeyPrefix, clock, logr)

	backend, err := openBackend(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer backend.close()

	content := service.NewContentService(service.ContentOptions{
		Source:          backend.source,
		Cache:           cacheSvc,
		Clock:           clock,
		Metrics:         metrics,
		Logger:          logr,
		MaxRetries:      cfg.Loader.MaxRetries,
		RetryBase:       cfg.Loader.RetryBase,
		DefaultDuration: cfg.Carousel.DefaultDuration,
	})
	content.Start(ctx)
	defer content.Stop()

	var publisher service.EventPublisher
	if cfg.Analytics.Enabled {
		amqpPublisher, err := broker.Dial(cfg.Analytics.AMQPURL, cfg.Analytics.Exchange)
		if err != nil {
			logr.Warn("analytics broker unavailable, events will only be logged", zap.Error(err))
		} else {
			defer amqpPublisher.Close() //nolint:errcheck
			publisher = amqpPublisher
		}
	}
	analytics := service.NewAnalyticsService(publisher, service.AnalyticsOptions{
		RoutingKey: cfg.Analytics.RoutingKey,
		Workers:    cfg.Analytics.Workers,
		MaxRetries: 2,
	}, validate, clock, metrics, logr)
	analytics.Start(ctx)
	defer analytics.Stop()

	authSvc := service.NewAuthService(logr, service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})
	reviews := service.NewReviewService(backend.reviews, validate, logr)
	popup := service.NewPopupService(clock, cfg.Popup.Timezone)
	images := service.NewImageLoader(service.NewHTTPImageProber(cfg.Images.AllowedHosts), service.ImageLoaderConfig{
		Timeout:     cfg.Images.Timeout,
		MaxAttempts: cfg.Images.MaxAttempts,
		RetryBase:   cfg.Images.RetryBase,
		RootMargin:  cfg.Images.RootMargin,
		Placeholder: cfg.Images.Placeholder,
		Clock:       clock,
	}, metrics, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	metricsHandler := handler.NewMetricsHandler(metrics, content)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handler.Handlers{
		Content: handler.NewContentHandler(content, popup, cfg.Popup.CookieName, cfg.Env == config.EnvProduction),
		Reviews: handler.NewReviewHandler(reviews),
		Events:  handler.NewEventHandler(analytics, cfg.Contact.DeepLink, cfg.Contact.DefaultMessage, logr),
		Images:  handler.NewImageHandler(images),
		Stream: handler.NewStreamHandler(service.SessionOptions{
			Content:         content,
			Images:          images,
			Clock:           clock,
			DefaultDuration: cfg.Carousel.DefaultDuration,
			Metrics:         metrics,
			Logger:          logr,
		}, cfg.CORS.AllowedOrigins, logr),
	}, authSvc)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "docstore", cfg.DocStore.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// Shutdown does not wait for hijacked stream connections; they close when the process exits.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("http shutdown incomplete", zap.Error(err))
	}
	return nil
}

// openCache prefers Redis and falls back to the on-disk snapshot cache.
func openCache(ctx context.Context, cfg *config.Config, logr *zap.Logger) (service.CacheRepository, func(), error) {
	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err == nil {
			repo := repository.NewCacheRepository(client)
			return repo, func() { _ = repo.Close() }, nil
		}
		logr.Warn("redis unavailable, using file snapshot cache", zap.Error(err))
	}

	store, err := storage.NewLocalStorage(cfg.Cache.Dir)
	if err != nil {
		return nil, nil, fmt.Errorf("open snapshot cache dir: %w", err)
	}
	repo := repository.NewFileCacheRepository(store)
	if pruned, err := repo.Prune(2 * cfg.Cache.TTL); err != nil {
		logr.Warn("snapshot cache prune failed", zap.Error(err))
	} else if pruned > 0 {
		logr.Info("pruned stale snapshots", zap.Int("count", pruned))
	}
	return repo, func() {}, nil
}

type contentBackend struct {
	source  service.DocumentSource
	reviews service.ReviewRepository
	close   func()
}

func openBackend(ctx context.Context, cfg *config.Config, logr *zap.Logger) (*contentBackend, error) {
	switch cfg.DocStore.Backend {
	case config.BackendPostgres:
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		listener, err := database.NewListener(cfg.Database, repository.DocumentsChannel, logr)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("listen %s: %w", repository.DocumentsChannel, err)
		}
		source := repository.NewPostgresSource(db, listener, logr)
		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			source.Run(runCtx)
		}()
		return &contentBackend{
			source:  source,
			reviews: repository.NewPostgresReviewRepository(db),
			close: func() {
				cancel()
				<-done
				_ = listener.Close()
				_ = db.Close()
			},
		}, nil
	default:
		client, err := docstore.NewFirestore(ctx, cfg.Firestore)
		if err != nil {
			return nil, err
		}
		return &contentBackend{
			source:  repository.NewFirestoreSource(client),
			reviews: repository.NewFirestoreReviewRepository(client),
			close:   func() { _ = client.Close() },
		}, nil
	}
}
