package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/KarpovAlexandrGo/taskboard/internal/config"
	httpcontroller "github.com/KarpovAlexandrGo/taskboard/internal/controller/http"
	"github.com/KarpovAlexandrGo/taskboard/internal/metrics"
	"github.com/KarpovAlexandrGo/taskboard/internal/notify"
	"github.com/KarpovAlexandrGo/taskboard/internal/repo/postgres"
	"github.com/KarpovAlexandrGo/taskboard/internal/repo/redis"
	"github.com/KarpovAlexandrGo/taskboard/internal/repo/sqlite"
	"github.com/KarpovAlexandrGo/taskboard/internal/usecase"
	"github.com/KarpovAlexandrGo/taskboard/pkg/logger"
)

type App struct {
	Server      *http.Server
	wg          sync.WaitGroup
	closeStore  func()
	redisClient *goredis.Client
	dispatcher  *notify.Dispatcher
}

func NewApp() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.SetLevel(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	taskRepo, closeStore, err := initStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	redisClient, err := initRedis(ctx, cfg)
	if err != nil {
		closeStore()
		return nil, err
	}

	cacheRepo := redis.NewCacheRepository(redisClient, cfg.BoardCacheTTL)
	scheduler := notify.NewScheduler(redisClient)

	taskUseCase := usecase.NewTaskUseCase(taskRepo, cacheRepo, scheduler)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: setupRouter(taskUseCase, cfg.JWTSecret),
	}

	return &App{
		Server:      server,
		closeStore:  closeStore,
		redisClient: redisClient,
		dispatcher:  notify.NewDispatcher(scheduler, notify.LogSink, cfg.ReminderPollInterval),
	}, nil
}

// initStore opens the task store selected by cfg.StoreDriver and applies its
// migrations.
func initStore(ctx context.Context, cfg config.Config) (usecase.TaskRepository, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		repo, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		logger.Log.WithField("path", cfg.SQLitePath).Info("Using SQLite task store")
		return repo, func() {
			if err := repo.Close(); err != nil {
				logger.Log.WithError(err).Error("Failed to close SQLite store")
			}
		}, nil

	default:
		if err := postgres.Migrate(ctx, cfg.PostgresDSN); err != nil {
			return nil, nil, err
		}

		dbPool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}

		if err := dbPool.Ping(ctx); err != nil {
			dbPool.Close()
			return nil, nil, fmt.Errorf("failed to ping database: %w", err)
		}

		logger.Log.Info("Connected to database successfully")
		return postgres.NewTaskRepository(dbPool), dbPool.Close, nil
	}
}

func initRedis(ctx context.Context, cfg config.Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	logger.Log.WithField("addr", cfg.RedisAddr).Info("Connected to redis successfully")
	return client, nil
}

func setupRouter(taskUC usecase.TaskUseCase, jwtSecret string) *chi.Mux {
	router := chi.NewRouter()

	router.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		metrics.Middleware,
		middleware.Heartbeat("/health"),
		middleware.Timeout(60*time.Second),
	)

	router.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pong"))
	})
	router.Handle("/metrics", metrics.Handler())

	if jwtSecret == "" {
		logger.Log.Warn("AUTH_JWT_SECRET is not set, trusting the X-Owner-ID header")
	}
	router.Group(func(r chi.Router) {
		r.Use(httpcontroller.OwnerMiddleware(jwtSecret))
		httpcontroller.NewTaskHandler(taskUC).RegisterRoutes(r)
	})

	return router
}

func (a *App) Run() error {
	defer a.closeStore()
	defer a.redisClient.Close()

	serverCtx, serverStopCtx := context.WithCancel(context.Background())

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.dispatcher.Run(serverCtx)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		select {
		case <-sig:
			logger.Log.Info("Shutdown signal received")
		case <-serverCtx.Done():
			return
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			logger.Log.WithError(err).Error("HTTP server shutdown failed")
		}
		if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
			logger.Log.Error("Graceful shutdown timed out")
		}
		serverStopCtx()
	}()

	logger.Log.Info("Starting server on " + a.Server.Addr)
	if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		serverStopCtx()
		a.wg.Wait()
		return fmt.Errorf("server failed: %w", err)
	}

	<-serverCtx.Done()
	a.wg.Wait()
	logger.Log.Info("Server stopped gracefully")
	return nil
}
