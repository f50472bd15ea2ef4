package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"example.com/finance-visualizer/backend/internal/ai"
	"example.com/finance-visualizer/backend/internal/config"
	"example.com/finance-visualizer/backend/internal/handlers"
	"example.com/finance-visualizer/backend/internal/notifications"
	"example.com/finance-visualizer/backend/internal/repository"
	"example.com/finance-visualizer/backend/internal/session"
)

// multipartOverhead задает запас BodyLimit сверх размера файла на заголовки multipart.
const multipartOverhead = 64 << 10

// New собирает HTTP-сервер Echo с роутами и зависимостями.
// db может быть nil: тогда аудит загрузок и статистика отключены.
func New(cfg config.Config, logger *slog.Logger, db *pgxpool.Pool, sessions *session.Store, hub *notifications.Hub) *echo.Echo {
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewValidator()

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(logger))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.Server.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
	}))

	var uploads handlers.UploadStore
	var requests handlers.AIRequestLogger
	if db != nil {
		uploads = repository.NewUploadRepository(db)
		requests = repository.NewAIRepository(db)
	}

	aiClient, err := ai.NewClient(context.Background(), cfg.AI)
	if err != nil {
		logger.Warn("ai provider unavailable, fallbacks will be used", slog.String("provider", cfg.AI.Provider), slog.String("error", err.Error()))
		aiClient = ai.Unavailable(err)
	}
	aiService := ai.NewService(aiClient)

	aiHandler := handlers.NewAIHandler(aiService, sessions, hub, requests, cfg.AI.Provider, cfg.AI.Model, cfg.AI.Timeout)
	sessionHandler := handlers.NewSessionHandler(sessions, uploads, hub, aiHandler, cfg.AI.AutoInsights, cfg.Upload.MaxBytes, cfg.Upload.Separator)
	sessions.OnClose(sessionHandler.HandleClosed)
	notificationHandler := handlers.NewNotificationHandler(hub, sessions)
	statsHandler := handlers.NewStatsHandler(uploads, sessions)

	registerRoutes(
		e,
		handlers.Health(sessions, db != nil),
		sessionHandler,
		aiHandler,
		notificationHandler,
		statsHandler,
		middleware.BodyLimit(bodyLimit(cfg.Upload.MaxBytes)),
		uploadRateLimiter(cfg.Upload),
		aiRateLimiter(cfg.AI),
	)

	return e
}

// NewHTTPServer создает net/http сервер с заданными таймаутами.
func NewHTTPServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogError:     true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("request_id", v.RequestID),
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.String("remote_ip", v.RemoteIP),
				slog.Duration("latency", v.Latency),
			}

			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}

			msg := "request completed"
			if v.Status >= http.StatusInternalServerError {
				logger.LogAttrs(c.Request().Context(), slog.LevelError, msg, attrs...)
				return nil
			}

			logger.LogAttrs(c.Request().Context(), slog.LevelInfo, msg, attrs...)
			return nil
		},
	})
}

// bodyLimit переводит лимит файла в формат middleware.BodyLimit ("128K").
func bodyLimit(maxBytes int64) string {
	kilobytes := (maxBytes + multipartOverhead + 1023) / 1024
	return strconv.FormatInt(kilobytes, 10) + "K"
}

func uploadRateLimiter(cfg config.UploadConfig) echo.MiddlewareFunc {
	return perMinuteLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst)
}

func aiRateLimiter(cfg config.AIConfig) echo.MiddlewareFunc {
	return perMinuteLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst)
}

func perMinuteLimiter(perMinute, burst int) echo.MiddlewareFunc {
	limit := rate.Limit(float64(perMinute) / 60.0)
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      limit,
		Burst:     burst,
		ExpiresIn: time.Minute,
	})

	return middleware.RateLimiter(store)
}
