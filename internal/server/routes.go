package server

import (
	"github.com/labstack/echo/v4"

	"example.com/finance-visualizer/backend/internal/handlers"
)

func registerRoutes(
	e *echo.Echo,
	health echo.HandlerFunc,
	sessionHandler *handlers.SessionHandler,
	aiHandler *handlers.AIHandler,
	notificationHandler *handlers.NotificationHandler,
	statsHandler *handlers.StatsHandler,
	bodyLimit echo.MiddlewareFunc,
	uploadRateLimiter echo.MiddlewareFunc,
	aiRateLimiter echo.MiddlewareFunc,
) {
	e.GET("/health", health)

	api := e.Group("/api/v1")

	api.POST("/sessions", sessionHandler.Create, bodyLimit, uploadRateLimiter)

	sessions := api.Group("/sessions/:id")
	sessions.GET("", sessionHandler.Get)
	sessions.DELETE("", sessionHandler.Delete)
	sessions.GET("/transactions", sessionHandler.Transactions)
	sessions.GET("/events", notificationHandler.Stream)
	sessions.GET("/export/json", sessionHandler.ExportJSON)
	sessions.GET("/export/csv", sessionHandler.ExportCSV)
	sessions.GET("/export/pdf", sessionHandler.ExportPDF)

	sessions.GET("/insights", aiHandler.GetInsights)
	sessions.POST("/insights", aiHandler.RegenerateInsights, aiRateLimiter)
	sessions.GET("/chat", aiHandler.History)
	sessions.POST("/chat", aiHandler.Chat, aiRateLimiter)

	stats := api.Group("/stats")
	stats.GET("/overview", statsHandler.Overview)
}
