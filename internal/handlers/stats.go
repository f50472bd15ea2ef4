package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"example.com/finance-visualizer/backend/internal/session"
)

type StatsHandler struct {
	Uploads  UploadStore
	Sessions *session.Store
}

// NewStatsHandler создает обработчик статистики загрузок.
func NewStatsHandler(uploads UploadStore, sessions *session.Store) *StatsHandler {
	return &StatsHandler{Uploads: uploads, Sessions: sessions}
}

type OverviewResponse struct {
	TotalUploads      int        `json:"total_uploads"`
	ActiveUploads     int        `json:"active_uploads"`
	ActiveSessions    int        `json:"active_sessions"`
	TotalTransactions int        `json:"total_transactions"`
	DroppedRows       int        `json:"dropped_rows"`
	TotalIncome       float64    `json:"total_income"`
	TotalExpenses     float64    `json:"total_expenses"`
	AIRequests        int        `json:"ai_requests"`
	AIFailures        int        `json:"ai_failures"`
	LastUploadAt      *time.Time `json:"last_upload_at,omitempty"`
}

// Overview возвращает сводную статистику по загрузкам.
func (h *StatsHandler) Overview(c echo.Context) error {
	if h.Uploads == nil {
		return serviceUnavailable(c, "statistics require a database")
	}

	stats, err := h.Uploads.Overview(c.Request().Context())
	if err != nil {
		slog.Error("failed to load overview", slog.String("error", err.Error()))
		return serverError(c)
	}

	return c.JSON(http.StatusOK, OverviewResponse{
		TotalUploads:      stats.TotalUploads,
		ActiveUploads:     stats.ActiveUploads,
		ActiveSessions:    h.Sessions.Len(),
		TotalTransactions: stats.TotalTransactions,
		DroppedRows:       stats.DroppedRows,
		TotalIncome:       stats.TotalIncome.InexactFloat64(),
		TotalExpenses:     stats.TotalExpenses.InexactFloat64(),
		AIRequests:        stats.AIRequests,
		AIFailures:        stats.AIFailures,
		LastUploadAt:      stats.LastUploadAt,
	})
}
