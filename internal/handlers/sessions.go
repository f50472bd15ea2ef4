package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"example.com/finance-visualizer/backend/internal/ai"
	"example.com/finance-visualizer/backend/internal/analysis"
	"example.com/finance-visualizer/backend/internal/models"
	"example.com/finance-visualizer/backend/internal/notifications"
	"example.com/finance-visualizer/backend/internal/repository"
	"example.com/finance-visualizer/backend/internal/session"
	"example.com/finance-visualizer/backend/internal/transactions"
)

const (
	defaultTransactionsLimit = 100
	errNoTransactions        = "no valid transactions found in file"
	closeTimeout             = 5 * time.Second
)

type SessionHandler struct {
	Sessions     *session.Store
	Uploads      UploadStore
	Notifier     *notifications.Hub
	Insights     *AIHandler
	AutoInsights bool
	MaxBytes     int64
	Separator    string
}

// NewSessionHandler создает обработчик загрузки файлов и сессий анализа.
func NewSessionHandler(sessions *session.Store, uploads UploadStore, notifier *notifications.Hub, insights *AIHandler, autoInsights bool, maxBytes int64, separator string) *SessionHandler {
	return &SessionHandler{
		Sessions:     sessions,
		Uploads:      uploads,
		Notifier:     notifier,
		Insights:     insights,
		AutoInsights: autoInsights,
		MaxBytes:     maxBytes,
		Separator:    separator,
	}
}

type TransactionsQuery struct {
	Limit  int `query:"limit" validate:"omitempty,min=1,max=1000"`
	Offset int `query:"offset" validate:"omitempty,min=0"`
}

// Create принимает файл, разбирает операции и открывает новую сессию анализа.
func (h *SessionHandler) Create(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file is required")
	}

	if !isCSVFile(fileHeader) {
		return badRequest(c, "file must be a .csv file")
	}

	if h.MaxBytes > 0 && fileHeader.Size > h.MaxBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, map[string]string{"error": "file is too large"})
	}

	mode := strings.ToLower(strings.TrimSpace(c.FormValue("separator")))
	if mode == "" {
		mode = h.Separator
	}
	detect, ok := transactions.DetectorByName(mode)
	if !ok {
		return badRequest(c, "invalid separator mode")
	}

	raw, err := readUpload(fileHeader)
	if err != nil {
		slog.Error("failed to read upload", slog.String("file_name", fileHeader.Filename), slog.String("error", err.Error()))
		return badRequest(c, "could not read file")
	}

	parser := transactions.NewParser(transactions.WithSeparatorDetector(detect))
	txs, report, err := parser.ParseWithReport(raw)
	if err != nil {
		slog.Info("upload rejected", slog.String("file_name", fileHeader.Filename), slog.String("error", err.Error()))
		return unprocessable(c, err.Error())
	}

	if len(txs) == 0 {
		return unprocessable(c, errNoTransactions)
	}

	result := analysis.Aggregate(txs)
	sess := h.Sessions.Create(fileHeader.Filename, txs, result, report)

	slog.Info("session created",
		slog.String("session_id", sess.ID.String()),
		slog.String("file_name", sess.FileName),
		slog.Int("transactions", len(txs)),
		slog.Int("dropped", report.DroppedZero+report.DroppedInvalidDate),
	)

	h.recordUpload(c, sess)

	if h.AutoInsights && h.Insights != nil {
		h.Insights.StartInsights(sess)
	}

	response := toSessionResponse(sess)
	response.ChatGreeting = ai.ChatGreeting
	return c.JSON(http.StatusCreated, response)
}

// Get возвращает анализ и отчет парсера по сессии.
func (h *SessionHandler) Get(c echo.Context) error {
	sess, err := lookupSession(c, h.Sessions)
	if sess == nil {
		return err
	}

	return c.JSON(http.StatusOK, toSessionResponse(sess))
}

// Transactions возвращает разобранные операции постранично.
func (h *SessionHandler) Transactions(c echo.Context) error {
	sess, err := lookupSession(c, h.Sessions)
	if sess == nil {
		return err
	}

	var query TransactionsQuery
	if err := c.Bind(&query); err != nil {
		return badRequest(c, "invalid query")
	}
	if err := c.Validate(&query); err != nil {
		return badRequest(c, "validation failed")
	}

	limit := query.Limit
	if limit == 0 {
		limit = defaultTransactionsLimit
	}

	total := len(sess.Transactions)
	start := query.Offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return c.JSON(http.StatusOK, TransactionListResponse{
		Total:        total,
		Limit:        limit,
		Offset:       query.Offset,
		Transactions: toTransactionResponses(sess.Transactions[start:end]),
	})
}

// Delete сбрасывает сессию: анализ, инсайты и чат больше недоступны.
func (h *SessionHandler) Delete(c echo.Context) error {
	sess, err := lookupSession(c, h.Sessions)
	if sess == nil {
		return err
	}

	h.Sessions.Delete(sess.ID)
	h.closeSession(c.Request().Context(), sess.ID)

	slog.Info("session reset", slog.String("session_id", sess.ID.String()))
	return c.NoContent(http.StatusNoContent)
}

// HandleClosed освобождает ресурсы сессии, которую хранилище вытеснило или удалило по сроку.
func (h *SessionHandler) HandleClosed(id uuid.UUID, reason session.CloseReason) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	h.closeSession(ctx, id)
	slog.Info("session closed", slog.String("session_id", id.String()), slog.String("reason", string(reason)))
}

func (h *SessionHandler) closeSession(ctx context.Context, id uuid.UUID) {
	if h.Notifier != nil {
		h.Notifier.Close(id)
	}

	if h.Uploads != nil {
		if err := h.Uploads.MarkReset(ctx, id); err != nil && !errors.Is(err, repository.ErrNotFound) {
			slog.Warn("failed to mark upload reset", slog.String("session_id", id.String()), slog.String("error", err.Error()))
		}
	}
}

func (h *SessionHandler) recordUpload(c echo.Context, sess *session.Session) {
	if h.Uploads == nil {
		return
	}

	upload := models.Upload{
		SessionID:          sess.ID,
		FileName:           sess.FileName,
		Separator:          string(sess.Report.Separator),
		Lines:              sess.Report.Lines,
		Kept:               sess.Report.Kept,
		DroppedZero:        sess.Report.DroppedZero,
		DroppedInvalidDate: sess.Report.DroppedInvalidDate,
		Split:              sess.Report.Split,
		TotalIncome:        sess.Analysis.TotalIncome,
		TotalExpenses:      sess.Analysis.TotalExpenses,
		NetBalance:         sess.Analysis.NetBalance,
		Months:             len(sess.Analysis.IncomeExpenseData),
		Categories:         len(sess.Analysis.ExpenseCategoryData),
	}

	if _, err := h.Uploads.Create(c.Request().Context(), upload); err != nil {
		slog.Warn("failed to record upload", slog.String("session_id", sess.ID.String()), slog.String("error", err.Error()))
	}
}

func isCSVFile(fileHeader *multipart.FileHeader) bool {
	if strings.EqualFold(filepath.Ext(fileHeader.Filename), ".csv") {
		return true
	}

	contentType := strings.ToLower(fileHeader.Header.Get(echo.HeaderContentType))
	return strings.HasPrefix(contentType, "text/csv")
}

func readUpload(fileHeader *multipart.FileHeader) (string, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return "", err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", err
	}

	return string(data), nil
}
