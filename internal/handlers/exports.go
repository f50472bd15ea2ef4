package handlers

import (
	"bytes"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"example.com/finance-visualizer/backend/internal/report"
	"example.com/finance-visualizer/backend/internal/session"
)

type ExportJSONResponse struct {
	SessionResponse
	Transactions []TransactionResponse `json:"transactions"`
}

// ExportJSON выгружает анализ и операции сессии в JSON-файл.
func (h *SessionHandler) ExportJSON(c echo.Context) error {
	sess, err := lookupSession(c, h.Sessions)
	if sess == nil {
		return err
	}

	response := ExportJSONResponse{
		SessionResponse: toSessionResponse(sess),
		Transactions:    toTransactionResponses(sess.Transactions),
	}

	setAttachment(c, exportFileName(sess, "", "json"))
	return c.JSON(http.StatusOK, response)
}

// ExportCSV выгружает помесячный ряд, категории или операции в CSV.
func (h *SessionHandler) ExportCSV(c echo.Context) error {
	sess, err := lookupSession(c, h.Sessions)
	if sess == nil {
		return err
	}

	exportType := strings.ToLower(strings.TrimSpace(c.QueryParam("type")))
	if exportType == "" {
		exportType = report.TypeMonthly
	}

	comma, ok := parseCSVSeparator(c.QueryParam("sep"))
	if !ok {
		return badRequest(c, "invalid csv separator")
	}

	var buf bytes.Buffer
	switch exportType {
	case report.TypeMonthly:
		err = report.WriteMonthlyCSV(&buf, comma, sess.Analysis)
	case report.TypeCategories:
		err = report.WriteCategoriesCSV(&buf, comma, sess.Analysis)
	case report.TypeTransactions:
		err = report.WriteTransactionsCSV(&buf, comma, sess.Transactions)
	default:
		return badRequest(c, "invalid export type")
	}
	if err != nil {
		slog.Error("csv export failed", slog.String("session_id", sess.ID.String()), slog.String("error", err.Error()))
		return serverError(c)
	}

	setAttachment(c, exportFileName(sess, exportType, "csv"))
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// ExportPDF выгружает отчет с итогами и текстом AI-анализа в PDF.
func (h *SessionHandler) ExportPDF(c echo.Context) error {
	sess, err := lookupSession(c, h.Sessions)
	if sess == nil {
		return err
	}

	insights := sess.Insights()
	data, err := report.BuildPDF(sess.FileName, sess.Analysis, insights.Text, time.Now())
	if err != nil {
		slog.Error("pdf export failed", slog.String("session_id", sess.ID.String()), slog.String("error", err.Error()))
		return serverError(c)
	}

	setAttachment(c, exportFileName(sess, "", "pdf"))
	return c.Blob(http.StatusOK, "application/pdf", data)
}

func setAttachment(c echo.Context, filename string) {
	c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename=\""+filename+"\"")
}

func exportFileName(sess *session.Session, suffix, extension string) string {
	base := strings.TrimSuffix(filepath.Base(sess.FileName), filepath.Ext(sess.FileName))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		base = "finanzas"
	}

	name := base + "-" + sess.ID.String()[:8]
	if suffix != "" {
		name += "-" + suffix
	}
	return name + "." + extension
}

func parseCSVSeparator(value string) (rune, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", ",", "comma":
		return ',', true
	case ";", "semicolon":
		return ';', true
	default:
		return 0, false
	}
}
