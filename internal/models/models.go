package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AIRequestType string

const (
	AIRequestInsights AIRequestType = "insights"
	AIRequestChat     AIRequestType = "chat"
)

// Upload хранит запись аудита об одном загруженном файле. Сами операции не сохраняются.
type Upload struct {
	ID                 int64           `json:"id"`
	SessionID          uuid.UUID       `json:"session_id"`
	FileName           string          `json:"file_name"`
	Separator          string          `json:"separator"`
	Lines              int             `json:"lines"`
	Kept               int             `json:"kept"`
	DroppedZero        int             `json:"dropped_zero"`
	DroppedInvalidDate int             `json:"dropped_invalid_date"`
	Split              int             `json:"split"`
	TotalIncome        decimal.Decimal `json:"total_income"`
	TotalExpenses      decimal.Decimal `json:"total_expenses"`
	NetBalance         decimal.Decimal `json:"net_balance"`
	Months             int             `json:"months"`
	Categories         int             `json:"categories"`
	CreatedAt          time.Time       `json:"created_at"`
	ResetAt            *time.Time      `json:"reset_at,omitempty"`
}

type AIRequest struct {
	ID             int64         `json:"id"`
	SessionID      uuid.UUID     `json:"session_id"`
	RequestType    AIRequestType `json:"request_type"`
	Provider       string        `json:"provider"`
	Model          string        `json:"model"`
	Prompt         string        `json:"prompt"`
	RequestPayload []byte        `json:"-"`
	ResponseText   string        `json:"response_text,omitempty"`
	RawResponse    string        `json:"-"`
	Success        bool          `json:"success"`
	ErrorMessage   *string       `json:"error_message,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

type UploadOverview struct {
	TotalUploads      int             `json:"total_uploads"`
	ActiveUploads     int             `json:"active_uploads"`
	TotalTransactions int             `json:"total_transactions"`
	DroppedRows       int             `json:"dropped_rows"`
	TotalIncome       decimal.Decimal `json:"total_income"`
	TotalExpenses     decimal.Decimal `json:"total_expenses"`
	AIRequests        int             `json:"ai_requests"`
	AIFailures        int             `json:"ai_failures"`
	LastUploadAt      *time.Time      `json:"last_upload_at,omitempty"`
}
