package handlers

import (
	"time"

	"github.com/google/uuid"

	"example.com/finance-visualizer/backend/internal/ai"
	"example.com/finance-visualizer/backend/internal/analysis"
	"example.com/finance-visualizer/backend/internal/session"
	"example.com/finance-visualizer/backend/internal/transactions"
)

const dateLayout = "2006-01-02"

type ReportResponse struct {
	Separator          string   `json:"separator"`
	Columns            []string `json:"columns"`
	Lines              int      `json:"lines"`
	Kept               int      `json:"kept"`
	DroppedZero        int      `json:"dropped_zero"`
	DroppedInvalidDate int      `json:"dropped_invalid_date"`
	Split              int      `json:"split"`
}

type MonthlyPointResponse struct {
	Period  string  `json:"period"`
	Label   string  `json:"label"`
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
	Net     float64 `json:"net"`
}

type CategoryTotalResponse struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
	Share    float64 `json:"share"`
}

type AnalysisResponse struct {
	TotalIncome         float64                 `json:"total_income"`
	TotalExpenses       float64                 `json:"total_expenses"`
	NetBalance          float64                 `json:"net_balance"`
	IncomeExpenseData   []MonthlyPointResponse  `json:"income_expense_data"`
	ExpenseCategoryData []CategoryTotalResponse `json:"expense_category_data"`
}

type TransactionResponse struct {
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Income      float64 `json:"income"`
	Expense     float64 `json:"expense"`
	Category    string  `json:"category"`
	Type        string  `json:"type"`
}

type InsightsResponse struct {
	Status    string     `json:"status"`
	Text      string     `json:"text,omitempty"`
	Fallback  bool       `json:"fallback"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type SessionResponse struct {
	SessionID    uuid.UUID        `json:"session_id"`
	FileName     string           `json:"file_name"`
	CreatedAt    time.Time        `json:"created_at"`
	Report       ReportResponse   `json:"report"`
	Analysis     AnalysisResponse `json:"analysis"`
	Insights     InsightsResponse `json:"insights"`
	ChatGreeting string           `json:"chat_greeting,omitempty"`
}

type TransactionListResponse struct {
	Total        int                   `json:"total"`
	Limit        int                   `json:"limit"`
	Offset       int                   `json:"offset"`
	Transactions []TransactionResponse `json:"transactions"`
}

type ChatMessageResponse struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatHistoryResponse struct {
	Greeting string                `json:"greeting"`
	Messages []ChatMessageResponse `json:"messages"`
}

// ToReportResponse переводит отчет парсера в JSON-представление.
func ToReportResponse(report transactions.Report) ReportResponse {
	columns := report.Columns
	if columns == nil {
		columns = []string{}
	}

	return ReportResponse{
		Separator:          string(report.Separator),
		Columns:            columns,
		Lines:              report.Lines,
		Kept:               report.Kept,
		DroppedZero:        report.DroppedZero,
		DroppedInvalidDate: report.DroppedInvalidDate,
		Split:              report.Split,
	}
}

// ToAnalysisResponse переводит итоги анализа в JSON-представление с числами float64.
func ToAnalysisResponse(result analysis.Result) AnalysisResponse {
	months := make([]MonthlyPointResponse, 0, len(result.IncomeExpenseData))
	for _, point := range result.IncomeExpenseData {
		months = append(months, MonthlyPointResponse{
			Period:  point.Period.String(),
			Label:   point.Label,
			Income:  point.Income.InexactFloat64(),
			Expense: point.Expense.InexactFloat64(),
			Net:     point.Net().InexactFloat64(),
		})
	}

	categories := make([]CategoryTotalResponse, 0, len(result.ExpenseCategoryData))
	for i, category := range result.ExpenseCategoryData {
		categories = append(categories, CategoryTotalResponse{
			Category: category.Category,
			Total:    category.Total.InexactFloat64(),
			Share:    result.CategoryShare(i),
		})
	}

	return AnalysisResponse{
		TotalIncome:         result.TotalIncome.InexactFloat64(),
		TotalExpenses:       result.TotalExpenses.InexactFloat64(),
		NetBalance:          result.NetBalance.InexactFloat64(),
		IncomeExpenseData:   months,
		ExpenseCategoryData: categories,
	}
}

func toTransactionResponses(txs []transactions.Transaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, TransactionResponse{
			Date:        tx.Date.Format(dateLayout),
			Description: tx.Description,
			Income:      tx.Income.InexactFloat64(),
			Expense:     tx.Expense.InexactFloat64(),
			Category:    tx.Category,
			Type:        tx.Kind(),
		})
	}
	return out
}

func toInsightsResponse(insights session.Insights) InsightsResponse {
	response := InsightsResponse{
		Status:   string(insights.Status),
		Text:     insights.Text,
		Fallback: insights.Fallback,
	}
	if !insights.UpdatedAt.IsZero() {
		updatedAt := insights.UpdatedAt
		response.UpdatedAt = &updatedAt
	}
	return response
}

func toSessionResponse(sess *session.Session) SessionResponse {
	return SessionResponse{
		SessionID: sess.ID,
		FileName:  sess.FileName,
		CreatedAt: sess.CreatedAt,
		Report:    ToReportResponse(sess.Report),
		Analysis:  ToAnalysisResponse(sess.Analysis),
		Insights:  toInsightsResponse(sess.Insights()),
	}
}

func toChatMessages(messages []ai.Message) []ChatMessageResponse {
	out := make([]ChatMessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, ChatMessageResponse{Role: message.Role, Content: message.Content})
	}
	return out
}
