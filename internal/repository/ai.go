package repository

import (
	"context"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/finance-visualizer/backend/internal/models"
)

// maxLoggedText ограничивает длину промпта и ответа в журнале.
const maxLoggedText = 64 * 1024

type AIRepository struct {
	db *pgxpool.Pool
}

// NewAIRepository создает репозиторий для журнала AI-запросов.
func NewAIRepository(db *pgxpool.Pool) *AIRepository {
	return &AIRepository{db: db}
}

// LogRequest сохраняет лог AI-запроса по сессии.
func (r *AIRepository) LogRequest(ctx context.Context, log models.AIRequest) error {
	switch log.RequestType {
	case models.AIRequestInsights, models.AIRequestChat:
	default:
		return ErrInvalid
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO ai_requests
		 (session_id, request_type, provider, model, prompt, request_payload, response_text, raw_response, success, error_message)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, '')::jsonb, NULLIF($7, ''), NULLIF($8, ''), $9, $10)`,
		log.SessionID,
		string(log.RequestType),
		log.Provider,
		log.Model,
		truncateRunes(log.Prompt, maxLoggedText),
		string(log.RequestPayload),
		truncateRunes(log.ResponseText, maxLoggedText),
		truncateRunes(log.RawResponse, maxLoggedText),
		log.Success,
		log.ErrorMessage,
	)
	return err
}

func truncateRunes(value string, limit int) string {
	if utf8.RuneCountInString(value) <= limit {
		return value
	}

	runes := []rune(value)
	return string(runes[:limit])
}
