package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"example.com/finance-visualizer/backend/internal/models"
)

type UploadRepository struct {
	db *pgxpool.Pool
}

// NewUploadRepository создает репозиторий аудита загрузок.
func NewUploadRepository(db *pgxpool.Pool) *UploadRepository {
	return &UploadRepository{db: db}
}

// Create сохраняет запись о загрузке файла.
func (r *UploadRepository) Create(ctx context.Context, upload models.Upload) (models.Upload, error) {
	err := r.db.QueryRow(ctx,
		`INSERT INTO uploads
		 (session_id, file_name, separator, lines, kept, dropped_zero, dropped_invalid_date, split,
		  total_income, total_expenses, net_balance, months, categories)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric, $10::numeric, $11::numeric, $12, $13)
		 RETURNING id, created_at`,
		upload.SessionID,
		upload.FileName,
		upload.Separator,
		upload.Lines,
		upload.Kept,
		upload.DroppedZero,
		upload.DroppedInvalidDate,
		upload.Split,
		upload.TotalIncome.String(),
		upload.TotalExpenses.String(),
		upload.NetBalance.String(),
		upload.Months,
		upload.Categories,
	).Scan(&upload.ID, &upload.CreatedAt)
	if err != nil {
		return models.Upload{}, err
	}

	return upload, nil
}

// MarkReset отмечает время сброса сессии.
func (r *UploadRepository) MarkReset(ctx context.Context, sessionID uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE uploads SET reset_at = now() WHERE session_id = $1 AND reset_at IS NULL`,
		sessionID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetBySession возвращает запись о загрузке по идентификатору сессии.
func (r *UploadRepository) GetBySession(ctx context.Context, sessionID uuid.UUID) (models.Upload, error) {
	var upload models.Upload
	var income, expenses, net string

	err := r.db.QueryRow(ctx,
		`SELECT id, session_id, file_name, separator, lines, kept, dropped_zero, dropped_invalid_date, split,
		        total_income::text, total_expenses::text, net_balance::text, months, categories, created_at, reset_at
		 FROM uploads
		 WHERE session_id = $1`,
		sessionID,
	).Scan(
		&upload.ID,
		&upload.SessionID,
		&upload.FileName,
		&upload.Separator,
		&upload.Lines,
		&upload.Kept,
		&upload.DroppedZero,
		&upload.DroppedInvalidDate,
		&upload.Split,
		&income,
		&expenses,
		&net,
		&upload.Months,
		&upload.Categories,
		&upload.CreatedAt,
		&upload.ResetAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Upload{}, ErrNotFound
		}
		return models.Upload{}, err
	}

	if upload.TotalIncome, err = decimal.NewFromString(income); err != nil {
		return models.Upload{}, err
	}
	if upload.TotalExpenses, err = decimal.NewFromString(expenses); err != nil {
		return models.Upload{}, err
	}
	if upload.NetBalance, err = decimal.NewFromString(net); err != nil {
		return models.Upload{}, err
	}

	return upload, nil
}

// Overview возвращает сводную статистику по всем загрузкам и AI-запросам.
func (r *UploadRepository) Overview(ctx context.Context) (models.UploadOverview, error) {
	var stats models.UploadOverview
	var income, expenses string
	var lastUpload *time.Time

	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) AS total_uploads,
		        COUNT(*) FILTER (WHERE reset_at IS NULL) AS active_uploads,
		        COALESCE(SUM(kept), 0) AS total_transactions,
		        COALESCE(SUM(dropped_zero + dropped_invalid_date), 0) AS dropped_rows,
		        COALESCE(SUM(total_income), 0)::text AS total_income,
		        COALESCE(SUM(total_expenses), 0)::text AS total_expenses,
		        MAX(created_at) AS last_upload_at
		 FROM uploads`,
	).Scan(
		&stats.TotalUploads,
		&stats.ActiveUploads,
		&stats.TotalTransactions,
		&stats.DroppedRows,
		&income,
		&expenses,
		&lastUpload,
	)
	if err != nil {
		return stats, err
	}

	if stats.TotalIncome, err = decimal.NewFromString(income); err != nil {
		return stats, err
	}
	if stats.TotalExpenses, err = decimal.NewFromString(expenses); err != nil {
		return stats, err
	}
	stats.LastUploadAt = lastUpload

	err = r.db.QueryRow(ctx,
		`SELECT COUNT(*) AS ai_requests,
		        COUNT(*) FILTER (WHERE NOT success) AS ai_failures
		 FROM ai_requests`,
	).Scan(&stats.AIRequests, &stats.AIFailures)
	if err != nil {
		return stats, err
	}

	return stats, nil
}
