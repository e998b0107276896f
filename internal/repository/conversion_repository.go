package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"convflow/api/internal/models"
)

type ConversionRepository struct {
	pool *pgxpool.Pool
}

func NewConversionRepository(pool *pgxpool.Pool) *ConversionRepository {
	return &ConversionRepository{pool: pool}
}

// Insert appends one conversion attempt. Rows are never updated afterward;
// a retry is a new row.
func (r *ConversionRepository) Insert(ctx context.Context, conv models.Conversion) error {
	const query = `
		INSERT INTO conversions (
			id, user_id, filename, file_type, file_size, status, error_message, created_at, completed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, NOW(), $8
		)
	`
	_, err := r.pool.Exec(ctx, query,
		conv.ID,
		conv.UserID,
		conv.Filename,
		conv.FileType,
		conv.FileSize,
		conv.Status,
		conv.ErrorMessage,
		conv.CompletedAt,
	)
	return err
}

func (r *ConversionRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Conversion, error) {
	const query = `
		SELECT id, user_id, filename, file_type, file_size, status, error_message, created_at, completed_at
		FROM conversions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversions []models.Conversion
	for rows.Next() {
		var conv models.Conversion
		if err := rows.Scan(
			&conv.ID,
			&conv.UserID,
			&conv.Filename,
			&conv.FileType,
			&conv.FileSize,
			&conv.Status,
			&conv.ErrorMessage,
			&conv.CreatedAt,
			&conv.CompletedAt,
		); err != nil {
			return nil, err
		}
		conversions = append(conversions, conv)
	}
	return conversions, rows.Err()
}

func (r *ConversionRepository) List(ctx context.Context, limit, offset int) ([]models.Conversion, error) {
	const query = `
		SELECT id, user_id, filename, file_type, file_size, status, error_message, created_at, completed_at
		FROM conversions
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversions []models.Conversion
	for rows.Next() {
		var conv models.Conversion
		if err := rows.Scan(
			&conv.ID,
			&conv.UserID,
			&conv.Filename,
			&conv.FileType,
			&conv.FileSize,
			&conv.Status,
			&conv.ErrorMessage,
			&conv.CreatedAt,
			&conv.CompletedAt,
		); err != nil {
			return nil, err
		}
		conversions = append(conversions, conv)
	}
	return conversions, rows.Err()
}

// CountCompletedSince counts completed conversions created at or after the
// window start. Only completed rows count toward the plan limit.
func (r *ConversionRepository) CountCompletedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	const query = `
		SELECT COUNT(*) FROM conversions
		WHERE user_id = $1 AND status = 'completed' AND created_at >= $2
	`
	var count int
	if err := r.pool.QueryRow(ctx, query, userID, since).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Stats aggregates total/monthly/daily completed counts and the monthly
// byte volume in one query so all windows share a consistent view.
func (r *ConversionRepository) Stats(ctx context.Context, userID string, monthStart, dayStart time.Time) (models.UsageStats, error) {
	const query = `
		SELECT
			COUNT(*) FILTER (WHERE status = 'completed') AS total,
			COUNT(*) FILTER (WHERE status = 'completed' AND created_at >= $2) AS monthly,
			COUNT(*) FILTER (WHERE status = 'completed' AND created_at >= $3) AS daily,
			COALESCE(SUM(file_size) FILTER (WHERE status = 'completed' AND created_at >= $2), 0) AS bytes
		FROM conversions
		WHERE user_id = $1
	`

	var stats models.UsageStats
	var bytes int64
	if err := r.pool.QueryRow(ctx, query, userID, monthStart, dayStart).Scan(
		&stats.TotalConversions,
		&stats.MonthlyConversions,
		&stats.DailyConversions,
		&bytes,
	); err != nil {
		return models.UsageStats{}, err
	}
	stats.StorageUsed = bytes
	return stats, nil
}
