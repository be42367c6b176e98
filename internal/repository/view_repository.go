package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/edmiller1/woofs-welcome-sub000/internal/domain"
	"github.com/edmiller1/woofs-welcome-sub000/pkg/database"
	apperrors "github.com/edmiller1/woofs-welcome-sub000/pkg/errors"
)

// viewRepository handles durable view records with PostgreSQL
type viewRepository struct {
	db *database.PostgresDB
}

// NewViewRepository creates a new view repository
func NewViewRepository(db *database.PostgresDB) ViewRepository {
	return &viewRepository{
		db: db,
	}
}

// InsertViews bulk-inserts flushed view events using COPY. The whole batch
// succeeds or fails as one write so a failed flush leaves nothing behind.
func (r *viewRepository) InsertViews(ctx context.Context, views []*domain.ViewEvent) (int64, error) {
	if len(views) == 0 {
		return 0, nil
	}

	rows := make([][]interface{}, 0, len(views))
	for _, v := range views {
		rows = append(rows, []interface{}{
			v.ID,
			v.PlaceID,
			v.UserID,
			v.SessionID,
			v.Source,
			v.Referrer,
			v.City,
			v.Region,
			v.DeviceType,
			v.ViewedAt,
		})
	}

	copied, err := r.db.Pool.CopyFrom(
		ctx,
		pgx.Identifier{"place_views"},
		[]string{"id", "place_id", "user_id", "session_id", "source", "referrer", "city", "region", "device_type", "viewed_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to bulk insert view records: %w", err)
	}

	return copied, nil
}

// AverageTimeOnPage computes the mean time_on_page over a day window. Rows
// without the client-side signal are excluded; nil means no signal at all.
func (r *viewRepository) AverageTimeOnPage(ctx context.Context, placeID string, start, end time.Time) (*float64, error) {
	query := `
		SELECT AVG(time_on_page)
		FROM place_views
		WHERE place_id = $1
		  AND viewed_at BETWEEN $2 AND $3
		  AND time_on_page IS NOT NULL
	`

	var avg *float64
	err := r.db.Pool.QueryRow(ctx, query, placeID, start, end).Scan(&avg)
	if err != nil {
		return nil, fmt.Errorf("failed to compute average time on page: %w", err)
	}

	return avg, nil
}

// UpdateTimeOnPage fills in the time_on_page signal on an existing view row
func (r *viewRepository) UpdateTimeOnPage(ctx context.Context, viewID string, seconds int) error {
	query := `
		UPDATE place_views
		SET time_on_page = $2
		WHERE id = $1
	`

	result, err := r.db.Pool.Exec(ctx, query, viewID, seconds)
	if err != nil {
		return fmt.Errorf("failed to update time on page: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("view record not found")
	}

	return nil
}
