package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/edmiller1/woofs-welcome-sub000/internal/domain"
	"github.com/edmiller1/woofs-welcome-sub000/pkg/database"
)

// placeRepository handles place data operations with PostgreSQL
type placeRepository struct {
	db *database.PostgresDB
}

// NewPlaceRepository creates a new place repository
func NewPlaceRepository(db *database.PostgresDB) PlaceRepository {
	return &placeRepository{
		db: db,
	}
}

// GetByID retrieves a place by id
func (r *placeRepository) GetByID(ctx context.Context, id string) (*domain.Place, error) {
	query := `
		SELECT id, business_id, name, city, total_views, analytics_last_updated, created_at
		FROM places
		WHERE id = $1
	`

	place := &domain.Place{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&place.ID,
		&place.BusinessID,
		&place.Name,
		&place.City,
		&place.TotalViews,
		&place.AnalyticsLastUpdated,
		&place.CreatedAt,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get place: %w", err)
	}

	return place, nil
}

// AddViews increments the denormalized counter in a single statement so
// concurrent flushes of different hour buckets cannot lose updates.
func (r *placeRepository) AddViews(ctx context.Context, placeID string, count int64) error {
	query := `
		UPDATE places
		SET total_views = total_views + $2,
		    analytics_last_updated = NOW()
		WHERE id = $1
	`

	_, err := r.db.Pool.Exec(ctx, query, placeID, count)
	if err != nil {
		return fmt.Errorf("failed to add views to place: %w", err)
	}

	return nil
}

// IsOwnedBy reports whether the place belongs to a business owned by the user
func (r *placeRepository) IsOwnedBy(ctx context.Context, placeID, userID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM places p
			JOIN businesses b ON b.id = p.business_id
			WHERE p.id = $1 AND b.user_id = $2
		)
	`

	var owned bool
	err := r.db.Pool.QueryRow(ctx, query, placeID, userID).Scan(&owned)
	if err != nil {
		return false, fmt.Errorf("failed to check place ownership: %w", err)
	}

	return owned, nil
}
