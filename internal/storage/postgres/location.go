package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/toybox-checkout/internal/domain/discount"
)

const (
	getLocationSQL   = `SELECT slug, display_name, discount_percentage FROM locations WHERE slug = $1`
	listLocationsSQL = `SELECT slug, display_name, discount_percentage FROM locations ORDER BY display_name`
)

var _ discount.Repository = (*LocationRepository)(nil)

// LocationRepository implements discount.Repository backed by PostgreSQL.
type LocationRepository struct {
	pool *pgxpool.Pool
}

// NewLocationRepository returns a LocationRepository that uses the given pool.
func NewLocationRepository(pool *pgxpool.Pool) *LocationRepository {
	return &LocationRepository{pool: pool}
}

// FindBySlug returns the location record for a normalized slug.
// Returns discount.ErrLocationNotFound when no location matches.
func (r *LocationRepository) FindBySlug(ctx context.Context, slug string) (*discount.Location, error) {
	rows, err := r.pool.Query(ctx, getLocationSQL, slug)
	if err != nil {
		return nil, fmt.Errorf("getting location %q: %w", slug, err)
	}

	loc, err := pgx.CollectExactlyOneRow(rows, scanLocation)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrLocationNotFound
		}
		return nil, fmt.Errorf("getting location %q: %w", slug, err)
	}
	return &loc, nil
}

// List returns all location records ordered by display name.
func (r *LocationRepository) List(ctx context.Context) ([]discount.Location, error) {
	rows, err := r.pool.Query(ctx, listLocationsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing locations: %w", err)
	}
	return pgx.CollectRows(rows, scanLocation)
}

func scanLocation(row pgx.CollectableRow) (discount.Location, error) {
	var loc discount.Location
	err := row.Scan(&loc.Slug, &loc.DisplayName, &loc.Percentage)
	return loc, err
}
