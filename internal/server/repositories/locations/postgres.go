package locations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/market/internal/common"
	"github.com/dmitrijs2005/market/internal/dbx"
	"github.com/dmitrijs2005/market/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindByLookupKey(ctx context.Context, userID, lookupKey string) (*models.Location, error) {
	query := `
		SELECT id, user_id, line1, line2, city, postal_code, country, lookup_key
		FROM locations
		WHERE user_id = $1 AND lookup_key = $2
	`

	loc := &models.Location{}
	err := r.db.QueryRowContext(ctx, query, userID, lookupKey).Scan(
		&loc.ID, &loc.UserID, &loc.Line1, &loc.Line2, &loc.City, &loc.PostalCode, &loc.Country, &loc.LookupKey,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return loc, nil
}

func (r *PostgresRepository) Create(ctx context.Context, loc *models.Location) (*models.Location, error) {
	query := `
		INSERT INTO locations (user_id, line1, line2, city, postal_code, country, lookup_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, lookup_key) DO UPDATE SET lookup_key = EXCLUDED.lookup_key
		RETURNING id
	`

	if loc.LookupKey == "" {
		loc.LookupKey = loc.Address.LookupKey()
	}

	err := r.db.QueryRowContext(ctx, query,
		loc.UserID, loc.Line1, loc.Line2, loc.City, loc.PostalCode, loc.Country, loc.LookupKey,
	).Scan(&loc.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return loc, nil
}
