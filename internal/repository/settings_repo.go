package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wenwu/saas-platform/panel-fulfillment-service/internal/models"
)

type SettingsRepository struct {
	pool *pgxpool.Pool
}

func NewSettingsRepository(pool *pgxpool.Pool) *SettingsRepository {
	return &SettingsRepository{pool: pool}
}

// Get returns the settings singleton. A missing row is ErrNotFound.
func (r *SettingsRepository) Get(ctx context.Context) (*models.Settings, error) {
	query := `
		SELECT COALESCE(panel_url, ''), COALESCE(panel_api_key, '')
		FROM settings
		ORDER BY id
		LIMIT 1
	`

	s := &models.Settings{}
	err := r.pool.QueryRow(ctx, query).Scan(&s.PanelURL, &s.PanelAPIKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get settings: %w", err)
	}

	return s, nil
}
