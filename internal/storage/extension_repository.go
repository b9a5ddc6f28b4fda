package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pixel-backend/internal/models"
)

// ExtensionRepository handles web pixel extension persistence
type ExtensionRepository struct {
	db *PostgresDB
}

// NewExtensionRepository creates a new extension repository
func NewExtensionRepository(db *PostgresDB) *ExtensionRepository {
	return &ExtensionRepository{db: db}
}

// Upsert inserts an extension record or refreshes the existing one for
// the shop. Each shop has at most one pixel extension, so re-activation
// updates in place.
func (r *ExtensionRepository) Upsert(ctx context.Context, ext *models.Extension) error {
	query := `
		INSERT INTO extensions (shop_id, platform_extension_id, account_id, status, version)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (shop_id) DO UPDATE
		SET platform_extension_id = EXCLUDED.platform_extension_id,
			account_id = EXCLUDED.account_id,
			status = EXCLUDED.status,
			version = EXCLUDED.version,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	err := r.db.Pool().QueryRow(ctx, query,
		ext.ShopID,
		ext.PlatformExtensionID,
		ext.AccountID,
		ext.Status,
		ext.Version,
	).Scan(&ext.ID, &ext.CreatedAt, &ext.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert extension: %w", err)
	}
	return nil
}

// GetByShopID retrieves the extension for a shop, or nil when none exists.
func (r *ExtensionRepository) GetByShopID(ctx context.Context, shopID int64) (*models.Extension, error) {
	query := `
		SELECT id, shop_id, platform_extension_id, account_id, status, version, created_at, updated_at
		FROM extensions
		WHERE shop_id = $1
	`
	return r.scanOne(r.db.Pool().QueryRow(ctx, query, shopID))
}

// GetActiveByAccountID retrieves the active extension carrying an account
// id, or nil. Event ingestion uses this to map incoming events to a shop.
func (r *ExtensionRepository) GetActiveByAccountID(ctx context.Context, accountID string) (*models.Extension, error) {
	query := `
		SELECT id, shop_id, platform_extension_id, account_id, status, version, created_at, updated_at
		FROM extensions
		WHERE account_id = $1 AND status = $2
	`
	return r.scanOne(r.db.Pool().QueryRow(ctx, query, accountID, models.ExtensionStatusActive))
}

// SetStatus updates the status of a shop's extension.
func (r *ExtensionRepository) SetStatus(ctx context.Context, shopID int64, status string) error {
	query := `UPDATE extensions SET status = $2, updated_at = NOW() WHERE shop_id = $1`
	if _, err := r.db.Pool().Exec(ctx, query, shopID, status); err != nil {
		return fmt.Errorf("failed to set extension status: %w", err)
	}
	return nil
}

func (r *ExtensionRepository) scanOne(row pgx.Row) (*models.Extension, error) {
	var ext models.Extension
	err := row.Scan(
		&ext.ID,
		&ext.ShopID,
		&ext.PlatformExtensionID,
		&ext.AccountID,
		&ext.Status,
		&ext.Version,
		&ext.CreatedAt,
		&ext.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found, return nil without error
		}
		return nil, fmt.Errorf("failed to get extension: %w", err)
	}
	return &ext, nil
}
