package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/pixel-backend/internal/models"
	"github.com/pixel-backend/internal/types"
)

// ShopRepository handles shop persistence
type ShopRepository struct {
	db *PostgresDB
}

// NewShopRepository creates a new shop repository
func NewShopRepository(db *PostgresDB) *ShopRepository {
	return &ShopRepository{db: db}
}

// ValidateShopDomain checks that a shop domain is plausible before it is
// used in a query. Domains arrive from webhook headers and API payloads.
func ValidateShopDomain(domain string) error {
	if domain == "" || !strings.Contains(domain, ".") || strings.ContainsAny(domain, " /\\") {
		return &types.ServiceError{
			Code:    "INVALID_SHOP_DOMAIN",
			Message: fmt.Sprintf("invalid shop domain: %q", domain),
			Details: map[string]interface{}{"shop_domain": domain},
		}
	}
	return nil
}

// Upsert inserts a shop or, on a repeat install, refreshes its token,
// scopes and installation flag. The row keeps its ID across reinstalls.
func (r *ShopRepository) Upsert(ctx context.Context, shop *models.Shop) error {
	if err := ValidateShopDomain(shop.ShopDomain); err != nil {
		return err
	}
	shop.ShopDomain = strings.ToLower(shop.ShopDomain)

	query := `
		INSERT INTO shops (shop_domain, access_token, scopes, is_installed)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (shop_domain) DO UPDATE
		SET access_token = EXCLUDED.access_token,
			scopes = EXCLUDED.scopes,
			is_installed = TRUE,
			updated_at = NOW()
		RETURNING id, is_installed, created_at, updated_at
	`

	err := r.db.Pool().QueryRow(ctx, query,
		shop.ShopDomain,
		shop.AccessToken,
		shop.Scopes,
	).Scan(&shop.ID, &shop.IsInstalled, &shop.CreatedAt, &shop.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert shop: %w", err)
	}
	return nil
}

// GetByDomain retrieves a shop by domain, or nil when none exists.
func (r *ShopRepository) GetByDomain(ctx context.Context, domain string) (*models.Shop, error) {
	if err := ValidateShopDomain(domain); err != nil {
		return nil, err
	}
	domain = strings.ToLower(domain)

	query := `
		SELECT id, shop_domain, access_token, scopes, is_installed, created_at, updated_at
		FROM shops
		WHERE shop_domain = $1
	`

	var shop models.Shop
	err := r.db.Pool().QueryRow(ctx, query, domain).Scan(
		&shop.ID,
		&shop.ShopDomain,
		&shop.AccessToken,
		&shop.Scopes,
		&shop.IsInstalled,
		&shop.CreatedAt,
		&shop.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found, return nil without error
		}
		return nil, fmt.Errorf("failed to get shop: %w", err)
	}
	return &shop, nil
}

// MarkUninstalled clears the access token and installation flag while
// keeping the row and its events for a later redaction request.
// Safe to call repeatedly and for unknown shops.
func (r *ShopRepository) MarkUninstalled(ctx context.Context, domain string) error {
	if err := ValidateShopDomain(domain); err != nil {
		return err
	}
	domain = strings.ToLower(domain)

	query := `
		UPDATE shops
		SET access_token = '', is_installed = FALSE, updated_at = NOW()
		WHERE shop_domain = $1
	`
	if _, err := r.db.Pool().Exec(ctx, query, domain); err != nil {
		return fmt.Errorf("failed to mark shop uninstalled: %w", err)
	}
	return nil
}

// RedactShop removes all events and extensions for a shop and clears its
// credentials in a single transaction. It returns the number of deleted
// events and extensions; running it again deletes nothing and succeeds.
func (r *ShopRepository) RedactShop(ctx context.Context, shopID int64) (eventsDeleted, extensionsDeleted int64, err error) {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin redaction transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // nolint:errcheck // no-op after commit
	}()

	tag, err := tx.Exec(ctx, `DELETE FROM events WHERE shop_id = $1`, shopID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to delete events: %w", err)
	}
	eventsDeleted = tag.RowsAffected()

	tag, err = tx.Exec(ctx, `DELETE FROM extensions WHERE shop_id = $1`, shopID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to delete extensions: %w", err)
	}
	extensionsDeleted = tag.RowsAffected()

	_, err = tx.Exec(ctx, `
		UPDATE shops
		SET access_token = '', is_installed = FALSE, updated_at = NOW()
		WHERE id = $1
	`, shopID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to clear shop credentials: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("failed to commit redaction: %w", err)
	}
	return eventsDeleted, extensionsDeleted, nil
}
