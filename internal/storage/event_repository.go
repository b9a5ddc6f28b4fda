package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/pixel-backend/internal/models"
)

// customerIDPaths are the JSONB paths probed when locating a customer
// identifier inside an event payload. Payload shapes differ by event
// name, so every known location is checked.
var customerIDPaths = [][]string{
	{"customer", "id"},
	{"data", "customer", "id"},
	{"cart", "buyerIdentity", "customer", "id"},
	{"checkout", "order", "customer", "id"},
}

// EventRepository handles web pixel event persistence
type EventRepository struct {
	db *PostgresDB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *PostgresDB) *EventRepository {
	return &EventRepository{db: db}
}

// Insert stores one event.
func (r *EventRepository) Insert(ctx context.Context, event *models.Event) error {
	query := `
		INSERT INTO events (shop_id, account_id, event_name, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING id, received_at
	`
	err := r.db.Pool().QueryRow(ctx, query,
		event.ShopID,
		event.AccountID,
		event.EventName,
		event.Payload,
	).Scan(&event.ID, &event.ReceivedAt)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// customerIDPredicate builds the WHERE fragment matching any known
// customer id path, with the id bound at the given placeholder index.
func customerIDPredicate(idPlaceholder int) string {
	clauses := make([]string, len(customerIDPaths))
	for i, path := range customerIDPaths {
		clauses[i] = fmt.Sprintf("payload #>> '{%s}' = $%d", strings.Join(path, ","), idPlaceholder)
	}
	return "(" + strings.Join(clauses, " OR ") + ")"
}

// FindByCustomerID returns every event of a shop whose payload carries
// the given customer id at any known path, oldest first.
func (r *EventRepository) FindByCustomerID(ctx context.Context, shopID int64, customerID string) ([]*models.Event, error) {
	query := fmt.Sprintf(`
		SELECT id, shop_id, account_id, event_name, payload, received_at
		FROM events
		WHERE shop_id = $1 AND %s
		ORDER BY received_at, id
	`, customerIDPredicate(2))

	rows, err := r.db.Pool().Query(ctx, query, shopID, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to find events by customer: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		var event models.Event
		err := rows.Scan(
			&event.ID,
			&event.ShopID,
			&event.AccountID,
			&event.EventName,
			&event.Payload,
			&event.ReceivedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, &event)
	}
	return events, rows.Err()
}

// DeleteByCustomerID removes every event of a shop whose payload carries
// the given customer id, returning the number of rows deleted. Deleting
// an already-redacted customer removes nothing and succeeds.
func (r *EventRepository) DeleteByCustomerID(ctx context.Context, shopID int64, customerID string) (int64, error) {
	query := fmt.Sprintf(`
		DELETE FROM events
		WHERE shop_id = $1 AND %s
	`, customerIDPredicate(2))

	tag, err := r.db.Pool().Exec(ctx, query, shopID, customerID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete events by customer: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountByShopID reports how many events a shop has accumulated.
func (r *EventRepository) CountByShopID(ctx context.Context, shopID int64) (int64, error) {
	var count int64
	err := r.db.Pool().QueryRow(ctx, `SELECT COUNT(*) FROM events WHERE shop_id = $1`, shopID).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}
