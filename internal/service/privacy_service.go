// Package service implements the application services behind the HTTP
// handlers and webhook dispatcher: privacy compliance, shop install,
// extension lifecycle and event ingestion.
package service

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/pixel-backend/internal/models"
)

// EventStore is the slice of the event repository the privacy service
// needs.
type EventStore interface {
	FindByCustomerID(ctx context.Context, shopID int64, customerID string) ([]*models.Event, error)
	DeleteByCustomerID(ctx context.Context, shopID int64, customerID string) (int64, error)
}

// ShopRedactor is the slice of the shop repository the privacy service
// needs.
type ShopRedactor interface {
	RedactShop(ctx context.Context, shopID int64) (eventsDeleted, extensionsDeleted int64, err error)
	MarkUninstalled(ctx context.Context, domain string) error
}

// ExtensionDeactivator is the slice of the extension repository the
// privacy service needs.
type ExtensionDeactivator interface {
	SetStatus(ctx context.Context, shopID int64, status string) error
}

// PrivacyService handles the mandatory compliance webhooks. Every
// operation is idempotent: the platform redelivers webhooks until they
// are acknowledged, so a repeat delivery must succeed without side
// effects.
type PrivacyService struct {
	events     EventStore
	shops      ShopRedactor
	extensions ExtensionDeactivator
	logger     *zap.Logger
}

func NewPrivacyService(events EventStore, shops ShopRedactor, extensions ExtensionDeactivator, logger *zap.Logger) *PrivacyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PrivacyService{events: events, shops: shops, extensions: extensions, logger: logger}
}

// customerIDFromPayload digs the customer id out of a compliance webhook
// payload. The platform sends it as a JSON number.
func customerIDFromPayload(payload map[string]interface{}) string {
	customer, ok := payload["customer"].(map[string]interface{})
	if !ok {
		return ""
	}
	switch id := customer["id"].(type) {
	case string:
		return id
	case float64:
		return strconv.FormatInt(int64(id), 10)
	default:
		return ""
	}
}

// CustomerDataRequest assembles the stored events for the customer named
// in the payload and logs a report for the operator to fulfil the
// request. The customer's data stays untouched.
func (s *PrivacyService) CustomerDataRequest(ctx context.Context, shop *models.Shop, payload map[string]interface{}) error {
	customerID := customerIDFromPayload(payload)
	if customerID == "" {
		s.logger.Warn("data request without customer id", zap.String("shop", shop.ShopDomain))
		return nil
	}

	events, err := s.events.FindByCustomerID(ctx, shop.ID, customerID)
	if err != nil {
		return fmt.Errorf("collect customer data for %s: %w", shop.ShopDomain, err)
	}

	s.logger.Info("customer data request collected",
		zap.String("shop", shop.ShopDomain),
		zap.String("customer_id", customerID),
		zap.Int("events", len(events)))
	return nil
}

// CustomerRedact deletes every stored event of the customer named in the
// payload, scoped to the requesting shop.
func (s *PrivacyService) CustomerRedact(ctx context.Context, shop *models.Shop, payload map[string]interface{}) error {
	customerID := customerIDFromPayload(payload)
	if customerID == "" {
		s.logger.Warn("redact request without customer id", zap.String("shop", shop.ShopDomain))
		return nil
	}

	deleted, err := s.events.DeleteByCustomerID(ctx, shop.ID, customerID)
	if err != nil {
		return fmt.Errorf("redact customer for %s: %w", shop.ShopDomain, err)
	}

	s.logger.Info("customer redacted",
		zap.String("shop", shop.ShopDomain),
		zap.String("customer_id", customerID),
		zap.Int64("events_deleted", deleted))
	return nil
}

// ShopRedact erases everything stored for the shop: events, extensions
// and credentials. The shop row itself survives so a reinstall reuses it.
func (s *PrivacyService) ShopRedact(ctx context.Context, shop *models.Shop, payload map[string]interface{}) error {
	eventsDeleted, extensionsDeleted, err := s.shops.RedactShop(ctx, shop.ID)
	if err != nil {
		return fmt.Errorf("redact shop %s: %w", shop.ShopDomain, err)
	}

	s.logger.Info("shop redacted",
		zap.String("shop", shop.ShopDomain),
		zap.Int64("events_deleted", eventsDeleted),
		zap.Int64("extensions_deleted", extensionsDeleted))
	return nil
}

// AppUninstalled clears the shop's credentials and deactivates its
// extension so in-flight pixel events stop resolving. Stored events and
// the extension row stay in place until the platform follows up with
// shop/redact, which it sends 48 hours after an uninstall.
func (s *PrivacyService) AppUninstalled(ctx context.Context, shop *models.Shop, payload map[string]interface{}) error {
	if err := s.shops.MarkUninstalled(ctx, shop.ShopDomain); err != nil {
		return fmt.Errorf("mark %s uninstalled: %w", shop.ShopDomain, err)
	}
	if err := s.extensions.SetStatus(ctx, shop.ID, models.ExtensionStatusInactive); err != nil {
		return fmt.Errorf("deactivate extension for %s: %w", shop.ShopDomain, err)
	}
	s.logger.Info("app uninstalled", zap.String("shop", shop.ShopDomain))
	return nil
}
