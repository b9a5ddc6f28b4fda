package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pixel-backend/internal/models"
	"github.com/pixel-backend/internal/platform"
	"github.com/pixel-backend/internal/types"
)

// PixelAdmin is the slice of the platform client the extension service
// needs.
type PixelAdmin interface {
	CreateWebPixel(ctx context.Context, settings map[string]string) (*platform.WebPixel, error)
	UpdateWebPixel(ctx context.Context, id string, settings map[string]string) (*platform.WebPixel, error)
}

// PixelAdminFactory builds a PixelAdmin for one shop's credentials.
type PixelAdminFactory func(shop, accessToken string) PixelAdmin

// ShopStore is the slice of the shop repository the extension and shop
// services need.
type ShopStore interface {
	GetByDomain(ctx context.Context, domain string) (*models.Shop, error)
	Upsert(ctx context.Context, shop *models.Shop) error
}

// ExtensionStore is the slice of the extension repository the extension
// service needs.
type ExtensionStore interface {
	GetByShopID(ctx context.Context, shopID int64) (*models.Extension, error)
	Upsert(ctx context.Context, ext *models.Extension) error
}

// ExtensionService manages the web pixel lifecycle: creating the pixel
// on the platform, updating its settings and reporting its status.
type ExtensionService struct {
	shops      ShopStore
	extensions ExtensionStore
	newAdmin   PixelAdminFactory
	logger     *zap.Logger
}

func NewExtensionService(shops ShopStore, extensions ExtensionStore, factory PixelAdminFactory, logger *zap.Logger) *ExtensionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExtensionService{shops: shops, extensions: extensions, newAdmin: factory, logger: logger}
}

func (s *ExtensionService) installedShop(ctx context.Context, domain string) (*models.Shop, error) {
	shop, err := s.shops.GetByDomain(ctx, domain)
	if err != nil {
		return nil, err
	}
	if shop == nil || !shop.IsInstalled {
		return nil, &types.ServiceError{
			Code:    "SHOP_NOT_FOUND",
			Message: fmt.Sprintf("shop %q is not installed", domain),
			Details: map[string]interface{}{"shop_domain": domain},
		}
	}
	return shop, nil
}

// Activate creates the web pixel on the platform and records it. The
// account id correlates client-side events back to the shop: a desired
// id from the caller wins, otherwise an existing one is kept across
// re-activations so in-flight events keep resolving. An empty
// accessToken falls back to the token stored at install.
func (s *ExtensionService) Activate(ctx context.Context, domain, accessToken, desiredAccountID string) (*models.Extension, error) {
	shop, err := s.installedShop(ctx, domain)
	if err != nil {
		return nil, err
	}
	if accessToken == "" {
		accessToken = shop.AccessToken
	}

	existing, err := s.extensions.GetByShopID(ctx, shop.ID)
	if err != nil {
		return nil, err
	}
	accountID := desiredAccountID
	if accountID == "" && existing != nil && existing.AccountID != "" {
		accountID = existing.AccountID
	}
	if accountID == "" {
		accountID = uuid.New().String()
	}

	pixel, err := s.newAdmin(shop.ShopDomain, accessToken).CreateWebPixel(ctx, map[string]string{"accountID": accountID})
	if err != nil {
		return nil, fmt.Errorf("create web pixel for %s: %w", domain, err)
	}

	ext := &models.Extension{
		ShopID:              shop.ID,
		PlatformExtensionID: pixel.ID,
		AccountID:           accountID,
		Status:              models.ExtensionStatusActive,
		Version:             "1",
	}
	if existing != nil {
		ext.Version = existing.Version
	}
	if err := s.extensions.Upsert(ctx, ext); err != nil {
		return nil, err
	}

	s.logger.Info("web pixel activated",
		zap.String("shop", domain),
		zap.String("pixel_id", pixel.ID),
		zap.String("account_id", accountID))
	return ext, nil
}

// Update pushes settings to the existing web pixel. The account id is
// always part of the settings; extra caller settings ride along. A
// caller-supplied platform id overrides the recorded one, and an empty
// accessToken falls back to the token stored at install.
func (s *ExtensionService) Update(ctx context.Context, domain, accessToken, platformExtensionID string, settings map[string]string) (*models.Extension, error) {
	shop, err := s.installedShop(ctx, domain)
	if err != nil {
		return nil, err
	}
	if accessToken == "" {
		accessToken = shop.AccessToken
	}

	ext, err := s.extensions.GetByShopID(ctx, shop.ID)
	if err != nil {
		return nil, err
	}
	if ext == nil {
		return nil, &types.ServiceError{
			Code:    "EXTENSION_NOT_FOUND",
			Message: fmt.Sprintf("shop %q has no web pixel to update", domain),
			Details: map[string]interface{}{"shop_domain": domain},
		}
	}
	pixelID := ext.PlatformExtensionID
	if platformExtensionID != "" {
		pixelID = platformExtensionID
	}

	merged := map[string]string{"accountID": ext.AccountID}
	for k, v := range settings {
		merged[k] = v
	}

	pixel, err := s.newAdmin(shop.ShopDomain, accessToken).UpdateWebPixel(ctx, pixelID, merged)
	if err != nil {
		return nil, fmt.Errorf("update web pixel for %s: %w", domain, err)
	}

	ext.PlatformExtensionID = pixel.ID
	ext.Status = models.ExtensionStatusActive
	if err := s.extensions.Upsert(ctx, ext); err != nil {
		return nil, err
	}

	s.logger.Info("web pixel updated",
		zap.String("shop", domain),
		zap.String("pixel_id", pixel.ID))
	return ext, nil
}

// Status reports the recorded extension for a shop, or a not-found
// error when none exists.
func (s *ExtensionService) Status(ctx context.Context, domain string) (*models.Extension, error) {
	shop, err := s.installedShop(ctx, domain)
	if err != nil {
		return nil, err
	}

	ext, err := s.extensions.GetByShopID(ctx, shop.ID)
	if err != nil {
		return nil, err
	}
	if ext == nil {
		return nil, &types.ServiceError{
			Code:    "EXTENSION_NOT_FOUND",
			Message: fmt.Sprintf("shop %q has no web pixel", domain),
			Details: map[string]interface{}{"shop_domain": domain},
		}
	}
	return ext, nil
}
