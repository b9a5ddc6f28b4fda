package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/pixel-backend/internal/models"
	"github.com/pixel-backend/internal/webhook"
)

// SubscriptionAPIFactory builds a webhook subscription API client for
// one shop's credentials.
type SubscriptionAPIFactory func(shop, accessToken string) webhook.SubscriptionAPI

// ShopService handles shop installation. Installing upserts the shop
// row and converges its webhook subscriptions to the required set.
type ShopService struct {
	shops       ShopStore
	reconciler  *webhook.Reconciler
	newAPI      SubscriptionAPIFactory
	callbackURL string
	logger      *zap.Logger
}

func NewShopService(shops ShopStore, reconciler *webhook.Reconciler, factory SubscriptionAPIFactory, callbackURL string, logger *zap.Logger) *ShopService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShopService{
		shops:       shops,
		reconciler:  reconciler,
		newAPI:      factory,
		callbackURL: callbackURL,
		logger:      logger,
	}
}

// Install registers or re-registers a shop. Reconciliation failures are
// logged but do not fail the install: the shop record is the source of
// truth and subscriptions converge on the next install or manual run.
func (s *ShopService) Install(ctx context.Context, domain, accessToken string, scopes []string) (*models.Shop, error) {
	shop := &models.Shop{
		ShopDomain:  domain,
		AccessToken: accessToken,
		Scopes:      scopes,
	}
	if err := s.shops.Upsert(ctx, shop); err != nil {
		return nil, err
	}

	api := s.newAPI(shop.ShopDomain, shop.AccessToken)
	result, err := s.reconciler.Reconcile(ctx, api, s.callbackURL)
	if err != nil {
		s.logger.Warn("webhook reconciliation failed on install",
			zap.String("shop", shop.ShopDomain),
			zap.Error(err))
	} else {
		s.logger.Info("shop installed",
			zap.String("shop", shop.ShopDomain),
			zap.Int("subscriptions_created", result.Created),
			zap.Int("subscriptions_existing", result.Existing),
			zap.Strings("subscriptions_failed", result.Failed))
	}
	return shop, nil
}
