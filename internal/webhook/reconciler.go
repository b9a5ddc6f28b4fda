package webhook

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/pixel-backend/internal/platform"
	"github.com/pixel-backend/internal/types"
)

// RequiredTopics are the subscriptions every installed shop must carry,
// in Admin API enum form.
var RequiredTopics = []string{
	types.SubscriptionCustomersDataRequest,
	types.SubscriptionCustomersRedact,
	types.SubscriptionShopRedact,
	types.SubscriptionAppUninstalled,
}

// SubscriptionAPI is the slice of the platform client the reconciler
// needs.
type SubscriptionAPI interface {
	ListWebhookSubscriptions(ctx context.Context) ([]platform.WebhookSubscription, error)
	CreateWebhookSubscription(ctx context.Context, topic, callbackURL string) (string, error)
}

// Reconciler converges a shop's webhook subscriptions to the required
// set. Missing subscriptions are created; existing ones are left alone.
type Reconciler struct {
	logger *zap.Logger
}

func NewReconciler(logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{logger: logger}
}

// Result summarises one reconciliation run.
type Result struct {
	Existing int
	Created  int
	Failed   []string
}

// Reconcile ensures every required topic has a subscription pointing at
// callbackURL. A subscription only counts as existing when both topic
// and callback URL match. Per-topic failures are collected, not fatal:
// the next install or reconciliation retries them.
func (r *Reconciler) Reconcile(ctx context.Context, api SubscriptionAPI, callbackURL string) (*Result, error) {
	existing, err := api.ListWebhookSubscriptions(ctx)
	if err != nil {
		return nil, err
	}

	current := make(map[string]bool, len(existing))
	for _, sub := range existing {
		if sub.CallbackURL == callbackURL {
			current[sub.Topic] = true
		}
	}

	result := &Result{}
	for _, topic := range RequiredTopics {
		if current[topic] {
			result.Existing++
			continue
		}

		_, err := api.CreateWebhookSubscription(ctx, topic, callbackURL)
		switch {
		case errors.Is(err, platform.ErrAlreadySubscribed):
			// Another install raced us there; converged either way.
			result.Existing++
		case err != nil:
			r.logger.Warn("failed to create webhook subscription",
				zap.String("topic", topic),
				zap.Error(err))
			result.Failed = append(result.Failed, topic)
		default:
			r.logger.Info("created webhook subscription", zap.String("topic", topic))
			result.Created++
		}
	}
	return result, nil
}
