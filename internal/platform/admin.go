package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrAlreadySubscribed indicates a webhook subscription already exists for
// the (topic, callback URL) pair. Callers treat it as success to keep
// registration idempotent.
var ErrAlreadySubscribed = errors.New("platform: webhook subscription already exists")

// WebhookSubscription is one registered (topic, callback URL) pair.
type WebhookSubscription struct {
	ID          string
	Topic       string
	CallbackURL string
}

// ListWebhookSubscriptions returns the subscriptions currently registered
// for this shop.
func (c *Client) ListWebhookSubscriptions(ctx context.Context) ([]WebhookSubscription, error) {
	var resp struct {
		WebhookSubscriptions struct {
			Edges []struct {
				Node struct {
					ID       string `json:"id"`
					Topic    string `json:"topic"`
					Endpoint struct {
						Typename    string `json:"__typename"`
						CallbackURL string `json:"callbackUrl"`
					} `json:"endpoint"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"webhookSubscriptions"`
	}
	if err := c.execute(ctx, listWebhookSubscriptionsQuery, nil, &resp); err != nil {
		return nil, err
	}

	subs := make([]WebhookSubscription, 0, len(resp.WebhookSubscriptions.Edges))
	for _, edge := range resp.WebhookSubscriptions.Edges {
		subs = append(subs, WebhookSubscription{
			ID:          edge.Node.ID,
			Topic:       edge.Node.Topic,
			CallbackURL: edge.Node.Endpoint.CallbackURL,
		})
	}
	return subs, nil
}

// CreateWebhookSubscription registers a callback URL for a topic. The topic
// uses the Admin API enum form, e.g. CUSTOMERS_REDACT. An "already taken"
// user error maps to ErrAlreadySubscribed.
func (c *Client) CreateWebhookSubscription(ctx context.Context, topic, callbackURL string) (string, error) {
	variables := map[string]interface{}{
		"topic": topic,
		"webhookSubscription": map[string]interface{}{
			"callbackUrl": callbackURL,
			"format":      "JSON",
		},
	}

	var resp struct {
		WebhookSubscriptionCreate struct {
			WebhookSubscription struct {
				ID    string `json:"id"`
				Topic string `json:"topic"`
			} `json:"webhookSubscription"`
			UserErrors []userError `json:"userErrors"`
		} `json:"webhookSubscriptionCreate"`
	}
	if err := c.execute(ctx, createWebhookSubscriptionMutation, variables, &resp); err != nil {
		return "", err
	}

	if errs := resp.WebhookSubscriptionCreate.UserErrors; len(errs) > 0 {
		for _, ue := range errs {
			if strings.Contains(ue.Message, "has already been taken") {
				return "", ErrAlreadySubscribed
			}
		}
		return "", fmt.Errorf("webhook subscription rejected for topic %s: %s", topic, errs[0].Message)
	}

	id := resp.WebhookSubscriptionCreate.WebhookSubscription.ID
	if id == "" {
		return "", fmt.Errorf("platform did not return a subscription id for topic %s", topic)
	}
	return id, nil
}

// WebPixel is the platform-side record of an installed web pixel extension.
type WebPixel struct {
	ID       string
	Settings string
}

func (c *Client) webPixelMutation(ctx context.Context, mutation string, variables map[string]interface{}, key string) (*WebPixel, error) {
	var raw map[string]json.RawMessage
	if err := c.execute(ctx, mutation, variables, &raw); err != nil {
		return nil, err
	}

	var resp struct {
		WebPixel struct {
			ID       string `json:"id"`
			Settings string `json:"settings"`
		} `json:"webPixel"`
		UserErrors []userError `json:"userErrors"`
	}
	payload, ok := raw[key]
	if !ok {
		return nil, fmt.Errorf("platform response missing %q", key)
	}
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", key, err)
	}

	if len(resp.UserErrors) > 0 {
		return nil, fmt.Errorf("web pixel mutation rejected: %s", resp.UserErrors[0].Message)
	}
	if resp.WebPixel.ID == "" {
		return nil, fmt.Errorf("platform did not return a web pixel id")
	}
	return &WebPixel{ID: resp.WebPixel.ID, Settings: resp.WebPixel.Settings}, nil
}

// CreateWebPixel activates the web pixel extension for this shop. Settings
// are serialized as the JSON string the Admin API expects.
func (c *Client) CreateWebPixel(ctx context.Context, settings map[string]string) (*WebPixel, error) {
	encoded, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to encode web pixel settings: %w", err)
	}
	variables := map[string]interface{}{
		"webPixel": map[string]interface{}{"settings": string(encoded)},
	}
	return c.webPixelMutation(ctx, createWebPixelMutation, variables, "webPixelCreate")
}

// UpdateWebPixel updates settings for an existing web pixel.
func (c *Client) UpdateWebPixel(ctx context.Context, id string, settings map[string]string) (*WebPixel, error) {
	encoded, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to encode web pixel settings: %w", err)
	}
	variables := map[string]interface{}{
		"id":       id,
		"webPixel": map[string]interface{}{"settings": string(encoded)},
	}
	return c.webPixelMutation(ctx, updateWebPixelMutation, variables, "webPixelUpdate")
}
