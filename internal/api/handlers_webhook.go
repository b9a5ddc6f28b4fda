package api

import (
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/pixel-backend/internal/metrics"
	"github.com/pixel-backend/internal/webhook"
)

// Webhook delivery headers set by the platform.
const (
	headerTopic      = "X-Shopify-Topic"
	headerHmac       = "X-Shopify-Hmac-SHA256"
	headerShopDomain = "X-Shopify-Shop-Domain"
)

// handleWebhook receives platform webhook deliveries. The signature is
// verified over the raw body before any parsing. Once a delivery is
// authenticated it is always acknowledged with 200, even when the
// payload is malformed or the shop is unknown: a non-200 makes the
// platform redeliver forever and eventually flag the app.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	topic := r.Header.Get(headerTopic)
	signature := r.Header.Get(headerHmac)
	shopDomain := r.Header.Get(headerShopDomain)
	if topic == "" || signature == "" || shopDomain == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Missing webhook headers", nil)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Unreadable request body", nil)
		return
	}

	if !webhook.VerifySignature(body, s.config.WebhookSecret, signature) {
		metrics.WebhooksReceived.WithLabelValues(topic, "invalid_signature").Inc()
		s.logger.Warn("webhook signature verification failed",
			zap.String("topic", topic),
			zap.String("shop", shopDomain))
		respondError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "Invalid webhook signature", nil)
		return
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		// Authenticated but malformed: acknowledge and drop.
		metrics.WebhooksReceived.WithLabelValues(topic, "invalid_payload").Inc()
		s.logger.Warn("webhook payload is not valid JSON",
			zap.String("topic", topic),
			zap.String("shop", shopDomain))
		respondJSON(w, http.StatusOK, map[string]string{"status": "acknowledged"})
		return
	}

	s.dispatcher.Dispatch(r.Context(), topic, shopDomain, payload)
	respondJSON(w, http.StatusOK, map[string]string{"status": "acknowledged"})
}
