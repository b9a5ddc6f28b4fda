package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pixel-backend/internal/metrics"
	"github.com/pixel-backend/internal/models"
	"github.com/pixel-backend/internal/types"
)

// ExtensionResolver maps an account id to its active extension.
type ExtensionResolver interface {
	GetActiveByAccountID(ctx context.Context, accountID string) (*models.Extension, error)
}

// EventWriter persists ingested events.
type EventWriter interface {
	Insert(ctx context.Context, event *models.Event) error
}

// Limiter bounds event ingestion per account id.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	RetryAfter(ctx context.Context, key string) (time.Duration, error)
}

// EventService ingests web pixel events. Events carry an account id,
// not a shop domain: the extension registry maps them to the owning
// shop, and events with no active extension are rejected without being
// stored.
type EventService struct {
	extensions ExtensionResolver
	events     EventWriter
	limiter    Limiter
	logger     *zap.Logger
}

func NewEventService(extensions ExtensionResolver, events EventWriter, limiter Limiter, logger *zap.Logger) *EventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{extensions: extensions, events: events, limiter: limiter, logger: logger}
}

// IngestRequest is one event as submitted by the pixel.
type IngestRequest struct {
	AccountID string          `json:"account_id"`
	EventName string          `json:"event_name"`
	Payload   json.RawMessage `json:"payload"`
}

// Ingest validates, rate-limits and stores one event.
func (s *EventService) Ingest(ctx context.Context, req *IngestRequest) (*models.Event, error) {
	if req.AccountID == "" || req.EventName == "" {
		metrics.EventsIngested.WithLabelValues("invalid").Inc()
		return nil, &types.ServiceError{
			Code:    "INVALID_EVENT",
			Message: "account_id and event_name are required",
		}
	}

	allowed, err := s.limiter.Allow(ctx, req.AccountID)
	if err != nil {
		return nil, fmt.Errorf("rate limit check: %w", err)
	}
	if !allowed {
		metrics.EventsIngested.WithLabelValues("rate_limited").Inc()
		details := map[string]interface{}{"account_id": req.AccountID}
		if retryAfter, raErr := s.limiter.RetryAfter(ctx, req.AccountID); raErr == nil && retryAfter > 0 {
			secs := int(retryAfter / time.Second)
			if retryAfter%time.Second != 0 {
				secs++
			}
			details["retry_after_seconds"] = secs
		}
		return nil, &types.ServiceError{
			Code:    "RATE_LIMITED",
			Message: "event rate limit exceeded for account",
			Details: details,
		}
	}

	ext, err := s.extensions.GetActiveByAccountID(ctx, req.AccountID)
	if err != nil {
		return nil, fmt.Errorf("resolve account: %w", err)
	}
	if ext == nil {
		metrics.EventsIngested.WithLabelValues("unknown_account").Inc()
		return nil, &types.ServiceError{
			Code:    "EXTENSION_NOT_FOUND",
			Message: "no active extension for account",
			Details: map[string]interface{}{"account_id": req.AccountID},
		}
	}

	payload := req.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	event := &models.Event{
		ShopID:    ext.ShopID,
		AccountID: req.AccountID,
		EventName: req.EventName,
		Payload:   payload,
	}
	if err := s.events.Insert(ctx, event); err != nil {
		return nil, fmt.Errorf("store event: %w", err)
	}

	metrics.EventsIngested.WithLabelValues("stored").Inc()
	s.logger.Debug("event ingested",
		zap.String("account_id", req.AccountID),
		zap.String("event_name", req.EventName),
		zap.Int64("shop_id", ext.ShopID))
	return event, nil
}
