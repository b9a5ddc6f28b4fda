package webhook

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pixel-backend/internal/logging"
	"github.com/pixel-backend/internal/metrics"
	"github.com/pixel-backend/internal/models"
)

// ShopResolver resolves a tenant by its domain. A (nil, nil) return means the
// shop is unknown, which is not an error for webhook delivery.
type ShopResolver interface {
	GetByDomain(ctx context.Context, domain string) (*models.Shop, error)
}

// Handler processes one verified, decoded webhook delivery for a known shop.
type Handler func(ctx context.Context, shop *models.Shop, payload map[string]interface{}) error

type registration struct {
	handler  Handler
	deferred bool
}

// Dispatcher routes verified webhook deliveries to topic handlers. Dispatch
// never returns an error for app-side processing failures: the platform
// retries non-2xx responses, and retry-storming a deterministic bug helps
// nobody. Only the caller's signature check may reject a delivery.
type Dispatcher struct {
	shops ShopResolver

	mu       sync.RWMutex
	handlers map[string]registration

	// deferredTimeout bounds handlers that run detached from the
	// request/response cycle.
	deferredTimeout time.Duration
	wg              sync.WaitGroup
}

// NewDispatcher creates a dispatcher resolving tenants through shops.
func NewDispatcher(shops ShopResolver) *Dispatcher {
	return &Dispatcher{
		shops:           shops,
		handlers:        make(map[string]registration),
		deferredTimeout: 2 * time.Minute,
	}
}

// Handle registers a handler that runs inline, within the request cycle.
// Suitable for fast operations such as single-tenant deletes.
func (d *Dispatcher) Handle(topic string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[topic] = registration{handler: h}
}

// HandleDeferred registers a handler that runs on a background goroutine so
// the delivery is acknowledged without waiting for it.
func (d *Dispatcher) HandleDeferred(topic string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[topic] = registration{handler: h, deferred: true}
}

// Dispatch routes one verified delivery. The caller has already checked the
// signature; every return path here corresponds to a 200 acknowledgment.
func (d *Dispatcher) Dispatch(ctx context.Context, topic, shopDomain string, payload map[string]interface{}) {
	logger := logging.FromContext(ctx).With(
		zap.String("topic", topic),
		zap.String("shop", shopDomain),
	)

	d.mu.RLock()
	reg, ok := d.handlers[topic]
	d.mu.RUnlock()

	if !ok {
		logger.Warn("received webhook for unhandled topic")
		metrics.WebhooksReceived.WithLabelValues(topic, "unknown_topic").Inc()
		return
	}

	shop, err := d.shops.GetByDomain(ctx, shopDomain)
	if err != nil {
		logger.Error("failed to resolve shop for webhook", zap.Error(err))
		metrics.WebhooksReceived.WithLabelValues(topic, "handler_error").Inc()
		return
	}
	if shop == nil {
		// Unknown or never-installed tenant. Acknowledge so the platform
		// does not keep retrying a delivery we can never process.
		logger.Warn("webhook for unknown shop acknowledged without action")
		metrics.WebhooksReceived.WithLabelValues(topic, "unknown_tenant").Inc()
		return
	}

	if reg.deferred {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			bgCtx, cancel := context.WithTimeout(logging.WithLogger(context.Background(), logger), d.deferredTimeout)
			defer cancel()
			d.run(bgCtx, logger, topic, reg.handler, shop, payload)
		}()
		return
	}

	d.run(ctx, logger, topic, reg.handler, shop, payload)
}

func (d *Dispatcher) run(ctx context.Context, logger *zap.Logger, topic string, h Handler, shop *models.Shop, payload map[string]interface{}) {
	if err := h(ctx, shop, payload); err != nil {
		logger.Error("webhook handler failed", zap.Error(err))
		metrics.WebhooksReceived.WithLabelValues(topic, "handler_error").Inc()
		return
	}
	metrics.WebhooksReceived.WithLabelValues(topic, "processed").Inc()
}

// Wait blocks until all deferred handlers have finished. Used in tests and
// during graceful shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
