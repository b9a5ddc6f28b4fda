// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pixel-backend/internal/models"
	"github.com/pixel-backend/internal/service"
	"github.com/pixel-backend/internal/taskstore"
	"github.com/pixel-backend/internal/types"
)

// Service interfaces for dependency injection and testing

// ShopServiceInterface defines the interface for shop install operations
type ShopServiceInterface interface {
	Install(ctx context.Context, domain, accessToken string, scopes []string) (*models.Shop, error)
}

// ExtensionServiceInterface defines the interface for web pixel lifecycle operations
type ExtensionServiceInterface interface {
	Activate(ctx context.Context, domain, accessToken, desiredAccountID string) (*models.Extension, error)
	Update(ctx context.Context, domain, accessToken, platformExtensionID string, settings map[string]string) (*models.Extension, error)
	Status(ctx context.Context, domain string) (*models.Extension, error)
}

// EventServiceInterface defines the interface for event ingestion
type EventServiceInterface interface {
	Ingest(ctx context.Context, req *service.IngestRequest) (*models.Event, error)
}

// PullOrchestratorInterface defines the interface for starting data pulls
type PullOrchestratorInterface interface {
	StartFullPull(ctx context.Context, shop, accessToken string, mode types.PullMode, batchSize int) (string, error)
}

// TaskStoreInterface defines the interface for pull status and result queries
type TaskStoreInterface interface {
	GetStatus(ctx context.Context, jobID string) (*taskstore.Status, error)
	GetResult(ctx context.Context, shop, jobID string, resource types.ResourceType) ([]json.RawMessage, error)
}

// ShopResolverInterface looks up installed shops for pull requests
type ShopResolverInterface interface {
	GetByDomain(ctx context.Context, domain string) (*models.Shop, error)
}

// WebhookDispatcher routes verified webhook deliveries to their handlers
type WebhookDispatcher interface {
	Dispatch(ctx context.Context, topic, shopDomain string, payload map[string]interface{})
}

// Server represents the HTTP API server.
type Server struct {
	router           *mux.Router
	httpServer       *http.Server
	shopService      ShopServiceInterface
	extensionService ExtensionServiceInterface
	eventService     EventServiceInterface
	orchestrator     PullOrchestratorInterface
	tasks            TaskStoreInterface
	shops            ShopResolverInterface
	dispatcher       WebhookDispatcher
	config           *ServerConfig
	logger           *zap.Logger
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// WebhookSecret verifies inbound webhook signatures.
	WebhookSecret string
	// RequestsPerSecond and Burst bound per-client API traffic.
	RequestsPerSecond int
	Burst             int
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	shopService ShopServiceInterface,
	extensionService ExtensionServiceInterface,
	eventService EventServiceInterface,
	orchestrator PullOrchestratorInterface,
	tasks TaskStoreInterface,
	shops ShopResolverInterface,
	dispatcher WebhookDispatcher,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		router:           mux.NewRouter(),
		shopService:      shopService,
		extensionService: extensionService,
		eventService:     eventService,
		orchestrator:     orchestrator,
		tasks:            tasks,
		shops:            shops,
		dispatcher:       dispatcher,
		config:           config,
		logger:           logger,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	// Set up middleware (order matters!)
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RecoveryMiddleware(s.logger))
	s.router.Use(CORSMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health and metrics
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Webhook deliveries are verified by signature, not rate limited:
	// the platform retries rejected deliveries and eventually suspends
	// the app.
	s.router.HandleFunc("/webhooks", s.handleWebhook).Methods("POST")

	// API routes share the per-client rate limit.
	api := s.router.PathPrefix("/api").Subrouter()
	rateLimiter := NewRateLimiter(s.config.RequestsPerSecond, s.config.Burst)
	api.Use(RateLimitMiddleware(rateLimiter))

	// Data pull endpoints
	api.HandleFunc("/data-pull/start", s.handleStartPull).Methods("POST")
	api.HandleFunc("/data-pull/status/{task_id}", s.handlePullStatus).Methods("GET")
	api.HandleFunc("/data-pull/results/{shop}/{task_id}", s.handlePullResults).Methods("GET")

	// Shop endpoints
	api.HandleFunc("/shops/install", s.handleInstallShop).Methods("POST")

	// Extension endpoints
	api.HandleFunc("/extensions/activate", s.handleActivateExtension).Methods("POST")
	api.HandleFunc("/extensions/update", s.handleUpdateExtension).Methods("POST")
	api.HandleFunc("/extensions/status", s.handleExtensionStatus).Methods("GET")

	// Event ingestion
	api.HandleFunc("/events", s.handleIngestEvent).Methods("POST")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "pixel-backend",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting API server", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
