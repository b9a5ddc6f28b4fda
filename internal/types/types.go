// Package types provides common type definitions for the pixel backend system.
package types

import "fmt"

// ResourceType identifies a shop resource pulled from the platform API.
type ResourceType string

const (
	// ResourceCustomers represents the customer records of a shop
	ResourceCustomers ResourceType = "customers"
	// ResourceProducts represents the product catalog of a shop
	ResourceProducts ResourceType = "products"
	// ResourceOrders represents the order history of a shop
	ResourceOrders ResourceType = "orders"
)

// AllResourceTypes returns the fixed set of resource types a full pull fans
// out over, in a stable order.
func AllResourceTypes() []ResourceType {
	return []ResourceType{ResourceCustomers, ResourceProducts, ResourceOrders}
}

// ParseResourceType validates a resource type string.
func ParseResourceType(s string) (ResourceType, error) {
	switch ResourceType(s) {
	case ResourceCustomers, ResourceProducts, ResourceOrders:
		return ResourceType(s), nil
	default:
		return "", &ServiceError{
			Code:    "INVALID_RESOURCE_TYPE",
			Message: fmt.Sprintf("invalid resource type: %q (must be one of customers, products, orders)", s),
		}
	}
}

// JobState represents the lifecycle state of a pull job
type JobState string

const (
	// JobPending means the job is enqueued but no worker has picked it up
	JobPending JobState = "pending"
	// JobRunning means a worker is executing the job
	JobRunning JobState = "running"
	// JobCompleted means the job finished and its result is stored
	JobCompleted JobState = "completed"
	// JobFailed means the job exhausted its retries
	JobFailed JobState = "failed"
)

// Terminal reports whether the state can no longer change.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// PullMode selects how the platform client fetches a resource.
type PullMode string

const (
	// PullModeCursor walks the paginated GraphQL connection cursor by cursor
	PullModeCursor PullMode = "cursor"
	// PullModeBulk submits a platform bulk operation and downloads its result
	PullModeBulk PullMode = "bulk"
)

// ParsePullMode validates a pull mode string. An empty string defaults to
// cursor mode.
func ParsePullMode(s string) (PullMode, error) {
	switch PullMode(s) {
	case "":
		return PullModeCursor, nil
	case PullModeCursor, PullModeBulk:
		return PullMode(s), nil
	default:
		return "", &ServiceError{
			Code:    "INVALID_PULL_MODE",
			Message: fmt.Sprintf("invalid pull mode: %q (must be cursor or bulk)", s),
		}
	}
}

// Webhook topics delivered by the platform.
const (
	TopicCustomersDataRequest = "customers/data_request"
	TopicCustomersRedact      = "customers/redact"
	TopicShopRedact           = "shop/redact"
	TopicAppUninstalled       = "app/uninstalled"
)

// Webhook subscription topic identifiers in the platform Admin API enum form,
// as used by the registration mutation.
const (
	SubscriptionCustomersDataRequest = "CUSTOMERS_DATA_REQUEST"
	SubscriptionCustomersRedact      = "CUSTOMERS_REDACT"
	SubscriptionShopRedact           = "SHOP_REDACT"
	SubscriptionAppUninstalled       = "APP_UNINSTALLED"
)

// Well-known web pixel event names. The payload shape is heterogeneous by
// event name; unknown names are accepted and stored as opaque payloads.
const (
	EventPageViewed        = "page_viewed"
	EventProductViewed     = "product_viewed"
	EventCartViewed        = "cart_viewed"
	EventCheckoutCompleted = "checkout_completed"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
