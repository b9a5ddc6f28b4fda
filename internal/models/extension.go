package models

import "time"

// Extension status values.
const (
	ExtensionStatusActive   = "active"
	ExtensionStatusInactive = "inactive"
)

// Extension represents a registered web pixel instance for a shop. The
// account ID is an app-generated correlation key embedded into client-side
// events; it maps events back to the extension without exposing internal
// primary keys.
type Extension struct {
	ID                  int64     `json:"id"`
	ShopID              int64     `json:"shop_id"`
	PlatformExtensionID string    `json:"platform_extension_id"`
	AccountID           string    `json:"account_id"`
	Status              string    `json:"status"`
	Version             string    `json:"version,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}
