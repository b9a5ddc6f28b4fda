// Package models defines the persisted data structures for the pixel backend.
package models

import "time"

// Shop represents a connected store (one installed tenant of the app).
// The row is never hard-deleted: shop redaction clears the access token and
// unsets the installation flag so a later re-install updates the same row.
type Shop struct {
	ID          int64     `json:"id"`
	ShopDomain  string    `json:"shop_domain"`
	AccessToken string    `json:"-"`
	Scopes      []string  `json:"scopes,omitempty"`
	IsInstalled bool      `json:"is_installed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
