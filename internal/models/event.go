package models

import (
	"encoding/json"
	"time"
)

// Event is one ingested web pixel activity record. The payload shape varies
// by event name, so it is stored as raw JSON and probed at known paths when
// a customer identifier needs to be located.
type Event struct {
	ID         int64           `json:"id"`
	ShopID     int64           `json:"shop_id"`
	AccountID  string          `json:"account_id"`
	EventName  string          `json:"event_name"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"received_at"`
}
