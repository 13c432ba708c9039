package model

import "github.com/google/uuid"

// EventType names a committed state change.
type EventType string

const (
	EventMint     EventType = "mint"
	EventTransfer EventType = "transfer"
	EventApprove  EventType = "approve"
	EventList     EventType = "list"
	EventSale     EventType = "sale"
	EventCancel   EventType = "cancel"
	EventDeposit  EventType = "deposit"
	EventWithdraw EventType = "withdraw"
)

// Event records one committed operation. Fields that do not apply to the
// event type are left zero.
type Event struct {
	ID         uuid.UUID `json:"id" msgpack:"id"`
	Seq        uint64    `json:"seq" msgpack:"seq"` // Exchange-wide, gapless from 1
	Type       EventType `json:"type" msgpack:"type"`
	Collection string    `json:"collection,omitempty" msgpack:"collection,omitempty"`
	AssetID    AssetID   `json:"asset_id" msgpack:"asset_id"`
	ListingID  ListingID `json:"listing_id,omitempty" msgpack:"listing_id,omitempty"`
	Caller     Identity  `json:"caller,omitempty" msgpack:"caller,omitempty"`
	From       Identity  `json:"from,omitempty" msgpack:"from,omitempty"`
	To         Identity  `json:"to,omitempty" msgpack:"to,omitempty"`
	Amount     int64     `json:"amount,omitempty" msgpack:"amount,omitempty"`
	URI        string    `json:"uri,omitempty" msgpack:"uri,omitempty"`
	OccurredAt int64     `json:"occurred_at" msgpack:"occurred_at"` // µs since epoch
}
