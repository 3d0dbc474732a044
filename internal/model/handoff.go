package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// EventType classifies a custody event.
type EventType string

const (
	// EventHarvest is the initial event of a batch created by a farmer.
	EventHarvest EventType = "harvest"
	// EventTransit marks a batch as shipped by its holder without changing custody.
	EventTransit EventType = "transit"
	// EventPickup is a distributor taking custody.
	EventPickup EventType = "pickup"
	// EventDelivery is a retailer taking custody.
	EventDelivery EventType = "delivery"
	// EventSale is a consumer purchase.
	EventSale EventType = "sale"
	// EventSplit opens the history of a remainder batch left by a partial handoff.
	EventSplit EventType = "split"
)

// HandoffEvent is an immutable record of one custody transition. Only the
// ledger columns change after insert.
type HandoffEvent struct {
	ID           uuid.UUID        `json:"id" gorm:"type:char(36);primaryKey"`
	BatchID      uuid.UUID        `json:"batch_id" gorm:"type:char(36);not null;uniqueIndex:idx_handoff_batch_seq"`
	Sequence     int              `json:"sequence" gorm:"not null;uniqueIndex:idx_handoff_batch_seq"`
	FromUserID   *uuid.UUID       `json:"from_user_id,omitempty" gorm:"type:char(36);index"`
	ToUserID     uuid.UUID        `json:"to_user_id" gorm:"type:char(36);not null;index"`
	EventType    EventType        `json:"event_type" gorm:"type:varchar(20);not null"`
	StatusAfter  BatchStatus      `json:"status_after" gorm:"type:varchar(20);not null"`
	Quantity     decimal.Decimal  `json:"quantity" gorm:"type:decimal(20,3);not null"`
	Price        decimal.Decimal  `json:"price" gorm:"type:decimal(20,2);not null;default:0"`
	Location     string           `json:"location,omitempty" gorm:"size:255"`
	Temperature  *decimal.Decimal `json:"temperature,omitempty" gorm:"type:decimal(6,2)"`
	Notes        string           `json:"notes,omitempty" gorm:"type:text"`
	PhotoURL     string           `json:"photo_url,omitempty" gorm:"size:512"`
	LedgerStatus LedgerStatus     `json:"ledger_status" gorm:"type:varchar(20);not null;default:'skipped'"`
	LedgerTxHash string           `json:"ledger_tx_hash,omitempty" gorm:"size:66"`
	OccurredAt   time.Time        `json:"occurred_at" gorm:"not null;index"`
}

// BeforeCreate sets UUID before creating the record.
func (e *HandoffEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// HandoffInput carries the caller-supplied details of a transition.
type HandoffInput struct {
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	Location    string
	Temperature *decimal.Decimal
	Notes       string
	PhotoURL    string
	// Password unlocks the sender's wallet for the ledger mirror. Empty skips it.
	Password string
}

// HandoffResult is returned by a committed handoff.
type HandoffResult struct {
	Batch     Batch        `json:"batch"`
	Event     HandoffEvent `json:"event"`
	Remainder *Batch       `json:"remainder,omitempty"`
	Ledger    LedgerResult `json:"ledger"`
}

// BatchTrace is the consumer-facing provenance of a batch: its own history
// followed by the lineage it was split from.
type BatchTrace struct {
	Batch     Batch          `json:"batch"`
	History   []HandoffEvent `json:"history"`
	Ancestors []TraceSegment `json:"ancestors,omitempty"`
}

// TraceSegment is the history of an ancestor batch up to the split. It
// carries only fields that never change after the split, so a cached trace
// cannot go stale when the ancestor is handed on.
type TraceSegment struct {
	BatchID      uuid.UUID      `json:"batch_id"`
	ProducerID   uuid.UUID      `json:"producer_id"`
	ProduceType  string         `json:"produce_type"`
	Variety      string         `json:"variety,omitempty"`
	FarmLocation string         `json:"farm_location,omitempty"`
	HarvestedAt  time.Time      `json:"harvested_at"`
	SplitAt      int            `json:"split_at_sequence"`
	History      []HandoffEvent `json:"history"`
}
