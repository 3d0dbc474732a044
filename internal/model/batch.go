package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Decimal places stored for quantities, prices and temperatures.
const (
	QuantityScale    int32 = 3
	PriceScale       int32 = 2
	TemperatureScale int32 = 2
)

// BatchStatus is the custody stage of a batch.
type BatchStatus string

const (
	StatusHarvested     BatchStatus = "harvested"
	StatusInTransit     BatchStatus = "in_transit"
	StatusAtDistributor BatchStatus = "at_distributor"
	StatusAtRetailer    BatchStatus = "at_retailer"
	StatusSold          BatchStatus = "sold"
)

// ParseBatchStatus converts a string into a BatchStatus.
func ParseBatchStatus(s string) (BatchStatus, bool) {
	switch st := BatchStatus(s); st {
	case StatusHarvested, StatusInTransit, StatusAtDistributor, StatusAtRetailer, StatusSold:
		return st, true
	}
	return "", false
}

// Code is the status number understood by the ledger contract.
func (s BatchStatus) Code() uint8 {
	switch s {
	case StatusHarvested:
		return 0
	case StatusInTransit:
		return 1
	case StatusAtDistributor:
		return 2
	case StatusAtRetailer:
		return 3
	case StatusSold:
		return 4
	}
	panic("unknown batch status " + string(s))
}

// Terminal reports whether no further handoff is possible.
func (s BatchStatus) Terminal() bool {
	return s == StatusSold
}

// Batch is a quantity of produce from one farmer tracked through the chain.
type Batch struct {
	ID              uuid.UUID       `json:"id" gorm:"type:char(36);primaryKey"`
	ProducerID      uuid.UUID       `json:"producer_id" gorm:"type:char(36);not null;index"`
	ParentBatchID   *uuid.UUID      `json:"parent_batch_id,omitempty" gorm:"type:char(36);index"`
	ParentSequence  int             `json:"parent_sequence,omitempty"`
	ProduceType     string          `json:"produce_type" gorm:"size:100;not null;index"`
	Variety         string          `json:"variety" gorm:"size:100"`
	Quantity        decimal.Decimal `json:"quantity" gorm:"type:decimal(20,3);not null"`
	Unit            string          `json:"unit" gorm:"size:16;not null;default:'kg'"`
	Price           decimal.Decimal `json:"price" gorm:"type:decimal(20,2);not null;default:0"`
	QualityGrade    string          `json:"quality_grade" gorm:"size:32"`
	Organic         bool            `json:"organic" gorm:"default:false"`
	FarmLocation    string          `json:"farm_location" gorm:"size:255"`
	Latitude        *float64        `json:"latitude,omitempty"`
	Longitude       *float64        `json:"longitude,omitempty"`
	HarvestedAt     time.Time       `json:"harvested_at"`
	CurrentHolderID uuid.UUID       `json:"current_holder_id" gorm:"type:char(36);not null;index"`
	Status          BatchStatus     `json:"status" gorm:"type:varchar(20);not null;index"`
	PhotoURL        string          `json:"photo_url,omitempty" gorm:"size:512"`
	MetadataRef     string          `json:"metadata_ref,omitempty" gorm:"size:255"`
	LedgerID        string          `json:"ledger_id,omitempty" gorm:"size:66"`
	LedgerStatus    LedgerStatus    `json:"ledger_status" gorm:"type:varchar(20);not null;default:'skipped'"`
	LedgerTxHash    string          `json:"ledger_tx_hash,omitempty" gorm:"size:66"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	Producer User `json:"-" gorm:"foreignKey:ProducerID"`
}

// BeforeCreate sets UUID before creating the record.
func (b *Batch) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// BatchFilter narrows batch listings. Zero values are ignored.
type BatchFilter struct {
	HolderID   uuid.UUID
	ProducerID uuid.UUID
	Status     BatchStatus
	Offset     int
	Limit      int
}
