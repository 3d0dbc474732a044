package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is a supply chain stakeholder kind. It is fixed at registration.
type Role string

const (
	RoleFarmer      Role = "farmer"
	RoleDistributor Role = "distributor"
	RoleRetailer    Role = "retailer"
	RoleConsumer    Role = "consumer"
)

// ParseRole converts a string into a Role.
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleFarmer, RoleDistributor, RoleRetailer, RoleConsumer:
		return r, true
	}
	return "", false
}

// Code is the role number understood by the ledger contract.
func (r Role) Code() uint8 {
	switch r {
	case RoleFarmer:
		return 0
	case RoleDistributor:
		return 1
	case RoleRetailer:
		return 2
	case RoleConsumer:
		return 3
	}
	panic("unknown role " + string(r))
}

// User is a registered stakeholder with a custodial wallet.
type User struct {
	ID                  uuid.UUID    `json:"id" gorm:"type:char(36);primaryKey"`
	Phone               string       `json:"phone" gorm:"size:32;not null;uniqueIndex"`
	Name                string       `json:"name" gorm:"size:255;not null"`
	Location            string       `json:"location" gorm:"size:255"`
	Role                Role         `json:"role" gorm:"type:varchar(20);not null;index"`
	PasswordHash        string       `json:"-" gorm:"size:255;not null"`
	WalletAddress       string       `json:"wallet_address" gorm:"size:42;not null;uniqueIndex"`
	EncryptedPrivateKey string       `json:"-" gorm:"type:text;not null"`
	KeyIV               string       `json:"-" gorm:"size:64;not null"`
	KeySalt             string       `json:"-" gorm:"size:64;not null"`
	Verified            bool         `json:"verified" gorm:"default:false;index"`
	LedgerStatus        LedgerStatus `json:"ledger_status" gorm:"type:varchar(20);not null;default:'skipped'"`
	LedgerTxHash        string       `json:"ledger_tx_hash,omitempty" gorm:"size:66"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

// BeforeCreate sets UUID before creating the record.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
