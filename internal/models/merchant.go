package models

import "time"

// Merchant statuses.
const (
	MerchantStatusActive    = "active"
	MerchantStatusSuspended = "suspended"
	MerchantStatusClosed    = "closed"
)

// Merchant is a voucher-issuing business. LedgerAddress is the merchant's
// account on the blockchain ledger.
type Merchant struct {
	ID            uint   `gorm:"primarykey" json:"id"`
	UserID        uint   `gorm:"uniqueIndex;not null" json:"user_id"`
	BusinessName  string `gorm:"not null" json:"business_name"`
	BusinessType  string `gorm:"not null" json:"business_type"`
	LedgerAddress string `gorm:"uniqueIndex;not null" json:"ledger_address"`
	Status        string `gorm:"not null;default:'active'" json:"status"`
	Metadata      JSON   `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
