package models

import (
	"time"

	"gorm.io/gorm"
)

// Voucher statuses.
const (
	VoucherStatusActive   = "active"
	VoucherStatusFrozen   = "frozen"
	VoucherStatusRedeemed = "redeemed"
	VoucherStatusDeleted  = "deleted"
)

// Voucher is the directory record for a ledger-backed voucher. The ledger
// holds authoritative state; this row supports lookups and the ownership
// check in the transfer workflow.
type Voucher struct {
	gorm.Model
	Code         string     `gorm:"uniqueIndex;not null" json:"code"`
	MerchantID   uint       `gorm:"not null;index" json:"merchant_id"`
	Denomination float64    `gorm:"not null" json:"denomination"`
	Currency     string     `gorm:"default:'USD'" json:"currency"`
	Status       string     `gorm:"not null;default:'active'" json:"status"`
	OwnerAddress string     `gorm:"not null" json:"owner_address"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Metadata     JSON       `gorm:"type:jsonb" json:"metadata,omitempty"`
}
