package models

import "time"

// Transfer types.
const (
	TransferTypeFull    = "full"
	TransferTypePartial = "partial"
)

// Transfer statuses.
const (
	TransferStatusPending   = "pending"
	TransferStatusApproved  = "approved"
	TransferStatusRejected  = "rejected"
	TransferStatusCompleted = "completed"
	TransferStatusFailed    = "failed"
)

// TerminalTransferStatuses accept no further transitions.
var TerminalTransferStatuses = map[string]bool{
	TransferStatusRejected:  true,
	TransferStatusCompleted: true,
	TransferStatusFailed:    true,
}

// Transfer is a voucher ownership change, gated by a single approver when the
// policy requires it. The referenced voucher's issuing merchant is the only
// non-admin actor allowed to approve or reject.
type Transfer struct {
	ID               string     `gorm:"type:uuid;primaryKey" json:"id"`
	VoucherID        uint       `gorm:"not null;index" json:"voucher_id"`
	FromAddress      string     `gorm:"not null" json:"from_address"`
	ToAddress        string     `gorm:"not null" json:"to_address"`
	TransferType     string     `gorm:"type:varchar(10);not null" json:"transfer_type"`
	Amount           *float64   `json:"amount,omitempty"`
	RequiresApproval bool       `gorm:"not null" json:"requires_approval"`
	Status           string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Version          int64      `gorm:"not null;default:1" json:"-"`
	InitiatedBy      uint       `gorm:"not null;index" json:"initiated_by"`
	ApprovedBy       *uint      `json:"approved_by,omitempty"`
	ApprovedAt       *time.Time `json:"approved_at,omitempty"`
	ApprovalComment  string     `json:"approval_comment,omitempty"`
	RejectedBy       *uint      `json:"rejected_by,omitempty"`
	RejectionReason  string     `json:"rejection_reason,omitempty"`
	FailureReason    string     `json:"failure_reason,omitempty"`
	LedgerRef        string     `json:"ledger_ref,omitempty"`
	CreatedAt        time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// IsTerminal reports whether the transfer reached a final status.
func (t *Transfer) IsTerminal() bool {
	return TerminalTransferStatuses[t.Status]
}
