package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Operation types. The set is closed: anything else fails validation at
// creation and the dispatcher refuses to execute it.
const (
	OpTypeCreateVoucherBatch     = "CREATE_VOUCHER_BATCH"
	OpTypeModifyCriticalSettings = "MODIFY_CRITICAL_SETTINGS"
	OpTypeDeleteMultipleVouchers = "DELETE_MULTIPLE_VOUCHERS"
	OpTypeChangeMerchantStatus   = "CHANGE_MERCHANT_STATUS"
	OpTypeBulkTransfer           = "BULK_TRANSFER"
	OpTypeEmergencyFreeze        = "EMERGENCY_FREEZE"
	OpTypeSystemMaintenance      = "SYSTEM_MAINTENANCE"
	OpTypeSecurityUpdate         = "SECURITY_UPDATE"
)

// ValidOperationTypes is the closed set of sensitive action kinds.
var ValidOperationTypes = map[string]bool{
	OpTypeCreateVoucherBatch:     true,
	OpTypeModifyCriticalSettings: true,
	OpTypeDeleteMultipleVouchers: true,
	OpTypeChangeMerchantStatus:   true,
	OpTypeBulkTransfer:           true,
	OpTypeEmergencyFreeze:        true,
	OpTypeSystemMaintenance:      true,
	OpTypeSecurityUpdate:         true,
}

// Operation statuses.
const (
	OperationStatusPending  = "pending"
	OperationStatusApproved = "approved"
	OperationStatusRejected = "rejected"
	OperationStatusExecuted = "executed"
	OperationStatusFailed   = "failed"
	OperationStatusExpired  = "expired"
)

// TerminalOperationStatuses accept no further transitions.
var TerminalOperationStatuses = map[string]bool{
	OperationStatusRejected: true,
	OperationStatusExecuted: true,
	OperationStatusFailed:   true,
	OperationStatusExpired:  true,
}

// Bounds on the signature threshold, fixed at creation.
const (
	MinRequiredSignatures = 2
	MaxRequiredSignatures = 10
)

// Signature is one recorded approval on an operation.
type Signature struct {
	SignedBy uint      `json:"signed_by"`
	SignedAt time.Time `json:"signed_at"`
	Comment  string    `json:"comment,omitempty"`
}

// SignatureList is stored as a jsonb array, ordered by successful-write order.
type SignatureList []Signature

func (l SignatureList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return json.Marshal(l)
}

func (l *SignatureList) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	case nil:
		*l = nil
		return nil
	}
	return errors.New("unsupported signature list source")
}

// Operation is a sensitive administrative action gated by a threshold of
// independent approvals before the dispatcher performs its ledger effect.
type Operation struct {
	ID                 string        `gorm:"type:uuid;primaryKey" json:"id"`
	OperationType      string        `gorm:"type:varchar(40);not null;index" json:"operation_type"`
	OperationData      JSON          `gorm:"type:jsonb" json:"operation_data"`
	InitiatedBy        uint          `gorm:"not null;index" json:"initiated_by"`
	RequiredSignatures int           `gorm:"not null" json:"required_signatures"`
	Signatures         SignatureList `gorm:"type:jsonb;not null;default:'[]'" json:"signatures"`
	Status             string        `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Version            int64         `gorm:"not null;default:1" json:"-"`
	ExpiresAt          *time.Time    `gorm:"index" json:"expires_at,omitempty"`
	ApprovedAt         *time.Time    `json:"approved_at,omitempty"`
	RejectedBy         *uint         `json:"rejected_by,omitempty"`
	RejectionReason    string        `json:"rejection_reason,omitempty"`
	ExecutionClaimedAt *time.Time    `json:"execution_claimed_at,omitempty"`
	ExecutionResult    JSON          `gorm:"type:jsonb" json:"execution_result,omitempty"`
	CreatedAt          time.Time     `gorm:"index" json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// HasSigned reports whether userID already contributed a signature.
func (o *Operation) HasSigned(userID uint) bool {
	for _, s := range o.Signatures {
		if s.SignedBy == userID {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the operation reached a final status.
func (o *Operation) IsTerminal() bool {
	return TerminalOperationStatuses[o.Status]
}
