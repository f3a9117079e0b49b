// Package permission is the pure authorization predicate consulted before
// every state-changing call. It depends only on the resolved actor and the
// targeted resource, never on storage.
package permission

import "voucly/internal/models"

// Actor is the acting identity as resolved from the request claims.
type Actor struct {
	UserID     uint
	Role       string
	MerchantID *uint
}

// ActorFromClaims converts validated JWT claims into an Actor.
func ActorFromClaims(claims *models.UserClaims) Actor {
	return Actor{
		UserID:     claims.UserID,
		Role:       claims.Role,
		MerchantID: claims.MerchantID,
	}
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }

// CanManageOperations reports whether the actor may create, sign, reject or
// execute multi-signature operations. Only admins take part in the quorum.
func CanManageOperations(a Actor) bool {
	return a.IsAdmin()
}

// CanReviewTransfer reports whether the actor may approve or reject a
// transfer of a voucher issued by issuingMerchantID. Admins always may;
// a merchant only for their own vouchers.
func CanReviewTransfer(a Actor, issuingMerchantID uint) bool {
	if a.IsAdmin() {
		return true
	}
	return a.Role == models.RoleMerchant && a.MerchantID != nil && *a.MerchantID == issuingMerchantID
}

// CanIssueVouchers reports whether the actor may create vouchers for
// merchantID.
func CanIssueVouchers(a Actor, merchantID uint) bool {
	if a.IsAdmin() {
		return true
	}
	return a.Role == models.RoleMerchant && a.MerchantID != nil && *a.MerchantID == merchantID
}
