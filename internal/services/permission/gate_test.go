package permission

import (
	"testing"

	"voucly/internal/models"

	"github.com/stretchr/testify/assert"
)

func uintPtr(v uint) *uint { return &v }

func TestCanManageOperations(t *testing.T) {
	assert.True(t, CanManageOperations(Actor{UserID: 1, Role: models.RoleAdmin}))
	assert.False(t, CanManageOperations(Actor{UserID: 2, Role: models.RoleMerchant, MerchantID: uintPtr(5)}))
	assert.False(t, CanManageOperations(Actor{UserID: 3, Role: models.RoleUser}))
}

func TestCanReviewTransfer(t *testing.T) {
	tests := []struct {
		name       string
		actor      Actor
		merchantID uint
		want       bool
	}{
		{"admin reviews any merchant", Actor{Role: models.RoleAdmin}, 5, true},
		{"merchant reviews own vouchers", Actor{Role: models.RoleMerchant, MerchantID: uintPtr(5)}, 5, true},
		{"merchant cannot review other merchants", Actor{Role: models.RoleMerchant, MerchantID: uintPtr(5)}, 6, false},
		{"merchant without linked id", Actor{Role: models.RoleMerchant}, 5, false},
		{"plain user", Actor{Role: models.RoleUser}, 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanReviewTransfer(tt.actor, tt.merchantID))
		})
	}
}

func TestCanIssueVouchers(t *testing.T) {
	assert.True(t, CanIssueVouchers(Actor{Role: models.RoleAdmin}, 9))
	assert.True(t, CanIssueVouchers(Actor{Role: models.RoleMerchant, MerchantID: uintPtr(9)}, 9))
	assert.False(t, CanIssueVouchers(Actor{Role: models.RoleMerchant, MerchantID: uintPtr(9)}, 8))
	assert.False(t, CanIssueVouchers(Actor{Role: models.RoleUser}, 9))
}

func TestActorFromClaims(t *testing.T) {
	claims := &models.UserClaims{UserID: 7, Role: models.RoleMerchant, MerchantID: uintPtr(3)}
	actor := ActorFromClaims(claims)

	assert.Equal(t, uint(7), actor.UserID)
	assert.Equal(t, models.RoleMerchant, actor.Role)
	assert.Equal(t, uint(3), *actor.MerchantID)
	assert.False(t, actor.IsAdmin())
}
