package models

// Permission constants
const (
	// Operation permissions
	PermissionOperationRead    = "operation:read"
	PermissionOperationCreate  = "operation:create"
	PermissionOperationSign    = "operation:sign"
	PermissionOperationExecute = "operation:execute"

	// Transfer permissions
	PermissionTransferRead   = "transfer:read"
	PermissionTransferCreate = "transfer:create"
	PermissionTransferReview = "transfer:review"

	// Voucher permissions
	PermissionVoucherRead  = "voucher:read"
	PermissionVoucherWrite = "voucher:write"

	// Admin permissions
	PermissionReadAdmin  = "admin:read"
	PermissionWriteAdmin = "admin:write"

	// User permissions
	PermissionChangePassword = "user:change-password"
)

// GetDefaultPermissions returns default permissions based on role
func GetDefaultPermissions(role string) []string {
	switch role {
	case RoleAdmin:
		return []string{
			PermissionReadAdmin,
			PermissionWriteAdmin,
			PermissionOperationRead,
			PermissionOperationCreate,
			PermissionOperationSign,
			PermissionOperationExecute,
			PermissionTransferRead,
			PermissionTransferCreate,
			PermissionTransferReview,
			PermissionVoucherRead,
			PermissionVoucherWrite,
			PermissionChangePassword,
		}
	case RoleMerchant:
		return []string{
			PermissionOperationRead,
			PermissionTransferRead,
			PermissionTransferCreate,
			PermissionTransferReview,
			PermissionVoucherRead,
			PermissionVoucherWrite,
			PermissionChangePassword,
		}
	case RoleUser:
		return []string{
			PermissionTransferRead,
			PermissionTransferCreate,
			PermissionVoucherRead,
			PermissionChangePassword,
		}
	default:
		return []string{}
	}
}
