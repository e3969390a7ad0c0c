package auth

import (
	"errors"

	"github.com/bizshop/storefront/internal/domain/account"
	"github.com/bizshop/storefront/internal/domain/order"
)

var ErrForbidden = errors.New("auth: forbidden")

// Identity is the authenticated requester as resolved from the bearer token.
type Identity struct {
	AccountID string
	Email     string
	Role      account.Role
	StoreID   string
}

// Authorize answers the single ownership question scattered through the
// original handlers: admins see everything, everyone else only their own
// resources.
func Authorize(role account.Role, resourceOwnerID, requesterID string) bool {
	if role == account.RoleAdmin {
		return true
	}
	return resourceOwnerID != "" && resourceOwnerID == requesterID
}

// CanViewOrder allows the placing customer, the owning merchant, or an admin.
func CanViewOrder(id Identity, o *order.Order) bool {
	if Authorize(id.Role, o.CustomerID, id.AccountID) {
		return true
	}
	return id.Role == account.RoleMerchant && id.StoreID != "" && id.StoreID == o.StoreID
}

// RequireMerchant guards merchant-only operations.
func RequireMerchant(id Identity) error {
	if id.Role != account.RoleMerchant || id.StoreID == "" {
		return ErrForbidden
	}
	return nil
}
