package account

import (
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("account: not found")
	ErrAlreadyClaimed = errors.New("account: promotional quota already claimed")
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleMerchant Role = "merchant"
	RoleAdmin    Role = "admin"
)

type Tier string

const (
	TierFree        Tier = "Free"
	TierPromotional Tier = "Promotional"
	TierPaid        Tier = "Paid"
)

func ParseTier(s string) (Tier, bool) {
	switch Tier(s) {
	case TierFree, TierPromotional, TierPaid:
		return Tier(s), true
	}
	return "", false
}

// Account carries the subscription state this core owns. Credential fields
// live in the identity service.
type Account struct {
	ID        string
	Email     string
	Role      Role
	StoreID   string
	Tier      Tier
	ExpiresAt *time.Time
	QuotaUsed bool
	UpdatedAt time.Time
}

func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	if a.ExpiresAt != nil {
		t := *a.ExpiresAt
		clone.ExpiresAt = &t
	}
	return &clone
}
