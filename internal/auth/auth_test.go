package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizshop/storefront/internal/domain/account"
	"github.com/bizshop/storefront/internal/domain/order"
)

func TestAuthorize(t *testing.T) {
	assert.True(t, Authorize(account.RoleAdmin, "someone", "else"))
	assert.True(t, Authorize(account.RoleCustomer, "a1", "a1"))
	assert.False(t, Authorize(account.RoleCustomer, "a1", "a2"))
	assert.False(t, Authorize(account.RoleCustomer, "", ""))
}

func TestCanViewOrder(t *testing.T) {
	o := &order.Order{ID: "o1", CustomerID: "c1", StoreID: "s1"}

	assert.True(t, CanViewOrder(Identity{AccountID: "c1", Role: account.RoleCustomer}, o))
	assert.False(t, CanViewOrder(Identity{AccountID: "c2", Role: account.RoleCustomer}, o))
	assert.True(t, CanViewOrder(Identity{AccountID: "m1", Role: account.RoleMerchant, StoreID: "s1"}, o))
	assert.False(t, CanViewOrder(Identity{AccountID: "m2", Role: account.RoleMerchant, StoreID: "s2"}, o))
	assert.True(t, CanViewOrder(Identity{AccountID: "root", Role: account.RoleAdmin}, o))
}

func TestRequireMerchant(t *testing.T) {
	assert.NoError(t, RequireMerchant(Identity{Role: account.RoleMerchant, StoreID: "s1"}))
	assert.ErrorIs(t, RequireMerchant(Identity{Role: account.RoleCustomer}), ErrForbidden)
	// A merchant without a store cannot act on store resources.
	assert.ErrorIs(t, RequireMerchant(Identity{Role: account.RoleMerchant}), ErrForbidden)
}

func TestTokenRoundTrip(t *testing.T) {
	mgr := NewTokenManager("secret", time.Hour)

	id := Identity{
		AccountID: "a1",
		Email:     "a1@example.com",
		Role:      account.RoleMerchant,
		StoreID:   "s1",
	}
	token, err := mgr.Issue(id)
	require.NoError(t, err)

	got, err := mgr.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestVerify_RejectsForeignSecret(t *testing.T) {
	issuer := NewTokenManager("secret-a", time.Hour)
	verifier := NewTokenManager("secret-b", time.Hour)

	token, err := issuer.Issue(Identity{AccountID: "a1"})
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_RejectsGarbage(t *testing.T) {
	mgr := NewTokenManager("secret", time.Hour)

	_, err := mgr.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_RejectsExpired(t *testing.T) {
	mgr := NewTokenManager("secret", time.Hour)
	token, err := mgr.Issue(Identity{AccountID: "a1"})
	require.NoError(t, err)

	// Same secret, but the exp claim is in the past.
	expired := &TokenManager{secret: []byte("secret"), ttl: -time.Hour}
	expiredToken, err := expired.Issue(Identity{AccountID: "a1"})
	require.NoError(t, err)

	_, err = mgr.Verify(expiredToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = mgr.Verify(token)
	assert.NoError(t, err)
}
