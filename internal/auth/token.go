package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bizshop/storefront/internal/domain/account"
)

var ErrInvalidToken = errors.New("auth: invalid token")

// TokenManager signs and verifies the bearer tokens the identity service
// issues. Only verification is needed by this core; signing exists for tests
// and local setups.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

func (m *TokenManager) Issue(id Identity) (string, error) {
	claims := jwt.MapClaims{
		"sub":      id.AccountID,
		"email":    id.Email,
		"role":     string(id.Role),
		"store_id": id.StoreID,
		"exp":      time.Now().Add(m.ttl).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(m.secret)
}

func (m *TokenManager) Verify(token string) (Identity, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Identity{}, ErrInvalidToken
	}
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	storeID, _ := claims["store_id"].(string)
	return Identity{
		AccountID: sub,
		Email:     email,
		Role:      account.Role(role),
		StoreID:   storeID,
	}, nil
}
