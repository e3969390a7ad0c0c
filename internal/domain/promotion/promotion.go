package promotion

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnavailable means the offer is inactive or all slots are claimed.
	ErrUnavailable = errors.New("promotion: offer is not available")
	ErrNotFound    = errors.New("promotion: config not found")
)

type RewardKind string

const (
	RewardFreeGrant        RewardKind = "FreeGrant"
	RewardDiscountedCharge RewardKind = "DiscountedCharge"
)

// Config is the singleton promotional offer. There is exactly one well-known
// record; claims are bounded by MaxUsers.
type Config struct {
	MaxUsers         int
	UsersClaimed     int
	Active           bool
	Reward           RewardKind
	DiscountedAmount decimal.Decimal
	DurationDays     int
	UpdatedAt        time.Time
}

// DefaultConfig matches the values the offer launches with when no config has
// been stored yet.
func DefaultConfig() *Config {
	return &Config{
		MaxUsers:     100,
		UsersClaimed: 0,
		Active:       true,
		Reward:       RewardFreeGrant,
		DurationDays: 30,
	}
}

func (c *Config) AvailableSlots() int {
	if !c.Active {
		return 0
	}
	if n := c.MaxUsers - c.UsersClaimed; n > 0 {
		return n
	}
	return 0
}

func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// Status is the public view of the offer.
type Status struct {
	Active           bool
	Available        bool
	MaxUsers         int
	UsersClaimed     int
	AvailableSlots   int
	Reward           RewardKind
	DiscountedAmount decimal.Decimal
	DurationDays     int
}

func (c *Config) Status() Status {
	slots := c.AvailableSlots()
	return Status{
		Active:           c.Active,
		Available:        slots > 0,
		MaxUsers:         c.MaxUsers,
		UsersClaimed:     c.UsersClaimed,
		AvailableSlots:   slots,
		Reward:           c.Reward,
		DiscountedAmount: c.DiscountedAmount,
		DurationDays:     c.DurationDays,
	}
}
