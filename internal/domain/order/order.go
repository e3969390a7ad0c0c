package order

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound             = errors.New("order: not found")
	ErrEmptyCart            = errors.New("order: no order items provided")
	ErrIncompleteAddress    = errors.New("order: shipping address details are incomplete")
	ErrInvalidPaymentMethod = errors.New("order: invalid payment method")
	ErrInvalidQuantity      = errors.New("order: each item needs a positive quantity")
	ErrCrossStore           = errors.New("order: all products in one order must belong to the same store")
	ErrInvalidStatus        = errors.New("order: invalid order status")
	ErrConflict             = errors.New("order: conflict")
)

type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "CashOnDelivery"
	PaymentGateway        PaymentMethod = "GatewayPayment"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(s) {
	case PaymentCashOnDelivery, PaymentGateway:
		return PaymentMethod(s), nil
	}
	return "", ErrInvalidPaymentMethod
}

type Status string

const (
	StatusPending    Status = "Pending"
	StatusProcessing Status = "Processing"
	StatusShipped    Status = "Shipped"
	StatusDelivered  Status = "Delivered"
	StatusCancelled  Status = "Cancelled"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return Status(s), nil
	}
	return "", ErrInvalidStatus
}

// LineItem is an immutable snapshot of the product at order time. Name and
// price must not follow later product edits.
type LineItem struct {
	ProductID string
	Name      string
	Price     decimal.Decimal
	Quantity  int
}

type ShippingAddress struct {
	Address    string
	City       string
	PostalCode string
	Country    string
}

func (a ShippingAddress) Complete() bool {
	return a.Address != "" && a.City != "" && a.PostalCode != "" && a.Country != ""
}

// PaymentResult records the gateway's view of a settled payment.
type PaymentResult struct {
	ID     string
	Status string
}

type Order struct {
	ID              string
	CustomerID      string
	StoreID         string
	Items           []LineItem
	ShippingAddress ShippingAddress
	PaymentMethod   PaymentMethod

	ItemsPrice    decimal.Decimal
	TaxPrice      decimal.Decimal
	ShippingPrice decimal.Decimal
	TotalPrice    decimal.Decimal

	Status        Status
	PaymentResult *PaymentResult

	IsPaid      bool
	PaidAt      *time.Time
	IsDelivered bool
	DeliveredAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// MarkPaid flips the paid flag. The flag only ever transitions false to true;
// repeated calls keep the original timestamp.
func (o *Order) MarkPaid(at time.Time) {
	if o.IsPaid {
		return
	}
	o.IsPaid = true
	if o.PaidAt == nil {
		t := at
		o.PaidAt = &t
	}
	o.touch()
}

// MarkDelivered sets the delivery flags if not already delivered.
func (o *Order) MarkDelivered(at time.Time) {
	if o.IsDelivered {
		return
	}
	o.IsDelivered = true
	t := at
	o.DeliveredAt = &t
	o.touch()
}

func (o *Order) SetStatus(s Status, now time.Time) {
	o.Status = s
	if s == StatusDelivered {
		o.MarkDelivered(now)
	}
	o.touch()
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Items = append([]LineItem(nil), o.Items...)
	if o.PaymentResult != nil {
		pr := *o.PaymentResult
		clone.PaymentResult = &pr
	}
	if o.PaidAt != nil {
		t := *o.PaidAt
		clone.PaidAt = &t
	}
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		clone.DeliveredAt = &t
	}
	return &clone
}
