package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order is a buyer's purchase of a listing. The price breakdown is a
// snapshot frozen at creation time and never recomputed.
type Order struct {
	ID        uuid.UUID `db:"id" json:"id"`
	ListingID uuid.UUID `db:"listing_id" json:"listing_id"`
	BuyerID   uuid.UUID `db:"buyer_id" json:"buyer_id"`
	SellerID  uuid.UUID `db:"seller_id" json:"seller_id"`
	Quantity  int       `db:"quantity" json:"quantity"`

	Subtotal           decimal.Decimal `db:"subtotal" json:"subtotal"`
	PlatformFee        decimal.Decimal `db:"platform_fee" json:"platform_fee"`
	BuyerProtectionFee decimal.Decimal `db:"buyer_protection_fee" json:"buyer_protection_fee"`
	Total              decimal.Decimal `db:"total" json:"total"`
	SellerReceives     decimal.Decimal `db:"seller_receives" json:"seller_receives"`

	Status             string  `db:"status" json:"status"`
	EscrowStatus       string  `db:"escrow_status" json:"escrow_status"`
	PaymentStatus      string  `db:"payment_status" json:"payment_status"`
	SellerPayoutStatus string  `db:"seller_payout_status" json:"seller_payout_status"`
	PaymentRef         *string `db:"payment_ref" json:"payment_ref,omitempty"`

	// CheckoutExpiresAt bounds the provisional listing reservation.
	CheckoutExpiresAt time.Time `db:"checkout_expires_at" json:"checkout_expires_at"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Terminal reports whether the order has reached a final state.
func (o *Order) Terminal() bool {
	switch o.Status {
	case OrderStatusCompleted, OrderStatusRefunded, OrderStatusCancelled:
		return true
	}
	return false
}

// PartyRole names which side of an order a user is on. Resolved once per
// request and then used to pick the mutation target.
type PartyRole struct {
	IsBuyer  bool
	IsSeller bool
}

// RoleOf resolves the role of userID on the order.
func (o *Order) RoleOf(userID uuid.UUID) PartyRole {
	return PartyRole{
		IsBuyer:  o.BuyerID == userID,
		IsSeller: o.SellerID == userID,
	}
}

// Participant reports whether userID is a party to the order.
func (r PartyRole) Participant() bool {
	return r.IsBuyer || r.IsSeller
}
