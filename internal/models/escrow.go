package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Escrow is the canonical ledger of money movement for one order.
type Escrow struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	OrderID      uuid.UUID       `db:"order_id" json:"order_id"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	PlatformFee  decimal.Decimal `db:"platform_fee" json:"platform_fee"`
	SellerAmount decimal.Decimal `db:"seller_amount" json:"seller_amount"`
	Status       string          `db:"status" json:"status"`
	// RefundAmount and ReleaseAmount are only set for split settlements.
	RefundAmount    *decimal.Decimal `db:"refund_amount" json:"refund_amount,omitempty"`
	ReleaseAmount   *decimal.Decimal `db:"release_amount" json:"release_amount,omitempty"`
	FundsReleasedAt *time.Time       `db:"funds_released_at" json:"funds_released_at,omitempty"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}

// EscrowEvent is one append-only audit entry on an escrow.
type EscrowEvent struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	EscrowID  uuid.UUID       `db:"escrow_id" json:"escrow_id"`
	Name      string          `db:"name" json:"name"`
	Payload   json.RawMessage `db:"payload" json:"payload,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
