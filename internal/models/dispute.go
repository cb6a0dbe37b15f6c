package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Dispute holds one open disagreement between the parties of an order.
// At most one non-closed dispute may exist per order.
type Dispute struct {
	ID       uuid.UUID `db:"id" json:"id"`
	OrderID  uuid.UUID `db:"order_id" json:"order_id"`
	OpenerID uuid.UUID `db:"opener_id" json:"opener_id"`
	BuyerID  uuid.UUID `db:"buyer_id" json:"buyer_id"`
	SellerID uuid.UUID `db:"seller_id" json:"seller_id"`
	Reason   string    `db:"reason" json:"reason"`
	Status   string    `db:"status" json:"status"`

	BuyerStatement    *string        `db:"buyer_statement" json:"buyer_statement,omitempty"`
	BuyerEvidence     pq.StringArray `db:"buyer_evidence" json:"buyer_evidence"`
	BuyerSubmittedAt  *time.Time     `db:"buyer_submitted_at" json:"buyer_submitted_at,omitempty"`
	SellerStatement   *string        `db:"seller_statement" json:"seller_statement,omitempty"`
	SellerEvidence    pq.StringArray `db:"seller_evidence" json:"seller_evidence"`
	SellerSubmittedAt *time.Time     `db:"seller_submitted_at" json:"seller_submitted_at,omitempty"`

	ResponseDeadline time.Time        `db:"response_deadline" json:"response_deadline"`
	Settlement       *string          `db:"settlement" json:"settlement,omitempty"`
	RefundAmount     *decimal.Decimal `db:"refund_amount" json:"refund_amount,omitempty"`
	ReleaseAmount    *decimal.Decimal `db:"release_amount" json:"release_amount,omitempty"`
	ResolvedBy       *uuid.UUID       `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt       *time.Time       `db:"resolved_at" json:"resolved_at,omitempty"`
	ClosedAt         *time.Time       `db:"closed_at" json:"closed_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Resolved reports whether the dispute has reached any resolved or closed state.
func (d *Dispute) Resolved() bool {
	switch d.Status {
	case DisputeStatusResolvedBuyerFavor, DisputeStatusResolvedSellerFavor,
		DisputeStatusResolvedPartial, DisputeStatusClosed:
		return true
	}
	return false
}

// FraudLogEntry is an append-only fraud-investigation record against a seller.
type FraudLogEntry struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	SellerID  uuid.UUID  `db:"seller_id" json:"seller_id"`
	ListingID *uuid.UUID `db:"listing_id" json:"listing_id,omitempty"`
	OrderID   *uuid.UUID `db:"order_id" json:"order_id,omitempty"`
	DisputeID *uuid.UUID `db:"dispute_id" json:"dispute_id,omitempty"`
	Reason    string     `db:"reason" json:"reason"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
