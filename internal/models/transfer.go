package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Transfer tracks the seller-to-buyer handover for one order.
//
// ConfirmationDeadline is only set once proof has been submitted and is
// always at or after TransferDeadline.
type Transfer struct {
	ID      uuid.UUID `db:"id" json:"id"`
	OrderID uuid.UUID `db:"order_id" json:"order_id"`
	Status  string    `db:"status" json:"status"`

	SellerProofURLs  pq.StringArray `db:"seller_proof_urls" json:"seller_proof_urls"`
	ReferenceCode    *string        `db:"reference_code" json:"reference_code,omitempty"`
	ProofSubmittedAt *time.Time     `db:"proof_submitted_at" json:"proof_submitted_at,omitempty"`

	BuyerProofURLs pq.StringArray `db:"buyer_proof_urls" json:"buyer_proof_urls"`
	ConfirmedAt    *time.Time     `db:"confirmed_at" json:"confirmed_at,omitempty"`

	TransferDeadline     *time.Time `db:"transfer_deadline" json:"transfer_deadline,omitempty"`
	ConfirmationDeadline *time.Time `db:"confirmation_deadline" json:"confirmation_deadline,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
