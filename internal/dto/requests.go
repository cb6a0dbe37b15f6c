package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateListingRequest is the seller's listing submission.
type CreateListingRequest struct {
	EventName      string          `json:"event_name" binding:"required"`
	EventVenue     string          `json:"event_venue"`
	EventCity      string          `json:"event_city" binding:"required"`
	EventDate      time.Time       `json:"event_date" binding:"required"`
	TicketType     string          `json:"ticket_type"`
	Quantity       int             `json:"quantity" binding:"required"`
	TicketSource   string          `json:"ticket_source"`
	TransferMethod string          `json:"transfer_method" binding:"required"`
	OriginalPrice  decimal.Decimal `json:"original_price" binding:"required"`
	AskingPrice    decimal.Decimal `json:"asking_price" binding:"required"`
	ProofURL       *string         `json:"proof_url"`
}

// UpdateListingRequest carries a partial edit; nil fields are untouched.
type UpdateListingRequest struct {
	EventName   *string          `json:"event_name"`
	EventVenue  *string          `json:"event_venue"`
	EventCity   *string          `json:"event_city"`
	TicketType  *string          `json:"ticket_type"`
	Quantity    *int             `json:"quantity"`
	AskingPrice *decimal.Decimal `json:"asking_price"`
	ProofURL    *string          `json:"proof_url"`
}

// PurchaseRequest starts checkout on a listing. The URLs are where the
// provider sends the buyer back after checkout.
type PurchaseRequest struct {
	ListingID  string `json:"listing_id" binding:"required,uuid"`
	Quantity   int    `json:"quantity" binding:"required"`
	SuccessURL string `json:"success_url" binding:"omitempty,url"`
	CancelURL  string `json:"cancel_url" binding:"omitempty,url"`
}

// SubmitProofRequest is the seller's handover evidence.
type SubmitProofRequest struct {
	ProofURLs     []string `json:"proof_urls" binding:"required"`
	ReferenceCode *string  `json:"reference_code"`
}

// ConfirmReceiptRequest is the buyer accepting the tickets.
type ConfirmReceiptRequest struct {
	ProofURLs []string `json:"proof_urls"`
}

// ReportIssueRequest is the buyer rejecting the handover.
type ReportIssueRequest struct {
	Reason    string   `json:"reason" binding:"required"`
	Statement string   `json:"statement" binding:"required"`
	Evidence  []string `json:"evidence"`
}

// OpenDisputeRequest opens a dispute on an order.
type OpenDisputeRequest struct {
	OrderID   string   `json:"order_id" binding:"required,uuid"`
	Reason    string   `json:"reason" binding:"required"`
	Statement string   `json:"statement" binding:"required"`
	Evidence  []string `json:"evidence"`
}

// DisputeResponseRequest is the counterparty's statement.
type DisputeResponseRequest struct {
	Statement string   `json:"statement" binding:"required"`
	Evidence  []string `json:"evidence"`
}

// AddEvidenceRequest appends evidence links to the caller's side.
type AddEvidenceRequest struct {
	Evidence []string `json:"evidence" binding:"required"`
}

// ResolveDisputeRequest is the admin verdict.
type ResolveDisputeRequest struct {
	Settlement    string           `json:"settlement" binding:"required"`
	RefundAmount  *decimal.Decimal `json:"refund_amount"`
	ReleaseAmount *decimal.Decimal `json:"release_amount"`
}

// CompleteVerificationStepRequest marks one seller verification step done.
type CompleteVerificationStepRequest struct {
	Step string `json:"step" binding:"required"`
}
