package models

// ListingStatus values for the listing lifecycle.
const (
	ListingStatusPendingVerification = "pending_verification"
	ListingStatusActive              = "active"
	ListingStatusReserved            = "reserved"
	ListingStatusSold                = "sold"
	ListingStatusCancelled           = "cancelled"
	ListingStatusExpired             = "expired"
)

// OrderStatus values. Order status and escrow status move together.
const (
	OrderStatusPending     = "pending"
	OrderStatusConfirmed   = "confirmed"
	OrderStatusTransferred = "transferred"
	OrderStatusCompleted   = "completed"
	OrderStatusDisputed    = "disputed"
	OrderStatusCancelled   = "cancelled"
	OrderStatusRefunded    = "refunded"
)

// EscrowStatus values.
const (
	EscrowStatusPendingPayment           = "pending_payment"
	EscrowStatusHolding                  = "holding"
	EscrowStatusBuyerConfirmationPending = "buyer_confirmation_pending"
	EscrowStatusReleased                 = "released"
	EscrowStatusRefunded                 = "refunded"
	EscrowStatusCancelled                = "cancelled"
	EscrowStatusDisputed                 = "disputed"
)

// PaymentStatus values mirrored from the provider.
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusExpired  = "expired"
	PaymentStatusRefunded = "refunded"
)

// PayoutStatus values for the seller side of a released escrow.
const (
	PayoutStatusPending   = "pending"
	PayoutStatusCompleted = "completed"
)

// TransferStatus values for the seller-to-buyer handover sub-state.
const (
	TransferStatusPending        = "pending"
	TransferStatusProofSubmitted = "proof_submitted"
	TransferStatusConfirmed      = "confirmed"
)

// DisputeStatus values.
const (
	DisputeStatusOpen                = "open"
	DisputeStatusUnderReview         = "under_review"
	DisputeStatusResolvedBuyerFavor  = "resolved_buyer_favor"
	DisputeStatusResolvedSellerFavor = "resolved_seller_favor"
	DisputeStatusResolvedPartial     = "resolved_partial"
	DisputeStatusClosed              = "closed"
)

// DisputeReason is a closed enum.
const (
	DisputeReasonTicketNotReceived  = "ticket_not_received"
	DisputeReasonTicketInvalid      = "ticket_invalid"
	DisputeReasonWrongTicket        = "wrong_ticket"
	DisputeReasonEventCancelled     = "event_cancelled"
	DisputeReasonSellerUnresponsive = "seller_unresponsive"
	DisputeReasonBuyerUnresponsive  = "buyer_unresponsive"
	DisputeReasonOther              = "other"
)

// Settlement instructions an administrator can attach to a dispute resolution.
const (
	SettlementFullRefund      = "full_refund"
	SettlementReleaseToSeller = "release_to_seller"
	SettlementSplit           = "split"
)

// Ticket transfer methods.
const (
	TransferMethodMobile           = "mobile_transfer"
	TransferMethodEmail            = "email_transfer"
	TransferMethodPhysicalHandover = "physical_handover"
)

// ValidDisputeReasons is the allowed set for dispute creation.
var ValidDisputeReasons = map[string]struct{}{
	DisputeReasonTicketNotReceived:  {},
	DisputeReasonTicketInvalid:      {},
	DisputeReasonWrongTicket:        {},
	DisputeReasonEventCancelled:     {},
	DisputeReasonSellerUnresponsive: {},
	DisputeReasonBuyerUnresponsive:  {},
	DisputeReasonOther:              {},
}

// FraudReasonHighRiskListing marks a fraud-log entry written when a new
// listing's score forces it into manual review.
const FraudReasonHighRiskListing = "high_risk_listing"

// FraudFlaggedReasons are dispute reasons that also open a fraud
// investigation entry against the seller.
var FraudFlaggedReasons = map[string]struct{}{
	DisputeReasonTicketNotReceived: {},
	DisputeReasonTicketInvalid:     {},
	DisputeReasonWrongTicket:       {},
}

// ValidTransferMethods is the allowed set for listing creation.
var ValidTransferMethods = map[string]struct{}{
	TransferMethodMobile:           {},
	TransferMethodEmail:            {},
	TransferMethodPhysicalHandover: {},
}

// ValidSettlements is the allowed set for dispute resolution.
var ValidSettlements = map[string]struct{}{
	SettlementFullRefund:      {},
	SettlementReleaseToSeller: {},
	SettlementSplit:           {},
}
