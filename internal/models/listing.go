package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Listing is a secondhand ticket put up for resale.
type Listing struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	SellerID       uuid.UUID       `db:"seller_id" json:"seller_id"`
	EventName      string          `db:"event_name" json:"event_name"`
	EventVenue     string          `db:"event_venue" json:"event_venue"`
	EventCity      string          `db:"event_city" json:"event_city"`
	EventDate      time.Time       `db:"event_date" json:"event_date"`
	TicketType     string          `db:"ticket_type" json:"ticket_type"`
	Quantity       int             `db:"quantity" json:"quantity"`
	TicketSource   string          `db:"ticket_source" json:"ticket_source"`
	TransferMethod string          `db:"transfer_method" json:"transfer_method"`
	OriginalPrice  decimal.Decimal `db:"original_price" json:"original_price"`
	AskingPrice    decimal.Decimal `db:"asking_price" json:"asking_price"`
	ProofURL       *string         `db:"proof_url" json:"proof_url,omitempty"`
	FraudScore     int             `db:"fraud_score" json:"fraud_score"`
	IsSuspicious   bool            `db:"is_suspicious" json:"is_suspicious"`
	Status         string          `db:"status" json:"status"`
	// ExpiresAt is derived at creation: event time minus two hours.
	ExpiresAt  time.Time  `db:"expires_at" json:"expires_at"`
	ViewCount  int        `db:"view_count" json:"view_count"`
	VerifiedAt *time.Time `db:"verified_at" json:"verified_at,omitempty"`
	SoldAt     *time.Time `db:"sold_at" json:"sold_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// Editable reports whether seller edits are still allowed.
func (l *Listing) Editable() bool {
	switch l.Status {
	case ListingStatusSold, ListingStatusReserved, ListingStatusExpired:
		return false
	}
	return true
}

// PriceHistoryEntry is an append-only record of a price change on a listing.
type PriceHistoryEntry struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	ListingID uuid.UUID       `db:"listing_id" json:"listing_id"`
	OldPrice  decimal.Decimal `db:"old_price" json:"old_price"`
	NewPrice  decimal.Decimal `db:"new_price" json:"new_price"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
