package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// SellerVerification holds a seller's trust record and the listing limits
// derived from it.
type SellerVerification struct {
	ID       uuid.UUID `db:"id" json:"id"`
	SellerID uuid.UUID `db:"seller_id" json:"seller_id"`

	TrustScore int            `db:"trust_score" json:"trust_score"`
	Badges     pq.StringArray `db:"badges" json:"badges"`

	PhoneVerified    bool `db:"phone_verified" json:"phone_verified"`
	SocialVerified   bool `db:"social_verified" json:"social_verified"`
	IDVerified       bool `db:"id_verified" json:"id_verified"`
	PaymentConnected bool `db:"payment_connected" json:"payment_connected"`

	TotalSales      int `db:"total_sales" json:"total_sales"`
	SuccessfulSales int `db:"successful_sales" json:"successful_sales"`
	DisputedSales   int `db:"disputed_sales" json:"disputed_sales"`
	Strikes         int `db:"strikes" json:"strikes"`

	MaxActiveListings int             `db:"max_active_listings" json:"max_active_listings"`
	MaxTicketValue    decimal.Decimal `db:"max_ticket_value" json:"max_ticket_value"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DisputeRate is the share of sales that ended disputed, in [0,1].
func (v *SellerVerification) DisputeRate() float64 {
	if v.TotalSales == 0 {
		return 0
	}
	return float64(v.DisputedSales) / float64(v.TotalSales)
}
