package fraud

import (
	"time"

	"github.com/shopspring/decimal"
)

// Thresholds on the computed score.
const (
	SuspiciousThreshold  = 50
	ForceReviewThreshold = 70
	MaxScore             = 100
)

// SellerHistory is the slice of the seller's verification record the scorer
// needs. It is read once at listing-creation time; the resulting score is an
// immutable snapshot and is never recomputed retroactively.
type SellerHistory struct {
	TotalSales int
	// DisputeRate is the share of sales that ended disputed, in [0,1].
	// Ignored for sellers with no sales.
	DisputeRate float64
	Strikes     int
	TrustScore  int
	// ActiveListingsSameEvent counts the seller's other active listings
	// for the same event name.
	ActiveListingsSameEvent int
}

// ListingInput captures the listing attributes that feed the score.
type ListingInput struct {
	OriginalPrice  decimal.Decimal
	AskingPrice    decimal.Decimal
	HasProof       bool
	TransferMethod string
	EventDate      time.Time
}

// Result is the scoring outcome.
type Result struct {
	Score        int
	IsSuspicious bool
}

var half = decimal.RequireFromString("0.5")

// Score computes the deterministic weighted risk score, capped at 100.
// now is explicit so the timing signals are testable.
func Score(seller SellerHistory, listing ListingInput, now time.Time) Result {
	score := 0

	// Seller history signals.
	if seller.TotalSales == 0 {
		score += 15
	} else if seller.DisputeRate > 0.10 {
		score += 25
	} else if seller.DisputeRate > 0.05 {
		score += 10
	}
	score += seller.Strikes * 15
	if seller.TrustScore < 30 {
		score += 20
	}

	// Listing attribute signals.
	if listing.OriginalPrice.IsPositive() &&
		listing.AskingPrice.LessThan(listing.OriginalPrice.Mul(half)) {
		score += 20
	}
	if !listing.HasProof {
		score += 15
	}
	if listing.TransferMethod == "physical_handover" {
		score += 10
	}

	// Timing signals.
	if listing.EventDate.Sub(now) < 24*time.Hour {
		score += 10
	}
	if seller.ActiveListingsSameEvent > 3 {
		score += 15
	}

	if score > MaxScore {
		score = MaxScore
	}

	return Result{
		Score:        score,
		IsSuspicious: score >= SuspiciousThreshold,
	}
}
