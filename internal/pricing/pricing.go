package pricing

import (
	"github.com/shopspring/decimal"
)

// Schedule is the fee schedule in effect at order-creation time. Breakdowns
// computed from it are frozen into the order row, so later schedule changes
// never touch existing orders.
type Schedule struct {
	PlatformFeePercent        decimal.Decimal
	BuyerProtectionFeePercent decimal.Decimal
}

// DefaultSchedule returns the standard fee schedule: 10% platform fee,
// 2.5% buyer protection fee.
func DefaultSchedule() Schedule {
	return Schedule{
		PlatformFeePercent:        decimal.NewFromInt(10),
		BuyerProtectionFeePercent: decimal.RequireFromString("2.5"),
	}
}

// NewSchedule parses percent strings from configuration.
func NewSchedule(platformFeePercent, buyerProtectionFeePercent string) (Schedule, error) {
	platform, err := decimal.NewFromString(platformFeePercent)
	if err != nil {
		return Schedule{}, err
	}
	protection, err := decimal.NewFromString(buyerProtectionFeePercent)
	if err != nil {
		return Schedule{}, err
	}
	return Schedule{PlatformFeePercent: platform, BuyerProtectionFeePercent: protection}, nil
}

// Breakdown is the complete price decomposition of one order.
//
// Invariants: SellerReceives + PlatformFee == Subtotal and
// Total == Subtotal + PlatformFee + BuyerProtectionFee, exactly.
type Breakdown struct {
	Subtotal           decimal.Decimal `json:"subtotal"`
	PlatformFee        decimal.Decimal `json:"platform_fee"`
	BuyerProtectionFee decimal.Decimal `json:"buyer_protection_fee"`
	Total              decimal.Decimal `json:"total"`
	SellerReceives     decimal.Decimal `json:"seller_receives"`
}

var oneHundred = decimal.NewFromInt(100)

// Calculate computes the breakdown for unitPrice × quantity. All amounts
// are rounded to two decimal places, half up. The buyer protection fee is
// not shared with the seller.
func Calculate(s Schedule, unitPrice decimal.Decimal, quantity int) Breakdown {
	subtotal := round2(unitPrice.Mul(decimal.NewFromInt(int64(quantity))))
	platformFee := round2(subtotal.Mul(s.PlatformFeePercent).Div(oneHundred))
	protectionFee := round2(subtotal.Mul(s.BuyerProtectionFeePercent).Div(oneHundred))

	return Breakdown{
		Subtotal:           subtotal,
		PlatformFee:        platformFee,
		BuyerProtectionFee: protectionFee,
		Total:              subtotal.Add(platformFee).Add(protectionFee),
		SellerReceives:     subtotal.Sub(platformFee),
	}
}

// round2 rounds to two decimal places, half up.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
