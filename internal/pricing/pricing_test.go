package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCalculate_TwoTicketsAtFifty(t *testing.T) {
	b := Calculate(DefaultSchedule(), decimal.NewFromInt(50), 2)

	assert.True(t, b.Subtotal.Equal(decimal.NewFromInt(100)), "subtotal = %s", b.Subtotal)
	assert.True(t, b.PlatformFee.Equal(decimal.NewFromInt(10)), "platform fee = %s", b.PlatformFee)
	assert.True(t, b.BuyerProtectionFee.Equal(decimal.RequireFromString("2.5")), "protection fee = %s", b.BuyerProtectionFee)
	assert.True(t, b.Total.Equal(decimal.RequireFromString("112.5")), "total = %s", b.Total)
	assert.True(t, b.SellerReceives.Equal(decimal.NewFromInt(90)), "seller receives = %s", b.SellerReceives)
}

func TestCalculate_FeeIdentitiesHoldExactly(t *testing.T) {
	prices := []string{"0.01", "1", "19.99", "33.33", "49.95", "120.17", "9999.99"}
	for _, p := range prices {
		for qty := 1; qty <= 4; qty++ {
			b := Calculate(DefaultSchedule(), decimal.RequireFromString(p), qty)

			assert.True(t, b.SellerReceives.Add(b.PlatformFee).Equal(b.Subtotal),
				"seller+fee != subtotal for price %s qty %d", p, qty)
			assert.True(t, b.Subtotal.Add(b.PlatformFee).Add(b.BuyerProtectionFee).Equal(b.Total),
				"component sum != total for price %s qty %d", p, qty)
		}
	}
}

func TestCalculate_RoundsHalfUp(t *testing.T) {
	// 10.05 * 2.5% = 0.251250 -> 0.25; 10.20 * 2.5% = 0.255 -> 0.26
	b := Calculate(DefaultSchedule(), decimal.RequireFromString("10.05"), 1)
	assert.True(t, b.BuyerProtectionFee.Equal(decimal.RequireFromString("0.25")), "got %s", b.BuyerProtectionFee)

	b = Calculate(DefaultSchedule(), decimal.RequireFromString("10.20"), 1)
	assert.True(t, b.BuyerProtectionFee.Equal(decimal.RequireFromString("0.26")), "got %s", b.BuyerProtectionFee)
}

func TestNewSchedule_ParsesConfigStrings(t *testing.T) {
	s, err := NewSchedule("10", "2.5")
	assert.NoError(t, err)
	assert.True(t, s.PlatformFeePercent.Equal(decimal.NewFromInt(10)))
	assert.True(t, s.BuyerProtectionFeePercent.Equal(decimal.RequireFromString("2.5")))

	_, err = NewSchedule("ten", "2.5")
	assert.Error(t, err)
}
