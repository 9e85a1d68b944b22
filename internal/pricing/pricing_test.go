package pricing

import (
	"testing"
	"time"

	"github.com/framevist/framevist/internal/catalog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "expected %s, got %s", want, got)
}

func TestComputeSummaryEmpty(t *testing.T) {
	s := ComputeSummary(nil)
	assertDec(t, "0", s.Subtotal)
	assertDec(t, "0", s.Taxes)
	assertDec(t, "0", s.Total)
	assert.Equal(t, 0, s.Count)
}

func TestComputeSummarySingleCapsule(t *testing.T) {
	items := []catalog.LineItem{{ID: "cap_0001", Price: dec("50"), Quantity: 2}}

	s := ComputeSummary(items)

	assertDec(t, "100", s.Subtotal)
	assertDec(t, "8.25", s.Taxes)
	assertDec(t, "108.25", s.Total)
	assertDec(t, "0", s.Discount)
	assert.Equal(t, 2, s.Count)
}

func TestComputeSummaryMixedItems(t *testing.T) {
	items := []catalog.LineItem{
		{ID: "a", Price: dec("19.99"), Quantity: 3},
		{ID: "b", Price: dec("0"), Quantity: 1},
		{ID: "c", Price: dec("4.50"), Quantity: 2},
	}

	s := ComputeSummary(items)

	assertDec(t, "68.97", s.Subtotal)
	assertDec(t, "5.690025", s.Taxes)
	assert.Equal(t, 6, s.Count)
	assertDec(t, "5.69", s.Rounded().Taxes)
}

func TestCalculateDiscountAmount(t *testing.T) {
	tests := []struct {
		name     string
		promo    *catalog.PromoCode
		subtotal string
		want     string
	}{
		{"nil promo", nil, "100", "0"},
		{"zero subtotal", &catalog.PromoCode{Type: catalog.PromoFlat, Value: dec("5")}, "0", "0"},
		{"ten percent", &catalog.PromoCode{Type: catalog.PromoPercentage, Value: dec("10")}, "100", "10"},
		{"percent capped", &catalog.PromoCode{Type: catalog.PromoPercentage, Value: dec("50"), MaxDiscount: decPtr("15")}, "100", "15"},
		{"flat within subtotal", &catalog.PromoCode{Type: catalog.PromoFlat, Value: dec("12.50")}, "40", "12.50"},
		{"flat above subtotal", &catalog.PromoCode{Type: catalog.PromoFlat, Value: dec("80")}, "30", "30"},
		{"zero cap ignored", &catalog.PromoCode{Type: catalog.PromoFlat, Value: dec("8"), MaxDiscount: decPtr("0")}, "30", "8"},
		{"cap above subtotal", &catalog.PromoCode{Type: catalog.PromoFlat, Value: dec("80"), MaxDiscount: decPtr("500")}, "30", "30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertDec(t, tt.want, CalculateDiscountAmount(tt.promo, dec(tt.subtotal)))
		})
	}
}

func TestCalculateDiscountNeverExceedsCap(t *testing.T) {
	promo := &catalog.PromoCode{Type: catalog.PromoPercentage, Value: dec("40"), MaxDiscount: decPtr("25")}
	for _, subtotal := range []string{"1", "62.5", "63", "1000", "999999.99"} {
		got := CalculateDiscountAmount(promo, dec(subtotal))
		assert.Truef(t, got.LessThanOrEqual(dec("25")), "subtotal %s: discount %s exceeds cap", subtotal, got)
		assert.False(t, got.IsNegative())
	}
}

func TestValidatePromoCodeNormalizesLookup(t *testing.T) {
	pool := []catalog.PromoCode{{Code: "SAVE10", Type: catalog.PromoPercentage, Value: dec("10")}}

	res := ValidatePromoCode(" save10 ", dec("100"), pool, Context{})

	require.True(t, res.Valid)
	assert.Empty(t, res.Reason)
	require.NotNil(t, res.Promo)
	assert.Equal(t, "SAVE10", res.Promo.Code)
	assertDec(t, "10", res.Discount)
}

func TestValidatePromoCodeNotFound(t *testing.T) {
	pool := []catalog.PromoCode{{Code: "SAVE10", Type: catalog.PromoPercentage, Value: dec("10")}}

	res := ValidatePromoCode("SAVE20", dec("100"), pool, Context{})

	assert.False(t, res.Valid)
	assert.Equal(t, ReasonNotFound, res.Reason)
	assert.Nil(t, res.Promo)
	assertDec(t, "0", res.Discount)
}

func TestValidatePromoCodeExpiredWinsOverEverything(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expired := now.Add(-time.Minute)
	pool := []catalog.PromoCode{{
		Code:            "OLD",
		Type:            catalog.PromoPercentage,
		Value:           dec("10"),
		MinimumSubtotal: dec("1000"),
		ExpiresAt:       &expired,
	}}

	res := ValidatePromoCode("old", dec("5"), pool, Context{Now: now})

	assert.Equal(t, ReasonExpired, res.Reason)
}

func TestValidatePromoCodeExpiryBoundary(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	pool := []catalog.PromoCode{{Code: "EDGE", Type: catalog.PromoFlat, Value: dec("5"), ExpiresAt: &now}}

	res := ValidatePromoCode("EDGE", dec("50"), pool, Context{Now: now})

	assert.True(t, res.Valid, "expiry is only reached strictly after expiresAt")
}

func TestValidatePromoCodeMinimumBeforeMinimumTotal(t *testing.T) {
	pool := []catalog.PromoCode{{
		Code:              "BIG",
		Type:              catalog.PromoFlat,
		Value:             dec("5"),
		MinimumSubtotal:   dec("50"),
		MinimumOrderTotal: decPtr("10"),
	}}
	orderTotal := dec("200")

	res := ValidatePromoCode("BIG", dec("40"), pool, Context{OrderTotal: &orderTotal})

	assert.Equal(t, ReasonMinimum, res.Reason)
}

func TestValidatePromoCodeMinimumTotal(t *testing.T) {
	pool := []catalog.PromoCode{{
		Code:              "TOTAL",
		Type:              catalog.PromoFlat,
		Value:             dec("5"),
		MinimumOrderTotal: decPtr("60"),
	}}

	t.Run("falls back to subtotal", func(t *testing.T) {
		res := ValidatePromoCode("TOTAL", dec("58"), pool, Context{})
		assert.Equal(t, ReasonMinimumTotal, res.Reason)
	})

	t.Run("uses order total when given", func(t *testing.T) {
		orderTotal := dec("62.79")
		res := ValidatePromoCode("TOTAL", dec("58"), pool, Context{OrderTotal: &orderTotal})
		assert.True(t, res.Valid)
	})
}

func TestValidatePromoCodeIneligible(t *testing.T) {
	pool := []catalog.PromoCode{
		{Code: "ZERO", Type: catalog.PromoPercentage, Value: dec("0")},
		{Code: "TINY", Type: catalog.PromoPercentage, Value: dec("0.1")},
	}

	assert.Equal(t, ReasonIneligible, ValidatePromoCode("ZERO", dec("100"), pool, Context{}).Reason)
	assert.Equal(t, ReasonIneligible, ValidatePromoCode("TINY", dec("2"), pool, Context{}).Reason)
	assert.Equal(t, ReasonIneligible, ValidatePromoCode("TINY", dec("0"), pool, Context{}).Reason)
}

func TestNewPoolFirstEntryWins(t *testing.T) {
	pool := NewPool([]catalog.PromoCode{
		{Code: "dup", Value: dec("1")},
		{Code: "DUP ", Value: dec("2")},
	})

	promo, ok := pool.Lookup("Dup")
	require.True(t, ok)
	assertDec(t, "1", promo.Value)
}

func TestPriceWithPromoTaxesPreDiscount(t *testing.T) {
	items := []catalog.LineItem{{ID: "cap_0001", Price: dec("50"), Quantity: 2}}
	pool := []catalog.PromoCode{{
		Code:            "SAVE20",
		Type:            catalog.PromoPercentage,
		Value:           dec("20"),
		MinimumSubtotal: dec("50"),
	}}

	summary, res := Price(items, "SAVE20", pool, time.Time{})

	require.NotNil(t, res)
	require.True(t, res.Valid)
	assertDec(t, "100", summary.Subtotal)
	assertDec(t, "8.25", summary.Taxes)
	assertDec(t, "20", summary.Discount)
	assertDec(t, "88.25", summary.Total)
}

func TestPriceInvalidPromoLeavesTotal(t *testing.T) {
	items := []catalog.LineItem{{ID: "cap_0001", Price: dec("50"), Quantity: 2}}

	summary, res := Price(items, "NOPE", nil, time.Time{})

	require.NotNil(t, res)
	assert.Equal(t, ReasonNotFound, res.Reason)
	assertDec(t, "108.25", summary.Total)
}

func TestPriceWithoutCode(t *testing.T) {
	summary, res := Price([]catalog.LineItem{{ID: "a", Price: dec("10"), Quantity: 1}}, "  ", nil, time.Time{})
	assert.Nil(t, res)
	assertDec(t, "10.825", summary.Total)
}

func TestFlatPromoNeverDrivesTotalNegative(t *testing.T) {
	items := []catalog.LineItem{{ID: "a", Price: dec("10"), Quantity: 1}}
	pool := []catalog.PromoCode{{Code: "HUGE", Type: catalog.PromoFlat, Value: dec("500")}}

	summary, res := Price(items, "HUGE", pool, time.Time{})

	require.True(t, res.Valid)
	assertDec(t, "10", summary.Discount)
	assert.False(t, summary.Total.IsNegative())
}
