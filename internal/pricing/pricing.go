// Package pricing computes cart summaries and promo code discounts.
//
// Taxes are charged on the pre-discount subtotal and the discount is taken
// off after tax: total = subtotal + taxes - discount.
package pricing

import (
	"time"

	"github.com/framevist/framevist/internal/catalog"
	"github.com/shopspring/decimal"
)

// TaxRate is the fixed sales tax rate (8.25%).
var TaxRate = decimal.RequireFromString("0.0825")

var hundred = decimal.NewFromInt(100)

// Summary is the derived pricing of a cart. It is never stored.
type Summary struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	TaxRate  decimal.Decimal `json:"tax_rate"`
	Taxes    decimal.Decimal `json:"taxes"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
}

// Rounded returns the summary with money values rounded to cents.
func (s Summary) Rounded() Summary {
	s.Subtotal = s.Subtotal.Round(2)
	s.Taxes = s.Taxes.Round(2)
	s.Discount = s.Discount.Round(2)
	s.Total = s.Total.Round(2)
	return s
}

// ComputeSummary prices a set of line items without any discount.
func ComputeSummary(items []catalog.LineItem) Summary {
	subtotal := decimal.Zero
	count := 0
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
		count += item.Quantity
	}
	taxes := subtotal.Mul(TaxRate)
	return Summary{
		Subtotal: subtotal,
		TaxRate:  TaxRate,
		Taxes:    taxes,
		Discount: decimal.Zero,
		Total:    subtotal.Add(taxes),
		Count:    count,
	}
}

// ApplyDiscount subtracts a discount from the post-tax total.
func ApplyDiscount(s Summary, discount decimal.Decimal) Summary {
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	s.Discount = discount
	s.Total = s.Subtotal.Add(s.Taxes).Sub(discount)
	return s
}

// CalculateDiscountAmount returns the discount a promo yields on subtotal.
// The result is never negative, never above the promo's cap, and never
// above the subtotal.
func CalculateDiscountAmount(promo *catalog.PromoCode, subtotal decimal.Decimal) decimal.Decimal {
	if promo == nil || !subtotal.IsPositive() {
		return decimal.Zero
	}

	var raw decimal.Decimal
	if promo.Type == catalog.PromoFlat {
		raw = promo.Value
	} else {
		raw = subtotal.Mul(promo.Value).Div(hundred)
	}

	limit := subtotal
	if promo.MaxDiscount != nil && promo.MaxDiscount.IsPositive() {
		limit = decimal.Min(*promo.MaxDiscount, subtotal)
	}

	if raw.IsNegative() {
		return decimal.Zero
	}
	return decimal.Min(raw, limit)
}

// Reason explains why a promo code was rejected.
type Reason string

const (
	ReasonNotFound     Reason = "not-found"
	ReasonExpired      Reason = "expired"
	ReasonMinimum      Reason = "minimum"
	ReasonMinimumTotal Reason = "minimum-total"
	ReasonIneligible   Reason = "ineligible"
)

// Message is a customer-facing description of the reason.
func (r Reason) Message() string {
	switch r {
	case ReasonNotFound:
		return "promo code not found"
	case ReasonExpired:
		return "promo code has expired"
	case ReasonMinimum:
		return "cart subtotal is below the promo minimum"
	case ReasonMinimumTotal:
		return "order total is below the promo minimum"
	case ReasonIneligible:
		return "promo code does not apply to this cart"
	default:
		return "promo code is invalid"
	}
}

// Context carries optional inputs to promo validation.
type Context struct {
	// OrderTotal is compared against MinimumOrderTotal; the subtotal is used
	// when nil.
	OrderTotal *decimal.Decimal
	// Now is the evaluation time; time.Now when zero.
	Now time.Time
}

// PromoResult is the outcome of ValidatePromoCode.
type PromoResult struct {
	Valid    bool               `json:"valid"`
	Reason   Reason             `json:"reason,omitempty"`
	Promo    *catalog.PromoCode `json:"promo,omitempty"`
	Discount decimal.Decimal    `json:"discount"`
}

// Pool indexes promo codes by canonical code. The first entry wins when a
// code appears more than once.
type Pool map[string]catalog.PromoCode

// NewPool builds a Pool from a flat list.
func NewPool(promos []catalog.PromoCode) Pool {
	pool := make(Pool, len(promos))
	for _, p := range promos {
		key := catalog.NormalizeCode(p.Code)
		if _, dup := pool[key]; dup {
			continue
		}
		pool[key] = p
	}
	return pool
}

// Lookup finds a promo by code, ignoring case and surrounding whitespace.
func (p Pool) Lookup(code string) (catalog.PromoCode, bool) {
	promo, ok := p[catalog.NormalizeCode(code)]
	return promo, ok
}

// ValidatePromoCode checks a code against the pool and computes the
// discount. Checks run in order and the first failure decides the reason.
func ValidatePromoCode(code string, subtotal decimal.Decimal, promos []catalog.PromoCode, ctx Context) PromoResult {
	return NewPool(promos).Validate(code, subtotal, ctx)
}

// Validate is ValidatePromoCode against an existing pool.
func (p Pool) Validate(code string, subtotal decimal.Decimal, ctx Context) PromoResult {
	promo, ok := p.Lookup(code)
	if !ok {
		return PromoResult{Reason: ReasonNotFound}
	}

	now := ctx.Now
	if now.IsZero() {
		now = time.Now()
	}
	if promo.ExpiresAt != nil && now.After(*promo.ExpiresAt) {
		return PromoResult{Reason: ReasonExpired}
	}

	if promo.MinimumSubtotal.IsPositive() && subtotal.LessThan(promo.MinimumSubtotal) {
		return PromoResult{Reason: ReasonMinimum}
	}

	if promo.MinimumOrderTotal != nil {
		orderTotal := subtotal
		if ctx.OrderTotal != nil {
			orderTotal = *ctx.OrderTotal
		}
		if orderTotal.LessThan(*promo.MinimumOrderTotal) {
			return PromoResult{Reason: ReasonMinimumTotal}
		}
	}

	discount := CalculateDiscountAmount(&promo, subtotal)
	if discount.Round(2).IsZero() {
		return PromoResult{Reason: ReasonIneligible}
	}

	return PromoResult{
		Valid:    true,
		Promo:    &promo,
		Discount: discount,
	}
}

// Price combines ComputeSummary and promo validation. An empty code yields
// the undiscounted summary and a nil result.
func Price(items []catalog.LineItem, code string, promos []catalog.PromoCode, now time.Time) (Summary, *PromoResult) {
	summary := ComputeSummary(items)
	if catalog.NormalizeCode(code) == "" {
		return summary, nil
	}
	orderTotal := summary.Total
	result := ValidatePromoCode(code, summary.Subtotal, promos, Context{OrderTotal: &orderTotal, Now: now})
	if result.Valid {
		summary = ApplyDiscount(summary, result.Discount)
	}
	return summary, &result
}
