// Package catalog defines the Frame Vist domain types: capsules, promo codes,
// cart line items, orders, collector contacts and tags.
package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Variation is an alternate rendition of a capsule.
type Variation struct {
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
	Image string `json:"image" yaml:"image"`
}

// Stats holds the per-capsule analytics counters.
type Stats struct {
	Views     int64 `json:"views"`
	CartAdds  int64 `json:"cart_adds"`
	Purchases int64 `json:"purchases"`
}

// Capsule is a single sellable digital-art listing.
type Capsule struct {
	ID          string            `json:"id" yaml:"id"`
	Title       string            `json:"title" yaml:"title"`
	Slug        string            `json:"slug,omitempty" yaml:"slug,omitempty"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Price       decimal.Decimal   `json:"price" yaml:"price"`
	Image       string            `json:"image,omitempty" yaml:"image,omitempty"`
	Gallery     []string          `json:"gallery,omitempty" yaml:"gallery,omitempty"`
	Variations  []Variation       `json:"variations,omitempty" yaml:"variations,omitempty"`
	Resolutions map[string]string `json:"resolutions,omitempty" yaml:"resolutions,omitempty"`
	Tags        []string          `json:"tags,omitempty" yaml:"tags,omitempty"`
	Published   bool              `json:"published" yaml:"published"`
	Stats       Stats             `json:"stats" yaml:"-"`
	CreatedAt   time.Time         `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time         `json:"updated_at" yaml:"-"`
}

// Validate checks the fields an admin must supply.
func (c Capsule) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return errors.New("title is required")
	}
	if c.Price.IsNegative() {
		return errors.New("price must not be negative")
	}
	return nil
}

// LineItem snapshots the capsule as a cart line with the given quantity.
func (c Capsule) LineItem(quantity int) LineItem {
	return LineItem{
		ID:          c.ID,
		Title:       c.Title,
		Price:       c.Price,
		Quantity:    quantity,
		Image:       c.Image,
		Gallery:     append([]string(nil), c.Gallery...),
		Variations:  append([]Variation(nil), c.Variations...),
		Resolutions: cloneStrings(c.Resolutions),
	}
}

// LineItem is one product in a cart. Quantity is at least 1 and price is
// never negative.
type LineItem struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Price       decimal.Decimal   `json:"price"`
	Quantity    int               `json:"quantity"`
	Image       string            `json:"image,omitempty"`
	Gallery     []string          `json:"gallery,omitempty"`
	Variations  []Variation       `json:"variations,omitempty"`
	Resolutions map[string]string `json:"resolutions,omitempty"`
}

// Validate enforces the line item invariants.
func (li LineItem) Validate() error {
	if strings.TrimSpace(li.ID) == "" {
		return errors.New("item id is required")
	}
	if li.Quantity < 1 {
		return fmt.Errorf("item %s: quantity must be at least 1", li.ID)
	}
	if li.Price.IsNegative() {
		return fmt.Errorf("item %s: price must not be negative", li.ID)
	}
	return nil
}

// ResolvedImage returns the display image: primary, then the first gallery
// image, then the first variation image, else "".
func (li LineItem) ResolvedImage() string {
	if s := strings.TrimSpace(li.Image); s != "" {
		return s
	}
	for _, g := range li.Gallery {
		if s := strings.TrimSpace(g); s != "" {
			return s
		}
	}
	for _, v := range li.Variations {
		if s := strings.TrimSpace(v.Image); s != "" {
			return s
		}
	}
	return ""
}

// LineTotal is price × quantity.
func (li LineItem) LineTotal() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// PromoType selects how a promo's value is interpreted.
type PromoType string

const (
	PromoPercentage PromoType = "percentage"
	PromoFlat       PromoType = "flat"
)

// PromoCode is an admin-managed discount rule identified by its code.
type PromoCode struct {
	Code              string           `json:"code" yaml:"code"`
	Label             string           `json:"label,omitempty" yaml:"label,omitempty"`
	Type              PromoType        `json:"type" yaml:"type"`
	Value             decimal.Decimal  `json:"value" yaml:"value"`
	MinimumSubtotal   decimal.Decimal  `json:"minimum_subtotal" yaml:"minimum_subtotal"`
	MinimumOrderTotal *decimal.Decimal `json:"minimum_order_total,omitempty" yaml:"minimum_order_total,omitempty"`
	MaxDiscount       *decimal.Decimal `json:"max_discount,omitempty" yaml:"max_discount,omitempty"`
	ExpiresAt         *time.Time       `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	CreatedAt         time.Time        `json:"created_at" yaml:"-"`
	UpdatedAt         time.Time        `json:"updated_at" yaml:"-"`
}

// NormalizeCode returns the canonical form of a promo code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Normalize returns a copy with a canonical code and a default type.
func (p PromoCode) Normalize() PromoCode {
	p.Code = NormalizeCode(p.Code)
	p.Label = strings.TrimSpace(p.Label)
	if p.Type == "" {
		p.Type = PromoPercentage
	}
	return p
}

// Validate checks an admin-supplied promo code.
func (p PromoCode) Validate() error {
	if NormalizeCode(p.Code) == "" {
		return errors.New("code is required")
	}
	switch p.Type {
	case PromoPercentage:
		if p.Value.GreaterThan(decimal.NewFromInt(100)) {
			return errors.New("percentage value must be between 0 and 100")
		}
	case PromoFlat, "":
	default:
		return fmt.Errorf("unknown promo type %q", p.Type)
	}
	if p.Value.IsNegative() {
		return errors.New("value must not be negative")
	}
	if p.MinimumSubtotal.IsNegative() {
		return errors.New("minimum subtotal must not be negative")
	}
	if p.MinimumOrderTotal != nil && p.MinimumOrderTotal.IsNegative() {
		return errors.New("minimum order total must not be negative")
	}
	if p.MaxDiscount != nil && p.MaxDiscount.IsNegative() {
		return errors.New("max discount must not be negative")
	}
	return nil
}

// OrderStatusConfirmed is the only status the storefront assigns.
const OrderStatusConfirmed = "confirmed"

// OrderItem is the snapshot of a line item stored on an order.
type OrderItem struct {
	LineItem
	ResolvedImage string `json:"resolved_image,omitempty"`
}

// Order is created exactly once per checkout and never edited.
type Order struct {
	ID            string          `json:"id"`
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email"`
	Items         []OrderItem     `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Taxes         decimal.Decimal `json:"taxes"`
	Discount      decimal.Decimal `json:"discount"`
	PromoCode     string          `json:"promo_code,omitempty"`
	Total         decimal.Decimal `json:"total"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

// CollectorContact is an append-only record of a purchasing collector.
type CollectorContact struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	OrderID   string    `json:"order_id"`
	CreatedAt time.Time `json:"created_at"`
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Tag is a usage-counted catalogue tag.
type Tag struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// NormalizeTag returns the canonical tag name.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

func cloneStrings(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
