// Package cart holds the shopper's cart as an explicit value object and
// persists it to a key-value storage under a fixed key.
package cart

import (
	"encoding/json"
	"strings"

	"github.com/framevist/framevist/internal/catalog"
	"github.com/framevist/framevist/internal/pricing"
)

// StorageKey is the key the cart is stored under.
const StorageKey = "framevist-cart"

// Key returns the storage key for a server-held cart.
func Key(cartID string) string {
	cartID = strings.TrimSpace(cartID)
	if cartID == "" {
		return StorageKey
	}
	return StorageKey + ":" + cartID
}

// Cart is an ordered list of line items with unique ids.
type Cart struct {
	items []catalog.LineItem
}

// New returns a cart holding items. Invalid items are dropped and
// duplicates are merged.
func New(items ...catalog.LineItem) *Cart {
	c := &Cart{}
	for _, item := range items {
		_ = c.Add(item)
	}
	return c
}

// Add appends item, or adds its quantity to the existing line with the
// same id.
func (c *Cart) Add(item catalog.LineItem) error {
	if item.Quantity == 0 {
		item.Quantity = 1
	}
	if err := item.Validate(); err != nil {
		return err
	}
	if i := c.index(item.ID); i >= 0 {
		c.items[i].Quantity += item.Quantity
		return nil
	}
	c.items = append(c.items, item)
	return nil
}

// Remove drops the line with id. It reports whether a line was removed.
func (c *Cart) Remove(id string) bool {
	i := c.index(id)
	if i < 0 {
		return false
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	return true
}

// SetQuantity replaces a line's quantity; qty <= 0 removes the line.
func (c *Cart) SetQuantity(id string, qty int) bool {
	if qty <= 0 {
		return c.Remove(id)
	}
	i := c.index(id)
	if i < 0 {
		return false
	}
	c.items[i].Quantity = qty
	return true
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.items = nil
}

// Items returns a copy of the line items.
func (c *Cart) Items() []catalog.LineItem {
	return append([]catalog.LineItem(nil), c.items...)
}

// Len is the number of distinct lines.
func (c *Cart) Len() int { return len(c.items) }

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool { return len(c.items) == 0 }

// Summary prices the cart without any promo.
func (c *Cart) Summary() pricing.Summary {
	return pricing.ComputeSummary(c.items)
}

func (c *Cart) index(id string) int {
	for i, item := range c.items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

type payload struct {
	Items []catalog.LineItem `json:"items"`
}

// MarshalJSON encodes the cart as {"items": [...]}.
func (c *Cart) MarshalJSON() ([]byte, error) {
	items := c.items
	if items == nil {
		items = []catalog.LineItem{}
	}
	return json.Marshal(payload{Items: items})
}

// Decode parses a stored cart. Malformed data and invalid lines are
// discarded, so the result is always a usable cart.
func Decode(data []byte) *Cart {
	var p payload
	if len(data) == 0 || json.Unmarshal(data, &p) != nil {
		return &Cart{}
	}
	return New(p.Items...)
}
