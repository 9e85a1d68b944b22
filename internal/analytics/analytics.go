// Package analytics aggregates order revenue and the capsule conversion
// funnel for the admin dashboard.
package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/framevist/framevist/internal/catalog"
	"github.com/shopspring/decimal"
)

// Window bounds the orders that are counted.
type Window string

const (
	Window7d  Window = "7d"
	Window30d Window = "30d"
	WindowAll Window = "all"
)

// ParseWindow accepts "7d", "30d", "all" or "" (all).
func ParseWindow(s string) (Window, error) {
	switch Window(s) {
	case Window7d, Window30d, WindowAll:
		return Window(s), nil
	case "":
		return WindowAll, nil
	}
	return "", fmt.Errorf("unknown window %q", s)
}

// Duration is the window length; zero for WindowAll.
func (w Window) Duration() time.Duration {
	switch w {
	case Window7d:
		return 7 * 24 * time.Hour
	case Window30d:
		return 30 * 24 * time.Hour
	}
	return 0
}

// Views and cart adds are lifetime counters with no timestamps, so bounded
// windows scale them by these factors and mark the funnel as estimated.
var windowShare = map[Window]float64{
	Window7d:  0.25,
	Window30d: 0.6,
}

// Funnel is views -> cart adds -> purchases.
type Funnel struct {
	Views     int64   `json:"views"`
	CartAdds  int64   `json:"cart_adds"`
	Purchases int64   `json:"purchases"`
	CartRate  float64 `json:"cart_rate"`
	BuyRate   float64 `json:"buy_rate"`
	Estimated bool    `json:"estimated"`
}

// CapsuleStat is one row of the top-capsules table.
type CapsuleStat struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Purchases int64           `json:"purchases"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// Summary is the dashboard payload.
type Summary struct {
	Window            Window          `json:"window"`
	Since             *time.Time      `json:"since,omitempty"`
	Orders            int             `json:"orders"`
	Revenue           decimal.Decimal `json:"revenue"`
	Discounts         decimal.Decimal `json:"discounts"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
	TopCapsules       []CapsuleStat   `json:"top_capsules"`
	Funnel            Funnel          `json:"funnel"`
}

// TopN is the length of Summary.TopCapsules.
const TopN = 5

// Summarize computes the dashboard figures for window as of now.
func Summarize(orders []catalog.Order, capsules []catalog.Capsule, window Window, now time.Time) Summary {
	s := Summary{
		Window:            window,
		Revenue:           decimal.Zero,
		Discounts:         decimal.Zero,
		AverageOrderValue: decimal.Zero,
		TopCapsules:       []CapsuleStat{},
	}
	var since time.Time
	if d := window.Duration(); d > 0 {
		since = now.Add(-d)
		s.Since = &since
	}

	byCapsule := make(map[string]*CapsuleStat)
	for _, o := range orders {
		if !since.IsZero() && o.CreatedAt.Before(since) {
			continue
		}
		s.Orders++
		s.Revenue = s.Revenue.Add(o.Total)
		s.Discounts = s.Discounts.Add(o.Discount)
		for _, item := range o.Items {
			st, ok := byCapsule[item.ID]
			if !ok {
				st = &CapsuleStat{ID: item.ID, Title: item.Title, Revenue: decimal.Zero}
				byCapsule[item.ID] = st
			}
			st.Purchases += int64(item.Quantity)
			st.Revenue = st.Revenue.Add(item.LineTotal())
		}
	}
	if s.Orders > 0 {
		s.AverageOrderValue = s.Revenue.Div(decimal.NewFromInt(int64(s.Orders))).Round(2)
	}

	for _, st := range byCapsule {
		s.TopCapsules = append(s.TopCapsules, *st)
	}
	sort.Slice(s.TopCapsules, func(i, j int) bool {
		a, b := s.TopCapsules[i], s.TopCapsules[j]
		if a.Purchases != b.Purchases {
			return a.Purchases > b.Purchases
		}
		if !a.Revenue.Equal(b.Revenue) {
			return a.Revenue.GreaterThan(b.Revenue)
		}
		return a.ID < b.ID
	})
	if len(s.TopCapsules) > TopN {
		s.TopCapsules = s.TopCapsules[:TopN]
	}

	s.Funnel = funnel(capsules, byCapsule, window)
	return s
}

func funnel(capsules []catalog.Capsule, windowed map[string]*CapsuleStat, window Window) Funnel {
	var f Funnel
	for _, c := range capsules {
		f.Views += c.Stats.Views
		f.CartAdds += c.Stats.CartAdds
		f.Purchases += c.Stats.Purchases
	}
	if share, ok := windowShare[window]; ok {
		f.Views = int64(float64(f.Views) * share)
		f.CartAdds = int64(float64(f.CartAdds) * share)
		f.Purchases = 0
		for _, st := range windowed {
			f.Purchases += st.Purchases
		}
		f.Estimated = true
	}
	if f.Views > 0 {
		f.CartRate = float64(f.CartAdds) / float64(f.Views)
	}
	if f.CartAdds > 0 {
		f.BuyRate = float64(f.Purchases) / float64(f.CartAdds)
	}
	return f
}
