// Package checkout turns a cart into a confirmed order and fans out the
// order's background effects.
package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/framevist/framevist/internal/catalog"
	"github.com/framevist/framevist/internal/pricing"
	"github.com/framevist/framevist/internal/store"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Cart is the cart being checked out. cart.Session satisfies it.
type Cart interface {
	Key() string
	Items() []catalog.LineItem
	Clear() error
}

// BundleBuilder packages the purchased assets of an order.
type BundleBuilder interface {
	Build(ctx context.Context, items []catalog.LineItem) ([]byte, error)
}

// BundleStore keeps finished bundles for download.
type BundleStore interface {
	Save(ctx context.Context, orderID string, data []byte) error
}

// Customer is the buyer's contact details.
type Customer struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

// Confirmation is returned once the order is persisted.
type Confirmation struct {
	OrderID string          `json:"order_id"`
	Email   string          `json:"email"`
	Total   decimal.Decimal `json:"total"`
}

// Options configures a Pipeline. Orders is required. A nil Catalogue,
// Contacts, Bundles or BundleStore skips the matching background effect.
type Options struct {
	Orders      store.OrderStore
	Catalogue   store.CatalogueStore
	Contacts    store.ContactStore
	Promos      store.PromoStore
	Bundles     BundleBuilder
	BundleStore BundleStore

	Logger *slog.Logger
	// OnWarning receives every failed background effect.
	OnWarning func(*SecondaryEffectError)
	// Now defaults to time.Now.
	Now func() time.Time
	// Concurrency bounds the parallel purchase-count updates (default 4).
	Concurrency int
}

// Pipeline places orders.
type Pipeline struct {
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
	wg       sync.WaitGroup
}

// New returns a Pipeline.
func New(opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Pipeline{
		opts:     opts,
		logger:   opts.Logger,
		inFlight: make(map[string]struct{}),
	}
}

// PlaceOrder validates and prices the cart, persists the order, starts the
// background effects and clears the cart.
func (p *Pipeline) PlaceOrder(ctx context.Context, c Cart, customer Customer, promoCode string) (Confirmation, error) {
	// The in-flight slot is held from before the items are read until after
	// the cart is cleared.
	if !p.acquire(c.Key()) {
		return Confirmation{}, ErrCheckoutInProgress
	}
	defer p.release(c.Key())

	items := c.Items()
	if len(items) == 0 {
		return Confirmation{}, &ValidationError{Field: "cart", Message: ErrEmptyCart.Error(), Err: ErrEmptyCart}
	}
	customer.FullName = strings.TrimSpace(customer.FullName)
	customer.Email = strings.TrimSpace(customer.Email)
	if customer.FullName == "" {
		return Confirmation{}, invalid("full_name", "full name is required")
	}
	if customer.Email == "" {
		return Confirmation{}, invalid("email", "email is required")
	}
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return Confirmation{}, &ValidationError{Field: "items", Message: err.Error(), Err: err}
		}
	}

	orderItems := make([]catalog.OrderItem, len(items))
	for i, item := range items {
		orderItems[i] = catalog.OrderItem{LineItem: item, ResolvedImage: item.ResolvedImage()}
	}

	summary, err := p.price(ctx, items, promoCode)
	if err != nil {
		return Confirmation{}, err
	}
	rounded := summary.Rounded()

	order := catalog.Order{
		CustomerName:  customer.FullName,
		CustomerEmail: customer.Email,
		Items:         orderItems,
		Subtotal:      rounded.Subtotal,
		Taxes:         rounded.Taxes,
		Discount:      rounded.Discount,
		Total:         rounded.Total,
		Status:        catalog.OrderStatusConfirmed,
		CreatedAt:     p.opts.Now().UTC(),
	}
	if summary.Discount.IsPositive() {
		order.PromoCode = catalog.NormalizeCode(promoCode)
	}

	orderID, err := p.opts.Orders.CreateOrder(ctx, order)
	if err != nil {
		p.logger.Error("order persistence failed", "cart", c.Key(), "error", err)
		return Confirmation{}, &PersistenceError{Err: err}
	}
	order.ID = orderID
	p.logger.Info("order placed", "order_id", orderID, "items", len(items), "total", order.Total.StringFixed(2))

	p.spawnEffects(context.WithoutCancel(ctx), order)

	if err := c.Clear(); err != nil {
		p.warn(&SecondaryEffectError{Step: StepClearCart, OrderID: orderID, Err: err})
	}

	return Confirmation{OrderID: orderID, Email: customer.Email, Total: order.Total}, nil
}

// Wait blocks until every background effect started so far has finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

func (p *Pipeline) price(ctx context.Context, items []catalog.LineItem, promoCode string) (pricing.Summary, error) {
	if catalog.NormalizeCode(promoCode) == "" {
		return pricing.ComputeSummary(items), nil
	}
	var promos []catalog.PromoCode
	if p.opts.Promos != nil {
		var err error
		promos, err = p.opts.Promos.ListPromos(ctx)
		if err != nil {
			return pricing.Summary{}, fmt.Errorf("load promo codes: %w", err)
		}
	}
	summary, result := pricing.Price(items, promoCode, promos, p.opts.Now())
	if result != nil && !result.Valid {
		return pricing.Summary{}, &ValidationError{
			Field:   "promo_code",
			Reason:  string(result.Reason),
			Message: result.Reason.Message(),
		}
	}
	return summary, nil
}

func (p *Pipeline) acquire(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inFlight[key]; busy {
		return false
	}
	p.inFlight[key] = struct{}{}
	return true
}

func (p *Pipeline) release(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, key)
}

func (p *Pipeline) spawnEffects(ctx context.Context, order catalog.Order) {
	if p.opts.Catalogue != nil {
		p.detach(func() { p.recordPurchases(ctx, order) })
	}
	if p.opts.Contacts != nil {
		p.detach(func() { p.recordContact(ctx, order) })
	}
	if p.opts.Bundles != nil && p.opts.BundleStore != nil {
		p.detach(func() { p.buildBundle(ctx, order) })
	}
}

func (p *Pipeline) detach(fn func()) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		fn()
	}()
}

func (p *Pipeline) recordPurchases(ctx context.Context, order catalog.Order) {
	var g errgroup.Group
	g.SetLimit(p.opts.Concurrency)
	for _, item := range order.Items {
		g.Go(func() error {
			if err := p.opts.Catalogue.IncrementPurchaseCount(ctx, item.ID, item.Quantity); err != nil {
				p.warn(&SecondaryEffectError{
					Step:    StepPurchaseCount,
					OrderID: order.ID,
					Err:     fmt.Errorf("capsule %s: %w", item.ID, err),
				})
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (p *Pipeline) recordContact(ctx context.Context, order catalog.Order) {
	_, err := p.opts.Contacts.RecordContact(ctx, catalog.CollectorContact{
		Email:     order.CustomerEmail,
		Name:      order.CustomerName,
		OrderID:   order.ID,
		CreatedAt: order.CreatedAt,
	})
	if err != nil {
		p.warn(&SecondaryEffectError{Step: StepContact, OrderID: order.ID, Err: err})
	}
}

func (p *Pipeline) buildBundle(ctx context.Context, order catalog.Order) {
	items := make([]catalog.LineItem, len(order.Items))
	for i, item := range order.Items {
		items[i] = item.LineItem
	}
	data, err := p.opts.Bundles.Build(ctx, items)
	if err != nil {
		p.warn(&SecondaryEffectError{Step: StepBundle, OrderID: order.ID, Err: err})
		return
	}
	if err := p.opts.BundleStore.Save(ctx, order.ID, data); err != nil {
		p.warn(&SecondaryEffectError{Step: StepBundle, OrderID: order.ID, Err: err})
		return
	}
	p.logger.Debug("asset bundle ready", "order_id", order.ID, "bytes", len(data))
}

func (p *Pipeline) warn(err *SecondaryEffectError) {
	p.logger.Warn("order side effect failed", "order_id", err.OrderID, "step", string(err.Step), "error", err.Err)
	if p.opts.OnWarning != nil {
		p.opts.OnWarning(err)
	}
}
