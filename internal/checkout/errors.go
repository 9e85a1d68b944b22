package checkout

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyCart rejects a checkout with no line items.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrCheckoutInProgress rejects a second submission for a cart whose
	// checkout has not returned yet.
	ErrCheckoutInProgress = errors.New("checkout already in progress for this cart")
)

// ValidationError is returned when the checkout input is rejected before
// any order is written.
type ValidationError struct {
	Field   string
	Reason  string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "invalid checkout"
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// PersistenceError wraps an order store failure. Its message is the store's
// message unchanged.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string { return e.Err.Error() }

func (e *PersistenceError) Unwrap() error { return e.Err }

// Step names a background effect of a placed order.
type Step string

const (
	StepPurchaseCount Step = "purchase-count"
	StepContact       Step = "collector-contact"
	StepBundle        Step = "asset-bundle"
	StepClearCart     Step = "clear-cart"
)

// SecondaryEffectError reports a failed background effect. It is logged and
// passed to the warning hook, never returned from PlaceOrder.
type SecondaryEffectError struct {
	Step    Step
	OrderID string
	Err     error
}

func (e *SecondaryEffectError) Error() string {
	return fmt.Sprintf("order %s: %s: %v", e.OrderID, e.Step, e.Err)
}

func (e *SecondaryEffectError) Unwrap() error { return e.Err }
