// Package errs defines the business error kinds shared across the
// checkout, orders, and inventory packages. Handlers match them with
// errors.As to pick a response; none of them is retried internally.
package errs

import "fmt"

// ValidationError: malformed input, caught before any state change.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// NotFoundError: a referenced entity does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// InvalidStateError: operation attempted against an incompatible session
// or order status. The message always names the current status so callers
// can surface it verbatim.
type InvalidStateError struct {
	Op     string
	Status string
	Reason string // optional full message; overrides the default
}

func (e *InvalidStateError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("cannot %s in %s status", e.Op, e.Status)
}

// InsufficientStockError: requested quantity exceeds available stock.
type InsufficientStockError struct {
	VariantID string
	SKU       string
	Name      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s (sku %s): available %d, requested %d",
		e.Name, e.SKU, e.Available, e.Requested)
}

// ConflictError: concurrent modification detected at commit time. The only
// kind where the caller may retry (re-read, re-validate, re-apply).
type ConflictError struct {
	Entity string
	ID     string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("concurrent modification of %s %s", e.Entity, e.ID)
}
