// Package orders builds and persists the durable record of a placed
// purchase, from a completed checkout session or the manual admin path.
package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-checkout-orders.git/internal/checkout"
	"github.com/ariefcatur/go-checkout-orders.git/internal/errs"
	"github.com/ariefcatur/go-checkout-orders.git/internal/inventory"
)

type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusConfirmed Status = "CONFIRMED"
	StatusShipped   Status = "SHIPPED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

var validNext = map[Status]map[Status]bool{
	StatusCreated:   {StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed: {StatusShipped: true, StatusCancelled: true},
	StatusShipped:   {StatusCompleted: true},
	StatusCompleted: {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Item is a point-in-time snapshot of the purchased variant. The copied
// fields must never be re-derived from the live product.
type Item struct {
	ID          string
	OrderID     string
	ProductID   string
	VariantID   string
	ProductName string
	VariantName string
	SKU         string
	ImageURL    string
	Options     string // serialized variant options
	UnitPrice   decimal.Decimal
	Quantity    int
	Discount    decimal.Decimal // per-item discount, reduces only this line
	LineTotal   decimal.Decimal // unit price * qty - item discount
}

// Note is an append-only free-text annotation on the order.
type Note struct {
	AuthorID  string
	Text      string
	Internal  bool
	CreatedAt time.Time
}

type Order struct {
	ID       string
	Number   string
	TenantID string

	CustomerID    string
	CustomerEmail string
	CustomerName  string
	CustomerPhone string

	ShippingAddress *checkout.Address
	BillingAddress  *checkout.Address
	ShippingMethod  string
	ShippingCost    decimal.Decimal

	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	Tax        decimal.Decimal
	GrandTotal decimal.Decimal
	Currency   string
	CouponCode string

	PaymentMethod    string
	PaymentGatewayID string

	SessionID  string // set when created from a checkout session
	ExternalID string // idempotency key for the manual path

	Items  []Item
	Notes  []Note
	Status Status

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (o *Order) transition(op string, to Status) error {
	if !CanTransition(o.Status, to) {
		return &errs.InvalidStateError{Op: op, Status: string(o.Status)}
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func (o *Order) Confirm() error { return o.transition("confirm order", StatusConfirmed) }

func (o *Order) Ship() error { return o.transition("ship order", StatusShipped) }

func (o *Order) Cancel() error { return o.transition("cancel order", StatusCancelled) }

func (o *Order) AddNote(authorID, text string, internal bool) {
	o.Notes = append(o.Notes, Note{
		AuthorID: authorID, Text: text, Internal: internal,
		CreatedAt: time.Now().UTC(),
	})
}

// ItemQuantities lists (variant, qty) pairs for the inventory coordinator.
func (o *Order) ItemQuantities() []inventory.ItemQty {
	out := make([]inventory.ItemQty, 0, len(o.Items))
	for _, it := range o.Items {
		out = append(out, inventory.ItemQty{VariantID: it.VariantID, Qty: it.Quantity})
	}
	return out
}
