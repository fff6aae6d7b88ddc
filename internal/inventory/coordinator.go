// Package inventory reserves and releases variant stock for orders.
// Every stock mutation is paired with an append-only movement-log row in
// the same transaction, so the log is a faithful history of the counter.
package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-checkout-orders.git/internal/errs"
)

type MovementType string

const (
	MovementReservation MovementType = "RESERVATION"
	MovementRelease     MovementType = "RELEASE"
	MovementAdjustment  MovementType = "ADJUSTMENT"
	MovementSale        MovementType = "SALE"
)

// Variant is the stock authority: the mutable counter plus the identity
// fields needed for error messages and snapshots.
type Variant struct {
	ID        string
	ProductID string
	SKU       string
	Name      string
	Price     decimal.Decimal
	Stock     int
	Options   string // serialized option values
}

// Movement is one append-only audit entry. Never updated or deleted.
type Movement struct {
	ID             string
	VariantID      string
	Type           MovementType
	QuantityBefore int
	Delta          int
	Reference      string
	Notes          string
	ActorID        string
	CreatedAt      time.Time
}

type ItemQty struct {
	VariantID string
	Qty       int
}

// Store is one reservation transaction's view of stock. LockVariants must
// take an update-intent lock so concurrent reservations against the same
// variant serialize.
type Store interface {
	LockVariants(ctx context.Context, ids []string) (map[string]Variant, error)
	AdjustStock(ctx context.Context, variantID string, delta int) error
	AppendMovement(ctx context.Context, m Movement) error
}

// TxRunner wraps fn in a transaction: fn returning an error rolls back,
// otherwise the changes commit.
type TxRunner interface {
	InTx(ctx context.Context, fn func(Store) error) error
}

type Coordinator struct {
	Runner TxRunner
}

// ReserveForOrder decrements stock for every item or for none of them.
// InsufficientStock and NotFound are business errors; no internal retry.
func (c *Coordinator) ReserveForOrder(ctx context.Context, items []ItemQty, orderRef, actorID string) error {
	return c.Runner.InTx(ctx, func(st Store) error {
		return c.ReserveIn(ctx, st, items, orderRef, actorID)
	})
}

// ReserveIn runs the reservation against an already-open store, so order
// persistence and the stock decrement can share one transaction.
func (c *Coordinator) ReserveIn(ctx context.Context, st Store, items []ItemQty, orderRef, actorID string) error {
	if err := validateItems(items); err != nil {
		return err
	}
	variants, err := st.LockVariants(ctx, ids(items))
	if err != nil {
		return err
	}

	// availability pass first: fail the whole set before any decrement
	for _, it := range items {
		v, ok := variants[it.VariantID]
		if !ok {
			return &errs.NotFoundError{Entity: "variant", ID: it.VariantID}
		}
		if v.Stock < it.Qty {
			return &errs.InsufficientStockError{
				VariantID: v.ID, SKU: v.SKU, Name: v.Name,
				Available: v.Stock, Requested: it.Qty,
			}
		}
	}

	for _, it := range items {
		v := variants[it.VariantID]
		if err := st.AdjustStock(ctx, it.VariantID, -it.Qty); err != nil {
			return err
		}
		if err := st.AppendMovement(ctx, Movement{
			ID:             uuid.NewString(),
			VariantID:      it.VariantID,
			Type:           MovementReservation,
			QuantityBefore: v.Stock,
			Delta:          -it.Qty,
			Reference:      orderRef,
			ActorID:        actorID,
			CreatedAt:      time.Now().UTC(),
		}); err != nil {
			return err
		}
	}
	return nil
}

// Release returns reserved stock (cancellation path). It always logs a
// movement per item, even when the delta is zero.
func (c *Coordinator) Release(ctx context.Context, items []ItemQty, orderRef, actorID string) error {
	return c.Runner.InTx(ctx, func(st Store) error {
		return c.ReleaseIn(ctx, st, items, orderRef, actorID)
	})
}

// ReleaseIn runs the release against an already-open store, so order
// cancellation and the stock restore share one transaction.
func (c *Coordinator) ReleaseIn(ctx context.Context, st Store, items []ItemQty, orderRef, actorID string) error {
	if len(items) == 0 {
		return &errs.ValidationError{Msg: "release requires at least one item"}
	}
	for _, it := range items {
		if it.Qty < 0 {
			return &errs.ValidationError{Msg: "release quantity must not be negative: " + it.VariantID}
		}
	}
	variants, err := st.LockVariants(ctx, ids(items))
	if err != nil {
		return err
	}
	for _, it := range items {
		v, ok := variants[it.VariantID]
		if !ok {
			return &errs.NotFoundError{Entity: "variant", ID: it.VariantID}
		}
		if it.Qty > 0 {
			if err := st.AdjustStock(ctx, it.VariantID, it.Qty); err != nil {
				return err
			}
		}
		if err := st.AppendMovement(ctx, Movement{
			ID:             uuid.NewString(),
			VariantID:      it.VariantID,
			Type:           MovementRelease,
			QuantityBefore: v.Stock,
			Delta:          it.Qty,
			Reference:      orderRef,
			ActorID:        actorID,
			CreatedAt:      time.Now().UTC(),
		}); err != nil {
			return err
		}
	}
	return nil
}

func validateItems(items []ItemQty) error {
	if len(items) == 0 {
		return &errs.ValidationError{Msg: "reservation requires at least one item"}
	}
	for _, it := range items {
		if it.VariantID == "" {
			return &errs.ValidationError{Msg: "item variant id is required"}
		}
		if it.Qty <= 0 {
			return &errs.ValidationError{Msg: "item quantity must be positive: " + it.VariantID}
		}
	}
	return nil
}

func ids(items []ItemQty) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.VariantID)
	}
	return out
}
