package orders

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-checkout-orders.git/internal/checkout"
	"github.com/ariefcatur/go-checkout-orders.git/internal/errs"
	"github.com/ariefcatur/go-checkout-orders.git/internal/inventory"
	kafkax "github.com/ariefcatur/go-checkout-orders.git/internal/kafka"
	"github.com/ariefcatur/go-checkout-orders.git/internal/postgres"
	"github.com/ariefcatur/go-checkout-orders.git/internal/redisx"
)

// Service is the orchestrating command handler for order creation and
// cancellation. Per request: validate, resolve items and prices, generate
// the order number, assemble, then persist the order and reserve stock in
// one transaction. Events go out only after the commit.
type Service struct {
	DB             *pgxpool.Pool
	Repo           *Repo
	Sessions       *checkout.Repo
	Checkout       *checkout.Service
	Numbers        NumberGenerator
	Coordinator    *inventory.Coordinator
	Redis          *redis.Client
	Producer       *kafkax.Producer // TopicOrderCreated
	CancelProducer *kafkax.Producer // TopicOrderCancelled
	ServiceName    string
}

// CreateOrderItem: resolved-unit-price defaults to the variant's current
// price when nil; Discount reduces only this line.
type CreateOrderItem struct {
	VariantID string
	Quantity  int
	UnitPrice *decimal.Decimal
	Discount  decimal.Decimal
}

type CreateOrderCommand struct {
	ExternalID string // idempotency key, optional
	TenantID   string
	ActorID    string

	CustomerID    string
	CustomerEmail string
	CustomerName  string
	CustomerPhone string

	ShippingAddress *checkout.Address
	BillingAddress  *checkout.Address
	ShippingMethod  string
	ShippingCost    decimal.Decimal

	Discount   decimal.Decimal
	Tax        decimal.Decimal
	Currency   string
	CouponCode string

	PaymentMethod    string
	PaymentGatewayID string
	PaymentStatus    string // "paid" confirms immediately

	Note    string
	TraceID string

	Items []CreateOrderItem
}

// CreateOrder is the manual/admin path. Replaying the same external id
// returns the existing order without touching stock again.
func (s *Service) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (*Order, bool, error) {
	if len(cmd.Items) == 0 {
		return nil, false, &errs.ValidationError{Msg: "order requires at least one item"}
	}

	if cmd.ExternalID != "" {
		// cache first, DB second; a stale cache entry just falls through
		if s.Redis != nil {
			key := fmt.Sprintf(redisx.KeyIdemOrderCreate, cmd.ExternalID)
			if id, err := s.Redis.Get(ctx, key).Result(); err == nil && id != "" {
				if existing, err := s.Repo.Get(ctx, id); err == nil {
					return existing, true, nil
				}
			}
		}
		existing, err := s.Repo.FindByExternalID(ctx, cmd.ExternalID)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, true, nil
		}
	}

	items, err := s.resolveItems(ctx, cmd.Items)
	if err != nil {
		return nil, false, err
	}

	number, err := s.Numbers.GenerateNext(ctx, cmd.TenantID)
	if err != nil {
		return nil, false, err
	}

	order, err := Assemble(AssembleInput{
		Number:   number,
		TenantID: cmd.TenantID,

		CustomerID:    cmd.CustomerID,
		CustomerEmail: cmd.CustomerEmail,
		CustomerName:  cmd.CustomerName,
		CustomerPhone: cmd.CustomerPhone,

		ShippingAddress: cmd.ShippingAddress,
		BillingAddress:  cmd.BillingAddress,
		ShippingMethod:  cmd.ShippingMethod,
		ShippingCost:    cmd.ShippingCost,

		Discount:   cmd.Discount,
		Tax:        cmd.Tax,
		Currency:   cmd.Currency,
		CouponCode: cmd.CouponCode,

		PaymentMethod:    cmd.PaymentMethod,
		PaymentGatewayID: cmd.PaymentGatewayID,
		PaymentStatus:    cmd.PaymentStatus,

		ExternalID: cmd.ExternalID,
		Note:       cmd.Note,
		ActorID:    cmd.ActorID,

		Items: items,
	})
	if err != nil {
		return nil, false, err
	}

	if err := s.persistWithReservation(ctx, order, cmd.ActorID, nil); err != nil {
		return nil, false, err
	}

	if cmd.ExternalID != "" && s.Redis != nil {
		key := fmt.Sprintf(redisx.KeyIdemOrderCreate, cmd.ExternalID)
		_ = s.Redis.Set(ctx, key, order.ID, redisx.TTLIdempotency).Err()
	}
	s.cacheStatus(ctx, order)
	s.publishCreated(order, cmd.TraceID)
	return order, false, nil
}

// CompleteCheckout builds the order from a session plus its cart lines,
// reserves stock, and closes the session — all in one transaction.
func (s *Service) CompleteCheckout(ctx context.Context, sessionID, actorID, traceID string) (*Order, error) {
	sess, err := s.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	// fail before any side effect; Complete re-checks inside the tx
	if sess.Status != checkout.StatusPaymentPending && sess.Status != checkout.StatusPaymentProcessing {
		return nil, &errs.InvalidStateError{
			Status: string(sess.Status),
			Reason: "cannot complete checkout in " + string(sess.Status) + " status",
		}
	}

	lines, err := s.Repo.CartLines(ctx, sess.CartID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, &errs.ValidationError{Msg: "cart is empty: " + sess.CartID}
	}
	cmdItems := make([]CreateOrderItem, 0, len(lines))
	for _, l := range lines {
		cmdItems = append(cmdItems, CreateOrderItem{VariantID: l.VariantID, Quantity: l.Quantity})
	}
	items, err := s.resolveItems(ctx, cmdItems)
	if err != nil {
		return nil, err
	}

	number, err := s.Numbers.GenerateNext(ctx, sess.TenantID)
	if err != nil {
		return nil, err
	}

	order, err := Assemble(AssembleInput{
		Number:   number,
		TenantID: sess.TenantID,

		CustomerID:    sess.UserID,
		CustomerEmail: sess.CustomerEmail,
		CustomerName:  sess.CustomerName,
		CustomerPhone: sess.CustomerPhone,

		ShippingAddress: sess.ShippingAddress,
		BillingAddress:  sess.BillingAddress,
		ShippingMethod:  sess.ShippingMethod,
		ShippingCost:    sess.ShippingCost,

		Discount:   sess.Discount,
		Tax:        sess.Tax,
		Currency:   sess.Currency,
		CouponCode: sess.CouponCode,

		PaymentMethod:    string(sess.PaymentMethod),
		PaymentGatewayID: sess.PaymentGatewayID,

		SessionID: sess.ID,
		ActorID:   actorID,

		Items: items,
	})
	if err != nil {
		return nil, err
	}

	err = s.persistWithReservation(ctx, order, actorID, func(q postgres.DBTX) error {
		if err := sess.Complete(order.ID, order.Number); err != nil {
			return err
		}
		return s.Sessions.Update(ctx, q, sess)
	})
	if err != nil {
		return nil, err
	}

	s.cacheStatus(ctx, order)
	s.publishCreated(order, traceID)
	if s.Checkout != nil {
		s.Checkout.PublishFor(ctx, sess, traceID)
	}
	return order, nil
}

// CancelOrder releases the reserved stock and logs the release movements
// in the same transaction as the status change. The update is guarded on
// the status loaded here, so a concurrent cancel (or a client retry after
// a committed first attempt) gets Conflict instead of a second release.
func (s *Service) CancelOrder(ctx context.Context, orderID, actorID, traceID string) error {
	o, err := s.Repo.Get(ctx, orderID)
	if err != nil {
		return err
	}
	loaded := o.Status
	if err := o.Cancel(); err != nil {
		return err
	}

	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.Repo.UpdateStatus(ctx, tx, o, loaded); err != nil {
		return err
	}
	if err := s.Coordinator.ReleaseIn(ctx, &inventory.PGStore{Q: tx}, o.ItemQuantities(), o.Number, actorID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	s.cacheStatus(ctx, o)
	s.publishCancelled(o, traceID)
	return nil
}

// persistWithReservation commits the order rows and the stock decrement
// atomically, so a crash cannot leave stock reserved without an order or
// the reverse. extra runs in the same transaction (session completion).
func (s *Service) persistWithReservation(ctx context.Context, o *Order, actorID string, extra func(postgres.DBTX) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.Repo.Insert(ctx, tx, o); err != nil {
		return err
	}
	if err := s.Coordinator.ReserveIn(ctx, &inventory.PGStore{Q: tx}, o.ItemQuantities(), o.Number, actorID); err != nil {
		return err
	}
	if extra != nil {
		if err := extra(tx); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// resolveItems is the fast pre-check: unknown variant, inactive product,
// and short stock are rejected before the order number is even drawn. The
// coordinator re-checks stock under the row lock to close the race.
func (s *Service) resolveItems(ctx context.Context, items []CreateOrderItem) ([]AssembleItem, error) {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, &errs.ValidationError{Msg: "item quantity must be positive: " + it.VariantID}
		}
		ids = append(ids, it.VariantID)
	}
	resolved, err := s.Repo.ResolveVariants(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]AssembleItem, 0, len(items))
	for _, it := range items {
		v, ok := resolved[it.VariantID]
		if !ok {
			return nil, &errs.NotFoundError{Entity: "variant", ID: it.VariantID}
		}
		if v.ProductStatus != ProductStatusActive {
			return nil, &errs.ValidationError{Msg: "product is not available for sale: " + v.ProductName}
		}
		if v.Stock < it.Quantity {
			return nil, &errs.InsufficientStockError{
				VariantID: v.ID, SKU: v.SKU, Name: v.ProductName + " " + v.Variant.Name,
				Available: v.Stock, Requested: it.Quantity,
			}
		}
		price := v.Price
		if it.UnitPrice != nil {
			price = *it.UnitPrice
		}
		out = append(out, AssembleItem{
			Variant:     v.Variant,
			ProductName: v.ProductName,
			ImageURL:    v.ImageURL,
			UnitPrice:   price,
			Quantity:    it.Quantity,
			Discount:    it.Discount,
		})
	}
	return out, nil
}

func (s *Service) publishCreated(o *Order, traceID string) {
	if s.Producer == nil {
		return
	}
	snaps := make([]ItemSnapshot, 0, len(o.Items))
	for _, it := range o.Items {
		snaps = append(snaps, ItemSnapshot{
			VariantID: it.VariantID, SKU: it.SKU, Qty: it.Quantity, UnitPrice: it.UnitPrice,
		})
	}
	env := kafkax.NewEnvelope(s.ServiceName, EventOrderCreated, traceID, o.ID, OrderCreatedPayload{
		OrderID: o.ID, Number: o.Number, TenantID: o.TenantID,
		SessionID: o.SessionID, ExternalID: o.ExternalID,
		Items: snaps, GrandTotal: o.GrandTotal, Currency: o.Currency,
	})
	s.Producer.Publish(kafkax.PartitionKey(o.ID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(EventOrderCreated)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (s *Service) publishCancelled(o *Order, traceID string) {
	if s.CancelProducer == nil {
		return
	}
	env := kafkax.NewEnvelope(s.ServiceName, EventOrderCancelled, traceID, o.ID, OrderCancelledPayload{
		OrderID: o.ID, Number: o.Number,
	})
	s.CancelProducer.Publish(kafkax.PartitionKey(o.ID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(EventOrderCancelled)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (s *Service) cacheStatus(ctx context.Context, o *Order) {
	if s.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	val := fmt.Sprintf(`{"status":%q}`, string(o.Status))
	_ = s.Redis.Set(ctx, key, val, redisx.TTLStatusCache).Err()
}
