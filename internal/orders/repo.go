package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-checkout-orders.git/internal/checkout"
	"github.com/ariefcatur/go-checkout-orders.git/internal/errs"
	"github.com/ariefcatur/go-checkout-orders.git/internal/inventory"
	"github.com/ariefcatur/go-checkout-orders.git/internal/postgres"
)

const ProductStatusActive = "ACTIVE"

// ResolvedVariant is a variant plus the product fields the assembler
// snapshots and the sellability status the pre-check validates.
type ResolvedVariant struct {
	inventory.Variant
	ProductName   string
	ProductStatus string
	ImageURL      string
}

type CartLine struct {
	VariantID string
	Quantity  int
}

type Repo struct {
	Q postgres.DBTX
}

// ResolveVariants batch-loads variants with their product info, without a
// lock. Used for the fast pre-check; the coordinator re-reads with FOR
// UPDATE inside the reservation transaction.
func (r *Repo) ResolveVariants(ctx context.Context, ids []string) (map[string]ResolvedVariant, error) {
	rows, err := r.Q.Query(ctx, `
		SELECT v.id, v.product_id, v.sku, v.name, v.price, v.stock, v.options,
		       p.name, p.status, COALESCE(p.image_url, '')
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		WHERE v.id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]ResolvedVariant, len(ids))
	for rows.Next() {
		var v ResolvedVariant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.SKU, &v.Variant.Name, &v.Price, &v.Stock, &v.Options,
			&v.ProductName, &v.ProductStatus, &v.ImageURL); err != nil {
			return nil, err
		}
		out[v.ID] = v
	}
	return out, rows.Err()
}

func (r *Repo) CartLines(ctx context.Context, cartID string) ([]CartLine, error) {
	rows, err := r.Q.Query(ctx,
		`SELECT variant_id, quantity FROM cart_items WHERE cart_id = $1 ORDER BY created_at`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CartLine
	for rows.Next() {
		var l CartLine
		if err := rows.Scan(&l.VariantID, &l.Quantity); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// FindByExternalID backs the idempotent manual-create path.
func (r *Repo) FindByExternalID(ctx context.Context, externalID string) (*Order, error) {
	var (
		o      Order
		status string
	)
	err := r.Q.QueryRow(ctx,
		`SELECT id, number, status, grand_total, currency FROM orders WHERE external_id = $1`,
		externalID).Scan(&o.ID, &o.Number, &status, &o.GrandTotal, &o.Currency)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	o.Status = Status(status)
	return &o, nil
}

func (r *Repo) Get(ctx context.Context, id string) (*Order, error) {
	var (
		o                  Order
		status             string
		shipJSON, billJSON []byte
	)
	err := r.Q.QueryRow(ctx, `
		SELECT id, number, tenant_id, customer_id, customer_email, customer_name, customer_phone,
		       shipping_address, billing_address, shipping_method, shipping_cost,
		       subtotal, discount, tax, grand_total, currency, coupon_code,
		       payment_method, payment_gateway_id, COALESCE(session_id, ''), COALESCE(external_id, ''),
		       status, created_at, updated_at
		FROM orders WHERE id = $1`, id).Scan(
		&o.ID, &o.Number, &o.TenantID, &o.CustomerID, &o.CustomerEmail, &o.CustomerName, &o.CustomerPhone,
		&shipJSON, &billJSON, &o.ShippingMethod, &o.ShippingCost,
		&o.Subtotal, &o.Discount, &o.Tax, &o.GrandTotal, &o.Currency, &o.CouponCode,
		&o.PaymentMethod, &o.PaymentGatewayID, &o.SessionID, &o.ExternalID,
		&status, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &errs.NotFoundError{Entity: "order", ID: id}
	}
	if err != nil {
		return nil, err
	}
	o.Status = Status(status)
	if o.ShippingAddress, err = decodeAddress(shipJSON); err != nil {
		return nil, err
	}
	if o.BillingAddress, err = decodeAddress(billJSON); err != nil {
		return nil, err
	}

	rows, err := r.Q.Query(ctx, `
		SELECT id, product_id, variant_id, product_name, variant_name, sku, image_url,
		       options, unit_price, quantity, discount, line_total
		FROM order_items WHERE order_id = $1 ORDER BY created_at`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		it := Item{OrderID: o.ID}
		if err := rows.Scan(&it.ID, &it.ProductID, &it.VariantID, &it.ProductName, &it.VariantName,
			&it.SKU, &it.ImageURL, &it.Options, &it.UnitPrice, &it.Quantity, &it.Discount, &it.LineTotal); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, it)
	}
	return &o, rows.Err()
}

// Insert writes the order, its items, and its notes. Run it on the same
// transaction as the stock reservation.
func (r *Repo) Insert(ctx context.Context, q postgres.DBTX, o *Order) error {
	shipJSON, err := encodeAddress(o.ShippingAddress)
	if err != nil {
		return err
	}
	billJSON, err := encodeAddress(o.BillingAddress)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `
		INSERT INTO orders(id, number, tenant_id, customer_id, customer_email, customer_name, customer_phone,
		                   shipping_address, billing_address, shipping_method, shipping_cost,
		                   subtotal, discount, tax, grand_total, currency, coupon_code,
		                   payment_method, payment_gateway_id, session_id, external_id,
		                   status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)`,
		o.ID, o.Number, o.TenantID, o.CustomerID, o.CustomerEmail, o.CustomerName, o.CustomerPhone,
		shipJSON, billJSON, o.ShippingMethod, o.ShippingCost,
		o.Subtotal, o.Discount, o.Tax, o.GrandTotal, o.Currency, o.CouponCode,
		o.PaymentMethod, o.PaymentGatewayID, nullable(o.SessionID), nullable(o.ExternalID),
		string(o.Status), o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, it := range o.Items {
		if _, err := q.Exec(ctx, `
			INSERT INTO order_items(id, order_id, product_id, variant_id, product_name, variant_name,
			                        sku, image_url, options, unit_price, quantity, discount, line_total, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
			it.ID, o.ID, it.ProductID, it.VariantID, it.ProductName, it.VariantName,
			it.SKU, it.ImageURL, it.Options, it.UnitPrice, it.Quantity, it.Discount, it.LineTotal,
			o.CreatedAt); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	for _, n := range o.Notes {
		if _, err := q.Exec(ctx, `
			INSERT INTO order_notes(order_id, author_id, text, internal, created_at)
			VALUES ($1,$2,$3,$4,$5)`,
			o.ID, n.AuthorID, n.Text, n.Internal, n.CreatedAt); err != nil {
			return fmt.Errorf("insert order note: %w", err)
		}
	}
	return nil
}

// UpdateStatus writes the new status iff the row still carries the status
// the caller loaded, mirroring the session repo's version guard. A
// concurrent transition surfaces as Conflict, so two cancels of the same
// order cannot both run the release path.
func (r *Repo) UpdateStatus(ctx context.Context, q postgres.DBTX, o *Order, from Status) error {
	ct, err := q.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4`,
		o.ID, string(o.Status), o.UpdatedAt, string(from))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return &errs.ConflictError{Entity: "order", ID: o.ID}
	}
	return nil
}

func encodeAddress(a *checkout.Address) ([]byte, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

func decodeAddress(b []byte) (*checkout.Address, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var a checkout.Address
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
