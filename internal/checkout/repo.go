package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-checkout-orders.git/internal/errs"
	"github.com/ariefcatur/go-checkout-orders.git/internal/postgres"
)

// Repo persists sessions with an optimistic version column. A customer
// drives one session at a time, so a version mismatch means a lost update
// and surfaces as Conflict instead of silently overwriting.
type Repo struct {
	Q postgres.DBTX
}

func (r *Repo) Insert(ctx context.Context, q postgres.DBTX, s *Session) error {
	shipJSON, err := encodeAddr(s.ShippingAddress)
	if err != nil {
		return err
	}
	billJSON, err := encodeAddr(s.BillingAddress)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `
		INSERT INTO checkout_sessions(id, cart_id, tenant_id, user_id,
		    customer_email, customer_name, customer_phone,
		    subtotal, discount, shipping_cost, tax, grand_total, currency,
		    shipping_address, billing_address, billing_same_as_shipping,
		    shipping_method, estimated_delivery, payment_method, payment_gateway_id,
		    coupon_code, status, created_at, last_activity_at, expires_at,
		    order_id, order_number, version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28)`,
		s.ID, s.CartID, s.TenantID, s.UserID,
		s.CustomerEmail, s.CustomerName, s.CustomerPhone,
		s.Subtotal, s.Discount, s.ShippingCost, s.Tax, s.GrandTotal, s.Currency,
		shipJSON, billJSON, s.BillingSameAsShipping,
		s.ShippingMethod, s.EstimatedDelivery, string(s.PaymentMethod), s.PaymentGatewayID,
		s.CouponCode, string(s.Status), s.CreatedAt, s.LastActivityAt, s.ExpiresAt,
		s.OrderID, s.OrderNumber, s.Version)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, id string) (*Session, error) {
	var (
		s                  Session
		status, payMethod  string
		shipJSON, billJSON []byte
		eta                *time.Time
	)
	err := r.Q.QueryRow(ctx, `
		SELECT id, cart_id, tenant_id, user_id,
		       customer_email, customer_name, customer_phone,
		       subtotal, discount, shipping_cost, tax, grand_total, currency,
		       shipping_address, billing_address, billing_same_as_shipping,
		       shipping_method, estimated_delivery, payment_method, payment_gateway_id,
		       coupon_code, status, created_at, last_activity_at, expires_at,
		       order_id, order_number, version
		FROM checkout_sessions WHERE id = $1`, id).Scan(
		&s.ID, &s.CartID, &s.TenantID, &s.UserID,
		&s.CustomerEmail, &s.CustomerName, &s.CustomerPhone,
		&s.Subtotal, &s.Discount, &s.ShippingCost, &s.Tax, &s.GrandTotal, &s.Currency,
		&shipJSON, &billJSON, &s.BillingSameAsShipping,
		&s.ShippingMethod, &eta, &payMethod, &s.PaymentGatewayID,
		&s.CouponCode, &status, &s.CreatedAt, &s.LastActivityAt, &s.ExpiresAt,
		&s.OrderID, &s.OrderNumber, &s.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &errs.NotFoundError{Entity: "checkout session", ID: id}
	}
	if err != nil {
		return nil, err
	}
	s.Status = Status(status)
	s.PaymentMethod = PaymentMethod(payMethod)
	s.EstimatedDelivery = eta
	if s.ShippingAddress, err = decodeAddr(shipJSON); err != nil {
		return nil, err
	}
	if s.BillingAddress, err = decodeAddr(billJSON); err != nil {
		return nil, err
	}
	return &s, nil
}

// Update saves the session iff the loaded version is still current,
// bumping it on success.
func (r *Repo) Update(ctx context.Context, q postgres.DBTX, s *Session) error {
	shipJSON, err := encodeAddr(s.ShippingAddress)
	if err != nil {
		return err
	}
	billJSON, err := encodeAddr(s.BillingAddress)
	if err != nil {
		return err
	}
	ct, err := q.Exec(ctx, `
		UPDATE checkout_sessions SET
		    customer_email=$2, customer_name=$3, customer_phone=$4,
		    subtotal=$5, discount=$6, shipping_cost=$7, tax=$8, grand_total=$9,
		    shipping_address=$10, billing_address=$11, billing_same_as_shipping=$12,
		    shipping_method=$13, estimated_delivery=$14, payment_method=$15, payment_gateway_id=$16,
		    coupon_code=$17, status=$18, last_activity_at=$19, expires_at=$20,
		    order_id=$21, order_number=$22, version = version + 1
		WHERE id = $1 AND version = $23`,
		s.ID,
		s.CustomerEmail, s.CustomerName, s.CustomerPhone,
		s.Subtotal, s.Discount, s.ShippingCost, s.Tax, s.GrandTotal,
		shipJSON, billJSON, s.BillingSameAsShipping,
		s.ShippingMethod, s.EstimatedDelivery, string(s.PaymentMethod), s.PaymentGatewayID,
		s.CouponCode, string(s.Status), s.LastActivityAt, s.ExpiresAt,
		s.OrderID, s.OrderNumber, s.Version)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return &errs.ConflictError{Entity: "checkout session", ID: s.ID}
	}
	s.Version++
	return nil
}

// FindExpiredIDs lists active sessions whose expiry has passed, for the
// sweeper.
func (r *Repo) FindExpiredIDs(ctx context.Context, now time.Time, limit int) ([]string, error) {
	rows, err := r.Q.Query(ctx, `
		SELECT id FROM checkout_sessions
		WHERE expires_at < $1
		  AND status NOT IN ($2, $3, $4)
		ORDER BY expires_at
		LIMIT $5`,
		now, string(StatusCompleted), string(StatusExpired), string(StatusAbandoned), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func encodeAddr(a *Address) ([]byte, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

func decodeAddr(b []byte) (*Address, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var a Address
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, err
	}
	return &a, nil
}
