package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-checkout-orders.git/internal/checkout"
	"github.com/ariefcatur/go-checkout-orders.git/internal/errs"
	"github.com/ariefcatur/go-checkout-orders.git/internal/metrics"
	"github.com/ariefcatur/go-checkout-orders.git/internal/orders"
)

type CheckoutHandler struct {
	Checkout *checkout.Service
	Orders   *orders.Service
	Metrics  *metrics.Metrics
}

func (h *CheckoutHandler) Register(r *chi.Mux) {
	r.Post("/checkout", h.start)
	r.Get("/checkout/{id}", h.get)
	r.Put("/checkout/{id}/customer", h.setCustomer)
	r.Put("/checkout/{id}/shipping-address", h.setShippingAddress)
	r.Put("/checkout/{id}/billing-address", h.setBillingAddress)
	r.Put("/checkout/{id}/shipping-method", h.selectShippingMethod)
	r.Put("/checkout/{id}/payment-method", h.selectPaymentMethod)
	r.Post("/checkout/{id}/coupon", h.applyCoupon)
	r.Delete("/checkout/{id}/coupon", h.removeCoupon)
	r.Put("/checkout/{id}/tax", h.setTax)
	r.Post("/checkout/{id}/extend", h.extend)
	r.Post("/checkout/{id}/processing", h.markProcessing)
	r.Post("/checkout/{id}/abandon", h.abandon)
	r.Post("/checkout/{id}/complete", h.complete)
}

type addressReq struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	Ward       string `json:"ward"`
	District   string `json:"district"`
	Province   string `json:"province"`
	Country    string `json:"country"`
	PostalCode string `json:"postal_code"`
}

func (a addressReq) toAddress() checkout.Address {
	return checkout.Address{
		Name: a.Name, Phone: a.Phone, Line1: a.Line1, Line2: a.Line2,
		Ward: a.Ward, District: a.District, Province: a.Province,
		Country: a.Country, PostalCode: a.PostalCode,
	}
}

type sessionResp struct {
	ID                    string            `json:"id"`
	CartID                string            `json:"cart_id"`
	Status                string            `json:"status"`
	Subtotal              decimal.Decimal   `json:"subtotal"`
	Discount              decimal.Decimal   `json:"discount"`
	ShippingCost          decimal.Decimal   `json:"shipping_cost"`
	Tax                   decimal.Decimal   `json:"tax"`
	GrandTotal            decimal.Decimal   `json:"grand_total"`
	Currency              string            `json:"currency"`
	CouponCode            string            `json:"coupon_code,omitempty"`
	ShippingAddress       *checkout.Address `json:"shipping_address,omitempty"`
	BillingAddress        *checkout.Address `json:"billing_address,omitempty"`
	BillingSameAsShipping bool              `json:"billing_same_as_shipping"`
	ShippingMethod        string            `json:"shipping_method,omitempty"`
	EstimatedDelivery     *time.Time        `json:"estimated_delivery,omitempty"`
	PaymentMethod         string            `json:"payment_method,omitempty"`
	PaymentGatewayID      string            `json:"payment_gateway_id,omitempty"`
	ExpiresAt             time.Time         `json:"expires_at"`
	OrderID               string            `json:"order_id,omitempty"`
	OrderNumber           string            `json:"order_number,omitempty"`
}

func toSessionResp(s *checkout.Session) sessionResp {
	return sessionResp{
		ID: s.ID, CartID: s.CartID, Status: string(s.Status),
		Subtotal: s.Subtotal, Discount: s.Discount, ShippingCost: s.ShippingCost,
		Tax: s.Tax, GrandTotal: s.GrandTotal, Currency: s.Currency,
		CouponCode:      s.CouponCode,
		ShippingAddress: s.ShippingAddress, BillingAddress: s.BillingAddress,
		BillingSameAsShipping: s.BillingSameAsShipping,
		ShippingMethod:        s.ShippingMethod, EstimatedDelivery: s.EstimatedDelivery,
		PaymentMethod: string(s.PaymentMethod), PaymentGatewayID: s.PaymentGatewayID,
		ExpiresAt: s.ExpiresAt, OrderID: s.OrderID, OrderNumber: s.OrderNumber,
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return false
	}
	return true
}

func (h *CheckoutHandler) start(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CartID   string          `json:"cart_id"`
		Email    string          `json:"email"`
		Subtotal decimal.Decimal `json:"subtotal"`
		Currency string          `json:"currency"`
		UserID   string          `json:"user_id"`
		TenantID string          `json:"tenant_id"`
	}
	if !decode(w, r, &req) {
		return
	}
	sess, err := h.Checkout.Start(r.Context(), checkout.StartCommand{
		CartID: req.CartID, Email: req.Email, Subtotal: req.Subtotal,
		Currency: req.Currency, UserID: req.UserID, TenantID: req.TenantID,
		TraceID: r.Header.Get("X-Request-Id"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResp(sess))
}

func (h *CheckoutHandler) get(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Checkout.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResp(sess))
}

// apply runs one session mutation and writes the updated session.
func (h *CheckoutHandler) apply(w http.ResponseWriter, r *http.Request, mutate func(*checkout.Session) error) {
	sess, err := h.Checkout.Apply(r.Context(), chi.URLParam(r, "id"), r.Header.Get("X-Request-Id"), mutate)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResp(sess))
}

func (h *CheckoutHandler) setCustomer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
		Email string `json:"email"`
	}
	if !decode(w, r, &req) {
		return
	}
	h.apply(w, r, func(s *checkout.Session) error {
		return s.SetCustomerInfo(req.Name, req.Phone, req.Email)
	})
}

func (h *CheckoutHandler) setShippingAddress(w http.ResponseWriter, r *http.Request) {
	var req addressReq
	if !decode(w, r, &req) {
		return
	}
	h.apply(w, r, func(s *checkout.Session) error {
		return s.SetShippingAddress(req.toAddress())
	})
}

func (h *CheckoutHandler) setBillingAddress(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SameAsShipping bool        `json:"same_as_shipping"`
		Address        *addressReq `json:"address"`
	}
	if !decode(w, r, &req) {
		return
	}
	policy := checkout.MirrorShipping()
	if !req.SameAsShipping {
		if req.Address == nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "billing address is required"})
			return
		}
		policy = checkout.ExplicitBilling(req.Address.toAddress())
	}
	h.apply(w, r, func(s *checkout.Session) error {
		return s.SetBillingAddress(policy)
	})
}

func (h *CheckoutHandler) selectShippingMethod(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method            string          `json:"method"`
		Cost              decimal.Decimal `json:"cost"`
		EstimatedDelivery *time.Time      `json:"estimated_delivery"`
	}
	if !decode(w, r, &req) {
		return
	}
	h.apply(w, r, func(s *checkout.Session) error {
		return s.SelectShippingMethod(req.Method, req.Cost, req.EstimatedDelivery)
	})
}

func (h *CheckoutHandler) selectPaymentMethod(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method    string `json:"method"`
		GatewayID string `json:"gateway_id"`
	}
	if !decode(w, r, &req) {
		return
	}
	h.apply(w, r, func(s *checkout.Session) error {
		return s.SelectPaymentMethod(checkout.PaymentMethod(req.Method), req.GatewayID)
	})
}

func (h *CheckoutHandler) applyCoupon(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code     string          `json:"code"`
		Discount decimal.Decimal `json:"discount"`
	}
	if !decode(w, r, &req) {
		return
	}
	h.apply(w, r, func(s *checkout.Session) error {
		return s.ApplyCoupon(req.Code, req.Discount)
	})
}

func (h *CheckoutHandler) removeCoupon(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, func(s *checkout.Session) error {
		return s.RemoveCoupon()
	})
}

func (h *CheckoutHandler) setTax(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if !decode(w, r, &req) {
		return
	}
	h.apply(w, r, func(s *checkout.Session) error {
		return s.SetTax(req.Amount)
	})
}

func (h *CheckoutHandler) extend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Minutes int `json:"minutes"`
	}
	if !decode(w, r, &req) {
		return
	}
	h.apply(w, r, func(s *checkout.Session) error {
		s.ExtendExpiration(req.Minutes)
		return nil
	})
}

func (h *CheckoutHandler) markProcessing(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, func(s *checkout.Session) error {
		return s.MarkAsPaymentProcessing()
	})
}

func (h *CheckoutHandler) abandon(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Checkout.Apply(r.Context(), chi.URLParam(r, "id"), r.Header.Get("X-Request-Id"),
		func(s *checkout.Session) error { return s.MarkAsAbandoned() })
	if err != nil {
		writeError(w, err)
		return
	}
	if h.Metrics != nil {
		h.Metrics.SessionsAbandoned.Inc()
	}
	writeJSON(w, http.StatusOK, toSessionResp(sess))
}

func (h *CheckoutHandler) complete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ActorID string `json:"actor_id"`
	}
	// body optional for this one
	_ = json.NewDecoder(r.Body).Decode(&req)

	order, err := h.Orders.CompleteCheckout(r.Context(), chi.URLParam(r, "id"), req.ActorID, r.Header.Get("X-Request-Id"))
	if err != nil {
		var stock *errs.InsufficientStockError
		if h.Metrics != nil && errors.As(err, &stock) {
			h.Metrics.ReservationsRejected.Inc()
		}
		writeError(w, err)
		return
	}
	if h.Metrics != nil {
		h.Metrics.CheckoutsCompleted.Inc()
		h.Metrics.ReservationsOK.Inc()
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"order_id":     order.ID,
		"order_number": order.Number,
		"grand_total":  order.GrandTotal,
		"currency":     order.Currency,
		"status":       string(order.Status),
	})
}
