package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-checkout-orders.git/internal/errs"
	"github.com/ariefcatur/go-checkout-orders.git/internal/metrics"
	"github.com/ariefcatur/go-checkout-orders.git/internal/orders"
)

type OrdersHandler struct {
	Orders  *orders.Service
	Metrics *metrics.Metrics
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.create)
	r.Get("/orders/{id}", h.get)
	r.Post("/orders/{id}/cancel", h.cancel)
}

type createOrderItemReq struct {
	VariantID string           `json:"variant_id"`
	Quantity  int              `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
	Discount  decimal.Decimal  `json:"discount"`
}

type createOrderReq struct {
	ExternalID string `json:"external_id"`
	TenantID   string `json:"tenant_id"`
	ActorID    string `json:"actor_id"`

	CustomerID    string `json:"customer_id"`
	CustomerEmail string `json:"customer_email"`
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`

	ShippingAddress *addressReq     `json:"shipping_address"`
	BillingAddress  *addressReq     `json:"billing_address"`
	ShippingMethod  string          `json:"shipping_method"`
	ShippingCost    decimal.Decimal `json:"shipping_cost"`

	Discount   decimal.Decimal `json:"discount"`
	Tax        decimal.Decimal `json:"tax"`
	Currency   string          `json:"currency"`
	CouponCode string          `json:"coupon_code"`

	PaymentMethod    string `json:"payment_method"`
	PaymentGatewayID string `json:"payment_gateway_id"`
	PaymentStatus    string `json:"payment_status"`

	Note  string               `json:"note"`
	Items []createOrderItemReq `json:"items"`
}

func (h *OrdersHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createOrderReq
	if !decode(w, r, &req) {
		return
	}
	if req.CustomerEmail == "" || len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}

	cmd := orders.CreateOrderCommand{
		ExternalID: req.ExternalID,
		TenantID:   req.TenantID,
		ActorID:    req.ActorID,

		CustomerID:    req.CustomerID,
		CustomerEmail: req.CustomerEmail,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,

		ShippingMethod: req.ShippingMethod,
		ShippingCost:   req.ShippingCost,

		Discount:   req.Discount,
		Tax:        req.Tax,
		Currency:   req.Currency,
		CouponCode: req.CouponCode,

		PaymentMethod:    req.PaymentMethod,
		PaymentGatewayID: req.PaymentGatewayID,
		PaymentStatus:    req.PaymentStatus,

		Note:    req.Note,
		TraceID: r.Header.Get("X-Request-Id"),
	}
	if req.ShippingAddress != nil {
		a := req.ShippingAddress.toAddress()
		cmd.ShippingAddress = &a
	}
	if req.BillingAddress != nil {
		a := req.BillingAddress.toAddress()
		cmd.BillingAddress = &a
	}
	for _, it := range req.Items {
		cmd.Items = append(cmd.Items, orders.CreateOrderItem{
			VariantID: it.VariantID, Quantity: it.Quantity,
			UnitPrice: it.UnitPrice, Discount: it.Discount,
		})
	}

	order, existed, err := h.Orders.CreateOrder(r.Context(), cmd)
	if err != nil {
		var stock *errs.InsufficientStockError
		if h.Metrics != nil && errors.As(err, &stock) {
			h.Metrics.ReservationsRejected.Inc()
		}
		writeError(w, err)
		return
	}
	if h.Metrics != nil && !existed {
		h.Metrics.ReservationsOK.Inc()
	}

	code := http.StatusCreated
	if existed {
		code = http.StatusOK
	}
	writeJSON(w, code, map[string]any{
		"order_id":     order.ID,
		"order_number": order.Number,
		"grand_total":  order.GrandTotal,
		"currency":     order.Currency,
		"status":       string(order.Status),
		"idempotent":   existed,
	})
}

type orderItemResp struct {
	ProductID   string          `json:"product_id"`
	VariantID   string          `json:"variant_id"`
	ProductName string          `json:"product_name"`
	VariantName string          `json:"variant_name"`
	SKU         string          `json:"sku"`
	ImageURL    string          `json:"image_url,omitempty"`
	Options     string          `json:"options,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	Discount    decimal.Decimal `json:"discount"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	order, err := h.Orders.Repo.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	items := make([]orderItemResp, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, orderItemResp{
			ProductID: it.ProductID, VariantID: it.VariantID,
			ProductName: it.ProductName, VariantName: it.VariantName,
			SKU: it.SKU, ImageURL: it.ImageURL, Options: it.Options,
			UnitPrice: it.UnitPrice, Quantity: it.Quantity,
			Discount: it.Discount, LineTotal: it.LineTotal,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order_id":         order.ID,
		"order_number":     order.Number,
		"status":           string(order.Status),
		"customer_email":   order.CustomerEmail,
		"shipping_address": order.ShippingAddress,
		"billing_address":  order.BillingAddress,
		"subtotal":         order.Subtotal,
		"discount":         order.Discount,
		"shipping_cost":    order.ShippingCost,
		"tax":              order.Tax,
		"grand_total":      order.GrandTotal,
		"currency":         order.Currency,
		"items":            items,
	})
}

func (h *OrdersHandler) cancel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ActorID string `json:"actor_id"`
	}
	// body optional
	_ = json.NewDecoder(r.Body).Decode(&req)

	if err := h.Orders.CancelOrder(r.Context(), chi.URLParam(r, "id"), req.ActorID, r.Header.Get("X-Request-Id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "CANCELLED"})
}
