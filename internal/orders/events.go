package orders

import "github.com/shopspring/decimal"

const (
	TopicOrderCreated   = "order.created"
	TopicOrderCancelled = "order.cancelled"
)

const (
	EventOrderCreated   = "OrderCreated"
	EventOrderCancelled = "OrderCancelled"
)

type ItemSnapshot struct {
	VariantID string          `json:"variant_id"`
	SKU       string          `json:"sku"`
	Qty       int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type OrderCreatedPayload struct {
	OrderID    string          `json:"order_id"`
	Number     string          `json:"number"`
	TenantID   string          `json:"tenant_id,omitempty"`
	SessionID  string          `json:"session_id,omitempty"`
	ExternalID string          `json:"external_id,omitempty"`
	Items      []ItemSnapshot  `json:"items"`
	GrandTotal decimal.Decimal `json:"grand_total"`
	Currency   string          `json:"currency"`
}

type OrderCancelledPayload struct {
	OrderID string `json:"order_id"`
	Number  string `json:"number"`
	Reason  string `json:"reason,omitempty"`
}
