package checkout

import (
	"time"

	"github.com/shopspring/decimal"
)

// All session events share one topic so a partition keeps one session's
// events in order (partition key = session id).
const TopicSessionEvents = "checkout.session.events"

const (
	EventSessionCreated    = "CheckoutSessionCreated"
	EventStatusChanged     = "CheckoutSessionStatusChanged"
	EventAddressSet        = "CheckoutAddressSet"
	EventShippingSelected  = "CheckoutShippingSelected"
	EventCheckoutCompleted = "CheckoutCompleted"
	EventCheckoutExpired   = "CheckoutExpired"
	EventCheckoutAbandoned = "CheckoutAbandoned"
)

const (
	AddressTypeShipping = "SHIPPING"
	AddressTypeBilling  = "BILLING"
)

// Event is one domain event raised by a session transition. Events are
// buffered on the aggregate and drained via PullEvents after the
// surrounding operation commits.
type Event interface {
	EventType() string
}

type SessionCreated struct {
	SessionID string          `json:"session_id"`
	CartID    string          `json:"cart_id"`
	TenantID  string          `json:"tenant_id,omitempty"`
	UserID    string          `json:"user_id,omitempty"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Currency  string          `json:"currency"`
}

func (SessionCreated) EventType() string { return EventSessionCreated }

type SessionStatusChanged struct {
	SessionID string `json:"session_id"`
	Old       Status `json:"old"`
	New       Status `json:"new"`
}

func (SessionStatusChanged) EventType() string { return EventStatusChanged }

type AddressSet struct {
	SessionID   string `json:"session_id"`
	AddressType string `json:"address_type"` // SHIPPING | BILLING
}

func (AddressSet) EventType() string { return EventAddressSet }

type ShippingSelected struct {
	SessionID string          `json:"session_id"`
	Method    string          `json:"method"`
	Cost      decimal.Decimal `json:"cost"`
}

func (ShippingSelected) EventType() string { return EventShippingSelected }

type CheckoutCompleted struct {
	SessionID   string          `json:"session_id"`
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	GrandTotal  decimal.Decimal `json:"grand_total"`
}

func (CheckoutCompleted) EventType() string { return EventCheckoutCompleted }

type CheckoutExpired struct {
	SessionID string    `json:"session_id"`
	ExpiredAt time.Time `json:"expired_at"`
}

func (CheckoutExpired) EventType() string { return EventCheckoutExpired }

type CheckoutAbandoned struct {
	SessionID  string `json:"session_id"`
	LastStatus Status `json:"last_status"`
}

func (CheckoutAbandoned) EventType() string { return EventCheckoutAbandoned }
