package checkout

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-checkout-orders.git/internal/errs"
	"github.com/ariefcatur/go-checkout-orders.git/internal/money"
)

// DefaultTTL is how long a fresh session stays valid before the expirer
// may mark it expired. ExtendExpiration pushes it forward.
const DefaultTTL = 15 * time.Minute

type PaymentMethod string

const (
	PaymentCard         PaymentMethod = "CARD"
	PaymentEWallet      PaymentMethod = "E_WALLET"
	PaymentQR           PaymentMethod = "QR"
	PaymentBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentCOD          PaymentMethod = "COD"
	PaymentInstallment  PaymentMethod = "INSTALLMENT"
	PaymentBNPL         PaymentMethod = "BNPL"
	PaymentDebit        PaymentMethod = "DEBIT"
)

var paymentMethods = map[PaymentMethod]bool{
	PaymentCard: true, PaymentEWallet: true, PaymentQR: true,
	PaymentBankTransfer: true, PaymentCOD: true, PaymentInstallment: true,
	PaymentBNPL: true, PaymentDebit: true,
}

type Address struct {
	Name       string `json:"name"`
	Phone      string `json:"phone,omitempty"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	Ward       string `json:"ward,omitempty"`
	District   string `json:"district,omitempty"`
	Province   string `json:"province,omitempty"`
	Country    string `json:"country"`
	PostalCode string `json:"postal_code,omitempty"`
}

// BillingPolicy is a tagged choice: either mirror the shipping address or
// use an explicit one. Keeps "same as shipping but different address"
// unrepresentable.
type BillingPolicy struct {
	mirror bool
	addr   Address
}

func MirrorShipping() BillingPolicy { return BillingPolicy{mirror: true} }

func ExplicitBilling(a Address) BillingPolicy { return BillingPolicy{addr: a} }

// Session is the checkout aggregate. Mutate it only through its methods;
// they keep GrandTotal consistent, guard terminal statuses, and buffer the
// domain events to publish after commit.
type Session struct {
	ID       string
	CartID   string
	TenantID string
	UserID   string // empty = guest

	CustomerEmail string
	CustomerName  string
	CustomerPhone string

	Subtotal     decimal.Decimal
	Discount     decimal.Decimal
	ShippingCost decimal.Decimal
	Tax          decimal.Decimal
	GrandTotal   decimal.Decimal
	Currency     string

	ShippingAddress       *Address
	BillingAddress        *Address
	BillingSameAsShipping bool

	ShippingMethod    string
	EstimatedDelivery *time.Time

	PaymentMethod    PaymentMethod
	PaymentGatewayID string

	CouponCode string

	Status         Status
	CreatedAt      time.Time
	LastActivityAt time.Time
	ExpiresAt      time.Time

	// set on completion only
	OrderID     string
	OrderNumber string

	Version int // optimistic concurrency token, bumped by the repo

	events []Event
}

// New creates a session in STARTED from a cart. Billing mirrors shipping
// until overridden.
func New(cartID, email string, subtotal decimal.Decimal, currency, userID, tenantID string) (*Session, error) {
	switch {
	case cartID == "":
		return nil, &errs.ValidationError{Msg: "cart id is required"}
	case email == "":
		return nil, &errs.ValidationError{Msg: "customer email is required"}
	case currency == "":
		return nil, &errs.ValidationError{Msg: "currency is required"}
	case subtotal.IsNegative():
		return nil, &errs.ValidationError{Msg: "subtotal must not be negative"}
	}

	now := time.Now().UTC()
	s := &Session{
		ID:                    uuid.NewString(),
		CartID:                cartID,
		TenantID:              tenantID,
		UserID:                userID,
		CustomerEmail:         email,
		Subtotal:              subtotal,
		Discount:              decimal.Zero,
		ShippingCost:          decimal.Zero,
		Tax:                   decimal.Zero,
		Currency:              currency,
		BillingSameAsShipping: true,
		Status:                StatusStarted,
		CreatedAt:             now,
		LastActivityAt:        now,
		ExpiresAt:             now.Add(DefaultTTL),
	}
	s.recompute()
	s.emit(SessionCreated{
		SessionID: s.ID, CartID: cartID, TenantID: tenantID, UserID: userID,
		Subtotal: subtotal, Currency: currency,
	})
	return s, nil
}

func (s *Session) emit(e Event) { s.events = append(s.events, e) }

// PullEvents returns the buffered events and clears the buffer. The
// orchestration layer publishes them after a successful commit.
func (s *Session) PullEvents() []Event {
	out := s.events
	s.events = nil
	return out
}

func (s *Session) recompute() {
	s.GrandTotal = money.GrandTotal(s.Subtotal, s.Discount, s.ShippingCost, s.Tax)
}

func (s *Session) touch() { s.LastActivityAt = time.Now().UTC() }

func (s *Session) guard(op string) error {
	if s.Status.IsTerminal() {
		return &errs.InvalidStateError{Op: op, Status: string(s.Status)}
	}
	return nil
}

// transition moves to a new status through the central table and emits a
// status-changed event. Caller has already guarded business rules.
func (s *Session) transition(to Status) error {
	if !CanTransition(s.Status, to) {
		return &errs.InvalidStateError{Op: "transition to " + string(to), Status: string(s.Status)}
	}
	old := s.Status
	s.Status = to
	s.emit(SessionStatusChanged{SessionID: s.ID, Old: old, New: to})
	return nil
}

// SetCustomerInfo updates contact fields. An empty email never overwrites
// an existing one.
func (s *Session) SetCustomerInfo(name, phone, email string) error {
	if err := s.guard("set customer info"); err != nil {
		return err
	}
	if name != "" {
		s.CustomerName = name
	}
	if phone != "" {
		s.CustomerPhone = phone
	}
	if email != "" {
		s.CustomerEmail = email
	}
	s.touch()
	return nil
}

// SetShippingAddress stores the address and, while billing mirrors
// shipping, mirrors it to billing. The first call moves STARTED to
// ADDRESS_COMPLETE; later calls update in place.
func (s *Session) SetShippingAddress(addr Address) error {
	if err := s.guard("set shipping address"); err != nil {
		return err
	}
	a := addr
	s.ShippingAddress = &a
	if s.BillingSameAsShipping {
		b := addr
		s.BillingAddress = &b
	}
	s.emit(AddressSet{SessionID: s.ID, AddressType: AddressTypeShipping})
	if s.Status == StatusStarted {
		if err := s.transition(StatusAddressComplete); err != nil {
			return err
		}
	}
	s.ExtendExpiration(0)
	s.touch()
	return nil
}

func (s *Session) SetBillingAddress(p BillingPolicy) error {
	if err := s.guard("set billing address"); err != nil {
		return err
	}
	if p.mirror {
		s.BillingSameAsShipping = true
		if s.ShippingAddress != nil {
			b := *s.ShippingAddress
			s.BillingAddress = &b
		}
	} else {
		s.BillingSameAsShipping = false
		b := p.addr
		s.BillingAddress = &b
	}
	s.emit(AddressSet{SessionID: s.ID, AddressType: AddressTypeBilling})
	s.touch()
	return nil
}

// SelectShippingMethod requires a shipping address. The first selection
// moves ADDRESS_COMPLETE to SHIPPING_SELECTED; re-selection just updates
// the method and cost.
func (s *Session) SelectShippingMethod(method string, cost decimal.Decimal, estimatedDelivery *time.Time) error {
	if err := s.guard("select shipping method"); err != nil {
		return err
	}
	if s.ShippingAddress == nil {
		return &errs.InvalidStateError{
			Status: string(s.Status),
			Reason: "shipping address must be set before selecting shipping method",
		}
	}
	s.ShippingMethod = method
	s.ShippingCost = cost
	s.EstimatedDelivery = estimatedDelivery
	s.recompute()
	s.emit(ShippingSelected{SessionID: s.ID, Method: method, Cost: cost})
	if s.Status == StatusAddressComplete {
		if err := s.transition(StatusShippingSelected); err != nil {
			return err
		}
	}
	s.touch()
	return nil
}

// SelectPaymentMethod records the method and moves to PAYMENT_PENDING.
// The gateway id is optional (COD has none).
func (s *Session) SelectPaymentMethod(method PaymentMethod, gatewayID string) error {
	if err := s.guard("select payment method"); err != nil {
		return err
	}
	if !paymentMethods[method] {
		return &errs.ValidationError{Msg: "unknown payment method: " + string(method)}
	}
	s.PaymentMethod = method
	s.PaymentGatewayID = gatewayID
	if s.Status != StatusPaymentPending {
		if err := s.transition(StatusPaymentPending); err != nil {
			return err
		}
	}
	s.touch()
	return nil
}

func (s *Session) ApplyCoupon(code string, discount decimal.Decimal) error {
	if err := s.guard("apply coupon"); err != nil {
		return err
	}
	if code == "" {
		return &errs.ValidationError{Msg: "coupon code is required"}
	}
	// discount > subtotal is not rejected here; the grand total may go
	// negative and the business-rule layer decides whether to clamp.
	s.CouponCode = code
	s.Discount = discount
	s.recompute()
	s.touch()
	return nil
}

func (s *Session) RemoveCoupon() error {
	if err := s.guard("remove coupon"); err != nil {
		return err
	}
	s.CouponCode = ""
	s.Discount = decimal.Zero
	s.recompute()
	s.touch()
	return nil
}

func (s *Session) SetTax(amount decimal.Decimal) error {
	if err := s.guard("set tax"); err != nil {
		return err
	}
	s.Tax = amount
	s.recompute()
	s.touch()
	return nil
}

// MarkAsPaymentProcessing is valid from PAYMENT_PENDING or
// SHIPPING_SELECTED (COD and direct-capture flows skip explicit pending).
func (s *Session) MarkAsPaymentProcessing() error {
	if s.Status != StatusPaymentPending && s.Status != StatusShippingSelected {
		return &errs.InvalidStateError{
			Status: string(s.Status),
			Reason: "cannot start payment processing in " + string(s.Status) + " status",
		}
	}
	if err := s.transition(StatusPaymentProcessing); err != nil {
		return err
	}
	s.touch()
	return nil
}

// Complete links the resulting order and closes the session. Valid from
// PAYMENT_PROCESSING or PAYMENT_PENDING (COD completes without an
// explicit processing step).
func (s *Session) Complete(orderID, orderNumber string) error {
	if s.Status != StatusPaymentProcessing && s.Status != StatusPaymentPending {
		return &errs.InvalidStateError{
			Status: string(s.Status),
			Reason: "cannot complete checkout in " + string(s.Status) + " status",
		}
	}
	if err := s.transition(StatusCompleted); err != nil {
		return err
	}
	s.OrderID = orderID
	s.OrderNumber = orderNumber
	s.emit(CheckoutCompleted{
		SessionID: s.ID, OrderID: orderID, OrderNumber: orderNumber,
		GrandTotal: s.GrandTotal,
	})
	s.touch()
	return nil
}

// MarkAsExpired is idempotent: a second call, or a call on any terminal
// session (a completed session is never retroactively expired), is a
// no-op with no event.
func (s *Session) MarkAsExpired() error {
	if s.Status.IsTerminal() {
		return nil
	}
	if err := s.transition(StatusExpired); err != nil {
		return err
	}
	s.emit(CheckoutExpired{SessionID: s.ID, ExpiredAt: time.Now().UTC()})
	s.touch()
	return nil
}

// ExpireIfDue expires the session only when its expiry has actually
// passed. The sweeper's candidate scan can be stale by the time the
// session is reloaded (an extension may have committed in between), so
// the freshly-loaded timestamp decides, not the scan.
func (s *Session) ExpireIfDue() error {
	if !s.IsExpired() {
		return nil
	}
	return s.MarkAsExpired()
}

// MarkAsAbandoned follows the same idempotency rules as MarkAsExpired.
func (s *Session) MarkAsAbandoned() error {
	if s.Status.IsTerminal() {
		return nil
	}
	old := s.Status
	if err := s.transition(StatusAbandoned); err != nil {
		return err
	}
	s.emit(CheckoutAbandoned{SessionID: s.ID, LastStatus: old})
	s.touch()
	return nil
}

// ExtendExpiration pushes the expiry forward from now. minutes <= 0 means
// the default 15. No-op on terminal sessions.
func (s *Session) ExtendExpiration(minutes int) {
	if s.Status.IsTerminal() {
		return
	}
	ttl := DefaultTTL
	if minutes > 0 {
		ttl = time.Duration(minutes) * time.Minute
	}
	s.ExpiresAt = time.Now().UTC().Add(ttl)
}

// IsExpired reports "past its expiry but not yet marked". Once a session
// is explicitly EXPIRED (or otherwise terminal) the status is
// authoritative and this returns false.
func (s *Session) IsExpired() bool {
	if s.Status.IsTerminal() {
		return false
	}
	return time.Now().UTC().After(s.ExpiresAt)
}
