package checkout

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-checkout-orders.git/internal/errs"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := New("cart-1", "buyer@example.com", d(500000), "VND", "", "tenant-1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func testAddress() Address {
	return Address{
		Name: "Nguyen Van A", Phone: "0900000001",
		Line1: "12 Le Loi", Ward: "Ben Nghe", District: "1",
		Province: "Ho Chi Minh", Country: "VN",
	}
}

// drive a session to PAYMENT_PENDING via the full happy path
func sessionAtPaymentPending(t *testing.T) *Session {
	t.Helper()
	s := newTestSession(t)
	mustOK(t, s.SetShippingAddress(testAddress()))
	mustOK(t, s.SelectShippingMethod("Express", d(50000), nil))
	mustOK(t, s.SelectPaymentMethod(PaymentCOD, ""))
	return s
}

func mustOK(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func assertInvalidState(t *testing.T, err error, wantStatus Status) {
	t.Helper()
	var ise *errs.InvalidStateError
	if !errors.As(err, &ise) {
		t.Fatalf("want InvalidStateError, got %v", err)
	}
	if !strings.Contains(err.Error(), string(wantStatus)) {
		t.Fatalf("error %q does not name status %s", err.Error(), wantStatus)
	}
}

func TestNewSession(t *testing.T) {
	s := newTestSession(t)

	if s.Status != StatusStarted {
		t.Fatalf("status = %s, want STARTED", s.Status)
	}
	if !s.GrandTotal.Equal(d(500000)) {
		t.Fatalf("grand total = %s, want 500000", s.GrandTotal)
	}
	if !s.BillingSameAsShipping {
		t.Fatal("billing should mirror shipping by default")
	}
	ttl := time.Until(s.ExpiresAt)
	if ttl < 14*time.Minute || ttl > 16*time.Minute {
		t.Fatalf("expiry not ~15m out: %s", ttl)
	}

	evs := s.PullEvents()
	if len(evs) != 1 {
		t.Fatalf("want 1 event, got %d", len(evs))
	}
	if _, ok := evs[0].(SessionCreated); !ok {
		t.Fatalf("want SessionCreated, got %T", evs[0])
	}
	if got := s.PullEvents(); len(got) != 0 {
		t.Fatalf("PullEvents should clear the buffer, got %d", len(got))
	}
}

func TestNewSessionValidation(t *testing.T) {
	cases := []struct {
		name                            string
		cartID, email, currency         string
		subtotal                        decimal.Decimal
	}{
		{"missing cart", "", "a@b.c", "VND", d(1)},
		{"missing email", "cart", "", "VND", d(1)},
		{"missing currency", "cart", "a@b.c", "", d(1)},
		{"negative subtotal", "cart", "a@b.c", "VND", d(-1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.cartID, tc.email, tc.subtotal, tc.currency, "", "")
			var ve *errs.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("want ValidationError, got %v", err)
			}
		})
	}
}

// the end-to-end scenario: address -> shipping -> coupon -> tax -> COD ->
// processing -> complete, checking totals at every step
func TestCheckoutFlow(t *testing.T) {
	s := newTestSession(t)

	mustOK(t, s.SetShippingAddress(testAddress()))
	if s.Status != StatusAddressComplete {
		t.Fatalf("status = %s, want ADDRESS_COMPLETE", s.Status)
	}
	if s.BillingAddress == nil || s.BillingAddress.Line1 != "12 Le Loi" {
		t.Fatal("billing should mirror shipping")
	}

	mustOK(t, s.SelectShippingMethod("Express", d(50000), nil))
	if s.Status != StatusShippingSelected {
		t.Fatalf("status = %s, want SHIPPING_SELECTED", s.Status)
	}
	if !s.GrandTotal.Equal(d(550000)) {
		t.Fatalf("grand total = %s, want 550000", s.GrandTotal)
	}

	mustOK(t, s.ApplyCoupon("SALE", d(100000)))
	if !s.GrandTotal.Equal(d(450000)) {
		t.Fatalf("grand total = %s, want 450000", s.GrandTotal)
	}

	mustOK(t, s.SetTax(d(25000)))
	if !s.GrandTotal.Equal(d(475000)) {
		t.Fatalf("grand total = %s, want 475000", s.GrandTotal)
	}

	mustOK(t, s.SelectPaymentMethod(PaymentCOD, ""))
	if s.Status != StatusPaymentPending {
		t.Fatalf("status = %s, want PAYMENT_PENDING", s.Status)
	}
	if s.PaymentGatewayID != "" {
		t.Fatal("COD should carry no gateway id")
	}

	mustOK(t, s.MarkAsPaymentProcessing())
	if s.Status != StatusPaymentProcessing {
		t.Fatalf("status = %s, want PAYMENT_PROCESSING", s.Status)
	}

	mustOK(t, s.Complete("order-x", "ORD-0001"))
	if s.Status != StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", s.Status)
	}
	if s.OrderNumber != "ORD-0001" || s.OrderID != "order-x" {
		t.Fatalf("order link not stored: %s / %s", s.OrderID, s.OrderNumber)
	}

	// completed session refuses further mutation, naming the status
	err := s.SetShippingAddress(testAddress())
	assertInvalidState(t, err, StatusCompleted)
}

// the invariant: grand total == subtotal - discount + shipping + tax
// after every total-affecting mutation, in any order
func TestGrandTotalInvariant(t *testing.T) {
	s := newTestSession(t)
	mustOK(t, s.SetShippingAddress(testAddress()))

	check := func() {
		t.Helper()
		want := s.Subtotal.Sub(s.Discount).Add(s.ShippingCost).Add(s.Tax)
		if !s.GrandTotal.Equal(want) {
			t.Fatalf("grand total %s != %s", s.GrandTotal, want)
		}
	}

	mustOK(t, s.SetTax(d(10000)))
	check()
	mustOK(t, s.ApplyCoupon("A", d(70000)))
	check()
	mustOK(t, s.SelectShippingMethod("Standard", d(20000), nil))
	check()
	mustOK(t, s.SelectShippingMethod("Express", d(50000), nil))
	check()
	mustOK(t, s.ApplyCoupon("B", d(120000)))
	check()
	mustOK(t, s.RemoveCoupon())
	check()
	mustOK(t, s.SetTax(d(0)))
	check()
}

func TestCouponMayExceedSubtotal(t *testing.T) {
	s := newTestSession(t)
	// not rejected at this layer: grand total goes negative
	mustOK(t, s.ApplyCoupon("HUGE", d(600000)))
	if !s.GrandTotal.Equal(d(-100000)) {
		t.Fatalf("grand total = %s, want -100000", s.GrandTotal)
	}
}

func TestSetCustomerInfoEmailGuard(t *testing.T) {
	s := newTestSession(t)
	mustOK(t, s.SetCustomerInfo("Nguyen Van A", "0900000001", ""))
	if s.CustomerEmail != "buyer@example.com" {
		t.Fatalf("empty email overwrote existing: %q", s.CustomerEmail)
	}
	mustOK(t, s.SetCustomerInfo("", "", "new@example.com"))
	if s.CustomerEmail != "new@example.com" {
		t.Fatalf("email not updated: %q", s.CustomerEmail)
	}
	if s.CustomerName != "Nguyen Van A" {
		t.Fatal("empty name should not clear existing name")
	}
}

func TestShippingMethodRequiresAddress(t *testing.T) {
	s := newTestSession(t)
	err := s.SelectShippingMethod("Express", d(50000), nil)
	var ise *errs.InvalidStateError
	if !errors.As(err, &ise) {
		t.Fatalf("want InvalidStateError, got %v", err)
	}
	if !strings.Contains(err.Error(), "shipping address must be set") {
		t.Fatalf("unexpected message: %q", err.Error())
	}
	if s.ShippingMethod != "" || !s.ShippingCost.IsZero() {
		t.Fatal("failed selection must not partially mutate")
	}
}

func TestAddressUpdateInPlace(t *testing.T) {
	s := newTestSession(t)
	mustOK(t, s.SetShippingAddress(testAddress()))
	s.PullEvents()

	addr2 := testAddress()
	addr2.Line1 = "34 Hai Ba Trung"
	mustOK(t, s.SetShippingAddress(addr2))

	if s.Status != StatusAddressComplete {
		t.Fatalf("re-set address should not change status, got %s", s.Status)
	}
	for _, e := range s.PullEvents() {
		if _, ok := e.(SessionStatusChanged); ok {
			t.Fatal("update in place must not emit a status event")
		}
	}
	if s.ShippingAddress.Line1 != "34 Hai Ba Trung" {
		t.Fatal("address not updated")
	}
	if s.BillingAddress.Line1 != "34 Hai Ba Trung" {
		t.Fatal("mirrored billing not updated")
	}
}

func TestExplicitBillingStopsMirroring(t *testing.T) {
	s := newTestSession(t)
	mustOK(t, s.SetShippingAddress(testAddress()))

	billing := testAddress()
	billing.Line1 = "99 Dong Khoi"
	mustOK(t, s.SetBillingAddress(ExplicitBilling(billing)))
	if s.BillingSameAsShipping {
		t.Fatal("flag should be false after explicit billing")
	}

	addr2 := testAddress()
	addr2.Line1 = "34 Hai Ba Trung"
	mustOK(t, s.SetShippingAddress(addr2))
	if s.BillingAddress.Line1 != "99 Dong Khoi" {
		t.Fatal("explicit billing must not be overwritten by shipping updates")
	}

	mustOK(t, s.SetBillingAddress(MirrorShipping()))
	if !s.BillingSameAsShipping || s.BillingAddress.Line1 != "34 Hai Ba Trung" {
		t.Fatal("mirror policy should re-copy current shipping address")
	}
}

func TestMarkAsPaymentProcessingGuards(t *testing.T) {
	s := newTestSession(t)
	err := s.MarkAsPaymentProcessing()
	assertInvalidState(t, err, StatusStarted)
	if !strings.Contains(err.Error(), "cannot start payment processing") {
		t.Fatalf("unexpected message: %q", err.Error())
	}

	// direct-capture path: SHIPPING_SELECTED may skip explicit pending
	s2 := newTestSession(t)
	mustOK(t, s2.SetShippingAddress(testAddress()))
	mustOK(t, s2.SelectShippingMethod("Standard", d(20000), nil))
	mustOK(t, s2.MarkAsPaymentProcessing())
	if s2.Status != StatusPaymentProcessing {
		t.Fatalf("status = %s, want PAYMENT_PROCESSING", s2.Status)
	}
}

func TestCompleteFromPaymentPending(t *testing.T) {
	// COD completes without an explicit processing step
	s := sessionAtPaymentPending(t)
	mustOK(t, s.Complete("order-1", "ORD-0002"))
	if s.Status != StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", s.Status)
	}
}

func TestCompleteGuards(t *testing.T) {
	s := newTestSession(t)
	assertInvalidState(t, s.Complete("o", "n"), StatusStarted)

	done := sessionAtPaymentPending(t)
	mustOK(t, done.Complete("o", "n"))
	assertInvalidState(t, done.Complete("o2", "n2"), StatusCompleted)
	if done.OrderID != "o" {
		t.Fatal("second complete must not relink the order")
	}
}

func TestCompletedEventCarriesGrandTotal(t *testing.T) {
	s := sessionAtPaymentPending(t)
	s.PullEvents()
	mustOK(t, s.Complete("order-1", "ORD-0003"))

	var completed *CheckoutCompleted
	for _, e := range s.PullEvents() {
		if c, ok := e.(CheckoutCompleted); ok {
			completed = &c
		}
	}
	if completed == nil {
		t.Fatal("no CheckoutCompleted event")
	}
	if !completed.GrandTotal.Equal(s.GrandTotal) {
		t.Fatalf("event total %s != session total %s", completed.GrandTotal, s.GrandTotal)
	}
}

func TestTerminalGuardLeavesFieldsUnchanged(t *testing.T) {
	s := sessionAtPaymentPending(t)
	mustOK(t, s.Complete("order-1", "ORD-0004"))
	before := *s
	s.PullEvents()

	ops := map[string]func() error{
		"customer info":   func() error { return s.SetCustomerInfo("X", "1", "x@y.z") },
		"shipping addr":   func() error { return s.SetShippingAddress(testAddress()) },
		"billing addr":    func() error { return s.SetBillingAddress(MirrorShipping()) },
		"shipping method": func() error { return s.SelectShippingMethod("Slow", d(1), nil) },
		"payment method":  func() error { return s.SelectPaymentMethod(PaymentCard, "gw") },
		"apply coupon":    func() error { return s.ApplyCoupon("C", d(1)) },
		"remove coupon":   func() error { return s.RemoveCoupon() },
		"set tax":         func() error { return s.SetTax(d(1)) },
	}
	for name, op := range ops {
		err := op()
		assertInvalidState(t, err, StatusCompleted)
		if s.GrandTotal != before.GrandTotal || s.Status != before.Status ||
			s.CouponCode != before.CouponCode || s.ShippingMethod != before.ShippingMethod {
			t.Fatalf("%s partially mutated a terminal session", name)
		}
	}
	if len(s.PullEvents()) != 0 {
		t.Fatal("failed mutations must not emit events")
	}
}

func TestMarkAsExpiredIdempotent(t *testing.T) {
	s := newTestSession(t)
	s.PullEvents()

	mustOK(t, s.MarkAsExpired())
	if s.Status != StatusExpired {
		t.Fatalf("status = %s, want EXPIRED", s.Status)
	}
	first := s.PullEvents()
	if len(first) != 2 { // status change + expired
		t.Fatalf("want 2 events, got %d", len(first))
	}

	mustOK(t, s.MarkAsExpired())
	if got := s.PullEvents(); len(got) != 0 {
		t.Fatalf("second MarkAsExpired emitted %d events", len(got))
	}
}

func TestCompletedSessionNeverExpires(t *testing.T) {
	s := sessionAtPaymentPending(t)
	mustOK(t, s.Complete("order-1", "ORD-0005"))
	s.PullEvents()

	mustOK(t, s.MarkAsExpired())
	if s.Status != StatusCompleted {
		t.Fatalf("completed session was retroactively expired: %s", s.Status)
	}
	if len(s.PullEvents()) != 0 {
		t.Fatal("no event expected")
	}
}

func TestMarkAsAbandoned(t *testing.T) {
	s := newTestSession(t)
	mustOK(t, s.SetShippingAddress(testAddress()))
	s.PullEvents()

	mustOK(t, s.MarkAsAbandoned())
	if s.Status != StatusAbandoned {
		t.Fatalf("status = %s, want ABANDONED", s.Status)
	}
	var ab *CheckoutAbandoned
	for _, e := range s.PullEvents() {
		if a, ok := e.(CheckoutAbandoned); ok {
			ab = &a
		}
	}
	if ab == nil || ab.LastStatus != StatusAddressComplete {
		t.Fatalf("abandoned event should carry last status, got %+v", ab)
	}

	mustOK(t, s.MarkAsAbandoned())
	if len(s.PullEvents()) != 0 {
		t.Fatal("second abandon emitted events")
	}
}

func TestIsExpired(t *testing.T) {
	s := newTestSession(t)
	if s.IsExpired() {
		t.Fatal("fresh session should not be expired")
	}

	s.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	if !s.IsExpired() {
		t.Fatal("past expiry should report expired")
	}

	// once explicitly marked, the status is authoritative
	mustOK(t, s.MarkAsExpired())
	if s.IsExpired() {
		t.Fatal("explicitly expired session should report false")
	}
}

func TestExpireIfDue(t *testing.T) {
	s := newTestSession(t)
	s.PullEvents()

	// still live: a stale sweeper candidate list must not kill it
	mustOK(t, s.ExpireIfDue())
	if s.Status != StatusStarted {
		t.Fatalf("live session expired: %s", s.Status)
	}
	if len(s.PullEvents()) != 0 {
		t.Fatal("no-op must not emit events")
	}

	// an extension committed after the scan wins
	s.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	s.ExtendExpiration(30)
	mustOK(t, s.ExpireIfDue())
	if s.Status != StatusStarted {
		t.Fatalf("extended session expired: %s", s.Status)
	}

	s.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	mustOK(t, s.ExpireIfDue())
	if s.Status != StatusExpired {
		t.Fatalf("status = %s, want EXPIRED", s.Status)
	}
	if len(s.PullEvents()) != 2 { // status change + expired
		t.Fatal("expiry should emit its events")
	}
}

func TestExpireIfDueLeavesCompletedAlone(t *testing.T) {
	s := sessionAtPaymentPending(t)
	mustOK(t, s.Complete("order-1", "ORD-0006"))
	s.PullEvents()

	s.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	mustOK(t, s.ExpireIfDue())
	if s.Status != StatusCompleted {
		t.Fatalf("completed session expired: %s", s.Status)
	}
	if len(s.PullEvents()) != 0 {
		t.Fatal("no event expected")
	}
}

func TestExtendExpiration(t *testing.T) {
	s := newTestSession(t)
	s.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	s.ExtendExpiration(30)
	if s.IsExpired() {
		t.Fatal("extension should clear expiry")
	}
	if time.Until(s.ExpiresAt) < 29*time.Minute {
		t.Fatal("extension should be ~30m")
	}

	mustOK(t, s.MarkAsExpired())
	was := s.ExpiresAt
	s.ExtendExpiration(30)
	if !s.ExpiresAt.Equal(was) {
		t.Fatal("terminal session expiry must not move")
	}
}

func TestSelectPaymentMethodValidation(t *testing.T) {
	s := newTestSession(t)
	err := s.SelectPaymentMethod(PaymentMethod("CHEQUE"), "")
	var ve *errs.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("want ValidationError, got %v", err)
	}
	if s.Status != StatusStarted {
		t.Fatal("failed selection must not transition")
	}

	mustOK(t, s.SelectPaymentMethod(PaymentCard, "stripe"))
	if s.Status != StatusPaymentPending {
		t.Fatalf("status = %s, want PAYMENT_PENDING", s.Status)
	}

	// re-selection while already pending: no extra status event
	s.PullEvents()
	mustOK(t, s.SelectPaymentMethod(PaymentBankTransfer, ""))
	for _, e := range s.PullEvents() {
		if _, ok := e.(SessionStatusChanged); ok {
			t.Fatal("re-selection emitted a status event")
		}
	}
}
