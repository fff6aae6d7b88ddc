package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-checkout-orders.git/internal/checkout"
	"github.com/ariefcatur/go-checkout-orders.git/internal/errs"
	"github.com/ariefcatur/go-checkout-orders.git/internal/inventory"
	"github.com/ariefcatur/go-checkout-orders.git/internal/money"
)

// AssembleItem is one resolved line: the variant as loaded right now plus
// the price the caller resolved for it. Assemble copies what it needs, so
// later changes to the variant never touch the order.
type AssembleItem struct {
	Variant     inventory.Variant
	ProductName string
	ImageURL    string
	UnitPrice   decimal.Decimal
	Quantity    int
	Discount    decimal.Decimal // optional per-item discount
}

type AssembleInput struct {
	Number   string
	TenantID string

	CustomerID    string
	CustomerEmail string
	CustomerName  string
	CustomerPhone string

	ShippingAddress *checkout.Address
	BillingAddress  *checkout.Address // nil defaults to shipping
	ShippingMethod  string
	ShippingCost    decimal.Decimal

	Discount   decimal.Decimal
	Tax        decimal.Decimal
	Currency   string
	CouponCode string

	PaymentMethod    string
	PaymentGatewayID string
	PaymentStatus    string // "paid" confirms the order immediately

	SessionID  string
	ExternalID string
	Note       string
	ActorID    string

	Items []AssembleItem
}

const PaymentStatusPaid = "paid"

// Assemble builds a fully-formed Order in CREATED (or CONFIRMED when the
// initial payment status is "paid"). The subtotal is gross: sum of unit
// price * qty, with per-item discounts reducing only their own line.
func Assemble(in AssembleInput) (*Order, error) {
	if len(in.Items) == 0 {
		return nil, &errs.ValidationError{Msg: "order requires at least one item"}
	}
	if in.CustomerEmail == "" {
		return nil, &errs.ValidationError{Msg: "customer email is required"}
	}
	if in.Number == "" {
		return nil, &errs.ValidationError{Msg: "order number is required"}
	}
	for _, it := range in.Items {
		if it.Quantity <= 0 {
			return nil, &errs.ValidationError{Msg: "item quantity must be positive: " + it.Variant.ID}
		}
	}

	now := time.Now().UTC()
	o := &Order{
		ID:       uuid.NewString(),
		Number:   in.Number,
		TenantID: in.TenantID,

		CustomerID:    in.CustomerID,
		CustomerEmail: in.CustomerEmail,
		CustomerName:  in.CustomerName,
		CustomerPhone: in.CustomerPhone,

		ShippingMethod: in.ShippingMethod,
		ShippingCost:   in.ShippingCost,

		Discount:   in.Discount,
		Tax:        in.Tax,
		Currency:   in.Currency,
		CouponCode: in.CouponCode,

		PaymentMethod:    in.PaymentMethod,
		PaymentGatewayID: in.PaymentGatewayID,

		SessionID:  in.SessionID,
		ExternalID: in.ExternalID,

		Status:    StatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if in.ShippingAddress != nil {
		a := *in.ShippingAddress
		o.ShippingAddress = &a
	}
	switch {
	case in.BillingAddress != nil:
		b := *in.BillingAddress
		o.BillingAddress = &b
	case in.ShippingAddress != nil:
		b := *in.ShippingAddress
		o.BillingAddress = &b
	}

	subtotal := decimal.Zero
	for _, it := range in.Items {
		line := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		subtotal = subtotal.Add(line)
		o.Items = append(o.Items, Item{
			ID:          uuid.NewString(),
			OrderID:     o.ID,
			ProductID:   it.Variant.ProductID,
			VariantID:   it.Variant.ID,
			ProductName: it.ProductName,
			VariantName: it.Variant.Name,
			SKU:         it.Variant.SKU,
			ImageURL:    it.ImageURL,
			Options:     it.Variant.Options,
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
			Discount:    it.Discount,
			LineTotal:   line.Sub(it.Discount),
		})
	}
	o.Subtotal = subtotal
	o.GrandTotal = money.GrandTotal(subtotal, in.Discount, in.ShippingCost, in.Tax)

	if in.Note != "" {
		o.AddNote(in.ActorID, in.Note, true)
	}
	if in.PaymentStatus == PaymentStatusPaid {
		if err := o.Confirm(); err != nil {
			return nil, err
		}
	}
	return o, nil
}
