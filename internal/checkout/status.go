package checkout

type Status string

const (
	StatusStarted           Status = "STARTED"
	StatusAddressComplete   Status = "ADDRESS_COMPLETE"
	StatusShippingSelected  Status = "SHIPPING_SELECTED"
	StatusPaymentPending    Status = "PAYMENT_PENDING"
	StatusPaymentProcessing Status = "PAYMENT_PROCESSING"
	StatusCompleted         Status = "COMPLETED"
	StatusExpired           Status = "EXPIRED"
	StatusAbandoned         Status = "ABANDONED"
)

// Full transition table, checked centrally by Session.transition.
// Payment selection is allowed early (before address/shipping), which is
// why PAYMENT_PENDING is reachable from every active state.
var validNext = map[Status]map[Status]bool{
	StatusStarted: {
		StatusAddressComplete: true, StatusPaymentPending: true,
		StatusExpired: true, StatusAbandoned: true,
	},
	StatusAddressComplete: {
		StatusShippingSelected: true, StatusPaymentPending: true,
		StatusExpired: true, StatusAbandoned: true,
	},
	StatusShippingSelected: {
		StatusPaymentPending: true, StatusPaymentProcessing: true,
		StatusExpired: true, StatusAbandoned: true,
	},
	StatusPaymentPending: {
		StatusPaymentProcessing: true, StatusCompleted: true,
		StatusExpired: true, StatusAbandoned: true,
	},
	StatusPaymentProcessing: {
		StatusCompleted: true,
		StatusExpired:   true, StatusAbandoned: true,
	},
	StatusCompleted: {},
	StatusExpired:   {},
	StatusAbandoned: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// IsTerminal reports whether no further business mutation is permitted.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusExpired || s == StatusAbandoned
}

func (s Status) String() string { return string(s) }
