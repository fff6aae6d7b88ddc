package redisx

import "time"

const (
	// Checkout session status cache: checkout_status:{session_id} -> {"status": "..."}
	KeyCheckoutStatus = "checkout_status:%s"

	// Idempotency for manual order creation: idem:order:create:{external_id} -> order_id
	KeyIdemOrderCreate = "idem:order:create:%s"

	// Order status cache: order_status:{order_id} -> {"status": "..."}
	KeyOrderStatus = "order_status:%s"

	// Dedup for background workers: dedup:{service}:{id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLIdempotency = 24 * time.Hour
	TTLDedup       = 48 * time.Hour
)
