package inventory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-checkout-orders.git/internal/errs"
)

// memStore implements Store over a map, with snapshot/commit semantics in
// memRunner so a failed reservation rolls back like a real transaction.
// The runner's mutex stands in for the row lock: one reservation at a
// time, which is exactly the serialization the pg store gets FOR UPDATE.
type memStore struct {
	variants  map[string]Variant
	movements []Movement
}

func (m *memStore) LockVariants(_ context.Context, ids []string) (map[string]Variant, error) {
	out := make(map[string]Variant, len(ids))
	for _, id := range ids {
		if v, ok := m.variants[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func (m *memStore) AdjustStock(_ context.Context, variantID string, delta int) error {
	v, ok := m.variants[variantID]
	if !ok {
		return errors.New("no such variant: " + variantID)
	}
	v.Stock += delta
	m.variants[variantID] = v
	return nil
}

func (m *memStore) AppendMovement(_ context.Context, mv Movement) error {
	m.movements = append(m.movements, mv)
	return nil
}

type memRunner struct {
	mu    sync.Mutex
	state *memStore
}

func (r *memRunner) InTx(ctx context.Context, fn func(Store) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// work on a copy; commit only on success
	work := &memStore{
		variants:  make(map[string]Variant, len(r.state.variants)),
		movements: append([]Movement(nil), r.state.movements...),
	}
	for k, v := range r.state.variants {
		work.variants[k] = v
	}
	if err := fn(work); err != nil {
		return err
	}
	r.state = work
	return nil
}

func newTestRunner(variants ...Variant) *memRunner {
	st := &memStore{variants: map[string]Variant{}}
	for _, v := range variants {
		st.variants[v.ID] = v
	}
	return &memRunner{state: st}
}

func variant(id, sku, name string, stock int) Variant {
	return Variant{
		ID: id, ProductID: "p-" + id, SKU: sku, Name: name,
		Price: decimal.NewFromInt(100000), Stock: stock,
	}
}

func TestReserveDecrementsAndLogs(t *testing.T) {
	r := newTestRunner(variant("v1", "SKU-1", "Tee M", 10), variant("v2", "SKU-2", "Tee L", 3))
	c := &Coordinator{Runner: r}

	err := c.ReserveForOrder(context.Background(),
		[]ItemQty{{VariantID: "v1", Qty: 4}, {VariantID: "v2", Qty: 3}},
		"ORD-0001", "admin-1")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if got := r.state.variants["v1"].Stock; got != 6 {
		t.Fatalf("v1 stock = %d, want 6", got)
	}
	if got := r.state.variants["v2"].Stock; got != 0 {
		t.Fatalf("v2 stock = %d, want 0 (reserving full stock is allowed)", got)
	}

	if len(r.state.movements) != 2 {
		t.Fatalf("want 2 movements, got %d", len(r.state.movements))
	}
	m := r.state.movements[0]
	if m.Type != MovementReservation || m.QuantityBefore != 10 || m.Delta != -4 ||
		m.Reference != "ORD-0001" || m.ActorID != "admin-1" {
		t.Fatalf("bad movement: %+v", m)
	}
}

func TestReserveInsufficientStockIsAllOrNothing(t *testing.T) {
	r := newTestRunner(variant("v1", "SKU-1", "Tee M", 10), variant("v2", "SKU-2", "Tee L", 2))
	c := &Coordinator{Runner: r}

	err := c.ReserveForOrder(context.Background(),
		[]ItemQty{{VariantID: "v1", Qty: 4}, {VariantID: "v2", Qty: 3}},
		"ORD-0002", "")

	var ise *errs.InsufficientStockError
	if !errors.As(err, &ise) {
		t.Fatalf("want InsufficientStockError, got %v", err)
	}
	if ise.Name != "Tee L" || ise.Available != 2 || ise.Requested != 3 {
		t.Fatalf("error should name the short item: %+v", ise)
	}
	if !strings.Contains(err.Error(), "Tee L") {
		t.Fatalf("message should name the variant: %q", err.Error())
	}

	// zero side effects: no decrement on v1 either, no movements
	if r.state.variants["v1"].Stock != 10 || r.state.variants["v2"].Stock != 2 {
		t.Fatal("partial reservation leaked")
	}
	if len(r.state.movements) != 0 {
		t.Fatalf("movements logged on failure: %d", len(r.state.movements))
	}
}

func TestReserveOneOverAvailableFails(t *testing.T) {
	r := newTestRunner(variant("v1", "SKU-1", "Tee M", 5))
	c := &Coordinator{Runner: r}

	err := c.ReserveForOrder(context.Background(),
		[]ItemQty{{VariantID: "v1", Qty: 6}}, "ORD-0003", "")
	var ise *errs.InsufficientStockError
	if !errors.As(err, &ise) {
		t.Fatalf("want InsufficientStockError, got %v", err)
	}
	if r.state.variants["v1"].Stock != 5 {
		t.Fatal("stock changed on failed reservation")
	}
}

func TestReserveUnknownVariant(t *testing.T) {
	r := newTestRunner(variant("v1", "SKU-1", "Tee M", 5))
	c := &Coordinator{Runner: r}

	err := c.ReserveForOrder(context.Background(),
		[]ItemQty{{VariantID: "ghost", Qty: 1}}, "ORD-0004", "")
	var nfe *errs.NotFoundError
	if !errors.As(err, &nfe) {
		t.Fatalf("want NotFoundError, got %v", err)
	}
}

func TestReserveValidation(t *testing.T) {
	c := &Coordinator{Runner: newTestRunner()}
	cases := []struct {
		name  string
		items []ItemQty
	}{
		{"empty", nil},
		{"zero qty", []ItemQty{{VariantID: "v1", Qty: 0}}},
		{"negative qty", []ItemQty{{VariantID: "v1", Qty: -2}}},
		{"missing id", []ItemQty{{VariantID: "", Qty: 1}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := c.ReserveForOrder(context.Background(), tc.items, "ORD-0005", "")
			var ve *errs.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("want ValidationError, got %v", err)
			}
		})
	}
}

// no overselling: with stock N and many concurrent single-unit requests,
// exactly N succeed
func TestConcurrentReservationsNeverOversell(t *testing.T) {
	const stock = 5
	const attempts = 20

	r := newTestRunner(variant("v1", "SKU-1", "Last Tee", stock))
	c := &Coordinator{Runner: r}

	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- c.ReserveForOrder(context.Background(),
				[]ItemQty{{VariantID: "v1", Qty: 1}}, "ORD-RACE", "")
		}()
	}
	wg.Wait()
	close(results)

	var ok, short int
	for err := range results {
		switch {
		case err == nil:
			ok++
		default:
			var ise *errs.InsufficientStockError
			if !errors.As(err, &ise) {
				t.Fatalf("unexpected error kind: %v", err)
			}
			short++
		}
	}
	if ok != stock {
		t.Fatalf("%d reservations succeeded, want exactly %d", ok, stock)
	}
	if short != attempts-stock {
		t.Fatalf("%d rejections, want %d", short, attempts-stock)
	}
	if r.state.variants["v1"].Stock != 0 {
		t.Fatalf("final stock = %d, want 0", r.state.variants["v1"].Stock)
	}
	if len(r.state.movements) != stock {
		t.Fatalf("%d movements, want %d", len(r.state.movements), stock)
	}
}

func TestReleaseRestoresAndAlwaysLogs(t *testing.T) {
	r := newTestRunner(variant("v1", "SKU-1", "Tee M", 2))
	c := &Coordinator{Runner: r}

	mustReserve := func(qty int) {
		t.Helper()
		if err := c.ReserveForOrder(context.Background(),
			[]ItemQty{{VariantID: "v1", Qty: qty}}, "ORD-0006", ""); err != nil {
			t.Fatalf("reserve: %v", err)
		}
	}
	mustReserve(2)

	if err := c.Release(context.Background(),
		[]ItemQty{{VariantID: "v1", Qty: 2}}, "ORD-0006", "system"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if r.state.variants["v1"].Stock != 2 {
		t.Fatalf("stock = %d, want 2 after release", r.state.variants["v1"].Stock)
	}

	// zero-delta release still writes a movement
	if err := c.Release(context.Background(),
		[]ItemQty{{VariantID: "v1", Qty: 0}}, "ORD-0006", "system"); err != nil {
		t.Fatalf("zero release: %v", err)
	}

	var releases int
	for _, m := range r.state.movements {
		if m.Type == MovementRelease {
			releases++
		}
	}
	if releases != 2 {
		t.Fatalf("release movements = %d, want 2 (zero-delta must log)", releases)
	}
	last := r.state.movements[len(r.state.movements)-1]
	if last.Delta != 0 || last.Type != MovementRelease {
		t.Fatalf("bad zero-delta movement: %+v", last)
	}
}
