package inventory

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-checkout-orders.git/internal/postgres"
)

// PGStore implements Store over one pgx transaction (or any DBTX).
// LockVariants uses FOR UPDATE so concurrent reservations for the same
// variant serialize on the row lock until commit.
type PGStore struct {
	Q postgres.DBTX
}

func (s *PGStore) LockVariants(ctx context.Context, ids []string) (map[string]Variant, error) {
	rows, err := s.Q.Query(ctx, `
		SELECT v.id, v.product_id, v.sku, p.name || ' ' || v.name, v.price, v.stock, v.options
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		WHERE v.id = ANY($1)
		FOR UPDATE OF v`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]Variant, len(ids))
	for rows.Next() {
		var v Variant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.SKU, &v.Name, &v.Price, &v.Stock, &v.Options); err != nil {
			return nil, err
		}
		out[v.ID] = v
	}
	return out, rows.Err()
}

func (s *PGStore) AdjustStock(ctx context.Context, variantID string, delta int) error {
	_, err := s.Q.Exec(ctx,
		`UPDATE product_variants SET stock = stock + $2, updated_at = now() WHERE id = $1`,
		variantID, delta)
	return err
}

func (s *PGStore) AppendMovement(ctx context.Context, m Movement) error {
	_, err := s.Q.Exec(ctx, `
		INSERT INTO inventory_movements(id, variant_id, type, quantity_before, delta, reference, notes, actor_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		m.ID, m.VariantID, string(m.Type), m.QuantityBefore, m.Delta, m.Reference, m.Notes, m.ActorID, m.CreatedAt)
	return err
}

// PGRunner opens a transaction per coordinator call.
type PGRunner struct {
	DB *pgxpool.Pool
}

func (r *PGRunner) InTx(ctx context.Context, fn func(Store) error) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&PGStore{Q: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
