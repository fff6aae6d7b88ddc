package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NumberGenerator hands out globally unique, human-readable order
// numbers. Generation must be atomic at the source; callers never loop on
// collisions.
type NumberGenerator interface {
	GenerateNext(ctx context.Context, tenantID string) (string, error)
}

// PGNumberGenerator draws from a database sequence. Sequence values
// survive rollbacks, so numbers may have gaps but never repeat.
type PGNumberGenerator struct {
	DB *pgxpool.Pool
}

func (g *PGNumberGenerator) GenerateNext(ctx context.Context, tenantID string) (string, error) {
	var n int64
	if err := g.DB.QueryRow(ctx, `SELECT nextval('order_number_seq')`).Scan(&n); err != nil {
		return "", fmt.Errorf("order number: %w", err)
	}
	return fmt.Sprintf("ORD-%s-%06d", time.Now().UTC().Format("20060102"), n), nil
}
