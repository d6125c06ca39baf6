package digest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

// Repository reads digest counts from postgres.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ CountReader = (*Repository)(nil)

// Counts runs the independent aggregate queries concurrently.
func (r *Repository) Counts(ctx context.Context, tenantID uuid.UUID, since time.Time) (Counts, error) {
	var c Counts
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return r.pool.QueryRow(gctx, `
			SELECT
				COUNT(*) FILTER (WHERE created_at >= $2),
				COUNT(*) FILTER (WHERE status = 'PENDING'),
				COUNT(*) FILTER (WHERE status = 'PENDING' AND urgent),
				COUNT(*) FILTER (WHERE status = 'CONFIRMED')
			FROM jobs WHERE tenant_id = $1`, tenantID, since,
		).Scan(&c.NewJobsToday, &c.Pending, &c.UrgentPending, &c.Confirmed)
	})
	g.Go(func() error {
		return r.pool.QueryRow(gctx, `
			SELECT
				COUNT(*) FILTER (WHERE state NOT IN ('DONE', 'HANDOFF')),
				COUNT(*) FILTER (WHERE state = 'HANDOFF')
			FROM conversations WHERE tenant_id = $1`, tenantID,
		).Scan(&c.ActiveConversations, &c.Handoffs)
	})

	if err := g.Wait(); err != nil {
		return Counts{}, fmt.Errorf("count digest: %w", err)
	}
	return c, nil
}
