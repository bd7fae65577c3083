package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"chatbot-checkout/internal/infra/metrics"
)

// Connect returns a live *pgxpool.Pool for dsn.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.Connect: %w", err)
	}
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS webhook_events (
    id           TEXT PRIMARY KEY,
    event_id     TEXT,
    event_type   TEXT NOT NULL,
    session_id   TEXT NOT NULL DEFAULT '',
    outcome      TEXT NOT NULL,
    deliveries   INTEGER NOT NULL DEFAULT 1,
    received_at  TIMESTAMPTZ NOT NULL,
    last_seen_at TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS webhook_events_event_id_uq
    ON webhook_events (event_id) WHERE event_id IS NOT NULL;
`

// EnsureSchema creates the tables this service owns. Safe to run on every start.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// PoolStatsJob publishes pool utilisation to the db_pool_stats gauge.
type PoolStatsJob struct {
	pool *pgxpool.Pool
}

func NewPoolStatsJob(pool *pgxpool.Pool) *PoolStatsJob { return &PoolStatsJob{pool: pool} }

func (j *PoolStatsJob) Name() string { return "db_pool_stats" }

func (j *PoolStatsJob) RunOnce(ctx context.Context) (int, error) {
	st := j.pool.Stat()
	metrics.SetDBPoolStats(st.TotalConns(), st.IdleConns(), st.AcquiredConns())
	return 0, nil
}
