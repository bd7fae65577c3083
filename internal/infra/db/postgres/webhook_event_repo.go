package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"chatbot-checkout/internal/domain"
	"chatbot-checkout/internal/domain/model"
	"chatbot-checkout/internal/domain/ports/repository"
	"chatbot-checkout/internal/infra/metrics"
)

var _ repository.WebhookEventLog = (*webhookEventRepo)(nil)

type webhookEventRepo struct {
	pool *pgxpool.Pool
	tm   *TxManager
}

func NewWebhookEventRepo(pool *pgxpool.Pool) repository.WebhookEventLog {
	return &webhookEventRepo{pool: pool, tm: NewTxManager(pool)}
}

// Record inserts rec. A second delivery of the same provider event id trips the
// unique index; the existing row's delivery counter is bumped instead.
func (r *webhookEventRepo) Record(ctx context.Context, tx repository.Tx, rec *model.WebhookEventRecord) (bool, error) {
	if _, inTx := tx.(pgx.Tx); !inTx {
		var dup bool
		err := r.tm.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			var err error
			dup, err = r.record(ctx, tx, rec)
			return err
		})
		return dup, err
	}
	return r.record(ctx, tx, rec)
}

func (r *webhookEventRepo) record(ctx context.Context, tx repository.Tx, rec *model.WebhookEventRecord) (bool, error) {
	const q = `
INSERT INTO webhook_events (id, event_id, event_type, session_id, outcome, received_at, last_seen_at)
VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $6)`

	if _, err := execSQL(ctx, r.pool, tx, `SAVEPOINT webhook_event_insert`); err != nil {
		metrics.IncEventLogWrite("error")
		return false, fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
	}
	_, err := execSQL(ctx, r.pool, tx, q, rec.ID, rec.EventID, rec.Type, rec.SessionID, string(rec.Outcome), rec.ReceivedAt)
	if err == nil {
		metrics.IncEventLogWrite("stored")
		return false, nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		metrics.IncEventLogWrite("error")
		return false, fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
	}

	const bumpQ = `
UPDATE webhook_events SET deliveries = deliveries + 1, last_seen_at = $2
WHERE event_id = $1`
	if _, err := execSQL(ctx, r.pool, tx, `ROLLBACK TO SAVEPOINT webhook_event_insert`); err != nil {
		metrics.IncEventLogWrite("error")
		return true, fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
	}
	if _, err := execSQL(ctx, r.pool, tx, bumpQ, rec.EventID, rec.ReceivedAt); err != nil {
		metrics.IncEventLogWrite("error")
		return true, fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
	}
	metrics.IncEventLogWrite("duplicate")
	return true, nil
}

func (r *webhookEventRepo) CountByEventID(ctx context.Context, tx repository.Tx, eventID string) (int, error) {
	const q = `SELECT COALESCE(SUM(deliveries), 0) FROM webhook_events WHERE event_id = $1`
	row, err := pickRow(ctx, r.pool, tx, q, eventID)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
	}
	return n, nil
}
