package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/riskibarqy/predictor-league/internal/domain/outbox"
	qb "github.com/riskibarqy/predictor-league/internal/platform/querybuilder"
)

// OutboxRepository persists outbox rows. insertOutboxTx is shared with the
// Result repository so a state transition and its event insert commit in
// one transaction (spec.md §4.3, §5).
type OutboxRepository struct {
	db *sqlx.DB
}

func NewOutboxRepository(db *sqlx.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) Insert(ctx context.Context, e outbox.Event) error {
	query, args, err := qb.InsertModel("outbox_events", outboxInsertModelFrom(e), "")
	if err != nil {
		return fmt.Errorf("build insert outbox event query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func (r *OutboxRepository) ListDispatchable(ctx context.Context, now time.Time, limit int) ([]outbox.Event, error) {
	query, args, err := qb.Select("*").From("outbox_events").
		Where(
			qb.Expr("status IN ('pending', 'failed')"),
			qb.Expr("next_attempt_at <= ?", now),
		).
		OrderBy("created_at").
		Limit(limit).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list dispatchable outbox events query: %w", err)
	}

	var rows []outboxTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list dispatchable outbox events: %w", err)
	}
	out := make([]outbox.Event, 0, len(rows))
	for _, row := range rows {
		out = append(out, outboxFromRow(row))
	}
	return out, nil
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, eventID string, at time.Time) error {
	query, args, err := qb.Update("outbox_events").
		Set("status", string(outbox.StatusPublished)).
		Set("published_at", at).
		Where(qb.Eq("id", eventID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build mark outbox event published query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark outbox event published: %w", err)
	}
	return nil
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, eventID string, at, nextAttemptAt time.Time, dead bool) error {
	status := outbox.StatusFailed
	if dead {
		status = outbox.StatusDead
	}
	query, args, err := qb.Update("outbox_events").
		Set("status", string(status)).
		SetExpr("attempts", "attempts + 1").
		Set("next_attempt_at", nextAttemptAt).
		Where(qb.Eq("id", eventID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build mark outbox event failed query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark outbox event failed: %w", err)
	}
	return nil
}

// insertOutboxTx inserts an outbox row using an in-flight transaction,
// shared by repositories that must commit a state change and its event
// atomically.
func insertOutboxTx(ctx context.Context, tx *sqlx.Tx, e outbox.Event) error {
	query, args, err := qb.InsertModel("outbox_events", outboxInsertModelFrom(e), "")
	if err != nil {
		return fmt.Errorf("build insert outbox event query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}
