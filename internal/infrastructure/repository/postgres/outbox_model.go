package postgres

import (
	"database/sql"
	"time"

	"github.com/riskibarqy/predictor-league/internal/domain/outbox"
)

type outboxTableModel struct {
	ID            string       `db:"id"`
	Type          string       `db:"type"`
	AggregateID   string       `db:"aggregate_id"`
	Key           string       `db:"key"`
	Version       int          `db:"version"`
	Payload       []byte       `db:"payload"`
	Status        string       `db:"status"`
	Attempts      int          `db:"attempts"`
	NextAttemptAt time.Time    `db:"next_attempt_at"`
	CreatedAt     time.Time    `db:"created_at"`
	PublishedAt   sql.NullTime `db:"published_at"`
}

func outboxFromRow(row outboxTableModel) outbox.Event {
	e := outbox.Event{
		ID:            row.ID,
		Type:          outbox.EventType(row.Type),
		AggregateID:   row.AggregateID,
		Key:           row.Key,
		Version:       row.Version,
		Payload:       row.Payload,
		Status:        outbox.Status(row.Status),
		Attempts:      row.Attempts,
		NextAttemptAt: row.NextAttemptAt,
		CreatedAt:     row.CreatedAt,
	}
	if row.PublishedAt.Valid {
		t := row.PublishedAt.Time
		e.PublishedAt = &t
	}
	return e
}

type outboxInsertModel struct {
	ID            string    `db:"id"`
	Type          string    `db:"type"`
	AggregateID   string    `db:"aggregate_id"`
	Key           string    `db:"key"`
	Version       int       `db:"version"`
	Payload       []byte    `db:"payload"`
	Status        string    `db:"status"`
	Attempts      int       `db:"attempts"`
	NextAttemptAt time.Time `db:"next_attempt_at"`
	CreatedAt     time.Time `db:"created_at"`
}

func outboxInsertModelFrom(e outbox.Event) outboxInsertModel {
	status := e.Status
	if status == "" {
		status = outbox.StatusPending
	}
	nextAttemptAt := e.NextAttemptAt
	if nextAttemptAt.IsZero() {
		nextAttemptAt = e.CreatedAt
	}
	return outboxInsertModel{
		ID:            e.ID,
		Type:          string(e.Type),
		AggregateID:   e.AggregateID,
		Key:           e.Key,
		Version:       e.Version,
		Payload:       e.Payload,
		Status:        string(status),
		Attempts:      e.Attempts,
		NextAttemptAt: nextAttemptAt,
		CreatedAt:     e.CreatedAt,
	}
}
