package outbox

import (
	"errors"
	"fmt"
	"time"
)

// EventType enumerates the domain events the outbox carries (spec.md §5).
type EventType string

const (
	EventMatchClosed        EventType = "match.betting_closed"
	EventResultConfirmed    EventType = "result.confirmed"
	EventResultAmended      EventType = "result.amended"
	EventResultVoided       EventType = "result.voided"
	EventPredictionSettled  EventType = "prediction.settled"
	EventLeaderboardUpdated EventType = "leaderboard.updated"
)

// Status is an outbox row's delivery lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
	StatusDead      Status = "dead"
)

// ErrInvalidEvent marks a structural invariant violation.
var ErrInvalidEvent = errors.New("invalid outbox event")

// Event is a durable row written in the same transaction as the state
// change it reports, then dispatched at-least-once by the outbox pump
// (spec.md §5, §7: "the store is the source of truth; the bus is a
// best-effort fan-out of it").
type Event struct {
	ID            string
	Type          EventType
	AggregateID   string
	Key           string
	Version       int
	Payload       []byte
	Status        Status
	Attempts      int
	NextAttemptAt time.Time
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

// Validate enforces the structural invariants independent of dispatch
// state.
func (e Event) Validate() error {
	if e.Type == "" {
		return fmt.Errorf("%w: type is required", ErrInvalidEvent)
	}
	if e.AggregateID == "" {
		return fmt.Errorf("%w: aggregate id is required", ErrInvalidEvent)
	}
	if e.Key == "" {
		return fmt.Errorf("%w: partition key is required", ErrInvalidEvent)
	}
	if len(e.Payload) == 0 {
		return fmt.Errorf("%w: payload must not be empty", ErrInvalidEvent)
	}
	return nil
}

// DedupKey is the consumer-side idempotence key: (type, aggregateID,
// version). A consumer that has already applied this exact key may discard
// a redelivery unconditionally (spec.md §7).
func (e Event) DedupKey() string {
	return fmt.Sprintf("%s:%s:%d", e.Type, e.AggregateID, e.Version)
}
