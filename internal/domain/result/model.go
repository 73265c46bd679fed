package result

import (
	"errors"
	"fmt"
	"time"
)

// Status is the confirmation lifecycle state of a reported result
// (spec.md §4.3: "ingested results start unconfirmed and must pass through
// confirmation before they can settle predictions").
type Status string

const (
	StatusReported  Status = "reported"
	StatusConfirmed Status = "confirmed"
	StatusDisputed  Status = "disputed"
	StatusAmended   Status = "amended"
	StatusVoided    Status = "voided"
)

// ErrInvalidResult marks a payload/invariant violation on a Result.
var ErrInvalidResult = errors.New("invalid result")

// ErrInvalidTransition marks an attempted Status change the FSM forbids.
var ErrInvalidTransition = errors.New("invalid result transition")

// Type distinguishes which phase of a match a result reports on. A match can
// carry a confirmed result for more than one Type at once (e.g. a halfTime
// score alongside the eventual final), so the uniqueness key a Result lives
// under is (matchID, resultType), not matchID alone (spec.md §3).
type Type string

const (
	TypeFullTime  Type = "fullTime"
	TypeHalfTime  Type = "halfTime"
	TypeExtraTime Type = "extraTime"
	TypePenalties Type = "penalties"
	TypeFinal     Type = "final"
)

var knownTypes = map[Type]struct{}{
	TypeFullTime:  {},
	TypeHalfTime:  {},
	TypeExtraTime: {},
	TypePenalties: {},
	TypeFinal:     {},
}

func (t Type) valid() bool {
	_, ok := knownTypes[t]
	return ok
}

// Result is one ingested report of a match's final score for one phase of
// the match (resultType). Successive reports for the same (match, resultType)
// accumulate as a version history rather than overwriting in place, so a
// later amendment can be told apart from the result it supersedes (spec.md
// §3, §4.3). Only a TypeFinal result ever feeds the Scoring Engine; other
// types record the FSM but never settle predictions.
type Result struct {
	ID          string
	MatchID     string
	ResultType  Type
	Version     int
	HomeScore   int
	AwayScore   int
	Status      Status
	Source      string
	ReportedAt  time.Time
	ConfirmedAt *time.Time
	Notes       string
}

// Validate enforces the structural invariants independent of transition
// history (non-negative scores, source tagged, known result type).
func (r Result) Validate() error {
	if r.HomeScore < 0 || r.AwayScore < 0 {
		return fmt.Errorf("%w: scores must be non-negative", ErrInvalidResult)
	}
	if r.Source == "" {
		return fmt.Errorf("%w: source is required", ErrInvalidResult)
	}
	if !r.ResultType.valid() {
		return fmt.Errorf("%w: unknown result type %q", ErrInvalidResult, r.ResultType)
	}
	return nil
}

// transitions enumerates the FSM edges allowed by spec.md §4.3. A confirmed
// result only moves to amended (superseded by a new version) or voided; its
// scores are never edited in place. A disputed result is either upheld
// (confirmed), amended, or voided.
var transitions = map[Status]map[Status]struct{}{
	StatusReported:  {StatusConfirmed: {}, StatusDisputed: {}, StatusVoided: {}},
	StatusDisputed:  {StatusConfirmed: {}, StatusAmended: {}, StatusVoided: {}},
	StatusConfirmed: {StatusAmended: {}, StatusVoided: {}},
	StatusAmended:   {StatusConfirmed: {}, StatusVoided: {}},
	StatusVoided:    {},
}

// CanTransition reports whether moving from `from` to `to` is a legal FSM
// edge.
func CanTransition(from, to Status) bool {
	edges, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = edges[to]
	return ok
}

// Transition validates and returns the new status for this result, or
// ErrInvalidTransition if the move is not a legal FSM edge.
func (r Result) Transition(to Status) (Status, error) {
	if !CanTransition(r.Status, to) {
		return "", fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, to)
	}
	return to, nil
}

// IsFinal reports whether a result has reached a status from which
// predictions may be settled (confirmed or amended, both carry a score the
// Scoring Engine can act on).
func (r Result) IsFinal() bool {
	return r.Status == StatusConfirmed || r.Status == StatusAmended
}
