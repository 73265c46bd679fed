package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/riskibarqy/predictor-league/internal/domain/match"
	"github.com/riskibarqy/predictor-league/internal/domain/outbox"
	"github.com/riskibarqy/predictor-league/internal/domain/result"
	"github.com/riskibarqy/predictor-league/internal/platform/id"
)

// ResultStore is the transactional port the Result FSM writes through: a
// state transition and its outbox event are committed together, the way
// the teacher's league_standing_repository commits a multi-table replace in
// one BeginTxx/Commit block (spec.md §4.3 Failure semantics: "durable
// before acknowledgement").
type ResultStore interface {
	result.Repository

	// InsertWithEvent appends a new result row and an outbox event in one
	// transaction.
	InsertWithEvent(ctx context.Context, r result.Result, ev outbox.Event) error

	// TransitionWithEvent moves an existing result to a new status and
	// appends an outbox event (when ev is non-nil) in one transaction.
	TransitionWithEvent(ctx context.Context, resultID string, to result.Status, at time.Time, ev *outbox.Event) error
}

// ResultService runs the result confirmation FSM described in spec.md §4.3.
type ResultService struct {
	store     ResultStore
	matchRepo match.Repository
	ids       id.Generator
	now       func() time.Time
}

func NewResultService(store ResultStore, matchRepo match.Repository, ids id.Generator) *ResultService {
	if ids == nil {
		ids = id.NewUUIDGenerator()
	}
	return &ResultService{store: store, matchRepo: matchRepo, ids: ids, now: time.Now}
}

// RecordInput is the payload for Record.
type RecordInput struct {
	MatchID    string
	ResultType result.Type
	HomeScore  int
	AwayScore  int
	Source     string
	Notes      string
}

// Record ingests a freshly reported score as a new, unconfirmed version row.
// Duplicate (matchId, resultType, version) is rejected by the repository's uniqueness
// constraint; Record itself computes the next version from the match's
// current latest result.
func (s *ResultService) Record(ctx context.Context, in RecordInput) (result.Result, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ResultService.Record")
	defer span.End()

	in.MatchID = strings.TrimSpace(in.MatchID)
	in.Source = strings.TrimSpace(in.Source)
	if in.MatchID == "" {
		return result.Result{}, fmt.Errorf("%w: match id is required", ErrInvalidInput)
	}
	if in.ResultType == "" {
		in.ResultType = result.TypeFinal
	}

	m, found, err := s.matchRepo.GetByID(ctx, in.MatchID)
	if err != nil {
		return result.Result{}, fmt.Errorf("get match: %w", err)
	}
	if !found {
		return result.Result{}, fmt.Errorf("%w: match %s", ErrNotFound, in.MatchID)
	}
	if match.NormalizeStatus(m.Status) == match.StatusCancelled {
		return result.Result{}, fmt.Errorf("%w: match %s was cancelled, no result can be recorded", ErrConflict, in.MatchID)
	}

	latest, hasLatest, err := s.store.GetLatestForMatch(ctx, in.MatchID, in.ResultType)
	if err != nil {
		return result.Result{}, fmt.Errorf("get latest result: %w", err)
	}
	if hasLatest && latest.Status == result.StatusConfirmed {
		return result.Result{}, fmt.Errorf("%w: match %s already has a confirmed %s result, use Amend", ErrConflict, in.MatchID, in.ResultType)
	}
	version := 1
	if hasLatest {
		version = latest.Version + 1
	}

	resID, err := s.ids.NewID()
	if err != nil {
		return result.Result{}, fmt.Errorf("generate result id: %w", err)
	}

	now := s.now().UTC()
	r := result.Result{
		ID:         resID,
		MatchID:    in.MatchID,
		ResultType: in.ResultType,
		Version:    version,
		HomeScore:  in.HomeScore,
		AwayScore:  in.AwayScore,
		Status:     result.StatusReported,
		Source:     in.Source,
		ReportedAt: now,
		Notes:      in.Notes,
	}
	if err := r.Validate(); err != nil {
		return result.Result{}, err
	}

	if err := s.store.Insert(ctx, r); err != nil {
		return result.Result{}, fmt.Errorf("insert result: %w", err)
	}
	return r, nil
}

// Confirm moves a reported or disputed result to confirmed, emitting
// ResultConfirmed for the Scoring Engine.
func (s *ResultService) Confirm(ctx context.Context, resultID string) (result.Result, error) {
	return s.transition(ctx, resultID, result.StatusConfirmed, outbox.EventResultConfirmed)
}

// Dispute marks a reported result as under dispute. Audit-only: no outbox
// event, since no downstream consumer acts on a dispute by itself.
func (s *ResultService) Dispute(ctx context.Context, resultID, reason string) (result.Result, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ResultService.Dispute")
	defer span.End()

	r, found, err := s.store.GetByID(ctx, resultID)
	if err != nil {
		return result.Result{}, fmt.Errorf("get result: %w", err)
	}
	if !found {
		return result.Result{}, fmt.Errorf("%w: result %s", ErrNotFound, resultID)
	}
	if _, err := r.Transition(result.StatusDisputed); err != nil {
		return result.Result{}, err
	}

	now := s.now().UTC()
	if err := s.store.TransitionWithEvent(ctx, resultID, result.StatusDisputed, now, nil); err != nil {
		return result.Result{}, fmt.Errorf("mark result disputed: %w", err)
	}
	r.Status = result.StatusDisputed
	r.Notes = strings.TrimSpace(r.Notes + " " + reason)
	return r, nil
}

// ResolveUphold resolves a dispute in favor of the originally reported
// score, confirming it.
func (s *ResultService) ResolveUphold(ctx context.Context, resultID string) (result.Result, error) {
	return s.transition(ctx, resultID, result.StatusConfirmed, outbox.EventResultConfirmed)
}

// AmendInput is the payload for Amend.
type AmendInput struct {
	ResultID  string
	HomeScore int
	AwayScore int
	Source    string
	Notes     string
}

// Amend supersedes a confirmed or disputed result with a
// new version carrying corrected scores, emitting ResultAmended. The prior
// version is left in place (marked amended) so its history is preserved.
func (s *ResultService) Amend(ctx context.Context, in AmendInput) (result.Result, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ResultService.Amend")
	defer span.End()

	prior, found, err := s.store.GetByID(ctx, in.ResultID)
	if err != nil {
		return result.Result{}, fmt.Errorf("get result: %w", err)
	}
	if !found {
		return result.Result{}, fmt.Errorf("%w: result %s", ErrNotFound, in.ResultID)
	}
	if _, err := prior.Transition(result.StatusAmended); err != nil {
		return result.Result{}, err
	}
	if in.HomeScore == prior.HomeScore && in.AwayScore == prior.AwayScore {
		return result.Result{}, fmt.Errorf("%w: amendment must differ from the prior score", ErrInvalidInput)
	}

	source := strings.TrimSpace(in.Source)
	if source == "" {
		source = prior.Source
	}

	newID, err := s.ids.NewID()
	if err != nil {
		return result.Result{}, fmt.Errorf("generate result id: %w", err)
	}

	now := s.now().UTC()
	next := result.Result{
		ID:         newID,
		MatchID:    prior.MatchID,
		ResultType: prior.ResultType,
		Version:    prior.Version + 1,
		HomeScore:  in.HomeScore,
		AwayScore:  in.AwayScore,
		Status:     result.StatusConfirmed,
		Source:     source,
		ReportedAt: now,
		Notes:      in.Notes,
	}
	if err := next.Validate(); err != nil {
		return result.Result{}, err
	}

	ev, err := s.buildEvent(outbox.EventResultAmended, next.MatchID, next.Version, next)
	if err != nil {
		return result.Result{}, err
	}

	if err := s.store.TransitionWithEvent(ctx, prior.ID, result.StatusAmended, now, nil); err != nil {
		return result.Result{}, fmt.Errorf("mark prior result amended: %w", err)
	}
	if err := s.store.InsertWithEvent(ctx, next, ev); err != nil {
		return result.Result{}, fmt.Errorf("insert amended result: %w", err)
	}
	return next, nil
}

// Void voids a result at any status, e.g. in response to a match
// cancellation. A voided result's predictions are reversed by the Scoring
// Engine, never scored.
func (s *ResultService) Void(ctx context.Context, resultID string) (result.Result, error) {
	return s.transition(ctx, resultID, result.StatusVoided, outbox.EventResultVoided)
}

func (s *ResultService) transition(ctx context.Context, resultID string, to result.Status, evType outbox.EventType) (result.Result, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ResultService.transition")
	defer span.End()

	r, found, err := s.store.GetByID(ctx, resultID)
	if err != nil {
		return result.Result{}, fmt.Errorf("get result: %w", err)
	}
	if !found {
		return result.Result{}, fmt.Errorf("%w: result %s", ErrNotFound, resultID)
	}
	if _, err := r.Transition(to); err != nil {
		return result.Result{}, err
	}

	ev, err := s.buildEvent(evType, r.MatchID, r.Version, r)
	if err != nil {
		return result.Result{}, err
	}

	now := s.now().UTC()
	if err := s.store.TransitionWithEvent(ctx, resultID, to, now, &ev); err != nil {
		return result.Result{}, errors.Wrapf(err, "transition result %s to %s", resultID, to)
	}
	r.Status = to
	return r, nil
}

func (s *ResultService) buildEvent(evType outbox.EventType, matchID string, version int, payload any) (outbox.Event, error) {
	evID, err := s.ids.NewID()
	if err != nil {
		return outbox.Event{}, fmt.Errorf("generate event id: %w", err)
	}
	body, err := encodeEventPayload(payload)
	if err != nil {
		return outbox.Event{}, errors.Wrap(err, "encode outbox payload")
	}
	return outbox.Event{
		ID:            evID,
		Type:          evType,
		AggregateID:   matchID,
		Key:           matchID,
		Version:       version,
		Payload:       body,
		Status:        outbox.StatusPending,
		NextAttemptAt: time.Time{},
		CreatedAt:     s.now().UTC(),
	}, nil
}
