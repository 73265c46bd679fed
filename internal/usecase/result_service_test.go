package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riskibarqy/predictor-league/internal/domain/match"
	"github.com/riskibarqy/predictor-league/internal/domain/result"
	"github.com/riskibarqy/predictor-league/internal/infrastructure/repository/memory"
)

func newResultTestService(t *testing.T, matches ...match.Match) (*ResultService, *memory.ResultRepository) {
	t.Helper()
	matchRepo := memory.NewMatchRepository(matches...)
	outboxRepo := memory.NewOutboxRepository()
	resultRepo := memory.NewResultRepository(outboxRepo)
	return NewResultService(resultRepo, matchRepo, nil), resultRepo
}

func TestResultService_Record_FirstVersionIsReported(t *testing.T) {
	t.Parallel()

	m := newTestMatch("match-1", time.Now().Add(2*time.Hour), time.Now().Add(time.Hour))
	svc, _ := newResultTestService(t, m)

	r, err := svc.Record(context.Background(), RecordInput{MatchID: "match-1", HomeScore: 2, AwayScore: 1, Source: "referee"})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if r.Version != 1 || r.Status != result.StatusReported {
		t.Fatalf("unexpected first result: %+v", r)
	}
}

func TestResultService_Record_RejectsWhenAlreadyConfirmed(t *testing.T) {
	t.Parallel()

	m := newTestMatch("match-1", time.Now().Add(2*time.Hour), time.Now().Add(time.Hour))
	svc, _ := newResultTestService(t, m)

	r, err := svc.Record(context.Background(), RecordInput{MatchID: "match-1", HomeScore: 2, AwayScore: 1, Source: "referee"})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := svc.Confirm(context.Background(), r.ID); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	_, err = svc.Record(context.Background(), RecordInput{MatchID: "match-1", HomeScore: 3, AwayScore: 1, Source: "referee"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict when recording over a confirmed result, got %v", err)
	}
}

func TestResultService_ConfirmThenAmend_BumpsVersion(t *testing.T) {
	t.Parallel()

	m := newTestMatch("match-1", time.Now().Add(2*time.Hour), time.Now().Add(time.Hour))
	svc, _ := newResultTestService(t, m)

	r, err := svc.Record(context.Background(), RecordInput{MatchID: "match-1", HomeScore: 2, AwayScore: 1, Source: "referee"})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	confirmed, err := svc.Confirm(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if confirmed.Status != result.StatusConfirmed {
		t.Fatalf("expected confirmed status, got %q", confirmed.Status)
	}

	amended, err := svc.Amend(context.Background(), AmendInput{ResultID: confirmed.ID, HomeScore: 3, AwayScore: 1, Source: "var-review"})
	if err != nil {
		t.Fatalf("Amend: %v", err)
	}
	if amended.Version != confirmed.Version+1 {
		t.Fatalf("expected amended version to be %d, got %d", confirmed.Version+1, amended.Version)
	}
	if !amended.IsFinal() {
		t.Fatalf("expected amended result to be final")
	}
}

func TestResultService_Amend_RejectsSameScore(t *testing.T) {
	t.Parallel()

	m := newTestMatch("match-1", time.Now().Add(2*time.Hour), time.Now().Add(time.Hour))
	svc, _ := newResultTestService(t, m)

	r, err := svc.Record(context.Background(), RecordInput{MatchID: "match-1", HomeScore: 2, AwayScore: 1, Source: "referee"})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	confirmed, err := svc.Confirm(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	_, err = svc.Amend(context.Background(), AmendInput{ResultID: confirmed.ID, HomeScore: 2, AwayScore: 1, Source: "referee"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for a no-op amendment, got %v", err)
	}
}

func TestResultService_Dispute_ThenResolveUphold(t *testing.T) {
	t.Parallel()

	m := newTestMatch("match-1", time.Now().Add(2*time.Hour), time.Now().Add(time.Hour))
	svc, _ := newResultTestService(t, m)

	r, err := svc.Record(context.Background(), RecordInput{MatchID: "match-1", HomeScore: 2, AwayScore: 1, Source: "referee"})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	disputed, err := svc.Dispute(context.Background(), r.ID, "score looks wrong")
	if err != nil {
		t.Fatalf("Dispute: %v", err)
	}
	if disputed.Status != result.StatusDisputed {
		t.Fatalf("expected disputed status, got %q", disputed.Status)
	}

	upheld, err := svc.ResolveUphold(context.Background(), disputed.ID)
	if err != nil {
		t.Fatalf("ResolveUphold: %v", err)
	}
	if upheld.Status != result.StatusConfirmed {
		t.Fatalf("expected confirmed status after uphold, got %q", upheld.Status)
	}
}

func TestResultService_Void_FromConfirmed(t *testing.T) {
	t.Parallel()

	m := newTestMatch("match-1", time.Now().Add(2*time.Hour), time.Now().Add(time.Hour))
	svc, _ := newResultTestService(t, m)

	r, err := svc.Record(context.Background(), RecordInput{MatchID: "match-1", HomeScore: 2, AwayScore: 1, Source: "referee"})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	confirmed, err := svc.Confirm(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	voided, err := svc.Void(context.Background(), confirmed.ID)
	if err != nil {
		t.Fatalf("Void: %v", err)
	}
	if voided.Status != result.StatusVoided {
		t.Fatalf("expected voided status, got %q", voided.Status)
	}

	if _, err := svc.Void(context.Background(), voided.ID); !errors.Is(err, result.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition re-voiding an already-voided result, got %v", err)
	}
}

func TestResultService_Record_RejectsUnknownMatch(t *testing.T) {
	t.Parallel()

	svc, _ := newResultTestService(t)

	_, err := svc.Record(context.Background(), RecordInput{MatchID: "missing", HomeScore: 1, AwayScore: 0, Source: "referee"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
