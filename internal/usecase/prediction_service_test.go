package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riskibarqy/predictor-league/internal/domain/group"
	"github.com/riskibarqy/predictor-league/internal/domain/match"
	"github.com/riskibarqy/predictor-league/internal/domain/prediction"
	"github.com/riskibarqy/predictor-league/internal/infrastructure/repository/memory"
)

func newTestMatch(id string, scheduledAt, bettingClosesAt time.Time) match.Match {
	return match.Match{
		ID:              id,
		CompetitionID:   "comp-1",
		SeasonID:        "season-1",
		HomeParticipant: "persija",
		AwayParticipant: "persib",
		ScheduledAt:     scheduledAt,
		BettingClosesAt: bettingClosesAt,
		Status:          match.StatusScheduled,
	}
}

func newPredictionTestService(t *testing.T, matches ...match.Match) (*PredictionService, *memory.GroupRepository, *memory.MatchRepository) {
	t.Helper()

	matchRepo := memory.NewMatchRepository(matches...)
	groupRepo := memory.NewGroupRepository()
	predictionRepo := memory.NewPredictionRepository()

	if err := groupRepo.Insert(context.Background(), group.Group{
		ID: "group-1", Name: "Office Pool", CompetitionID: "comp-1", OwnerUserID: "user-owner",
	}); err != nil {
		t.Fatalf("seed group: %v", err)
	}
	if err := groupRepo.AddMember(context.Background(), group.Membership{
		GroupID: "group-1", UserID: "user-1", Active: true, JoinedAt: time.Now(),
	}); err != nil {
		t.Fatalf("seed membership: %v", err)
	}

	svc := NewPredictionService(predictionRepo, matchRepo, groupRepo, nil, nil)
	return svc, groupRepo, matchRepo
}

func TestPredictionService_Submit_AdmitsValidPrediction(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	m := newTestMatch("match-1", now.Add(24*time.Hour), now.Add(23*time.Hour))
	svc, _, _ := newPredictionTestService(t, m)

	home, away := 2, 1
	p, err := svc.Submit(context.Background(), SubmitInput{
		UserID:  "user-1",
		GroupID: "group-1",
		MatchID: "match-1",
		Payload: prediction.Payload{HomeGoals: &home, AwayGoals: &away},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if p.PredictedWinner != prediction.WinnerHome {
		t.Fatalf("expected implied winner HOME, got %q", p.PredictedWinner)
	}
	if p.Status != prediction.StatusPending {
		t.Fatalf("expected status pending, got %q", p.Status)
	}
	if p.SeasonID != "season-1" {
		t.Fatalf("expected prediction to inherit the match's season, got %q", p.SeasonID)
	}
}

func TestPredictionService_Submit_RejectsNonMember(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	m := newTestMatch("match-1", now.Add(24*time.Hour), now.Add(23*time.Hour))
	svc, _, _ := newPredictionTestService(t, m)

	_, err := svc.Submit(context.Background(), SubmitInput{
		UserID:  "user-stranger",
		GroupID: "group-1",
		MatchID: "match-1",
		Payload: prediction.Payload{Winner: prediction.WinnerDraw},
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestPredictionService_Submit_RejectsAfterWindowCloses(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	m := newTestMatch("match-1", now.Add(1*time.Hour), now.Add(-1*time.Minute))
	svc, _, _ := newPredictionTestService(t, m)

	_, err := svc.Submit(context.Background(), SubmitInput{
		UserID:  "user-1",
		GroupID: "group-1",
		MatchID: "match-1",
		Payload: prediction.Payload{Winner: prediction.WinnerDraw},
	})
	if !errors.Is(err, ErrDeadlineExceeded) {
		t.Fatalf("expected ErrDeadlineExceeded, got %v", err)
	}
}

func TestPredictionService_Submit_RejectsDuplicate(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	m := newTestMatch("match-1", now.Add(24*time.Hour), now.Add(23*time.Hour))
	svc, _, _ := newPredictionTestService(t, m)

	in := SubmitInput{
		UserID:  "user-1",
		GroupID: "group-1",
		MatchID: "match-1",
		Payload: prediction.Payload{Winner: prediction.WinnerDraw},
	}
	if _, err := svc.Submit(context.Background(), in); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if _, err := svc.Submit(context.Background(), in); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate submit, got %v", err)
	}
}

func TestPredictionService_Update_RejectsNonOwner(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	m := newTestMatch("match-1", now.Add(24*time.Hour), now.Add(23*time.Hour))
	svc, _, _ := newPredictionTestService(t, m)

	p, err := svc.Submit(context.Background(), SubmitInput{
		UserID:  "user-1",
		GroupID: "group-1",
		MatchID: "match-1",
		Payload: prediction.Payload{Winner: prediction.WinnerDraw},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	_, err = svc.Update(context.Background(), UpdateInput{
		PredictionID: p.ID,
		UserID:       "user-other",
		Payload:      prediction.Payload{Winner: prediction.WinnerAway},
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestPredictionService_Cancel_ThenResubmitAllowed(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	m := newTestMatch("match-1", now.Add(24*time.Hour), now.Add(23*time.Hour))
	svc, _, _ := newPredictionTestService(t, m)

	in := SubmitInput{
		UserID:  "user-1",
		GroupID: "group-1",
		MatchID: "match-1",
		Payload: prediction.Payload{Winner: prediction.WinnerDraw},
	}
	p, err := svc.Submit(context.Background(), in)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if _, err := svc.Cancel(context.Background(), p.ID, "user-1"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	if _, err := svc.Submit(context.Background(), in); err != nil {
		t.Fatalf("resubmit after cancel should be allowed, got: %v", err)
	}
}

func TestPredictionService_Submit_RejectsTerminalMatch(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	m := newTestMatch("match-1", now.Add(24*time.Hour), now.Add(23*time.Hour))
	m.Status = match.StatusCancelled
	svc, _, _ := newPredictionTestService(t, m)

	_, err := svc.Submit(context.Background(), SubmitInput{
		UserID:  "user-1",
		GroupID: "group-1",
		MatchID: "match-1",
		Payload: prediction.Payload{Winner: prediction.WinnerDraw},
	})
	if !errors.Is(err, ErrDeadlineExceeded) {
		t.Fatalf("expected ErrDeadlineExceeded for terminal match, got %v", err)
	}
}
