package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/riskibarqy/predictor-league/internal/domain/prediction"
	qb "github.com/riskibarqy/predictor-league/internal/platform/querybuilder"
)

type predictionInsertModel struct {
	ID                string        `db:"id"`
	UserID            string        `db:"user_id"`
	GroupID           string        `db:"group_id"`
	MatchID           string        `db:"match_id"`
	SeasonID          string        `db:"season_id"`
	PredictedWinner   string        `db:"predicted_winner"`
	PredictedHomeGoal sql.NullInt64 `db:"predicted_home_goal"`
	PredictedAwayGoal sql.NullInt64 `db:"predicted_away_goal"`
	PlacedAt          time.Time     `db:"placed_at"`
	UpdatedAt         time.Time     `db:"updated_at"`
	Status            string        `db:"status"`
	Notes             string        `db:"notes"`
}

// PredictionRepository persists predictions under a unique constraint on
// (user_id, group_id, match_id) — the admission algorithm's last line of
// defense against a race between two concurrent Submit calls (spec.md §4.2
// step 5).
type PredictionRepository struct {
	db *sqlx.DB
}

func NewPredictionRepository(db *sqlx.DB) *PredictionRepository {
	return &PredictionRepository{db: db}
}

func (r *PredictionRepository) GetByID(ctx context.Context, predictionID string) (prediction.Prediction, bool, error) {
	query, args, err := qb.Select("*").From("predictions").
		Where(qb.Eq("id", predictionID)).
		ToSQL()
	if err != nil {
		return prediction.Prediction{}, false, fmt.Errorf("build select prediction query: %w", err)
	}

	var row predictionTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return prediction.Prediction{}, false, nil
		}
		return prediction.Prediction{}, false, fmt.Errorf("select prediction: %w", err)
	}
	return predictionFromRow(row), true, nil
}

func (r *PredictionRepository) GetByUserMatch(ctx context.Context, userID, groupID, matchID string) (prediction.Prediction, bool, error) {
	query, args, err := qb.Select("*").From("predictions").
		Where(
			qb.Eq("user_id", userID),
			qb.Eq("group_id", groupID),
			qb.Eq("match_id", matchID),
		).
		ToSQL()
	if err != nil {
		return prediction.Prediction{}, false, fmt.Errorf("build select prediction by user+match query: %w", err)
	}

	var row predictionTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return prediction.Prediction{}, false, nil
		}
		return prediction.Prediction{}, false, fmt.Errorf("select prediction by user+match: %w", err)
	}
	return predictionFromRow(row), true, nil
}

func (r *PredictionRepository) Insert(ctx context.Context, p prediction.Prediction) error {
	insertModel := predictionInsertModel{
		ID:              p.ID,
		UserID:          p.UserID,
		GroupID:         p.GroupID,
		MatchID:         p.MatchID,
		SeasonID:        p.SeasonID,
		PredictedWinner: string(p.PredictedWinner),
		PlacedAt:        p.PlacedAt,
		UpdatedAt:       p.UpdatedAt,
		Status:          string(p.Status),
		Notes:           p.Notes,
	}
	if p.PredictedHomeGoal != nil {
		insertModel.PredictedHomeGoal = sql.NullInt64{Int64: int64(*p.PredictedHomeGoal), Valid: true}
	}
	if p.PredictedAwayGoal != nil {
		insertModel.PredictedAwayGoal = sql.NullInt64{Int64: int64(*p.PredictedAwayGoal), Valid: true}
	}

	query, args, err := qb.InsertModel("predictions", insertModel, "")
	if err != nil {
		return fmt.Errorf("build insert prediction query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("prediction already exists for user=%s group=%s match=%s: %w", p.UserID, p.GroupID, p.MatchID, err)
		}
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}

func (r *PredictionRepository) UpdatePayload(ctx context.Context, predictionID string, winner prediction.Winner, homeGoals, awayGoals *int, notes string, at time.Time) error {
	update := qb.Update("predictions").
		Set("predicted_winner", string(winner)).
		Set("notes", notes).
		Set("updated_at", at)
	if homeGoals != nil {
		update = update.Set("predicted_home_goal", *homeGoals)
	} else {
		update = update.Set("predicted_home_goal", nil)
	}
	if awayGoals != nil {
		update = update.Set("predicted_away_goal", *awayGoals)
	} else {
		update = update.Set("predicted_away_goal", nil)
	}

	query, args, err := update.Where(qb.Eq("id", predictionID)).ToSQL()
	if err != nil {
		return fmt.Errorf("build update prediction payload query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update prediction payload: %w", err)
	}
	return nil
}

func (r *PredictionRepository) SetStatus(ctx context.Context, predictionID string, status prediction.Status, at time.Time) error {
	query, args, err := qb.Update("predictions").
		Set("status", string(status)).
		Set("updated_at", at).
		Where(qb.Eq("id", predictionID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update prediction status query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update prediction status: %w", err)
	}
	return nil
}

func (r *PredictionRepository) SetSettled(ctx context.Context, predictionID string, points int, at time.Time) error {
	query, args, err := qb.Update("predictions").
		Set("points_earned", points).
		Set("status", string(prediction.StatusSettled)).
		Set("updated_at", at).
		Where(qb.Eq("id", predictionID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build settle prediction query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("settle prediction: %w", err)
	}
	return nil
}

func (r *PredictionRepository) ListByMatch(ctx context.Context, matchID string) ([]prediction.Prediction, error) {
	query, args, err := qb.Select("*").From("predictions").
		Where(qb.Eq("match_id", matchID)).
		OrderBy("placed_at", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list predictions by match query: %w", err)
	}

	var rows []predictionTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list predictions by match: %w", err)
	}
	out := make([]prediction.Prediction, 0, len(rows))
	for _, row := range rows {
		out = append(out, predictionFromRow(row))
	}
	return out, nil
}

func (r *PredictionRepository) ListByMatchStatus(ctx context.Context, matchID string, status prediction.Status) ([]prediction.Prediction, error) {
	query, args, err := qb.Select("*").From("predictions").
		Where(
			qb.Eq("match_id", matchID),
			qb.Eq("status", string(status)),
		).
		OrderBy("placed_at", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list predictions by match+status query: %w", err)
	}

	var rows []predictionTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list predictions by match+status: %w", err)
	}
	out := make([]prediction.Prediction, 0, len(rows))
	for _, row := range rows {
		out = append(out, predictionFromRow(row))
	}
	return out, nil
}

func (r *PredictionRepository) ListForUser(ctx context.Context, userID, groupID string) ([]prediction.Prediction, error) {
	conditions := []qb.Condition{qb.Eq("user_id", userID)}
	if groupID != "" {
		conditions = append(conditions, qb.Eq("group_id", groupID))
	}

	query, args, err := qb.Select("*").From("predictions").
		Where(conditions...).
		OrderBy("placed_at DESC").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list predictions for user query: %w", err)
	}

	var rows []predictionTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list predictions for user: %w", err)
	}
	out := make([]prediction.Prediction, 0, len(rows))
	for _, row := range rows {
		out = append(out, predictionFromRow(row))
	}
	return out, nil
}
