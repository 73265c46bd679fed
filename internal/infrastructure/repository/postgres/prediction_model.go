package postgres

import (
	"database/sql"
	"time"

	"github.com/riskibarqy/predictor-league/internal/domain/prediction"
)

type predictionTableModel struct {
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
	PointsEarned      int           `db:"points_earned"`
	Notes             string        `db:"notes"`
}

func predictionFromRow(row predictionTableModel) prediction.Prediction {
	p := prediction.Prediction{
		ID:              row.ID,
		UserID:          row.UserID,
		GroupID:         row.GroupID,
		MatchID:         row.MatchID,
		SeasonID:        row.SeasonID,
		PredictedWinner: prediction.Winner(row.PredictedWinner),
		PlacedAt:        row.PlacedAt,
		UpdatedAt:       row.UpdatedAt,
		Status:          prediction.Status(row.Status),
		PointsEarned:    row.PointsEarned,
		Notes:           row.Notes,
	}
	if row.PredictedHomeGoal.Valid {
		v := int(row.PredictedHomeGoal.Int64)
		p.PredictedHomeGoal = &v
	}
	if row.PredictedAwayGoal.Valid {
		v := int(row.PredictedAwayGoal.Int64)
		p.PredictedAwayGoal = &v
	}
	return p
}
