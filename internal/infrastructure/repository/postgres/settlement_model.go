package postgres

import (
	"time"

	"github.com/riskibarqy/predictor-league/internal/domain/settlement"
)

type settlementTableModel struct {
	ID            string    `db:"id"`
	PredictionID  string    `db:"prediction_id"`
	MatchID       string    `db:"match_id"`
	ResultVersion int       `db:"result_version"`
	Outcome       string    `db:"outcome"`
	Points        int       `db:"points"`
	SettledAt     time.Time `db:"settled_at"`
}

func settlementFromRow(row settlementTableModel) settlement.Settlement {
	return settlement.Settlement{
		ID:            row.ID,
		PredictionID:  row.PredictionID,
		MatchID:       row.MatchID,
		ResultVersion: row.ResultVersion,
		Outcome:       settlement.Outcome(row.Outcome),
		Points:        row.Points,
		SettledAt:     row.SettledAt,
	}
}

type settlementInsertModel struct {
	ID            string    `db:"id"`
	PredictionID  string    `db:"prediction_id"`
	MatchID       string    `db:"match_id"`
	ResultVersion int       `db:"result_version"`
	Outcome       string    `db:"outcome"`
	Points        int       `db:"points"`
	SettledAt     time.Time `db:"settled_at"`
}

func settlementInsertModelFrom(s settlement.Settlement) settlementInsertModel {
	return settlementInsertModel{
		ID:            s.ID,
		PredictionID:  s.PredictionID,
		MatchID:       s.MatchID,
		ResultVersion: s.ResultVersion,
		Outcome:       string(s.Outcome),
		Points:        s.Points,
		SettledAt:     s.SettledAt,
	}
}
