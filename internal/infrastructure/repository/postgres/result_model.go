package postgres

import (
	"database/sql"
	"time"

	"github.com/riskibarqy/predictor-league/internal/domain/result"
)

type resultTableModel struct {
	ID          string       `db:"id"`
	MatchID     string       `db:"match_id"`
	ResultType  string       `db:"result_type"`
	Version     int          `db:"version"`
	HomeScore   int          `db:"home_score"`
	AwayScore   int          `db:"away_score"`
	Status      string       `db:"status"`
	Source      string       `db:"source"`
	ReportedAt  time.Time    `db:"reported_at"`
	ConfirmedAt sql.NullTime `db:"confirmed_at"`
	Notes       string       `db:"notes"`
}

func resultFromRow(row resultTableModel) result.Result {
	r := result.Result{
		ID:         row.ID,
		MatchID:    row.MatchID,
		ResultType: result.Type(row.ResultType),
		Version:    row.Version,
		HomeScore:  row.HomeScore,
		AwayScore:  row.AwayScore,
		Status:     result.Status(row.Status),
		Source:     row.Source,
		ReportedAt: row.ReportedAt,
		Notes:      row.Notes,
	}
	if row.ConfirmedAt.Valid {
		t := row.ConfirmedAt.Time
		r.ConfirmedAt = &t
	}
	return r
}
