package postgres

import (
	"database/sql"
	"time"

	"github.com/riskibarqy/predictor-league/internal/domain/match"
)

type matchTableModel struct {
	ID              string        `db:"id"`
	CompetitionID   string        `db:"competition_id"`
	SeasonID        string        `db:"season_id"`
	HomeParticipant string        `db:"home_participant"`
	AwayParticipant string        `db:"away_participant"`
	ScheduledAt     time.Time     `db:"scheduled_at"`
	BettingClosesAt time.Time     `db:"betting_closes_at"`
	Status          string        `db:"status"`
	HomeScore       sql.NullInt64 `db:"home_score"`
	AwayScore       sql.NullInt64 `db:"away_score"`
	RoundNumber     int           `db:"round_number"`
	MatchDay        int           `db:"match_day"`
	CreatedAt       time.Time     `db:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at"`
}

func matchFromRow(row matchTableModel) match.Match {
	m := match.Match{
		ID:              row.ID,
		CompetitionID:   row.CompetitionID,
		SeasonID:        row.SeasonID,
		HomeParticipant: row.HomeParticipant,
		AwayParticipant: row.AwayParticipant,
		ScheduledAt:     row.ScheduledAt,
		BettingClosesAt: row.BettingClosesAt,
		Status:          match.NormalizeStatus(match.Status(row.Status)),
		RoundNumber:     row.RoundNumber,
		MatchDay:        row.MatchDay,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
	if row.HomeScore.Valid {
		v := int(row.HomeScore.Int64)
		m.HomeScore = &v
	}
	if row.AwayScore.Valid {
		v := int(row.AwayScore.Int64)
		m.AwayScore = &v
	}
	return m
}
