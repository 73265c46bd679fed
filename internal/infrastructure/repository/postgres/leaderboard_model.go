package postgres

import (
	"database/sql"

	"github.com/riskibarqy/predictor-league/internal/domain/leaderboard"
)

type leaderboardTableModel struct {
	GroupID                string       `db:"group_id"`
	SeasonID                string       `db:"season_id"`
	UserID                 string       `db:"user_id"`
	TotalPoints            int          `db:"total_points"`
	ExactScoreCount        int          `db:"exact_score_count"`
	WinnerOnlyCount        int          `db:"winner_only_count"`
	SettledPredictionCount int          `db:"settled_prediction_count"`
	LastUpdatedAt          sql.NullTime `db:"last_updated_at"`
	RankCached             int          `db:"rank_cached"`
}

func leaderboardFromRow(row leaderboardTableModel) leaderboard.Entry {
	e := leaderboard.Entry{
		GroupID:                row.GroupID,
		SeasonID:               row.SeasonID,
		UserID:                 row.UserID,
		TotalPoints:            row.TotalPoints,
		ExactScoreCount:        row.ExactScoreCount,
		WinnerOnlyCount:        row.WinnerOnlyCount,
		SettledPredictionCount: row.SettledPredictionCount,
		RankCached:             row.RankCached,
	}
	if row.LastUpdatedAt.Valid {
		e.LastUpdatedAt = row.LastUpdatedAt.Time
	}
	return e
}

type leaderboardInsertModel struct {
	GroupID                string       `db:"group_id"`
	SeasonID                string       `db:"season_id"`
	UserID                 string       `db:"user_id"`
	TotalPoints            int          `db:"total_points"`
	ExactScoreCount        int          `db:"exact_score_count"`
	WinnerOnlyCount        int          `db:"winner_only_count"`
	SettledPredictionCount int          `db:"settled_prediction_count"`
	LastUpdatedAt          sql.NullTime `db:"last_updated_at"`
	RankCached             int          `db:"rank_cached"`
}

func leaderboardInsertModelFrom(e leaderboard.Entry) leaderboardInsertModel {
	m := leaderboardInsertModel{
		GroupID:                e.GroupID,
		SeasonID:               e.SeasonID,
		UserID:                 e.UserID,
		TotalPoints:            e.TotalPoints,
		ExactScoreCount:        e.ExactScoreCount,
		WinnerOnlyCount:        e.WinnerOnlyCount,
		SettledPredictionCount: e.SettledPredictionCount,
		RankCached:             e.RankCached,
	}
	if !e.LastUpdatedAt.IsZero() {
		m.LastUpdatedAt = sql.NullTime{Time: e.LastUpdatedAt, Valid: true}
	}
	return m
}
