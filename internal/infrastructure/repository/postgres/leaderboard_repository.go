package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/riskibarqy/predictor-league/internal/domain/leaderboard"
	qb "github.com/riskibarqy/predictor-league/internal/platform/querybuilder"
)

// LeaderboardRepository persists materialized per-group standings. Upsert
// here is a plain replace (spec.md §4.5: Repository never computes points
// itself) — the additive arithmetic used by settlement writes lives in
// SettlementRepository.applyLeaderboardDeltaTx, which writes this same table
// directly within the settlement transaction.
type LeaderboardRepository struct {
	db *sqlx.DB
}

func NewLeaderboardRepository(db *sqlx.DB) *LeaderboardRepository {
	return &LeaderboardRepository{db: db}
}

func (r *LeaderboardRepository) Upsert(ctx context.Context, e leaderboard.Entry) error {
	query, args, err := qb.InsertModel("leaderboard_entries", leaderboardInsertModelFrom(e), "")
	if err != nil {
		return fmt.Errorf("build upsert leaderboard entry query: %w", err)
	}
	query += ` ON CONFLICT (group_id, season_id, user_id) DO UPDATE SET
		total_points = EXCLUDED.total_points,
		exact_score_count = EXCLUDED.exact_score_count,
		winner_only_count = EXCLUDED.winner_only_count,
		settled_prediction_count = EXCLUDED.settled_prediction_count,
		last_updated_at = EXCLUDED.last_updated_at,
		rank_cached = EXCLUDED.rank_cached`
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert leaderboard entry: %w", err)
	}
	return nil
}

func (r *LeaderboardRepository) Get(ctx context.Context, groupID, seasonID, userID string) (leaderboard.Entry, bool, error) {
	query, args, err := qb.Select("*").From("leaderboard_entries").
		Where(
			qb.Eq("group_id", groupID),
			qb.Eq("season_id", seasonID),
			qb.Eq("user_id", userID),
		).
		ToSQL()
	if err != nil {
		return leaderboard.Entry{}, false, fmt.Errorf("build select leaderboard entry query: %w", err)
	}

	var row leaderboardTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return leaderboard.Entry{}, false, nil
		}
		return leaderboard.Entry{}, false, fmt.Errorf("select leaderboard entry: %w", err)
	}
	return leaderboardFromRow(row), true, nil
}

func (r *LeaderboardRepository) ListByGroup(ctx context.Context, groupID, seasonID string) ([]leaderboard.Entry, error) {
	query, args, err := qb.Select("*").From("leaderboard_entries").
		Where(
			qb.Eq("group_id", groupID),
			qb.Eq("season_id", seasonID),
		).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list leaderboard entries query: %w", err)
	}

	var rows []leaderboardTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list leaderboard entries: %w", err)
	}
	out := make([]leaderboard.Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, leaderboardFromRow(row))
	}
	return out, nil
}

func (r *LeaderboardRepository) DeleteByGroup(ctx context.Context, groupID, seasonID string) error {
	const query = `DELETE FROM leaderboard_entries WHERE group_id = $1 AND season_id = $2`
	if _, err := r.db.ExecContext(ctx, query, groupID, seasonID); err != nil {
		return fmt.Errorf("delete leaderboard entries: %w", err)
	}
	return nil
}
