package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/riskibarqy/predictor-league/internal/domain/prediction"
	"github.com/riskibarqy/predictor-league/internal/domain/settlement"
	qb "github.com/riskibarqy/predictor-league/internal/platform/querybuilder"
	"github.com/riskibarqy/predictor-league/internal/usecase"
)

// SettlementRepository implements both settlement.Repository and
// usecase.SettlementStore: SettleOne/VoidOne write the settlement row, the
// prediction's points/status, and the leaderboard delta in one transaction
// (spec.md §4.4: "every write occurs in one transaction per prediction").
// The settlement insert carries an ON CONFLICT DO NOTHING suffix keyed on
// (prediction_id, result_version) so a replayed settlement attempt is a
// true no-op rather than a duplicate row (spec.md §7).
type SettlementRepository struct {
	db *sqlx.DB
}

func NewSettlementRepository(db *sqlx.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

func (r *SettlementRepository) Insert(ctx context.Context, s settlement.Settlement) (bool, error) {
	query, args, err := qb.InsertModel("settlements", settlementInsertModelFrom(s), "")
	if err != nil {
		return false, fmt.Errorf("build insert settlement query: %w", err)
	}
	query += " ON CONFLICT (prediction_id, result_version) DO NOTHING"

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("insert settlement: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("read settlement insert rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *SettlementRepository) GetByPredictionVersion(ctx context.Context, predictionID string, resultVersion int) (settlement.Settlement, bool, error) {
	query, args, err := qb.Select("*").From("settlements").
		Where(
			qb.Eq("prediction_id", predictionID),
			qb.Eq("result_version", resultVersion),
		).
		ToSQL()
	if err != nil {
		return settlement.Settlement{}, false, fmt.Errorf("build select settlement query: %w", err)
	}

	var row settlementTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return settlement.Settlement{}, false, nil
		}
		return settlement.Settlement{}, false, fmt.Errorf("select settlement: %w", err)
	}
	return settlementFromRow(row), true, nil
}

func (r *SettlementRepository) ListByMatch(ctx context.Context, matchID string) ([]settlement.Settlement, error) {
	query, args, err := qb.Select("*").From("settlements").
		Where(qb.Eq("match_id", matchID)).
		OrderBy("prediction_id", "result_version").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list settlements by match query: %w", err)
	}
	var rows []settlementTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list settlements by match: %w", err)
	}
	out := make([]settlement.Settlement, 0, len(rows))
	for _, row := range rows {
		out = append(out, settlementFromRow(row))
	}
	return out, nil
}

func (r *SettlementRepository) ListLatestByMatch(ctx context.Context, matchID string) ([]settlement.Settlement, error) {
	query, args, err := qb.Select("DISTINCT ON (prediction_id) *").From("settlements").
		Where(qb.Eq("match_id", matchID)).
		OrderBy("prediction_id", "result_version DESC").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list latest settlements by match query: %w", err)
	}
	var rows []settlementTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list latest settlements by match: %w", err)
	}
	out := make([]settlement.Settlement, 0, len(rows))
	for _, row := range rows {
		out = append(out, settlementFromRow(row))
	}
	return out, nil
}

func (r *SettlementRepository) ListByUser(ctx context.Context, userID, groupID, seasonID string) ([]settlement.Settlement, error) {
	predConditions := []qb.Condition{
		qb.Eq("user_id", userID),
		qb.Eq("group_id", groupID),
	}
	if seasonID != "" {
		predConditions = append(predConditions, qb.Eq("season_id", seasonID))
	}
	predQuery, predArgs, err := qb.Select("id").From("predictions").
		Where(predConditions...).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list prediction ids for user query: %w", err)
	}

	var predictionIDs []string
	if err := r.db.SelectContext(ctx, &predictionIDs, predQuery, predArgs...); err != nil {
		return nil, fmt.Errorf("list prediction ids for user: %w", err)
	}
	if len(predictionIDs) == 0 {
		return nil, nil
	}

	ids := make([]any, 0, len(predictionIDs))
	for _, id := range predictionIDs {
		ids = append(ids, id)
	}

	// DISTINCT ON (prediction_id) ... ORDER BY prediction_id,
	// ABS(result_version) DESC, result_version ASC picks, per prediction, the
	// highest-magnitude-version row (the reversal first on a tie): a positive forward
	// version beats any lower one, and a negative reversal
	// (settlement.VoidedMarker) only wins over the forward version it voided
	// when no higher forward version has superseded it since (spec.md §3,
	// §4.4). That matches currentSettlement's in-memory resolution.
	query, args, err := qb.Select("DISTINCT ON (prediction_id) *").From("settlements").
		Where(qb.In("prediction_id", ids)).
		OrderBy("prediction_id", "ABS(result_version) DESC", "result_version ASC").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list settlements by user query: %w", err)
	}
	var rows []settlementTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list settlements by user: %w", err)
	}
	out := make([]settlement.Settlement, 0, len(rows))
	for _, row := range rows {
		s := settlementFromRow(row)
		if s.Outcome == settlement.OutcomeVoid {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *SettlementRepository) SettleOne(ctx context.Context, s settlement.Settlement, p prediction.Prediction, delta usecase.LeaderboardDelta) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx settle one: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	insertQuery, insertArgs, err := qb.InsertModel("settlements", settlementInsertModelFrom(s), "")
	if err != nil {
		return false, fmt.Errorf("build insert settlement query: %w", err)
	}
	insertQuery += " ON CONFLICT (prediction_id, result_version) DO NOTHING"

	res, err := tx.ExecContext(ctx, insertQuery, insertArgs...)
	if err != nil {
		return false, fmt.Errorf("insert settlement: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("read settlement insert rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	predQuery, predArgs, err := qb.Update("predictions").
		Set("points_earned", p.PointsEarned).
		Set("status", string(p.Status)).
		Set("updated_at", s.SettledAt).
		Where(qb.Eq("id", p.ID)).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build settle prediction query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, predQuery, predArgs...); err != nil {
		return false, fmt.Errorf("settle prediction: %w", err)
	}

	if err := applyLeaderboardDeltaTx(ctx, tx, delta); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit settle one tx: %w", err)
	}
	return true, nil
}

// VoidOne writes s (a reversal row keyed at settlement.VoidedMarker(prior),
// Outcome = OutcomeVoid) as a brand new settlements row rather than updating
// the prior row in place: Settlement is write-once and the original award
// must survive untouched as an audit trail entry (spec.md §3, §4.4). The
// insert carries the same ON CONFLICT DO NOTHING guard as SettleOne so a
// replayed void event is a no-op.
func (r *SettlementRepository) VoidOne(ctx context.Context, s settlement.Settlement, predictionID string, delta usecase.LeaderboardDelta) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx void one: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	insertQuery, insertArgs, err := qb.InsertModel("settlements", settlementInsertModelFrom(s), "")
	if err != nil {
		return false, fmt.Errorf("build insert void reversal query: %w", err)
	}
	insertQuery += " ON CONFLICT (prediction_id, result_version) DO NOTHING"

	res, err := tx.ExecContext(ctx, insertQuery, insertArgs...)
	if err != nil {
		return false, fmt.Errorf("insert void reversal: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("read void reversal insert rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	predQuery, predArgs, err := qb.Update("predictions").
		Set("status", string(prediction.StatusVoided)).
		Set("updated_at", s.SettledAt).
		Where(qb.Eq("id", predictionID)).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build void prediction query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, predQuery, predArgs...); err != nil {
		return false, fmt.Errorf("void prediction: %w", err)
	}

	if err := applyLeaderboardDeltaTx(ctx, tx, delta); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit void one tx: %w", err)
	}
	return true, nil
}

// applyLeaderboardDeltaTx performs a genuinely additive upsert (spec.md
// §4.5: "an upsert with additive updates under row lock") via
// ON CONFLICT ... DO UPDATE with arithmetic against the existing row,
// avoiding the read-modify-write race a SELECT-then-UPDATE pair would have.
func applyLeaderboardDeltaTx(ctx context.Context, tx *sqlx.Tx, delta usecase.LeaderboardDelta) error {
	insertModel := leaderboardInsertModel{
		GroupID:                delta.GroupID,
		SeasonID:               delta.SeasonID,
		UserID:                 delta.UserID,
		TotalPoints:            delta.Points,
		ExactScoreCount:        delta.Exact,
		WinnerOnlyCount:        delta.Winner,
		SettledPredictionCount: delta.Count,
	}
	if !delta.At.IsZero() {
		insertModel.LastUpdatedAt = sql.NullTime{Time: delta.At, Valid: true}
	}
	query, args, err := qb.InsertModel("leaderboard_entries", insertModel, "")
	if err != nil {
		return fmt.Errorf("build upsert leaderboard entry query: %w", err)
	}
	query += ` ON CONFLICT (group_id, season_id, user_id) DO UPDATE SET
		total_points = leaderboard_entries.total_points + EXCLUDED.total_points,
		exact_score_count = leaderboard_entries.exact_score_count + EXCLUDED.exact_score_count,
		winner_only_count = leaderboard_entries.winner_only_count + EXCLUDED.winner_only_count,
		settled_prediction_count = leaderboard_entries.settled_prediction_count + EXCLUDED.settled_prediction_count,
		last_updated_at = EXCLUDED.last_updated_at`
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert leaderboard entry: %w", err)
	}
	return nil
}
