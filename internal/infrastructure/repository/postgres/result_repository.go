package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/riskibarqy/predictor-league/internal/domain/outbox"
	"github.com/riskibarqy/predictor-league/internal/domain/result"
	qb "github.com/riskibarqy/predictor-league/internal/platform/querybuilder"
)

type resultInsertModel struct {
	ID         string    `db:"id"`
	MatchID    string    `db:"match_id"`
	ResultType string    `db:"result_type"`
	Version    int       `db:"version"`
	HomeScore  int       `db:"home_score"`
	AwayScore  int       `db:"away_score"`
	Status     string    `db:"status"`
	Source     string    `db:"source"`
	ReportedAt time.Time `db:"reported_at"`
	Notes      string    `db:"notes"`
}

// ResultRepository persists ingested results and implements
// usecase.ResultStore: the transition-plus-outbox-event writes run in a
// single transaction (spec.md §4.3 Failure semantics), grounded on the
// teacher's BeginTxx/Commit/deferred-Rollback idiom.
type ResultRepository struct {
	db *sqlx.DB
}

func NewResultRepository(db *sqlx.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

func (r *ResultRepository) GetByID(ctx context.Context, resultID string) (result.Result, bool, error) {
	query, args, err := qb.Select("*").From("results").
		Where(qb.Eq("id", resultID)).
		ToSQL()
	if err != nil {
		return result.Result{}, false, fmt.Errorf("build select result query: %w", err)
	}

	var row resultTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return result.Result{}, false, nil
		}
		return result.Result{}, false, fmt.Errorf("select result: %w", err)
	}
	return resultFromRow(row), true, nil
}

func (r *ResultRepository) GetLatestForMatch(ctx context.Context, matchID string, resultType result.Type) (result.Result, bool, error) {
	query, args, err := qb.Select("*").From("results").
		Where(
			qb.Eq("match_id", matchID),
			qb.Eq("result_type", string(resultType)),
		).
		OrderBy("version DESC").
		Limit(1).
		ToSQL()
	if err != nil {
		return result.Result{}, false, fmt.Errorf("build select latest result query: %w", err)
	}

	var row resultTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return result.Result{}, false, nil
		}
		return result.Result{}, false, fmt.Errorf("select latest result: %w", err)
	}
	return resultFromRow(row), true, nil
}

func (r *ResultRepository) ListVersionsForMatch(ctx context.Context, matchID string, resultType result.Type) ([]result.Result, error) {
	query, args, err := qb.Select("*").From("results").
		Where(
			qb.Eq("match_id", matchID),
			qb.Eq("result_type", string(resultType)),
		).
		OrderBy("version").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list result versions query: %w", err)
	}

	var rows []resultTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list result versions: %w", err)
	}
	out := make([]result.Result, 0, len(rows))
	for _, row := range rows {
		out = append(out, resultFromRow(row))
	}
	return out, nil
}

func (r *ResultRepository) Insert(ctx context.Context, res result.Result) error {
	insertModel := resultInsertModel{
		ID:         res.ID,
		MatchID:    res.MatchID,
		ResultType: string(res.ResultType),
		Version:    res.Version,
		HomeScore:  res.HomeScore,
		AwayScore:  res.AwayScore,
		Status:     string(res.Status),
		Source:     res.Source,
		ReportedAt: res.ReportedAt,
		Notes:      res.Notes,
	}
	query, args, err := qb.InsertModel("results", insertModel, "")
	if err != nil {
		return fmt.Errorf("build insert result query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert result (match=%s type=%s version=%d): %w", res.MatchID, res.ResultType, res.Version, err)
	}
	return nil
}

func (r *ResultRepository) SetStatus(ctx context.Context, resultID string, status result.Status, at time.Time) error {
	update := qb.Update("results").Set("status", string(status))
	if status == result.StatusConfirmed {
		update = update.Set("confirmed_at", at)
	}
	query, args, err := update.Where(qb.Eq("id", resultID)).ToSQL()
	if err != nil {
		return fmt.Errorf("build update result status query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update result status: %w", err)
	}
	return nil
}

func (r *ResultRepository) InsertWithEvent(ctx context.Context, res result.Result, ev outbox.Event) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx insert result with event: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	insertModel := resultInsertModel{
		ID:         res.ID,
		MatchID:    res.MatchID,
		ResultType: string(res.ResultType),
		Version:    res.Version,
		HomeScore:  res.HomeScore,
		AwayScore:  res.AwayScore,
		Status:     string(res.Status),
		Source:     res.Source,
		ReportedAt: res.ReportedAt,
		Notes:      res.Notes,
	}
	query, args, err := qb.InsertModel("results", insertModel, "")
	if err != nil {
		return fmt.Errorf("build insert result query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert result (match=%s type=%s version=%d): %w", res.MatchID, res.ResultType, res.Version, err)
	}

	if err := insertOutboxTx(ctx, tx, ev); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert result with event tx: %w", err)
	}
	return nil
}

func (r *ResultRepository) TransitionWithEvent(ctx context.Context, resultID string, to result.Status, at time.Time, ev *outbox.Event) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx transition result with event: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	update := qb.Update("results").Set("status", string(to))
	if to == result.StatusConfirmed {
		update = update.Set("confirmed_at", at)
	}
	query, args, err := update.Where(qb.Eq("id", resultID)).ToSQL()
	if err != nil {
		return fmt.Errorf("build transition result query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("transition result: %w", err)
	}

	if ev != nil {
		if err := insertOutboxTx(ctx, tx, *ev); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transition result with event tx: %w", err)
	}
	return nil
}
