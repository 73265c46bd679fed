package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/riskibarqy/predictor-league/internal/domain/group"
	qb "github.com/riskibarqy/predictor-league/internal/platform/querybuilder"
)

// GroupRepository persists groups and their memberships, the tenant
// boundary spec.md §1 scopes every prediction and leaderboard within.
type GroupRepository struct {
	db *sqlx.DB
}

func NewGroupRepository(db *sqlx.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

func (r *GroupRepository) GetByID(ctx context.Context, groupID string) (group.Group, bool, error) {
	query, args, err := qb.Select("*").From("groups").
		Where(qb.Eq("id", groupID)).
		ToSQL()
	if err != nil {
		return group.Group{}, false, fmt.Errorf("build select group query: %w", err)
	}

	var row groupTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return group.Group{}, false, nil
		}
		return group.Group{}, false, fmt.Errorf("select group: %w", err)
	}
	return groupFromRow(row), true, nil
}

func (r *GroupRepository) Insert(ctx context.Context, g group.Group) error {
	query, args, err := qb.InsertModel("groups", groupTableModel{
		ID:            g.ID,
		Name:          g.Name,
		CompetitionID: g.CompetitionID,
		OwnerUserID:   g.OwnerUserID,
		CreatedAt:     g.CreatedAt,
	}, "")
	if err != nil {
		return fmt.Errorf("build insert group query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert group: %w", err)
	}
	return nil
}

func (r *GroupRepository) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	query, args, err := qb.Select("1").From("group_memberships").
		Where(
			qb.Eq("group_id", groupID),
			qb.Eq("user_id", userID),
			qb.Eq("active", true),
		).
		Limit(1).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build is member query: %w", err)
	}

	var exists int
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check membership: %w", err)
	}
	return true, nil
}

func (r *GroupRepository) AddMember(ctx context.Context, m group.Membership) error {
	insertModel := groupMembershipTableModel{
		GroupID:  m.GroupID,
		UserID:   m.UserID,
		JoinedAt: m.JoinedAt,
		Active:   true,
	}
	query, args, err := qb.InsertModel("group_memberships", insertModel, "")
	if err != nil {
		return fmt.Errorf("build add member query: %w", err)
	}
	query += ` ON CONFLICT (group_id, user_id) DO UPDATE SET active = true, joined_at = EXCLUDED.joined_at`
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

func (r *GroupRepository) RemoveMember(ctx context.Context, groupID, userID string) error {
	query, args, err := qb.Update("group_memberships").
		Set("active", false).
		Where(
			qb.Eq("group_id", groupID),
			qb.Eq("user_id", userID),
		).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build remove member query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

func (r *GroupRepository) ListMembers(ctx context.Context, groupID string) ([]group.Membership, error) {
	query, args, err := qb.Select("*").From("group_memberships").
		Where(
			qb.Eq("group_id", groupID),
			qb.Eq("active", true),
		).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list members query: %w", err)
	}

	var rows []groupMembershipTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	out := make([]group.Membership, 0, len(rows))
	for _, row := range rows {
		out = append(out, membershipFromRow(row))
	}
	return out, nil
}

func (r *GroupRepository) ListForCompetition(ctx context.Context, competitionID string) ([]group.Group, error) {
	query, args, err := qb.Select("*").From("groups").
		Where(qb.Eq("competition_id", competitionID)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list groups for competition query: %w", err)
	}

	var rows []groupTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list groups for competition: %w", err)
	}
	out := make([]group.Group, 0, len(rows))
	for _, row := range rows {
		out = append(out, groupFromRow(row))
	}
	return out, nil
}
