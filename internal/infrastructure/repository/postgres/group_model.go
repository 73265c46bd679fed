package postgres

import (
	"time"

	"github.com/riskibarqy/predictor-league/internal/domain/group"
)

type groupTableModel struct {
	ID            string    `db:"id"`
	Name          string    `db:"name"`
	CompetitionID string    `db:"competition_id"`
	OwnerUserID   string    `db:"owner_user_id"`
	CreatedAt     time.Time `db:"created_at"`
}

func groupFromRow(row groupTableModel) group.Group {
	return group.Group{
		ID:            row.ID,
		Name:          row.Name,
		CompetitionID: row.CompetitionID,
		OwnerUserID:   row.OwnerUserID,
		CreatedAt:     row.CreatedAt,
	}
}

type groupMembershipTableModel struct {
	GroupID  string    `db:"group_id"`
	UserID   string    `db:"user_id"`
	JoinedAt time.Time `db:"joined_at"`
	Active   bool      `db:"active"`
}

func membershipFromRow(row groupMembershipTableModel) group.Membership {
	return group.Membership{
		GroupID:  row.GroupID,
		UserID:   row.UserID,
		JoinedAt: row.JoinedAt,
		Active:   row.Active,
	}
}
