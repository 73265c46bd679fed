package group

import "context"

// Repository persists groups and their memberships.
type Repository interface {
	GetByID(ctx context.Context, groupID string) (Group, bool, error)
	Insert(ctx context.Context, g Group) error

	// IsMember reports whether userID has an active Membership in groupID —
	// the gate the prediction usecase checks before admitting a Submit
	// (spec.md §3).
	IsMember(ctx context.Context, groupID, userID string) (bool, error)

	AddMember(ctx context.Context, m Membership) error
	RemoveMember(ctx context.Context, groupID, userID string) error

	// ListMembers returns every active member of a group, the population a
	// leaderboard Rebuild iterates over.
	ListMembers(ctx context.Context, groupID string) ([]Membership, error)

	// ListForCompetition returns every group scoped to a competition. The
	// usecase layer does not call it.
	ListForCompetition(ctx context.Context, competitionID string) ([]Group, error)
}
