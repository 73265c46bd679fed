package group

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidGroup marks a structural invariant violation.
var ErrInvalidGroup = errors.New("invalid group")

// Group is the tenant boundary spec.md §1 requires every prediction and
// leaderboard to be scoped within: a named pool of users competing against
// each other over a shared set of matches.
type Group struct {
	ID            string
	Name          string
	CompetitionID string
	OwnerUserID   string
	CreatedAt     time.Time
}

// Validate enforces the structural invariants independent of membership
// state.
func (g Group) Validate() error {
	if g.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidGroup)
	}
	if g.CompetitionID == "" {
		return fmt.Errorf("%w: competition id is required", ErrInvalidGroup)
	}
	if g.OwnerUserID == "" {
		return fmt.Errorf("%w: owner user id is required", ErrInvalidGroup)
	}
	return nil
}

// Membership is a user's enrollment in a Group; predictions and
// leaderboard entries are only valid for (userID, groupID) pairs with an
// active Membership (spec.md §3: "a prediction must reference a group the
// user belongs to").
type Membership struct {
	GroupID  string
	UserID   string
	JoinedAt time.Time
	Active   bool
}
