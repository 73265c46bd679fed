package memory

import (
	"context"
	"sync"

	"github.com/riskibarqy/predictor-league/internal/domain/group"
)

// GroupRepository is an in-memory group.Repository.
type GroupRepository struct {
	mu          sync.RWMutex
	groups      map[string]group.Group
	memberships map[string]group.Membership // keyed by groupID|userID
}

func NewGroupRepository() *GroupRepository {
	return &GroupRepository{
		groups:      make(map[string]group.Group),
		memberships: make(map[string]group.Membership),
	}
}

func membershipKey(groupID, userID string) string {
	return groupID + "|" + userID
}

func (r *GroupRepository) GetByID(_ context.Context, groupID string) (group.Group, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[groupID]
	return g, ok, nil
}

func (r *GroupRepository) Insert(_ context.Context, g group.Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups[g.ID] = g
	return nil
}

func (r *GroupRepository) IsMember(_ context.Context, groupID, userID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.memberships[membershipKey(groupID, userID)]
	return ok && m.Active, nil
}

func (r *GroupRepository) AddMember(_ context.Context, m group.Membership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.Active = true
	r.memberships[membershipKey(m.GroupID, m.UserID)] = m
	return nil
}

func (r *GroupRepository) RemoveMember(_ context.Context, groupID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := membershipKey(groupID, userID)
	m, ok := r.memberships[key]
	if !ok {
		return nil
	}
	m.Active = false
	r.memberships[key] = m
	return nil
}

func (r *GroupRepository) ListMembers(_ context.Context, groupID string) ([]group.Membership, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]group.Membership, 0)
	for _, m := range r.memberships {
		if m.GroupID == groupID && m.Active {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *GroupRepository) ListForCompetition(_ context.Context, competitionID string) ([]group.Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]group.Group, 0)
	for _, g := range r.groups {
		if g.CompetitionID == competitionID {
			out = append(out, g)
		}
	}
	return out, nil
}
