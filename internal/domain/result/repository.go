package result

import (
	"context"
	"time"
)

// Repository exposes result persistence. Insert appends a new version row;
// the usecase layer is the only caller allowed to decide when a new version
// supersedes the prior one (spec.md §4.3).
type Repository interface {
	GetByID(ctx context.Context, resultID string) (Result, bool, error)

	// GetLatestForMatch returns the highest-Version result row for a
	// (match, resultType), if one exists. The Deadline Gate and result
	// ingestion both start here to decide whether an incoming report is a
	// first report or an amendment.
	GetLatestForMatch(ctx context.Context, matchID string, resultType Type) (Result, bool, error)

	// ListVersionsForMatch returns every version ever recorded for a
	// (match, resultType), oldest first, for audit/inspection.
	ListVersionsForMatch(ctx context.Context, matchID string, resultType Type) ([]Result, error)

	// Insert appends a new result row at the given version. Implementations
	// enforce (matchID, resultType, version) uniqueness: a second row at the
	// same version is rejected with an error rather than stored twice.
	Insert(ctx context.Context, r Result) error

	// SetStatus transitions a result's status in place. Used for
	// reported->confirmed/disputed and confirmed/amended->voided moves that
	// don't create a new version.
	SetStatus(ctx context.Context, resultID string, status Status, at time.Time) error
}
