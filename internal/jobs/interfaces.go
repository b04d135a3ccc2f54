package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/craftora/backoffice/internal/duplicates"
	"github.com/craftora/backoffice/internal/risk"
)

// RiskUpdater persists a freshly computed risk score for one account
type RiskUpdater interface {
	UpdateUserRiskScore(ctx context.Context, userID uuid.UUID) error
}

// RiskPopulationLister selects the prioritized account populations the
// risk-update job walks
type RiskPopulationLister interface {
	ListUserIDsWithMinScore(ctx context.Context, minScore int) ([]uuid.UUID, error)
	ListUserIDsWithRecentSecurityEvents(ctx context.Context, days int) ([]uuid.UUID, error)
	ListRecentlyCreatedUserIDs(ctx context.Context, days int) ([]uuid.UUID, error)
}

// DuplicateDetector runs the batch duplicate scan
type DuplicateDetector interface {
	DetectAllDuplicates(ctx context.Context) (map[uuid.UUID][]duplicates.Match, error)
}

// ReviewTaskStore creates admin review tasks for flagged accounts
type ReviewTaskStore interface {
	HasOpenReviewTask(ctx context.Context, userID uuid.UUID, title string) (bool, error)
	CreateReviewTask(ctx context.Context, task *duplicates.ReviewTask) error
}

// FlagStore persists DUPLICATE risk flags raised by the detection job
type FlagStore interface {
	HasOpenFlag(ctx context.Context, userID uuid.UUID, code string) (bool, error)
	CreateFlag(ctx context.Context, flag *risk.Flag) error
}

// Locker serializes job runs across instances. Satisfied by pkg/redis.Client.
type Locker interface {
	AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}
