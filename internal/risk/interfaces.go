package risk

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Database is the subset of pgxpool.Pool the risk repository needs.
// Keeping it an interface allows mock implementations in tests.
type Database interface {
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
}

// RiskRepository defines the store operations the risk service depends on
type RiskRepository interface {
	// CollectFactors gathers the raw risk signals for one account.
	// Returns ErrUserNotFound when the account does not exist.
	CollectFactors(ctx context.Context, userID uuid.UUID) (*Factors, error)

	// UpdateRiskScore writes the cached score on the account record.
	UpdateRiskScore(ctx context.Context, userID uuid.UUID, score int) error

	// HasOpenFlag reports whether an unresolved flag with the code exists.
	HasOpenFlag(ctx context.Context, userID uuid.UUID, code string) (bool, error)

	// CreateFlag persists a new risk flag.
	CreateFlag(ctx context.Context, flag *Flag) error

	// ListUserIDs returns account ids matching the recalculation filter.
	ListUserIDs(ctx context.Context, filter *RecalculateFilter) ([]uuid.UUID, error)

	// ListUserIDsWithMinScore returns active accounts at or above a score.
	ListUserIDsWithMinScore(ctx context.Context, minScore int) ([]uuid.UUID, error)

	// ListUserIDsWithRecentSecurityEvents returns accounts with a
	// failed-login or suspicious-activity event in the last `days` days.
	ListUserIDsWithRecentSecurityEvents(ctx context.Context, days int) ([]uuid.UUID, error)

	// ListRecentlyCreatedUserIDs returns accounts created in the last `days` days.
	ListRecentlyCreatedUserIDs(ctx context.Context, days int) ([]uuid.UUID, error)

	// CreateAuditEntry records an admin action in the audit log.
	CreateAuditEntry(ctx context.Context, adminID uuid.UUID, action, target string, payload any) error
}
