package duplicates

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Database is the subset of pgxpool.Pool the duplicates repository needs.
// Begin is required because the merge is a single multi-statement
// transaction.
type Database interface {
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// DuplicateRepository defines the store operations the duplicates service
// depends on
type DuplicateRepository interface {
	// GetAccount loads one account. Returns ErrUserNotFound when missing.
	GetAccount(ctx context.Context, userID uuid.UUID) (*Account, error)

	// FindAccountsByEmail returns other accounts with the identical email.
	FindAccountsByEmail(ctx context.Context, email string, excludeID uuid.UUID) ([]*Account, error)

	// ListAccountsWithPhone returns other accounts that have a phone set.
	ListAccountsWithPhone(ctx context.Context, excludeID uuid.UUID) ([]*Account, error)

	// RecentFingerprints returns the account's most recent (IP, user-agent)
	// pairs from security events that carry both.
	RecentFingerprints(ctx context.Context, userID uuid.UUID, limit int) ([]Fingerprint, error)

	// FindAccountsByFingerprint returns other accounts with a security event
	// sharing the exact (IP, user-agent) pair.
	FindAccountsByFingerprint(ctx context.Context, fp Fingerprint, excludeID uuid.UUID) ([]*Account, error)

	// ListAccountsWithName returns other accounts that have a display name.
	ListAccountsWithName(ctx context.Context, excludeID uuid.UUID) ([]*Account, error)

	// ListActiveAccountIDs returns every active account id.
	ListActiveAccountIDs(ctx context.Context) ([]uuid.UUID, error)

	// CountEntities tallies the account's owned rows for a merge preview.
	CountEntities(ctx context.Context, userID uuid.UUID) (*EntityCounts, error)

	// ExecuteMerge migrates everything from duplicate to primary and
	// soft-deletes the duplicate in one transaction. Any failure rolls the
	// whole migration back.
	ExecuteMerge(ctx context.Context, primaryID, duplicateID, adminID uuid.UUID) (*EntityCounts, error)

	// HasOpenReviewTask reports whether an unresolved task with the title
	// exists for the account.
	HasOpenReviewTask(ctx context.Context, userID uuid.UUID, title string) (bool, error)

	// CreateReviewTask persists a new admin review task.
	CreateReviewTask(ctx context.Context, task *ReviewTask) error
}
