package duplicates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const accountColumns = `
	id, email, phone, name, status, created_at,
	vendor_profile_id IS NOT NULL, coordinator_profile_id IS NOT NULL
`

// Repository implements DuplicateRepository against PostgreSQL
type Repository struct {
	db Database
}

// Ensure the concrete repository satisfies the service's requirements.
var _ DuplicateRepository = (*Repository)(nil)

// NewRepository creates a new duplicates repository
func NewRepository(db Database) *Repository {
	return &Repository{db: db}
}

// GetAccount loads one account
func (r *Repository) GetAccount(ctx context.Context, userID uuid.UUID) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM users WHERE id = $1`

	account, err := scanAccount(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return account, nil
}

// FindAccountsByEmail returns other accounts with the identical email
func (r *Repository) FindAccountsByEmail(ctx context.Context, email string, excludeID uuid.UUID) ([]*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM users WHERE email = $1 AND id <> $2`
	return r.queryAccounts(ctx, query, email, excludeID)
}

// ListAccountsWithPhone returns other accounts that have a phone set
func (r *Repository) ListAccountsWithPhone(ctx context.Context, excludeID uuid.UUID) ([]*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM users WHERE phone IS NOT NULL AND id <> $1`
	return r.queryAccounts(ctx, query, excludeID)
}

// RecentFingerprints returns the account's most recent (IP, user-agent) pairs
func (r *Repository) RecentFingerprints(ctx context.Context, userID uuid.UUID, limit int) ([]Fingerprint, error) {
	query := `
		SELECT ip, user_agent
		FROM security_events
		WHERE user_id = $1
		  AND ip IS NOT NULL
		  AND user_agent IS NOT NULL
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fingerprints := make([]Fingerprint, 0, limit)
	for rows.Next() {
		var fp Fingerprint
		if err := rows.Scan(&fp.IP, &fp.UserAgent); err != nil {
			return nil, err
		}
		fingerprints = append(fingerprints, fp)
	}

	return fingerprints, rows.Err()
}

// FindAccountsByFingerprint returns other accounts sharing the same
// (IP, user-agent) pair on a security event
func (r *Repository) FindAccountsByFingerprint(ctx context.Context, fp Fingerprint, excludeID uuid.UUID) ([]*Account, error) {
	query := `
		SELECT DISTINCT ` + accountColumns + `
		FROM users
		WHERE id IN (
			SELECT user_id FROM security_events
			WHERE ip = $1 AND user_agent = $2 AND user_id <> $3
		)
	`
	return r.queryAccounts(ctx, query, fp.IP, fp.UserAgent, excludeID)
}

// ListAccountsWithName returns other accounts that have a display name
func (r *Repository) ListAccountsWithName(ctx context.Context, excludeID uuid.UUID) ([]*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM users WHERE name IS NOT NULL AND id <> $1`
	return r.queryAccounts(ctx, query, excludeID)
}

// ListActiveAccountIDs returns every active account id
func (r *Repository) ListActiveAccountIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM users WHERE status = 'ACTIVE'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// CountEntities tallies the account's owned rows
func (r *Repository) CountEntities(ctx context.Context, userID uuid.UUID) (*EntityCounts, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM orders WHERE user_id = $1),
			(SELECT COUNT(*) FROM user_roles WHERE user_id = $1),
			(SELECT COUNT(*) FROM user_notes WHERE user_id = $1),
			(SELECT COUNT(*) FROM user_tasks WHERE user_id = $1),
			(SELECT COUNT(*) FROM risk_flags WHERE user_id = $1),
			(SELECT COUNT(*) FROM security_events WHERE user_id = $1)
	`

	counts := &EntityCounts{}
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&counts.Orders,
		&counts.Roles,
		&counts.Notes,
		&counts.Tasks,
		&counts.RiskFlags,
		&counts.SecurityEvents,
	)
	if err != nil {
		return nil, err
	}

	return counts, nil
}

// ExecuteMerge migrates all data from duplicate to primary and soft-deletes
// the duplicate. One transaction: any failure rolls back every step.
func (r *Repository) ExecuteMerge(ctx context.Context, primaryID, duplicateID, adminID uuid.UUID) (*EntityCounts, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Lock both account rows for the duration of the transaction, always in
	// the same order so two concurrent merges cannot deadlock.
	first, second := primaryID, duplicateID
	if second.String() < first.String() {
		first, second = second, first
	}
	for _, id := range []uuid.UUID{first, second} {
		var locked uuid.UUID
		err := tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrUserNotFound
			}
			return nil, err
		}
	}

	counts := &EntityCounts{}

	// 1. Reassign orders
	tag, err := tx.Exec(ctx, `UPDATE orders SET user_id = $1 WHERE user_id = $2`, primaryID, duplicateID)
	if err != nil {
		return nil, fmt.Errorf("failed to move orders: %w", err)
	}
	counts.Orders = int(tag.RowsAffected())

	// 2. Reassign roles the primary does not already hold, then drop the
	// duplicate's role rows
	roleInsert := `
		INSERT INTO user_roles (id, user_id, role, scopes)
		SELECT gen_random_uuid(), $1, d.role, d.scopes
		FROM user_roles d
		WHERE d.user_id = $2
		  AND NOT EXISTS (
			SELECT 1 FROM user_roles p WHERE p.user_id = $1 AND p.role = d.role
		  )
	`
	tag, err = tx.Exec(ctx, roleInsert, primaryID, duplicateID)
	if err != nil {
		return nil, fmt.Errorf("failed to move roles: %w", err)
	}
	counts.Roles = int(tag.RowsAffected())

	if _, err = tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, duplicateID); err != nil {
		return nil, fmt.Errorf("failed to delete duplicate roles: %w", err)
	}

	// 3. Reassign notes, tasks, risk flags and security events
	reassignments := []struct {
		table string
		count *int
	}{
		{"user_notes", &counts.Notes},
		{"user_tasks", &counts.Tasks},
		{"risk_flags", &counts.RiskFlags},
		{"security_events", &counts.SecurityEvents},
	}
	for _, m := range reassignments {
		tag, err = tx.Exec(ctx,
			fmt.Sprintf(`UPDATE %s SET user_id = $1 WHERE user_id = $2`, m.table),
			primaryID, duplicateID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to move %s: %w", m.table, err)
		}
		*m.count = int(tag.RowsAffected())
	}

	// 4. Soft-delete the duplicate account
	softDelete := `
		UPDATE users
		SET status = 'SOFT_DELETED', deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`
	if _, err = tx.Exec(ctx, softDelete, duplicateID); err != nil {
		return nil, fmt.Errorf("failed to soft-delete duplicate: %w", err)
	}

	// 5. Record the merge
	mergeLog, err := json.Marshal(MergeLog{
		MergedAt:        time.Now(),
		MergedBy:        adminID,
		DataTransferred: *counts,
	})
	if err != nil {
		return nil, err
	}

	mergeInsert := `
		INSERT INTO duplicate_merges (id, primary_id, duplicate_id, merged_by, merge_log, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`
	if _, err = tx.Exec(ctx, mergeInsert, uuid.New(), primaryID, duplicateID, adminID, mergeLog); err != nil {
		return nil, fmt.Errorf("failed to create merge record: %w", err)
	}

	// 6. Audit the admin action
	payload, err := json.Marshal(map[string]any{
		"duplicate_user_id": duplicateID,
		"timestamp":         time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}

	auditInsert := `
		INSERT INTO admin_audit (id, admin_id, action, target, payload, created_at)
		VALUES ($1, $2, 'MERGE_DUPLICATE_USER', $3, $4, NOW())
	`
	target := fmt.Sprintf("User:%s", primaryID)
	if _, err = tx.Exec(ctx, auditInsert, uuid.New(), adminID, target, payload); err != nil {
		return nil, fmt.Errorf("failed to create audit entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return counts, nil
}

// HasOpenReviewTask reports whether an unresolved task with the title exists
func (r *Repository) HasOpenReviewTask(ctx context.Context, userID uuid.UUID, title string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM user_tasks
			WHERE user_id = $1
			  AND title = $2
			  AND status IN ('PENDING', 'IN_PROGRESS')
		)
	`

	var exists bool
	if err := r.db.QueryRow(ctx, query, userID, title).Scan(&exists); err != nil {
		return false, err
	}

	return exists, nil
}

// CreateReviewTask persists a new admin review task
func (r *Repository) CreateReviewTask(ctx context.Context, task *ReviewTask) error {
	query := `
		INSERT INTO user_tasks (id, user_id, title, description, priority, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Exec(ctx, query,
		task.ID,
		task.UserID,
		task.Title,
		task.Description,
		task.Priority,
		task.Status,
		task.CreatedAt,
	)

	return err
}

func (r *Repository) queryAccounts(ctx context.Context, query string, args ...any) ([]*Account, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := make([]*Account, 0)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	return accounts, rows.Err()
}

func scanAccount(row pgx.Row) (*Account, error) {
	account := &Account{}
	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.Phone,
		&account.Name,
		&account.Status,
		&account.CreatedAt,
		&account.HasVendorProfile,
		&account.HasCoordinatorProfile,
	)
	if err != nil {
		return nil, err
	}
	return account, nil
}
