package risk

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository implements RiskRepository against PostgreSQL
type Repository struct {
	db Database
}

// Ensure the concrete repository satisfies the service's requirements.
var _ RiskRepository = (*Repository)(nil)

// NewRepository creates a new risk repository
func NewRepository(db Database) *Repository {
	return &Repository{db: db}
}

// CollectFactors gathers the raw risk signals for one account
func (r *Repository) CollectFactors(ctx context.Context, userID uuid.UUID) (*Factors, error) {
	userQuery := `
		SELECT email_verified, phone_verified, kyc_verified, created_at
		FROM users
		WHERE id = $1
	`

	var verification VerificationStatus
	var createdAt time.Time
	err := r.db.QueryRow(ctx, userQuery, userID).Scan(
		&verification.EmailVerified,
		&verification.PhoneVerified,
		&verification.KYCVerified,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	orderQuery := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'COMPLETED') AS completed,
			COUNT(*) FILTER (WHERE status = 'REFUNDED') AS refunded,
			COUNT(*) AS total
		FROM orders
		WHERE user_id = $1
	`

	var completed, refunded, total int
	if err := r.db.QueryRow(ctx, orderQuery, userID).Scan(&completed, &refunded, &total); err != nil {
		return nil, err
	}

	refundRate := 0.0
	if completed > 0 {
		refundRate = float64(refunded) / float64(completed) * 100
	}

	ipQuery := `
		SELECT COUNT(DISTINCT ip)
		FROM security_events
		WHERE user_id = $1
		  AND ip IS NOT NULL
		  AND created_at >= NOW() - INTERVAL '30 days'
	`

	var ipVelocity int
	if err := r.db.QueryRow(ctx, ipQuery, userID).Scan(&ipVelocity); err != nil {
		return nil, err
	}

	loginQuery := `
		SELECT COUNT(*)
		FROM security_events
		WHERE user_id = $1
		  AND type = $2
		  AND created_at >= NOW() - INTERVAL '24 hours'
	`

	var failedLogins int
	if err := r.db.QueryRow(ctx, loginQuery, userID, EventFailedLogin).Scan(&failedLogins); err != nil {
		return nil, err
	}

	return &Factors{
		// TODO: wire the payment processor's dispute feed; until then the
		// count stays zero and the dispute weight contributes nothing.
		DisputeCount:        0,
		RefundRate:          refundRate,
		IPVelocity:          ipVelocity,
		AccountAgeDays:      int(time.Since(createdAt).Hours() / 24),
		Verification:        verification,
		OrderVolume:         total,
		FailedLoginAttempts: failedLogins,
	}, nil
}

// UpdateRiskScore writes the cached score on the account record
func (r *Repository) UpdateRiskScore(ctx context.Context, userID uuid.UUID, score int) error {
	query := `UPDATE users SET risk_score = $2, updated_at = NOW() WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, userID, score)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

// HasOpenFlag reports whether an unresolved flag with the code exists
func (r *Repository) HasOpenFlag(ctx context.Context, userID uuid.UUID, code string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM risk_flags
			WHERE user_id = $1 AND code = $2 AND resolved_at IS NULL
		)
	`

	var exists bool
	if err := r.db.QueryRow(ctx, query, userID, code).Scan(&exists); err != nil {
		return false, err
	}

	return exists, nil
}

// CreateFlag persists a new risk flag
func (r *Repository) CreateFlag(ctx context.Context, flag *Flag) error {
	query := `
		INSERT INTO risk_flags (id, user_id, code, severity, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Exec(ctx, query,
		flag.ID,
		flag.UserID,
		flag.Code,
		flag.Severity,
		flag.Notes,
		flag.CreatedAt,
	)

	return err
}

// ListUserIDs returns account ids matching the recalculation filter.
// Covers every account regardless of status so soft-deleted records do not
// keep stale cached scores.
func (r *Repository) ListUserIDs(ctx context.Context, filter *RecalculateFilter) ([]uuid.UUID, error) {
	query := `SELECT id FROM users`
	args := []any{}

	if filter != nil && filter.MinScore != nil {
		query += ` WHERE risk_score >= $1`
		args = append(args, *filter.MinScore)
	}

	return r.scanUserIDs(ctx, query, args...)
}

// ListUserIDsWithMinScore returns active accounts at or above a score
func (r *Repository) ListUserIDsWithMinScore(ctx context.Context, minScore int) ([]uuid.UUID, error) {
	query := `SELECT id FROM users WHERE status = 'ACTIVE' AND risk_score >= $1`
	return r.scanUserIDs(ctx, query, minScore)
}

// ListUserIDsWithRecentSecurityEvents returns accounts with a failed-login
// or suspicious-activity event in the last `days` days
func (r *Repository) ListUserIDsWithRecentSecurityEvents(ctx context.Context, days int) ([]uuid.UUID, error) {
	query := `
		SELECT DISTINCT u.id
		FROM users u
		JOIN security_events e ON e.user_id = u.id
		WHERE u.status = 'ACTIVE'
		  AND e.type = ANY($1)
		  AND e.created_at >= NOW() - make_interval(days => $2)
	`
	return r.scanUserIDs(ctx, query, []string{EventFailedLogin, EventSuspiciousActivity}, days)
}

// ListRecentlyCreatedUserIDs returns accounts created in the last `days` days
func (r *Repository) ListRecentlyCreatedUserIDs(ctx context.Context, days int) ([]uuid.UUID, error) {
	query := `
		SELECT id FROM users
		WHERE status = 'ACTIVE'
		  AND created_at >= NOW() - make_interval(days => $1)
	`
	return r.scanUserIDs(ctx, query, days)
}

// CreateAuditEntry records an admin action in the audit log
func (r *Repository) CreateAuditEntry(ctx context.Context, adminID uuid.UUID, action, target string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO admin_audit (id, admin_id, action, target, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`

	_, err = r.db.Exec(ctx, query, uuid.New(), adminID, action, target, body)
	return err
}

func (r *Repository) scanUserIDs(ctx context.Context, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, query, args...)
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
