package risk

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrUserNotFound is returned when the scored account does not exist
var ErrUserNotFound = errors.New("user not found")

// Level buckets a 0-100 risk score
type Level string

const (
	LevelLow      Level = "LOW"      // score <= 25
	LevelMedium   Level = "MEDIUM"   // score <= 50
	LevelHigh     Level = "HIGH"     // score <= 75
	LevelCritical Level = "CRITICAL" // score > 75
)

// Risk flag codes
const (
	FlagChargeback      = "CHARGEBACK"
	FlagHighRefundRate  = "HIGH_REFUND_RATE"
	FlagIPVelocityHigh  = "IP_VELOCITY_HIGH"
	FlagNewAccount      = "NEW_ACCOUNT"
	FlagEmailUnverified = "EMAIL_UNVERIFIED"
	FlagPhoneUnverified = "PHONE_UNVERIFIED"
	FlagFailedLogins    = "FAILED_LOGIN_ATTEMPTS"
	FlagFraudSuspected  = "FRAUD_SUSPECTED"
	FlagDuplicate       = "DUPLICATE"
)

// Security event types consumed by factor collection
const (
	EventFailedLogin        = "failed_login"
	EventSuspiciousActivity = "suspicious_activity"
)

// VerificationStatus is the account's verification tuple
type VerificationStatus struct {
	EmailVerified bool `json:"email_verified"`
	PhoneVerified bool `json:"phone_verified"`
	KYCVerified   bool `json:"kyc_verified"`
}

// Factors is the raw signal bundle collected for one account
type Factors struct {
	DisputeCount        int                `json:"dispute_count"`
	RefundRate          float64            `json:"refund_rate"` // percentage, refunded/completed*100
	IPVelocity          int                `json:"ip_velocity"` // distinct IPs in trailing 30 days
	AccountAgeDays      int                `json:"account_age_days"`
	Verification        VerificationStatus `json:"verification"`
	OrderVolume         int                `json:"order_volume"`
	FailedLoginAttempts int                `json:"failed_login_attempts"` // trailing 24 hours
}

// FactorScores holds the per-factor sub-scores (each 0-100)
type FactorScores struct {
	Disputes     float64 `json:"disputes"`
	Refunds      float64 `json:"refunds"`
	IPVelocity   float64 `json:"ip_velocity"`
	AccountAge   float64 `json:"account_age"`
	Verification float64 `json:"verification"`
	OrderVolume  float64 `json:"order_volume"`
	FailedLogins float64 `json:"failed_logins"`
}

// ScoreResult is the outcome of scoring one account
type ScoreResult struct {
	Score   int          `json:"score"`
	Level   Level        `json:"level"`
	Factors FactorScores `json:"factors"`
	Flags   []string     `json:"flags"`
}

// Flag is a persisted risk flag on an account
type Flag struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	Code       string     `json:"code"`
	Severity   string     `json:"severity"`
	Notes      string     `json:"notes"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// RecalculateFilter narrows the bulk recalculation population
type RecalculateFilter struct {
	MinScore *int `json:"min_score,omitempty"`
}
