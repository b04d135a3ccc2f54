package duplicates

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrUserNotFound is returned when a referenced account does not exist
var ErrUserNotFound = errors.New("user not found")

// ErrMergeInProgress is returned when another merge holds one of the accounts
var ErrMergeInProgress = errors.New("merge already in progress for one of the accounts")

// MatchType identifies the strategy that produced a duplicate match
type MatchType string

const (
	MatchEmail          MatchType = "EMAIL"
	MatchPhone          MatchType = "PHONE"
	MatchDevice         MatchType = "DEVICE"
	MatchNameSimilarity MatchType = "NAME_SIMILARITY"
)

// Strategy confidences. Name matches scale their similarity by
// nameConfidenceFactor since they are the weakest signal.
const (
	emailConfidence      = 1.0
	phoneConfidence      = 0.95
	deviceConfidence     = 0.70
	nameSimilarityFloor  = 0.8
	nameConfidenceFactor = 0.6
)

// Match is a candidate duplicate account. Produced fresh per detection
// run, never persisted.
type Match struct {
	UserID       uuid.UUID `json:"user_id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	MatchType    MatchType `json:"match_type"`
	Confidence   float64   `json:"confidence"`
	MatchedValue string    `json:"matched_value"`
}

// Account is the identity record view the matcher and previewer work with
type Account struct {
	ID                    uuid.UUID
	Email                 string
	Phone                 *string
	Name                  *string
	Status                string
	CreatedAt             time.Time
	HasVendorProfile      bool
	HasCoordinatorProfile bool
}

// DisplayName returns the account name or "Unknown"
func (a *Account) DisplayName() string {
	if a.Name != nil && *a.Name != "" {
		return *a.Name
	}
	return "Unknown"
}

// Fingerprint is the weak device identity attached to a security event
type Fingerprint struct {
	IP        string
	UserAgent string
}

// EntityCounts tallies the rows that belong to one account
type EntityCounts struct {
	Orders         int `json:"orders"`
	Roles          int `json:"roles"`
	Notes          int `json:"notes"`
	Tasks          int `json:"tasks"`
	RiskFlags      int `json:"risk_flags"`
	SecurityEvents int `json:"security_events"`
}

// AccountSummary is the account view returned in a merge preview
type AccountSummary struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// MergePreview reports what a merge would move and any advisory conflicts.
// Conflicts never block execution; they inform the operator.
type MergePreview struct {
	PrimaryUser   AccountSummary `json:"primary_user"`
	DuplicateUser AccountSummary `json:"duplicate_user"`
	DataToMerge   EntityCounts   `json:"data_to_merge"`
	Conflicts     []string       `json:"conflicts"`
}

// MergeLog is the structured transfer record stored with a merge
type MergeLog struct {
	MergedAt        time.Time    `json:"merged_at"`
	MergedBy        uuid.UUID    `json:"merged_by"`
	DataTransferred EntityCounts `json:"data_transferred"`
}

// ReviewTask is an admin work item created by the duplicate-detection job
type ReviewTask struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Review task priorities and statuses
const (
	TaskPriorityMedium = "MEDIUM"
	TaskPriorityHigh   = "HIGH"
	TaskStatusPending  = "PENDING"

	ReviewTaskTitle = "Potential duplicate accounts"
)
