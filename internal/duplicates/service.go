package duplicates

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/craftora/backoffice/pkg/common"
)

const (
	recentFingerprintLimit = 10
	mergeLockTTL           = 5 * time.Minute
	mergeLockPrefix        = "merge:lock:"
)

// MergeLocker is the advisory-lock surface the merge path uses to reject
// concurrent merges touching the same account. Satisfied by pkg/redis.Client.
type MergeLocker interface {
	AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// Service handles duplicate detection and account merging
type Service struct {
	repo   DuplicateRepository
	locks  MergeLocker
	logger *zap.Logger
}

// NewService creates a new duplicates service
func NewService(repo DuplicateRepository, locks MergeLocker, logger *zap.Logger) *Service {
	return &Service{repo: repo, locks: locks, logger: logger}
}

// FindDuplicates runs all four matching strategies for one account and
// returns the deduplicated matches ranked by descending confidence.
func (s *Service) FindDuplicates(ctx context.Context, userID uuid.UUID) ([]Match, error) {
	account, err := s.repo.GetAccount(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, common.NewNotFound("user %s not found", userID)
		}
		return nil, common.NewStoreError(err, "failed to load user %s", userID)
	}

	matches := make([]Match, 0)

	emailMatches, err := s.findEmailMatches(ctx, account)
	if err != nil {
		return nil, err
	}
	matches = append(matches, emailMatches...)

	phoneMatches, err := s.findPhoneMatches(ctx, account)
	if err != nil {
		return nil, err
	}
	matches = append(matches, phoneMatches...)

	deviceMatches, err := s.findDeviceMatches(ctx, account)
	if err != nil {
		return nil, err
	}
	matches = append(matches, deviceMatches...)

	nameMatches, err := s.findNameMatches(ctx, account)
	if err != nil {
		return nil, err
	}
	matches = append(matches, nameMatches...)

	unique := deduplicateMatches(matches)
	sortMatchesByConfidence(unique)

	s.logger.Info("Duplicate search completed",
		zap.String("user_id", userID.String()),
		zap.Int("matches", len(unique)),
	)

	return unique, nil
}

func (s *Service) findEmailMatches(ctx context.Context, account *Account) ([]Match, error) {
	if account.Email == "" {
		return nil, nil
	}

	candidates, err := s.repo.FindAccountsByEmail(ctx, account.Email, account.ID)
	if err != nil {
		return nil, common.NewStoreError(err, "email match query failed")
	}

	matches := make([]Match, 0, len(candidates))
	for _, candidate := range candidates {
		matches = append(matches, Match{
			UserID:       candidate.ID,
			Email:        candidate.Email,
			Name:         candidate.DisplayName(),
			MatchType:    MatchEmail,
			Confidence:   emailConfidence,
			MatchedValue: account.Email,
		})
	}

	return matches, nil
}

func (s *Service) findPhoneMatches(ctx context.Context, account *Account) ([]Match, error) {
	if account.Phone == nil {
		return nil, nil
	}

	normalized := normalizePhone(*account.Phone)
	if normalized == "" {
		return nil, nil
	}

	candidates, err := s.repo.ListAccountsWithPhone(ctx, account.ID)
	if err != nil {
		return nil, common.NewStoreError(err, "phone match query failed")
	}

	matches := make([]Match, 0)
	for _, candidate := range candidates {
		if candidate.Phone == nil || normalizePhone(*candidate.Phone) != normalized {
			continue
		}
		matches = append(matches, Match{
			UserID:       candidate.ID,
			Email:        candidate.Email,
			Name:         candidate.DisplayName(),
			MatchType:    MatchPhone,
			Confidence:   phoneConfidence,
			MatchedValue: *account.Phone,
		})
	}

	return matches, nil
}

func (s *Service) findDeviceMatches(ctx context.Context, account *Account) ([]Match, error) {
	fingerprints, err := s.repo.RecentFingerprints(ctx, account.ID, recentFingerprintLimit)
	if err != nil {
		return nil, common.NewStoreError(err, "fingerprint query failed")
	}

	matches := make([]Match, 0)
	for _, fp := range fingerprints {
		candidates, err := s.repo.FindAccountsByFingerprint(ctx, fp, account.ID)
		if err != nil {
			return nil, common.NewStoreError(err, "device match query failed")
		}

		for _, candidate := range candidates {
			matches = append(matches, Match{
				UserID:       candidate.ID,
				Email:        candidate.Email,
				Name:         candidate.DisplayName(),
				MatchType:    MatchDevice,
				Confidence:   deviceConfidence,
				MatchedValue: fmt.Sprintf("%s / %s", fp.IP, truncateUserAgent(fp.UserAgent)),
			})
		}
	}

	return matches, nil
}

func (s *Service) findNameMatches(ctx context.Context, account *Account) ([]Match, error) {
	if account.Name == nil || *account.Name == "" {
		return nil, nil
	}

	candidates, err := s.repo.ListAccountsWithName(ctx, account.ID)
	if err != nil {
		return nil, common.NewStoreError(err, "name match query failed")
	}

	name := strings.ToLower(*account.Name)
	matches := make([]Match, 0)
	for _, candidate := range candidates {
		if candidate.Name == nil {
			continue
		}

		similarity := stringSimilarity(name, strings.ToLower(*candidate.Name))
		if similarity <= nameSimilarityFloor {
			continue
		}

		matches = append(matches, Match{
			UserID:       candidate.ID,
			Email:        candidate.Email,
			Name:         *candidate.Name,
			MatchType:    MatchNameSimilarity,
			Confidence:   similarity * nameConfidenceFactor,
			MatchedValue: *candidate.Name,
		})
	}

	return matches, nil
}

// DetectAllDuplicates runs FindDuplicates for every active account.
// Individual account failures are logged and skipped so one bad record
// cannot abort the batch.
func (s *Service) DetectAllDuplicates(ctx context.Context) (map[uuid.UUID][]Match, error) {
	userIDs, err := s.repo.ListActiveAccountIDs(ctx)
	if err != nil {
		return nil, common.NewStoreError(err, "failed to list active accounts")
	}

	allDuplicates := make(map[uuid.UUID][]Match)
	for _, id := range userIDs {
		matches, err := s.FindDuplicates(ctx, id)
		if err != nil {
			s.logger.Error("Duplicate detection failed for user",
				zap.String("user_id", id.String()),
				zap.Error(err),
			)
			continue
		}
		if len(matches) > 0 {
			allDuplicates[id] = matches
		}
	}

	s.logger.Info("Duplicate detection completed",
		zap.Int("users_checked", len(userIDs)),
		zap.Int("users_with_duplicates", len(allDuplicates)),
	)

	return allDuplicates, nil
}

// PreviewMerge reports what a merge would move plus any advisory conflicts
func (s *Service) PreviewMerge(ctx context.Context, primaryID, duplicateID uuid.UUID) (*MergePreview, error) {
	primary, err := s.getAccountMapped(ctx, primaryID)
	if err != nil {
		return nil, err
	}

	duplicate, err := s.getAccountMapped(ctx, duplicateID)
	if err != nil {
		return nil, err
	}

	counts, err := s.repo.CountEntities(ctx, duplicateID)
	if err != nil {
		return nil, common.NewStoreError(err, "failed to count mergeable data")
	}

	conflicts := make([]string, 0)
	if primary.Email != duplicate.Email {
		conflicts = append(conflicts, fmt.Sprintf("Email mismatch: %s vs %s", primary.Email, duplicate.Email))
	}
	if primary.HasVendorProfile && duplicate.HasVendorProfile {
		conflicts = append(conflicts, "Both users have vendor profiles")
	}
	if primary.HasCoordinatorProfile && duplicate.HasCoordinatorProfile {
		conflicts = append(conflicts, "Both users have coordinator profiles")
	}

	return &MergePreview{
		PrimaryUser:   summarize(primary),
		DuplicateUser: summarize(duplicate),
		DataToMerge:   *counts,
		Conflicts:     conflicts,
	}, nil
}

// ExecuteMerge migrates all data from the duplicate account into the
// primary and soft-deletes the duplicate, atomically. Advisory locks
// reject a second merge touching either account while this one runs.
func (s *Service) ExecuteMerge(ctx context.Context, primaryID, duplicateID, adminID uuid.UUID) error {
	if primaryID == duplicateID {
		return common.NewBadRequest("cannot merge an account into itself")
	}

	token := uuid.New().String()
	keys := []string{mergeLockPrefix + primaryID.String(), mergeLockPrefix + duplicateID.String()}
	if keys[1] < keys[0] {
		keys[0], keys[1] = keys[1], keys[0]
	}

	for i, key := range keys {
		acquired, err := s.locks.AcquireLock(ctx, key, token, mergeLockTTL)
		if err != nil {
			return common.NewStoreError(err, "failed to acquire merge lock")
		}
		if !acquired {
			// Give back whatever we already hold.
			for _, held := range keys[:i] {
				_ = s.locks.ReleaseLock(ctx, held, token)
			}
			appErr := common.NewConflict("%s", ErrMergeInProgress)
			appErr.Err = ErrMergeInProgress
			return appErr
		}
	}
	defer func() {
		for _, key := range keys {
			_ = s.locks.ReleaseLock(ctx, key, token)
		}
	}()

	counts, err := s.repo.ExecuteMerge(ctx, primaryID, duplicateID, adminID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return common.NewNotFound("one or both users not found")
		}
		return common.NewStoreError(err, "merge failed and was rolled back")
	}

	s.logger.Info("Merged duplicate user",
		zap.String("primary_id", primaryID.String()),
		zap.String("duplicate_id", duplicateID.String()),
		zap.String("admin_id", adminID.String()),
		zap.Int("orders_moved", counts.Orders),
		zap.Int("roles_moved", counts.Roles),
		zap.Int("security_events_moved", counts.SecurityEvents),
	)

	return nil
}

func (s *Service) getAccountMapped(ctx context.Context, userID uuid.UUID) (*Account, error) {
	account, err := s.repo.GetAccount(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, common.NewNotFound("user %s not found", userID)
		}
		return nil, common.NewStoreError(err, "failed to load user %s", userID)
	}
	return account, nil
}

func summarize(account *Account) AccountSummary {
	return AccountSummary{
		ID:        account.ID,
		Email:     account.Email,
		Name:      account.DisplayName(),
		CreatedAt: account.CreatedAt,
	}
}
