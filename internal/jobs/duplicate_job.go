package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/craftora/backoffice/internal/duplicates"
	"github.com/craftora/backoffice/internal/risk"
)

const (
	// Matches above this confidence get an automatic DUPLICATE risk flag
	autoFlagConfidence = 0.9
	// Accounts with this many matches or more get a HIGH priority task
	highPriorityMatchCount = 3
)

// DuplicateDetectionJob runs the batch duplicate scan, opens one review
// task per flagged account and raises DUPLICATE risk flags for
// high-confidence matches.
type DuplicateDetectionJob struct {
	detector DuplicateDetector
	tasks    ReviewTaskStore
	flags    FlagStore
	logger   *zap.Logger
}

// NewDuplicateDetectionJob creates the duplicate-detection job
func NewDuplicateDetectionJob(detector DuplicateDetector, tasks ReviewTaskStore, flags FlagStore, logger *zap.Logger) *DuplicateDetectionJob {
	return &DuplicateDetectionJob{detector: detector, tasks: tasks, flags: flags, logger: logger}
}

// Name returns the job identifier used for locks and metrics
func (j *DuplicateDetectionJob) Name() string { return "duplicate_detection" }

// Run scans every active account and returns the number of accounts that
// had at least one duplicate candidate.
func (j *DuplicateDetectionJob) Run(ctx context.Context) (int, error) {
	allDuplicates, err := j.detector.DetectAllDuplicates(ctx)
	if err != nil {
		return 0, err
	}

	for userID, matches := range allDuplicates {
		if err := j.createReviewTask(ctx, userID, matches); err != nil {
			j.logger.Error("Failed to create duplicate review task",
				zap.String("user_id", userID.String()),
				zap.Error(err),
			)
		}

		for _, match := range matches {
			if match.Confidence <= autoFlagConfidence {
				continue
			}
			if err := j.createDuplicateFlag(ctx, userID, match); err != nil {
				j.logger.Error("Failed to create duplicate flag",
					zap.String("user_id", userID.String()),
					zap.String("match_user_id", match.UserID.String()),
					zap.Error(err),
				)
			}
		}
	}

	j.logger.Info("Duplicate detection job finished",
		zap.Int("users_with_duplicates", len(allDuplicates)),
	)

	return len(allDuplicates), nil
}

// createReviewTask opens at most one pending review task per account
func (j *DuplicateDetectionJob) createReviewTask(ctx context.Context, userID uuid.UUID, matches []duplicates.Match) error {
	exists, err := j.tasks.HasOpenReviewTask(ctx, userID, duplicates.ReviewTaskTitle)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	priority := duplicates.TaskPriorityMedium
	if len(matches) >= highPriorityMatchCount {
		priority = duplicates.TaskPriorityHigh
	}

	return j.tasks.CreateReviewTask(ctx, &duplicates.ReviewTask{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       duplicates.ReviewTaskTitle,
		Description: fmt.Sprintf("%d potential duplicate account(s) found; review and merge if confirmed", len(matches)),
		Priority:    priority,
		Status:      duplicates.TaskStatusPending,
		CreatedAt:   time.Now(),
	})
}

// createDuplicateFlag raises a DUPLICATE flag unless one is already open
func (j *DuplicateDetectionJob) createDuplicateFlag(ctx context.Context, userID uuid.UUID, match duplicates.Match) error {
	exists, err := j.flags.HasOpenFlag(ctx, userID, risk.FlagDuplicate)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	return j.flags.CreateFlag(ctx, &risk.Flag{
		ID:       uuid.New(),
		UserID:   userID,
		Code:     risk.FlagDuplicate,
		Severity: string(risk.LevelHigh),
		Notes: fmt.Sprintf("Likely duplicate of user %s (%s match, confidence %.2f)",
			match.UserID, match.MatchType, match.Confidence),
		CreatedAt: time.Now(),
	})
}
