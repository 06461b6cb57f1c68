package service

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/noah-isme/vidya-go-api/internal/models"
	"github.com/noah-isme/vidya-go-api/internal/repository"
)

// ErrAttemptLimitExceeded indicates the learner used up every attempt for the
// question. Permanent for that (learner, question) pair.
var ErrAttemptLimitExceeded = errors.New("attempt limit exceeded")

// ErrAllocationContention indicates allocation lost every retry against
// concurrent submissions. The caller may retry the whole request.
var ErrAllocationContention = errors.New("attempt allocation contention")

var allocationConflicts = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "vidya",
	Subsystem: "submissions",
	Name:      "allocation_conflicts_total",
	Help:      "Number of attempt allocations that lost a race and retried",
})

// AttemptAllocatorConfig tunes the optimistic allocation loop.
type AttemptAllocatorConfig struct {
	MaxAttempts int
	Retries     int
	BackoffBase time.Duration
}

// AttemptAllocator assigns the next attempt number for a (learner, question)
// pair and persists the submission under the uniqueness constraint.
type AttemptAllocator interface {
	Allocate(ctx context.Context, submission *models.Submission) error
}

type attemptAllocator struct {
	repo   repository.SubmissionRepository
	cfg    AttemptAllocatorConfig
	logger zerolog.Logger
	sleep  func(time.Duration)
}

// NewAttemptAllocator constructs the allocator.
func NewAttemptAllocator(repo repository.SubmissionRepository, cfg AttemptAllocatorConfig, logger zerolog.Logger) AttemptAllocator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = models.MaxAttempts
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 10 * time.Millisecond
	}

	return &attemptAllocator{
		repo:   repo,
		cfg:    cfg,
		logger: logger.With().Str("component", "attempt_allocator").Logger(),
		sleep:  time.Sleep,
	}
}

// Allocate reads the pair's attempt stats, writes the submission with
// max+1 under the unique index, and retries with fresh stats when a
// concurrent submission won the slot. The attempt number never exceeds the
// cap: a computed candidate past it rejects instead of clamping.
func (a *attemptAllocator) Allocate(ctx context.Context, submission *models.Submission) error {
	for attempt := 0; attempt < a.cfg.Retries; attempt++ {
		stats, err := a.repo.PairStats(ctx, submission.LearnerID, submission.QuestionID)
		if err != nil {
			return err
		}

		if stats.Count >= int64(a.cfg.MaxAttempts) {
			return ErrAttemptLimitExceeded
		}

		candidate := stats.MaxAttempt + 1
		if candidate > a.cfg.MaxAttempts {
			return ErrAttemptLimitExceeded
		}

		submission.AttemptNumber = candidate
		err = a.repo.Create(ctx, submission)
		if err == nil {
			return nil
		}

		if !repository.IsDuplicateAttempt(err) {
			return err
		}

		allocationConflicts.Inc()
		a.logger.Debug().
			Uint("learner_id", submission.LearnerID).
			Uint("question_id", submission.QuestionID).
			Int("attempt_number", candidate).
			Msg("lost allocation race, retrying")

		// fresh primary key on retry, gorm would otherwise reuse the failed insert's ID
		submission.ID = 0
		a.sleep(a.cfg.BackoffBase + time.Duration(rand.Int63n(int64(a.cfg.BackoffBase))))
	}

	return ErrAllocationContention
}
