package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/vidya-go-api/internal/dto"
	"github.com/noah-isme/vidya-go-api/internal/models"
	"github.com/noah-isme/vidya-go-api/internal/repository"
)

// LearnerProgressService produces per-learner attempt summaries.
type LearnerProgressService interface {
	GetProgress(ctx context.Context, learnerID uint) (dto.LearnerProgressResponse, error)
	Invalidate(ctx context.Context, learnerID uint)
}

type learnerProgressService struct {
	submissions repository.SubmissionRepository
	cache       *redis.Client
	cacheTTL    time.Duration
	maxAttempts int
	logger      zerolog.Logger
}

// NewLearnerProgressService builds the progress aggregator. The cache client
// may be nil; every call then computes from the database.
func NewLearnerProgressService(submissions repository.SubmissionRepository, cache *redis.Client, ttl time.Duration, maxAttempts int, logger zerolog.Logger) LearnerProgressService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if maxAttempts <= 0 {
		maxAttempts = models.MaxAttempts
	}

	return &learnerProgressService{
		submissions: submissions,
		cache:       cache,
		cacheTTL:    ttl,
		maxAttempts: maxAttempts,
		logger:      logger.With().Str("component", "learner_progress_service").Logger(),
	}
}

func progressCacheKey(learnerID uint) string {
	return fmt.Sprintf("progress:learner:%d", learnerID)
}

func (s *learnerProgressService) GetProgress(ctx context.Context, learnerID uint) (dto.LearnerProgressResponse, error) {
	cacheKey := progressCacheKey(learnerID)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var response dto.LearnerProgressResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				s.logger.Debug().Uint("learner_id", learnerID).Msg("progress cache hit")
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read progress cache")
		}
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{LearnerID: &learnerID})
	if err != nil {
		return dto.LearnerProgressResponse{}, err
	}

	response := s.buildResponse(submissions)

	if s.cache != nil {
		if payload, err := json.Marshal(response); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store progress cache")
			}
		}
	}

	return response, nil
}

// Invalidate drops the cached summary so the next read reflects a fresh
// submission immediately rather than after the TTL.
func (s *learnerProgressService) Invalidate(ctx context.Context, learnerID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, progressCacheKey(learnerID)).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("learner_id", learnerID).Msg("failed to invalidate progress cache")
	}
}

func (s *learnerProgressService) buildResponse(submissions []models.Submission) dto.LearnerProgressResponse {
	response := dto.LearnerProgressResponse{Questions: []dto.QuestionProgress{}}
	byQuestion := map[uint]*dto.QuestionProgress{}

	for _, submission := range submissions {
		response.TotalSubmissions++
		if submission.IsEvaluated() {
			response.Evaluated++
		}
		if submission.MainStatus == models.MainStatusPublished {
			response.Published++
		}
		if submission.EvaluationStatus == models.EvaluationStatusNone {
			response.Pending++
		}

		progress, ok := byQuestion[submission.QuestionID]
		if !ok {
			progress = &dto.QuestionProgress{QuestionID: submission.QuestionID}
			byQuestion[submission.QuestionID] = progress
		}

		progress.Attempts++
		progress.LastStatus = submission.EvaluationStatus
		if submission.Score != nil && (progress.BestScore == nil || *submission.Score > *progress.BestScore) {
			score := *submission.Score
			progress.BestScore = &score
		}
	}

	for _, progress := range byQuestion {
		remaining := s.maxAttempts - progress.Attempts
		if remaining < 0 {
			remaining = 0
		}
		progress.AttemptsRemaining = remaining
		response.Questions = append(response.Questions, *progress)
	}

	sort.Slice(response.Questions, func(i, j int) bool {
		return response.Questions[i].QuestionID < response.Questions[j].QuestionID
	})

	return response
}
