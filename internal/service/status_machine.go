package service

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/vidya-go-api/internal/models"
	"github.com/noah-isme/vidya-go-api/internal/repository"
)

// ErrInvalidAxis indicates an unknown status axis was named.
var ErrInvalidAxis = errors.New("invalid status axis")

// ErrInvalidAxisValue indicates a value outside the axis vocabulary.
var ErrInvalidAxisValue = errors.New("invalid status value for axis")

// ErrSubmissionNotFound indicates the submission cannot be located.
var ErrSubmissionNotFound = errors.New("submission not found")

var statusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "vidya",
	Subsystem: "submissions",
	Name:      "status_transitions_total",
	Help:      "Number of status-axis transitions applied",
}, []string{"axis", "value"})

// StatusMachine owns the four status axes of a submission. It is a generic,
// auditable key-value-with-history primitive: it checks the vocabulary but
// imposes no transition graph, business ordering lives in the orchestrator.
type StatusMachine interface {
	Transition(ctx context.Context, submissionID uint, axis, newValue, reason, actor string) (models.Submission, error)
}

type statusMachine struct {
	repo   repository.SubmissionRepository
	logger zerolog.Logger
}

// NewStatusMachine constructs the status machine.
func NewStatusMachine(repo repository.SubmissionRepository, logger zerolog.Logger) StatusMachine {
	return &statusMachine{
		repo:   repo,
		logger: logger.With().Str("component", "status_machine").Logger(),
	}
}

// Transition overwrites one axis and appends exactly one history record; the
// repository applies both atomically.
func (m *statusMachine) Transition(ctx context.Context, submissionID uint, axis, newValue, reason, actor string) (models.Submission, error) {
	allowed, ok := models.AxisValues[axis]
	if !ok {
		return models.Submission{}, ErrInvalidAxis
	}

	valid := false
	for _, value := range allowed {
		if value == newValue {
			valid = true
			break
		}
	}
	if !valid {
		return models.Submission{}, ErrInvalidAxisValue
	}

	submission, err := m.repo.TransitionAxis(ctx, submissionID, axis, newValue, reason, actor)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, ErrSubmissionNotFound
		}
		return models.Submission{}, err
	}

	statusTransitions.WithLabelValues(axis, newValue).Inc()
	m.logger.Info().
		Uint("submission_id", submissionID).
		Str("axis", axis).
		Str("value", newValue).
		Str("actor", actor).
		Msg("status transition applied")

	return submission, nil
}
