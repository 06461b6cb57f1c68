package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Submission lifecycle event types.
const (
	EventSubmissionReceived  = "submission.received"
	EventSubmissionEvaluated = "submission.evaluated"
	EventSubmissionPublished = "submission.published"
)

// SubmissionEvent is the payload published on submission lifecycle changes.
type SubmissionEvent struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	SubmissionID  uint      `json:"submission_id"`
	LearnerID     uint      `json:"learner_id"`
	QuestionID    uint      `json:"question_id"`
	AttemptNumber int       `json:"attempt_number"`
	Status        string    `json:"status"`
	SentAt        time.Time `json:"sent_at"`
}

// EventPublisher broadcasts submission lifecycle events to downstream
// consumers (notification workers, analytics).
type EventPublisher interface {
	Publish(ctx context.Context, event SubmissionEvent)
}

type eventPublisher struct {
	nats        *nats.Conn
	natsSubject string
	redis       *redis.Client
	redisStream string
	logger      zerolog.Logger
}

// NewEventPublisher constructs a publisher; nil connections are tolerated and
// simply skip that transport. Event delivery is best effort, a failed publish
// never fails the submission.
func NewEventPublisher(natsConn *nats.Conn, redisClient *redis.Client, channelBase string, logger zerolog.Logger) EventPublisher {
	subject := ""
	stream := ""
	if channelBase != "" {
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".submissions"
		stream = channelBase + ":submissions"
	}

	return &eventPublisher{
		nats:        natsConn,
		natsSubject: subject,
		redis:       redisClient,
		redisStream: stream,
		logger:      logger.With().Str("component", "event_publisher").Logger(),
	}
}

func (p *eventPublisher) Publish(ctx context.Context, event SubmissionEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.SentAt.IsZero() {
		event.SentAt = time.Now()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to encode submission event")
		return
	}

	if p.nats != nil && p.natsSubject != "" {
		if err := p.nats.Publish(p.natsSubject, payload); err != nil {
			p.logger.Warn().Err(err).Str("subject", p.natsSubject).Msg("failed to publish event to nats")
		}
	}

	if p.redis != nil && p.redisStream != "" {
		err := p.redis.XAdd(ctx, &redis.XAddArgs{
			Stream: p.redisStream,
			MaxLen: 1024,
			Approx: true,
			Values: map[string]interface{}{"event": string(payload)},
		}).Err()
		if err != nil {
			p.logger.Warn().Err(err).Str("stream", p.redisStream).Msg("failed to append event to redis stream")
		}
	}
}
