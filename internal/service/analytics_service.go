package service

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/noah-isme/prepdeck-marketing-api/internal/dto"
	"github.com/noah-isme/prepdeck-marketing-api/internal/models"
	appErrors "github.com/noah-isme/prepdeck-marketing-api/pkg/errors"
	"github.com/noah-isme/prepdeck-marketing-api/pkg/jobs"
)

const analyticsJobType = "analytics_event"

// EventContactClick is tracked whenever the contact button redirects.
const EventContactClick = "contact_click"

// EventPublisher delivers analytics events to the broker.
type EventPublisher interface {
	Publish(routingKey string, message any) error
}

// AnalyticsOptions configures event dispatch.
type AnalyticsOptions struct {
	RoutingKey string
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// AnalyticsService tracks conversion events fire-and-forget: callers never wait on delivery.
// Without a publisher, events are only logged.
type AnalyticsService struct {
	publisher  EventPublisher
	routingKey string
	queue      *jobs.Queue
	validator  *validator.Validate
	clock      clockwork.Clock
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewAnalyticsService constructs the service. publisher may be nil.
func NewAnalyticsService(publisher EventPublisher, opts AnalyticsOptions, validate *validator.Validate, clock clockwork.Clock, metrics *MetricsService, logger *zap.Logger) *AnalyticsService {
	if validate == nil {
		validate = validator.New()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RoutingKey == "" {
		opts.RoutingKey = "cta"
	}
	svc := &AnalyticsService{
		publisher:  publisher,
		routingKey: opts.RoutingKey,
		validator:  validate,
		clock:      clock,
		metrics:    metrics,
		logger:     logger,
	}
	svc.queue = jobs.NewQueue("analytics", svc.deliver, jobs.QueueConfig{
		Workers:    opts.Workers,
		MaxRetries: opts.MaxRetries,
		RetryDelay: opts.RetryDelay,
		Logger:     logger,
		OnDiscard: func(job jobs.Job, err error) {
			metrics.RecordAnalyticsEvent("dropped")
			logger.Warn("analytics event dropped", zap.String("event_id", job.ID), zap.Error(err))
		},
	})
	return svc
}

// Start launches the delivery workers.
func (s *AnalyticsService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop waits for the delivery workers to exit.
func (s *AnalyticsService) Stop() {
	s.queue.Stop()
}

// Track validates and queues an event, returning its ID. Claims are optional.
func (s *AnalyticsService) Track(claims *models.JWTClaims, req dto.TrackEventRequest) (string, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}

	event := models.AnalyticsEvent{
		ID:         uuid.NewString(),
		Name:       req.Name,
		CTA:        req.CTA,
		Page:       req.Page,
		OccurredAt: s.clock.Now().UTC(),
		Properties: req.Properties,
	}
	if claims != nil && claims.UserID != "" {
		event.UserHash = HashUserID(claims.UserID)
	}

	if err := s.queue.TryEnqueue(jobs.Job{ID: event.ID, Type: analyticsJobType, Payload: event}); err != nil {
		s.logger.Warn("analytics event not queued", zap.String("event", event.Name), zap.Error(err))
		return event.ID, nil
	}
	s.metrics.RecordAnalyticsEvent("queued")
	return event.ID, nil
}

func (s *AnalyticsService) deliver(_ context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.AnalyticsEvent)
	if !ok {
		return fmt.Errorf("unexpected analytics payload %T", job.Payload)
	}
	if s.publisher == nil {
		s.metrics.RecordAnalyticsEvent("logged")
		s.logger.Info("analytics event",
			zap.String("event_id", event.ID),
			zap.String("name", event.Name),
			zap.String("cta", event.CTA),
			zap.String("page", event.Page),
		)
		return nil
	}
	if err := s.publisher.Publish(s.routingKey+"."+event.Name, event); err != nil {
		return err
	}
	s.metrics.RecordAnalyticsEvent("published")
	return nil
}

// HashUserID pseudonymises a user ID for analytics.
func HashUserID(userID string) string {
	sum := blake2b.Sum256([]byte("prepdeck-analytics:" + userID))
	return hex.EncodeToString(sum[:16])
}
