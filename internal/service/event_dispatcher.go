package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/thesis-defense-api/internal/models"
	"github.com/noah-isme/thesis-defense-api/pkg/jobs"
)

// EventSink receives domain events. Delivery is at-least-once so sinks should
// tolerate duplicates keyed by event id.
type EventSink interface {
	Name() string
	Deliver(ctx context.Context, event models.DomainEvent) error
}

type eventQueue interface {
	Enqueue(job jobs.Job) error
}

type eventPublisher interface {
	Publish(ctx context.Context, channel string, value interface{}) error
}

// NewDomainEvent builds an envelope for payload.
func NewDomainEvent(eventType models.EventType, actor models.Actor, payload any) models.DomainEvent {
	return models.DomainEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		ActorID:    actor.UserID,
		Payload:    payload,
	}
}

// EventDispatcher fans domain events out to sinks through the job queue.
type EventDispatcher struct {
	queue   eventQueue
	sinks   map[string]EventSink
	order   []string
	metrics *MetricsService
	logger  *zap.Logger
}

// NewEventDispatcher registers sinks. A queue is attached separately because the
// queue's handler is the dispatcher itself.
func NewEventDispatcher(metrics *MetricsService, logger *zap.Logger, sinks ...EventSink) *EventDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &EventDispatcher{sinks: make(map[string]EventSink, len(sinks)), metrics: metrics, logger: logger}
	for _, sink := range sinks {
		if sink == nil {
			continue
		}
		d.sinks[sink.Name()] = sink
		d.order = append(d.order, sink.Name())
	}
	return d
}

// AttachQueue routes dispatches through q.
func (d *EventDispatcher) AttachQueue(q eventQueue) {
	d.queue = q
}

// Dispatch enqueues one job per event and sink and never waits on a sink. A
// full queue drops the job; a missing or stopped queue delivers inline.
func (d *EventDispatcher) Dispatch(ctx context.Context, events ...models.DomainEvent) {
	for _, event := range events {
		for _, name := range d.order {
			job := jobs.Job{ID: event.ID + ":" + name, Type: name, Payload: event}
			if d.queue != nil {
				err := d.queue.Enqueue(job)
				if err == nil {
					continue
				}
				if errors.Is(err, jobs.ErrQueueFull) {
					d.metrics.EventDelivered(event.Type, false)
					d.logger.Error("event queue full, dropping event",
						zap.String("event_id", event.ID),
						zap.String("type", string(event.Type)),
						zap.String("sink", name),
					)
					continue
				}
				d.logger.Warn("event queue unavailable, delivering inline", zap.String("event_id", event.ID), zap.Error(err))
			}
			if err := d.Handle(ctx, job); err != nil {
				d.logger.Error("inline event delivery failed", zap.String("event_id", event.ID), zap.String("sink", name), zap.Error(err))
			}
		}
	}
}

// Handle is the jobs.Handler delivering a single event to a single sink.
func (d *EventDispatcher) Handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.DomainEvent)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", job.Payload)
	}
	sink, ok := d.sinks[job.Type]
	if !ok {
		return fmt.Errorf("unknown event sink %q", job.Type)
	}
	err := sink.Deliver(ctx, event)
	d.metrics.EventDelivered(event.Type, err == nil)
	return err
}

// LogEventSink writes events to the structured log.
type LogEventSink struct {
	logger *zap.Logger
}

// NewLogEventSink constructs a log sink.
func NewLogEventSink(logger *zap.Logger) *LogEventSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogEventSink{logger: logger}
}

// Name implements EventSink.
func (s *LogEventSink) Name() string { return "log" }

// Deliver implements EventSink.
func (s *LogEventSink) Deliver(_ context.Context, event models.DomainEvent) error {
	s.logger.Info("domain event",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("actor_id", event.ActorID),
		zap.Time("occurred_at", event.OccurredAt),
		zap.Any("payload", event.Payload),
	)
	return nil
}

// RedisEventSink publishes events on a Redis pub/sub channel.
type RedisEventSink struct {
	publisher eventPublisher
	channel   string
}

// NewRedisEventSink constructs a pub/sub sink.
func NewRedisEventSink(publisher eventPublisher, channel string) *RedisEventSink {
	if channel == "" {
		channel = "thesis.events"
	}
	return &RedisEventSink{publisher: publisher, channel: channel}
}

// Name implements EventSink.
func (s *RedisEventSink) Name() string { return "redis" }

// Deliver implements EventSink.
func (s *RedisEventSink) Deliver(ctx context.Context, event models.DomainEvent) error {
	return s.publisher.Publish(ctx, s.channel, event)
}
