// Package events fans registry domain events out to the configured sinks:
// the structured log, an SNS topic, NATS subjects, connected websocket
// clients and stakeholder e-mail.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"carbon-scribe/credit-registry-backend/internal/metrics"
)

type Type string

const (
	ProjectCreated        Type = "project.created"
	ProjectStatusChanged  Type = "project.status_changed"
	StakeholderLinked     Type = "stakeholder.linked"
	UploadCreated         Type = "upload.created"
	UploadStatusChanged   Type = "upload.status_changed"
	VerificationSubmitted Type = "verification.submitted"
	VerificationDecided   Type = "verification.decided"
	CreditIssued          Type = "credit.issued"
	CreditRetired         Type = "credit.retired"
	CreditCancelled       Type = "credit.cancelled"
	ListingCreated        Type = "listing.created"
	ListingPurchased      Type = "listing.purchased"
	ListingCancelled      Type = "listing.cancelled"
	ListingExpired        Type = "listing.expired"
)

type Event struct {
	ID         string                 `json:"id"`
	Type       Type                   `json:"type"`
	ProjectID  string                 `json:"project_id,omitempty"`
	EntityID   string                 `json:"entity_id"`
	Actor      string                 `json:"actor,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// New stamps an event with an id and the current time.
func New(t Type, projectID, entityID, actor string, data map[string]interface{}) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		ProjectID:  projectID,
		EntityID:   entityID,
		Actor:      actor,
		Data:       data,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher is what services depend on. Publishing never fails the caller.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Sink delivers events to one destination.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, e Event) error
}

// Discard drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(context.Context, Event) {}

// Bus queues events and delivers them to every sink from a single worker,
// so slow sinks never hold up a request.
type Bus struct {
	sinks   []Sink
	queue   chan Event
	logger  *zap.Logger
	timeout time.Duration
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewBus(logger *zap.Logger, bufferSize int, sinks ...Sink) *Bus {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	b := &Bus{
		sinks:   sinks,
		queue:   make(chan Event, bufferSize),
		logger:  logger,
		timeout: 10 * time.Second,
		done:    make(chan struct{}),
	}
	go b.run()
	return b
}

// Publish queues e for delivery. Events published after Close are dropped.
func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		b.logger.Warn("Event bus closed, dropping event",
			zap.String("type", string(e.Type)),
			zap.String("entity_id", e.EntityID))
		metrics.EventsPublished.WithLabelValues("bus", "dropped").Inc()
		return
	}
	select {
	case b.queue <- e:
	default:
		b.logger.Warn("Event queue full, dropping event",
			zap.String("type", string(e.Type)),
			zap.String("entity_id", e.EntityID))
		metrics.EventsPublished.WithLabelValues("bus", "dropped").Inc()
	}
}

func (b *Bus) run() {
	defer close(b.done)
	for e := range b.queue {
		for _, sink := range b.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
			err := sink.Deliver(ctx, e)
			cancel()
			if err != nil {
				b.logger.Error("Failed to deliver event",
					zap.String("sink", sink.Name()),
					zap.String("type", string(e.Type)),
					zap.String("entity_id", e.EntityID),
					zap.Error(err))
				metrics.EventsPublished.WithLabelValues(sink.Name(), "error").Inc()
				continue
			}
			metrics.EventsPublished.WithLabelValues(sink.Name(), "ok").Inc()
		}
	}
}

// Close stops accepting events and waits until the queue is drained.
func (b *Bus) Close() {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.queue)
	}
	b.mu.Unlock()
	<-b.done
}

// LogSink writes each event to the structured log.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(_ context.Context, e Event) error {
	s.logger.Info("Domain event",
		zap.String("event_id", e.ID),
		zap.String("type", string(e.Type)),
		zap.String("project_id", e.ProjectID),
		zap.String("entity_id", e.EntityID),
		zap.String("actor", e.Actor))
	return nil
}
