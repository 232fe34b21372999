package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// Topic names. Downstream notification and analytics consumers subscribe to
// these; the engine only produces.
const (
	TopicAttemptSubmitted = "attempt.submitted"
)

// AttemptSubmittedPayload is the wire payload for TopicAttemptSubmitted.
type AttemptSubmittedPayload struct {
	AttemptID    uint      `json:"attempt_id"`
	AssignmentID uint      `json:"assignment_id"`
	StudentID    string    `json:"student_id"`
	Score        float64   `json:"score"`
	MaxScore     float64   `json:"max_score"`
	Percentage   float64   `json:"percentage"`
	Passed       bool      `json:"passed"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// EventPublisher emits domain events. Publishing is best-effort; callers log
// failures and move on.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
	Close() error
}

// ===== KAFKA =====

type kafkaEventPublisher struct {
	publisher message.Publisher
	logger    *slog.Logger
}

// NewKafkaEventPublisher connects a watermill kafka publisher to the given
// brokers.
func NewKafkaEventPublisher(brokers []string, logger *slog.Logger) (EventPublisher, error) {
	publisher, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:   brokers,
			Marshaler: kafka.DefaultMarshaler{},
		},
		watermill.NewSlogLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
	}

	return &kafkaEventPublisher{
		publisher: publisher,
		logger:    logger,
	}, nil
}

func (p *kafkaEventPublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	msg := message.NewMessage(uuid.New().String(), body)
	msg.SetContext(ctx)
	msg.Metadata.Set("event_type", topic)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", topic, err)
	}
	return nil
}

func (p *kafkaEventPublisher) Close() error {
	return p.publisher.Close()
}

// ===== NOOP =====

type noopEventPublisher struct{}

// NewNoopEventPublisher returns a publisher that drops everything, for
// deployments without a broker.
func NewNoopEventPublisher() EventPublisher {
	return noopEventPublisher{}
}

func (noopEventPublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	return nil
}

func (noopEventPublisher) Close() error { return nil }

// ===== MOCK (tests) =====

// PublishedEvent records one Publish call on the mock.
type PublishedEvent struct {
	Topic   string
	Payload interface{}
}

// MockEventPublisher captures events for assertions.
type MockEventPublisher struct {
	mu     sync.Mutex
	events []PublishedEvent

	// FailWith, when set, is returned from every Publish.
	FailWith error
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{}
}

func (m *MockEventPublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	m.events = append(m.events, PublishedEvent{Topic: topic, Payload: payload})
	return nil
}

func (m *MockEventPublisher) Close() error { return nil }

// Events returns a copy of everything published so far.
func (m *MockEventPublisher) Events() []PublishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PublishedEvent, len(m.events))
	copy(out, m.events)
	return out
}
