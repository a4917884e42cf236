// Package events carries progress-engine domain events to external collaborators.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Type names a domain event.
type Type string

const (
	// LessonCompleted fires once per (student, lesson) when completion is first recorded.
	LessonCompleted Type = "lesson.completed"
	// CourseCompleted fires once per (student, course) when the completion fact is created.
	CourseCompleted Type = "course.completed"
	// BadgeUnlocked fires once per (student, badge).
	BadgeUnlocked Type = "badge.unlocked"
)

// Event is the payload published after the originating transaction commits.
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	StudentID  uint      `json:"student_id"`
	CourseID   uint      `json:"course_id,omitempty"`
	LessonID   uint      `json:"lesson_id,omitempty"`
	BadgeID    uint      `json:"badge_id,omitempty"`
	Points     int       `json:"points,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// New stamps an event with a fresh identifier.
func New(eventType Type, studentID uint, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		StudentID:  studentID,
		OccurredAt: at.UTC(),
	}
}

// Publisher delivers events to whoever listens for them.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NATSPublisher publishes events as JSON on "<subject>.<type>".
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger
}

// NewNATSPublisher wraps an established connection. A nil connection yields a publisher that drops events.
func NewNATSPublisher(conn *nats.Conn, subject string, logger zerolog.Logger) *NATSPublisher {
	return &NATSPublisher{
		conn:    conn,
		subject: subject,
		logger:  logger.With().Str("component", "event_publisher").Logger(),
	}
}

// Publish encodes and sends the event.
func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	if p == nil || p.conn == nil || p.subject == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	subject := Subject(p.subject, event.Type)
	if err := p.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	p.logger.Debug().Str("subject", subject).Str("event_id", event.ID).Msg("event published")
	return nil
}

// Subject derives the NATS subject for an event type.
func Subject(base string, eventType Type) string {
	return fmt.Sprintf("%s.%s", base, eventType)
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }
