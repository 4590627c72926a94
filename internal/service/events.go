package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"user-service/internal/entity"
)

const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type UserEvent struct {
	Event      string      `json:"event"`
	User       entity.User `json:"user"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// Publisher emits user lifecycle events. A nil *Publisher does nothing.
type Publisher struct {
	writer MessageWriter
}

func NewPublisher(writer MessageWriter) *Publisher {
	return &Publisher{writer: writer}
}

// Publish writes one event keyed user-<event>-<id>. Failures are logged, not
// returned: the database write has already happened.
func (p *Publisher) Publish(ctx context.Context, event string, user *entity.User) {
	if p == nil {
		return
	}

	value, err := json.Marshal(UserEvent{Event: event, User: *user, OccurredAt: time.Now().UTC()})
	if err != nil {
		logger.Error().Err(err).Msgf("Error encoding user-%s event", event)
		return
	}

	// user-created-1 or user-deleted-1
	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("user-%s-%d", event, user.ID)),
		Value: value,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		logger.Error().Err(err).Msgf("Error publishing user-%s event for user %d", event, user.ID)
	}
}
