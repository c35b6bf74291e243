package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/taskmanager/apiserver/types"
)

// Account event types published on the events channel.
const (
	EventUserRegistered = "user.registered"
	EventUserCreated    = "user.created"
	EventProviderLinked = "user.linked"
)

// Publisher is the subset of the message queue used to emit events.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// AccountEvent is the JSON payload of an account event.
type AccountEvent struct {
	Type       string         `json:"type"`
	UserID     int            `json:"user_id"`
	Username   string         `json:"username"`
	Email      string         `json:"email"`
	Provider   types.Provider `json:"provider"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// AccountEvents publishes account lifecycle events. Delivery is best effort:
// failures are logged and never fail the operation that triggered them.
// A nil *AccountEvents drops every event.
type AccountEvents struct {
	publisher Publisher
	channel   string
	logger    *slog.Logger
}

func NewAccountEvents(publisher Publisher, channel string, logger *slog.Logger) *AccountEvents {
	if publisher == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountEvents{publisher: publisher, channel: channel, logger: logger}
}

// Emit publishes an event of the given type about user.
func (e *AccountEvents) Emit(ctx context.Context, eventType string, user types.User, provider types.Provider) {
	if e == nil {
		return
	}
	event := AccountEvent{
		Type:       eventType,
		UserID:     user.ID,
		Username:   user.Username,
		Email:      user.Email,
		Provider:   provider,
		OccurredAt: time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		e.logger.ErrorContext(ctx, "encode account event", "type", eventType, "error", err)
		return
	}
	id, err := e.publisher.Publish(ctx, e.channel, data, map[string]string{"type": eventType})
	if err != nil {
		e.logger.WarnContext(ctx, "publish account event", "type", eventType, "user_id", user.ID, "error", err)
		return
	}
	e.logger.DebugContext(ctx, "account event published", "type", eventType, "message_id", id)
}
