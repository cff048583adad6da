// Package events publishes account lifecycle events to the message broker.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jjudge-oj/authserver/internal/mq"
	"github.com/jjudge-oj/authserver/types"
)

const (
	// TypeUserRegistered is emitted once per successful registration.
	TypeUserRegistered = "user.registered"

	attrType    = "type"
	contentType = "application/json"
)

// UserRegistered is the payload of a TypeUserRegistered event. It never
// carries credential material.
type UserRegistered struct {
	Type       string    `json:"type"`
	UserID     int       `json:"user_id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Broker is the subset of mq.MQ the publisher needs.
type Broker interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// Publisher writes events to one broker channel.
type Publisher struct {
	broker  Broker
	channel string
	now     func() time.Time
}

func NewPublisher(broker Broker, channel string) *Publisher {
	return &Publisher{
		broker:  broker,
		channel: channel,
		now:     time.Now,
	}
}

// UserRegistered announces a newly created account.
func (p *Publisher) UserRegistered(ctx context.Context, user types.User) error {
	event := UserRegistered{
		Type:       TypeUserRegistered,
		UserID:     user.ID,
		Username:   user.Username,
		Email:      user.Email,
		Role:       user.Role,
		OccurredAt: p.now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Type, err)
	}

	if _, err := p.broker.Publish(ctx, p.channel, data, map[string]string{
		attrType:           event.Type,
		mq.AttrContentType: contentType,
		mq.AttrOrderingKey: strconv.Itoa(user.ID),
	}); err != nil {
		return fmt.Errorf("publish %s event: %w", event.Type, err)
	}
	return nil
}

// Decode parses a message produced by Publisher.
func Decode(msg mq.Message) (UserRegistered, error) {
	var event UserRegistered
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return UserRegistered{}, fmt.Errorf("decode event %s: %w", msg.ID, err)
	}
	if event.Type == "" {
		event.Type = msg.Attributes[attrType]
	}
	if event.Type != TypeUserRegistered {
		return UserRegistered{}, fmt.Errorf("unknown event type %q", event.Type)
	}
	return event, nil
}
