// Package events describes the activity feed emitted after successful writes.
//
// Publishing is fire-and-forget from the caller's point of view: services log
// a failed publish and carry on, since the write it describes has already
// committed.
package events

import (
	"context"
	"log/slog"
	"time"
)

// Type names an activity.
type Type string

const (
	JokeCreated    Type = "joke.created"
	JokeDeleted    Type = "joke.deleted"
	CommentAdded   Type = "comment.added"
	LikeAdded      Type = "like.added"
	LikeRemoved    Type = "like.removed"
	UserRegistered Type = "user.registered"
)

// Event is one activity record. JokeID is empty for user events.
type Event struct {
	Type   Type      `json:"type"`
	JokeID string    `json:"jokeId,omitempty"`
	UserID string    `json:"userId,omitempty"`
	At     time.Time `json:"at"`
}

// New stamps an event with the current UTC time.
func New(t Type, jokeID, userID string) Event {
	return Event{Type: t, JokeID: jokeID, UserID: userID, At: time.Now().UTC()}
}

// Publisher delivers events somewhere.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// LogPublisher writes events to a slog logger. It is the fallback when no
// broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, e Event) error {
	p.logger.LogAttrs(ctx, slog.LevelInfo, "activity",
		slog.String("type", string(e.Type)),
		slog.String("joke_id", e.JokeID),
		slog.String("user_id", e.UserID),
		slog.Time("at", e.At),
	)
	return nil
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, Event) error { return nil }
