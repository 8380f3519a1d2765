package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HarveyThePooka404/jokes/internal/events"
)

type fakeChannel struct {
	declared   []string
	published  []amqp.Publishing
	keys       []string
	closed     int
	publishErr error
}

func (f *fakeChannel) QueueDeclare(name string, durable, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	if !durable {
		return amqp.Queue{}, errors.New("queue must be durable")
	}
	f.declared = append(f.declared, name)
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.keys = append(f.keys, exchange+"/"+key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed++
	return nil
}

func newFakePublisher(ch *fakeChannel) *EventPublisher {
	return &EventPublisher{
		queue: "jokes.activity",
		open:  func() (channel, error) { return ch, nil },
	}
}

func TestEventPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	p := newFakePublisher(ch)

	e := events.New(events.CommentAdded, "joke-1", "user-1")
	require.NoError(t, p.Publish(context.Background(), e))
	require.NoError(t, p.Publish(context.Background(), e))

	assert.Equal(t, []string{"jokes.activity"}, ch.declared, "queue is declared once")
	assert.Equal(t, 2, ch.closed)
	require.Len(t, ch.published, 2)
	assert.Equal(t, "/jokes.activity", ch.keys[0])

	msg := ch.published[0]
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "comment.added", msg.Type)

	var got events.Event
	require.NoError(t, json.Unmarshal(msg.Body, &got))
	assert.Equal(t, e.Type, got.Type)
	assert.Equal(t, e.JokeID, got.JokeID)
}

func TestEventPublisher_PublishError(t *testing.T) {
	ch := &fakeChannel{publishErr: errors.New("channel closed")}
	p := newFakePublisher(ch)

	err := p.Publish(context.Background(), events.New(events.JokeDeleted, "joke-1", "user-1"))
	assert.ErrorContains(t, err, "joke.deleted")
	assert.Equal(t, 1, ch.closed)
}

func TestEventPublisher_OpenError(t *testing.T) {
	p := &EventPublisher{
		queue: "q",
		open:  func() (channel, error) { return nil, amqp.ErrClosed },
	}

	err := p.Publish(context.Background(), events.New(events.LikeAdded, "j", "u"))
	assert.ErrorIs(t, err, amqp.ErrClosed)
}
