package utils

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopic(t *testing.T) {
	topic := NewTopic[int](2)
	first := topic.Subscribe()
	second := topic.Subscribe()
	assert.Equal(t, 2, topic.NumSubscribers())

	topic.Publish(1)
	topic.Publish(2)
	// both buffers are full, this one is dropped
	topic.Publish(3)

	for _, subscriber := range []*Subscriber[int]{first, second} {
		assert.Equal(t, 1, <-subscriber.Recv())
		assert.Equal(t, 2, <-subscriber.Recv())
		assert.Equal(t, 1, subscriber.Dropped())
	}

	second.Done()
	assert.Equal(t, 1, topic.NumSubscribers())

	topic.Publish(4)
	assert.Equal(t, 4, <-first.Recv())
	assert.Len(t, second.Recv(), 0)
}

func TestSession(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	session := NewSession(parent)
	require.False(t, session.IsDone())
	assert.False(t, session.Started().IsZero())

	cancel()
	<-session.Done()
	assert.True(t, session.IsDone())

	child := NewSession(context.Background())
	child.Cancel()
	assert.ErrorIs(t, child.Ctx().Err(), context.Canceled)
}
