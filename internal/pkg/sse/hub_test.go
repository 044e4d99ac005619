package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishToTopic(t *testing.T) {
	hub := NewHub[string](4)

	a, cancelA := hub.Subscribe("run-1")
	b, cancelB := hub.Subscribe("run-2")
	defer cancelB()

	hub.Publish("run-1", "calculating")

	require.Len(t, a, 1)
	assert.Equal(t, "calculating", <-a)
	assert.Len(t, b, 0)
	assert.Equal(t, 2, hub.TotalSubscribers())

	cancelA()
	cancelA()
	_, open := <-a
	assert.False(t, open)
	assert.Equal(t, 0, hub.SubscriberCount("run-1"))
}

func TestHub_FullSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub[int](1)
	ch, cancel := hub.Subscribe("run-1")
	defer cancel()

	hub.Publish("run-1", 1)
	hub.Publish("run-1", 2)

	assert.Equal(t, 1, <-ch)
	assert.Len(t, ch, 0)
}
