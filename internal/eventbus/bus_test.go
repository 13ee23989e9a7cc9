package eventbus

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestPublishReachesOnlyTopicSubscribers(t *testing.T) {
	bus := New()
	defer bus.Close()

	var friends, capsules int
	bus.Subscribe(TopicFriendsChanged, func(Event) { friends++ })
	bus.Subscribe(TopicCapsulesChanged, func(Event) { capsules++ })

	bus.Publish(Event{Topic: TopicFriendsChanged, UserIDs: []uuid.UUID{uuid.New()}})

	assert.Equal(t, 1, friends)
	assert.Equal(t, 0, capsules)
}

func TestDisposerRemovesOnlyItsHandler(t *testing.T) {
	bus := New()

	var a, b int
	disposeA := bus.Subscribe(TopicDiariesChanged, func(Event) { a++ })
	bus.Subscribe(TopicDiariesChanged, func(Event) { b++ })

	disposeA()
	disposeA()
	bus.Publish(Event{Topic: TopicDiariesChanged})

	assert.Equal(t, 0, a)
	assert.Equal(t, 1, b)
	assert.Equal(t, 1, bus.Subscribers(TopicDiariesChanged))
}

func TestPanickingHandlerDoesNotBlockOthers(t *testing.T) {
	bus := New()

	called := false
	bus.Subscribe(TopicFriendsChanged, func(Event) { panic("boom") })
	bus.Subscribe(TopicFriendsChanged, func(Event) { called = true })

	assert.NotPanics(t, func() { bus.Publish(Event{Topic: TopicFriendsChanged}) })
	assert.True(t, called)
}

func TestClosedBusIgnoresTraffic(t *testing.T) {
	bus := New()
	called := false
	bus.Subscribe(TopicFriendsChanged, func(Event) { called = true })

	bus.Close()
	bus.Publish(Event{Topic: TopicFriendsChanged})
	dispose := bus.Subscribe(TopicFriendsChanged, func(Event) { called = true })
	dispose()

	assert.False(t, called)
	assert.Equal(t, 0, bus.Subscribers(TopicFriendsChanged))
}
