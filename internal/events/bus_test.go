package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeReceivesMatchingTopic(t *testing.T) {
	bus := New(nil)
	sub := bus.Subscribe(TopicTransfer)
	defer sub.Close()

	bus.Publish(Event{Topic: TopicTransfer, Kind: "Added", Payload: 42})
	bus.Publish(Event{Topic: TopicSync, Kind: "Started"})

	select {
	case ev := <-sub.Events():
		assert.Equal(t, TopicTransfer, ev.Topic)
		assert.Equal(t, "Added", ev.Kind)
		assert.Equal(t, 42, ev.Payload)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected event delivered for unsubscribed topic: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeAllTopics(t *testing.T) {
	bus := New(nil)
	sub := bus.Subscribe()
	defer sub.Close()

	bus.Publish(Event{Topic: TopicQueue, Kind: "Status"})

	select {
	case ev := <-sub.Events():
		assert.Equal(t, TopicQueue, ev.Topic)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishDropsOldestWhenSubscriberSaturated(t *testing.T) {
	bus := New(nil)
	sub := bus.Subscribe(TopicTransfer)
	defer sub.Close()

	for i := 0; i < bufferSize+10; i++ {
		bus.Publish(Event{Topic: TopicTransfer, Kind: "Progress", Payload: i})
	}

	first := <-sub.Events()
	assert.NotEqual(t, 0, first.Payload, "oldest events should have been dropped to make room")
}

func TestCloseStopsDelivery(t *testing.T) {
	bus := New(nil)
	sub := bus.Subscribe(TopicTransfer)
	sub.Close()

	require.NotPanics(t, func() {
		bus.Publish(Event{Topic: TopicTransfer, Kind: "Added"})
	})
}
