package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFansOut(t *testing.T) {
	bus := New()
	defer bus.Close()

	a := bus.Subscribe()
	b := bus.Subscribe()

	bus.Publish("hello")

	assert.Equal(t, "hello", <-a)
	assert.Equal(t, "hello", <-b)
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	bus := New()
	defer bus.Close()

	sub := bus.Subscribe()
	for i := 0; i < 32; i++ {
		bus.Publish(i) // must never block even with no reader
	}

	received := 0
	for {
		select {
		case <-sub:
			received++
			continue
		default:
		}
		break
	}
	assert.Equal(t, 16, received, "buffer holds 16, the rest drop")
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := New()
	defer bus.Close()

	sub := bus.Subscribe()
	bus.Unsubscribe(sub)

	_, ok := <-sub
	require.False(t, ok, "channel should be closed")

	// Publishing after unsubscribe must not panic.
	bus.Publish("late")
}

func TestCloseIsIdempotent(t *testing.T) {
	bus := New()
	sub := bus.Subscribe()

	bus.Close()
	bus.Close()

	_, ok := <-sub
	assert.False(t, ok)

	// Subscribing after close yields a closed channel.
	late := bus.Subscribe()
	_, ok = <-late
	assert.False(t, ok)

	bus.Publish("ignored")
}
