package mqtt

import (
	"fmt"
	"sync"
)

// MockMessage is one recorded publish.
type MockMessage struct {
	Channel string
	Event   string
	Payload any
}

// MockPublisher records publishes in memory for tests.
type MockPublisher struct {
	mu           sync.Mutex
	messages     []MockMessage
	FailChannels map[string]bool
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{FailChannels: make(map[string]bool)}
}

// Publish records the message or fails if the channel is marked failing.
func (m *MockPublisher) Publish(channel, event string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailChannels[channel] {
		return fmt.Errorf("publish failed")
	}
	m.messages = append(m.messages, MockMessage{Channel: channel, Event: event, Payload: payload})
	return nil
}

// Messages returns a snapshot of everything published so far.
func (m *MockPublisher) Messages() []MockMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockMessage, len(m.messages))
	copy(out, m.messages)
	return out
}

// MessagesOn returns the publishes on one channel.
func (m *MockPublisher) MessagesOn(channel string) []MockMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []MockMessage
	for _, msg := range m.messages {
		if msg.Channel == channel {
			out = append(out, msg)
		}
	}
	return out
}

// CountEvent returns how many times event was published on channel.
func (m *MockPublisher) CountEvent(channel, event string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.messages {
		if msg.Channel == channel && msg.Event == event {
			n++
		}
	}
	return n
}
