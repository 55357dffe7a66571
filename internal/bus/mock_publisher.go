package bus

import (
	"context"
	"sync"

	"github.com/notifyhub/notification-dispatcher/internal/domain"
)

// PublishedMessage records one Publish call observed by the mock.
type PublishedMessage struct {
	Subject  string
	Payload  []byte
	DedupKey string
}

// MockPublisher is an in-memory Publisher for tests. FailFirst makes the
// first N publishes fail; FailAll makes every publish fail. Messages with a
// dedup key already seen within the recorded set are collapsed, mimicking
// the broker-side dedup window (tests run well inside 60 seconds).
type MockPublisher struct {
	mu       sync.Mutex
	attempts int
	messages []PublishedMessage
	seenKeys map[string]bool

	FailFirst int
	FailAll   bool
	FailErr   error
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{seenKeys: make(map[string]bool)}
}

func (m *MockPublisher) Publish(_ context.Context, channel domain.Channel, recipientID string, payload []byte, dedupKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.attempts++
	if m.FailAll || m.attempts <= m.FailFirst {
		if m.FailErr != nil {
			return m.FailErr
		}
		return domain.ErrService
	}

	if m.seenKeys[dedupKey] {
		return nil // collapsed by the dedup window
	}
	m.seenKeys[dedupKey] = true
	m.messages = append(m.messages, PublishedMessage{
		Subject:  Subject(channel, recipientID),
		Payload:  payload,
		DedupKey: dedupKey,
	})
	return nil
}

// Attempts returns the total number of Publish calls, failures included.
func (m *MockPublisher) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Messages returns the distinct messages accepted onto the bus.
func (m *MockPublisher) Messages() []PublishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PublishedMessage, len(m.messages))
	copy(out, m.messages)
	return out
}
