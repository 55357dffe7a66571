package bus

import (
	"context"
	"fmt"

	"github.com/notifyhub/notification-dispatcher/internal/domain"
)

// Publisher is the durable-bus capability the dispatch engine depends on.
// Publish attaches dedupKey as the message's deduplication identifier; the
// broker collapses repeated keys inside its dedup window, which is what
// makes retries and overlapping dispatch ticks safe. The publisher never
// retries internally — retry policy belongs to the dispatch service.
type Publisher interface {
	Publish(ctx context.Context, channel domain.Channel, recipientID string, payload []byte, dedupKey string) error
}

// StreamName returns the per-channel durable stream name.
func StreamName(channel domain.Channel) string {
	return fmt.Sprintf("notifications_%s", channel)
}

// StreamSubjects returns the subject filter a channel's stream binds.
func StreamSubjects(channel domain.Channel) string {
	return fmt.Sprintf("notifications_%s.*", channel)
}

// Subject returns the per-(channel, recipient) publish subject.
func Subject(channel domain.Channel, recipientID string) string {
	return fmt.Sprintf("notifications_%s.%s", channel, recipientID)
}
