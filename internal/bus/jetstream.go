package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/notifyhub/notification-dispatcher/internal/domain"
)

// Stream configuration shared by every channel: work-queue retention (a
// message is removed once any consumer acks it), a 24-hour age cap, and a
// 60-second deduplication window keyed by Nats-Msg-Id.
const (
	streamMaxAge      = 24 * time.Hour
	streamDedupWindow = 60 * time.Second
)

type jetStreamPublisher struct {
	js        jetstream.JetStream
	opTimeout time.Duration
}

// Connect dials the NATS server, opens a JetStream context, and provisions
// one stream per channel. Stream provisioning is idempotent get-or-create;
// an existing stream is updated in place to the current configuration.
func Connect(ctx context.Context, url string, opTimeout time.Duration) (*nats.Conn, Publisher, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create jetstream context: %w", err)
	}

	for _, channel := range domain.Channels {
		if err := ensureStream(ctx, js, channel); err != nil {
			nc.Close()
			return nil, nil, err
		}
	}

	return nc, &jetStreamPublisher{js: js, opTimeout: opTimeout}, nil
}

func ensureStream(ctx context.Context, js jetstream.JetStream, channel domain.Channel) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       StreamName(channel),
		Subjects:   []string{StreamSubjects(channel)},
		Retention:  jetstream.WorkQueuePolicy,
		MaxAge:     streamMaxAge,
		Duplicates: streamDedupWindow,
	})
	if err != nil {
		return fmt.Errorf("provision stream %s: %w", StreamName(channel), err)
	}
	return nil
}

// Publish sends the payload to the per-(channel, recipient) subject and
// awaits the server acknowledgement. A transport failure, a missing ack, or
// an ack naming no stream is surfaced as a transient domain.ErrService.
func (p *jetStreamPublisher) Publish(ctx context.Context, channel domain.Channel, recipientID string, payload []byte, dedupKey string) error {
	ctx, cancel := context.WithTimeout(ctx, p.opTimeout)
	defer cancel()

	ack, err := p.js.Publish(ctx, Subject(channel, recipientID), payload, jetstream.WithMsgID(dedupKey))
	if err != nil {
		return fmt.Errorf("%w: publish to %s: %v", domain.ErrService, Subject(channel, recipientID), err)
	}
	if ack == nil || ack.Stream == "" {
		return fmt.Errorf("%w: publish to %s: empty ack", domain.ErrService, Subject(channel, recipientID))
	}
	return nil
}
