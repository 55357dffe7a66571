package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/notifyhub/notification-dispatcher/internal/bus"
	"github.com/notifyhub/notification-dispatcher/internal/domain"
	"github.com/notifyhub/notification-dispatcher/internal/repository"
)

// Options tunes the dispatch engine. Zero values fall back to the
// production defaults: batches of 10, 3 attempts, 1 s between attempts.
type Options struct {
	BatchSize    int
	SendAttempts int
	RetryDelay   time.Duration
}

const (
	defaultBatchSize    = 10
	defaultSendAttempts = 3
	defaultRetryDelay   = time.Second
)

// Hooks carries metric callbacks injected by main. Using a struct keeps the
// service metrics-agnostic; nil callbacks are replaced with no-ops.
type Hooks struct {
	OnPublished func(channel domain.Channel, latency time.Duration)
	OnFailed    func(channel domain.Channel)
}

// Service is the dispatch engine: it owns the per-notification send state
// machine, the bounded fan-out per tick, and the status transitions. The
// admission handlers and the scheduler loops both drive this type.
type Service struct {
	repo   repository.NotificationRepository
	pub    bus.Publisher
	logger *zap.Logger

	batchSize    int
	sendAttempts int
	retryDelay   time.Duration

	onPublished func(domain.Channel, time.Duration)
	onFailed    func(domain.Channel)
}

func NewService(
	repo repository.NotificationRepository,
	pub bus.Publisher,
	logger *zap.Logger,
	opts Options,
	hooks Hooks,
) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.SendAttempts <= 0 {
		opts.SendAttempts = defaultSendAttempts
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	if hooks.OnPublished == nil {
		hooks.OnPublished = func(domain.Channel, time.Duration) {}
	}
	if hooks.OnFailed == nil {
		hooks.OnFailed = func(domain.Channel) {}
	}
	return &Service{
		repo:         repo,
		pub:          pub,
		logger:       logger,
		batchSize:    opts.BatchSize,
		sendAttempts: opts.SendAttempts,
		retryDelay:   opts.RetryDelay,
		onPublished:  hooks.OnPublished,
		onFailed:     hooks.OnFailed,
	}
}

// Create validates and persists a notification, returning the assigned id.
// With force set, the send state machine runs synchronously in the request
// path; its outcome lands in the stored status and a failure is logged
// rather than surfaced — creation is never rolled back.
func (s *Service) Create(ctx context.Context, n *domain.Notification, force bool) (string, error) {
	if err := n.Validate(); err != nil {
		return "", err
	}

	// Server-owned fields; whatever the client sent is overwritten.
	n.Status = domain.StatusPending
	n.RetryCount = 0
	n.ScheduledTime = n.ScheduledTime.UTC()

	stored, err := s.repo.Create(ctx, n)
	if err != nil {
		return "", err
	}

	if force {
		if err := s.send(ctx, stored); err != nil {
			s.logger.Error("forced send failed",
				zap.String("id", stored.ID), zap.Error(err))
		}
	}

	return stored.ID, nil
}

// Cancel transitions a pending notification to cancelled. An unknown id or
// an already-terminal notification yields the store's zero-match error.
func (s *Service) Cancel(ctx context.Context, id string) error {
	return s.repo.UpdateStatus(ctx, id, domain.StatusCancelled)
}

// ListAll materialises the store with no predicates.
func (s *Service) ListAll(ctx context.Context) ([]*domain.Notification, error) {
	it, err := s.repo.Find(ctx, domain.QueryOptions{})
	if err != nil {
		return nil, err
	}
	defer it.Close(ctx)

	var out []*domain.Notification
	for it.Next(ctx) {
		var n domain.Notification
		if err := it.Decode(&n); err != nil {
			return nil, err
		}
		out = append(out, &n)
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Dispatch is the scheduler-facing entry point: fetch up to batchSize due
// pending notifications for the tier, honouring quiet hours at the now
// upper bound, and run the send state machine on each concurrently. Per-
// notification failures are logged, never propagated — one bad recipient
// must not stall a tier. Only the initial fetch can fail.
func (s *Service) Dispatch(ctx context.Context, priority domain.Priority, now time.Time) error {
	pending := domain.StatusPending
	upper := now.UTC()

	it, err := s.repo.Find(ctx, domain.QueryOptions{
		Priority:         &priority,
		Status:           &pending,
		ScheduledBefore:  &upper,
		RespectNighttime: true,
		Limit:            int64(s.batchSize),
	})
	if err != nil {
		return fmt.Errorf("fetch due notifications: %w", err)
	}
	defer it.Close(ctx)

	g := new(errgroup.Group)
	g.SetLimit(s.batchSize)

	dispatched := 0
	for it.Next(ctx) {
		var n domain.Notification
		if err := it.Decode(&n); err != nil {
			// Undecodable documents never block the rest of the batch.
			s.logger.Warn("skipping undecodable notification", zap.Error(err))
			continue
		}
		dispatched++
		g.Go(func() error {
			if err := s.send(ctx, &n); err != nil {
				s.logger.Error("dispatch send failed",
					zap.String("id", n.ID),
					zap.String("channel", string(n.Channel)),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := it.Err(); err != nil {
		return fmt.Errorf("iterate due notifications: %w", err)
	}
	if dispatched > 0 {
		s.logger.Debug("dispatch tick complete",
			zap.String("priority", string(priority)),
			zap.Int("count", dispatched))
	}
	return nil
}

// send runs the per-notification state machine: up to sendAttempts strictly
// sequential publishes with a fixed retryDelay gap, then a single terminal
// status write. The dedup key is the notification id, so retries here and
// duplicate ticks inside the broker's dedup window collapse to one
// downstream delivery.
func (s *Service) send(ctx context.Context, n *domain.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("%w: encode notification %s: %v", domain.ErrSerial, n.ID, err)
	}

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= s.sendAttempts; attempt++ {
		lastErr = s.pub.Publish(ctx, n.Channel, n.Recipient.ID, payload, n.ID)
		if lastErr == nil {
			s.markTerminal(ctx, n.ID, domain.StatusSent)
			s.onPublished(n.Channel, time.Since(start))
			return nil
		}

		s.logger.Warn("publish attempt failed",
			zap.String("id", n.ID),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))

		if attempt < s.sendAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.retryDelay):
			}
		}
	}

	s.markTerminal(ctx, n.ID, domain.StatusFailed)
	s.onFailed(n.Channel)
	return fmt.Errorf("publish after %d attempts: %w", s.sendAttempts, lastErr)
}

// markTerminal records the terminal outcome. A zero-match failure here
// usually means a concurrent cancel won the race; the message already on
// the bus is harmless because the dedup key and work-queue retention keep
// the delivery single-shot.
func (s *Service) markTerminal(ctx context.Context, id string, status domain.Status) {
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		s.logger.Warn("terminal status write failed",
			zap.String("id", id),
			zap.String("status", string(status)),
			zap.Error(err))
	}
}
