package repository

import (
	"context"

	"github.com/notifyhub/notification-dispatcher/internal/domain"
)

// NotificationRepository defines all persistence operations the dispatch
// engine needs. The MongoDB implementation is in mongo_notification_repo.go.
// Tests use a hand-written mock (mock_notification_repo.go).
type NotificationRepository interface {
	// Create assigns an id, persists the notification, and returns the
	// stored form. Returns domain.ErrDuplicateKey on id collision.
	Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error)

	// Find returns a lazy, forward-only iterator over notifications matching
	// every supplied predicate. Dispatch starts sending as soon as the first
	// document is available, so the batch is never materialised here.
	Find(ctx context.Context, opts domain.QueryOptions) (Iterator, error)

	// UpdateStatus performs a single-document conditional update restricted
	// to pending documents; any non-pending or unknown id yields a
	// zero-match domain.ErrRepository.
	UpdateStatus(ctx context.Context, id string, status domain.Status) error
}

// Iterator is a forward-only cursor over query results. It mirrors the
// mongo.Cursor contract so the store implementation stays a thin wrapper.
type Iterator interface {
	// Next advances the iterator; false means exhausted or failed (see Err).
	Next(ctx context.Context) bool

	// Decode unmarshals the current document. A failure is a per-document
	// domain.ErrSerial; callers may skip and continue iterating.
	Decode(n *domain.Notification) error

	// Err reports any iteration error after Next returns false.
	Err() error

	Close(ctx context.Context) error
}
