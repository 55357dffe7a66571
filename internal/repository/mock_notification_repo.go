package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/notifyhub/notification-dispatcher/internal/domain"
)

// MockNotificationRepository is a hand-written, in-memory implementation of
// NotificationRepository used in unit tests. No mock-generation library
// needed. It honours every QueryOptions predicate, including quiet hours,
// and enforces the pending-only conditional update like the real store.
type MockNotificationRepository struct {
	mu            sync.RWMutex
	notifications map[string]*domain.Notification
	order         []string

	// Optional error overrides — set in tests to simulate failure paths.
	CreateErr       error
	FindErr         error
	UpdateStatusErr error

	// CorruptIDs makes Decode fail with ErrSerial for the listed documents,
	// simulating undecodable rows inside a dispatch stream.
	CorruptIDs map[string]bool
}

func NewMockNotificationRepository() *MockNotificationRepository {
	return &MockNotificationRepository{
		notifications: make(map[string]*domain.Notification),
		CorruptIDs:    make(map[string]bool),
	}
}

func (m *MockNotificationRepository) Create(_ context.Context, n *domain.Notification) (*domain.Notification, error) {
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *n
	stored.ID = uuid.New().String()
	if _, exists := m.notifications[stored.ID]; exists {
		return nil, domain.ErrDuplicateKey
	}
	m.notifications[stored.ID] = &stored
	m.order = append(m.order, stored.ID)

	clone := stored
	return &clone, nil
}

func (m *MockNotificationRepository) Find(_ context.Context, opts domain.QueryOptions) (Iterator, error) {
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var items []domain.Notification
	for _, id := range m.order {
		n := m.notifications[id]
		if !matches(n, opts) {
			continue
		}
		items = append(items, *n)
		if opts.Limit > 0 && int64(len(items)) == opts.Limit {
			break
		}
	}
	return &sliceIterator{items: items, corrupt: m.CorruptIDs, pos: -1}, nil
}

func (m *MockNotificationRepository) UpdateStatus(_ context.Context, id string, status domain.Status) error {
	if m.UpdateStatusErr != nil {
		return m.UpdateStatusErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.notifications[id]
	if !ok || n.Status != domain.StatusPending {
		return fmt.Errorf("%w: no documents matched id %s", domain.ErrRepository, id)
	}
	n.Status = status
	return nil
}

// Get returns a copy of a stored notification, for test assertions.
func (m *MockNotificationRepository) Get(id string) (*domain.Notification, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.notifications[id]
	if !ok {
		return nil, false
	}
	clone := *n
	return &clone, true
}

// Put stores a notification verbatim (id included), for test fixtures.
func (m *MockNotificationRepository) Put(n *domain.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *n
	m.notifications[n.ID] = &clone
	m.order = append(m.order, n.ID)
}

func matches(n *domain.Notification, opts domain.QueryOptions) bool {
	if opts.Priority != nil && n.Priority != *opts.Priority {
		return false
	}
	if opts.Status != nil && n.Status != *opts.Status {
		return false
	}
	if opts.ScheduledBefore != nil {
		if n.ScheduledTime.After(*opts.ScheduledBefore) {
			return false
		}
		if opts.RespectNighttime && !domain.InWakingHours(*opts.ScheduledBefore, n.Recipient.TimezoneOffset) {
			return false
		}
	}
	return true
}

type sliceIterator struct {
	items   []domain.Notification
	corrupt map[string]bool
	pos     int
}

func (it *sliceIterator) Next(_ context.Context) bool {
	it.pos++
	return it.pos < len(it.items)
}

func (it *sliceIterator) Decode(n *domain.Notification) error {
	cur := it.items[it.pos]
	if it.corrupt[cur.ID] {
		return fmt.Errorf("%w: decode notification %s", domain.ErrSerial, cur.ID)
	}
	*n = cur
	return nil
}

func (it *sliceIterator) Err() error { return nil }

func (it *sliceIterator) Close(_ context.Context) error { return nil }
