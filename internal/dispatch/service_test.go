package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/notification-dispatcher/internal/bus"
	"github.com/notifyhub/notification-dispatcher/internal/domain"
	"github.com/notifyhub/notification-dispatcher/internal/repository"
)

// noon UTC: inside the waking window for a +00:00 recipient.
var noon = time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*Service, *repository.MockNotificationRepository, *bus.MockPublisher) {
	t.Helper()
	repo := repository.NewMockNotificationRepository()
	pub := bus.NewMockPublisher()
	svc := NewService(repo, pub, zap.NewNop(), Options{
		RetryDelay: time.Millisecond, // keep retry-path tests fast
	}, Hooks{})
	return svc, repo, pub
}

func pendingNotification(offset string, priority domain.Priority) *domain.Notification {
	return &domain.Notification{
		Content:       "hi",
		Channel:       domain.ChannelPush,
		Recipient:     domain.Recipient{ID: "u1", TimezoneOffset: offset},
		ScheduledTime: noon.Add(-time.Minute),
		Priority:      priority,
	}
}

func TestService_CreateAssignsIDAndPendingStatus(t *testing.T) {
	svc, repo, pub := newService(t)
	ctx := context.Background()

	id, err := svc.Create(ctx, pendingNotification("+00:00", domain.PriorityHigh), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == "" {
		t.Fatal("expected a non-empty id")
	}

	stored, ok := repo.Get(id)
	if !ok {
		t.Fatal("notification not persisted")
	}
	if stored.Status != domain.StatusPending {
		t.Fatalf("expected status=pending, got %s", stored.Status)
	}
	if pub.Attempts() != 0 {
		t.Fatal("create without force must not publish")
	}
}

func TestService_CreateRejectsInvalid(t *testing.T) {
	svc, _, _ := newService(t)

	n := pendingNotification("+00:00", domain.PriorityHigh)
	n.Channel = "sms"
	_, err := svc.Create(context.Background(), n, false)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

// Scenario: force-send publishes synchronously in the request path and the
// stored status reflects the outcome.
func TestService_CreateForceSendsSynchronously(t *testing.T) {
	svc, repo, pub := newService(t)
	ctx := context.Background()

	id, err := svc.Create(ctx, pendingNotification("+00:00", domain.PriorityHigh), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := repo.Get(id)
	if stored.Status != domain.StatusSent {
		t.Fatalf("expected status=sent, got %s", stored.Status)
	}
	msgs := pub.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].DedupKey != id {
		t.Fatalf("expected dedup key %s, got %s", id, msgs[0].DedupKey)
	}
}

func TestService_CreateForceFailureDoesNotRollBack(t *testing.T) {
	svc, repo, pub := newService(t)
	pub.FailAll = true

	id, err := svc.Create(context.Background(), pendingNotification("+00:00", domain.PriorityHigh), true)
	if err != nil {
		t.Fatalf("forced-send failure must not surface from Create: %v", err)
	}

	stored, ok := repo.Get(id)
	if !ok {
		t.Fatal("creation must not be rolled back")
	}
	if stored.Status != domain.StatusFailed {
		t.Fatalf("expected status=failed after exhausted attempts, got %s", stored.Status)
	}
}

// Scenario: happy path. One due high-priority notification, one tick, one
// bus message whose dedup key is the notification id, status sent.
func TestService_DispatchHappyPath(t *testing.T) {
	svc, repo, pub := newService(t)
	ctx := context.Background()

	id, _ := svc.Create(ctx, pendingNotification("+00:00", domain.PriorityHigh), false)

	if err := svc.Dispatch(ctx, domain.PriorityHigh, noon); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := repo.Get(id)
	if stored.Status != domain.StatusSent {
		t.Fatalf("expected status=sent, got %s", stored.Status)
	}

	msgs := pub.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Subject != "notifications_push.u1" {
		t.Fatalf("unexpected subject: %s", msgs[0].Subject)
	}
	if msgs[0].DedupKey != id {
		t.Fatalf("expected dedup key %s, got %s", id, msgs[0].DedupKey)
	}

	var sent domain.Notification
	if err := json.Unmarshal(msgs[0].Payload, &sent); err != nil {
		t.Fatalf("payload must be the serialized notification: %v", err)
	}
	if sent.ID != id || sent.Content != "hi" {
		t.Fatalf("payload round-trip mismatch: %+v", sent)
	}
}

// Scenario: quiet hours. Recipient-local hour 2 at the dispatch upper bound
// keeps the notification pending with no publish.
func TestService_DispatchRespectsQuietHours(t *testing.T) {
	svc, repo, pub := newService(t)
	ctx := context.Background()

	id, _ := svc.Create(ctx, pendingNotification("-10:00", domain.PriorityHigh), false)

	if err := svc.Dispatch(ctx, domain.PriorityHigh, noon); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := repo.Get(id)
	if stored.Status != domain.StatusPending {
		t.Fatalf("expected status=pending, got %s", stored.Status)
	}
	if pub.Attempts() != 0 {
		t.Fatal("no publish expected during recipient quiet hours")
	}
}

// Scenario: retry exhaustion. Three attempts with the same dedup key, then
// status failed; Dispatch still returns success.
func TestService_DispatchRetryExhaustion(t *testing.T) {
	svc, repo, pub := newService(t)
	pub.FailAll = true
	ctx := context.Background()

	id, _ := svc.Create(ctx, pendingNotification("+00:00", domain.PriorityHigh), false)

	if err := svc.Dispatch(ctx, domain.PriorityHigh, noon); err != nil {
		t.Fatalf("dispatch must settle successfully even when sends fail: %v", err)
	}

	if pub.Attempts() != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", pub.Attempts())
	}
	stored, _ := repo.Get(id)
	if stored.Status != domain.StatusFailed {
		t.Fatalf("expected status=failed, got %s", stored.Status)
	}
}

func TestService_SendRecoversOnSecondAttempt(t *testing.T) {
	svc, repo, pub := newService(t)
	pub.FailFirst = 1
	ctx := context.Background()

	id, _ := svc.Create(ctx, pendingNotification("+00:00", domain.PriorityHigh), false)

	if err := svc.Dispatch(ctx, domain.PriorityHigh, noon); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pub.Attempts() != 2 {
		t.Fatalf("expected 2 attempts, got %d", pub.Attempts())
	}
	stored, _ := repo.Get(id)
	if stored.Status != domain.StatusSent {
		t.Fatalf("expected status=sent, got %s", stored.Status)
	}
	if len(pub.Messages()) != 1 {
		t.Fatalf("expected a single delivered message, got %d", len(pub.Messages()))
	}
}

// Scenario: cancel beats dispatch. A cancelled notification is never
// selected by later ticks.
func TestService_CancelPreventsDispatch(t *testing.T) {
	svc, repo, pub := newService(t)
	ctx := context.Background()

	id, _ := svc.Create(ctx, pendingNotification("+00:00", domain.PriorityHigh), false)

	if err := svc.Cancel(ctx, id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored, _ := repo.Get(id)
	if stored.Status != domain.StatusCancelled {
		t.Fatalf("expected status=cancelled, got %s", stored.Status)
	}

	if err := svc.Dispatch(ctx, domain.PriorityHigh, noon); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pub.Attempts() != 0 {
		t.Fatal("cancelled notification must not be published")
	}
}

func TestService_CancelTerminalFails(t *testing.T) {
	svc, repo, _ := newService(t)
	ctx := context.Background()

	id, _ := svc.Create(ctx, pendingNotification("+00:00", domain.PriorityHigh), false)
	_ = repo.UpdateStatus(ctx, id, domain.StatusSent)

	if err := svc.Cancel(ctx, id); !errors.Is(err, domain.ErrRepository) {
		t.Fatalf("expected ErrRepository on terminal cancel, got %v", err)
	}
	if err := svc.Cancel(ctx, "unknown-id"); !errors.Is(err, domain.ErrRepository) {
		t.Fatalf("expected ErrRepository on unknown id, got %v", err)
	}
}

// Scenario: priority isolation. 20 due notifications per tier; each tier's
// first tick publishes exactly its batch limit from its own tier.
func TestService_DispatchBatchLimitAndPriorityIsolation(t *testing.T) {
	svc, _, pub := newService(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		n := pendingNotification("+00:00", domain.PriorityHigh)
		n.Recipient.ID = "hi-user"
		if _, err := svc.Create(ctx, n, false); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	for i := 0; i < 20; i++ {
		n := pendingNotification("+00:00", domain.PriorityLow)
		n.Recipient.ID = "lo-user"
		if _, err := svc.Create(ctx, n, false); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if err := svc.Dispatch(ctx, domain.PriorityHigh, noon); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	high := pub.Messages()
	if len(high) != 10 {
		t.Fatalf("expected 10 high-priority messages, got %d", len(high))
	}
	for _, msg := range high {
		if msg.Subject != "notifications_push.hi-user" {
			t.Fatalf("low-priority message leaked into high tick: %s", msg.Subject)
		}
	}

	if err := svc.Dispatch(ctx, domain.PriorityLow, noon); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(pub.Messages()); got != 20 {
		t.Fatalf("expected 10 more low-priority messages, got %d total", got)
	}
}

// Overlapping ticks within the broker dedup window must collapse to a
// single downstream delivery even when the status write failed and the
// notification was re-selected.
func TestService_DispatchOverlappingTicksDeduplicate(t *testing.T) {
	svc, repo, pub := newService(t)
	ctx := context.Background()

	id, _ := svc.Create(ctx, pendingNotification("+00:00", domain.PriorityHigh), false)

	// A failing terminal write leaves the notification pending, so the next
	// tick re-selects and re-publishes it.
	repo.UpdateStatusErr = errors.New("store hiccup")
	if err := svc.Dispatch(ctx, domain.PriorityHigh, noon); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	repo.UpdateStatusErr = nil
	if err := svc.Dispatch(ctx, domain.PriorityHigh, noon.Add(time.Second)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pub.Attempts() != 2 {
		t.Fatalf("expected 2 publishes, got %d", pub.Attempts())
	}
	msgs := pub.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 deduplicated delivery, got %d", len(msgs))
	}
	if msgs[0].DedupKey != id {
		t.Fatalf("expected dedup key %s, got %s", id, msgs[0].DedupKey)
	}
}

func TestService_DispatchSkipsUndecodableDocuments(t *testing.T) {
	svc, repo, pub := newService(t)
	ctx := context.Background()

	badID, _ := svc.Create(ctx, pendingNotification("+00:00", domain.PriorityHigh), false)
	goodID, _ := svc.Create(ctx, pendingNotification("+00:00", domain.PriorityHigh), false)
	repo.CorruptIDs[badID] = true

	if err := svc.Dispatch(ctx, domain.PriorityHigh, noon); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msgs := pub.Messages()
	if len(msgs) != 1 || msgs[0].DedupKey != goodID {
		t.Fatalf("expected only the decodable notification to publish, got %+v", msgs)
	}
}

func TestService_DispatchSurfacesFetchError(t *testing.T) {
	svc, repo, _ := newService(t)
	repo.FindErr = domain.ErrRepository

	err := svc.Dispatch(context.Background(), domain.PriorityHigh, noon)
	if !errors.Is(err, domain.ErrRepository) {
		t.Fatalf("expected fetch error to surface, got %v", err)
	}
}

func TestService_ListAll(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	ids := make(map[string]bool)
	for i := 0; i < 3; i++ {
		id, err := svc.Create(ctx, pendingNotification("+00:00", domain.PriorityLow), false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ids[id] = true
	}

	all, err := svc.ListAll(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(all))
	}
	for _, n := range all {
		if !ids[n.ID] {
			t.Fatalf("unexpected notification in list: %s", n.ID)
		}
	}
}

func TestService_HooksObserveOutcomes(t *testing.T) {
	repo := repository.NewMockNotificationRepository()
	pub := bus.NewMockPublisher()

	var published, failed int
	svc := NewService(repo, pub, zap.NewNop(), Options{RetryDelay: time.Millisecond}, Hooks{
		OnPublished: func(domain.Channel, time.Duration) { published++ },
		OnFailed:    func(domain.Channel) { failed++ },
	})
	ctx := context.Background()

	_, _ = svc.Create(ctx, pendingNotification("+00:00", domain.PriorityHigh), false)
	if err := svc.Dispatch(ctx, domain.PriorityHigh, noon); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pub.FailAll = true
	_, _ = svc.Create(ctx, pendingNotification("+00:00", domain.PriorityHigh), false)
	if err := svc.Dispatch(ctx, domain.PriorityHigh, noon); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if published != 1 || failed != 1 {
		t.Fatalf("expected 1 published / 1 failed, got %d / %d", published, failed)
	}
}
