package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/notification-dispatcher/internal/domain"
)

// fakeDispatcher records every tick per priority.
type fakeDispatcher struct {
	mu    sync.Mutex
	ticks map[domain.Priority][]time.Time
	err   error
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{ticks: make(map[domain.Priority][]time.Time)}
}

func (f *fakeDispatcher) Dispatch(_ context.Context, priority domain.Priority, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticks[priority] = append(f.ticks[priority], now)
	return f.err
}

func (f *fakeDispatcher) count(priority domain.Priority) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ticks[priority])
}

func TestScheduler_TiersTickIndependently(t *testing.T) {
	fake := newFakeDispatcher()
	s := New(fake, 10*time.Millisecond, 35*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	time.Sleep(100 * time.Millisecond)
	cancel()
	s.Wait()

	high, low := fake.count(domain.PriorityHigh), fake.count(domain.PriorityLow)
	if high == 0 || low == 0 {
		t.Fatalf("expected both tiers to tick, got high=%d low=%d", high, low)
	}
	if high <= low {
		t.Fatalf("expected the high tier to tick more often, got high=%d low=%d", high, low)
	}
}

func TestScheduler_CapturesUTCNow(t *testing.T) {
	fake := newFakeDispatcher()
	s := New(fake, 10*time.Millisecond, time.Minute, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	time.Sleep(30 * time.Millisecond)
	cancel()
	s.Wait()

	fake.mu.Lock()
	defer fake.mu.Unlock()
	for _, ts := range fake.ticks[domain.PriorityHigh] {
		if ts.Location() != time.UTC {
			t.Fatalf("expected UTC tick instant, got %v", ts.Location())
		}
	}
}

func TestScheduler_SurvivesDispatchErrors(t *testing.T) {
	fake := newFakeDispatcher()
	fake.err = errors.New("backend down")
	s := New(fake, 10*time.Millisecond, time.Minute, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	time.Sleep(55 * time.Millisecond)
	cancel()
	s.Wait()

	if fake.count(domain.PriorityHigh) < 2 {
		t.Fatalf("expected the loop to keep ticking through errors, got %d ticks",
			fake.count(domain.PriorityHigh))
	}
}

func TestScheduler_StopsOnCancel(t *testing.T) {
	fake := newFakeDispatcher()
	s := New(fake, 5*time.Millisecond, 5*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	time.Sleep(20 * time.Millisecond)
	cancel()
	s.Wait()

	settled := fake.count(domain.PriorityHigh) + fake.count(domain.PriorityLow)
	time.Sleep(25 * time.Millisecond)
	after := fake.count(domain.PriorityHigh) + fake.count(domain.PriorityLow)

	if after != settled {
		t.Fatalf("expected no ticks after cancellation, got %d new", after-settled)
	}
}
