package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/notification-dispatcher/internal/domain"
)

// Dispatcher is the engine entry point a tier loop drives on every tick.
type Dispatcher interface {
	Dispatch(ctx context.Context, priority domain.Priority, now time.Time) error
}

// TierLoop is one independent periodic dispatch loop for a priority tier.
// Ticks come from a fixed-interval ticker: a dispatch outlasting the period
// delays the next tick until it completes, and at most one tick queues up.
type TierLoop struct {
	dispatcher Dispatcher
	priority   domain.Priority
	interval   time.Duration
	logger     *zap.Logger
}

func NewTierLoop(dispatcher Dispatcher, priority domain.Priority, interval time.Duration, logger *zap.Logger) *TierLoop {
	return &TierLoop{
		dispatcher: dispatcher,
		priority:   priority,
		interval:   interval,
		logger:     logger,
	}
}

// Run blocks until ctx is cancelled, invoking one dispatch per tick with the
// tick's captured UTC instant. Dispatch errors are logged; the loop never
// terminates on error.
func (l *TierLoop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.logger.Info("tier loop started",
		zap.String("priority", string(l.priority)),
		zap.Duration("interval", l.interval))

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("tier loop stopping", zap.String("priority", string(l.priority)))
			return
		case <-ticker.C:
			now := time.Now().UTC()
			if err := l.dispatcher.Dispatch(ctx, l.priority, now); err != nil {
				l.logger.Error("dispatch tick error",
					zap.String("priority", string(l.priority)),
					zap.Error(err))
			}
		}
	}
}

// Scheduler owns the two tier loops: high every second, low every five by
// default. The tiers are fully independent; neither waits on the other.
type Scheduler struct {
	loops []*TierLoop
	wg    sync.WaitGroup
}

func New(dispatcher Dispatcher, highInterval, lowInterval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		loops: []*TierLoop{
			NewTierLoop(dispatcher, domain.PriorityHigh, highInterval, logger),
			NewTierLoop(dispatcher, domain.PriorityLow, lowInterval, logger),
		},
	}
}

// Start launches every tier loop as a goroutine. Cancelling ctx triggers a
// graceful stop of all loops.
func (s *Scheduler) Start(ctx context.Context) {
	for _, l := range s.loops {
		s.wg.Add(1)
		go func(l *TierLoop) {
			defer s.wg.Done()
			l.Run(ctx)
		}(l)
	}
}

// Wait blocks until every loop has drained its in-flight dispatch and
// returned. Call after cancelling the start context.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
