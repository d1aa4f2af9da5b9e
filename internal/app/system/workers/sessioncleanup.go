// internal/app/system/workers/sessioncleanup.go
package workers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ExpiredSessionDeleter removes sessions past their expiry.
// sessions.MongoStore and sessions.MemoryStore implement it; Redis expires
// keys on its own.
type ExpiredSessionDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// SessionSweeper periodically deletes expired sessions.
type SessionSweeper struct {
	store    ExpiredSessionDeleter
	log      *zap.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSessionSweeper returns a sweeper that runs every interval.
func NewSessionSweeper(store ExpiredSessionDeleter, logger *zap.Logger, interval time.Duration) *SessionSweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &SessionSweeper{
		store:    store,
		log:      logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background loop.
func (w *SessionSweeper) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("session sweeper started", zap.Duration("interval", w.interval))
}

// Stop signals the loop to exit and waits for it. Safe to call twice.
func (w *SessionSweeper) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
	w.log.Info("session sweeper stopped")
}

func (w *SessionSweeper) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.Sweep()
		}
	}
}

// Sweep runs one deletion pass.
func (w *SessionSweeper) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	count, err := w.store.DeleteExpired(ctx)
	if err != nil {
		w.log.Error("failed to delete expired sessions", zap.Error(err))
		return
	}
	if count > 0 {
		w.log.Info("deleted expired sessions", zap.Int64("count", count))
	}
}
