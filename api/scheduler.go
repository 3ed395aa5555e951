/*
scheduler.go - Periodic directory reconciliation

PURPOSE:
  Other terminals and older clients write the ledger directly. The
  scheduler re-runs Directory.Sync on an interval so their orders reach
  the directory even when nobody opens the customers screen.

DESIGN:
  - Runs a background goroutine with configurable interval
  - Syncs once immediately on Start
  - Each run gets its own timeout; a failed run is logged and retried on
    the next tick

USAGE:
  scheduler := NewSyncScheduler(directory, logger)
  scheduler.Interval = cfg.SyncInterval
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: SyncCustomers endpoint (manual reconciliation)
  - loyalty/directory.go: Sync
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/streetmagic/pos-engine/loyalty"
)

// DefaultSyncInterval is used when Interval is not set.
const DefaultSyncInterval = 5 * time.Minute

// SyncScheduler handles automated directory reconciliation.
type SyncScheduler struct {
	Directory *loyalty.Directory
	Interval  time.Duration
	Timeout   time.Duration
	Enabled   bool

	log     *zap.Logger
	ticker  *time.Ticker
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	lastRun time.Time
	lastErr error
}

// NewSyncScheduler creates a new scheduler.
func NewSyncScheduler(dir *loyalty.Directory, log *zap.Logger) *SyncScheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &SyncScheduler{
		Directory: dir,
		Interval:  DefaultSyncInterval,
		Timeout:   30 * time.Second,
		Enabled:   true,
		log:       log.Named("scheduler"),
	}
}

// Start begins the scheduler.
func (s *SyncScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.log.Info("scheduler disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}
	if s.Interval <= 0 {
		s.Interval = DefaultSyncInterval
	}

	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run(s.ticker, s.stop)

	s.log.Info("scheduler started", zap.Duration("interval", s.Interval))
}

// Stop stops the scheduler and waits for a running sync to finish.
func (s *SyncScheduler) Stop() {
	s.mu.Lock()
	ticker, stop := s.ticker, s.stop
	s.ticker, s.stop = nil, nil
	s.mu.Unlock()

	if ticker == nil {
		return
	}
	ticker.Stop()
	close(stop)
	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

func (s *SyncScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	// Run immediately on start
	s.RunNow(context.Background())

	for {
		select {
		case <-ticker.C:
			s.RunNow(context.Background())
		case <-stop:
			return
		}
	}
}

// RunNow reconciles immediately and returns the sync error, if any.
func (s *SyncScheduler) RunNow(ctx context.Context) error {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	start := time.Now()
	customers, err := s.Directory.Sync(ctx)

	s.mu.Lock()
	s.lastRun, s.lastErr = start, err
	s.mu.Unlock()

	if err != nil {
		s.log.Error("scheduled sync failed", zap.Error(err))
		return err
	}
	s.log.Debug("scheduled sync completed",
		zap.Int("customers", len(customers)),
		zap.Duration("took", time.Since(start)))
	return nil
}

// LastRun returns when the last sync started and its error.
func (s *SyncScheduler) LastRun() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastErr
}

// NextRunTime returns when the next scheduled sync will occur.
func (s *SyncScheduler) NextRunTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRun.IsZero() {
		return time.Now()
	}
	return s.lastRun.Add(s.Interval)
}
