package reminder

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Status holds the scheduler's view of its last run.
type Status struct {
	Running    bool
	LastRun    time.Time
	LastReport Report
	LastError  error
	Skipped    int
}

// Scheduler runs a Sweeper on a fixed interval. A tick that arrives while
// the previous sweep is still running is skipped, not queued.
type Scheduler struct {
	sweeper  *Sweeper
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	status  Status
	started bool
	stopped bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a Scheduler. Non-positive interval or timeout fall
// back to one minute and fifty seconds respectively.
func NewScheduler(sw *Sweeper, interval, timeout time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if timeout <= 0 {
		timeout = 50 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		sweeper:  sw,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the ticking goroutine. It returns immediately; the loop
// ends when ctx is cancelled or Stop is called. Start after Stop is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		// Align the first tick to the next minute boundary so each sweep
		// sees a fresh minute.
		delay := time.Until(s.now().Truncate(time.Minute).Add(time.Minute))
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-time.After(delay):
		}

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("reminder: scheduler started", "interval", s.interval.String())
		s.spawn(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.spawn(ctx)
			}
		}
	}()
}

// spawn runs a tick in its own goroutine so a slow sweep never delays
// the ticker; overlap is handled by Tick.
func (s *Scheduler) spawn(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Tick(ctx, s.now())
	}()
}

// Stop halts the loop and waits for any running sweep to finish. A
// stopped Scheduler cannot be restarted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
}

// Tick runs one sweep for now under the configured timeout. It reports
// false without sweeping when another sweep is still running.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (Report, bool) {
	s.mu.Lock()
	if s.status.Running {
		s.status.Skipped++
		s.mu.Unlock()
		s.logger.Warn("reminder: previous sweep still running, skipping tick",
			"minute", now.UTC().Truncate(time.Minute).Format(time.RFC3339))
		return Report{}, false
	}
	s.status.Running = true
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	report, err := s.sweeper.Sweep(ctx, now)
	if err != nil {
		s.logger.Error("reminder: sweep failed", "error", err)
	}

	s.mu.Lock()
	s.status.Running = false
	s.status.LastRun = now
	s.status.LastReport = report
	s.status.LastError = err
	s.mu.Unlock()

	return report, true
}

// Status returns a snapshot of the scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}
