/*
scheduler.go - Daily probation sweep scheduler

PURPOSE:
  Periodically runs the probation sweep: finds every employment whose
  probation end date has passed without a completed transition and
  processes it. Records each run for audit and UI display.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - The sweep itself is restart-safe; running it more often than daily
    only re-lists employments that are still due
  - Per-employment failures never abort a run

CONFIGURATION:
  - CheckInterval: How often to sweep (default: 24 hours)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewSweepScheduler(store, handler.Processor)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerSweep endpoint (manual sweep)
  - funding/transition.go: The sweep and transition logic
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warp/funding-engine/funding"
	"github.com/warp/funding-engine/store/sqlite"
)

// SweepScheduler runs the daily probation sweep in the background.
type SweepScheduler struct {
	Store         *sqlite.Store
	Processor     *funding.Processor
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSweepScheduler creates a new scheduler.
func NewSweepScheduler(store *sqlite.Store, processor *funding.Processor) *SweepScheduler {
	return &SweepScheduler{
		Store:         store,
		Processor:     processor,
		CheckInterval: 24 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (ss *SweepScheduler) Start() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if !ss.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	ss.ticker = time.NewTicker(ss.CheckInterval)
	ss.wg.Add(1)

	go ss.run()

	log.Printf("[Scheduler] Started with sweep interval: %v", ss.CheckInterval)
}

// Stop stops the scheduler.
func (ss *SweepScheduler) Stop() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if ss.ticker != nil {
		ss.ticker.Stop()
		close(ss.stop)
		ss.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (ss *SweepScheduler) run() {
	defer ss.wg.Done()

	// Sweep immediately on start to catch anything missed while down
	ss.sweep()

	for {
		select {
		case <-ss.ticker.C:
			ss.sweep()
		case <-ss.stop:
			return
		}
	}
}

func (ss *SweepScheduler) sweep() {
	ctx := context.Background()

	run, summary, err := RunSweep(ctx, ss.Store, ss.Processor)
	if err != nil {
		log.Printf("[Scheduler] Sweep failed: %v", err)
		return
	}

	if summary.Processed > 0 || len(summary.Failed) > 0 {
		log.Printf("[Scheduler] Sweep %s completed: %d processed, %d failed",
			run.ID, summary.Processed, len(summary.Failed))
	}
}

// RunNow triggers an immediate sweep (for testing/admin).
func (ss *SweepScheduler) RunNow() {
	ss.sweep()
}

// GetNextRunTime returns when the next scheduled sweep will occur.
func (ss *SweepScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(ss.CheckInterval)
}

// RunSweep executes one probation sweep and persists the run record. Shared
// by the scheduler and the manual admin trigger.
func RunSweep(ctx context.Context, store *sqlite.Store, processor *funding.Processor) (*sqlite.SweepRun, *funding.SweepSummary, error) {
	startTime := time.Now().UTC()

	run := sqlite.SweepRun{
		ID:        uuid.NewString(),
		SweptAt:   startTime,
		Status:    "running",
		StartedAt: &startTime,
		CreatedAt: startTime,
	}
	if err := store.SaveSweepRun(ctx, run); err != nil {
		return nil, nil, err
	}

	summary, err := processor.RunDailySweep(ctx)
	if err != nil {
		run.Status = "failed"
		run.Error = err.Error()
		store.SaveSweepRun(ctx, run)
		return nil, nil, err
	}

	completed := time.Now().UTC()
	run.Status = "completed"
	run.Processed = summary.Processed
	run.Failed = len(summary.Failed)
	run.CompletedAt = &completed
	if len(summary.Failed) > 0 {
		run.Error = summary.Failed[0].Err
	}

	if err := store.SaveSweepRun(ctx, run); err != nil {
		return nil, nil, err
	}

	return &run, summary, nil
}
