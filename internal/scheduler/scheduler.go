package scheduler

import (
	"context"
	"log"
	"sync"
	"time"
)

type Job func(ctx context.Context)

// Scheduler runs registered jobs on fixed intervals. Implementations must
// run each job's ticks sequentially; a tick that panics is logged and the
// job keeps its schedule.
type Scheduler interface {
	RegisterPeriodic(name string, initialDelay, interval time.Duration, job Job)
	Start(ctx context.Context)
	Stop()
}

type entry struct {
	name         string
	initialDelay time.Duration
	interval     time.Duration
	job          Job
}

// Interval is the timer-backed Scheduler used in production. Register all
// jobs before Start.
type Interval struct {
	entries []entry
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewInterval() *Interval {
	return &Interval{}
}

func (s *Interval) RegisterPeriodic(name string, initialDelay, interval time.Duration, job Job) {
	s.entries = append(s.entries, entry{name: name, initialDelay: initialDelay, interval: interval, job: job})
}

func (s *Interval) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	for _, e := range s.entries {
		s.wg.Add(1)
		go s.run(ctx, e)
	}
}

func (s *Interval) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Interval) run(ctx context.Context, e entry) {
	defer s.wg.Done()

	if e.initialDelay > 0 {
		timer := time.NewTimer(e.initialDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	runJob(ctx, e)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runJob(ctx, e)
		}
	}
}

func runJob(ctx context.Context, e entry) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[scheduler] job %s panicked: %v", e.name, r)
		}
	}()
	start := time.Now()
	e.job(ctx)
	log.Printf("[scheduler] job %s finished in %s", e.name, time.Since(start).Round(time.Millisecond))
}
