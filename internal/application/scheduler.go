package application

import (
	"context"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"
)

const DefaultRunTimeout = 30 * time.Second

// Job is recurring work identified by Name.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

type scheduledJob struct {
	job    Job
	cancel context.CancelFunc
	done   chan struct{}
}

type SchedulerConfig struct {
	Jitter     float64
	RunTimeout time.Duration
}

// Scheduler runs jobs on jittered timers. Registering a name that already
// exists replaces the previous job, so registration is safe to repeat.
type Scheduler struct {
	mu         sync.Mutex
	jobs       map[string]*scheduledJob
	ctx        context.Context
	jitter     float64
	runTimeout time.Duration
	rng        *rand.Rand
	rngMu      sync.Mutex
	logger     *slog.Logger
}

func NewScheduler(config SchedulerConfig, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = DefaultRunTimeout
	}
	return &Scheduler{
		jobs:       map[string]*scheduledJob{},
		jitter:     clampJitterRatio(config.Jitter),
		runTimeout: config.RunTimeout,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:     logger,
	}
}

func (s *Scheduler) Register(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.jobs[job.Name]; ok {
		s.stopLocked(existing)
	}
	entry := &scheduledJob{job: job}
	s.jobs[job.Name] = entry
	if s.ctx != nil {
		s.startLocked(entry)
	}
}

func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run starts every registered job and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	for _, entry := range s.jobs {
		s.startLocked(entry)
	}
	s.mu.Unlock()

	<-ctx.Done()

	s.mu.Lock()
	for _, entry := range s.jobs {
		s.stopLocked(entry)
	}
	s.ctx = nil
	s.mu.Unlock()
	return nil
}

func (s *Scheduler) startLocked(entry *scheduledJob) {
	ctx, cancel := context.WithCancel(s.ctx)
	entry.cancel = cancel
	entry.done = make(chan struct{})
	go s.loop(ctx, entry.job, entry.done)
}

func (s *Scheduler) stopLocked(entry *scheduledJob) {
	if entry.cancel == nil {
		return
	}
	entry.cancel()
	<-entry.done
	entry.cancel = nil
}

func (s *Scheduler) loop(ctx context.Context, job Job, done chan struct{}) {
	defer close(done)
	if job.Interval <= 0 {
		return
	}

	timer := time.NewTimer(s.nextInterval(job.Interval))
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.runOnce(ctx, job)
			timer.Reset(s.nextInterval(job.Interval))
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, job Job) {
	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()
	if err := job.Run(runCtx); err != nil && ctx.Err() == nil {
		s.logger.Warn("scheduled job failed", "job", job.Name, "error", err)
	}
}

func (s *Scheduler) nextInterval(base time.Duration) time.Duration {
	s.rngMu.Lock()
	sample := s.rng.Float64()
	s.rngMu.Unlock()
	return jitteredIntervalWithSample(base, s.jitter, sample)
}

func jitteredIntervalWithSample(base time.Duration, jitterRatio, sample float64) time.Duration {
	if base <= 0 {
		return 0
	}
	jitterRatio = clampJitterRatio(jitterRatio)
	if jitterRatio == 0 {
		return base
	}
	if sample < 0 {
		sample = 0
	} else if sample > 1 {
		sample = 1
	}
	factor := 1 + ((sample*2)-1)*jitterRatio
	if factor < 0 {
		factor = 0
	}
	interval := time.Duration(float64(base) * factor)
	if interval <= 0 {
		return time.Millisecond
	}
	return interval
}

func clampJitterRatio(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
