package scheduler

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"
)

// Pinger is the part of the data store the health check needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Status is the outcome of the latest check.
type Status struct {
	Healthy   bool      `json:"healthy"`
	CheckedAt time.Time `json:"checked_at"`
	Error     string    `json:"error,omitempty"`
}

// Scheduler periodically pings the data store and keeps the last result.
type Scheduler struct {
	scheduler *gocron.Scheduler
	store     Pinger
	interval  time.Duration
	timeout   time.Duration
	status    atomic.Pointer[Status]
	now       func() time.Time
}

// New creates a new Scheduler.
func New(store Pinger, interval, timeout time.Duration) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Scheduler{
		scheduler: s,
		store:     store,
		interval:  interval,
		timeout:   timeout,
		now:       time.Now,
	}
}

// Start schedules the check and starts the underlying scheduler. The first
// check runs immediately.
func (s *Scheduler) Start() error {
	seconds := int(s.interval.Seconds())
	if seconds <= 0 {
		seconds = 60
	}

	_, err := s.scheduler.Every(seconds).Seconds().Do(s.check)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// Status returns the latest check result. Before the first check it
// reports unhealthy with a zero CheckedAt.
func (s *Scheduler) Status() Status {
	if st := s.status.Load(); st != nil {
		return *st
	}
	return Status{}
}

func (s *Scheduler) check() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	st := Status{Healthy: true, CheckedAt: s.now().UTC()}
	if err := s.store.Ping(ctx); err != nil {
		st.Healthy = false
		st.Error = err.Error()
		log.Printf("ERROR: scheduler: data store health check failed: %v", err)
	}

	if prev := s.status.Swap(&st); prev != nil && prev.Healthy != st.Healthy && st.Healthy {
		log.Println("INFO: scheduler: data store is healthy again")
	}
}
