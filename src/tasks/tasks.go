package tasks

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jasonlvhit/gocron"
)

// Scheduler runs jobs on a fixed interval until stopped.
type Scheduler struct {
	cron *gocron.Scheduler

	mu       sync.Mutex
	stopCron chan bool
	done     chan struct{}
	stopOnce sync.Once
}

// NewScheduler creates an idle scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{cron: gocron.NewScheduler(), done: make(chan struct{})}
}

// Every schedules job to run each interval. Intervals are rounded to whole seconds.
func (s *Scheduler) Every(interval time.Duration, name string, job func()) error {
	secs := uint64(interval.Round(time.Second) / time.Second)
	if secs == 0 {
		return fmt.Errorf("interval %v is shorter than a second", interval)
	}
	wrapped := func() {
		log.Printf("tasks: running %s", name)
		job()
	}
	s.cron.Every(secs).Seconds().Do(wrapped)
	log.Printf("tasks: %s scheduled every %v", name, time.Duration(secs)*time.Second)
	return nil
}

// Start runs the scheduler and blocks until Stop is called.
func (s *Scheduler) Start() {
	s.mu.Lock()
	select {
	case <-s.done:
		s.mu.Unlock()
		return
	default:
	}
	s.stopCron = s.cron.Start()
	s.mu.Unlock()
	<-s.done
	log.Print("tasks: scheduler stopped")
}

// Stop ends a running scheduler and clears its jobs.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.cron.Clear()
		s.mu.Lock()
		if s.stopCron != nil {
			s.stopCron <- true
		}
		s.mu.Unlock()
		close(s.done)
	})
}
