package session

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSweepSchedule runs the eviction sweep once a minute.
const DefaultSweepSchedule = "@every 1m"

// Janitor periodically evicts idle sessions.
type Janitor struct {
	cron    *cron.Cron
	store   *Store
	onEvict func(n int)
}

// NewJanitor schedules Store.Sweep using a cron expression or descriptor.
func NewJanitor(store *Store, schedule string, onEvict func(n int)) (*Janitor, error) {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}

	j := &Janitor{
		cron:    cron.New(),
		store:   store,
		onEvict: onEvict,
	}
	if _, err := j.cron.AddFunc(schedule, j.RunOnce); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return j, nil
}

// RunOnce performs a single sweep.
func (j *Janitor) RunOnce() {
	n := j.store.Sweep(time.Now())
	if n == 0 {
		return
	}
	log.Printf("[session] evicted %d idle sessions", n)
	if j.onEvict != nil {
		j.onEvict(n)
	}
}

// Start launches the scheduler in its own goroutine.
func (j *Janitor) Start() {
	j.cron.Start()
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (j *Janitor) Stop(ctx context.Context) {
	select {
	case <-j.cron.Stop().Done():
	case <-ctx.Done():
	}
}
