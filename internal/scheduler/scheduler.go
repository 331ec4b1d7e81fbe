package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/airsense/indoor-comfort/internal/telemetry"
)

// Scheduler owns the two ingestion loops. Each loop has its own cadence;
// a slow or failing cycle never blocks the other loop or the next tick.
type Scheduler struct {
	scheduler       *gocron.Scheduler
	service         *telemetry.Service
	nodeInterval    time.Duration
	outdoorInterval time.Duration
}

// New creates a Scheduler pinned to loc for cadence alignment. Stored
// timestamps are normalized separately; loc only anchors the ticks.
func New(service *telemetry.Service, nodeInterval, outdoorInterval time.Duration, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		scheduler:       gocron.NewScheduler(loc),
		service:         service,
		nodeInterval:    nodeInterval,
		outdoorInterval: outdoorInterval,
	}
}

// Start schedules both periodic jobs and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(minutes(s.nodeInterval, 5)).Minutes().Do(func() {
		s.runCycle("node ingestion", s.service.IngestNodeReadings)
	}); err != nil {
		return err
	}

	if _, err := s.scheduler.Every(minutes(s.outdoorInterval, 10)).Minutes().Do(func() {
		s.runCycle("outdoor ingestion", s.service.IngestOutdoorReading)
	}); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// runCycle executes one cycle with a bounded context. Failures are logged
// and swallowed: no caller waits on a scheduled cycle.
func (s *Scheduler) runCycle(name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := fn(ctx); err != nil {
		log.Printf("scheduler: %s cycle failed: %v", name, err)
	}
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func minutes(d time.Duration, def int) int {
	m := int(d.Minutes())
	if m <= 0 {
		return def
	}
	return m
}
