package app

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// RoundScheduler sweeps live sessions on an interval: rounds whose scheduled
// start has passed get activated, and sessions whose content has gone stale
// get resynced from the event repository.
type RoundScheduler struct {
	service   *CompetitionService
	interval  time.Duration
	staleness time.Duration
	scheduler gocron.Scheduler
}

func NewRoundScheduler(service *CompetitionService, interval, staleness time.Duration) *RoundScheduler {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &RoundScheduler{service: service, interval: interval, staleness: staleness}
}

// Start launches the sweep job. Call Shutdown to stop it.
func (rs *RoundScheduler) Start() error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	if _, err := scheduler.NewJob(gocron.DurationJob(rs.interval), gocron.NewTask(rs.Sweep)); err != nil {
		_ = scheduler.Shutdown()
		return err
	}
	rs.scheduler = scheduler
	scheduler.Start()
	return nil
}

// Sweep runs one pass over all live sessions. It is exposed so tests and the
// scheduler job share the same path.
func (rs *RoundScheduler) Sweep() {
	now := time.Now()
	for _, round := range rs.service.ActivateDueRounds(now) {
		log.Printf("activated scheduled round %s (%s) for event %s", round.ID, round.Name, round.EventID)
	}
	if rs.staleness <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, session := range rs.service.sessions.All() {
		if !session.StaleFor(rs.staleness) {
			continue
		}
		if err := rs.service.Resync(ctx, session.ID()); err != nil {
			log.Printf("resync event %s: %v", session.ID(), err)
		}
	}
}

// Shutdown stops the sweep job and waits for a running pass to finish.
func (rs *RoundScheduler) Shutdown() error {
	if rs.scheduler == nil {
		return nil
	}
	return rs.scheduler.Shutdown()
}
