// services/scheduler.go
package services

import (
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// SchedulerConfig pins the nightly close to a wall-clock time in the
// deployment's timezone; the hourly tick is a fixed interval.
type SchedulerConfig struct {
	CloseHour   int
	CloseMinute int
	Location    *time.Location
}

// CompetitionScheduler owns the two timers that drive the lifecycle engine.
// Both tick bodies are ordinary methods, so tests and ops tooling can invoke
// them directly; every underlying engine operation is idempotent or fenced,
// which keeps overlapping timer firings and manual calls safe.
type CompetitionScheduler struct {
	Engine *CompetitionEngine
	Config SchedulerConfig

	sched gocron.Scheduler
}

func NewCompetitionScheduler(engine *CompetitionEngine, cfg SchedulerConfig) *CompetitionScheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &CompetitionScheduler{Engine: engine, Config: cfg}
}

// RunNightlyTick closes the finished day and opens tomorrow. The two steps are
// error-isolated: a payout failure is logged and must not stop tomorrow's
// competition from being created.
func (cs *CompetitionScheduler) RunNightlyTick() {
	if _, err := cs.Engine.EndCompetitionAndSelectWinners(); err != nil {
		log.Printf("[Scheduler] Nightly close failed: %v", err)
	}
	if _, err := cs.Engine.CreateTomorrowCompetition(); err != nil {
		log.Printf("[Scheduler] Failed to create tomorrow's competition: %v", err)
	}
}

// RunHourlyTick promotes due competitions and retroactively creates today's
// competition if the nightly creation never happened.
func (cs *CompetitionScheduler) RunHourlyTick() {
	if err := cs.Engine.UpdateCompetitionStatuses(); err != nil {
		log.Printf("[Scheduler] Status promotion failed: %v", err)
	}
	if _, err := cs.Engine.CreateDailyCompetition(); err != nil {
		log.Printf("[Scheduler] Failed to ensure today's competition: %v", err)
	}
}

// Start registers both timers and begins firing them. Call Stop on shutdown.
func (cs *CompetitionScheduler) Start() error {
	sched, err := gocron.NewScheduler(gocron.WithLocation(cs.Config.Location))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	cs.sched = sched

	_, err = sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(
			gocron.NewAtTime(uint(cs.Config.CloseHour), uint(cs.Config.CloseMinute), 0),
		)),
		gocron.NewTask(cs.RunNightlyTick),
	)
	if err != nil {
		return fmt.Errorf("failed to register nightly job: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(cs.RunHourlyTick),
	)
	if err != nil {
		return fmt.Errorf("failed to register hourly job: %w", err)
	}

	sched.Start()
	log.Printf("[Scheduler] Running: nightly close at %02d:%02d %s, hourly status tick",
		cs.Config.CloseHour, cs.Config.CloseMinute, cs.Config.Location)
	return nil
}

// Stop shuts the timers down and waits for in-flight ticks.
func (cs *CompetitionScheduler) Stop() {
	if cs.sched != nil {
		if err := cs.sched.Shutdown(); err != nil {
			log.Printf("[Scheduler] Shutdown error: %v", err)
		}
	}
}
