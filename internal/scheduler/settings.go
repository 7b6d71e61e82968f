package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"chama-connect/internal/database"
	"chama-connect/internal/models"
)

type ScheduleStore interface {
	LoadSettingsSchedule(ctx context.Context) (*database.SettingsSchedule, error)
	ClearSettingsSchedule(ctx context.Context) error
}

// SettingsUpdater applies a settings change. The raffle service satisfies it.
type SettingsUpdater interface {
	UpdateSettings(ctx context.Context, winnersPerPeriod int, active bool, updatedBy string) (*models.RaffleSettings, error)
}

// SettingsRunner applies a pending settings schedule once it is due.
type SettingsRunner struct {
	store   ScheduleStore
	updater SettingsUpdater
	spec    string
	logger  *slog.Logger
	now     func() time.Time
	cron    *cron.Cron
}

func NewSettingsRunner(store ScheduleStore, updater SettingsUpdater, spec string, logger *slog.Logger) *SettingsRunner {
	return &SettingsRunner{
		store:   store,
		updater: updater,
		spec:    spec,
		logger:  logger,
		now:     time.Now,
		cron:    cron.New(),
	}
}

func (r *SettingsRunner) Start(ctx context.Context) error {
	if _, err := r.cron.AddFunc(r.spec, func() { r.check(ctx) }); err != nil {
		return err
	}
	r.cron.Start()
	go func() {
		<-ctx.Done()
		r.cron.Stop()
	}()
	return nil
}

// Stop halts the cron loop and waits for a running check to finish.
func (r *SettingsRunner) Stop() {
	<-r.cron.Stop().Done()
}

func (r *SettingsRunner) check(ctx context.Context) {
	schedule, err := r.store.LoadSettingsSchedule(ctx)
	if err != nil {
		r.logger.Warn("failed to load settings schedule", "error", err)
		return
	}
	if schedule == nil || r.now().Before(schedule.ApplyAt) {
		return
	}
	author := schedule.Author
	if author == "" {
		author = "scheduler"
	}
	if _, err := r.updater.UpdateSettings(ctx, schedule.WinnersPerPeriod, schedule.Active, author); err != nil {
		r.logger.Error("failed to apply settings schedule", "error", err)
		return
	}
	if err := r.store.ClearSettingsSchedule(ctx); err != nil {
		r.logger.Warn("failed to clear settings schedule", "error", err)
	}
	r.logger.Info("settings schedule applied", "winnersPerPeriod", schedule.WinnersPerPeriod,
		"active", schedule.Active, "author", author, "message", schedule.Message)
}
