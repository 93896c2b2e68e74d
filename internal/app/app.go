package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/akile-checkin/internal/common"
	"github.com/ternarybob/akile-checkin/internal/interfaces"
	"github.com/ternarybob/akile-checkin/internal/models"
	"github.com/ternarybob/akile-checkin/internal/services/auth"
	"github.com/ternarybob/akile-checkin/internal/services/browser"
	"github.com/ternarybob/akile-checkin/internal/services/checkin"
	"github.com/ternarybob/akile-checkin/internal/services/scheduler"
	"github.com/ternarybob/akile-checkin/internal/storage"
	"github.com/ternarybob/arbor"
)

// DailyJobName is the scheduler entry the check-in is registered under
const DailyJobName = "daily-checkin"

// App holds all application components and dependencies
type App struct {
	Config     *common.Config
	Logger     arbor.ILogger
	Credential models.Credential

	StorageManager interfaces.StorageManager

	AuthService      *auth.Service
	Driver           interfaces.SessionDriver
	CheckinService   *checkin.Service
	SchedulerService *scheduler.Service

	schedulerOpts []scheduler.Option
}

// Option customises how the App is assembled
type Option func(*App)

// WithDriver replaces the configured browser engine
func WithDriver(driver interfaces.SessionDriver) Option {
	return func(a *App) {
		a.Driver = driver
	}
}

// WithSchedulerOptions passes options through to the scheduler
func WithSchedulerOptions(opts ...scheduler.Option) Option {
	return func(a *App) {
		a.schedulerOpts = append(a.schedulerOpts, opts...)
	}
}

// New initializes the application with all dependencies.
// A missing credential is returned as models.ErrMissingCredential before anything is launched.
func New(cfg *common.Config, logger arbor.ILogger, opts ...Option) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}
	for _, opt := range opts {
		opt(app)
	}

	app.AuthService = auth.NewService(logger)
	credential, err := app.AuthService.LoadCredential(cfg.Credential)
	if err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}
	app.Credential = credential

	app.initDatabase()

	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	logger.Debug().
		Str("engine", app.Driver.Name()).
		Str("schedule", cfg.Scheduler.At).
		Bool("once", cfg.Scheduler.Once).
		Bool("history", app.StorageManager != nil).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase opens the history store. History is optional; failures only disable it.
func (a *App) initDatabase() {
	storageManager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		if errors.Is(err, storage.ErrStorageDisabled) {
			a.Logger.Debug().Msg("Check-in history disabled")
		} else {
			a.Logger.Warn().Err(err).Str("path", a.Config.Storage.Badger.Path).Msg("Failed to open history store, continuing without history")
		}
		return
	}
	a.StorageManager = storageManager
}

func (a *App) initServices() error {
	if a.Driver == nil {
		driver, err := browser.NewDriver(browser.OptionsFromConfig(a.Config), a.Logger)
		if err != nil {
			return err
		}
		a.Driver = driver
	}

	var history interfaces.HistoryStorage
	if a.StorageManager != nil {
		history = a.StorageManager.HistoryStorage()
	}

	a.CheckinService = checkin.NewService(
		a.Driver,
		history,
		a.Credential,
		a.Config.Checkin.AlreadyCheckedInPhrase,
		a.Logger,
	)

	schedulerOpts := append([]scheduler.Option{
		scheduler.WithPollInterval(a.Config.Scheduler.PollIntervalDuration()),
	}, a.schedulerOpts...)
	a.SchedulerService = scheduler.NewService(a.Logger, schedulerOpts...)

	return nil
}

// Run executes a single check-in (once mode) or arms the daily schedule and polls until ctx is cancelled.
// Only session launch failures are returned; check-in failures are logged.
func (a *App) Run(ctx context.Context) error {
	if a.Config.Scheduler.Once {
		_, err := a.CheckinService.RunOnce(ctx, models.TriggerOnce)
		return err
	}

	if a.Config.Browser.FreshSessionPerCheckin {
		return a.runWithFreshSessions(ctx)
	}
	return a.runWithSharedSession(ctx)
}

// runWithSharedSession keeps one browser open for the life of the process
func (a *App) runWithSharedSession(ctx context.Context) error {
	session, err := a.CheckinService.OpenSession(ctx)
	if err != nil {
		return err
	}
	defer a.CheckinService.CloseSession(session)

	a.CheckinService.ReportUserInfo(ctx, session)

	handler := func(ctx context.Context) error {
		return resultError(a.CheckinService.Checkin(ctx, session, models.TriggerSchedule))
	}
	if err := a.arm(handler); err != nil {
		return err
	}

	if a.Config.Scheduler.RunOnStartup {
		a.CheckinService.Checkin(ctx, session, models.TriggerStartup)
	}

	return a.loop(ctx)
}

// runWithFreshSessions launches a new browser for every check-in
func (a *App) runWithFreshSessions(ctx context.Context) error {
	handler := func(ctx context.Context) error {
		report, err := a.CheckinService.RunOnce(ctx, models.TriggerSchedule)
		if err != nil {
			return err
		}
		return resultError(report.Result)
	}
	if err := a.arm(handler); err != nil {
		return err
	}

	if a.Config.Scheduler.RunOnStartup {
		if _, err := a.CheckinService.RunOnce(ctx, models.TriggerStartup); err != nil {
			return err
		}
	}

	return a.loop(ctx)
}

func (a *App) arm(handler interfaces.JobHandler) error {
	if err := a.SchedulerService.RegisterDaily(DailyJobName, a.Config.Scheduler.At, handler); err != nil {
		return fmt.Errorf("failed to register daily check-in: %w", err)
	}
	return nil
}

func (a *App) loop(ctx context.Context) error {
	if status, err := a.SchedulerService.GetJobStatus(DailyJobName); err == nil {
		a.Logger.Info().
			Str("at", status.At).
			Str("next_run", status.NextRun.Format("2006-01-02 15:04:05")).
			Msg("Daily check-in scheduled, press Ctrl+C to stop")
	}
	return a.SchedulerService.Run(ctx)
}

// resultError turns a failed check-in into a scheduler job error
func resultError(result models.CheckinResult) error {
	if result.Success {
		return nil
	}
	return fmt.Errorf("check-in failed (status %d): %s", result.StatusCode, result.Message)
}

// Close releases storage. Browser sessions are closed by Run.
func (a *App) Close() error {
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.StorageManager = nil
		a.Logger.Debug().Msg("Storage closed")
	}
	return nil
}
