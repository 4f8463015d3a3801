package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	// HoursPerDay is used for daily task scheduling calculations.
	HoursPerDay = 24
	// defaultDailyGracePeriod is 20 hours - prevents duplicate runs within the same day.
	defaultDailyGracePeriod = 20 * time.Hour
)

// DailyTask represents a task that runs once per day at a specific UTC hour.
type DailyTask struct {
	// Name identifies the task for logging.
	Name string

	// Hour is the UTC hour of the day to run (0-23, default: 0).
	Hour int

	// GracePeriod prevents duplicate runs within this duration (default: 20 hours).
	// Task won't run if less than this duration has passed since last run.
	GracePeriod time.Duration

	// IsEnabled returns whether the task is currently enabled.
	// If nil, task is always enabled.
	IsEnabled func(ctx context.Context) bool

	// Run executes the task.
	Run func(ctx context.Context, logger *zerolog.Logger) error

	// OnError is called when Run returns an error.
	// If nil, errors are only logged.
	OnError func(err error)

	// lastRun tracks when the task last executed successfully.
	lastRun time.Time
}

// DailyScheduler manages a collection of daily tasks.
type DailyScheduler struct {
	tasks  []*DailyTask
	logger *zerolog.Logger
}

// NewDailyScheduler creates a new daily task scheduler.
func NewDailyScheduler(logger *zerolog.Logger) *DailyScheduler {
	return &DailyScheduler{
		tasks:  make([]*DailyTask, 0),
		logger: logger,
	}
}

// AddTask adds a task to the scheduler.
func (ds *DailyScheduler) AddTask(task *DailyTask) {
	if task.GracePeriod == 0 {
		task.GracePeriod = defaultDailyGracePeriod
	}

	ds.tasks = append(ds.tasks, task)
}

// CheckAndRun checks all tasks and runs any that are due.
// Call this from your main scheduler loop.
func (ds *DailyScheduler) CheckAndRun(ctx context.Context) {
	for _, task := range ds.tasks {
		ds.checkAndRunTask(ctx, task)
	}
}

// checkAndRunTask checks if a single task should run and executes it if so.
func (ds *DailyScheduler) checkAndRunTask(ctx context.Context, task *DailyTask) {
	// Check if enabled
	if task.IsEnabled != nil && !task.IsEnabled(ctx) {
		return
	}

	now := time.Now().UTC()

	// Check if it's the right hour
	if now.Hour() != task.Hour {
		return
	}

	// Check grace period (not run today)
	if !task.lastRun.IsZero() && now.Sub(task.lastRun) <= task.GracePeriod {
		return
	}

	// Run the task
	logger := ds.logger.With().Str(logFieldTask, task.Name).Logger()
	logger.Info().Msgf("Starting daily %s", task.Name)

	if err := task.Run(ctx, &logger); err != nil {
		logger.Error().Err(err).Msgf("failed to run daily %s", task.Name)

		if task.OnError != nil {
			task.OnError(err)
		}
	} else {
		task.lastRun = now
	}
}

// SetLastRun allows setting the last run time for a task (e.g., from persisted state).
func (ds *DailyScheduler) SetLastRun(taskName string, lastRun time.Time) {
	for _, task := range ds.tasks {
		if task.Name == taskName {
			task.lastRun = lastRun
			return
		}
	}
}

// GetLastRun returns the last run time for a task.
func (ds *DailyScheduler) GetLastRun(taskName string) (time.Time, bool) {
	for _, task := range ds.tasks {
		if task.Name == taskName {
			return task.lastRun, true
		}
	}

	return time.Time{}, false
}

// ShouldRunDaily is a standalone helper function to check if a daily task should run.
// This is useful for code that doesn't want to use the full DailyScheduler.
func ShouldRunDaily(
	now time.Time,
	hour int,
	lastRun time.Time,
	gracePeriod time.Duration,
) bool {
	if now.Hour() != hour {
		return false
	}

	if gracePeriod == 0 {
		gracePeriod = defaultDailyGracePeriod
	}

	if !lastRun.IsZero() && now.Sub(lastRun) <= gracePeriod {
		return false
	}

	return true
}
