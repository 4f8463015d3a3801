// Package worker provides the loop primitives the pipeline runs on: a
// multi-ticker loop for interval jobs and a UTC-hour scheduler for daily
// jobs. Tasks run sequentially on the loop goroutine, so one task never
// overlaps another.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const (
	// tickPoll bounds how often the loop checks its tickers between task
	// runs.
	tickPoll = 100 * time.Millisecond

	logFieldWorker = "worker"
	logFieldTask   = "task"
)

// TickerTask is one interval job.
type TickerTask struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context)
}

// TickerConfig configures a ticker loop.
type TickerConfig struct {
	// Name identifies the loop for logging.
	Name string

	// Tasks run at their configured intervals. Tasks with a non-positive
	// interval or nil Run are skipped.
	Tasks []TickerTask

	Logger *zerolog.Logger
}

// TickerLoop runs every task once at start and then at its interval until
// the context is cancelled. Returns a wrapped context error on cancel.
func TickerLoop(ctx context.Context, cfg TickerConfig) error {
	logger := cfg.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	logger.Info().Str(logFieldWorker, cfg.Name).Msg("starting ticker loop")
	defer logger.Info().Str(logFieldWorker, cfg.Name).Msg("ticker loop stopped")

	if len(cfg.Tasks) == 0 {
		<-ctx.Done()

		return fmt.Errorf("ticker loop %s: %w", cfg.Name, ctx.Err())
	}

	tickers := make([]*time.Ticker, len(cfg.Tasks))

	for i, task := range cfg.Tasks {
		if task.Interval > 0 && task.Run != nil {
			tickers[i] = time.NewTicker(task.Interval)
		}
	}

	defer func() {
		for _, t := range tickers {
			if t != nil {
				t.Stop()
			}
		}
	}()

	for i, task := range cfg.Tasks {
		if tickers[i] == nil {
			continue
		}

		if ctx.Err() != nil {
			return fmt.Errorf("ticker loop %s: %w", cfg.Name, ctx.Err())
		}

		logger.Debug().Str(logFieldTask, task.Name).Msg("running initial task")
		task.Run(ctx)
	}

	for {
		if err := Wait(ctx, tickPoll); err != nil {
			return fmt.Errorf("ticker loop %s: %w", cfg.Name, err)
		}

		for i, task := range cfg.Tasks {
			if tickers[i] == nil {
				continue
			}

			select {
			case <-tickers[i].C:
				logger.Debug().Str(logFieldTask, task.Name).Msg("ticker fired")
				task.Run(ctx)
			default:
			}
		}
	}
}

// Wait blocks until d elapses or the context is cancelled. A non-positive
// duration returns immediately.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("wait interrupted: %w", ctx.Err())
	case <-time.After(d):
		return nil
	}
}
