package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/saulo-duarte/okr-progress/internal/config"
	"github.com/saulo-duarte/okr-progress/internal/container"
	"github.com/saulo-duarte/okr-progress/internal/scheduler"
)

func main() {
	app := &cli.App{
		Name:  "refresher",
		Usage: "keep stored key result statuses in line with the calendar",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 5 * time.Minute,
				Usage: "upper bound for a single refresh run",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "refresh on the REFRESH_SCHEDULE cron spec until interrupted",
				Action: runScheduled,
			},
			{
				Name:   "once",
				Usage:  "refresh a single time and exit",
				Action: runOnce,
			},
		},
		DefaultCommand: "run",
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		config.Logger.WithError(err).Fatal("Refresher failed")
	}
}

func runOnce(c *cli.Context) error {
	ctr := container.NewWorker()
	scheduler.RunRefresh(c.Context, ctr.OKRContainer.Service, c.Duration("timeout"))
	return nil
}

func runScheduled(c *cli.Context) error {
	ctr := container.NewWorker()

	s := scheduler.New(time.UTC)
	if _, err := s.ScheduleRefresh(ctr.Settings.RefreshSchedule, ctr.OKRContainer.Service, c.Duration("timeout")); err != nil {
		return err
	}
	s.Start()
	defer s.Stop()

	config.Logger.WithField("schedule", ctr.Settings.RefreshSchedule).Info("Status refresher started")
	<-c.Context.Done()
	config.Logger.Info("Shutdown complete")
	return nil
}
